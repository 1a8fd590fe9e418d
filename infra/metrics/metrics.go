package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CommandsTotal counts book commands by kind and outcome (ok, rejected,
// failed).
var CommandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hintbook_commands_total",
		Help: "Commands executed against the book",
	},
	[]string{"command", "result"},
)

// CommandLatency records time spent executing a command, journal write
// included.
var CommandLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "hintbook_command_latency_seconds",
		Help:    "Latency in seconds to journal and execute a command",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	},
	[]string{"command"},
)

var EventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hintbook_events_total",
		Help: "Book events emitted by type",
	},
	[]string{"type"},
)

var BookDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "hintbook_book_orders",
		Help: "Live orders per side",
	},
	[]string{"side"},
)

// Broadcaster metrics
var (
	EventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hintbook_events_published_total",
			Help: "Outbox events acknowledged by the broker",
		},
	)

	PublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hintbook_publish_failures_total",
			Help: "Failed publish attempts",
		},
	)
)

// Recovery metrics
var (
	ReplayedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hintbook_journal_replayed_total",
			Help: "Journal records replayed on startup",
		},
	)

	SnapshotsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hintbook_snapshots_written_total",
			Help: "Snapshots written by the snapshot job",
		},
	)
)

func init() {
	prometheus.MustRegister(CommandsTotal, CommandLatency, EventsTotal, BookDepth)
	prometheus.MustRegister(EventsPublished, PublishFailures)
	prometheus.MustRegister(ReplayedRecords, SnapshotsWritten)
}
