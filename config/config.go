package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Book      BookConfig      `mapstructure:"book"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// BookConfig identifies the traded pair and bounds traversal.
type BookConfig struct {
	SettlementAsset string `mapstructure:"settlement_asset"`
	InventoryAsset  string `mapstructure:"inventory_asset"`
	InventoryID     string `mapstructure:"inventory_id"`
	MaxTraversal    int    `mapstructure:"max_traversal"`
	PriceDecimals   int32  `mapstructure:"price_decimals"`
}

type JournalConfig struct {
	Dir         string `mapstructure:"dir"`
	SegmentSize int64  `mapstructure:"segment_size"`
	Sync        bool   `mapstructure:"sync"`
}

type SnapshotConfig struct {
	Dir      string        `mapstructure:"dir"`
	Interval time.Duration `mapstructure:"interval"`
}

type OutboxConfig struct {
	Dir string `mapstructure:"dir"`
}

type BroadcastConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Driver     string        `mapstructure:"driver"`
	Brokers    []string      `mapstructure:"brokers"`
	Topic      string        `mapstructure:"topic"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxRetries uint32        `mapstructure:"max_retries"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

const (
	DriverSarama  = "sarama"
	DriverKafkaGo = "kafka-go"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("book.settlement_asset", "USDC")
	v.SetDefault("book.inventory_asset", "ITEM")
	v.SetDefault("book.inventory_id", "0")
	v.SetDefault("book.max_traversal", 4)
	v.SetDefault("book.price_decimals", 18)

	v.SetDefault("journal.dir", "./data/journal")
	v.SetDefault("journal.segment_size", 64<<20)
	v.SetDefault("journal.sync", true)

	v.SetDefault("snapshot.dir", "./data/snapshot")
	v.SetDefault("snapshot.interval", time.Minute)

	v.SetDefault("outbox.dir", "./data/outbox")

	v.SetDefault("broadcast.enabled", false)
	v.SetDefault("broadcast.driver", DriverSarama)
	v.SetDefault("broadcast.brokers", []string{"localhost:9092"})
	v.SetDefault("broadcast.topic", "hintbook.events")
	v.SetDefault("broadcast.interval", 250*time.Millisecond)
	v.SetDefault("broadcast.max_retries", 0)

	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("http.addr", ":8080")
}

// Load reads path (YAML) when given and lets HINTBOOK_* environment
// variables override any key, e.g. HINTBOOK_BOOK_MAX_TRAVERSAL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HINTBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Book.MaxTraversal <= 0 {
		return errors.Newf("book.max_traversal must be positive, got %d", c.Book.MaxTraversal)
	}
	if c.Book.PriceDecimals < 0 || c.Book.PriceDecimals > 36 {
		return errors.Newf("book.price_decimals out of range: %d", c.Book.PriceDecimals)
	}
	if c.Broadcast.Enabled {
		switch c.Broadcast.Driver {
		case DriverSarama, DriverKafkaGo:
		default:
			return errors.Newf("unknown broadcast.driver %q", c.Broadcast.Driver)
		}
		if len(c.Broadcast.Brokers) == 0 {
			return errors.New("broadcast.brokers is empty")
		}
	}
	return nil
}
