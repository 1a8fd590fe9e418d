package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"hintbook/api/grpcserver"
	"hintbook/api/view"
	"hintbook/api/ws"
	"hintbook/config"
	"hintbook/domain/orderbook"
	"hintbook/infra/custody"
	"hintbook/infra/kafka"
	"hintbook/infra/logger"
	entrywal "hintbook/infra/wal/entry"
	exitwal "hintbook/infra/wal/exit"
	"hintbook/jobs/broadcaster"
	"hintbook/service"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New("info").Fatal("config load failed", zap.Error(err))
	}

	log := logger.New(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Entry WAL ----------------

	journal, err := entrywal.Open(entrywal.Config{
		Dir:         cfg.Journal.Dir,
		SegmentSize: cfg.Journal.SegmentSize,
		SyncWrites:  cfg.Journal.Sync,
	})
	if err != nil {
		log.Fatal("journal init failed", zap.Error(err))
	}
	defer journal.Close()

	// ---------------- Exit WAL ----------------

	outbox, err := exitwal.Open(cfg.Outbox.Dir, exitwal.Options{})
	if err != nil {
		log.Fatal("outbox init failed", zap.Error(err))
	}
	defer outbox.Close()

	// ---------------- Service ----------------

	vault := custody.New(cfg.Book.SettlementAsset, cfg.Book.InventoryAsset)
	svc := service.New(
		service.Config{
			Book:        orderbook.Config{MaxTraversal: cfg.Book.MaxTraversal},
			SnapshotDir: cfg.Snapshot.Dir,
		},
		vault,
		journal,
		outbox,
		log,
	)
	if err := svc.Recover(ctx); err != nil {
		log.Fatal("recovery failed", zap.Error(err))
	}

	units := view.Units{PriceDecimals: cfg.Book.PriceDecimals}
	feed := ws.NewFeed(units, log)
	svc.SetFanout(feed)

	// ---------------- Background Jobs ----------------

	// jobs touch the journal and outbox; they are joined before those close
	var jobs sync.WaitGroup

	if cfg.Broadcast.Enabled {
		pub, err := newPublisher(cfg.Broadcast)
		if err != nil {
			log.Fatal("publisher init failed", zap.Error(err))
		}
		bc := broadcaster.New(outbox, pub, broadcaster.Config{
			Interval:   cfg.Broadcast.Interval,
			MaxRetries: cfg.Broadcast.MaxRetries,
			Key:        service.EventKey,
		}, log)
		defer bc.Close()
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			bc.Run(ctx)
		}()
	}

	if cfg.Snapshot.Interval > 0 {
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			svc.RunSnapshotJob(ctx, cfg.Snapshot.Interval)
		}()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Fatal("grpc listen failed", zap.Error(err))
	}
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(log)))
	grpcserver.RegisterBookServer(grpcSrv, grpcserver.NewServer(svc, units))

	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc server exited", zap.Error(err))
			stop()
		}
	}()

	// ---------------- HTTP ----------------

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/events", feed.Handler)
	mux.Handle("/metrics", promhttp.Handler())
	httpSrv := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server exited", zap.Error(err))
			stop()
		}
	}()

	log.Info("hintbook running",
		zap.String("grpc", cfg.GRPC.Addr),
		zap.String("http", cfg.HTTP.Addr),
		zap.String("pair", cfg.Book.InventoryAsset+"#"+cfg.Book.InventoryID+"/"+cfg.Book.SettlementAsset),
		zap.Int("max_traversal", cfg.Book.MaxTraversal),
	)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	jobs.Wait()

	if err := svc.Snapshot(); err != nil {
		log.Error("final snapshot failed", zap.Error(err))
	}
}

func newPublisher(cfg config.BroadcastConfig) (broadcaster.Publisher, error) {
	if cfg.Driver == config.DriverKafkaGo {
		return kafka.NewProducer(cfg.Brokers, cfg.Topic), nil
	}
	return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
}
