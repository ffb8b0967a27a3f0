package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-ocr/internal/bootstrap"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/core"
	"github.com/joseph-ayodele/invoice-ocr/internal/core/async"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/ingest"
	"github.com/joseph-ayodele/invoice-ocr/internal/metrics"
	"github.com/joseph-ayodele/invoice-ocr/internal/server"
)

func main() {
	zlog, _ := zap.NewProduction()
	defer func() { _ = zlog.Sync() }()
	log := zlog.Sugar()

	if err := bootstrap.LoadDotEnv(); err != nil {
		log.Fatalf("env: %v", err)
	}
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := bootstrap.Logger(os.Stdout, true, slog.LevelInfo)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("stores: %v", err)
	}
	defer stores.Close(logger)
	if stores.Pool == nil && stores.SQLite == nil {
		log.Warn("no result store configured; results are only returned to callers")
	}

	extractor, err := bootstrap.Extractor(cfg, logger)
	if err != nil {
		log.Fatalf("ocr: %v", err)
	}
	processor := core.NewProcessor(logger, extractor, core.WithStores(stores.List...), core.WithMetrics(m))

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		async.WithMetrics(m),
	)
	scanner := ingest.NewScanner(queue, logger)

	if dir := cfg.Queue.WatchDir; dir != "" {
		go func() {
			err := scanner.Watch(ctx, ingest.WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: cfg.Queue.Debounce})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("watcher stopped", "dir", dir, "error", err)
			}
		}()
		log.Infow("watching directory", "dir", dir)
	}
	if addr := cfg.Queue.RedisAddr; addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping %s: %v", addr, err)
		}
		go func() {
			err := ingest.NewRedisSource(rdb, cfg.Queue.RedisKey, logger).Run(ctx, queue)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("redis source stopped", "key", cfg.Queue.RedisKey, "error", err)
			}
		}()
		log.Infow("consuming redis list", "addr", addr, "key", cfg.Queue.RedisKey)
	}

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.LoggingInterceptor(zlog)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)
	server.RegisterDocumentService(grpcServer, server.NewDocumentService(processor, zlog,
		server.WithSubmitter(scanner),
		server.WithExporter(export.NewService(logger)),
	))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()
	log.Infof("gRPC serving on %s", cfg.Server.GRPCAddr)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server", "error", err)
		}
	}()
	log.Infof("metrics on %s/metrics", cfg.Server.MetricsAddr)

	<-ctx.Done()
	log.Info("shutting down...")
	hs.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	log.Info("stopped")
}
