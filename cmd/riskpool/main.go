package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"RiskPool/internal/config"
	"RiskPool/internal/engine"
	"RiskPool/internal/gate"
	"RiskPool/internal/ingestion"
	"RiskPool/internal/observability"
	"RiskPool/internal/persistence"
	"RiskPool/internal/projection"
	"RiskPool/internal/query"
	"RiskPool/internal/server"
	"RiskPool/internal/transfer"
)

func main() {
	logger := observability.NewLogger("main")
	logger.Info().Msg("riskpool starting")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("postgres ping")
	}
	logger.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.MigrationsDir, observability.NewLogger("migrator"))
	if err := migrator.Up(ctx); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, observability.NewLogger("nats"))
	if err != nil {
		logger.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()

	if err := ingestion.EnsureStreams(ctx, js, observability.NewLogger("nats")); err != nil {
		logger.Fatal().Err(err).Msg("ensure nats streams")
	}

	// --- Custody port ---
	var port transfer.Port
	if cfg.DevTransfers {
		logger.Warn().Msg("using in-memory custody port, funds are not real")
		port = transfer.NewMemPort()
	} else {
		port = transfer.NewNATSPort(nc, cfg.TransferTimeout, observability.NewLogger("transfer"))
	}

	// --- Engine + output channels ---
	// The persist channel blocks the engine when full; projection and
	// publish drop instead.
	persistChan := make(chan engine.Output, cfg.PersistChanSize)
	projectionChan := make(chan engine.Output, cfg.ProjectionChanSize)
	publishChan := make(chan engine.Output, cfg.PublishChanSize)

	verifier := gate.NewTokenVerifier(cfg.JWTSigningKey, cfg.JWTIssuer)

	eng, err := engine.NewEngine(
		cfg.InitialReserveRatioBps,
		port,
		gate.NewCapabilityGate(),
		persistChan,
		projectionChan,
		publishChan,
		metrics,
		observability.NewLogger("engine"),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("build engine")
	}

	// --- Recovery: snapshot + event replay ---
	snapMgr := persistence.NewSnapshotManager(db)
	replayed, err := persistence.Recover(ctx, eng, snapMgr, observability.NewLogger("recovery"))
	if err != nil {
		logger.Fatal().Err(err).Msg("recovery failed")
	}
	logger.Info().
		Int64("replayed", replayed).
		Int64("sequence", eng.Sequence()).
		Msg("recovery complete")

	// --- Workers ---
	errChan := make(chan error, 8)

	persistWorker := persistence.NewWorker(
		db, persistChan, cfg.PersistBatchSize, cfg.PersistFlushTimeout,
		metrics, observability.NewLogger("persistence"),
	)
	go func() { errChan <- persistWorker.Run(ctx) }()

	projWorker := projection.NewWorker(db, projectionChan, observability.NewLogger("projection"))
	go func() { errChan <- projWorker.Run(ctx) }()

	publisher := ingestion.NewOutboundPublisher(js, publishChan, observability.NewLogger("publisher"))
	go func() { errChan <- publisher.Run(ctx) }()

	// --- Settlement ingestion from NATS ---
	requestChan := make(chan ingestion.RawRequest, cfg.RequestChanSize)
	subscriber := ingestion.NewSettlementSubscriber(js, requestChan, observability.NewLogger("subscriber"))
	if err := subscriber.Subscribe(ctx); err != nil {
		logger.Fatal().Err(err).Msg("nats subscribe")
	}

	runner := ingestion.NewSettlementRunner(requestChan, eng, verifier, observability.NewLogger("settlement"))
	go func() { errChan <- runner.Run(ctx) }()

	// --- HTTP API ---
	httpServer := server.NewServer(
		cfg.HTTPAddr,
		eng,
		query.NewService(db),
		verifier,
		health,
		metrics,
		observability.NewLogger("http"),
	)
	go func() { errChan <- httpServer.Start() }()

	// --- Metrics server ---
	go func() { errChan <- runMetricsServer(ctx, cfg.MetricsAddr, logger) }()

	// --- Periodic snapshots + channel gauges ---
	go runPeriodicSnapshots(ctx, eng, snapMgr, cfg.SnapshotInterval, metrics, logger)
	go runChannelGauges(ctx, metrics, persistChan, projectionChan, publishChan, requestChan)

	health.SetReady(true)
	logger.Info().
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Int64("sequence", eng.Sequence()).
		Msg("riskpool ready")

	// --- Wait for shutdown ---
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("worker failed, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Stop intake first so no new operations land while we drain.
	subscriber.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	cancel()
	close(persistChan)
	close(projectionChan)
	close(publishChan)

	if err := takeSnapshot(shutdownCtx, eng, snapMgr, metrics); err != nil {
		logger.Error().Err(err).Msg("final snapshot failed")
	} else {
		logger.Info().Int64("sequence", eng.Sequence()).Msg("final snapshot saved")
	}

	logger.Info().Msg("riskpool shutdown complete")
}

func runMetricsServer(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func runPeriodicSnapshots(
	ctx context.Context,
	eng *engine.Engine,
	snapMgr *persistence.SnapshotManager,
	interval time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	lastSeq := eng.Sequence()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq := eng.Sequence()
			if seq == lastSeq {
				continue
			}
			if err := takeSnapshot(ctx, eng, snapMgr, metrics); err != nil {
				logger.Warn().Err(err).Msg("periodic snapshot failed")
				continue
			}
			lastSeq = seq
			logger.Info().Int64("sequence", seq).Msg("periodic snapshot saved")
		}
	}
}

func takeSnapshot(
	ctx context.Context,
	eng *engine.Engine,
	snapMgr *persistence.SnapshotManager,
	metrics *observability.Metrics,
) error {
	start := time.Now()

	snap := eng.CreateSnapshotState()
	if err := snapMgr.SaveSnapshot(ctx, snap); err != nil {
		return err
	}

	if metrics != nil {
		metrics.SnapshotTaken.Inc()
		metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		metrics.SnapshotLastSeq.Set(float64(snap.Sequence))
	}
	return nil
}

func runChannelGauges(
	ctx context.Context,
	metrics *observability.Metrics,
	persistChan, projectionChan, publishChan chan engine.Output,
	requestChan chan ingestion.RawRequest,
) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetChannelMetrics("persist", len(persistChan), cap(persistChan))
			metrics.SetChannelMetrics("projection", len(projectionChan), cap(projectionChan))
			metrics.SetChannelMetrics("publish", len(publishChan), cap(publishChan))
			metrics.SetChannelMetrics("settlement_requests", len(requestChan), cap(requestChan))
		}
	}
}
