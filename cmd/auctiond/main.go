package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	_ "github.com/lib/pq"

	"github.com/whetstoneresearch/doppler-sub010/internal/auction"
	"github.com/whetstoneresearch/doppler-sub010/internal/config"
	"github.com/whetstoneresearch/doppler-sub010/internal/custody"
	"github.com/whetstoneresearch/doppler-sub010/internal/event"
	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
	"github.com/whetstoneresearch/doppler-sub010/internal/market"
	"github.com/whetstoneresearch/doppler-sub010/internal/observability"
	"github.com/whetstoneresearch/doppler-sub010/internal/persistence"
	"github.com/whetstoneresearch/doppler-sub010/internal/server"
	"github.com/whetstoneresearch/doppler-sub010/internal/stream"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	migrationsDir := flag.String("migrations", "migrations", "path to SQL migrations")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLoggerWithLevel("auctiond", parseLevel(cfg.Log.Level))
	log.Info().Str("auction_id", cfg.Auction.ID).Msg("auctiond starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	health := observability.NewHealthChecker()

	errChan := make(chan error, 8)

	// --- Postgres event log (optional) ---
	var persistChan chan event.Envelope
	if cfg.Storage.DSN != "" {
		db, err := sql.Open("postgres", cfg.Storage.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres open")
		}
		defer db.Close()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping")
		}

		migrator := persistence.NewMigrator(db, *migrationsDir, log)
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}
		log.Info().Msg("postgres connected, migrations applied")

		persistChan = make(chan event.Envelope, cfg.Storage.PersistBuffer)
		worker := persistence.NewWorker(db, persistChan,
			cfg.Storage.BatchSize, cfg.FlushInterval(), log, metrics)
		go func() {
			errChan <- worker.Run(ctx)
		}()
	} else {
		log.Warn().Msg("no postgres dsn configured, event log disabled")
	}

	// --- NATS JetStream publisher (optional) ---
	var publishChan chan event.Envelope
	if cfg.Stream.URL != "" {
		nc, js, err := connectNATS(cfg.Stream.URL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Close()

		if err := stream.EnsureStream(ctx, js, cfg.Stream.StreamName, cfg.Stream.SubjectPrefix); err != nil {
			log.Fatal().Err(err).Msg("ensure outbound stream")
		}
		log.Info().Str("stream", cfg.Stream.StreamName).Msg("nats connected")

		publishChan = make(chan event.Envelope, cfg.Stream.PublishBuffer)
		publisher := stream.NewPublisher(js, publishChan, cfg.Stream.SubjectPrefix, log)
		go func() {
			errChan <- publisher.Run(ctx)
		}()
	} else {
		log.Warn().Msg("no nats url configured, outbound publishing disabled")
	}

	sink := event.NewFanOut(persistChan, publishChan, metrics.PublishDrops.Inc)

	// --- Engine ---
	engineCfg := auction.Config{
		AuctionID:         cfg.Auction.ID,
		Duration:          cfg.Auction.DurationSeconds,
		FloorPrice:        cfg.Auction.FloorPrice,
		Granularity:       cfg.Auction.Granularity,
		MinBidSize:        cfg.Auction.MinBidSize,
		Allocation:        cfg.Auction.Allocation,
		IncentiveShareBps: cfg.Auction.IncentiveShareBps,
		ClaimWindow:       cfg.Auction.ClaimWindow,
		Orientation:       parseOrientation(cfg.Auction.Orientation),
		Owner:             cfg.Auction.Owner,
		Migrator:          cfg.Auction.Migrator,
	}

	vault := custody.NewVault()
	vault.CreditAsset(auction.HolderAuction, engineCfg.Allocation)

	store := levels.NewStore()
	venueOrient := market.SellAsset
	if engineCfg.Orientation == auction.SellingNumeraire {
		venueOrient = market.SellNumeraire
	}
	venue := market.NewBookVenue(store, engineCfg.FloorPrice, venueOrient)

	engine, err := auction.NewEngine(engineCfg, store, vault, venue,
		sink, observability.NewLoggerWithLevel("engine", parseLevel(cfg.Log.Level)), metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	// --- HTTP API ---
	var limiter *rate.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)
	}
	handler := server.NewHandler(engine, nil)
	apiServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      server.NewRouter(handler, log, limiter),
		ReadTimeout:  cfg.RequestTimeout(),
		WriteTimeout: cfg.RequestTimeout(),
	}
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("api listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("api server: %w", err)
		}
	}()

	// --- Telemetry: metrics + health ---
	telemetryMux := http.NewServeMux()
	telemetryMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	telemetryMux.HandleFunc("/healthz", health.LivenessHandler)
	telemetryMux.HandleFunc("/readyz", health.ReadinessHandler)
	telemetryServer := &http.Server{
		Addr:    cfg.Telemetry.ListenAddr,
		Handler: telemetryMux,
	}
	go func() {
		log.Info().Str("addr", cfg.Telemetry.ListenAddr).Msg("telemetry listening")
		if err := telemetryServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("telemetry server: %w", err)
		}
	}()

	health.SetReady(true)
	log.Info().Msg("auctiond ready")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("background goroutine failed, shutting down")
		}
	}

	health.SetReady(false)
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = apiServer.Shutdown(shutCtx)
	_ = telemetryServer.Shutdown(shutCtx)

	// The persistence worker flushes its final batch on cancellation; give
	// it a moment before the process exits.
	time.Sleep(200 * time.Millisecond)
	log.Info().Msg("auctiond stopped")
}

func connectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}

func parseOrientation(s string) auction.Orientation {
	if s == "selling_numeraire" {
		return auction.SellingNumeraire
	}
	return auction.SellingAsset
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
