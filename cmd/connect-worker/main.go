package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/esignworks/connect-worker/internal/actuator"
	"github.com/esignworks/connect-worker/internal/config"
	"github.com/esignworks/connect-worker/internal/dedupe"
	"github.com/esignworks/connect-worker/internal/esign"
	"github.com/esignworks/connect-worker/internal/fulfill"
	"github.com/esignworks/connect-worker/internal/harness"
	"github.com/esignworks/connect-worker/internal/journal"
	"github.com/esignworks/connect-worker/internal/listener"
	"github.com/esignworks/connect-worker/internal/logging"
	natsclient "github.com/esignworks/connect-worker/internal/messaging/nats"
	"github.com/esignworks/connect-worker/internal/notification"
	"github.com/esignworks/connect-worker/internal/server"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("connect-worker"))
	logging.SetDefault(logger)

	slog.Info("Starting Connect worker",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}
	slog.Info("Endpoints configured",
		slog.String("queue_url", cfg.Queue.URL),
		slog.String("oauth_host", cfg.Auth.OAuthHost),
		slog.String("api_base_url", cfg.API.BaseURL),
	)

	// Initialize the token provider and verify credentials before touching
	// the queue. A worker that can never fulfill must not consume messages;
	// it exits here with instructions instead of nacking forever.
	tokens := esign.NewTokenProvider(esign.TokenConfig{
		IntegrationKey: cfg.Auth.IntegrationKey,
		UserID:         cfg.Auth.UserID,
		PrivateKey:     cfg.Auth.PrivateKey,
		PrivateKeyFile: cfg.Auth.PrivateKeyFile,
		OAuthHost:      cfg.Auth.OAuthHost,
		RedirectURI:    cfg.Auth.RedirectURI,
		RefreshBuffer:  cfg.Auth.RefreshBuffer,
		Timeout:        cfg.Auth.Timeout,
	})

	if err := tokens.CheckToken(context.Background()); err != nil {
		var authErr *esign.AuthError
		if errors.As(err, &authErr) {
			switch authErr.Kind {
			case esign.AuthConsentRequired:
				log.Println("Consent for this integration has not been granted.")
				log.Println("Open this URL in a browser, sign in as the configured user, and approve access:")
				log.Printf("  %s", authErr.ConsentURL)
			case esign.AuthConfigMissing:
				log.Println("Auth configuration is incomplete.")
				log.Println("Set auth.integration_key, auth.user_id and auth.private_key (or auth.private_key_file), then restart.")
			}
		}
		log.Fatalf("Startup token check failed: %v", err)
	}
	slog.Info("Startup token check passed", slog.String("oauth_host", cfg.Auth.OAuthHost))

	// Document retrieval client
	documents := esign.NewDocumentClient(cfg.API.BaseURL, cfg.API.AccountID, cfg.API.Timeout)

	// Fulfillment executor
	fulfiller := fulfill.New(tokens, documents, fulfill.Config{
		OutputDir:   cfg.Output.Dir,
		FilePrefix:  cfg.Output.Prefix,
		BreakMarker: cfg.BreakMarker,
	})
	log.Printf("Fulfillment output: %s (prefix: %s)", cfg.Output.Dir, cfg.Output.Prefix)

	// Optional color actuator
	var act listener.Actuator
	if cfg.Actuator.Token != "" {
		act = actuator.New(cfg.Actuator.BaseURL, cfg.Actuator.Token, cfg.Actuator.Selector, cfg.Actuator.Timeout)
		log.Printf("Color actuation enabled (selector: %s)", cfg.Actuator.Selector)
	} else {
		log.Println("Color actuation disabled - no actuator token configured")
	}

	// Optional crash-recovery harness
	var testHarness listener.HarnessRunner
	if cfg.Harness.Enabled {
		testHarness = harness.New(cfg.HarnessDir(), cfg.Harness.Depth, cfg.BreakMarker)
		log.Printf("Test harness enabled (dir: %s, depth: %d)", cfg.HarnessDir(), cfg.Harness.Depth)
	} else {
		log.Println("Test harness disabled")
	}

	// Optional duplicate tracking
	var tracker dedupe.Tracker
	if cfg.Dedupe.Enabled {
		tr, err := dedupe.NewRedisTracker(cfg.Dedupe.URL, cfg.Dedupe.TTL, false)
		if err != nil {
			log.Printf("WARNING: Failed to initialize duplicate tracking: %v", err)
			log.Println("Continuing without duplicate tracking")
			tracker = dedupe.NoOpTracker{}
		} else {
			tracker = tr
			log.Printf("Duplicate tracking enabled (ttl: %s)", cfg.Dedupe.TTL)
		}
	} else {
		tracker = dedupe.NoOpTracker{}
		log.Println("Duplicate tracking disabled")
	}
	defer tracker.Close()

	// Optional fulfillment journal
	var jrnl journal.Journal = journal.NoOpJournal{}
	if cfg.Journal.Enabled {
		// Run database migrations
		log.Println("Running database migrations...")
		m, err := migrate.New("file://migrations", cfg.Journal.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize migrations: %v", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Database migrations completed")

		pj, err := journal.NewPostgresJournal(context.Background(), cfg.Journal.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer pj.Close()
		jrnl = pj
		log.Println("Fulfillment journal enabled")
	} else {
		log.Println("Fulfillment journal disabled")
	}

	// Connect to NATS
	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = cfg.Queue.URL
	jsClient, err := natsclient.NewJetStreamClient(natsCfg)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer jsClient.Close()
	log.Printf("Connected to NATS at %s", cfg.Queue.URL)

	// Assemble the processing pipeline
	pipe := listener.NewPipeline(listener.PipelineConfig{
		Filter:    notification.NewFilter(cfg.Fields.BusinessKey, cfg.Fields.Color),
		Fulfiller: fulfiller,
		Actuator:  act,
		Harness:   testHarness,
		Tracker:   tracker,
		Journal:   jrnl,
		NakDelay:  cfg.Queue.NakDelay,
	})

	streamCfg := natsclient.EnvelopeEventsStream
	streamCfg.Name = cfg.Queue.Stream

	consumerCfg := natsclient.WorkerConsumer
	consumerCfg.Name = cfg.Queue.Consumer
	consumerCfg.AckWait = cfg.Queue.AckWait
	consumerCfg.MaxDeliver = cfg.Queue.MaxDeliver
	consumerCfg.MaxAckPending = cfg.Queue.MaxAckPending

	lst := listener.New(jsClient, pipe, listener.Config{
		Stream:   streamCfg,
		Consumer: consumerCfg,
		Cooldown: cfg.Queue.Cooldown,
	})

	// Start the listener; it owns the subscribe/cool-down/reconnect loop.
	ctx, cancel := context.WithCancel(context.Background())
	listenerDone := make(chan struct{})
	go func() {
		lst.Run(ctx)
		close(listenerDone)
	}()

	// Operational HTTP endpoints (health, readiness, metrics)
	router := server.NewRouter(server.NewHandler(jsClient))
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Connect worker listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	<-listenerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Worker stopped")
}
