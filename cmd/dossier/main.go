package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/dossier-hq/dossier/internal/archive"
	"github.com/dossier-hq/dossier/internal/auth"
	"github.com/dossier-hq/dossier/internal/casemanager"
	"github.com/dossier-hq/dossier/internal/config"
	"github.com/dossier-hq/dossier/internal/eventstore"
	"github.com/dossier-hq/dossier/internal/httpserver"
	"github.com/dossier-hq/dossier/internal/syncer"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.LoadFromEnv()
	ctx := context.Background()

	// Store: Postgres when configured, file store when an archive dir is
	// given, in-memory otherwise (dev only).
	var store eventstore.Store
	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open postgres: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			log.Fatalf("failed to ping postgres: %v", err)
		}
		cancel()
		log.Println("connected to postgres")
		store = eventstore.NewPGStore(db)
	case cfg.ArchiveDir != "":
		store = eventstore.NewFileStore(cfg.ArchiveDir)
	default:
		log.Println("no DATABASE_URL or ARCHIVE_DIR set; using in-memory store (dev only)")
		store = eventstore.NewMemoryStore()
	}
	if err := store.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize event store: %v", err)
	}

	manager := casemanager.New(store)
	verifier := auth.NewVerifier(cfg.AuthHMACSecret)
	if cfg.AuthHMACSecret == "" {
		log.Println("AUTH_HMAC_SECRET not set; trusting X-Actor-Id headers (dev only)")
	}

	// Sync against a mirror peer, with optional Kafka fan-out.
	var orch *syncer.Orchestrator
	if cfg.MirrorBaseURL != "" {
		opts := []syncer.Option{syncer.WithPullInterval(cfg.PullInterval)}
		if len(cfg.KafkaBrokers) > 0 {
			relay, err := syncer.NewKafkaRelay(syncer.KafkaRelayConfig{
				Brokers: cfg.KafkaBrokers,
				Topic:   cfg.KafkaTopic,
			})
			if err != nil {
				log.Fatalf("failed to initialize kafka relay: %v", err)
			}
			log.Printf("kafka relay initialized (brokers=%v topic=%s)", cfg.KafkaBrokers, cfg.KafkaTopic)
			opts = append(opts, syncer.WithRelay(relay))
		}
		orch = syncer.New(manager, syncer.NewHTTPMirror(cfg.MirrorBaseURL), opts...)
		if err := orch.Start(ctx); err != nil {
			log.Fatalf("failed to start sync: %v", err)
		}
		log.Printf("sync started (mirror=%s pull=%s)", cfg.MirrorBaseURL, cfg.PullInterval)
	}

	// Periodic snapshot archival to S3.
	var archiveRunner *archive.Runner
	if cfg.S3Bucket != "" {
		archiver, err := archive.NewS3Archiver(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			log.Fatalf("failed to initialize s3 archiver: %v", err)
		}
		log.Printf("s3 archiver initialized (bucket=%s prefix=%s)", cfg.S3Bucket, cfg.S3Prefix)
		archiveRunner = archive.NewRunner(store, archiver, time.Hour)
		go archiveRunner.Run(ctx)
	}

	var syncSurface httpserver.Syncer
	if orch != nil {
		syncSurface = orch
	}
	srv := httpserver.New(manager, verifier, syncSurface)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if orch != nil {
		orch.Stop()
	}
	if archiveRunner != nil {
		archiveRunner.Stop()
	}
}
