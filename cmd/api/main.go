package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"orggate/internal/audit"
	"orggate/internal/auth"
	"orggate/internal/config"
	"orggate/internal/directory"
	"orggate/internal/httpapi"
	"orggate/internal/mediate"
	"orggate/internal/obs"
	"orggate/internal/policy"
	"orggate/internal/session"
	"orggate/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("ORGGATE_CONFIG"), "Path to YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	events := stream.New()

	auditLog, err := audit.Open(cfg.Audit.Path,
		audit.WithRetries(cfg.Audit.RetryAttempts),
		audit.WithAlarm(func(err error) {
			events.Publish(stream.KindAuditWriteFailure, err.Error())
		}),
	)
	if err != nil {
		log.Fatalf("open audit log: %v", err)
	}

	// PostgreSQL user store when a DSN is configured; in-memory store
	// seeded from the users file otherwise.
	var (
		db    *sql.DB
		store auth.Store
	)
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		mem := auth.NewMemoryStore()
		if cfg.UsersFile != "" {
			n, err := auth.SeedFromFile(context.Background(), mem, cfg.UsersFile)
			if err != nil {
				log.Fatalf("seed users: %v", err)
			}
			log.Printf("Seeded %d users from %s", n, cfg.UsersFile)
		}
		store = mem
	}

	verifier := auth.NewVerifier(store, auditLog,
		auth.WithMaxAttempts(cfg.Auth.MaxLoginAttempts),
		auth.WithAttemptWindow(cfg.Auth.AttemptWindow()),
		auth.WithLockoutDuration(cfg.Auth.LockoutDuration()),
		auth.WithSecurityHook(events.Publish),
	)

	sessions, err := session.NewManager(cfg.SessionSecret, auditLog,
		session.WithTTL(cfg.Session.TTL()),
		session.WithSlidingExpiry(cfg.Session.Sliding),
		session.WithSingleSession(cfg.Session.SingleSession),
		session.WithSecurityHook(events.Publish),
	)
	if err != nil {
		log.Fatalf("session manager: %v", err)
	}
	sessions.StartSweeper(cfg.Session.SweepInterval())

	masker, err := policy.NewMasker(cfg.MaskingSalt)
	if err != nil {
		log.Fatalf("masker: %v", err)
	}

	mediator, err := mediate.NewMediator(sessions, directory.NewSample(), masker, auditLog,
		mediate.WithSuccessLogging(cfg.Audit.LogSuccess),
	)
	if err != nil {
		log.Fatalf("mediator: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, verifier, sessions, mediator, auditLog, events)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting orggate %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	sessions.Stop()
	_ = auditLog.Close()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
