package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"worknest/internal/auth"
	"worknest/internal/config"
	"worknest/internal/db"
	"worknest/internal/executors"
	httpx "worknest/internal/http"
	"worknest/internal/jobs"
	"worknest/internal/lease"
	"worknest/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithAttr(slog.String("service", "worknest")),
	)
	slog.SetDefault(log)

	jwtSvc := auth.NewJWT(cfg.AdminJWTSecret, 0)

	// worknest token <operator> prints an admin bearer token and exits.
	if len(os.Args) == 3 && os.Args[1] == "token" {
		tok, err := jwtSvc.Sign(os.Args[2])
		if err != nil {
			fatal(log, "sign token", err)
		}
		fmt.Println(tok)
		return
	}

	if err := run(cfg, log, jwtSvc); err != nil {
		fatal(log, "worknest stopped", err)
	}
}

func run(cfg config.Config, log *slog.Logger, jwtSvc *auth.JWT) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	sender, err := emailSender(cfg, log)
	if err != nil {
		return err
	}

	registry, err := jobs.NewRegistry(
		&executors.Email{Sender: sender},
		&executors.Webhook{
			Client:  &http.Client{},
			Secret:  cfg.Webhooks.Secret,
			Timeout: cfg.Webhooks.Timeout,
		},
		&executors.Cleanup{
			Targets: map[string]executors.Purger{
				"completed_jobs": executors.JobStatusPurger(store, jobs.StatusCompleted),
				"failed_jobs":    executors.JobStatusPurger(store, jobs.StatusFailed),
			},
			Logger: log,
		},
	)
	if err != nil {
		return err
	}

	engine := jobs.NewEngine(store, registry,
		jobs.WithMaxRetries(cfg.Jobs.MaxRetries),
		jobs.WithRetention(cfg.Jobs.Retention),
		jobs.WithLogger(log),
	)

	hostname, _ := os.Hostname()
	sweepLease, err := openLease(ctx, cfg, hostname)
	if err != nil {
		return err
	}

	worker := &jobs.Worker{
		ID:              hostname,
		Engine:          engine,
		Lease:           sweepLease,
		Logger:          log,
		PollInterval:    cfg.Jobs.PollInterval,
		RetryInterval:   cfg.Jobs.RetryInterval,
		CleanupInterval: cfg.Jobs.CleanupInterval,
		Concurrency:     cfg.Jobs.Concurrency,
	}
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(cfg, engine, registry.Types(), jwtSvc, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.HTTPAddr), slog.Any("executors", registry.Types()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ch:
	case err := <-srvErr:
		cancel()
		<-workerDone
		return err
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	<-workerDone
	return nil
}

func openStore(cfg config.Config) (jobs.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return jobs.NewMemoryStore(), nil
	}
	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return nil, err
	}
	return &jobs.Repo{DB: gdb}, nil
}

func emailSender(cfg config.Config, log *slog.Logger) (executors.Sender, error) {
	if cfg.Email.PostmarkServerToken == "" {
		log.Warn("postmark not configured, emails will only be logged")
		return &executors.LogSender{Logger: log}, nil
	}
	return executors.NewPostmarkSender(cfg.Email.PostmarkServerToken, cfg.Email.PostmarkAccountToken, cfg.Email.Sender)
}

func openLease(ctx context.Context, cfg config.Config, owner string) (jobs.Lease, error) {
	if cfg.Redis.URL == "" {
		return lease.NewLocal(), nil
	}
	client, err := lease.Connect(ctx, cfg.Redis.URL, cfg.Redis.RetryAttempts, cfg.Redis.RetryInterval)
	if err != nil {
		return nil, err
	}
	return &lease.Redis{Client: client, Owner: owner}, nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, logger.Error(err))
	os.Exit(1)
}
