package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goa.design/clue/log"
	"gorm.io/gorm"

	"almondsense/internal/config"
	"almondsense/internal/database"
	"almondsense/internal/identity"
	"almondsense/internal/lifecycle"
	"almondsense/internal/metrics"
	"almondsense/internal/notify"
	"almondsense/internal/repository"
	"almondsense/internal/review"
	"almondsense/internal/server"
	"almondsense/internal/services"
	"almondsense/internal/session"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := logContext(cfg)
	log.Infof(ctx, "starting %s v%s", cfg.App.Name, cfg.App.Version)
	log.Infof(ctx, "environment: debug=%v, port=%s, host=%s, status_policy=%s",
		cfg.App.Debug, cfg.App.Port, cfg.App.Host, cfg.Review.StatusPolicy)

	if err := run(ctx, cfg); err != nil {
		log.Fatalf(ctx, err, "server failed")
	}
	log.Infof(ctx, "server shutdown complete")
}

func logContext(cfg *config.Config) context.Context {
	format := log.FormatJSON
	if cfg.Log.Format == "text" {
		format = log.FormatText
	}
	opts := []log.LogOption{log.WithFormat(format)}
	if cfg.App.Debug {
		opts = append(opts, log.WithDebug())
	}
	ctx := log.Context(context.Background(), opts...)
	return log.With(ctx, log.KV{K: "svc", V: "almondsense"})
}

func run(ctx context.Context, cfg *config.Config) error {
	log.Infof(ctx, "initializing database connection...")
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		log.Infof(ctx, "closing database connections...")
		if err := database.Close(db); err != nil {
			log.Errorf(ctx, err, "error closing database")
		}
	}()

	policy, err := lifecycle.PolicyByName(cfg.Review.StatusPolicy)
	if err != nil {
		return err
	}

	log.Infof(ctx, "initializing services...")
	submissions := repository.NewSubmissions(db)
	sessions := session.NewManager(session.Config{
		Username:      cfg.Admin.Username,
		Password:      cfg.Admin.Password,
		Secret:        cfg.Auth.SecretKey,
		TTL:           time.Duration(cfg.Admin.SessionMinutes) * time.Minute,
		RatePerMinute: cfg.Admin.LoginRatePerMinute,
		Burst:         cfg.Admin.LoginBurst,
	}, nil)
	workspaces := review.NewWorkspaces(review.WorkspaceConfig{
		Submissions: submissions,
		Profiles:    repository.NewProfiles(db),
		Policy:      policy,
		FeedSize:    cfg.Review.NotificationFeedSize,
		Relay:       notify.LogRelay{},
	})
	provider := identity.NewProvider(db, cfg.Auth.SecretKey,
		time.Duration(cfg.Auth.TokenExpiryMinutes)*time.Minute, nil)

	mailer := services.NewEmailService(&cfg.Email)
	if !mailer.IsEnabled() {
		log.Infof(ctx, "email disabled, submission notifications are logged only")
	}

	srv := server.New(cfg, server.Deps{
		Health:      services.NewHealthService(db, cfg.App.Name, cfg.App.Version),
		Submissions: services.NewSubmissionService(submissions, mailer, cfg.Email.NotifyEmail, notify.LogRelay{}),
		Customers:   services.NewCustomerService(db, provider),
		Admin:       services.NewAdminService(db, sessions, workspaces),
		Sessions:    sessions,
	})

	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(ctx),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		ErrorLog:     stdlog.New(stdLogWriter{log.AsStdLogger(ctx)}, "", 0),
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go housekeeping(bgCtx, db, sessions)

	serverErrors := make(chan error, 1)
	go func() {
		log.Infof(ctx, "server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		log.Infof(ctx, "received signal: %v. starting graceful shutdown...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf(ctx, err, "error during graceful shutdown")
		if errors.Is(err, context.DeadlineExceeded) {
			log.Infof(ctx, "shutdown timeout exceeded, forcing close...")
			_ = httpServer.Close()
		}
	}
	return nil
}

// housekeeping ends expired operator sessions and publishes pool stats.
func housekeeping(ctx context.Context, db *gorm.DB, sessions *session.Manager) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Sweep(ctx)
			metrics.SetActiveSessions(sessions.Active())
			if stats, err := database.Stats(db); err == nil {
				metrics.UpdateDBConnections(stats.InUse, stats.Idle)
			}
		}
	}
}

// stdLogWriter adapts clue's StdLogger to the io.Writer expected by the
// stdlib *log.Logger used for http.Server.ErrorLog.
type stdLogWriter struct{ l *log.StdLogger }

func (w stdLogWriter) Write(p []byte) (int, error) {
	w.l.Print(string(p))
	return len(p), nil
}
