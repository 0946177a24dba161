package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/sumire/cronboard/internal/config"
	"github.com/sumire/cronboard/internal/database"
	"github.com/sumire/cronboard/internal/handler"
	"github.com/sumire/cronboard/internal/logger"
	"github.com/sumire/cronboard/internal/metrics"
	"github.com/sumire/cronboard/internal/repository"
	"github.com/sumire/cronboard/internal/service"
	"github.com/sumire/cronboard/internal/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate session secret: %w", err)
		}
		log.Warn("NEXTAUTH_SECRET is not set, sessions will not survive a restart")
	}
	codec, err := session.NewCodec(secret)
	if err != nil {
		return fmt.Errorf("create session codec: %w", err)
	}
	cookies := session.NewManager(codec, cfg.Production())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	var (
		users      service.CredentialStore
		identities service.IdentityStore
	)
	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := database.Up(cfg.DatabaseURL); err != nil {
				return err
			}
			log.Info("migrations applied")
		}

		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Info("database connected")

		users = repository.NewCredentialRepository(db)
		identities = repository.NewIdentityRepository(db)
	} else {
		log.Info("DATABASE_URL is not set, using in-memory stores")
		users = repository.NewMemoryCredentialStore()
		identities = repository.NewMemoryIdentityStore()
	}

	github := service.NewGitHubOAuth(service.GitHubOAuthConfig{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.BaseURL + "/api/auth/callback/github",
		Timeout:      cfg.OAuthTimeout,
		Metrics:      collector,
	})

	authSvc := service.NewAuthService(users, identities, github, service.AuthConfig{
		Metrics: collector,
		Logger:  log,
	})
	if err := authSvc.Seed(ctx, service.DemoUsers); err != nil {
		return fmt.Errorf("seed demo users: %w", err)
	}

	e, err := handler.NewRouter(ctx, handler.RouterConfig{
		Auth:           authSvc,
		Dashboard:      service.NewDashboardService(repository.NewDashboardStore()),
		Workflows:      service.NewWorkflowClient("", cfg.OAuthTimeout),
		Cookies:        cookies,
		Metrics:        collector,
		Gatherer:       registry,
		Logger:         log,
		AllowedOrigin:  cfg.BaseURL,
		LoginRateLimit: rate.Limit(cfg.LoginRateLimit),
		LoginRateBurst: cfg.LoginRateBurst,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
