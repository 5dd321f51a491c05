package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seacatering/subscription-service/internal/api"
	"github.com/seacatering/subscription-service/internal/app"
	"github.com/seacatering/subscription-service/internal/clock"
	"github.com/seacatering/subscription-service/internal/jobs"
	"github.com/seacatering/subscription-service/internal/security"
	"github.com/seacatering/subscription-service/pkg/supabaseauth"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := requireConfig(cfg); err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	redisClient := openRedis(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}
	attempts, tokens := securityStores(redisClient, cfg.RedisKeyPrefix)

	publisher := openPublisher(cfg)
	defer publisher.Close()

	clk := clock.System{}
	loc := cfg.Location()
	limiter := security.NewAttemptLimiter(attempts, clk, cfg.RateLimitMaxAttempts, cfg.RateLimitWindow(), logger)
	csrf := security.NewCSRFManager(tokens, cfg.CSRFTokenTTL())

	subscriptions := app.NewSubscriptionService(repo, publisher, limiter, clk, loc, logger)
	testimonials := app.NewTestimonialService(repo, publisher, clk, logger)

	var authService *app.AuthService
	if cfg.AuthProxyEnabled() {
		provider, err := supabaseauth.New(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			return err
		}
		authService = app.NewAuthService(provider, limiter, logger)
	} else {
		logger.Info("SUPABASE_URL or SUPABASE_ANON_KEY not set; auth proxy routes disabled")
	}

	handler := api.NewHandler(subscriptions, testimonials, authService, csrf, limiter.Window(), logger)
	authenticator := api.NewAuthenticator(cfg.SupabaseJWTSecret, cfg.JWKSURL, logger)
	authenticator.TrustUserMetadataRole = cfg.TrustUserMetadataRole
	if cfg.TrustUserMetadataRole {
		logger.Warn("roles are read from user_metadata; users can edit that claim themselves")
	}
	router := api.NewRouter(handler, authenticator, cfg.AllowedOrigins())

	scheduler := jobs.NewScheduler(jobs.NewJobs(subscriptions, publisher, clk, loc, logger), logger, loc, cfg.MetricsDigestSchedule)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() {
		<-scheduler.Stop().Done()
		logger.Info("scheduler stopped")
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.ServerPort, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, gracefully shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
