package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jobmate/internship-service/internal/config"
	"jobmate/internship-service/internal/discord"
	"jobmate/internship-service/internal/notifier"
	"jobmate/internship-service/internal/scheduler"
	"jobmate/internship-service/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the Discord bot, the scrape scheduler and the health endpoint.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.LogLevel)
		if err := cfg.RequireDiscordToken(); err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := slog.With("component", "serve")

	// ── Subscription store ─────────────────────────────────────────────────
	subs, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := subs.Close(); err != nil {
			log.Warn("store close failed", "err", err)
		}
	}()

	// ── Discord, notifier, scheduler ───────────────────────────────────────
	bot, err := discord.New(cfg.DiscordToken, cfg.CommandPrefix, subs)
	if err != nil {
		return err
	}
	notify := notifier.New(bot, cfg.DispatchRate, cfg.DispatchBurst)
	sched := scheduler.New(newWorker(cfg, cfg.ListingsURL), subs, notify, cfg.ScrapeInterval)

	if err := bot.Open(ctx, sched); err != nil {
		return err
	}
	defer func() {
		if err := bot.Close(); err != nil {
			log.Warn("discord close failed", "err", err)
		}
	}()
	log.Info("discord connected")

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	// ── HTTP server ────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler(subs, sched))

	srv := &http.Server{
		Addr:         ":" + cfg.HealthPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("listening", "version", version, "port", cfg.HealthPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-srvErr:
		log.Error("http server failed", "err", runErr)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", "err", err)
	}
	// Deferred: stop the scheduler, close Discord, close the store.
	return runErr
}
