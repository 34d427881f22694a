package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"RosterBot/config"
	"RosterBot/handler"
	"RosterBot/repo"
	"RosterBot/service"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	envFile := pflag.String("env-file", ".env", "file with environment variables, ignored when missing")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Str("file", *envFile).Msg("error loading env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("error initializing store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("error closing store")
		}
	}()
	log.Info().Str("backend", cfg.StoreBackend).Msg("store ready")

	svc := service.New(repo.NewStateRepository(store),
		service.WithAdmins(cfg.AdminIDs),
		service.WithLogger(log.With().Str("component", "service").Logger()),
	)
	h := handler.NewEventBotHandler(svc, log.With().Str("component", "handler").Logger())

	opts := []bot.Option{
		bot.WithDefaultHandler(h.Handler),
	}
	if cfg.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating bot")
	}

	if cfg.WebhookURL == "" {
		runPolling(ctx, b)
	} else if err := runWebhook(ctx, b, cfg); err != nil {
		log.Error().Err(err).Msg("webhook server failed")
	}
	log.Info().Msg("Bot stopped")
}

func setupLogging(cfg config.Config) {
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func openStore(ctx context.Context, cfg config.Config) (repo.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return repo.NewRedisStore(ctx, cfg.RedisURL)
	case config.BackendFirebase:
		return repo.NewFirebaseStore(ctx, cfg.FirebaseKeyPath, cfg.FirebaseDatabaseURL)
	case config.BackendBolt:
		return repo.OpenBoltStore(cfg.BoltPath)
	case config.BackendMemory:
		log.Warn().Msg("using in-memory store, state is lost on restart")
		return repo.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func runPolling(ctx context.Context, b *bot.Bot) {
	if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
		log.Warn().Err(err).Msg("error removing webhook before polling")
	}
	log.Info().Msg("Bot started in polling mode")
	b.Start(ctx)
}

func runWebhook(ctx context.Context, b *bot.Bot, cfg config.Config) error {
	endpoint := cfg.WebhookEndpoint()

	info, err := b.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.URL != endpoint {
		if _, err := b.SetWebhook(ctx, &bot.SetWebhookParams{URL: endpoint, SecretToken: cfg.WebhookSecret}); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		log.Info().Msg("webhook registered")
	}

	go b.StartWebhook(ctx)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           b.WebhookHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down webhook server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Bot started in webhook mode")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
