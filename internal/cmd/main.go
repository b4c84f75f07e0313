package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kreymann/resetwatch/internal/anchor"
	"github.com/kreymann/resetwatch/internal/clock"
	"github.com/kreymann/resetwatch/internal/engine"
	"github.com/kreymann/resetwatch/internal/gateway"
	"github.com/kreymann/resetwatch/internal/notify"
	"github.com/kreymann/resetwatch/internal/timesync"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	setupLogging()

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	engCfg, err := cfg.engineConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timer config")
	}

	clk := clock.NewCorrected(clockwork.NewRealClock())
	if ms := getEnvAsInt("CLOCK_OFFSET_MS", 0); ms != 0 {
		clk.SetOffset(time.Duration(ms) * time.Millisecond)
	}

	gwCfg := gateway.DefaultConfig()
	gwCfg.EnableSound = cfg.Notifications.Sound
	gwCfg.EnableDesktop = cfg.Notifications.Desktop
	gw := gateway.NewManager(gwCfg)

	notifiers := notify.Multi{gw}
	if url := getEnv("NATS_URL", ""); url != "" {
		jsCfg := notify.DefaultJetStreamConfig()
		jsCfg.URL = url
		js, err := notify.NewJetStreamNotifier(jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect JetStream notifier")
		}
		defer js.Close()
		notifiers = append(notifiers, js)
	}
	if len(notifiers) == 1 {
		notifiers = append(notifiers, notify.Log{})
	}

	var anchors engine.AnchorRepository
	if engCfg.UserID != "" {
		db, err := setupDatabase()
		if err != nil {
			log.Fatal().Err(err).Msg("authenticated mode needs a database")
		}
		defer db.Close()
		anchors = anchor.NewRepository(db)
	}

	eng := engine.New(engCfg, clk, notifiers, anchors, gw)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Restore(ctx); err != nil {
		log.Error().Err(err).Msg("anchor restore failed; starting unanchored")
	}

	go gw.Run(ctx)
	go func() {
		if err := eng.Run(ctx, time.Second); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("engine stopped")
		}
	}()

	server := setupServer(eng, gw, timesync.NewHandler(clk), cfg.DisplayTimezone)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func setupLogging() {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if getEnv("LOG_FORMAT", "console") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
