// v3
// cmd/fuzzydash/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"nrgchamp/fuzzydash/internal/app"
	"nrgchamp/fuzzydash/internal/config"
)

func main() {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("config_load_failed", slog.Any("err", err))
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "check" {
		os.Exit(check(cfg, bootstrap))
	}

	application, err := app.New(cfg)
	if err != nil {
		bootstrap.Error("app_init_failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			bootstrap.Error("app_close_failed", slog.Any("err", cerr))
		}
	}()

	logger := application.Logger()
	logger.Info("service_boot",
		slog.String("listen_address", cfg.ListenAddress),
		slog.String("log_path", cfg.LogFilePath),
		slog.String("properties_path", cfg.PropertiesPath),
		slog.String("mqtt_brokers", strings.Join(cfg.MQTTBrokers, ",")),
		slog.String("subscribe_topics", strings.Join(cfg.Topics(), ",")),
		slog.String("command_topic", cfg.TopicCommand),
		slog.String("curves_path", curvesSource(cfg)),
		slog.Int("history_capacity", cfg.HistoryCapacity),
		slog.String("archive_topic", archiveTopic(cfg)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Error("service_terminated", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("service_stopped")
}

// check validates the resolved configuration and curves without touching
// the broker, then exits.
func check(cfg config.Config, logger *slog.Logger) int {
	variables, rules, err := app.LoadCurves(cfg, logger)
	if err != nil {
		logger.Error("config_check_failed", slog.Any("err", err))
		return 1
	}
	logger.Info("config_check_ok",
		slog.String("curves_path", curvesSource(cfg)),
		slog.Any("variables", variables.Names()),
		slog.Int("rules", len(rules)),
		slog.String("subscribe_topics", strings.Join(cfg.Topics(), ",")),
		slog.String("archive_topic", archiveTopic(cfg)),
	)
	return 0
}

func curvesSource(cfg config.Config) string {
	if cfg.CurvesPath == "" {
		return "builtin"
	}
	return cfg.CurvesPath
}

func archiveTopic(cfg config.Config) string {
	if !cfg.ArchiveEnabled() {
		return "disabled"
	}
	return cfg.ArchiveTopic
}
