// v3
// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"nrgchamp/fuzzydash/internal/archive"
	"nrgchamp/fuzzydash/internal/breaker"
	"nrgchamp/fuzzydash/internal/command"
	"nrgchamp/fuzzydash/internal/config"
	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/engine"
	"nrgchamp/fuzzydash/internal/fuzzy"
	httpserver "nrgchamp/fuzzydash/internal/http"
	"nrgchamp/fuzzydash/internal/ingest"
	"nrgchamp/fuzzydash/internal/metrics"
	"nrgchamp/fuzzydash/internal/render"
	"nrgchamp/fuzzydash/internal/transport"
)

// Application wires configuration, logging, the event loop, the broker
// session, the optional archive and the HTTP surface.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	logFile *os.File
	server  *http.Server
	health  *httpserver.HealthState
	engine  *engine.Engine
	hub     *render.Hub
	mqtt    *transport.Client
	archive *archive.Archiver
}

// New prepares a fully wired instance. Nothing connects or listens until
// Run.
func New(cfg config.Config) (*Application, error) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return nil, errors.New("listen address cannot be empty")
	}
	logPath := filepath.Clean(cfg.LogFilePath)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	lf, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	tail := newLineRing(cfg.LogTailLines)
	logger := newLogger(os.Stdout, lf, tail)

	a, err := build(cfg, logger, tail)
	if err != nil {
		_ = lf.Close()
		return nil, err
	}
	a.logFile = lf
	return a, nil
}

// LoadCurves returns the default variables with the configured curves file
// layered on top, checked against the rule base.
func LoadCurves(cfg config.Config, logger *slog.Logger) (fuzzy.Set, []fuzzy.Rule, error) {
	rules := fuzzy.DefaultRules()
	variables := fuzzy.DefaultSet()
	if cfg.CurvesPath != "" {
		loaded, err := fuzzy.LoadSet(cfg.CurvesPath, variables)
		if err != nil {
			return fuzzy.Set{}, nil, fmt.Errorf("load curves: %w", err)
		}
		variables = loaded
		logger.Info("curves_loaded", slog.String("path", cfg.CurvesPath), slog.Any("variables", variables.Names()))
	}
	if err := variables.Validate(rules); err != nil {
		return fuzzy.Set{}, nil, fmt.Errorf("curves: %w", err)
	}
	return variables, rules, nil
}

func build(cfg config.Config, logger *slog.Logger, tail *lineRing) (*Application, error) {
	variables, rules, err := LoadCurves(cfg, logger)
	if err != nil {
		return nil, err
	}

	state, err := dashboard.New(dashboard.Options{
		Capacity:        cfg.HistoryCapacity,
		MaxAlerts:       cfg.MaxAlerts,
		MaxActivations:  cfg.MaxActivations,
		DefaultSetpoint: cfg.DefaultSetpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard state: %w", err)
	}

	m := metrics.New()
	router := ingest.NewRouter(variables, rules, logger.With(slog.String("component", "ingest")), m)
	opts := engine.Options{
		Router:    router,
		Projector: render.Projector{Variables: variables},
		Observer:  m,
		QueueSize: cfg.HistoryCapacity,
	}

	var arch *archive.Archiver
	if cfg.ArchiveEnabled() {
		brCfg := breaker.Config{MaxFailures: cfg.BreakerMaxFailures, ResetTimeout: cfg.BreakerResetTimeout}
		if err := brCfg.Validate(); err != nil {
			return nil, fmt.Errorf("archive breaker: %w", err)
		}
		br := breaker.New("kafka-archive", brCfg, logger, nil)
		arch = archive.New(archive.NewWriter(cfg.KafkaBrokers, cfg.ArchiveTopic), cfg.ArchiveQueueSize, cfg.ArchiveTimeout, logger, br, m)
		opts.Archive = arch
		logger.Info("archive_configured",
			slog.String("topic", cfg.ArchiveTopic),
			slog.String("brokers", strings.Join(cfg.KafkaBrokers, ",")),
		)
	}

	eng := engine.New(state, opts, logger)
	hub := render.NewHub(logger.With(slog.String("component", "ws")), render.HubOptions{
		SendBuffer: cfg.WebsocketBuffer,
		Initial:    eng.Latest,
		OnClients:  m.WebsocketClients,
	})
	eng.AddSink(hub)

	mqttBreakerCfg := breaker.Config{MaxFailures: cfg.BreakerMaxFailures, ResetTimeout: cfg.BreakerResetTimeout}
	if err := mqttBreakerCfg.Validate(); err != nil {
		return nil, fmt.Errorf("command breaker: %w", err)
	}
	client := transport.New(transport.Config{
		Brokers:        cfg.MQTTBrokers,
		ClientPrefix:   cfg.MQTTClientPrefix,
		Username:       cfg.MQTTUsername,
		Password:       cfg.MQTTPassword,
		Topics:         cfg.Topics(),
		CommandTopic:   cfg.TopicCommand,
		QoS:            byte(cfg.MQTTQoS),
		KeepAlive:      cfg.MQTTKeepAlive,
		RetryInterval:  cfg.MQTTRetryInterval,
		ConnectTimeout: cfg.MQTTConnectTimeout,
		PublishTimeout: cfg.MQTTPublishTimeout,
	}, logger, eng, m, breaker.New("mqtt-commands", mqttBreakerCfg, logger, nil))

	health := httpserver.NewHealthState()
	deps := httpserver.Deps{
		Logger:    logger,
		Health:    health,
		Engine:    eng,
		Publisher: client,
		Variables: variables,
		Limits: command.LimitsFromSet(variables,
			command.Range{Min: cfg.SetpointMin, Max: cfg.SetpointMax},
			command.Range{Min: cfg.TempExtMin, Max: cfg.TempExtMax},
			command.Range{Min: cfg.CargaMin, Max: cfg.CargaMax},
		),
		Limiter:     rate.NewLimiter(rate.Limit(cfg.CommandRatePerSec), cfg.CommandBurst),
		Band:        dashboard.Band{Low: cfg.BandLow, High: cfg.BandHigh},
		Websocket:   hub,
		Metrics:     m.Handler(),
		Observer:    m,
		LogTail:     tail.Lines,
		ChartWidth:  cfg.ChartWidth,
		ChartHeight: cfg.ChartHeight,
		CORSOrigins: cfg.CORSOrigins,
	}
	if arch != nil {
		deps.Commands = arch
	}
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           httpserver.NewHandler(deps),
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPWriteTimeout,
	}

	return &Application{
		cfg:     cfg,
		logger:  logger,
		server:  server,
		health:  health,
		engine:  eng,
		hub:     hub,
		mqtt:    client,
		archive: arch,
	}, nil
}

// Logger exposes the configured slog logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Run blocks until ctx is cancelled or a component fails, then shuts
// everything down in order: HTTP first, then the broker session, then the
// loop and the archive.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engineCh := make(chan error, 1)
	go func() {
		engineCh <- a.engine.Run(ctx)
	}()

	var archiveCh chan error
	if a.archive != nil {
		archiveCh = make(chan error, 1)
		go func() {
			archiveCh <- a.archive.Run(ctx)
		}()
	}

	a.mqtt.Start(ctx)

	httpCh := make(chan error, 1)
	go func() {
		a.health.SetReady(true)
		a.logger.Info("http_server_listen", slog.String("address", a.cfg.ListenAddress))
		httpCh <- a.server.ListenAndServe()
	}()

	var runErr error
	for {
		select {
		case err := <-httpCh:
			httpCh = nil
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http_server_error", slog.Any("err", err))
				runErr = err
			} else {
				a.logger.Info("server_closed")
			}
			cancel()
		case err := <-engineCh:
			engineCh = nil
			if err != nil {
				a.logger.Error("engine_error", slog.Any("err", err))
				runErr = err
			}
			cancel()
		case err := <-archiveCh:
			archiveCh = nil
			if err != nil {
				a.logger.Error("archive_error", slog.Any("err", err))
			}
		case <-ctx.Done():
			a.logger.Info("shutdown_signal")
			a.health.SetReady(false)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("server_shutdown_failed", slog.Any("err", err))
				if runErr == nil {
					runErr = fmt.Errorf("shutdown: %w", err)
				}
			}
			shutdownCancel()
			a.hub.Close()
			a.mqtt.Stop()

			if httpCh != nil {
				if err := <-httpCh; err != nil && !errors.Is(err, http.ErrServerClosed) && runErr == nil {
					runErr = err
				}
			}
			if engineCh != nil {
				if err := <-engineCh; err != nil && runErr == nil {
					runErr = err
				}
			}
			if archiveCh != nil {
				if err := <-archiveCh; err != nil {
					a.logger.Error("archive_shutdown_error", slog.Any("err", err))
				}
			}
			if runErr != nil {
				return runErr
			}
			a.logger.Info("shutdown_complete")
			return nil
		}
	}
}

// Close releases the log file.
func (a *Application) Close() error {
	if a.logFile == nil {
		return nil
	}
	if err := a.logFile.Close(); err != nil {
		return err
	}
	a.logFile = nil
	return nil
}
