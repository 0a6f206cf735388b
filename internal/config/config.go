// v1
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures every runtime setting of the dashboard. Values come from
// defaults, then an optional properties file, then FUZZYDASH_* environment
// variables.
type Config struct {
	// ListenAddress is the TCP address of the HTTP server.
	ListenAddress string
	// LogFilePath is where the tee logger writes its file copy.
	LogFilePath string
	// LogTailLines is the number of recent log lines kept for the report.
	LogTailLines     int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration
	// PropertiesPath records the path used to load property values.
	PropertiesPath string
	CORSOrigins    []string

	MQTTBrokers        []string
	MQTTClientPrefix   string
	MQTTUsername       string
	MQTTPassword       string
	TopicStream        string
	TopicResult        string
	TopicAlert         string
	TopicCommand       string
	MQTTQoS            int
	MQTTKeepAlive      time.Duration
	MQTTRetryInterval  time.Duration
	MQTTConnectTimeout time.Duration
	MQTTPublishTimeout time.Duration

	HistoryCapacity int
	MaxAlerts       int
	MaxActivations  int
	DefaultSetpoint float64
	SetpointMin     float64
	SetpointMax     float64
	TempExtMin      float64
	TempExtMax      float64
	CargaMin        float64
	CargaMax        float64
	BandLow         float64
	BandHigh        float64
	// CurvesPath optionally points at a YAML file overriding the default
	// membership curves.
	CurvesPath string

	CommandRatePerSec float64
	CommandBurst      int

	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	// KafkaBrokers enables the telemetry archive when non-empty.
	KafkaBrokers     []string
	ArchiveTopic     string
	ArchiveQueueSize int
	ArchiveTimeout   time.Duration
	WebsocketBuffer  int
	ChartWidth       int
	ChartHeight      int
}

const (
	envPrefix        = "FUZZYDASH_"
	defaultPropsPath = "fuzzydash.properties"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddress:       ":8090",
		LogFilePath:         filepath.Clean("logs/fuzzydash.log"),
		LogTailLines:        40,
		HTTPReadTimeout:     5 * time.Second,
		HTTPWriteTimeout:    30 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		CORSOrigins:         []string{"*"},
		MQTTBrokers:         []string{"tcp://localhost:1883"},
		MQTTClientPrefix:    "fuzzydash",
		TopicStream:         "datacenter/fuzzy/stream",
		TopicResult:         "datacenter/fuzzy/result",
		TopicAlert:          "datacenter/fuzzy/alert",
		TopicCommand:        "datacenter/fuzzy/cmd",
		MQTTQoS:             0,
		MQTTKeepAlive:       30 * time.Second,
		MQTTRetryInterval:   5 * time.Second,
		MQTTConnectTimeout:  10 * time.Second,
		MQTTPublishTimeout:  5 * time.Second,
		HistoryCapacity:     200,
		MaxAlerts:           50,
		MaxActivations:      20,
		DefaultSetpoint:     22,
		SetpointMin:         16,
		SetpointMax:         30,
		TempExtMin:          -20,
		TempExtMax:          50,
		CargaMin:            0,
		CargaMax:            100,
		BandLow:             18,
		BandHigh:            26,
		CommandRatePerSec:   1,
		CommandBurst:        3,
		BreakerMaxFailures:  3,
		BreakerResetTimeout: 15 * time.Second,
		ArchiveTopic:        "dashboard.telemetry",
		ArchiveQueueSize:    1024,
		ArchiveTimeout:      5 * time.Second,
		WebsocketBuffer:     16,
		ChartWidth:          960,
		ChartHeight:         420,
	}
}

// Load layers defaults, the properties file and the environment. The
// properties file location can be overridden with
// FUZZYDASH_PROPERTIES_PATH; a missing file is not an error.
func Load() (Config, error) {
	cfg := Default()

	propsPath := strings.TrimSpace(os.Getenv(envPrefix + "PROPERTIES_PATH"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	if err := applyProperties(&cfg, propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.SetpointMin >= c.SetpointMax {
		return errors.New("setpoint_min must be below setpoint_max")
	}
	if c.DefaultSetpoint < c.SetpointMin || c.DefaultSetpoint > c.SetpointMax {
		return errors.New("default_setpoint outside the setpoint range")
	}
	if c.TempExtMin >= c.TempExtMax {
		return errors.New("temp_ext_min must be below temp_ext_max")
	}
	if c.CargaMin >= c.CargaMax {
		return errors.New("carga_min must be below carga_max")
	}
	if c.BandLow >= c.BandHigh {
		return errors.New("band_low must be below band_high")
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return errors.New("mqtt_qos must be 0, 1 or 2")
	}
	if len(c.MQTTBrokers) == 0 {
		return errors.New("mqtt_brokers cannot be empty")
	}
	return nil
}

// Topics returns the inbound subscriptions.
func (c Config) Topics() []string {
	return []string{c.TopicStream, c.TopicResult, c.TopicAlert}
}

// ArchiveEnabled reports whether Kafka brokers are configured.
func (c Config) ArchiveEnabled() bool { return len(c.KafkaBrokers) > 0 }

type setter func(cfg *Config, value string) error

// keys maps every property name to its setter. The environment variable
// for a key is FUZZYDASH_ followed by the upper-cased key.
var keys = map[string]setter{
	"listen_address":        nonEmpty(func(c *Config, v string) { c.ListenAddress = v }),
	"log_path":              nonEmpty(func(c *Config, v string) { c.LogFilePath = filepath.Clean(v) }),
	"log_tail_lines":        positiveInt(func(c *Config, n int) { c.LogTailLines = n }),
	"http_read_timeout_ms":  millis(func(c *Config, d time.Duration) { c.HTTPReadTimeout = d }),
	"http_write_timeout_ms": millis(func(c *Config, d time.Duration) { c.HTTPWriteTimeout = d }),
	"shutdown_timeout_ms":   millis(func(c *Config, d time.Duration) { c.ShutdownTimeout = d }),
	"cors_origins":          list(func(c *Config, l []string) { c.CORSOrigins = l }),

	"mqtt_brokers":       list(func(c *Config, l []string) { c.MQTTBrokers = l }),
	"mqtt_client_prefix": nonEmpty(func(c *Config, v string) { c.MQTTClientPrefix = v }),
	"mqtt_username":      func(c *Config, v string) error { c.MQTTUsername = v; return nil },
	"mqtt_password":      func(c *Config, v string) error { c.MQTTPassword = v; return nil },
	"topic_stream":       nonEmpty(func(c *Config, v string) { c.TopicStream = v }),
	"topic_result":       nonEmpty(func(c *Config, v string) { c.TopicResult = v }),
	"topic_alert":        nonEmpty(func(c *Config, v string) { c.TopicAlert = v }),
	"topic_command":      nonEmpty(func(c *Config, v string) { c.TopicCommand = v }),
	"mqtt_qos": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		c.MQTTQoS = n
		return nil
	},
	"mqtt_keepalive_ms":       millis(func(c *Config, d time.Duration) { c.MQTTKeepAlive = d }),
	"mqtt_retry_interval_ms":  millis(func(c *Config, d time.Duration) { c.MQTTRetryInterval = d }),
	"mqtt_connect_timeout_ms": millis(func(c *Config, d time.Duration) { c.MQTTConnectTimeout = d }),
	"mqtt_publish_timeout_ms": millis(func(c *Config, d time.Duration) { c.MQTTPublishTimeout = d }),

	"history_capacity": positiveInt(func(c *Config, n int) { c.HistoryCapacity = n }),
	"max_alerts":       positiveInt(func(c *Config, n int) { c.MaxAlerts = n }),
	"max_activations":  positiveInt(func(c *Config, n int) { c.MaxActivations = n }),
	"default_setpoint": float(func(c *Config, f float64) { c.DefaultSetpoint = f }),
	"setpoint_min":     float(func(c *Config, f float64) { c.SetpointMin = f }),
	"setpoint_max":     float(func(c *Config, f float64) { c.SetpointMax = f }),
	"temp_ext_min":     float(func(c *Config, f float64) { c.TempExtMin = f }),
	"temp_ext_max":     float(func(c *Config, f float64) { c.TempExtMax = f }),
	"carga_min":        float(func(c *Config, f float64) { c.CargaMin = f }),
	"carga_max":        float(func(c *Config, f float64) { c.CargaMax = f }),
	"band_low":         float(func(c *Config, f float64) { c.BandLow = f }),
	"band_high":        float(func(c *Config, f float64) { c.BandHigh = f }),
	"curves_path":      func(c *Config, v string) error { c.CurvesPath = v; return nil },

	"command_rate_per_sec": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || math.IsInf(f, 0) {
			return errors.New("value must be a positive number")
		}
		c.CommandRatePerSec = f
		return nil
	},
	"command_burst": positiveInt(func(c *Config, n int) { c.CommandBurst = n }),

	"breaker_max_failures":     positiveInt(func(c *Config, n int) { c.BreakerMaxFailures = n }),
	"breaker_reset_timeout_ms": millis(func(c *Config, d time.Duration) { c.BreakerResetTimeout = d }),
	"kafka_brokers":            func(c *Config, v string) error { c.KafkaBrokers = splitAndTrim(v); return nil },
	"archive_topic":            nonEmpty(func(c *Config, v string) { c.ArchiveTopic = v }),
	"archive_queue_size":       positiveInt(func(c *Config, n int) { c.ArchiveQueueSize = n }),
	"archive_write_timeout_ms": millis(func(c *Config, d time.Duration) { c.ArchiveTimeout = d }),
	"websocket_send_buffer":    positiveInt(func(c *Config, n int) { c.WebsocketBuffer = n }),
	"chart_width_px":           positiveInt(func(c *Config, n int) { c.ChartWidth = n }),
	"chart_height_px":          positiveInt(func(c *Config, n int) { c.ChartHeight = n }),
}

func applyProperties(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("invalid properties entry on line %d", line)
		}
		key = strings.TrimSpace(key)
		set, known := keys[key]
		if !known {
			// Unknown keys are ignored to keep the loader forward-compatible.
			continue
		}
		if err := set(cfg, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read properties: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	for key, set := range keys {
		name := envPrefix + strings.ToUpper(key)
		v, ok := lookupEnvTrimmed(name)
		if !ok {
			continue
		}
		if err := set(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func nonEmpty(fn func(*Config, string)) setter {
	return func(c *Config, v string) error {
		if v == "" {
			return errors.New("value cannot be empty")
		}
		fn(c, v)
		return nil
	}
}

func list(fn func(*Config, []string)) setter {
	return func(c *Config, v string) error {
		l := splitAndTrim(v)
		if len(l) == 0 {
			return errors.New("list cannot be empty")
		}
		fn(c, l)
		return nil
	}
}

func positiveInt(fn func(*Config, int)) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		if n <= 0 {
			return errors.New("value must be positive")
		}
		fn(c, n)
		return nil
	}
}

func float(fn func(*Config, float64)) setter {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.New("value must be finite")
		}
		fn(c, f)
		return nil
	}
}

func millis(fn func(*Config, time.Duration)) setter {
	return func(c *Config, v string) error {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return err
		}
		fn(c, d)
		return nil
	}
}

func lookupEnvTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitAndTrim(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePositiveMillis(v string) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return 0, errors.New("value cannot be empty")
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if ms <= 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return time.Duration(ms) * time.Millisecond, nil
}
