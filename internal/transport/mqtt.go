// v0
// internal/transport/mqtt.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"nrgchamp/fuzzydash/internal/breaker"
	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/ingest"
)

var (
	// ErrNotConnected is returned by Publish while the broker session is down.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrPublishTimeout is returned when the broker does not acknowledge a
	// publish in time.
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
)

// Config configures the broker session.
type Config struct {
	Brokers        []string
	ClientPrefix   string
	Username       string
	Password       string
	Topics         []string
	CommandTopic   string
	QoS            byte
	KeepAlive      time.Duration
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Sink receives inbound messages and connection changes. The engine
// implements it.
type Sink interface {
	Deliver(ctx context.Context, msg ingest.Message) error
	SetConnection(ctx context.Context, conn dashboard.Connection) error
}

// StatusRecorder observes the session state.
type StatusRecorder interface {
	TransportConnected(bool)
}

// Client owns the paho session. Inbound deliveries are forwarded to the
// sink in arrival order; the broker goroutine blocks while the sink is
// busy.
type Client struct {
	cfg     Config
	log     *slog.Logger
	sink    Sink
	rec     StatusRecorder
	breaker *breaker.Breaker

	newClient func(*mqtt.ClientOptions) mqtt.Client
	client    mqtt.Client
	base      context.Context
}

// New builds a client. rec may be nil.
func New(cfg Config, logger *slog.Logger, sink Sink, rec StatusRecorder, br *breaker.Breaker) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		log:       logger.With(slog.String("component", "mqtt")),
		sink:      sink,
		rec:       rec,
		breaker:   br,
		newClient: mqtt.NewClient,
		base:      context.Background(),
	}
}

// Options builds the paho options for this configuration.
func (c *Client) Options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	for _, b := range c.cfg.Brokers {
		opts.AddBroker(b)
	}
	prefix := c.cfg.ClientPrefix
	if prefix == "" {
		prefix = "fuzzydash"
	}
	opts.SetClientID(prefix + "-" + uuid.NewString()[:8])
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetKeepAlive(c.cfg.KeepAlive)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(c.cfg.RetryInterval)
	opts.SetMaxReconnectInterval(c.cfg.RetryInterval)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)
	return opts
}

// Start begins connecting in the background. It does not wait for the
// broker; the session status is reported through the sink.
func (c *Client) Start(ctx context.Context) {
	c.base = ctx
	c.status(dashboard.Connecting, strings.Join(c.cfg.Brokers, ","))
	c.client = c.newClient(c.Options())
	token := c.client.Connect()
	c.log.Info("mqtt_connecting", slog.Any("brokers", c.cfg.Brokers))
	go func() {
		select {
		case <-token.Done():
		case <-ctx.Done():
			return
		}
		if err := token.Error(); err != nil {
			c.log.Error("mqtt_connect_failed", slog.Any("err", err))
			c.status(dashboard.Failed, err.Error())
		}
	}()
}

// Stop closes the session.
func (c *Client) Stop() {
	if c.client == nil {
		return
	}
	c.client.Disconnect(250)
	if c.rec != nil {
		c.rec.TransportConnected(false)
	}
	c.log.Info("mqtt_disconnected")
}

// Connected reports whether the session is usable.
func (c *Client) Connected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}

// Publish sends payload to the command topic.
func (c *Client) Publish(ctx context.Context, payload []byte) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	op := func(ctx context.Context) error {
		token := c.client.Publish(c.cfg.CommandTopic, c.cfg.QoS, false, payload)
		if !token.WaitTimeout(c.cfg.PublishTimeout) {
			return ErrPublishTimeout
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", c.cfg.CommandTopic, err)
		}
		return nil
	}
	if c.breaker == nil {
		return op(ctx)
	}
	return c.breaker.Execute(ctx, op)
}

func (c *Client) onConnect(cl mqtt.Client) {
	filters := make(map[string]byte, len(c.cfg.Topics))
	for _, t := range c.cfg.Topics {
		filters[t] = c.cfg.QoS
	}
	token := cl.SubscribeMultiple(filters, c.handleMessage)
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		c.log.Error("mqtt_subscribe_timeout", slog.Any("topics", c.cfg.Topics))
		c.status(dashboard.Failed, "subscribe timed out")
		return
	}
	if err := token.Error(); err != nil {
		c.log.Error("mqtt_subscribe_failed", slog.Any("err", err))
		c.status(dashboard.Failed, err.Error())
		return
	}
	c.log.Info("mqtt_connected", slog.Any("topics", c.cfg.Topics))
	c.status(dashboard.Connected, "")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("mqtt_connection_lost", slog.Any("err", err))
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	c.status(dashboard.Disconnected, detail)
}

func (c *Client) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	c.log.Info("mqtt_reconnecting")
	c.status(dashboard.Connecting, "reconnecting")
}

func (c *Client) handleMessage(_ mqtt.Client, m mqtt.Message) {
	msg := ingest.Message{
		Topic:      m.Topic(),
		Payload:    append([]byte(nil), m.Payload()...),
		ReceivedAt: time.Now(),
	}
	if err := c.sink.Deliver(c.base, msg); err != nil {
		c.log.Warn("mqtt_deliver_dropped", slog.String("topic", msg.Topic), slog.Any("err", err))
	}
}

func (c *Client) status(state dashboard.ConnectionState, detail string) {
	if c.rec != nil {
		c.rec.TransportConnected(state == dashboard.Connected)
	}
	conn := dashboard.Connection{State: state, Detail: detail, Since: time.Now()}
	if err := c.sink.SetConnection(c.base, conn); err != nil {
		c.log.Debug("mqtt_status_dropped", slog.String("state", string(state)), slog.Any("err", err))
	}
}
