package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/kreymann/resetwatch/internal/alert"
)

// JetStreamConfig configures the alert stream.
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration
}

// DefaultJetStreamConfig returns sane defaults for a local NATS server.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "GAME_ALERTS",
		SubjectPrefix: "game.alerts",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		MaxAge:        24 * time.Hour,
	}
}

// JetStreamNotifier publishes fired alerts to a NATS JetStream stream so
// out-of-process consumers (mobile push relay, Discord bot) can deliver them.
// Delivery remains best-effort: the dispatcher does not retry on error.
type JetStreamNotifier struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStreamNotifier connects to NATS and ensures the alert stream exists.
func NewJetStreamNotifier(cfg JetStreamConfig) (*JetStreamNotifier, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	n := &JetStreamNotifier{nc: nc, js: js, config: cfg}
	if err := n.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return n, nil
}

func (n *JetStreamNotifier) ensureStream(ctx context.Context) error {
	_, err := n.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      n.config.StreamName,
		Subjects:  []string{fmt.Sprintf("%s.>", n.config.SubjectPrefix)},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    n.config.MaxAge,
		Storage:   jetstream.FileStorage,
	})
	return err
}

// Notify publishes the notification on a kind-specific subject.
func (n *JetStreamNotifier) Notify(a alert.Notification) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", n.config.SubjectPrefix, a.Kind)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := n.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the NATS connection.
func (n *JetStreamNotifier) Close() {
	n.nc.Close()
}
