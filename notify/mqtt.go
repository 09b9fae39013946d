// Package notify publishes workflow transition events to an MQTT broker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/config"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/flow"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
)

// Publisher is the part of mqtt.Client the hook needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// Hook publishes every lifecycle event to <topic>/<machine>/<event>.
type Hook struct {
	publisher Publisher
	topic     string
	qos       byte
	timeout   time.Duration
	phases    map[flow.TransitionPhase]bool
	logger    logging.Logger
}

type Option func(*Hook)

func WithQoS(qos byte) Option {
	return func(h *Hook) {
		h.qos = qos
	}
}

// WithTimeout bounds how long Notify waits for the broker to acknowledge.
func WithTimeout(d time.Duration) Option {
	return func(h *Hook) {
		h.timeout = d
	}
}

// WithPhases limits publishing to the given phases. All phases by default.
func WithPhases(phases ...flow.TransitionPhase) Option {
	return func(h *Hook) {
		h.phases = make(map[flow.TransitionPhase]bool, len(phases))
		for _, p := range phases {
			h.phases[p] = true
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(h *Hook) {
		h.logger = logging.Normalize(l)
	}
}

func NewHook(publisher Publisher, topic string, opts ...Option) *Hook {
	h := &Hook{
		publisher: publisher,
		topic:     strings.Trim(strings.TrimSpace(topic), "/"),
		qos:       1,
		timeout:   5 * time.Second,
		logger:    logging.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Topic returns where evt is published.
func (h *Hook) Topic(evt flow.TransitionLifecycleEvent) string {
	parts := []string{h.topic, segment(evt.MachineID), segment(evt.Event)}
	if h.topic == "" {
		parts = parts[1:]
	}
	return strings.Join(parts, "/")
}

func (h *Hook) Notify(ctx context.Context, evt flow.TransitionLifecycleEvent) error {
	if h == nil || h.publisher == nil {
		return nil
	}
	if len(h.phases) > 0 && !h.phases[evt.Phase] {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode lifecycle event: %w", err)
	}
	topic := h.Topic(evt)
	token := h.publisher.Publish(topic, h.qos, false, payload)

	wait := h.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < wait {
			wait = left
		}
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("publish to %s timed out after %s", topic, wait)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	h.logger.Debug("published %s %s to %s", evt.Phase, evt.Event, topic)
	return nil
}

// segment keeps a topic level free of MQTT wildcards and separators.
func segment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}

// Connect opens a broker connection using cfg.
func Connect(cfg config.MQTT, logger logging.Logger) (mqtt.Client, error) {
	logger = logging.Normalize(logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("connected to MQTT broker %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}
