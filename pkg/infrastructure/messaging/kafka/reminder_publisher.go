// Package kafka forwards reorder reminders from the in-process event bus to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/infrastructure/events"
)

// SchemaVersion identifies the reminder payload layout
const SchemaVersion = "restock.reminder.v1"

// Config encapsulates the runtime options required to publish reminders.
type Config struct {
	Enabled      bool
	Topic        string
	Brokers      []string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

type writeCloser interface {
	Close() error
}

// Reminder is the message value published for every transition into a reorder status
type Reminder struct {
	SchemaVersion        string    `json:"schema_version"`
	ConsumerID           string    `json:"consumer_id"`
	ItemID               string    `json:"item_id"`
	From                 string    `json:"from"`
	To                   string    `json:"to"`
	FractionRemaining    float64   `json:"fraction_remaining"`
	EstimatedDepletionAt time.Time `json:"estimated_depletion_at,omitempty"`
	DaysRemaining        float64   `json:"days_remaining"`
	Confidence           float64   `json:"confidence"`
	OccurredAt           time.Time `json:"occurred_at"`
}

// ReminderPublisher writes status.transitioned events to Kafka
type ReminderPublisher struct {
	cfg     Config
	log     *slog.Logger
	writer  messageWriter
	closer  writeCloser
	enabled bool
}

var (
	errPublisherNilLogger = errors.New("publisher requires a logger")
	errPublisherNilWriter = errors.New("publisher requires a writer")
)

var _ events.EventHandler = (*ReminderPublisher)(nil)

// NewReminderPublisher constructs a publisher backed by a kafka-go writer.
// A disabled config yields a publisher that drops reminders.
func NewReminderPublisher(cfg Config, log *slog.Logger) (*ReminderPublisher, error) {
	if log == nil {
		return nil, errPublisherNilLogger
	}
	if !cfg.Enabled {
		log.Info("reminder_publisher_disabled")
		return &ReminderPublisher{cfg: cfg, log: log, enabled: false}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("reminder topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafkago.RequireOne,
		Balancer:               &kafkago.Hash{},
		AllowAutoTopicCreation: false,
	}
	return newPublisherWithWriter(cfg, log, writer, writer)
}

// newPublisherWithWriter wires the provided writer into the publisher. It is used in tests.
func newPublisherWithWriter(cfg Config, log *slog.Logger, writer messageWriter, closer writeCloser) (*ReminderPublisher, error) {
	if log == nil {
		return nil, errPublisherNilLogger
	}
	if writer == nil {
		return nil, errPublisherNilWriter
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &ReminderPublisher{
		cfg:     cfg,
		log:     log.With(slog.String("component", "reminder_publisher")),
		writer:  writer,
		closer:  closer,
		enabled: cfg.Enabled,
	}, nil
}

// Subscribe registers the publisher for status transitions on store
func (p *ReminderPublisher) Subscribe(store events.Bus) error {
	return store.Subscribe([]string{events.StatusTransitionedEvent}, p)
}

func (p *ReminderPublisher) CanHandle(eventType string) bool {
	return eventType == events.StatusTransitionedEvent
}

// Handle publishes the transition carried by event
func (p *ReminderPublisher) Handle(event events.Event) error {
	transition, ok := events.TransitionFrom(event)
	if !ok {
		return fmt.Errorf("unexpected payload for %s event", event.Type())
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
	defer cancel()
	return p.Publish(ctx, transition)
}

// Publish writes one reminder keyed by pair, so reminders for a pair stay ordered
func (p *ReminderPublisher) Publish(ctx context.Context, transition entities.StatusTransition) error {
	if !p.enabled {
		p.log.Debug("reminder_publish_skipped", slog.String("reason", "disabled"))
		return nil
	}

	value, err := json.Marshal(NewReminder(transition))
	if err != nil {
		p.log.Error("reminder_encode_err", slog.Any("err", err), slog.String("pair", transition.Key.String()))
		return err
	}

	msg := kafkago.Message{
		Key:   []byte(transition.Key.String()),
		Value: value,
		Time:  transition.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("reminder_publish_err", slog.Any("err", err), slog.String("pair", transition.Key.String()))
		return fmt.Errorf("failed to publish reminder for %s: %w", transition.Key, err)
	}

	p.log.Info("reminder_publish_success",
		slog.String("pair", transition.Key.String()),
		slog.String("to", transition.To.String()),
	)
	return nil
}

// Close releases the underlying writer
func (p *ReminderPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// NewReminder flattens a transition into the published payload
func NewReminder(transition entities.StatusTransition) Reminder {
	estimate := transition.Estimate
	reminder := Reminder{
		SchemaVersion:     SchemaVersion,
		ConsumerID:        string(transition.Key.Consumer),
		ItemID:            string(transition.Key.Item),
		From:              transition.From.String(),
		To:                transition.To.String(),
		FractionRemaining: estimate.FractionRemaining,
		DaysRemaining:     estimate.DaysRemaining,
		Confidence:        estimate.Confidence,
		OccurredAt:        transition.OccurredAt,
	}
	if estimate.HasDepletion {
		reminder.EstimatedDepletionAt = estimate.EstimatedDepletionAt
	}
	return reminder
}
