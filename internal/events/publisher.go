// Package events publishes completed checks to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

// EventCheckCompleted is the event type header of every published message.
const EventCheckCompleted = "check.completed"

// ResultEvent is the message payload.
type ResultEvent struct {
	Event       string              `json:"event"`
	CheckID     string              `json:"check_id"`
	Username    string              `json:"username"`
	CompletedAt time.Time           `json:"completed_at"`
	Stats       domain.OverallStats `json:"overall_stats"`
	Taken       []string            `json:"taken"`
	Available   []string            `json:"available"`
	Unknown     []string            `json:"unknown"`
	Result      *domain.CheckResult `json:"result"`
}

// NewResultEvent summarizes result per verdict. Unsuccessful probes are
// listed as unknown.
func NewResultEvent(result *domain.CheckResult) ResultEvent {
	ev := ResultEvent{
		Event:       EventCheckCompleted,
		CheckID:     result.Request.ID,
		Username:    result.Request.Username,
		CompletedAt: result.CompletedAt,
		Stats:       result.Stats,
		Taken:       []string{},
		Available:   []string{},
		Unknown:     []string{},
		Result:      result,
	}
	for platform, r := range result.PlatformResults {
		switch {
		case !r.Successful():
			ev.Unknown = append(ev.Unknown, platform)
		case r.Exists.Bool():
			ev.Taken = append(ev.Taken, platform)
		default:
			ev.Available = append(ev.Available, platform)
		}
	}
	sort.Strings(ev.Taken)
	sort.Strings(ev.Available)
	sort.Strings(ev.Unknown)
	return ev
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer  messageWriter
	brokers []string
	topic   string
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		brokers: brokers,
		topic:   topic,
	}
}

func (p *Publisher) Name() string { return "kafka" }

// Save publishes result keyed by lowercased username, so every check of
// one username lands on the same partition.
func (p *Publisher) Save(ctx context.Context, result *domain.CheckResult) error {
	if result == nil {
		return nil
	}
	payload, err := json.Marshal(NewResultEvent(result))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strings.ToLower(result.Request.Username)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventCheckCompleted)},
			{Key: "check-id", Value: []byte(result.Request.ID)},
		},
		Time: result.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", result.Request.ID, p.topic, err)
	}
	return nil
}

// HealthCheck dials the first reachable broker.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	var lastErr error
	for _, b := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	if lastErr == nil {
		return fmt.Errorf("no kafka brokers configured")
	}
	return fmt.Errorf("kafka unreachable: %w", lastErr)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
