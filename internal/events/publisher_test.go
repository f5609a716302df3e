package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sampleResult() *domain.CheckResult {
	return &domain.CheckResult{
		Request: domain.CheckRequest{ID: "check_1700000000_0042", Username: "John_Doe"},
		State:   domain.StateCompleted,
		PlatformResults: map[string]*domain.PlatformResult{
			"github": {Platform: "github", Exists: domain.ExistsTrue, Confidence: 0.99},
			"reddit": {Platform: "reddit", Exists: domain.ExistsFalse, Confidence: 0.99},
			"tiktok": {Platform: "tiktok", Exists: domain.ExistsFalse, Error: "rate limit exceeded (HTTP 429)"},
		},
		CompletedAt: time.Unix(1700000000, 0),
	}
}

func TestNewResultEvent(t *testing.T) {
	ev := NewResultEvent(sampleResult())

	if ev.Event != EventCheckCompleted || ev.CheckID != "check_1700000000_0042" {
		t.Errorf("event header = %+v", ev)
	}
	if len(ev.Taken) != 1 || ev.Taken[0] != "github" {
		t.Errorf("Taken = %v, want [github]", ev.Taken)
	}
	if len(ev.Available) != 1 || ev.Available[0] != "reddit" {
		t.Errorf("Available = %v, want [reddit]", ev.Available)
	}
	if len(ev.Unknown) != 1 || ev.Unknown[0] != "tiktok" {
		t.Errorf("Unknown = %v, want [tiktok]", ev.Unknown)
	}
}

func TestPublisherSave(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "usercheck-results"}

	if err := p.Save(context.Background(), sampleResult()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(w.msgs))
	}

	msg := w.msgs[0]
	if string(msg.Key) != "john_doe" {
		t.Errorf("Key = %q, want john_doe", msg.Key)
	}
	if len(msg.Headers) != 2 || string(msg.Headers[0].Value) != EventCheckCompleted {
		t.Errorf("Headers = %v", msg.Headers)
	}

	var ev ResultEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if ev.Username != "John_Doe" || ev.Result == nil || len(ev.Result.PlatformResults) != 3 {
		t.Errorf("payload = %+v", ev)
	}

	if err := p.Save(context.Background(), nil); err != nil || len(w.msgs) != 1 {
		t.Errorf("Save(nil) should be a no-op")
	}
}

func TestPublisherSaveError(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{err: errors.New("leader not available")}, topic: "usercheck-results"}

	err := p.Save(context.Background(), sampleResult())
	if err == nil || !strings.Contains(err.Error(), "usercheck-results") {
		t.Errorf("Save() error = %v, want topic in message", err)
	}
}

func TestPublisherHealthCheckNoBrokers(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{}}
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Errorf("HealthCheck() should fail without brokers")
	}
	if err := p.Close(); err != nil || !p.writer.(*fakeWriter).closed {
		t.Errorf("Close() should close the writer")
	}
}
