package redis

import (
	"testing"
	"time"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"result", ResultKey("check_1_0042"), "usercheck:result:check_1_0042"},
		{"record id", RecordID("check_1_0042", "John_Doe"), "check_1_0042:john_doe"},
		{"latest lowercased", LatestKey("John_Doe"), "usercheck:latest:john_doe"},
		{"usage", UsageKey("github"), "usercheck:usage:github"},
		{"all results", AllResultsKey(), "usercheck:results:all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestExtractResultID(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"usercheck:result:check_1_0042", "check_1_0042", false},
		{"usercheck:result:", "", true},
		{"usercheck:latest:john", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ExtractResultID(tt.key)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ExtractResultID(%q) = %q, %v", tt.key, got, err)
		}
	}
}

func TestScore(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	if got := score(at); got != 1700000000.123 {
		t.Errorf("score() = %v, want 1700000000.123", got)
	}
	if score(at.Add(time.Millisecond)) <= score(at) {
		t.Errorf("score() should be monotonic")
	}
}

func TestDecode(t *testing.T) {
	r, err := decode([]byte(`{"request":{"check_id":"check_1","username":"john"},"state":"completed",
		"platform_results":{"github":{"platform":"github","exists":true,"confidence":0.99}}}`))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if r.Request.ID != "check_1" || !r.PlatformResults["github"].Exists.Bool() {
		t.Errorf("decode() = %+v", r)
	}

	if _, err := decode([]byte("{broken")); err == nil {
		t.Errorf("decode() should fail on invalid JSON")
	}
}

func TestNewStoreDefaultTTL(t *testing.T) {
	if s := NewStore(nil, 0); s.ttl != DefaultResultTTL {
		t.Errorf("ttl = %v, want %v", s.ttl, DefaultResultTTL)
	}
	if s := NewStore(nil, time.Hour); s.ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", s.ttl)
	}
	if NewStore(nil, 0).Name() != "redis" {
		t.Errorf("Name() should be redis")
	}
}
