package proxy

import (
	"context"
	"testing"
)

func TestNewStaticProvider(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		wantLen int
		wantErr bool
	}{
		{"empty", nil, 0, false},
		{"valid", []string{"http://10.0.0.1:3128", "socks5://10.0.0.2:1080#de"}, 2, false},
		{"missing scheme", []string{"10.0.0.1:3128"}, 0, true},
		{"garbage", []string{"://"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewStaticProvider(tt.entries)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStaticProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", p.Len(), tt.wantLen)
			}
		})
	}
}

func TestGetOptimalProxyRoundRobin(t *testing.T) {
	p, err := NewStaticProvider([]string{"http://a:1#us", "http://b:2#de", "http://c:3#us"})
	if err != nil {
		t.Fatalf("NewStaticProvider() error = %v", err)
	}
	ctx := context.Background()

	var got []string
	for i := 0; i < 4; i++ {
		px, err := p.GetOptimalProxy(ctx, GeoConstraints{})
		if err != nil || px == nil {
			t.Fatalf("GetOptimalProxy() = %v, %v", px, err)
		}
		got = append(got, px.URL)
	}
	want := []string{"http://a:1", "http://b:2", "http://c:3", "http://a:1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rotation[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	px, _ := p.GetOptimalProxy(ctx, GeoConstraints{Country: "DE"})
	if px == nil || px.URL != "http://b:2" || px.Country != "de" {
		t.Errorf("GetOptimalProxy(de) = %+v, want b", px)
	}

	px, err = p.GetOptimalProxy(ctx, GeoConstraints{Country: "fr"})
	if err != nil || px != nil {
		t.Errorf("GetOptimalProxy(fr) = %+v, %v, want nil", px, err)
	}
}

func TestGetOptimalProxyEmpty(t *testing.T) {
	p, _ := NewStaticProvider(nil)
	px, err := p.GetOptimalProxy(context.Background(), GeoConstraints{})
	if err != nil || px != nil {
		t.Errorf("GetOptimalProxy() = %+v, %v, want nil, nil", px, err)
	}
}

func TestGetOptimalProxyCanceled(t *testing.T) {
	p, _ := NewStaticProvider([]string{"http://a:1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.GetOptimalProxy(ctx, GeoConstraints{}); err == nil {
		t.Error("GetOptimalProxy() should fail on a canceled context")
	}
}
