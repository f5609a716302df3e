package platforms

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

func TestCatalogReplace(t *testing.T) {
	cat := NewCatalog([]Platform{
		{ID: "b", Difficulty: domain.DifficultyHigh},
		{ID: "a"},
		{ID: "b", Difficulty: domain.DifficultyLow},
		{ID: ""},
	})

	ids := cat.IDs()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Errorf("IDs() = %v, want [b a]", ids)
	}
	if cat.Difficulty("b") != domain.DifficultyHigh {
		t.Errorf("first duplicate should win")
	}
	if cat.Difficulty("a") != domain.DifficultyMedium {
		t.Errorf("missing difficulty should be medium")
	}
	if cat.Difficulty("ghost") != domain.DifficultyMedium {
		t.Errorf("unknown platform should be medium")
	}

	before := cat.LastReload()
	cat.Replace([]Platform{{ID: "c"}})
	if cat.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cat.Len())
	}
	if cat.LastReload().Before(before) {
		t.Errorf("LastReload() should move forward")
	}
	if _, err := cat.Get("a"); !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("Get(a) error = %v, want ErrUnknownPlatform", err)
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register("github", ProbeFunc(func(context.Context, string, Params) (domain.RawSignal, error) {
		return domain.RawSignal{Exists: domain.ExistsTrue, Confidence: 0.99, Method: domain.MethodAPI}, nil
	}))

	probes := reg.Resolve([]string{"github", "myspace"})
	if len(probes) != 2 {
		t.Fatalf("Resolve() returned %d probes, want 2", len(probes))
	}

	sig, err := probes["myspace"].CheckUsername(context.Background(), "john", Params{})
	if err != nil {
		t.Fatalf("fallback probe error = %v", err)
	}
	if sig.Exists != domain.ExistsUnknown || sig.Confidence != 0 || sig.Error != NoProbeError {
		t.Errorf("fallback signal = %+v", sig)
	}

	if _, err := reg.Lookup("myspace"); !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("Lookup() error = %v, want ErrUnknownPlatform", err)
	}
	if !reg.Has("github") || reg.Has("myspace") {
		t.Errorf("Has() mismatch")
	}
}

func TestRegistryRegisterCatalog(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCatalog([]Platform{
		{ID: "github", CheckURL: "https://github.com/{username}"},
		{ID: "signal", Name: "Signal", CheckURL: "https://signal.org", RequiresAuth: true},
	}, HTTPOptions{})

	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}

	p, err := reg.Lookup("github")
	if err != nil {
		t.Fatalf("Lookup(github) error = %v", err)
	}
	if _, ok := p.(*HTTPProbe); !ok {
		t.Errorf("github probe = %T, want *HTTPProbe", p)
	}

	p, _ = reg.Lookup("signal")
	sig, err := p.CheckUsername(context.Background(), "john", Params{})
	if err != nil {
		t.Fatalf("signal probe error = %v", err)
	}
	if sig.Error != "authentication required for Signal" {
		t.Errorf("signal error = %q", sig.Error)
	}
}

type closingProbe struct {
	closed int
}

func (p *closingProbe) CheckUsername(context.Context, string, Params) (domain.RawSignal, error) {
	return domain.RawSignal{}, nil
}

func (p *closingProbe) CloseIdleConnections() { p.closed++ }

func TestRegistryRegisterClosesReplacedProbe(t *testing.T) {
	reg := NewRegistry()
	first := &closingProbe{}
	reg.Register("github", first)
	reg.Register("github", first)
	if first.closed != 0 {
		t.Errorf("re-registering the same probe closed it %d times", first.closed)
	}

	reg.Register("github", &closingProbe{})
	if first.closed != 1 {
		t.Errorf("replaced probe closed %d times, want 1", first.closed)
	}
}
