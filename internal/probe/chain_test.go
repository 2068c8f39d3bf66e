package probe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/logger"
)

// stubStrategy is a canned strategy for chain tests.
type stubStrategy struct {
	name         string
	observations []domain.Observation
	err          error
	calls        int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Probe(ctx context.Context, subnet string) ([]domain.Observation, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.observations, nil
}

// blockingStrategy waits for its context to expire.
type blockingStrategy struct {
	name string
}

func (s *blockingStrategy) Name() string { return s.name }

func (s *blockingStrategy) Probe(ctx context.Context, subnet string) ([]domain.Observation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestChainFirstSuccessWins(t *testing.T) {
	first := &stubStrategy{
		name:         "first",
		observations: []domain.Observation{{MAC: "aa:bb:cc:dd:ee:01", IP: "192.168.1.10"}},
	}
	second := &stubStrategy{name: "second"}

	chain := NewChain(logger.NewNop(),
		ChainEntry{Strategy: first},
		ChainEntry{Strategy: second},
	)

	observations, method, err := chain.Run(context.Background(), "192.168.1.0/24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "first" {
		t.Errorf("expected method first, got %q", method)
	}
	if len(observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(observations))
	}
	if second.calls != 0 {
		t.Error("second strategy should not run after first succeeds")
	}
}

func TestChainFallsThroughOnUnavailable(t *testing.T) {
	first := &stubStrategy{
		name: "first",
		err:  fmt.Errorf("binary not found: %w", ErrUnavailable),
	}
	second := &stubStrategy{
		name:         "second",
		observations: []domain.Observation{{MAC: "AA:BB:CC:DD:EE:02", IP: "192.168.1.11"}},
	}

	chain := NewChain(logger.NewNop(),
		ChainEntry{Strategy: first},
		ChainEntry{Strategy: second},
	)

	_, method, err := chain.Run(context.Background(), "192.168.1.0/24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "second" {
		t.Errorf("expected fallback to second, got %q", method)
	}
}

func TestChainEmptyResultIsSuccess(t *testing.T) {
	first := &stubStrategy{name: "first"}
	second := &stubStrategy{
		name:         "second",
		observations: []domain.Observation{{MAC: "AA:BB:CC:DD:EE:03", IP: "192.168.1.12"}},
	}

	chain := NewChain(logger.NewNop(),
		ChainEntry{Strategy: first},
		ChainEntry{Strategy: second},
	)

	observations, method, err := chain.Run(context.Background(), "192.168.1.0/24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "first" {
		t.Errorf("empty success must end the chain, got method %q", method)
	}
	if len(observations) != 0 {
		t.Errorf("expected no observations, got %d", len(observations))
	}
	if second.calls != 0 {
		t.Error("second strategy should not run")
	}
}

func TestChainAllFail(t *testing.T) {
	first := &stubStrategy{name: "first", err: errors.New("boom")}
	second := &stubStrategy{name: "second", err: fmt.Errorf("gone: %w", ErrUnavailable)}

	chain := NewChain(logger.NewNop(),
		ChainEntry{Strategy: first},
		ChainEntry{Strategy: second},
	)

	_, _, err := chain.Run(context.Background(), "192.168.1.0/24")
	if err == nil {
		t.Fatal("expected error when all strategies fail")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("joined error should carry the sentinel: %v", err)
	}
}

func TestChainTimeoutIsHardFailure(t *testing.T) {
	slow := &blockingStrategy{name: "slow"}
	fast := &stubStrategy{
		name:         "fast",
		observations: []domain.Observation{{MAC: "AA:BB:CC:DD:EE:04", IP: "192.168.1.13"}},
	}

	chain := NewChain(logger.NewNop(),
		ChainEntry{Strategy: slow, Timeout: 10 * time.Millisecond},
		ChainEntry{Strategy: fast},
	)

	_, method, err := chain.Run(context.Background(), "192.168.1.0/24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "fast" {
		t.Errorf("expected fallback after timeout, got %q", method)
	}
}

func TestChainCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := NewChain(logger.NewNop(),
		ChainEntry{Strategy: &stubStrategy{name: "first"}},
	)

	_, _, err := chain.Run(ctx, "192.168.1.0/24")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDedupeCanonicalizesAndKeepsFirst(t *testing.T) {
	observations := []domain.Observation{
		{MAC: "aa:bb:cc:dd:ee:01", IP: "192.168.1.10"},
		{MAC: "AA-BB-CC-DD-EE-01", IP: "192.168.1.99"}, // same endpoint, later entry
		{MAC: "not-a-mac", IP: "192.168.1.50"},
		{MAC: "aa:bb:cc:dd:ee:02", IP: "192.168.1.11"},
	}

	out := dedupe(observations, "test")
	if len(out) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(out))
	}
	if out[0].MAC != "AA:BB:CC:DD:EE:01" {
		t.Errorf("expected canonical MAC, got %q", out[0].MAC)
	}
	if out[0].IP != "192.168.1.10" {
		t.Errorf("first-seen value must win, got %q", out[0].IP)
	}
	if out[0].Strategy != "test" {
		t.Errorf("strategy not stamped: %q", out[0].Strategy)
	}
}
