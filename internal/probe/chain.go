package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/logger"
)

// ChainEntry pairs a strategy with its execution timeout. A zero
// timeout means the strategy runs under the session context alone.
type ChainEntry struct {
	Strategy Strategy
	Timeout  time.Duration
}

// Chain runs strategies in precedence order until one completes.
type Chain struct {
	entries []ChainEntry
	log     logger.Logger
}

// NewChain builds a chain. Entry order is precedence order.
func NewChain(log logger.Logger, entries ...ChainEntry) *Chain {
	return &Chain{
		entries: entries,
		log:     log.Named("probe"),
	}
}

// Names returns the strategy identifiers in precedence order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.entries))
	for i, entry := range c.entries {
		names[i] = entry.Strategy.Name()
	}
	return names
}

// Run tries each strategy in precedence order and returns the
// observations of the first one that completes, together with its
// name. A strategy that completes with zero observations still ends
// the chain; only errors fall through. When every strategy fails the
// collected errors are returned joined.
func (c *Chain) Run(ctx context.Context, subnet string) ([]domain.Observation, string, error) {
	if len(c.entries) == 0 {
		return nil, "", errors.New("no probe strategies configured")
	}

	var errs []error
	for _, entry := range c.entries {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		default:
		}

		probeCtx := ctx
		cancel := func() {}
		if entry.Timeout > 0 {
			probeCtx, cancel = context.WithTimeout(ctx, entry.Timeout)
		}

		started := time.Now()
		observations, err := entry.Strategy.Probe(probeCtx, subnet)
		cancel()

		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				c.log.Debug("strategy unavailable",
					logger.String("strategy", entry.Strategy.Name()))
			} else {
				c.log.Warn("strategy failed",
					logger.String("strategy", entry.Strategy.Name()),
					logger.Error(err))
			}
			errs = append(errs, fmt.Errorf("%s: %w", entry.Strategy.Name(), err))
			continue
		}

		observations = dedupe(observations, entry.Strategy.Name())
		c.log.Info("strategy completed",
			logger.String("strategy", entry.Strategy.Name()),
			logger.Int("observations", len(observations)),
			logger.Duration("elapsed", time.Since(started)))
		return observations, entry.Strategy.Name(), nil
	}

	return nil, "", fmt.Errorf("all probe strategies failed: %w", errors.Join(errs...))
}

// dedupe canonicalizes link addresses, drops observations without a
// usable one and keeps the first observation per endpoint. Input order
// is the strategy's own emit order, so the earlier entry wins a
// conflict deterministically.
func dedupe(observations []domain.Observation, strategy string) []domain.Observation {
	out := make([]domain.Observation, 0, len(observations))
	seen := make(map[string]struct{}, len(observations))
	for _, obs := range observations {
		mac, err := domain.CanonicalMAC(obs.MAC)
		if err != nil {
			continue
		}
		if _, dup := seen[mac]; dup {
			continue
		}
		seen[mac] = struct{}{}
		obs.MAC = mac
		if obs.Strategy == "" {
			obs.Strategy = strategy
		}
		out = append(out, obs)
	}
	return out
}
