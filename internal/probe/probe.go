// Package probe implements the discovery strategies that find live
// endpoints on the local network segment.
//
// Strategies form a fallback chain. The chain tries each strategy in
// precedence order and keeps the results of the first one that
// completes, so the session always records which method actually
// produced its observations. A strategy that cannot execute at all
// reports ErrUnavailable and the chain falls through silently.
package probe

import (
	"context"
	"errors"

	"github.com/FlorentB974/lanmon/internal/domain"
)

// ErrUnavailable signals that a strategy cannot execute at all, for
// example when the binary it shells out to is not installed. The chain
// recovers by falling through to the next strategy.
var ErrUnavailable = errors.New("probe strategy unavailable")

// Strategy is a single discovery method. Probe scans the given subnet
// and returns the endpoints that answered. An empty result is a valid
// outcome (a quiet network), distinct from an error.
type Strategy interface {
	Name() string
	Probe(ctx context.Context, subnet string) ([]domain.Observation, error)
}
