package retriever

import (
	"context"
	"time"

	"github.com/EliasOenal/verity-sub007/cube"
)

// Fetch is the shape a network-backed retrieval collaborator must expose —
// "a network-backed implementation with request timeouts and retry
// budgets" (spec.md §4.6). The out-of-scope gossip/transport layer
// provides the concrete implementation; RemoteSource only adds the
// timeout-and-retry policy the Retriever itself is agnostic to.
type Fetch func(ctx context.Context, key cube.Key) (*cube.Cube, bool, error)

// RemoteSource wraps a Fetch function with a per-attempt timeout and a
// fixed retry budget, so a flaky peer connection doesn't wedge a
// ChunkIterator indefinitely.
type RemoteSource struct {
	Fetch      Fetch
	Timeout    time.Duration
	MaxRetries int
}

// GetCube implements Source. Each attempt gets its own Timeout-bounded
// sub-context; a fetch that returns found=false is a clean miss (no
// retry, translated straight to ErrNotFound) while an error is retried up
// to MaxRetries times before being surfaced to the caller.
func (r RemoteSource) GetCube(ctx context.Context, key cube.Key) (*cube.Cube, error) {
	attempts := r.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attemptCtx := ctx
		var cancel context.CancelFunc
		if r.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		}
		c, found, err := r.Fetch(attemptCtx, key)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			if !found {
				return nil, ErrNotFound
			}
			return c, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
