// Package retriever implements the Retriever component from spec.md §4.6:
// a lazy sequence that follows a Veritum's CONTINUED_IN chain starting at
// a seed key, backed by a pluggable source rather than a concrete store —
// grounded on the teacher's node/sync.go incremental, cancellable walk
// and node/store/reorg.go's lazy traversal with a visited/stop condition.
package retriever

import (
	"context"
	"fmt"

	"github.com/EliasOenal/verity-sub007/cube"
)

// Source is the pluggable fetch interface a Retriever is built on — "a
// local store or a network-backed implementation with request timeouts
// and retry budgets; the retriever is agnostic" (spec.md §4.6). ErrNotFound
// (the package-level sentinel below) signals a clean miss; any other
// error aborts the walk.
type Source interface {
	GetCube(ctx context.Context, key cube.Key) (*cube.Cube, error)
}

// ErrNotFound is the sentinel a Source returns for a key it does not (yet)
// have. It is distinguished from other errors so a missing successor
// truncates the sequence instead of failing it (spec.md §4.6: "terminates
// on absent next chunk; caller sees a truncated sequence").
var ErrNotFound = fmt.Errorf("retriever: not found")

// Retriever composes a Source into the chain-following walk. It holds no
// state of its own beyond the Source handle, so one Retriever can serve
// any number of concurrent, independent ChunkIterators.
type Retriever struct {
	Source Source
}

// New builds a Retriever over src.
func New(src Source) *Retriever {
	return &Retriever{Source: src}
}

// ChunkIterator lazily walks a CONTINUED_IN chain one Cube at a time.
// Restartable (call GetContinuationChunks again) but not resumable — it
// holds no persisted cursor beyond the in-memory "next key" pointer.
type ChunkIterator struct {
	r       *Retriever
	next    *cube.Key
	done    bool
	visited map[cube.Key]bool
}

// GetContinuationChunks returns a lazy sequence of Cubes starting at seed
// and following each chunk's CONTINUED_IN relationship. The sequence ends
// cleanly (Next returns nil, nil) when a chunk has no CONTINUED_IN field,
// when the next chunk is unavailable from the Source, or when the chain
// revisits an already-seen key (a defensive cycle guard: spec.md does not
// promise cycle-free chains and a consumer must not spin forever).
func (r *Retriever) GetContinuationChunks(seed cube.Key) *ChunkIterator {
	k := seed
	return &ChunkIterator{r: r, next: &k, visited: make(map[cube.Key]bool)}
}

// Next fetches and returns the next chunk in the chain, or (nil, nil) once
// the sequence is exhausted. The caller dropping the sequence (simply not
// calling Next again) is sufficient to stop the walk — no separate close
// call is needed since every step is a single synchronous fetch.
func (it *ChunkIterator) Next(ctx context.Context) (*cube.Cube, error) {
	if it.done || it.next == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := *it.next
	it.next = nil
	if it.visited[k] {
		it.done = true
		return nil, nil
	}
	it.visited[k] = true

	c, err := it.r.Source.GetCube(ctx, k)
	if err != nil {
		it.done = true
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	flds, err := c.Fields()
	if err != nil {
		it.done = true
		return nil, err
	}
	if rels := cube.Relationships(flds, cube.CONTINUED_IN); len(rels) > 0 {
		target := rels[0].Target
		it.next = &target
	} else {
		it.done = true
	}
	return c, nil
}

// Collect drains the iterator into a slice, stopping early if ctx is
// cancelled. Convenience for callers (tests, Veritum.FromChunks call
// sites) that don't need streaming behavior.
func (it *ChunkIterator) Collect(ctx context.Context) ([]*cube.Cube, error) {
	var out []*cube.Cube
	for {
		c, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if c == nil {
			return out, nil
		}
		out = append(out, c)
	}
}
