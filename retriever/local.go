package retriever

import (
	"context"

	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/cubestore"
)

// LocalSource adapts a cubestore.Store into a Source. It is the
// zero-network-latency case: GetCube never blocks on I/O beyond the local
// backend, so ctx is only consulted for cancellation between calls.
type LocalSource struct {
	Store *cubestore.Store
}

// GetCube implements Source over the local store, translating
// cubestore.ErrNotFound into the package-level ErrNotFound sentinel so
// ChunkIterator's truncation behavior is source-agnostic.
func (l LocalSource) GetCube(ctx context.Context, key cube.Key) (*cube.Cube, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := l.Store.GetCube(key)
	if err != nil {
		if err == cubestore.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}
