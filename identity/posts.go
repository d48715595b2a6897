package identity

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"

	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/cubestore"
	"github.com/EliasOenal/verity-sub007/fields"
	"github.com/EliasOenal/verity-sub007/retriever"
	"github.com/EliasOenal/verity-sub007/veritum"
)

// insertPost adds k to the post set, reporting whether it was new.
// Unexported and lock-free: callers hold id.mu (AddPost, loadFromRoot).
func (id *Identity) insertPost(k cube.Key) bool {
	if _, ok := id.postSet[k]; ok {
		return false
	}
	id.postSet[k] = struct{}{}
	id.posts = append(id.posts, k)
	return true
}

// AddPost records k as one of this identity's posts. Idempotent: adding
// the same key twice leaves GetPostCount unchanged at +1 (spec.md §8).
func (id *Identity) AddPost(k cube.Key) {
	id.mu.Lock()
	id.insertPost(k)
	id.mu.Unlock()
}

// HasPost reports whether k is a recorded post.
func (id *Identity) HasPost(k cube.Key) bool {
	id.mu.Lock()
	defer id.mu.Unlock()
	_, ok := id.postSet[k]
	return ok
}

// HasPostHex is HasPost for a hex-encoded key, per spec.md §4.5's "by
// either binary or hex form" lookup.
func (id *Identity) HasPostHex(s string) bool {
	b, err := hex.DecodeString(s)
	if err != nil {
		return false
	}
	k, err := cube.KeyFromBytes(b)
	if err != nil {
		return false
	}
	return id.HasPost(k)
}

// GetPostCount returns the number of distinct recorded posts.
func (id *Identity) GetPostCount() int {
	id.mu.Lock()
	defer id.mu.Unlock()
	return len(id.posts)
}

// GetPostKeys returns the recorded post keys in insertion order.
func (id *Identity) GetPostKeys() []cube.Key {
	id.mu.Lock()
	defer id.mu.Unlock()
	return append([]cube.Key(nil), id.posts...)
}

// PostFormat selects how GetPosts yields a post whose content spans more
// than one Cube.
type PostFormat int

const (
	// FormatCube yields only the post's first (seed) Cube, un-reassembled.
	FormatCube PostFormat = iota
	// FormatVeritum follows the CONTINUED_IN chain and reassembles the
	// full logical record, decrypting it if this Identity holds the
	// matching private key.
	FormatVeritum
)

// Post is one item off a PostIterator.
type Post struct {
	Key  cube.Key
	Cube *cube.Cube     // always set
	Flds []fields.Field // only set for FormatVeritum
}

// PostIterator lazily walks an Identity's post keys, fetching and (for
// FormatVeritum) reassembling each one only as Next is called — the
// "lazy sequence" spec.md §4.5 describes, expressed as a cursor rather
// than a channel since every step here is a synchronous local read.
type PostIterator struct {
	id     *Identity
	keys   []cube.Key
	idx    int
	format PostFormat
}

// GetPosts returns a lazy iterator over this identity's posts.
func (id *Identity) GetPosts(format PostFormat) *PostIterator {
	return &PostIterator{id: id, keys: id.GetPostKeys(), format: format}
}

// Next returns the next post, or (nil, nil) once the sequence is
// exhausted. A post whose seed Cube has been evicted or never arrived is
// silently skipped, matching spec.md §7's "retrieval of corrupt/absent
// persisted entries is reported absent" propagation policy.
func (it *PostIterator) Next(ctx context.Context) (*Post, error) {
	for it.idx < len(it.keys) {
		k := it.keys[it.idx]
		it.idx++
		c, err := it.id.cs.GetCube(k)
		if err != nil {
			if err == cubestore.ErrNotFound {
				continue
			}
			return nil, err
		}
		if it.format == FormatCube {
			return &Post{Key: k, Cube: c}, nil
		}

		chunks, err := it.id.collectChunks(ctx, c)
		if err != nil {
			return nil, err
		}
		opts := veritum.FromChunksOptions{Provider: it.id.cfg.Provider}
		if it.id.signingKey != nil {
			opts.RecipientPrivateKey = ed25519.PrivateKey(it.id.signingKey)
		}
		flds, err := veritum.FromChunks(chunks, opts)
		if err != nil {
			return nil, err
		}
		return &Post{Key: k, Cube: c, Flds: flds}, nil
	}
	return nil, nil
}

// collectChunks walks first's CONTINUED_IN chain to completion (or to the
// first missing successor, yielding a truncated chain), delegating to the
// retriever package's chain-following Source abstraction rather than
// re-implementing it here.
func (id *Identity) collectChunks(ctx context.Context, first *cube.Cube) ([]*cube.Cube, error) {
	firstKey, err := first.GetKey()
	if err != nil {
		return nil, err
	}
	rest, err := retriever.New(retriever.LocalSource{Store: id.cs}).GetContinuationChunks(firstKey).Collect(ctx)
	if err != nil {
		return nil, err
	}
	// rest[0] is first itself (GetContinuationChunks starts at the seed);
	// avoid returning it twice.
	if len(rest) > 0 {
		return rest, nil
	}
	return []*cube.Cube{first}, nil
}
