package identity

import (
	"crypto/ed25519"
	"fmt"

	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/cubestore"
	"github.com/EliasOenal/verity-sub007/fields"
)

// subsPerCube is the number of SUBSCRIPTION_RECOMMENDATION relationships a
// root or extension Cube carries before handing the remainder off to a
// freshly derived extension Cube. One further RELATES_TO slot is reserved
// — but only spent — on a Cube that actually has a successor, for the
// SUBSCRIPTION_RECOMMENDATION_INDEX pointer to it.
const subsPerCube = 15

// chunkSubscriptions splits subs into subsPerCube-sized groups, in the
// identity's insertion order; chunk 0 is what fits on the root itself,
// chunk 1+ go to extension Cubes 1, 2, ...
func chunkSubscriptions(subs []cube.Key) [][]cube.Key {
	if len(subs) == 0 {
		return nil
	}
	var chunks [][]cube.Key
	for len(subs) > 0 {
		n := subsPerCube
		if n > len(subs) {
			n = len(subs)
		}
		chunks = append(chunks, subs[:n:n])
		subs = subs[n:]
	}
	return chunks
}

// extensionKey returns extension index n's (1-based) stable CubeKey: since
// MUC/PMUC keys equal the signer's public key, and extension n's signing
// key is derived purely from the master key and n, this is knowable before
// the Cube is ever compiled. That lets the whole extension chain be built
// in forward order — unlike veritum's CONTINUED_IN chain, which must be
// built tail-first because a FROZEN chunk's key depends on its mined
// content.
func extensionKey(masterKey [32]byte, n int) (cube.Key, error) {
	pub := deriveExtensionSigningKey(masterKey, n).Public().(ed25519.PublicKey)
	return cube.KeyFromBytes(pub)
}

// buildExtensions mines nothing — it returns uncompiled extension Cubes,
// one per chunk, so CubeStore.AddCube can still apply its pre-compile PMUC
// auto-increment.
func (id *Identity) buildExtensions(chunks [][]cube.Key) ([]*cube.Cube, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	out := make([]*cube.Cube, len(chunks))
	for i, chunk := range chunks {
		var flds []fields.Field
		for _, sub := range chunk {
			rel, err := cube.Relationship{Type: cube.SUBSCRIPTION_RECOMMENDATION, Target: sub}.Field()
			if err != nil {
				return nil, err
			}
			flds = append(flds, rel)
		}
		if i < len(chunks)-1 {
			nextKey, err := extensionKey(*id.masterKey, i+2)
			if err != nil {
				return nil, err
			}
			rel, err := cube.Relationship{Type: cube.SUBSCRIPTION_RECOMMENDATION_INDEX, Target: nextKey}.Field()
			if err != nil {
				return nil, err
			}
			flds = append(flds, rel)
		}

		c, err := cube.Create(cube.CreateParams{
			Type:               id.cfg.Variant,
			Fields:             flds,
			SigningKey:         deriveExtensionSigningKey(*id.masterKey, i+1),
			RequiredDifficulty: id.cfg.RequiredDifficulty,
		})
		if err != nil {
			return nil, fmt.Errorf("identity: extension %d: %w", i+1, err)
		}
		out[i] = c
	}
	return out, nil
}

// collectExtensionSubscriptions walks the SUBSCRIPTION_RECOMMENDATION_INDEX
// chain starting at key, returning every SUBSCRIPTION_RECOMMENDATION target
// found along the way. visited guards against a cyclic chain re-inflating
// the result (spec.md §8's cycle-tolerance property).
func collectExtensionSubscriptions(cs *cubestore.Store, key cube.Key, visited map[cube.Key]bool) ([]cube.Key, error) {
	if visited[key] {
		return nil, nil
	}
	visited[key] = true
	c, err := cs.GetCube(key)
	if err != nil {
		if err == cubestore.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	flds, err := c.Fields()
	if err != nil {
		return nil, nil
	}
	var out []cube.Key
	for _, rel := range cube.Relationships(flds, cube.SUBSCRIPTION_RECOMMENDATION) {
		out = append(out, rel.Target)
	}
	for _, idxRel := range cube.Relationships(flds, cube.SUBSCRIPTION_RECOMMENDATION_INDEX) {
		more, err := collectExtensionSubscriptions(cs, idxRel.Target, visited)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}
	return out, nil
}
