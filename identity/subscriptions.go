package identity

import (
	"encoding/hex"

	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/cubestore"
)

func (id *Identity) insertSubscription(k cube.Key) bool {
	if _, ok := id.subSet[k]; ok {
		return false
	}
	id.subSet[k] = struct{}{}
	id.subscriptions = append(id.subscriptions, k)
	return true
}

// AddPublicSubscription records k as a public subscription. Idempotent.
func (id *Identity) AddPublicSubscription(k cube.Key) {
	id.mu.Lock()
	id.insertSubscription(k)
	id.mu.Unlock()
}

// HasPublicSubscription reports whether k is a recorded subscription.
func (id *Identity) HasPublicSubscription(k cube.Key) bool {
	id.mu.Lock()
	defer id.mu.Unlock()
	_, ok := id.subSet[k]
	return ok
}

// HasPublicSubscriptionHex is HasPublicSubscription for a hex-encoded key.
func (id *Identity) HasPublicSubscriptionHex(s string) bool {
	b, err := hex.DecodeString(s)
	if err != nil {
		return false
	}
	k, err := cube.KeyFromBytes(b)
	if err != nil {
		return false
	}
	return id.HasPublicSubscription(k)
}

// GetPublicSubscriptionCount returns the number of distinct subscriptions.
func (id *Identity) GetPublicSubscriptionCount() int {
	id.mu.Lock()
	defer id.mu.Unlock()
	return len(id.subscriptions)
}

// GetPublicSubscriptionKeys returns the subscription keys in insertion order.
func (id *Identity) GetPublicSubscriptionKeys() []cube.Key {
	id.mu.Lock()
	defer id.mu.Unlock()
	return append([]cube.Key(nil), id.subscriptions...)
}

// RecursiveWebOfSubscriptions returns the union of this identity's direct
// subscriptions and, for depth > 1, the subscriptions of each of those
// identities in turn, up to depth hops. A subscription graph with cycles
// (including self-subscription) does not inflate the result: every Cube
// key is visited at most once across the whole walk (spec.md §8's
// cycle-tolerance property).
func (id *Identity) RecursiveWebOfSubscriptions(depth int) ([]cube.Key, error) {
	if depth < 1 {
		depth = 1
	}
	visited := map[cube.Key]bool{id.key: true}
	result := map[cube.Key]struct{}{}
	frontier := id.GetPublicSubscriptionKeys()
	for _, k := range frontier {
		if visited[k] {
			continue
		}
		result[k] = struct{}{}
	}

	for hop := 1; hop < depth; hop++ {
		var next []cube.Key
		for _, k := range frontier {
			if visited[k] {
				continue
			}
			visited[k] = true
			subs, err := subscriptionsOf(id.cs, k)
			if err != nil {
				return nil, err
			}
			for _, s := range subs {
				if visited[s] {
					continue
				}
				if _, ok := result[s]; !ok {
					result[s] = struct{}{}
					next = append(next, s)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}

	out := make([]cube.Key, 0, len(result))
	for k := range result {
		out = append(out, k)
	}
	return out, nil
}

// subscriptionsOf returns the full subscription set (root plus extension
// chain) recorded by the MUC/PMUC at key, or nil if it is absent or not a
// signed variant.
func subscriptionsOf(cs *cubestore.Store, key cube.Key) ([]cube.Key, error) {
	c, err := cs.GetCube(key)
	if err != nil {
		if err == cubestore.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if !c.Type().IsSigned() {
		return nil, nil
	}
	flds, err := c.Fields()
	if err != nil {
		return nil, nil
	}
	var out []cube.Key
	for _, rel := range cube.Relationships(flds, cube.SUBSCRIPTION_RECOMMENDATION) {
		out = append(out, rel.Target)
	}
	visited := map[cube.Key]bool{key: true}
	for _, idxRel := range cube.Relationships(flds, cube.SUBSCRIPTION_RECOMMENDATION_INDEX) {
		more, err := collectExtensionSubscriptions(cs, idxRel.Target, visited)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}
	return out, nil
}
