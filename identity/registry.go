package identity

import (
	"fmt"
	"sync"

	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/cubestore"
)

// registry is the process-wide IdentityStore from spec.md §5: every
// Identity constructed for a given (cubeStore, key) pair returns the same
// instance. Grounded on the "shared mutable singletons" redesign note in
// spec.md §9: a single owned registry rather than a language-level
// singleton object.
var registry = struct {
	mu sync.Mutex
	m  map[string]*Identity
}{m: make(map[string]*Identity)}

func registryKey(cs *cubestore.Store, key cube.Key) string {
	return fmt.Sprintf("%p:%s", cs, key)
}

// lookupOrRegister returns the existing Identity for (cs, key) if one is
// already registered, otherwise registers and returns candidate.
func lookupOrRegister(cs *cubestore.Store, key cube.Key, candidate *Identity) *Identity {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	k := registryKey(cs, key)
	if existing, ok := registry.m[k]; ok {
		return existing
	}
	registry.m[k] = candidate
	return candidate
}

func unregister(cs *cubestore.Store, key cube.Key) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.m, registryKey(cs, key))
}
