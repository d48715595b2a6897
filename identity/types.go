// Package identity implements the signed self-record layer from spec.md
// §4.5: a root MUC/PMUC Cube carrying a post set and a subscription set,
// spilling the latter into a chain of deterministically-keyed extension
// Cubes once the root runs out of room. Grounded on the teacher's
// node/keymgr.go key-lifecycle conventions (hex-encoded key material, a
// SHA3-256 key id derived from the public key) and crypto/provider.go's
// pluggable-backend split, generalized from a wrapped-secret keystore to
// full keypair derivation.
package identity

import (
	"sync"
	"time"

	"crypto/ed25519"

	"github.com/EliasOenal/verity-sub007/crypto"
	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/cubestore"
)

// Config carries the Argon2id hardness parameters and rebuild coalescing
// window, the Identity-relevant subset of spec.md §6's Config.
type Config struct {
	ArgonCPUHardness    uint32
	ArgonMemoryHardness uint32 // KiB
	MinMucRebuildDelay  time.Duration
	RequiredDifficulty  uint8
	Variant             cube.Type // MUC or PMUC; defaults to PMUC. Store adds no NOTIFY field, so a NOTIFY variant fails at cube.Create
	Provider            crypto.Provider
}

// DefaultConfig mirrors cubestore.DefaultConfig's zero-difficulty,
// test-friendly defaults.
func DefaultConfig() Config {
	return Config{
		ArgonCPUHardness:    3,
		ArgonMemoryHardness: 64 * 1024,
		MinMucRebuildDelay:  5 * time.Second,
		RequiredDifficulty:  0,
		Variant:             cube.PMUC,
		Provider:            crypto.Software{},
	}
}

// Identity is a signed self-record: a root Cube plus an overflow chain of
// extension Cubes, and (when constructed via Create/Load) the signing
// material needed to republish it. A value constructed via Construct from
// someone else's root Cube has no signing key and is read-only.
type Identity struct {
	cs  *cubestore.Store
	cfg Config

	key cube.Key // root Cube's key == signing public key

	// Present only for a self-owned Identity (Create/Load); nil for a
	// read-only Construct view of someone else's record.
	masterKey  *[32]byte
	signingKey ed25519.PrivateKey
	xPriv      [32]byte
	xPub       [32]byte
	hasXKeys   bool

	username        string
	avatarSeed      [5]byte
	hasAvatar       bool
	illustration    cube.Key // profile picture Cube key
	hasIllustration bool
	cryptoPub       [32]byte // this identity's advertised X25519 encryption key
	hasCryptoPub    bool

	mu            sync.Mutex
	posts         []cube.Key
	postSet       map[cube.Key]struct{}
	subscriptions []cube.Key
	subSet        map[cube.Key]struct{}

	extensionCount int // number of extension Cubes currently in use

	storeMu      sync.Mutex
	lastStore    time.Time
	storeTimer   *time.Timer
	pendingStore bool

	unregisterCubeAdded func()
	shutdown            bool
}

// Key returns the Identity's root Cube key (the signer's Ed25519 public key).
func (id *Identity) Key() cube.Key { return id.key }

// Username returns the identity's advertised username, if any.
func (id *Identity) Username() string { return id.username }

// CanStore reports whether this Identity holds signing material (false for
// a read-only Construct view).
func (id *Identity) CanStore() bool { return id.signingKey != nil }

// Illustration returns the profile-picture Cube key, if any was set.
func (id *Identity) Illustration() (cube.Key, bool) {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.illustration, id.hasIllustration
}

// SetIllustration records the profile-picture Cube key for the next Store.
func (id *Identity) SetIllustration(k cube.Key) {
	id.mu.Lock()
	id.illustration = k
	id.hasIllustration = true
	id.mu.Unlock()
}

// CryptoPublicKey returns this identity's advertised X25519 encryption
// public key, usable as a veritum.RecipientKey, along with whether one is
// available (false for a read-only Construct view of someone else's
// record with no CRYPTO_PUBKEY advertised).
func (id *Identity) CryptoPublicKey() ([32]byte, bool) {
	return id.cryptoPub, id.hasCryptoPub
}

// Shutdown resolves the identity's shutdown state: it stops any pending
// coalesced Store, removes the cubeAdded listener registered by Create,
// Construct, or Load to keep the in-memory post and subscription sets
// current, and unregisters the identity from the shared registry so a
// later Create/Load/Construct for the same key builds a fresh instance
// instead of reusing this one.
func (id *Identity) Shutdown() {
	id.storeMu.Lock()
	if id.storeTimer != nil {
		id.storeTimer.Stop()
		id.storeTimer = nil
	}
	id.storeMu.Unlock()

	id.mu.Lock()
	already := id.shutdown
	id.shutdown = true
	unreg := id.unregisterCubeAdded
	id.unregisterCubeAdded = nil
	id.mu.Unlock()

	if already {
		return
	}
	if unreg != nil {
		unreg()
	}
	unregister(id.cs, id.key)
}
