package identity

import (
	"crypto/ed25519"
	"fmt"

	"github.com/EliasOenal/verity-sub007/crypto"
	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/cubestore"
	"github.com/EliasOenal/verity-sub007/fields"
)

// Construct parses rootBinaryOrCube as a root MUC/PMUC and walks its
// MYPOST, SUBSCRIPTION_RECOMMENDATION, and SUBSCRIPTION_RECOMMENDATION_INDEX
// relationships to collect the full post and subscription sets — spec.md
// §4.5's Construct operation. The result is read-only (CanStore reports
// false) unless the caller later attaches signing material via Load.
// Registered via the shared IdentityStore: a second Construct/Load/Create
// for the same cs/key returns the identical instance, refreshed in place.
func Construct(cs *cubestore.Store, rootBinaryOrCube any, cfg Config) (*Identity, error) {
	if cfg.Provider == nil {
		cfg.Provider = crypto.Software{}
	}

	var root *cube.Cube
	switch v := rootBinaryOrCube.(type) {
	case []byte:
		parsed, err := cube.Parse(v)
		if err != nil {
			return nil, err
		}
		root = parsed
	case *cube.Cube:
		root = v
	default:
		return nil, fmt.Errorf("identity: construct: unsupported input type %T", rootBinaryOrCube)
	}

	if !root.Type().IsSigned() {
		return nil, idErr(ErrBadRootVariant, "root cube must be MUC/PMUC, got %s", root.Type())
	}
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("identity: construct: %w", err)
	}
	pub, err := root.PublicKey()
	if err != nil {
		return nil, err
	}
	key, err := cube.KeyFromBytes(pub)
	if err != nil {
		return nil, err
	}

	candidate := &Identity{
		cs:      cs,
		cfg:     cfg,
		key:     key,
		postSet: make(map[cube.Key]struct{}),
		subSet:  make(map[cube.Key]struct{}),
	}
	if err := candidate.loadFromRoot(root); err != nil {
		return nil, err
	}

	id := lookupOrRegister(cs, key, candidate)
	if id == candidate {
		id.registerRefreshListener()
	} else {
		// Already shared: fold this root's state into the existing
		// instance rather than discarding it, in case it is newer than
		// whatever the existing instance last saw.
		if err := id.loadFromRoot(root); err != nil {
			return nil, err
		}
	}
	return id, nil
}

// registerRefreshListener subscribes to this identity's own cubeAdded
// events so a newer root arriving from elsewhere (replication, a
// concurrent Store from the owning process) keeps the in-memory post and
// subscription sets current. Unregistered by Shutdown.
func (id *Identity) registerRefreshListener() {
	unreg := id.cs.OnCubeAdded(func(k cube.Key, c *cube.Cube) {
		if k != id.key {
			return
		}
		_ = id.loadFromRoot(c)
	})
	id.mu.Lock()
	id.unregisterCubeAdded = unreg
	id.mu.Unlock()
}

// loadFromRoot (re)populates id's profile fields and post/subscription sets
// from root's current content. Safe to call repeatedly as the root is
// replaced at its key.
func (id *Identity) loadFromRoot(root *cube.Cube) error {
	flds, err := root.Fields()
	if err != nil {
		return err
	}

	username := ""
	if f, ok := fields.FirstOfType(flds, fields.USERNAME); ok {
		username = string(f.Value)
	}
	var avatarSeed [5]byte
	hasAvatar := false
	if f, ok := fields.FirstOfType(flds, fields.AVATAR); ok && len(f.Value) == 7 {
		copy(avatarSeed[:], f.Value[2:])
		hasAvatar = true
	}
	var cryptoPub [32]byte
	hasCryptoPub := false
	if f, ok := fields.FirstOfType(flds, fields.CRYPTO_PUBKEY); ok && len(f.Value) == 32 {
		copy(cryptoPub[:], f.Value)
		hasCryptoPub = true
	}
	var illustration cube.Key
	hasIllustration := false
	for _, rel := range cube.Relationships(flds, cube.ILLUSTRATION) {
		illustration = rel.Target
		hasIllustration = true
		break
	}

	var posts []cube.Key
	for _, rel := range cube.Relationships(flds, cube.MYPOST) {
		posts = append(posts, rel.Target)
	}

	var subs []cube.Key
	for _, rel := range cube.Relationships(flds, cube.SUBSCRIPTION_RECOMMENDATION) {
		subs = append(subs, rel.Target)
	}
	rootKey, err := root.GetKey()
	if err != nil {
		return err
	}
	visited := map[cube.Key]bool{rootKey: true}
	extensionCount := 0
	for _, idxRel := range cube.Relationships(flds, cube.SUBSCRIPTION_RECOMMENDATION_INDEX) {
		more, err := collectExtensionSubscriptions(id.cs, idxRel.Target, visited)
		if err != nil {
			return err
		}
		subs = append(subs, more...)
		extensionCount = len(visited) - 1
	}

	id.mu.Lock()
	id.username = username
	id.avatarSeed = avatarSeed
	id.hasAvatar = hasAvatar
	id.illustration = illustration
	id.hasIllustration = hasIllustration
	if hasCryptoPub {
		id.cryptoPub = cryptoPub
		id.hasCryptoPub = true
	}
	id.extensionCount = extensionCount

	id.posts = nil
	id.postSet = make(map[cube.Key]struct{})
	for _, p := range posts {
		id.insertPost(p)
	}
	id.subscriptions = nil
	id.subSet = make(map[cube.Key]struct{})
	for _, s := range subs {
		id.insertSubscription(s)
	}
	id.mu.Unlock()
	return nil
}

// Load derives the same master key and signing identity Create would, then
// fetches the corresponding MUC/PMUC from cs and Constructs from it —
// spec.md §4.5's Load operation. Returns (nil, nil) if the root is not
// (yet) available, matching the read-path's absent-not-error policy
// (spec.md §7). The returned Identity carries signing material, so
// CanStore reports true and Store can republish it.
func Load(cs *cubestore.Store, username, passphrase string, cfg Config) (*Identity, error) {
	if cfg.Provider == nil {
		cfg.Provider = crypto.Software{}
	}

	master := deriveMasterKey(cfg.Provider, username, passphrase, cfg.ArgonCPUHardness, cfg.ArgonMemoryHardness)
	signingKey := deriveSigningKey(master)
	pub := signingKey.Public().(ed25519.PublicKey)
	key, err := cube.KeyFromBytes(pub)
	if err != nil {
		return nil, err
	}

	root, err := cs.GetCube(key)
	if err != nil {
		if err == cubestore.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	id, err := Construct(cs, root, cfg)
	if err != nil {
		return nil, err
	}

	id.mu.Lock()
	needsKeys := id.signingKey == nil
	id.mu.Unlock()
	if needsKeys {
		xPriv, err := cfg.Provider.X25519FromEd25519Private(signingKey)
		if err != nil {
			return nil, fmt.Errorf("identity: load: %w", err)
		}
		xPub, err := cfg.Provider.X25519FromEd25519Public(pub)
		if err != nil {
			return nil, fmt.Errorf("identity: load: %w", err)
		}
		id.mu.Lock()
		id.masterKey = &master
		id.signingKey = signingKey
		id.xPriv = xPriv
		id.xPub = xPub
		id.hasXKeys = true
		if !id.hasCryptoPub {
			id.cryptoPub = xPub
			id.hasCryptoPub = true
		}
		id.mu.Unlock()
	}
	return id, nil
}
