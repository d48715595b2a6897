package identity

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/EliasOenal/verity-sub007/crypto"
	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/cubestore"
	"github.com/EliasOenal/verity-sub007/fields"
)

// CreateOptions configures a newly minted Identity. An unset Avatar lets
// Create fall back to the deterministic seed derived from the master key.
type CreateOptions struct {
	Avatar       [5]byte
	HasAvatar    bool
	Illustration *cube.Key
}

// application identifies the root Cube's APPLICATION field content,
// matching spec.md §4.5: "APPLICATION=\"ID\"".
const application = "ID"

// Create derives a master key from username/passphrase via Argon2id, the
// signing and encryption keypairs from it, and republishes a fresh root
// MUC/PMUC Cube under cs — spec.md §4.5's Create operation. The returned
// Identity is shared via the process-wide registry: a second Create (or
// Load, or Construct) for the same cs/key returns the identical instance.
func Create(ctx context.Context, cs *cubestore.Store, username, passphrase string, cfg Config, opts CreateOptions) (*Identity, error) {
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

	xPriv, err := cfg.Provider.X25519FromEd25519Private(signingKey)
	if err != nil {
		return nil, fmt.Errorf("identity: create: %w", err)
	}
	xPub, err := cfg.Provider.X25519FromEd25519Public(pub)
	if err != nil {
		return nil, fmt.Errorf("identity: create: %w", err)
	}

	candidate := &Identity{
		cs:           cs,
		cfg:          cfg,
		key:          key,
		masterKey:    &master,
		signingKey:   signingKey,
		xPriv:        xPriv,
		xPub:         xPub,
		hasXKeys:     true,
		username:     username,
		cryptoPub:    xPub,
		hasCryptoPub: true,
		postSet:      make(map[cube.Key]struct{}),
		subSet:       make(map[cube.Key]struct{}),
	}
	if opts.HasAvatar {
		candidate.avatarSeed = opts.Avatar
	} else {
		candidate.avatarSeed = deriveAvatarSeed(cfg.Provider, master)
	}
	candidate.hasAvatar = true
	if opts.Illustration != nil {
		candidate.illustration = *opts.Illustration
		candidate.hasIllustration = true
	}

	id := lookupOrRegister(cs, key, candidate)
	if id != candidate {
		return id, nil
	}
	id.registerRefreshListener()

	if err := id.Store(ctx); err != nil {
		return nil, fmt.Errorf("identity: create: %w", err)
	}
	return id, nil
}

// Store refreshes the root MUC/PMUC (and its extension chain), subject to
// MinMucRebuildDelay coalescing: calls within the window are folded into a
// single rebuild fired once the window elapses, rather than spamming the
// store with one update per call (spec.md §4.5).
func (id *Identity) Store(ctx context.Context) error {
	id.storeMu.Lock()
	now := time.Now()
	delay := id.cfg.MinMucRebuildDelay
	if id.lastStore.IsZero() || now.Sub(id.lastStore) >= delay {
		id.lastStore = now
		id.pendingStore = false
		if id.storeTimer != nil {
			id.storeTimer.Stop()
			id.storeTimer = nil
		}
		id.storeMu.Unlock()
		return id.rebuild(ctx)
	}

	if !id.pendingStore {
		id.pendingStore = true
		wait := delay - now.Sub(id.lastStore)
		id.storeTimer = time.AfterFunc(wait, func() {
			id.storeMu.Lock()
			id.pendingStore = false
			id.lastStore = time.Now()
			id.storeMu.Unlock()
			_ = id.rebuild(context.Background())
		})
	}
	id.storeMu.Unlock()
	return nil
}

// rebuild compiles and admits a fresh root Cube (plus any extension Cubes
// the current subscription list requires) reflecting this Identity's
// in-memory post/subscription/profile state. Only posts fit entirely on
// the root (spec.md §4.5 does not describe a post-overflow chain, unlike
// subscriptions' explicit SUBSCRIPTION_RECOMMENDATION_INDEX spill); a
// caller accumulating enough posts to overflow 1024 bytes would need a
// companion design this spec does not specify, recorded as an Open
// Question resolution in DESIGN.md.
func (id *Identity) rebuild(ctx context.Context) error {
	if !id.CanStore() {
		return idErr(ErrNoSigningKey, "cannot store a read-only identity view")
	}

	id.mu.Lock()
	posts := append([]cube.Key(nil), id.posts...)
	subs := append([]cube.Key(nil), id.subscriptions...)
	username := id.username
	avatarSeed := id.avatarSeed
	hasAvatar := id.hasAvatar
	illustration := id.illustration
	hasIllustration := id.hasIllustration
	id.mu.Unlock()

	var flds []fields.Field
	appField, err := fields.NewField(fields.APPLICATION, []byte(application))
	if err != nil {
		return err
	}
	flds = append(flds, appField)

	if username != "" {
		unameField, err := fields.NewField(fields.USERNAME, []byte(username))
		if err != nil {
			return err
		}
		flds = append(flds, unameField)
	}
	if hasAvatar {
		val := make([]byte, 7)
		copy(val[2:], avatarSeed[:])
		avatarField, err := fields.NewField(fields.AVATAR, val)
		if err != nil {
			return err
		}
		flds = append(flds, avatarField)
	}
	if id.hasXKeys {
		pubField, err := fields.NewField(fields.CRYPTO_PUBKEY, id.xPub[:])
		if err != nil {
			return err
		}
		flds = append(flds, pubField)
	}
	if hasIllustration {
		rel, err := cube.Relationship{Type: cube.ILLUSTRATION, Target: illustration}.Field()
		if err != nil {
			return err
		}
		flds = append(flds, rel)
	}
	for _, p := range posts {
		rel, err := cube.Relationship{Type: cube.MYPOST, Target: p}.Field()
		if err != nil {
			return err
		}
		flds = append(flds, rel)
	}

	chunks := chunkSubscriptions(subs)
	var rootSubs []cube.Key
	var tailChunks [][]cube.Key
	if len(chunks) > 0 {
		rootSubs = chunks[0]
		tailChunks = chunks[1:]
	}
	for _, s := range rootSubs {
		rel, err := cube.Relationship{Type: cube.SUBSCRIPTION_RECOMMENDATION, Target: s}.Field()
		if err != nil {
			return err
		}
		flds = append(flds, rel)
	}

	var extensions []*cube.Cube
	if len(tailChunks) > 0 {
		extensions, err = id.buildExtensions(tailChunks)
		if err != nil {
			return err
		}
		firstKey, err := extensionKey(*id.masterKey, 1)
		if err != nil {
			return err
		}
		rel, err := cube.Relationship{Type: cube.SUBSCRIPTION_RECOMMENDATION_INDEX, Target: firstKey}.Field()
		if err != nil {
			return err
		}
		flds = append(flds, rel)
	}

	root, err := cube.Create(cube.CreateParams{
		Type:               id.cfg.Variant,
		Fields:             flds,
		SigningKey:         id.signingKey,
		RequiredDifficulty: id.cfg.RequiredDifficulty,
	})
	if err != nil {
		return fmt.Errorf("identity: rebuild root: %w", err)
	}

	for i, ext := range extensions {
		if _, err := id.cs.AddCube(ctx, ext); err != nil {
			return fmt.Errorf("identity: rebuild extension %d: %w", i+1, err)
		}
	}
	if _, err := id.cs.AddCube(ctx, root); err != nil {
		return fmt.Errorf("identity: rebuild root: %w", err)
	}

	id.mu.Lock()
	id.extensionCount = len(extensions)
	id.mu.Unlock()
	return nil
}
