package identity

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/cubestore"
)

func openTestStore(t *testing.T) *cubestore.Store {
	t.Helper()
	s, err := cubestore.Open(cubestore.DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestCreateStoreLoadRoundTrip(t *testing.T) {
	cs := openTestStore(t)
	ctx := context.Background()

	id, err := Create(ctx, cs, "Identitas stabilis", "Clavis stabilis", DefaultConfig(), CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !id.CanStore() {
		t.Fatalf("expected a self-owned identity to be able to store")
	}
	t.Cleanup(id.Shutdown)

	loaded, err := Load(cs, "Identitas stabilis", "Clavis stabilis", DefaultConfig())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected Load to find the stored root")
	}
	if loaded.Key() != id.Key() {
		t.Fatalf("loaded key mismatch: got %s want %s", loaded.Key(), id.Key())
	}
	if loaded.Username() != "Identitas stabilis" {
		t.Fatalf("username mismatch: %q", loaded.Username())
	}
}

func TestScenario5MasterKeyVector(t *testing.T) {
	const wantMaster = "d8eabeb1ab3592fc1dfcc9434e42db8d213c5312c2e9446dcb7915c11d9d65e3"
	const wantPub = "cc5fe0e80bad6db35723f578aa57c074f9bc00866fa9d206686f25f542118ce2"

	cfg := DefaultConfig()
	master := deriveMasterKey(cfg.Provider, "Identitas stabilis", "Clavis stabilis", cfg.ArgonCPUHardness, cfg.ArgonMemoryHardness)
	if got := hex.EncodeToString(master[:]); got != wantMaster {
		t.Fatalf("master key: got %s want %s", got, wantMaster)
	}

	signingKey := deriveSigningKey(master)
	pub := signingKey.Public().(ed25519.PublicKey)
	if got := hex.EncodeToString(pub); got != wantPub {
		t.Fatalf("signing public key: got %s want %s", got, wantPub)
	}
}

func TestLoadMissingReturnsNilNotError(t *testing.T) {
	cs := openTestStore(t)
	id, err := Load(cs, "nobody", "nopass", DefaultConfig())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id != nil {
		t.Fatalf("expected nil for an identity never created")
	}
}

func TestAddPostIdempotent(t *testing.T) {
	cs := openTestStore(t)
	ctx := context.Background()
	id, err := Create(ctx, cs, "poster", "pass", DefaultConfig(), CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(id.Shutdown)

	var k cube.Key
	k[0] = 0x42
	id.AddPost(k)
	id.AddPost(k)
	if id.GetPostCount() != 1 {
		t.Fatalf("expected idempotent AddPost to leave count at 1, got %d", id.GetPostCount())
	}
	if !id.HasPost(k) {
		t.Fatalf("expected HasPost to find the recorded key")
	}
}

func TestSubscriptionsSpillIntoExtensionChain(t *testing.T) {
	cs := openTestStore(t)
	ctx := context.Background()
	// A zero rebuild window makes every Store rebuild at once instead of
	// being coalesced behind the Store that Create already made.
	cfg := DefaultConfig()
	cfg.MinMucRebuildDelay = 0
	id, err := Create(ctx, cs, "subscriber", "pass", cfg, CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(id.Shutdown)

	for i := 0; i < 40; i++ {
		var k cube.Key
		k[0] = byte(i)
		k[1] = byte(i >> 8)
		id.AddPublicSubscription(k)
	}
	if err := id.Store(ctx); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if id.GetPublicSubscriptionCount() != 40 {
		t.Fatalf("expected 40 subscriptions recorded, got %d", id.GetPublicSubscriptionCount())
	}
	if id.extensionCount != 2 {
		t.Fatalf("expected exactly 2 extension cubes for 40 subscriptions, got %d", id.extensionCount)
	}

	firstExtKeyBefore, err := extensionKey(*id.masterKey, 1)
	if err != nil {
		t.Fatalf("extensionKey: %v", err)
	}

	var extra cube.Key
	extra[0] = 0xff
	id.AddPublicSubscription(extra)
	if err := id.Store(ctx); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if id.extensionCount != 2 {
		t.Fatalf("expected still exactly 2 extension cubes for 41 subscriptions, got %d", id.extensionCount)
	}

	firstExtKeyAfter, err := extensionKey(*id.masterKey, 1)
	if err != nil {
		t.Fatalf("extensionKey: %v", err)
	}
	if firstExtKeyBefore != firstExtKeyAfter {
		t.Fatalf("expected the first extension's derived key to be stable across appends")
	}

	reloaded, err := Construct(cs, func() *cube.Cube {
		c, err := cs.GetCube(id.Key())
		if err != nil {
			t.Fatalf("GetCube: %v", err)
		}
		return c
	}(), DefaultConfig())
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if reloaded.GetPublicSubscriptionCount() != 41 {
		t.Fatalf("expected reconstruction to recover all 41 subscriptions, got %d", reloaded.GetPublicSubscriptionCount())
	}
}

func TestRecursiveWebOfSubscriptionsToleratesCycles(t *testing.T) {
	cs := openTestStore(t)
	ctx := context.Background()
	// A zero rebuild window makes each Store below persist the cycle at once.
	cfg := DefaultConfig()
	cfg.MinMucRebuildDelay = 0
	a, err := Create(ctx, cs, "alice", "pass", cfg, CreateOptions{})
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	t.Cleanup(a.Shutdown)
	b, err := Create(ctx, cs, "bob", "pass", cfg, CreateOptions{})
	if err != nil {
		t.Fatalf("Create b: %v", err)
	}
	t.Cleanup(b.Shutdown)

	// a subscribes to b, b subscribes to a: a cycle.
	a.AddPublicSubscription(b.Key())
	if err := a.Store(ctx); err != nil {
		t.Fatalf("Store a: %v", err)
	}
	b.AddPublicSubscription(a.Key())
	if err := b.Store(ctx); err != nil {
		t.Fatalf("Store b: %v", err)
	}

	web, err := a.RecursiveWebOfSubscriptions(3)
	if err != nil {
		t.Fatalf("RecursiveWebOfSubscriptions: %v", err)
	}
	if len(web) != 1 || web[0] != b.Key() {
		t.Fatalf("expected the cyclic web to resolve to exactly {b}, got %v", web)
	}
}

func TestGetPostsFormatCube(t *testing.T) {
	cs := openTestStore(t)
	ctx := context.Background()
	id, err := Create(ctx, cs, "poster2", "pass", DefaultConfig(), CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(id.Shutdown)

	c, err := cube.Create(cube.CreateParams{Type: cube.FROZEN})
	if err != nil {
		t.Fatalf("cube.Create: %v", err)
	}
	if err := c.Compile(ctx); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := cs.AddCube(ctx, c.Binary()); err != nil {
		t.Fatalf("AddCube: %v", err)
	}
	k, err := c.GetKey()
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	id.AddPost(k)

	it := id.GetPosts(FormatCube)
	p, err := it.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if p == nil || p.Key != k {
		t.Fatalf("expected the recorded post back, got %+v", p)
	}
	p, err = it.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if p != nil {
		t.Fatalf("expected the sequence to be exhausted, got %+v", p)
	}
}
