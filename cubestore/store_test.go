package cubestore

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/fields"
)

func mustField(t *testing.T, ft fields.Type, v []byte) fields.Field {
	t.Helper()
	f, err := fields.NewField(ft, v)
	if err != nil {
		t.Fatalf("NewField(%s): %v", ft, err)
	}
	return f
}

func compileAt(t *testing.T, p cube.CreateParams, when time.Time) *cube.Cube {
	t.Helper()
	c, err := cube.Create(p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := c.SetDate(when); err != nil {
		t.Fatalf("SetDate: %v", err)
	}
	if err := c.Compile(context.Background()); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return c
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestAddCubeFrozenAdmitsAndDeduplicates(t *testing.T) {
	s := openTestStore(t)
	c := compileAt(t, cube.CreateParams{
		Type:   cube.FROZEN,
		Fields: []fields.Field{mustField(t, fields.PAYLOAD, []byte("Cubus demonstrativus"))},
	}, time.Unix(1_700_000_000, 0))

	info, err := s.AddCube(context.Background(), c.Binary())
	if err != nil {
		t.Fatalf("AddCube: %v", err)
	}
	if info == nil {
		t.Fatalf("expected admission, got nil")
	}

	has, err := s.HasCube(info.Key)
	if err != nil || !has {
		t.Fatalf("HasCube: has=%v err=%v", has, err)
	}

	// Re-submitting the identical binary is a no-op (same key, same
	// content): it ties the contest, the stored copy is kept, and the
	// resubmission is silently rejected rather than erroring.
	info2, err := s.AddCube(context.Background(), c.Binary())
	if err != nil {
		t.Fatalf("AddCube (resubmit): %v", err)
	}
	if info2 != nil {
		t.Fatalf("expected resubmit to lose the tie and report nil, got %+v", info2)
	}
	has, err = s.HasCube(info.Key)
	if err != nil || !has {
		t.Fatalf("HasCube after resubmit: has=%v err=%v", has, err)
	}
}

func TestAddCubeBelowDifficultyFloorRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequiredDifficulty = 200 // unreachable within the test's time budget
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })

	c := compileAt(t, cube.CreateParams{
		Type:   cube.FROZEN,
		Fields: []fields.Field{mustField(t, fields.PAYLOAD, []byte("x"))},
	}, time.Unix(1_700_000_000, 0))

	info, err := s.AddCube(context.Background(), c.Binary())
	if err != nil {
		t.Fatalf("AddCube: %v", err)
	}
	if info != nil {
		t.Fatalf("expected rejection below difficulty floor")
	}
}

func TestAddCubeMUCNewerDateWins(t *testing.T) {
	s := openTestStore(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	_ = pub

	older := compileAt(t, cube.CreateParams{
		Type:       cube.MUC,
		SigningKey: priv,
		Fields:     []fields.Field{mustField(t, fields.PAYLOAD, []byte("v1"))},
	}, time.Unix(1_700_000_000, 0))
	newer := compileAt(t, cube.CreateParams{
		Type:       cube.MUC,
		SigningKey: priv,
		Fields:     []fields.Field{mustField(t, fields.PAYLOAD, []byte("v2"))},
	}, time.Unix(1_700_000_100, 0))

	if _, err := s.AddCube(context.Background(), older.Binary()); err != nil {
		t.Fatalf("AddCube(older): %v", err)
	}
	info, err := s.AddCube(context.Background(), newer.Binary())
	if err != nil {
		t.Fatalf("AddCube(newer): %v", err)
	}
	if info == nil {
		t.Fatalf("expected newer MUC to win the contest")
	}

	// An older resubmission loses silently.
	stale, err := s.AddCube(context.Background(), older.Binary())
	if err != nil {
		t.Fatalf("AddCube(stale): %v", err)
	}
	if stale != nil {
		t.Fatalf("expected stale MUC to lose the contest")
	}

	stored, err := s.GetCube(info.Key)
	if err != nil {
		t.Fatalf("GetCube: %v", err)
	}
	flds, err := stored.Fields()
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	payload, ok := fields.FirstOfType(flds, fields.PAYLOAD)
	if !ok || string(payload.Value) != "v2" {
		t.Fatalf("expected stored MUC to carry v2's payload")
	}
}

func TestAddCubePMUCAutoIncrementsUpdateCount(t *testing.T) {
	s := openTestStore(t)
	_, priv, _ := ed25519.GenerateKey(nil)

	first, err := cube.Create(cube.CreateParams{
		Type:       cube.PMUC,
		SigningKey: priv,
		Fields:     []fields.Field{mustField(t, fields.PAYLOAD, []byte("v1"))},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	info1, err := s.AddCube(context.Background(), first)
	if err != nil {
		t.Fatalf("AddCube(first): %v", err)
	}
	if info1 == nil || info1.UpdateCount != 1 {
		t.Fatalf("expected first PMUC store to get update count 1, got %+v", info1)
	}

	second, err := cube.Create(cube.CreateParams{
		Type:       cube.PMUC,
		SigningKey: priv,
		Fields:     []fields.Field{mustField(t, fields.PAYLOAD, []byte("v2"))},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	info2, err := s.AddCube(context.Background(), second)
	if err != nil {
		t.Fatalf("AddCube(second): %v", err)
	}
	if info2 == nil || info2.UpdateCount != 2 {
		t.Fatalf("expected second PMUC store to auto-increment to 2, got %+v", info2)
	}
	if info2.Key != info1.Key {
		t.Fatalf("expected both PMUC versions to share a key")
	}
}

func TestAddCubeTypeConflictErrors(t *testing.T) {
	s := openTestStore(t)
	_, priv, _ := ed25519.GenerateKey(nil)

	muc := compileAt(t, cube.CreateParams{
		Type:       cube.MUC,
		SigningKey: priv,
		Fields:     []fields.Field{mustField(t, fields.PAYLOAD, []byte("v1"))},
	}, time.Unix(1_700_000_000, 0))
	if _, err := s.AddCube(context.Background(), muc.Binary()); err != nil {
		t.Fatalf("AddCube(muc): %v", err)
	}

	pmuc, err := cube.Create(cube.CreateParams{
		Type:        cube.PMUC,
		SigningKey:  priv,
		UpdateCount: 1,
		Fields:      []fields.Field{mustField(t, fields.PAYLOAD, []byte("v1"))},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := pmuc.SetDate(time.Unix(1_700_000_000, 0)); err != nil {
		t.Fatalf("SetDate: %v", err)
	}
	if err := pmuc.Compile(context.Background()); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	_, err = s.AddCube(context.Background(), pmuc.Binary())
	if err == nil {
		t.Fatalf("expected a type conflict error admitting a PMUC at a MUC's key")
	}
}

func TestNotificationDelivery(t *testing.T) {
	s := openTestStore(t)
	var got cube.Key
	fired := false
	unregister := s.OnNotificationAdded(func(recipient cube.Key, c *cube.Cube) {
		got = recipient
		fired = true
	})
	defer unregister()

	recipient := cube.Key{1, 2, 3}
	c := compileAt(t, cube.CreateParams{
		Type:   cube.FROZEN_NOTIFY,
		Fields: []fields.Field{mustField(t, fields.NOTIFY, recipient.Bytes())},
	}, time.Unix(1_700_000_000, 0))

	if _, err := s.AddCube(context.Background(), c.Binary()); err != nil {
		t.Fatalf("AddCube: %v", err)
	}
	if !fired {
		t.Fatalf("expected OnNotificationAdded to fire")
	}
	if got != recipient {
		t.Fatalf("expected notification for %s, got %s", recipient, got)
	}

	notes, err := s.GetNotifications(recipient, RangeOptions{})
	if err != nil {
		t.Fatalf("GetNotifications: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notes))
	}
}

func TestRangeByDateOrdersAndBounds(t *testing.T) {
	s := openTestStore(t)
	var keys []cube.Key
	for i, ts := range []int64{1_700_000_000, 1_700_000_100, 1_700_000_200} {
		c := compileAt(t, cube.CreateParams{
			Type:   cube.FROZEN,
			Fields: []fields.Field{mustField(t, fields.PAYLOAD, []byte{byte(i)})},
		}, time.Unix(ts, 0))
		info, err := s.AddCube(context.Background(), c.Binary())
		if err != nil {
			t.Fatalf("AddCube: %v", err)
		}
		keys = append(keys, info.Key)
	}

	lo := int64(1_700_000_050)
	hi := int64(1_700_000_150)
	rows, err := s.RangeByDate(allRecipient, RangeOptions{Gte: &lo, Lte: &hi})
	if err != nil {
		t.Fatalf("RangeByDate: %v", err)
	}
	if len(rows) != 1 || rows[0].Key != keys[1] {
		t.Fatalf("expected exactly the middle row in range, got %d rows", len(rows))
	}

	all, err := s.RangeByDate(allRecipient, RangeOptions{Reverse: true})
	if err != nil {
		t.Fatalf("RangeByDate(reverse): %v", err)
	}
	if len(all) != 3 || all[0].Key != keys[2] || all[2].Key != keys[0] {
		t.Fatalf("expected reverse-chronological order, got %+v", all)
	}
}
