package cube

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/EliasOenal/verity-sub007/fields"
)

func mustPayload(t *testing.T, s string) fields.Field {
	t.Helper()
	f, err := fields.NewField(fields.PAYLOAD, []byte(s))
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f
}

func TestScenario1_FrozenRoundTrip(t *testing.T) {
	c, err := Create(CreateParams{
		Type:               FROZEN,
		Fields:             []fields.Field{mustPayload(t, "Cubus demonstrativus")},
		RequiredDifficulty: 0,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := c.Compile(context.Background()); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	parsed, err := Parse(c.Binary())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	flds, err := parsed.Fields()
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	got, ok := fields.FirstOfType(flds, fields.PAYLOAD)
	if !ok {
		t.Fatalf("PAYLOAD field missing")
	}
	if string(got.Value) != "Cubus demonstrativus" {
		t.Fatalf("PAYLOAD = %q", got.Value)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	c, err := Create(CreateParams{Type: FROZEN, Fields: []fields.Field{mustPayload(t, "x")}})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Compile(context.Background()); err != nil {
		t.Fatal(err)
	}
	bin := c.Binary()
	key, _ := c.GetKey()

	c2, err := Parse(bin)
	if err != nil {
		t.Fatal(err)
	}
	if string(c2.Binary()) != string(bin) {
		t.Fatalf("binary mismatch after reparse")
	}
	key2, _ := c2.GetKey()
	if key != key2 {
		t.Fatalf("key mismatch after reparse: %s vs %s", key, key2)
	}
}

func TestKeyLaw_FrozenIsFullHash(t *testing.T) {
	c, _ := Create(CreateParams{Type: FROZEN, Fields: []fields.Field{mustPayload(t, "x")}})
	_ = c.Compile(context.Background())
	key, _ := c.GetKey()
	want := Hash256(c.Binary())
	if key != Key(want) {
		t.Fatalf("FROZEN key should be full-binary hash")
	}
}

func TestKeyLaw_PICExcludesDateAndNonce(t *testing.T) {
	c, _ := Create(CreateParams{Type: PIC, Fields: []fields.Field{mustPayload(t, "x")}})
	_ = c.Compile(context.Background())
	off := c.def.Offsets()
	want := Hash256(c.Binary()[:off.Date])
	key, _ := c.GetKey()
	if key != Key(want) {
		t.Fatalf("PIC key should exclude DATE and NONCE")
	}
}

func TestKeyLaw_MUCIsPublicKey(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	c, err := Create(CreateParams{Type: MUC, SigningKey: priv, Fields: []fields.Field{mustPayload(t, "x")}})
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Compile(context.Background())
	key, _ := c.GetKey()
	if string(key[:]) != string(pub) {
		t.Fatalf("MUC key should equal signer public key")
	}
}

func TestSignatureLaw(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	c, _ := Create(CreateParams{Type: MUC, SigningKey: priv, Fields: []fields.Field{mustPayload(t, "x")}})
	_ = c.Compile(context.Background())
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestHashcashLaw(t *testing.T) {
	c, _ := Create(CreateParams{Type: FROZEN, Fields: []fields.Field{mustPayload(t, "x")}, RequiredDifficulty: 8})
	if err := c.Compile(context.Background()); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	d, err := c.Difficulty()
	if err != nil {
		t.Fatal(err)
	}
	if d < 8 {
		t.Fatalf("difficulty %d below required 8", d)
	}
}

func TestScenario3_PMUCUpdateCountDefaultsToZero(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	c, _ := Create(CreateParams{Type: PMUC, SigningKey: priv, Fields: []fields.Field{mustPayload(t, "x")}})
	_ = c.Compile(context.Background())
	cnt, err := c.GetUpdateCount()
	if err != nil {
		t.Fatal(err)
	}
	if cnt != 0 {
		t.Fatalf("expected update count 0 before store auto-increment, got %d", cnt)
	}
}

func TestNotifyVariantRequiresNotifyField(t *testing.T) {
	_, err := Create(CreateParams{Type: FROZEN_NOTIFY, Fields: []fields.Field{mustPayload(t, "x")}})
	if err == nil {
		t.Fatalf("expected error for missing NOTIFY field")
	}
}

func TestSignedVariantRequiresSigningKey(t *testing.T) {
	_, err := Create(CreateParams{Type: MUC, Fields: []fields.Field{mustPayload(t, "x")}})
	if err == nil {
		t.Fatalf("expected error for missing signing key")
	}
}
