package crypto

import (
	"bytes"
	"crypto/ed25519"
	"testing"
)

func TestX25519ConversionAgreement(t *testing.T) {
	p := Software{}
	aPub, aPriv, _ := ed25519.GenerateKey(nil)
	bPub, bPriv, _ := ed25519.GenerateKey(nil)

	aX, err := p.X25519FromEd25519Private(aPriv)
	if err != nil {
		t.Fatal(err)
	}
	bXPub, err := p.X25519FromEd25519Public(bPub)
	if err != nil {
		t.Fatal(err)
	}
	bX, err := p.X25519FromEd25519Private(bPriv)
	if err != nil {
		t.Fatal(err)
	}
	aXPub, err := p.X25519FromEd25519Public(aPub)
	if err != nil {
		t.Fatal(err)
	}

	sharedA, err := p.X25519(aX, bXPub)
	if err != nil {
		t.Fatal(err)
	}
	sharedB, err := p.X25519(bX, aXPub)
	if err != nil {
		t.Fatal(err)
	}
	if sharedA != sharedB {
		t.Fatalf("shared secrets differ: %x vs %x", sharedA, sharedB)
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	p := Software{}
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("Cubus demonstrativus")
	sealed, err := p.Seal(key, plaintext, []byte("aad"))
	if err != nil {
		t.Fatal(err)
	}
	opened, err := p.Open(key, sealed, []byte("aad"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: %q", opened)
	}
	if _, err := p.Open(key, sealed, []byte("wrong")); err == nil {
		t.Fatalf("expected AEAD failure with wrong associated data")
	}
}

func TestArgon2idDeterministic(t *testing.T) {
	p := Software{}
	k1 := p.Argon2idKey([]byte("Identitas stabilis"), []byte("Clavis stabilis"), 32, 3, 64*1024)
	k2 := p.Argon2idKey([]byte("Identitas stabilis"), []byte("Clavis stabilis"), 32, 3, 64*1024)
	if !bytes.Equal(k1, k2) {
		t.Fatalf("argon2id key derivation is not deterministic")
	}
}

func TestSignVerify(t *testing.T) {
	p := Software{}
	pub, priv, _ := ed25519.GenerateKey(nil)
	sig := p.Sign(priv, []byte("msg"))
	if !p.Verify(pub, []byte("msg"), sig) {
		t.Fatalf("signature should verify")
	}
	if p.Verify(pub, []byte("other"), sig) {
		t.Fatalf("signature should not verify over a different message")
	}
}
