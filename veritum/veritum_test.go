package veritum

import (
	"context"
	"crypto/ed25519"
	"testing"

	vcrypto "github.com/EliasOenal/verity-sub007/crypto"
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

func TestCompileSingleChunkRoundTrip(t *testing.T) {
	v, err := Compile(context.Background(), CompileOptions{
		RootType: cube.FROZEN,
		Fields:   []fields.Field{mustField(t, fields.PAYLOAD, []byte("Cubus demonstrativus"))},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(v.Chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(v.Chunks))
	}

	got, err := FromChunks(v.Chunks, FromChunksOptions{})
	if err != nil {
		t.Fatalf("FromChunks: %v", err)
	}
	payload, ok := fields.FirstOfType(got, fields.PAYLOAD)
	if !ok || string(payload.Value) != "Cubus demonstrativus" {
		t.Fatalf("payload mismatch: %+v", got)
	}
}

func TestCompileMultiChunkChains(t *testing.T) {
	big := make([]byte, 2000)
	for i := range big {
		big[i] = byte(i)
	}
	v, err := Compile(context.Background(), CompileOptions{
		RootType: cube.FROZEN,
		Fields:   []fields.Field{mustField(t, fields.PAYLOAD, big)},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(v.Chunks) < 2 {
		t.Fatalf("expected the oversized payload to span multiple chunks, got %d", len(v.Chunks))
	}

	for i := 0; i < len(v.Chunks)-1; i++ {
		flds, err := v.Chunks[i].Fields()
		if err != nil {
			t.Fatalf("Fields(%d): %v", i, err)
		}
		rels := cube.Relationships(flds, cube.CONTINUED_IN)
		if len(rels) != 1 {
			t.Fatalf("chunk %d: expected exactly one CONTINUED_IN, got %d", i, len(rels))
		}
		nextKey, err := v.Chunks[i+1].GetKey()
		if err != nil {
			t.Fatalf("GetKey(%d): %v", i+1, err)
		}
		if rels[0].Target != nextKey {
			t.Fatalf("chunk %d: CONTINUED_IN does not point at chunk %d", i, i+1)
		}
	}

	got, err := FromChunks(v.Chunks, FromChunksOptions{})
	if err != nil {
		t.Fatalf("FromChunks: %v", err)
	}
	payload, ok := fields.FirstOfType(got, fields.PAYLOAD)
	if !ok || len(payload.Value) != len(big) {
		t.Fatalf("expected reassembled payload of %d bytes, got %d", len(big), len(payload.Value))
	}
	for i := range big {
		if payload.Value[i] != big[i] {
			t.Fatalf("payload mismatch at byte %d", i)
		}
	}
}

func TestCompileEncryptedRoundTrip(t *testing.T) {
	p := vcrypto.Software{}
	senderPub, senderPriv, _ := ed25519.GenerateKey(nil)
	_ = senderPub
	recipientPub, recipientPriv, _ := ed25519.GenerateKey(nil)

	recipientXPub, err := p.X25519FromEd25519Public(recipientPub)
	if err != nil {
		t.Fatalf("X25519FromEd25519Public: %v", err)
	}

	v, err := Compile(context.Background(), CompileOptions{
		RootType:         cube.FROZEN,
		Fields:           []fields.Field{mustField(t, fields.PAYLOAD, []byte("secretum"))},
		Recipients:       []RecipientKey{RecipientKey(recipientXPub)},
		SenderSigningKey: senderPriv,
		Provider:         p,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	flds, err := v.Chunks[0].Fields()
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if _, ok := fields.FirstOfType(flds, fields.PAYLOAD); ok {
		t.Fatalf("plaintext PAYLOAD must not survive encryption")
	}
	if _, ok := fields.FirstOfType(flds, fields.ENCRYPTED); !ok {
		t.Fatalf("expected an ENCRYPTED field")
	}

	got, err := FromChunks(v.Chunks, FromChunksOptions{RecipientPrivateKey: recipientPriv, Provider: p})
	if err != nil {
		t.Fatalf("FromChunks: %v", err)
	}
	payload, ok := fields.FirstOfType(got, fields.PAYLOAD)
	if !ok || string(payload.Value) != "secretum" {
		t.Fatalf("decrypted payload mismatch: %+v", got)
	}
}

func TestFromChunksTruncatesOnMissingChunk(t *testing.T) {
	big := make([]byte, 2000)
	v, err := Compile(context.Background(), CompileOptions{
		RootType: cube.FROZEN,
		Fields:   []fields.Field{mustField(t, fields.PAYLOAD, big)},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(v.Chunks) < 2 {
		t.Fatalf("expected multiple chunks")
	}

	truncated := append([]*cube.Cube(nil), v.Chunks[:1]...)
	got, err := FromChunks(truncated, FromChunksOptions{})
	if err != nil {
		t.Fatalf("FromChunks: %v", err)
	}
	payload, ok := fields.FirstOfType(got, fields.PAYLOAD)
	if !ok {
		t.Fatalf("expected the first chunk's partial payload")
	}
	if len(payload.Value) >= len(big) {
		t.Fatalf("expected a truncated payload, got full length")
	}
}
