package veritum

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/EliasOenal/verity-sub007/crypto"
	"github.com/EliasOenal/verity-sub007/fields"
)

// sealedEntrySize is the per-recipient directory entry: a 32-byte X25519
// recipient key plus a sealed 32-byte ephemeral key (24-byte nonce +
// 32-byte key + 16-byte Poly1305 tag, per crypto.Software.Seal's layout).
const sealedEntrySize = 32 + (24 + 32 + 16)

// seal encrypts a serialized field list under a fresh ephemeral key, wraps
// that key for every recipient via X25519 key agreement from the sender's
// signing key, and returns the single ENCRYPTED field spec.md §4.4
// describes: version byte, sender's X25519 public key, recipient
// directory, then the sealed payload.
func seal(p crypto.Provider, senderSigningKey ed25519.PrivateKey, recipients []RecipientKey, body []fields.Field) (fields.Field, error) {
	if senderSigningKey == nil {
		return fields.Field{}, fmt.Errorf("veritum: seal: sender signing key required")
	}
	senderXPriv, err := p.X25519FromEd25519Private(senderSigningKey)
	if err != nil {
		return fields.Field{}, err
	}
	senderPub := senderSigningKey.Public().(ed25519.PublicKey)
	senderXPub, err := p.X25519FromEd25519Public(senderPub)
	if err != nil {
		return fields.Field{}, err
	}

	ephemeral := make([]byte, 32)
	if _, err := rand.Read(ephemeral); err != nil {
		return fields.Field{}, err
	}

	plaintext := serializeFields(body)
	ciphertext, err := p.Seal(ephemeral, plaintext, nil)
	if err != nil {
		return fields.Field{}, err
	}

	out := make([]byte, 0, 1+32+1+len(recipients)*sealedEntrySize+len(ciphertext))
	out = append(out, 0x00) // version
	out = append(out, senderXPub[:]...)
	if len(recipients) > 255 {
		return fields.Field{}, fmt.Errorf("veritum: seal: too many recipients (%d)", len(recipients))
	}
	out = append(out, byte(len(recipients)))
	for _, rec := range recipients {
		shared, err := p.X25519(senderXPriv, [32]byte(rec))
		if err != nil {
			return fields.Field{}, err
		}
		wrapped, err := p.Seal(shared[:], ephemeral, nil)
		if err != nil {
			return fields.Field{}, err
		}
		if len(wrapped) != sealedEntrySize-32 {
			return fields.Field{}, fmt.Errorf("veritum: seal: unexpected wrapped key size %d", len(wrapped))
		}
		out = append(out, rec[:]...)
		out = append(out, wrapped...)
	}
	out = append(out, ciphertext...)

	return fields.NewField(fields.ENCRYPTED, out)
}

// open reverses seal for a recipient holding recipientPrivateKey.
func open(p crypto.Provider, recipientPrivateKey ed25519.PrivateKey, value []byte) ([]fields.Field, error) {
	if len(value) < 1+32+1 {
		return nil, fmt.Errorf("veritum: open: encrypted field too short")
	}
	pos := 0
	version := value[pos]
	pos++
	if version != 0 {
		return nil, fmt.Errorf("veritum: open: unsupported version %d", version)
	}
	var senderXPub [32]byte
	copy(senderXPub[:], value[pos:pos+32])
	pos += 32
	count := int(value[pos])
	pos++

	recipientXPriv, err := p.X25519FromEd25519Private(recipientPrivateKey)
	if err != nil {
		return nil, err
	}
	recipientPub := recipientPrivateKey.Public().(ed25519.PublicKey)
	recipientXPub, err := p.X25519FromEd25519Public(recipientPub)
	if err != nil {
		return nil, err
	}

	var ephemeral []byte
	for i := 0; i < count; i++ {
		if pos+sealedEntrySize > len(value) {
			return nil, fmt.Errorf("veritum: open: truncated recipient directory")
		}
		entryPub := value[pos : pos+32]
		wrapped := value[pos+32 : pos+sealedEntrySize]
		pos += sealedEntrySize
		if [32]byte(recipientXPub) != [32]byte(entryPub) {
			continue
		}
		shared, err := p.X25519(recipientXPriv, senderXPub)
		if err != nil {
			return nil, err
		}
		ephemeral, err = p.Open(shared[:], wrapped, nil)
		if err != nil {
			return nil, fmt.Errorf("veritum: open: unwrap failed: %w", err)
		}
	}
	if ephemeral == nil {
		return nil, fmt.Errorf("veritum: open: recipient not found in directory")
	}

	plaintext, err := p.Open(ephemeral, value[pos:], nil)
	if err != nil {
		return nil, fmt.Errorf("veritum: open: %w", err)
	}
	return deserializeFields(plaintext)
}

// serializeFields encodes a field list as a simple length-prefixed stream:
// this is the plaintext that gets sealed, so it never touches the wire in
// this form and needs no backward-compatible format — only seal/open agree
// on it.
func serializeFields(flds []fields.Field) []byte {
	var out []byte
	hdr := make([]byte, 2)
	lenHdr := make([]byte, 4)
	for _, f := range flds {
		hdr[0] = byte(f.Type)
		binary.BigEndian.PutUint32(lenHdr, uint32(len(f.Value)))
		out = append(out, hdr[0])
		out = append(out, lenHdr...)
		out = append(out, f.Value...)
	}
	return out
}

func deserializeFields(b []byte) ([]fields.Field, error) {
	var out []fields.Field
	pos := 0
	for pos < len(b) {
		if pos+5 > len(b) {
			return nil, fmt.Errorf("veritum: deserialize: truncated header")
		}
		t := fields.Type(b[pos])
		n := int(binary.BigEndian.Uint32(b[pos+1 : pos+5]))
		pos += 5
		if pos+n > len(b) {
			return nil, fmt.Errorf("veritum: deserialize: truncated value")
		}
		out = append(out, fields.Field{Type: t, Value: append([]byte(nil), b[pos:pos+n]...)})
		pos += n
	}
	return out, nil
}
