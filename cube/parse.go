package cube

import (
	"crypto/ed25519"

	"github.com/EliasOenal/verity-sub007/fields"
)

// Parse reconstructs a compiled Cube from its 1024-byte binary. The
// variable body is not decoded eagerly; call Fields to parse it on first
// use. This keeps admission-path parsing (Validate, GetKey, GetHash) free
// of TLV-walking cost, which matters on an adversarial input path.
func Parse(bin []byte) (*Cube, error) {
	if len(bin) != fields.FrameSize {
		return nil, cubeErr(ErrMalformedBinary, "binary is %d bytes, want %d", len(bin), fields.FrameSize)
	}
	version, t := FromByte(bin[0])
	if version != Version {
		return nil, cubeErr(ErrMalformedBinary, "unsupported protocol version %d", version)
	}
	c := &Cube{
		variant: t,
		def:     t.Definition(),
		binary:  append([]byte(nil), bin...),
	}
	return c, nil
}

// Binary returns the compiled frame. Panics if not compiled; callers must
// check IsCompiled first, matching the algebraic compiled/uncompiled split
// in spec.md §9.
func (c *Cube) Binary() []byte {
	if !c.IsCompiled() {
		panic("cube: Binary called on uncompiled Cube")
	}
	return append([]byte(nil), c.binary...)
}

// Fields decodes the full field list (positional plus TLV body) from the
// binary; the result is not cached, so each call decodes again. Requires
// a compiled Cube.
func (c *Cube) Fields() ([]fields.Field, error) {
	if !c.IsCompiled() {
		return nil, cubeErr(ErrNotCompiled, "fields requires a compiled cube")
	}
	return fields.Decode(c.def, c.binary)
}

// GetKey returns the Cube's CubeKey, derived per its lifecycle:
// FROZEN/FROZEN_NOTIFY hash the whole binary; PIC/PIC_NOTIFY hash the
// binary up to (excluding) DATE and NONCE; MUC/PMUC (+NOTIFY) use the
// signer's public key.
func (c *Cube) GetKey() (Key, error) {
	if !c.IsCompiled() {
		return Key{}, cubeErr(ErrNotCompiled, "get_key requires a compiled cube")
	}
	if c.hasKey {
		return c.key, nil
	}
	off := c.def.Offsets()
	var k Key
	switch {
	case c.variant.IsSigned():
		copy(k[:], c.binary[off.PubKey:off.PubKey+32])
	case c.variant.IsPIC():
		k = Hash256(c.binary[:off.Date])
	default:
		k = Hash256(c.binary)
	}
	c.key = k
	c.hasKey = true
	return k, nil
}

// GetHash returns SHA3-256 over the full 1024-byte binary, regardless of
// variant.
func (c *Cube) GetHash() (Key, error) {
	if !c.IsCompiled() {
		return Key{}, cubeErr(ErrNotCompiled, "get_hash requires a compiled cube")
	}
	return Hash256(c.binary), nil
}

// Difficulty returns the number of trailing zero bits in the Cube's hash —
// its achieved hashcash difficulty.
func (c *Cube) Difficulty() (int, error) {
	h, err := c.GetHash()
	if err != nil {
		return 0, err
	}
	return TrailingZeroBits(h), nil
}

// PublicKey returns the signer's public key for signed variants.
func (c *Cube) PublicKey() (ed25519.PublicKey, error) {
	if !c.variant.IsSigned() {
		return nil, cubeErr(ErrMissingKey, "%s is not signed", c.variant)
	}
	if !c.IsCompiled() {
		return ed25519.PublicKey(c.signingKey.Public().(ed25519.PublicKey)), nil
	}
	off := c.def.Offsets()
	return ed25519.PublicKey(append([]byte(nil), c.binary[off.PubKey:off.PubKey+32]...)), nil
}
