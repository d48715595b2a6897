// Package crypto provides the narrow set of primitives the cube, veritum,
// and identity layers need, behind a small interface — the same shape as
// the teacher's CryptoProvider split (a sealed interface plus one software
// implementation), generalized from SHA3/ML-DSA stubs to this system's
// actual primitive set: SHA3-256, Ed25519, X25519, Argon2id, and
// XChaCha20-Poly1305.
package crypto

import "crypto/ed25519"

// Provider is the crypto backend used by every layer above it. Only one
// implementation exists today (Software); the interface exists so a
// hardware-backed implementation could be substituted at construction
// without touching call sites, per the "sealed set of component
// interfaces chosen at construction" design note.
type Provider interface {
	SHA3_256(input []byte) [32]byte

	Sign(priv ed25519.PrivateKey, msg []byte) []byte
	Verify(pub ed25519.PublicKey, msg, sig []byte) bool

	// X25519FromEd25519Private/Public convert a signing keypair to its
	// birationally-equivalent Montgomery (X25519) form for key agreement.
	X25519FromEd25519Private(priv ed25519.PrivateKey) ([32]byte, error)
	X25519FromEd25519Public(pub ed25519.PublicKey) ([32]byte, error)
	X25519(scalar, point [32]byte) ([32]byte, error)

	Argon2idKey(password, salt []byte, keyLen uint32, cpuHardness, memoryHardnessKiB uint32) []byte

	// Seal/Open implement XChaCha20-Poly1305 AEAD with a random 24-byte
	// nonce prepended to the ciphertext.
	Seal(key, plaintext, additionalData []byte) ([]byte, error)
	Open(key, sealed, additionalData []byte) ([]byte, error)
}
