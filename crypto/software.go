package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/sha3"
)

// Software is the development/production software Provider — no hardware
// module is available or required by this system (see DESIGN.md for why
// the teacher's HSM/wolfCrypt provider split was dropped). It is stateless
// and safe for concurrent use (the spec's single-threaded cooperative
// model never calls it from two goroutines on the same Identity anyway).
type Software struct{}

var _ Provider = Software{}

func (Software) SHA3_256(input []byte) [32]byte {
	return sha3.Sum256(input)
}

func (Software) Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

func (Software) Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}

func (Software) X25519FromEd25519Private(priv ed25519.PrivateKey) ([32]byte, error) {
	return ed25519SeedToX25519Private(priv)
}

func (Software) X25519FromEd25519Public(pub ed25519.PublicKey) ([32]byte, error) {
	return ed25519PublicToX25519Public(pub)
}

func (Software) X25519(scalar, point [32]byte) ([32]byte, error) {
	out, err := curve25519.X25519(scalar[:], point[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("crypto: x25519: %w", err)
	}
	var fixed [32]byte
	copy(fixed[:], out)
	return fixed, nil
}

func (Software) Argon2idKey(password, salt []byte, keyLen, cpuHardness, memoryHardnessKiB uint32) []byte {
	const parallelism = 1
	return argon2.IDKey(password, salt, cpuHardness, memoryHardnessKiB, parallelism, keyLen)
}

// Seal encrypts plaintext with XChaCha20-Poly1305 under key, prepending a
// fresh random 24-byte nonce to the returned ciphertext.
func (Software) Seal(key, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: seal: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: seal: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open decrypts a value produced by Seal.
func (Software) Open(key, sealed, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: open: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("crypto: open: sealed value too short")
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, additionalData)
	if err != nil {
		return nil, fmt.Errorf("crypto: open: %w", err)
	}
	return pt, nil
}
