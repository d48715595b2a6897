package crypto

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"
	"math/big"
)

// fieldPrime is 2^255-19, the field Curve25519/Ed25519 operate over.
var fieldPrime = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 255)
	p.Sub(p, big.NewInt(19))
	return p
}()

// ed25519SeedToX25519Private converts an Ed25519 signing key's 32-byte seed
// into an X25519 private scalar, matching libsodium's
// crypto_sign_ed25519_sk_to_curve25519: hash the seed with SHA-512, take
// the first 32 bytes, clamp.
func ed25519SeedToX25519Private(priv ed25519.PrivateKey) ([32]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return [32]byte{}, fmt.Errorf("crypto: invalid ed25519 private key size %d", len(priv))
	}
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	var out [32]byte
	copy(out[:], h[:32])
	out[0] &= 248
	out[31] &= 127
	out[31] |= 64
	return out, nil
}

// ed25519PublicToX25519Public converts an Ed25519 public key (an Edwards
// curve point) to its birationally-equivalent Montgomery u-coordinate:
// u = (1+y) / (1-y) mod p, where y is the Edwards point's y-coordinate
// recovered from the encoded public key (sign bit of x masked off).
func ed25519PublicToX25519Public(pub ed25519.PublicKey) ([32]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return [32]byte{}, fmt.Errorf("crypto: invalid ed25519 public key size %d", len(pub))
	}
	yBytes := make([]byte, 32)
	copy(yBytes, pub)
	yBytes[31] &= 0x7F // clear sign bit of x

	y := leBytesToInt(yBytes)

	one := big.NewInt(1)
	num := new(big.Int).Add(one, y)
	num.Mod(num, fieldPrime)
	den := new(big.Int).Sub(one, y)
	den.Mod(den, fieldPrime)
	denInv := new(big.Int).ModInverse(den, fieldPrime)
	if denInv == nil {
		return [32]byte{}, fmt.Errorf("crypto: public key has no valid curve conversion")
	}
	u := new(big.Int).Mul(num, denInv)
	u.Mod(u, fieldPrime)

	var out [32]byte
	intToLEBytes(u, out[:])
	return out, nil
}

func leBytesToInt(b []byte) *big.Int {
	rev := make([]byte, len(b))
	for i, v := range b {
		rev[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(rev)
}

func intToLEBytes(x *big.Int, out []byte) {
	be := x.Bytes()
	for i, v := range be {
		out[len(be)-1-i] = v
	}
}
