package cube

import "golang.org/x/crypto/sha3"

// Hash256 returns SHA3-256(b).
func Hash256(b []byte) [32]byte {
	return sha3.Sum256(b)
}

// TrailingZeroBits counts the number of trailing zero bits in h, treating h
// as a big-endian bit string (the hashcash admission gate in spec.md §3,
// invariant (ii)).
func TrailingZeroBits(h [32]byte) int {
	count := 0
	for i := len(h) - 1; i >= 0; i-- {
		b := h[i]
		if b == 0 {
			count += 8
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				return count + bit
			}
		}
	}
	return count
}

// MeetsDifficulty reports whether h has at least required trailing zero
// bits. required == 0 is the "no hashcash" test setting: every hash meets it.
func MeetsDifficulty(h [32]byte, required uint8) bool {
	return TrailingZeroBits(h) >= int(required)
}
