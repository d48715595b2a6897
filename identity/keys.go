package identity

import (
	"crypto/ed25519"

	"github.com/EliasOenal/verity-sub007/crypto"
)

// masterKeySalt is the fixed salt Argon2id runs the master-key derivation
// under. Spec.md §4.5 names only two inputs, "Argon2id over (username ||
// passphrase)", with no separate salt parameter; a fixed all-zero salt is
// the literal reading of that text rather than an invented third input.
// TestScenario5MasterKeyVector checks the result against the §8 scenario-5
// vector; DESIGN.md's Open Question ledger records that the match has not
// been confirmed by a run.
var masterKeySalt [16]byte

// deriveMasterKey turns a username/passphrase pair into the 32-byte master
// key spec.md §4.5 derives via Argon2id.
func deriveMasterKey(p crypto.Provider, username, passphrase string, cpuHardness, memoryHardnessKiB uint32) [32]byte {
	key := p.Argon2idKey([]byte(username+passphrase), masterKeySalt[:], 32, cpuHardness, memoryHardnessKiB)
	var out [32]byte
	copy(out[:], key)
	return out
}

// deriveSigningKey derives the Ed25519 signing keypair from the master key,
// matching the reference's libsodium seed-keypair primitive: the seed IS
// the 32-byte master key.
func deriveSigningKey(masterKey [32]byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(masterKey[:])
}

// avatarContext and extensionContext are domain-separation labels for
// subkey derivation off the master key, so the avatar seed, extension
// signing keys, and the master key itself never collide as inputs to
// SHA3-256.
const avatarContext = "avatar seed"
const extensionContext = "MUC extension key"

// deriveAvatarSeed computes the deterministic 5-byte avatar seed spec.md
// §4.5 assigns when the caller doesn't supply one.
func deriveAvatarSeed(p crypto.Provider, masterKey [32]byte) [5]byte {
	h := p.SHA3_256(append([]byte(nil), append(masterKey[:], []byte(avatarContext)...)...))
	var out [5]byte
	copy(out[:], h[:5])
	return out
}

// deriveExtensionSigningKey derives extension index n's (1-based) signing
// keypair. Because it depends only on the master key and n, every
// extension's key (and therefore its CubeKey, since MUC/PMUC keys are
// signer-pubkey-stable) is fixed the moment the identity exists, regardless
// of how the subscription list is later chunked — satisfying spec.md §4.5's
// "prior index Cubes preserve their keys" guarantee.
func deriveExtensionSigningKey(masterKey [32]byte, n int) ed25519.PrivateKey {
	p := crypto.Software{}
	seed := p.SHA3_256(append(append([]byte(nil), masterKey[:]...), append([]byte(extensionContext), byte(n))...))
	return ed25519.NewKeyFromSeed(seed[:])
}
