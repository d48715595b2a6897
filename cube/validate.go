package cube

import "crypto/ed25519"

// Validate checks the structural invariants from spec.md §3: total length,
// signature (for signed variants), and PMUC_UPDATE_COUNT presence (for
// PMUC variants). It does not check hashcash against a difficulty floor —
// that floor is a CubeStore-level configuration value, not something a
// Cube carries; callers compare Difficulty() against their own floor as a
// separate step, matching the distinct steps 2 and 3 of CubeStore.addCube.
func (c *Cube) Validate() error {
	if !c.IsCompiled() {
		return cubeErr(ErrNotCompiled, "validate requires a compiled cube")
	}
	if len(c.binary) != 1024 {
		return cubeErr(ErrMalformedBinary, "binary is %d bytes, want 1024", len(c.binary))
	}
	if c.variant.IsNotify() {
		off := c.def.Offsets()
		if off.Notify < 0 {
			return cubeErr(ErrNotifyFieldInvalid, "%s missing NOTIFY offset", c.variant)
		}
	}
	if c.variant.IsPMUC() {
		off := c.def.Offsets()
		if off.PMUCCnt < 0 {
			return cubeErr(ErrBadUpdateCount, "%s missing PMUC_UPDATE_COUNT offset", c.variant)
		}
	}
	if c.variant.IsSigned() {
		off := c.def.Offsets()
		pub := ed25519.PublicKey(c.binary[off.PubKey : off.PubKey+32])
		sig := c.binary[off.Sig : off.Sig+64]
		if !ed25519.Verify(pub, signedRegion(c.binary, off), sig) {
			return cubeErr(ErrSignatureInvalid, "signature does not verify")
		}
	}
	return nil
}
