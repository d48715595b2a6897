package cube

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"time"

	"github.com/EliasOenal/verity-sub007/fields"
)

// Cube is either an uncompiled, in-memory field set or a compiled,
// 1024-byte binary record. The zero value is not valid; use Create or
// Parse.
type Cube struct {
	variant Type
	def     fields.Definition

	// uncompiled state: body fields supplied by the caller, plus whichever
	// positional fields (NOTIFY, PUBLIC_KEY is derived not stored here)
	// the caller chose to pre-set.
	pending            []fields.Field
	signingKey         ed25519.PrivateKey
	requiredDifficulty uint8
	explicitDate       *int64
	updateCount        uint32

	binary []byte // nil until compiled
	key    Key
	hasKey bool
}

// CreateParams are the inputs to Create.
type CreateParams struct {
	Type               Type
	Fields             []fields.Field // body fields; include NOTIFY for notify variants
	SigningKey         ed25519.PrivateKey
	RequiredDifficulty uint8
	Date               *int64 // optional pre-set seconds-since-epoch
	UpdateCount        uint32 // explicit PMUC update count; 0 lets the store auto-increment
}

// Create builds an uncompiled Cube. It performs construction-time
// validation only (signed variants require a signing key, notify variants
// require exactly one well-formed NOTIFY field); admission-time checks
// happen in CubeStore.
func Create(p CreateParams) (*Cube, error) {
	t := p.Type
	if t.IsSigned() && p.SigningKey == nil {
		return nil, cubeErr(ErrMissingKey, "%s requires a signing key", t)
	}
	if t.IsNotify() {
		notifies := fields.AllOfType(p.Fields, fields.NOTIFY)
		if len(notifies) != 1 || len(notifies[0].Value) != 32 {
			return nil, cubeErr(ErrNotifyFieldInvalid, "%s requires exactly one 32-byte NOTIFY field", t)
		}
	}
	c := &Cube{
		variant:            t,
		def:                t.Definition(),
		pending:            append([]fields.Field(nil), p.Fields...),
		signingKey:         p.SigningKey,
		requiredDifficulty: p.RequiredDifficulty,
		explicitDate:       p.Date,
		updateCount:        p.UpdateCount,
	}
	return c, nil
}

// IsCompiled reports whether the Cube has a binary representation.
func (c *Cube) IsCompiled() bool { return c.binary != nil }

// Type returns the Cube's lifecycle/notify variant.
func (c *Cube) Type() Type { return c.variant }

// SetDate pre-sets the DATE field used on the next compile. Only valid
// before compilation.
func (c *Cube) SetDate(t time.Time) error {
	if c.IsCompiled() {
		return cubeErr(ErrAlreadyCompiled, "cannot set_date after compile")
	}
	secs := t.Unix()
	c.explicitDate = &secs
	return nil
}

// SetUpdateCount pre-sets the PMUC_UPDATE_COUNT field used on the next
// compile. Only valid before compilation, and only for PMUC variants. The
// store uses this to auto-increment a zero update count past whatever is
// already on record for the key (spec.md §4.3 step 5).
func (c *Cube) SetUpdateCount(n uint32) error {
	if c.IsCompiled() {
		return cubeErr(ErrAlreadyCompiled, "cannot set_update_count after compile")
	}
	if !c.variant.IsPMUC() {
		return cubeErr(ErrBadUpdateCount, "%s has no update count", c.variant)
	}
	c.updateCount = n
	return nil
}

// GetDate returns the Cube's DATE field as a time.Time. Requires a
// compiled Cube.
func (c *Cube) GetDate() (time.Time, error) {
	if !c.IsCompiled() {
		return time.Time{}, cubeErr(ErrNotCompiled, "get_date requires a compiled cube")
	}
	off := c.def.Offsets()
	secs := decodeDate5(c.binary[off.Date : off.Date+5])
	return time.Unix(secs, 0).UTC(), nil
}

// GetUpdateCount returns the PMUC update count. Only valid for PMUC/PMUC_NOTIFY.
func (c *Cube) GetUpdateCount() (uint32, error) {
	if !c.variant.IsPMUC() {
		return 0, cubeErr(ErrBadUpdateCount, "%s has no update count", c.variant)
	}
	if !c.IsCompiled() {
		return c.updateCount, nil
	}
	off := c.def.Offsets()
	return binary.BigEndian.Uint32(c.binary[off.PMUCCnt : off.PMUCCnt+4]), nil
}

// PadUp inserts or resizes a single PADDING field in the pending field set
// so a subsequent compile serializes to exactly 1024 bytes. It reports
// whether padding was appended. Calling it is optional: Compile pads
// automatically; PadUp exists so callers can inspect the field list before
// signing without going through a full compile.
func (c *Cube) PadUp() (bool, error) {
	if c.IsCompiled() {
		return false, cubeErr(ErrAlreadyCompiled, "cannot pad_up after compile")
	}
	body := stripPadding(c.pending)
	padded, added, err := fields.PadBody(body, c.def.BodyLen())
	if err != nil {
		return false, err
	}
	c.pending = padded
	return added, nil
}

func stripPadding(flds []fields.Field) []fields.Field {
	out := make([]fields.Field, 0, len(flds))
	for _, f := range flds {
		if f.Type == fields.PADDING || f.Type == fields.CCI_END {
			continue
		}
		out = append(out, f)
	}
	return out
}

func encodeDate5(secs int64) []byte {
	out := make([]byte, 5)
	u := uint64(secs)
	out[0] = byte(u >> 32)
	out[1] = byte(u >> 24)
	out[2] = byte(u >> 16)
	out[3] = byte(u >> 8)
	out[4] = byte(u)
	return out
}

func decodeDate5(b []byte) int64 {
	u := uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
	return int64(u)
}

// Compile produces the 1024-byte binary: materializes the positional
// trailer, pads the body, signs (if signed), then mines NONCE until the
// hash meets RequiredDifficulty. It is a no-op if already compiled.
// Mining is the compute-bound admission control and yields cooperatively,
// checking ctx between batches so callers can cancel promptly.
func (c *Cube) Compile(ctx context.Context) error {
	if c.IsCompiled() {
		return nil
	}

	secs := time.Now().Unix()
	if c.explicitDate != nil {
		secs = *c.explicitDate
	}

	full := append([]fields.Field(nil), stripPadding(c.pending)...)
	full = append(full, fields.Field{Type: fields.TYPE, Value: []byte{byte(c.variant)}})
	full = append(full, fields.Field{Type: fields.DATE, Value: encodeDate5(secs)})

	if c.variant.IsSigned() {
		pub := c.signingKey.Public().(ed25519.PublicKey)
		full = append(full, fields.Field{Type: fields.PUBLIC_KEY, Value: []byte(pub)})
	}
	if c.variant.IsPMUC() {
		cnt := make([]byte, 4)
		binary.BigEndian.PutUint32(cnt, c.updateCount)
		full = append(full, fields.Field{Type: fields.PMUC_UPDATE_COUNT, Value: cnt})
	}
	if c.variant.IsSigned() {
		full = append(full, fields.Field{Type: fields.SIGNATURE, Value: make([]byte, 64)})
	}
	full = append(full, fields.Field{Type: fields.NONCE, Value: make([]byte, 4)})

	padded, _, err := fields.PadBody(onlyBody(full), c.def.BodyLen())
	if err != nil {
		return err
	}
	full = mergePositionalAndBody(full, padded)

	frame, err := fields.Encode(c.def, c.variant.HeaderByte(), full)
	if err != nil {
		return err
	}

	off := c.def.Offsets()
	if c.variant.IsSigned() {
		sig := ed25519.Sign(c.signingKey, signedRegion(frame, off))
		copy(frame[off.Sig:off.Sig+64], sig)
	}

	if err := mine(ctx, frame, off.Nonce, c.requiredDifficulty); err != nil {
		return err
	}

	c.binary = frame
	return nil
}

// onlyBody filters out positional fields, returning the variable-body
// subset for padding purposes.
func onlyBody(flds []fields.Field) []fields.Field {
	out := make([]fields.Field, 0, len(flds))
	for _, f := range flds {
		if !fields.IsPositional(f.Type) {
			out = append(out, f)
		}
	}
	return out
}

// mergePositionalAndBody recombines the positional subset of full with the
// (possibly padding-appended) body list.
func mergePositionalAndBody(full, paddedBody []fields.Field) []fields.Field {
	out := make([]fields.Field, 0, len(full)+1)
	for _, f := range full {
		if fields.IsPositional(f.Type) {
			out = append(out, f)
		}
	}
	out = append(out, paddedBody...)
	return out
}

// signedRegion returns a copy of frame with the SIGNATURE and NONCE bytes
// left out entirely (NONCE is mined after signing, so it cannot be
// covered by the signature).
func signedRegion(frame []byte, off fields.Offsets) []byte {
	out := make([]byte, 0, len(frame))
	out = append(out, frame[:off.Sig]...)
	out = append(out, frame[off.Sig+64:off.Nonce]...)
	return out
}

func mine(ctx context.Context, frame []byte, nonceOff int, required uint8) error {
	const yieldEvery = 1 << 16
	var n uint32
	for {
		binary.BigEndian.PutUint32(frame[nonceOff:nonceOff+4], n)
		h := Hash256(frame)
		if MeetsDifficulty(h, required) {
			return nil
		}
		n++
		if n%yieldEvery == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if n == 0 {
			// wrapped around all 2^32 nonces without success; the 4-byte
			// scratchpad bounds effective mining difficulty (spec.md §9).
			return cubeErr(ErrInsufficientHash, "nonce space exhausted at difficulty %d", required)
		}
	}
}
