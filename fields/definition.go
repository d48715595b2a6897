package fields

// FrameSize is the fixed size of every Cube binary.
const FrameSize = 1024

// Definition describes the positional layout for one Cube variant: which
// optional positional fields are present, and therefore how large the
// variable body area is. It is the "per-variant field definition" from the
// spec: TYPE header, optional PUBLIC_KEY, variable body, then the
// positional trailer (DATE, optional PMUC_UPDATE_COUNT, optional SIGNATURE,
// NONCE).
type Definition struct {
	Signed bool // PUBLIC_KEY + SIGNATURE present
	Notify bool // NOTIFY present, positioned right after PUBLIC_KEY/TYPE
	PMUC   bool // PMUC_UPDATE_COUNT present in the trailer

	// Core restricts decoding to a single raw-content field for the
	// variable body instead of interpreting it as a TLV stream. Used when
	// parsing untrusted input whose type cannot yet be trusted, to avoid
	// CPU exhaustion from a spammy TLV stream (spec.md §4.1).
	Core bool
}

// prefixLen is the number of bytes before the variable body begins,
// including the frame's leading version/type byte and the TYPE field.
func (d Definition) prefixLen() int {
	n := 1 + 1 // header byte + TYPE field
	if d.Signed {
		n += 32 // PUBLIC_KEY
	}
	if d.Notify {
		n += 32 // NOTIFY
	}
	return n
}

// trailerLen is the number of bytes reserved for the positional trailer:
// DATE, optional PMUC_UPDATE_COUNT, optional SIGNATURE, NONCE.
func (d Definition) trailerLen() int {
	n := 5 + 4 // DATE + NONCE
	if d.PMUC {
		n += 4
	}
	if d.Signed {
		n += 64
	}
	return n
}

// BodyLen is the number of bytes available to the variable body's TLV
// stream for this variant.
func (d Definition) BodyLen() int {
	return FrameSize - d.prefixLen() - d.trailerLen()
}

// Offsets describes where each positional field begins within the frame.
type Offsets struct {
	Header   int // 1 byte: version nibble | cube-type nibble
	Type     int // 1 byte
	PubKey   int // 32 bytes, -1 if absent
	Notify   int // 32 bytes, -1 if absent
	BodyFrom int
	BodyTo   int
	Date     int // 5 bytes
	PMUCCnt  int // 4 bytes, -1 if absent
	Sig      int // 64 bytes, -1 if absent
	Nonce    int // 4 bytes
}

// Offsets computes the fixed byte offsets for this Definition.
func (d Definition) Offsets() Offsets {
	var o Offsets
	pos := 0
	o.Header = pos
	pos++
	o.Type = pos
	pos++
	if d.Signed {
		o.PubKey = pos
		pos += 32
	} else {
		o.PubKey = -1
	}
	if d.Notify {
		o.Notify = pos
		pos += 32
	} else {
		o.Notify = -1
	}
	o.BodyFrom = pos
	o.BodyTo = pos + d.BodyLen()
	pos = o.BodyTo

	o.Date = pos
	pos += 5
	if d.PMUC {
		o.PMUCCnt = pos
		pos += 4
	} else {
		o.PMUCCnt = -1
	}
	if d.Signed {
		o.Sig = pos
		pos += 64
	} else {
		o.Sig = -1
	}
	o.Nonce = pos
	pos += 4
	return o
}
