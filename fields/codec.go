package fields

import "encoding/binary"

// RAW_BODY is not a real wire type; Decode with Definition.Core set uses it
// to expose the unparsed variable body as a single opaque value instead of
// walking it as a TLV stream.
const RAW_BODY Type = 63

// header16 packs a variable field's type (high 6 bits) and length (low 10
// bits) into the 2-byte TLV header.
func header16(t Type, length int) uint16 {
	return uint16(t&0x3F)<<10 | uint16(length&0x3FF)
}

// PadBody appends a single PADDING or CCI_END field to body so that, once
// TLV-encoded, the resulting byte count equals bodyLen. It reports whether
// a field was appended. A body that already exceeds bodyLen is reported as
// a FieldSizeError; nothing is truncated. A gap of
// exactly one byte cannot carry a 2-byte TLV header, so callers must
// instead rely on Encode's implicit single-zero-byte terminator for that
// case (PadBody therefore never appends anything when the gap is 1).
func PadBody(body []Field, bodyLen int) ([]Field, bool, error) {
	used := 0
	for _, f := range body {
		used += 2 + len(f.Value)
	}
	gap := bodyLen - used
	if gap < 0 {
		return nil, false, &FieldSizeError{Have: used, Want: bodyLen}
	}
	switch {
	case gap == 0:
		return body, false, nil
	case gap == 1:
		// Caller must leave this byte to Encode's implicit terminator.
		return body, false, nil
	case gap == 2:
		end, err := NewField(CCI_END, nil)
		if err != nil {
			return nil, false, err
		}
		return append(body, end), true, nil
	default:
		value := make([]byte, gap-2)
		pad, err := NewField(PADDING, value)
		if err != nil {
			return nil, false, err
		}
		return append(body, pad), true, nil
	}
}

// Encode serializes header plus flds into a FrameSize-byte frame per def.
// Positional fields (TYPE, PUBLIC_KEY, NOTIFY, DATE, PMUC_UPDATE_COUNT,
// SIGNATURE, NONCE) are written at their fixed offsets; everything else is
// TLV-encoded into the variable body in order, padded to fill it exactly.
func Encode(def Definition, header byte, flds []Field) ([]byte, error) {
	off := def.Offsets()
	frame := make([]byte, FrameSize)
	frame[off.Header] = header

	positional := make(map[Type]Field)
	body := make([]Field, 0, len(flds))
	for _, f := range flds {
		if IsPositional(f.Type) {
			positional[f.Type] = f
		} else {
			body = append(body, f)
		}
	}

	if err := writePositional(frame, positional, TYPE, off.Type, 1); err != nil {
		return nil, err
	}
	if off.PubKey >= 0 {
		if err := writePositional(frame, positional, PUBLIC_KEY, off.PubKey, 32); err != nil {
			return nil, err
		}
	}
	if off.Notify >= 0 {
		if err := writePositional(frame, positional, NOTIFY, off.Notify, 32); err != nil {
			return nil, err
		}
	}
	if err := writePositional(frame, positional, DATE, off.Date, 5); err != nil {
		return nil, err
	}
	if off.PMUCCnt >= 0 {
		if err := writePositional(frame, positional, PMUC_UPDATE_COUNT, off.PMUCCnt, 4); err != nil {
			return nil, err
		}
	}
	if off.Sig >= 0 {
		if err := writePositional(frame, positional, SIGNATURE, off.Sig, 64); err != nil {
			return nil, err
		}
	}
	if err := writePositional(frame, positional, NONCE, off.Nonce, 4); err != nil {
		return nil, err
	}

	bodyLen := off.BodyTo - off.BodyFrom
	pos := off.BodyFrom
	for _, f := range body {
		if pos+2+len(f.Value) > off.BodyTo {
			return nil, &FieldSizeError{Have: pos + 2 + len(f.Value) - off.BodyFrom, Want: bodyLen}
		}
		binary.BigEndian.PutUint16(frame[pos:pos+2], header16(f.Type, len(f.Value)))
		pos += 2
		copy(frame[pos:], f.Value)
		pos += len(f.Value)
	}

	gap := off.BodyTo - pos
	switch {
	case gap == 0:
		// exactly full, nothing to terminate with
	case gap == 1:
		frame[pos] = 0x00 // implicit terminator, see PadBody doc
	case gap == 2:
		binary.BigEndian.PutUint16(frame[pos:pos+2], header16(CCI_END, 0))
	default:
		binary.BigEndian.PutUint16(frame[pos:pos+2], header16(PADDING, gap-2))
		// value left zero-filled; frame is already zero-initialized
	}

	return frame, nil
}

func writePositional(frame []byte, positional map[Type]Field, t Type, offset, length int) error {
	f, ok := positional[t]
	if !ok {
		return fieldErr(t, "required positional field missing")
	}
	if len(f.Value) != length {
		return fieldErr(t, "fixed length mismatch: want %d, got %d", length, len(f.Value))
	}
	copy(frame[offset:offset+length], f.Value)
	return nil
}

// Decode parses frame (which must be FrameSize bytes) into an ordered field
// list per def. When def.Core is set, the variable body is exposed as a
// single RAW_BODY field rather than interpreted as TLV, protecting callers
// from CPU exhaustion on untrusted input whose real variant is not yet
// trusted.
func Decode(def Definition, frame []byte) ([]Field, error) {
	if len(frame) != FrameSize {
		return nil, &FieldSizeError{Have: len(frame), Want: FrameSize}
	}
	off := def.Offsets()
	out := make([]Field, 0, 8)

	out = append(out, Field{Type: TYPE, Value: append([]byte(nil), frame[off.Type:off.Type+1]...)})
	if off.PubKey >= 0 {
		out = append(out, Field{Type: PUBLIC_KEY, Value: append([]byte(nil), frame[off.PubKey:off.PubKey+32]...)})
	}
	if off.Notify >= 0 {
		out = append(out, Field{Type: NOTIFY, Value: append([]byte(nil), frame[off.Notify:off.Notify+32]...)})
	}

	if def.Core {
		raw := append([]byte(nil), frame[off.BodyFrom:off.BodyTo]...)
		out = append(out, Field{Type: RAW_BODY, Value: raw})
	} else {
		bodyFields, err := decodeBody(frame[off.BodyFrom:off.BodyTo])
		if err != nil {
			return nil, err
		}
		out = append(out, bodyFields...)
	}

	out = append(out, Field{Type: DATE, Value: append([]byte(nil), frame[off.Date:off.Date+5]...)})
	if off.PMUCCnt >= 0 {
		out = append(out, Field{Type: PMUC_UPDATE_COUNT, Value: append([]byte(nil), frame[off.PMUCCnt:off.PMUCCnt+4]...)})
	}
	if off.Sig >= 0 {
		out = append(out, Field{Type: SIGNATURE, Value: append([]byte(nil), frame[off.Sig:off.Sig+64]...)})
	}
	out = append(out, Field{Type: NONCE, Value: append([]byte(nil), frame[off.Nonce:off.Nonce+4]...)})

	return out, nil
}

func decodeBody(body []byte) ([]Field, error) {
	out := make([]Field, 0, 8)
	pos := 0
	for pos < len(body) {
		remaining := len(body) - pos
		if remaining == 1 {
			break // implicit terminator: a lone trailing byte ends the body
		}
		h := binary.BigEndian.Uint16(body[pos : pos+2])
		t := Type(h >> 10)
		length := int(h & 0x3FF)
		if t == CCI_END && length == 0 {
			break
		}
		pos += 2
		if pos+length > len(body) {
			return nil, fieldErr(t, "truncated field value")
		}
		out = append(out, Field{Type: t, Value: append([]byte(nil), body[pos:pos+length]...)})
		pos += length
	}
	return out, nil
}

// FirstOfType returns the first field of type t, if any.
func FirstOfType(flds []Field, t Type) (Field, bool) {
	for _, f := range flds {
		if f.Type == t {
			return f, true
		}
	}
	return Field{}, false
}

// AllOfType returns every field of type t, in order.
func AllOfType(flds []Field, t Type) []Field {
	var out []Field
	for _, f := range flds {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}
