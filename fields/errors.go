// Package fields implements the TLV-plus-fixed-layout field codec shared by
// every Cube variant: encoding an ordered field list into a 1024-byte frame,
// decoding a frame back into fields, and the per-type length table that
// drives both directions.
package fields

import "fmt"

// FieldError reports a malformed field at construction time: a fixed-length
// field whose value size does not match the table, or a variable field
// whose value overflows the 10-bit length budget.
type FieldError struct {
	Type Type
	Msg  string
}

func (e *FieldError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("field %s: %s", e.Type, e.Msg)
}

func fieldErr(t Type, format string, args ...any) error {
	return &FieldError{Type: t, Msg: fmt.Sprintf(format, args...)}
}

// FieldSizeError reports that an encoded field set does not fit into the
// fixed 1024-byte frame.
type FieldSizeError struct {
	Have int
	Want int
}

func (e *FieldSizeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("field set encodes to %d bytes, frame is %d", e.Have, e.Want)
}

// WrongFieldType reports a demarshal attempted against an incompatible
// field type (e.g. reading a Relationship out of a PAYLOAD field).
type WrongFieldType struct {
	Type Type
}

func (e *WrongFieldType) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("wrong field type: %s", e.Type)
}
