package cube

import "github.com/EliasOenal/verity-sub007/fields"

// Type is the 4-bit lifecycle x notify variant code carried in the low
// nibble of a Cube binary's first byte.
type Type uint8

const (
	FROZEN        Type = 0
	PIC           Type = 1
	MUC           Type = 2
	PMUC          Type = 3
	FROZEN_NOTIFY Type = 4
	PIC_NOTIFY    Type = 5
	MUC_NOTIFY    Type = 6
	PMUC_NOTIFY   Type = 7
)

// Version is the protocol version carried in the high nibble of the first
// byte. Only version 0 exists.
const Version byte = 0

func (t Type) String() string {
	switch t {
	case FROZEN:
		return "FROZEN"
	case PIC:
		return "PIC"
	case MUC:
		return "MUC"
	case PMUC:
		return "PMUC"
	case FROZEN_NOTIFY:
		return "FROZEN_NOTIFY"
	case PIC_NOTIFY:
		return "PIC_NOTIFY"
	case MUC_NOTIFY:
		return "MUC_NOTIFY"
	case PMUC_NOTIFY:
		return "PMUC_NOTIFY"
	default:
		return "UNKNOWN"
	}
}

// IsNotify reports whether t reserves a NOTIFY field.
func (t Type) IsNotify() bool {
	return t == FROZEN_NOTIFY || t == PIC_NOTIFY || t == MUC_NOTIFY || t == PMUC_NOTIFY
}

// IsSigned reports whether t is a MUC/PMUC variant (PUBLIC_KEY + SIGNATURE).
func (t Type) IsSigned() bool {
	switch t {
	case MUC, MUC_NOTIFY, PMUC, PMUC_NOTIFY:
		return true
	default:
		return false
	}
}

// IsPMUC reports whether t carries an explicit PMUC_UPDATE_COUNT.
func (t Type) IsPMUC() bool {
	return t == PMUC || t == PMUC_NOTIFY
}

// IsImmutable reports whether t is FROZEN/PIC (hash-addressed, write-once).
func (t Type) IsImmutable() bool {
	switch t {
	case FROZEN, FROZEN_NOTIFY, PIC, PIC_NOTIFY:
		return true
	default:
		return false
	}
}

// IsPIC reports whether t is the PIC lifecycle (key excludes DATE+NONCE).
func (t Type) IsPIC() bool {
	return t == PIC || t == PIC_NOTIFY
}

// Lifecycle groups the four lifecycle families, independent of notify.
type Lifecycle int

const (
	LifecycleFrozen Lifecycle = iota
	LifecyclePIC
	LifecycleMUC
	LifecyclePMUC
)

// Lifecycle returns t's lifecycle family.
func (t Type) Lifecycle() Lifecycle {
	switch t {
	case FROZEN, FROZEN_NOTIFY:
		return LifecycleFrozen
	case PIC, PIC_NOTIFY:
		return LifecyclePIC
	case MUC, MUC_NOTIFY:
		return LifecycleMUC
	default:
		return LifecyclePMUC
	}
}

// FromByte decomposes a frame's leading byte into protocol version and
// cube type.
func FromByte(b byte) (version byte, t Type) {
	return b >> 4, Type(b & 0x0F)
}

// HeaderByte composes the leading frame byte for t at Version.
func (t Type) HeaderByte() byte {
	return Version<<4 | byte(t)
}

// Definition returns the field-codec layout for t, fully parsed (non-Core).
func (t Type) Definition() fields.Definition {
	return fields.Definition{
		Signed: t.IsSigned(),
		Notify: t.IsNotify(),
		PMUC:   t.IsPMUC(),
	}
}

// CoreDefinition returns t's layout with Core set: the variable body is
// exposed as a single raw field instead of parsed as TLV. Nothing in this
// module calls it: CubeStore admission goes through Parse, which defers
// TLV decoding until Fields is called.
func (t Type) CoreDefinition() fields.Definition {
	d := t.Definition()
	d.Core = true
	return d
}
