package identity

import "fmt"

// ErrorCode mirrors cube.ErrorCode's string-constant taxonomy, scoped to
// failures specific to the Identity layer.
type ErrorCode string

const (
	ErrNoSigningKey   ErrorCode = "IDENTITY_ERR_NO_SIGNING_KEY"
	ErrRootNotFound   ErrorCode = "IDENTITY_ERR_ROOT_NOT_FOUND"
	ErrBadRootVariant ErrorCode = "IDENTITY_ERR_BAD_ROOT_VARIANT"
)

// Error is Identity's concrete error type, reserved for construction-time
// and programmer-visible failures (spec.md §7's propagation policy: a
// missing/unavailable root is reported absent, not via this type, except
// where the caller explicitly asked for the erroring form).
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func idErr(code ErrorCode, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}
