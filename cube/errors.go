package cube

import "fmt"

// ErrorCode is a closed taxonomy of Cube-level admission and construction
// failures, mirrored after the teacher's string-constant ErrorCode type.
type ErrorCode string

const (
	ErrMalformedBinary    ErrorCode = "CUBE_ERR_MALFORMED_BINARY"
	ErrImpossibleType     ErrorCode = "CUBE_ERR_IMPOSSIBLE_TYPE"
	ErrTypeConflict       ErrorCode = "CUBE_ERR_TYPE_CONFLICT"
	ErrSignatureInvalid   ErrorCode = "CUBE_ERR_SIGNATURE_INVALID"
	ErrInsufficientHash   ErrorCode = "CUBE_ERR_INSUFFICIENT_HASHCASH"
	ErrNotCompiled        ErrorCode = "CUBE_ERR_NOT_COMPILED"
	ErrAlreadyCompiled    ErrorCode = "CUBE_ERR_ALREADY_COMPILED"
	ErrMissingKey         ErrorCode = "CUBE_ERR_MISSING_KEY"
	ErrBadUpdateCount     ErrorCode = "CUBE_ERR_BAD_UPDATE_COUNT"
	ErrNotifyFieldInvalid ErrorCode = "CUBE_ERR_NOTIFY_FIELD_INVALID"
)

// CubeError is the taxonomy's concrete error type. Admission-time failures
// (addCube's validation path) are reported by AddCube returning (nil, nil),
// not by this error type; CubeError is reserved for construction-time and
// programmer errors per spec.md §7.
type CubeError struct {
	Code ErrorCode
	Msg  string
}

func (e *CubeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func cubeErr(code ErrorCode, format string, args ...any) error {
	return &CubeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}
