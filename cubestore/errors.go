package cubestore

import "fmt"

// ErrorCode mirrors cube.ErrorCode's string-constant taxonomy, scoped to
// failures that only make sense at the store level.
type ErrorCode string

const ErrTypeConflict ErrorCode = "CUBESTORE_ERR_TYPE_CONFLICT"

// StoreError is CubeStore's concrete error type, reserved for
// construction-time/programmer-visible failures. Ordinary admission
// rejections (failed validation, lost contest, below difficulty floor) are
// reported by AddCube returning (nil, nil), not this type — see
// AddCube's admission policy note in admit.go.
type StoreError struct {
	Code ErrorCode
	Msg  string
}

func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func storeErr(code ErrorCode, format string, args ...any) error {
	return &StoreError{Code: code, Msg: fmt.Sprintf(format, args...)}
}
