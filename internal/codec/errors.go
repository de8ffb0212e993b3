package codec

import (
	"errors"
	"fmt"
	"strings"
)

// Taxonomy sentinels. Every error leaving a backend unwraps to exactly one of these.
var (
	// ErrUnavailable means the vendor runtime or device is not present.
	ErrUnavailable = errors.New("hardware codec unavailable")
	// ErrConfigRejected means a required parameter was refused at init.
	ErrConfigRejected = errors.New("configuration rejected")
	// ErrOptionalRejected means a cosmetic property was refused. It is
	// logged by backends and never returned from create.
	ErrOptionalRejected = errors.New("optional property rejected")
	// ErrNeedMoreInput means the pipeline has no output yet; submit the next frame.
	ErrNeedMoreInput = errors.New("need more input")
	// ErrInputFull means the input queue stayed full after the drain budget.
	ErrInputFull = errors.New("input queue full")
	// ErrResolutionChanged means decode state must be reinitialised.
	ErrResolutionChanged = errors.New("resolution changed")
	// ErrFatal is an unexpected driver failure for one call.
	ErrFatal = errors.New("fatal codec error")
	// ErrClosed means the session was already destroyed.
	ErrClosed = errors.New("session closed")
	// ErrUnsupported means the codec, driver or format is not handled.
	ErrUnsupported = errors.New("unsupported")
)

// Boundary result codes.
const (
	ResultOK                = 0
	ResultRetry             = 1
	ResultResolutionChanged = 2
	ResultFatal             = -1
	ResultUnavailable       = -2
	ResultConfigRejected    = -3
	ResultClosed            = -4
)

// Error carries the vendor status behind a taxonomy sentinel.
type Error struct {
	Op       string // operation, e.g. "submit", "init"
	Driver   string // amf, mfx, nv
	Property string // property or parameter name when relevant
	Code     int64  // vendor result code
	Detail   string
	Err      error // taxonomy sentinel
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Driver != "" {
		b.WriteString(e.Driver)
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("codec error")
	}
	if e.Property != "" {
		fmt.Fprintf(&b, " (property %s)", e.Property)
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, " [code %d]", e.Code)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap returns the taxonomy sentinel.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error for a driver operation.
func NewError(driver Driver, op string, sentinel error, code int64) *Error {
	return &Error{Op: op, Driver: driver.String(), Code: code, Err: sentinel}
}

// IsTransient reports whether err is a non-error backpressure outcome the
// caller handles by resubmitting or reinitialising.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNeedMoreInput) || errors.Is(err, ErrResolutionChanged)
}

// IsRetry reports whether the call produced no output and the caller should
// submit the next frame.
func IsRetry(err error) bool {
	return errors.Is(err, ErrNeedMoreInput)
}

// ResultCode maps err to the integer code exposed at the boundary.
func ResultCode(err error) int {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrNeedMoreInput):
		return ResultRetry
	case errors.Is(err, ErrResolutionChanged):
		return ResultResolutionChanged
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrUnsupported):
		return ResultUnavailable
	case errors.Is(err, ErrConfigRejected):
		return ResultConfigRejected
	case errors.Is(err, ErrClosed):
		return ResultClosed
	default:
		return ResultFatal
	}
}

// Normalize ensures err belongs to the taxonomy. Errors that do not unwrap to
// a sentinel are treated as fatal runtime failures.
func Normalize(driver Driver, op string, err error) error {
	if err == nil {
		return nil
	}
	for _, s := range []error{
		ErrUnavailable, ErrConfigRejected, ErrOptionalRejected, ErrNeedMoreInput,
		ErrInputFull, ErrResolutionChanged, ErrFatal, ErrClosed, ErrUnsupported,
	} {
		if errors.Is(err, s) {
			return err
		}
	}
	return &Error{Op: op, Driver: driver.String(), Err: ErrFatal, Detail: err.Error()}
}
