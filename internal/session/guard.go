package session

import (
	"fmt"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// guard runs fn and folds panics and foreign errors into the codec
// taxonomy so nothing leaves the facade unclassified.
func guard(d codec.Driver, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &codec.Error{Op: op, Driver: d.String(), Err: codec.ErrFatal, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return codec.Normalize(d, op, fn())
}
