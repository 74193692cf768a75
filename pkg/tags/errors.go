package tags

import (
	"fmt"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// IncompatibleWheelError reports that none of a wheel's tags match the
// platform it was ranked for.
type IncompatibleWheelError struct {
	Os   Os
	Arch Arch
}

func (e *IncompatibleWheelError) Error() string {
	return fmt.Sprintf("The wheel is incompatible with the current platform %s %s", e.Os, e.Arch)
}

// Code implements errors.Coder.
func (e *IncompatibleWheelError) Code() errors.Code { return errors.ErrCodeIncompatible }
