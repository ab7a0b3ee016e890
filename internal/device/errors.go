package device

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound = errors.New("no label printer found")
	// ErrSelectionCancelled also matches ErrDeviceNotFound.
	ErrSelectionCancelled = fmt.Errorf("%w: selection cancelled", ErrDeviceNotFound)
	ErrUnavailable        = errors.New("direct printer link unavailable")
	ErrTransport          = errors.New("printer transport failed")
)

// TransportError reports a failure after a device was selected.
type TransportError struct {
	Op     string
	Device string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("printer %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("printer %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
