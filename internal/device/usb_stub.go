//go:build !usb

package device

import (
	"context"
)

type unavailableDriver struct{}

// NewUSBDriver reports the direct USB link as unavailable in builds without
// the usb tag.
func NewUSBDriver([]string) (Driver, error) {
	return unavailableDriver{}, nil
}

func (unavailableDriver) Name() string {
	return "usb"
}

func (unavailableDriver) Select(context.Context) (Device, error) {
	return nil, ErrUnavailable
}
