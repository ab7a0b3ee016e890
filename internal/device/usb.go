//go:build usb

package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// USBDriver talks to printers over libusb. Build with -tags usb.
type USBDriver struct {
	vendors []gousb.ID
}

func NewUSBDriver(vendorIDs []string) (Driver, error) {
	d := &USBDriver{}
	for _, v := range vendorIDs {
		id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(v), "0x"), 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid usb vendor id %q: %w", v, err)
		}
		d.vendors = append(d.vendors, gousb.ID(id))
	}
	return d, nil
}

func (d *USBDriver) Name() string {
	return "usb"
}

func (d *USBDriver) Select(ctx context.Context) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSelectionCancelled, err)
	}

	usb := gousb.NewContext()
	var found *gousb.DeviceDesc
	// The opener only records the first match; nothing is opened here.
	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if found == nil && d.matches(desc.Vendor) {
			found = desc
		}
		return false
	})
	if err != nil || found == nil {
		usb.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: enumerating usb: %v", ErrDeviceNotFound, err)
		}
		return nil, fmt.Errorf("%w: no usb device from vendors %v", ErrDeviceNotFound, d.vendors)
	}

	return &usbDevice{usb: usb, vid: found.Vendor, pid: found.Product}, nil
}

func (d *USBDriver) matches(vid gousb.ID) bool {
	if len(d.vendors) == 0 {
		return true
	}
	for _, v := range d.vendors {
		if v == vid {
			return true
		}
	}
	return false
}

type usbDevice struct {
	usb      *gousb.Context
	vid, pid gousb.ID
	dev      *gousb.Device
	cfg      *gousb.Config
	intf     *gousb.Interface
}

func (u *usbDevice) Name() string {
	return fmt.Sprintf("usb:%s:%s", u.vid, u.pid)
}

func (u *usbDevice) Open() error {
	dev, err := u.usb.OpenDeviceWithVIDPID(u.vid, u.pid)
	if err != nil {
		return err
	}
	if dev == nil {
		return fmt.Errorf("device %s disappeared", u.Name())
	}
	u.dev = dev
	if err := dev.SetAutoDetach(true); err != nil {
		return err
	}
	num, err := dev.ActiveConfigNum()
	if err != nil {
		return err
	}
	u.cfg, err = dev.Config(num)
	return err
}

func (u *usbDevice) Claim(iface int) error {
	intf, err := u.cfg.Interface(iface, 0)
	if err != nil {
		return err
	}
	u.intf = intf
	return nil
}

func (u *usbDevice) Write(endpoint int, data []byte) error {
	if u.intf == nil {
		return fmt.Errorf("no claimed interface")
	}
	out, err := u.intf.OutEndpoint(endpoint)
	if err != nil {
		return err
	}
	return writeAll(out, data)
}

func (u *usbDevice) Release(int) error {
	if u.intf != nil {
		u.intf.Close()
		u.intf = nil
	}
	return nil
}

// Close also releases a partially opened device and the libusb context
// taken in Select. It is safe to call more than once.
func (u *usbDevice) Close() error {
	var err error
	if u.intf != nil {
		u.intf.Close()
		u.intf = nil
	}
	if u.cfg != nil {
		err = u.cfg.Close()
		u.cfg = nil
	}
	if u.dev != nil {
		if cerr := u.dev.Close(); err == nil {
			err = cerr
		}
		u.dev = nil
	}
	if u.usb != nil {
		if cerr := u.usb.Close(); err == nil {
			err = cerr
		}
		u.usb = nil
	}
	return err
}
