package device

import "fmt"

const (
	DriverSerial = "serial"
	DriverFile   = "file"
	DriverUSB    = "usb"
	DriverNone   = "none"
)

type Config struct {
	Driver       string
	Port         string
	VendorIDs    []string
	BaudRate     int
	Paths        []string
	PacketSize   int
	RequireClaim bool
}

// NewDriver builds the driver named in cfg. DriverNone returns a nil driver,
// which makes every Send fail with ErrUnavailable.
func NewDriver(cfg Config) (Driver, error) {
	switch cfg.Driver {
	case DriverSerial, "":
		return NewSerialDriver(SerialConfig{
			Port:       cfg.Port,
			VendorIDs:  cfg.VendorIDs,
			BaudRate:   cfg.BaudRate,
			PacketSize: cfg.PacketSize,
		}), nil
	case DriverFile:
		return NewFileDriver(cfg.Paths, cfg.PacketSize), nil
	case DriverUSB:
		return NewUSBDriver(cfg.VendorIDs)
	case DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown printer driver %q", cfg.Driver)
	}
}

