package device

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"
)

// FileDriver writes to raw printer device nodes such as /dev/usb/lp0 or a
// bound /dev/rfcomm0.
type FileDriver struct {
	paths  []string
	packet int
}

func NewFileDriver(paths []string, packetSize int) *FileDriver {
	if packetSize <= 0 {
		packetSize = DefaultPacketSize
	}
	return &FileDriver{paths: paths, packet: packetSize}
}

func (d *FileDriver) Name() string {
	return "file"
}

// Select picks the first configured path that exists.
func (d *FileDriver) Select(ctx context.Context) (Device, error) {
	for _, p := range d.paths {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSelectionCancelled, err)
		}
		if _, err := os.Stat(p); err == nil {
			return &fileDevice{path: p, packet: d.packet}, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceNotFound, p, err)
		}
	}
	return nil, fmt.Errorf("%w: none of %s exists", ErrDeviceNotFound, strings.Join(d.paths, ", "))
}

type fileDevice struct {
	path   string
	packet int
	f      *os.File
}

func (f *fileDevice) Name() string {
	return f.path
}

func (f *fileDevice) Open() error {
	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	f.f = file
	return nil
}

func (f *fileDevice) Claim(iface int) error {
	if iface != 0 {
		return fmt.Errorf("device node has no interface %d", iface)
	}
	return nil
}

func (f *fileDevice) Write(endpoint int, data []byte) error {
	switch endpoint {
	case 1:
		return writeAll(f.f, data)
	case 2:
		for off := 0; off < len(data); off += f.packet {
			end := min(off+f.packet, len(data))
			if err := writeAll(f.f, data[off:end]); err != nil {
				return err
			}
		}
		// Character devices reject fsync with EINVAL.
		if err := f.f.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("device node has no endpoint %d", endpoint)
	}
}

func (f *fileDevice) Release(int) error {
	return nil
}

func (f *fileDevice) Close() error {
	if f.f == nil {
		return nil
	}
	return f.f.Close()
}
