package device

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultPacketSize matches a full-speed USB bulk packet.
const DefaultPacketSize = 64

type SerialConfig struct {
	// Port pins the printer to one port name; empty means enumerate.
	Port       string
	VendorIDs  []string
	BaudRate   int
	PacketSize int
}

// PortInfo describes one serial port for listings.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

type portOpener func(name string, mode *serial.Mode) (serial.Port, error)

type portLister func() ([]*enumerator.PortDetails, error)

// SerialDriver reaches printers exposed as serial ports: USB CDC printers,
// USB-serial adapters and Bluetooth SPP links.
type SerialDriver struct {
	cfg       SerialConfig
	openPort  portOpener
	listPorts portLister
}

func NewSerialDriver(cfg SerialConfig) *SerialDriver {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 9600
	}
	if cfg.PacketSize <= 0 {
		cfg.PacketSize = DefaultPacketSize
	}
	return &SerialDriver{
		cfg:       cfg,
		openPort:  serial.Open,
		listPorts: enumerator.GetDetailedPortsList,
	}
}

func (d *SerialDriver) Name() string {
	return "serial"
}

func (d *SerialDriver) Select(ctx context.Context) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSelectionCancelled, err)
	}

	ports, err := d.listPorts()
	if err != nil {
		return nil, fmt.Errorf("%w: listing serial ports: %v", ErrDeviceNotFound, err)
	}

	name := ""
	if d.cfg.Port != "" {
		for _, p := range ports {
			if p.Name == d.cfg.Port {
				name = p.Name
				break
			}
		}
	} else {
		for _, p := range ports {
			if p.IsUSB && matchVendor(d.cfg.VendorIDs, p.VID) {
				name = p.Name
				break
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSelectionCancelled, err)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: no serial port matches %s", ErrDeviceNotFound, d.describe())
	}

	return &serialDevice{
		name:   name,
		mode:   &serial.Mode{BaudRate: d.cfg.BaudRate, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		open:   d.openPort,
		packet: d.cfg.PacketSize,
	}, nil
}

func (d *SerialDriver) describe() string {
	if d.cfg.Port != "" {
		return "port " + d.cfg.Port
	}
	return "vendor ids " + strings.Join(d.cfg.VendorIDs, ",")
}

func matchVendor(filters []string, vid string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if strings.EqualFold(strings.TrimPrefix(strings.ToLower(f), "0x"), vid) {
			return true
		}
	}
	return false
}

// ListPorts returns every serial port the OS reports.
func ListPorts() ([]PortInfo, error) {
	return listPortsWith(enumerator.GetDetailedPortsList)
}

func listPortsWith(list portLister) ([]PortInfo, error) {
	ports, err := list()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	out := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		out = append(out, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return out, nil
}

type serialDevice struct {
	name   string
	mode   *serial.Mode
	open   portOpener
	port   serial.Port
	packet int
}

func (s *serialDevice) Name() string {
	return s.name
}

func (s *serialDevice) Open() error {
	port, err := s.open(s.name, s.mode)
	if err != nil {
		return err
	}
	s.port = port
	return nil
}

// Claim accepts only interface 0: a serial port has a single channel.
func (s *serialDevice) Claim(iface int) error {
	if iface != 0 {
		return fmt.Errorf("serial port has no interface %d", iface)
	}
	return s.port.ResetOutputBuffer()
}

// Write on endpoint 1 sends the stream in one call; endpoint 2 sends it in
// packets, draining after each.
func (s *serialDevice) Write(endpoint int, data []byte) error {
	switch endpoint {
	case 1:
		if err := writeAll(s.port, data); err != nil {
			return err
		}
		return s.port.Drain()
	case 2:
		for off := 0; off < len(data); off += s.packet {
			end := min(off+s.packet, len(data))
			if err := writeAll(s.port, data[off:end]); err != nil {
				return err
			}
			if err := s.port.Drain(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("serial port has no endpoint %d", endpoint)
	}
}

func (s *serialDevice) Release(int) error {
	return nil
}

func (s *serialDevice) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("short write: %d bytes left", len(data))
		}
		data = data[n:]
	}
	return nil
}
