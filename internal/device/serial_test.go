package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

type fakePort struct {
	serial.Port

	writes  [][]byte
	drains  int
	closed  bool
	maxSize int
}

func (p *fakePort) Write(b []byte) (int, error) {
	n := len(b)
	if p.maxSize > 0 && n > p.maxSize {
		n = p.maxSize
	}
	p.writes = append(p.writes, append([]byte(nil), b[:n]...))
	return n, nil
}

func (p *fakePort) Drain() error             { p.drains++; return nil }
func (p *fakePort) ResetOutputBuffer() error { return nil }
func (p *fakePort) SetReadTimeout(time.Duration) error {
	return nil
}
func (p *fakePort) Close() error { p.closed = true; return nil }

func testPorts() ([]*enumerator.PortDetails, error) {
	return []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "1a86", PID: "7523"},
		{Name: "/dev/ttyACM1", IsUSB: true, VID: "04B8", PID: "0202", Product: "TM-T20"},
	}, nil
}

func newTestSerialDriver(cfg SerialConfig, port *fakePort) *SerialDriver {
	d := NewSerialDriver(cfg)
	d.listPorts = testPorts
	d.openPort = func(string, *serial.Mode) (serial.Port, error) { return port, nil }
	return d
}

func TestSerialSelectByVendor(t *testing.T) {
	d := newTestSerialDriver(SerialConfig{VendorIDs: []string{"04b8", "0483"}}, &fakePort{})

	dev, err := d.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", dev.Name())
}

func TestSerialSelectByPort(t *testing.T) {
	d := newTestSerialDriver(SerialConfig{Port: "/dev/ttyS0"}, &fakePort{})
	dev, err := d.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS0", dev.Name())

	d = newTestSerialDriver(SerialConfig{Port: "/dev/ttyUSB9"}, &fakePort{})
	_, err = d.Select(context.Background())
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestSerialSelectNoMatch(t *testing.T) {
	d := newTestSerialDriver(SerialConfig{VendorIDs: []string{"0x0483"}}, &fakePort{})
	_, err := d.Select(context.Background())
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.NotErrorIs(t, err, ErrSelectionCancelled)
}

func TestSerialSelectListError(t *testing.T) {
	d := NewSerialDriver(SerialConfig{})
	d.listPorts = func() ([]*enumerator.PortDetails, error) { return nil, errors.New("no sysfs") }
	_, err := d.Select(context.Background())
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestSerialSelectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := newTestSerialDriver(SerialConfig{}, &fakePort{})
	_, err := d.Select(ctx)
	assert.ErrorIs(t, err, ErrSelectionCancelled)
}

func TestSerialEndpoints(t *testing.T) {
	data := make([]byte, 150)
	for i := range data {
		data[i] = byte('A' + i%26)
	}

	port := &fakePort{}
	d := newTestSerialDriver(SerialConfig{VendorIDs: []string{"04b8"}}, port)
	dev, err := d.Select(context.Background())
	require.NoError(t, err)
	require.NoError(t, dev.Open())

	require.NoError(t, dev.Claim(0))
	assert.Error(t, dev.Claim(1))

	require.NoError(t, dev.Write(1, data))
	assert.Len(t, port.writes, 1)
	assert.Equal(t, 1, port.drains)

	port.writes, port.drains = nil, 0
	require.NoError(t, dev.Write(2, data))
	require.Len(t, port.writes, 3)
	assert.Len(t, port.writes[0], 64)
	assert.Len(t, port.writes[2], 150-128)
	assert.Equal(t, 3, port.drains)

	assert.Error(t, dev.Write(3, data))

	require.NoError(t, dev.Close())
	assert.True(t, port.closed)
}

func TestSerialShortWritesAreRetried(t *testing.T) {
	port := &fakePort{maxSize: 10}
	d := newTestSerialDriver(SerialConfig{}, port)
	dev, err := d.Select(context.Background())
	require.NoError(t, err)
	require.NoError(t, dev.Open())

	require.NoError(t, dev.Write(1, make([]byte, 35)))
	assert.Len(t, port.writes, 4)
}

func TestSerialTransportEndToEnd(t *testing.T) {
	port := &fakePort{}
	tr := NewTransport(newTestSerialDriver(SerialConfig{VendorIDs: []string{"04b8"}}, port), Options{}, nil)

	require.NoError(t, tr.Send(context.Background(), stream))
	require.Len(t, port.writes, 1)
	assert.Equal(t, stream, port.writes[0])
	assert.True(t, port.closed)
}

func TestListPorts(t *testing.T) {
	ports, err := listPortsWith(testPorts)
	require.NoError(t, err)
	require.Len(t, ports, 3)
	assert.Equal(t, "TM-T20", ports[2].Product)
	assert.True(t, ports[1].IsUSB)
}
