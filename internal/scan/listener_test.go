package scan

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

type scriptedPort struct {
	serial.Port

	mu     sync.Mutex
	chunks [][]byte
	closed bool
}

func (p *scriptedPort) SetReadTimeout(time.Duration) error { return nil }

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.chunks[0])
	if n < len(p.chunks[0]) {
		p.chunks[0] = p.chunks[0][n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func runListener(t *testing.T, chunks ...string) ([]string, *scriptedPort, error) {
	t.Helper()
	port := &scriptedPort{}
	for _, c := range chunks {
		port.chunks = append(port.chunks, []byte(c))
	}

	l := NewListener(ListenerConfig{Port: "/dev/ttyUSB0", Cooldown: time.Minute}, nil)
	l.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		assert.Equal(t, "/dev/ttyUSB0", name)
		assert.Equal(t, 9600, mode.BaudRate)
		return port, nil
	}

	out := make(chan Reading, 16)
	err := l.Run(context.Background(), out)
	close(out)

	var codes []string
	for r := range out {
		assert.Equal(t, "/dev/ttyUSB0", r.Source)
		codes = append(codes, r.Code)
	}
	return codes, port, err
}

func TestListenerSplitsLines(t *testing.T) {
	codes, port, err := runListener(t,
		"2000000",
		"000428\r",
		"\x020000000000086\x03\n",
		"\r\n",
		"   \n",
	)

	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, port.closed)
	assert.Equal(t, []string{"2000000000428", "0000000000086"}, codes)
}

func TestListenerSuppressesRepeats(t *testing.T) {
	codes, _, _ := runListener(t, "2000000000428\r2000000000428\r0000000000086\r2000000000428\n")
	assert.Equal(t, []string{"2000000000428", "0000000000086"}, codes)
}

func TestListenerDropsOversizedLine(t *testing.T) {
	big := make([]byte, maxLineSize+10)
	for i := range big {
		big[i] = '7'
	}
	codes, _, _ := runListener(t, string(big), "tail\n", "0000000000086\n")
	assert.Equal(t, []string{"0000000000086"}, codes)

	codes, _, _ = runListener(t, string(big[:maxLineSize])+"\n")
	require.Len(t, codes, 1)
	assert.Len(t, codes[0], maxLineSize)
}

func TestListenerStopsOnCancel(t *testing.T) {
	l := NewListener(ListenerConfig{Port: "COM3"}, nil)
	port := &scriptedPort{chunks: [][]byte{[]byte("1\n")}}
	l.open = func(string, *serial.Mode) (serial.Port, error) { return port, nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Run(ctx, make(chan Reading))
	assert.NoError(t, err)
	assert.True(t, port.closed)
}

func TestListenerOpenFailure(t *testing.T) {
	l := NewListener(ListenerConfig{Port: "COM9"}, nil)
	l.open = func(string, *serial.Mode) (serial.Port, error) { return nil, errors.New("busy") }
	err := l.Run(context.Background(), make(chan Reading))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COM9")

	err = NewListener(ListenerConfig{}, nil).Run(context.Background(), make(chan Reading))
	assert.Error(t, err)
}

func TestParseLine(t *testing.T) {
	assert.Equal(t, "123", ParseLine("\x02123\x03"))
	assert.Equal(t, "123", ParseLine(" 123 \r"))
	assert.Equal(t, "", ParseLine("\x02\x03"))
}
