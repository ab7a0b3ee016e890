package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"windscapes-barcode/internal/logger"
)

// maxLineSize bounds a single reading; longer input is dropped up to the
// next delimiter.
const maxLineSize = 8192

// Reading is one code reported by a scanner.
type Reading struct {
	Code   string
	Source string
	At     time.Time
}

type portOpener func(name string, mode *serial.Mode) (serial.Port, error)

// ListenerConfig describes a serial barcode scanner.
type ListenerConfig struct {
	Port     string
	BaudRate int
	Cooldown time.Duration
}

// Listener reads newline or carriage-return terminated codes from a serial
// scanner and delivers each distinct code once per cooldown.
type Listener struct {
	cfg    ListenerConfig
	open   portOpener
	dedupe *DedupeCache
	log    *logger.StructuredLogger
	now    func() time.Time
}

func NewListener(cfg ListenerConfig, log *logger.StructuredLogger) *Listener {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 9600
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Listener{
		cfg:    cfg,
		open:   serial.Open,
		dedupe: NewDedupeCache(cfg.Cooldown),
		log:    log,
		now:    time.Now,
	}
}

// Run opens the port and sends readings to out until ctx is done or the
// port fails. The port is closed on return; out is not.
func (l *Listener) Run(ctx context.Context, out chan<- Reading) error {
	if l.cfg.Port == "" {
		return errors.New("scanner port not configured")
	}

	port, err := l.open(l.cfg.Port, &serial.Mode{
		BaudRate: l.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", l.cfg.Port, err)
	}
	defer func() {
		if cerr := port.Close(); cerr != nil {
			l.log.Warn("Failed to close scanner port", map[string]interface{}{
				"port":  l.cfg.Port,
				"error": cerr.Error(),
			})
		}
	}()

	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	l.log.LogDeviceEvent("scanner opened", l.cfg.Port)

	buf := make([]byte, 1024)
	var line []byte
	overflowed := false

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := port.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' || b == '\r' {
				if overflowed {
					overflowed = false
				} else if len(line) > 0 {
					if !l.emit(ctx, string(line), out) {
						return nil
					}
				}
				line = line[:0]
				continue
			}
			if overflowed {
				continue
			}
			if len(line) >= maxLineSize {
				l.log.Warn("Scanner line too long, discarding until next delimiter", map[string]interface{}{
					"port": l.cfg.Port,
				})
				line = line[:0]
				overflowed = true
				continue
			}
			line = append(line, b)
		}

		if err != nil {
			return fmt.Errorf("scanner read failed: %w", err)
		}
	}
}

// emit reports false when ctx ended while the reading was being delivered.
func (l *Listener) emit(ctx context.Context, raw string, out chan<- Reading) bool {
	code := ParseLine(raw)
	if code == "" {
		return true
	}
	if l.dedupe.Seen(code) {
		l.log.LogDeviceEvent("duplicate scan suppressed", l.cfg.Port, map[string]interface{}{"code": code})
		return true
	}

	select {
	case out <- Reading{Code: code, Source: l.cfg.Port, At: l.now()}:
		return true
	case <-ctx.Done():
		return false
	}
}

// ParseLine trims whitespace and the STX/ETX framing some scanners add.
func ParseLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "\x02")
	line = strings.TrimSuffix(line, "\x03")
	return strings.TrimSpace(line)
}
