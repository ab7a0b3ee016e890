package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"windscapes-barcode/internal/logger"
)

// State is the position of a Transport in its session lifecycle.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Claimed
	Sent
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Claimed:
		return "claimed"
	case Sent:
		return "sent"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Device is one selected printer. Interfaces and endpoints follow USB
// numbering; drivers without that structure map them onto their own channels.
// Close must release whatever Select and a partial Open acquired.
type Device interface {
	Name() string
	Open() error
	Claim(iface int) error
	Write(endpoint int, data []byte) error
	Release(iface int) error
	Close() error
}

// Driver finds a printer. Select returns ErrDeviceNotFound when nothing
// matches and should give up when ctx is done.
type Driver interface {
	Name() string
	Select(ctx context.Context) (Device, error)
}

type Options struct {
	// Interfaces are tried in order; default 0 then 1.
	Interfaces []int
	// Endpoints are tried in order; default 1 then 2.
	Endpoints []int
	// RequireClaim fails the send when no interface can be claimed.
	RequireClaim bool
}

// Transport delivers command streams to a printer, one session at a time.
type Transport struct {
	driver Driver
	opts   Options
	log    *logger.StructuredLogger

	// session admits one Send at a time.
	session chan struct{}

	mu       sync.Mutex
	state    State
	onChange func(from, to State)
}

func NewTransport(driver Driver, opts Options, log *logger.StructuredLogger) *Transport {
	if len(opts.Interfaces) == 0 {
		opts.Interfaces = []int{0, 1}
	}
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = []int{1, 2}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Transport{driver: driver, opts: opts, log: log, session: make(chan struct{}, 1)}
}

// OnStateChange registers fn to be called on every transition.
func (t *Transport) OnStateChange(fn func(from, to State)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) setState(to State) {
	t.mu.Lock()
	from := t.state
	t.state = to
	fn := t.onChange
	t.mu.Unlock()

	if from == to {
		return
	}
	t.log.LogDeviceEvent("transport state", t.driverName(), map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	})
	if fn != nil {
		fn(from, to)
	}
}

func (t *Transport) driverName() string {
	if t.driver == nil {
		return ""
	}
	return t.driver.Name()
}

// Send runs one full session: select, open, claim, write, release, close.
// The device is closed on every path once it has been selected, and the
// transport is back in Disconnected when Send returns. A Send waiting for
// another session gives up when ctx is done.
func (t *Transport) Send(ctx context.Context, data []byte) (err error) {
	if t.driver == nil {
		return ErrUnavailable
	}

	select {
	case t.session <- struct{}{}:
		defer func() { <-t.session }()
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrSelectionCancelled, ctx.Err())
	}

	t.setState(Connecting)
	defer t.setState(Disconnected)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSelectionCancelled, err)
	}

	dev, err := t.driver.Select(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrSelectionCancelled) {
			return fmt.Errorf("%w: %w", ErrSelectionCancelled, ctxErr)
		}
		return err
	}
	name := dev.Name()
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			t.log.Warn("Failed to close printer", map[string]interface{}{
				"device": name,
				"error":  cerr.Error(),
			})
		}
	}()

	if err := dev.Open(); err != nil {
		return &TransportError{Op: "open", Device: name, Err: err}
	}
	t.setState(Open)

	claimed, claimErr := t.claim(dev)
	if claimErr != nil {
		if t.opts.RequireClaim {
			return &TransportError{Op: "claim", Device: name, Err: claimErr}
		}
		t.log.Warn("Could not claim printer interface, writing without claim", map[string]interface{}{
			"device": name,
			"error":  claimErr.Error(),
		})
	} else {
		defer func() {
			if rerr := dev.Release(claimed); rerr != nil {
				t.log.Warn("Failed to release printer interface", map[string]interface{}{
					"device":    name,
					"interface": claimed,
					"error":     rerr.Error(),
				})
			}
		}()
		t.setState(Claimed)
	}

	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "write", Device: name, Err: err}
	}
	if err := t.write(dev, data); err != nil {
		return &TransportError{Op: "write", Device: name, Err: err}
	}
	t.setState(Sent)

	t.log.LogDeviceEvent("command stream sent", name, map[string]interface{}{"bytes": len(data)})
	return nil
}

func (t *Transport) claim(dev Device) (int, error) {
	var errs []error
	for _, iface := range t.opts.Interfaces {
		err := dev.Claim(iface)
		if err == nil {
			return iface, nil
		}
		errs = append(errs, fmt.Errorf("interface %d: %w", iface, err))
	}
	return -1, errors.Join(errs...)
}

func (t *Transport) write(dev Device, data []byte) error {
	var errs []error
	for _, ep := range t.opts.Endpoints {
		err := dev.Write(ep, data)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("endpoint %d: %w", ep, err))
	}
	return errors.Join(errs...)
}
