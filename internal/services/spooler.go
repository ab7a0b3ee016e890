package services

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrNoSpooler = errors.New("no system print spooler found")

// Spooler hands a finished document to the operating system's print queue.
type Spooler interface {
	Print(ctx context.Context, path string) error
}

// CommandSpooler submits through the first available command of lp or lpr.
// Only the first command found is run; a failing lp is not retried via lpr.
type CommandSpooler struct {
	commands []string
	printer  string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewCommandSpooler(commands []string, printer string) *CommandSpooler {
	if len(commands) == 0 {
		commands = []string{"lp", "lpr"}
	}
	return &CommandSpooler{
		commands: commands,
		printer:  printer,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

func (s *CommandSpooler) Print(ctx context.Context, path string) error {
	for _, name := range s.commands {
		bin, err := s.lookPath(name)
		if err != nil {
			continue
		}
		out, err := s.run(ctx, bin, s.args(name, path)...)
		if err != nil {
			return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	return fmt.Errorf("%w (tried %s)", ErrNoSpooler, strings.Join(s.commands, ", "))
}

func (s *CommandSpooler) args(name, path string) []string {
	var args []string
	if s.printer != "" {
		if name == "lpr" {
			args = append(args, "-P", s.printer)
		} else {
			args = append(args, "-d", s.printer)
		}
	}
	return append(args, path)
}
