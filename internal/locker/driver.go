// Package locker starts the screen locker process and reports how it ended.
package locker

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Command is the locker argv, fixed before the run starts.
type Command struct {
	Path string
	Args []string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}

// ExitOutcome describes how the locker terminated. Code is meaningless when
// Signaled is true.
type ExitOutcome struct {
	Code     int
	Signaled bool
	Signal   syscall.Signal
}

// Clean reports a normal exit with status zero. Only a clean outcome permits
// clearing the locked hint.
func (o ExitOutcome) Clean() bool {
	return !o.Signaled && o.Code == 0
}

func (o ExitOutcome) String() string {
	if o.Signaled {
		return fmt.Sprintf("signal %d (%s)", int(o.Signal), o.Signal)
	}
	return fmt.Sprintf("exit code %d", o.Code)
}

// Process is a started locker that can be waited on exactly once.
type Process interface {
	Wait() (ExitOutcome, error)
}

// Driver starts locker processes. The exec-backed implementation is used in
// production; tests substitute fakes.
type Driver interface {
	Start(command Command) (Process, error)
}

// Compile-time interface check.
var _ Driver = ExecDriver{}

// ExecDriver runs the locker via os/exec with inherited stdio, so the locker
// owns the terminal for the duration of the run. It never kills the child and
// forwards no signals.
type ExecDriver struct{}

// Start spawns the locker. A failure here means the child never ran.
func (ExecDriver) Start(command Command) (Process, error) {
	cmd := exec.Command(command.Path, command.Args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command.Path, err)
	}

	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

// Wait blocks until the locker terminates. Non-zero exits and signal deaths
// are outcomes, not errors; an error means the outcome could not be observed.
func (p *execProcess) Wait() (ExitOutcome, error) {
	err := p.cmd.Wait()
	if err == nil {
		return ExitOutcome{Code: 0}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitOutcome{}, fmt.Errorf("failed to wait for %s: %w", p.cmd.Path, err)
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return ExitOutcome{Signaled: true, Signal: status.Signal()}, nil
	}

	return ExitOutcome{Code: exitErr.ExitCode()}, nil
}
