package supervisor

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/lockhinter/internal/locker"
	"github.com/bnema/lockhinter/internal/logind"
)

const testSession = dbus.ObjectPath("/org/freedesktop/login1/session/_32")

type fakeManager struct {
	session    dbus.ObjectPath
	resolveErr error

	state    logind.SessionState
	stateErr error

	setTrueErr  error
	setFalseErr error
	setCalls    []bool
}

func (f *fakeManager) SessionByPID(_ int) (dbus.ObjectPath, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return f.session, nil
}

func (f *fakeManager) SessionState(_ dbus.ObjectPath) (logind.SessionState, error) {
	if f.stateErr != nil {
		return logind.SessionState{}, f.stateErr
	}
	return f.state, nil
}

func (f *fakeManager) SetLockedHint(_ dbus.ObjectPath, locked bool) error {
	f.setCalls = append(f.setCalls, locked)
	if locked {
		return f.setTrueErr
	}
	return f.setFalseErr
}

type fakeProcess struct {
	outcome locker.ExitOutcome
	waitErr error
}

func (p *fakeProcess) Wait() (locker.ExitOutcome, error) {
	if p.waitErr != nil {
		return locker.ExitOutcome{}, p.waitErr
	}
	return p.outcome, nil
}

type fakeDriver struct {
	startErr error
	proc     *fakeProcess
	started  []locker.Command
}

func (d *fakeDriver) Start(command locker.Command) (locker.Process, error) {
	d.started = append(d.started, command)
	if d.startErr != nil {
		return nil, d.startErr
	}
	return d.proc, nil
}

func activeManager() *fakeManager {
	return &fakeManager{
		session: testSession,
		state:   logind.SessionState{State: "active"},
	}
}

func cleanDriver() *fakeDriver {
	return &fakeDriver{proc: &fakeProcess{}}
}

func eventsFor(mgr logind.SessionManager) <-chan logind.Event {
	ch := make(chan logind.Event, 1)
	ch <- logind.Event{Manager: mgr}
	return ch
}

func runConfig(mgr *fakeManager, driver *fakeDriver) Config {
	return Config{
		Events: eventsFor(mgr),
		PID:    1234,
		Locker: &locker.Command{Path: "swaylock", Args: []string{"-f"}},
		Driver: driver,
	}
}

func TestRun_CleanExitClearsHint(t *testing.T) {
	mgr := activeManager()
	driver := cleanDriver()

	res := Run(context.Background(), runConfig(mgr, driver))

	assert.Equal(t, 0, res.ExitCode)
	assert.Empty(t, res.Output)
	assert.Equal(t, []bool{true, false}, mgr.setCalls)
	require.Len(t, driver.started, 1)
	assert.Equal(t, locker.Command{Path: "swaylock", Args: []string{"-f"}}, driver.started[0])
}

func TestRun_NonZeroExitKeepsHint(t *testing.T) {
	mgr := activeManager()
	driver := &fakeDriver{proc: &fakeProcess{outcome: locker.ExitOutcome{Code: 2}}}

	res := Run(context.Background(), runConfig(mgr, driver))

	// The tool still succeeded at supervising, so it exits zero.
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []bool{true}, mgr.setCalls)
}

func TestRun_SignalDeathKeepsHint(t *testing.T) {
	mgr := activeManager()
	driver := &fakeDriver{proc: &fakeProcess{
		outcome: locker.ExitOutcome{Signaled: true, Signal: syscall.SIGKILL},
	}}

	res := Run(context.Background(), runConfig(mgr, driver))

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []bool{true}, mgr.setCalls)
}

func TestRun_CheckModeHintClear(t *testing.T) {
	mgr := activeManager()
	driver := cleanDriver()
	cfg := runConfig(mgr, driver)
	cfg.Check = true
	cfg.Locker = nil

	res := Run(context.Background(), cfg)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, HintClearOutput, res.Output)
	assert.Empty(t, driver.started)
	assert.Empty(t, mgr.setCalls)
}

func TestRun_CheckModeHintSet(t *testing.T) {
	mgr := activeManager()
	mgr.state.LockedHint = true
	driver := cleanDriver()
	cfg := runConfig(mgr, driver)
	cfg.Check = true
	cfg.Locker = nil

	res := Run(context.Background(), cfg)

	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, HintSetOutput, res.Output)
	assert.Empty(t, driver.started)
	assert.Empty(t, mgr.setCalls)
}

func TestRun_RefusesWhenAlreadyLocked(t *testing.T) {
	mgr := activeManager()
	mgr.state.LockedHint = true
	driver := cleanDriver()

	res := Run(context.Background(), runConfig(mgr, driver))

	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, RefusalOutput, res.Output)
	assert.Empty(t, driver.started)
	assert.Empty(t, mgr.setCalls)
}

func TestRun_ForceOverridesRefusal(t *testing.T) {
	mgr := activeManager()
	mgr.state.LockedHint = true
	driver := cleanDriver()
	cfg := runConfig(mgr, driver)
	cfg.Force = true

	res := Run(context.Background(), cfg)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []bool{true, false}, mgr.setCalls)
	assert.Len(t, driver.started, 1)
}

func TestRun_ServiceAbsent(t *testing.T) {
	ch := make(chan logind.Event, 1)
	ch <- logind.Event{}
	driver := cleanDriver()

	res := Run(context.Background(), Config{
		Events: ch,
		PID:    1234,
		Locker: &locker.Command{Path: "swaylock"},
		Driver: driver,
	})

	assert.Equal(t, 1, res.ExitCode)
	assert.Empty(t, driver.started)
}

func TestRun_EventChannelClosed(t *testing.T) {
	ch := make(chan logind.Event)
	close(ch)

	res := Run(context.Background(), Config{Events: ch, PID: 1234})

	assert.Equal(t, 1, res.ExitCode)
}

func TestRun_SessionResolveFailure(t *testing.T) {
	mgr := activeManager()
	mgr.resolveErr = errors.New("no such process")
	driver := cleanDriver()

	res := Run(context.Background(), runConfig(mgr, driver))

	assert.Equal(t, 1, res.ExitCode)
	assert.Empty(t, driver.started)
	assert.Empty(t, mgr.setCalls)
}

func TestRun_StateReadFailure(t *testing.T) {
	mgr := activeManager()
	mgr.stateErr = &logind.PropertyMissingError{Key: "LockedHint"}
	driver := cleanDriver()

	res := Run(context.Background(), runConfig(mgr, driver))

	assert.Equal(t, 1, res.ExitCode)
	assert.Empty(t, driver.started)
	assert.Empty(t, mgr.setCalls)
}

func TestRun_SpawnFailureLeavesHintUntouched(t *testing.T) {
	mgr := activeManager()
	driver := &fakeDriver{startErr: errors.New("executable not found")}

	res := Run(context.Background(), runConfig(mgr, driver))

	assert.Equal(t, 1, res.ExitCode)
	assert.Empty(t, mgr.setCalls)
}

func TestRun_SetHintFailure(t *testing.T) {
	mgr := activeManager()
	mgr.setTrueErr = errors.New("access denied")
	driver := cleanDriver()

	res := Run(context.Background(), runConfig(mgr, driver))

	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, []bool{true}, mgr.setCalls)
	assert.Len(t, driver.started, 1)
}

func TestRun_WaitFailureKeepsHint(t *testing.T) {
	mgr := activeManager()
	driver := &fakeDriver{proc: &fakeProcess{waitErr: errors.New("waitid: no child processes")}}

	res := Run(context.Background(), runConfig(mgr, driver))

	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, []bool{true}, mgr.setCalls)
}

func TestRun_ClearFailure(t *testing.T) {
	mgr := activeManager()
	mgr.setFalseErr = errors.New("access denied")
	driver := cleanDriver()

	res := Run(context.Background(), runConfig(mgr, driver))

	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, []bool{true, false}, mgr.setCalls)
}

func TestRun_NilLockerFails(t *testing.T) {
	mgr := activeManager()
	driver := cleanDriver()
	cfg := runConfig(mgr, driver)
	cfg.Locker = nil

	res := Run(context.Background(), cfg)

	assert.Equal(t, 1, res.ExitCode)
	assert.Empty(t, driver.started)
	assert.Empty(t, mgr.setCalls)
}
