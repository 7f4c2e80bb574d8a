// Package supervisor runs a screen locker while holding the session's
// LockedHint, clearing the hint only when the locker exits cleanly.
package supervisor

import (
	"context"

	"github.com/bnema/lockhinter/internal/locker"
	"github.com/bnema/lockhinter/internal/logging"
	"github.com/bnema/lockhinter/internal/logind"
)

// Stdout lines. These are consumed by scripts, so they never change shape.
const (
	HintSetOutput   = "TRUE"
	HintClearOutput = "FALSE"
	RefusalOutput   = "This session already has LockedHint set."
)

// Config carries everything a run needs. Locker may be nil only in check
// mode.
type Config struct {
	// Events delivers logind availability; the run consumes exactly one
	// event and acts on the owner it carried.
	Events <-chan logind.Event
	// PID identifies the session to operate on, normally os.Getpid().
	PID int
	// Check reports the current hint instead of running a locker.
	Check bool
	// Force proceeds even when the hint is already set.
	Force bool

	Locker *locker.Command
	Driver locker.Driver
}

// Result is what the run produced. Output, when non-empty, is the single
// line the caller prints to stdout.
type Result struct {
	ExitCode int
	Output   string
}

// Run executes one supervised locker run. It is deliberately fail-safe: any
// error after the hint is set leaves the hint set, and an abnormal locker
// exit skips the clear on purpose. The exit code reflects whether
// supervision itself succeeded, not how the locker exited.
//
// There are no timeouts. A bus that never delivers logind, a call that never
// returns, or a locker that never exits all block indefinitely.
func Run(ctx context.Context, cfg Config) Result {
	log := logging.FromContext(ctx)

	ev, ok := <-cfg.Events
	if !ok || ev.Manager == nil {
		log.Error().Str("name", logind.BusName).Msg("logind is not available on the system bus")
		return Result{ExitCode: 1}
	}
	mgr := ev.Manager

	session, err := mgr.SessionByPID(cfg.PID)
	if err != nil {
		log.Error().Err(err).Int("pid", cfg.PID).Msg("unable to resolve the calling session")
		return Result{ExitCode: 1}
	}

	state, err := mgr.SessionState(session)
	if err != nil {
		log.Error().Err(err).Str("session", string(session)).Msg("unable to read the session state")
		return Result{ExitCode: 1}
	}
	log.Debug().
		Str("session", string(session)).
		Str("state", state.State).
		Bool("locked_hint", state.LockedHint).
		Msg("session resolved")

	if cfg.Check {
		if state.LockedHint {
			return Result{ExitCode: 1, Output: HintSetOutput}
		}
		return Result{ExitCode: 0, Output: HintClearOutput}
	}

	if state.LockedHint && !cfg.Force {
		return Result{ExitCode: 1, Output: RefusalOutput}
	}

	if cfg.Locker == nil {
		log.Error().Msg("no locker command provided")
		return Result{ExitCode: 1}
	}

	// The locker starts before the hint is set. If setting the hint then
	// fails, the locker keeps running unsupervised.
	proc, err := cfg.Driver.Start(*cfg.Locker)
	if err != nil {
		log.Error().Err(err).Str("locker", cfg.Locker.String()).Msg("unable to start the locker")
		return Result{ExitCode: 1}
	}

	if err := mgr.SetLockedHint(session, true); err != nil {
		log.Error().Err(err).Msg("unable to set LockedHint; the locker keeps running unsupervised")
		return Result{ExitCode: 1}
	}
	log.Info().Str("locker", cfg.Locker.String()).Msg("LockedHint set, waiting for the locker")

	outcome, err := proc.Wait()
	if err != nil {
		log.Error().Err(err).Msg("unable to observe the locker outcome, leaving LockedHint set")
		return Result{ExitCode: 1}
	}

	if !outcome.Clean() {
		log.Warn().Stringer("outcome", outcome).Msg("locker terminated abnormally, leaving LockedHint set")
		return Result{ExitCode: 0}
	}

	if err := mgr.SetLockedHint(session, false); err != nil {
		log.Error().Err(err).Msg("unable to clear LockedHint")
		return Result{ExitCode: 1}
	}
	log.Info().Msg("locker exited cleanly, LockedHint cleared")

	return Result{ExitCode: 0}
}
