// Package cmd provides Cobra CLI commands for lockhinter.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/bnema/lockhinter/internal/build"
	"github.com/bnema/lockhinter/internal/config"
	"github.com/bnema/lockhinter/internal/locker"
	"github.com/bnema/lockhinter/internal/logging"
	"github.com/bnema/lockhinter/internal/logind"
	"github.com/bnema/lockhinter/internal/supervisor"
)

var (
	buildInfo build.Info
	checkHint bool
	force     bool
	exitCode  int

	rootCmd = &cobra.Command{
		Use:   "lockhinter [flags] -- locker [args...]",
		Short: "Hold the logind LockedHint while a screen locker runs",
		Long: `Lockhinter starts the given screen locker and sets the LockedHint
property on the calling logind session for as long as the locker runs.

Desktop environments maintain this hint themselves, and software such as
usbguard integrations or password managers relies on it to tell whether
the session is locked. Standalone compositors and window managers leave
it untouched; lockhinter fills that gap without the locker having to know
anything about logind.

The hint is cleared only when the locker exits cleanly. A locker that
crashes, is killed, or returns non-zero leaves the hint set, so nothing
downstream ever believes the session unlocked when it was not.

In check mode (-c) the current hint is printed as TRUE or FALSE and the
exit code mirrors it: 1 when set, 0 when clear.`,
		Example: `  lockhinter -- swaylock -f
  lockhinter --check
  lockhinter --force -- swaylock`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE:         runRoot,
	}
)

func init() {
	rootCmd.Flags().BoolVarP(&checkHint, "check", "c", false, "only report whether LockedHint is set (prints TRUE or FALSE), run nothing")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "run the locker even if LockedHint is already set")
	// Everything after the locker executable belongs to the locker.
	rootCmd.Flags().SetInterspersed(false)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return exitCode
}

// SetBuildInfo sets the build information (called from main.go before Execute).
func SetBuildInfo(info build.Info) {
	buildInfo = info
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	command, err := lockerCommand(checkHint, args, cfg)
	if err != nil {
		return err
	}

	logger := logging.NewFromConfigValues(cfg.Logging.Level, cfg.Logging.Format)
	ctx := logging.WithContext(cmd.Context(), logger)
	log := logging.FromContext(ctx)

	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		log.Error().Err(err).Msg("unable to connect to the system bus")
		exitCode = 1
		return nil
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close the bus connection")
		}
	}()

	watcher, err := logind.Watch(ctx, bus)
	if err != nil {
		log.Error().Err(err).Msg("unable to watch the logind name")
		exitCode = 1
		return nil
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to stop the logind watcher")
		}
	}()

	result := supervisor.Run(ctx, supervisor.Config{
		Events: watcher.Events(),
		PID:    os.Getpid(),
		Check:  checkHint,
		Force:  force,
		Locker: command,
		Driver: locker.ExecDriver{},
	})
	if result.Output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), result.Output)
	}
	exitCode = result.ExitCode

	return nil
}

// lockerCommand resolves the locker argv: command-line positionals win over
// the configured default. Check mode needs no locker.
func lockerCommand(check bool, args []string, cfg *config.Config) (*locker.Command, error) {
	if check {
		return nil, nil
	}

	switch {
	case len(args) > 0:
		return &locker.Command{Path: args[0], Args: args[1:]}, nil
	case len(cfg.Locker.Command) > 0:
		return &locker.Command{Path: cfg.Locker.Command[0], Args: cfg.Locker.Command[1:]}, nil
	default:
		return nil, errors.New(`a locker command is required: pass one after "--" or set locker.command in the config file`)
	}
}
