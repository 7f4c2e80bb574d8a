package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/bnema/lockhinter/internal/cli/styles"
	"github.com/bnema/lockhinter/internal/config"
	"github.com/bnema/lockhinter/internal/logging"
	"github.com/bnema/lockhinter/internal/logind"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [locker [args...]]",
	Short: "Check that the session hint can be managed",
	Long: `Doctor verifies everything a supervised run needs:

- the D-Bus system bus is reachable
- logind owns its name on the bus
- the calling session resolves
- the session state and LockedHint are readable
- the locker command (given or configured) exists in PATH

Examples:
  lockhinter doctor
  lockhinter doctor swaylock`,
	Args: cobra.ArbitraryArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().SetInterspersed(false)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewFromConfigValues(cfg.Logging.Level, cfg.Logging.Format)
	ctx := logging.WithContext(cmd.Context(), logger)

	report := doctorReport(ctx, cfg, args)

	renderer := styles.NewDoctorRenderer(styles.NewTheme())
	fmt.Fprintln(cmd.OutOrStdout(), renderer.Render(report))

	if !report.OverallOK {
		return fmt.Errorf("session hint requirements not met")
	}

	return nil
}

func doctorReport(ctx context.Context, cfg *config.Config, args []string) styles.DoctorReport {
	log := logging.FromContext(ctx)
	var checks []styles.DoctorCheck

	var mgr *logind.Conn

	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		checks = append(checks, styles.DoctorCheck{Name: "System bus", Error: err.Error()})
	} else {
		defer func() {
			if err := bus.Close(); err != nil {
				log.Debug().Err(err).Msg("failed to close the bus connection")
			}
		}()
		checks = append(checks, styles.DoctorCheck{Name: "System bus", OK: true, Detail: "connected"})

		owner, err := logind.NameOwner(bus)
		if err != nil {
			checks = append(checks, styles.DoctorCheck{Name: "logind service", Error: err.Error()})
		} else {
			checks = append(checks, styles.DoctorCheck{
				Name:   "logind service",
				OK:     true,
				Detail: fmt.Sprintf("%s owned by %s", logind.BusName, owner),
			})
			mgr = logind.NewConn(bus, owner)
		}
	}
	if mgr == nil && len(checks) == 1 {
		checks = append(checks, styles.DoctorCheck{Name: "logind service", Skipped: true})
	}

	var session dbus.ObjectPath
	if mgr == nil {
		checks = append(checks, styles.DoctorCheck{Name: "Session", Skipped: true})
	} else {
		session, err = mgr.SessionByPID(os.Getpid())
		if err != nil {
			checks = append(checks, styles.DoctorCheck{Name: "Session", Error: err.Error()})
		} else {
			checks = append(checks, styles.DoctorCheck{Name: "Session", OK: true, Detail: string(session)})
		}
	}

	if mgr == nil || session == "" {
		checks = append(checks, styles.DoctorCheck{Name: "Session state", Skipped: true})
	} else {
		state, err := mgr.SessionState(session)
		if err != nil {
			checks = append(checks, styles.DoctorCheck{Name: "Session state", Error: err.Error()})
		} else {
			checks = append(checks, styles.DoctorCheck{
				Name:   "Session state",
				OK:     true,
				Detail: fmt.Sprintf("state=%s locked_hint=%t", state.State, state.LockedHint),
			})
		}
	}

	checks = append(checks, lockerCheck(cfg, args))

	report := styles.DoctorReport{Checks: checks, OverallOK: true}
	for _, c := range checks {
		if !c.OK && !c.Skipped {
			report.OverallOK = false
			break
		}
	}

	return report
}

func lockerCheck(cfg *config.Config, args []string) styles.DoctorCheck {
	command, err := lockerCommand(false, args, cfg)
	if err != nil {
		return styles.DoctorCheck{Name: "Locker command", Skipped: true, Detail: "no locker given or configured"}
	}

	path, err := exec.LookPath(command.Path)
	if err != nil {
		return styles.DoctorCheck{Name: "Locker command", Error: err.Error()}
	}

	return styles.DoctorCheck{Name: "Locker command", OK: true, Detail: path}
}
