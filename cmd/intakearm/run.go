package main

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/cjeanneret/IntakeArm/internal/web"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		targetAngleDeg float64
		timeoutMs      int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one pivot-then-intake cycle",
		Long: `Pivot the arm to the target angle, then run the intake until the intake
button is released or the timeout expires. Ctrl-C stops both motors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := validateCLIOverrides(
				targetAngleDeg, cmd.Flags().Changed("target_angle_deg"),
				timeoutMs, cmd.Flags().Changed("timeout_ms"),
			)
			if err != nil {
				return fmt.Errorf("invalid CLI override: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := opts.setup()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.runIntake(ctx, overrides); err != nil {
				return err
			}
			if st := a.lastStatus(); st != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "intake ended: %s (state %s, error %+.2f°, %d ms)\n",
					st.Reason, st.State, st.ErrorDeg, st.ElapsedMs)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&targetAngleDeg, "target_angle_deg", 0, "override target angle in degrees (-180 to 180)")
	cmd.Flags().IntVar(&timeoutMs, "timeout_ms", 0, "override command timeout in ms (1-60000)")
	return cmd
}

// validateCLIOverrides turns the flags that were set into run overrides.
// Unset flags keep the configured values.
func validateCLIOverrides(target float64, targetSet bool, timeout int, timeoutSet bool) (web.Overrides, error) {
	var o web.Overrides
	if targetSet {
		if math.IsNaN(target) || math.IsInf(target, 0) {
			return o, fmt.Errorf("target_angle_deg must be a finite number, got %g", target)
		}
		o.TargetAngleDeg = &target
	}
	if timeoutSet {
		o.TimeoutMs = &timeout
	}
	if err := web.ValidateOverrides(o); err != nil {
		return web.Overrides{}, err
	}
	return o, nil
}
