package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
)

func newAngleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "angle",
		Short: "Print the current arm angle (encoder calibration)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup()
			if err != nil {
				return err
			}
			defer a.Close()

			deg := a.arm.CurrentAngle()
			if math.IsNaN(deg) {
				return fmt.Errorf("encoder read failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f°\n", deg)
			return nil
		},
	}
}
