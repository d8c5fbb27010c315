package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// options are the flags shared by every subcommand.
type options struct {
	cfgPath    string
	debugLevel int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "intakearm",
		Short: "Pivot the intake arm to an angle, then run the intake",
		Long: `intakearm drives a robot intake arm: a pivot motor with an absolute
encoder and a pair of intake rollers behind PWM motor controllers.

"run" performs one pivot-then-intake cycle from the terminal; the intake
runs while the intake button is held. "serve" exposes the same cycle on a
small web page.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.cfgPath, "config", filepath.Join("configs", "default.yaml"), "path to config file")
	root.PersistentFlags().IntVar(&opts.debugLevel, "debug", -1, "debug level 0-4, -1 = use config")

	root.AddCommand(newRunCmd(opts), newServeCmd(opts), newAngleCmd(opts))
	return root
}

func (o *options) setup() (*app, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("init hardware: %w", err)
	}
	return a, nil
}
