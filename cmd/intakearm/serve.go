package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cjeanneret/IntakeArm/internal/debug"
	"github.com/cjeanneret/IntakeArm/internal/web"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the intake control page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") && (port <= 0 || port > 65535) {
				return fmt.Errorf("port must be 1-65535, got %d", port)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := opts.setup()
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("port") {
				port = a.cfg.Defaults.WebPort
			}

			broadcaster := web.NewStatusBroadcaster()
			debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

			srv := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, web.Deps{
				Run:          a.runIntake,
				Release:      a.latch.Release,
				Status:       func() any { return a.status() },
				FormDefaults: formDefaults(a.cfg),
			})
			return srv.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config, usually 8080)")
	return cmd
}
