package main

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/plutobench/internal/launcher"
)

func newLauncherCmd(a *app) *cobra.Command {
	var (
		port   int
		output string
	)

	cmd := &cobra.Command{
		Use:   "launcher",
		Short: "Print the Pluto.jl launch descriptor",
		Long: `Prints the descriptor a notebook-hosting launcher uses to start Pluto.jl.
With --port the {port} placeholder in the command is substituted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := launcher.PlutoServer()
			if d.Insecure() {
				a.logger.Warn("Descriptor disables Pluto authentication on all interfaces", map[string]interface{}{
					"title": d.LauncherEntry.Title,
				})
			}
			if cmd.Flags().Changed("port") {
				command, err := d.Expand(port)
				if err != nil {
					return err
				}
				d.Command = command
			}
			return encode(cmd.OutOrStdout(), output, d)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Substitute this port into the command")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json, yaml)")
	return cmd
}
