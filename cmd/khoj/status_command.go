package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"khoj/internal/apiclient"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.client()
			if err != nil {
				return err
			}

			status, err := client.Status(cmd.Context())
			if apiclient.IsDaemonUnavailable(err) {
				if jsonOutput {
					return writeJSON(cmd, apiclient.DaemonStatus{Running: false})
				}
				fmt.Fprintln(stdout, "Daemon is not running; start it with `khojd`")
				return nil
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			colorize := shouldColorize(stdout)
			for _, line := range renderSectionHeader("Daemon Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			running := colorized("running", ansiGreen, colorize)
			if !status.Running {
				running = colorized("stopped", ansiRed, colorize)
			}
			fmt.Fprintf(stdout, "State:     %s\n", running)
			fmt.Fprintf(stdout, "API:       %s\n", status.APIAddress)
			fmt.Fprintf(stdout, "Case DB:   %s\n", status.CaseDBPath)
			fmt.Fprintf(stdout, "Lock file: %s\n", status.LockFilePath)
			for _, state := range []string{"MISSING", "SIGHTED", "FOUND", "CLOSED"} {
				if count := status.CasesByStatus[state]; count > 0 {
					fmt.Fprintf(stdout, "Cases %s: %d\n", displayLabel(state), count)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}
