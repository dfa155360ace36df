package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"khoj/internal/api"
	"khoj/internal/apiclient"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search cases by description similarity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withClient(func(client *apiclient.Client) error {
				results, err := client.Search(cmd.Context(), query)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.SearchResponse{Results: results})
				}
				stdout := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(stdout, "No matching cases")
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, result := range results {
					rows = append(rows, []string{
						strconv.FormatInt(result.Case.ID, 10),
						result.Case.Name,
						fmt.Sprintf("%.2f", result.Similarity),
						result.Case.LastSeenLocation,
					})
				}
				fmt.Fprintln(stdout, renderTable([]column{
					{header: "ID", numeric: true},
					{header: "Name"},
					{header: "Similarity", numeric: true},
					{header: "Last Seen"},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sweep <case-id>",
		Short: "Sweep the camera network for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				sweep, err := client.Sweep(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, sweep)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Swept %d cameras, %d matches\n", sweep.CamerasSwept, len(sweep.Matches))
				for _, match := range sweep.Matches {
					fmt.Fprintf(stdout, "  %s at %s (%.1f%%, %s)\n",
						match.CameraID, match.Location, match.Confidence, displayLabel(match.MatchType))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newAgeProgressionCommand(ctx *commandContext) *cobra.Command {
	var targetAge int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "age-progression <case-id>",
		Short: "Describe how the person may look at an older age",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.AgeProgression(cmd.Context(), id, targetAge)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Age %d projection:\n%s\n", resp.TargetAge, resp.Description)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&targetAge, "target-age", 0, "Age to project the appearance to")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	_ = cmd.MarkFlagRequired("target-age")

	return cmd
}
