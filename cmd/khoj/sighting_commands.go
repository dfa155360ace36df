package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"khoj/internal/api"
	"khoj/internal/apiclient"
	"khoj/internal/config"
)

func newSightingCommand(ctx *commandContext) *cobra.Command {
	sightingCmd := &cobra.Command{
		Use:   "sighting",
		Short: "Report and review sightings",
	}

	sightingCmd.AddCommand(newSightingReportCommand(ctx))
	sightingCmd.AddCommand(newSightingListCommand(ctx))

	return sightingCmd
}

func newSightingReportCommand(ctx *commandContext) *cobra.Command {
	var req api.SightingRequest
	var photoPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "report <case-id>",
		Short: "Report a sighting with a photo for verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			expanded, err := config.ExpandPath(photoPath)
			if err != nil {
				return fmt.Errorf("resolve photo path: %w", err)
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				sighting, err := client.SubmitSighting(cmd.Context(), id, req, expanded)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, sighting)
				}
				printSightingOutcome(cmd, sighting)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&photoPath, "photo", "", "Photo of the sighted person")
	cmd.Flags().StringVar(&req.LocationText, "location", "", "Where the person was seen")
	cmd.Flags().StringVar(&req.DescriptionText, "description", "", "What the reporter observed")
	cmd.Flags().StringVar(&req.ReporterName, "reporter", "", "Name of the reporter")
	cmd.Flags().StringVar(&req.ReporterContact, "reporter-contact", "", "Contact details of the reporter")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	_ = cmd.MarkFlagRequired("photo")

	return cmd
}

func newSightingListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list <case-id>",
		Short: "List sightings reported against a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				sightings, err := client.ListSightings(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.SightingListResponse{Sightings: sightings})
				}
				stdout := cmd.OutOrStdout()
				if len(sightings) == 0 {
					fmt.Fprintln(stdout, "No sightings reported")
					return nil
				}
				rows := make([][]string, 0, len(sightings))
				for _, item := range sightings {
					confidence, status := "-", "-"
					if item.Verification != nil {
						confidence = strconv.FormatFloat(item.Verification.Confidence, 'f', 1, 64)
						status = item.Verification.Status
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.LocationText,
						confidence,
						status,
						item.ReporterName,
					})
				}
				fmt.Fprintln(stdout, renderTable([]column{
					{header: "ID", numeric: true},
					{header: "Location"},
					{header: "Confidence", numeric: true},
					{header: "Status"},
					{header: "Reporter"},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func printSightingOutcome(cmd *cobra.Command, sighting api.Sighting) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)
	verification := sighting.Verification
	if verification == nil {
		fmt.Fprintf(stdout, "Sighting %d recorded; verification unavailable\n", sighting.ID)
		return
	}

	status := colorized(verification.Status, verificationColor(verification.Status), colorize)
	fmt.Fprintf(stdout, "Sighting %d: %s (confidence %.1f%%)\n", sighting.ID, status, verification.Confidence)
	fmt.Fprintf(stdout, "Resolution profile: %s\n", displayLabel(verification.Resolution))

	components := []struct {
		label string
		key   string
	}{
		{"Vision", "vision"},
		{"Gait", "gait"},
		{"Location", "location"},
		{"Description", "description"},
	}
	for _, component := range components {
		if value, ok := verification.Breakdown[component.key]; ok {
			fmt.Fprintf(stdout, "  %-12s %.1f\n", component.label+":", value)
		}
	}
	if strings.TrimSpace(verification.Analysis) != "" {
		fmt.Fprintf(stdout, "\n%s\n", verification.Analysis)
	}
	if verification.Error != "" {
		fmt.Fprintf(stdout, "Warning: %s\n", verification.Error)
	}
}
