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

func newCaseCommand(ctx *commandContext) *cobra.Command {
	caseCmd := &cobra.Command{
		Use:   "case",
		Short: "Manage missing person cases",
	}

	caseCmd.AddCommand(newCaseAddCommand(ctx))
	caseCmd.AddCommand(newCaseListCommand(ctx))
	caseCmd.AddCommand(newCaseShowCommand(ctx))
	caseCmd.AddCommand(newCaseStatusCommand(ctx))
	caseCmd.AddCommand(newCaseCloseCommand(ctx))

	return caseCmd
}

func newCaseAddCommand(ctx *commandContext) *cobra.Command {
	var req api.NewCaseRequest
	var photoPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Open a new missing person case",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(photoPath) != "" {
				expanded, err := config.ExpandPath(photoPath)
				if err != nil {
					return fmt.Errorf("resolve photo path: %w", err)
				}
				photoPath = expanded
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				created, err := client.CreateCase(cmd.Context(), req, photoPath)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, created)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Case %d opened for %s (priority %s)\n", created.ID, created.Name, displayLabel(created.SearchPriority))
				if len(created.PredictedLocations) > 0 {
					fmt.Fprintf(stdout, "Predicted locations: %s\n", strings.Join(created.PredictedLocations, ", "))
				}
				for _, factor := range created.RiskFactors {
					fmt.Fprintf(stdout, "Risk: %s\n", factor)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Full name of the missing person")
	cmd.Flags().IntVar(&req.Age, "age", 0, "Age in years")
	cmd.Flags().StringVar(&req.Description, "description", "", "Physical description and clothing")
	cmd.Flags().StringVar(&req.LastSeenLocation, "last-seen", "", "Last known location")
	cmd.Flags().StringVar(&req.Contact, "contact", "", "Family contact details")
	cmd.Flags().StringVar(&photoPath, "photo", "", "Reference photo file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("age")

	return cmd
}

func newCaseListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				cases, err := client.ListCases(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.CaseListResponse{Cases: cases})
				}
				stdout := cmd.OutOrStdout()
				if len(cases) == 0 {
					fmt.Fprintln(stdout, "No open cases")
					return nil
				}
				rows := make([][]string, 0, len(cases))
				for _, item := range cases {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Name,
						strconv.Itoa(item.Age),
						displayLabel(item.Status),
						displayLabel(item.SearchPriority),
						item.LastSeenLocation,
					})
				}
				fmt.Fprintln(stdout, renderTable([]column{
					{header: "ID", numeric: true},
					{header: "Name"},
					{header: "Age", numeric: true},
					{header: "Status"},
					{header: "Priority"},
					{header: "Last Seen"},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newCaseShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show full case details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				found, err := client.GetCase(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, found)
				}
				printCaseDetail(cmd, found)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newCaseStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <case-id>",
		Short: "Show case progress including sweeps and sightings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.CaseStatus(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, line := range renderSectionHeader(fmt.Sprintf("Case %d: %s", status.Case.ID, status.Case.Name), colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintf(stdout, "Status:       %s\n", displayLabel(status.Case.Status))
				fmt.Fprintf(stdout, "Priority:     %s\n", displayLabel(status.Case.SearchPriority))
				fmt.Fprintf(stdout, "Sightings:    %d\n", status.Sightings)
				fmt.Fprintf(stdout, "Search state: %s\n", displayLabel(status.SearchState))
				if status.CamerasSwept > 0 {
					fmt.Fprintf(stdout, "Last sweep:   %d cameras, %d matches\n", status.CamerasSwept, status.MatchesFound)
				}
				for _, match := range status.Matches {
					fmt.Fprintf(stdout, "  %s at %s (%.1f%%, %s)\n", match.CameraID, match.Location, match.Confidence, displayLabel(match.MatchType))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newCaseCloseCommand(ctx *commandContext) *cobra.Command {
	var found bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "close <case-id>",
		Short: "Close a case, optionally marking the person as found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				closed, err := client.CloseCase(cmd.Context(), id, found)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, closed)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Case %d closed for %s (status %s)\n", closed.ID, closed.Name, displayLabel(closed.Status))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&found, "found", false, "Mark the person as found")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func printCaseDetail(cmd *cobra.Command, found api.Case) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)
	for _, line := range renderSectionHeader(fmt.Sprintf("Case %d: %s", found.ID, found.Name), colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintf(stdout, "Age:         %d\n", found.Age)
	fmt.Fprintf(stdout, "Status:      %s\n", displayLabel(found.Status))
	fmt.Fprintf(stdout, "Priority:    %s\n", displayLabel(found.SearchPriority))
	if found.LastSeenLocation != "" {
		fmt.Fprintf(stdout, "Last seen:   %s\n", found.LastSeenLocation)
	}
	if found.Description != "" {
		fmt.Fprintf(stdout, "Description: %s\n", found.Description)
	}
	if found.Contact != "" {
		fmt.Fprintf(stdout, "Contact:     %s\n", found.Contact)
	}
	if found.PhotoURL != "" {
		fmt.Fprintf(stdout, "Photo:       %s\n", found.PhotoURL)
	}
	if len(found.PredictedLocations) > 0 {
		fmt.Fprintf(stdout, "Predicted locations: %s\n", strings.Join(found.PredictedLocations, ", "))
	}
	for _, factor := range found.RiskFactors {
		fmt.Fprintf(stdout, "Risk: %s\n", factor)
	}
	if found.Narrative != "" {
		fmt.Fprintf(stdout, "\n%s\n", found.Narrative)
	}
}

func parseCaseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid case id %q", arg)
	}
	return id, nil
}
