package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pratik-mahalle/tocguard/pkg/client"
	"github.com/spf13/cobra"
)

func newDrumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "drum",
		Aliases: []string{"drums"},
		Short:   "Identify and manage drum resources",
	}

	cmd.AddCommand(newDrumAnalyzeCmd())
	cmd.AddCommand(newDrumListCmd())
	cmd.AddCommand(newDrumHistoryCmd())
	cmd.AddCommand(newDrumUtilizationCmd())
	cmd.AddCommand(newDrumRegisterCmd())
	cmd.AddCommand(newDrumOperationCmd())
	cmd.AddCommand(newDrumDesignateCmd())
	cmd.AddCommand(newDrumClearCmd())

	return cmd
}

func newDrumAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Score every resource and update automated designations",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := apiClient.Drums().Analyze(context.Background())
			if err != nil {
				return fmt.Errorf("failed to analyze: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			fmt.Printf("Analyzed %d resources: %d drums identified, %d designations updated\n",
				result.Analyzed, result.Identified, result.Updated)
			if len(result.Recommendations) > 0 {
				fmt.Println()
				printRecommendations(result.Recommendations)
			}
			return nil
		},
	}
}

func newDrumListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current drums",
		RunE: func(cmd *cobra.Command, args []string) error {
			drums, err := apiClient.Drums().List(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list drums: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(drums)
			}

			t := NewTable("ID", "NAME", "TYPE", "METHOD", "SINCE", "REASON")
			for _, d := range drums {
				since := "-"
				if d.DrumDesignationDate != nil {
					since = d.DrumDesignationDate.Format("2006-01-02")
				}
				t.AddRow(
					strconv.FormatInt(d.ID, 10),
					truncate(d.Name, 25),
					derefString(d.DrumType, "-"),
					derefString(d.DrumDesignationMethod, "-"),
					since,
					truncate(derefString(d.DrumDesignationReason, ""), 40),
				)
			}
			t.Render()
			return nil
		},
	}
}

func newDrumHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the drum analysis ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := apiClient.Drums().History(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("failed to get history: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(items)
			}

			t := NewTable("WHEN", "TYPE", "ACTION", "RESOURCE", "SCORE", "BY")
			for _, h := range items {
				resource := "-"
				if h.ResourceName != nil {
					resource = *h.ResourceName
				} else if h.Action == "analyze" {
					resource = fmt.Sprintf("%d analyzed, %d drums", h.ResourcesAnalyzed, h.DrumsIdentified)
				}
				score := "-"
				if h.BottleneckScore != nil {
					score = formatFloat(*h.BottleneckScore)
				}
				t.AddRow(
					h.AnalysisDate.Format("2006-01-02 15:04:05"),
					h.AnalysisType,
					h.Action,
					resource,
					score,
					derefString(h.AnalyzedBy, "-"),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")

	return cmd
}

func newDrumUtilizationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "utilization",
		Short: "Score every resource without changing designations",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := apiClient.Drums().Utilization(context.Background())
			if err != nil {
				return fmt.Errorf("failed to score resources: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(items)
			}
			printRecommendations(items)
			return nil
		},
	}
}

func newDrumRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <name>",
		Short: "Register a resource for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := apiClient.Drums().RegisterResource(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to register resource: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(r)
			}
			fmt.Printf("Registered resource %d: %s\n", r.ID, r.Name)
			return nil
		},
	}
}

func newDrumOperationCmd() *cobra.Command {
	var name, at string

	cmd := &cobra.Command{
		Use:   "operation <resource-id> <minutes>",
		Short: "Record an operation run on a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "resource")
			if err != nil {
				return err
			}
			minutes, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", args[1])
			}

			var performedAt time.Time
			if at != "" {
				if performedAt, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			op, err := apiClient.Drums().RecordOperation(context.Background(), id, name, minutes, performedAt)
			if err != nil {
				return fmt.Errorf("failed to record operation: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(op)
			}
			fmt.Printf("Recorded operation %d on resource %d (%s min)\n", op.ID, op.ResourceID, formatFloat(op.DurationMinutes))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "operation name")
	cmd.Flags().StringVar(&at, "at", "", "when it ran, RFC 3339 (default: now)")

	return cmd
}

func newDrumDesignateCmd() *cobra.Command {
	var drumType, reason string

	cmd := &cobra.Command{
		Use:   "designate <resource-id>",
		Short: "Mark a resource as a drum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "resource")
			if err != nil {
				return err
			}

			r, err := apiClient.Drums().Designate(context.Background(), id, drumType, reason)
			if err != nil {
				return fmt.Errorf("failed to designate drum: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(r)
			}
			fmt.Printf("Resource %d (%s) is now a %s drum\n", r.ID, r.Name, derefString(r.DrumType, "primary"))
			return nil
		},
	}

	cmd.Flags().StringVar(&drumType, "type", "", "drum type: primary, secondary, potential (default primary)")
	cmd.Flags().StringVar(&reason, "reason", "", "designation reason")

	return cmd
}

func newDrumClearCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "clear <resource-id>",
		Short: "Remove a resource's drum designation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "resource")
			if err != nil {
				return err
			}

			r, err := apiClient.Drums().Clear(context.Background(), id, reason)
			if err != nil {
				return fmt.Errorf("failed to clear drum: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(r)
			}
			fmt.Printf("Resource %d (%s) is no longer a drum\n", r.ID, r.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "clearance reason")

	return cmd
}

func printRecommendations(items []client.DrumRecommendation) {
	t := NewTable("RESOURCE", "NAME", "SCORE", "OPS", "AVG MIN", "TOTAL MIN", "DRUM", "RECOMMENDATION")
	for _, r := range items {
		t.AddRow(
			strconv.FormatInt(r.ResourceID, 10),
			truncate(r.ResourceName, 25),
			formatFloat(r.Score),
			strconv.Itoa(r.OperationCount),
			strconv.FormatFloat(r.AvgDuration, 'f', 1, 64),
			formatFloat(r.TotalDuration),
			formatBool(r.IsDrum),
			r.Recommendation,
		)
	}
	t.Render()
}
