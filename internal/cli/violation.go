package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pratik-mahalle/tocguard/pkg/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newEvaluateCmd() *cobra.Command {
	var file string
	var sets []string

	cmd := &cobra.Command{
		Use:   "evaluate <entity-type> <entity-id>",
		Short: "Evaluate an entity snapshot against the constraint set",
		Example: `  tocctl evaluate resource 7 --set metrics.capacity=120
  tocctl evaluate order 42 --file snapshot.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || entityID < 0 {
				return fmt.Errorf("invalid entity ID: %s", args[1])
			}

			data := map[string]interface{}{}
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				if err := yaml.Unmarshal(raw, &data); err != nil {
					return fmt.Errorf("failed to parse snapshot: %w", err)
				}
			}
			if err := applyAssignments(data, sets); err != nil {
				return err
			}
			if len(data) == 0 {
				return fmt.Errorf("snapshot is empty: pass --file or --set")
			}

			result, err := apiClient.Constraints().Evaluate(context.Background(), args[0], entityID, data)
			if err != nil {
				return fmt.Errorf("failed to evaluate: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			if result.Count == 0 {
				fmt.Printf("%s %d satisfies every applicable constraint\n", result.EntityType, result.EntityID)
				return nil
			}
			printViolations(result.Violations)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON snapshot file")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "snapshot field as path=value (repeatable)")

	return cmd
}

func newViolationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "violation",
		Aliases: []string{"violations"},
		Short:   "Work the violation queue",
	}

	cmd.AddCommand(newViolationListCmd())
	cmd.AddCommand(newViolationGetCmd())
	cmd.AddCommand(newViolationSummaryCmd())
	cmd.AddCommand(newViolationResolveCmd())
	cmd.AddCommand(newViolationWaiveCmd())

	return cmd
}

func newViolationListCmd() *cobra.Command {
	var opts client.ViolationListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := apiClient.Violations().List(context.Background(), &opts)
			if err != nil {
				return fmt.Errorf("failed to list violations: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(items)
			}
			printViolations(items)
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.ConstraintID, "constraint", 0, "filter by constraint ID")
	cmd.Flags().StringVar(&opts.EntityType, "entity-type", "", "filter by entity type")
	cmd.Flags().Int64Var(&opts.EntityID, "entity-id", 0, "filter by entity ID")
	cmd.Flags().StringVar(&opts.Severity, "severity", "", "filter by severity")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status: open, resolved, waived")

	return cmd
}

func newViolationGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get violation details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "violation")
			if err != nil {
				return err
			}

			v, err := apiClient.Violations().Get(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to get violation: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(v)
			}

			fmt.Printf("ID:         %d\n", v.ID)
			fmt.Printf("Constraint: %d %s\n", v.ConstraintID, v.ConstraintName)
			fmt.Printf("Entity:     %s/%d\n", v.EntityType, v.EntityID)
			fmt.Printf("Actual:     %s\n", v.ActualValue)
			fmt.Printf("Expected:   %s\n", v.ExpectedValue)
			fmt.Printf("Severity:   %s\n", formatSeverity(v.Severity))
			fmt.Printf("Status:     %s\n", formatStatus(v.Status))
			fmt.Printf("Impact:     %s\n", v.ImpactDescription)
			fmt.Printf("Detected:   %s\n", v.DetectedAt.Format("2006-01-02 15:04:05"))
			if v.Resolution != nil {
				fmt.Printf("Resolution: %s (by %s)\n", *v.Resolution, derefString(v.ResolvedBy, "-"))
			}
			if v.WaiverReason != nil {
				fmt.Printf("Waived:     %s (by %s)\n", *v.WaiverReason, derefString(v.WaivedBy, "-"))
			}
			return nil
		},
	}
}

func newViolationSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count violations by severity and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := apiClient.Violations().Summary(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get summary: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(s)
			}

			t := NewTable("TOTAL", "CRITICAL", "MAJOR", "MINOR", "OPEN", "RESOLVED", "WAIVED")
			t.AddRow(
				strconv.Itoa(s.Total),
				strconv.Itoa(s.Critical),
				strconv.Itoa(s.Major),
				strconv.Itoa(s.Minor),
				strconv.Itoa(s.Open),
				strconv.Itoa(s.Resolved),
				strconv.Itoa(s.Waived),
			)
			t.Render()
			return nil
		},
	}
}

func newViolationResolveCmd() *cobra.Command {
	var resolution, resolvedBy string

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Close an open violation as fixed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "violation")
			if err != nil {
				return err
			}

			v, err := apiClient.Violations().Resolve(context.Background(), id, resolution, resolvedBy)
			if err != nil {
				return fmt.Errorf("failed to resolve violation: %w", err)
			}
			fmt.Printf("Violation %d %s\n", v.ID, v.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&resolution, "resolution", "", "what was done")
	cmd.Flags().StringVar(&resolvedBy, "by", "", "resolver (default: --user)")
	_ = cmd.MarkFlagRequired("resolution")

	return cmd
}

func newViolationWaiveCmd() *cobra.Command {
	var reason, approvedBy string

	cmd := &cobra.Command{
		Use:   "waive <id>",
		Short: "Accept an open violation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "violation")
			if err != nil {
				return err
			}

			v, err := apiClient.Violations().Waive(context.Background(), id, reason, approvedBy)
			if err != nil {
				return fmt.Errorf("failed to waive violation: %w", err)
			}
			fmt.Printf("Violation %d %s\n", v.ID, v.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the violation is accepted")
	cmd.Flags().StringVar(&approvedBy, "by", "", "approver (default: --user)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func printViolations(items []client.Violation) {
	t := NewTable("ID", "CONSTRAINT", "ENTITY", "ACTUAL", "EXPECTED", "SEVERITY", "STATUS")
	for _, v := range items {
		t.AddRow(
			strconv.FormatInt(v.ID, 10),
			truncate(v.ConstraintName, 25),
			fmt.Sprintf("%s/%d", v.EntityType, v.EntityID),
			truncate(v.ActualValue, 20),
			truncate(v.ExpectedValue, 20),
			formatSeverity(v.Severity),
			formatStatus(v.Status),
		)
	}
	t.Render()
}

// applyAssignments sets path=value pairs into data, creating nested maps along dotted paths
func applyAssignments(data map[string]interface{}, sets []string) error {
	for _, set := range sets {
		path, raw, ok := strings.Cut(set, "=")
		if !ok || strings.TrimSpace(path) == "" {
			return fmt.Errorf("invalid --set %q: want path=value", set)
		}

		value, err := parseScalar(raw)
		if err != nil {
			return fmt.Errorf("invalid --set %q: %w", set, err)
		}

		segments := strings.Split(path, ".")
		node := data
		for _, seg := range segments[:len(segments)-1] {
			if seg == "" {
				return fmt.Errorf("invalid --set %q: empty path segment", set)
			}
			child, ok := node[seg].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				node[seg] = child
			}
			node = child
		}
		last := segments[len(segments)-1]
		if last == "" {
			return fmt.Errorf("invalid --set %q: empty path segment", set)
		}
		node[last] = value
	}
	return nil
}
