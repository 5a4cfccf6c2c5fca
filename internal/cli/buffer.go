package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pratik-mahalle/tocguard/pkg/client"
	"github.com/spf13/cobra"
)

func newBufferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "buffer",
		Aliases: []string{"buffers"},
		Short:   "Monitor protective buffers",
	}

	cmd.AddCommand(newBufferListCmd())
	cmd.AddCommand(newBufferGetCmd())
	cmd.AddCommand(newBufferCreateCmd())
	cmd.AddCommand(newBufferLevelCmd())
	cmd.AddCommand(newBufferHealthCmd())
	cmd.AddCommand(newBufferAlertsCmd())
	cmd.AddCommand(newBufferHistoryCmd())
	cmd.AddCommand(newBufferPolicyCmd())

	return cmd
}

func newBufferListCmd() *cobra.Command {
	var opts client.BufferListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List buffer definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := apiClient.Buffers().List(context.Background(), &opts)
			if err != nil {
				return fmt.Errorf("failed to list buffers: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(items)
			}

			t := NewTable("ID", "NAME", "TYPE", "CATEGORY", "TARGET", "RED %", "YELLOW %", "ACTIVE")
			for _, b := range items {
				t.AddRow(
					strconv.FormatInt(b.ID, 10),
					truncate(b.Name, 30),
					b.BufferType,
					b.BufferCategory,
					strings.TrimSpace(formatFloat(b.TargetSize)+" "+b.UOM),
					formatFloat(b.RedZonePercent),
					formatFloat(b.YellowZonePercent),
					formatBool(b.IsActive),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.BufferType, "type", "", "filter by buffer type")
	cmd.Flags().StringVar(&opts.BufferCategory, "category", "", "filter by buffer category")
	cmd.Flags().BoolVar(&opts.ActiveOnly, "active", false, "only active buffers")

	return cmd
}

func newBufferGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a buffer definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "buffer")
			if err != nil {
				return err
			}

			b, err := apiClient.Buffers().Get(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to get buffer: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(b)
			}

			fmt.Printf("ID:       %d\n", b.ID)
			fmt.Printf("Name:     %s\n", b.Name)
			fmt.Printf("Type:     %s / %s\n", b.BufferType, b.BufferCategory)
			fmt.Printf("Target:   %s %s\n", formatFloat(b.TargetSize), b.UOM)
			fmt.Printf("Zones:    red %s%%, yellow %s%%, green %s%%\n",
				formatFloat(b.RedZonePercent), formatFloat(b.YellowZonePercent),
				formatFloat(100-b.RedZonePercent-b.YellowZonePercent))
			fmt.Printf("Active:   %s\n", formatBool(b.IsActive))
			return nil
		},
	}
}

func newBufferCreateCmd() *cobra.Command {
	var req client.CreateBufferRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Define a buffer",
		Example: `  tocctl buffer create --name "Shipping A" --type stock --category shipping \
    --target 1000 --uom units --red 20 --yellow 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := apiClient.Buffers().Create(context.Background(), req)
			if err != nil {
				return fmt.Errorf("failed to create buffer: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(b)
			}
			fmt.Printf("Created buffer %d: %s\n", b.ID, b.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "buffer name")
	cmd.Flags().StringVar(&req.BufferType, "type", "", "buffer type: time or stock")
	cmd.Flags().StringVar(&req.BufferCategory, "category", "", "drum, feeding, shipping, stock, space or capacity")
	cmd.Flags().Float64Var(&req.TargetSize, "target", 0, "target size")
	cmd.Flags().StringVar(&req.UOM, "uom", "", "unit of measure")
	cmd.Flags().Float64Var(&req.RedZonePercent, "red", 33, "red zone percent of target")
	cmd.Flags().Float64Var(&req.YellowZonePercent, "yellow", 33, "yellow zone percent of target")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func newBufferLevelCmd() *cobra.Command {
	var consumer string

	cmd := &cobra.Command{
		Use:   "level <id> <level>",
		Short: "Record a buffer's observed level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "buffer")
			if err != nil {
				return err
			}
			level, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid level: %s", args[1])
			}

			ref, err := parseEntityRef(consumer)
			if err != nil {
				return err
			}

			c, err := apiClient.Buffers().UpdateLevel(context.Background(), id, level, ref)
			if err != nil {
				return fmt.Errorf("failed to update level: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(c)
			}

			fmt.Printf("Level %s (%.1f%%) is %s", formatFloat(c.CurrentLevel), c.LevelPercent, formatZone(c.CurrentZone))
			if c.PenetrationIntoRed > 0 {
				fmt.Printf(", %.1f%% into red", c.PenetrationIntoRed)
			}
			fmt.Println()
			if c.ActionRequired != nil {
				fmt.Printf("Action: %s\n", *c.ActionRequired)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&consumer, "consumer", "", "consuming entity as type/id, e.g. order/42")

	return cmd
}

func newBufferHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health <id>",
		Short: "Analyse a buffer's recent observations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "buffer")
			if err != nil {
				return err
			}

			h, err := apiClient.Buffers().Health(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to analyse buffer: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(h)
			}

			fmt.Printf("Buffer:      %s\n", h.BufferName)
			if h.CurrentStatus == nil {
				fmt.Println("Status:      no observations")
			} else {
				fmt.Printf("Status:      %s at %s\n", formatZone(h.CurrentStatus.CurrentZone), formatFloat(h.CurrentStatus.CurrentLevel))
				fmt.Printf("Penetration: %.1f%%\n", h.CurrentStatus.PenetrationIntoRed)
			}
			if h.ProjectedExhaustion != nil {
				fmt.Printf("Exhaustion:  %.1f hours\n", *h.ProjectedExhaustion)
			}
			fmt.Printf("History:     %d observations\n", len(h.PenetrationHistory))
			for _, r := range h.Recommendations {
				fmt.Printf("  - %s\n", r)
			}
			return nil
		},
	}
}

func newBufferAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List buffers outside their green zone",
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, err := apiClient.Buffers().Alerts(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list alerts: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(alerts)
			}

			t := NewTable("BUFFER", "NAME", "ZONE", "LEVEL", "SEVERITY", "MESSAGE")
			for _, a := range alerts {
				t.AddRow(
					strconv.FormatInt(a.BufferID, 10),
					truncate(a.BufferName, 25),
					formatZone(a.Zone),
					formatFloat(a.Level),
					a.Severity,
					truncate(a.Message, 50),
				)
			}
			t.Render()
			return nil
		},
	}
}

func newBufferHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "List a buffer's zone changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "buffer")
			if err != nil {
				return err
			}

			items, err := apiClient.Buffers().History(context.Background(), id, limit)
			if err != nil {
				return fmt.Errorf("failed to get history: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(items)
			}

			t := NewTable("WHEN", "FROM", "TO", "LEVEL", "IMPACT")
			for _, e := range items {
				t.AddRow(
					e.OccurredAt.Format("2006-01-02 15:04:05"),
					e.PreviousZone,
					formatZone(e.NewZone),
					formatFloat(e.PreviousLevel)+" -> "+formatFloat(e.NewLevel),
					e.ImpactSeverity,
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum events to show")

	return cmd
}

func newBufferPolicyCmd() *cobra.Command {
	var req client.SetPolicyRequest
	var emergency float64

	cmd := &cobra.Command{
		Use:   "policy <id>",
		Short: "Set a buffer's replenishment policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "buffer")
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("emergency") {
				req.EmergencyPenetrationPercent = &emergency
			}

			p, err := apiClient.Buffers().SetPolicy(context.Background(), id, req)
			if err != nil {
				return fmt.Errorf("failed to set policy: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(p)
			}
			fmt.Printf("Policy for buffer %d: %s, lead time %sh\n", p.BufferDefinitionID, p.ReplenishmentRule, formatFloat(p.ReplenishmentLeadTimeHours))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ReplenishmentRule, "rule", "", "replenishment rule")
	cmd.Flags().Float64Var(&req.ReplenishmentLeadTimeHours, "lead-time", 0, "replenishment lead time in hours")
	cmd.Flags().Float64Var(&emergency, "emergency", 0, "red-zone penetration percent that raises an emergency")
	_ = cmd.MarkFlagRequired("rule")

	return cmd
}

// parseEntityRef reads a type/id pair; an empty string means no entity
func parseEntityRef(s string) (*client.EntityRef, error) {
	if s == "" {
		return nil, nil
	}
	kind, rawID, ok := strings.Cut(s, "/")
	if !ok || kind == "" {
		return nil, fmt.Errorf("invalid entity %q: want type/id", s)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid entity ID in %q", s)
	}
	return &client.EntityRef{Type: kind, ID: id}, nil
}
