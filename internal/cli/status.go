package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server readiness, open violations, buffer alerts and drums",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			format := getOutputFormat()
			if format != "table" {
				summary := map[string]interface{}{}

				if ready, err := apiClient.Ready(ctx); err == nil {
					summary["database"] = ready.Database
				}
				if violations, err := apiClient.Violations().Summary(ctx); err == nil {
					summary["violations"] = violations
				}
				if alerts, err := apiClient.Buffers().Alerts(ctx); err == nil {
					summary["buffer_alerts"] = len(alerts)
				}
				if drums, err := apiClient.Drums().List(ctx); err == nil {
					summary["drums"] = len(drums)
				}
				return printOutput(summary)
			}

			fmt.Println("TOCGuard Status")
			fmt.Println(strings.Repeat("=", 40))

			// Server
			ready, err := apiClient.Ready(ctx)
			if err != nil {
				fmt.Printf("  Server:        (error: %v)\n", err)
			} else {
				fmt.Printf("  Server:        %s (%s)\n", ready.Status, ready.Database)
			}

			// Violations
			summary, err := apiClient.Violations().Summary(ctx)
			if err != nil {
				fmt.Printf("  Violations:    (error: %v)\n", err)
			} else {
				fmt.Printf("  Violations:    %d open (%d total)", summary.Open, summary.Total)
				if summary.Critical > 0 {
					fmt.Printf(" (%d critical)", summary.Critical)
				}
				fmt.Println()
			}

			// Buffers
			alerts, err := apiClient.Buffers().Alerts(ctx)
			if err != nil {
				fmt.Printf("  Buffer alerts: (error: %v)\n", err)
			} else {
				red := 0
				for _, a := range alerts {
					if a.Zone == "red" {
						red++
					}
				}
				fmt.Printf("  Buffer alerts: %d", len(alerts))
				if red > 0 {
					fmt.Printf(" (%d in red)", red)
				}
				fmt.Println()
			}

			// Drums
			drums, err := apiClient.Drums().List(ctx)
			if err != nil {
				fmt.Printf("  Drums:         (error: %v)\n", err)
			} else {
				names := make([]string, 0, len(drums))
				for _, d := range drums {
					names = append(names, d.Name)
				}
				fmt.Printf("  Drums:         %d", len(drums))
				if len(names) > 0 {
					fmt.Printf(" (%s)", strings.Join(names, ", "))
				}
				fmt.Println()
			}

			return nil
		},
	}
}
