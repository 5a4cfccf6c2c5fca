package client_test

import (
	"context"
	"fmt"
	"log"

	"github.com/pratik-mahalle/tocguard/pkg/client"
)

// Example demonstrates basic usage of the TOCGuard client
func Example() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
		UserID:  "planner",
	})

	ctx := context.Background()

	result, err := c.Constraints().Evaluate(ctx, "resource", 7, map[string]interface{}{
		"metrics": map[string]interface{}{"capacity": 120},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found %d violations\n", result.Count)
}

// ExampleConstraintService_Create demonstrates authoring a constraint
func ExampleConstraintService_Create() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	created, err := c.Constraints().Create(context.Background(), client.CreateConstraintRequest{
		Name:          "Capacity ceiling",
		Category:      "capacity",
		Scope:         "resource",
		SeverityLevel: "hard",
		Rule: client.Rule{
			Field:    "metrics.capacity",
			Operator: "<",
			Value:    100,
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Created constraint %d (version %d)\n", created.ID, created.Version)
}

// ExampleBufferService_UpdateLevel demonstrates recording a buffer observation
func ExampleBufferService_UpdateLevel() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	obs, err := c.Buffers().UpdateLevel(context.Background(), 1, 150, &client.EntityRef{Type: "order", ID: 42})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Buffer is %s, %.1f%% into red\n", obs.CurrentZone, obs.PenetrationIntoRed)
}

// ExampleViolationService_Resolve demonstrates handling a conflict on a closed violation
func ExampleViolationService_Resolve() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
		UserID:  "planner",
	})

	_, err := c.Violations().Resolve(context.Background(), 12, "Capacity added", "")
	if apiErr, ok := err.(*client.APIError); ok && apiErr.IsConflict() {
		fmt.Println("Violation was already closed")
		return
	}
	if err != nil {
		log.Fatal(err)
	}
}
