package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/pkg/validator"
	"github.com/pratik-mahalle/tocguard/pkg/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConstraintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "constraint",
		Aliases: []string{"constraints"},
		Short:   "Manage constraint rules",
	}

	cmd.AddCommand(newConstraintListCmd())
	cmd.AddCommand(newConstraintGetCmd())
	cmd.AddCommand(newConstraintCreateCmd())
	cmd.AddCommand(newConstraintImportCmd())
	cmd.AddCommand(newConstraintDeleteCmd())
	cmd.AddCommand(newExceptionCmd())

	return cmd
}

func parseIDArg(arg, kind string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", kind, arg)
	}
	return id, nil
}

func newConstraintListCmd() *cobra.Command {
	var category, scope string
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List constraints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			constraints, err := apiClient.Constraints().List(ctx, &client.ConstraintListOptions{
				Category:   category,
				Scope:      scope,
				ActiveOnly: activeOnly,
			})
			if err != nil {
				return fmt.Errorf("failed to list constraints: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(constraints)
			}

			t := NewTable("ID", "NAME", "CATEGORY", "SCOPE", "LEVEL", "PRIORITY", "RULE", "VERSION", "ACTIVE")
			for _, c := range constraints {
				t.AddRow(
					strconv.FormatInt(c.ID, 10),
					truncate(c.Name, 30),
					c.Category,
					c.Scope,
					c.SeverityLevel,
					c.Priority,
					truncate(formatRule(c.Rule), 40),
					strconv.Itoa(c.Version),
					formatBool(c.IsActive),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&scope, "scope", "", "filter by scope")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active constraints")

	return cmd
}

func newConstraintGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get constraint details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "constraint")
			if err != nil {
				return err
			}

			c, err := apiClient.Constraints().Get(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to get constraint: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(c)
			}

			fmt.Printf("ID:          %d\n", c.ID)
			fmt.Printf("Name:        %s\n", c.Name)
			fmt.Printf("Category:    %s\n", c.Category)
			fmt.Printf("Scope:       %s\n", c.Scope)
			if c.ScopeEntityID != nil {
				fmt.Printf("Scope ID:    %d\n", *c.ScopeEntityID)
			}
			fmt.Printf("Level:       %s\n", c.SeverityLevel)
			fmt.Printf("Priority:    %s\n", c.Priority)
			fmt.Printf("Rule:        %s\n", formatRule(c.Rule))
			fmt.Printf("Version:     %d\n", c.Version)
			fmt.Printf("Active:      %s\n", formatBool(c.IsActive))
			if c.Description != "" {
				fmt.Printf("Description: %s\n", c.Description)
			}
			return nil
		},
	}
}

func newConstraintCreateCmd() *cobra.Command {
	var req client.CreateConstraintRequest
	var field, operator, value string
	var scopeEntityID int64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Author a constraint",
		Example: `  tocctl constraint create --name "Capacity ceiling" --category capacity \
    --scope resource --level hard --field metrics.capacity --op "<" --value 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseScalar(value)
			if err != nil {
				return fmt.Errorf("invalid --value: %w", err)
			}
			req.Rule = client.Rule{Field: field, Operator: operator, Value: parsed}
			if scopeEntityID > 0 {
				req.ScopeEntityID = &scopeEntityID
			}

			if err := validateConstraint(validator.New(), req); err != nil {
				return err
			}

			c, err := apiClient.Constraints().Create(context.Background(), req)
			if err != nil {
				return fmt.Errorf("failed to create constraint: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(c)
			}
			fmt.Printf("Created constraint %d: %s (%s)\n", c.ID, c.Name, formatRule(c.Rule))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "constraint name")
	cmd.Flags().StringVar(&req.Description, "description", "", "description")
	cmd.Flags().StringVar(&req.Category, "category", "", "category")
	cmd.Flags().StringVar(&req.Scope, "scope", "", "scope: global, plant, resource, item")
	cmd.Flags().Int64Var(&scopeEntityID, "scope-id", 0, "entity the scope is pinned to")
	cmd.Flags().StringVar(&req.SeverityLevel, "level", "", "severity level: hard or soft")
	cmd.Flags().StringVar(&req.Priority, "priority", "", "priority: high, medium, low")
	cmd.Flags().StringVar(&field, "field", "", "dotted field path the rule reads")
	cmd.Flags().StringVar(&operator, "op", "", "operator: = != < > <= >= between in not_in")
	cmd.Flags().StringVar(&value, "value", "", "rule value as YAML, e.g. 100 or [1, 5]")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("op")

	return cmd
}

func newConstraintImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create constraints from a YAML file",
		Long: `Create constraints from a YAML file holding either a list of constraints
or a document with a "constraints" key. Every entry is checked before any is sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			reqs, err := parseConstraintFile(data)
			if err != nil {
				return err
			}

			val := validator.New()
			var problems []string
			for i, req := range reqs {
				if err := validateConstraint(val, req); err != nil {
					problems = append(problems, fmt.Sprintf("entry %d (%s): %v", i+1, req.Name, err))
				}
			}
			if len(problems) > 0 {
				return fmt.Errorf("invalid constraint file:\n  %s", strings.Join(problems, "\n  "))
			}

			if dryRun {
				fmt.Printf("%d constraints are valid\n", len(reqs))
				return nil
			}

			ctx := context.Background()
			created := make([]*client.Constraint, 0, len(reqs))
			for _, req := range reqs {
				c, err := apiClient.Constraints().Create(ctx, req)
				if err != nil {
					return fmt.Errorf("failed to create %q after %d created: %w", req.Name, len(created), err)
				}
				created = append(created, c)
			}

			if getOutputFormat() != "table" {
				return printOutput(created)
			}
			for _, c := range created {
				fmt.Printf("Created constraint %d: %s\n", c.ID, c.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without creating anything")

	return cmd
}

func newConstraintDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Deactivate a constraint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "constraint")
			if err != nil {
				return err
			}
			if err := apiClient.Constraints().Deactivate(context.Background(), id); err != nil {
				return fmt.Errorf("failed to deactivate constraint: %w", err)
			}
			fmt.Printf("Constraint %d deactivated\n", id)
			return nil
		},
	}
}

func newExceptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exception",
		Short: "Manage constraint exceptions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <constraint-id>",
		Short: "List a constraint's exceptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "constraint")
			if err != nil {
				return err
			}

			items, err := apiClient.Constraints().ListExceptions(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to list exceptions: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(items)
			}

			t := NewTable("ID", "ENTITY", "REASON", "APPROVED BY", "FROM", "UNTIL", "ACTIVE")
			for _, e := range items {
				entity := e.EntityType + "/*"
				if e.EntityID != nil {
					entity = fmt.Sprintf("%s/%d", e.EntityType, *e.EntityID)
				}
				until := "-"
				if e.ValidUntil != nil {
					until = e.ValidUntil.Format(time.RFC3339)
				}
				t.AddRow(
					strconv.FormatInt(e.ID, 10),
					entity,
					truncate(e.Reason, 30),
					e.ApprovedBy,
					e.ValidFrom.Format(time.RFC3339),
					until,
					formatBool(e.IsActive),
				)
			}
			t.Render()
			return nil
		},
	})

	var req client.CreateExceptionRequest
	var entityID int64
	var validFor time.Duration
	add := &cobra.Command{
		Use:   "add <constraint-id>",
		Short: "Waive a constraint for an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "constraint")
			if err != nil {
				return err
			}
			if entityID > 0 {
				req.EntityID = &entityID
			}
			if req.ApprovedBy == "" {
				req.ApprovedBy = apiClient.User()
			}
			if validFor > 0 {
				until := time.Now().Add(validFor)
				req.ValidUntil = &until
			}

			e, err := apiClient.Constraints().CreateException(context.Background(), id, req)
			if err != nil {
				return fmt.Errorf("failed to create exception: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(e)
			}
			fmt.Printf("Created exception %d for constraint %d\n", e.ID, e.ConstraintID)
			return nil
		},
	}
	add.Flags().StringVar(&req.EntityType, "entity-type", "", "entity type the exception covers")
	add.Flags().Int64Var(&entityID, "entity-id", 0, "entity the exception covers (default: every entity of the type)")
	add.Flags().StringVar(&req.Reason, "reason", "", "why the constraint is waived")
	add.Flags().StringVar(&req.ApprovedBy, "approved-by", "", "approver (default: --user)")
	add.Flags().DurationVar(&validFor, "for", 0, "how long the exception lasts (default: open-ended)")
	_ = add.MarkFlagRequired("entity-type")
	_ = add.MarkFlagRequired("reason")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <exception-id>",
		Short: "Deactivate an exception",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "exception")
			if err != nil {
				return err
			}
			if err := apiClient.Constraints().DeactivateException(context.Background(), id); err != nil {
				return fmt.Errorf("failed to deactivate exception: %w", err)
			}
			fmt.Printf("Exception %d deactivated\n", id)
			return nil
		},
	})

	return cmd
}

// constraintFile is the document form accepted by import
type constraintFile struct {
	Constraints []client.CreateConstraintRequest `yaml:"constraints"`
}

// parseConstraintFile reads either a bare list or a {constraints: [...]} document
func parseConstraintFile(data []byte) ([]client.CreateConstraintRequest, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse constraint file: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("constraint file is empty")
	}

	var reqs []client.CreateConstraintRequest
	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		if err := node.Content[0].Decode(&reqs); err != nil {
			return nil, fmt.Errorf("failed to decode constraints: %w", err)
		}
	case yaml.MappingNode:
		var doc constraintFile
		if err := node.Content[0].Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode constraints: %w", err)
		}
		reqs = doc.Constraints
	default:
		return nil, fmt.Errorf("constraint file must hold a list or a constraints key")
	}

	if len(reqs) == 0 {
		return nil, fmt.Errorf("constraint file holds no constraints")
	}
	return reqs, nil
}

// validateConstraint runs the checks the server would reject on, before sending
func validateConstraint(val *validator.Validator, req client.CreateConstraintRequest) error {
	var problems []string
	if strings.TrimSpace(req.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(req.Category) == "" {
		problems = append(problems, "category is required")
	}
	if req.Scope != "" {
		if err := val.ValidateVar(req.Scope, "rule_scope"); err != nil {
			problems = append(problems, fmt.Sprintf("unknown scope %q", req.Scope))
		}
	}
	if err := val.ValidateVar(req.Rule.Field, "field_path"); err != nil {
		problems = append(problems, fmt.Sprintf("invalid field path %q", req.Rule.Field))
	}
	if err := val.ValidateVar(req.Rule.Operator, "rule_operator"); err != nil {
		problems = append(problems, fmt.Sprintf("unknown operator %q", req.Rule.Operator))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// parseScalar decodes a command-line value as YAML so numbers, booleans and lists keep their type
func parseScalar(s string) (interface{}, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var v interface{}
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func formatRule(r client.Rule) string {
	return fmt.Sprintf("%s %s %v", r.Field, r.Operator, r.Value)
}
