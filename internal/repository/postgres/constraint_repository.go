package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/domain/constraint"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
)

type ConstraintRepository struct {
	db *DB
}

func NewConstraintRepository(db *DB) constraint.Repository {
	return &ConstraintRepository{db: db}
}

const constraintColumns = `id, name, description, category, scope, scope_entity_id, severity_level,
	priority, is_active, version, rule, created_at, updated_at`

func (r *ConstraintRepository) Create(ctx context.Context, c *constraint.Constraint) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Version == 0 {
		c.Version = 1
	}

	rule, err := json.Marshal(c.Rule)
	if err != nil {
		return errors.Internal("Failed to encode constraint rule", err)
	}

	query := `
		INSERT INTO constraints (name, description, category, scope, scope_entity_id, severity_level,
			priority, is_active, version, rule, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err = r.db.queryRow(ctx, query,
		c.Name, c.Description, c.Category, string(c.Scope), nullableInt64(c.ScopeEntityID), c.SeverityLevel,
		c.Priority, c.IsActive, c.Version, string(rule), timeArg(now), timeArg(now),
	).Scan(&c.ID)
	if err != nil {
		return errors.DatabaseError("Failed to create constraint", err)
	}

	return nil
}

func (r *ConstraintRepository) GetByID(ctx context.Context, id int64) (*constraint.Constraint, error) {
	query := `SELECT ` + constraintColumns + ` FROM constraints WHERE id = ?`

	c, err := scanConstraint(r.db.queryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Constraint")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get constraint", err)
	}
	return c, nil
}

func (r *ConstraintRepository) Update(ctx context.Context, c *constraint.Constraint) error {
	c.UpdatedAt = time.Now().UTC()

	rule, err := json.Marshal(c.Rule)
	if err != nil {
		return errors.Internal("Failed to encode constraint rule", err)
	}

	query := `
		UPDATE constraints SET name = ?, description = ?, category = ?, scope = ?, scope_entity_id = ?,
			severity_level = ?, priority = ?, is_active = ?, version = ?, rule = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.exec(ctx, query,
		c.Name, c.Description, c.Category, string(c.Scope), nullableInt64(c.ScopeEntityID),
		c.SeverityLevel, c.Priority, c.IsActive, c.Version, string(rule), timeArg(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return errors.DatabaseError("Failed to update constraint", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.NotFound("Constraint")
	}

	return nil
}

func (r *ConstraintRepository) List(ctx context.Context, filter constraint.Filter) ([]*constraint.Constraint, error) {
	where := []string{"1 = 1"}
	args := []interface{}{}

	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Scope != "" {
		where = append(where, "scope = ?")
		args = append(args, filter.Scope)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}

	query := fmt.Sprintf(`SELECT %s FROM constraints WHERE %s ORDER BY id`, constraintColumns, strings.Join(where, " AND "))
	return r.list(ctx, query, args...)
}

func (r *ConstraintRepository) GetApplicable(ctx context.Context, entityType string, entityID int64) ([]*constraint.Constraint, error) {
	query := `SELECT ` + constraintColumns + ` FROM constraints
		WHERE is_active = ?
		AND (scope = ? OR (scope = ? AND (scope_entity_id IS NULL OR scope_entity_id = ?)))
		ORDER BY id`

	return r.list(ctx, query, true, string(constraint.ScopeGlobal), entityType, entityID)
}

func (r *ConstraintRepository) list(ctx context.Context, query string, args ...interface{}) ([]*constraint.Constraint, error) {
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list constraints", err)
	}
	defer rows.Close()

	var out []*constraint.Constraint
	for rows.Next() {
		c, err := scanConstraint(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan constraint", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list constraints", err)
	}
	return out, nil
}

func scanConstraint(row rowScanner) (*constraint.Constraint, error) {
	var c constraint.Constraint
	var scope, rule string
	var scopeEntityID sql.NullInt64
	var createdAt, updatedAt nullTime

	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Category, &scope, &scopeEntityID, &c.SeverityLevel,
		&c.Priority, &c.IsActive, &c.Version, &rule, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(rule), &c.Rule); err != nil {
		return nil, fmt.Errorf("constraint %d has an unreadable rule: %w", c.ID, err)
	}

	c.Scope = constraint.Scope(scope)
	c.ScopeEntityID = int64Ptr(scopeEntityID)
	c.CreatedAt = createdAt.Time
	c.UpdatedAt = updatedAt.Time
	return &c, nil
}
