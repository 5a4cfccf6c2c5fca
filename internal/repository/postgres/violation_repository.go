package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/domain/constraint"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
)

type ViolationRepository struct {
	db *DB
}

func NewViolationRepository(db *DB) constraint.ViolationRepository {
	return &ViolationRepository{db: db}
}

const violationColumns = `v.id, v.constraint_id, COALESCE(c.name, ''), v.entity_type, v.entity_id,
	v.actual_value, v.expected_value, v.severity, v.impact_description, v.status,
	v.resolution, v.resolved_by, v.resolved_at, v.waiver_reason, v.waived_by, v.waived_at,
	v.detected_at, v.updated_at`

func (r *ViolationRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithinTx(ctx, fn)
}

// UpsertOpen relies on the partial unique index over open violations. A
// repeated breach keeps the original detection time and refreshes the rest.
func (r *ViolationRepository) UpsertOpen(ctx context.Context, v *constraint.Violation) error {
	now := time.Now().UTC()
	if v.DetectedAt.IsZero() {
		v.DetectedAt = now
	}
	v.UpdatedAt = now
	v.Status = constraint.StatusOpen

	query := `
		INSERT INTO constraint_violations (constraint_id, entity_type, entity_id, actual_value, expected_value,
			severity, impact_description, status, detected_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (constraint_id, entity_type, entity_id) WHERE status = 'open'
		DO UPDATE SET actual_value = excluded.actual_value,
			expected_value = excluded.expected_value,
			severity = excluded.severity,
			impact_description = excluded.impact_description,
			updated_at = excluded.updated_at
		RETURNING id, detected_at
	`

	var detectedAt nullTime
	err := r.db.queryRow(ctx, query,
		v.ConstraintID, v.EntityType, v.EntityID, v.ActualValue, v.ExpectedValue,
		v.Severity, v.ImpactDescription, v.Status, timeArg(v.DetectedAt), timeArg(v.UpdatedAt),
	).Scan(&v.ID, &detectedAt)
	if err != nil {
		return errors.DatabaseError("Failed to record violation", err)
	}
	v.DetectedAt = detectedAt.Time

	return nil
}

func (r *ViolationRepository) GetByID(ctx context.Context, id int64) (*constraint.Violation, error) {
	query := `SELECT ` + violationColumns + `
		FROM constraint_violations v LEFT JOIN constraints c ON c.id = v.constraint_id
		WHERE v.id = ?`

	v, err := scanViolation(r.db.queryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Violation")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get violation", err)
	}
	return v, nil
}

// Transition only touches open rows, so two concurrent transitions cannot
// both succeed
func (r *ViolationRepository) Transition(ctx context.Context, id int64, t constraint.Transition) error {
	var query string
	switch t.Status {
	case constraint.StatusResolved:
		query = `UPDATE constraint_violations SET status = ?, resolution = ?, resolved_by = ?, resolved_at = ?, updated_at = ?
			WHERE id = ? AND status = 'open'`
	case constraint.StatusWaived:
		query = `UPDATE constraint_violations SET status = ?, waiver_reason = ?, waived_by = ?, waived_at = ?, updated_at = ?
			WHERE id = ? AND status = 'open'`
	default:
		return errors.BadRequest(fmt.Sprintf("unsupported violation status %q", t.Status))
	}

	result, err := r.db.exec(ctx, query, t.Status, t.Note, t.Actor, timeArg(t.At), timeArg(t.At), id)
	if err != nil {
		return errors.DatabaseError("Failed to update violation", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get affected rows", err)
	}
	if rows > 0 {
		return nil
	}

	var status string
	err = r.db.queryRow(ctx, `SELECT status FROM constraint_violations WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return errors.NotFound("Violation")
	}
	if err != nil {
		return errors.DatabaseError("Failed to get violation", err)
	}
	return errors.Conflict(fmt.Sprintf("violation %d is already %s", id, status))
}

func (r *ViolationRepository) List(ctx context.Context, filter constraint.ViolationFilter) ([]*constraint.Violation, error) {
	where := []string{"1 = 1"}
	args := []interface{}{}

	if filter.ConstraintID != 0 {
		where = append(where, "v.constraint_id = ?")
		args = append(args, filter.ConstraintID)
	}
	if filter.EntityType != "" {
		where = append(where, "v.entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != 0 {
		where = append(where, "v.entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Severity != "" {
		where = append(where, "v.severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Status != "" {
		where = append(where, "v.status = ?")
		args = append(args, filter.Status)
	}

	query := fmt.Sprintf(`SELECT %s
		FROM constraint_violations v LEFT JOIN constraints c ON c.id = v.constraint_id
		WHERE %s ORDER BY v.id DESC`, violationColumns, strings.Join(where, " AND "))

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list violations", err)
	}
	defer rows.Close()

	violations := make([]*constraint.Violation, 0, 16)
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan violation", err)
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list violations", err)
	}
	return violations, nil
}

func (r *ViolationRepository) CountBySeverityAndStatus(ctx context.Context) (map[string]map[string]int, error) {
	rows, err := r.db.query(ctx, `SELECT severity, status, COUNT(*) FROM constraint_violations GROUP BY severity, status`)
	if err != nil {
		return nil, errors.DatabaseError("Failed to count violations", err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]int)
	for rows.Next() {
		var severity, status string
		var n int
		if err := rows.Scan(&severity, &status, &n); err != nil {
			return nil, errors.DatabaseError("Failed to scan violation count", err)
		}
		if counts[severity] == nil {
			counts[severity] = make(map[string]int)
		}
		counts[severity][status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to count violations", err)
	}
	return counts, nil
}

func scanViolation(row rowScanner) (*constraint.Violation, error) {
	var v constraint.Violation
	var resolution, resolvedBy, waiverReason, waivedBy sql.NullString
	var resolvedAt, waivedAt, detectedAt, updatedAt nullTime

	err := row.Scan(&v.ID, &v.ConstraintID, &v.ConstraintName, &v.EntityType, &v.EntityID,
		&v.ActualValue, &v.ExpectedValue, &v.Severity, &v.ImpactDescription, &v.Status,
		&resolution, &resolvedBy, &resolvedAt, &waiverReason, &waivedBy, &waivedAt,
		&detectedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	v.Resolution = stringPtr(resolution)
	v.ResolvedBy = stringPtr(resolvedBy)
	v.ResolvedAt = resolvedAt.ptr()
	v.WaiverReason = stringPtr(waiverReason)
	v.WaivedBy = stringPtr(waivedBy)
	v.WaivedAt = waivedAt.ptr()
	v.DetectedAt = detectedAt.Time
	v.UpdatedAt = updatedAt.Time
	return &v, nil
}
