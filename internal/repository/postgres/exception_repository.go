package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/domain/constraint"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
)

type ExceptionRepository struct {
	db *DB
}

func NewExceptionRepository(db *DB) constraint.ExceptionRepository {
	return &ExceptionRepository{db: db}
}

const exceptionColumns = `id, constraint_id, entity_type, entity_id, reason, approved_by,
	valid_from, valid_until, is_active, created_at`

func (r *ExceptionRepository) Create(ctx context.Context, e *constraint.Exception) error {
	e.CreatedAt = time.Now().UTC()
	if e.ValidFrom.IsZero() {
		e.ValidFrom = e.CreatedAt
	}

	query := `
		INSERT INTO constraint_exceptions (constraint_id, entity_type, entity_id, reason, approved_by,
			valid_from, valid_until, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.queryRow(ctx, query,
		e.ConstraintID, e.EntityType, nullableInt64(e.EntityID), e.Reason, e.ApprovedBy,
		timeArg(e.ValidFrom), nullableTimeArg(e.ValidUntil), e.IsActive, timeArg(e.CreatedAt),
	).Scan(&e.ID)
	if err != nil {
		return errors.DatabaseError("Failed to create constraint exception", err)
	}
	return nil
}

func (r *ExceptionRepository) Deactivate(ctx context.Context, id int64) error {
	result, err := r.db.exec(ctx, `UPDATE constraint_exceptions SET is_active = ? WHERE id = ?`, false, id)
	if err != nil {
		return errors.DatabaseError("Failed to deactivate constraint exception", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.NotFound("Constraint exception")
	}
	return nil
}

// ListActive filters the validity window in Go; SQLite stores timestamps as
// text that does not compare chronologically.
func (r *ExceptionRepository) ListActive(ctx context.Context, entityType string, entityID int64, at time.Time) ([]*constraint.Exception, error) {
	query := `SELECT ` + exceptionColumns + ` FROM constraint_exceptions
		WHERE is_active = ? AND entity_type = ? AND (entity_id IS NULL OR entity_id = ?)
		ORDER BY id`

	all, err := r.list(ctx, query, true, entityType, entityID)
	if err != nil {
		return nil, err
	}

	active := all[:0]
	for _, e := range all {
		if e.Covers(e.ConstraintID, entityType, entityID, at) {
			active = append(active, e)
		}
	}
	return active, nil
}

func (r *ExceptionRepository) List(ctx context.Context, constraintID int64) ([]*constraint.Exception, error) {
	query := `SELECT ` + exceptionColumns + ` FROM constraint_exceptions WHERE constraint_id = ? ORDER BY id`
	return r.list(ctx, query, constraintID)
}

func (r *ExceptionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*constraint.Exception, error) {
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list constraint exceptions", err)
	}
	defer rows.Close()

	var out []*constraint.Exception
	for rows.Next() {
		var e constraint.Exception
		var entityID sql.NullInt64
		var validFrom, validUntil, createdAt nullTime

		if err := rows.Scan(&e.ID, &e.ConstraintID, &e.EntityType, &entityID, &e.Reason, &e.ApprovedBy,
			&validFrom, &validUntil, &e.IsActive, &createdAt); err != nil {
			return nil, errors.DatabaseError("Failed to scan constraint exception", err)
		}

		e.EntityID = int64Ptr(entityID)
		e.ValidFrom = validFrom.Time
		e.ValidUntil = validUntil.ptr()
		e.CreatedAt = createdAt.Time
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list constraint exceptions", err)
	}
	return out, nil
}
