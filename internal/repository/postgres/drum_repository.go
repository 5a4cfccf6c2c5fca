package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/domain/drum"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
)

type DrumRepository struct {
	db *DB
}

func NewDrumRepository(db *DB) drum.Repository {
	return &DrumRepository{db: db}
}

const resourceColumns = `id, name, is_drum, drum_type, drum_designation_date,
	drum_designation_reason, drum_designation_method`

func (r *DrumRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithinTx(ctx, fn)
}

func (r *DrumRepository) CreateResource(ctx context.Context, res *drum.Resource) error {
	query := `
		INSERT INTO resources (name, is_drum, drum_type, drum_designation_date,
			drum_designation_reason, drum_designation_method)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.queryRow(ctx, query,
		res.Name, res.IsDrum, nullableString(res.DrumType), nullableTimeArg(res.DrumDesignationDate),
		nullableString(res.DrumDesignationReason), nullableString(res.DrumDesignationMethod),
	).Scan(&res.ID)
	if err != nil {
		return errors.DatabaseError("Failed to create resource", err)
	}
	return nil
}

func (r *DrumRepository) RecordOperation(ctx context.Context, op *drum.Operation) error {
	if op.PerformedAt.IsZero() {
		op.PerformedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO resource_operations (resource_id, name, duration_minutes, performed_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.queryRow(ctx, query, op.ResourceID, op.Name, op.DurationMinutes, timeArg(op.PerformedAt)).Scan(&op.ID)
	if err != nil {
		return errors.DatabaseError("Failed to record resource operation", err)
	}
	return nil
}

func (r *DrumRepository) GetResource(ctx context.Context, id int64) (*drum.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`

	res, err := scanResource(r.db.queryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Resource")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get resource", err)
	}
	return res, nil
}

func (r *DrumRepository) ListDrums(ctx context.Context) ([]*drum.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE is_drum = ? ORDER BY id`

	rows, err := r.db.query(ctx, query, true)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list drums", err)
	}
	defer rows.Close()

	var out []*drum.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan resource", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list drums", err)
	}
	return out, nil
}

// ListUtilization includes resources without operations as zero rows
func (r *DrumRepository) ListUtilization(ctx context.Context) ([]*drum.Utilization, error) {
	query := `
		SELECT res.id, res.name, res.is_drum,
			COUNT(op.id),
			COALESCE(SUM(op.duration_minutes), 0),
			COALESCE(AVG(op.duration_minutes), 0)
		FROM resources res
		LEFT JOIN resource_operations op ON op.resource_id = res.id
		GROUP BY res.id, res.name, res.is_drum
		ORDER BY res.id
	`

	rows, err := r.db.query(ctx, query)
	if err != nil {
		return nil, errors.DatabaseError("Failed to aggregate resource utilization", err)
	}
	defer rows.Close()

	var out []*drum.Utilization
	for rows.Next() {
		var u drum.Utilization
		if err := rows.Scan(&u.ResourceID, &u.ResourceName, &u.IsDrum, &u.OperationCount, &u.TotalDuration, &u.AvgDuration); err != nil {
			return nil, errors.DatabaseError("Failed to scan resource utilization", err)
		}
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to aggregate resource utilization", err)
	}
	return out, nil
}

func (r *DrumRepository) SetDrumFlag(ctx context.Context, d drum.Designation) error {
	var query string
	var args []interface{}

	if d.IsDrum {
		query = `UPDATE resources SET is_drum = ?, drum_type = ?, drum_designation_date = ?,
			drum_designation_reason = ?, drum_designation_method = ? WHERE id = ?`
		args = []interface{}{true, d.DrumType, timeArg(d.At), d.Reason, d.Method, d.ResourceID}
	} else {
		query = `UPDATE resources SET is_drum = ?, drum_type = NULL, drum_designation_date = ?,
			drum_designation_reason = ?, drum_designation_method = ? WHERE id = ?`
		args = []interface{}{false, timeArg(d.At), d.Reason, d.Method, d.ResourceID}
	}

	result, err := r.db.exec(ctx, query, args...)
	if err != nil {
		return errors.DatabaseError("Failed to update drum designation", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.NotFound("Resource")
	}
	return nil
}

func (r *DrumRepository) CreateAnalysisHistory(ctx context.Context, h *drum.AnalysisHistory) error {
	if h.AnalysisDate.IsZero() {
		h.AnalysisDate = time.Now().UTC()
	}

	var opCount interface{}
	if h.OperationCount != nil {
		opCount = *h.OperationCount
	}

	query := `
		INSERT INTO drum_analysis_history (analysis_type, action, resource_id, resource_name, bottleneck_score,
			operation_count, total_duration, resources_analyzed, drums_identified, designations_updated,
			recommendations, analyzed_by, analysis_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.queryRow(ctx, query,
		h.AnalysisType, h.Action, nullableInt64(h.ResourceID), nullableString(h.ResourceName), nullableFloat(h.BottleneckScore),
		opCount, nullableFloat(h.TotalDuration), h.ResourcesAnalyzed, h.DrumsIdentified, h.DesignationsUpdated,
		h.Recommendations, nullableString(h.AnalyzedBy), timeArg(h.AnalysisDate),
	).Scan(&h.ID)
	if err != nil {
		return errors.DatabaseError("Failed to record drum analysis", err)
	}
	return nil
}

func (r *DrumRepository) ListAnalysisHistory(ctx context.Context, limit int) ([]*drum.AnalysisHistory, error) {
	query := `
		SELECT id, analysis_type, action, resource_id, resource_name, bottleneck_score, operation_count,
			total_duration, resources_analyzed, drums_identified, designations_updated, recommendations,
			analyzed_by, analysis_date
		FROM drum_analysis_history ORDER BY id DESC LIMIT ?`

	rows, err := r.db.query(ctx, query, limitOrDefault(limit))
	if err != nil {
		return nil, errors.DatabaseError("Failed to list drum analysis history", err)
	}
	defer rows.Close()

	var out []*drum.AnalysisHistory
	for rows.Next() {
		var h drum.AnalysisHistory
		var resourceID, opCount sql.NullInt64
		var resourceName, analyzedBy sql.NullString
		var score, totalDuration sql.NullFloat64
		var analysisDate nullTime

		if err := rows.Scan(&h.ID, &h.AnalysisType, &h.Action, &resourceID, &resourceName, &score, &opCount,
			&totalDuration, &h.ResourcesAnalyzed, &h.DrumsIdentified, &h.DesignationsUpdated, &h.Recommendations,
			&analyzedBy, &analysisDate); err != nil {
			return nil, errors.DatabaseError("Failed to scan drum analysis history", err)
		}

		h.ResourceID = int64Ptr(resourceID)
		h.ResourceName = stringPtr(resourceName)
		h.BottleneckScore = floatPtr(score)
		if opCount.Valid {
			n := int(opCount.Int64)
			h.OperationCount = &n
		}
		h.TotalDuration = floatPtr(totalDuration)
		h.AnalyzedBy = stringPtr(analyzedBy)
		h.AnalysisDate = analysisDate.Time
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list drum analysis history", err)
	}
	return out, nil
}

func scanResource(row rowScanner) (*drum.Resource, error) {
	var res drum.Resource
	var drumType, reason, method sql.NullString
	var designated nullTime

	if err := row.Scan(&res.ID, &res.Name, &res.IsDrum, &drumType, &designated, &reason, &method); err != nil {
		return nil, err
	}

	res.DrumType = stringPtr(drumType)
	res.DrumDesignationDate = designated.ptr()
	res.DrumDesignationReason = stringPtr(reason)
	res.DrumDesignationMethod = stringPtr(method)
	return &res, nil
}
