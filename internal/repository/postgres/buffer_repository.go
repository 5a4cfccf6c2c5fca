package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
)

type BufferRepository struct {
	db *DB
}

func NewBufferRepository(db *DB) buffer.Repository {
	return &BufferRepository{db: db}
}

const definitionColumns = `id, name, buffer_type, buffer_category, target_size, uom, red_zone_percent,
	yellow_zone_percent, location_entity_type, location_entity_id, is_active, created_at, updated_at`

const consumptionColumns = `id, buffer_definition_id, current_level, level_percent, current_zone,
	consumption_rate, penetration_into_red, alert_status, action_required,
	consuming_entity_type, consuming_entity_id, recorded_at`

const policyColumns = `id, buffer_definition_id, replenishment_rule, replenishment_lead_time_hours,
	emergency_penetration_percent, is_active, updated_at`

func (r *BufferRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithinTx(ctx, fn)
}

func (r *BufferRepository) CreateDefinition(ctx context.Context, d *buffer.Definition) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	query := `
		INSERT INTO buffer_definitions (name, buffer_type, buffer_category, target_size, uom, red_zone_percent,
			yellow_zone_percent, location_entity_type, location_entity_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.queryRow(ctx, query,
		d.Name, d.BufferType, d.BufferCategory, d.TargetSize, d.UOM, d.RedZonePercent,
		d.YellowZonePercent, d.LocationEntityType, nullableInt64(d.LocationEntityID), d.IsActive,
		timeArg(now), timeArg(now),
	).Scan(&d.ID)
	if err != nil {
		return errors.DatabaseError("Failed to create buffer definition", err)
	}
	return nil
}

func (r *BufferRepository) GetDefinition(ctx context.Context, id int64) (*buffer.Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM buffer_definitions WHERE id = ?`

	d, err := scanDefinition(r.db.queryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Buffer definition")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get buffer definition", err)
	}
	return d, nil
}

func (r *BufferRepository) UpdateDefinition(ctx context.Context, d *buffer.Definition) error {
	d.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE buffer_definitions SET name = ?, buffer_type = ?, buffer_category = ?, target_size = ?, uom = ?,
			red_zone_percent = ?, yellow_zone_percent = ?, location_entity_type = ?, location_entity_id = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.exec(ctx, query,
		d.Name, d.BufferType, d.BufferCategory, d.TargetSize, d.UOM,
		d.RedZonePercent, d.YellowZonePercent, d.LocationEntityType, nullableInt64(d.LocationEntityID),
		d.IsActive, timeArg(d.UpdatedAt), d.ID,
	)
	if err != nil {
		return errors.DatabaseError("Failed to update buffer definition", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.NotFound("Buffer definition")
	}
	return nil
}

func (r *BufferRepository) ListDefinitions(ctx context.Context, filter buffer.Filter) ([]*buffer.Definition, error) {
	where := []string{"1 = 1"}
	args := []interface{}{}

	if filter.BufferType != "" {
		where = append(where, "buffer_type = ?")
		args = append(args, filter.BufferType)
	}
	if filter.BufferCategory != "" {
		where = append(where, "buffer_category = ?")
		args = append(args, filter.BufferCategory)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}

	query := fmt.Sprintf(`SELECT %s FROM buffer_definitions WHERE %s ORDER BY id`, definitionColumns, strings.Join(where, " AND "))

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list buffer definitions", err)
	}
	defer rows.Close()

	var out []*buffer.Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan buffer definition", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list buffer definitions", err)
	}
	return out, nil
}

// LockDefinition takes a row lock on PostgreSQL. SQLite runs a single
// writer connection, so the open transaction already excludes other writers.
func (r *BufferRepository) LockDefinition(ctx context.Context, id int64) error {
	if r.db.Driver() != DriverPostgres {
		return nil
	}

	var locked int64
	err := r.db.queryRow(ctx, `SELECT id FROM buffer_definitions WHERE id = ? FOR UPDATE`, id).Scan(&locked)
	if err == sql.ErrNoRows {
		return errors.NotFound("Buffer definition")
	}
	if err != nil {
		return errors.DatabaseError("Failed to lock buffer definition", err)
	}
	return nil
}

func (r *BufferRepository) GetLatestConsumption(ctx context.Context, bufferID int64) (*buffer.Consumption, error) {
	query := `SELECT ` + consumptionColumns + ` FROM buffer_consumptions
		WHERE buffer_definition_id = ? ORDER BY id DESC LIMIT 1`

	c, err := scanConsumption(r.db.queryRow(ctx, query, bufferID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get latest buffer consumption", err)
	}
	return c, nil
}

func (r *BufferRepository) CreateConsumption(ctx context.Context, c *buffer.Consumption) error {
	if c.RecordedAt.IsZero() {
		c.RecordedAt = time.Now().UTC()
	}

	var entityType, entityID interface{}
	if c.ConsumingEntity != nil {
		entityType, entityID = c.ConsumingEntity.Type, c.ConsumingEntity.ID
	}

	query := `
		INSERT INTO buffer_consumptions (buffer_definition_id, current_level, level_percent, current_zone,
			consumption_rate, penetration_into_red, alert_status, action_required,
			consuming_entity_type, consuming_entity_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.queryRow(ctx, query,
		c.BufferDefinitionID, c.CurrentLevel, c.LevelPercent, string(c.CurrentZone),
		c.ConsumptionRate, c.PenetrationIntoRed, c.AlertStatus, nullableString(c.ActionRequired),
		entityType, entityID, timeArg(c.RecordedAt),
	).Scan(&c.ID)
	if err != nil {
		return errors.DatabaseError("Failed to record buffer consumption", err)
	}
	return nil
}

func (r *BufferRepository) CreateHistoryEvent(ctx context.Context, e *buffer.HistoryEvent) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	var entityType, entityID interface{}
	if e.ConsumingEntity != nil {
		entityType, entityID = e.ConsumingEntity.Type, e.ConsumingEntity.ID
	}

	query := `
		INSERT INTO buffer_management_history (buffer_definition_id, consumption_id, event_type,
			previous_level, new_level, previous_zone, new_zone, impact_severity,
			consuming_entity_type, consuming_entity_id, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.queryRow(ctx, query,
		e.BufferDefinitionID, e.ConsumptionID, e.EventType,
		e.PreviousLevel, e.NewLevel, string(e.PreviousZone), string(e.NewZone), e.ImpactSeverity,
		entityType, entityID, timeArg(e.OccurredAt),
	).Scan(&e.ID)
	if err != nil {
		return errors.DatabaseError("Failed to record buffer history", err)
	}
	return nil
}

func (r *BufferRepository) ListConsumptions(ctx context.Context, bufferID int64, limit int) ([]*buffer.Consumption, error) {
	query := `SELECT ` + consumptionColumns + ` FROM buffer_consumptions
		WHERE buffer_definition_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := r.db.query(ctx, query, bufferID, limitOrDefault(limit))
	if err != nil {
		return nil, errors.DatabaseError("Failed to list buffer consumptions", err)
	}
	defer rows.Close()

	var out []*buffer.Consumption
	for rows.Next() {
		c, err := scanConsumption(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan buffer consumption", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list buffer consumptions", err)
	}
	return out, nil
}

func (r *BufferRepository) ListHistory(ctx context.Context, bufferID int64, limit int) ([]*buffer.HistoryEvent, error) {
	query := `
		SELECT id, buffer_definition_id, consumption_id, event_type, previous_level, new_level,
			previous_zone, new_zone, impact_severity, consuming_entity_type, consuming_entity_id, occurred_at
		FROM buffer_management_history
		WHERE buffer_definition_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := r.db.query(ctx, query, bufferID, limitOrDefault(limit))
	if err != nil {
		return nil, errors.DatabaseError("Failed to list buffer history", err)
	}
	defer rows.Close()

	var out []*buffer.HistoryEvent
	for rows.Next() {
		var e buffer.HistoryEvent
		var prevZone, newZone string
		var entityType sql.NullString
		var entityID sql.NullInt64
		var occurredAt nullTime

		if err := rows.Scan(&e.ID, &e.BufferDefinitionID, &e.ConsumptionID, &e.EventType, &e.PreviousLevel,
			&e.NewLevel, &prevZone, &newZone, &e.ImpactSeverity, &entityType, &entityID, &occurredAt); err != nil {
			return nil, errors.DatabaseError("Failed to scan buffer history", err)
		}

		e.PreviousZone = buffer.Zone(prevZone)
		e.NewZone = buffer.Zone(newZone)
		e.ConsumingEntity = entityRef(entityType, entityID)
		e.OccurredAt = occurredAt.Time
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list buffer history", err)
	}
	return out, nil
}

// ListLatestObservations joins every active definition with its newest
// observation and active policy in a single round trip
func (r *BufferRepository) ListLatestObservations(ctx context.Context) ([]*buffer.LatestObservation, error) {
	query := `
		SELECT d.id, d.name, d.buffer_type, d.buffer_category, d.target_size, d.uom, d.red_zone_percent,
			d.yellow_zone_percent, d.location_entity_type, d.location_entity_id, d.is_active, d.created_at, d.updated_at,
			c.id, c.current_level, c.level_percent, c.current_zone, c.consumption_rate, c.penetration_into_red,
			c.alert_status, c.action_required, c.consuming_entity_type, c.consuming_entity_id, c.recorded_at,
			p.id, p.replenishment_rule, p.replenishment_lead_time_hours, p.emergency_penetration_percent, p.updated_at
		FROM buffer_definitions d
		LEFT JOIN buffer_consumptions c ON c.id = (
			SELECT MAX(id) FROM buffer_consumptions WHERE buffer_definition_id = d.id
		)
		LEFT JOIN buffer_policies p ON p.buffer_definition_id = d.id AND p.is_active = ?
		WHERE d.is_active = ?
		ORDER BY d.id
	`

	rows, err := r.db.query(ctx, query, true, true)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list buffer observations", err)
	}
	defer rows.Close()

	var out []*buffer.LatestObservation
	for rows.Next() {
		var d buffer.Definition
		var locationID sql.NullInt64
		var createdAt, updatedAt nullTime

		var cID sql.NullInt64
		var cLevel, cPercent, cRate, cPenetration sql.NullFloat64
		var cZone, cAlert, cAction, cEntityType sql.NullString
		var cEntityID sql.NullInt64
		var cRecordedAt nullTime

		var pID sql.NullInt64
		var pRule sql.NullString
		var pLead, pEmergency sql.NullFloat64
		var pUpdatedAt nullTime

		err := rows.Scan(
			&d.ID, &d.Name, &d.BufferType, &d.BufferCategory, &d.TargetSize, &d.UOM, &d.RedZonePercent,
			&d.YellowZonePercent, &d.LocationEntityType, &locationID, &d.IsActive, &createdAt, &updatedAt,
			&cID, &cLevel, &cPercent, &cZone, &cRate, &cPenetration,
			&cAlert, &cAction, &cEntityType, &cEntityID, &cRecordedAt,
			&pID, &pRule, &pLead, &pEmergency, &pUpdatedAt,
		)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan buffer observation", err)
		}

		d.LocationEntityID = int64Ptr(locationID)
		d.CreatedAt = createdAt.Time
		d.UpdatedAt = updatedAt.Time
		obs := &buffer.LatestObservation{Definition: &d}

		if cID.Valid {
			obs.Consumption = &buffer.Consumption{
				ID:                 cID.Int64,
				BufferDefinitionID: d.ID,
				CurrentLevel:       cLevel.Float64,
				LevelPercent:       cPercent.Float64,
				CurrentZone:        buffer.Zone(cZone.String),
				ConsumptionRate:    cRate.Float64,
				PenetrationIntoRed: cPenetration.Float64,
				AlertStatus:        cAlert.String,
				ActionRequired:     stringPtr(cAction),
				ConsumingEntity:    entityRef(cEntityType, cEntityID),
				RecordedAt:         cRecordedAt.Time,
			}
		}

		if pID.Valid {
			obs.Policy = &buffer.Policy{
				ID:                          pID.Int64,
				BufferDefinitionID:          d.ID,
				ReplenishmentRule:           pRule.String,
				ReplenishmentLeadTimeHours:  pLead.Float64,
				EmergencyPenetrationPercent: floatPtr(pEmergency),
				IsActive:                    true,
				UpdatedAt:                   pUpdatedAt.Time,
			}
		}

		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list buffer observations", err)
	}
	return out, nil
}

func (r *BufferRepository) GetPolicy(ctx context.Context, bufferID int64) (*buffer.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM buffer_policies WHERE buffer_definition_id = ? AND is_active = ?`

	var p buffer.Policy
	var emergency sql.NullFloat64
	var updatedAt nullTime

	err := r.db.queryRow(ctx, query, bufferID, true).Scan(
		&p.ID, &p.BufferDefinitionID, &p.ReplenishmentRule, &p.ReplenishmentLeadTimeHours,
		&emergency, &p.IsActive, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get buffer policy", err)
	}

	p.EmergencyPenetrationPercent = floatPtr(emergency)
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}

func (r *BufferRepository) UpsertPolicy(ctx context.Context, p *buffer.Policy) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO buffer_policies (buffer_definition_id, replenishment_rule, replenishment_lead_time_hours,
			emergency_penetration_percent, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (buffer_definition_id) DO UPDATE SET
			replenishment_rule = excluded.replenishment_rule,
			replenishment_lead_time_hours = excluded.replenishment_lead_time_hours,
			emergency_penetration_percent = excluded.emergency_penetration_percent,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
		RETURNING id
	`

	err := r.db.queryRow(ctx, query,
		p.BufferDefinitionID, p.ReplenishmentRule, p.ReplenishmentLeadTimeHours,
		nullableFloat(p.EmergencyPenetrationPercent), p.IsActive, timeArg(p.UpdatedAt),
	).Scan(&p.ID)
	if err != nil {
		return errors.DatabaseError("Failed to save buffer policy", err)
	}
	return nil
}

func scanDefinition(row rowScanner) (*buffer.Definition, error) {
	var d buffer.Definition
	var locationID sql.NullInt64
	var createdAt, updatedAt nullTime

	err := row.Scan(&d.ID, &d.Name, &d.BufferType, &d.BufferCategory, &d.TargetSize, &d.UOM, &d.RedZonePercent,
		&d.YellowZonePercent, &d.LocationEntityType, &locationID, &d.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.LocationEntityID = int64Ptr(locationID)
	d.CreatedAt = createdAt.Time
	d.UpdatedAt = updatedAt.Time
	return &d, nil
}

func scanConsumption(row rowScanner) (*buffer.Consumption, error) {
	var c buffer.Consumption
	var zone string
	var action, entityType sql.NullString
	var entityID sql.NullInt64
	var recordedAt nullTime

	err := row.Scan(&c.ID, &c.BufferDefinitionID, &c.CurrentLevel, &c.LevelPercent, &zone,
		&c.ConsumptionRate, &c.PenetrationIntoRed, &c.AlertStatus, &action,
		&entityType, &entityID, &recordedAt)
	if err != nil {
		return nil, err
	}

	c.CurrentZone = buffer.Zone(zone)
	c.ActionRequired = stringPtr(action)
	c.ConsumingEntity = entityRef(entityType, entityID)
	c.RecordedAt = recordedAt.Time
	return &c, nil
}

func entityRef(entityType sql.NullString, entityID sql.NullInt64) *buffer.EntityRef {
	if !entityType.Valid || !entityID.Valid {
		return nil
	}
	return &buffer.EntityRef{Type: entityType.String, ID: entityID.Int64}
}
