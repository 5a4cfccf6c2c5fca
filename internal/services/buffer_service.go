package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	tocache "github.com/pratik-mahalle/tocguard/internal/cache"
	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/detector"
	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
	"github.com/pratik-mahalle/tocguard/internal/pkg/keylock"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/internal/pkg/metrics"
)

// BufferService implements buffer.Service
type BufferService struct {
	repo   buffer.Repository
	cache  buffer.DefinitionCache
	locks  *keylock.Locker
	cfg    config.TOCConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewBufferService creates a new buffer monitor. A nil cache disables caching.
func NewBufferService(repo buffer.Repository, cache buffer.DefinitionCache, cfg config.TOCConfig, log *logger.Logger) *BufferService {
	if cache == nil {
		cache = tocache.Noop{}
	}
	return &BufferService{
		repo:   repo,
		cache:  cache,
		locks:  keylock.New(),
		cfg:    cfg,
		logger: log.Component("buffer-monitor"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// definition reads through the cache without filling it; only holders of the
// buffer's key may fill it
func (s *BufferService) definition(ctx context.Context, id int64) (*buffer.Definition, error) {
	if d, ok := s.cache.Get(ctx, id); ok {
		return d, nil
	}
	return s.repo.GetDefinition(ctx, id)
}

// lockedDefinition reads through the cache and fills it on a miss. The
// caller must hold the buffer's key.
func (s *BufferService) lockedDefinition(ctx context.Context, id int64) (*buffer.Definition, error) {
	if d, ok := s.cache.Get(ctx, id); ok {
		return d, nil
	}
	d, err := s.repo.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, d)
	return d, nil
}

// CreateDefinition validates and stores a buffer definition
func (s *BufferService) CreateDefinition(ctx context.Context, d *buffer.Definition) (*buffer.Definition, error) {
	if err := validateDefinition(d); err != nil {
		return nil, err
	}
	d.IsActive = true

	if err := s.repo.CreateDefinition(ctx, d); err != nil {
		s.logger.ErrorWithErr(err, "Failed to create buffer definition")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"buffer_id":   d.ID,
		"name":        d.Name,
		"target_size": d.TargetSize,
		"red":         d.RedZonePercent,
		"yellow":      d.YellowZonePercent,
	}).Info("Buffer definition created")

	return d, nil
}

// GetDefinition retrieves a buffer definition
func (s *BufferService) GetDefinition(ctx context.Context, id int64) (*buffer.Definition, error) {
	return s.definition(ctx, id)
}

// UpdateDefinition edits a buffer definition and drops its cached copy. It runs
// under the buffer's key, so concurrent edits and level updates serialize
func (s *BufferService) UpdateDefinition(ctx context.Context, id int64, updates map[string]interface{}) (*buffer.Definition, error) {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err := s.repo.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}

	if name, ok := updates["name"].(string); ok {
		d.Name = name
	}
	if bufferType, ok := updates["buffer_type"].(string); ok {
		d.BufferType = bufferType
	}
	if category, ok := updates["buffer_category"].(string); ok {
		d.BufferCategory = category
	}
	if target, ok := updates["target_size"].(float64); ok {
		d.TargetSize = target
	}
	if uom, ok := updates["uom"].(string); ok {
		d.UOM = uom
	}
	if red, ok := updates["red_zone_percent"].(float64); ok {
		d.RedZonePercent = red
	}
	if yellow, ok := updates["yellow_zone_percent"].(float64); ok {
		d.YellowZonePercent = yellow
	}
	if locType, ok := updates["location_entity_type"].(string); ok {
		d.LocationEntityType = locType
	}
	if locID, ok := updates["location_entity_id"].(int64); ok {
		d.LocationEntityID = &locID
	}
	if active, ok := updates["is_active"].(bool); ok {
		d.IsActive = active
	}

	if err := validateDefinition(d); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateDefinition(ctx, d); err != nil {
		s.logger.ErrorWithErr(err, "Failed to update buffer definition")
		return nil, err
	}
	s.cache.Invalidate(ctx, id)

	s.logger.With("buffer_id", id).Info("Buffer definition updated")
	return d, nil
}

// ListDefinitions retrieves buffer definitions
func (s *BufferService) ListDefinitions(ctx context.Context, filter buffer.Filter) ([]*buffer.Definition, error) {
	return s.repo.ListDefinitions(ctx, filter)
}

// UpdateLevel records a new observed level. Updates to one buffer are
// serialized, and the observation and its zone-change event commit together.
func (s *BufferService) UpdateLevel(ctx context.Context, bufferID int64, newLevel float64, consumer *buffer.EntityRef) (*buffer.Consumption, error) {
	if math.IsNaN(newLevel) || math.IsInf(newLevel, 0) {
		return nil, errors.ValidationError("level must be a finite number", map[string]string{"new_level": "invalid"})
	}

	unlock, err := s.locks.Lock(ctx, bufferID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		def         *buffer.Definition
		prior       *buffer.Consumption
		consumption *buffer.Consumption
		event       *buffer.HistoryEvent
	)

	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if def, err = s.lockedDefinition(ctx, bufferID); err != nil {
			return err
		}
		if err = s.repo.LockDefinition(ctx, bufferID); err != nil {
			return err
		}

		reading, err := detector.ClassifyLevel(def, newLevel)
		if err != nil {
			return err
		}

		if prior, err = s.repo.GetLatestConsumption(ctx, bufferID); err != nil {
			return err
		}

		now := s.now()
		consumption = &buffer.Consumption{
			BufferDefinitionID: bufferID,
			CurrentLevel:       newLevel,
			LevelPercent:       reading.LevelPercent,
			CurrentZone:        reading.Zone,
			ConsumptionRate:    detector.ConsumptionRate(prior, newLevel, now),
			PenetrationIntoRed: reading.PenetrationIntoRed,
			AlertStatus:        reading.AlertStatus,
			ActionRequired:     reading.ActionRequired,
			ConsumingEntity:    consumer,
			RecordedAt:         now,
		}
		if err := s.repo.CreateConsumption(ctx, consumption); err != nil {
			return err
		}

		if prior == nil || prior.CurrentZone == reading.Zone {
			return nil
		}

		event = &buffer.HistoryEvent{
			BufferDefinitionID: bufferID,
			ConsumptionID:      consumption.ID,
			EventType:          buffer.EventZoneChange,
			PreviousLevel:      prior.CurrentLevel,
			NewLevel:           newLevel,
			PreviousZone:       prior.CurrentZone,
			NewZone:            reading.Zone,
			ImpactSeverity:     detector.ImpactSeverity(reading.Zone),
			ConsumingEntity:    consumer,
			OccurredAt:         now,
		}
		return s.repo.CreateHistoryEvent(ctx, event)
	})
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeNotFound) {
			s.logger.WithFields(map[string]interface{}{
				"buffer_id": bufferID,
				"new_level": newLevel,
			}).ErrorWithErr(err, "Failed to update buffer level")
		}
		return nil, err
	}

	metrics.RecordBufferObservation(def.Name, string(consumption.CurrentZone), consumption.PenetrationIntoRed)
	if event != nil {
		metrics.RecordZoneTransition(string(event.PreviousZone), string(event.NewZone))
		s.logger.WithFields(map[string]interface{}{
			"buffer_id": bufferID,
			"from":      event.PreviousZone,
			"to":        event.NewZone,
			"impact":    event.ImpactSeverity,
		}).Info("Buffer changed zone")
	}

	s.logger.WithFields(map[string]interface{}{
		"buffer_id":   bufferID,
		"level":       newLevel,
		"zone":        consumption.CurrentZone,
		"penetration": consumption.PenetrationIntoRed,
		"rate":        consumption.ConsumptionRate,
	}).Debug("Buffer level recorded")

	return consumption, nil
}

// AnalyzeHealth summarises the buffer's recent observations
func (s *BufferService) AnalyzeHealth(ctx context.Context, bufferID int64) (*buffer.Health, error) {
	var (
		def          *buffer.Definition
		policy       *buffer.Policy
		consumptions []*buffer.Consumption
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		def, err = s.definition(gctx, bufferID)
		return err
	})
	g.Go(func() error {
		var err error
		policy, err = s.repo.GetPolicy(gctx, bufferID)
		return err
	})
	g.Go(func() error {
		var err error
		consumptions, err = s.repo.ListConsumptions(gctx, bufferID, s.cfg.HealthHistoryLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	health := &buffer.Health{
		BufferDefinitionID: def.ID,
		BufferName:         def.Name,
		PenetrationHistory: make([]buffer.PenetrationPoint, 0, len(consumptions)),
	}

	// Observations arrive newest first; history is reported oldest first
	for i := len(consumptions) - 1; i >= 0; i-- {
		c := consumptions[i]
		health.PenetrationHistory = append(health.PenetrationHistory, buffer.PenetrationPoint{
			RecordedAt:         c.RecordedAt,
			Level:              c.CurrentLevel,
			Zone:               c.CurrentZone,
			PenetrationIntoRed: c.PenetrationIntoRed,
		})
	}

	if len(consumptions) > 0 {
		health.CurrentStatus = consumptions[0]
		health.ProjectedExhaustion = projectedExhaustion(consumptions[0])
	}
	health.Recommendations = healthRecommendations(def, policy, consumptions, health.ProjectedExhaustion)

	return health, nil
}

// projectedExhaustion is the hours until the level reaches zero at the
// current rate, known only while the buffer is being drawn down
func projectedExhaustion(c *buffer.Consumption) *float64 {
	if c.ConsumptionRate <= 0 {
		return nil
	}
	hours := c.CurrentLevel / c.ConsumptionRate
	if hours < 0 {
		hours = 0
	}
	return &hours
}

func healthRecommendations(def *buffer.Definition, policy *buffer.Policy, consumptions []*buffer.Consumption, exhaustion *float64) []string {
	recommendations := []string{}
	if len(consumptions) == 0 {
		return append(recommendations, "No observations recorded yet")
	}

	current := consumptions[0]
	switch current.CurrentZone {
	case buffer.ZoneRed:
		recommendations = append(recommendations,
			fmt.Sprintf("Expedite replenishment: buffer is %.0f%% into the red zone", current.PenetrationIntoRed))
	case buffer.ZoneYellow:
		recommendations = append(recommendations, "Monitor closely and plan replenishment")
	}

	if exhaustion != nil && policy != nil && policy.ReplenishmentLeadTimeHours > 0 && *exhaustion < policy.ReplenishmentLeadTimeHours {
		recommendations = append(recommendations, fmt.Sprintf(
			"Projected exhaustion in %.1f hours is shorter than the %.1f hour replenishment lead time",
			*exhaustion, policy.ReplenishmentLeadTimeHours))
	}

	var red, green int
	for _, c := range consumptions {
		switch c.CurrentZone {
		case buffer.ZoneRed:
			red++
		case buffer.ZoneGreen:
			green++
		}
	}

	switch {
	case red*2 > len(consumptions):
		recommendations = append(recommendations, fmt.Sprintf(
			"Buffer was red in %d of the last %d observations; consider increasing the target size above %v",
			red, len(consumptions), def.TargetSize))
	case len(consumptions) > 1 && green == len(consumptions):
		recommendations = append(recommendations, "Buffer has stayed green; consider reducing the target size")
	}

	if policy == nil {
		recommendations = append(recommendations, "No replenishment policy configured")
	}

	return recommendations
}

var alertRank = map[string]int{
	buffer.AlertEmergency: 0,
	buffer.AlertCritical:  1,
	buffer.AlertWarning:   2,
}

// GetAlerts lists buffers whose newest observation is outside the green zone
func (s *BufferService) GetAlerts(ctx context.Context) ([]*buffer.Alert, error) {
	observations, err := s.repo.ListLatestObservations(ctx)
	if err != nil {
		return nil, err
	}

	alerts := []*buffer.Alert{}
	for _, o := range observations {
		c := o.Consumption
		if c == nil || c.CurrentZone == buffer.ZoneGreen {
			continue
		}

		threshold := s.cfg.EmergencyPenetration
		if o.Policy != nil && o.Policy.EmergencyPenetrationPercent != nil {
			threshold = *o.Policy.EmergencyPenetrationPercent
		}

		alert := &buffer.Alert{
			BufferID:   o.Definition.ID,
			BufferName: o.Definition.Name,
			Level:      c.CurrentLevel,
			Zone:       c.CurrentZone,
		}

		switch {
		case detector.IsEmergency(c, threshold):
			alert.AlertType = "buffer_emergency"
			alert.Severity = buffer.AlertEmergency
			alert.Message = fmt.Sprintf("%s is %.0f%% into the red zone, at or beyond the %.0f%% emergency threshold",
				o.Definition.Name, c.PenetrationIntoRed, threshold)
		case c.CurrentZone == buffer.ZoneRed:
			alert.AlertType = "buffer_red"
			alert.Severity = buffer.AlertCritical
			alert.Message = fmt.Sprintf("%s is in the red zone (%.0f%% penetration)", o.Definition.Name, c.PenetrationIntoRed)
		default:
			alert.AlertType = "buffer_yellow"
			alert.Severity = buffer.AlertWarning
			alert.Message = fmt.Sprintf("%s is in the yellow zone at %.0f%% of target", o.Definition.Name, c.LevelPercent*100)
		}
		alerts = append(alerts, alert)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alertRank[alerts[i].Severity] < alertRank[alerts[j].Severity]
	})

	return alerts, nil
}

// ListConsumptions returns recent observations
func (s *BufferService) ListConsumptions(ctx context.Context, bufferID int64, limit int) ([]*buffer.Consumption, error) {
	if _, err := s.definition(ctx, bufferID); err != nil {
		return nil, err
	}
	return s.repo.ListConsumptions(ctx, bufferID, limit)
}

// ListHistory returns recent zone-change events
func (s *BufferService) ListHistory(ctx context.Context, bufferID int64, limit int) ([]*buffer.HistoryEvent, error) {
	if _, err := s.definition(ctx, bufferID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, bufferID, limit)
}

// SetPolicy stores the replenishment policy of a buffer
func (s *BufferService) SetPolicy(ctx context.Context, p *buffer.Policy) (*buffer.Policy, error) {
	if _, err := s.definition(ctx, p.BufferDefinitionID); err != nil {
		return nil, err
	}

	details := map[string]string{}
	if p.ReplenishmentLeadTimeHours < 0 {
		details["replenishment_lead_time_hours"] = "must not be negative"
	}
	if e := p.EmergencyPenetrationPercent; e != nil && (*e <= 0 || *e > 100) {
		details["emergency_penetration_percent"] = "must be in (0, 100]"
	}
	if len(details) > 0 {
		return nil, errors.ValidationError("invalid buffer policy", details)
	}

	if err := s.repo.UpsertPolicy(ctx, p); err != nil {
		s.logger.ErrorWithErr(err, "Failed to store buffer policy")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"buffer_id": p.BufferDefinitionID,
		"rule":      p.ReplenishmentRule,
		"active":    p.IsActive,
	}).Info("Buffer policy stored")

	return p, nil
}

func validateDefinition(d *buffer.Definition) error {
	details := map[string]string{}
	if strings.TrimSpace(d.Name) == "" {
		details["name"] = "required"
	}
	switch d.BufferType {
	case buffer.TypeTime, buffer.TypeStock:
	default:
		details["buffer_type"] = "must be time or stock"
	}
	switch d.BufferCategory {
	case buffer.CategoryDrum, buffer.CategoryFeeding, buffer.CategoryShipping,
		buffer.CategoryStock, buffer.CategorySpace, buffer.CategoryCapacity:
	default:
		details["buffer_category"] = fmt.Sprintf("unknown category %q", d.BufferCategory)
	}
	if len(details) > 0 {
		return errors.ValidationError("invalid buffer definition", details)
	}
	return detector.ValidateGeometry(d)
}
