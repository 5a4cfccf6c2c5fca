package detector

import (
	"fmt"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
)

// ZoneReading is the classification of one buffer level
type ZoneReading struct {
	LevelPercent       float64
	Zone               buffer.Zone
	AlertStatus        string
	PenetrationIntoRed float64
	ActionRequired     *string
}

// ValidateGeometry checks that a definition describes a usable buffer
func ValidateGeometry(def *buffer.Definition) error {
	if def.TargetSize <= 0 {
		return errors.InvalidConfiguration(fmt.Sprintf("buffer %d has non-positive target size %v", def.ID, def.TargetSize))
	}
	if def.RedZonePercent < 0 || def.YellowZonePercent < 0 {
		return errors.InvalidConfiguration("zone percentages must not be negative")
	}
	if def.RedZonePercent+def.YellowZonePercent > 100 {
		return errors.InvalidConfiguration(fmt.Sprintf("red (%v) and yellow (%v) zones exceed 100%%", def.RedZonePercent, def.YellowZonePercent))
	}
	return nil
}

// ClassifyLevel places a level into the red, yellow or green zone of a buffer.
// Red penetration measures how far below the red threshold the level sits,
// as a percentage of the red zone. A buffer without a red zone reports no
// penetration.
func ClassifyLevel(def *buffer.Definition, level float64) (*ZoneReading, error) {
	if def.TargetSize <= 0 {
		return nil, errors.InvalidConfiguration(fmt.Sprintf("buffer %d has non-positive target size %v", def.ID, def.TargetSize))
	}

	levelPercent := level / def.TargetSize
	redZone := def.RedZonePercent / 100
	yellowBandEnd := redZone + def.YellowZonePercent/100

	reading := &ZoneReading{LevelPercent: levelPercent}

	switch {
	case levelPercent <= redZone:
		reading.Zone = buffer.ZoneRed
		reading.AlertStatus = buffer.AlertCritical
		if redZone > 0 {
			reading.PenetrationIntoRed = (redZone - levelPercent) / redZone * 100
		}
		action := buffer.ActionExpedite
		reading.ActionRequired = &action
	case levelPercent <= yellowBandEnd:
		reading.Zone = buffer.ZoneYellow
		reading.AlertStatus = buffer.AlertWarning
		action := buffer.ActionMonitor
		reading.ActionRequired = &action
	default:
		reading.Zone = buffer.ZoneGreen
		reading.AlertStatus = buffer.AlertNormal
	}

	return reading, nil
}

// ConsumptionRate is the drawdown per hour since the prior observation.
// A missing prior or a non-positive elapsed time yields 0.
func ConsumptionRate(prior *buffer.Consumption, newLevel float64, now time.Time) float64 {
	if prior == nil {
		return 0
	}
	elapsed := now.Sub(prior.RecordedAt).Hours()
	if elapsed <= 0 {
		return 0
	}
	return (prior.CurrentLevel - newLevel) / elapsed
}

// ImpactSeverity grades a zone change by the zone it lands in
func ImpactSeverity(zone buffer.Zone) string {
	switch zone {
	case buffer.ZoneRed:
		return buffer.ImpactCritical
	case buffer.ZoneYellow:
		return buffer.ImpactMedium
	default:
		return buffer.ImpactLow
	}
}

// IsEmergency reports whether a red-zone reading has reached the emergency
// threshold
func IsEmergency(c *buffer.Consumption, threshold float64) bool {
	return c != nil && c.CurrentZone == buffer.ZoneRed && c.PenetrationIntoRed >= threshold
}
