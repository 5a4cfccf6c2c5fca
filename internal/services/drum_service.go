package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/detector"
	"github.com/pratik-mahalle/tocguard/internal/domain/drum"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/internal/pkg/metrics"
)

// DrumService implements drum.Service
type DrumService struct {
	repo   drum.Repository
	logger *logger.Logger
	now    func() time.Time
}

// NewDrumService creates a new drum analyzer
func NewDrumService(repo drum.Repository, log *logger.Logger) *DrumService {
	return &DrumService{
		repo:   repo,
		logger: log.Component("drum-analyzer"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AnalyzeAll scores every resource, applies the automated designation
// changes and writes one summary ledger row, all in one transaction
func (s *DrumService) AnalyzeAll(ctx context.Context) (*drum.AnalysisResult, error) {
	start := time.Now()
	result := &drum.AnalysisResult{}
	var changes []string

	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		utilization, err := s.repo.ListUtilization(ctx)
		if err != nil {
			return err
		}

		ranked := detector.RankResources(utilization)
		now := s.now()
		*result = drum.AnalysisResult{Analyzed: len(ranked)}
		changes = changes[:0]

		for i := range ranked {
			rec := &ranked[i]
			isDrum := rec.IsDrum
			decision := detector.DecideDrum(rec.Score, rec.IsDrum)

			switch decision {
			case detector.DecisionDesignate:
				err = s.repo.SetDrumFlag(ctx, drum.Designation{
					ResourceID: rec.ResourceID,
					IsDrum:     true,
					DrumType:   drum.TypePrimary,
					Reason:     detector.DesignationReason(rec.Score),
					Method:     drum.MethodAutomated,
					At:         now,
				})
				isDrum = true
				changes = append(changes, drum.ActionDesignate)
			case detector.DecisionClear:
				err = s.repo.SetDrumFlag(ctx, drum.Designation{
					ResourceID: rec.ResourceID,
					IsDrum:     false,
					Reason:     detector.DesignationReason(rec.Score),
					Method:     drum.MethodAutomated,
					At:         now,
				})
				isDrum = false
				changes = append(changes, drum.ActionClear)
			}
			if err != nil {
				return err
			}
			if decision != detector.DecisionKeep {
				rec.IsDrum = isDrum
				rec.Recommendation = detector.AppliedText(decision)
			}

			if isDrum {
				result.Identified++
			}
		}

		result.Updated = len(changes)
		if len(ranked) > drum.RecommendationTop {
			ranked = ranked[:drum.RecommendationTop]
		}
		result.Recommendations = ranked

		summary, err := json.Marshal(ranked)
		if err != nil {
			return errors.Internal("Failed to encode recommendations", err)
		}

		return s.repo.CreateAnalysisHistory(ctx, &drum.AnalysisHistory{
			AnalysisType:        drum.AnalysisAutomated,
			Action:              drum.ActionAnalyze,
			ResourcesAnalyzed:   result.Analyzed,
			DrumsIdentified:     result.Identified,
			DesignationsUpdated: result.Updated,
			Recommendations:     string(summary),
			AnalysisDate:        now,
		})
	})
	if err != nil {
		s.logger.ErrorWithErr(err, "Drum analysis failed")
		return nil, err
	}

	metrics.RecordDrumAnalysis(time.Since(start))
	for _, action := range changes {
		metrics.RecordDrumChange(action, drum.MethodAutomated)
	}

	s.logger.WithFields(map[string]interface{}{
		"analyzed":   result.Analyzed,
		"identified": result.Identified,
		"updated":    result.Updated,
	}).Info("Drum analysis completed")

	return result, nil
}

// Designate marks a resource as a drum by hand
func (s *DrumService) Designate(ctx context.Context, resourceID int64, drumType, reason, userID string) (*drum.Resource, error) {
	if drumType == "" {
		drumType = drum.TypePrimary
	}
	switch drumType {
	case drum.TypePrimary, drum.TypeSecondary, drum.TypePotential:
	default:
		return nil, errors.ValidationError("invalid drum type", map[string]string{"drum_type": "must be primary, secondary or potential"})
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Manual designation"
	}

	return s.applyManual(ctx, drum.ActionDesignate, drum.Designation{
		ResourceID: resourceID,
		IsDrum:     true,
		DrumType:   drumType,
		Reason:     reason,
		Method:     drum.MethodManual,
	}, userID)
}

// Clear removes a drum designation by hand
func (s *DrumService) Clear(ctx context.Context, resourceID int64, reason, userID string) (*drum.Resource, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "Manual clearance"
	}

	return s.applyManual(ctx, drum.ActionClear, drum.Designation{
		ResourceID: resourceID,
		IsDrum:     false,
		Reason:     reason,
		Method:     drum.MethodManual,
	}, userID)
}

// applyManual writes the flag change and its ledger row together
func (s *DrumService) applyManual(ctx context.Context, action string, d drum.Designation, userID string) (*drum.Resource, error) {
	var updated *drum.Resource

	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.repo.GetResource(ctx, d.ResourceID)
		if err != nil {
			return err
		}

		d.At = s.now()
		if err := s.repo.SetDrumFlag(ctx, d); err != nil {
			return err
		}

		h := &drum.AnalysisHistory{
			AnalysisType: drum.AnalysisManual,
			Action:       action,
			ResourceID:   &res.ID,
			ResourceName: &res.Name,
			AnalysisDate: d.At,
		}
		if d.IsDrum {
			h.DrumsIdentified = 1
		}
		h.DesignationsUpdated = 1
		h.Recommendations = d.Reason
		if userID != "" {
			h.AnalyzedBy = &userID
		}
		if err := s.repo.CreateAnalysisHistory(ctx, h); err != nil {
			return err
		}

		updated, err = s.repo.GetResource(ctx, d.ResourceID)
		return err
	})
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeNotFound) {
			s.logger.ErrorWithErr(err, "Failed to change drum designation")
		}
		return nil, err
	}

	metrics.RecordDrumChange(action, drum.MethodManual)
	s.logger.WithFields(map[string]interface{}{
		"resource_id": d.ResourceID,
		"action":      action,
		"drum_type":   d.DrumType,
		"user_id":     userID,
	}).Info("Drum designation changed")

	return updated, nil
}

// RegisterResource adds a resource the analyzer can score
func (s *DrumService) RegisterResource(ctx context.Context, r *drum.Resource) (*drum.Resource, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, errors.ValidationError("resource name is required", map[string]string{"name": "required"})
	}
	r.IsDrum = false
	r.DrumType = nil

	if err := s.repo.CreateResource(ctx, r); err != nil {
		s.logger.ErrorWithErr(err, "Failed to register resource")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"resource_id": r.ID,
		"name":        r.Name,
	}).Info("Resource registered")

	return r, nil
}

// RecordOperation feeds utilization telemetry for a resource
func (s *DrumService) RecordOperation(ctx context.Context, op *drum.Operation) (*drum.Operation, error) {
	if op.DurationMinutes < 0 {
		return nil, errors.ValidationError("duration must not be negative", map[string]string{"duration_minutes": "negative"})
	}
	if _, err := s.repo.GetResource(ctx, op.ResourceID); err != nil {
		return nil, err
	}
	if op.PerformedAt.IsZero() {
		op.PerformedAt = s.now()
	}

	if err := s.repo.RecordOperation(ctx, op); err != nil {
		s.logger.ErrorWithErr(err, "Failed to record resource operation")
		return nil, err
	}
	return op, nil
}

// ListUtilization scores every resource without changing any designation
func (s *DrumService) ListUtilization(ctx context.Context) ([]drum.Recommendation, error) {
	utilization, err := s.repo.ListUtilization(ctx)
	if err != nil {
		return nil, err
	}
	return detector.RankResources(utilization), nil
}

// ListDrums returns current drums
func (s *DrumService) ListDrums(ctx context.Context) ([]*drum.Resource, error) {
	return s.repo.ListDrums(ctx)
}

// ListHistory returns recent analysis ledger entries
func (s *DrumService) ListHistory(ctx context.Context, limit int) ([]*drum.AnalysisHistory, error) {
	return s.repo.ListAnalysisHistory(ctx, limit)
}
