package detector

import (
	"fmt"
	"sort"

	"github.com/pratik-mahalle/tocguard/internal/domain/drum"
)

// scoreTier awards points once a metric strictly exceeds the threshold
type scoreTier struct {
	above  float64
	points float64
}

// Tiers are ordered highest first; only the first matching tier counts.
var (
	operationCountTiers = []scoreTier{{50, 30}, {20, 20}, {10, 10}}
	avgDurationTiers    = []scoreTier{{120, 40}, {60, 30}, {30, 20}}
	totalDurationTiers  = []scoreTier{{1000, 30}, {500, 20}, {100, 10}}
)

func tierPoints(value float64, tiers []scoreTier) float64 {
	for _, t := range tiers {
		if value > t.above {
			return t.points
		}
	}
	return 0
}

// BottleneckScore rates how likely a resource is to be the system constraint,
// from 0 to 100
func BottleneckScore(u *drum.Utilization) float64 {
	return tierPoints(float64(u.OperationCount), operationCountTiers) +
		tierPoints(u.AvgDuration, avgDurationTiers) +
		tierPoints(u.TotalDuration, totalDurationTiers)
}

// DrumDecision is the outcome of scoring one resource
type DrumDecision int

const (
	DecisionKeep DrumDecision = iota
	DecisionDesignate
	DecisionClear
)

// DecideDrum applies the designation thresholds to a scored resource
func DecideDrum(score float64, isDrum bool) DrumDecision {
	switch {
	case score >= drum.DesignateThreshold && !isDrum:
		return DecisionDesignate
	case score < drum.ClearThreshold && isDrum:
		return DecisionClear
	default:
		return DecisionKeep
	}
}

// RankResources scores every resource and returns recommendations sorted by
// descending score, ties broken by resource id
func RankResources(utilization []*drum.Utilization) []drum.Recommendation {
	recs := make([]drum.Recommendation, 0, len(utilization))
	for _, u := range utilization {
		score := BottleneckScore(u)
		recs = append(recs, drum.Recommendation{
			ResourceID:     u.ResourceID,
			ResourceName:   u.ResourceName,
			Score:          score,
			IsDrum:         u.IsDrum,
			OperationCount: u.OperationCount,
			AvgDuration:    u.AvgDuration,
			TotalDuration:  u.TotalDuration,
			Recommendation: recommendationText(score, u.IsDrum),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].ResourceID < recs[j].ResourceID
	})
	return recs
}

// DesignationReason is stored on automated designations
func DesignationReason(score float64) string {
	return fmt.Sprintf("Automated analysis: bottleneck score %.0f", score)
}

// AppliedText describes a recommendation whose decision has been carried out
func AppliedText(d DrumDecision) string {
	switch d {
	case DecisionDesignate:
		return "Designated as drum"
	case DecisionClear:
		return "Drum designation cleared"
	default:
		return ""
	}
}

func recommendationText(score float64, isDrum bool) string {
	switch DecideDrum(score, isDrum) {
	case DecisionDesignate:
		return "Designate as drum"
	case DecisionClear:
		return "Clear drum designation"
	}
	switch {
	case isDrum:
		return "Keep as drum"
	case score >= drum.ClearThreshold:
		return "Monitor as potential constraint"
	default:
		return "No action"
	}
}
