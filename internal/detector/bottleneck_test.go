package detector

import (
	"testing"

	"github.com/pratik-mahalle/tocguard/internal/domain/drum"
)

func TestBottleneckScore(t *testing.T) {
	tests := []struct {
		name  string
		util  drum.Utilization
		score float64
	}{
		{"saturated", drum.Utilization{OperationCount: 60, AvgDuration: 150, TotalDuration: 1200}, 100},
		{"idle", drum.Utilization{}, 0},
		{"at thresholds", drum.Utilization{OperationCount: 50, AvgDuration: 120, TotalDuration: 1000}, 20 + 30 + 20},
		{"low tiers", drum.Utilization{OperationCount: 11, AvgDuration: 31, TotalDuration: 101}, 40},
		{"middle tiers", drum.Utilization{OperationCount: 21, AvgDuration: 61, TotalDuration: 501}, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BottleneckScore(&tt.util); got != tt.score {
				t.Errorf("BottleneckScore() = %v, want %v", got, tt.score)
			}
		})
	}
}

func TestBottleneckScore_Monotone(t *testing.T) {
	base := drum.Utilization{OperationCount: 5, AvgDuration: 10, TotalDuration: 50}
	prev := BottleneckScore(&base)

	for step := 0; step < 200; step++ {
		u := base
		u.OperationCount += step
		u.AvgDuration += float64(step)
		u.TotalDuration += float64(step * 10)
		got := BottleneckScore(&u)
		if got < prev {
			t.Fatalf("score dropped from %v to %v at step %d", prev, got, step)
		}
		prev = got
	}
}

func TestDecideDrum(t *testing.T) {
	tests := []struct {
		score  float64
		isDrum bool
		want   DrumDecision
	}{
		{100, false, DecisionDesignate},
		{70, false, DecisionDesignate},
		{70, true, DecisionKeep},
		{69, false, DecisionKeep},
		{29, true, DecisionClear},
		{30, true, DecisionKeep},
		{0, false, DecisionKeep},
	}

	for _, tt := range tests {
		if got := DecideDrum(tt.score, tt.isDrum); got != tt.want {
			t.Errorf("DecideDrum(%v, %v) = %v, want %v", tt.score, tt.isDrum, got, tt.want)
		}
	}
}

func TestRankResources(t *testing.T) {
	utils := []*drum.Utilization{
		{ResourceID: 3, ResourceName: "Saw", OperationCount: 5},
		{ResourceID: 1, ResourceName: "Kiln", OperationCount: 60, AvgDuration: 150, TotalDuration: 1200},
		{ResourceID: 2, ResourceName: "Press", OperationCount: 5},
	}

	recs := RankResources(utils)
	if len(recs) != 3 {
		t.Fatalf("RankResources() returned %d entries", len(recs))
	}
	if recs[0].ResourceID != 1 || recs[0].Score != 100 {
		t.Errorf("top recommendation = %+v", recs[0])
	}
	if recs[0].Recommendation != "Designate as drum" {
		t.Errorf("top recommendation text = %q", recs[0].Recommendation)
	}
	if recs[1].ResourceID != 2 || recs[2].ResourceID != 3 {
		t.Errorf("ties not ordered by id: %d, %d", recs[1].ResourceID, recs[2].ResourceID)
	}
}
