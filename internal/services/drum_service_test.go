package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pratik-mahalle/tocguard/internal/domain/drum"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
	"github.com/pratik-mahalle/tocguard/internal/testutil"
)

var _ drum.Service = (*DrumService)(nil)

func newDrumFixture(t *testing.T) (*DrumService, *testutil.MockDrumRepository) {
	t.Helper()
	repo := testutil.NewMockDrumRepository()
	return NewDrumService(repo, testutil.NewTestLogger()), repo
}

func registerResource(t *testing.T, s *DrumService, name string) *drum.Resource {
	t.Helper()
	r, err := s.RegisterResource(context.Background(), &drum.Resource{Name: name})
	if err != nil {
		t.Fatalf("RegisterResource() error = %v", err)
	}
	return r
}

func TestDrumService_AnalyzeAll(t *testing.T) {
	service, repo := newDrumFixture(t)
	ctx := context.Background()

	// 60 ops of 150 minutes: every tier maxed, score 100
	cnc := registerResource(t, service, "CNC-1")
	repo.AddUtilization(cnc.ID, 60, 150)

	// 5 ops of 10 minutes: score 0, currently a drum
	lathe := registerResource(t, service, "Lathe-2")
	repo.AddUtilization(lathe.ID, 5, 10)
	service.Designate(ctx, lathe.ID, drum.TypeSecondary, "", "planner")

	// 15 ops of 45 minutes: 10 + 20 + 20 = 50, kept as is
	press := registerResource(t, service, "Press-3")
	repo.AddUtilization(press.ID, 15, 45)

	historyBefore := len(repo.History)
	result, err := service.AnalyzeAll(ctx)
	if err != nil {
		t.Fatalf("AnalyzeAll() error = %v", err)
	}

	if result.Analyzed != 3 || result.Updated != 2 || result.Identified != 1 {
		t.Errorf("AnalyzeAll() = analyzed %d updated %d identified %d, want 3/2/1",
			result.Analyzed, result.Updated, result.Identified)
	}

	got, _ := repo.GetResource(ctx, cnc.ID)
	if !got.IsDrum || got.DrumDesignationMethod == nil || *got.DrumDesignationMethod != drum.MethodAutomated {
		t.Errorf("CNC-1 = %+v, want automated drum", got)
	}
	if got.DrumDesignationReason == nil || !strings.Contains(*got.DrumDesignationReason, "100") {
		t.Errorf("designation reason = %v, want score embedded", got.DrumDesignationReason)
	}

	got, _ = repo.GetResource(ctx, lathe.ID)
	if got.IsDrum || got.DrumType != nil {
		t.Errorf("Lathe-2 = %+v, want cleared", got)
	}

	got, _ = repo.GetResource(ctx, press.ID)
	if got.IsDrum {
		t.Error("Press-3 changed designation")
	}

	if result.Recommendations[0].ResourceID != cnc.ID || result.Recommendations[0].Score != 100 {
		t.Errorf("top recommendation = %+v, want CNC-1 with 100", result.Recommendations[0])
	}

	// Recommendations report the state after this pass
	for _, rec := range result.Recommendations {
		switch rec.ResourceID {
		case cnc.ID:
			if !rec.IsDrum || rec.Recommendation != "Designated as drum" {
				t.Errorf("CNC-1 recommendation = %v %q, want drum designated", rec.IsDrum, rec.Recommendation)
			}
		case lathe.ID:
			if rec.IsDrum || rec.Recommendation != "Drum designation cleared" {
				t.Errorf("Lathe-2 recommendation = %v %q, want cleared", rec.IsDrum, rec.Recommendation)
			}
		case press.ID:
			if rec.IsDrum || rec.Recommendation != "Monitor as potential constraint" {
				t.Errorf("Press-3 recommendation = %v %q, want unchanged", rec.IsDrum, rec.Recommendation)
			}
		}
	}

	if len(repo.History) != historyBefore+1 {
		t.Fatalf("history rows = %d, want one summary row", len(repo.History)-historyBefore)
	}
	h := repo.History[len(repo.History)-1]
	if h.Action != drum.ActionAnalyze || h.ResourceID != nil || h.DesignationsUpdated != 2 {
		t.Errorf("summary row = %+v", h)
	}
}

func TestDrumService_AnalyzeAllTopTen(t *testing.T) {
	service, repo := newDrumFixture(t)
	for i := 0; i < 14; i++ {
		r := registerResource(t, service, fmt.Sprintf("R-%02d", i))
		repo.AddUtilization(r.ID, i*4, float64(i*10))
	}

	result, err := service.AnalyzeAll(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeAll() error = %v", err)
	}
	if result.Analyzed != 14 {
		t.Errorf("analyzed = %d, want 14", result.Analyzed)
	}
	if len(result.Recommendations) != drum.RecommendationTop {
		t.Fatalf("recommendations = %d, want %d", len(result.Recommendations), drum.RecommendationTop)
	}
	for i := 1; i < len(result.Recommendations); i++ {
		if result.Recommendations[i].Score > result.Recommendations[i-1].Score {
			t.Errorf("recommendations not sorted at %d", i)
		}
	}
}

func TestDrumService_AnalyzeAllRollsBack(t *testing.T) {
	service, repo := newDrumFixture(t)
	r := registerResource(t, service, "CNC-1")
	repo.AddUtilization(r.ID, 60, 150)

	repo.SetFlagErr = errors.DatabaseError("update failed", fmt.Errorf("connection reset"))
	if _, err := service.AnalyzeAll(context.Background()); err == nil {
		t.Fatal("AnalyzeAll() expected error")
	}
	if len(repo.History) != 0 {
		t.Errorf("history rows = %d after failed analysis, want 0", len(repo.History))
	}
}

func TestDrumService_AnalyzeAllIdempotent(t *testing.T) {
	service, repo := newDrumFixture(t)
	r := registerResource(t, service, "CNC-1")
	repo.AddUtilization(r.ID, 60, 150)

	service.AnalyzeAll(context.Background())
	second, err := service.AnalyzeAll(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeAll() error = %v", err)
	}
	if second.Updated != 0 || second.Identified != 1 {
		t.Errorf("second pass = %+v, want no updates and one drum", second)
	}
	if len(repo.FlagChanges) != 1 {
		t.Errorf("flag changes = %d, want 1", len(repo.FlagChanges))
	}
}

func TestDrumService_Designate(t *testing.T) {
	tests := []struct {
		name     string
		drumType string
		exists   bool
		wantCode string
	}{
		{name: "primary drum", drumType: drum.TypePrimary, exists: true},
		{name: "default type", drumType: "", exists: true},
		{name: "invalid type", drumType: "tertiary", exists: true, wantCode: errors.ErrCodeValidation},
		{name: "missing resource", drumType: drum.TypePrimary, exists: false, wantCode: errors.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo := newDrumFixture(t)
			ctx := context.Background()

			id := int64(404)
			if tt.exists {
				id = registerResource(t, service, "Oven-1").ID
			}

			r, err := service.Designate(ctx, id, tt.drumType, "Known bottleneck", "alice")
			if tt.wantCode != "" {
				if !errors.HasCode(err, tt.wantCode) {
					t.Errorf("Designate() error = %v, want code %s", err, tt.wantCode)
				}
				if len(repo.History) != 0 {
					t.Error("failed designation wrote history")
				}
				return
			}
			if err != nil {
				t.Fatalf("Designate() error = %v", err)
			}

			if !r.IsDrum || r.DrumType == nil || *r.DrumType != drum.TypePrimary {
				t.Errorf("Designate() = %+v", r)
			}
			if *r.DrumDesignationMethod != drum.MethodManual {
				t.Errorf("method = %s, want manual", *r.DrumDesignationMethod)
			}
			if len(repo.History) != 1 {
				t.Fatalf("history rows = %d, want 1", len(repo.History))
			}
			h := repo.History[0]
			if h.AnalysisType != drum.AnalysisManual || h.Action != drum.ActionDesignate || h.AnalyzedBy == nil || *h.AnalyzedBy != "alice" {
				t.Errorf("history row = %+v", h)
			}
		})
	}
}

func TestDrumService_Clear(t *testing.T) {
	service, repo := newDrumFixture(t)
	ctx := context.Background()
	r := registerResource(t, service, "Oven-1")
	service.Designate(ctx, r.ID, drum.TypePrimary, "", "")

	cleared, err := service.Clear(ctx, r.ID, "", "bob")
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if cleared.IsDrum || cleared.DrumType != nil {
		t.Errorf("Clear() = %+v", cleared)
	}
	if len(repo.History) != 2 || repo.History[1].Action != drum.ActionClear {
		t.Errorf("history = %+v, want designate then clear", repo.History)
	}

	drums, _ := service.ListDrums(ctx)
	if len(drums) != 0 {
		t.Errorf("ListDrums() = %d, want 0", len(drums))
	}

	if _, err := service.Clear(ctx, 999, "", ""); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("Clear() missing error = %v, want NOT_FOUND", err)
	}
}

func TestDrumService_RecordOperation(t *testing.T) {
	service, _ := newDrumFixture(t)
	ctx := context.Background()
	r := registerResource(t, service, "Saw-1")

	op, err := service.RecordOperation(ctx, &drum.Operation{ResourceID: r.ID, Name: "cut", DurationMinutes: 40})
	if err != nil {
		t.Fatalf("RecordOperation() error = %v", err)
	}
	if op.ID == 0 || op.PerformedAt.IsZero() {
		t.Errorf("RecordOperation() = %+v", op)
	}

	if _, err := service.RecordOperation(ctx, &drum.Operation{ResourceID: 999, DurationMinutes: 1}); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("RecordOperation() missing resource error = %v, want NOT_FOUND", err)
	}
	if _, err := service.RecordOperation(ctx, &drum.Operation{ResourceID: r.ID, DurationMinutes: -5}); !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("RecordOperation() negative duration error = %v, want VALIDATION_ERROR", err)
	}

	util, err := service.ListUtilization(ctx)
	if err != nil {
		t.Fatalf("ListUtilization() error = %v", err)
	}
	if len(util) != 1 || util[0].OperationCount != 1 || util[0].TotalDuration != 40 {
		t.Errorf("ListUtilization() = %+v", util)
	}
}

func TestDrumService_RegisterResourceValidates(t *testing.T) {
	service, _ := newDrumFixture(t)
	if _, err := service.RegisterResource(context.Background(), &drum.Resource{Name: "  "}); !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("RegisterResource() error = %v, want VALIDATION_ERROR", err)
	}
}
