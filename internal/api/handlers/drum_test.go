package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/pratik-mahalle/tocguard/internal/api/dto"
	"github.com/pratik-mahalle/tocguard/internal/domain/drum"
	"github.com/pratik-mahalle/tocguard/internal/pkg/validator"
	"github.com/pratik-mahalle/tocguard/internal/services"
	"github.com/pratik-mahalle/tocguard/internal/testutil"
)

func newDrumHandler() (*DrumHandler, *testutil.MockDrumRepository) {
	log := testutil.NewTestLogger()
	repo := testutil.NewMockDrumRepository()
	return NewDrumHandler(services.NewDrumService(repo, log), log, validator.New()), repo
}

func registerViaHandler(t *testing.T, h *DrumHandler, name string) drum.Resource {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/toc/resources", jsonBody(t, dto.RegisterResourceRequest{Name: name}))
	rr := httptest.NewRecorder()
	h.RegisterResource(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("RegisterResource returned %d: %s", rr.Code, rr.Body.String())
	}
	var r drum.Resource
	decodeData(t, rr, &r)
	return r
}

func TestDrumHandler_DesignateAndClear(t *testing.T) {
	h, repo := newDrumHandler()
	res := registerViaHandler(t, h, "Oven-1")
	id := strconv.FormatInt(res.ID, 10)

	req := httptest.NewRequest(http.MethodPost, "/", jsonBody(t, dto.DesignateDrumRequest{DrumType: "secondary"}))
	req.Header.Set("X-User-ID", "alice")
	req = withParam(req, "id", id)
	rr := httptest.NewRecorder()
	h.Designate(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Designate returned %d: %s", rr.Code, rr.Body.String())
	}
	var got drum.Resource
	decodeData(t, rr, &got)
	if !got.IsDrum || got.DrumType == nil || *got.DrumType != drum.TypeSecondary {
		t.Errorf("Designate() = %+v", got)
	}
	if len(repo.History) != 1 || repo.History[0].AnalyzedBy == nil || *repo.History[0].AnalyzedBy != "alice" {
		t.Errorf("history = %+v, want one row by alice", repo.History)
	}

	// no body: defaults apply
	req = withParam(httptest.NewRequest(http.MethodDelete, "/", nil), "id", id)
	rr = httptest.NewRecorder()
	h.Clear(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Clear returned %d: %s", rr.Code, rr.Body.String())
	}
	decodeData(t, rr, &got)
	if got.IsDrum {
		t.Error("resource still a drum after clear")
	}

	req = withParam(httptest.NewRequest(http.MethodPost, "/", jsonBody(t, dto.DesignateDrumRequest{DrumType: "tertiary"})), "id", id)
	rr = httptest.NewRecorder()
	h.Designate(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Designate with bad type returned %d, want 400", rr.Code)
	}

	req = withParam(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{}")), "id", "999")
	rr = httptest.NewRecorder()
	h.Designate(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Designate on missing resource returned %d, want 404", rr.Code)
	}
}

func TestDrumHandler_Analyze(t *testing.T) {
	h, _ := newDrumHandler()
	res := registerViaHandler(t, h, "CNC-1")
	id := strconv.FormatInt(res.ID, 10)

	for i := 0; i < 60; i++ {
		req := withParam(httptest.NewRequest(http.MethodPost, "/", jsonBody(t, dto.RecordOperationRequest{
			Name: "mill", DurationMinutes: 150,
		})), "id", id)
		rr := httptest.NewRecorder()
		h.RecordOperation(rr, req)
		if rr.Code != http.StatusCreated {
			t.Fatalf("RecordOperation returned %d: %s", rr.Code, rr.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/toc/resources/utilization", nil)
	rr := httptest.NewRecorder()
	h.Utilization(rr, req)
	var scored []drum.Recommendation
	decodeData(t, rr, &scored)
	if len(scored) != 1 || scored[0].Score != 100 || scored[0].IsDrum {
		t.Errorf("Utilization() = %+v, want one undesignated resource scoring 100", scored)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/toc/drums/analyze", nil)
	rr = httptest.NewRecorder()
	h.Analyze(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Analyze returned %d: %s", rr.Code, rr.Body.String())
	}
	var result drum.AnalysisResult
	decodeData(t, rr, &result)
	if result.Analyzed != 1 || result.Identified != 1 || result.Updated != 1 {
		t.Errorf("Analyze() = %+v", result)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/toc/drums", nil)
	rr = httptest.NewRecorder()
	h.List(rr, req)
	var drums []drum.Resource
	decodeData(t, rr, &drums)
	if len(drums) != 1 || drums[0].ID != res.ID {
		t.Errorf("List() = %+v", drums)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/toc/drums/history?limit=5", nil)
	rr = httptest.NewRecorder()
	h.History(rr, req)
	var history []drum.AnalysisHistory
	decodeData(t, rr, &history)
	if len(history) != 1 || history[0].Action != drum.ActionAnalyze {
		t.Errorf("History() = %+v", history)
	}
}

func TestDrumHandler_RecordOperationValidates(t *testing.T) {
	h, _ := newDrumHandler()
	res := registerViaHandler(t, h, "Saw-1")

	req := withParam(httptest.NewRequest(http.MethodPost, "/", jsonBody(t, dto.RecordOperationRequest{DurationMinutes: -1})),
		"id", strconv.FormatInt(res.ID, 10))
	rr := httptest.NewRecorder()
	h.RecordOperation(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("RecordOperation with negative duration returned %d, want 400", rr.Code)
	}
}
