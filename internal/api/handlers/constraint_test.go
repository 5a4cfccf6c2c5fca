package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pratik-mahalle/tocguard/internal/api/dto"
	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/detector"
	"github.com/pratik-mahalle/tocguard/internal/domain/constraint"
	"github.com/pratik-mahalle/tocguard/internal/pkg/validator"
	"github.com/pratik-mahalle/tocguard/internal/services"
	"github.com/pratik-mahalle/tocguard/internal/testutil"
)

// withParam attaches a chi URL parameter to the request
func withParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode body: %v", err)
	}
	return bytes.NewReader(b)
}

// decodeData unwraps the success envelope into out
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !envelope.Success {
		t.Fatalf("response not successful: %s", envelope.Data)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

// errorCode extracts the error code from a failure envelope
func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return envelope.Error.Code
}

func newConstraintHandlers() (*ConstraintHandler, *ViolationHandler) {
	log := testutil.NewTestLogger()
	service := services.NewConstraintService(
		testutil.NewMockConstraintRepository(),
		testutil.NewMockViolationRepository(),
		testutil.NewMockExceptionRepository(),
		detector.NewFieldRegistry(),
		config.TOCConfig{ApplyExceptions: true},
		log,
	)
	val := validator.New()
	return NewConstraintHandler(service, log, val), NewViolationHandler(service, log, val)
}

func createCapacityConstraint(t *testing.T, h *ConstraintHandler) constraint.Constraint {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/toc/constraints", jsonBody(t, dto.CreateConstraintRequest{
		Name:          "Capacity ceiling",
		Category:      "capacity",
		Scope:         "resource",
		SeverityLevel: "hard",
		Rule:          dto.RuleDTO{Field: "capacity", Operator: "<", Value: 100},
	}))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Create returned %d: %s", rr.Code, rr.Body.String())
	}
	var c constraint.Constraint
	decodeData(t, rr, &c)
	return c
}

func TestConstraintHandler_Create(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "valid constraint",
			body: dto.CreateConstraintRequest{
				Name: "Min batch", Category: "quality",
				Rule: dto.RuleDTO{Field: "batch.size", Operator: ">=", Value: 10},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "unknown operator",
			body: dto.CreateConstraintRequest{
				Name: "Fuzzy", Category: "quality",
				Rule: dto.RuleDTO{Field: "status", Operator: "~", Value: "ok"},
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "UNKNOWN_OPERATOR",
		},
		{
			name: "malformed between",
			body: dto.CreateConstraintRequest{
				Name: "Window", Category: "capacity",
				Rule: dto.RuleDTO{Field: "load", Operator: "between", Value: 5},
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_CONFIGURATION",
		},
		{
			name: "empty path segment",
			body: dto.CreateConstraintRequest{
				Name: "Broken", Category: "capacity",
				Rule: dto.RuleDTO{Field: "resource..capacity", Operator: "<", Value: 1},
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "missing name",
			body:           dto.CreateConstraintRequest{Category: "capacity", Rule: dto.RuleDTO{Field: "x", Operator: "=", Value: 1}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "not json",
			body:           "{",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newConstraintHandlers()

			var req *http.Request
			if s, ok := tt.body.(string); ok {
				req = httptest.NewRequest(http.MethodPost, "/api/v1/toc/constraints", bytes.NewBufferString(s))
			} else {
				req = httptest.NewRequest(http.MethodPost, "/api/v1/toc/constraints", jsonBody(t, tt.body))
			}
			rr := httptest.NewRecorder()

			h.Create(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v (%s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.expectedCode != "" {
				if code := errorCode(t, rr); code != tt.expectedCode {
					t.Errorf("error code = %s, want %s", code, tt.expectedCode)
				}
			}
		})
	}
}

func TestConstraintHandler_UpdateAndDelete(t *testing.T) {
	h, _ := newConstraintHandlers()
	c := createCapacityConstraint(t, h)

	name := "Capacity ceiling v2"
	req := httptest.NewRequest(http.MethodPut, "/api/v1/toc/constraints/1", jsonBody(t, dto.UpdateConstraintRequest{Name: &name}))
	req = withParam(req, "id", "1")
	rr := httptest.NewRecorder()
	h.Update(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Update returned %d: %s", rr.Code, rr.Body.String())
	}
	var updated constraint.Constraint
	decodeData(t, rr, &updated)
	if updated.Version != c.Version+1 || updated.Name != name {
		t.Errorf("Update() = version %d name %q", updated.Version, updated.Name)
	}

	req = withParam(httptest.NewRequest(http.MethodDelete, "/api/v1/toc/constraints/1", nil), "id", "1")
	rr = httptest.NewRecorder()
	h.Delete(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Delete returned %d", rr.Code)
	}

	req = withParam(httptest.NewRequest(http.MethodGet, "/api/v1/toc/constraints/1", nil), "id", "1")
	rr = httptest.NewRecorder()
	h.Get(rr, req)
	var got constraint.Constraint
	decodeData(t, rr, &got)
	if got.IsActive {
		t.Error("constraint still active after delete")
	}

	for _, id := range []string{"abc", "0", "99"} {
		req = withParam(httptest.NewRequest(http.MethodGet, "/api/v1/toc/constraints/"+id, nil), "id", id)
		rr = httptest.NewRecorder()
		h.Get(rr, req)
		if rr.Code != http.StatusBadRequest && rr.Code != http.StatusNotFound {
			t.Errorf("Get(%s) returned %d", id, rr.Code)
		}
	}
}

func TestConstraintHandler_EvaluateAndResolve(t *testing.T) {
	h, vh := newConstraintHandlers()
	createCapacityConstraint(t, h)

	evaluate := func(capacity float64) dto.EvaluateResponse {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/toc/evaluate", jsonBody(t, dto.EvaluateRequest{
			EntityType: "resource",
			EntityID:   7,
			Data:       map[string]interface{}{"capacity": capacity},
		}))
		rr := httptest.NewRecorder()
		h.Evaluate(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("Evaluate returned %d: %s", rr.Code, rr.Body.String())
		}
		var resp dto.EvaluateResponse
		decodeData(t, rr, &resp)
		return resp
	}

	if resp := evaluate(80); resp.Count != 0 {
		t.Errorf("capacity 80 produced %d violations, want 0", resp.Count)
	}

	resp := evaluate(120)
	if resp.Count != 1 || resp.Violations[0].Severity != constraint.SeverityCritical {
		t.Fatalf("capacity 120 = %+v, want one critical violation", resp)
	}
	id := resp.Violations[0].ID

	resolve := func(body interface{}, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/toc/violations/x/resolve", jsonBody(t, body))
		if user != "" {
			req.Header.Set("X-User-ID", user)
		}
		req = withParam(req, "id", strconv.FormatInt(id, 10))
		rr := httptest.NewRecorder()
		vh.Resolve(rr, req)
		return rr
	}

	if rr := resolve(map[string]string{"resolution": "Rebalanced"}, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("Resolve without actor returned %d, want 400", rr.Code)
	}

	rr := resolve(map[string]string{"resolution": "Rebalanced"}, "planner")
	if rr.Code != http.StatusOK {
		t.Fatalf("Resolve returned %d: %s", rr.Code, rr.Body.String())
	}
	var v constraint.Violation
	decodeData(t, rr, &v)
	if v.Status != constraint.StatusResolved || v.ResolvedBy == nil || *v.ResolvedBy != "planner" {
		t.Errorf("Resolve() = %+v", v)
	}

	rr = resolve(map[string]string{"resolution": "Again", "resolved_by": "planner"}, "")
	if rr.Code != http.StatusConflict {
		t.Errorf("second Resolve returned %d, want 409", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/toc/violations/summary", nil)
	rr = httptest.NewRecorder()
	vh.GetSummary(rr, req)
	var summary constraint.Summary
	decodeData(t, rr, &summary)
	if summary.Total != 1 || summary.Resolved != 1 || summary.Critical != 1 {
		t.Errorf("GetSummary() = %+v", summary)
	}
}

func TestViolationHandler_WaiveMissing(t *testing.T) {
	_, vh := newConstraintHandlers()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/toc/violations/5/waive", jsonBody(t, dto.WaiveViolationRequest{
		Reason: "Accepted risk", ApprovedBy: "lead",
	}))
	req = withParam(req, "id", "5")
	rr := httptest.NewRecorder()
	vh.Waive(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Waive returned %d, want 404", rr.Code)
	}
}

func TestConstraintHandler_Exceptions(t *testing.T) {
	h, _ := newConstraintHandlers()
	c := createCapacityConstraint(t, h)

	req := httptest.NewRequest(http.MethodPost, "/", jsonBody(t, dto.CreateExceptionRequest{
		EntityType: "resource", Reason: "Commissioning", ApprovedBy: "lead",
	}))
	req = withParam(req, "id", strconv.FormatInt(c.ID, 10))
	rr := httptest.NewRecorder()
	h.CreateException(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("CreateException returned %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/toc/evaluate", jsonBody(t, dto.EvaluateRequest{
		EntityType: "resource", EntityID: 3, Data: map[string]interface{}{"capacity": 500},
	}))
	rr = httptest.NewRecorder()
	h.Evaluate(rr, req)
	var resp dto.EvaluateResponse
	decodeData(t, rr, &resp)
	if resp.Count != 0 {
		t.Errorf("breach under exception produced %d violations, want 0", resp.Count)
	}

	req = withParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", strconv.FormatInt(c.ID, 10))
	rr = httptest.NewRecorder()
	h.ListExceptions(rr, req)
	var list []constraint.Exception
	decodeData(t, rr, &list)
	if len(list) != 1 || !list[0].IsActive {
		t.Errorf("ListExceptions() = %+v", list)
	}
}
