package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", UserID: "planner"})
}

func writeEnvelope(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_UnwrapsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/toc/evaluate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-User-ID"); got != "planner" {
			t.Errorf("X-User-ID = %q", got)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if body["entity_type"] != "resource" {
			t.Errorf("entity_type = %v", body["entity_type"])
		}

		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"entity_type": "resource",
				"entity_id":   7,
				"count":       1,
				"violations":  []map[string]interface{}{{"id": 3, "severity": "critical", "status": "open"}},
			},
		})
	})

	result, err := c.Constraints().Evaluate(context.Background(), "resource", 7, map[string]interface{}{"capacity": 120})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Count != 1 || result.Violations[0].ID != 3 || result.Violations[0].Severity != "critical" {
		t.Errorf("Evaluate() = %+v", result)
	}
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		check    func(*APIError) bool
		fallback bool
	}{
		{name: "conflict", status: http.StatusConflict, code: "CONFLICT", check: (*APIError).IsConflict},
		{name: "not found", status: http.StatusNotFound, code: "NOT_FOUND", check: (*APIError).IsNotFound},
		{name: "validation", status: http.StatusBadRequest, code: "UNKNOWN_OPERATOR", check: (*APIError).IsValidationError},
		{name: "plain text", status: http.StatusBadGateway, check: (*APIError).IsServerError, fallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.fallback {
					http.Error(w, "upstream down", tt.status)
					return
				}
				writeEnvelope(w, tt.status, map[string]interface{}{
					"success": false,
					"error":   map[string]interface{}{"code": tt.code, "message": "boom"},
				})
			})

			_, err := c.Violations().Resolve(context.Background(), 1, "done", "")
			apiErr, ok := err.(*APIError)
			if !ok {
				t.Fatalf("error = %T %v, want *APIError", err, err)
			}
			if apiErr.StatusCode != tt.status || !tt.check(apiErr) {
				t.Errorf("APIError = %+v", apiErr)
			}
			if ErrorCode(err) != tt.code {
				t.Errorf("ErrorCode() = %q, want %q", ErrorCode(err), tt.code)
			}
		})
	}
}

func TestClient_QueryOptions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("constraint_id") != "4" || q.Get("status") != "open" || q.Has("entity_id") {
			t.Errorf("query = %v", q)
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"success": true, "data": []interface{}{}})
	})

	items, err := c.Violations().List(context.Background(), &ViolationListOptions{ConstraintID: 4, Status: "open"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("List() = %+v", items)
	}
}

func TestDrumService_ClearWithoutReason(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/toc/resources/9/drum" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.ContentLength != 0 {
			t.Errorf("ContentLength = %d, want empty body", r.ContentLength)
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"id": 9, "name": "Oven", "is_drum": false},
		})
	})

	r, err := c.Drums().Clear(context.Background(), 9, "")
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if r.ID != 9 || r.IsDrum {
		t.Errorf("Clear() = %+v", r)
	}
}
