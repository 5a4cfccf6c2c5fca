package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/api/handlers"
	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/detector"
	"github.com/pratik-mahalle/tocguard/internal/pkg/validator"
	"github.com/pratik-mahalle/tocguard/internal/repository/postgres"
	"github.com/pratik-mahalle/tocguard/internal/services"
	"github.com/pratik-mahalle/tocguard/internal/testutil"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	sqlDB := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.CleanupDB(sqlDB) })
	db := postgres.Wrap(sqlDB, postgres.DriverSQLite)

	cfg := &config.Config{
		Server: config.ServerConfig{FrontendURL: "http://localhost:5173", RateLimitRPS: 1000, RateLimitBurst: 1000},
		TOC: config.TOCConfig{
			ApplyExceptions:      true,
			EmergencyPenetration: 75,
			HealthHistoryLimit:   50,
			OperationTimeout:     5 * time.Second,
		},
	}
	log := testutil.NewTestLogger()
	val := validator.New()

	constraintService := services.NewConstraintService(
		postgres.NewConstraintRepository(db),
		postgres.NewViolationRepository(db),
		postgres.NewExceptionRepository(db),
		detector.NewDomainFieldRegistry([]string{"buffer"}),
		cfg.TOC,
		log,
	)
	bufferService := services.NewBufferService(postgres.NewBufferRepository(db), nil, cfg.TOC, log)
	drumService := services.NewDrumService(postgres.NewDrumRepository(db), log)

	h := &Handlers{
		Health:     handlers.NewHealthHandler(db, nil, log),
		Constraint: handlers.NewConstraintHandler(constraintService, log, val),
		Violation:  handlers.NewViolationHandler(constraintService, log, val),
		Buffer:     handlers.NewBufferHandler(bufferService, log, val),
		Drum:       handlers.NewDrumHandler(drumService, log, val),
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(New(ctx, cfg, log, h))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body interface{}, out interface{}) (int, string) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "integration")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: failed to decode response: %v", method, path, err)
	}
	if out != nil && env.Success {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("%s %s: failed to decode data: %v", method, path, err)
		}
	}
	return resp.StatusCode, env.Error.Code
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		if status, _ := call(t, srv, http.MethodGet, path, nil, nil); status != http.StatusOK {
			t.Errorf("GET %s returned %d", path, status)
		}
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics returned %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if id := resp.Header.Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("generated request ID = %q, want a UUID", id)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	echoed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	echoed.Body.Close()
	if got := echoed.Header.Values("X-Request-ID"); len(got) != 1 || got[0] != "trace-42" {
		t.Errorf("request ID header = %v, want the caller's only", got)
	}
}

func TestRouter_ConstraintFlow(t *testing.T) {
	srv := newTestServer(t)

	var c struct {
		ID int64 `json:"id"`
	}
	status, code := call(t, srv, http.MethodPost, "/api/v1/toc/constraints", map[string]interface{}{
		"name":           "Capacity ceiling",
		"category":       "capacity",
		"scope":          "resource",
		"severity_level": "soft",
		"priority":       "high",
		"rule":           map[string]interface{}{"field": "metrics.capacity", "operator": "<", "value": 100},
	}, &c)
	if status != http.StatusCreated {
		t.Fatalf("create constraint returned %d (%s)", status, code)
	}

	var eval struct {
		Count      int `json:"count"`
		Violations []struct {
			ID       int64  `json:"id"`
			Severity string `json:"severity"`
		} `json:"violations"`
	}
	snapshot := map[string]interface{}{
		"entity_type": "resource",
		"entity_id":   7,
		"data":        map[string]interface{}{"metrics": map[string]interface{}{"capacity": 120}},
	}
	call(t, srv, http.MethodPost, "/api/v1/toc/evaluate", snapshot, &eval)
	if eval.Count != 1 || eval.Violations[0].Severity != "major" {
		t.Fatalf("evaluate = %+v, want one major violation", eval)
	}
	first := eval.Violations[0].ID

	// a repeated breach refreshes the open violation
	call(t, srv, http.MethodPost, "/api/v1/toc/evaluate", snapshot, &eval)
	if eval.Count != 1 || eval.Violations[0].ID != first {
		t.Errorf("second evaluate created a new violation: %+v", eval)
	}

	path := fmt.Sprintf("/api/v1/toc/violations/%d/waive", first)
	if status, code := call(t, srv, http.MethodPost, path, map[string]string{"reason": "Seasonal peak"}, nil); status != http.StatusOK {
		t.Fatalf("waive returned %d (%s)", status, code)
	}
	if status, code := call(t, srv, http.MethodPost, path, map[string]string{"reason": "Again"}, nil); status != http.StatusConflict || code != "CONFLICT" {
		t.Errorf("second waive returned %d (%s), want 409 CONFLICT", status, code)
	}

	var summary struct {
		Total  int `json:"total"`
		Major  int `json:"major"`
		Waived int `json:"waived"`
	}
	call(t, srv, http.MethodGet, "/api/v1/toc/violations/summary", nil, &summary)
	if summary.Total != 1 || summary.Major != 1 || summary.Waived != 1 {
		t.Errorf("summary = %+v", summary)
	}

	if status, code := call(t, srv, http.MethodPost, "/api/v1/toc/constraints", map[string]interface{}{
		"name": "Bad", "category": "x",
		"rule": map[string]interface{}{"field": "a", "operator": "like", "value": 1},
	}, nil); status != http.StatusBadRequest || code != "UNKNOWN_OPERATOR" {
		t.Errorf("unknown operator returned %d (%s)", status, code)
	}
}

func TestRouter_BufferAndDrumFlow(t *testing.T) {
	srv := newTestServer(t)

	var b struct {
		ID int64 `json:"id"`
	}
	status, code := call(t, srv, http.MethodPost, "/api/v1/toc/buffers", map[string]interface{}{
		"name": "Drum buffer", "buffer_type": "time", "buffer_category": "drum",
		"target_size": 1000, "red_zone_percent": 20, "yellow_zone_percent": 30,
	}, &b)
	if status != http.StatusCreated {
		t.Fatalf("create buffer returned %d (%s)", status, code)
	}

	levelPath := fmt.Sprintf("/api/v1/toc/buffers/%d/level", b.ID)
	zones := []struct {
		level float64
		zone  string
	}{
		{800, "green"},
		{400, "yellow"},
		{150, "red"},
	}
	for _, z := range zones {
		var c struct {
			CurrentZone string `json:"current_zone"`
		}
		call(t, srv, http.MethodPost, levelPath, map[string]interface{}{"level": z.level}, &c)
		if c.CurrentZone != z.zone {
			t.Errorf("level %v zone = %s, want %s", z.level, c.CurrentZone, z.zone)
		}
	}

	var history []struct {
		NewZone string `json:"new_zone"`
	}
	call(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/toc/buffers/%d/history", b.ID), nil, &history)
	if len(history) != 2 || history[0].NewZone != "red" {
		t.Errorf("history = %+v, want two zone changes, newest red", history)
	}

	var alerts []struct {
		AlertType string `json:"alert_type"`
	}
	call(t, srv, http.MethodGet, "/api/v1/toc/buffers/alerts", nil, &alerts)
	if len(alerts) != 1 || !strings.HasPrefix(alerts[0].AlertType, "buffer_") {
		t.Errorf("alerts = %+v", alerts)
	}

	var r struct {
		ID int64 `json:"id"`
	}
	call(t, srv, http.MethodPost, "/api/v1/toc/resources", map[string]string{"name": "CNC-1"}, &r)
	for i := 0; i < 60; i++ {
		call(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/toc/resources/%d/operations", r.ID),
			map[string]interface{}{"name": "mill", "duration_minutes": 150}, nil)
	}

	var result struct {
		Analyzed   int `json:"analyzed"`
		Identified int `json:"identified"`
		Updated    int `json:"updated"`
	}
	call(t, srv, http.MethodPost, "/api/v1/toc/drums/analyze", nil, &result)
	if result.Analyzed != 1 || result.Identified != 1 || result.Updated != 1 {
		t.Errorf("analyze = %+v", result)
	}

	var drums []struct {
		ID     int64 `json:"id"`
		IsDrum bool  `json:"is_drum"`
	}
	call(t, srv, http.MethodGet, "/api/v1/toc/drums", nil, &drums)
	if len(drums) != 1 || drums[0].ID != r.ID {
		t.Errorf("drums = %+v", drums)
	}

	if status, _ := call(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/toc/resources/%d/drum", r.ID), nil, nil); status != http.StatusOK {
		t.Errorf("clear drum returned %d", status)
	}
}
