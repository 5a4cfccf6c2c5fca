package handlers

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/pratik-mahalle/tocguard/internal/api/dto"
	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/pkg/validator"
	"github.com/pratik-mahalle/tocguard/internal/services"
	"github.com/pratik-mahalle/tocguard/internal/testutil"
)

func newBufferHandler() *BufferHandler {
	log := testutil.NewTestLogger()
	cfg := config.TOCConfig{EmergencyPenetration: 75, HealthHistoryLimit: 50}
	service := services.NewBufferService(testutil.NewMockBufferRepository(), nil, cfg, log)
	return NewBufferHandler(service, log, validator.New())
}

func createShippingBuffer(t *testing.T, h *BufferHandler) buffer.Definition {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/toc/buffers", jsonBody(t, dto.CreateBufferRequest{
		Name:              "Shipping buffer A",
		BufferType:        "stock",
		BufferCategory:    "shipping",
		TargetSize:        1000,
		RedZonePercent:    20,
		YellowZonePercent: 30,
	}))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Create returned %d: %s", rr.Code, rr.Body.String())
	}
	var d buffer.Definition
	decodeData(t, rr, &d)
	return d
}

func TestBufferHandler_Create(t *testing.T) {
	tests := []struct {
		name           string
		body           dto.CreateBufferRequest
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "valid buffer",
			body: dto.CreateBufferRequest{
				Name: "Drum buffer", BufferType: "time", BufferCategory: "drum",
				TargetSize: 8, RedZonePercent: 33, YellowZonePercent: 33,
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "zero target",
			body: dto.CreateBufferRequest{
				Name: "Empty", BufferType: "stock", BufferCategory: "stock",
				RedZonePercent: 20, YellowZonePercent: 30,
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name: "unknown category",
			body: dto.CreateBufferRequest{
				Name: "Odd", BufferType: "stock", BufferCategory: "warehouse",
				TargetSize: 10, RedZonePercent: 20, YellowZonePercent: 30,
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name: "zones exceed target",
			body: dto.CreateBufferRequest{
				Name: "Overlap", BufferType: "stock", BufferCategory: "stock",
				TargetSize: 10, RedZonePercent: 70, YellowZonePercent: 50,
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newBufferHandler()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/toc/buffers", jsonBody(t, tt.body))
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

func TestBufferHandler_UpdateLevel(t *testing.T) {
	h := newBufferHandler()
	d := createShippingBuffer(t, h)
	id := strconv.FormatInt(d.ID, 10)

	level := func(body interface{}, bufferID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/toc/buffers/"+bufferID+"/level", jsonBody(t, body))
		req = withParam(req, "id", bufferID)
		rr := httptest.NewRecorder()
		h.UpdateLevel(rr, req)
		return rr
	}

	rr := level(map[string]interface{}{"level": 150, "consuming_entity_type": "order", "consuming_entity_id": 42}, id)
	if rr.Code != http.StatusOK {
		t.Fatalf("UpdateLevel returned %d: %s", rr.Code, rr.Body.String())
	}
	var c buffer.Consumption
	decodeData(t, rr, &c)
	if c.CurrentZone != buffer.ZoneRed || math.Abs(c.PenetrationIntoRed-25) > 1e-9 || c.AlertStatus != buffer.AlertCritical {
		t.Errorf("UpdateLevel() = %+v, want red with penetration 25", c)
	}
	if c.ConsumingEntity == nil || c.ConsumingEntity.ID != 42 {
		t.Errorf("consuming entity = %+v", c.ConsumingEntity)
	}

	if rr := level(map[string]interface{}{}, id); rr.Code != http.StatusBadRequest {
		t.Errorf("UpdateLevel without level returned %d, want 400", rr.Code)
	}
	if rr := level(map[string]interface{}{"level": 10, "consuming_entity_id": 3}, id); rr.Code != http.StatusBadRequest {
		t.Errorf("UpdateLevel with untyped consumer returned %d, want 400", rr.Code)
	}
	if rr := level(map[string]interface{}{"level": 10}, "404"); rr.Code != http.StatusNotFound {
		t.Errorf("UpdateLevel on missing buffer returned %d, want 404", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/toc/buffers/alerts", nil)
	rr = httptest.NewRecorder()
	h.Alerts(rr, req)
	var alerts []buffer.Alert
	decodeData(t, rr, &alerts)
	if len(alerts) != 1 || alerts[0].Severity != buffer.AlertCritical {
		t.Errorf("Alerts() = %+v, want one critical alert", alerts)
	}

	req = withParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", id)
	rr = httptest.NewRecorder()
	h.Health(rr, req)
	var health buffer.Health
	decodeData(t, rr, &health)
	if health.CurrentStatus == nil || len(health.PenetrationHistory) != 1 {
		t.Errorf("Health() = %+v", health)
	}
}

func TestBufferHandler_UpdateAndPolicy(t *testing.T) {
	h := newBufferHandler()
	d := createShippingBuffer(t, h)
	id := strconv.FormatInt(d.ID, 10)

	target := 500.0
	req := withParam(httptest.NewRequest(http.MethodPut, "/", jsonBody(t, dto.UpdateBufferRequest{TargetSize: &target})), "id", id)
	rr := httptest.NewRecorder()
	h.Update(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Update returned %d: %s", rr.Code, rr.Body.String())
	}
	var updated buffer.Definition
	decodeData(t, rr, &updated)
	if updated.TargetSize != 500 {
		t.Errorf("target = %v, want 500", updated.TargetSize)
	}

	threshold := 40.0
	req = withParam(httptest.NewRequest(http.MethodPut, "/", jsonBody(t, dto.SetPolicyRequest{
		ReplenishmentRule:           "min_max",
		ReplenishmentLeadTimeHours:  12,
		EmergencyPenetrationPercent: &threshold,
	})), "id", id)
	rr = httptest.NewRecorder()
	h.SetPolicy(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("SetPolicy returned %d: %s", rr.Code, rr.Body.String())
	}
	var p buffer.Policy
	decodeData(t, rr, &p)
	if p.BufferDefinitionID != d.ID || !p.IsActive {
		t.Errorf("SetPolicy() = %+v", p)
	}

	bad := 0.0
	req = withParam(httptest.NewRequest(http.MethodPut, "/", jsonBody(t, dto.SetPolicyRequest{
		ReplenishmentRule: "min_max", EmergencyPenetrationPercent: &bad,
	})), "id", id)
	rr = httptest.NewRecorder()
	h.SetPolicy(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("SetPolicy with zero threshold returned %d, want 400", rr.Code)
	}
}
