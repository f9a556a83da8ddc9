package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestHandleListPlans(t *testing.T) {
	mockDB := &MockDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if !strings.Contains(sql, "FROM subscription_plans") {
				return nil, errors.New("unexpected query: " + sql)
			}
			return &MockRows{
				Data: [][]any{
					{"plan-free", "free", 0.0, 1, false, 3, false, "standard", false},
					{"plan-premium", "premium", 9.99, 5, true, 100000, true, "high", true},
				},
				Idx: -1,
			}, nil
		},
	}
	srv := newTestServer(mockDB)

	req := httptest.NewRequest("GET", "/plans", nil)
	w := httptest.NewRecorder()
	srv.handleListPlans(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var plans []SubscriptionPlan
	json.NewDecoder(w.Body).Decode(&plans)
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].PlanName != "free" || plans[1].MaxSkipsPerDay != 100000 {
		t.Errorf("unexpected plans %+v", plans)
	}
}

func TestHandleCreatePlan_Validation(t *testing.T) {
	srv := newTestServer(&MockDB{})

	cases := []struct {
		name string
		body map[string]any
	}{
		{"MissingName", map[string]any{"price": 5.0, "maxDevices": 1}},
		{"NegativePrice", map[string]any{"planName": "trial", "price": -1.0, "maxDevices": 1}},
		{"ZeroDevices", map[string]any{"planName": "trial", "price": 5.0, "maxDevices": 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, _ := json.Marshal(tc.body)
			req := httptest.NewRequest("POST", "/plans", bytes.NewReader(payload))
			w := httptest.NewRecorder()
			srv.handleCreatePlan(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}
