package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/khoii1/DA-Fitness/internal/apperr"
	"github.com/khoii1/DA-Fitness/internal/logger"
	"github.com/khoii1/DA-Fitness/internal/planner"
)

const testSecret = "test-secret"

type fakeService struct {
	err        error
	gotUserID  string
	gotCreate  planner.CreatePlanParams
	gotExtend  planner.ExtendPlanParams
	gotPlanRef string
	gotSmartID int64
	gotStart   time.Time
}

func (f *fakeService) GeneratePlanForUser(_ context.Context, userID string) (*planner.PlanPreview, error) {
	f.gotUserID = userID
	if f.err != nil {
		return nil, f.err
	}
	return &planner.PlanPreview{UserID: userID, BMR: 1618, ExerciseIDs: []string{"e1"}}, nil
}

func (f *fakeService) GetPlanPreview(ctx context.Context, userID string) (*planner.PlanPreview, error) {
	return f.GeneratePlanForUser(ctx, userID)
}

func (f *fakeService) CreatePlan(_ context.Context, userID string, p planner.CreatePlanParams) (*planner.CreateResult, error) {
	f.gotUserID, f.gotCreate = userID, p
	if f.err != nil {
		return nil, f.err
	}
	return &planner.CreateResult{Plan: &planner.Plan{PlanID: 1, UserID: userID}, CreatedDays: 7}, nil
}

func (f *fakeService) ExtendPlan(_ context.Context, userID string, p planner.ExtendPlanParams) (*planner.ExtendResult, error) {
	f.gotUserID, f.gotExtend = userID, p
	if f.err != nil {
		return nil, f.err
	}
	return &planner.ExtendResult{PlanID: 1, AddedDays: p.DaysToAdd}, nil
}

func (f *fakeService) GetLatestPlan(_ context.Context, userID string) (*planner.Plan, error) {
	f.gotUserID = userID
	if f.err != nil {
		return nil, f.err
	}
	return &planner.Plan{PlanID: 3, UserID: userID}, nil
}

func (f *fakeService) GetSchedule(_ context.Context, userID, planRef string) (*planner.Schedule, error) {
	f.gotUserID, f.gotPlanRef = userID, planRef
	if f.err != nil {
		return nil, f.err
	}
	return &planner.Schedule{Plan: &planner.Plan{PlanID: 3}}, nil
}

func (f *fakeService) GenerateSmartMealPlan(_ context.Context, userID string, planID int64, start time.Time) (*planner.SmartPlanResult, error) {
	f.gotUserID, f.gotSmartID, f.gotStart = userID, planID, start
	if f.err != nil {
		return nil, f.err
	}
	return &planner.SmartPlanResult{PlanID: planID, Days: planner.SmartPlanDays}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(svc PlanService) *Server {
	return New(Config{
		Service:   svc,
		JWTSecret: testSecret,
		Gatherer:  prometheus.NewRegistry(),
		Log:       logger.NewNop(),
	})
}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func do(t *testing.T, s *Server, method, path, token, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
		}
	}
	return w.Code, resp
}

func TestAuth(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)

	tests := []struct {
		name   string
		token  string
		status int
		userID string
	}{
		{name: "missing", token: "", status: http.StatusUnauthorized},
		{name: "garbage", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "wrong secret", token: signToken(t, jwt.MapClaims{"id": "u1"}, "other"), status: http.StatusUnauthorized},
		{name: "expired", token: signToken(t, jwt.MapClaims{"id": "u1", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret), status: http.StatusUnauthorized},
		{name: "no user", token: signToken(t, jwt.MapClaims{"role": "x"}, testSecret), status: http.StatusUnauthorized},
		{name: "id claim", token: signToken(t, jwt.MapClaims{"id": "u1"}, testSecret), status: http.StatusOK, userID: "u1"},
		{name: "sub claim", token: signToken(t, jwt.MapClaims{"sub": "u2", "exp": time.Now().Add(time.Hour).Unix()}, testSecret), status: http.StatusOK, userID: "u2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.gotUserID = ""
			status, resp := do(t, s, http.MethodGet, "/api/recommendations/my-plan", tt.token, "")
			if status != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, status)
			}
			if status == http.StatusUnauthorized && (resp.Success || resp.Message == "") {
				t.Errorf("Expected failure envelope, got %+v", resp)
			}
			if svc.gotUserID != tt.userID {
				t.Errorf("Expected user %q, got %q", tt.userID, svc.gotUserID)
			}
		})
	}
}

func TestRecommendationRoutes(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)
	token := signToken(t, jwt.MapClaims{"id": "u1"}, testSecret)

	t.Run("generate plan", func(t *testing.T) {
		status, resp := do(t, s, http.MethodPost, "/api/recommendations/generate-plan", token, "")
		if status != http.StatusOK || !resp.Success {
			t.Fatalf("Unexpected response %d %+v", status, resp)
		}
		var preview planner.PlanPreview
		if err := json.Unmarshal(resp.Data, &preview); err != nil {
			t.Fatal(err)
		}
		if preview.UserID != "u1" || preview.BMR != 1618 {
			t.Errorf("Unexpected preview %+v", preview)
		}
	})

	t.Run("preview", func(t *testing.T) {
		status, _ := do(t, s, http.MethodGet, "/api/recommendations/preview", token, "")
		if status != http.StatusOK {
			t.Errorf("Expected 200, got %d", status)
		}
	})

	t.Run("create plan", func(t *testing.T) {
		body := `{"planLengthInDays": 30, "dailyGoalCalories": 1800, "exerciseIds": ["e1"], "mealIds": ["m1", "m2"]}`
		status, resp := do(t, s, http.MethodPost, "/api/recommendations/create-plan", token, body)
		if status != http.StatusCreated || !resp.Success {
			t.Fatalf("Unexpected response %d %+v", status, resp)
		}
		if svc.gotCreate.PlanLengthInDays != 30 || len(svc.gotCreate.MealIDs) != 2 {
			t.Errorf("Unexpected params %+v", svc.gotCreate)
		}
	})

	t.Run("create plan with bad body", func(t *testing.T) {
		status, resp := do(t, s, http.MethodPost, "/api/recommendations/create-plan", token, `{"planLengthInDays": "x"`)
		if status != http.StatusBadRequest || resp.Success {
			t.Errorf("Unexpected response %d %+v", status, resp)
		}
	})

	t.Run("extend plan defaults to seven days", func(t *testing.T) {
		status, _ := do(t, s, http.MethodPost, "/api/recommendations/extend-plan", token, `{"planId": "12"}`)
		if status != http.StatusCreated {
			t.Fatalf("Expected 201, got %d", status)
		}
		if svc.gotExtend.PlanRef != "12" || svc.gotExtend.DaysToAdd != 7 {
			t.Errorf("Unexpected params %+v", svc.gotExtend)
		}
	})

	t.Run("extend plan rejects non-positive days", func(t *testing.T) {
		status, _ := do(t, s, http.MethodPost, "/api/recommendations/extend-plan", token, `{"planId": "12", "daysToAdd": 0}`)
		if status != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", status)
		}
	})

	t.Run("schedule", func(t *testing.T) {
		status, _ := do(t, s, http.MethodGet, "/api/recommendations/schedule?planId=abc", token, "")
		if status != http.StatusOK || svc.gotPlanRef != "abc" {
			t.Errorf("Unexpected response %d with ref %q", status, svc.gotPlanRef)
		}
	})

	t.Run("smart meal plan", func(t *testing.T) {
		status, resp := do(t, s, http.MethodPost, "/api/plan-meals/generate", token, `{"planID": 5, "startDate": "2026-04-01"}`)
		if status != http.StatusCreated || !resp.Success {
			t.Fatalf("Unexpected response %d %+v", status, resp)
		}
		if svc.gotUserID != "u1" || svc.gotSmartID != 5 || !svc.gotStart.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("Unexpected params %s %d %v", svc.gotUserID, svc.gotSmartID, svc.gotStart)
		}
	})

	t.Run("smart meal plan requires fields", func(t *testing.T) {
		status, resp := do(t, s, http.MethodPost, "/api/plan-meals/generate", token, `{"planID": 5}`)
		if status != http.StatusBadRequest || resp.Message != "planId and startDate are required" {
			t.Errorf("Unexpected response %d %+v", status, resp)
		}
	})
}

func TestErrorMapping(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"id": "u1"}, testSecret)
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperr.Validation("op", "bad input"), http.StatusBadRequest, "bad input"},
		{"not found", apperr.NotFound("op", "no plan"), http.StatusNotFound, "no plan"},
		{"conflict", apperr.Conflict("op", "busy"), http.StatusConflict, "busy"},
		{"persistence", apperr.Persistence("op", context.DeadlineExceeded), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeService{err: tt.err})
			status, resp := do(t, s, http.MethodPost, "/api/recommendations/extend-plan", token, `{"daysToAdd": 3}`)
			if status != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, status)
			}
			if resp.Success || resp.Message != tt.message {
				t.Errorf("Expected message %q, got %+v", tt.message, resp)
			}
		})
	}
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(&fakeService{})

	status, _ := do(t, s, http.MethodGet, "/health", "", "")
	if status != http.StatusOK {
		t.Errorf("Expected /health to be public, got %d", status)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected /metrics to be public, got %d", w.Code)
	}
}
