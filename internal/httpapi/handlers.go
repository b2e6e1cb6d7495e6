package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khoii1/DA-Fitness/internal/planner"
)

// defaultDaysToAdd applies when an extend request omits daysToAdd.
const defaultDaysToAdd = 7

func (s *Server) generatePlan(c *gin.Context) {
	preview, err := s.svc.GeneratePlanForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, preview)
}

func (s *Server) preview(c *gin.Context) {
	preview, err := s.svc.GetPlanPreview(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, preview)
}

func (s *Server) createPlan(c *gin.Context) {
	var req planner.CreatePlanParams
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := s.svc.CreatePlan(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, res)
}

type extendRequest struct {
	PlanID      string   `json:"planId"`
	DaysToAdd   *int     `json:"daysToAdd"`
	ExerciseIDs []string `json:"exerciseIds"`
	MealIDs     []string `json:"mealIds"`
}

func (s *Server) extendPlan(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	days := defaultDaysToAdd
	if req.DaysToAdd != nil {
		days = *req.DaysToAdd
	}
	if days <= 0 {
		respondMessage(c, http.StatusBadRequest, "daysToAdd must be positive")
		return
	}

	res, err := s.svc.ExtendPlan(c.Request.Context(), currentUserID(c), planner.ExtendPlanParams{
		PlanRef:     req.PlanID,
		DaysToAdd:   days,
		ExerciseIDs: req.ExerciseIDs,
		MealIDs:     req.MealIDs,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, res)
}

func (s *Server) myPlan(c *gin.Context) {
	plan, err := s.svc.GetLatestPlan(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, plan)
}

func (s *Server) schedule(c *gin.Context) {
	schedule, err := s.svc.GetSchedule(c.Request.Context(), currentUserID(c), c.Query("planId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, schedule)
}

type smartMealPlanRequest struct {
	PlanID    int64  `json:"planId"`
	StartDate string `json:"startDate"`
}

func (s *Server) generateSmartMealPlan(c *gin.Context) {
	var req smartMealPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.PlanID <= 0 || req.StartDate == "" {
		respondMessage(c, http.StatusBadRequest, "planId and startDate are required")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid startDate: "+err.Error())
		return
	}

	res, err := s.svc.GenerateSmartMealPlan(c.Request.Context(), currentUserID(c), req.PlanID, start)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, res)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
