// Package httpapi exposes the plan engine over HTTP. Every /api route
// requires a bearer token issued elsewhere; the token only supplies the
// caller's user id.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khoii1/DA-Fitness/internal/logger"
	"github.com/khoii1/DA-Fitness/internal/metrics"
	"github.com/khoii1/DA-Fitness/internal/planner"
)

// PlanService is the subset of planner.Service the handlers use.
type PlanService interface {
	GeneratePlanForUser(ctx context.Context, userID string) (*planner.PlanPreview, error)
	GetPlanPreview(ctx context.Context, userID string) (*planner.PlanPreview, error)
	CreatePlan(ctx context.Context, userID string, p planner.CreatePlanParams) (*planner.CreateResult, error)
	ExtendPlan(ctx context.Context, userID string, p planner.ExtendPlanParams) (*planner.ExtendResult, error)
	GetLatestPlan(ctx context.Context, userID string) (*planner.Plan, error)
	GetSchedule(ctx context.Context, userID, planRef string) (*planner.Schedule, error)
	GenerateSmartMealPlan(ctx context.Context, userID string, planID int64, start time.Time) (*planner.SmartPlanResult, error)
}

type Config struct {
	Service   PlanService
	JWTSecret string
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
	// DatabasePath is reported in /health.
	DatabasePath string
	Log          *logger.Logger
}

type Server struct {
	svc      PlanService
	secret   []byte
	gatherer prometheus.Gatherer
	dbPath   string
	log      *logger.Logger
	engine   *gin.Engine
}

func New(cfg Config) *Server {
	s := &Server{
		svc:      cfg.Service,
		secret:   []byte(cfg.JWTSecret),
		gatherer: cfg.Gatherer,
		dbPath:   cfg.DatabasePath,
		log:      cfg.Log.With("component", "http"),
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.Use(s.requireAuth())

	rec := api.Group("/recommendations")
	rec.POST("/generate-plan", s.generatePlan)
	rec.POST("/create-plan", s.createPlan)
	rec.GET("/preview", s.preview)
	rec.POST("/extend-plan", s.extendPlan)
	rec.GET("/my-plan", s.myPlan)
	rec.GET("/schedule", s.schedule)

	api.POST("/plan-meals/generate", s.generateSmartMealPlan)

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"system": metrics.GetSysHealth(s.dbPath),
	})
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}
