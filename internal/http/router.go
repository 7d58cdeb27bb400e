// README: HTTP router registration.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tenkap/internal/http/handlers"
	"tenkap/internal/http/middleware"
	"tenkap/internal/infra"
)

type RouterDeps struct {
	Matching handlers.MatchService
	Nudges   handlers.NudgeService
	Location handlers.LocationService
	Visits   handlers.VisitRecorder
	// Verifier enables Firebase auth on /api when set.
	Verifier       infra.TokenVerifier
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Logging(logger), middleware.Recovery(logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if deps.Verifier != nil {
		api.Use(middleware.Auth(deps.Verifier))
	}

	matchHandler := handlers.NewMatchHandler(deps.Matching)
	api.POST("/matches/score", matchHandler.ScorePair)
	api.GET("/matches/score", matchHandler.ScoreStored)
	api.GET("/matches/nearby", matchHandler.Nearby)

	locationHandler := handlers.NewLocationHandler(deps.Location, deps.Visits)
	api.PUT("/users/:id/location", locationHandler.Update)
	api.POST("/users/:id/visits", locationHandler.RecordVisit)

	nudgeHandler := handlers.NewNudgeHandler(deps.Nudges, deps.RequestTimeout)
	api.POST("/nudges", nudgeHandler.Select)
	api.POST("/nudges/push", nudgeHandler.Push)

	return r
}
