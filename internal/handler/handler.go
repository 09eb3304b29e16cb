package handler

import (
	"liquidity-pulse/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer           trace.Tracer
	liquidityService *service.LiquidityService
}

func New(tracer trace.Tracer, liquidityService *service.LiquidityService) *Handler {
	return &Handler{
		tracer:           tracer,
		liquidityService: liquidityService,
	}
}

// RegisterRoutes wires the API. apiKey guards the /api group; empty disables
// the check.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/liquidity", h.GetSnapshot)
	api.GET("/liquidity/latest", h.GetLatest)
	api.GET("/liquidity/series/:id", h.GetSeries)
	api.GET("/runs", h.GetRuns)
}
