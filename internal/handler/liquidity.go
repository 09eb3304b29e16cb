package handler

import (
	"net/http"
	"strconv"
	"strings"

	"liquidity-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetSnapshot godoc
// @Summary      Get the full net-liquidity snapshot
// @Description  Returns the latest published artifact: meta plus one [date, value] array per series
// @Tags         liquidity
// @Produce      json
// @Success      200  {object}  pipeline.Snapshot
// @Failure      503  {object}  map[string]string
// @Router       /api/liquidity [get]
func (h *Handler) GetSnapshot(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-snapshot")
	defer span.End()

	snap, err := h.liquidityService.GetSnapshot(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetLatest godoc
// @Summary      Get the most recent aligned values
// @Description  Returns the last date's values for every series plus the composite and its formula version
// @Tags         liquidity
// @Produce      json
// @Success      200  {object}  service.Latest
// @Failure      503  {object}  map[string]string
// @Router       /api/liquidity/latest [get]
func (h *Handler) GetLatest(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest")
	defer span.End()

	latest, err := h.liquidityService.GetLatest(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, latest)
}

// GetSeries godoc
// @Summary      Get one published series
// @Description  Returns the [date, value] array for a single series id
// @Tags         liquidity
// @Produce      json
// @Param        id  path  string  true  "Series id (formula_1, fed_assets, tga, rrp, loans_facilities, loans_held)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/liquidity/series/{id} [get]
func (h *Handler) GetSeries(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-series")
	defer span.End()

	id := domain.SeriesID(strings.ToLower(c.Param("id")))
	span.SetAttributes(attribute.String("series", string(id)))

	entries, err := h.liquidityService.GetSeries(ctx, id)
	if err != nil {
		if strings.Contains(err.Error(), "unknown series") {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": id, "points": entries})
}

// GetRuns godoc
// @Summary      List recent pipeline runs
// @Description  Returns the audit trail of batch runs: status, row counts, per-source fetch outcomes
// @Tags         runs
// @Produce      json
// @Param        limit  query  int  false  "Number of runs (default 20, max 100)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/runs [get]
func (h *Handler) GetRuns(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-runs")
	defer span.End()

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	runs, err := h.liquidityService.GetRuns(ctx, limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
