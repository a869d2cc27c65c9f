package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipflow/clipflow-api/internal/middleware"
	"github.com/clipflow/clipflow-api/internal/service"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
	"github.com/clipflow/clipflow-api/pkg/response"
)

// DashboardHandler serves role-specific dashboard endpoints.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Coach godoc
// @Summary Coach dashboard
// @Description Team summary: roster size, clip counts, unattributed backlog
// @Tags Dashboards
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Router /dashboards/coach/{id} [get]
func (h *DashboardHandler) Coach(c *gin.Context) {
	dashboard, hit, err := h.service.Coach(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dashboard, nil, middleware.ExtractMeta(c))
}

// Student godoc
// @Summary Student dashboard
// @Description Clip feed for the logged-in student across their teams
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboards/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, hit, err := h.service.Student(c.Request.Context(), claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dashboard, nil, middleware.ExtractMeta(c))
}

// Parent godoc
// @Summary Parent dashboard
// @Description Clip feeds for every child linked to the parent's email
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboards/parent [get]
func (h *DashboardHandler) Parent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, hit, err := h.service.Parent(c.Request.Context(), claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dashboard, nil, middleware.ExtractMeta(c))
}
