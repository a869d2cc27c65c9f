package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clipflow/clipflow-api/internal/models"
	"github.com/clipflow/clipflow-api/internal/service"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
	"github.com/clipflow/clipflow-api/pkg/response"
)

// IdentificationHandler exposes the identification pipeline over HTTP.
type IdentificationHandler struct {
	service *service.IdentificationService
}

// NewIdentificationHandler creates a new identification handler.
func NewIdentificationHandler(svc *service.IdentificationService) *IdentificationHandler {
	return &IdentificationHandler{service: svc}
}

// Identify godoc
// @Summary Identify student
// @Description Run automatic identification for a clip. Repeated calls are
// @Description no-ops unless force=true, which reruns the engine.
// @Tags Identification
// @Produce json
// @Param id path string true "Video ID"
// @Param force query bool false "Rerun even if already attempted"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /videos/{id}/identify [post]
func (h *IdentificationHandler) Identify(c *gin.Context) {
	force := false
	if raw := c.Query("force"); raw != "" {
		if val, err := strconv.ParseBool(raw); err == nil {
			force = val
		}
	}

	video, err := h.service.IdentifyVideo(c.Request.Context(), c.Param("id"), force)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, video, nil)
}

type assignPayload struct {
	StudentID string `json:"student_id" binding:"required"`
}

// Assign godoc
// @Summary Assign student
// @Description Manually attribute a clip to a roster student
// @Tags Identification
// @Accept json
// @Produce json
// @Param id path string true "Video ID"
// @Param payload body handler.assignPayload true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /videos/{id}/assign [post]
func (h *IdentificationHandler) Assign(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload assignPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "student_id required"))
		return
	}

	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	video, err := h.service.AssignStudent(c.Request.Context(), c.Param("id"), payload.StudentID, claims.UserID, meta)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, video, nil)
}

// Unassign godoc
// @Summary Clear assignment
// @Description Remove the clip's attribution, returning it to the review list
// @Tags Identification
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /videos/{id}/assign [delete]
func (h *IdentificationHandler) Unassign(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	video, err := h.service.Unassign(c.Request.Context(), c.Param("id"), claims.UserID, meta)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, video, nil)
}
