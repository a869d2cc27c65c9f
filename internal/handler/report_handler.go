package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipflow/clipflow-api/internal/service"
	"github.com/clipflow/clipflow-api/pkg/response"
)

// ReportHandler serves downloadable attribution reports.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// TeamAttribution godoc
// @Summary Team attribution report
// @Description Download every clip's attribution state as CSV or PDF
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Team ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /teams/{id}/reports/attribution [get]
func (h *ReportHandler) TeamAttribution(c *gin.Context) {
	report, err := h.service.TeamAttribution(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+report.Filename+`"`)
	c.Data(http.StatusOK, report.ContentType, report.Payload)
}
