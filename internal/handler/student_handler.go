package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clipflow/clipflow-api/internal/models"
	"github.com/clipflow/clipflow-api/internal/service"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
	"github.com/clipflow/clipflow-api/pkg/response"
)

// StudentHandler handles roster endpoints.
type StudentHandler struct {
	students *service.StudentService
	roster   *service.RosterService
}

// NewStudentHandler creates a new student handler.
func NewStudentHandler(students *service.StudentService, roster *service.RosterService) *StudentHandler {
	return &StudentHandler{students: students, roster: roster}
}

// List godoc
// @Summary List students
// @Description List roster entries with pagination and filtering
// @Tags Students
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param team_id query string false "Team filter"
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}
	filter.TeamID = c.Query("team_id")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student
// @Description Get roster entry detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Create student
// @Description Add a student to a team roster
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Create student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	student, nameShared, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if nameShared {
		meta = map[string]interface{}{"duplicate_name": true}
	}
	response.JSON(c, http.StatusCreated, student, nil, meta)
}

// Update godoc
// @Summary Update student
// @Description Update a roster entry
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	student, nameShared, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if nameShared {
		meta = map[string]interface{}{"duplicate_name": true}
	}
	response.JSON(c, http.StatusOK, student, nil, meta)
}

// Delete godoc
// @Summary Deactivate student
// @Description Remove a student from the active roster
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.students.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Roster godoc
// @Summary Team roster
// @Description List a team's active students in insertion order
// @Tags Students
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Router /teams/{id}/roster [get]
func (h *StudentHandler) Roster(c *gin.Context) {
	roster, err := h.students.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, roster, nil)
}

// Import godoc
// @Summary Import roster
// @Description Bulk import students from a CSV or XLSX file
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Team ID"
// @Param file formData file true "Roster file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /teams/{id}/roster/import [post]
func (h *StudentHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "roster file required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open roster file"))
		return
	}
	defer file.Close() //nolint:errcheck

	teamID := c.Param("id")
	var summary service.ImportSummary
	if strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
		summary, err = h.roster.ImportXLSX(c.Request.Context(), teamID, file)
	} else {
		summary, err = h.roster.ImportCSV(c.Request.Context(), teamID, file)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// Export godoc
// @Summary Export roster
// @Description Download a team's roster as CSV
// @Tags Students
// @Produce text/csv
// @Param id path string true "Team ID"
// @Success 200 {file} file
// @Router /teams/{id}/roster/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	payload, err := h.roster.ExportCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="roster.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}
