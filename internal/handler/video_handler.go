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

// VideoHandler handles clip upload, playback, and lifecycle endpoints.
type VideoHandler struct {
	videos        *service.VideoService
	transcription *service.TranscriptionService
}

// NewVideoHandler creates a new video handler.
func NewVideoHandler(videos *service.VideoService, transcription *service.TranscriptionService) *VideoHandler {
	return &VideoHandler{videos: videos, transcription: transcription}
}

// List godoc
// @Summary List videos
// @Description List clips with pagination and filtering
// @Tags Videos
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param team_id query string false "Team filter"
// @Param status query string false "Pipeline status filter"
// @Param identified_student query string false "Attributed student filter"
// @Param unattributed query bool false "Only clips needing review"
// @Param search query string false "Title search"
// @Success 200 {object} response.Envelope
// @Router /videos [get]
func (h *VideoHandler) List(c *gin.Context) {
	var filter models.VideoFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if unattributed := c.Query("unattributed"); unattributed != "" {
		if val, err := strconv.ParseBool(unattributed); err == nil {
			filter.Unattributed = val
		}
	}
	filter.TeamID = c.Query("team_id")
	filter.Status = c.Query("status")
	filter.IdentifiedStudent = c.Query("identified_student")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	videos, pagination, err := h.videos.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, videos, pagination)
}

// Get godoc
// @Summary Get video
// @Description Get clip detail including identification state
// @Tags Videos
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /videos/{id} [get]
func (h *VideoHandler) Get(c *gin.Context) {
	video, err := h.videos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, video, nil)
}

// Upload godoc
// @Summary Upload video
// @Description Upload a clip for a team; transcription starts automatically
// @Tags Videos
// @Accept multipart/form-data
// @Produce json
// @Param team_id formData string true "Team ID"
// @Param title formData string true "Clip title"
// @Param file formData file true "Video file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /videos [post]
func (h *VideoHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "video file required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	video, err := h.videos.Upload(c.Request.Context(), service.UploadVideoRequest{
		TeamID:      c.PostForm("team_id"),
		Title:       c.PostForm("title"),
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      file,
	}, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, video)
}

// Update godoc
// @Summary Update video
// @Description Update clip metadata
// @Tags Videos
// @Accept json
// @Produce json
// @Param id path string true "Video ID"
// @Param payload body service.UpdateVideoRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /videos/{id} [put]
func (h *VideoHandler) Update(c *gin.Context) {
	var req service.UpdateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	video, err := h.videos.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, video, nil)
}

// Delete godoc
// @Summary Delete video
// @Description Delete a clip and its stored file
// @Tags Videos
// @Produce json
// @Param id path string true "Video ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /videos/{id} [delete]
func (h *VideoHandler) Delete(c *gin.Context) {
	if err := h.videos.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// StreamURL godoc
// @Summary Issue playback token
// @Description Returns a short-lived signed token for streaming the clip
// @Tags Videos
// @Produce json
// @Param id path string true "Video ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /videos/{id}/stream-url [get]
func (h *VideoHandler) StreamURL(c *gin.Context) {
	grant, err := h.videos.StreamGrant(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, grant, nil)
}

// Stream godoc
// @Summary Stream video
// @Description Serves the clip bytes for a valid playback token
// @Tags Videos
// @Produce octet-stream
// @Param token query string true "Playback token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /videos/stream [get]
func (h *VideoHandler) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "playback token required"))
		return
	}

	video, file, err := h.videos.ResolveStream(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat video file"))
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+video.Title+`"`)
	http.ServeContent(c.Writer, c.Request, video.StoragePath, info.ModTime(), file)
}

// TranscriptWebhook godoc
// @Summary Transcript webhook
// @Description Receives a completed transcript from the transcription provider
// @Tags Videos
// @Accept json
// @Produce json
// @Param id path string true "Video ID"
// @Param payload body handler.transcriptPayload true "Transcript payload"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /videos/{id}/transcript [post]
func (h *VideoHandler) TranscriptWebhook(c *gin.Context) {
	var payload transcriptPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transcript payload"))
		return
	}

	videoID := c.Param("id")
	if payload.Failed {
		if err := h.transcription.MarkFailed(c.Request.Context(), videoID, payload.Error); err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusAccepted, gin.H{"status": "failed"}, nil)
		return
	}

	if err := h.transcription.IngestTranscript(c.Request.Context(), videoID, payload.Transcript); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, gin.H{"status": "accepted"}, nil)
}

type transcriptPayload struct {
	Transcript string `json:"transcript"`
	Failed     bool   `json:"failed"`
	Error      string `json:"error"`
}
