package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/models"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
	"github.com/clipflow/clipflow-api/pkg/export"
)

// Report output formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

// Report is a rendered document ready to be sent to the client.
type Report struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ReportService renders team attribution reports for download.
type ReportService struct {
	videos dashboardVideoRepository
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewReportService creates an instance of ReportService.
func NewReportService(videos dashboardVideoRepository, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		videos: videos,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// TeamAttribution renders every clip for a team with its attribution state.
func (s *ReportService) TeamAttribution(ctx context.Context, teamID, format string) (*Report, error) {
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	videos, _, err := s.videos.List(ctx, models.VideoFilter{
		TeamID:    teamID,
		Page:      1,
		PageSize:  100,
		SortBy:    "created_at",
		SortOrder: "ASC",
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load videos")
	}

	dataset := export.Dataset{
		Headers: []string{"title", "status", "identified_student", "confidence", "manually_selected", "duplicate", "uploaded_at"},
		Rows:    make([]map[string]string, 0, len(videos)),
	}
	for _, video := range videos {
		student := video.IdentifiedStudent
		if student == "" {
			student = "unattributed"
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"title":              video.Title,
			"status":             string(video.Status),
			"identified_student": student,
			"confidence":         strconv.FormatFloat(video.Confidence, 'f', 0, 64),
			"manually_selected":  strconv.FormatBool(video.ManuallySelected),
			"duplicate":          strconv.FormatBool(video.DuplicateStudent),
			"uploaded_at":        video.CreatedAt.Format("2006-01-02"),
		})
	}

	switch format {
	case ReportFormatPDF:
		payload, err := s.pdf.Render(dataset, "Team Attribution Report")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &Report{
			Filename:    fmt.Sprintf("attribution-%s.pdf", teamID),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &Report{
			Filename:    fmt.Sprintf("attribution-%s.csv", teamID),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	}
}
