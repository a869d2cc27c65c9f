package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
	"github.com/clipflow/clipflow-api/pkg/export"
)

// ImportSummary reports the outcome of a roster import.
type ImportSummary struct {
	Created        int      `json:"created"`
	Skipped        int      `json:"skipped"`
	DuplicateNames []string `json:"duplicate_names,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// RosterService imports and exports team rosters in bulk.
type RosterService struct {
	students *StudentService
	csv      *export.CSVExporter
	logger   *zap.Logger
}

// NewRosterService creates an instance of RosterService.
func NewRosterService(students *StudentService, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{students: students, csv: export.NewCSVExporter(), logger: logger}
}

type rosterRow struct {
	Name        string
	Email       string
	ParentEmail string
	Nickname    string
}

// ImportCSV reads a header row (name,email,parent_email,nickname) followed by
// one student per line. Rows that fail validation are skipped and reported;
// the rest of the file still imports.
func (s *RosterService) ImportCSV(ctx context.Context, teamID string, r io.Reader) (ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return ImportSummary{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "roster file is empty or unreadable")
	}
	columns := columnIndex(header)
	if _, ok := columns["name"]; !ok {
		return ImportSummary{}, appErrors.Clone(appErrors.ErrValidation, "roster file must have a name column")
	}
	if _, ok := columns["email"]; !ok {
		return ImportSummary{}, appErrors.Clone(appErrors.ErrValidation, "roster file must have an email column")
	}

	var rows []rosterRow
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return ImportSummary{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("malformed csv at line %d", line))
		}
		rows = append(rows, rosterRow{
			Name:        cell(record, columns, "name"),
			Email:       cell(record, columns, "email"),
			ParentEmail: cell(record, columns, "parent_email"),
			Nickname:    cell(record, columns, "nickname"),
		})
	}

	return s.importRows(ctx, teamID, rows), nil
}

// ImportXLSX reads the first sheet of a workbook with the same column layout
// as the CSV import.
func (s *RosterService) ImportXLSX(ctx context.Context, teamID string, r io.Reader) (ImportSummary, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return ImportSummary{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "workbook is unreadable")
	}
	defer workbook.Close() //nolint:errcheck

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return ImportSummary{}, appErrors.Clone(appErrors.ErrValidation, "workbook has no sheets")
	}
	records, err := workbook.GetRows(sheets[0])
	if err != nil {
		return ImportSummary{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read workbook rows")
	}
	if len(records) == 0 {
		return ImportSummary{}, appErrors.Clone(appErrors.ErrValidation, "workbook is empty")
	}

	columns := columnIndex(records[0])
	if _, ok := columns["name"]; !ok {
		return ImportSummary{}, appErrors.Clone(appErrors.ErrValidation, "roster sheet must have a name column")
	}
	if _, ok := columns["email"]; !ok {
		return ImportSummary{}, appErrors.Clone(appErrors.ErrValidation, "roster sheet must have an email column")
	}

	var rows []rosterRow
	for _, record := range records[1:] {
		rows = append(rows, rosterRow{
			Name:        cell(record, columns, "name"),
			Email:       cell(record, columns, "email"),
			ParentEmail: cell(record, columns, "parent_email"),
			Nickname:    cell(record, columns, "nickname"),
		})
	}

	return s.importRows(ctx, teamID, rows), nil
}

func (s *RosterService) importRows(ctx context.Context, teamID string, rows []rosterRow) ImportSummary {
	summary := ImportSummary{}
	for i, row := range rows {
		if strings.TrimSpace(row.Name) == "" && strings.TrimSpace(row.Email) == "" {
			continue
		}
		student, nameShared, err := s.students.Create(ctx, CreateStudentRequest{
			TeamID:      teamID,
			Name:        row.Name,
			Email:       row.Email,
			ParentEmail: row.ParentEmail,
			Nickname:    row.Nickname,
		})
		if err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %s", i+2, appErrors.FromError(err).Message))
			continue
		}
		summary.Created++
		if nameShared {
			summary.DuplicateNames = append(summary.DuplicateNames, student.Name)
		}
	}
	return summary
}

// ExportCSV renders the team's full roster as CSV.
func (s *RosterService) ExportCSV(ctx context.Context, teamID string) ([]byte, error) {
	roster, err := s.students.Roster(ctx, teamID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"name", "email", "parent_email", "nickname"},
		Rows:    make([]map[string]string, 0, len(roster)),
	}
	for _, student := range roster {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"name":         student.Name,
			"email":        student.Email,
			"parent_email": student.ParentEmail,
			"nickname":     student.Nickname,
		})
	}
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster csv")
	}
	return payload, nil
}

func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key != "" {
			index[key] = i
		}
	}
	return index
}

func cell(record []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
