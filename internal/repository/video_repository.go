package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clipflow/clipflow-api/internal/models"
)

// VideoRepository manages persistence for video records.
type VideoRepository struct {
	db *sqlx.DB
}

// NewVideoRepository constructs a VideoRepository.
func NewVideoRepository(db *sqlx.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, team_id, title, storage_path, status, transcript, identified_student,
        llm_identified_student, confidence, manually_selected, identification_attempted,
        duplicate_student, uploaded_by, created_at, updated_at`

// List returns video records matching the provided filters.
func (r *VideoRepository) List(ctx context.Context, filter models.VideoFilter) ([]models.VideoRecord, int, error) {
	base := "FROM videos WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeamID != "" {
		conditions = append(conditions, fmt.Sprintf("team_id = $%d", len(args)+1))
		args = append(args, filter.TeamID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.IdentifiedStudent != "" {
		conditions = append(conditions, fmt.Sprintf("identified_student = $%d", len(args)+1))
		args = append(args, filter.IdentifiedStudent)
	}
	if filter.Unattributed {
		conditions = append(conditions, "identification_attempted = true AND identified_student = ''")
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"title": true, "status": true, "created_at": true, "confidence": true}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", videoColumns, base, sortBy, order, size, offset)
	var videos []models.VideoRecord
	if err := r.db.SelectContext(ctx, &videos, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list videos: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}
	return videos, total, nil
}

// FindByID fetches a video record by ID.
func (r *VideoRepository) FindByID(ctx context.Context, id string) (*models.VideoRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM videos WHERE id = $1", videoColumns)
	var video models.VideoRecord
	if err := r.db.GetContext(ctx, &video, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find video: %w", err)
	}
	return &video, nil
}

// Create inserts a new video record.
func (r *VideoRepository) Create(ctx context.Context, video *models.VideoRecord) error {
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}
	video.UpdatedAt = now
	const query = `INSERT INTO videos (id, team_id, title, storage_path, status, transcript, identified_student,
        llm_identified_student, confidence, manually_selected, identification_attempted, duplicate_student,
        uploaded_by, created_at, updated_at)
        VALUES (:id, :team_id, :title, :storage_path, :status, :transcript, :identified_student,
        :llm_identified_student, :confidence, :manually_selected, :identification_attempted, :duplicate_student,
        :uploaded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, video); err != nil {
		return fmt.Errorf("create video: %w", err)
	}
	return nil
}

// Update modifies metadata fields of a video record.
func (r *VideoRepository) Update(ctx context.Context, video *models.VideoRecord) error {
	video.UpdatedAt = time.Now().UTC()
	const query = `UPDATE videos SET title = :title, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, video); err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	return nil
}

// SetTranscript stores the transcript and advances the pipeline status.
func (r *VideoRepository) SetTranscript(ctx context.Context, id, transcript string, status models.VideoStatus) error {
	const query = `UPDATE videos SET transcript = $2, status = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, transcript, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set transcript: %w", err)
	}
	return nil
}

// SetStatus advances the pipeline status only.
func (r *VideoRepository) SetStatus(ctx context.Context, id string, status models.VideoStatus) error {
	const query = `UPDATE videos SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// SaveIdentification persists the outcome of an automatic identification
// run. The sticky identification_attempted flag is written atomically with
// the result so the run never repeats.
func (r *VideoRepository) SaveIdentification(ctx context.Context, video *models.VideoRecord) error {
	video.UpdatedAt = time.Now().UTC()
	const query = `UPDATE videos SET identified_student = :identified_student,
        llm_identified_student = :llm_identified_student, confidence = :confidence,
        manually_selected = :manually_selected, identification_attempted = :identification_attempted,
        duplicate_student = :duplicate_student, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, video); err != nil {
		return fmt.Errorf("save identification: %w", err)
	}
	return nil
}

// Delete removes a video record.
func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM videos WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	return nil
}

// CountUnattributed counts videos where identification was attempted but no
// student was accepted.
func (r *VideoRepository) CountUnattributed(ctx context.Context, teamID string) (int, error) {
	const query = `SELECT COUNT(*) FROM videos WHERE team_id = $1 AND identification_attempted = true AND identified_student = ''`
	var total int
	if err := r.db.GetContext(ctx, &total, query, teamID); err != nil {
		return 0, fmt.Errorf("count unattributed videos: %w", err)
	}
	return total, nil
}
