package models

import "time"

// VideoStatus tracks a clip through the upload/transcription pipeline.
type VideoStatus string

const (
	VideoStatusUploaded     VideoStatus = "uploaded"
	VideoStatusTranscribing VideoStatus = "transcribing"
	VideoStatusTranscribed  VideoStatus = "transcribed"
	VideoStatusFailed       VideoStatus = "failed"
)

// VideoRecord holds an uploaded clip plus its identification state.
// LLMIdentifiedStudent keeps the last automatic guess and is never
// overwritten by a manual assignment, preserving the audit trail.
type VideoRecord struct {
	ID                      string      `db:"id" json:"id"`
	TeamID                  string      `db:"team_id" json:"team_id"`
	Title                   string      `db:"title" json:"title"`
	StoragePath             string      `db:"storage_path" json:"-"`
	Status                  VideoStatus `db:"status" json:"status"`
	Transcript              *string     `db:"transcript" json:"transcript,omitempty"`
	IdentifiedStudent       string      `db:"identified_student" json:"identified_student"`
	LLMIdentifiedStudent    string      `db:"llm_identified_student" json:"llm_identified_student"`
	Confidence              float64     `db:"confidence" json:"confidence"`
	ManuallySelected        bool        `db:"manually_selected" json:"manually_selected"`
	IdentificationAttempted bool        `db:"identification_attempted" json:"identification_attempted"`
	DuplicateStudent        bool        `db:"duplicate_student" json:"duplicate_student"`
	UploadedBy              string      `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt               time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time   `db:"updated_at" json:"updated_at"`
}

// VideoFilter encapsulates search parameters for listing videos.
type VideoFilter struct {
	TeamID            string
	Status            string
	IdentifiedStudent string
	Unattributed      bool
	Search            string
	Page              int
	PageSize          int
	SortBy            string
	SortOrder         string
}
