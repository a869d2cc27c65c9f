package models

import "time"

// Team groups a coach with the roster of students they train.
type Team struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Season    string    `db:"season" json:"season"`
	CoachID   string    `db:"coach_id" json:"coach_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeamFilter encapsulates search parameters for listing teams.
type TeamFilter struct {
	CoachID   string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
