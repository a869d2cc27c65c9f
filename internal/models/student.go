package models

import (
	"strings"
	"time"
)

// Student is a roster entry: the candidate set for transcript identification.
// Nickname is optional; an empty string means the student has none.
type Student struct {
	ID          string    `db:"id" json:"id"`
	TeamID      string    `db:"team_id" json:"team_id"`
	Name        string    `db:"name" json:"name"`
	Email       string    `db:"email" json:"email"`
	ParentEmail string    `db:"parent_email" json:"parent_email,omitempty"`
	Nickname    string    `db:"nickname" json:"nickname,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	TeamID    string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// LastName returns the final space-separated part of the student's name,
// or an empty string when the name has fewer than two parts.
func (s Student) LastName() string {
	parts := strings.Fields(s.Name)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}
