// Package models defines the domain types for edunote.
package models

import (
	"time"

	"github.com/edunote/edunote/internal/review"
)

// Note is a persisted study note. The schedule is seeded once at creation
// and is only ever mutated by completing a review; title and content edits
// leave it untouched.
type Note struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	FolderID  string          `json:"folder_id,omitempty"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Schedule  review.Schedule `json:"schedule"`
	Reviewed  []time.Time     `json:"reviewed"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ReviewSchedule satisfies review.Scheduled.
func (n Note) ReviewSchedule() review.Schedule { return n.Schedule }

// Folder groups notes for one owner. Names are unique per owner.
type Folder struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
