package api

import (
	"time"

	"github.com/edunote/edunote/internal/llm"
	"github.com/edunote/edunote/internal/models"
	"github.com/edunote/edunote/internal/noteservice"
	"github.com/edunote/edunote/internal/review"
)

// ChatRequest is the request body for chat and summarize calls.
type ChatRequest struct {
	Messages []llm.Message `json:"messages" validate:"required"`
}

// ChatResponse carries the assistant's reply.
type ChatResponse struct {
	Reply string `json:"reply" validate:"required"`
}

// SummarizeResponse carries the conversation summary.
type SummarizeResponse struct {
	Summary string `json:"summary" validate:"required"`
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title    string `json:"title" example:"State management" validate:"required"`
	Content  string `json:"content" example:"Summary of the conversation..." validate:"required"`
	FolderID string `json:"folder_id,omitempty"`
}

// UpdateNoteRequest is the request body for editing a note.
// The review schedule cannot be edited through this endpoint.
type UpdateNoteRequest struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	FolderID string `json:"folder_id,omitempty"`
}

// CreateFolderRequest is the request body for creating or renaming a folder.
type CreateFolderRequest struct {
	Name string `json:"name" example:"biology" validate:"required"`
}

// NoteDetail is the full note representation.
type NoteDetail struct {
	ID        string      `json:"id"`
	FolderID  string      `json:"folder_id,omitempty"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Checksum  string      `json:"checksum"`
	Schedule  []time.Time `json:"schedule"`
	Reviewed  []time.Time `json:"reviewed"`
	NextDue   *time.Time  `json:"next_due,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NoteListItem is a lightweight item in list responses.
type NoteListItem struct {
	ID        string     `json:"id"`
	FolderID  string     `json:"folder_id,omitempty"`
	Title     string     `json:"title"`
	NextDue   *time.Time `json:"next_due,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// ReviewResponse is the outcome of a review completion attempt.
type ReviewResponse struct {
	Status     string      `json:"status" example:"advanced" validate:"required"`
	ReviewedAt *time.Time  `json:"reviewed_at,omitempty"`
	Schedule   []time.Time `json:"schedule,omitempty"`
	NextDue    *time.Time  `json:"next_due,omitempty"`
}

func toNoteDetail(n *models.Note) NoteDetail {
	return NoteDetail{
		ID:        n.ID,
		FolderID:  n.FolderID,
		Title:     n.Title,
		Content:   n.Content,
		Checksum:  noteservice.Checksum(n.Content),
		Schedule:  nonNilTimes(n.Schedule.Entries),
		Reviewed:  nonNilTimes(n.Reviewed),
		NextDue:   nextDue(n.Schedule),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func toNoteListItems(notes []models.Note) []NoteListItem {
	items := make([]NoteListItem, len(notes))
	for i, n := range notes {
		items[i] = NoteListItem{
			ID:        n.ID,
			FolderID:  n.FolderID,
			Title:     n.Title,
			NextDue:   nextDue(n.Schedule),
			CreatedAt: n.CreatedAt,
		}
	}
	return items
}

func nextDue(s review.Schedule) *time.Time {
	if due, ok := s.NextDue(); ok {
		return &due
	}
	return nil
}

func nonNilTimes(ts []time.Time) []time.Time {
	if ts == nil {
		return []time.Time{}
	}
	return ts
}
