// Package noteservice coordinates the store, the review core, and event
// notifications behind the API and MCP surfaces.
package noteservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edunote/edunote/internal/apperr"
	"github.com/edunote/edunote/internal/models"
	"github.com/edunote/edunote/internal/review"
	"github.com/edunote/edunote/internal/store"
)

// maxReviewRetries bounds the read-modify-write loop in CompleteReview when
// concurrent completions race on the same note.
const maxReviewRetries = 3

// Events receives notifications after successful mutations. Implementations
// must not block.
type Events interface {
	NoteEvent(kind, id string)
	ReviewCompleted(id string, reviewedAt time.Time)
}

// Service owns note, folder, and review operations.
type Service struct {
	db      *store.DB
	offsets review.Offsets
	now     func() time.Time
	events  Events
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source. Tests use this to pin "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEvents attaches an event sink.
func WithEvents(ev Events) Option {
	return func(s *Service) { s.events = ev }
}

// NewService creates a note service with the given review offsets.
func NewService(db *store.DB, offsets review.Offsets, opts ...Option) *Service {
	s := &Service{
		db:      db,
		offsets: offsets,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checksum returns the hex SHA-256 of note content, used for If-Match
// optimistic concurrency on edits.
func Checksum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// CreateNote persists a new note with a schedule seeded from its creation
// time and the configured offsets.
func (s *Service) CreateNote(_ context.Context, ownerID, folderID, title, content string) (*models.Note, error) {
	if folderID != "" {
		if _, err := s.db.GetFolder(ownerID, folderID); err != nil {
			return nil, fmt.Errorf("folder %s: %w", folderID, err)
		}
	}

	created := s.now().UTC()
	note := models.Note{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		FolderID:  folderID,
		Title:     title,
		Content:   content,
		Schedule:  review.Seed(created, s.offsets),
		Reviewed:  []time.Time{},
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := s.db.CreateNote(note); err != nil {
		return nil, err
	}
	s.notify("created", note.ID)
	return &note, nil
}

// GetNote returns one note scoped to its owner.
func (s *Service) GetNote(_ context.Context, ownerID, id string) (*models.Note, error) {
	return s.db.GetNote(ownerID, id)
}

// ListNotes returns the owner's notes with optional folder filter and
// pagination.
func (s *Service) ListNotes(_ context.Context, ownerID, folderID string, limit, offset int) ([]models.Note, int, error) {
	return s.db.ListNotes(ownerID, folderID, limit, offset)
}

// UpdateNote edits title, content, and folder assignment with optional
// If-Match optimistic concurrency against the current content checksum.
// The review schedule is never touched by an edit.
func (s *Service) UpdateNote(_ context.Context, ownerID, id, title, content, folderID, ifMatch string) (*models.Note, error) {
	existing, err := s.db.GetNote(ownerID, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != Checksum(existing.Content) {
		return nil, apperr.ErrConflict
	}
	if folderID != "" && folderID != existing.FolderID {
		if _, err := s.db.GetFolder(ownerID, folderID); err != nil {
			return nil, fmt.Errorf("folder %s: %w", folderID, err)
		}
	}

	existing.Title = title
	existing.Content = content
	existing.FolderID = folderID
	existing.UpdatedAt = s.now().UTC()
	if err := s.db.UpdateNote(*existing); err != nil {
		return nil, err
	}
	s.notify("updated", id)
	return existing, nil
}

// DeleteNote removes a note; its schedule is discarded with it.
func (s *Service) DeleteNote(_ context.Context, ownerID, id string) error {
	if err := s.db.DeleteNote(ownerID, id); err != nil {
		return err
	}
	s.notify("deleted", id)
	return nil
}

// DueNotes returns the owner's notes whose earliest pending checkpoint has
// arrived. The query is a pure filter over stored schedules: it never
// mutates anything, so polling it is idempotent.
func (s *Service) DueNotes(_ context.Context, ownerID string) ([]models.Note, error) {
	notes, _, err := s.db.ListNotes(ownerID, "", 0, 0)
	if err != nil {
		return nil, err
	}
	return review.ListDue(notes, s.now()), nil
}

// ReviewOutcome is the result of a CompleteReview call.
type ReviewOutcome struct {
	Status     review.Status
	ReviewedAt time.Time
	Schedule   review.Schedule
}

// CompleteReview consumes the earliest due checkpoint of a note.
//
// The read-modify-write cycle is retried a bounded number of times when the
// conditional commit loses a race with a concurrent completion; each retry
// re-reads the already-advanced schedule so no checkpoint is ever consumed
// twice or lost. A rejected attempt (not yet due, already exhausted) leaves
// the note untouched.
func (s *Service) CompleteReview(_ context.Context, ownerID, id string) (*ReviewOutcome, error) {
	for attempt := 0; attempt < maxReviewRetries; attempt++ {
		note, err := s.db.GetNote(ownerID, id)
		if err != nil {
			return nil, err
		}

		res := note.Schedule.Complete(s.now())
		if res.Status != review.StatusAdvanced {
			return &ReviewOutcome{Status: res.Status, Schedule: res.Schedule}, nil
		}

		reviewed := append(note.Reviewed, res.ReviewedAt)
		err = s.db.AdvanceSchedule(ownerID, id, res.ReviewedAt, res.Schedule.Entries, reviewed, s.now().UTC())
		if errors.Is(err, apperr.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if s.events != nil {
			s.events.ReviewCompleted(id, res.ReviewedAt)
		}
		return &ReviewOutcome{Status: review.StatusAdvanced, ReviewedAt: res.ReviewedAt, Schedule: res.Schedule}, nil
	}
	return nil, apperr.ErrConflict
}

// CreateFolder creates a folder with a per-owner unique name.
func (s *Service) CreateFolder(_ context.Context, ownerID, name string) (*models.Folder, error) {
	f := models.Folder{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.CreateFolder(f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFolders returns the owner's folders.
func (s *Service) ListFolders(_ context.Context, ownerID string) ([]models.Folder, error) {
	return s.db.ListFolders(ownerID)
}

// RenameFolder changes a folder's name.
func (s *Service) RenameFolder(_ context.Context, ownerID, id, name string) error {
	return s.db.RenameFolder(ownerID, id, name)
}

// DeleteFolder removes a folder, unfiling (not deleting) its notes.
func (s *Service) DeleteFolder(_ context.Context, ownerID, id string) error {
	return s.db.DeleteFolder(ownerID, id)
}

func (s *Service) notify(kind, id string) {
	if s.events != nil {
		s.events.NoteEvent(kind, id)
	}
}
