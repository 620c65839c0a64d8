package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edunote/edunote/internal/apperr"
	"github.com/edunote/edunote/internal/models"
	"github.com/edunote/edunote/internal/review"
)

// CreateNote inserts a new note with its seeded schedule.
func (db *DB) CreateNote(n models.Note) error {
	schedule, err := marshalTimes(n.Schedule.Entries)
	if err != nil {
		return err
	}
	reviewed, err := marshalTimes(n.Reviewed)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(`
		INSERT INTO notes (id, owner_id, folder_id, title, content, schedule, reviewed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.OwnerID, n.FolderID, n.Title, n.Content, schedule, reviewed, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: insert note: %w", err)
	}
	return nil
}

// GetNote returns the note with the given id, scoped to its owner.
func (db *DB) GetNote(ownerID, id string) (*models.Note, error) {
	row := db.conn.QueryRow(`
		SELECT id, owner_id, folder_id, title, content, schedule, reviewed, created_at, updated_at
		FROM notes WHERE id = ? AND owner_id = ?
	`, id, ownerID)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// ListNotes returns the owner's notes, newest first, with an optional folder
// filter. limit <= 0 disables pagination. The second return value is the
// total count before pagination.
func (db *DB) ListNotes(ownerID, folderID string, limit, offset int) ([]models.Note, int, error) {
	where := `WHERE owner_id = ?`
	args := []any{ownerID}
	if folderID != "" {
		where += ` AND folder_id = ?`
		args = append(args, folderID)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count notes: %w", err)
	}

	query := `
		SELECT id, owner_id, folder_id, title, content, schedule, reviewed, created_at, updated_at
		FROM notes ` + where + ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// UpdateNote writes new title, content, and folder assignment. The schedule
// and review history are deliberately not part of this statement; only
// AdvanceSchedule touches them.
func (db *DB) UpdateNote(n models.Note) error {
	res, err := db.conn.Exec(`
		UPDATE notes SET title = ?, content = ?, folder_id = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, n.Title, n.Content, n.FolderID, n.UpdatedAt, n.ID, n.OwnerID)
	if err != nil {
		return fmt.Errorf("store: update note: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteNote removes a note; its schedule is discarded with it.
func (db *DB) DeleteNote(ownerID, id string) error {
	res, err := db.conn.Exec(`DELETE FROM notes WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// AdvanceSchedule commits one consumed review checkpoint: it replaces the
// schedule and review history in a single conditional UPDATE that is keyed
// on the consumed checkpoint still being at the front of the stored
// schedule. If a concurrent writer advanced the note first, zero rows match
// and ErrConflict is returned so the caller can re-read and retry.
func (db *DB) AdvanceSchedule(ownerID, id string, consumed time.Time, next []time.Time, reviewed []time.Time, now time.Time) error {
	schedule, err := marshalTimes(next)
	if err != nil {
		return err
	}
	reviewedJSON, err := marshalTimes(reviewed)
	if err != nil {
		return err
	}

	res, err := db.conn.Exec(`
		UPDATE notes SET schedule = ?, reviewed = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND json_extract(schedule, '$[0]') = ?
	`, schedule, reviewedJSON, now, id, ownerID, consumed.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: advance schedule: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperr.ErrConflict
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*models.Note, error) {
	var n models.Note
	var schedule, reviewed string
	err := row.Scan(&n.ID, &n.OwnerID, &n.FolderID, &n.Title, &n.Content,
		&schedule, &reviewed, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan note: %w", err)
	}
	entries, err := unmarshalTimes(schedule)
	if err != nil {
		return nil, err
	}
	history, err := unmarshalTimes(reviewed)
	if err != nil {
		return nil, err
	}
	n.Schedule = review.Schedule{Entries: entries}
	n.Reviewed = history
	return &n, nil
}
