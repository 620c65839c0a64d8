package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/edunote/edunote/internal/apperr"
	"github.com/edunote/edunote/internal/models"
)

// CreateFolder inserts a folder. Folder names are unique per owner.
func (db *DB) CreateFolder(f models.Folder) error {
	_, err := db.conn.Exec(`
		INSERT INTO folders (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)
	`, f.ID, f.OwnerID, f.Name, f.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: insert folder: %w", err)
	}
	return nil
}

// GetFolder returns one folder scoped to its owner.
func (db *DB) GetFolder(ownerID, id string) (*models.Folder, error) {
	var f models.Folder
	err := db.conn.QueryRow(`
		SELECT id, owner_id, name, created_at FROM folders WHERE id = ? AND owner_id = ?
	`, id, ownerID).Scan(&f.ID, &f.OwnerID, &f.Name, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: get folder: %w", err)
	}
	return &f, nil
}

// ListFolders returns all folders for an owner, by name.
func (db *DB) ListFolders(ownerID string) ([]models.Folder, error) {
	rows, err := db.conn.Query(`
		SELECT id, owner_id, name, created_at FROM folders WHERE owner_id = ? ORDER BY name
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list folders: %w", err)
	}
	defer rows.Close()

	var out []models.Folder
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Name, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan folder: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RenameFolder changes a folder's name.
func (db *DB) RenameFolder(ownerID, id, name string) error {
	res, err := db.conn.Exec(`
		UPDATE folders SET name = ? WHERE id = ? AND owner_id = ?
	`, name, id, ownerID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: rename folder: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteFolder removes a folder and unfiles its notes in one transaction.
// The notes themselves (and their schedules) survive.
func (db *DB) DeleteFolder(ownerID, id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`DELETE FROM folders WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("store: delete folder: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperr.ErrNotFound
	}

	if _, err := tx.Exec(`UPDATE notes SET folder_id = '' WHERE folder_id = ? AND owner_id = ?`, id, ownerID); err != nil {
		return fmt.Errorf("store: unfile notes: %w", err)
	}

	return tx.Commit()
}
