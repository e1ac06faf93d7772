package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusUploaded   = "UPLOADED"   // Binary stored remotely, metadata not registered
	StatusRegistered = "REGISTERED" // Metadata registered
	StatusFailed     = "FAILED"
)

// Record is one row of the upload ledger.
type Record struct {
	FileName      string
	AlbumSlug     string
	ImageID       string
	Status        string
	ErrorCount    int
	LastAttemptAt time.Time
}

// Store is an audit ledger of upload attempts. It never drives scheduling.
type Store struct {
	conn *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}
	// Writes come from a single goroutine.
	conn.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS upload_log (
		file_name TEXT NOT NULL,
		album_slug TEXT NOT NULL,
		image_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error_count INTEGER NOT NULL DEFAULT 0,
		last_attempt_at DATETIME,
		PRIMARY KEY (file_name, album_slug)
	);
	`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Lookup returns the ledger row for a file in an album, if any.
func (s *Store) Lookup(fileName, albumSlug string) (Record, bool, error) {
	row := s.conn.QueryRow(`
		SELECT file_name, album_slug, image_id, status, error_count, last_attempt_at
		FROM upload_log WHERE file_name = ? AND album_slug = ?`, fileName, albumSlug)

	var rec Record
	var last sql.NullTime
	if err := row.Scan(&rec.FileName, &rec.AlbumSlug, &rec.ImageID, &rec.Status, &rec.ErrorCount, &last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read upload log: %w", err)
	}
	rec.LastAttemptAt = last.Time
	return rec, true, nil
}

func (s *Store) MarkUploaded(fileName, albumSlug, imageID string) error {
	return s.setStatus(fileName, albumSlug, imageID, StatusUploaded)
}

func (s *Store) MarkRegistered(fileName, albumSlug, imageID string) error {
	return s.setStatus(fileName, albumSlug, imageID, StatusRegistered)
}

// setStatus keeps the failure count until the file is registered.
func (s *Store) setStatus(fileName, albumSlug, imageID, status string) error {
	_, err := s.conn.Exec(`
		INSERT INTO upload_log (file_name, album_slug, image_id, status, error_count, last_attempt_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(file_name, album_slug) DO UPDATE SET
			image_id = excluded.image_id,
			status = excluded.status,
			last_attempt_at = excluded.last_attempt_at,
			error_count = CASE WHEN excluded.status = ? THEN 0 ELSE upload_log.error_count END
	`, fileName, albumSlug, imageID, status, time.Now().UTC(), StatusRegistered)
	if err != nil {
		return fmt.Errorf("write upload log: %w", err)
	}
	return nil
}

// IncrementError bumps the failure count, creating a FAILED row when the file
// has no history yet. A previously uploaded image id is kept.
func (s *Store) IncrementError(fileName, albumSlug string) error {
	_, err := s.conn.Exec(`
		INSERT INTO upload_log (file_name, album_slug, status, error_count, last_attempt_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(file_name, album_slug) DO UPDATE SET
			error_count = upload_log.error_count + 1,
			last_attempt_at = excluded.last_attempt_at
	`, fileName, albumSlug, StatusFailed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment error count: %w", err)
	}
	return nil
}

// Reset removes history for one file in every album, or all history when
// fileName is empty.
func (s *Store) Reset(fileName string) error {
	var err error
	if fileName != "" {
		_, err = s.conn.Exec("DELETE FROM upload_log WHERE file_name = ?", fileName)
	} else {
		_, err = s.conn.Exec("DELETE FROM upload_log")
	}
	if err != nil {
		return fmt.Errorf("reset upload log: %w", err)
	}
	return nil
}
