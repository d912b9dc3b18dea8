package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"nexus-go/internal/nexus"
)

// SQLiteStore implements nexus.ContactStore on SQLite: the single-file
// backend with the same contract as Postgres, suited to local and demo
// deployments.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ nexus.ContactStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens a SQLite database at path (":memory:" works).
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenSQLiteConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenSQLiteConnection opens and configures a SQLite connection with the
// PRAGMAs the store relies on. Exported for tools and tests.
func OpenSQLiteConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite defaults foreign keys to OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

func (s *SQLiteStore) InsertContact(ctx context.Context, c *nexus.Contact) error {
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	var locator, hash sql.NullString
	var captured sql.NullTime
	if c.Photo != nil {
		locator = sql.NullString{String: c.Photo.Locator, Valid: true}
		hash = sql.NullString{String: c.Photo.ContentHash, Valid: true}
		captured = sql.NullTime{Time: c.Photo.CapturedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contacts (
			id, owner, name, position, company, email, phone, telegram,
			linkedin, github, location, goal, notes, tags, priority, source,
			created_at, photo_locator, photo_hash, photo_captured_at, face_indexed
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Owner, c.Name, c.Position, c.Company, c.Email, c.Phone,
		c.Telegram, c.LinkedIn, c.GitHub, c.Location, c.Goal, c.Notes,
		string(tags), string(c.Priority), c.Source, c.CreatedAt,
		locator, hash, captured, c.FaceIndexed,
	)
	if err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "inserting contact", err)
	}
	return nil
}

func (s *SQLiteStore) ListContacts(ctx context.Context, owner string) ([]*nexus.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE owner = ?
		ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "listing contacts", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (s *SQLiteStore) GetContact(ctx context.Context, owner, id string) (*nexus.Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE owner = ? AND id = ?`, owner, id)

	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "loading contact", err)
	}
	return c, nil
}

func (s *SQLiteStore) SearchContacts(ctx context.Context, owner, query string) ([]*nexus.Contact, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE owner = ?1 AND (
			name LIKE ?2 ESCAPE '\' OR company LIKE ?2 ESCAPE '\' OR
			position LIKE ?2 ESCAPE '\' OR email LIKE ?2 ESCAPE '\' OR
			phone LIKE ?2 ESCAPE '\' OR telegram LIKE ?2 ESCAPE '\' OR
			linkedin LIKE ?2 ESCAPE '\' OR github LIKE ?2 ESCAPE '\' OR
			location LIKE ?2 ESCAPE '\' OR goal LIKE ?2 ESCAPE '\' OR
			source LIKE ?2 ESCAPE '\' OR tags LIKE ?2 ESCAPE '\'
		)
		ORDER BY created_at DESC`, owner, pattern)
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "searching contacts", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (s *SQLiteStore) DeleteContact(ctx context.Context, owner, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return false, nexus.E(nexus.ErrStorageUnavailable, "deleting contact", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) AttachPhoto(ctx context.Context, owner, id string, ref nexus.PhotoRef) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contacts
		SET photo_locator = ?, photo_hash = ?, photo_captured_at = ?
		WHERE owner = ? AND id = ?`,
		ref.Locator, ref.ContentHash, ref.CapturedAt, owner, id)
	if err != nil {
		return false, nexus.E(nexus.ErrStorageUnavailable, "attaching photo", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Stats(ctx context.Context, owner string, now time.Time) (*nexus.Stats, error) {
	now = now.UTC()
	st := &nexus.Stats{PerPriority: make(map[nexus.Priority]int)}

	var low, medium, high int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE priority = 'low'),
			COUNT(*) FILTER (WHERE priority = 'medium'),
			COUNT(*) FILTER (WHERE priority = 'high'),
			COUNT(*) FILTER (WHERE email <> ''),
			COUNT(*) FILTER (WHERE linkedin <> ''),
			COUNT(*) FILTER (WHERE github <> ''),
			COUNT(*) FILTER (WHERE created_at >= ?2),
			COUNT(*) FILTER (WHERE created_at >= ?3)
		FROM contacts
		WHERE owner = ?1`,
		owner, now.AddDate(0, 0, -7), now.AddDate(0, 0, -30),
	).Scan(&st.Total, &low, &medium, &high, &st.WithEmail, &st.WithLinkedIn,
		&st.WithGitHub, &st.CreatedLast7d, &st.CreatedLast30d)
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "computing stats", err)
	}

	st.PerPriority[nexus.PriorityLow] = low
	st.PerPriority[nexus.PriorityMedium] = medium
	st.PerPriority[nexus.PriorityHigh] = high
	return st, nil
}

func (s *SQLiteStore) InsertBuilderApplication(ctx context.Context, a *nexus.BuilderApplication) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builder_applications (
			id, owner, name, email, telegram, project, role, experience,
			motivation, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Owner, a.Name, a.Email, a.Telegram, a.Project, a.Role,
		a.Experience, a.Motivation, a.CreatedAt)
	if err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "inserting application", err)
	}
	return nil
}

func (s *SQLiteStore) FindBuilderApplicationByOwner(ctx context.Context, owner string) (*nexus.BuilderApplication, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM builder_applications
		WHERE owner = ?
		ORDER BY created_at ASC
		LIMIT 1`, owner)

	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "loading application", err)
	}
	return a, nil
}

func (s *SQLiteStore) GetBuilderApplication(ctx context.Context, owner, id string) (*nexus.BuilderApplication, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM builder_applications
		WHERE owner = ? AND id = ?`, owner, id)

	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "loading application", err)
	}
	return a, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "pinging database", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string { return s.path }

// DB exposes the underlying connection for the migration tooling.
func (s *SQLiteStore) DB() *sql.DB { return s.db }
