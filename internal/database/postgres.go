package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"nexus-go/internal/nexus"
)

// PostgresStore implements nexus.ContactStore on PostgreSQL.
// The pool is bounded; when it is exhausted, connection acquisition times out
// and the failure surfaces as a storage-unavailable error like any other
// connectivity problem.
type PostgresStore struct {
	db *sql.DB
}

var _ nexus.ContactStore = (*PostgresStore)(nil)

// PostgresOptions bound the connection pool.
type PostgresOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	ConnTimeout  time.Duration
}

// NewPostgresStore opens a connection pool against the given DSN and
// verifies connectivity with a ping.
func NewPostgresStore(dsn string, opts PostgresOptions) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	timeout := opts.ConnTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nexus.E(nexus.ErrStorageUnavailable, "pinging database", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection pool. Used by tests
// and the migration tooling.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const contactColumns = `
	id, owner, name, position, company, email, phone, telegram, linkedin,
	github, location, goal, notes, tags, priority, source, created_at,
	photo_locator, photo_hash, photo_captured_at, face_indexed`

func (s *PostgresStore) InsertContact(ctx context.Context, c *nexus.Contact) error {
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
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
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

func (s *PostgresStore) ListContacts(ctx context.Context, owner string) ([]*nexus.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE owner = $1
		ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "listing contacts", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (s *PostgresStore) GetContact(ctx context.Context, owner, id string) (*nexus.Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE owner = $1 AND id = $2`, owner, id)

	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "loading contact", err)
	}
	return c, nil
}

func (s *PostgresStore) SearchContacts(ctx context.Context, owner, query string) ([]*nexus.Contact, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE owner = $1 AND (
			name ILIKE $2 ESCAPE '\' OR company ILIKE $2 ESCAPE '\' OR
			position ILIKE $2 ESCAPE '\' OR email ILIKE $2 ESCAPE '\' OR
			phone ILIKE $2 ESCAPE '\' OR telegram ILIKE $2 ESCAPE '\' OR
			linkedin ILIKE $2 ESCAPE '\' OR github ILIKE $2 ESCAPE '\' OR
			location ILIKE $2 ESCAPE '\' OR goal ILIKE $2 ESCAPE '\' OR
			source ILIKE $2 ESCAPE '\' OR tags ILIKE $2 ESCAPE '\'
		)
		ORDER BY created_at DESC`, owner, pattern)
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "searching contacts", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (s *PostgresStore) DeleteContact(ctx context.Context, owner, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE owner = $1 AND id = $2`, owner, id)
	if err != nil {
		return false, nexus.E(nexus.ErrStorageUnavailable, "deleting contact", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) AttachPhoto(ctx context.Context, owner, id string, ref nexus.PhotoRef) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contacts
		SET photo_locator = $3, photo_hash = $4, photo_captured_at = $5
		WHERE owner = $1 AND id = $2`,
		owner, id, ref.Locator, ref.ContentHash, ref.CapturedAt)
	if err != nil {
		return false, nexus.E(nexus.ErrStorageUnavailable, "attaching photo", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) Stats(ctx context.Context, owner string, now time.Time) (*nexus.Stats, error) {
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
			COUNT(*) FILTER (WHERE created_at >= $2),
			COUNT(*) FILTER (WHERE created_at >= $3)
		FROM contacts
		WHERE owner = $1`,
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

func (s *PostgresStore) InsertBuilderApplication(ctx context.Context, a *nexus.BuilderApplication) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builder_applications (
			id, owner, name, email, telegram, project, role, experience,
			motivation, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.Owner, a.Name, a.Email, a.Telegram, a.Project, a.Role,
		a.Experience, a.Motivation, a.CreatedAt)
	if err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "inserting application", err)
	}
	return nil
}

const applicationColumns = `
	id, owner, name, email, telegram, project, role, experience, motivation, created_at`

func (s *PostgresStore) FindBuilderApplicationByOwner(ctx context.Context, owner string) (*nexus.BuilderApplication, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM builder_applications
		WHERE owner = $1
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

func (s *PostgresStore) GetBuilderApplication(ctx context.Context, owner, id string) (*nexus.BuilderApplication, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM builder_applications
		WHERE owner = $1 AND id = $2`, owner, id)

	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "loading application", err)
	}
	return a, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "pinging database", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool for the migration tooling.
func (s *PostgresStore) DB() *sql.DB { return s.db }

// escapeLike escapes LIKE metacharacters so user queries match literally,
// mirroring the memory backend's plain substring semantics.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanContact(row scanner) (*nexus.Contact, error) {
	var c nexus.Contact
	var tags string
	var locator, hash sql.NullString
	var captured sql.NullTime
	var priority string

	err := row.Scan(&c.ID, &c.Owner, &c.Name, &c.Position, &c.Company,
		&c.Email, &c.Phone, &c.Telegram, &c.LinkedIn, &c.GitHub, &c.Location,
		&c.Goal, &c.Notes, &tags, &priority, &c.Source, &c.CreatedAt,
		&locator, &hash, &captured, &c.FaceIndexed)
	if err != nil {
		return nil, err
	}

	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
	}
	c.Priority = nexus.Priority(priority)
	c.CreatedAt = c.CreatedAt.UTC()
	if locator.Valid && locator.String != "" {
		c.Photo = &nexus.PhotoRef{
			Locator:     locator.String,
			ContentHash: hash.String,
			CapturedAt:  captured.Time.UTC(),
		}
	}
	return &c, nil
}

func scanContacts(rows *sql.Rows) ([]*nexus.Contact, error) {
	var out []*nexus.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "iterating contacts", err)
	}
	return out, nil
}

func scanApplication(row scanner) (*nexus.BuilderApplication, error) {
	var a nexus.BuilderApplication
	err := row.Scan(&a.ID, &a.Owner, &a.Name, &a.Email, &a.Telegram,
		&a.Project, &a.Role, &a.Experience, &a.Motivation, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
