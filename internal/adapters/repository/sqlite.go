package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/pkg/metrics"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		interest TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS participation (
		user_id INTEGER NOT NULL,
		event_id INTEGER NOT NULL,
		PRIMARY KEY (user_id, event_id)
	);`,
	`CREATE TABLE IF NOT EXISTS interest_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		interest TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS interest_history_user_idx ON interest_history(user_id);`,
}

// SQLiteStore implements Store on top of SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and applies the schema. Pass
// ":memory:" for a throwaway database.
func Open(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// A single connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the schema. It is idempotent.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration statement: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
}

// Events returns all events ordered by id.
func (s *SQLiteStore) Events(ctx context.Context) ([]model.Event, error) {
	defer observeQuery(time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, date FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Event returns a single event.
func (s *SQLiteStore) Event(ctx context.Context, id int64) (model.Event, error) {
	defer observeQuery(time.Now())
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, date FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return e, err
}

// AddEvent inserts an event with id max(id)+1. An empty description falls
// back to the name.
func (s *SQLiteStore) AddEvent(ctx context.Context, name, description string, date time.Time) (model.Event, error) {
	defer observeUpdate(time.Now())
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Event{}, fmt.Errorf("add event: empty name: %w", ErrInvalidRow)
	}
	if strings.TrimSpace(description) == "" {
		description = name
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Event{}, fmt.Errorf("add event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM events`).Scan(&next); err != nil {
		return model.Event{}, fmt.Errorf("add event: next id: %w", err)
	}
	e := model.Event{ID: next, Name: name, Description: description, Date: date}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, name, description, date) VALUES (?, ?, ?, ?)`,
		e.ID, e.Name, e.Description, formatDate(e.Date)); err != nil {
		return model.Event{}, fmt.Errorf("add event: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Event{}, fmt.Errorf("add event: commit: %w", err)
	}
	return e, nil
}

// PutEvent inserts or replaces an event.
func (s *SQLiteStore) PutEvent(ctx context.Context, e model.Event) error {
	defer observeUpdate(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO events (id, name, description, date) VALUES (?, ?, ?, ?)`,
		e.ID, e.Name, e.Description, formatDate(e.Date))
	if err != nil {
		return fmt.Errorf("put event %d: %w", e.ID, err)
	}
	return nil
}

// Users returns all users ordered by id.
func (s *SQLiteStore) Users(ctx context.Context) ([]model.User, error) {
	defer observeQuery(time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, interest FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Interest); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// User returns a single user.
func (s *SQLiteStore) User(ctx context.Context, id int64) (model.User, error) {
	defer observeQuery(time.Now())
	var u model.User
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, interest FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Interest)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("user %d: %w", id, err)
	}
	return u, nil
}

// PutUser inserts or replaces a user.
func (s *SQLiteStore) PutUser(ctx context.Context, u model.User) error {
	defer observeUpdate(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, name, email, interest) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Interest)
	if err != nil {
		return fmt.Errorf("put user %d: %w", u.ID, err)
	}
	return nil
}

// Participation returns the event ids a user took part in.
func (s *SQLiteStore) Participation(ctx context.Context, userID int64) ([]int64, error) {
	defer observeQuery(time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id FROM participation WHERE user_id = ? ORDER BY event_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query participation: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AddParticipation records event ids for a user. Repeats are ignored.
func (s *SQLiteStore) AddParticipation(ctx context.Context, userID int64, eventIDs ...int64) error {
	defer observeUpdate(time.Now())
	for _, id := range eventIDs {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO participation (user_id, event_id) VALUES (?, ?)`, userID, id); err != nil {
			return fmt.Errorf("add participation %d/%d: %w", userID, id, err)
		}
	}
	return nil
}

// History returns a user's previous interests in insertion order.
func (s *SQLiteStore) History(ctx context.Context, userID int64) ([]string, error) {
	defer observeQuery(time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT interest FROM interest_history WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, label)
	}
	return out, rows.Err()
}

// AddInterest appends a label to a user's history.
func (s *SQLiteStore) AddInterest(ctx context.Context, userID int64, interest string) error {
	defer observeUpdate(time.Now())
	interest = strings.TrimSpace(interest)
	if interest == "" {
		return fmt.Errorf("add interest for %d: %w", userID, ErrInvalidRow)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO interest_history (user_id, interest) VALUES (?, ?)`, userID, interest); err != nil {
		return fmt.Errorf("add interest for %d: %w", userID, err)
	}
	return nil
}

// InterestLabels returns the distinct current and historical labels.
func (s *SQLiteStore) InterestLabels(ctx context.Context) ([]string, error) {
	defer observeQuery(time.Now())
	rows, err := s.db.QueryContext(ctx, `
		SELECT interest FROM users WHERE interest <> ''
		UNION
		SELECT interest FROM interest_history
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("query interest labels: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan interest label: %w", err)
		}
		out = append(out, label)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.Event, error) {
	var (
		e    model.Event
		date string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, err
		}
		return model.Event{}, fmt.Errorf("scan event: %w", err)
	}
	if date != "" {
		t, err := time.Parse(model.DateLayout, date)
		if err != nil {
			return model.Event{}, fmt.Errorf("event %d date %q: %w", e.ID, date, ErrInvalidRow)
		}
		e.Date = t
	}
	return e, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(model.DateLayout)
}
