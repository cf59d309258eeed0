// Package repository persists events, users and their interaction history.
package repository

import (
	"context"
	"time"

	"github.com/okian/eventmatch/internal/domain/model"
)

// CorpusProvider supplies the current event snapshot.
type CorpusProvider interface {
	Events(ctx context.Context) ([]model.Event, error)
}

// HistoryProvider supplies users and their interest history. It is read-only
// from the point of view of ranking and prediction.
type HistoryProvider interface {
	Users(ctx context.Context) ([]model.User, error)
	User(ctx context.Context, id int64) (model.User, error)
	// History returns the user's previously recorded interest labels, oldest first.
	History(ctx context.Context, userID int64) ([]string, error)
	// Participation returns event ids the user already took part in.
	Participation(ctx context.Context, userID int64) ([]int64, error)
	// InterestLabels returns every current and historical label across all users.
	InterestLabels(ctx context.Context) ([]string, error)
}

// Store provides read/write access to the event catalogue and user data.
type Store interface {
	CorpusProvider
	HistoryProvider

	// Event returns a single event or ErrNotFound.
	Event(ctx context.Context, id int64) (model.Event, error)
	// AddEvent appends an event with the next free id.
	AddEvent(ctx context.Context, name, description string, date time.Time) (model.Event, error)
	// PutEvent inserts or replaces an event keeping its id.
	PutEvent(ctx context.Context, e model.Event) error
	// PutUser inserts or replaces a user.
	PutUser(ctx context.Context, u model.User) error
	// AddParticipation records that a user took part in events.
	AddParticipation(ctx context.Context, userID int64, eventIDs ...int64) error
	// AddInterest appends a label to a user's interest history.
	AddInterest(ctx context.Context, userID int64, interest string) error

	Close() error
}
