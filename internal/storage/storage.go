// Package storage defines the local chat history archive.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// TurnRecord is one archived chat turn. Body holds the full turn as JSON so
// the archive survives turn-shape changes; the extracted columns exist for
// listing and search.
type TurnRecord struct {
	ThreadID  string
	Seq       int
	IsUser    bool
	Text      string
	Failed    bool
	Body      json.RawMessage
	CreatedAt time.Time
}

// ThreadSummary describes one archived thread for listing.
type ThreadSummary struct {
	ThreadID  string
	Turns     int
	FirstText string
	UpdatedAt time.Time
}

// ListOptions bounds a thread listing.
type ListOptions struct {
	Limit  int
	Offset int
}

// HistoryStore persists chat turns across sessions.
type HistoryStore interface {
	// SaveTurn inserts or replaces the turn at (ThreadID, Seq). Streamed
	// turns are written once more when they finalize, so replace semantics
	// are required.
	SaveTurn(ctx context.Context, rec *TurnRecord) error

	// GetThread returns a thread's turns in sequence order.
	GetThread(ctx context.Context, threadID string) ([]*TurnRecord, error)

	// ListThreads returns archived threads, most recently updated first.
	ListThreads(ctx context.Context, opts ListOptions) ([]*ThreadSummary, error)

	// DeleteThread removes a thread and its turns.
	DeleteThread(ctx context.Context, threadID string) error

	Close() error
}
