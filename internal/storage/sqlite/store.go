// Package sqlite is the SQLite implementation of the chat history archive.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/ragchat/internal/chat"
	"github.com/tjfontaine/ragchat/internal/storage"
)

// Store is a SQLite history archive. It also implements chat.Archiver so a
// session can write turns directly.
type Store struct {
	db *sql.DB
}

var (
	_ storage.HistoryStore = (*Store)(nil)
	_ chat.Archiver        = (*Store)(nil)
)

// timeLayout is the stored form of created_at. Fixed-width UTC so the text
// ordering the queries rely on matches chronological order, and so values
// coming back from aggregate expressions (which lose column affinity) can be
// parsed without guessing the driver's format.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// New opens (creating if needed) the history database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			thread_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			is_user INTEGER NOT NULL DEFAULT 0,
			text TEXT NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (thread_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_thread ON turns(thread_id)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// SaveTurn inserts or replaces the turn at (ThreadID, Seq).
func (s *Store) SaveTurn(ctx context.Context, rec *storage.TurnRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `INSERT INTO turns (thread_id, seq, is_user, text, failed, body, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(thread_id, seq) DO UPDATE SET
	              is_user=excluded.is_user,
	              text=excluded.text,
	              failed=excluded.failed,
	              body=excluded.body`

	_, err := s.db.ExecContext(ctx, query,
		rec.ThreadID, rec.Seq, rec.IsUser, rec.Text, rec.Failed,
		string(rec.Body), rec.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

// ArchiveTurn implements chat.Archiver by serializing the turn as JSON.
func (s *Store) ArchiveTurn(ctx context.Context, threadID string, seq int, turn *chat.Turn) error {
	body, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}
	return s.SaveTurn(ctx, &storage.TurnRecord{
		ThreadID:  threadID,
		Seq:       seq,
		IsUser:    turn.IsUser,
		Text:      turn.AnswerText(),
		Failed:    turn.Error != nil,
		Body:      body,
		CreatedAt: turn.Timestamp,
	})
}

// GetThread returns a thread's turns in sequence order.
func (s *Store) GetThread(ctx context.Context, threadID string) ([]*storage.TurnRecord, error) {
	query := `SELECT thread_id, seq, is_user, text, failed, body, created_at
	          FROM turns WHERE thread_id = ?
	          ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []*storage.TurnRecord
	for rows.Next() {
		var rec storage.TurnRecord
		var body, createdAt string
		if err := rows.Scan(&rec.ThreadID, &rec.Seq, &rec.IsUser, &rec.Text,
			&rec.Failed, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		rec.Body = json.RawMessage(body)
		if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		turns = append(turns, &rec)
	}
	return turns, rows.Err()
}

// ListThreads returns archived threads, most recently updated first.
func (s *Store) ListThreads(ctx context.Context, opts storage.ListOptions) ([]*storage.ThreadSummary, error) {
	query := `SELECT thread_id,
	                 COUNT(*) AS turns,
	                 MIN(CASE WHEN seq = 0 THEN text END) AS first_text,
	                 MAX(created_at) AS updated_at
	          FROM turns
	          GROUP BY thread_id
	          ORDER BY updated_at DESC
	          LIMIT ? OFFSET ?`

	limit := opts.Limit
	if limit == 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	var threads []*storage.ThreadSummary
	for rows.Next() {
		var sum storage.ThreadSummary
		var firstText, updatedAt sql.NullString
		if err := rows.Scan(&sum.ThreadID, &sum.Turns, &firstText, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		if firstText.Valid {
			sum.FirstText = firstText.String
		}
		if updatedAt.Valid {
			if sum.UpdatedAt, err = time.Parse(timeLayout, updatedAt.String); err != nil {
				return nil, fmt.Errorf("failed to parse updated_at: %w", err)
			}
		}
		threads = append(threads, &sum)
	}
	return threads, rows.Err()
}

// DeleteThread removes a thread and its turns.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE thread_id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("thread %s not found", threadID)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
