// Package store persists chat messages keyed by a conversation pair.
//
// DESIGN: A conversation pair {sender, recipient} is unordered. There is no
// canonical orientation of the pair on disk, so every query and delete
// matches both (a,b) and (b,a). Timestamps are assigned here, at write
// time, from a strictly increasing in-process clock; they are both the
// sort key and the range key for pruning.
//
// The timestamp column is a string-encoded millisecond epoch. Range
// comparisons cast it back to a 64-bit integer so ordering never depends
// on digit count.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Message is one stored chat message. Messages never mutate after
// insertion; the store only supports append and range deletion.
type Message struct {
	Content     string
	Author      string
	SenderID    string
	RecipientID string
	Timestamp   int64 // milliseconds since epoch, assigned by the store
}

// Store is the persistence contract used by ingestion and the pipeline.
type Store interface {
	// Append assigns a timestamp and persists one message.
	Append(ctx context.Context, content, author, senderID, recipientID string) error

	// Conversation returns every message matching the pair in either
	// orientation, ascending by timestamp. No messages is an empty
	// slice, not an error.
	Conversation(ctx context.Context, a, b string) ([]Message, error)

	// Prune deletes the pair's messages with from <= timestamp <= to.
	// Both bounds are inclusive: the first and last message of a
	// summarized window are part of the summary and must go with it.
	// Messages of other pairs are never touched.
	Prune(ctx context.Context, a, b string, from, to int64) error

	// Close releases the underlying connection pool.
	Close() error
}

// dialect carries the per-driver SQL differences: placeholder style and
// the integer type used to cast the timestamp column for comparisons.
type dialect struct {
	name        string
	numbered    bool   // $1-style placeholders (postgres) instead of ?
	timestampTy string // BIGINT for postgres, INTEGER for sqlite
}

var (
	sqliteDialect   = dialect{name: "sqlite", timestampTy: "INTEGER"}
	postgresDialect = dialect{name: "postgres", numbered: true, timestampTy: "BIGINT"}
)

// bind rewrites ?-placeholders to $1..$n for numbered dialects.
func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	content      TEXT NOT NULL,
	author       TEXT NOT NULL,
	sender_id    TEXT NOT NULL,
	recipient_id TEXT NOT NULL,
	timestamp    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_pair_idx ON messages (sender_id, recipient_id);
`

// SQLStore implements Store on top of database/sql. Each operation
// acquires a connection from the pool, runs a single statement and
// releases it; there are no multi-statement transactions.
type SQLStore struct {
	db *sql.DB
	d  dialect

	now func() time.Time

	// last guards timestamp monotonicity: two appends in the same
	// millisecond still get distinct, increasing timestamps, so a
	// message appended after a window was fetched can never land
	// inside that window's prune range.
	mu   sync.Mutex
	last int64
}

var _ Store = (*SQLStore)(nil)

// Option configures an SQLStore.
type Option func(*SQLStore)

// WithClock overrides the wall clock used for timestamp assignment.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		s.now = now
	}
}

func newSQLStore(db *sql.DB, d dialect, opts ...Option) *SQLStore {
	s := &SQLStore{db: db, d: d, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// nextTimestamp returns the write timestamp for a new message:
// current wall clock in milliseconds, bumped past the previous
// assignment if the clock has not advanced.
func (s *SQLStore) nextTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixMilli()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

// Append persists one message with a freshly assigned timestamp.
func (s *SQLStore) Append(ctx context.Context, content, author, senderID, recipientID string) error {
	ts := s.nextTimestamp()

	query := s.d.bind(`INSERT INTO messages (content, author, sender_id, recipient_id, timestamp) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, content, author, senderID, recipientID, strconv.FormatInt(ts, 10)); err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// Conversation returns the pair's messages in ascending timestamp order,
// matching the pair in either orientation.
func (s *SQLStore) Conversation(ctx context.Context, a, b string) ([]Message, error) {
	query := s.d.bind(fmt.Sprintf(
		`SELECT content, author, sender_id, recipient_id, timestamp
		 FROM messages
		 WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		 ORDER BY CAST(timestamp AS %s) ASC`, s.d.timestampTy))

	rows, err := s.db.QueryContext(ctx, query, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("store: query conversation: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.Content, &m.Author, &m.SenderID, &m.RecipientID, &ts); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.Timestamp, err = strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("store: bad timestamp %q: %w", ts, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate conversation: %w", err)
	}
	return messages, nil
}

// Prune deletes the pair's messages inside the inclusive range [from, to].
func (s *SQLStore) Prune(ctx context.Context, a, b string, from, to int64) error {
	query := s.d.bind(fmt.Sprintf(
		`DELETE FROM messages
		 WHERE ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))
		 AND CAST(timestamp AS %[1]s) >= ? AND CAST(timestamp AS %[1]s) <= ?`, s.d.timestampTy))

	if _, err := s.db.ExecContext(ctx, query, a, b, b, a, from, to); err != nil {
		return fmt.Errorf("store: prune conversation: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
