// ABOUTME: SQLite-backed conversation store: threads and final messages persist, placeholders stay in memory.
// ABOUTME: Enforces the single-active-thread, at-least-one-thread, and one-placeholder-per-thread invariants.
package conversation

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/2389-research/kicksight/classify"
)

var (
	// ErrLastThread is returned when deleting the sole remaining thread.
	ErrLastThread = errors.New("cannot delete the last remaining conversation")

	// ErrThreadNotFound is returned for operations on unknown thread ids.
	ErrThreadNotFound = errors.New("conversation thread not found")

	// ErrPlaceholderExists is returned when a second in-progress placeholder
	// is requested for a thread that already has one.
	ErrPlaceholderExists = errors.New("a request is already in progress for this conversation")
)

// Store persists conversation threads and their final messages in SQLite.
// In-progress placeholder messages are deliberately memory-only: they are
// transient request state, not conversation content.
type Store struct {
	db *sql.DB

	mu           sync.Mutex
	placeholders map[string]*Message // threadID -> live placeholder
}

// Open opens or creates the conversation database at path and guarantees at
// least one thread exists, activating the most recent one.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			session_token TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			result_json TEXT,
			err_text TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY (thread_id) REFERENCES threads(thread_id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, message_id);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{db: db, placeholders: make(map[string]*Message)}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM threads").Scan(&count); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("count threads: %w", err)
	}
	if count == 0 {
		if _, err := s.NewThread(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewThread creates a thread with a fresh session token and makes it active.
func (s *Store) NewThread() (Thread, error) {
	t := Thread{
		ID:           NewID(),
		Title:        defaultTitle,
		SessionToken: uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Thread{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("UPDATE threads SET active = 0"); err != nil {
		return Thread{}, fmt.Errorf("deactivate threads: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO threads (thread_id, title, session_token, active, created_at) VALUES (?, ?, ?, 1, ?)",
		t.ID, t.Title, t.SessionToken, t.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return Thread{}, fmt.Errorf("insert thread: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Thread{}, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// Threads lists all threads, newest first.
func (s *Store) Threads() ([]Thread, error) {
	rows, err := s.db.Query(
		"SELECT thread_id, title, session_token, created_at FROM threads ORDER BY thread_id DESC")
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ActiveThread returns the currently active thread.
func (s *Store) ActiveThread() (Thread, error) {
	row := s.db.QueryRow(
		"SELECT thread_id, title, session_token, created_at FROM threads WHERE active = 1")
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Thread{}, ErrThreadNotFound
	}
	return t, err
}

// SetActive marks the given thread active and every other thread inactive.
func (s *Store) SetActive(threadID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec("UPDATE threads SET active = 1 WHERE thread_id = ?", threadID)
	if err != nil {
		return fmt.Errorf("activate thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrThreadNotFound
	}
	if _, err := tx.Exec("UPDATE threads SET active = 0 WHERE thread_id != ?", threadID); err != nil {
		return fmt.Errorf("deactivate threads: %w", err)
	}
	return tx.Commit()
}

// SessionToken returns the backend session token for a thread.
func (s *Store) SessionToken(threadID string) (string, error) {
	var token string
	err := s.db.QueryRow(
		"SELECT session_token FROM threads WHERE thread_id = ?", threadID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrThreadNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	return token, nil
}

// DeleteThread removes a thread and its messages. Deleting the sole
// remaining thread is refused. If the active thread is deleted, the most
// recent remaining thread becomes active.
func (s *Store) DeleteThread(threadID string) error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM threads").Scan(&count); err != nil {
		return fmt.Errorf("count threads: %w", err)
	}
	if count <= 1 {
		return ErrLastThread
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var wasActive bool
	err = tx.QueryRow("SELECT active FROM threads WHERE thread_id = ?", threadID).Scan(&wasActive)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrThreadNotFound
	}
	if err != nil {
		return fmt.Errorf("read thread: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM messages WHERE thread_id = ?", threadID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM threads WHERE thread_id = ?", threadID); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if wasActive {
		if _, err := tx.Exec(
			"UPDATE threads SET active = 1 WHERE thread_id = (SELECT MAX(thread_id) FROM threads)",
		); err != nil {
			return fmt.Errorf("reactivate thread: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.mu.Lock()
	delete(s.placeholders, threadID)
	s.mu.Unlock()
	return nil
}

// AppendUser persists a user message. The first user message of a thread also
// derives the thread title.
func (s *Store) AppendUser(threadID, text string) (Message, error) {
	msg := Message{
		ID:        NewID(),
		Role:      RoleUser,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.insert(threadID, msg); err != nil {
		return Message{}, err
	}

	// Title auto-derivation: only while the thread still has its default name.
	if _, err := s.db.Exec(
		"UPDATE threads SET title = ? WHERE thread_id = ? AND title = ?",
		DeriveTitle(text), threadID, defaultTitle,
	); err != nil {
		return Message{}, fmt.Errorf("update title: %w", err)
	}
	return msg, nil
}

// BeginPlaceholder creates the in-progress placeholder for a thread. At most
// one may exist per thread; a second request is refused.
func (s *Store) BeginPlaceholder(threadID string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.placeholders[threadID]; exists {
		return Message{}, ErrPlaceholderExists
	}
	msg := &Message{
		ID:        NewID(),
		Role:      RoleInProgress,
		CreatedAt: time.Now().UTC(),
	}
	s.placeholders[threadID] = msg
	return *msg, nil
}

// UpdatePlaceholder refreshes the live progress lines shown for a thread's
// placeholder. No-op when no placeholder exists (a late update after
// resolution must not resurrect it).
func (s *Store) UpdatePlaceholder(threadID string, progress []string, icon string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg, ok := s.placeholders[threadID]; ok {
		msg.Progress = append([]string(nil), progress...)
		msg.Icon = icon
	}
}

// ReplacePlaceholder removes the thread's placeholder and persists the final
// assistant message (result or error) in its place. The replacement happens
// exactly once; if no placeholder exists the final message is still recorded
// so a resolved outcome is never lost.
func (s *Store) ReplacePlaceholder(threadID string, msg Message) error {
	s.mu.Lock()
	delete(s.placeholders, threadID)
	s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Role = RoleAssistant
	return s.insert(threadID, msg)
}

// ClearPlaceholder drops a thread's placeholder without recording anything.
// Used when a conversation is abandoned mid-flight.
func (s *Store) ClearPlaceholder(threadID string) {
	s.mu.Lock()
	delete(s.placeholders, threadID)
	s.mu.Unlock()
}

// HasPlaceholder reports whether a request is in flight for the thread.
func (s *Store) HasPlaceholder(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.placeholders[threadID]
	return ok
}

// Messages returns the thread's persisted messages in order, with the live
// placeholder (if any) appended last.
func (s *Store) Messages(threadID string) ([]Message, error) {
	rows, err := s.db.Query(
		"SELECT message_id, role, text, result_json, err_text, created_at FROM messages WHERE thread_id = ? ORDER BY message_id",
		threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Message
	for rows.Next() {
		var (
			msg        Message
			role       string
			resultJSON sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Text, &resultJSON, &msg.ErrText, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = Role(role)
		if resultJSON.Valid && resultJSON.String != "" {
			var r classify.Result
			if err := json.Unmarshal([]byte(resultJSON.String), &r); err == nil {
				msg.Result = &r
			}
		}
		msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if ph, ok := s.placeholders[threadID]; ok {
		out = append(out, *ph)
	}
	s.mu.Unlock()
	return out, nil
}

func (s *Store) insert(threadID string, msg Message) error {
	var exists int
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM threads WHERE thread_id = ?", threadID).Scan(&exists); err != nil {
		return fmt.Errorf("check thread: %w", err)
	}
	if exists == 0 {
		return ErrThreadNotFound
	}

	var resultJSON any
	if msg.Result != nil {
		b, err := json.Marshal(msg.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		resultJSON = string(b)
	}

	if _, err := s.db.Exec(
		"INSERT INTO messages (message_id, thread_id, role, text, result_json, err_text, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		msg.ID, threadID, string(msg.Role), msg.Text, resultJSON, msg.ErrText,
		msg.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanThread.
type scanner interface {
	Scan(dest ...any) error
}

func scanThread(row scanner) (Thread, error) {
	var (
		t         Thread
		createdAt string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.SessionToken, &createdAt); err != nil {
		return Thread{}, err
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return t, nil
}
