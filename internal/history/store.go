// Package history persists chat sessions to a local SQLite database so a
// conversation about a video can be resumed later.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Chat is one stored conversation about a video.
type Chat struct {
	ID        int64
	VideoID   string
	Title     string
	Provider  string
	Model     string
	CreatedAt time.Time
}

// Message is one stored turn of a chat.
type Message struct {
	ID        int64
	ChatID    int64
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store provides read-write access to the chat history database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id   TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	provider   TEXT NOT NULL DEFAULT '',
	model      TEXT NOT NULL DEFAULT '',
	created_at REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id    INTEGER NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chats_video ON chats(video_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id);
`

// Open opens (creating if needed) the database at path with WAL enabled.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateChat starts a new stored chat and returns its id.
func (s *Store) CreateChat(videoID, title, provider, model string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO chats (video_id, title, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, videoID, title, provider, model, unixNow())
	if err != nil {
		return 0, fmt.Errorf("insert chat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("chat id: %w", err)
	}
	return id, nil
}

// AppendMessage records one turn of a chat.
func (s *Store) AppendMessage(chatID int64, role, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (chat_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, chatID, role, content, unixNow())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// LatestChatForVideo returns the most recent chat about videoID, or nil
// when none exists.
func (s *Store) LatestChatForVideo(videoID string) (*Chat, error) {
	row := s.db.QueryRow(`
		SELECT id, video_id, title, provider, model, created_at
		FROM chats
		WHERE video_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, videoID)

	var c Chat
	var createdAt float64
	if err := row.Scan(&c.ID, &c.VideoID, &c.Title, &c.Provider, &c.Model, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	c.CreatedAt = timeFromUnix(createdAt)
	return &c, nil
}

// MessagesForChat returns a chat's messages in send order.
func (s *Store) MessagesForChat(chatID int64) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_id, role, content, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt float64
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = timeFromUnix(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Recorder binds a chat id into the session's persistence hook.
type Recorder struct {
	store  *Store
	chatID int64
}

// Recorder returns a recorder that appends messages to chatID.
func (s *Store) Recorder(chatID int64) *Recorder {
	return &Recorder{store: s, chatID: chatID}
}

// RecordMessage appends one completed message to the bound chat.
func (r *Recorder) RecordMessage(role, text string) error {
	return r.store.AppendMessage(r.chatID, role, text)
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
