// Package store persists chats, messages, project records, and pending
// uploads in a local SQLite database. The pipeline reads one message per
// invocation and writes back its annotated content, approval state, and
// commit hash.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the database connection.
type Store struct {
	conn *sql.DB
}

// Message is one chat message record.
type Message struct {
	ID            string
	ChatID        string
	Role          string
	Content       string
	ApprovalState string
	CommitHash    string
}

// Project is the local project a chat operates on.
type Project struct {
	ID                string
	RootPath          string
	DatabaseProjectID string // empty when no remote database project is linked
	DatabaseBranchID  string // empty when the database is not branch-versioned
}

// Open opens (creating if necessary) the store at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		root_path TEXT NOT NULL,
		database_project_id TEXT NOT NULL DEFAULT '',
		database_branch_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		approval_state TEXT NOT NULL DEFAULT '',
		commit_hash TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS uploads (
		chat_id TEXT NOT NULL,
		token TEXT NOT NULL,
		file_path TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (chat_id, token)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id);
	CREATE INDEX IF NOT EXISTS idx_chats_project_id ON chats(project_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// PutProject inserts or replaces a project record.
func (s *Store) PutProject(p *Project) error {
	_, err := s.conn.Exec(
		`INSERT OR REPLACE INTO projects (id, root_path, database_project_id, database_branch_id) VALUES (?, ?, ?, ?)`,
		p.ID, p.RootPath, p.DatabaseProjectID, p.DatabaseBranchID,
	)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(id string) (*Project, error) {
	var p Project
	err := s.conn.QueryRow(
		`SELECT id, root_path, database_project_id, database_branch_id FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.RootPath, &p.DatabaseProjectID, &p.DatabaseBranchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("project %s not found", id)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// PutChat inserts or replaces a chat record.
func (s *Store) PutChat(id, projectID string) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO chats (id, project_id) VALUES (?, ?)`, id, projectID)
	if err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

// ChatProjectID returns the project a chat belongs to.
func (s *Store) ChatProjectID(chatID string) (string, error) {
	var projectID string
	err := s.conn.QueryRow(`SELECT project_id FROM chats WHERE id = ?`, chatID).Scan(&projectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("chat %s not found", chatID)
		}
		return "", fmt.Errorf("failed to get chat: %w", err)
	}
	return projectID, nil
}

// PutMessage inserts or replaces a message record.
func (s *Store) PutMessage(m *Message) error {
	_, err := s.conn.Exec(
		`INSERT OR REPLACE INTO messages (id, chat_id, role, content, approval_state, commit_hash) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.Role, m.Content, m.ApprovalState, m.CommitHash,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by id, role, and owning chat.
func (s *Store) GetMessage(id, role, chatID string) (*Message, error) {
	var m Message
	err := s.conn.QueryRow(
		`SELECT id, chat_id, role, content, approval_state, commit_hash FROM messages WHERE id = ? AND role = ? AND chat_id = ?`,
		id, role, chatID,
	).Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.ApprovalState, &m.CommitHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("message %s not found in chat %s", id, chatID)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &m, nil
}

// UpdateMessageContent replaces a message's content.
func (s *Store) UpdateMessageContent(id, content string) error {
	_, err := s.conn.Exec(`UPDATE messages SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("failed to update message content: %w", err)
	}
	return nil
}

// ApproveMessage marks a message as approved.
func (s *Store) ApproveMessage(id string) error {
	_, err := s.conn.Exec(`UPDATE messages SET approval_state = 'approved' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to approve message: %w", err)
	}
	return nil
}

// SetCommitHash records the commit produced for a message.
func (s *Store) SetCommitHash(id, hash string) error {
	_, err := s.conn.Exec(`UPDATE messages SET commit_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to set commit hash: %w", err)
	}
	return nil
}

// RegisterUpload associates an upload token with a staged file for a chat.
// A write action whose body equals the token is substituted with the staged
// file's content.
func (s *Store) RegisterUpload(chatID, token, filePath string) error {
	_, err := s.conn.Exec(
		`INSERT OR REPLACE INTO uploads (chat_id, token, file_path) VALUES (?, ?, ?)`,
		chatID, token, filePath,
	)
	if err != nil {
		return fmt.Errorf("failed to register upload: %w", err)
	}
	return nil
}

// TakeUploads returns and clears the pending uploads for a chat. Clearing at
// the start of each invocation keeps a stale token from substituting content
// into a later turn.
func (s *Store) TakeUploads(chatID string) (map[string]string, error) {
	rows, err := s.conn.Query(`SELECT token, file_path FROM uploads WHERE chat_id = ?`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	uploads := make(map[string]string)
	for rows.Next() {
		var token, filePath string
		if err := rows.Scan(&token, &filePath); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads[token] = filePath
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read uploads: %w", err)
	}

	if _, err := s.conn.Exec(`DELETE FROM uploads WHERE chat_id = ?`, chatID); err != nil {
		return nil, fmt.Errorf("failed to clear uploads: %w", err)
	}
	return uploads, nil
}
