package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
	"github.com/tjfontaine/persona-chat-gateway/internal/storage"
)

// Store is a SQLite implementation of storage.ConversationStore
type Store struct {
	db *sql.DB
}

var _ storage.ConversationStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
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
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			provider TEXT,
			model TEXT,
			language TEXT,
			duration_ns INTEGER,
			reply TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			conversation_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			PRIMARY KEY (conversation_id, position),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_status ON conversations(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveConversation writes the conversation row and its transcript in one
// transaction.
func (s *Store) SaveConversation(ctx context.Context, conv *domain.Conversation) (string, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	reply := conv.Reply
	if len(reply) == 0 {
		reply = json.RawMessage("null")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, status, provider, model, language, duration_ns, reply, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, string(conv.Status), conv.Provider, conv.Model, conv.Language,
		int64(conv.Duration), string(reply), conv.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert conversation: %w", err)
	}

	for i, m := range conv.Messages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, position, role, content) VALUES (?, ?, ?, ?)`,
			conv.ID, i, string(m.Role), m.Content,
		); err != nil {
			return "", fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit conversation: %w", err)
	}
	return conv.ID, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var (
		conv       domain.Conversation
		status     string
		provider   sql.NullString
		model      sql.NullString
		language   sql.NullString
		durationNS sql.NullInt64
		reply      string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, provider, model, language, duration_ns, reply, created_at
		FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &status, &provider, &model, &language, &durationNS, &reply, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	conv.Status = domain.ConversationStatus(status)
	conv.Provider = provider.String
	conv.Model = model.String
	conv.Language = language.String
	conv.Duration = time.Duration(durationNS.Int64)
	conv.Reply = json.RawMessage(reply)

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE conversation_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	conv.Messages = []domain.Message{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		conv.Messages = append(conv.Messages, domain.Message{Role: domain.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return &conv, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
