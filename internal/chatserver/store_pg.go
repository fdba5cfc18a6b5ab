package chatserver

import (
	"context"
	"database/sql"

	"github.com/Vovarama1992/shop-chat/internal/chat"
	"github.com/Vovarama1992/shop-chat/internal/identity"
)

// PGStore persists chat data in Postgres.
//
// Expected schema:
//
//	CREATE TABLE chat_messages (
//	    id          text PRIMARY KEY,
//	    chat_id     text NOT NULL,
//	    sender_id   text NOT NULL DEFAULT '',
//	    sender_role text NOT NULL,
//	    text        text NOT NULL,
//	    created_at  timestamptz NOT NULL
//	);
//	CREATE INDEX chat_messages_chat_id_idx ON chat_messages (chat_id, created_at);
//
//	CREATE TABLE chat_customers (
//	    id    text PRIMARY KEY,
//	    name  text NOT NULL DEFAULT '',
//	    email text NOT NULL DEFAULT ''
//	);
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, m chat.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, chat_id, sender_id, sender_role, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		m.ID,
		m.ChatID,
		m.SenderID,
		string(m.SenderRole),
		m.Text,
		m.CreatedAt,
	)
	return err
}

func (s *PGStore) History(ctx context.Context, chatID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, sender_role, text, created_at
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		var role string
		if err := rows.Scan(
			&m.ID,
			&m.ChatID,
			&m.SenderID,
			&role,
			&m.Text,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.SenderRole = identity.Role(role)
		out = append(out, m)
	}

	return out, rows.Err()
}

func (s *PGStore) UpsertCustomer(ctx context.Context, c chat.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_customers (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name  = CASE WHEN EXCLUDED.name  = '' THEN chat_customers.name  ELSE EXCLUDED.name  END,
		    email = CASE WHEN EXCLUDED.email = '' THEN chat_customers.email ELSE EXCLUDED.email END
	`, c.ID, c.Name, c.Email)
	return err
}

func (s *PGStore) Customers(ctx context.Context) ([]chat.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email
		FROM chat_customers
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.Customer
	for rows.Next() {
		var c chat.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email); err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}
