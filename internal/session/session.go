// Copyright 2025 TSBot authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session persists conversation transcripts so the supervisor
// can carry prior turns into routing and answer composition (spec §5's
// "a conversation's messages are appended in request order"). It is
// SQL-backed the way the teacher's session store is, generalized to
// carry a fixed-shape message instead of an opaque protobuf payload.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/tracing"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS conversations (
    id VARCHAR(255) PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`
	createMessagesTableSQLite = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL,
    content TEXT NOT NULL,
    metadata_json TEXT,
    sequence_num INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conv_messages_conv_id ON conversation_messages(conversation_id, sequence_num);
`
	createMessagesTablePostgres = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id SERIAL PRIMARY KEY,
    conversation_id VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL,
    content TEXT NOT NULL,
    metadata_json TEXT,
    sequence_num BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conv_messages_conv_id ON conversation_messages(conversation_id, sequence_num);
`
	createMessagesTableMySQL = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    conversation_id VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL,
    content TEXT NOT NULL,
    metadata_json TEXT,
    sequence_num BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conv_messages_conv_id ON conversation_messages(conversation_id, sequence_num);
`
)

// Store persists conversation transcripts. Appends for a given
// conversation ID are serialized through mu so concurrent turns for the
// same conversation never interleave their sequence numbers (spec §5
// "Ordering guarantees": a conversation's messages are appended in
// request order, never interleaved).
type Store struct {
	db      *sql.DB
	dialect string
	mu      sync.Mutex
}

// New opens a Store against an already-connected database handle and
// ensures its schema exists.
func New(db *sql.DB, dialect string) (*Store, error) {
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("session: unsupported dialect %q", dialect)
	}
	s := &Store{db: db, dialect: dialect}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("session: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSessionsTableSQL); err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}
	messagesSQL := createMessagesTableSQLite
	switch s.dialect {
	case "postgres":
		messagesSQL = createMessagesTablePostgres
	case "mysql":
		messagesSQL = createMessagesTableMySQL
	}
	if _, err := s.db.ExecContext(ctx, messagesSQL); err != nil {
		return fmt.Errorf("create conversation_messages table: %w", err)
	}
	return nil
}

func (s *Store) placeholder(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Append adds msg to the conversation's transcript, creating the
// conversation row if it doesn't exist yet.
func (s *Store) Append(ctx context.Context, conversationID string, msg model.Message) error {
	ctx, span := tracing.StartSpan(ctx, "tsbot.session", "session.append")
	defer span.End()
	span.SetAttributes(attribute.String("session.role", msg.Role))

	err := s.doAppend(ctx, conversationID, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Store) doAppend(ctx context.Context, conversationID string, msg model.Message) error {
	if conversationID == "" {
		return fmt.Errorf("session: conversationID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	upsert := fmt.Sprintf(`INSERT INTO conversations (id, created_at, updated_at) VALUES (%s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3))
	if s.dialect == "mysql" {
		upsert += " ON DUPLICATE KEY UPDATE updated_at=VALUES(updated_at)"
	} else {
		upsert += " ON CONFLICT(id) DO UPDATE SET updated_at=excluded.updated_at"
	}
	if _, err := tx.ExecContext(ctx, upsert, conversationID, now, now); err != nil {
		return fmt.Errorf("session: upsert conversation: %w", err)
	}

	var nextSeq int64
	seqQuery := fmt.Sprintf(`SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM conversation_messages WHERE conversation_id = %s`, s.placeholder(1))
	if err := tx.QueryRowContext(ctx, seqQuery, conversationID).Scan(&nextSeq); err != nil {
		return fmt.Errorf("session: next sequence: %w", err)
	}

	metaJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("session: marshal metadata: %w", err)
	}

	insert := fmt.Sprintf(`INSERT INTO conversation_messages (conversation_id, role, content, metadata_json, sequence_num, created_at)
VALUES (%s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6))
	if _, err := tx.ExecContext(ctx, insert, conversationID, msg.Role, msg.Content, string(metaJSON), nextSeq, now); err != nil {
		return fmt.Errorf("session: insert message: %w", err)
	}

	return tx.Commit()
}

// History returns up to limit of the most recent messages for a
// conversation, oldest first. limit <= 0 returns the full transcript.
func (s *Store) History(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	ctx, span := tracing.StartSpan(ctx, "tsbot.session", "session.history")
	defer span.End()

	msgs, err := s.doHistory(ctx, conversationID, limit)
	span.SetAttributes(attribute.Int("session.message_count", len(msgs)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return msgs, err
}

func (s *Store) doHistory(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	inner := fmt.Sprintf(`SELECT role, content, metadata_json, created_at, sequence_num
FROM conversation_messages WHERE conversation_id = %s ORDER BY sequence_num DESC`, s.placeholder(1))
	args := []any{conversationID}
	query := fmt.Sprintf(`SELECT role, content, metadata_json, created_at FROM (%s) sub ORDER BY sequence_num ASC`, inner)
	if limit > 0 {
		inner = fmt.Sprintf(`%s LIMIT %s`, inner, s.placeholder(2))
		query = fmt.Sprintf(`SELECT role, content, metadata_json, created_at FROM (%s) sub ORDER BY sequence_num ASC`, inner)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("session: query history: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var msg model.Message
		var metaJSON sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &metaJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("session: scan message: %w", err)
		}
		if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
			if err := json.Unmarshal([]byte(metaJSON.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("session: unmarshal metadata: %w", err)
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Delete removes a conversation and its messages.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	query := fmt.Sprintf(`DELETE FROM conversations WHERE id = %s`, s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, conversationID); err != nil {
		return fmt.Errorf("session: delete conversation: %w", err)
	}
	cleanup := fmt.Sprintf(`DELETE FROM conversation_messages WHERE conversation_id = %s`, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, cleanup, conversationID)
	return err
}
