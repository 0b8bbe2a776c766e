package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

// AppendTurn persists one conversation turn, keeping both successful and
// failed LLM attempts so a session's context is never torn.
func (s *Store) AppendTurn(ctx context.Context, turn model.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	toolCallsJSON := ""
	if len(turn.ToolCalls) > 0 {
		buf, err := json.Marshal(turn.ToolCalls)
		if err != nil {
			return err
		}
		toolCallsJSON = string(buf)
	}
	failed := 0
	if turn.Failed {
		failed = 1
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO conversation_messages
			(session_id, role, content, tool_calls_json, tool_call_id, reasoning_blob, failed, created_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			turn.SessionID, string(turn.Role), turn.Content, toolCallsJSON, turn.ToolCallID,
			turn.ReasoningBlob, failed, createdAt.Unix(),
		)
		return err
	})
}

// SessionHistory returns every turn for sessionID in chronological order.
func (s *Store) SessionHistory(ctx context.Context, sessionID string) ([]model.ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, content, tool_calls_json, tool_call_id, reasoning_blob, failed, created_at
		FROM conversation_messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ConversationTurn
	for rows.Next() {
		var t model.ConversationTurn
		var toolCallsJSON string
		var failed int
		var createdAt int64
		if err := rows.Scan(&t.Role, &t.Content, &toolCallsJSON, &t.ToolCallID, &t.ReasoningBlob, &failed, &createdAt); err != nil {
			return nil, err
		}
		t.SessionID = sessionID
		t.Failed = failed != 0
		t.CreatedAt = time.Unix(createdAt, 0)
		if toolCallsJSON != "" {
			if err := json.Unmarshal([]byte(toolCallsJSON), &t.ToolCalls); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListSessions returns distinct session IDs newest-first, for a session
// list endpoint.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, MAX(created_at) AS last_at
		FROM conversation_messages GROUP BY session_id ORDER BY last_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		var lastAt int64
		if err := rows.Scan(&id, &lastAt); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteSession removes every turn belonging to sessionID.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM conversation_messages WHERE session_id = ?`, sessionID)
		return err
	})
}
