package chat

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/carelink/care-coordination/pkg/database"
	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// Repository implements the MessageStore interface over Postgres
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new message repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.MessageStore {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// Insert persists a chat message
func (r *Repository) Insert(m *types.Message) error {
	query := `
		INSERT INTO messages (
			id, conversation_id, appointment_id, sender_account_id, sender_role,
			body, kind, file_url, read_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(query,
		m.ID,
		nullable(m.ConversationID),
		nullable(m.AppointmentID),
		m.SenderAccountID,
		nullable(string(m.SenderRole)),
		m.Body,
		string(m.Kind),
		nullable(m.FileURL),
		pq.Array(m.ReadBy),
		m.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to insert message in conversation %s", m.ConversationID)
		return types.NewUnavailableError(types.ErrCodeUnavailable, "failed to insert message", err)
	}

	return nil
}

// messageSelect matches the column order scanMessage expects. The LEFT JOIN
// reconciles legacy rows that carry only an appointment id: such a row
// belongs to this conversation when its appointment links the same two
// accounts, in either direction.
const messageSelect = `
	SELECT m.id, COALESCE(m.conversation_id, ''), COALESCE(m.appointment_id, ''),
	       m.sender_account_id, COALESCE(m.sender_role, ''), m.body, m.kind,
	       COALESCE(m.file_url, ''), m.read_by, m.created_at
	FROM messages m
	LEFT JOIN appointments a ON a.id = m.appointment_id
	WHERE m.conversation_id = $1
	   OR (m.conversation_id IS NULL
	       AND ((a.patient_account_id = $2 AND a.provider_account_id = $3)
	         OR (a.patient_account_id = $3 AND a.provider_account_id = $2)))`

// ListForConversation returns the merged history for a conversation, oldest
// first
func (r *Repository) ListForConversation(conversationID, accountA, accountB string) ([]*types.Message, error) {
	query := messageSelect + ` ORDER BY m.created_at ASC`

	rows, err := r.db.Query(query, conversationID, accountA, accountB)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to list messages for conversation %s", conversationID)
		return nil, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to list messages", err)
	}
	defer rows.Close()

	var messages []*types.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// LastMessage returns the newest message of a conversation, or nil when the
// conversation has no history yet
func (r *Repository) LastMessage(conversationID, accountA, accountB string) (*types.Message, error) {
	query := messageSelect + ` ORDER BY m.created_at DESC LIMIT 1`

	row := r.db.QueryRow(query, conversationID, accountA, accountB)
	m, err := scanMessage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithError(err).Errorf("Failed to get last message for conversation %s", conversationID)
		return nil, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to get last message", err)
	}

	return m, nil
}

// UnreadCount counts conversation messages the reader has not seen. The
// reader's own messages never count as unread.
func (r *Repository) UnreadCount(conversationID, accountA, accountB, readerAccountID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		LEFT JOIN appointments a ON a.id = m.appointment_id
		WHERE (m.conversation_id = $1
		   OR (m.conversation_id IS NULL
		       AND ((a.patient_account_id = $2 AND a.provider_account_id = $3)
		         OR (a.patient_account_id = $3 AND a.provider_account_id = $2))))
		  AND m.sender_account_id <> $4
		  AND NOT ($4 = ANY(m.read_by))`

	var count int
	err := r.db.QueryRow(query, conversationID, accountA, accountB, readerAccountID).Scan(&count)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to count unread messages for conversation %s", conversationID)
		return 0, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to count unread messages", err)
	}

	return count, nil
}

// MarkAllRead appends the reader to read_by on every conversation message
// that does not carry it yet, covering legacy appointment-keyed rows the same
// way the read path does
func (r *Repository) MarkAllRead(conversationID, accountA, accountB, readerAccountID string) (int64, error) {
	query := `
		UPDATE messages
		SET read_by = array_append(read_by, $4)
		WHERE id IN (
			SELECT m.id
			FROM messages m
			LEFT JOIN appointments a ON a.id = m.appointment_id
			WHERE m.conversation_id = $1
			   OR (m.conversation_id IS NULL
			       AND ((a.patient_account_id = $2 AND a.provider_account_id = $3)
			         OR (a.patient_account_id = $3 AND a.provider_account_id = $2))))
		  AND NOT ($4 = ANY(read_by))`

	result, err := r.db.Exec(query, conversationID, accountA, accountB, readerAccountID)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to mark messages read in conversation %s", conversationID)
		return 0, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to mark messages read", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*types.Message, error) {
	m := &types.Message{}
	var readBy []string
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.AppointmentID,
		&m.SenderAccountID,
		&m.SenderRole,
		&m.Body,
		&m.Kind,
		&m.FileURL,
		pq.Array(&readBy),
		&m.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	m.ReadBy = readBy
	return m, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
