package notification

import (
	"fmt"

	"github.com/carelink/care-coordination/pkg/database"
	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// Repository implements the NotificationStore interface over Postgres.
// Every read and write is scoped by the (account, role) pair: a notification
// addressed to an account's provider role is invisible when the same account
// lists as a patient.
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new notification repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.NotificationStore {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// Create persists a notification record
func (r *Repository) Create(n *types.Notification) error {
	query := `
		INSERT INTO notifications (
			id, account_id, role, kind, title, body, appointment_id, read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		n.ID,
		n.AccountID,
		string(n.Role),
		string(n.Kind),
		n.Title,
		n.Body,
		nullable(n.AppointmentID),
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to create notification for account %s", n.AccountID)
		return types.NewUnavailableError(types.ErrCodeUnavailable, "failed to create notification", err)
	}

	return nil
}

// ListFor retrieves notifications addressed to an account under a role,
// newest first
func (r *Repository) ListFor(accountID string, role types.Role, limit int) ([]*types.Notification, error) {
	query := `
		SELECT id, account_id, role, kind, title, body, COALESCE(appointment_id, ''), read, created_at
		FROM notifications
		WHERE account_id = $1 AND role = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.Query(query, accountID, string(role), limit)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to list notifications for account %s", accountID)
		return nil, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to list notifications", err)
	}
	defer rows.Close()

	var notifications []*types.Notification
	for rows.Next() {
		n := &types.Notification{}
		err := rows.Scan(
			&n.ID,
			&n.AccountID,
			&n.Role,
			&n.Kind,
			&n.Title,
			&n.Body,
			&n.AppointmentID,
			&n.Read,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead marks a single notification as read. Returns false when the id
// does not belong to the (account, role) pair.
func (r *Repository) MarkRead(id, accountID string, role types.Role) (bool, error) {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND account_id = $2 AND role = $3`

	return r.execScoped(query, "mark notification read", id, accountID, string(role))
}

// Delete removes a single notification. Returns false when the id does not
// belong to the (account, role) pair.
func (r *Repository) Delete(id, accountID string, role types.Role) (bool, error) {
	query := `
		DELETE FROM notifications
		WHERE id = $1 AND account_id = $2 AND role = $3`

	return r.execScoped(query, "delete notification", id, accountID, string(role))
}

func (r *Repository) execScoped(query, op string, args ...interface{}) (bool, error) {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to %s", op)
		return false, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to "+op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Clear removes every notification addressed to an account under a role and
// returns the number removed
func (r *Repository) Clear(accountID string, role types.Role) (int64, error) {
	query := `DELETE FROM notifications WHERE account_id = $1 AND role = $2`

	result, err := r.db.Exec(query, accountID, string(role))
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to clear notifications for account %s", accountID)
		return 0, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to clear notifications", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
