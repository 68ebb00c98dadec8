package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/monitoring"
	"github.com/carelink/care-coordination/pkg/types"
)

const defaultListLimit = 100

// Service implements the NotificationService interface
type Service struct {
	store  interfaces.NotificationStore
	logger *logger.Logger
}

// NewService creates a new notification service
func NewService(store interfaces.NotificationStore, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log,
	}
}

// Notify writes a role-addressed notification record. It is best-effort:
// a storage failure is logged and swallowed so the appointment transition
// that triggered it is never rolled back.
func (s *Service) Notify(accountID string, role types.Role, kind types.NotificationKind, title, body, appointmentID string) {
	n := &types.Notification{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		Role:          role,
		Kind:          kind,
		Title:         title,
		Body:          body,
		AppointmentID: appointmentID,
		Read:          false,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.Create(n); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"account_id": accountID,
			"role":       role,
			"title":      title,
		}).Warn("Failed to write notification, continuing")
		monitoring.RecordNotification(string(kind), string(role), "failed")
		return
	}

	monitoring.RecordNotification(string(kind), string(role), "created")
}

// ListFor retrieves the caller's notifications under the given role
func (s *Service) ListFor(accountID string, role types.Role) ([]*types.Notification, error) {
	return s.store.ListFor(accountID, role, defaultListLimit)
}

// MarkRead marks one of the caller's notifications as read
func (s *Service) MarkRead(id, accountID string, role types.Role) error {
	ok, err := s.store.MarkRead(id, accountID, role)
	if err != nil {
		return err
	}
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "notification not found")
	}
	return nil
}

// Delete removes one of the caller's notifications
func (s *Service) Delete(id, accountID string, role types.Role) error {
	ok, err := s.store.Delete(id, accountID, role)
	if err != nil {
		return err
	}
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "notification not found")
	}
	return nil
}

// Clear removes every notification the caller holds under the given role
func (s *Service) Clear(accountID string, role types.Role) (int64, error) {
	return s.store.Clear(accountID, role)
}
