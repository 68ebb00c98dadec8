package appointment

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/carelink/care-coordination/internal/chat"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// MockNotificationService is a mock implementation of NotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Notify(accountID string, role types.Role, kind types.NotificationKind, title, body, appointmentID string) {
	m.Called(accountID, role, kind, title, body, appointmentID)
}

func (m *MockNotificationService) ListFor(accountID string, role types.Role) ([]*types.Notification, error) {
	args := m.Called(accountID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkRead(id, accountID string, role types.Role) error {
	args := m.Called(id, accountID, role)
	return args.Error(0)
}

func (m *MockNotificationService) Delete(id, accountID string, role types.Role) error {
	args := m.Called(id, accountID, role)
	return args.Error(0)
}

func (m *MockNotificationService) Clear(accountID string, role types.Role) (int64, error) {
	args := m.Called(accountID, role)
	return args.Get(0).(int64), args.Error(1)
}

// MockSystemMessenger is a mock implementation of SystemMessenger
type MockSystemMessenger struct {
	mock.Mock
}

func (m *MockSystemMessenger) PostSystemMessage(conversationID, body, appointmentID string) (*types.Message, error) {
	args := m.Called(conversationID, body, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Message), args.Error(1)
}

// MockDeliverySender is a mock implementation of DeliverySender
type MockDeliverySender struct {
	mock.Mock
}

func (m *MockDeliverySender) SendEmail(to, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}

func (m *MockDeliverySender) SendWhatsApp(to, body string) error {
	args := m.Called(to, body)
	return args.Error(0)
}

type notifierMocks struct {
	resolver      *MockIdentityResolver
	notifications *MockNotificationService
	messenger     *MockSystemMessenger
	delivery      *MockDeliverySender
}

func setupTestNotifier() (*Notifier, *notifierMocks) {
	m := &notifierMocks{
		resolver:      &MockIdentityResolver{},
		notifications: &MockNotificationService{},
		messenger:     &MockSystemMessenger{},
		delivery:      &MockDeliverySender{},
	}
	notifier := NewNotifier(m.resolver, m.notifications, m.messenger, m.delivery, logger.New("debug"))
	return notifier, m
}

func notifierAppointment() *types.Appointment {
	return &types.Appointment{
		ID:                "apt-1",
		PatientAccountID:  "acc-patient",
		ProviderAccountID: "acc-provider",
		ScheduledAt:       time.Date(2026, time.September, 14, 15, 30, 0, 0, time.UTC),
		Status:            types.StatusPending,
	}
}

func stubParties(m *notifierMocks, patientActiveRole types.Role) {
	m.resolver.On("GetAccount", "acc-patient").Return(&types.Account{
		ID: "acc-patient", Name: "Asha", Email: "asha@example.com", ActiveRole: patientActiveRole,
	}, nil)
	m.resolver.On("GetAccount", "acc-provider").Return(&types.Account{
		ID: "acc-provider", Name: "Dr. Rao", Email: "rao@example.com", ActiveRole: types.RoleProvider,
	}, nil)
}

func TestNotifier_Created_AddressesPatientWithBookingRole(t *testing.T) {
	notifier, m := setupTestNotifier()
	stubParties(m, types.RoleProvider)

	apt := notifierAppointment()
	conversationID := chat.ConversationID("acc-patient", "acc-provider")

	m.notifications.On("Notify", "acc-provider", types.RoleProvider, types.NotificationKindAppointment,
		"New Appointment Request", mock.Anything, "apt-1").Return()
	// The booking account is a provider who booked as a patient: the
	// notification must go to the role they booked with
	m.notifications.On("Notify", "acc-patient", types.RoleProvider, types.NotificationKindAppointment,
		"Appointment Requested", mock.Anything, "apt-1").Return()
	m.messenger.On("PostSystemMessage", conversationID, mock.Anything, "apt-1").Return(&types.Message{}, nil)
	m.delivery.On("SendEmail", "rao@example.com", "New Appointment Request", mock.Anything).Return(nil)

	err := notifier.AppointmentCreated(apt, types.RoleProvider)

	assert.NoError(t, err)
	m.notifications.AssertExpectations(t)
	m.messenger.AssertExpectations(t)
}

func TestNotifier_Approved_NotifiesPatientCurrentRoleAndUnlocksChat(t *testing.T) {
	notifier, m := setupTestNotifier()
	stubParties(m, types.RolePatient)

	apt := notifierAppointment()
	apt.Status = types.StatusApproved

	m.notifications.On("Notify", "acc-patient", types.RolePatient, types.NotificationKindAppointment,
		"Appointment Approved",
		"Your appointment with Dr. Rao on September 14, 2026 at 3:30 PM has been approved.",
		"").Return()
	m.messenger.On("PostSystemMessage", mock.Anything, mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "You can now chat!")
	}), "apt-1").Return(&types.Message{}, nil)
	m.delivery.On("SendEmail", "asha@example.com", "Appointment Approved", mock.Anything).Return(nil)

	err := notifier.AppointmentApproved(apt)

	assert.NoError(t, err)
	m.notifications.AssertExpectations(t)
}

func TestNotifier_Rejected_AppendsReason(t *testing.T) {
	notifier, m := setupTestNotifier()
	stubParties(m, types.RolePatient)

	apt := notifierAppointment()

	m.notifications.On("Notify", "acc-patient", types.RolePatient, types.NotificationKindAppointment,
		"Appointment Rejected", mock.MatchedBy(func(body string) bool {
			return strings.HasSuffix(body, "Reason: fully booked")
		}), "").Return()
	m.messenger.On("PostSystemMessage", mock.Anything, mock.Anything, "apt-1").Return(&types.Message{}, nil)

	err := notifier.AppointmentRejected(apt, "fully booked")

	assert.NoError(t, err)
	m.notifications.AssertExpectations(t)
}

func TestNotifier_Cancelled_ByPatientNotifiesProviderOnly(t *testing.T) {
	notifier, m := setupTestNotifier()
	stubParties(m, types.RolePatient)

	apt := notifierAppointment()

	m.notifications.On("Notify", "acc-provider", types.RoleProvider, types.NotificationKindAppointment,
		"Appointment Cancelled", mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "Asha")
		}), "").Return()
	m.messenger.On("PostSystemMessage", mock.Anything, mock.Anything, "apt-1").Return(&types.Message{}, nil)

	err := notifier.AppointmentCancelled(apt, types.CancelledByPatient, "")

	assert.NoError(t, err)
	m.notifications.AssertExpectations(t)
	m.notifications.AssertNumberOfCalls(t, "Notify", 1)
}

func TestNotifier_Missed_NotifiesBothPartiesNoChatMessage(t *testing.T) {
	notifier, m := setupTestNotifier()
	stubParties(m, types.RolePatient)

	apt := notifierAppointment()

	m.notifications.On("Notify", "acc-patient", types.RolePatient, types.NotificationKindAppointment,
		"Appointment Missed", mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "Please reschedule.")
		}), "").Return()
	m.notifications.On("Notify", "acc-provider", types.RoleProvider, types.NotificationKindAppointment,
		"Appointment Missed", mock.Anything, "").Return()

	err := notifier.AppointmentMissed(apt)

	assert.NoError(t, err)
	m.notifications.AssertExpectations(t)
	m.messenger.AssertNotCalled(t, "PostSystemMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifier_Rescheduled_ProviderGetsSuccessorID(t *testing.T) {
	notifier, m := setupTestNotifier()
	stubParties(m, types.RolePatient)

	original := notifierAppointment()
	successor := notifierAppointment()
	successor.ID = "apt-2"
	successor.ScheduledAt = original.ScheduledAt.Add(72 * time.Hour)

	m.notifications.On("Notify", "acc-provider", types.RoleProvider, types.NotificationKindAppointment,
		"Appointment Rescheduled", mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "Please approve the new appointment.")
		}), "apt-2").Return()
	m.notifications.On("Notify", "acc-patient", types.RolePatient, types.NotificationKindAppointment,
		"Appointment Rescheduled", mock.Anything, "").Return()

	err := notifier.AppointmentRescheduled(original, successor)

	assert.NoError(t, err)
	m.notifications.AssertExpectations(t)
}

func TestNotifier_BrokenChatDoesNotFailFanout(t *testing.T) {
	notifier, m := setupTestNotifier()
	stubParties(m, types.RolePatient)

	apt := notifierAppointment()
	apt.Status = types.StatusApproved

	m.notifications.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	m.messenger.On("PostSystemMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil, assert.AnError)
	m.delivery.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := notifier.AppointmentApproved(apt)

	assert.NoError(t, err)
}
