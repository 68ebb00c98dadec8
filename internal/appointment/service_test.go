package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// MockAppointmentRepository is a mock implementation of AppointmentRepository
type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) Create(apt *types.Appointment) error {
	args := m.Called(apt)
	return args.Error(0)
}

func (m *MockAppointmentRepository) GetByID(id string) (*types.Appointment, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) TransitionStatus(id string, update *interfaces.StatusUpdate) (bool, error) {
	args := m.Called(id, update)
	return args.Bool(0), args.Error(1)
}

func (m *MockAppointmentRepository) ListByPatient(accountID string) ([]*types.Appointment, error) {
	args := m.Called(accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListByProvider(providerAccountIDs []string) ([]*types.Appointment, error) {
	args := m.Called(providerAccountIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListBetween(accountA, accountB string) ([]*types.Appointment, error) {
	args := m.Called(accountA, accountB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListOverdue(now time.Time) ([]*types.Appointment, error) {
	args := m.Called(now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Appointment), args.Error(1)
}

// MockIdentityResolver is a mock implementation of IdentityResolver
type MockIdentityResolver struct {
	mock.Mock
}

func (m *MockIdentityResolver) ResolveProvider(ref string) (*types.ProviderProfile, error) {
	args := m.Called(ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ProviderProfile), args.Error(1)
}

func (m *MockIdentityResolver) ProviderAccountIDs(accountID string) ([]string, error) {
	args := m.Called(accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockIdentityResolver) GetAccount(id string) (*types.Account, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Account), args.Error(1)
}

// MockDirectoryRepository is a mock implementation of DirectoryRepository
type MockDirectoryRepository struct {
	mock.Mock
}

func (m *MockDirectoryRepository) GetAccount(id string) (*types.Account, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Account), args.Error(1)
}

func (m *MockDirectoryRepository) GetProviderProfile(id string) (*types.ProviderProfile, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ProviderProfile), args.Error(1)
}

func (m *MockDirectoryRepository) GetProviderProfileByAccount(accountID string) (*types.ProviderProfile, error) {
	args := m.Called(accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ProviderProfile), args.Error(1)
}

func (m *MockDirectoryRepository) ListProviderProfilesByAccount(accountID string) ([]*types.ProviderProfile, error) {
	args := m.Called(accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.ProviderProfile), args.Error(1)
}

func (m *MockDirectoryRepository) AffiliationExists(id string) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockDirectoryRepository) DefaultAffiliationID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockDirectoryRepository) UpdateActiveRole(accountID string, role types.Role) error {
	args := m.Called(accountID, role)
	return args.Error(0)
}

// MockNotifier is a mock implementation of AppointmentNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) AppointmentCreated(apt *types.Appointment, patientActiveRole types.Role) error {
	args := m.Called(apt, patientActiveRole)
	return args.Error(0)
}

func (m *MockNotifier) AppointmentApproved(apt *types.Appointment) error {
	args := m.Called(apt)
	return args.Error(0)
}

func (m *MockNotifier) AppointmentRejected(apt *types.Appointment, reason string) error {
	args := m.Called(apt, reason)
	return args.Error(0)
}

func (m *MockNotifier) AppointmentCancelled(apt *types.Appointment, by types.CancelledBy, reason string) error {
	args := m.Called(apt, by, reason)
	return args.Error(0)
}

func (m *MockNotifier) AppointmentCompleted(apt *types.Appointment) error {
	args := m.Called(apt)
	return args.Error(0)
}

func (m *MockNotifier) AppointmentMissed(apt *types.Appointment) error {
	args := m.Called(apt)
	return args.Error(0)
}

func (m *MockNotifier) AppointmentRescheduled(original, successor *types.Appointment) error {
	args := m.Called(original, successor)
	return args.Error(0)
}

type serviceMocks struct {
	repo      *MockAppointmentRepository
	resolver  *MockIdentityResolver
	directory *MockDirectoryRepository
	notifier  *MockNotifier
}

func setupTestService() (*Service, *serviceMocks) {
	m := &serviceMocks{
		repo:      &MockAppointmentRepository{},
		resolver:  &MockIdentityResolver{},
		directory: &MockDirectoryRepository{},
		notifier:  &MockNotifier{},
	}
	service := NewService(m.repo, m.resolver, m.directory, m.notifier, logger.New("debug"))
	return service, m
}

func pendingAppointment() *types.Appointment {
	return &types.Appointment{
		ID:                "apt-1",
		PatientAccountID:  "acc-patient",
		ProviderAccountID: "acc-provider",
		ScheduledAt:       time.Now().Add(48 * time.Hour),
		Status:            types.StatusPending,
	}
}

func approvedAppointment() *types.Appointment {
	apt := pendingAppointment()
	apt.Status = types.StatusApproved
	return apt
}

func TestService_CreateAppointment_ByProfileRef(t *testing.T) {
	service, m := setupTestService()

	profile := &types.ProviderProfile{ID: "prof-1", AccountID: "acc-provider", Verified: true, Active: true, AffiliationID: "aff-1"}
	m.resolver.On("ResolveProvider", "prof-1").Return(profile, nil)
	m.repo.On("Create", mock.MatchedBy(func(apt *types.Appointment) bool {
		return apt.PatientAccountID == "acc-patient" &&
			apt.ProviderAccountID == "acc-provider" && // canonical account id, not profile id
			apt.AffiliationID == "aff-1" &&
			apt.Status == types.StatusPending
	})).Return(nil)
	m.notifier.On("AppointmentCreated", mock.Anything, types.RolePatient).Return(nil)

	apt, err := service.CreateAppointment("acc-patient", types.RolePatient, &types.CreateAppointmentRequest{
		ProviderRef: "prof-1",
		ScheduledAt: time.Now().Add(48 * time.Hour),
	})

	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, apt.Status)
	m.repo.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestService_CreateAppointment_UnbookableProvider(t *testing.T) {
	service, m := setupTestService()

	profile := &types.ProviderProfile{ID: "prof-1", AccountID: "acc-provider", Verified: true, Active: false}
	m.resolver.On("ResolveProvider", "prof-1").Return(profile, nil)

	_, err := service.CreateAppointment("acc-patient", types.RolePatient, &types.CreateAppointmentRequest{
		ProviderRef: "prof-1",
		ScheduledAt: time.Now().Add(48 * time.Hour),
	})

	assert.Error(t, err)
	assert.True(t, types.IsConflict(err))
	m.repo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestService_CreateAppointment_SelfBookingRejected(t *testing.T) {
	service, m := setupTestService()

	profile := &types.ProviderProfile{ID: "prof-1", AccountID: "acc-dual", Verified: true, Active: true}
	m.resolver.On("ResolveProvider", "prof-1").Return(profile, nil)

	_, err := service.CreateAppointment("acc-dual", types.RoleProvider, &types.CreateAppointmentRequest{
		ProviderRef: "prof-1",
		ScheduledAt: time.Now().Add(48 * time.Hour),
	})

	assert.Error(t, err)
	assert.Equal(t, types.ErrorTypeValidation, types.TypeOf(err))
}

func TestService_CreateAppointment_NotifierFailureDoesNotFail(t *testing.T) {
	service, m := setupTestService()

	profile := &types.ProviderProfile{ID: "prof-1", AccountID: "acc-provider", Verified: true, Active: true, AffiliationID: "aff-1"}
	m.resolver.On("ResolveProvider", "prof-1").Return(profile, nil)
	m.repo.On("Create", mock.Anything).Return(nil)
	m.notifier.On("AppointmentCreated", mock.Anything, mock.Anything).Return(assert.AnError)

	apt, err := service.CreateAppointment("acc-patient", types.RolePatient, &types.CreateAppointmentRequest{
		ProviderRef: "prof-1",
		ScheduledAt: time.Now().Add(48 * time.Hour),
	})

	require.NoError(t, err)
	assert.NotNil(t, apt)
}

func TestService_Approve_PendingToApproved(t *testing.T) {
	service, m := setupTestService()

	apt := pendingAppointment()
	approved := approvedAppointment()
	m.repo.On("GetByID", "apt-1").Return(apt, nil).Once()
	m.resolver.On("ProviderAccountIDs", "acc-provider").Return([]string{"acc-provider", "prof-1"}, nil)
	m.repo.On("TransitionStatus", "apt-1", mock.MatchedBy(func(u *interfaces.StatusUpdate) bool {
		return u.From == types.StatusPending && u.To == types.StatusApproved
	})).Return(true, nil)
	m.repo.On("GetByID", "apt-1").Return(approved, nil)
	m.notifier.On("AppointmentApproved", approved).Return(nil)

	got, err := service.Transition("acc-provider", "apt-1", &types.TransitionRequest{Action: types.ActionApprove})

	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, got.Status)
	m.notifier.AssertExpectations(t)
}

func TestService_Approve_ByOwnedProfileIdentity(t *testing.T) {
	service, m := setupTestService()

	// The appointment is addressed to the profile id, not the account id
	apt := pendingAppointment()
	apt.ProviderAccountID = "prof-1"
	approved := approvedAppointment()
	approved.ProviderAccountID = "prof-1"

	m.repo.On("GetByID", "apt-1").Return(apt, nil).Once()
	m.resolver.On("ProviderAccountIDs", "acc-provider").Return([]string{"acc-provider", "prof-1"}, nil)
	m.repo.On("TransitionStatus", "apt-1", mock.Anything).Return(true, nil)
	m.repo.On("GetByID", "apt-1").Return(approved, nil)
	m.notifier.On("AppointmentApproved", mock.Anything).Return(nil)

	_, err := service.Transition("acc-provider", "apt-1", &types.TransitionRequest{Action: types.ActionApprove})

	assert.NoError(t, err)
}

func TestService_Approve_StrangerForbidden(t *testing.T) {
	service, m := setupTestService()

	m.repo.On("GetByID", "apt-1").Return(pendingAppointment(), nil)
	m.resolver.On("ProviderAccountIDs", "acc-other").Return([]string{"acc-other"}, nil)

	_, err := service.Transition("acc-other", "apt-1", &types.TransitionRequest{Action: types.ActionApprove})

	assert.Error(t, err)
	assert.True(t, types.IsForbidden(err))
	m.repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything)
}

func TestService_Approve_TerminalStateConflicts(t *testing.T) {
	service, m := setupTestService()

	apt := pendingAppointment()
	apt.Status = types.StatusRejected
	m.repo.On("GetByID", "apt-1").Return(apt, nil)
	m.resolver.On("ProviderAccountIDs", "acc-provider").Return([]string{"acc-provider"}, nil)

	_, err := service.Transition("acc-provider", "apt-1", &types.TransitionRequest{Action: types.ActionApprove})

	assert.Error(t, err)
	assert.True(t, types.IsConflict(err))
	m.repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything)
}

func TestService_Approve_LostRaceResolvesToConflict(t *testing.T) {
	service, m := setupTestService()

	apt := pendingAppointment()
	raced := pendingAppointment()
	raced.Status = types.StatusCancelled

	m.repo.On("GetByID", "apt-1").Return(apt, nil).Once()
	m.resolver.On("ProviderAccountIDs", "acc-provider").Return([]string{"acc-provider"}, nil)
	// The guarded write matches nothing: another actor moved the row first
	m.repo.On("TransitionStatus", "apt-1", mock.Anything).Return(false, nil)
	m.repo.On("GetByID", "apt-1").Return(raced, nil)

	_, err := service.Transition("acc-provider", "apt-1", &types.TransitionRequest{Action: types.ActionApprove})

	assert.Error(t, err)
	assert.True(t, types.IsConflict(err))
	m.notifier.AssertNotCalled(t, "AppointmentApproved", mock.Anything)
}

func TestService_Reject_CarriesReason(t *testing.T) {
	service, m := setupTestService()

	apt := pendingAppointment()
	rejected := pendingAppointment()
	rejected.Status = types.StatusRejected
	rejected.CancelReason = "fully booked"

	m.repo.On("GetByID", "apt-1").Return(apt, nil).Once()
	m.resolver.On("ProviderAccountIDs", "acc-provider").Return([]string{"acc-provider"}, nil)
	m.repo.On("TransitionStatus", "apt-1", mock.MatchedBy(func(u *interfaces.StatusUpdate) bool {
		return u.From == types.StatusPending && u.To == types.StatusRejected && u.CancelReason == "fully booked"
	})).Return(true, nil)
	m.repo.On("GetByID", "apt-1").Return(rejected, nil)
	m.notifier.On("AppointmentRejected", rejected, "fully booked").Return(nil)

	_, err := service.Transition("acc-provider", "apt-1", &types.TransitionRequest{
		Action: types.ActionReject,
		Reason: "fully booked",
	})

	assert.NoError(t, err)
	m.notifier.AssertExpectations(t)
}

func TestService_Cancel_ByPatientRecordsParty(t *testing.T) {
	service, m := setupTestService()

	apt := approvedAppointment()
	cancelled := approvedAppointment()
	cancelled.Status = types.StatusCancelled

	m.repo.On("GetByID", "apt-1").Return(apt, nil).Once()
	m.repo.On("TransitionStatus", "apt-1", mock.MatchedBy(func(u *interfaces.StatusUpdate) bool {
		return u.From == types.StatusApproved && u.To == types.StatusCancelled &&
			u.CancelledBy == types.CancelledByPatient && !u.ShortNotice
	})).Return(true, nil)
	m.repo.On("GetByID", "apt-1").Return(cancelled, nil)
	m.notifier.On("AppointmentCancelled", cancelled, types.CancelledByPatient, "").Return(nil)

	_, err := service.Transition("acc-patient", "apt-1", &types.TransitionRequest{Action: types.ActionCancel})

	assert.NoError(t, err)
	m.repo.AssertExpectations(t)
}

func TestService_Cancel_WithinWindowIsShortNotice(t *testing.T) {
	service, m := setupTestService()

	apt := approvedAppointment()
	apt.ScheduledAt = time.Now().Add(2 * time.Hour)
	cancelled := approvedAppointment()
	cancelled.Status = types.StatusCancelled

	m.repo.On("GetByID", "apt-1").Return(apt, nil).Once()
	m.repo.On("TransitionStatus", "apt-1", mock.MatchedBy(func(u *interfaces.StatusUpdate) bool {
		return u.ShortNotice
	})).Return(true, nil)
	m.repo.On("GetByID", "apt-1").Return(cancelled, nil)
	m.notifier.On("AppointmentCancelled", mock.Anything, types.CancelledByPatient, "").Return(nil)

	_, err := service.Transition("acc-patient", "apt-1", &types.TransitionRequest{Action: types.ActionCancel})

	assert.NoError(t, err)
	m.repo.AssertExpectations(t)
}

func TestService_Cancel_PendingAllowed(t *testing.T) {
	service, m := setupTestService()

	apt := pendingAppointment()
	cancelled := pendingAppointment()
	cancelled.Status = types.StatusCancelled

	m.repo.On("GetByID", "apt-1").Return(apt, nil).Once()
	m.repo.On("TransitionStatus", "apt-1", mock.MatchedBy(func(u *interfaces.StatusUpdate) bool {
		return u.From == types.StatusPending && u.To == types.StatusCancelled &&
			u.CancelledBy == types.CancelledByPatient
	})).Return(true, nil)
	m.repo.On("GetByID", "apt-1").Return(cancelled, nil)
	m.notifier.On("AppointmentCancelled", cancelled, types.CancelledByPatient, "changed my mind").Return(nil)

	_, err := service.Transition("acc-patient", "apt-1", &types.TransitionRequest{
		Action: types.ActionCancel,
		Reason: "changed my mind",
	})

	assert.NoError(t, err)
	m.repo.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestService_Cancel_CompletedConflicts(t *testing.T) {
	service, m := setupTestService()

	completed := approvedAppointment()
	completed.Status = types.StatusCompleted
	m.repo.On("GetByID", "apt-1").Return(completed, nil)

	_, err := service.Transition("acc-patient", "apt-1", &types.TransitionRequest{Action: types.ActionCancel})

	assert.Error(t, err)
	assert.True(t, types.IsConflict(err))
	m.repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything)
}

func TestService_Complete_PatientForbidden(t *testing.T) {
	service, m := setupTestService()

	m.repo.On("GetByID", "apt-1").Return(approvedAppointment(), nil)
	m.resolver.On("ProviderAccountIDs", "acc-patient").Return([]string{"acc-patient"}, nil)

	_, err := service.Transition("acc-patient", "apt-1", &types.TransitionRequest{Action: types.ActionComplete})

	assert.Error(t, err)
	assert.True(t, types.IsForbidden(err))
}

func TestService_MarkMissed_EitherPartyAllowed(t *testing.T) {
	service, m := setupTestService()

	apt := approvedAppointment()
	missed := approvedAppointment()
	missed.Status = types.StatusMissed

	m.repo.On("GetByID", "apt-1").Return(apt, nil).Once()
	m.repo.On("TransitionStatus", "apt-1", mock.MatchedBy(func(u *interfaces.StatusUpdate) bool {
		return u.From == types.StatusApproved && u.To == types.StatusMissed && u.MissedAt != nil
	})).Return(true, nil)
	m.repo.On("GetByID", "apt-1").Return(missed, nil)
	m.notifier.On("AppointmentMissed", missed).Return(nil)

	_, err := service.Transition("acc-patient", "apt-1", &types.TransitionRequest{Action: types.ActionMarkMissed})

	assert.NoError(t, err)
	m.notifier.AssertExpectations(t)
}

func TestService_Reschedule_SpawnsLinkedPendingSuccessor(t *testing.T) {
	service, m := setupTestService()

	apt := approvedAppointment()
	rescheduled := approvedAppointment()
	rescheduled.Status = types.StatusRescheduled

	newSlot := time.Now().Add(96 * time.Hour)
	var successorID string

	m.repo.On("GetByID", "apt-1").Return(apt, nil).Once()
	m.repo.On("TransitionStatus", "apt-1", mock.MatchedBy(func(u *interfaces.StatusUpdate) bool {
		successorID = u.RescheduledToID
		return u.From == types.StatusApproved && u.To == types.StatusRescheduled &&
			u.RescheduledToID != "" && u.RescheduledAt != nil
	})).Return(true, nil)
	m.repo.On("GetByID", "apt-1").Return(rescheduled, nil)
	m.repo.On("Create", mock.MatchedBy(func(successor *types.Appointment) bool {
		return successor.ID == successorID &&
			successor.Status == types.StatusPending &&
			successor.RescheduledFromID == "apt-1" &&
			successor.ScheduledAt.Equal(newSlot) &&
			successor.PatientAccountID == "acc-patient" &&
			successor.ProviderAccountID == "acc-provider"
	})).Return(nil)
	m.notifier.On("AppointmentRescheduled", rescheduled, mock.Anything).Return(nil)

	result, err := service.Reschedule("acc-patient", "apt-1", &types.RescheduleRequest{ScheduledAt: newSlot})

	require.NoError(t, err)
	assert.Equal(t, types.StatusRescheduled, result.Original.Status)
	assert.Equal(t, types.StatusPending, result.Successor.Status)
	assert.Equal(t, "apt-1", result.Successor.RescheduledFromID)
	m.repo.AssertExpectations(t)
}

func TestService_Reschedule_ProviderForbidden(t *testing.T) {
	service, m := setupTestService()

	m.repo.On("GetByID", "apt-1").Return(approvedAppointment(), nil)

	_, err := service.Reschedule("acc-provider", "apt-1", &types.RescheduleRequest{
		ScheduledAt: time.Now().Add(96 * time.Hour),
	})

	assert.Error(t, err)
	assert.True(t, types.IsForbidden(err))
}

func TestService_Reschedule_TerminalConflicts(t *testing.T) {
	service, m := setupTestService()

	apt := approvedAppointment()
	apt.Status = types.StatusCompleted
	m.repo.On("GetByID", "apt-1").Return(apt, nil)

	_, err := service.Reschedule("acc-patient", "apt-1", &types.RescheduleRequest{
		ScheduledAt: time.Now().Add(96 * time.Hour),
	})

	assert.Error(t, err)
	assert.True(t, types.IsConflict(err))
}

func TestService_ListAppointments_ProviderSeesBothSidesDeduplicated(t *testing.T) {
	service, m := setupTestService()

	shared := &types.Appointment{ID: "apt-1", PatientAccountID: "acc-dual", ProviderAccountID: "acc-other"}
	m.repo.On("ListByPatient", "acc-dual").Return([]*types.Appointment{shared}, nil)
	m.resolver.On("ProviderAccountIDs", "acc-dual").Return([]string{"acc-dual", "prof-1"}, nil)
	m.repo.On("ListByProvider", []string{"acc-dual", "prof-1"}).Return([]*types.Appointment{
		shared,
		{ID: "apt-2", PatientAccountID: "acc-x", ProviderAccountID: "prof-1"},
	}, nil)

	appointments, err := service.ListAppointments("acc-dual", types.RoleProvider)

	require.NoError(t, err)
	assert.Len(t, appointments, 2)
}

func TestService_ListAppointments_PatientSeesOnlyOwnBookings(t *testing.T) {
	service, m := setupTestService()

	m.repo.On("ListByPatient", "acc-1").Return([]*types.Appointment{{ID: "apt-1"}}, nil)

	appointments, err := service.ListAppointments("acc-1", types.RolePatient)

	require.NoError(t, err)
	assert.Len(t, appointments, 1)
	m.repo.AssertNotCalled(t, "ListByProvider", mock.Anything)
}

func TestService_SweepMissed_MarksOverdueAndSkipsRaced(t *testing.T) {
	service, m := setupTestService()

	now := time.Now().UTC()
	a := approvedAppointment()
	a.ID = "apt-a"
	b := approvedAppointment()
	b.ID = "apt-b"

	aMissed := approvedAppointment()
	aMissed.ID = "apt-a"
	aMissed.Status = types.StatusMissed
	bRaced := approvedAppointment()
	bRaced.ID = "apt-b"
	bRaced.Status = types.StatusCancelled

	m.repo.On("ListOverdue", now).Return([]*types.Appointment{a, b}, nil)

	m.repo.On("TransitionStatus", "apt-a", mock.Anything).Return(true, nil)
	m.repo.On("GetByID", "apt-a").Return(aMissed, nil)
	m.notifier.On("AppointmentMissed", aMissed).Return(nil)

	// apt-b was cancelled between the listing and the write
	m.repo.On("TransitionStatus", "apt-b", mock.Anything).Return(false, nil)
	m.repo.On("GetByID", "apt-b").Return(bRaced, nil)

	marked, err := service.SweepMissed(now)

	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	m.notifier.AssertNumberOfCalls(t, "AppointmentMissed", 1)
}

func TestService_SweepMissed_SecondRunIsIdempotent(t *testing.T) {
	service, m := setupTestService()

	now := time.Now().UTC()
	m.repo.On("ListOverdue", now).Return([]*types.Appointment{}, nil)

	marked, err := service.SweepMissed(now)

	require.NoError(t, err)
	assert.Equal(t, 0, marked)
	m.repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything)
}

func TestService_GetAppointment_PartyOnly(t *testing.T) {
	service, m := setupTestService()

	m.repo.On("GetByID", "apt-1").Return(pendingAppointment(), nil)
	m.resolver.On("ProviderAccountIDs", "acc-stranger").Return([]string{"acc-stranger"}, nil)

	_, err := service.GetAppointment("acc-stranger", "apt-1")

	assert.Error(t, err)
	assert.True(t, types.IsForbidden(err))
}
