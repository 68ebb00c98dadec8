package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/monitoring"
	"github.com/carelink/care-coordination/pkg/types"
)

// shortNoticeWindow is the cutoff under which a cancellation counts as
// short-notice
const shortNoticeWindow = 24 * time.Hour

// Service implements the appointment lifecycle. Every transition goes
// through one guarded conditional write; when two actors race, exactly one
// write matches and the loser resolves to a conflict.
type Service struct {
	repo      interfaces.AppointmentRepository
	resolver  interfaces.IdentityResolver
	directory interfaces.DirectoryRepository
	notifier  interfaces.AppointmentNotifier
	logger    *logger.Logger
}

// NewService creates a new appointment service
func NewService(
	repo interfaces.AppointmentRepository,
	resolver interfaces.IdentityResolver,
	directory interfaces.DirectoryRepository,
	notifier interfaces.AppointmentNotifier,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		directory: directory,
		notifier:  notifier,
		logger:    log,
	}
}

// CreateAppointment books a new pending appointment. The provider reference
// may be a profile id or the owning account id; the stored appointment always
// carries the canonical provider account id.
func (s *Service) CreateAppointment(callerID string, callerRole types.Role, req *types.CreateAppointmentRequest) (*types.Appointment, error) {
	if req.ScheduledAt.IsZero() {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "scheduled_at is required", nil)
	}

	profile, err := s.resolver.ResolveProvider(req.ProviderRef)
	if err != nil {
		return nil, err
	}
	if !profile.Bookable() {
		return nil, types.NewConflictError(types.ErrCodeConflict, "provider is not accepting appointments")
	}
	if profile.AccountID == callerID {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "cannot book an appointment with yourself", nil)
	}

	affiliationID := req.AffiliationID
	if affiliationID != "" {
		exists, err := s.directory.AffiliationExists(affiliationID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, types.NewValidationError(types.ErrCodeInvalidInput, "unknown affiliation", nil)
		}
	} else if profile.AffiliationID != "" {
		affiliationID = profile.AffiliationID
	} else {
		// Fall back to the default facility; a missing default is tolerated
		defaultID, err := s.directory.DefaultAffiliationID()
		if err != nil && !types.IsNotFound(err) {
			return nil, err
		}
		affiliationID = defaultID
	}

	now := time.Now().UTC()
	apt := &types.Appointment{
		ID:                uuid.New().String(),
		PatientAccountID:  callerID,
		ProviderAccountID: profile.AccountID,
		AffiliationID:     affiliationID,
		ScheduledAt:       req.ScheduledAt,
		Status:            types.StatusPending,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(apt); err != nil {
		monitoring.RecordTransition("create", "error")
		return nil, err
	}
	monitoring.RecordTransition("create", "ok")

	if err := s.notifier.AppointmentCreated(apt, callerRole); err != nil {
		s.logger.WithAppointment(apt.ID).WithError(err).Warn("Failed to fan out creation notifications")
	}

	return apt, nil
}

// GetAppointment retrieves an appointment the caller is a party of
func (s *Service) GetAppointment(callerID, id string) (*types.Appointment, error) {
	apt, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.requireParty(callerID, apt); err != nil {
		return nil, err
	}
	return apt, nil
}

// ListAppointments returns the caller's appointments under their active
// role. A provider sees both sides of the desk: bookings addressed to them
// and bookings they made as a patient, deduplicated.
func (s *Service) ListAppointments(callerID string, callerRole types.Role) ([]*types.Appointment, error) {
	asPatient, err := s.repo.ListByPatient(callerID)
	if err != nil {
		return nil, err
	}

	if callerRole != types.RoleProvider {
		return asPatient, nil
	}

	providerIDs, err := s.resolver.ProviderAccountIDs(callerID)
	if err != nil {
		return nil, err
	}
	asProvider, err := s.repo.ListByProvider(providerIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(asProvider)+len(asPatient))
	var all []*types.Appointment
	for _, apt := range append(asProvider, asPatient...) {
		if seen[apt.ID] {
			continue
		}
		seen[apt.ID] = true
		all = append(all, apt)
	}

	return all, nil
}

// Transition applies a lifecycle action to an appointment
func (s *Service) Transition(callerID string, id string, req *types.TransitionRequest) (*types.Appointment, error) {
	apt, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case types.ActionApprove:
		return s.approve(callerID, apt)
	case types.ActionReject:
		return s.reject(callerID, apt, req.Reason)
	case types.ActionCancel:
		return s.cancel(callerID, apt, req.Reason)
	case types.ActionComplete:
		return s.complete(callerID, apt)
	case types.ActionMarkMissed:
		return s.markMissedManually(callerID, apt)
	default:
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("unknown action: %s", req.Action), nil)
	}
}

func (s *Service) approve(callerID string, apt *types.Appointment) (*types.Appointment, error) {
	if err := s.requireProviderParty(callerID, apt); err != nil {
		monitoring.RecordTransition("approve", "forbidden")
		return nil, err
	}

	updated, err := s.applyTransition(apt, "approve", &interfaces.StatusUpdate{
		From: types.StatusPending,
		To:   types.StatusApproved,
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.AppointmentApproved(updated); err != nil {
		s.logger.WithAppointment(apt.ID).WithError(err).Warn("Failed to fan out approval notifications")
	}
	return updated, nil
}

func (s *Service) reject(callerID string, apt *types.Appointment, reason string) (*types.Appointment, error) {
	if err := s.requireProviderParty(callerID, apt); err != nil {
		monitoring.RecordTransition("reject", "forbidden")
		return nil, err
	}

	updated, err := s.applyTransition(apt, "reject", &interfaces.StatusUpdate{
		From:         types.StatusPending,
		To:           types.StatusRejected,
		CancelReason: reason,
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.AppointmentRejected(updated, reason); err != nil {
		s.logger.WithAppointment(apt.ID).WithError(err).Warn("Failed to fan out rejection notifications")
	}
	return updated, nil
}

func (s *Service) cancel(callerID string, apt *types.Appointment, reason string) (*types.Appointment, error) {
	by, err := s.cancellingParty(callerID, apt)
	if err != nil {
		monitoring.RecordTransition("cancel", "forbidden")
		return nil, err
	}
	if apt.Status != types.StatusPending && apt.Status != types.StatusApproved {
		monitoring.RecordTransition("cancel", "conflict")
		return nil, types.NewConflictError(types.ErrCodeConflict,
			fmt.Sprintf("appointment in status %s cannot be cancelled", apt.Status))
	}

	shortNotice := time.Until(apt.ScheduledAt) < shortNoticeWindow

	updated, err := s.applyTransition(apt, "cancel", &interfaces.StatusUpdate{
		From:         apt.Status,
		To:           types.StatusCancelled,
		CancelledBy:  by,
		CancelReason: reason,
		ShortNotice:  shortNotice,
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.AppointmentCancelled(updated, by, reason); err != nil {
		s.logger.WithAppointment(apt.ID).WithError(err).Warn("Failed to fan out cancellation notifications")
	}
	return updated, nil
}

func (s *Service) complete(callerID string, apt *types.Appointment) (*types.Appointment, error) {
	if err := s.requireProviderParty(callerID, apt); err != nil {
		monitoring.RecordTransition("complete", "forbidden")
		return nil, err
	}

	updated, err := s.applyTransition(apt, "complete", &interfaces.StatusUpdate{
		From: types.StatusApproved,
		To:   types.StatusCompleted,
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.AppointmentCompleted(updated); err != nil {
		s.logger.WithAppointment(apt.ID).WithError(err).Warn("Failed to fan out completion notifications")
	}
	return updated, nil
}

// markMissedManually lets either party record a no-show
func (s *Service) markMissedManually(callerID string, apt *types.Appointment) (*types.Appointment, error) {
	if err := s.requireParty(callerID, apt); err != nil {
		monitoring.RecordTransition("mark-missed", "forbidden")
		return nil, err
	}
	return s.markMissed(apt, time.Now().UTC())
}

// markMissed is the single approved-to-missed path shared by the manual
// action and the sweep
func (s *Service) markMissed(apt *types.Appointment, now time.Time) (*types.Appointment, error) {
	updated, err := s.applyTransition(apt, "mark-missed", &interfaces.StatusUpdate{
		From:     types.StatusApproved,
		To:       types.StatusMissed,
		MissedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.AppointmentMissed(updated); err != nil {
		s.logger.WithAppointment(apt.ID).WithError(err).Warn("Failed to fan out missed notifications")
	}
	return updated, nil
}

// Reschedule supersedes an appointment with a fresh pending request at a new
// time. Only the patient side may reschedule; the original becomes terminal
// and the successor starts the approval cycle over.
func (s *Service) Reschedule(callerID string, id string, req *types.RescheduleRequest) (*types.RescheduleResult, error) {
	if req.ScheduledAt.IsZero() {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "scheduled_at is required", nil)
	}

	apt, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if apt.PatientAccountID != callerID {
		monitoring.RecordTransition("reschedule", "forbidden")
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "only the booking patient can reschedule")
	}
	if apt.Status != types.StatusPending && apt.Status != types.StatusApproved {
		monitoring.RecordTransition("reschedule", "conflict")
		return nil, types.NewConflictError(types.ErrCodeConflict,
			fmt.Sprintf("appointment in status %s cannot be rescheduled", apt.Status))
	}

	now := time.Now().UTC()
	successorID := uuid.New().String()

	updated, err := s.applyTransition(apt, "reschedule", &interfaces.StatusUpdate{
		From:            apt.Status,
		To:              types.StatusRescheduled,
		RescheduledAt:   &now,
		RescheduledToID: successorID,
	})
	if err != nil {
		return nil, err
	}

	successor := &types.Appointment{
		ID:                successorID,
		PatientAccountID:  apt.PatientAccountID,
		ProviderAccountID: apt.ProviderAccountID,
		AffiliationID:     apt.AffiliationID,
		ScheduledAt:       req.ScheduledAt,
		Status:            types.StatusPending,
		Notes:             apt.Notes,
		RescheduledFromID: apt.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(successor); err != nil {
		s.logger.WithAppointment(apt.ID).WithError(err).Error("Rescheduled appointment has no successor record")
		return nil, err
	}

	if err := s.notifier.AppointmentRescheduled(updated, successor); err != nil {
		s.logger.WithAppointment(apt.ID).WithError(err).Warn("Failed to fan out reschedule notifications")
	}

	return &types.RescheduleResult{Original: updated, Successor: successor}, nil
}

// SweepMissed marks every approved appointment whose slot has passed as
// missed, through the same guarded transition as the manual path. Already
// transitioned rows resolve to conflicts and are skipped, which makes the
// sweep idempotent and safe to run concurrently.
func (s *Service) SweepMissed(now time.Time) (int, error) {
	overdue, err := s.repo.ListOverdue(now)
	if err != nil {
		monitoring.RecordSweep(0, err)
		return 0, err
	}

	marked := 0
	for _, apt := range overdue {
		if _, err := s.markMissed(apt, now); err != nil {
			if types.IsConflict(err) || types.IsNotFound(err) {
				continue
			}
			s.logger.WithAppointment(apt.ID).WithError(err).Error("Sweep failed to mark appointment missed")
			continue
		}
		marked++
	}

	monitoring.RecordSweep(marked, nil)
	s.logger.WithFields(map[string]interface{}{
		"checked": len(overdue),
		"marked":  marked,
	}).Info("Missed-appointment sweep finished")

	return marked, nil
}

// applyTransition runs the guarded conditional write and maps a non-matching
// write back to what actually happened
func (s *Service) applyTransition(apt *types.Appointment, action string, update *interfaces.StatusUpdate) (*types.Appointment, error) {
	if apt.Status != update.From {
		monitoring.RecordTransition(action, "conflict")
		return nil, s.conflictFor(apt, update)
	}

	ok, err := s.repo.TransitionStatus(apt.ID, update)
	if err != nil {
		monitoring.RecordTransition(action, "error")
		return nil, err
	}
	if !ok {
		// Lost a race: the row moved since we read it. Re-read to tell a
		// concurrent transition apart from a deleted row.
		current, err := s.repo.GetByID(apt.ID)
		if err != nil {
			monitoring.RecordTransition(action, "not_found")
			return nil, err
		}
		monitoring.RecordTransition(action, "conflict")
		return nil, s.conflictFor(current, update)
	}

	monitoring.RecordTransition(action, "ok")
	return s.repo.GetByID(apt.ID)
}

func (s *Service) conflictFor(apt *types.Appointment, update *interfaces.StatusUpdate) error {
	return types.NewConflictError(types.ErrCodeConflict,
		fmt.Sprintf("appointment is %s, expected %s", apt.Status, update.From))
}

// requireParty checks the caller is on either side of the appointment,
// counting every provider identity the caller's account owns
func (s *Service) requireParty(callerID string, apt *types.Appointment) error {
	if apt.PatientAccountID == callerID {
		return nil
	}
	return s.requireProviderParty(callerID, apt)
}

// requireProviderParty checks the caller holds the provider side of the
// appointment under any of their provider identities
func (s *Service) requireProviderParty(callerID string, apt *types.Appointment) error {
	providerIDs, err := s.resolver.ProviderAccountIDs(callerID)
	if err != nil {
		return err
	}
	for _, pid := range providerIDs {
		if apt.ProviderAccountID == pid {
			return nil
		}
	}
	return types.NewForbiddenError(types.ErrCodeForbidden, "not a party of this appointment")
}

// cancellingParty identifies which side of the appointment the caller is on
func (s *Service) cancellingParty(callerID string, apt *types.Appointment) (types.CancelledBy, error) {
	if apt.PatientAccountID == callerID {
		return types.CancelledByPatient, nil
	}
	if err := s.requireProviderParty(callerID, apt); err != nil {
		return "", err
	}
	return types.CancelledByProvider, nil
}
