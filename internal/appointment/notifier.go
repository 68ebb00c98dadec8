package appointment

import (
	"fmt"

	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"

	"github.com/carelink/care-coordination/internal/chat"
)

// slotLayout renders appointment slots in notification copy
const slotLayout = "January 2, 2006 at 3:04 PM"

// Notifier implements the per-transition notification fan-out. Providers are
// always addressed under the provider role; the patient side is addressed
// under whatever role that account is currently operating as, so a provider
// who booked as a patient still sees the outcome.
type Notifier struct {
	resolver      interfaces.IdentityResolver
	notifications interfaces.NotificationService
	messenger     interfaces.SystemMessenger
	delivery      interfaces.DeliverySender
	logger        *logger.Logger
}

// NewNotifier creates a new appointment notifier
func NewNotifier(
	resolver interfaces.IdentityResolver,
	notifications interfaces.NotificationService,
	messenger interfaces.SystemMessenger,
	delivery interfaces.DeliverySender,
	log *logger.Logger,
) *Notifier {
	return &Notifier{
		resolver:      resolver,
		notifications: notifications,
		messenger:     messenger,
		delivery:      delivery,
		logger:        log,
	}
}

// parties resolves both accounts of an appointment
func (n *Notifier) parties(apt *types.Appointment) (patient, provider *types.Account, err error) {
	patient, err = n.resolver.GetAccount(apt.PatientAccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve patient %s: %w", apt.PatientAccountID, err)
	}
	provider, err = n.resolver.GetAccount(apt.ProviderAccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve provider %s: %w", apt.ProviderAccountID, err)
	}
	return patient, provider, nil
}

func (n *Notifier) systemMessage(apt *types.Appointment, body string) {
	conversationID := chat.ConversationID(apt.PatientAccountID, apt.ProviderAccountID)
	if _, err := n.messenger.PostSystemMessage(conversationID, body, apt.ID); err != nil {
		n.logger.WithAppointment(apt.ID).WithError(err).Warn("Failed to post system chat message")
	}
}

func (n *Notifier) email(account *types.Account, subject, body string) {
	if account.Email == "" {
		return
	}
	if err := n.delivery.SendEmail(account.Email, subject, body); err != nil {
		n.logger.WithAccount(account.ID).WithError(err).Warn("Failed to send email")
	}
}

func (n *Notifier) whatsApp(account *types.Account, body string) {
	if account.Mobile == "" {
		return
	}
	if err := n.delivery.SendWhatsApp(account.Mobile, body); err != nil {
		n.logger.WithAccount(account.ID).WithError(err).Warn("Failed to send WhatsApp message")
	}
}

// AppointmentCreated notifies the provider about the pending request and the
// patient about its submission. The patient is addressed under the role they
// booked with.
func (n *Notifier) AppointmentCreated(apt *types.Appointment, patientActiveRole types.Role) error {
	patient, provider, err := n.parties(apt)
	if err != nil {
		return err
	}
	slot := apt.ScheduledAt.Format(slotLayout)

	notes := apt.Notes
	if notes == "" {
		notes = "None"
	}
	n.notifications.Notify(provider.ID, types.RoleProvider, types.NotificationKindAppointment,
		"New Appointment Request",
		fmt.Sprintf("Patient %s has requested an appointment with you on %s. Please approve or reject this request. Notes: %s",
			patient.Name, slot, notes),
		apt.ID)

	n.notifications.Notify(patient.ID, patientActiveRole, types.NotificationKindAppointment,
		"Appointment Requested",
		fmt.Sprintf("Your appointment request with %s for %s is pending approval.", provider.Name, slot),
		apt.ID)

	n.systemMessage(apt, fmt.Sprintf("New appointment booked for %s. Awaiting provider approval.", slot))
	n.email(provider, "New Appointment Request",
		fmt.Sprintf("Patient %s has requested an appointment on %s.", patient.Name, slot))

	return nil
}

// AppointmentApproved notifies the patient and announces the unlock in chat
func (n *Notifier) AppointmentApproved(apt *types.Appointment) error {
	patient, provider, err := n.parties(apt)
	if err != nil {
		return err
	}
	slot := apt.ScheduledAt.Format(slotLayout)

	n.notifications.Notify(patient.ID, patient.ActiveRole, types.NotificationKindAppointment,
		"Appointment Approved",
		fmt.Sprintf("Your appointment with %s on %s has been approved.", provider.Name, slot),
		"")

	n.systemMessage(apt, fmt.Sprintf("Appointment for %s has been approved by %s. You can now chat!", slot, provider.Name))
	n.email(patient, "Appointment Approved",
		fmt.Sprintf("Your appointment with %s on %s has been approved.", provider.Name, slot))
	n.whatsApp(patient, fmt.Sprintf("Your appointment with %s on %s has been approved.", provider.Name, slot))

	return nil
}

// AppointmentRejected notifies the patient that the provider declined
func (n *Notifier) AppointmentRejected(apt *types.Appointment, reason string) error {
	patient, provider, err := n.parties(apt)
	if err != nil {
		return err
	}
	slot := apt.ScheduledAt.Format(slotLayout)

	body := fmt.Sprintf("Your appointment with %s on %s has been rejected.", provider.Name, slot)
	chatBody := fmt.Sprintf("Appointment for %s has been rejected by %s.", slot, provider.Name)
	if reason != "" {
		body += " Reason: " + reason
		chatBody += " Reason: " + reason
	}

	n.notifications.Notify(patient.ID, patient.ActiveRole, types.NotificationKindAppointment,
		"Appointment Rejected", body, "")

	n.systemMessage(apt, chatBody)
	return nil
}

// AppointmentCancelled notifies the party that did not trigger the
// cancellation
func (n *Notifier) AppointmentCancelled(apt *types.Appointment, by types.CancelledBy, reason string) error {
	patient, provider, err := n.parties(apt)
	if err != nil {
		return err
	}
	slot := apt.ScheduledAt.Format(slotLayout)

	var chatBody string
	if by == types.CancelledByProvider {
		body := fmt.Sprintf("Your appointment with %s on %s has been cancelled.", provider.Name, slot)
		if reason != "" {
			body += " Reason: " + reason
		}
		n.notifications.Notify(patient.ID, patient.ActiveRole, types.NotificationKindAppointment,
			"Appointment Cancelled", body, "")
		chatBody = fmt.Sprintf("Appointment for %s has been cancelled by %s.", slot, provider.Name)
	} else {
		body := fmt.Sprintf("Patient %s has cancelled their appointment on %s.", patient.Name, slot)
		if reason != "" {
			body += " Reason: " + reason
		}
		n.notifications.Notify(provider.ID, types.RoleProvider, types.NotificationKindAppointment,
			"Appointment Cancelled", body, "")
		chatBody = fmt.Sprintf("Appointment for %s has been cancelled by %s.", slot, patient.Name)
	}
	if reason != "" {
		chatBody += " Reason: " + reason
	}

	n.systemMessage(apt, chatBody)
	return nil
}

// AppointmentCompleted notifies the patient and closes out the visit in chat
func (n *Notifier) AppointmentCompleted(apt *types.Appointment) error {
	patient, provider, err := n.parties(apt)
	if err != nil {
		return err
	}
	slot := apt.ScheduledAt.Format(slotLayout)

	n.notifications.Notify(patient.ID, patient.ActiveRole, types.NotificationKindAppointment,
		"Appointment Completed",
		fmt.Sprintf("Your appointment with %s on %s has been completed. Thank you for visiting!", provider.Name, slot),
		"")

	n.systemMessage(apt, fmt.Sprintf("Appointment for %s has been completed. Thank you for choosing %s!", slot, provider.Name))
	return nil
}

// AppointmentMissed notifies both parties. The manual path and the sweep
// share this fan-out; no chat message is posted for a missed slot.
func (n *Notifier) AppointmentMissed(apt *types.Appointment) error {
	patient, provider, err := n.parties(apt)
	if err != nil {
		return err
	}
	slot := apt.ScheduledAt.Format(slotLayout)

	n.notifications.Notify(patient.ID, patient.ActiveRole, types.NotificationKindAppointment,
		"Appointment Missed",
		fmt.Sprintf("Your appointment with %s on %s was marked as missed. Please reschedule.", provider.Name, slot),
		"")

	n.notifications.Notify(provider.ID, types.RoleProvider, types.NotificationKindAppointment,
		"Appointment Missed",
		fmt.Sprintf("Appointment with patient %s on %s was marked as missed.", patient.Name, slot),
		"")

	return nil
}

// AppointmentRescheduled notifies the provider about the replacement request
// awaiting approval, and the patient about the move
func (n *Notifier) AppointmentRescheduled(original, successor *types.Appointment) error {
	patient, provider, err := n.parties(original)
	if err != nil {
		return err
	}
	oldSlot := original.ScheduledAt.Format(slotLayout)
	newSlot := successor.ScheduledAt.Format(slotLayout)

	n.notifications.Notify(provider.ID, types.RoleProvider, types.NotificationKindAppointment,
		"Appointment Rescheduled",
		fmt.Sprintf("Patient %s has rescheduled their appointment from %s to %s. Please approve the new appointment.",
			patient.Name, oldSlot, newSlot),
		successor.ID)

	n.notifications.Notify(patient.ID, patient.ActiveRole, types.NotificationKindAppointment,
		"Appointment Rescheduled",
		fmt.Sprintf("Your appointment with %s has been rescheduled from %s to %s. Awaiting provider approval.",
			provider.Name, oldSlot, newSlot),
		"")

	return nil
}

var _ interfaces.AppointmentNotifier = (*Notifier)(nil)
