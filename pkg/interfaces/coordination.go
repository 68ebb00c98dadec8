package interfaces

import (
	"time"

	"github.com/carelink/care-coordination/pkg/types"
)

// StatusUpdate carries the target state and transition-specific fields for a
// guarded status update. From is the expected prior status; the update only
// applies when the stored status still matches it.
type StatusUpdate struct {
	From            types.AppointmentStatus
	To              types.AppointmentStatus
	CancelledBy     types.CancelledBy
	CancelReason    string
	ShortNotice     bool
	MissedAt        *time.Time
	RescheduledAt   *time.Time
	RescheduledToID string
}

// AppointmentRepository defines appointment persistence. TransitionStatus is
// the single conditional write that makes a transition atomic: it reports
// false when the stored status no longer matches StatusUpdate.From.
type AppointmentRepository interface {
	Create(apt *types.Appointment) error
	GetByID(id string) (*types.Appointment, error)
	TransitionStatus(id string, update *StatusUpdate) (bool, error)
	ListByPatient(accountID string) ([]*types.Appointment, error)
	ListByProvider(providerAccountIDs []string) ([]*types.Appointment, error)
	ListBetween(accountA, accountB string) ([]*types.Appointment, error)
	ListOverdue(now time.Time) ([]*types.Appointment, error)
}

// DirectoryRepository defines read access to the account/provider directory
type DirectoryRepository interface {
	GetAccount(id string) (*types.Account, error)
	GetProviderProfile(id string) (*types.ProviderProfile, error)
	GetProviderProfileByAccount(accountID string) (*types.ProviderProfile, error)
	ListProviderProfilesByAccount(accountID string) ([]*types.ProviderProfile, error)
	AffiliationExists(id string) (bool, error)
	DefaultAffiliationID() (string, error)
	UpdateActiveRole(accountID string, role types.Role) error
}

// IdentityResolver resolves role-tagged account references
type IdentityResolver interface {
	// ResolveProvider accepts either a provider-profile id or an owning
	// account id and returns the profile, trying profile-id lookup first.
	ResolveProvider(ref string) (*types.ProviderProfile, error)

	// ProviderAccountIDs returns every provider-account identity attached to
	// the given account. Normally zero or one, but multiple profiles per
	// account are tolerated.
	ProviderAccountIDs(accountID string) ([]string, error)

	GetAccount(id string) (*types.Account, error)
}

// NotificationStore defines notification persistence, always scoped by the
// (account, role) pair
type NotificationStore interface {
	Create(n *types.Notification) error
	ListFor(accountID string, role types.Role, limit int) ([]*types.Notification, error)
	MarkRead(id, accountID string, role types.Role) (bool, error)
	Delete(id, accountID string, role types.Role) (bool, error)
	Clear(accountID string, role types.Role) (int64, error)
}

// NotificationService writes role-addressed notification records.
// Notify is best-effort relative to the appointment transition that
// triggered it: implementations log failures and never propagate them
// into the transition path.
type NotificationService interface {
	Notify(accountID string, role types.Role, kind types.NotificationKind, title, body, appointmentID string)
	ListFor(accountID string, role types.Role) ([]*types.Notification, error)
	MarkRead(id, accountID string, role types.Role) error
	Delete(id, accountID string, role types.Role) error
	Clear(accountID string, role types.Role) (int64, error)
}

// MessageStore defines chat message persistence, including the legacy
// appointment-keyed addressing scheme
type MessageStore interface {
	Insert(m *types.Message) error
	// ListForConversation returns conversation-keyed messages merged with
	// legacy appointment-keyed messages whose appointment links the same two
	// accounts, ordered by creation time.
	ListForConversation(conversationID, accountA, accountB string) ([]*types.Message, error)
	LastMessage(conversationID, accountA, accountB string) (*types.Message, error)
	UnreadCount(conversationID, accountA, accountB, readerAccountID string) (int, error)
	MarkAllRead(conversationID, accountA, accountB, readerAccountID string) (int64, error)
}

// SystemMessenger posts system-authored chat messages. Callable even when the
// conversation is still locked; system messages announce the unlock itself.
type SystemMessenger interface {
	PostSystemMessage(conversationID, body, appointmentID string) (*types.Message, error)
}

// Broadcaster fans a payload out to every live subscriber of a conversation
type Broadcaster interface {
	Broadcast(conversationID string, payload interface{})
}

// DeliverySender is the fire-and-forget side channel to external delivery
// services; failures never block the core flow
type DeliverySender interface {
	SendEmail(to, subject, body string) error
	SendWhatsApp(to, body string) error
}

// AppointmentNotifier fans out the per-transition notifications. Every method
// is best-effort: errors are returned for logging only and must not roll back
// the transition that triggered them.
type AppointmentNotifier interface {
	AppointmentCreated(apt *types.Appointment, patientActiveRole types.Role) error
	AppointmentApproved(apt *types.Appointment) error
	AppointmentRejected(apt *types.Appointment, reason string) error
	AppointmentCancelled(apt *types.Appointment, by types.CancelledBy, reason string) error
	AppointmentCompleted(apt *types.Appointment) error
	AppointmentMissed(apt *types.Appointment) error
	AppointmentRescheduled(original, successor *types.Appointment) error
}
