package types

import "time"

// NotificationKind classifies notification records
type NotificationKind string

const (
	NotificationKindAppointment NotificationKind = "appointment"
	NotificationKindGeneral     NotificationKind = "general"
)

// Notification is addressed by (AccountID, Role), not by account alone: a
// dual-role account only sees notifications tagged with its active role.
type Notification struct {
	ID            string           `json:"id" db:"id"`
	AccountID     string           `json:"account_id" db:"account_id"`
	Role          Role             `json:"role" db:"role"`
	Kind          NotificationKind `json:"kind" db:"kind"`
	Title         string           `json:"title" db:"title"`
	Body          string           `json:"body" db:"body"`
	AppointmentID string           `json:"appointment_id,omitempty" db:"appointment_id"`
	Read          bool             `json:"read" db:"read"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}
