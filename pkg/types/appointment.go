package types

import "time"

// AppointmentStatus represents appointment lifecycle states
type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusApproved    AppointmentStatus = "approved"
	StatusRejected    AppointmentStatus = "rejected"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusMissed      AppointmentStatus = "missed"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

// Terminal reports whether the status admits no further transitions
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted, StatusMissed, StatusRescheduled:
		return true
	}
	return false
}

// AppointmentAction names a requested state transition
type AppointmentAction string

const (
	ActionApprove    AppointmentAction = "approve"
	ActionReject     AppointmentAction = "reject"
	ActionCancel     AppointmentAction = "cancel"
	ActionComplete   AppointmentAction = "complete"
	ActionMarkMissed AppointmentAction = "mark-missed"
)

// CancelledBy identifies which party triggered a terminal cancellation
type CancelledBy string

const (
	CancelledByProvider CancelledBy = "provider"
	CancelledByPatient  CancelledBy = "patient"
)

// Appointment is a booking request between a patient account and a provider
// account. PatientAccountID is always the account that initiated the request,
// even when that account also holds the provider role. ProviderAccountID is
// the canonical account id of the booked provider, not the profile id.
type Appointment struct {
	ID                string            `json:"id" db:"id"`
	PatientAccountID  string            `json:"patient_account_id" db:"patient_account_id"`
	ProviderAccountID string            `json:"provider_account_id" db:"provider_account_id"`
	AffiliationID     string            `json:"affiliation_id,omitempty" db:"affiliation_id"`
	ScheduledAt       time.Time         `json:"scheduled_at" db:"scheduled_at"`
	Status            AppointmentStatus `json:"status" db:"status"`
	Notes             string            `json:"notes,omitempty" db:"notes"`
	CancelledBy       CancelledBy       `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancelReason      string            `json:"cancel_reason,omitempty" db:"cancel_reason"`
	ShortNotice       bool              `json:"short_notice,omitempty" db:"short_notice"`
	RescheduledFromID string            `json:"rescheduled_from_id,omitempty" db:"rescheduled_from_id"`
	RescheduledToID   string            `json:"rescheduled_to_id,omitempty" db:"rescheduled_to_id"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	MissedAt          *time.Time        `json:"missed_at,omitempty" db:"missed_at"`
	RescheduledAt     *time.Time        `json:"rescheduled_at,omitempty" db:"rescheduled_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// OtherParty returns the account on the opposite side of the booking
func (a *Appointment) OtherParty(accountID string) string {
	if a.PatientAccountID == accountID {
		return a.ProviderAccountID
	}
	return a.PatientAccountID
}

// CreateAppointmentRequest carries the inputs for a new booking. ProviderRef
// may be either a provider-profile id or the owning account id.
type CreateAppointmentRequest struct {
	ProviderRef   string    `json:"provider_ref"`
	AffiliationID string    `json:"affiliation_id,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Notes         string    `json:"notes,omitempty"`
}

// TransitionRequest carries the inputs for a lifecycle transition
type TransitionRequest struct {
	Action AppointmentAction `json:"action"`
	Reason string            `json:"reason,omitempty"`
}

// RescheduleRequest carries the replacement time for a reschedule
type RescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

// RescheduleResult links a superseded appointment to its successor
type RescheduleResult struct {
	Original  *Appointment `json:"original"`
	Successor *Appointment `json:"successor"`
}
