package types

import "time"

// SystemSender is the reserved sender id for system-authored chat messages
const SystemSender = "system"

// MessageKind classifies chat messages
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindFile   MessageKind = "file"
	MessageKindSystem MessageKind = "system"
)

// Message is a single chat message. ConversationID is empty on legacy rows
// that were keyed only by AppointmentID; history retrieval reconciles both
// addressing schemes.
type Message struct {
	ID              string      `json:"id" db:"id"`
	ConversationID  string      `json:"conversation_id,omitempty" db:"conversation_id"`
	AppointmentID   string      `json:"appointment_id,omitempty" db:"appointment_id"`
	SenderAccountID string      `json:"sender_account_id" db:"sender_account_id"`
	SenderRole      Role        `json:"sender_role,omitempty" db:"sender_role"`
	SenderName      string      `json:"sender_name,omitempty" db:"-"`
	Body            string      `json:"body" db:"body"`
	Kind            MessageKind `json:"kind" db:"kind"`
	FileURL         string      `json:"file_url,omitempty" db:"file_url"`
	ReadBy          []string    `json:"read_by" db:"read_by"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// PostMessageRequest carries a party-authored message
type PostMessageRequest struct {
	Body          string      `json:"body"`
	Kind          MessageKind `json:"kind,omitempty"`
	FileURL       string      `json:"file_url,omitempty"`
	AppointmentID string      `json:"appointment_id,omitempty"`
}

// AppointmentSummary is the per-appointment digest attached to a conversation
type AppointmentSummary struct {
	ID          string            `json:"id"`
	Status      AppointmentStatus `json:"status"`
	ScheduledAt time.Time         `json:"scheduled_at"`
}

// ConversationSummary describes one doctor-patient pair conversation for the
// conversation list view
type ConversationSummary struct {
	ConversationID  string               `json:"conversation_id"`
	PartnerID       string               `json:"partner_id"`
	PartnerName     string               `json:"partner_name"`
	PartnerRole     Role                 `json:"partner_role"`
	LastMessage     string               `json:"last_message"`
	LastMessageTime time.Time            `json:"last_message_time"`
	UnreadCount     int                  `json:"unread_count"`
	ChatUnlocked    bool                 `json:"chat_unlocked"`
	Appointments    []AppointmentSummary `json:"appointments"`
}
