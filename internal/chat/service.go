package chat

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/monitoring"
	"github.com/carelink/care-coordination/pkg/types"
)

// Service implements conversation gating and message flow between the two
// parties of an appointment
type Service struct {
	messages     interfaces.MessageStore
	appointments interfaces.AppointmentRepository
	resolver     interfaces.IdentityResolver
	broadcaster  interfaces.Broadcaster
	logger       *logger.Logger
}

// NewService creates a new chat service
func NewService(
	messages interfaces.MessageStore,
	appointments interfaces.AppointmentRepository,
	resolver interfaces.IdentityResolver,
	broadcaster interfaces.Broadcaster,
	log *logger.Logger,
) *Service {
	return &Service{
		messages:     messages,
		appointments: appointments,
		resolver:     resolver,
		broadcaster:  broadcaster,
		logger:       log,
	}
}

// requireParticipant resolves the conversation's two parties and checks the
// caller is one of them
func (s *Service) requireParticipant(conversationID, callerID string) (string, string, error) {
	a, b, ok := Participants(conversationID)
	if !ok {
		return "", "", types.NewValidationError(types.ErrCodeInvalidInput, "malformed conversation id", nil)
	}
	if callerID != a && callerID != b {
		return "", "", types.NewForbiddenError(types.ErrCodeNotParticipant, "not a participant of this conversation")
	}
	return a, b, nil
}

// IsUnlocked reports whether the conversation between two accounts accepts
// party-authored messages. Unlock requires at least one approved or completed
// appointment between the parties; terminal outcomes on other appointments
// never re-lock it.
func (s *Service) IsUnlocked(accountA, accountB string) (bool, error) {
	appointments, err := s.appointments.ListBetween(accountA, accountB)
	if err != nil {
		return false, err
	}
	return chatUnlocked(appointments), nil
}

// PostMessage appends a party-authored message to a conversation. The caller
// must be a participant and the conversation must be unlocked.
func (s *Service) PostMessage(callerID string, callerRole types.Role, conversationID string, req *types.PostMessageRequest) (*types.Message, error) {
	a, b, err := s.requireParticipant(conversationID, callerID)
	if err != nil {
		return nil, err
	}

	if req.Body == "" && req.FileURL == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "message body is required", nil)
	}

	unlocked, err := s.IsUnlocked(a, b)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, types.NewForbiddenError(types.ErrCodeChatLocked,
			"conversation is locked until an appointment is approved")
	}

	kind := req.Kind
	if kind == "" {
		kind = types.MessageKindText
	}
	if req.FileURL != "" {
		kind = types.MessageKindFile
	}

	m := &types.Message{
		ID:              uuid.New().String(),
		ConversationID:  conversationID,
		AppointmentID:   req.AppointmentID,
		SenderAccountID: callerID,
		SenderRole:      callerRole,
		Body:            req.Body,
		Kind:            kind,
		FileURL:         req.FileURL,
		ReadBy:          []string{callerID},
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.messages.Insert(m); err != nil {
		return nil, err
	}

	monitoring.RecordChatMessage(string(kind))
	s.broadcaster.Broadcast(conversationID, m)

	return m, nil
}

// PostSystemMessage appends a system-authored message to a conversation.
// System messages bypass the unlock gate; they are how the conversation
// announces appointment events, including the approval that unlocks it.
func (s *Service) PostSystemMessage(conversationID, body, appointmentID string) (*types.Message, error) {
	if _, _, ok := Participants(conversationID); !ok {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "malformed conversation id", nil)
	}

	m := &types.Message{
		ID:              uuid.New().String(),
		ConversationID:  conversationID,
		AppointmentID:   appointmentID,
		SenderAccountID: types.SystemSender,
		Body:            body,
		Kind:            types.MessageKindSystem,
		ReadBy:          []string{},
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.messages.Insert(m); err != nil {
		return nil, err
	}

	monitoring.RecordChatMessage(string(types.MessageKindSystem))
	s.broadcaster.Broadcast(conversationID, m)

	return m, nil
}

// History returns the merged message history of a conversation, including
// legacy appointment-keyed messages between the same two accounts. Rows with
// neither a body nor a file are dropped.
func (s *Service) History(callerID, conversationID string) ([]*types.Message, error) {
	a, b, err := s.requireParticipant(conversationID, callerID)
	if err != nil {
		return nil, err
	}

	raw, err := s.messages.ListForConversation(conversationID, a, b)
	if err != nil {
		return nil, err
	}

	messages := make([]*types.Message, 0, len(raw))
	for _, m := range raw {
		if m.Body == "" && m.FileURL == "" {
			continue
		}
		messages = append(messages, m)
	}

	s.fillSenderNames(messages)
	return messages, nil
}

// MarkRead records that the caller has seen the conversation's messages
func (s *Service) MarkRead(callerID, conversationID string) (int64, error) {
	a, b, err := s.requireParticipant(conversationID, callerID)
	if err != nil {
		return 0, err
	}
	return s.messages.MarkAllRead(conversationID, a, b, callerID)
}

// Conversation returns the summary of the caller's conversation with one
// partner, creating the view even when no message has been exchanged yet
func (s *Service) Conversation(callerID, partnerID string) (*types.ConversationSummary, error) {
	partner, err := s.resolver.GetAccount(partnerID)
	if err != nil {
		return nil, err
	}

	appointments, err := s.appointments.ListBetween(callerID, partnerID)
	if err != nil {
		return nil, err
	}

	return s.buildSummary(callerID, partner, appointments)
}

// ConversationSummaries lists every conversation the caller belongs to, one
// per distinct partner across the caller's appointments, newest activity
// first
func (s *Service) ConversationSummaries(callerID string) ([]*types.ConversationSummary, error) {
	appointments, err := s.allAppointmentsFor(callerID)
	if err != nil {
		return nil, err
	}

	byPartner := make(map[string][]*types.Appointment)
	for _, apt := range appointments {
		partnerID := apt.OtherParty(callerID)
		if partnerID == callerID {
			continue
		}
		byPartner[partnerID] = append(byPartner[partnerID], apt)
	}

	summaries := make([]*types.ConversationSummary, 0, len(byPartner))
	for partnerID, partnerAppointments := range byPartner {
		partner, err := s.resolver.GetAccount(partnerID)
		if err != nil {
			s.logger.WithError(err).Warnf("Skipping conversation with unresolvable account %s", partnerID)
			continue
		}
		summary, err := s.buildSummary(callerID, partner, partnerAppointments)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageTime.After(summaries[j].LastMessageTime)
	})

	return summaries, nil
}

// allAppointmentsFor returns the caller's appointments on both sides of the
// booking, deduplicated
func (s *Service) allAppointmentsFor(callerID string) ([]*types.Appointment, error) {
	asPatient, err := s.appointments.ListByPatient(callerID)
	if err != nil {
		return nil, err
	}

	providerIDs, err := s.resolver.ProviderAccountIDs(callerID)
	if err != nil {
		return nil, err
	}
	asProvider, err := s.appointments.ListByProvider(providerIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(asPatient)+len(asProvider))
	var all []*types.Appointment
	for _, apt := range append(asPatient, asProvider...) {
		if seen[apt.ID] {
			continue
		}
		seen[apt.ID] = true
		all = append(all, apt)
	}

	return all, nil
}

func (s *Service) buildSummary(callerID string, partner *types.Account, appointments []*types.Appointment) (*types.ConversationSummary, error) {
	conversationID := ConversationID(callerID, partner.ID)

	summary := &types.ConversationSummary{
		ConversationID: conversationID,
		PartnerID:      partner.ID,
		PartnerName:    partner.Name,
		PartnerRole:    partner.ActiveRole,
		ChatUnlocked:   chatUnlocked(appointments),
	}

	for _, apt := range appointments {
		summary.Appointments = append(summary.Appointments, types.AppointmentSummary{
			ID:          apt.ID,
			Status:      apt.Status,
			ScheduledAt: apt.ScheduledAt,
		})
	}

	last, err := s.messages.LastMessage(conversationID, callerID, partner.ID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		summary.LastMessage = last.Body
		summary.LastMessageTime = last.CreatedAt
	}

	unread, err := s.messages.UnreadCount(conversationID, callerID, partner.ID, callerID)
	if err != nil {
		return nil, err
	}
	summary.UnreadCount = unread

	return summary, nil
}

// fillSenderNames annotates messages with display names, best-effort. System
// messages keep the reserved sender id.
func (s *Service) fillSenderNames(messages []*types.Message) {
	names := make(map[string]string)
	for _, m := range messages {
		if m.SenderAccountID == types.SystemSender {
			continue
		}
		name, ok := names[m.SenderAccountID]
		if !ok {
			acc, err := s.resolver.GetAccount(m.SenderAccountID)
			if err != nil {
				names[m.SenderAccountID] = ""
				continue
			}
			name = acc.Name
			names[m.SenderAccountID] = name
		}
		m.SenderName = name
	}
}

// ensure Service satisfies the system-messenger contract used by the
// appointment notifier
var _ interfaces.SystemMessenger = (*Service)(nil)
