package chat

import (
	"strings"

	"github.com/carelink/care-coordination/pkg/types"
)

// ConversationID derives the canonical id for the conversation between two
// accounts. The two ids are sorted before joining, so either ordering of the
// participants yields the same conversation.
func ConversationID(accountA, accountB string) string {
	if accountA > accountB {
		accountA, accountB = accountB, accountA
	}
	return accountA + "_" + accountB
}

// Participants splits a conversation id back into its two account ids.
// Returns false when the id is not a well-formed two-party id.
func Participants(conversationID string) (string, string, bool) {
	parts := strings.SplitN(conversationID, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IsParticipant reports whether an account is one of the two parties of a
// conversation
func IsParticipant(conversationID, accountID string) bool {
	a, b, ok := Participants(conversationID)
	if !ok {
		return false
	}
	return accountID == a || accountID == b
}

// chatUnlocked reports whether any appointment between the two parties has
// reached a state that opens the conversation to party-authored messages
func chatUnlocked(appointments []*types.Appointment) bool {
	for _, apt := range appointments {
		if apt.Status == types.StatusApproved || apt.Status == types.StatusCompleted {
			return true
		}
	}
	return false
}
