package domain

import (
	"sort"
	"strings"
	"time"
)

// MessageTTL is how long a message stays readable before cleanup may remove it.
const MessageTTL = 30 * 24 * time.Hour

// MessageRecord is one direct message between two users. Participants always
// has exactly two members and ConversationID is derived from them.
type MessageRecord struct {
	ID             string    `firestore:"id" json:"id"`
	Participants   []string  `firestore:"participants" json:"participants"`
	FromUID        string    `firestore:"fromUid" json:"from_uid"`
	ToUID          string    `firestore:"toUid" json:"to_uid"`
	ConversationID string    `firestore:"conversationId" json:"conversation_id"`
	Body           string    `firestore:"body" json:"body"`
	CreatedAt      time.Time `firestore:"createdAt" json:"created_at"`
	ExpiresAt      time.Time `firestore:"expiresAt" json:"expires_at"`
	IsRead         bool      `firestore:"isRead" json:"is_read"`
}

// ConversationID derives the canonical conversation id for a participant
// pair: the two uids sorted lexically and joined with "_".
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// NewMessageRecord builds a message from sender to recipient, stamping the
// derived conversation id and the fixed TTL expiry.
func NewMessageRecord(id, fromUID, toUID, body string, now time.Time) MessageRecord {
	return MessageRecord{
		ID:             id,
		Participants:   []string{fromUID, toUID},
		FromUID:        fromUID,
		ToUID:          toUID,
		ConversationID: ConversationID(fromUID, toUID),
		Body:           body,
		CreatedAt:      now,
		ExpiresAt:      now.Add(MessageTTL),
	}
}

// RewriteParticipant replaces oldUID with newUID in the participant set and
// sender/recipient fields, recomputing the conversation id. It returns false
// when the record does not reference oldUID at all.
func (m *MessageRecord) RewriteParticipant(oldUID, newUID string) bool {
	changed := false
	for i, p := range m.Participants {
		if p == oldUID {
			m.Participants[i] = newUID
			changed = true
		}
	}
	if m.FromUID == oldUID {
		m.FromUID = newUID
		changed = true
	}
	if m.ToUID == oldUID {
		m.ToUID = newUID
		changed = true
	}
	if changed && len(m.Participants) == 2 {
		m.ConversationID = ConversationID(m.Participants[0], m.Participants[1])
	}
	return changed
}
