package chat

import "time"

// MessageStatus tracks the latest lifecycle transition of a message.
type MessageStatus string

const (
	StatusSent     MessageStatus = "SENT"
	StatusEdited   MessageStatus = "EDITED"
	StatusRead     MessageStatus = "READ"
	StatusRecalled MessageStatus = "RECALLED"
)

// RecalledPlaceholder replaces the content of recalled messages in any output.
const RecalledPlaceholder = "This message has been recalled"

// Conversation pairs exactly two users for direct messaging. The pair is
// stored sorted so (X,Y) and (Y,X) resolve to the same row.
type Conversation struct {
	ID              int64     `json:"id"`
	ParticipantLow  string    `json:"participantLow"`
	ParticipantHigh string    `json:"participantHigh"`
	CreatedAt       time.Time `json:"createdAt"`
	LastMessageAt   time.Time `json:"lastMessageAt"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantLow == userID || c.ParticipantHigh == userID
}

// Peer returns the other participant's identifier.
func (c *Conversation) Peer(userID string) string {
	if c.ParticipantLow == userID {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}

// CanonicalPair sorts two identifiers into the fixed storage order.
func CanonicalPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Message is one entry in a conversation's append-only log.
type Message struct {
	ID             int64         `json:"id"`
	ConversationID int64         `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	IsRead         bool          `json:"isRead"`
	IsEdited       bool          `json:"isEdited"`
	IsRecalled     bool          `json:"isRecalled"`
	DeletedFor     []string      `json:"-"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Edits          []MessageEdit `json:"edits,omitempty"`
}

// DeletedForUser reports whether userID soft-deleted this message from their view.
func (m *Message) DeletedForUser(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}

// MessageEdit holds a message's content prior to one edit. Append-only.
type MessageEdit struct {
	ID           int64     `json:"id"`
	MessageID    int64     `json:"messageId"`
	PriorContent string    `json:"priorContent"`
	EditedAt     time.Time `json:"editedAt"`
}

// PeerIdentity is the directory-resolved identity of a conversation peer.
type PeerIdentity struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Identifier string `json:"identifier"`
}

// ConversationSummary is one row of the conversation-list view: the peer and
// the most recent message visible to the requesting user.
type ConversationSummary struct {
	ConversationID int64        `json:"conversationId"`
	Peer           PeerIdentity `json:"peer"`
	LastMessage    *Message     `json:"lastMessage"`
	LastMessageAt  time.Time    `json:"lastMessageAt"`
}
