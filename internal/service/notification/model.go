package notification

import "time"

// Notification type tags.
const (
	TypeNewMessage        = "new_message"
	TypeMessageRead       = "message_read"
	TypeApplicationStatus = "application_status"
)

// Notification is a durable per-recipient event. The read flag only ever
// transitions false to true.
type Notification struct {
	ID          int64                  `json:"id"`
	RecipientID string                 `json:"recipientId"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	IsRead      bool                   `json:"isRead"`
	CreatedAt   time.Time              `json:"createdAt"`
}
