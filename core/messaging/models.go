package messaging

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Message is one direct message between two users. Replies carry the id of
// the thread root in ParentID; a thread is flat, one root plus its replies.
type Message struct {
	ID          int        `json:"id"`
	SenderID    int        `json:"sender_id"`
	RecipientID int        `json:"recipient_id"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	IsRead      bool       `json:"is_read"`
	SentAt      time.Time  `json:"sent_at"` // UTC
	ParentID    null.Int   `json:"parent_id"`
	Sender      *user.User `json:"sender,omitempty"`
	Recipient   *user.User `json:"recipient,omitempty"`
}

func (m *Message) IsParticipant(userID int) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

type ComposeMessage struct {
	RecipientID int    `json:"recipient_id" validate:"required"`
	Subject     string `json:"subject" validate:"required,max=200"`
	Body        string `json:"body" validate:"required"`
	ParentID    *int   `json:"parent_id"`
}

func (cm *ComposeMessage) Validate() error {
	cm.Subject = core.CleanString(cm.Subject)
	cm.Body = core.CleanString(cm.Body)
	return core.Validate.Struct(cm)
}
