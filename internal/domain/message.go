package domain

import "time"

const MaxMessageLen = 4096

type MessageID string

// Message is owned by the message store. The relay only carries it from the
// store to the room's live connections, with the author already joined in.
type Message struct {
	ID        MessageID `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	Author    User      `json:"user"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func ValidateContent(content string) error {
	if content == "" {
		return ErrMessageEmpty
	}
	if len(content) > MaxMessageLen {
		return ErrMessageTooLong
	}
	return nil
}
