package chat

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrMessageIDRequired = errors.New("chat: message id is required")
	ErrSenderRequired    = errors.New("chat: sender is required")
	ErrEmptyMessage      = errors.New("chat: a message needs text content or an image")
)

// Message is an immutable log entry. It carries text content or an
// image reference or both, never neither. Ordering is by creation time
// with Seq breaking ties in insertion order.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	ImageURL       string
	CreatedAt      time.Time
	Seq            uint64
}

type MessageParams struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	ImageURL       string
	Now            time.Time
}

func NewMessage(params MessageParams) (*Message, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return nil, ErrMessageIDRequired
	}
	sender := strings.TrimSpace(params.SenderID)
	if sender == "" {
		return nil, ErrSenderRequired
	}
	content := strings.TrimSpace(params.Content)
	image := strings.TrimSpace(params.ImageURL)
	if content == "" && image == "" {
		return nil, ErrEmptyMessage
	}
	return &Message{
		ID:             id,
		ConversationID: strings.TrimSpace(params.ConversationID),
		SenderID:       sender,
		Content:        content,
		ImageURL:       image,
		CreatedAt:      normalizeTime(params.Now),
	}, nil
}
