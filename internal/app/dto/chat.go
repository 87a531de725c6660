package dto

import (
	"time"

	domainchat "bchat/internal/domain/chat"
)

// Conversation describes conversation metadata. Names are returned as
// stored; empty names get their display fallback on the client.
type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	IsGroup   bool      `json:"is_group"`
	CreatedBy string    `json:"created_by"`
	MemberIDs []string  `json:"member_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LastMessage *Message `json:"last_message,omitempty"`
}

type ConversationList struct {
	Items []Conversation `json:"items"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Seq            uint64    `json:"seq"`
}

type MessageList struct {
	Items []Message `json:"items"`
}

func MapConversation(conv *domainchat.Conversation) Conversation {
	if conv == nil {
		return Conversation{}
	}
	return Conversation{
		ID:        conv.ID,
		Name:      conv.Name,
		IsGroup:   conv.IsGroup,
		CreatedBy: conv.CreatedBy,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
}

func MapMessage(msg *domainchat.Message) Message {
	if msg == nil {
		return Message{}
	}
	return Message{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		ImageURL:       msg.ImageURL,
		CreatedAt:      msg.CreatedAt,
		Seq:            msg.Seq,
	}
}

func MapMessages(messages []domainchat.Message) MessageList {
	items := make([]Message, 0, len(messages))
	for i := range messages {
		items = append(items, MapMessage(&messages[i]))
	}
	return MessageList{Items: items}
}
