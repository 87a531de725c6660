package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"bchat/internal/domain/chat"
	"bchat/internal/domain/profile"
)

// wireEvent is the JSON shape shared by the Kafka relay and the
// websocket delivery path.
type wireEvent struct {
	Seq          uint64            `json:"seq"`
	Table        Table             `json:"table"`
	Type         EventType         `json:"type"`
	Origin       string            `json:"origin,omitempty"`
	Profile      *wireProfile      `json:"profile,omitempty"`
	Conversation *wireConversation `json:"conversation,omitempty"`
	Membership   *wireMembership   `json:"membership,omitempty"`
	Message      *wireMessage      `json:"message,omitempty"`
}

type wireProfile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type wireConversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	IsGroup   bool      `json:"is_group"`
	CreatedBy string    `json:"created_by"`
	DirectKey string    `json:"direct_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type wireMembership struct {
	ConversationID string    `json:"conversation_id"`
	ProfileID      string    `json:"profile_id"`
	JoinedAt       time.Time `json:"joined_at"`
}

type wireMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Seq            uint64    `json:"seq"`
}

// MarshalEvent renders the event for transport.
func MarshalEvent(ev Event) ([]byte, error) {
	out := wireEvent{
		Seq:    ev.Seq,
		Table:  ev.Table,
		Type:   ev.Type,
		Origin: ev.Origin,
	}
	switch row := ev.Row.(type) {
	case *profile.Profile:
		out.Profile = &wireProfile{
			ID:          row.ID,
			DisplayName: row.DisplayName,
			AvatarURL:   row.AvatarURL,
			Online:      row.Online,
			LastSeen:    row.LastSeen,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		}
	case *chat.Conversation:
		out.Conversation = &wireConversation{
			ID:        row.ID,
			Name:      row.Name,
			IsGroup:   row.IsGroup,
			CreatedBy: row.CreatedBy,
			DirectKey: row.DirectKey,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		}
	case *chat.Membership:
		out.Membership = &wireMembership{
			ConversationID: row.ConversationID,
			ProfileID:      row.ProfileID,
			JoinedAt:       row.JoinedAt,
		}
	case *chat.Message:
		out.Message = &wireMessage{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			SenderID:       row.SenderID,
			Content:        row.Content,
			ImageURL:       row.ImageURL,
			CreatedAt:      row.CreatedAt,
			Seq:            row.Seq,
		}
	default:
		return nil, fmt.Errorf("feed: unsupported row type %T", ev.Row)
	}
	return json.Marshal(out)
}

// UnmarshalEvent decodes a transported event back into domain rows.
func UnmarshalEvent(data []byte) (Event, error) {
	var in wireEvent
	if err := json.Unmarshal(data, &in); err != nil {
		return Event{}, fmt.Errorf("feed: decode event: %w", err)
	}
	ev := Event{
		Seq:    in.Seq,
		Table:  in.Table,
		Type:   in.Type,
		Origin: in.Origin,
	}
	switch {
	case in.Profile != nil:
		ev.Row = &profile.Profile{
			ID:          in.Profile.ID,
			DisplayName: in.Profile.DisplayName,
			AvatarURL:   in.Profile.AvatarURL,
			Online:      in.Profile.Online,
			LastSeen:    in.Profile.LastSeen,
			CreatedAt:   in.Profile.CreatedAt,
			UpdatedAt:   in.Profile.UpdatedAt,
		}
	case in.Conversation != nil:
		ev.Row = &chat.Conversation{
			ID:        in.Conversation.ID,
			Name:      in.Conversation.Name,
			IsGroup:   in.Conversation.IsGroup,
			CreatedBy: in.Conversation.CreatedBy,
			DirectKey: in.Conversation.DirectKey,
			CreatedAt: in.Conversation.CreatedAt,
			UpdatedAt: in.Conversation.UpdatedAt,
		}
	case in.Membership != nil:
		ev.Row = &chat.Membership{
			ConversationID: in.Membership.ConversationID,
			ProfileID:      in.Membership.ProfileID,
			JoinedAt:       in.Membership.JoinedAt,
		}
	case in.Message != nil:
		ev.Row = &chat.Message{
			ID:             in.Message.ID,
			ConversationID: in.Message.ConversationID,
			SenderID:       in.Message.SenderID,
			Content:        in.Message.Content,
			ImageURL:       in.Message.ImageURL,
			CreatedAt:      in.Message.CreatedAt,
			Seq:            in.Message.Seq,
		}
	default:
		return Event{}, fmt.Errorf("feed: event without row payload")
	}
	return ev, nil
}
