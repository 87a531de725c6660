package feed

import (
	"bchat/internal/domain/chat"
	"bchat/internal/domain/profile"
)

// Table names a change-feed source.
type Table string

const (
	TableProfiles      Table = "profiles"
	TableConversations Table = "conversations"
	TableMemberships   Table = "conversation_members"
	TableMessages      Table = "messages"
)

// EventType is the kind of row change carried by an event.
type EventType string

const (
	Insert EventType = "insert"
	Update EventType = "update"
	Delete EventType = "delete"
)

// Event is a single row-change notification. Row holds the affected row
// as one of *profile.Profile, *chat.Conversation, *chat.Membership or
// *chat.Message depending on Table.
type Event struct {
	Seq    uint64
	Table  Table
	Type   EventType
	Origin string
	Row    any
}

// Filter narrows a subscription. A zero Filter matches every row of the
// table; ConversationID only applies to the messages table.
type Filter struct {
	ConversationID string
}

func (f Filter) matches(ev Event) bool {
	if f.ConversationID == "" {
		return true
	}
	if msg, ok := ev.Row.(*chat.Message); ok {
		return msg.ConversationID == f.ConversationID
	}
	return true
}

// Subscription is an ordered stream of events. Events within one
// subscription preserve commit order; no ordering holds across
// independently opened subscriptions. After Close returns, no further
// events are delivered and the Events channel is closed.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// Publisher accepts locally committed change events.
type Publisher interface {
	Publish(ev Event)
}

// Source opens subscriptions. types nil subscribes to all event types.
type Source interface {
	Subscribe(table Table, types []EventType, filter Filter) Subscription
}

// Row convenience accessors used by consumers that know the table.

func (ev Event) Message() (*chat.Message, bool) {
	msg, ok := ev.Row.(*chat.Message)
	return msg, ok
}

func (ev Event) Profile() (*profile.Profile, bool) {
	p, ok := ev.Row.(*profile.Profile)
	return p, ok
}

func (ev Event) Conversation() (*chat.Conversation, bool) {
	c, ok := ev.Row.(*chat.Conversation)
	return c, ok
}

func (ev Event) Membership() (*chat.Membership, bool) {
	m, ok := ev.Row.(*chat.Membership)
	return m, ok
}
