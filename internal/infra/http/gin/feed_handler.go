package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bchat/internal/infra/feed"
	"bchat/internal/infra/realtime"
)

type FeedHTTP interface {
	Subscribe(c *gin.Context)
}

// FeedHandler bridges the in-process change feed onto websockets. One
// socket carries one set of table subscriptions, established at
// connect time via query parameters.
type FeedHandler struct {
	Source feed.Source
	Logger *slog.Logger

	upgrader websocket.Upgrader
}

func NewFeedHandler(source feed.Source, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		Source: source,
		Logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect cross-origin in local setups.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Subscribe upgrades the request and streams matching change events
// until either side disconnects. Query parameters:
//
//	tables          comma-separated table names, defaults to all
//	conversation_id restricts message events to one conversation
func (h *FeedHandler) Subscribe(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	tables := parseTables(c.Query("tables"))
	filter := feed.Filter{ConversationID: strings.TrimSpace(c.Query("conversation_id"))}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Debug("websocket upgrade failed", "error", err)
		}
		return
	}
	conn := realtime.NewConnection(p.ID, ws)
	conn.Start()

	subs := make([]feed.Subscription, 0, len(tables))
	for _, table := range tables {
		subs = append(subs, h.Source.Subscribe(table, nil, filter))
	}
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
		conn.Close(websocket.CloseNormalClosure, "feed closed")
	}()

	// Reads are discarded, the socket is a one-way event stream. The
	// read loop still runs to surface client disconnects.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				conn.Close(websocket.CloseNormalClosure, "client gone")
				return
			}
		}
	}()

	h.pump(conn, subs)
}

func (h *FeedHandler) pump(conn *realtime.Connection, subs []feed.Subscription) {
	// Merge all table streams into the single socket writer.
	merged := make(chan feed.Event)
	done := conn.Done()
	for _, sub := range subs {
		go func(sub feed.Subscription) {
			for ev := range sub.Events() {
				select {
				case merged <- ev:
				case <-done:
					return
				}
			}
		}(sub)
	}

	for {
		select {
		case <-done:
			return
		case ev := <-merged:
			payload, err := feed.MarshalEvent(ev)
			if err != nil {
				if h.Logger != nil {
					h.Logger.Warn("feed event marshal failed", "error", err)
				}
				continue
			}
			if err := conn.Send(payload); err != nil {
				return
			}
		}
	}
}

func parseTables(raw string) []feed.Table {
	all := []feed.Table{feed.TableProfiles, feed.TableConversations, feed.TableMemberships, feed.TableMessages}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return all
	}
	known := make(map[feed.Table]struct{}, len(all))
	for _, t := range all {
		known[t] = struct{}{}
	}
	var out []feed.Table
	for _, part := range strings.Split(raw, ",") {
		table := feed.Table(strings.TrimSpace(part))
		if _, ok := known[table]; ok {
			out = append(out, table)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

var _ FeedHTTP = (*FeedHandler)(nil)
