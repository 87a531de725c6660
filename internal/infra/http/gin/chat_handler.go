package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bchat/internal/app/dto"
	chatsvc "bchat/internal/app/services/chat"
	domainchat "bchat/internal/domain/chat"
	"bchat/internal/infra/storage/s3"
)

type ChatHTTP interface {
	ListConversations(c *gin.Context)
	StartDirect(c *gin.Context)
	CreateGroup(c *gin.Context)
	Messages(c *gin.Context)
	PostMessage(c *gin.Context)
	UploadImage(c *gin.Context)
}

type ChatHandler struct {
	Service *chatsvc.Service
	Images  s3.Uploader
	// MessageWindow caps how many messages one fetch returns.
	MessageWindow int
	Logger        *slog.Logger
}

type directRequest struct {
	OtherID string `json:"other_id"`
}

type groupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

type postMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	ImageURL       string `json:"image_url"`
}

// ListConversations returns the caller's conversations newest-activity
// first, each with member ids and its latest message.
func (h ChatHandler) ListConversations(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	convs, err := h.Service.ConversationsFor(c.Request.Context(), p.ID)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	items := make([]dto.Conversation, 0, len(convs))
	for i := range convs {
		item := dto.MapConversation(&convs[i])
		members, err := h.Service.Members(c.Request.Context(), convs[i].ID)
		if err != nil {
			h.respondChatError(c, err)
			return
		}
		for _, m := range members {
			item.MemberIDs = append(item.MemberIDs, m.ProfileID)
		}
		last, err := h.Service.LastMessage(c.Request.Context(), convs[i].ID)
		if err != nil {
			h.respondChatError(c, err)
			return
		}
		if last != nil {
			mapped := dto.MapMessage(last)
			item.LastMessage = &mapped
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, dto.ConversationList{Items: items})
}

func (h ChatHandler) StartDirect(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req directRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conv, err := h.Service.StartDirect(c.Request.Context(), p.ID, req.OtherID)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapConversation(conv))
}

func (h ChatHandler) CreateGroup(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conv, err := h.Service.CreateGroup(c.Request.Context(), p.ID, req.Name, req.MemberIDs)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapConversation(conv))
}

// Messages returns the newest window of messages oldest-first. An empty
// conversation_id targets the shared room.
func (h ChatHandler) Messages(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Query("conversation_id"))
	limit := h.messageWindow()
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}
	msgs, err := h.Service.RecentMessages(c.Request.Context(), p.ID, conversationID, limit)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapMessages(msgs))
}

func (h ChatHandler) PostMessage(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	msg, err := h.Service.PostMessage(c.Request.Context(), chatsvc.PostMessageParams{
		SenderID:       p.ID,
		ConversationID: req.ConversationID,
		Content:        req.Content,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapMessage(msg))
}

// UploadImage stores one image and returns its public URL. Objects are
// keyed under the uploader's id so ownership stays inspectable.
func (h ChatHandler) UploadImage(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage unavailable"})
		return
	}
	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be an image"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file unreadable"})
		return
	}
	defer file.Close()

	key := p.ID + "/" + uuid.NewString() + path.Ext(header.Filename)
	url, err := h.Images.Upload(c.Request.Context(), key, file, contentType)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("image upload failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (h ChatHandler) messageWindow() int {
	if h.MessageWindow > 0 {
		return h.MessageWindow
	}
	return 100
}

func (h ChatHandler) respondChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainchat.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, chatsvc.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
	case errors.Is(err, domainchat.ErrSelfConversation),
		errors.Is(err, domainchat.ErrGroupNameRequired),
		errors.Is(err, domainchat.ErrMembersRequired),
		errors.Is(err, domainchat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("chat operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

var _ ChatHTTP = (*ChatHandler)(nil)
