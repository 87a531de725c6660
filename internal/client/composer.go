package client

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bchat/internal/domain/chat"
)

var (
	ErrSendInFlight   = errors.New("client: a send is already in flight")
	ErrUploadInFlight = errors.New("client: an upload is already in flight")
	ErrNotAnImage     = errors.New("client: file is not an image")
)

// Composer sends messages into one conversation. At most one text send
// and one image upload run at a time, mirroring a UI that disables its
// controls while a send is pending.
type Composer struct {
	platform       Platform
	selfID         string
	conversationID string

	mu        sync.Mutex
	sending   bool
	uploading bool
}

func NewComposer(platform Platform, selfID, conversationID string) *Composer {
	return &Composer{platform: platform, selfID: selfID, conversationID: conversationID}
}

// SendText posts a text message. Empty content is rejected before
// anything reaches the platform.
func (c *Composer) SendText(ctx context.Context, content string) (*chat.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, chat.ErrEmptyMessage
	}
	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return nil, ErrSendInFlight
	}
	c.sending = true
	c.mu.Unlock()
	defer c.clearSending()

	return c.platform.Tables.PostMessage(ctx, c.selfID, c.conversationID, content, "")
}

// SendImage uploads the image and posts a message referencing it. The
// content type is checked before any bytes are read, non-images never
// start an upload. Objects are keyed under the sender's id.
func (c *Composer) SendImage(ctx context.Context, filename, contentType string, reader io.Reader, caption string) (*chat.Message, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotAnImage
	}
	if c.platform.Storage == nil {
		return nil, errors.New("client: storage not configured")
	}
	c.mu.Lock()
	if c.uploading {
		c.mu.Unlock()
		return nil, ErrUploadInFlight
	}
	c.uploading = true
	c.mu.Unlock()
	defer c.clearUploading()

	key := c.selfID + "/" + uuid.NewString() + path.Ext(filename)
	url, err := c.platform.Storage.Upload(ctx, key, reader, contentType)
	if err != nil {
		return nil, err
	}
	return c.platform.Tables.PostMessage(ctx, c.selfID, c.conversationID, caption, url)
}

// Sending reports whether a text send is in flight.
func (c *Composer) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Uploading reports whether an image upload is in flight.
func (c *Composer) Uploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploading
}

func (c *Composer) clearSending() {
	c.mu.Lock()
	c.sending = false
	c.mu.Unlock()
}

func (c *Composer) clearUploading() {
	c.mu.Lock()
	c.uploading = false
	c.mu.Unlock()
}
