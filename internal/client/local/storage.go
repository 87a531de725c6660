package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"bchat/internal/client"
)

// MemoryStorage is an in-process stand-in for the object store. URLs
// use a mem:// scheme so tests can tell them apart from real ones.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string]storedObject
}

type storedObject struct {
	data        []byte
	contentType string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]storedObject)}
}

func (s *MemoryStorage) Upload(_ context.Context, key string, reader io.Reader, contentType string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("local: object key is required")
	}
	if reader == nil {
		return "", errors.New("local: reader is required")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[key] = storedObject{data: data, contentType: contentType}
	s.mu.Unlock()
	return "mem://chat-images/" + key, nil
}

// Object returns a stored object's bytes and content type.
func (s *MemoryStorage) Object(key string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, obj.contentType, true
}

func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

var _ client.Storage = (*MemoryStorage)(nil)
