package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	objects       map[string]memoryObject
	failDeletes   map[string]bool
	publicBaseURL string
}

// NewMemoryStore creates an empty MemoryStore serving URLs under publicBaseURL.
func NewMemoryStore(publicBaseURL string) *MemoryStore {
	return &MemoryStore{
		objects:       make(map[string]memoryObject),
		failDeletes:   make(map[string]bool),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// FailDeletes makes DeleteObjects report keys as failed until cleared with ok=false.
func (m *MemoryStore) FailDeletes(fail bool, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if fail {
			m.failDeletes[k] = true
		} else {
			delete(m.failDeletes, k)
		}
	}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

// Stat implements Store.
func (m *MemoryStore) Stat(_ context.Context, key string) (*ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &ObjectInfo{Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

// Get returns the stored bytes of key.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return bytes.Clone(obj.data), ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// DeleteObjects implements Store.
func (m *MemoryStore) DeleteObjects(_ context.Context, keys []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failed []string
	for _, k := range keys {
		if m.failDeletes[k] {
			failed = append(failed, k)
			continue
		}
		delete(m.objects, k)
	}
	return failed, nil
}

// PresignPut implements Store with an unsigned URL on the public base.
func (m *MemoryStore) PresignPut(_ context.Context, key, contentType string, size int64, expiry time.Duration) (string, error) {
	q := url.Values{}
	q.Set("content-type", contentType)
	q.Set("size", fmt.Sprint(size))
	q.Set("expires", fmt.Sprint(int(expiry.Seconds())))
	return m.PublicURL(key) + "?" + q.Encode(), nil
}

// PublicURL implements Store.
func (m *MemoryStore) PublicURL(key string) string {
	return m.publicBaseURL + "/" + key
}
