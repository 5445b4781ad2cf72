package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// MemStore keeps objects in memory. It backs storage.type = "memory"
// for local development and is the Store the service tests inject. The
// Fail* fields force the next matching call to error out so partial
// failure paths can be exercised.
type MemStore struct {
	mu      sync.Mutex
	objects map[string]*memObject

	FailPut           bool
	FailSetVisibility bool
	FailDelete        bool
	FailTagLookup     bool
}

type memObject struct {
	data        []byte
	contentType string
	public      bool
}

func NewMem() *MemStore {
	return &MemStore{objects: make(map[string]*memObject)}
}

func (m *MemStore) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string, public bool) error {
	if m.FailPut {
		return errors.New("put failed")
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = &memObject{
		data:        data,
		contentType: contentType,
		public:      public,
	}

	return nil
}

func (m *MemStore) SignedURL(_ context.Context, ownerID, key string, ttl time.Duration) (string, error) {
	if !owned(ownerID, key) {
		return "", ErrForeignKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[key]; !ok {
		return "", errors.New("no such object")
	}

	return fmt.Sprintf("mem://signed/%s?expires=%d", url.PathEscape(key), int(ttl.Seconds())), nil
}

func (m *MemStore) PublicURL(_ context.Context, key string) (string, bool) {
	if m.FailTagLookup {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok || !obj.public {
		return "", false
	}

	return "mem://public/" + url.PathEscape(key), true
}

func (m *MemStore) SetVisibility(_ context.Context, ownerID, key string, public bool) error {
	if m.FailSetVisibility {
		return errors.New("set visibility failed")
	}

	if !owned(ownerID, key) {
		return ErrForeignKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return errors.New("no such object")
	}

	obj.public = public
	return nil
}

func (m *MemStore) Delete(_ context.Context, ownerID, key string) error {
	if m.FailDelete {
		return errors.New("delete failed")
	}

	if !owned(ownerID, key) {
		return ErrForeignKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

// Has reports whether an object exists, Public whether it carries the
// public marker. Both are used by tests to assert store-side state.
func (m *MemStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]
	return ok
}

func (m *MemStore) Public(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	return ok && obj.public
}

// Len reports how many objects are stored.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.objects)
}

var _ Store = (*MemStore)(nil)
var _ Store = (*S3Store)(nil)

// Keys returns all stored keys, for debugging and tests.
func (m *MemStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}

	return keys
}
