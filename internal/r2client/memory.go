package r2client

import (
	"context"
	"slices"
	"strconv"
	"sync"
)

// MemoryStore is an in-process ObjectStore with the same conditional write
// semantics as R2. Used by tests and by single-instance local runs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	version int
}

type memoryObject struct {
	body []byte
	etag string
}

var _ ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put implements ObjectStore.
func (s *MemoryStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(key, body), nil
}

// Get implements ObjectStore.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return slices.Clone(obj.body), obj.etag, nil
}

// Head implements ObjectStore.
func (s *MemoryStore) Head(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		return "", ErrNotFound
	}
	return obj.etag, nil
}

// PutIfAbsent implements ObjectStore.
func (s *MemoryStore) PutIfAbsent(_ context.Context, key string, body []byte, _ string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; ok {
		return false, "", nil
	}
	return true, s.store(key, body), nil
}

// PutIfMatch implements ObjectStore.
func (s *MemoryStore) PutIfMatch(_ context.Context, key string, body []byte, etag, _ string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok || obj.etag != etag {
		return false, "", nil
	}
	return true, s.store(key, body), nil
}

// Delete implements ObjectStore.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// store must be called with mu held.
func (s *MemoryStore) store(key string, body []byte) string {
	s.version++
	etag := "v" + strconv.Itoa(s.version)
	s.objects[key] = memoryObject{body: slices.Clone(body), etag: etag}
	return etag
}
