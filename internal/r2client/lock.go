package r2client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const lockContentType = "application/json"

// LockInfo is the JSON body of the lock object.
type LockInfo struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DistributedLock is a lease held through conditional writes on one object.
// An expired lease may be taken over by another owner.
type DistributedLock struct {
	store   ObjectStore
	key     string
	ttl     time.Duration
	ownerID string
	now     func() time.Time

	mu   sync.Mutex
	etag string // ETag of the lease we hold; empty when not held
}

// NewDistributedLock creates a lock with a random owner ID.
func NewDistributedLock(store ObjectStore, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		store:   store,
		key:     key,
		ttl:     ttl,
		ownerID: uuid.NewString(),
		now:     time.Now,
	}
}

// OwnerID returns the unique identifier of this lock instance.
func (l *DistributedLock) OwnerID() string {
	return l.ownerID
}

// TTL returns the lease duration.
func (l *DistributedLock) TTL() time.Duration {
	return l.ttl
}

// Acquire tries to take the lease. It returns false without error when a
// live lease belongs to someone else.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	body, err := l.lease()
	if err != nil {
		return false, err
	}

	created, etag, err := l.store.PutIfAbsent(ctx, l.key, body, lockContentType)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if created {
		l.etag = etag
		return true, nil
	}

	current, currentETag, err := l.store.Get(ctx, l.key)
	if errors.Is(err, ErrNotFound) {
		// Released between our two calls; the next attempt will create it.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lock: read: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(current, &info); err == nil && l.now().Before(info.ExpiresAt) {
		return false, nil
	}

	stolen, etag, err := l.store.PutIfMatch(ctx, l.key, body, currentETag, lockContentType)
	if err != nil {
		return false, fmt.Errorf("acquire lock: take over: %w", err)
	}
	if stolen {
		l.etag = etag
	}
	return stolen, nil
}

// Renew extends the lease. It returns false when the lease was lost.
func (l *DistributedLock) Renew(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.etag == "" {
		return false, nil
	}
	body, err := l.lease()
	if err != nil {
		return false, err
	}

	updated, etag, err := l.store.PutIfMatch(ctx, l.key, body, l.etag, lockContentType)
	if err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	if !updated {
		l.etag = ""
		return false, nil
	}
	l.etag = etag
	return true, nil
}

// Release deletes the lock object if we still own it.
func (l *DistributedLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.etag == "" {
		return nil
	}
	l.etag = ""

	current, _, err := l.store.Get(ctx, l.key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lock: read: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(current, &info); err == nil && info.Owner != l.ownerID {
		return nil
	}
	return l.store.Delete(ctx, l.key)
}

func (l *DistributedLock) lease() ([]byte, error) {
	data, err := json.Marshal(LockInfo{Owner: l.ownerID, ExpiresAt: l.now().Add(l.ttl)})
	if err != nil {
		return nil, fmt.Errorf("lock: marshal lease: %w", err)
	}
	return data, nil
}
