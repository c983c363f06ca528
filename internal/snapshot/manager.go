// Package snapshot shares parsed timetables between instances through R2.
// The instance holding the leader lock refreshes from upstream and publishes
// a compressed snapshot; the others import it instead of scraping.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyellow/dku-timetable-go/internal/logger"
	"github.com/garyellow/dku-timetable-go/internal/r2client"
	"github.com/garyellow/dku-timetable-go/internal/storage"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

var (
	// ErrNotFound indicates no snapshot exists in R2.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrLockHeld indicates another instance is the leader.
	ErrLockHeld = errors.New("snapshot: leader lock held by another instance")

	// ErrEmpty indicates the local store has nothing worth publishing.
	ErrEmpty = errors.New("snapshot: no cached meta to publish")
)

// minRenewInterval keeps short test TTLs from hammering the lock object.
const minRenewInterval = 10 * time.Second

// Snapshot is the published object.
type Snapshot struct {
	GeneratedAt time.Time                      `json:"generatedAt"`
	Source      string                         `json:"source,omitempty"`
	Meta        *timetable.MetaPayload         `json:"meta"`
	Schedules   []*timetable.GroupWeekSchedule `json:"schedules"`
}

// Config holds snapshot manager configuration.
type Config struct {
	SnapshotKey  string        // e.g. "snapshots/timetable.json.zst"
	LockKey      string        // e.g. "locks/warmup.lock"
	LockTTL      time.Duration // lease duration of the leader lock
	PollInterval time.Duration // how often followers check for a new snapshot
	Source       string        // instance name recorded in published snapshots
}

// Manager publishes and imports snapshots.
type Manager struct {
	objects r2client.ObjectStore
	store   storage.Store
	config  Config
	logger  *logger.Logger

	mu          sync.RWMutex
	currentETag string
}

// New creates a new snapshot manager.
func New(objects r2client.ObjectStore, store storage.Store, log *logger.Logger, cfg Config) *Manager {
	return &Manager{
		objects: objects,
		store:   store,
		config:  cfg,
		logger:  log.WithModule("snapshot"),
	}
}

// CurrentETag returns the ETag of the last snapshot published or imported.
func (m *Manager) CurrentETag() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentETag
}

func (m *Manager) setETag(etag string) {
	m.mu.Lock()
	m.currentETag = etag
	m.mu.Unlock()
}

// Publish uploads the unexpired contents of the local store.
func (m *Manager) Publish(ctx context.Context) (string, error) {
	meta, err := m.store.GetMeta(ctx)
	if err != nil {
		return "", fmt.Errorf("read meta: %w", err)
	}
	if meta == nil {
		return "", ErrEmpty
	}
	schedules, err := m.store.ListSchedules(ctx)
	if err != nil {
		return "", fmt.Errorf("list schedules: %w", err)
	}

	data, err := r2client.EncodeJSON(Snapshot{
		GeneratedAt: time.Now().UTC(),
		Source:      m.config.Source,
		Meta:        meta,
		Schedules:   schedules,
	})
	if err != nil {
		return "", err
	}

	etag, err := m.objects.Put(ctx, m.config.SnapshotKey, data, r2client.ContentTypeZstdJSON)
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	m.setETag(etag)

	m.logger.WithField("etag", etag).
		WithField("schedules", len(schedules)).
		WithField("bytes", len(data)).
		InfoContext(ctx, "Snapshot published")
	return etag, nil
}

// Import downloads the snapshot and writes its payloads into the local store.
// Returns ErrNotFound when nothing was published yet.
func (m *Manager) Import(ctx context.Context) (*Snapshot, error) {
	data, etag, err := m.objects.Get(ctx, m.config.SnapshotKey)
	if errors.Is(err, r2client.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("download snapshot: %w", err)
	}

	var snap Snapshot
	if err := r2client.DecodeJSON(data, &snap); err != nil {
		return nil, err
	}
	if snap.Meta == nil {
		return nil, errors.New("snapshot: missing meta")
	}

	if err := m.store.SaveMeta(ctx, snap.Meta); err != nil {
		return nil, fmt.Errorf("save meta: %w", err)
	}
	for _, schedule := range snap.Schedules {
		if schedule == nil {
			continue
		}
		if err := m.store.SaveSchedule(ctx, schedule); err != nil {
			return nil, fmt.Errorf("save schedule %s/%s: %w", schedule.Week.Value, schedule.Group.CodeRaw, err)
		}
	}
	m.setETag(etag)

	m.logger.WithField("etag", etag).
		WithField("schedules", len(snap.Schedules)).
		WithField("generated_at", snap.GeneratedAt).
		InfoContext(ctx, "Snapshot imported")
	return &snap, nil
}

// ImportIfEmpty imports the snapshot only when the local store holds no
// schedules, as on a fresh container. Reports whether an import happened.
func (m *Manager) ImportIfEmpty(ctx context.Context) (bool, error) {
	count, err := m.store.CountSchedules(ctx)
	if err != nil {
		return false, fmt.Errorf("count schedules: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if _, err := m.Import(ctx); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PollOnce imports the snapshot when its ETag differs from the last one seen.
func (m *Manager) PollOnce(ctx context.Context) (bool, error) {
	remote, err := m.objects.Head(ctx, m.config.SnapshotKey)
	if errors.Is(err, r2client.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("head snapshot: %w", err)
	}
	if remote == m.CurrentETag() {
		return false, nil
	}
	if _, err := m.Import(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Poll calls PollOnce every PollInterval until ctx is canceled.
func (m *Manager) Poll(ctx context.Context) {
	if m.config.PollInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	m.logger.WithField("interval", m.config.PollInterval).
		WithField("snapshot_key", m.config.SnapshotKey).
		Debug("Snapshot polling started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Snapshot polling stopped")
			return
		case <-ticker.C:
			if _, err := m.PollOnce(ctx); err != nil && ctx.Err() == nil {
				m.logger.WithError(err).Warn("Snapshot poll failed")
			}
		}
	}
}

// RunAsLeader runs fn while holding the leader lock, renewing the lease in
// the background. fn's context is canceled if the lease is lost. Returns
// ErrLockHeld without calling fn when another instance leads.
func (m *Manager) RunAsLeader(ctx context.Context, fn func(ctx context.Context) error) error {
	lock := r2client.NewDistributedLock(m.objects, m.config.LockKey, m.config.LockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrLockHeld
	}
	m.logger.WithField("owner", lock.OwnerID()).Debug("Leader lock acquired")

	leadCtx, cancel := context.WithCancel(ctx)
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		m.renewLoop(leadCtx, lock, cancel)
	}()

	err = fn(leadCtx)

	cancel()
	<-renewDone

	releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer releaseCancel()
	if relErr := lock.Release(releaseCtx); relErr != nil {
		m.logger.WithError(relErr).Warn("Leader lock release failed")
	}
	return err
}

func (m *Manager) renewLoop(ctx context.Context, lock *r2client.DistributedLock, lost context.CancelFunc) {
	interval := max(lock.TTL()/3, minRenewInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := lock.Renew(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil || !renewed {
				entry := m.logger
				if err != nil {
					entry = entry.WithError(err)
				}
				entry.Warn("Leader lock lost during renew")
				lost()
				return
			}
		}
	}
}
