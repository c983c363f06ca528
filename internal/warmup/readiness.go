package warmup

import (
	"sync/atomic"
	"time"
)

// Readiness reasons reported while the first refresh has not finished.
const (
	ReasonRefreshing  = "initial refresh in progress"
	ReasonGraceExpiry = "grace period elapsed, refresh still running"
)

// ReadinessState reports whether the first refresh after startup has
// finished. After the grace period the service is considered ready anyway
// and answers from upstream on demand.
type ReadinessState struct {
	ready     atomic.Bool
	startTime time.Time
	grace     time.Duration
	now       func() time.Time
}

// ReadinessStatus is the JSON view of a ReadinessState.
type ReadinessStatus struct {
	Ready          bool   `json:"ready"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	GraceSeconds   int    `json:"grace_seconds,omitempty"`
}

// NewReadinessState starts the grace period now.
func NewReadinessState(grace time.Duration) *ReadinessState {
	return newReadinessState(grace, time.Now)
}

func newReadinessState(grace time.Duration, now func() time.Time) *ReadinessState {
	return &ReadinessState{
		startTime: now(),
		grace:     grace,
		now:       now,
	}
}

// IsReady is true once MarkReady was called or the grace period is over.
func (s *ReadinessState) IsReady() bool {
	return s.ready.Load() || s.elapsed() >= s.grace
}

// MarkReady records that the first refresh finished.
func (s *ReadinessState) MarkReady() {
	s.ready.Store(true)
}

// RefreshCompleted reports whether MarkReady was called, ignoring the grace period.
func (s *ReadinessState) RefreshCompleted() bool {
	return s.ready.Load()
}

// Status returns the readiness for /readyz.
func (s *ReadinessState) Status() ReadinessStatus {
	status := ReadinessStatus{
		Ready:          s.IsReady(),
		ElapsedSeconds: int(s.elapsed().Seconds()),
		GraceSeconds:   int(s.grace.Seconds()),
	}
	switch {
	case !status.Ready:
		status.Reason = ReasonRefreshing
	case !s.ready.Load():
		status.Reason = ReasonGraceExpiry
	}
	return status
}

func (s *ReadinessState) elapsed() time.Duration {
	return s.now().Sub(s.startTime)
}
