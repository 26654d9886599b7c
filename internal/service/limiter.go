package service

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyUploads is returned when every upload slot stays busy for the
// whole wait period.
var ErrTooManyUploads = errors.New("too many concurrent uploads, please try again later")

// Defaults applied by NewUploadLimiter.
const (
	DefaultMaxConcurrentUploads = 4
	DefaultMaxUploadWait        = 5 * time.Second
)

// UploadLimiter bounds the number of uploads processed at once.
type UploadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewUploadLimiter allows at most maxConcurrent uploads; others wait up to
// maxWait for a slot.
func NewUploadLimiter(maxConcurrent int, maxWait time.Duration) *UploadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentUploads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxUploadWait
	}
	return &UploadLimiter{slots: make(chan struct{}, maxConcurrent), maxWait: maxWait}
}

// Acquire takes a slot. The caller must Release it.
func (l *UploadLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrTooManyUploads
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *UploadLimiter) Release() { <-l.slots }

// Active returns the number of uploads holding a slot.
func (l *UploadLimiter) Active() int { return len(l.slots) }

// MaxConcurrent returns the slot count.
func (l *UploadLimiter) MaxConcurrent() int { return cap(l.slots) }
