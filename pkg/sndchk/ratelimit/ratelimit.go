// Package ratelimit implements the per-service minimum-interval gate of
// spec §4.1: acquire(service) blocks only until now >= last_release +
// interval, wakes contenders in FIFO order, and records the wake time as
// the new last_release. A first-ever call returns immediately.
//
// This is hand-rolled on sync/time rather than golang.org/x/time/rate
// (which other_examples/teal-fm-piper/musicbrainz.go uses for the same
// kind of per-service limiting): a token bucket gives no FIFO-among-
// waiters guarantee, and the spec's contract is explicitly FIFO. See
// DESIGN.md §4.1 for the full justification.
package ratelimit

import (
	"container/list"
	"sync"
	"time"

	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

// Limiter gates acquisitions to at most one per Interval, waking waiters
// in the order they called Acquire.
type Limiter struct {
	Interval time.Duration

	mu          sync.Mutex
	lastRelease time.Time
	hasRun      bool
	waiters     *list.List // of chan struct{}
}

// New returns a Limiter enforcing a minimum interval between releases.
func New(interval time.Duration) *Limiter {
	return &Limiter{Interval: interval, waiters: list.New()}
}

// Named per-service limiter intervals from spec §4.1 (service interval +1ns,
// so the boundary comparison "now >= last+interval" never races a clock
// granularity tie).
const (
	AccurateRipInterval = 500*time.Millisecond + time.Nanosecond
	FingerprintInterval = 333*time.Millisecond + time.Nanosecond
	MetadataInterval    = 1*time.Second + time.Nanosecond
)

// clockNow is overridable in tests to simulate a clock failure.
var clockNow = func() (time.Time, error) { return time.Now(), nil }

// Acquire blocks until it is this caller's turn to proceed, per the
// service's minimum interval, then returns. It returns a sndchkerr of
// KindClock only if the underlying clock source fails.
func (l *Limiter) Acquire() error {
	l.mu.Lock()

	if !l.hasRun {
		l.hasRun = true
		now, err := clockNow()
		if err != nil {
			l.mu.Unlock()
			return sndchkerr.New(sndchkerr.KindClock, "ratelimit", err)
		}
		l.lastRelease = now
		l.mu.Unlock()
		return nil
	}

	ch := make(chan struct{})
	elem := l.waiters.PushBack(ch)
	l.mu.Unlock()

	// Wait until it is this waiter's turn at the front of the FIFO.
	for {
		l.mu.Lock()
		if l.waiters.Front() == elem {
			now, err := clockNow()
			if err != nil {
				l.waiters.Remove(elem)
				l.mu.Unlock()
				return sndchkerr.New(sndchkerr.KindClock, "ratelimit", err)
			}
			wake := l.lastRelease.Add(l.Interval)
			if !now.Before(wake) {
				l.lastRelease = now
				l.waiters.Remove(elem)
				// Wake the next waiter, if any, so it can re-check its turn.
				if next := l.waiters.Front(); next != nil {
					close(next.Value.(chan struct{}))
				}
				l.mu.Unlock()
				return nil
			}
			delay := wake.Sub(now)
			l.mu.Unlock()
			time.Sleep(delay)
			continue
		}
		l.mu.Unlock()
		// Not our turn yet; another waiter is ahead in the FIFO. Yield briefly.
		select {
		case <-ch:
		case <-time.After(time.Millisecond):
		}
	}
}
