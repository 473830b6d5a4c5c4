// Package mediator implements the three external-service collaborators of
// spec §4.4 — FingerprintService, MetadataService, and the AccurateRip/EAC
// rip-verification clients — plus the cache/rate-limiter wiring each needs.
// Only MetadataService runs a dispatcher goroutine (FIFO ordering,
// cooperative blocking on a result-ready signal); the fingerprint and
// rip-verification clients issue their requests on the caller's goroutine.
package mediator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/accurasound/sndchk/pkg/sndchk/cache"
	"github.com/accurasound/sndchk/pkg/sndchk/logx"
	"github.com/accurasound/sndchk/pkg/sndchk/ratelimit"
)

// Mediator owns the three service collaborators and their shared
// infrastructure for one run.
type Mediator struct {
	Fingerprint *FingerprintService
	Metadata    *MetadataService
	AccurateRip *AccurateRipClient
	EAC         *EACClient

	MetadataCache    *cache.Cache
	AccurateRipCache *cache.Cache
	EACCache         *cache.Cache

	log *logx.Scoped

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Config configures a Mediator.
type Config struct {
	UserAgent      string
	FingerprintKey string // AcoustID API client key

	// AccurateRipLocalHost and EACLocalHost, when set, are probed before
	// their respective public hosts (spec §6 localhost-helper fallback).
	// Left empty by default: no helper protocol is modeled here.
	AccurateRipLocalHost string
	EACLocalHost         string
}

// New wires the three services with their own RateLimiter/Cache pairs, per
// spec §4.1/§4.2's "global singleton, guarded by its own lock" /
// "per-service cache" model.
func New(cfg Config) *Mediator {
	metadataCache := cache.New()
	arCache := cache.New()
	eacCache := cache.New()

	m := &Mediator{
		Fingerprint:      NewFingerprintService(cfg.UserAgent, cfg.FingerprintKey, ratelimit.New(ratelimit.FingerprintInterval)),
		Metadata:         NewMetadataService(cfg.UserAgent, ratelimit.New(ratelimit.MetadataInterval), metadataCache),
		AccurateRip:      NewAccurateRipClient(cfg.UserAgent, ratelimit.New(ratelimit.AccurateRipInterval)).WithLocalHost(cfg.AccurateRipLocalHost),
		EAC:              NewEACClient(cfg.UserAgent, ratelimit.New(ratelimit.AccurateRipInterval)).WithLocalHost(cfg.EACLocalHost),
		MetadataCache:    metadataCache,
		AccurateRipCache: arCache,
		EACCache:         eacCache,
		log:              logx.Get().With(logx.Fields{"component": "mediator"}),
	}
	return m
}

// Start launches the Metadata dispatcher goroutine. FingerprintService and
// the rip-verification clients are request/response (no FIFO needed
// beyond their own RateLimiter), so they have no dispatcher loop.
func (m *Mediator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Metadata.Run(runCtx)
	}()
}

// Shutdown requests the Metadata dispatcher to drain and exit, then waits
// for it (spec §5: "dispatcher joined after its queue drains").
func (m *Mediator) Shutdown() {
	m.Metadata.Close()
	m.wg.Wait()
	if m.cancel != nil {
		m.cancel()
	}
}

// CorrelationID returns a fresh request-tracing identifier stamped on an
// in-flight dispatcher request so interleaved log lines across the three
// service goroutines and the CPU pool can be correlated (spec §5
// concurrency model; SPEC_FULL domain-stack wiring for google/uuid).
func CorrelationID() string {
	return uuid.NewString()
}

// FetchAccurateRipCached wraps AccurateRip.Fetch with the shared cache
// (spec §4.2/§4.4: "a 404 for a given key is a successful, cacheable
// response-with-status=not-found").
func (m *Mediator) FetchAccurateRipCached(ctx context.Context, id AccurateRipIdentity) ([]AccurateRipRecord, error) {
	key := cache.Key{Entity: "accuraterip", ID: id.Path}
	if entry, ok := m.AccurateRipCache.Lookup(key); ok {
		return accurateRipEntryValue(entry)
	}

	corr := CorrelationID()
	m.log.WithField("correlation_id", corr).Debugf("fetching accuraterip %s", id.Path)

	records, status, err := m.AccurateRip.Fetch(ctx, id)
	entry := cache.Entry{Status: status}
	switch {
	case err != nil:
		entry.Status = cache.StatusError
		entry.Value = err
	case status == cache.StatusSuccess:
		entry.Value = records
	}
	m.AccurateRipCache.Insert(key, entry)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func accurateRipEntryValue(entry cache.Entry) ([]AccurateRipRecord, error) {
	if entry.Status == cache.StatusError {
		if err, ok := entry.Value.(error); ok {
			return nil, err
		}
	}
	if entry.Status == cache.StatusNotFound {
		return nil, nil
	}
	records, _ := entry.Value.([]AccurateRipRecord)
	return records, nil
}

// FetchEACCached wraps EAC.Fetch with the shared cache, mirroring
// FetchAccurateRipCached.
func (m *Mediator) FetchEACCached(ctx context.Context, discID string, nTracks int) (*EACResponse, error) {
	key := cache.Key{Entity: "eac", ID: discID, Resource: fmt.Sprintf("%d", nTracks)}
	if entry, ok := m.EACCache.Lookup(key); ok {
		return eacEntryValue(entry)
	}

	corr := CorrelationID()
	m.log.WithField("correlation_id", corr).Debugf("fetching eac disc=%s tracks=%d", discID, nTracks)

	resp, status, err := m.EAC.Fetch(ctx, discID, nTracks)
	entry := cache.Entry{Status: status}
	switch {
	case err != nil:
		entry.Status = cache.StatusError
		entry.Value = err
	case status == cache.StatusSuccess:
		entry.Value = resp
	}
	m.EACCache.Insert(key, entry)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func eacEntryValue(entry cache.Entry) (*EACResponse, error) {
	if entry.Status == cache.StatusError {
		if err, ok := entry.Value.(error); ok {
			return nil, err
		}
	}
	if entry.Status == cache.StatusNotFound {
		return nil, nil
	}
	resp, _ := entry.Value.(*EACResponse)
	return resp, nil
}
