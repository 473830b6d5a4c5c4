package mediator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/jinzhu/now"

	"github.com/accurasound/sndchk/pkg/sndchk/cache"
	"github.com/accurasound/sndchk/pkg/sndchk/ratelimit"
	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

const metadataHost = "https://musicbrainz.org/ws/2"

const pageSize = 25

// MetadataQuery identifies one metadata-service lookup: an entity kind
// (e.g. "release"), an optional id, an optional sub-resource, and filter
// parameters (spec §4.4/§6).
type MetadataQuery struct {
	Entity   string
	ID       string
	Resource string
	IncList  []string // sub-resources: "artist-credits", "discids", "media", ...
	Params   []cache.Param
}

func (q MetadataQuery) cacheKey() cache.Key {
	return cache.Key{Entity: q.Entity, ID: q.ID, Resource: q.Resource, Params: q.Params}
}

// MBArtistCredit is one artist-credit entry (spec §6).
type MBArtistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

// MBRecording is a metadata-service recording (track identity).
type MBRecording struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Length int              `json:"length"`
	Artist []MBArtistCredit `json:"artist-credit,omitempty"`
}

// MBTrack is one track slot within an MBMedium.
type MBTrack struct {
	Position  int         `json:"position"`
	Title     string      `json:"title"`
	Recording MBRecording `json:"recording"`
}

// MBDisc is one physical-disc candidate for a medium, carrying the
// sector-level table of contents `inc=discids` returns: a 28-character
// disc identifier, the total sector count (leadout), and each audio
// track's absolute starting sector offset in track order (spec §6 — these
// feed directly into DeriveAccurateRipIdentity's DiscOffsets).
type MBDisc struct {
	ID      string `json:"id"`
	Sectors int    `json:"sectors"`
	Offsets []int  `json:"offsets"`
}

// DiscOffsets converts d's sector TOC into the (TrackOffsets, Leadout)
// pair DeriveAccurateRipIdentity expects.
func (d MBDisc) DiscOffsets() DiscOffsets {
	return DiscOffsets{TrackOffsets: append([]int(nil), d.Offsets...), Leadout: d.Sectors}
}

// TrackSectorLengths derives each audio track's sector length from
// consecutive offsets, with the last track's length running to the
// leadout (spec glossary: "sector" = 1/75s of audio).
func (d MBDisc) TrackSectorLengths() map[int]uint32 {
	out := make(map[int]uint32, len(d.Offsets))
	for i, off := range d.Offsets {
		end := d.Sectors
		if i+1 < len(d.Offsets) {
			end = d.Offsets[i+1]
		}
		if end > off {
			out[i+1] = uint32(end - off)
		}
	}
	return out
}

// MBMedium is one disc/medium within an MBRelease, carrying its candidate
// discs (when present) and ordered tracks.
type MBMedium struct {
	Position int       `json:"position"`
	Format   string    `json:"format"`
	DiscIDs  []string  `json:"discids,omitempty"`
	Discs    []MBDisc  `json:"discs,omitempty"`
	Tracks   []MBTrack `json:"tracks"`
}

// MBReleaseGroup is the parent releasegroup of an MBRelease.
type MBReleaseGroup struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// MBRelease is one metadata-service release (spec §6).
type MBRelease struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Date         string           `json:"date,omitempty"`
	Country      string           `json:"country,omitempty"`
	ArtistCredit []MBArtistCredit `json:"artist-credit,omitempty"`
	ReleaseGroup *MBReleaseGroup  `json:"release-group,omitempty"`
	Media        []MBMedium       `json:"media,omitempty"`
}

// ParseReleaseDate parses a MusicBrainz partial date ("YYYY", "YYYY-MM", or
// "YYYY-MM-DD") using jinzhu/now's permissive parser (spec §6). An empty
// date yields the zero time and no error — "unknown date" is not a parse
// failure.
func ParseReleaseDate(date string) (time.Time, error) {
	if date == "" {
		return time.Time{}, nil
	}
	t, err := now.Parse(date)
	if err != nil {
		return time.Time{}, sndchkerr.New(sndchkerr.KindParse, "musicbrainz", err).WithContext(date)
	}
	return t, nil
}

type mbPage struct {
	Releases []MBRelease `json:"releases"`
	Count    int         `json:"release-count"`
	Offset   int         `json:"release-offset"`
}

// MetadataService is the rate-limited, cached, asynchronous MusicBrainz
// client of spec §4.4: Submit enqueues a query and returns immediately; a
// single dispatcher goroutine drains the FIFO, paginates, retries 5xx with
// backoff, and caches the concatenated result; Get blocks the caller until
// that key's response appears.
type MetadataService struct {
	httpClient *http.Client
	userAgent  string
	limiter    *ratelimit.Limiter
	cache      *cache.Cache

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []MetadataQuery
	waiters map[[32]byte]chan struct{} // keyed by the query's full cache digest
	closing bool
}

// NewMetadataService returns a MetadataService backed by limiter and c.
func NewMetadataService(userAgent string, limiter *ratelimit.Limiter, c *cache.Cache) *MetadataService {
	s := &MetadataService{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  userAgent,
		limiter:    limiter,
		cache:      c,
		waiters:    make(map[[32]byte]chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Run is the dispatcher goroutine's entry point; callers launch it with
// `go svc.Run(ctx)` once at startup and it exits after Close drains the
// queue (spec §5 "dispatcher joined after its queue drains").
func (s *MetadataService) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closing {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closing {
			s.mu.Unlock()
			return
		}
		q := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.process(ctx, q)
	}
}

// Close requests the dispatcher to exit once its queue drains.
func (s *MetadataService) Close() {
	s.mu.Lock()
	s.closing = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Submit enqueues q and returns immediately (spec §4.4).
func (s *MetadataService) Submit(q MetadataQuery) {
	s.mu.Lock()
	s.queue = append(s.queue, q)
	s.waiterFor(q) // pre-create so a racing Get never misses the signal
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *MetadataService) waiterFor(q MetadataQuery) chan struct{} {
	k := q.cacheKey().Digest()
	if ch, ok := s.waiters[k]; ok {
		return ch
	}
	ch := make(chan struct{})
	s.waiters[k] = ch
	return ch
}

// Get blocks until a response for q is cached, then returns the release
// matching releaseID (empty releaseID returns the first page element).
// Reports (nil, false, nil) for a cached not-found or empty result.
func (s *MetadataService) Get(ctx context.Context, q MetadataQuery, releaseID string) (*MBRelease, bool, error) {
	key := q.cacheKey()
	if entry, ok := s.cache.Lookup(key); ok {
		return extractRelease(entry, releaseID)
	}

	s.mu.Lock()
	ch := s.waiterFor(q)
	s.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return nil, false, sndchkerr.New(sndchkerr.KindTimeout, "musicbrainz", ctx.Err())
	}

	entry, ok := s.cache.Lookup(key)
	if !ok {
		return nil, false, sndchkerr.Errorf(sndchkerr.KindInconsistent, "musicbrainz", "dispatcher signaled completion without a cache entry for %v", key)
	}
	return extractRelease(entry, releaseID)
}

func extractRelease(entry cache.Entry, releaseID string) (*MBRelease, bool, error) {
	if entry.Status == cache.StatusNotFound {
		return nil, false, nil
	}
	if entry.Status == cache.StatusError {
		if err, ok := entry.Value.(error); ok {
			return nil, false, err
		}
		return nil, false, sndchkerr.Errorf(sndchkerr.KindParse, "musicbrainz", "cached error entry with no error value")
	}
	releases, _ := entry.Value.([]MBRelease)
	if len(releases) == 0 {
		return nil, false, nil
	}
	if releaseID == "" {
		return &releases[0], true, nil
	}
	for i := range releases {
		if releases[i].ID == releaseID {
			return &releases[i], true, nil
		}
	}
	return nil, false, nil
}

func (s *MetadataService) process(ctx context.Context, q MetadataQuery) {
	releases, status, err := s.fetchAllPages(ctx, q)
	var entry cache.Entry
	switch {
	case err != nil:
		entry = cache.Entry{Value: err, Status: cache.StatusError}
	case status == cache.StatusNotFound:
		entry = cache.Entry{Value: nil, Status: cache.StatusNotFound}
	default:
		entry = cache.Entry{Value: releases, Status: cache.StatusSuccess}
	}
	s.cache.Insert(q.cacheKey(), entry)

	s.mu.Lock()
	k := q.cacheKey().Digest()
	if ch, ok := s.waiters[k]; ok {
		close(ch)
		delete(s.waiters, k)
	}
	s.mu.Unlock()
}

func (s *MetadataService) fetchAllPages(ctx context.Context, q MetadataQuery) ([]MBRelease, cache.Status, error) {
	var all []MBRelease
	offset := 0
	for {
		page, status, err := s.fetchPage(ctx, q, offset)
		if err != nil {
			return nil, cache.StatusError, err
		}
		if status == cache.StatusNotFound {
			return nil, cache.StatusNotFound, nil
		}
		all = append(all, page.Releases...)
		if len(page.Releases) < pageSize {
			break
		}
		offset += pageSize
	}
	return all, cache.StatusSuccess, nil
}

func (s *MetadataService) fetchPage(ctx context.Context, q MetadataQuery, offset int) (*mbPage, cache.Status, error) {
	var page *mbPage
	var status cache.Status

	op := func() error {
		if err := s.limiter.Acquire(); err != nil {
			return backoff.Permanent(err)
		}
		p, st, err := s.doFetchPage(ctx, q, offset)
		if err != nil {
			if sndchkerr.Retryable(err) {
				return err // retried by backoff
			}
			return backoff.Permanent(err)
		}
		page, status = p, st
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(5*time.Second), 5)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, cache.StatusError, err
	}
	return page, status, nil
}

func (s *MetadataService) doFetchPage(ctx context.Context, q MetadataQuery, offset int) (*mbPage, cache.Status, error) {
	u := metadataHost + "/" + q.Entity
	if q.ID != "" {
		u += "/" + q.ID
	}
	if q.Resource != "" {
		u += "/" + q.Resource
	}

	values := url.Values{}
	values.Set("fmt", "json")
	values.Set("limit", fmt.Sprintf("%d", pageSize))
	values.Set("offset", fmt.Sprintf("%d", offset))
	if len(q.IncList) > 0 {
		inc := q.IncList[0]
		for _, s := range q.IncList[1:] {
			inc += " " + s
		}
		values.Set("inc", inc)
	}
	for _, p := range q.Params {
		values.Set(p.Name, p.Value)
	}
	fullURL := u + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, cache.StatusError, sndchkerr.New(sndchkerr.KindNetwork, "musicbrainz", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		kind := sndchkerr.KindNetwork
		if ctx.Err() != nil {
			kind = sndchkerr.KindTimeout
		}
		return nil, cache.StatusError, sndchkerr.New(kind, "musicbrainz", err).WithContext(fullURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, cache.StatusNotFound, nil
	}
	if resp.StatusCode >= 500 {
		return nil, cache.StatusError, sndchkerr.Errorf(sndchkerr.KindNetwork, "musicbrainz", "server error %d for %s", resp.StatusCode, fullURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, cache.StatusError, sndchkerr.Errorf(sndchkerr.KindParse, "musicbrainz", "unexpected status %d for %s", resp.StatusCode, fullURL)
	}

	var page mbPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, cache.StatusError, sndchkerr.New(sndchkerr.KindParse, "musicbrainz", err).WithContext(fullURL)
	}
	return &page, cache.StatusSuccess, nil
}
