package mediator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/accurasound/sndchk/pkg/sndchk/model"
	"github.com/accurasound/sndchk/pkg/sndchk/ratelimit"
	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

const fingerprintHost = "https://api.acoustid.org/v2/lookup"

// FingerprintQuery is one (fingerprint, duration) pair tagged with the
// input stream it was computed from (spec §4.4).
type FingerprintQuery struct {
	StreamIndex int
	Fingerprint string
	DurationS   int
}

type fpRecording struct {
	ID            string            `json:"id"`
	ReleaseGroups []fpReleaseGroup `json:"releasegroups"`
}

type fpReleaseGroup struct {
	ID       string       `json:"id"`
	Releases []fpRelease `json:"releases"`
}

type fpRelease struct {
	ID string `json:"id"`
}

type fpResult struct {
	ID      string    `json:"id"` // the fingerprint-service's own result id
	Score   float64   `json:"score"`
	Recordings []fpRecording `json:"recordings"`
}

// fpBatchItem is one submission's results within a batched lookup
// response, correlated back to the submitting FingerprintQuery by Index.
type fpBatchItem struct {
	Index   int        `json:"index"`
	Results []fpResult `json:"results"`
}

type fpResponse struct {
	Status  string     `json:"status"`
	Results []fpResult `json:"results"`    // present when the request carried a single pair
	Fingerprint []fpBatchItem `json:"fingerprint"` // present when the request carried multiple indexed pairs
}

// FingerprintService is the batched, rate-limited AcoustID-style client of
// spec §4.4: the caller submits (fingerprint, duration, stream-index)
// triples, then Query issues one batched request and folds every match
// into a ResultModel keyed by stream index.
type FingerprintService struct {
	httpClient *http.Client
	userAgent  string
	apiKey     string
	limiter    *ratelimit.Limiter

	pending []FingerprintQuery
}

// NewFingerprintService returns a FingerprintService using apiKey for
// authentication and limiter for the ≤3 req/s server rate limit (spec §6).
func NewFingerprintService(userAgent, apiKey string, limiter *ratelimit.Limiter) *FingerprintService {
	return &FingerprintService{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  userAgent,
		apiKey:     apiKey,
		limiter:    limiter,
	}
}

// Submit stages q for the next Query call (spec §4.4: "caller submits
// pairs... after all pairs are submitted, query() returns").
func (s *FingerprintService) Submit(q FingerprintQuery) {
	s.pending = append(s.pending, q)
}

// Query issues one batched lookup request covering every staged
// submission (spec §6: "one or more (fingerprint, duration_s) pairs") and
// returns a ResultModel fragment: every matched recording becomes a
// Recording keyed by its own id (position assigned later by Reducer
// §4.6.2, which reconciles this id-keyed entry into the correctly
// positioned one) holding a Fingerprint per result id, with per-stream
// match scores attached.
func (s *FingerprintService) Query(ctx context.Context) (*model.ResultModel, error) {
	out := model.New()
	if len(s.pending) == 0 {
		return out, nil
	}
	if err := s.queryBatch(ctx, s.pending, out); err != nil {
		return nil, err
	}
	s.pending = nil
	return out, nil
}

func (s *FingerprintService) queryBatch(ctx context.Context, queries []FingerprintQuery, out *model.ResultModel) error {
	if err := s.limiter.Acquire(); err != nil {
		return err
	}

	values := url.Values{}
	values.Set("client", s.apiKey)
	values.Set("meta", "recordings+releasegroups+releases")
	for i, q := range queries {
		values.Set(fmt.Sprintf("fingerprint.%d", i), q.Fingerprint)
		values.Set(fmt.Sprintf("duration.%d", i), fmt.Sprintf("%d", q.DurationS))
	}
	fullURL := fingerprintHost + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return sndchkerr.New(sndchkerr.KindNetwork, "fingerprint", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		kind := sndchkerr.KindNetwork
		if ctx.Err() != nil {
			kind = sndchkerr.KindTimeout
		}
		return sndchkerr.New(kind, "fingerprint", err).WithContext(fmt.Sprintf("batch=%d", len(queries)))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return sndchkerr.Errorf(sndchkerr.KindNetwork, "fingerprint", "unexpected status %d", resp.StatusCode)
	}

	var parsed fpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return sndchkerr.New(sndchkerr.KindParse, "fingerprint", err)
	}
	if parsed.Status != "ok" {
		return sndchkerr.Errorf(sndchkerr.KindParse, "fingerprint", "response status %q", parsed.Status)
	}

	if len(parsed.Fingerprint) > 0 {
		for _, item := range parsed.Fingerprint {
			if item.Index < 0 || item.Index >= len(queries) {
				continue
			}
			foldFingerprintResults(out, item.Results, queries[item.Index].StreamIndex)
		}
		return nil
	}
	// The server replies with a bare "results" array, not "fingerprint",
	// when the batch carried exactly one pair.
	if len(queries) == 1 {
		foldFingerprintResults(out, parsed.Results, queries[0].StreamIndex)
	}
	return nil
}

func foldFingerprintResults(out *model.ResultModel, results []fpResult, streamIndex int) {
	for _, result := range results {
		for _, rec := range result.Recordings {
			for _, rg := range rec.ReleaseGroups {
				group := out.AddReleaseGroupByID(rg.ID)
				for _, rel := range rg.Releases {
					release := group.AddReleaseByID(rel.ID)
					medium := release.AddMediumByPosition(1)
					recording := medium.AddRecordingByID(rec.ID)
					fp := recording.AddFingerprintByID(result.ID)
					fp.AddMatch(streamIndex, result.Score)
				}
			}
		}
	}
}
