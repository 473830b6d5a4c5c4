package mediator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/accurasound/sndchk/pkg/sndchk/cache"
	"github.com/accurasound/sndchk/pkg/sndchk/ratelimit"
	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

const accurateRipHost = "http://www.accuraterip.com"

// DiscOffsets is the set of sector offsets AccurateRip's path derivation
// needs: each audio track's absolute offset (including the 150-sector
// initial gap) and the leadout offset (spec §6).
type DiscOffsets struct {
	TrackOffsets []int // o_i, one per audio track, in track order
	Leadout      int
}

// AccurateRipIdentity is the derived (d1, d2, cddb, n) disc-identity tuple
// and the path built from it (spec §6).
type AccurateRipIdentity struct {
	D1    uint32
	D2    uint32
	CDDB  uint32
	N     int
	Path  string
}

// DeriveAccurateRipIdentity computes the disc-identity tuple and request
// path from a disc's track/leadout offsets, per the exact arithmetic of
// spec §6. Deterministic: re-deriving from the same offsets always yields
// the same path (spec §8 round-trip property).
func DeriveAccurateRipIdentity(d DiscOffsets) AccurateRipIdentity {
	n := len(d.TrackOffsets)
	adjusted := make([]uint32, n)
	for i, o := range d.TrackOffsets {
		adjusted[i] = uint32(o - 150)
	}
	leadoutAdj := uint32(d.Leadout - 150)

	var d1, d2 uint32
	for i, oa := range adjusted {
		d1 += oa
		term := oa
		if oa == 0 {
			term = 1
		}
		d2 += term * uint32(i+1)
	}
	d1 += leadoutAdj
	d2 += leadoutAdj * uint32(n+1)

	var checksum uint32
	for _, oa := range adjusted {
		checksum += digitSum(oa/75 + 2)
	}
	checksum %= 255
	firstAdj := uint32(0)
	if n > 0 {
		firstAdj = adjusted[0]
	}
	cddb := (checksum << 24) + (((leadoutAdj - firstAdj) / 75) << 8) + uint32(n)

	path := fmt.Sprintf("/accuraterip/%x/%x/%x/dBAR-%03d-%08x-%08x-%08x.bin",
		d1&0xf, (d1>>4)&0xf, (d1>>8)&0xf, n, d1, d2, cddb)

	return AccurateRipIdentity{D1: d1, D2: d2, CDDB: cddb, N: n, Path: path}
}

// digitSum returns the sum of the decimal digits of n (the freedb/CDDB
// disc-ID checksum primitive referenced by spec §6's cddb formula).
func digitSum(n uint32) uint32 {
	var sum uint32
	for n > 0 {
		sum += n % 10
		n /= 10
	}
	return sum
}

// AccurateRipClient fetches and parses the per-disc AccurateRip database
// response (spec §4.4). Caching is the caller's (Mediator's)
// responsibility; this type is a thin, side-effect-free HTTP collaborator.
type AccurateRipClient struct {
	httpClient *http.Client
	userAgent  string
	limiter    *ratelimit.Limiter

	// localHost, when non-empty, is tried before accurateRipHost (spec
	// §6 localhost-helper fallback). Empty by default: no helper
	// protocol is modeled, so requests go straight to the public host.
	localHost string
}

// NewAccurateRipClient returns a client gated by the shared per-service
// rate limiter (spec §4.1/§4.4: AccurateRip's own dispatcher FIFO).
func NewAccurateRipClient(userAgent string, limiter *ratelimit.Limiter) *AccurateRipClient {
	return &AccurateRipClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  userAgent,
		limiter:    limiter,
	}
}

// WithLocalHost configures a localhost-helper base URL (e.g.
// "http://localhost:8080") to probe before falling back to the public
// AccurateRip host, per spec §6. Returns c for chaining.
func (c *AccurateRipClient) WithLocalHost(localHost string) *AccurateRipClient {
	c.localHost = localHost
	return c
}

// Fetch retrieves and parses the AccurateRip records for the disc
// identified by id. A 404 is reported as (nil, cache.StatusNotFound, nil):
// a successful, cacheable not-found (spec §4.4 caching note).
func (c *AccurateRipClient) Fetch(ctx context.Context, id AccurateRipIdentity) ([]AccurateRipRecord, cache.Status, error) {
	if err := c.limiter.Acquire(); err != nil {
		return nil, cache.StatusError, err
	}

	resp, err := fetchWithLocalFallback(ctx, c.httpClient, c.userAgent, c.localHost, accurateRipHost, id.Path)
	if err != nil {
		kind := sndchkerr.KindNetwork
		if ctx.Err() != nil {
			kind = sndchkerr.KindTimeout
		}
		return nil, cache.StatusError, sndchkerr.New(kind, "accuraterip", err).WithContext(id.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, cache.StatusNotFound, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, cache.StatusError, sndchkerr.Errorf(sndchkerr.KindNetwork, "accuraterip", "unexpected status %d for %s", resp.StatusCode, id.Path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cache.StatusError, sndchkerr.New(sndchkerr.KindNetwork, "accuraterip", err).WithContext(id.Path)
	}

	records, err := ParseAccurateRip(body)
	if err != nil {
		return nil, cache.StatusError, err
	}
	return records, cache.StatusSuccess, nil
}
