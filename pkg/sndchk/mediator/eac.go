package mediator

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/accurasound/sndchk/pkg/sndchk/cache"
	"github.com/accurasound/sndchk/pkg/sndchk/ratelimit"
	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

const eacHost = "http://www.eacdbserver.com"

// eacDiscIDReplacer reverses the metadata-service disc identifier's
// variant base64 alphabet substitution: `. _ -` in place of `+ / =` (spec
// §6).
var eacDiscIDReplacer = strings.NewReplacer(".", "+", "_", "/", "-", "=")

// DeriveEACPath decodes a 28-character metadata-service disc identifier
// into its 21 raw bytes and builds the EAC CRC database request path (spec
// §6). nTracks is the disc's audio track count.
func DeriveEACPath(discID string, nTracks int) (string, error) {
	if len(discID) != 28 {
		return "", sndchkerr.Errorf(sndchkerr.KindInconsistent, "eac", "disc id must be 28 chars, got %d", len(discID))
	}
	standard := eacDiscIDReplacer.Replace(discID)
	raw, err := base64.StdEncoding.DecodeString(standard)
	if err != nil {
		return "", sndchkerr.New(sndchkerr.KindInconsistent, "eac", err)
	}
	if len(raw) != 21 {
		return "", sndchkerr.Errorf(sndchkerr.KindInconsistent, "eac", "decoded disc id must be 21 bytes, got %d", len(raw))
	}

	hi0, lo0 := raw[0]>>4, raw[0]&0xf
	hi1, lo1 := raw[1]>>4, raw[1]&0xf

	var rawHex strings.Builder
	for _, b := range raw {
		fmt.Fprintf(&rawHex, "%02x", b)
	}

	return fmt.Sprintf("/crc/%x/%x/%x/%x/%s-%d.bin", hi0, lo0, hi1, lo1, rawHex.String(), nTracks), nil
}

// EACClient fetches and parses EAC CRC database responses (spec §4.4).
type EACClient struct {
	httpClient *http.Client
	userAgent  string
	limiter    *ratelimit.Limiter

	// localHost mirrors AccurateRipClient.localHost: empty by default,
	// set via WithLocalHost to enable the spec §6 fallback probe.
	localHost string
}

// NewEACClient returns a client gated by the given rate limiter.
func NewEACClient(userAgent string, limiter *ratelimit.Limiter) *EACClient {
	return &EACClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  userAgent,
		limiter:    limiter,
	}
}

// WithLocalHost configures a localhost-helper base URL to probe before
// falling back to the public EAC host, per spec §6. Returns c for
// chaining.
func (c *EACClient) WithLocalHost(localHost string) *EACClient {
	c.localHost = localHost
	return c
}

// Fetch retrieves and parses the EAC response for the disc identified by
// discID/nTracks. A 404 is reported as (nil, cache.StatusNotFound, nil).
func (c *EACClient) Fetch(ctx context.Context, discID string, nTracks int) (*EACResponse, cache.Status, error) {
	path, err := DeriveEACPath(discID, nTracks)
	if err != nil {
		return nil, cache.StatusError, err
	}
	if err := c.limiter.Acquire(); err != nil {
		return nil, cache.StatusError, err
	}

	resp, err := fetchWithLocalFallback(ctx, c.httpClient, c.userAgent, c.localHost, eacHost, path)
	if err != nil {
		kind := sndchkerr.KindNetwork
		if ctx.Err() != nil {
			kind = sndchkerr.KindTimeout
		}
		return nil, cache.StatusError, sndchkerr.New(kind, "eac", err).WithContext(path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, cache.StatusNotFound, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, cache.StatusError, sndchkerr.Errorf(sndchkerr.KindNetwork, "eac", "unexpected status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cache.StatusError, sndchkerr.New(sndchkerr.KindNetwork, "eac", err).WithContext(path)
	}

	parsed, err := ParseEAC(body)
	if err != nil {
		return nil, cache.StatusError, err
	}
	return parsed, cache.StatusSuccess, nil
}
