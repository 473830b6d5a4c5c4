package mediator

import (
	"context"
	"net/http"
	"time"
)

// localProbeClient is used only for the optional localhost-helper probe; it
// must not auto-follow redirects, since a redirect is itself one of the
// fallback triggers below rather than something to chase.
var localProbeClient = &http.Client{
	Timeout: 5 * time.Second,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// fetchWithLocalFallback issues the GET against localHost+path first when
// localHost is configured, and retries against publicHost+path on
// connection-refused, 404, or redirect (spec §6: "Original often writes to
// the 'localhost' helper first and falls back to the public host on
// connection refused / 404 / redirect. The fallback is preserved; the
// helper protocol itself is outside scope."). localHost == "" (the default
// for both clients) skips the probe entirely and goes straight to
// publicHost, since no local helper protocol is modeled here.
func fetchWithLocalFallback(ctx context.Context, client *http.Client, userAgent, localHost, publicHost, path string) (*http.Response, error) {
	if localHost != "" {
		if resp, ok := tryLocalHost(ctx, userAgent, localHost, path); ok {
			return resp, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, publicHost+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return client.Do(req)
}

// tryLocalHost attempts the local-helper request and reports whether its
// response should be used as-is (ok==true) or whether the caller should
// fall back to the public host (ok==false).
func tryLocalHost(ctx context.Context, userAgent, localHost, path string) (*http.Response, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, localHost+path, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := localProbeClient.Do(req)
	if err != nil {
		return nil, false
	}
	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode >= 300 && resp.StatusCode < 400) {
		resp.Body.Close()
		return nil, false
	}
	return resp, true
}
