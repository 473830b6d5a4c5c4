package mediator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchWithLocalFallbackUsesLocalOnSuccess(t *testing.T) {
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("local"))
	}))
	defer local.Close()
	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("public host should not be hit when local succeeds")
	}))
	defer public.Close()

	resp, err := fetchWithLocalFallback(context.Background(), http.DefaultClient, "ua", local.URL, public.URL, "/path")
	if err != nil {
		t.Fatalf("fetchWithLocalFallback: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from local, got %d", resp.StatusCode)
	}
}

func TestFetchWithLocalFallbackFallsBackOn404(t *testing.T) {
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer local.Close()
	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("public"))
	}))
	defer public.Close()

	resp, err := fetchWithLocalFallback(context.Background(), http.DefaultClient, "ua", local.URL, public.URL, "/path")
	if err != nil {
		t.Fatalf("fetchWithLocalFallback: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected fallback to public's 200, got %d", resp.StatusCode)
	}
}

func TestFetchWithLocalFallbackFallsBackOnRedirect(t *testing.T) {
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer local.Close()
	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("public"))
	}))
	defer public.Close()

	resp, err := fetchWithLocalFallback(context.Background(), http.DefaultClient, "ua", local.URL, public.URL, "/path")
	if err != nil {
		t.Fatalf("fetchWithLocalFallback: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected fallback to public's 200, got %d", resp.StatusCode)
	}
}

func TestFetchWithLocalFallbackFallsBackOnConnectionRefused(t *testing.T) {
	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("public"))
	}))
	defer public.Close()

	resp, err := fetchWithLocalFallback(context.Background(), http.DefaultClient, "ua", "http://127.0.0.1:1", public.URL, "/path")
	if err != nil {
		t.Fatalf("fetchWithLocalFallback: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected fallback to public's 200, got %d", resp.StatusCode)
	}
}

func TestFetchWithLocalFallbackSkippedWhenLocalHostEmpty(t *testing.T) {
	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("public"))
	}))
	defer public.Close()

	resp, err := fetchWithLocalFallback(context.Background(), http.DefaultClient, "ua", "", public.URL, "/path")
	if err != nil {
		t.Fatalf("fetchWithLocalFallback: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected public's 200, got %d", resp.StatusCode)
	}
}
