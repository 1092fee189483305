package proxy

import (
	"context"
	"net/http"
	"testing"
)

func TestDefaultOnlineDoesNotWrite(t *testing.T) {
	te := newTestEnv(t)
	te.fetcher.response = textResponse(http.StatusOK, "text/plain", "pong")

	result := DefaultHandler.Serve(context.Background(), newRequest(t, http.MethodGet, testOrigin+"/ping"), te.env)
	if result.Source != SourceNetwork || string(result.Response.Body) != "pong" {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, puts := te.store.counts(); puts != 0 {
		t.Fatalf("default handler must not write, got %d puts", puts)
	}
}

func TestDefaultOfflineFallbacks(t *testing.T) {
	te := newTestEnv(t)
	te.fetcher.online = false
	te.seedStatic(t, testOrigin+"/manifest.json", textResponse(http.StatusOK, "application/json", "{}"))

	hit := DefaultHandler.Serve(context.Background(), newRequest(t, http.MethodGet, testOrigin+"/manifest.json"), te.env)
	if hit.Source != SourceCache || string(hit.Response.Body) != "{}" {
		t.Fatalf("expected exact static entry, got %+v", hit)
	}

	miss := DefaultHandler.Serve(context.Background(), newRequest(t, http.MethodGet, testOrigin+"/other"), te.env)
	if miss.Response.Status != http.StatusServiceUnavailable || miss.Source != SourceSynthetic {
		t.Fatalf("expected synthesized 503, got %d %s", miss.Response.Status, miss.Source)
	}
}

func TestDefaultOfflinePostSkipsStaticEntry(t *testing.T) {
	te := newTestEnv(t)
	te.fetcher.online = false
	te.seedStatic(t, testOrigin+"/update_settings", textResponse(http.StatusOK, "application/json", `{"saved":true}`))

	result := DefaultHandler.Serve(context.Background(), newRequest(t, http.MethodPost, testOrigin+"/update_settings"), te.env)
	if result.Response.Status != http.StatusServiceUnavailable || result.Source != SourceSynthetic {
		t.Fatalf("offline POST must not be answered from cache, got %d %s", result.Response.Status, result.Source)
	}
	if matches, _ := te.store.counts(); matches == 0 {
		t.Fatalf("expected the offline-page lookup to run")
	}
}
