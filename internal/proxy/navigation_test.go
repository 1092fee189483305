package proxy

import (
	"context"
	"net/http"
	"testing"
)

func TestNavigationOnlineReturnsLiveAndUpdatesRoot(t *testing.T) {
	te := newTestEnv(t)
	te.seedStatic(t, te.env.Keys.Root, textResponse(http.StatusOK, "text/html", "<html>old</html>"))

	result := NavigationHandler.Serve(context.Background(), newRequest(t, http.MethodGet, testOrigin+"/dashboard"), te.env)
	if result.Source != SourceNetwork {
		t.Fatalf("expected network source, got %s", result.Source)
	}
	if string(result.Response.Body) != "<html>live</html>" {
		t.Fatalf("unexpected body %q", result.Response.Body)
	}
	root := te.lookupStatic(t, te.env.Keys.Root)
	if root == nil || string(root.Body) != "<html>live</html>" {
		t.Fatalf("root key not refreshed: %+v", root)
	}
}

func TestNavigationStoresNonOKResponses(t *testing.T) {
	te := newTestEnv(t)
	te.fetcher.response = textResponse(http.StatusInternalServerError, "text/html", "oops")

	result := NavigationHandler.Serve(context.Background(), newRequest(t, http.MethodGet, testOrigin+"/"), te.env)
	if result.Response.Status != http.StatusInternalServerError {
		t.Fatalf("expected live 500, got %d", result.Response.Status)
	}
	if root := te.lookupStatic(t, te.env.Keys.Root); root == nil || root.Status != http.StatusInternalServerError {
		t.Fatalf("expected root to hold the live response, got %+v", root)
	}
}

func TestNavigationOfflineFallbackChain(t *testing.T) {
	t.Run("root", func(t *testing.T) {
		te := newTestEnv(t)
		te.fetcher.online = false
		te.seedStatic(t, te.env.Keys.Root, textResponse(http.StatusOK, "text/html", "<html>root</html>"))
		te.seedStatic(t, te.env.Keys.Offline, textResponse(http.StatusOK, "text/html", "<html>offline</html>"))

		result := NavigationHandler.Serve(context.Background(), newRequest(t, http.MethodGet, testOrigin+"/any/page"), te.env)
		if string(result.Response.Body) != "<html>root</html>" {
			t.Fatalf("expected root document, got %q", result.Response.Body)
		}
	})

	t.Run("offline page", func(t *testing.T) {
		te := newTestEnv(t)
		te.fetcher.online = false
		te.seedStatic(t, te.env.Keys.Offline, textResponse(http.StatusOK, "text/html", "<html>offline</html>"))

		result := NavigationHandler.Serve(context.Background(), newRequest(t, http.MethodGet, testOrigin+"/"), te.env)
		if string(result.Response.Body) != "<html>offline</html>" || result.Source != SourceFallback {
			t.Fatalf("expected offline page fallback, got %q from %s", result.Response.Body, result.Source)
		}
	})

	t.Run("synthesized", func(t *testing.T) {
		te := newTestEnv(t)
		te.fetcher.online = false

		result := NavigationHandler.Serve(context.Background(), newRequest(t, http.MethodGet, testOrigin+"/"), te.env)
		if result.Response.Status != http.StatusServiceUnavailable || string(result.Response.Body) != "Offline" {
			t.Fatalf("expected synthesized 503, got %d %q", result.Response.Status, result.Response.Body)
		}
		if ct := result.Response.ContentType(); ct != "text/plain;charset=UTF-8" {
			t.Fatalf("unexpected content type %q", ct)
		}
	})
}

func TestNavigationWriteFailureDoesNotAffectResponse(t *testing.T) {
	te := newTestEnv(t)
	te.store.failPuts = true

	result := NavigationHandler.Serve(context.Background(), newRequest(t, http.MethodGet, testOrigin+"/"), te.env)
	if result.Source != SourceNetwork || result.Response.Status != http.StatusOK {
		t.Fatalf("write failure leaked into response: %+v", result)
	}
	if _, puts := te.store.counts(); puts != 1 {
		t.Fatalf("expected one attempted write, got %d", puts)
	}
}
