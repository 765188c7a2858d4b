package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// discoveryServer serves a discovery document built from the server's own URL.
func discoveryServer(t *testing.T, doc func(base string) map[string]any) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc(server.URL))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDiscoverOIDC(t *testing.T) {
	server := discoveryServer(t, func(base string) map[string]any {
		return map[string]any{
			"issuer":                                base,
			"jwks_uri":                              base + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256", "ES256"},
		}
	})

	provider, err := DiscoverOIDC(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.JWKSURI != server.URL+"/jwks" {
		t.Errorf("jwks_uri = %s", provider.JWKSURI)
	}
}

func TestDiscoverOIDC_Rejects(t *testing.T) {
	cases := []struct {
		name string
		doc  func(base string) map[string]any
		want string
	}{
		{"missing jwks", func(base string) map[string]any {
			return map[string]any{"issuer": base}
		}, "jwks_uri"},
		{"issuer mismatch", func(base string) map[string]any {
			return map[string]any{"issuer": "https://other.example.com", "jwks_uri": base + "/jwks"}
		}, "expected"},
		{"no RS256", func(base string) map[string]any {
			return map[string]any{
				"issuer":                                base,
				"jwks_uri":                              base + "/jwks",
				"id_token_signing_alg_values_supported": []string{"HS256"},
			}
		}, "RS256"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := discoveryServer(t, tc.doc)
			_, err := DiscoverOIDC(context.Background(), server.URL)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestDiscoverOIDC_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	if _, err := DiscoverOIDC(context.Background(), server.URL); err == nil {
		t.Error("expected error for missing discovery document")
	}
}

func TestDiscoverOIDC_Canceled(t *testing.T) {
	server := discoveryServer(t, func(base string) map[string]any {
		return map[string]any{"issuer": base, "jwks_uri": base + "/jwks"}
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := DiscoverOIDC(ctx, server.URL); err == nil {
		t.Error("expected error for canceled context")
	}
}
