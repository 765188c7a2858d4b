package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OIDCProvider holds the discovery fields used to validate tokens from an
// external identity provider.
type OIDCProvider struct {
	Issuer                  string   `json:"issuer"`
	JWKSURI                 string   `json:"jwks_uri"`
	IDTokenSigningAlgValues []string `json:"id_token_signing_alg_values_supported"`
}

var discoveryClient = &http.Client{Timeout: 10 * time.Second}

// DiscoverOIDC reads {issuer}/.well-known/openid-configuration. The document
// must name the same issuer and, when it lists signing algorithms, RS256.
func DiscoverOIDC(ctx context.Context, issuerURL string) (*OIDCProvider, error) {
	issuer := strings.TrimRight(issuerURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return nil, fmt.Errorf("build discovery request: %w", err)
	}
	resp, err := discoveryClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var p OIDCProvider
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode discovery document: %w", err)
	}
	switch {
	case p.JWKSURI == "":
		return nil, fmt.Errorf("discovery document has no jwks_uri")
	case strings.TrimRight(p.Issuer, "/") != issuer:
		return nil, fmt.Errorf("discovery document names issuer %q, expected %q", p.Issuer, issuer)
	case len(p.IDTokenSigningAlgValues) > 0 && !contains(p.IDTokenSigningAlgValues, "RS256"):
		return nil, fmt.Errorf("issuer does not sign with RS256")
	}
	return &p, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
