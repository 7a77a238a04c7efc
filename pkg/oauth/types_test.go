package oauth

import (
	"context"
	"testing"
)

func TestConfiguration_SupportsPKCE(t *testing.T) {
	tests := []struct {
		name    string
		methods []string
		want    bool
	}{
		{"unspecified assumes S256", nil, true},
		{"S256 listed", []string{"plain", "S256"}, true},
		{"plain only", []string{"plain"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Configuration{CodeChallengeMethodsSupported: tt.methods}
			if got := cfg.SupportsPKCE(); got != tt.want {
				t.Errorf("SupportsPKCE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfiguration_Validate(t *testing.T) {
	var nilCfg *Configuration
	if err := nilCfg.Validate(); err == nil {
		t.Error("expected error for nil configuration")
	}

	if err := (&Configuration{AuthorizationEndpoint: "https://a/authorize"}).Validate(); err == nil {
		t.Error("expected error for missing token endpoint")
	}

	cfg := &Configuration{AuthorizationEndpoint: "https://a/authorize", TokenEndpoint: "https://a/token"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	endpoint := cfg.Endpoint()
	if endpoint.AuthURL != cfg.AuthorizationEndpoint || endpoint.TokenURL != cfg.TokenEndpoint {
		t.Errorf("unexpected endpoint %+v", endpoint)
	}
	if cfg.IDTokenVerifier(context.Background(), "app") != nil {
		t.Error("expected nil verifier for hand-built configuration")
	}
}

func TestConfiguration_IDTokenVerifierFromJWKS(t *testing.T) {
	cfg := &Configuration{
		Issuer:                "https://ehr.example.com",
		AuthorizationEndpoint: "https://ehr.example.com/authorize",
		TokenEndpoint:         "https://ehr.example.com/token",
		JwksURI:               "https://ehr.example.com/jwks",
	}
	if cfg.IDTokenVerifier(context.Background(), "app") == nil {
		t.Error("expected verifier from jwks_uri")
	}

	cfg.Issuer = ""
	if cfg.IDTokenVerifier(context.Background(), "app") != nil {
		t.Error("expected nil verifier without an issuer to check")
	}
}
