package http

import (
	nethttp "net/http"
	"net/url"
	"testing"

	"github.com/fieldline/bulkpush/internal/config"
)

func TestNewClientModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		url     string
		wantErr bool
	}{
		{"no proxy", "no-proxy", "", false},
		{"empty defaults to no proxy", "", "", false},
		{"system", "system", "", false},
		{"basic with url", "basic", "http://proxy.corp:8080", false},
		{"basic missing url", "basic", "", true},
		{"ntlm with url", "ntlm", "http://proxy.corp:8080", false},
		{"unknown mode", "socks9", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.ProxyMode = tt.mode
			cfg.ProxyURL = tt.url

			client, err := NewClient(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for mode %q", tt.mode)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient failed: %v", err)
			}
			if client == nil {
				t.Fatal("NewClient returned nil client")
			}
		})
	}
}

func TestBuildProxyURLCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.ProxyMode = "basic"
	cfg.ProxyURL = "proxy.corp:3128"
	cfg.ProxyUser = "alice"
	cfg.ProxyPassword = "s3cret"

	u, err := buildProxyURL(cfg)
	if err != nil {
		t.Fatalf("buildProxyURL failed: %v", err)
	}
	if u.Scheme != "http" {
		t.Errorf("scheme = %q, want http", u.Scheme)
	}
	if u.User == nil {
		t.Fatal("expected credentials in proxy URL")
	}
	pw, _ := u.User.Password()
	if u.User.Username() != "alice" || pw != "s3cret" {
		t.Errorf("credentials = %s:%s, want alice:s3cret", u.User.Username(), pw)
	}

	// Password missing: no credentials in URL
	cfg.ProxyPassword = ""
	u, err = buildProxyURL(cfg)
	if err != nil {
		t.Fatalf("buildProxyURL failed: %v", err)
	}
	if u.User != nil {
		t.Error("credentials should be omitted when password is empty")
	}
}

func TestProxyFuncBypass(t *testing.T) {
	proxyURL := &url.URL{Scheme: "http", Host: "proxy.corp:8080"}
	fn := proxyFuncWithBypass(proxyURL, "internal.corp")

	direct, _ := nethttp.NewRequest("GET", "https://api.internal.corp/v1", nil)
	if got, _ := fn(direct); got != nil {
		t.Errorf("expected bypass for internal.corp, got %v", got)
	}

	external, _ := nethttp.NewRequest("GET", "https://api.example.com/v1", nil)
	if got, _ := fn(external); got == nil || got.Host != "proxy.corp:8080" {
		t.Errorf("expected proxy for external host, got %v", got)
	}
}
