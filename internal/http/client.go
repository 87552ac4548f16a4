// Package http configures the HTTP client shared by all remote calls,
// including corporate proxy support.
package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"os"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/http2"

	"github.com/fieldline/bulkpush/internal/config"
	"github.com/fieldline/bulkpush/internal/constants"
)

// NewClient builds an HTTP client from the proxy configuration.
//
// Proxy modes:
//   - "no-proxy" / "": direct connections only
//   - "system": HTTP_PROXY / HTTPS_PROXY / NO_PROXY environment variables
//   - "basic": explicit proxy URL with basic auth credentials
//   - "ntlm": explicit proxy URL with NTLM negotiation
//
// The client has no overall timeout; each API call sets its own via
// context so a slow proxy handshake cannot mask a hung write.
func NewClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: constants.HTTPTLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}
	_ = http2.ConfigureTransport(transport)

	// Proxies often mishandle HTTP/2 multiplexing; drop to HTTP/1.1
	// whenever one is in play unless explicitly overridden.
	if proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true" {
		transport.ForceAttemptHTTP2 = false
		transport.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "basic":
		proxyURL, err := buildProxyURL(cfg)
		if err != nil {
			return nil, err
		}
		transport.Proxy = proxyFuncWithBypass(proxyURL, os.Getenv("NO_PROXY"))

	case "ntlm":
		proxyURL, err := buildProxyURL(cfg)
		if err != nil {
			return nil, err
		}
		transport.Proxy = proxyFuncWithBypass(proxyURL, os.Getenv("NO_PROXY"))
		return &nethttp.Client{
			Transport: ntlmssp.Negotiator{
				RoundTripper: transport,
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	return &nethttp.Client{
		Transport: transport,
	}, nil
}

// buildProxyURL constructs the proxy URL from config, embedding
// credentials only when both user and password are present. An empty
// password in the URL trips up some proxies.
func buildProxyURL(cfg *config.Config) (*url.URL, error) {
	if cfg.ProxyURL == "" {
		return nil, fmt.Errorf("proxy mode %q requires a proxy URL", cfg.ProxyMode)
	}

	proxyURL, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err)
	}
	if proxyURL.Scheme == "" {
		proxyURL.Scheme = "http"
	}

	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL, nil
}

// proxyFuncWithBypass returns a proxy function honoring a NO_PROXY
// bypass list. With an empty list it behaves like nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
}

func proxyActive(cfg *config.Config) bool {
	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}
