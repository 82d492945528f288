package microsoft

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

// NormaliseEndpoint validates a D365 service root URL and ensures it ends in "/".
// When the URL has no path, the product's default base path is appended.
func NormaliseEndpoint(endpoint string, product domain.Product) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("%w: endpoint is required", domain.ErrInvalidInput)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: parse endpoint: %w", domain.ErrInvalidInput, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("%w: endpoint must be an http(s) URL, got %q", domain.ErrInvalidInput, endpoint)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: endpoint has no host: %q", domain.ErrInvalidInput, endpoint)
	}

	u.RawQuery = ""
	u.Fragment = ""
	if u.Path == "" || u.Path == "/" {
		u.Path = product.DefaultBasePath()
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

// ResourceFromEndpoint returns the token audience for an endpoint: its scheme and host.
//
//	https://org.crm.dynamics.com/api/data/v9.2/ -> https://org.crm.dynamics.com
func ResourceFromEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		parts := strings.SplitN(endpoint, "/", 4)
		if len(parts) >= 3 {
			return strings.Join(parts[:3], "/")
		}
		return endpoint
	}
	return u.Scheme + "://" + u.Host
}

// SameHost reports whether link points at the same scheme and host as endpoint.
// Bearer tokens are only ever sent to the configured host.
func SameHost(link, endpoint string) bool {
	lu, err := url.Parse(link)
	if err != nil {
		return false
	}
	eu, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return strings.EqualFold(lu.Scheme, eu.Scheme) && strings.EqualFold(lu.Host, eu.Host)
}
