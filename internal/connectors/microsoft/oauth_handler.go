package microsoft

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driven"
	"github.com/custodia-labs/d365-odata-mcp/internal/logger"
)

// Ensure both acquirers implement the port.
var (
	_ driven.TokenAcquirer = (*AzureADAcquirer)(nil)
	_ driven.TokenAcquirer = (*ADFSAcquirer)(nil)
)

// OAuth constants.
const (
	defaultAuthorityURL = "https://login.microsoftonline.com"
	// defaultTokenLifetime applies when the provider omits expires_in.
	defaultTokenLifetime = time.Hour
	tokenRequestTimeout  = 30 * time.Second
)

// AcquirerOptions holds optional overrides for token acquirers.
type AcquirerOptions struct {
	// HTTPClient is used for token requests. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// AuthorityURL overrides https://login.microsoftonline.com (Azure AD only).
	AuthorityURL string
}

// NewAcquirer selects the acquirer for cfg.AuthType.
func NewAcquirer(cfg domain.AuthConfig, opts AcquirerOptions) (driven.TokenAcquirer, error) {
	switch cfg.AuthType {
	case domain.AuthAzureAD, "":
		return NewAzureADAcquirer(cfg, opts)
	case domain.AuthADFS:
		return NewADFSAcquirer(cfg, opts)
	default:
		return nil, fmt.Errorf("%w: unsupported auth type %q", domain.ErrInvalidInput, cfg.AuthType)
	}
}

// AzureADAcquirer obtains tokens from an Azure AD tenant with the v2.0
// client-credentials grant. The D365 audience is requested as "<resource>/.default".
type AzureADAcquirer struct {
	config     clientcredentials.Config
	httpClient *http.Client
}

// NewAzureADAcquirer creates an Azure AD acquirer.
func NewAzureADAcquirer(cfg domain.AuthConfig, opts AcquirerOptions) (*AzureADAcquirer, error) {
	if strings.TrimSpace(cfg.TenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required for azure auth", domain.ErrInvalidInput)
	}

	authority := strings.TrimRight(strings.TrimSpace(opts.AuthorityURL), "/")
	if authority == "" {
		authority = defaultAuthorityURL
	}

	return &AzureADAcquirer{
		config: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     authority + "/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token",
			Scopes:       []string{AzureScope(resourceFor(cfg))},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClientOrDefault(opts.HTTPClient),
	}, nil
}

// AuthType returns domain.AuthAzureAD.
func (a *AzureADAcquirer) AuthType() domain.AuthType {
	return domain.AuthAzureAD
}

// TokenURL returns the tenant token endpoint.
func (a *AzureADAcquirer) TokenURL() string {
	return a.config.TokenURL
}

// Acquire performs one token request.
func (a *AzureADAcquirer) Acquire(ctx context.Context) (*domain.Token, error) {
	return acquire(ctx, &a.config, a.httpClient, domain.AuthAzureAD)
}

// ADFSAcquirer obtains tokens from an on-premise ADFS farm. ADFS has no tenant
// scoped issuer and takes the audience as "resource" rather than "scope".
type ADFSAcquirer struct {
	config     clientcredentials.Config
	httpClient *http.Client
}

// NewADFSAcquirer creates an ADFS acquirer. Without TokenURL the endpoint
// https://<tenant>/adfs/oauth2/token is used, treating TenantID as the ADFS host.
func NewADFSAcquirer(cfg domain.AuthConfig, opts AcquirerOptions) (*ADFSAcquirer, error) {
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		if strings.TrimSpace(cfg.TenantID) == "" {
			return nil, fmt.Errorf("%w: token url is required for adfs auth", domain.ErrInvalidInput)
		}
		tokenURL = "https://" + strings.TrimSpace(cfg.TenantID) + "/adfs/oauth2/token"
	}

	return &ADFSAcquirer{
		config: clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       tokenURL,
			EndpointParams: url.Values{"resource": {resourceFor(cfg)}},
			AuthStyle:      oauth2.AuthStyleInParams,
		},
		httpClient: httpClientOrDefault(opts.HTTPClient),
	}, nil
}

// AuthType returns domain.AuthADFS.
func (a *ADFSAcquirer) AuthType() domain.AuthType {
	return domain.AuthADFS
}

// TokenURL returns the configured ADFS token endpoint.
func (a *ADFSAcquirer) TokenURL() string {
	return a.config.TokenURL
}

// Acquire performs one token request.
func (a *ADFSAcquirer) Acquire(ctx context.Context) (*domain.Token, error) {
	return acquire(ctx, &a.config, a.httpClient, domain.AuthADFS)
}

// AzureScope converts a resource URL to its v2.0 default scope.
func AzureScope(resource string) string {
	if strings.HasSuffix(resource, "/") {
		return resource + ".default"
	}
	return resource + "/.default"
}

func resourceFor(cfg domain.AuthConfig) string {
	if r := strings.TrimSpace(cfg.Resource); r != "" {
		return r
	}
	return ResourceFromEndpoint(cfg.Endpoint)
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: tokenRequestTimeout}
}

func acquire(
	ctx context.Context, cfg *clientcredentials.Config, client *http.Client, authType domain.AuthType,
) (*domain.Token, error) {
	logger.Debug("d365-auth: requesting %s token from %s", authType, cfg.TokenURL)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, toAuthError(authType, err)
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenLifetime)
	}

	tokenType := tok.Type()
	logger.Debug("d365-auth: %s token acquired, expires at %s", authType, expiresAt.Format(time.RFC3339))

	return &domain.Token{
		AccessToken: tok.AccessToken,
		TokenType:   tokenType,
		ExpiresAt:   expiresAt,
	}, nil
}

func toAuthError(authType domain.AuthType, err error) *domain.AuthError {
	authErr := &domain.AuthError{AuthType: authType, Err: err}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
		}
		authErr.Code = retrieveErr.ErrorCode
		authErr.Description = retrieveErr.ErrorDescription
		if authErr.Code == "" && authErr.Description == "" {
			authErr.Description = truncate(strings.TrimSpace(string(retrieveErr.Body)), 512)
		}
	}
	return authErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
