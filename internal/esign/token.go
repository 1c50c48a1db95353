// Package esign talks to the e-signature platform: OAuth JWT-grant access
// tokens and the envelope documents API.
package esign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthErrorKind classifies token acquisition failures so callers can decide
// between refusing to start and retrying later.
type AuthErrorKind string

const (
	// AuthConfigMissing means the integration key, user ID, or private key
	// is absent or unusable. No request was sent.
	AuthConfigMissing AuthErrorKind = "config_missing"

	// AuthConsentRequired means the impersonated user has not granted the
	// integration consent. An operator must visit the consent URL.
	AuthConsentRequired AuthErrorKind = "consent_required"

	// AuthOther covers every remaining refusal or transport failure.
	AuthOther AuthErrorKind = "other"
)

// AuthError is a classified token acquisition failure.
type AuthError struct {
	Kind    AuthErrorKind
	Message string

	// ConsentURL is the grant page an operator must visit. Set only when
	// Kind is AuthConsentRequired.
	ConsentURL string

	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("esign auth (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("esign auth (%s): %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TokenConfig holds everything the JWT grant flow needs.
type TokenConfig struct {
	// IntegrationKey is the OAuth client ID of the integration.
	IntegrationKey string

	// UserID is the GUID of the impersonated API user.
	UserID string

	// PrivateKey is the RSA private key in PEM form. When empty,
	// PrivateKeyFile is read instead.
	PrivateKey string

	// PrivateKeyFile is a path to the PEM private key.
	PrivateKeyFile string

	// OAuthHost is the account server, e.g. "account-d.docusign.com".
	// A full URL (with scheme) is accepted too.
	OAuthHost string

	// Scopes requested by the grant. Defaults to signature+impersonation.
	Scopes []string

	// RedirectURI is only used to build the consent URL.
	RedirectURI string

	// RefreshBuffer renews the cached token this long before it expires.
	RefreshBuffer time.Duration

	// Timeout bounds each token request.
	Timeout time.Duration
}

// DefaultScopes are the grant scopes the worker needs.
var DefaultScopes = []string{"signature", "impersonation"}

// TokenProvider acquires and caches a JWT-grant access token. A single
// provider is shared by all concurrent fulfillments; the cache is refreshed
// under a lock so only one request is in flight, and a failed refresh leaves
// the cache empty for the next caller to retry.
type TokenProvider struct {
	cfg        TokenConfig
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewTokenProvider constructs a TokenProvider, applying scope, buffer, and
// timeout defaults.
func NewTokenProvider(cfg TokenConfig) *TokenProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.RefreshBuffer <= 0 {
		cfg.RefreshBuffer = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &TokenProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

// Token returns a valid access token, refreshing the cached one when it is
// inside the expiry buffer. Failures are always *AuthError.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && p.now().Add(p.cfg.RefreshBuffer).Before(p.expiresAt) {
		return p.accessToken, nil
	}

	if err := p.refreshLocked(ctx); err != nil {
		return "", err
	}
	return p.accessToken, nil
}

// CheckToken probes token acquisition. Run it at startup so a worker with
// broken credentials refuses to consume instead of nacking forever.
func (p *TokenProvider) CheckToken(ctx context.Context) error {
	_, err := p.Token(ctx)
	return err
}

// ConsentURL is the page where the impersonated user grants this
// integration its scopes.
func (p *TokenProvider) ConsentURL() string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(p.cfg.Scopes, " "))
	q.Set("client_id", p.cfg.IntegrationKey)
	q.Set("redirect_uri", p.cfg.RedirectURI)
	return fmt.Sprintf("%s/oauth/auth?%s", p.oauthBase(), q.Encode())
}

func (p *TokenProvider) oauthBase() string {
	host := strings.TrimSuffix(p.cfg.OAuthHost, "/")
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

// refreshLocked validates config, signs the grant assertion, and exchanges
// it for an access token. Callers hold p.mu.
func (p *TokenProvider) refreshLocked(ctx context.Context) error {
	p.accessToken = ""

	if p.cfg.IntegrationKey == "" || p.cfg.UserID == "" {
		return &AuthError{Kind: AuthConfigMissing, Message: "integration key and user id must be configured"}
	}
	if p.cfg.OAuthHost == "" {
		return &AuthError{Kind: AuthConfigMissing, Message: "oauth host must be configured"}
	}

	key, err := p.privateKey()
	if err != nil {
		return err
	}

	now := p.now()
	claims := grantClaims{
		Scope: strings.Join(p.cfg.Scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.IntegrationKey,
			Subject:   p.cfg.UserID,
			Audience:  jwt.ClaimStrings{strings.TrimPrefix(strings.TrimPrefix(p.cfg.OAuthHost, "https://"), "http://")},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return &AuthError{Kind: AuthOther, Message: "sign grant assertion", Err: err}
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, p.oauthBase()+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return &AuthError{Kind: AuthOther, Message: "build token request", Err: err}
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(request)
	if err != nil {
		return &AuthError{Kind: AuthOther, Message: "send token request", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		var refusal struct {
			Code string `json:"error"`
		}
		_ = json.Unmarshal(body, &refusal)

		if refusal.Code == "consent_required" || strings.Contains(string(body), "consent_required") {
			return &AuthError{
				Kind:       AuthConsentRequired,
				Message:    "impersonated user has not granted consent",
				ConsentURL: p.ConsentURL(),
			}
		}
		return &AuthError{
			Kind:    AuthOther,
			Message: fmt.Sprintf("token response status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return &AuthError{Kind: AuthOther, Message: "decode token response", Err: err}
	}
	if token.AccessToken == "" {
		return &AuthError{Kind: AuthOther, Message: "token response missing access_token"}
	}

	p.accessToken = token.AccessToken
	p.expiresAt = p.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return nil
}

// privateKey loads and parses the configured RSA key. Any problem here is a
// configuration error, not a transient one.
func (p *TokenProvider) privateKey() (any, error) {
	pemBytes := []byte(p.cfg.PrivateKey)
	if len(pemBytes) == 0 {
		if p.cfg.PrivateKeyFile == "" {
			return nil, &AuthError{Kind: AuthConfigMissing, Message: "private key must be configured"}
		}
		b, err := os.ReadFile(p.cfg.PrivateKeyFile)
		if err != nil {
			return nil, &AuthError{Kind: AuthConfigMissing, Message: "read private key file", Err: err}
		}
		pemBytes = b
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, &AuthError{Kind: AuthConfigMissing, Message: "parse private key", Err: err}
	}
	return key, nil
}

type grantClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}
