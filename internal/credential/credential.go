// Package credential exchanges a Google service-account key for a
// short-lived OAuth2 access token using the JWT bearer grant.
//
// The assertion is signed locally with the account's RSA key and posted once
// to the token endpoint. Tokens are returned to the caller and never stored.
package credential

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	oauthjwt "golang.org/x/oauth2/jwt"

	"github.com/lawdesk/lawdesk-reminders/internal/reminder"
	"github.com/lawdesk/lawdesk-reminders/internal/textutil"
)

const (
	// DefaultTokenURL is Google's OAuth2 token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	// MessagingScope grants access to the FCM HTTP v1 API.
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

	assertionLifetime = time.Hour
)

// Token is an access token returned by the token endpoint.
type Token struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
}

// Exchanger obtains access tokens for one service identity.
type Exchanger struct {
	httpClient *http.Client
	tokenURL   string
	identity   string
	privateKey string
	scope      string
}

// NewExchanger creates an Exchanger for the given service account email and
// PEM private key. An empty tokenURL uses DefaultTokenURL; a nil httpClient
// gets a client with a 30s timeout.
func NewExchanger(identity, privateKey, tokenURL string, httpClient *http.Client) *Exchanger {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Exchanger{
		httpClient: httpClient,
		tokenURL:   tokenURL,
		identity:   identity,
		privateKey: privateKey,
		scope:      MessagingScope,
	}
}

// AccessToken implements reminder.TokenSource.
func (e *Exchanger) AccessToken(ctx context.Context) (string, error) {
	tok, err := e.Exchange(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Exchange signs an assertion and trades it for an access token. The key is
// validated before any request is made. All failures are returned as
// *reminder.CredentialError. The request is bounded by the Exchanger's HTTP
// client timeout.
func (e *Exchanger) Exchange(ctx context.Context) (*Token, error) {
	key, err := ParsePrivateKey(e.privateKey)
	if err != nil {
		return nil, &reminder.CredentialError{Err: err}
	}

	conf := &oauthjwt.Config{
		Email:      e.identity,
		PrivateKey: x509.MarshalPKCS1PrivateKey(key),
		Scopes:     []string{e.scope},
		TokenURL:   e.tokenURL,
		Expires:    assertionLifetime,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	tok, err := conf.TokenSource(ctx).Token()
	if err != nil {
		return nil, &reminder.CredentialError{Err: tokenEndpointError(err)}
	}
	if tok.AccessToken == "" {
		return nil, &reminder.CredentialError{Err: errors.New("token response lacks access_token")}
	}
	return &Token{AccessToken: tok.AccessToken, TokenType: tok.TokenType, Expiry: tok.Expiry}, nil
}

// tokenEndpointError shortens the response body carried by a rejected
// exchange; other failures are wrapped as-is.
func tokenEndpointError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return fmt.Errorf("token endpoint returned %d: %s", re.Response.StatusCode, textutil.Truncate(re.Body, 300))
	}
	return fmt.Errorf("token endpoint: %w", err)
}

// ParsePrivateKey decodes a PEM-encoded RSA key (PKCS#1 or PKCS#8). Escaped
// newlines, as found in env-provided secrets, are restored first.
func ParsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	s := strings.Trim(strings.TrimSpace(raw), `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	if s == "" {
		return nil, fmt.Errorf("parse private key: empty key")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}
