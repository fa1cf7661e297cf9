// Package auth signs in to Microsoft 365 with an Azure AD application and
// keeps the resulting token between runs.
package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
	"golang.org/x/oauth2"
)

const (
	// DefaultRedirectURI is the native-client redirect registered for the app.
	DefaultRedirectURI = "https://login.microsoftonline.com/common/oauth2/nativeclient"

	authorityBase = "https://login.microsoftonline.com/"

	keyMSALCache = "msal_cache"
	keyAccountID = "account_id"
)

// DefaultScopes are the delegated Graph permissions needed to read a shared
// calendar and probe the signed-in user.
var DefaultScopes = []string{
	"https://graph.microsoft.com/Calendars.Read.Shared",
	"https://graph.microsoft.com/User.Read",
}

var (
	ErrAuthFailed = errors.New("authentication failed")
	ErrNoToken    = errors.New("no stored token")
)

// Token represents an OAuth2 access token.
type Token struct {
	AccessToken string
	ExpiresOn   time.Time
	AccountID   string
}

// Client returns an HTTP client that sends the token as a bearer credential.
func (t *Token) Client(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   "Bearer",
		Expiry:      t.ExpiresOn,
	}))
}

// Prober verifies that a token is accepted by the service.
type Prober func(ctx context.Context, token *Token) error

// Config holds the Azure AD application registration.
type Config struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string
	Scopes       []string
}

// confidentialClient is the part of the MSAL confidential client we use.
type confidentialClient interface {
	AuthCodeURL(ctx context.Context, clientID, redirectURI string, scopes []string, opts ...confidential.AuthCodeURLOption) (string, error)
	AcquireTokenByAuthCode(ctx context.Context, code string, redirectURI string, scopes []string, opts ...confidential.AcquireByAuthCodeOption) (confidential.AuthResult, error)
	AcquireTokenSilent(ctx context.Context, scopes []string, opts ...confidential.AcquireSilentOption) (confidential.AuthResult, error)
	Account(ctx context.Context, accountID string) (confidential.Account, error)
}

// Authenticator obtains a token, reusing the stored one while the service
// still accepts it.
type Authenticator struct {
	client confidentialClient
	cfg    Config
	store  Store
	probe  Prober

	// in and out carry the interactive consent prompt.
	in  io.Reader
	out io.Writer
}

// NewAuthenticator creates an authenticator whose MSAL token cache lives in store.
func NewAuthenticator(cfg Config, store Store, probe Prober) (*Authenticator, error) {
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = DefaultRedirectURI
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}

	cred, err := confidential.NewCredFromSecret(cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	client, err := confidential.New(authorityBase+cfg.TenantID, cfg.ClientID, cred,
		confidential.WithCache(&storeCache{store: store}))
	if err != nil {
		return nil, fmt.Errorf("create MSAL client: %w", err)
	}

	return &Authenticator{
		client: &client,
		cfg:    cfg,
		store:  store,
		probe:  probe,
		in:     os.Stdin,
		out:    os.Stderr,
	}, nil
}

// Authenticate returns a token the service accepts. A stored token that
// fails the probe is cleared and the consent flow runs once; if that token
// is rejected as well the error wraps ErrAuthFailed.
func (a *Authenticator) Authenticate(ctx context.Context) (*Token, error) {
	token, err := a.stored(ctx)
	switch {
	case err == nil:
		probeErr := a.check(ctx, token)
		if probeErr == nil {
			slog.Debug("successfully tested stored token")
			return token, nil
		}
		slog.Warn("failed to authenticate with stored token, clearing it and authenticating again", "error", probeErr)
		if err := a.store.Clear(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	case errors.Is(err, ErrNoToken):
		slog.Debug("no stored token, starting consent flow")
	default:
		slog.Warn("could not use stored token", "error", err)
		if err := a.store.Clear(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}

	token, err = a.interactive(ctx)
	if err == nil {
		err = a.check(ctx, token)
	}
	if err != nil {
		if clearErr := a.store.Clear(); clearErr != nil {
			slog.Warn("failed to clear token store", "error", clearErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	slog.Debug("successfully tested new token")
	return token, nil
}

// Logout forgets the stored token.
func (a *Authenticator) Logout() error {
	return a.store.Clear()
}

func (a *Authenticator) check(ctx context.Context, token *Token) error {
	if a.probe == nil {
		return nil
	}
	return a.probe(ctx, token)
}

// stored acquires a token silently for the account saved by a previous run.
func (a *Authenticator) stored(ctx context.Context) (*Token, error) {
	id, err := a.store.Get(keyAccountID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}

	acct, err := a.client.Account(ctx, string(id))
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct.IsZero() {
		return nil, ErrNoToken
	}

	result, err := a.client.AcquireTokenSilent(ctx, a.cfg.Scopes, confidential.WithSilentAccount(acct))
	if err != nil {
		return nil, fmt.Errorf("silent auth: %w", err)
	}

	return &Token{
		AccessToken: result.AccessToken,
		ExpiresOn:   result.ExpiresOn,
		AccountID:   acct.HomeAccountID,
	}, nil
}

// interactive asks the user to consent in a browser and paste back the URL
// they were redirected to.
func (a *Authenticator) interactive(ctx context.Context) (*Token, error) {
	authURL, err := a.client.AuthCodeURL(ctx, a.cfg.ClientID, a.cfg.RedirectURI, a.cfg.Scopes)
	if err != nil {
		return nil, fmt.Errorf("build consent url: %w", err)
	}

	fmt.Fprintf(a.out, "\nVisit the following url to give consent:\n%s\n\nPaste the authenticated url here:\n", authURL)

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("read redirected url: %w", err)
	}

	code, err := authCode(strings.TrimSpace(line))
	if err != nil {
		return nil, err
	}

	result, err := a.client.AcquireTokenByAuthCode(ctx, code, a.cfg.RedirectURI, a.cfg.Scopes)
	if err != nil {
		return nil, fmt.Errorf("redeem auth code: %w", err)
	}

	if err := a.store.Set(keyAccountID, []byte(result.Account.HomeAccountID)); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}

	return &Token{
		AccessToken: result.AccessToken,
		ExpiresOn:   result.ExpiresOn,
		AccountID:   result.Account.HomeAccountID,
	}, nil
}

// authCode extracts the authorization code from a redirected URL.
func authCode(redirected string) (string, error) {
	if redirected == "" {
		return "", errors.New("no redirected url given")
	}

	u, err := url.Parse(redirected)
	if err != nil {
		return "", fmt.Errorf("parse redirected url: %w", err)
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("consent denied: %s: %s", e, q.Get("error_description"))
	}

	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirected url has no code parameter")
	}
	return code, nil
}
