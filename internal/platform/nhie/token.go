package nhie

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// refreshMargin is subtracted from the reported token lifetime so that no
// in-flight request observes a token that expires mid-call.
const refreshMargin = 5 * time.Minute

// tokenScope covers every NHIE operation this service performs.
const tokenScope = "patient.write encounter.write coverage.read"

// cachedToken is an immutable snapshot; refresh replaces the whole value.
type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

func (t *cachedToken) valid(now time.Time) bool {
	return t != nil && now.Before(t.expiresAt)
}

// TokenSource caches an OAuth2 client-credentials access token with proactive
// refresh. Concurrent callers may race to refresh an expired token; each
// refresh produces a fully valid token and the last write wins, so every
// caller still obtains a usable credential without serializing on a lock.
type TokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       zerolog.Logger
	now          func() time.Time

	mu    sync.RWMutex
	token *cachedToken
}

// NewTokenSource builds a token source. httpClient carries the same timeouts
// as the exchange client itself.
func NewTokenSource(tokenURL, clientID, clientSecret string, httpClient *http.Client, logger zerolog.Logger) *TokenSource {
	return &TokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock overrides the clock, for tests.
func (ts *TokenSource) SetClock(now func() time.Time) { ts.now = now }

// Token returns a bearer token valid for at least the refresh margin. A
// cached token within 5 minutes of expiry is treated as invalid and refreshed
// before being handed out.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.RLock()
	tok := ts.token
	ts.mu.RUnlock()

	now := ts.now()
	if tok.valid(now) {
		ts.logger.Debug().
			Dur("expires_in", tok.expiresAt.Sub(now)).
			Msg("using cached NHIE token")
		return tok.accessToken, nil
	}

	fresh, err := ts.requestToken(ctx)
	if err != nil {
		return "", err
	}

	ts.mu.Lock()
	ts.token = fresh
	ts.mu.Unlock()

	return fresh.accessToken, nil
}

// Seed installs a token directly. Test hook.
func (ts *TokenSource) Seed(accessToken string, expiresAt time.Time) {
	ts.mu.Lock()
	ts.token = &cachedToken{accessToken: accessToken, expiresAt: expiresAt.Add(-refreshMargin)}
	ts.mu.Unlock()
}

func (ts *TokenSource) requestToken(ctx context.Context) (*cachedToken, error) {
	if ts.tokenURL == "" || ts.clientID == "" || ts.clientSecret == "" {
		return nil, &AuthError{Err: fmt.Errorf("OAuth configuration incomplete")}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", tokenScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	basic := base64.StdEncoding.EncodeToString([]byte(ts.clientID + ":" + ts.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	ts.logger.Info().Str("token_url", ts.tokenURL).Msg("requesting NHIE OAuth token")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Err: fmt.Errorf("token endpoint returned %d", resp.StatusCode)}
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &AuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &AuthError{Err: fmt.Errorf("token response missing access_token")}
	}

	expiresAt := ts.now().Add(time.Duration(tr.ExpiresIn)*time.Second - refreshMargin)
	ts.logger.Info().Int("expires_in_s", tr.ExpiresIn).Msg("NHIE OAuth token acquired")

	return &cachedToken{accessToken: tr.AccessToken, expiresAt: expiresAt}, nil
}
