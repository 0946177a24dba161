package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sumire/cronboard/internal/domain"
	"github.com/sumire/cronboard/internal/metrics"
)

const (
	defaultGitHubAPIURL = "https://api.github.com"
	githubAccept        = "application/vnd.github+json"
	githubScope         = "repo"

	stepToken   = "token"
	stepProfile = "profile"
)

// GitHubOAuthConfig holds the GitHub OAuth application settings.
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration

	// Overridable for tests.
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	RetryBackoff time.Duration
	Metrics      metrics.Recorder
}

// GitHubOAuth performs the code-for-token and token-for-profile exchange.
// Each call gets one retry with jittered backoff on transient failures.
type GitHubOAuth struct {
	oauth      *oauth2.Config
	apiBaseURL string
	client     *http.Client
	backoff    time.Duration
	metrics    metrics.Recorder
}

// NewGitHubOAuth creates a GitHubOAuth.
func NewGitHubOAuth(cfg GitHubOAuthConfig) *GitHubOAuth {
	endpoint := github.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultGitHubAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}

	return &GitHubOAuth{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{githubScope},
			RedirectURL:  cfg.RedirectURL,
		},
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		client:     &http.Client{Timeout: cfg.Timeout},
		backoff:    cfg.RetryBackoff,
		metrics:    cfg.Metrics,
	}
}

// AuthURL returns the GitHub authorization URL. Bind mode redirects back to
// the callback with bind=true.
func (g *GitHubOAuth) AuthURL(state string, bind bool) string {
	return g.oauth.AuthCodeURL(state, g.redirectParam(bind))
}

// redirectParam pins redirect_uri. GitHub rejects a token request whose
// redirect_uri differs from the one the code was issued for.
func (g *GitHubOAuth) redirectParam(bind bool) oauth2.AuthCodeOption {
	uri := g.oauth.RedirectURL
	if bind {
		uri += "?bind=true"
	}
	return oauth2.SetAuthURLParam("redirect_uri", uri)
}

// CodeForToken exchanges an authorization code for an access token. bind must
// match the AuthURL call that issued code.
func (g *GitHubOAuth) CodeForToken(ctx context.Context, code string, bind bool) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: missing authorization code", domain.ErrInvalidInput)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	token, err := withRetry(ctx, g.backoff, func() (*oauth2.Token, error) {
		tok, err := g.oauth.Exchange(ctx, code, g.redirectParam(bind))
		if err != nil {
			return nil, classifyTokenError(err)
		}
		return tok, nil
	})
	if err != nil {
		g.metrics.RecordOAuthCall(stepToken, "error")
		return "", fmt.Errorf("%w: github token exchange: %v", domain.ErrUpstream, err)
	}
	if token.AccessToken == "" {
		g.metrics.RecordOAuthCall(stepToken, "error")
		return "", fmt.Errorf("%w: github token exchange returned no token", domain.ErrUpstream)
	}

	g.metrics.RecordOAuthCall(stepToken, "success")
	return token.AccessToken, nil
}

// TokenForProfile fetches the GitHub profile of the token owner. When the
// public profile hides the email, the primary address is looked up.
func (g *GitHubOAuth) TokenForProfile(ctx context.Context, accessToken string) (*domain.GitHubProfile, error) {
	var profile domain.GitHubProfile
	err := g.getJSON(ctx, accessToken, "/user", &profile)
	if err != nil {
		g.metrics.RecordOAuthCall(stepProfile, "error")
		return nil, fmt.Errorf("fetch github profile: %w", err)
	}
	if profile.ID == 0 {
		g.metrics.RecordOAuthCall(stepProfile, "error")
		return nil, fmt.Errorf("%w: github profile without id", domain.ErrUpstream)
	}
	g.metrics.RecordOAuthCall(stepProfile, "success")

	if profile.Email == "" {
		if email, err := g.primaryEmail(ctx, accessToken); err == nil {
			profile.Email = email
		}
	}

	return &profile, nil
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHubOAuth) primaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []githubEmail
	if err := g.getJSON(ctx, accessToken, "/user/emails", &emails); err != nil {
		return "", err
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", errors.New("no email found for github user")
}

func (g *GitHubOAuth) getJSON(ctx context.Context, accessToken, path string, out any) error {
	_, err := withRetry(ctx, g.backoff, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBaseURL+path, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", githubAccept)

		resp, err := g.client.Do(req)
		if err != nil {
			return struct{}{}, classifyTransportError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := readStatusError(resp)
			if transientStatus(resp.StatusCode) {
				return struct{}{}, statusErr
			}
			return struct{}{}, backoff.Permanent(statusErr)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: decode %s: %v", domain.ErrUpstream, path, err))
		}
		return struct{}{}, nil
	})
	return err
}

// withRetry runs op at most twice, waiting a jittered backoff between attempts.
func withRetry[T any](ctx context.Context, initial time.Duration, op backoff.Operation[T]) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.RandomizationFactor = 0.5
	bo.MaxInterval = 4 * initial

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(2),
	)
}

func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && transientStatus(retrieveErr.Response.StatusCode) {
			return err
		}
		return backoff.Permanent(err)
	}
	return classifyTransportError(err)
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return backoff.Permanent(err)
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return err
	}
	return backoff.Permanent(err)
}

func transientStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

type githubErrorBody struct {
	Message string `json:"message"`
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := strings.TrimSpace(string(body))
	var parsed githubErrorBody
	if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		msg = parsed.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &domain.UpstreamStatusError{StatusCode: resp.StatusCode, Message: msg}
}
