package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/sumire/cronboard/internal/domain"
	"github.com/sumire/cronboard/internal/metrics"
	"github.com/sumire/cronboard/internal/repository"
	"github.com/sumire/cronboard/internal/service"
	"github.com/sumire/cronboard/internal/session"
)

type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) AuthURL(state string, bind bool) string {
	args := m.Called(state, bind)
	return args.String(0)
}

func (m *MockOAuthProvider) CodeForToken(_ context.Context, code string, bind bool) (string, error) {
	args := m.Called(code, bind)
	return args.String(0), args.Error(1)
}

func (m *MockOAuthProvider) TokenForProfile(_ context.Context, accessToken string) (*domain.GitHubProfile, error) {
	args := m.Called(accessToken)
	profile, _ := args.Get(0).(*domain.GitHubProfile)
	return profile, args.Error(1)
}

type testEnv struct {
	e          *echo.Echo
	cookies    *session.Manager
	oauth      *MockOAuthProvider
	users      *repository.MemoryCredentialStore
	identities *repository.MemoryIdentityStore
	registry   *prometheus.Registry
}

type envOption func(*RouterConfig)

func withRateLimit(limit rate.Limit, burst int) envOption {
	return func(cfg *RouterConfig) {
		cfg.LoginRateLimit = limit
		cfg.LoginRateBurst = burst
	}
}

func withGitHubAPI(url string) envOption {
	return func(cfg *RouterConfig) {
		cfg.Workflows = service.NewWorkflowClient(url, time.Second)
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	codec, err := session.NewCodec([]byte("test-session-secret"))
	require.NoError(t, err)

	env := &testEnv{
		cookies:    session.NewManager(codec, false),
		oauth:      new(MockOAuthProvider),
		users:      repository.NewMemoryCredentialStore(),
		identities: repository.NewMemoryIdentityStore(),
		registry:   prometheus.NewRegistry(),
	}

	auth := service.NewAuthService(env.users, env.identities, env.oauth, service.AuthConfig{
		HashCost: bcrypt.MinCost,
		Logger:   logger,
	})
	require.NoError(t, auth.Seed(context.Background(), service.DemoUsers))

	cfg := RouterConfig{
		Auth:           auth,
		Dashboard:      service.NewDashboardService(repository.NewDashboardStore()),
		Workflows:      service.NewWorkflowClient("http://127.0.0.1:1", time.Second),
		Cookies:        env.cookies,
		Metrics:        metrics.NewCollector(env.registry),
		Gatherer:       env.registry,
		Logger:         logger,
		LoginRateLimit: rate.Inf,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	env.e, err = NewRouter(t.Context(), cfg)
	require.NoError(t, err)
	return env
}

func (env *testEnv) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// sessionCookie returns a valid cookie for s.
func (env *testEnv) sessionCookie(t *testing.T, s domain.Session) *http.Cookie {
	t.Helper()
	value, err := env.cookies.Codec().Encode(s)
	require.NoError(t, err)
	return &http.Cookie{Name: session.CookieName, Value: value}
}

func (env *testEnv) demoSession(t *testing.T, accessToken string) *http.Cookie {
	t.Helper()
	user := domain.User{ID: "2", Name: "Test User", Email: "test@example.com", Origin: domain.OriginCredentials}
	return env.sessionCookie(t, domain.NewSession(user, accessToken, time.Now()))
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
