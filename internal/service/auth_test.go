package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sumire/cronboard/internal/domain"
	"github.com/sumire/cronboard/internal/repository"
)

type fakeOAuth struct {
	token      string
	tokenErr   error
	profile    *domain.GitHubProfile
	profileErr error
	codes      []string
	binds      []bool
}

func (f *fakeOAuth) AuthURL(state string, bind bool) string {
	if bind {
		return "https://github.test/authorize?bind=true&state=" + state
	}
	return "https://github.test/authorize?state=" + state
}

func (f *fakeOAuth) CodeForToken(_ context.Context, code string, bind bool) (string, error) {
	f.codes = append(f.codes, code)
	f.binds = append(f.binds, bind)
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return f.token, nil
}

func (f *fakeOAuth) TokenForProfile(_ context.Context, _ string) (*domain.GitHubProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

var fixedNow = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

func newTestAuth(t *testing.T, oauth OAuthProvider) (*AuthService, *repository.MemoryCredentialStore, *repository.MemoryIdentityStore) {
	t.Helper()
	users := repository.NewMemoryCredentialStore()
	identities := repository.NewMemoryIdentityStore()
	svc := NewAuthService(users, identities, oauth, AuthConfig{HashCost: bcrypt.MinCost})
	svc.now = func() time.Time { return fixedNow }
	require.NoError(t, svc.Seed(context.Background(), DemoUsers))
	return svc, users, identities
}

func TestAuthService_SeedIsIdempotent(t *testing.T) {
	svc, users, _ := newTestAuth(t, &fakeOAuth{})

	require.NoError(t, svc.Seed(context.Background(), DemoUsers))
	assert.Equal(t, len(DemoUsers), users.Len())
}

func TestAuthService_LoginDemoUser(t *testing.T) {
	svc, _, _ := newTestAuth(t, &fakeOAuth{})

	sess, err := svc.Login(context.Background(), "zhangsan@example.com", "password123")
	require.NoError(t, err)

	assert.Equal(t, "1", sess.User.ID)
	assert.Equal(t, "zhangsan@example.com", sess.User.Email)
	assert.Equal(t, domain.OriginCredentials, sess.User.Origin)
	assert.Empty(t, sess.AccessToken)
	assert.Equal(t, fixedNow.Add(domain.SessionTTL), sess.Expires)
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _, _ := newTestAuth(t, &fakeOAuth{})
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"wrong password", "zhangsan@example.com", "nope", domain.ErrUnauthorized},
		{"unknown email", "nobody@example.com", "password123", domain.ErrUnauthorized},
		{"missing password", "zhangsan@example.com", "", domain.ErrInvalidInput},
		{"missing email", "", "password123", domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	svc, users, _ := newTestAuth(t, &fakeOAuth{})
	ctx := context.Background()

	user, err := svc.Register(ctx, "Li Si", "lisi@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "3", user.ID)
	assert.Equal(t, 3, users.Len())

	stored, err := users.FindByEmail(ctx, "lisi@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"))

	sess, err := svc.Login(ctx, "lisi@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.User.ID)
}

func TestAuthService_RegisterDuplicateLeavesStoreUnchanged(t *testing.T) {
	svc, users, _ := newTestAuth(t, &fakeOAuth{})

	_, err := svc.Register(context.Background(), "Imposter", "test@example.com", "other")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, len(DemoUsers), users.Len())

	_, err = svc.Login(context.Background(), "test@example.com", "test123")
	assert.NoError(t, err)
}

func TestAuthService_RegisterRequiresFields(t *testing.T) {
	svc, _, _ := newTestAuth(t, &fakeOAuth{})

	_, err := svc.Register(context.Background(), "  ", "x@example.com", "pw")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func githubProfile() *domain.GitHubProfile {
	return &domain.GitHubProfile{
		ID:        42,
		Login:     "octocat",
		AvatarURL: "https://avatars.test/42",
		Email:     "octo@example.com",
	}
}

func TestAuthService_GitHubLogin(t *testing.T) {
	oauth := &fakeOAuth{token: "gho_abc", profile: githubProfile()}
	svc, _, _ := newTestAuth(t, oauth)

	sess, err := svc.GitHubLogin(context.Background(), "code-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"code-1"}, oauth.codes)
	assert.Equal(t, []bool{false}, oauth.binds)
	assert.Equal(t, "github_42", sess.User.ID)
	assert.Equal(t, "octocat", sess.User.Name)
	assert.Equal(t, "octo@example.com", sess.User.Email)
	assert.Equal(t, domain.OriginExternalOAuth, sess.User.Origin)
	assert.Equal(t, "gho_abc", sess.AccessToken)
	assert.Equal(t, fixedNow.Add(domain.SessionTTL), sess.Expires)
}

func TestAuthService_GitHubLoginUpstreamFailure(t *testing.T) {
	oauth := &fakeOAuth{tokenErr: errors.Join(domain.ErrUpstream, errors.New("bad_verification_code"))}
	svc, _, _ := newTestAuth(t, oauth)

	_, err := svc.GitHubLogin(context.Background(), "code-1")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestAuthService_BindGitHub(t *testing.T) {
	oauth := &fakeOAuth{token: "gho_bind", profile: githubProfile()}
	svc, _, identities := newTestAuth(t, oauth)
	ctx := context.Background()

	current, err := svc.Login(ctx, "test@example.com", "test123")
	require.NoError(t, err)

	updated, link, err := svc.BindGitHub(ctx, current, "code-2")
	require.NoError(t, err)

	assert.Equal(t, current.User, updated.User)
	assert.Equal(t, current.Expires, updated.Expires)
	assert.Equal(t, "gho_bind", updated.AccessToken)
	assert.Equal(t, []bool{true}, oauth.binds)
	assert.Equal(t, "42", link.ProviderID)
	assert.Equal(t, "octocat", link.Login)

	stored, err := identities.FindByUser(ctx, current.User.ID, domain.ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, "42", stored.ProviderID)

	found, err := svc.GitHubLink(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, "octocat", found.Login)

	unbound, err := svc.UnbindGitHub(ctx, updated)
	require.NoError(t, err)
	assert.Empty(t, unbound.AccessToken)

	_, err = svc.GitHubLink(ctx, unbound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthService_BindGitHubRequiresIdentity(t *testing.T) {
	oauth := &fakeOAuth{token: "gho_bind", profile: githubProfile()}
	svc, _, _ := newTestAuth(t, oauth)

	_, _, err := svc.BindGitHub(context.Background(), domain.Session{}, "code")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, oauth.codes)
}

func TestAuthService_BindGitHubProfileFailureLinksNothing(t *testing.T) {
	oauth := &fakeOAuth{token: "gho_bind", profileErr: domain.ErrUpstream}
	svc, _, identities := newTestAuth(t, oauth)
	ctx := context.Background()

	current, err := svc.Login(ctx, "test@example.com", "test123")
	require.NoError(t, err)

	_, _, err = svc.BindGitHub(ctx, current, "code")
	assert.ErrorIs(t, err, domain.ErrUpstream)

	_, err = identities.FindByUser(ctx, current.User.ID, domain.ProviderGitHub)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
