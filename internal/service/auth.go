package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sumire/cronboard/internal/domain"
	"github.com/sumire/cronboard/internal/metrics"
)

// CredentialStore defines the credential data access interface consumed by AuthService.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	Exists(ctx context.Context, email string) (bool, error)
	Insert(ctx context.Context, c domain.Credential) (*domain.Credential, error)
}

// IdentityStore persists links between local identities and GitHub accounts.
type IdentityStore interface {
	Link(ctx context.Context, link domain.IdentityLink) (*domain.IdentityLink, error)
	FindByUser(ctx context.Context, userID, provider string) (*domain.IdentityLink, error)
	Unlink(ctx context.Context, userID, provider string) error
}

// OAuthProvider performs the external OAuth exchange.
type OAuthProvider interface {
	AuthURL(state string, bind bool) string
	CodeForToken(ctx context.Context, code string, bind bool) (string, error)
	TokenForProfile(ctx context.Context, accessToken string) (*domain.GitHubProfile, error)
}

// AuthConfig holds AuthService options.
type AuthConfig struct {
	HashCost int
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// AuthService handles authentication logic.
type AuthService struct {
	users      CredentialStore
	identities IdentityStore
	github     OAuthProvider
	hashCost   int
	dummyHash  []byte
	metrics    metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users CredentialStore, identities IdentityStore, github OAuthProvider, cfg AuthConfig) *AuthService {
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Compared against on unknown emails so a miss costs as much as a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte("cronboard-dummy-password"), cfg.HashCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy hash: %v", err))
	}

	return &AuthService{
		users:      users,
		identities: identities,
		github:     github,
		hashCost:   cfg.HashCost,
		dummyHash:  dummy,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// DemoUser is a credential registered at startup.
type DemoUser struct {
	Name     string
	Email    string
	Password string
}

// DemoUsers are the accounts available out of the box.
var DemoUsers = []DemoUser{
	{Name: "Zhang San", Email: "zhangsan@example.com", Password: "password123"},
	{Name: "Test User", Email: "test@example.com", Password: "test123"},
}

// Seed registers users that are not yet present.
func (s *AuthService) Seed(ctx context.Context, users []DemoUser) error {
	for _, u := range users {
		_, err := s.Register(ctx, u.Name, u.Email, u.Password)
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	return nil
}

// Register creates a credential. A taken email yields domain.ErrConflict and
// leaves the store unchanged.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (domain.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return domain.User{}, fmt.Errorf("%w: name, email and password are required", domain.ErrInvalidInput)
	}

	taken, err := s.users.Exists(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.User{}, fmt.Errorf("register %s: %w", email, domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Insert(ctx, domain.Credential{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("register %s: %w", email, err)
	}

	s.logger.Info("user registered", "user_id", created.ID)
	return created.Identity(), nil
}

// Login verifies email and password and starts a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.Session, error) {
	if email == "" || password == "" {
		return domain.Session{}, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	cred, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			s.metrics.RecordLogin(string(domain.OriginCredentials), "failure")
			return domain.Session{}, domain.ErrUnauthorized
		}
		return domain.Session{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordLogin(string(domain.OriginCredentials), "failure")
		return domain.Session{}, domain.ErrUnauthorized
	}

	s.metrics.RecordLogin(string(domain.OriginCredentials), "success")
	return domain.NewSession(cred.Identity(), "", s.now()), nil
}

// GitHubAuthURL returns the GitHub authorization URL.
func (s *AuthService) GitHubAuthURL(state string, bind bool) string {
	return s.github.AuthURL(state, bind)
}

func (s *AuthService) exchange(ctx context.Context, code string, bind bool) (string, *domain.GitHubProfile, error) {
	token, err := s.github.CodeForToken(ctx, code, bind)
	if err != nil {
		return "", nil, err
	}

	profile, err := s.github.TokenForProfile(ctx, token)
	if err != nil {
		return "", nil, err
	}
	return token, profile, nil
}

// GitHubLogin exchanges code and starts a session for the GitHub account.
// The identity id is "github_<id>" so it never collides with credential ids.
func (s *AuthService) GitHubLogin(ctx context.Context, code string) (domain.Session, error) {
	token, profile, err := s.exchange(ctx, code, false)
	if err != nil {
		s.metrics.RecordLogin(string(domain.OriginExternalOAuth), "failure")
		return domain.Session{}, err
	}

	s.metrics.RecordLogin(string(domain.OriginExternalOAuth), "success")
	s.logger.Info("github login", "github_login", profile.Login)
	return domain.NewSession(profile.Identity(), token, s.now()), nil
}

// BindGitHub links the GitHub account behind code to the identity of current
// and returns the session updated with the GitHub access token.
func (s *AuthService) BindGitHub(ctx context.Context, current domain.Session, code string) (domain.Session, *domain.IdentityLink, error) {
	if current.User.ID == "" {
		return domain.Session{}, nil, domain.ErrUnauthorized
	}

	token, profile, err := s.exchange(ctx, code, true)
	if err != nil {
		return domain.Session{}, nil, err
	}

	link, err := s.identities.Link(ctx, domain.IdentityLink{
		UserID:     current.User.ID,
		Provider:   domain.ProviderGitHub,
		ProviderID: strconv.FormatInt(profile.ID, 10),
		Login:      profile.Login,
		AvatarURL:  profile.AvatarURL,
	})
	if err != nil {
		return domain.Session{}, nil, fmt.Errorf("link github account: %w", err)
	}

	s.logger.Info("github account bound", "user_id", current.User.ID, "github_login", profile.Login)
	return current.WithAccessToken(token), link, nil
}

// GitHubLink returns the GitHub account linked to the session identity.
func (s *AuthService) GitHubLink(ctx context.Context, current domain.Session) (*domain.IdentityLink, error) {
	return s.identities.FindByUser(ctx, current.User.ID, domain.ProviderGitHub)
}

// UnbindGitHub removes the GitHub link and drops the access token from the session.
func (s *AuthService) UnbindGitHub(ctx context.Context, current domain.Session) (domain.Session, error) {
	if err := s.identities.Unlink(ctx, current.User.ID, domain.ProviderGitHub); err != nil {
		return domain.Session{}, fmt.Errorf("unlink github account: %w", err)
	}
	return current.WithAccessToken(""), nil
}
