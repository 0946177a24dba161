package domain

import (
	"strconv"
	"time"
)

// Origin records how an identity was established.
type Origin string

const (
	OriginCredentials   Origin = "credentials"
	OriginExternalOAuth Origin = "external-oauth"
)

// ProviderGitHub prefixes identity ids created from GitHub logins so they
// never collide with credential store ids.
const ProviderGitHub = "github"

// User is the identity carried inside a session.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar,omitempty"`
	Origin    Origin `json:"origin"`
}

// Credential is a locally registered account.
type Credential struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Identity returns the session identity for the credential.
func (c Credential) Identity() User {
	return User{
		ID:     strconv.FormatInt(c.ID, 10),
		Name:   c.Name,
		Email:  c.Email,
		Origin: OriginCredentials,
	}
}

// GitHubProfile is the subset of the GitHub user resource the dashboard needs.
type GitHubProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
	HTMLURL   string `json:"html_url"`
}

// Identity returns the session identity for a GitHub login.
func (p GitHubProfile) Identity() User {
	name := p.Name
	if name == "" {
		name = p.Login
	}
	return User{
		ID:        ProviderGitHub + "_" + strconv.FormatInt(p.ID, 10),
		Name:      name,
		Email:     p.Email,
		AvatarURL: p.AvatarURL,
		Origin:    OriginExternalOAuth,
	}
}

// IdentityLink associates a GitHub account with a local identity.
type IdentityLink struct {
	UserID     string    `json:"user_id" db:"user_id"`
	Provider   string    `json:"provider" db:"provider"`
	ProviderID string    `json:"provider_id" db:"provider_id"`
	Login      string    `json:"login" db:"login"`
	AvatarURL  string    `json:"avatar_url" db:"avatar_url"`
	LinkedAt   time.Time `json:"linked_at" db:"linked_at"`
}
