package domain

import "time"

// SessionTTL is how long a session cookie stays valid.
const SessionTTL = 7 * 24 * time.Hour

// Session is the identity claim carried in the session cookie.
type Session struct {
	User        User      `json:"user"`
	AccessToken string    `json:"accessToken,omitempty"`
	Expires     time.Time `json:"expires"`
}

// NewSession starts a session for user that expires after SessionTTL.
func NewSession(user User, accessToken string, now time.Time) Session {
	return Session{
		User:        user,
		AccessToken: accessToken,
		Expires:     now.Add(SessionTTL).UTC().Truncate(time.Second),
	}
}

// WithAccessToken returns a copy of the session carrying token.
func (s Session) WithAccessToken(token string) Session {
	return Session{
		User:        s.User,
		AccessToken: token,
		Expires:     s.Expires,
	}
}
