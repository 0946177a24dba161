package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/sumire/cronboard/internal/domain"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// ErrNoSession is returned when the request carries no session cookie.
var ErrNoSession = errors.New("no session cookie")

// Manager reads and writes the session cookie. Cookie flags are fixed:
// HttpOnly, path "/", SameSite=Lax, seven day max age, and Secure in production.
type Manager struct {
	codec  *Codec
	secure bool
}

// NewManager creates a Manager.
func NewManager(codec *Codec, secure bool) *Manager {
	return &Manager{codec: codec, secure: secure}
}

// Codec returns the codec used for cookie values.
func (m *Manager) Codec() *Codec {
	return m.codec
}

// Write encodes s and sets it as the session cookie.
func (m *Manager) Write(w http.ResponseWriter, s domain.Session) error {
	value, err := m.codec.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(domain.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the session carried by r. A missing or empty cookie yields
// ErrNoSession; an undecodable one wraps domain.ErrMalformedSession.
func (m *Manager) Read(r *http.Request) (domain.Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return domain.Session{}, ErrNoSession
	}
	return m.codec.Decode(cookie.Value)
}
