package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/sumire/cronboard/internal/domain"
	"github.com/sumire/cronboard/internal/session"
)

const (
	contextKeySession = "session"
)

// publicPrefixes never require a session.
var publicPrefixes = []string{
	"/login",
	"/api/auth/callback/github",
	"/health",
	"/metrics",
}

// Decision is the outcome of the session gate for one request.
type Decision int

const (
	// Pass lets the request through.
	Pass Decision = iota
	// Reject answers 401 without a redirect.
	Reject
	// Redirect sends the browser to the login page.
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Pass:
		return "pass"
	case Reject:
		return "reject"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decide evaluates the gate for path. Public routes always pass; the auth
// API subtree reads the cookie itself; other API routes are rejected and
// pages are redirected when there is no session.
func Decide(path string, hasSession bool) Decision {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return Pass
		}
	}
	if hasSession {
		return Pass
	}
	if strings.HasPrefix(path, "/api/auth") {
		return Pass
	}
	if strings.HasPrefix(path, "/api") {
		return Reject
	}
	return Redirect
}

// LoginRedirectURL returns the login page URL that brings the user back to path.
func LoginRedirectURL(path string) string {
	return "/login?redirect=" + url.QueryEscape(path)
}

// SessionGate decodes the session cookie once per request and applies Decide.
// A present but empty or undecodable cookie counts as no session.
func SessionGate(cookies *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := cookies.Read(c.Request())
			hasSession := err == nil
			if hasSession {
				c.Set(contextKeySession, s)
			}

			path := c.Request().URL.Path
			switch Decide(path, hasSession) {
			case Reject:
				return c.JSON(http.StatusUnauthorized, ErrorBody{Error: "unauthorized", Code: "unauthorized"})
			case Redirect:
				return c.Redirect(http.StatusTemporaryRedirect, LoginRedirectURL(path))
			default:
				return next(c)
			}
		}
	}
}

// GetSession returns the session decoded by SessionGate.
func GetSession(c echo.Context) (domain.Session, bool) {
	s, ok := c.Get(contextKeySession).(domain.Session)
	return s, ok
}

// RequestLogger logs each HTTP request with structured fields.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			attrs := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if s, ok := GetSession(c); ok {
				attrs = append(attrs, "user_id", s.User.ID)
			}
			logger.Info("http request", attrs...)

			return nil
		}
	}
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a per-IP rate limiter. Stale entries are swept until
// ctx is done.
func NewRateLimiter(ctx context.Context, r rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		rate:     r,
		burst:    burst,
	}
	go rl.cleanupLoop(ctx)
	return rl
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, exists := rl.limiters[ip]; exists {
		l.lastSeen = time.Now()
		return l.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = &ipLimiter{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(3 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, l := range rl.limiters {
				if time.Since(l.lastSeen) > 5*time.Minute {
					delete(rl.limiters, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware returns an echo middleware that enforces the rate limit.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.getLimiter(c.RealIP()).Allow() {
				retryAfter := 1
				if rl.rate > 0 {
					retryAfter = max(int(1.0/float64(rl.rate)), 1)
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many attempts, try again later")
			}
			return next(c)
		}
	}
}
