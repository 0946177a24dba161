package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/sumire/cronboard/internal/metrics"
	"github.com/sumire/cronboard/internal/service"
	"github.com/sumire/cronboard/internal/session"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Auth      *service.AuthService
	Dashboard *service.DashboardService
	Workflows *service.WorkflowClient
	Cookies   *session.Manager
	Metrics   *metrics.Collector
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger

	AllowedOrigin  string
	LoginRateLimit rate.Limit
	LoginRateBurst int
}

// NewRouter builds the echo instance serving pages and the JSON API.
func NewRouter(ctx context.Context, cfg RouterConfig) (*echo.Echo, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler
	// Rate limiting keys on the peer address, never on client-supplied headers.
	e.IPExtractor = echo.ExtractIPDirect()
	e.Validator = NewAppValidator()
	e.Renderer = renderer

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	if cfg.Metrics != nil {
		e.Use(cfg.Metrics.Middleware())
	}
	e.Use(RequestLogger(cfg.Logger))
	e.Use(middleware.Recover())
	if cfg.AllowedOrigin != "" {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     []string{cfg.AllowedOrigin},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderContentType},
			ExposeHeaders:    []string{echo.HeaderXRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	e.Use(SessionGate(cfg.Cookies))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(cfg.Gatherer)))
	}

	authH := NewAuthHandler(cfg.Auth, cfg.Cookies, cfg.Logger)
	dashH := NewDashboardHandler(cfg.Dashboard)
	flowH := NewWorkflowHandler(cfg.Workflows)
	pageH := NewPageHandler(cfg.Dashboard, cfg.Auth)

	limit := cfg.LoginRateLimit
	if limit == 0 {
		limit = 1
	}
	burst := cfg.LoginRateBurst
	if burst == 0 {
		burst = 5
	}
	limiter := NewRateLimiter(ctx, limit, burst)

	// Auth routes (gate passes, handlers read the cookie)
	auth := e.Group("/api/auth")
	auth.POST("/login", authH.Login, limiter.Middleware())
	auth.POST("/register", authH.Register, limiter.Middleware())
	auth.POST("/logout", authH.Logout)
	auth.GET("/session", authH.Session)
	auth.GET("/github", authH.GitHubRedirect)
	auth.GET("/callback/github", authH.GitHubCallback)
	auth.GET("/github/link", authH.GitHubLink)
	auth.DELETE("/github/link", authH.GitHubUnlink)

	// Protected API routes
	api := e.Group("/api")
	api.GET("/dashboard", dashH.Stats)

	api.GET("/tasks", dashH.ListTasks)
	api.POST("/tasks", dashH.CreateTask)
	api.GET("/tasks/:id", dashH.GetTask)
	api.PUT("/tasks/:id", dashH.UpdateTask)
	api.DELETE("/tasks/:id", dashH.DeleteTask)
	api.POST("/tasks/:id/toggle", dashH.ToggleTask)
	api.POST("/tasks/:id/run", dashH.RunTask)

	api.GET("/scripts", dashH.ListScripts)
	api.POST("/scripts", dashH.CreateScript)
	api.GET("/scripts/:id", dashH.GetScript)
	api.PUT("/scripts/:id", dashH.UpdateScript)
	api.DELETE("/scripts/:id", dashH.DeleteScript)

	api.GET("/logs", dashH.ListLogs)
	api.GET("/logs/:id", dashH.GetLog)
	api.DELETE("/logs/:id", dashH.DeleteLog)

	api.GET("/env", dashH.ListEnv)
	api.POST("/env", dashH.CreateEnv)
	api.GET("/env/:id", dashH.GetEnv)
	api.PUT("/env/:id", dashH.UpdateEnv)
	api.DELETE("/env/:id", dashH.DeleteEnv)

	api.GET("/settings", dashH.GetSettings)
	api.PUT("/settings", dashH.UpdateSettings)

	api.GET("/github/workflows", flowH.List)
	api.POST("/github/workflows", flowH.Dispatch)
	api.POST("/github/workflows/:id/enable", flowH.Enable)
	api.POST("/github/workflows/:id/disable", flowH.Disable)

	// Pages
	e.GET("/login", pageH.Login)
	e.GET("/", pageH.Home)
	e.GET("/tasks", pageH.Tasks)
	e.GET("/tasks/new", pageH.NewTask)
	e.GET("/scripts", pageH.Scripts)
	e.GET("/logs", pageH.Logs)
	e.GET("/env", pageH.Env)
	e.GET("/settings", pageH.Settings)
	e.GET("/settings/github", pageH.GitHubSettings)
	e.GET("/github-actions", pageH.GitHubActions)

	return e, nil
}
