package handler

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/cronboard/internal/domain"
	"github.com/sumire/cronboard/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer renders the embedded page templates. Every page is parsed together
// with the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"datetime": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"optdatetime": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format("2006-01-02 15:04")
	},
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		base := strings.TrimSuffix(path.Base(name), ".html")
		if base == "layout" {
			continue
		}
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", base, err)
		}
		r.pages[base] = t
	}
	return r, nil
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// PageData is passed to every page template.
type PageData struct {
	Title  string
	Active string
	User   *domain.User
	Data   any
}

// PageHandler serves the server-rendered dashboard pages.
type PageHandler struct {
	dashboard *service.DashboardService
	auth      *service.AuthService
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(dashboard *service.DashboardService, auth *service.AuthService) *PageHandler {
	return &PageHandler{dashboard: dashboard, auth: auth}
}

func (h *PageHandler) render(c echo.Context, name, title string, data any) error {
	page := PageData{Title: title, Active: name, Data: data}
	if s, ok := GetSession(c); ok {
		page.User = &s.User
	}
	return c.Render(http.StatusOK, name, page)
}

var loginErrors = map[string]string{
	callbackErrNotAuthenticated: "Sign in before connecting a GitHub account.",
	callbackErrInvalidSession:   "Your session is invalid, please sign in again.",
	callbackErrFailed:           "GitHub sign-in failed, please try again.",
	callbackErrStateMismatch:    "GitHub sign-in expired, please try again.",
}

type loginPage struct {
	Error    string
	Redirect string
}

// Login renders the sign-in and registration page.
func (h *PageHandler) Login(c echo.Context) error {
	return h.render(c, "login", "Sign in", loginPage{
		Error:    loginErrors[c.QueryParam("error")],
		Redirect: safeRedirect(c.QueryParam("redirect")),
	})
}

// safeRedirect keeps redirect only when it is a local absolute path.
func safeRedirect(redirect string) string {
	if !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") || strings.HasPrefix(redirect, "/\\") {
		return "/"
	}
	u, err := url.Parse(redirect)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return redirect
}

// Home renders the overview page.
func (h *PageHandler) Home(c echo.Context) error {
	return h.render(c, "home", "Dashboard", h.dashboard.Stats())
}

// Tasks renders the task list.
func (h *PageHandler) Tasks(c echo.Context) error {
	tasks := h.dashboard.ListTasks(service.TaskFilter{
		Query:  c.QueryParam("q"),
		Status: domain.TaskStatus(c.QueryParam("status")),
	})
	return h.render(c, "tasks", "Tasks", tasks)
}

// NewTask renders the task creation form.
func (h *PageHandler) NewTask(c echo.Context) error {
	return h.render(c, "task_new", "New task", h.dashboard.ListScripts(""))
}

// Scripts renders the script list.
func (h *PageHandler) Scripts(c echo.Context) error {
	return h.render(c, "scripts", "Scripts", h.dashboard.ListScripts(c.QueryParam("q")))
}

// Logs renders the execution log.
func (h *PageHandler) Logs(c echo.Context) error {
	logs := h.dashboard.ListLogs(service.LogFilter{
		Query:  c.QueryParam("q"),
		Status: domain.RunStatus(c.QueryParam("status")),
	})
	return h.render(c, "logs", "Logs", logs)
}

// Env renders the environment variables with secrets masked.
func (h *PageHandler) Env(c echo.Context) error {
	return h.render(c, "env", "Environment", h.dashboard.ListEnv(false))
}

// Settings renders the settings page.
func (h *PageHandler) Settings(c echo.Context) error {
	return h.render(c, "settings", "Settings", h.dashboard.Settings())
}

type githubSettingsPage struct {
	Status string
	Link   *domain.IdentityLink
}

// GitHubSettings renders the GitHub connection page.
func (h *PageHandler) GitHubSettings(c echo.Context) error {
	data := githubSettingsPage{Status: c.QueryParam("status")}
	if s, ok := GetSession(c); ok {
		if link, err := h.auth.GitHubLink(c.Request().Context(), s); err == nil {
			data.Link = link
		}
	}
	return h.render(c, "settings_github", "GitHub", data)
}

type actionsPage struct {
	Connected bool
	Repo      string
}

// GitHubActions renders the workflow page; the list is fetched from the proxy.
func (h *PageHandler) GitHubActions(c echo.Context) error {
	data := actionsPage{Repo: h.dashboard.Settings().GitHub.Repo}
	if s, ok := GetSession(c); ok {
		data.Connected = s.AccessToken != ""
	}
	return h.render(c, "github_actions", "GitHub Actions", data)
}
