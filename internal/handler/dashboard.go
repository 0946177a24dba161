package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sumire/cronboard/internal/domain"
	"github.com/sumire/cronboard/internal/service"
)

// DashboardHandler serves the dashboard JSON API.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return withMessage(domain.ErrInvalidInput, "Invalid request body")
	}
	return c.Validate(dst)
}

// Stats returns the home page summary.
func (h *DashboardHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dashboard.Stats())
}

type taskRequest struct {
	Name        string `json:"name" validate:"required"`
	Schedule    string `json:"schedule" validate:"required"`
	Type        string `json:"type" validate:"omitempty,oneof=node python shell"`
	Script      string `json:"script" validate:"required"`
	Description string `json:"description"`
	Timeout     int    `json:"timeout" validate:"min=0"`
	RunOnce     bool   `json:"runOnce"`
	Params      string `json:"params"`
}

func (r taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Name:        r.Name,
		Schedule:    r.Schedule,
		Type:        domain.ScriptType(r.Type),
		Script:      r.Script,
		Description: r.Description,
		Timeout:     r.Timeout,
		RunOnce:     r.RunOnce,
		Params:      r.Params,
	}
}

// ListTasks returns tasks filtered by ?q and ?status.
func (h *DashboardHandler) ListTasks(c echo.Context) error {
	tasks := h.dashboard.ListTasks(service.TaskFilter{
		Query:  c.QueryParam("q"),
		Status: domain.TaskStatus(c.QueryParam("status")),
	})
	return c.JSON(http.StatusOK, map[string]any{"tasks": nonNil(tasks)})
}

// GetTask returns a single task.
func (h *DashboardHandler) GetTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	task, err := h.dashboard.GetTask(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// CreateTask creates a task.
func (h *DashboardHandler) CreateTask(c echo.Context) error {
	var req taskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	task, err := h.dashboard.CreateTask(req.input())
	if err != nil {
		return err
	}
	return Success(c, http.StatusCreated, map[string]any{"task": task})
}

// UpdateTask replaces a task.
func (h *DashboardHandler) UpdateTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req taskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	task, err := h.dashboard.UpdateTask(id, req.input())
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, map[string]any{"task": task})
}

// DeleteTask removes a task.
func (h *DashboardHandler) DeleteTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.dashboard.DeleteTask(id); err != nil {
		return err
	}
	return Success(c, http.StatusOK, nil)
}

// ToggleTask flips a task between active and inactive.
func (h *DashboardHandler) ToggleTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	task, err := h.dashboard.ToggleTask(id)
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, map[string]any{"task": task})
}

// RunTask requests an immediate run and answers 202.
func (h *DashboardHandler) RunTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	entry, err := h.dashboard.RunTask(id)
	if err != nil {
		return err
	}
	return Success(c, http.StatusAccepted, map[string]any{"log": entry})
}

type scriptRequest struct {
	Name    string `json:"name" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=node python shell"`
	Content string `json:"content"`
}

func (r scriptRequest) input() service.ScriptInput {
	return service.ScriptInput{Name: r.Name, Type: domain.ScriptType(r.Type), Content: r.Content}
}

// ListScripts returns scripts filtered by ?q.
func (h *DashboardHandler) ListScripts(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"scripts": nonNil(h.dashboard.ListScripts(c.QueryParam("q")))})
}

// GetScript returns a single script.
func (h *DashboardHandler) GetScript(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	script, err := h.dashboard.GetScript(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, script)
}

// CreateScript creates a script.
func (h *DashboardHandler) CreateScript(c echo.Context) error {
	var req scriptRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	script, err := h.dashboard.CreateScript(req.input())
	if err != nil {
		return err
	}
	return Success(c, http.StatusCreated, map[string]any{"script": script})
}

// UpdateScript replaces a script.
func (h *DashboardHandler) UpdateScript(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req scriptRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	script, err := h.dashboard.UpdateScript(id, req.input())
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, map[string]any{"script": script})
}

// DeleteScript removes a script.
func (h *DashboardHandler) DeleteScript(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.dashboard.DeleteScript(id); err != nil {
		return err
	}
	return Success(c, http.StatusOK, nil)
}

// ListLogs returns log entries filtered by ?status, ?task_id and ?q.
func (h *DashboardHandler) ListLogs(c echo.Context) error {
	f := service.LogFilter{
		Query:  c.QueryParam("q"),
		Status: domain.RunStatus(c.QueryParam("status")),
	}
	if raw := c.QueryParam("task_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return &domain.ValidationError{Field: "task_id", Message: "must be an integer"}
		}
		f.TaskID = id
	}
	return c.JSON(http.StatusOK, map[string]any{"logs": nonNil(h.dashboard.ListLogs(f))})
}

// GetLog returns a single log entry.
func (h *DashboardHandler) GetLog(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	entry, err := h.dashboard.GetLog(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

// DeleteLog removes a log entry.
func (h *DashboardHandler) DeleteLog(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.dashboard.DeleteLog(id); err != nil {
		return err
	}
	return Success(c, http.StatusOK, nil)
}

type envRequest struct {
	Name     string `json:"name" validate:"required"`
	Value    string `json:"value"`
	IsSecret bool   `json:"isSecret"`
}

func (r envRequest) input() service.EnvInput {
	return service.EnvInput{Name: r.Name, Value: r.Value, IsSecret: r.IsSecret}
}

func reveal(c echo.Context) bool {
	return c.QueryParam("reveal") == "true"
}

// ListEnv returns environment variables; secrets are masked unless ?reveal=true.
func (h *DashboardHandler) ListEnv(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"env": nonNil(h.dashboard.ListEnv(reveal(c)))})
}

// GetEnv returns a single environment variable.
func (h *DashboardHandler) GetEnv(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	v, err := h.dashboard.GetEnv(id, reveal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// CreateEnv creates an environment variable.
func (h *DashboardHandler) CreateEnv(c echo.Context) error {
	var req envRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	v, err := h.dashboard.CreateEnv(req.input())
	if err != nil {
		return err
	}
	return Success(c, http.StatusCreated, map[string]any{"env": v})
}

// UpdateEnv replaces an environment variable.
func (h *DashboardHandler) UpdateEnv(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req envRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	v, err := h.dashboard.UpdateEnv(id, req.input())
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, map[string]any{"env": v})
}

// DeleteEnv removes an environment variable.
func (h *DashboardHandler) DeleteEnv(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.dashboard.DeleteEnv(id); err != nil {
		return err
	}
	return Success(c, http.StatusOK, nil)
}

// GetSettings returns the dashboard settings.
func (h *DashboardHandler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dashboard.Settings())
}

// UpdateSettings replaces the dashboard settings.
func (h *DashboardHandler) UpdateSettings(c echo.Context) error {
	var req domain.Settings
	if err := c.Bind(&req); err != nil {
		return withMessage(domain.ErrInvalidInput, "Invalid request body")
	}
	saved, err := h.dashboard.UpdateSettings(req)
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, map[string]any{"settings": saved})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
