package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/cronboard/internal/domain"
	"github.com/sumire/cronboard/internal/service"
)

// WorkflowHandler proxies GitHub Actions workflow calls with the session token.
type WorkflowHandler struct {
	workflows *service.WorkflowClient
}

// NewWorkflowHandler creates a new WorkflowHandler.
func NewWorkflowHandler(workflows *service.WorkflowClient) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows}
}

func accessToken(c echo.Context) (string, error) {
	s, ok := GetSession(c)
	if !ok || s.AccessToken == "" {
		return "", withMessage(domain.ErrUnauthorized, "GitHub account not connected")
	}
	return s.AccessToken, nil
}

// List returns the workflows of ?repository=owner/name.
func (h *WorkflowHandler) List(c echo.Context) error {
	token, err := accessToken(c)
	if err != nil {
		return err
	}

	list, err := h.workflows.List(c.Request().Context(), token, c.QueryParam("repository"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

type dispatchRequest struct {
	Repository string            `json:"repository" validate:"required"`
	WorkflowID string            `json:"workflow_id" validate:"required"`
	Ref        string            `json:"ref"`
	Inputs     map[string]string `json:"inputs"`
}

// Dispatch triggers a workflow_dispatch run.
func (h *WorkflowHandler) Dispatch(c echo.Context) error {
	token, err := accessToken(c)
	if err != nil {
		return err
	}

	var req dispatchRequest
	if err := c.Bind(&req); err != nil {
		return withMessage(domain.ErrInvalidInput, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err = h.workflows.Dispatch(c.Request().Context(), token, service.DispatchRequest{
		Repository: req.Repository,
		WorkflowID: req.WorkflowID,
		Ref:        req.Ref,
		Inputs:     req.Inputs,
	})
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, nil)
}

// Enable enables the workflow :id of ?repository.
func (h *WorkflowHandler) Enable(c echo.Context) error {
	return h.setEnabled(c, true)
}

// Disable disables the workflow :id of ?repository.
func (h *WorkflowHandler) Disable(c echo.Context) error {
	return h.setEnabled(c, false)
}

func (h *WorkflowHandler) setEnabled(c echo.Context, enabled bool) error {
	token, err := accessToken(c)
	if err != nil {
		return err
	}

	err = h.workflows.SetEnabled(c.Request().Context(), token, c.QueryParam("repository"), c.Param("id"), enabled)
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, map[string]any{"enabled": enabled})
}
