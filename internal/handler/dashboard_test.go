package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardHandler_Tasks(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.demoSession(t, "")

	t.Run("list with filter", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/tasks?status=inactive", nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code)

		tasks := decodeBody(t, rec)["tasks"].([]any)
		require.Len(t, tasks, 1)
		assert.Equal(t, "Clean temporary files", tasks[0].(map[string]any)["name"])
	})

	t.Run("create", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/tasks", map[string]any{
			"name": "Nightly export", "schedule": "0 2 * * *", "type": "python", "script": "export.py",
		}, cookie)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		task := body["task"].(map[string]any)
		assert.Equal(t, "active", task["status"])
		assert.EqualValues(t, 60, task["timeout"])
	})

	t.Run("create rejects a bad schedule", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/tasks", map[string]any{
			"name": "Broken", "schedule": "every day", "script": "x.js",
		}, cookie)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "schedule", decodeBody(t, rec)["field"])
	})

	t.Run("create rejects an unknown type", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/tasks", map[string]any{
			"name": "Ruby", "schedule": "* * * * *", "script": "x.rb", "type": "ruby",
		}, cookie)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "type", decodeBody(t, rec)["field"])
	})

	t.Run("toggle", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/tasks/1/toggle", nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "inactive", decodeBody(t, rec)["task"].(map[string]any)["status"])
	})

	t.Run("run answers accepted", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/tasks/2/run", nil, cookie)
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "running", decodeBody(t, rec)["log"].(map[string]any)["status"])
	})

	t.Run("bad and unknown ids", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/tasks/abc", nil, cookie).Code)

		rec := env.do(t, http.MethodGet, "/api/tasks/99", nil, cookie)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", decodeBody(t, rec)["code"])
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/tasks/3", nil, cookie).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/tasks/3", nil, cookie).Code)
	})
}

func TestDashboardHandler_Env(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.demoSession(t, "")

	rec := env.do(t, http.MethodGet, "/api/env/1", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "********", decodeBody(t, rec)["value"])

	rec = env.do(t, http.MethodGet, "/api/env/1?reveal=true", nil, cookie)
	assert.Equal(t, "sk-example-api-key", decodeBody(t, rec)["value"])

	rec = env.do(t, http.MethodPost, "/api/env", map[string]any{"name": "PORT", "value": "8080"}, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/env", map[string]any{"name": "TOKEN", "value": "s3cret", "isSecret": true}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "********", decodeBody(t, rec)["env"].(map[string]any)["value"])
}

func TestDashboardHandler_LogsAndStats(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.demoSession(t, "")

	rec := env.do(t, http.MethodGet, "/api/logs?task_id=4", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["logs"], 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/logs?task_id=x", nil, cookie).Code)

	rec = env.do(t, http.MethodGet, "/api/dashboard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 5, body["totalTasks"])
	assert.EqualValues(t, 75, body["successRate"])
}

func TestDashboardHandler_Settings(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.demoSession(t, "")

	rec := env.do(t, http.MethodGet, "/api/settings", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decodeBody(t, rec)
	assert.Equal(t, "********", settings["webhook"].(map[string]any)["secret"])
	github := settings["github"].(map[string]any)
	github["repo"] = "octo/jobs"

	rec = env.do(t, http.MethodPut, "/api/settings", settings, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "octo/jobs", decodeBody(t, rec)["settings"].(map[string]any)["github"].(map[string]any)["repo"])
	assert.NotContains(t, rec.Body.String(), "your-webhook-secret")
}

func TestPages_RenderWithSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.demoSession(t, "")

	pages := map[string]string{
		"/":                "Recent runs",
		"/tasks":           "Daily check-in",
		"/tasks/new":       "daily-signup.js",
		"/scripts":         "backup-database.sh",
		"/logs":            "permission denied",
		"/env":             "API_KEY",
		"/settings":        "user/my-cron-repo",
		"/settings/github": "Connect GitHub",
		"/github-actions":  "Connect a GitHub account",
	}
	for path, want := range pages {
		t.Run(path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, path, nil, cookie)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), want)
			assert.Contains(t, rec.Body.String(), "Test User")
		})
	}
}

func TestPages_EnvNeverShowsSecrets(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/env", nil, env.demoSession(t, ""))

	assert.NotContains(t, rec.Body.String(), "sk-example-api-key")
}
