package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeActions(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/jobs/actions/workflows", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_x", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"total_count":1,"workflows":[{"id":7,"name":"Cron","path":".github/workflows/cron.yml","state":"active"}]}`))
	})
	mux.HandleFunc("POST /repos/octo/jobs/actions/workflows/cron.yml/dispatches", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"ref":"main"}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("PUT /repos/octo/jobs/actions/workflows/7/disable", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /repos/octo/missing/actions/workflows", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWorkflowHandler(t *testing.T) {
	srv := newFakeActions(t)
	env := newTestEnv(t, withGitHubAPI(srv.URL))
	withToken := env.demoSession(t, "gho_x")

	t.Run("list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/github/workflows?repository=octo/jobs", nil, withToken)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.EqualValues(t, 1, body["total_count"])
	})

	t.Run("dispatch defaults ref to main", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/github/workflows", map[string]string{
			"repository": "octo/jobs", "workflow_id": "cron.yml",
		}, withToken)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	})

	t.Run("disable", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/github/workflows/7/disable?repository=octo/jobs", nil, withToken)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, false, decodeBody(t, rec)["enabled"])
	})

	t.Run("upstream status is relayed", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/github/workflows?repository=octo/missing", nil, withToken)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Not Found", decodeBody(t, rec)["error"])
	})

	t.Run("missing repository", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/github/workflows", nil, withToken)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "repository", decodeBody(t, rec)["field"])
	})

	t.Run("dispatch requires a workflow id", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/github/workflows", map[string]string{"repository": "octo/jobs"}, withToken)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "workflow_id", decodeBody(t, rec)["field"])
	})

	t.Run("session without github token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/github/workflows?repository=octo/jobs", nil, env.demoSession(t, ""))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no session", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/github/workflows?repository=octo/jobs", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
