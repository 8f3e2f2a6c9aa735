package coolify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
)

func testTemplate() AppTemplate {
	return AppTemplate{
		ProjectUUID:     "proj-1",
		ServerUUID:      "srv-1",
		EnvironmentName: "production",
		GitRepository:   "https://github.com/acme/site-template",
		GitBranch:       "main",
		BuildPack:       "nixpacks",
		PortsExposes:    "3000",
		HealthCheck: domain.HealthCheck{
			Path:        "/api/health",
			Port:        3000,
			Scheme:      "http",
			Interval:    30,
			Timeout:     5,
			Retries:     3,
			StartPeriod: 10,
		},
	}
}

func newTestClient(t *testing.T, h http.Handler, tmpl AppTemplate) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/api/v1", APIToken: "coolify-token", Template: tmpl}, zap.NewNop())
}

func TestFindByName_ExactMatchOnly(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/applications", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"uuid":"u1","name":"Acme"},
			{"uuid":"u2","name":"acme-staging"},
			{"uuid":"u3","name":"acme"}
		]`))
	})
	c := newTestClient(t, h, testTemplate())

	app, err := c.FindByName(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, "u3", app.UUID)
}

func TestFindByName_NoCaseOrPrefixMatch(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"uuid":"u1","name":"Acme"},{"uuid":"u2","name":"acme-staging"}]`))
	})
	c := newTestClient(t, h, testTemplate())

	app, err := c.FindByName(context.Background(), "acme")
	require.NoError(t, err)
	assert.Nil(t, app)
}

func TestCreate_MissingTemplateMakesNoRequest(t *testing.T) {
	var calls int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	tmpl := testTemplate()
	tmpl.GitRepository = ""
	tmpl.HealthCheck.Port = 0
	c := newTestClient(t, h, tmpl)

	_, err := c.Create(context.Background(), domain.AppSpec{Name: "acme", Domain: "acme.example.com"})
	require.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Contains(t, err.Error(), "git_repository")
	assert.Contains(t, err.Error(), "health_check_port")
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestCreate(t *testing.T) {
	var got createApplicationRequest
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/applications/public", r.URL.Path)
		assert.Equal(t, "Bearer coolify-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"uuid":"new-uuid","domains":"https://acme.example.com"}`))
	})
	c := newTestClient(t, h, testTemplate())

	app, err := c.Create(context.Background(), domain.AppSpec{Name: "acme", Domain: "acme.example.com", Description: "Acme site"})
	require.NoError(t, err)
	assert.Equal(t, &domain.AppHandle{UUID: "new-uuid", Name: "acme"}, app)

	assert.Equal(t, "acme", got.Name)
	assert.Equal(t, "https://acme.example.com", got.Domains)
	assert.Equal(t, "Acme site", got.Description)
	assert.Equal(t, "https://github.com/acme/site-template", got.GitRepository)
	assert.Equal(t, "3000", got.PortsExposes)
	assert.True(t, got.HealthCheckEnabled)
	assert.Equal(t, "3000", got.HealthCheckPort)
	assert.Equal(t, 10, got.HealthCheckStartPeriod)
	assert.False(t, got.InstantDeploy)
}

func TestSetEnvironment_BulkPayload(t *testing.T) {
	var got bulkEnvRequest
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/applications/u1/envs/bulk", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`[]`))
	})
	c := newTestClient(t, h, testTemplate())

	vars := []domain.EnvVar{
		{Key: domain.EnvClientData, Value: `{"name":"Acme"}`, IsLiteral: true},
		{Key: domain.EnvNodeEnv, Value: "production", IsLiteral: true},
	}
	require.NoError(t, c.SetEnvironment(context.Background(), &domain.AppHandle{UUID: "u1", Name: "acme"}, vars))
	assert.Equal(t, vars, got.Data)
}

func TestTriggerDeploy(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/deploy", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("uuid"))
		_, _ = w.Write([]byte(`{"deployments":[{"message":"queued"}]}`))
	})
	c := newTestClient(t, h, testTemplate())

	require.NoError(t, c.TriggerDeploy(context.Background(), &domain.AppHandle{UUID: "u1", Name: "acme"}))
}

func TestDelete_NotFound(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/applications/gone"))
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Application not found."}`))
	})
	c := newTestClient(t, h, testTemplate())

	err := c.Delete(context.Background(), &domain.AppHandle{UUID: "gone", Name: "acme"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_ServerError(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"database is locked"}`))
	})
	c := newTestClient(t, h, testTemplate())

	err := c.Delete(context.Background(), &domain.AppHandle{UUID: "u1", Name: "acme"})
	require.ErrorIs(t, err, domain.ErrProvider)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestFindByName_IgnoresResponseContentType(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`[{"uuid":"u3","name":"acme"}]`))
	})
	c := newTestClient(t, h, testTemplate())

	app, err := c.FindByName(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, app, "existing application must not be reported absent")
	assert.Equal(t, "u3", app.UUID)
}

func TestFindByName_UndecodableBodyIsTransportError(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})
	c := newTestClient(t, h, testTemplate())

	app, err := c.FindByName(context.Background(), "acme")
	require.ErrorIs(t, err, domain.ErrTransport)
	assert.Nil(t, app)
}
