package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/template-registry/config"
	projecthttp "github.com/GoSim-25-26J-441/template-registry/internal/projects/http"
	projectservice "github.com/GoSim-25-26J-441/template-registry/internal/projects/service"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/builder"
	templatehttp "github.com/GoSim-25-26J-441/template-registry/internal/templates/http"
	templateservice "github.com/GoSim-25-26J-441/template-registry/internal/templates/service"
)

func setupRouter(t *testing.T) (*gin.Engine, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stores, err := OpenStores(context.Background(), &config.DatabaseConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	require.Nil(t, stores.DB)

	projects := projectservice.NewProjectService(stores.Projects, time.Minute)
	_, key1, err := projects.CreateProject(context.Background(), "Test Project 1")
	require.NoError(t, err)
	_, key2, err := projects.CreateProject(context.Background(), "Test Project 2")
	require.NoError(t, err)

	templates := templateservice.NewTemplateService(stores.Templates, builder.Disabled{}, nil)

	r := BuildRouter(RouterDeps{
		ServiceName: "template-registry",
		Version:     "test",
		Keys:        projects,
		Templates:   templatehttp.New(templates, nil, "secret"),
		Projects:    projecthttp.New(projects),
	})
	return r, key1, key2
}

func call(r *gin.Engine, method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBuildRouter_ProjectIsolation(t *testing.T) {
	r, key1, key2 := setupRouter(t)

	w := call(r, http.MethodPost, "/api/v1/templates/build", key1, `{"alias":"web"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var built struct {
		TemplateID string `json:"template_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &built))

	// Same alias in another project is independent.
	w = call(r, http.MethodPost, "/api/v1/templates/build", key2, `{"alias":"web"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = call(r, http.MethodGet, "/api/v1/templates/"+built.TemplateID, key2, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodDelete, "/api/v1/templates/"+built.TemplateID, key2, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodGet, "/api/v1/templates/"+built.TemplateID, key1, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBuildRouter_Auth(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := call(r, http.MethodGet, "/api/v1/templates", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = call(r, http.MethodGet, "/api/v1/templates", "tpl_deadbeef_nope", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The callback route is not behind the API key.
	w = call(r, http.MethodPost, "/api/v1/builds/callback", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid callback secret")
}

func TestBuildRouter_Health(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := call(r, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "disabled", body["db"])

	w = call(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenRedis_Disabled(t *testing.T) {
	client, err := OpenRedis(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
