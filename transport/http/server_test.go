package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfabric/fabric/health"
	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/internal/logger"
	"github.com/agentfabric/fabric/registry"
)

type fakeLister struct {
	agents []*registry.AgentRegistration
}

func (f *fakeLister) ListAgents() []*registry.AgentRegistration { return f.agents }

func newTestAgent(t *testing.T, capName string) *registry.AgentRegistration {
	t.Helper()
	id, err := identity.CreateKeyBased()
	require.NoError(t, err)
	return &registry.AgentRegistration{
		AgentMetadata: registry.AgentMetadata{
			AgentID:   id.ID(),
			AgentType: registry.AgentTypeAI,
			Capabilities: []registry.Capability{
				{Name: capName, Description: "test capability"},
			},
		},
	}
}

func TestHandleAgents_RequiresAuth(t *testing.T) {
	secret := []byte("test-secret")
	lister := &fakeLister{agents: []*registry.AgentRegistration{newTestAgent(t, "echo")}}
	checker := health.NewHealthChecker(time.Second)
	srv := NewServer(":0", lister, checker, secret, logger.NewDefaultLogger())

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec := httptest.NewRecorder()
	srv.httpSrv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleAgents_FiltersByCapability(t *testing.T) {
	secret := []byte("test-secret")
	lister := &fakeLister{agents: []*registry.AgentRegistration{
		newTestAgent(t, "echo"),
		newTestAgent(t, "greet"),
	}}
	checker := health.NewHealthChecker(time.Second)
	srv := NewServer(":0", lister, checker, secret, logger.NewDefaultLogger())

	token, err := IssueToken(secret, "tester", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/agents?capability=echo", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.httpSrv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out []*registry.AgentRegistration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 1)
	assert.Equal(t, "echo", out[0].Capabilities[0].Name)
}

func TestHandleAgents_NoFilterReturnsAll(t *testing.T) {
	secret := []byte("test-secret")
	lister := &fakeLister{agents: []*registry.AgentRegistration{
		newTestAgent(t, "echo"),
		newTestAgent(t, "greet"),
	}}
	checker := health.NewHealthChecker(time.Second)
	srv := NewServer(":0", lister, checker, secret, logger.NewDefaultLogger())

	token, err := IssueToken(secret, "tester", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.httpSrv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out []*registry.AgentRegistration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 2)
}
