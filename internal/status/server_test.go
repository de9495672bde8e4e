package status

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/taskqueue/internal/metrics"
	"yqhp/taskqueue/internal/task"
	"yqhp/taskqueue/internal/worker"
	"yqhp/taskqueue/pkg/types"
)

type fakePool struct {
	snaps []types.WorkerSnapshot
}

func (p *fakePool) ID() string                        { return "pool-1" }
func (p *fakePool) Snapshots() []types.WorkerSnapshot { return p.snaps }

type fakeCatalog struct {
	entries []task.Entry
	err     error
}

func (c *fakeCatalog) Catalog() ([]task.Entry, error) { return c.entries, c.err }

func get(t *testing.T, s *Server, path string) (int, []byte) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestServer_Health(t *testing.T) {
	s := NewServer(nil, &fakePool{}, nil, nil)

	for _, path := range []string{"/health", "/api/v1/health"} {
		code, body := get(t, s, path)
		require.Equal(t, http.StatusOK, code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "pool-1", resp.Pool)
	}
}

func TestServer_Workers(t *testing.T) {
	pool := &fakePool{snaps: []types.WorkerSnapshot{
		{Name: "master", Role: types.WorkerRoleMaster, Endpoint: "127.0.0.1:5000", State: types.WorkerStateRunning, Slaves: 1, Forwarded: 3},
		{Name: "slave-0", Role: types.WorkerRoleSlave, Endpoint: "127.0.0.1:5001", State: types.WorkerStateRunning, Executed: 3},
	}}
	s := NewServer(nil, pool, nil, nil)

	code, body := get(t, s, "/api/v1/workers")
	require.Equal(t, http.StatusOK, code)

	var resp WorkersResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "pool-1", resp.Pool)
	require.Len(t, resp.Workers, 2)
	assert.Equal(t, int64(3), resp.Workers[0].Forwarded)
	assert.Equal(t, types.WorkerRoleSlave, resp.Workers[1].Role)
}

func TestServer_WorkersWithoutPool(t *testing.T) {
	s := NewServer(nil, nil, nil, nil)

	code, body := get(t, s, "/api/v1/workers")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "pool not ready", resp.Message)
}

func TestServer_Tasks(t *testing.T) {
	catalog := &fakeCatalog{entries: []task.Entry{{Name: "echo", Source: "default"}}}
	s := NewServer(nil, nil, catalog, nil)

	code, body := get(t, s, "/api/v1/tasks")
	require.Equal(t, http.StatusOK, code)

	var resp TasksResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, catalog.entries, resp.Tasks)
}

func TestServer_TasksError(t *testing.T) {
	s := NewServer(nil, nil, &fakeCatalog{err: errors.New("script dir missing")}, nil)

	code, _ := get(t, s, "/api/v1/tasks")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestServer_Metrics(t *testing.T) {
	collector := metrics.New(false)
	collector.Observe("master", worker.EventReceived, 0)
	s := NewServer(nil, nil, nil, collector.Handler())

	code, body := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.Contains(string(body), "taskqueue_worker_events_total"))
}

func TestServer_MetricsDisabled(t *testing.T) {
	s := NewServer(nil, nil, nil, nil)

	code, _ := get(t, s, "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}
