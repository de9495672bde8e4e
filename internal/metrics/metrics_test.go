package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/taskqueue/internal/worker"
)

func TestCollector_Observe(t *testing.T) {
	c := New(false)

	c.Observe("master", worker.EventReceived, 0)
	c.Observe("master", worker.EventForwarded, 0)
	c.Observe("slave-0", worker.EventReceived, 0)
	c.Observe("slave-0", worker.EventExecuted, 20*time.Millisecond)
	c.Observe("slave-0", worker.EventNotFound, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.events.WithLabelValues("master", "forwarded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.events.WithLabelValues("slave-0", "executed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.events.WithLabelValues("slave-0", "not_found")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestCollector_Handler(t *testing.T) {
	c := New(false)
	c.SetWorkers(3)
	c.Observe("master", worker.EventMalformed, 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "taskqueue_pool_workers 3"))
	assert.True(t, strings.Contains(body, `taskqueue_worker_events_total{event="malformed",worker="master"} 1`))
}

func TestCollector_RuntimeMetrics(t *testing.T) {
	c := New(true)

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "go_goroutines" {
			found = true
		}
	}
	assert.True(t, found)
}
