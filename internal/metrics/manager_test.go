package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxiofs/simplestore/internal/config"
)

func newTestManager(t *testing.T) *metricsManager {
	t.Helper()
	manager, ok := NewManager(config.MetricsConfig{Enable: true, Namespace: "test"}).(*metricsManager)
	require.True(t, ok)
	return manager
}

func TestNewManager_Disabled(t *testing.T) {
	manager := NewManager(config.MetricsConfig{Enable: false})
	require.NotNil(t, manager)

	_, ok := manager.(*noopManager)
	assert.True(t, ok, "disabled manager should be noopManager")

	// The noop manager accepts every call.
	manager.RecordOperation("get", true, time.Millisecond)
	manager.HandleOpened()
	assert.NoError(t, manager.WriteText(&bytes.Buffer{}))
}

func TestNewManager_DefaultNamespace(t *testing.T) {
	manager := NewManager(config.MetricsConfig{Enable: true}).(*metricsManager)
	assert.Equal(t, "simplestore", manager.namespace)
}

func TestRecordOperation(t *testing.T) {
	manager := newTestManager(t)

	manager.RecordOperation("get", true, 2*time.Millisecond)
	manager.RecordOperation("get", true, 3*time.Millisecond)
	manager.RecordOperation("put", false, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(manager.operationsTotal.WithLabelValues("get", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(manager.operationsTotal.WithLabelValues("put", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(manager.operationsTotal.WithLabelValues("put", "success")))
	assert.Equal(t, 2, testutil.CollectAndCount(manager.operationDuration))
}

func TestCacheAndHandleMetrics(t *testing.T) {
	manager := newTestManager(t)

	manager.RecordCacheHit()
	manager.RecordCacheHit()
	manager.RecordCacheMiss()
	assert.Equal(t, 2.0, testutil.ToFloat64(manager.cacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(manager.cacheMissesTotal))

	manager.HandleOpened()
	manager.HandleOpened()
	manager.HandleClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(manager.openHandles))

	manager.TaskQueued()
	manager.TaskQueued()
	manager.TaskFinished()
	assert.Equal(t, 1.0, testutil.ToFloat64(manager.pendingTasks))
}

func TestRecordCorruption(t *testing.T) {
	manager := newTestManager(t)

	manager.RecordCorruption("main")
	assert.Equal(t, 1.0, testutil.ToFloat64(manager.corruptionsTotal.WithLabelValues("main")))
}

func TestExport(t *testing.T) {
	manager := newTestManager(t)
	manager.RecordOperation("contains", true, time.Millisecond)
	manager.RecordValueSize("put", 100)

	var buf bytes.Buffer
	require.NoError(t, manager.WriteText(&buf))
	assert.Contains(t, buf.String(), `test_store_operations_total{operation="contains",status="success"} 1`)
	assert.Contains(t, buf.String(), "test_store_value_size_bytes")

	rec := httptest.NewRecorder()
	manager.GetMetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_cache_hits_total"))

	count, err := testutil.GatherAndCount(manager.Gatherer(), "test_store_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
