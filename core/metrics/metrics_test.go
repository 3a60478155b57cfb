package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveMessage("start", "ok", 3*time.Millisecond)
	r.ObserveMessage("start", "ok", time.Millisecond)
	r.ObserveMessage("", "skip", 0)
	r.ObserveStoreOp("get", nil, time.Millisecond)
	r.ObserveStoreOp("set", errors.New("boom"), time.Millisecond)
	r.IncDropped("rate_limited")
	r.Inflight(2)
	r.Inflight(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.messagesTotal.WithLabelValues("start", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messagesTotal.WithLabelValues("none", "skip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dropped.WithLabelValues("rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inflight))
	assert.Equal(t, 2, testutil.CollectAndCount(r.storeOps))
}

func TestNewRecorderPrivateRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewRecorder(nil)
		NewRecorder(nil)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.ObserveMessage("got_number.get", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `numbot_messages_total{rule="got_number.get",status="ok"} 1`)
}
