package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPostings_IgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(postingsTotal.WithLabelValues("metrics-test", "new"))
	AddPostings("metrics-test", "new", 0)
	AddPostings("metrics-test", "new", -2)
	AddPostings("metrics-test", "new", 3)
	after := testutil.ToFloat64(postingsTotal.WithLabelValues("metrics-test", "new"))
	assert.Equal(t, 3.0, after-before)
}

func TestRecordCircuitTransition_UpdatesGauge(t *testing.T) {
	RecordCircuitTransition("metrics-cb", "closed", "open", CircuitOpen)
	assert.Equal(t, float64(CircuitOpen), testutil.ToFloat64(circuitState.WithLabelValues("metrics-cb")))
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitTransitions.WithLabelValues("metrics-cb", "closed", "open")))

	RecordCircuitTransition("metrics-cb", "open", "half-open", CircuitHalfOpen)
	assert.Equal(t, float64(CircuitHalfOpen), testutil.ToFloat64(circuitState.WithLabelValues("metrics-cb")))
}

func TestRecordAlert(t *testing.T) {
	RecordAlert("metrics-webhook", true)
	RecordAlert("metrics-webhook", false)
	RecordAlert("metrics-webhook", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(alertsTotal.WithLabelValues("metrics-webhook", "sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(alertsTotal.WithLabelValues("metrics-webhook", "failed")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	RecordCycle("success", 2*time.Second)
	RecordUpsertFailure()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "jobradar_cycles_total")
	assert.Contains(t, string(body), "jobradar_upsert_failures_total")
}
