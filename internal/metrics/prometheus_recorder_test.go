package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveAssemblyDuration(150 * time.Millisecond)
	pr.IncAssemblyOutcome(OutcomeSuccess)
	pr.IncAssemblyOutcome(OutcomeSuccess)
	pr.IncAssemblyOutcome("size_exceeded")
	pr.ObserveInjectedBytes(4096)
	pr.ObserveArchiveBytes(8192)
	pr.IncModuleSelected("alpha")
	pr.SetCatalogSize(3)
	pr.IncSyncResult(true)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.assemblyOutcome.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.assemblyOutcome.WithLabelValues("size_exceeded")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.catalogSize), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.moduleSelected.WithLabelValues("alpha")), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveAssemblyDuration(time.Second)
	pr.IncAssemblyOutcome(OutcomeSuccess)
	pr.SetCatalogSize(1)
}

func TestHTTPHandlerServesMetrics(t *testing.T) {
	reg := NewRegistry()
	NewPrometheusRecorder(reg).IncAssemblyOutcome(OutcomeSuccess)

	rr := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "botpack_assembly_outcomes_total")
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncAssemblyOutcome(OutcomeSuccess)
	r.IncSyncResult(false)
}
