package metrics

import (
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func TestCollectorsRegisterAndCount(t *testing.T) {
	r := New()

	r.Validations.WithLabelValues("ok").Inc()
	r.Validations.WithLabelValues("ok").Inc()
	r.Validations.WithLabelValues("invalid").Inc()
	r.CompileIssues.WithLabelValues("warning").Inc()
	r.CompileDuration.WithLabelValues("ready").Observe(0.002)
	r.CacheLookups.WithLabelValues("hit").Inc()

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)

	validations := findFamily(t, families, "stratdeck_slot_validations_total")
	require.Len(t, validations.GetMetric(), 2)
	for _, m := range validations.GetMetric() {
		switch m.GetLabel()[0].GetValue() {
		case "ok":
			assert.Equal(t, 2.0, m.GetCounter().GetValue())
		case "invalid":
			assert.Equal(t, 1.0, m.GetCounter().GetValue())
		}
	}

	durations := findFamily(t, families, "stratdeck_compile_duration_seconds")
	require.Len(t, durations.GetMetric(), 1)
	assert.Equal(t, uint64(1), durations.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestIsolatedRegistries(t *testing.T) {
	a := New()
	b := New()
	a.CacheLookups.WithLabelValues("hit").Inc()

	families, err := b.Gatherer().Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.NotEqual(t, "stratdeck_compile_cache_lookups_total", f.GetName(),
			"fresh registry carries no counts from another instance")
	}
}

func TestHandlerServesExposition(t *testing.T) {
	r := New()
	r.HTTPRequests.WithLabelValues("/health", "GET", "2xx").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "stratdeck_http_requests_total")
}
