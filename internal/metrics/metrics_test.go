package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsRepeatable(t *testing.T) {
	reg := prometheus.NewRegistry()

	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestRegisterSurfacesConflicts(t *testing.T) {
	reg := prometheus.NewRegistry()

	clash := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadwiki_cache_lookups_total",
		Help: "different shape",
	})
	require.NoError(t, reg.Register(clash))

	assert.Error(t, Register(reg))
}

func TestCacheLookupsCountByResult(t *testing.T) {
	before := testutil.ToFloat64(CacheLookups.WithLabelValues("hit"))
	CacheLookups.WithLabelValues("hit").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CacheLookups.WithLabelValues("hit")))
}
