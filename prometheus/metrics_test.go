package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricPrefix(t *testing.T) {
	assert.Equal(t, "restohub_", metricPrefix("restohub"))
	assert.Equal(t, "shop_api_", metricPrefix("shop-api"))
	assert.Equal(t, "", metricPrefix(""))
	assert.Equal(t, "", metricPrefix("-"))
}

func TestCollectorsUseConfiguredPrefix(t *testing.T) {
	reg := prometheus.NewRegistry()
	registerCollectors(prometheus.WrapRegistererWithPrefix(metricPrefix("shop-api"), reg))
	RegisterCounter.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}

	assert.Contains(t, names, "shop_api_register_total")
	assert.Contains(t, names, "shop_api_info")
	assert.NotContains(t, names, "register_total")
}

func TestStatusCategory(t *testing.T) {
	assert.Equal(t, "2xx", statusCategory(201))
	assert.Equal(t, "4xx", statusCategory(423))
	assert.Equal(t, "5xx", statusCategory(503))
	assert.Equal(t, "", statusCategory(304))
}
