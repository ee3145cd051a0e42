package prometrics

import (
	"testing"

	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_RegisteredOnceAndLabelled(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("shop", "", reg)

	c1 := r.Counter("usecase_requests_total", "help", "use_case", "outcome")
	c2 := r.Counter("usecase_requests_total", "help", "use_case", "outcome")

	c1.Add(1, observability.L("use_case", "cart.update_quantity"), observability.L("outcome", "success"))
	c2.Bind(observability.L("use_case", "cart.update_quantity"), observability.L("outcome", "success")).Add(2)

	n, err := testutil.GatherAndCount(reg, "shop_usecase_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cv, ok := r.(*registry).counters.Load("usecase_requests_total")
	require.True(t, ok)
	assert.Equal(t, 3.0, testutil.ToFloat64(cv.(*prometheus.CounterVec).WithLabelValues("cart.update_quantity", "success")))
}

func TestStandard_ProvidesEveryInstrument(t *testing.T) {
	counters, histograms := Standard(New("", "", prometheus.NewRegistry()))

	for _, k := range []observability.MetricKey{
		observability.MUsecaseRequests, observability.MHTTPRequests, observability.MExternalRequests,
		observability.MPaymentResults,
	} {
		assert.NotNil(t, counters[k], k)
	}
	for _, k := range []observability.MetricKey{
		observability.MUsecaseDuration, observability.MHTTPRequestDuration, observability.MExternalRequestDuration,
		observability.MCartLockWait,
	} {
		assert.NotNil(t, histograms[k], k)
	}
}
