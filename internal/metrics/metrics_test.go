package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		IncEnqueued("created")
		IncEnqueueFailed()
		IncSkipped("unimportant")
		IncPollError()
	})
}

func TestDeliveryCounter(t *testing.T) {
	sent := testutil.ToFloat64(deliveries.WithLabelValues("sent"))
	failed := testutil.ToFloat64(deliveries.WithLabelValues("failed"))

	IncDelivery(true)
	IncDelivery(false)
	IncDelivery(false)

	assert.Equal(t, sent+1, testutil.ToFloat64(deliveries.WithLabelValues("sent")))
	assert.Equal(t, failed+2, testutil.ToFloat64(deliveries.WithLabelValues("failed")))
}

func TestBindingCounter(t *testing.T) {
	before := testutil.ToFloat64(bindingsCreated)
	IncBinding()
	assert.Equal(t, before+1, testutil.ToFloat64(bindingsCreated))
}
