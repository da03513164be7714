package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSettlement_RecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlement(reg)

	m.ObserveOperation("purchase_artwork", "ok", 20*time.Millisecond)
	m.ObserveOperation("purchase_artwork", "ok", 10*time.Millisecond)
	m.IncRetry("purchase_artwork")
	m.IncWebhook("duplicate")
	m.AddMoved("PAYMENT", -1500)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("purchase_artwork", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("purchase_artwork")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("duplicate")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(m.moved.WithLabelValues("PAYMENT")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestSettlement_EmptyLabelsNormalized(t *testing.T) {
	m := NewSettlement(prometheus.NewRegistry())
	m.IncWebhook("")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("unknown")))
}

func TestSettlement_NilSafe(t *testing.T) {
	var m *Settlement
	assert.NotPanics(t, func() {
		m.ObserveOperation("x", "ok", time.Second)
		m.IncRetry("x")
		m.IncWebhook("x")
		m.AddMoved("SALE", 1)
	})

	unregistered := NewSettlement(nil)
	assert.NotPanics(t, func() { unregistered.IncWebhook("x") })
}
