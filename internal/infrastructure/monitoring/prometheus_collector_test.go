package monitoring

import (
	"errors"
	"testing"
	"time"

	"creatorhub/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var (
	_ ports.AuthorizationMetrics = (*PrometheusCollector)(nil)
	_ ports.StoreMetrics         = (*PrometheusCollector)(nil)
)

func TestPrometheusCollector_Authorization(t *testing.T) {
	p := NewPrometheusCollector(prometheus.NewRegistry())

	p.RecordAuthorization("granted", time.Millisecond)
	p.RecordAuthorization("granted", time.Millisecond)
	p.RecordAuthorization("denied", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.authorizationsTotal.WithLabelValues("granted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.authorizationsTotal.WithLabelValues("denied")))
}

func TestPrometheusCollector_StoreErrorsOnlyCountedOnFailure(t *testing.T) {
	p := NewPrometheusCollector(prometheus.NewRegistry())

	p.RecordStoreOperation("find_one", time.Millisecond, nil)
	p.RecordStoreOperation("find_one", time.Millisecond, errors.New("down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(p.storeErrorsTotal.WithLabelValues("find_one")))
}

func TestPrometheusCollector_Chat(t *testing.T) {
	p := NewPrometheusCollector(prometheus.NewRegistry())

	p.RecordChatConnected()
	p.RecordChatConnected()
	p.RecordChatDisconnected()
	p.RecordChatMessage("delivered")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.chatConnectionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.chatMessagesTotal.WithLabelValues("delivered")))
}

func TestPrometheusCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusCollector(prometheus.NewRegistry())
		NewPrometheusCollector(prometheus.NewRegistry())
	})
}
