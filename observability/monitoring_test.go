package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Nil_Is_A_Noop(t *testing.T) {
	var m *Metrics
	require.Nil(t, NewMetrics(nil))

	// None of these may panic
	m.ConnectionOpened(1)
	m.ConnectionClosed("normal", 0)
	m.EventReceived("chat message")
	m.MessagePersisted()
	m.Delivery(false)
	m.ObserveBroadcast("broadcast", time.Now())
	m.ObserveStore("append", time.Now())
	m.ObserveHistory(3)
	m.Error("store")
	m.WorkerRestarted("HeartbeatWorker")
	m.ObserveProcess(1024, 0.5)
}

func TestMetrics_Records_Connections_And_Deliveries(t *testing.T) {
	req := require.New(t)
	m := NewMetrics(prometheus.NewRegistry())

	m.ConnectionOpened(1)
	m.ConnectionOpened(2)
	m.ConnectionClosed("transport_failure", 1)
	m.Delivery(true)
	m.Delivery(true)
	m.Delivery(false)

	req.Equal(float64(2), testutil.ToFloat64(m.connectionsTotal))
	req.Equal(float64(1), testutil.ToFloat64(m.connectionsActive))
	req.Equal(float64(1), testutil.ToFloat64(m.disconnections.WithLabelValues("transport_failure")))
	req.Equal(float64(2), testutil.ToFloat64(m.deliveries.WithLabelValues("ok")))
	req.Equal(float64(1), testutil.ToFloat64(m.deliveries.WithLabelValues("failed")))
}
