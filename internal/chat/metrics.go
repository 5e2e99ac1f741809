package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "anonmsg_connected_clients",
		Help: "Number of currently connected clients",
	})

	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anonmsg_frames_total",
		Help: "Broadcast frames by type",
	}, []string{"type"})

	BroadcastDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "anonmsg_broadcast_seconds",
		Help:    "Time to fan one frame out to all clients",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(FramesTotal)
	prometheus.MustRegister(BroadcastDuration)
}
