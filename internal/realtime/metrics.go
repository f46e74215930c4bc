package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Currently registered realtime connections.",
		},
	)

	// joins counts join_poll requests by result (accepted, invalid,
	// not_found, quota, error).
	joins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_joins_total",
			Help: "Topic join requests by result.",
		},
		[]string{"result"},
	)

	published = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_publish_total",
			Help: "Events enqueued to subscribers.",
		},
	)

	dropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_publish_dropped_total",
			Help: "Events dropped because a subscriber's send buffer was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(connections, joins, published, dropped)
}
