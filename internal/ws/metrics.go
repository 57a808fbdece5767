package ws

import "github.com/prometheus/client_golang/prometheus"

var (
	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planview_ws_subscribers",
		Help: "Currently registered realtime subscribers",
	})
	Delivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planview_ws_delivered_total",
		Help: "Realtime frames handed to subscribers",
	}, []string{"type"})
	Dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planview_ws_dropped_total",
		Help: "Subscribers dropped during broadcast",
	}, []string{"reason"})
	RelayMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planview_ws_relay_messages_total",
		Help: "Frames published to or received from the redis relay",
	}, []string{"direction"})
)

func init() {
	prometheus.MustRegister(Subscribers, Delivered, Dropped, RelayMessages)
}
