package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_ticks_total", Help: "Count of price ticks accepted per instrument"},
		[]string{"epic"},
	)
	DeliveryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_delivery_errors_total", Help: "Malformed ticks dropped per instrument"},
		[]string{"epic"},
	)
	DroppedSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_dropped_snapshots_total", Help: "Snapshots dropped by a full listener queue"},
		[]string{"listener"},
	)
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_login_attempts_total", Help: "Broker login attempts by result"},
		[]string{"result"},
	)
	ReloginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_relogins_total", Help: "Monitor driven re-logins by result"},
		[]string{"result"},
	)
	ResubscribesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_resubscribes_total", Help: "Monitor driven re-subscriptions per instrument"},
		[]string{"epic"},
	)
	LoggedIn = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "feed_logged_in", Help: "1 while the broker session is logged in"},
	)
	SubscribedStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "feed_subscribed_streams", Help: "Number of subscribed instrument streams"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		DeliveryErrorsTotal,
		DroppedSnapshotsTotal,
		LoginAttemptsTotal,
		ReloginsTotal,
		ResubscribesTotal,
		LoggedIn,
		SubscribedStreams,
	)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetLoggedIn mirrors the session state into the gauge
func SetLoggedIn(loggedIn bool) {
	if loggedIn {
		LoggedIn.Set(1)
		return
	}
	LoggedIn.Set(0)
}
