package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistered(t *testing.T) {
	TicksTotal.WithLabelValues("CS.D.EURUSD.MINI.IP").Inc()
	SetLoggedIn(true)

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, name := range []string{"feed_ticks_total", "feed_logged_in"} {
		if !found[name] {
			t.Fatalf("%s metric not found", name)
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	ResubscribesTotal.WithLabelValues("IX.D.FTSE.DAILY.IP").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "feed_resubscribes_total") {
		t.Fatalf("metrics output misses feed_resubscribes_total")
	}
}
