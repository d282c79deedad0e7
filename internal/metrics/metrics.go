// Package metrics holds the Prometheus collectors for the RouteIQ server.
//
// All methods are safe to call on a nil *Metrics so components can run
// without instrumentation in tests and in the CLI.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "routeiq"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	simTicks    prometheus.Counter
	simVehicles prometheus.Gauge
	simBlocked  prometheus.Gauge

	routeLookups *prometheus.CounterVec
	events       *prometheus.CounterVec
	wsClients    prometheus.Gauge
	wsDropped    prometheus.Counter
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, on reg.
func New(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken for HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		simTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sim_ticks_total",
			Help:      "Simulation ticks executed",
		}),
		simVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sim_vehicles",
			Help:      "Vehicles currently in the simulation",
		}),
		simBlocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sim_blocked_cells",
			Help:      "Cells currently blocked by incidents",
		}),
		routeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_lookups_total",
			Help:      "Optimal route lookups by outcome",
		}, []string{"result"}), // result: hit, miss, no_path, invalid
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traffic_events_total",
			Help:      "Traffic events accepted by kind",
		}, []string{"kind"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients",
		}),
		wsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_dropped_clients_total",
			Help:      "Websocket clients dropped for not keeping up",
		}),
	}

	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.simTicks, m.simVehicles, m.simBlocked,
		m.routeLookups, m.events,
		m.wsClients, m.wsDropped,
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) Tick(vehicles, blocked int) {
	if m == nil {
		return
	}
	m.simTicks.Inc()
	m.simVehicles.Set(float64(vehicles))
	m.simBlocked.Set(float64(blocked))
}

func (m *Metrics) RouteLookup(result string) {
	if m == nil {
		return
	}
	m.routeLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) WSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

func (m *Metrics) WSDropped() {
	if m == nil {
		return
	}
	m.wsDropped.Inc()
}
