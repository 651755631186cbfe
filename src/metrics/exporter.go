package metrics

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	addr      string
	listener  net.Listener
	server    *http.Server
}

// NewPrometheusExporter creates a new Prometheus exporter listening on addr.
func NewPrometheusExporter(collector *Collector, addr string) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		addr:      addr,
	}
}

// Start binds the listener and serves /metrics and /health in the background.
func (pe *PrometheusExporter) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", pe.handleMetrics)
	mux.HandleFunc("/health", pe.handleHealth)

	ln, err := net.Listen("tcp", pe.addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", pe.addr, err)
	}
	pe.listener = ln
	pe.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = pe.server.Serve(ln)
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (pe *PrometheusExporter) Addr() net.Addr {
	if pe.listener == nil {
		return nil
	}
	return pe.listener.Addr()
}

// Stop stops the HTTP server.
func (pe *PrometheusExporter) Stop() error {
	if pe.server != nil {
		return pe.server.Close()
	}
	return nil
}

func (pe *PrometheusExporter) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprint(w, pe.ExportMetrics())
}

func (pe *PrometheusExporter) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// ExportMetrics exports all metrics in Prometheus text format.
func (pe *PrometheusExporter) ExportMetrics() string {
	snapshot := pe.collector.Snapshot()
	var output strings.Builder

	output.WriteString("# HELP qotd_quotes_served_total Quotes delivered to clients\n")
	output.WriteString("# TYPE qotd_quotes_served_total counter\n")
	for _, p := range Protocols {
		output.WriteString(fmt.Sprintf("qotd_quotes_served_total{proto=%q} %d\n", p, snapshot.Protocols[p].Served))
	}

	output.WriteString("# HELP qotd_request_errors_total Failed accepts, reads and writes\n")
	output.WriteString("# TYPE qotd_request_errors_total counter\n")
	for _, p := range Protocols {
		output.WriteString(fmt.Sprintf("qotd_request_errors_total{proto=%q} %d\n", p, snapshot.Protocols[p].Errors))
	}

	output.WriteString("# HELP qotd_bytes_sent_total Quote bytes written to clients\n")
	output.WriteString("# TYPE qotd_bytes_sent_total counter\n")
	for _, p := range Protocols {
		output.WriteString(fmt.Sprintf("qotd_bytes_sent_total{proto=%q} %d\n", p, snapshot.Protocols[p].BytesTotal))
	}

	output.WriteString("# HELP qotd_response_latency_ms Time to deliver one quote in milliseconds\n")
	output.WriteString("# TYPE qotd_response_latency_ms gauge\n")
	for _, p := range Protocols {
		stats := snapshot.Protocols[p]
		output.WriteString(fmt.Sprintf("qotd_response_latency_ms{proto=%q,quantile=\"0.50\"} %f\n", p, stats.LatencyP50))
		output.WriteString(fmt.Sprintf("qotd_response_latency_ms{proto=%q,quantile=\"0.95\"} %f\n", p, stats.LatencyP95))
		output.WriteString(fmt.Sprintf("qotd_response_latency_ms{proto=%q,quantile=\"0.99\"} %f\n", p, stats.LatencyP99))
	}

	output.WriteString("# HELP qotd_quotes_loaded Quotes in the store\n")
	output.WriteString("# TYPE qotd_quotes_loaded gauge\n")
	output.WriteString(fmt.Sprintf("qotd_quotes_loaded{source=%q} %d\n", snapshot.LoadSource, snapshot.QuotesLoaded))

	return output.String()
}
