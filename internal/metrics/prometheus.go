package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exports counters and histograms on its own registry
type PrometheusRecorder struct {
	registry     *prom.Registry
	nodesWritten *prom.CounterVec
	edgesWritten *prom.CounterVec
	opsTotal     *prom.CounterVec
	opSeconds    *prom.HistogramVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates and registers the teamgraph collectors
func NewPrometheusRecorder() *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prom.NewRegistry(),
		nodesWritten: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "teamgraph",
			Name:      "nodes_written_total",
			Help:      "Nodes upserted into the graph, by label",
		}, []string{"label"}),
		edgesWritten: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "teamgraph",
			Name:      "edges_written_total",
			Help:      "Relationships upserted into the graph, by description",
		}, []string{"description"}),
		opsTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "teamgraph",
			Name:      "ops_total",
			Help:      "Operations by name and outcome",
		}, []string{"op", "success"}),
		opSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "teamgraph",
			Name:      "op_seconds",
			Help:      "Operation duration in seconds",
			Buckets:   prom.DefBuckets,
		}, []string{"op", "success"}),
	}
	p.registry.MustRegister(p.nodesWritten, p.edgesWritten, p.opsTotal, p.opSeconds)
	return p
}

func (p *PrometheusRecorder) ObserveIngest(nodes, edges map[string]int) {
	for label, n := range nodes {
		p.nodesWritten.WithLabelValues(label).Add(float64(n))
	}
	for desc, n := range edges {
		p.edgesWritten.WithLabelValues(desc).Add(float64(n))
	}
}

func (p *PrometheusRecorder) IncCounter(name string, success bool) {
	p.opsTotal.WithLabelValues(name, strconv.FormatBool(success)).Inc()
}

func (p *PrometheusRecorder) ObserveDuration(op string, success bool, seconds float64) {
	p.opSeconds.WithLabelValues(op, strconv.FormatBool(success)).Observe(seconds)
}

// Handler serves /metrics and /healthz
func (p *PrometheusRecorder) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve installs p as the default recorder and serves its handler on addr
// until ctx is cancelled.
func (p *PrometheusRecorder) Serve(ctx context.Context, addr string) error {
	SetRecorder(p)
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Default().Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
