package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const metricsNamespace = "api"

type instrumentation struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newInstrumentation(reg prometheus.Registerer) (*instrumentation, error) {
	in := &instrumentation{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"endpoint", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_duration_seconds",
			Help:      "HTTP request duration in seconds for all requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "method", "code"}),
	}
	for _, c := range []prometheus.Collector{in.requests, in.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (in *instrumentation) wrap(endpoint string, h http.HandlerFunc) http.Handler {
	labels := prometheus.Labels{"endpoint": endpoint}
	return promhttp.InstrumentHandlerDuration(in.duration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(in.requests.MustCurryWith(labels), h),
	)
}

// NewRouter serves /, /health and /metrics. Request counters and latency
// histograms are registered on reg.
func NewRouter(exp Exposer, reg prometheus.Registerer, log *zap.Logger) (http.Handler, error) {
	in, err := newInstrumentation(reg)
	if err != nil {
		return nil, err
	}
	h := &handlers{metrics: exp, log: log}

	r := mux.NewRouter()
	r.Handle("/", in.wrap("/", h.root)).Methods(http.MethodGet)
	r.Handle("/health", in.wrap("/health", h.health)).Methods(http.MethodGet)
	r.Handle("/metrics", in.wrap("/metrics", h.exposeMetrics)).Methods(http.MethodGet)
	r.Use(accessLog(log))
	return r, nil
}

func accessLog(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("Request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
