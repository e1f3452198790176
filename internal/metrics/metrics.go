package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	documentsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitter",
			Name:      "documents_loaded_total",
			Help:      "Document loads by result (success, failed, cancelled)",
		},
		[]string{"result"},
	)

	loadLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfsplitter",
			Name:      "load_duration_seconds",
			Help:      "Time spent counting and rendering a document",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pagesRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitter",
			Name:      "pages_rendered_total",
			Help:      "Rendered preview pages by result (ok, placeholder)",
		},
		[]string{"result"},
	)

	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitter",
			Name:      "exports_total",
			Help:      "Export runs by result (success, failed, cancelled)",
		},
		[]string{"result"},
	)

	rangesExported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfsplitter",
			Name:      "ranges_exported_total",
			Help:      "Output files written, one per range",
		},
	)

	exportLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfsplitter",
			Name:      "export_duration_seconds",
			Help:      "Duration of export runs",
			Buckets:   prometheus.DefBuckets,
		},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitter",
			Name:      "uploads_total",
			Help:      "S3 uploads of generated files by result",
		},
		[]string{"result"},
	)

	once sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(documentsLoaded, loadLatency, pagesRendered, exportsTotal, rangesExported, exportLatency, uploadsTotal)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveLoad(result string, dur time.Duration) {
	documentsLoaded.WithLabelValues(result).Inc()
	loadLatency.Observe(dur.Seconds())
}

func IncPageRendered()    { pagesRendered.WithLabelValues("ok").Inc() }
func IncPagePlaceholder() { pagesRendered.WithLabelValues("placeholder").Inc() }

func ObserveExport(result string, dur time.Duration) {
	exportsTotal.WithLabelValues(result).Inc()
	exportLatency.Observe(dur.Seconds())
}

func IncRangeExported() { rangesExported.Inc() }

func IncUpload(ok bool) {
	if ok {
		uploadsTotal.WithLabelValues("success").Inc()
		return
	}
	uploadsTotal.WithLabelValues("failed").Inc()
}
