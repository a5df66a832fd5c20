// Package metrics exposes prometheus instrumentation for frame decoding,
// geometry loading and powder accumulation.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/emcview/internal/monitoring"
)

var (
	FramesDecoded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "emcview_frames_decoded_total",
		Help: "Total number of frames decoded from photon files",
	})

	FrameDecodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "emcview_frame_decode_errors_total",
		Help: "Total number of frames that failed to decode",
	})

	FrameCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "emcview_frame_cache_hits_total",
		Help: "Total number of frame requests served from the decoded-frame cache",
	})

	GeometryLoads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "emcview_geometry_loads_total",
		Help: "Total number of detector geometry files parsed",
	})

	IndexedFrames = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "emcview_indexed_frames",
		Help: "Number of frames addressable through the most recently built index",
	})

	PowderSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "emcview_powder_recompute_seconds",
		Help:    "Histogram of full powder-sum recompute durations",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(FramesDecoded, FrameDecodeErrors, FrameCacheHits, GeometryLoads, IndexedFrames, PowderSeconds)
}

// StartMetricsServer serves /metrics on the given port in the background.
// A non-positive port disables the exporter.
func StartMetricsServer(port int) {
	if port <= 0 {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", port)
		monitoring.Logf("[metrics] prometheus exporter listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			monitoring.Logf("[metrics] failed to start metrics server: %v", err)
		}
	}()
}

// RecordDecode updates the decode counters for one frame read.
func RecordDecode(err error) {
	if err != nil {
		FrameDecodeErrors.Inc()
		return
	}
	FramesDecoded.Inc()
}
