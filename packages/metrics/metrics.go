// Package metrics
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simplesapien/redirect-resolver/packages/domain"
	"github.com/simplesapien/redirect-resolver/packages/resolver"
)

const (
	OutcomeResolved    = "resolved"
	OutcomeMaxDepth    = "max_depth"
	OutcomeInvalidURL  = "invalid_url"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeOther       = "error"
)

var (
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirector_resolutions_total",
			Help: "Total number of URL resolutions, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	ResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redirector_resolution_duration_seconds",
			Help:    "Wall time of a full resolution in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redirector_fetch_duration_seconds",
			Help:    "Duration of a single fetch round in seconds, transport redirects included.",
			Buckets: prometheus.DefBuckets,
		},
	)
	HopsPerResolution = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redirector_hops_per_resolution",
			Help:    "Number of fetch rounds performed by successful resolutions.",
			Buckets: prometheus.LinearBuckets(1, 1, resolver.MaxDepth+1),
		},
	)
	SignalsFollowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirector_signals_followed_total",
			Help: "Total number of HTML redirect signals followed, labeled by kind.",
		},
		[]string{"kind"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "redirector_resolutions_in_flight",
			Help: "Number of resolutions currently running.",
		},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirector_http_requests_total",
			Help: "Total number of API requests, labeled by route and status code.",
		},
		[]string{"route", "code"},
	)
)

func init() {
	prometheus.MustRegister(ResolutionsTotal)
	prometheus.MustRegister(ResolutionDuration)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(HopsPerResolution)
	prometheus.MustRegister(SignalsFollowed)
	prometheus.MustRegister(InFlight)
	prometheus.MustRegister(HTTPRequests)
}

// Outcome maps a resolution result onto the outcome label.
func Outcome(res *domain.Resolution, err error) string {
	switch {
	case err == nil && res != nil && res.MaxDepthReached:
		return OutcomeMaxDepth
	case err == nil:
		return OutcomeResolved
	}
	switch resolver.KindOf(err) {
	case resolver.InvalidURL:
		return OutcomeInvalidURL
	case resolver.FetchFailed:
		return OutcomeFetchFailed
	default:
		return OutcomeOther
	}
}

// ObserveResolution records one finished resolution.
func ObserveResolution(res *domain.Resolution, err error, elapsed time.Duration) {
	ResolutionsTotal.WithLabelValues(Outcome(res, err)).Inc()
	ResolutionDuration.Observe(elapsed.Seconds())
	if res == nil {
		return
	}
	HopsPerResolution.Observe(float64(len(res.Hops)))
	for _, hop := range res.Hops {
		FetchDuration.Observe(hop.Elapsed.Seconds())
		if hop.Signal != "" {
			SignalsFollowed.WithLabelValues(string(hop.Signal)).Inc()
		}
	}
}

// NewServer returns a server exposing /metrics on addr. The caller owns its
// lifecycle.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
