package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatekeeper-id/gatekeeper/sessions"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_http_requests_total",
		Help: "HTTP requests by route pattern and status code.",
	}, []string{"method", "route", "status"})

	authStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_auth_steps_total",
		Help: "Verification step attempts by kind and outcome.",
	}, []string{"kind", "outcome"})
)

func observeRequest(method, route string, status int) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func observeAuthStep(kind sessions.StepKind, outcome string) {
	authStepsTotal.WithLabelValues(string(kind), outcome).Inc()
}

// MetricsHandler exposes the prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
