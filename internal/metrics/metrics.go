package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransfersTotal counts transfer engine operations by method and outcome.
	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftpay_transfers_total",
			Help: "Transfer operations processed by the engine",
		},
		[]string{"method", "outcome"}, // outcome: accepted|rejected
	)

	// ApprovalsTotal counts settlement attempts by outcome.
	ApprovalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftpay_approvals_total",
			Help: "Approval operations processed by the engine",
		},
		[]string{"outcome"},
	)
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Init registers the collectors. Call once at startup.
func Init() {
	prometheus.MustRegister(TransfersTotal, ApprovalsTotal)
}
