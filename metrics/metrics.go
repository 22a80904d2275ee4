// Package metrics exposes Prometheus counters for checkout and the order pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cloudkitchen"

var (
	CheckoutOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_outcomes_total",
		Help:      "Checkout submissions by outcome.",
	}, []string{"outcome"})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_status_transitions_total",
		Help:      "Accepted order status transitions.",
	}, []string{"from", "to"})

	RejectedTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_status_rejections_total",
		Help:      "Status change requests that were refused.",
	}, []string{"reason"})

	PollFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_poll_failures_total",
		Help:      "Failed status poll fetches by observer.",
	}, []string{"observer"})

	OrphansReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orphan_orders_reconciled_total",
		Help:      "Orders left without committed lines, by reconciliation action.",
	}, []string{"action"})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_notifications_dropped_total",
		Help:      "Status change notifications dropped because the notify queue was full.",
	})

	BoardClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "board_websocket_clients",
		Help:      "Connected kitchen board websocket clients.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
