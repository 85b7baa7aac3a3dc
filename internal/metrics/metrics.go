// Package metrics registers the prometheus collectors the server exposes
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SalesCompleted prometheus.Counter
	SalesFailed    *prometheus.CounterVec
	ImportRows     *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SalesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_sales_completed_total",
			Help: "Sales applied or amended successfully.",
		}),
		SalesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_sales_failed_total",
			Help: "Sales rejected, by reason.",
		}, []string{"reason"}),
		ImportRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_import_rows_total",
			Help: "Inventory import rows processed, by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_http_requests_total",
			Help: "HTTP requests served, by method and status class.",
		}, []string{"method", "status"}),
	}
}
