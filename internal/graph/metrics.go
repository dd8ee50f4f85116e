package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transports label values.
const (
	TransportHTTP = "http"
	TransportSSE  = "sse"
)

var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_graphql_operations_total",
	Help: "GraphQL operations executed, by transport and outcome.",
}, []string{"transport", "outcome"})

// RecordOperation counts one executed operation. failed means the
// response carried at least one error.
func RecordOperation(transport string, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	operationsTotal.WithLabelValues(transport, outcome).Inc()
}
