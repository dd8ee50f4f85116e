package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "events_published_total",
		Help:      "Events published on the bus.",
	}, []string{"topic"})

	deliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "events_delivered_total",
		Help:      "Events handed to a subscriber buffer.",
	}, []string{"topic"})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "events_dropped_total",
		Help:      "Events lost to a full subscriber buffer, by overflow policy.",
	}, []string{"policy"})

	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "catalog",
		Name:      "event_subscribers",
		Help:      "Currently registered subscribers.",
	})
)
