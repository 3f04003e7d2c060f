package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PlacementMetrics содержит метрики операций размещения заказов.
type PlacementMetrics struct {
	// Счётчики результатов размещения
	placementsStarted   prometheus.Counter
	placementsSucceeded prometheus.Counter
	placementsRejected  *prometheus.CounterVec
	placementsFailed    prometheus.Counter

	// Повторные попытки после проигранной гонки за остаток
	stockConflictRetries prometheus.Counter

	// Гистограммы
	placementDuration prometheus.Histogram
	linesPerOrder     prometheus.Histogram

	// Счётчик событий outbox
	outboxEvents prometheus.Counter
}

// NewPlacementMetrics создаёт метрики на DefaultRegisterer.
func NewPlacementMetrics() *PlacementMetrics {
	return newPlacementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPlacementMetricsWithRegisterer(registerer prometheus.Registerer) *PlacementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PlacementMetrics{
		placementsStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_placements_started_total",
			Help: "Total number of order placements started",
		}),
		placementsSucceeded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_placements_succeeded_total",
			Help: "Total number of order placements committed successfully",
		}),
		placementsRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_placements_rejected_total",
			Help: "Total number of order placements rejected by validation, grouped by reason",
		}, []string{"reason"}),
		placementsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_placements_failed_total",
			Help: "Total number of order placements failed on infrastructure errors",
		}),
		stockConflictRetries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_conflict_retries_total",
			Help: "Total number of placement retries caused by lost stock updates",
		}),
		placementDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_placement_duration_seconds",
			Help:    "Duration of order placements in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		linesPerOrder: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_placement_lines_per_order",
			Help:    "Distribution of requested line counts per placement",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Total number of outbox events enqueued by the placement engine",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordPlacementStarted увеличивает счётчик начатых размещений.
func (m *PlacementMetrics) RecordPlacementStarted() {
	m.placementsStarted.Inc()
}

// RecordPlacementSucceeded увеличивает счётчик успешных размещений.
func (m *PlacementMetrics) RecordPlacementSucceeded() {
	m.placementsSucceeded.Inc()
}

// RecordPlacementRejected увеличивает счётчик отклонённых размещений по причине.
func (m *PlacementMetrics) RecordPlacementRejected(reason string) {
	m.placementsRejected.WithLabelValues(reason).Inc()
}

// RecordPlacementFailed увеличивает счётчик инфраструктурных сбоев.
func (m *PlacementMetrics) RecordPlacementFailed() {
	m.placementsFailed.Inc()
}

// RecordStockConflictRetry увеличивает счётчик повторов после конфликта остатка.
func (m *PlacementMetrics) RecordStockConflictRetry() {
	m.stockConflictRetries.Inc()
}

// RecordPlacementDuration записывает длительность размещения.
func (m *PlacementMetrics) RecordPlacementDuration(duration time.Duration) {
	m.placementDuration.Observe(duration.Seconds())
}

// RecordLinesPerOrder записывает количество позиций в запросе.
func (m *PlacementMetrics) RecordLinesPerOrder(lines int) {
	m.linesPerOrder.Observe(float64(lines))
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *PlacementMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
