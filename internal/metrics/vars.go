package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_cycles_total",
		Help: "Strategy cycles by outcome",
	}, []string{"strategy", "outcome"})

	OffersSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_offers_submitted_total",
		Help: "Funding offers submitted",
	}, []string{"currency"})

	OffersCanceled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_offers_canceled_total",
		Help: "Funding offers canceled by id",
	}, []string{"currency"})

	OfferRate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lending_offer_rate",
		Help: "Per-day rate of the last submitted offer",
	}, []string{"currency"})

	CycleLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lending_cycle_seconds",
		Help:    "Time to evaluate and apply one strategy cycle",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		Cycles,
		OffersSubmitted,
		OffersCanceled,
		OfferRate,
		CycleLatency,
	)
}
