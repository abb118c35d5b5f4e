package httpapi

import "github.com/prometheus/client_golang/prometheus"

var (
	betsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ubiroll_bets_created_total",
		Help: "Total de apostas criadas",
	})
	betsFinalizedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ubiroll_bets_finalized_total",
		Help: "Total de apostas finalizadas por resultado",
	}, []string{"outcome"})

	// OpenBetsGauge é alimentado periodicamente pelo main do serviço
	OpenBetsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ubiroll_open_bets",
		Help: "Apostas pendentes aguardando fulfillment",
	})
)

func init() {
	prometheus.MustRegister(betsCreatedTotal, betsFinalizedTotal, OpenBetsGauge)
}
