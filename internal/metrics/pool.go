package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterPool exposes the database pool's connection statistics as gauges.
// Call once at startup; a second registration for the same process panics.
func RegisterPool(pool *pgxpool.Pool) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "quill_db_acquired_conns",
			Help: "Connections currently acquired from the pool.",
		}, func() float64 {
			return float64(pool.Stat().AcquiredConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "quill_db_idle_conns",
			Help: "Idle connections in the pool.",
		}, func() float64 {
			return float64(pool.Stat().IdleConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "quill_db_total_conns",
			Help: "Total connections in the pool.",
		}, func() float64 {
			return float64(pool.Stat().TotalConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "quill_db_max_conns",
			Help: "Pool connection limit.",
		}, func() float64 {
			return float64(pool.Stat().MaxConns())
		}),
	)
}
