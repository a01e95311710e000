package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// PoolStatsCollector exports connection pool gauges for the identity database
// and the session store. Either source may be nil.
type PoolStatsCollector struct {
	pg    *pgxpool.Pool
	redis *redis.Client

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	timeouts *prometheus.Desc
}

// NewPoolStatsCollector creates a collector over the given pools.
func NewPoolStatsCollector(pg *pgxpool.Pool, rdb *redis.Client) *PoolStatsCollector {
	labels := []string{"store"}
	return &PoolStatsCollector{
		pg:       pg,
		redis:    rdb,
		acquired: prometheus.NewDesc("gateway_store_pool_in_use_connections", "Connections currently in use", labels, nil),
		idle:     prometheus.NewDesc("gateway_store_pool_idle_connections", "Idle connections", labels, nil),
		total:    prometheus.NewDesc("gateway_store_pool_total_connections", "Open connections", labels, nil),
		timeouts: prometheus.NewDesc("gateway_store_pool_wait_timeouts_total", "Connection acquires that gave up waiting", labels, nil),
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.timeouts
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pg != nil {
		s := c.pg.Stat()
		ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()), "postgres")
		ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()), "postgres")
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()), "postgres")
		ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.CanceledAcquireCount()), "postgres")
	}
	if c.redis != nil {
		s := c.redis.PoolStats()
		ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.TotalConns-s.IdleConns), "redis")
		ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns), "redis")
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns), "redis")
		ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.Timeouts), "redis")
	}
}
