package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statsCollector exports ServerStats as Prometheus gauges/counters,
// adapted from runZeroInc-sockstats' TCPInfoCollector shape (a
// Describe/Collect pair reading a live struct under the hood) without
// its raw-fd TCP_INFO sampling, which calod's store has no equivalent
// of.
type statsCollector struct {
	stats *ServerStats
	store *Store

	totalOps    *prometheus.Desc
	getOps      *prometheus.Desc
	setOps      *prometheus.Desc
	delOps      *prometheus.Desc
	connections *prometheus.Desc
	bytesRead   *prometheus.Desc
	bytesWrite  *prometheus.Desc
	evictions   *prometheus.Desc
	expired     *prometheus.Desc
	hitRate     *prometheus.Desc
	keyCount    *prometheus.Desc
}

func newStatsCollector(stats *ServerStats, store *Store) *statsCollector {
	return &statsCollector{
		stats:       stats,
		store:       store,
		totalOps:    prometheus.NewDesc("calod_ops_total", "Total commands dispatched", nil, nil),
		getOps:      prometheus.NewDesc("calod_get_ops_total", "Total GET commands", nil, nil),
		setOps:      prometheus.NewDesc("calod_set_ops_total", "Total SET commands", nil, nil),
		delOps:      prometheus.NewDesc("calod_del_ops_total", "Total DELETE commands", nil, nil),
		connections: prometheus.NewDesc("calod_connections_total", "Total accepted connections", nil, nil),
		bytesRead:   prometheus.NewDesc("calod_bytes_read_total", "Total bytes read from clients", nil, nil),
		bytesWrite:  prometheus.NewDesc("calod_bytes_written_total", "Total bytes written to clients", nil, nil),
		evictions:   prometheus.NewDesc("calod_evictions_total", "Total entries evicted", nil, nil),
		expired:     prometheus.NewDesc("calod_expired_reads_total", "Total reads that found an expired key", nil, nil),
		hitRate:     prometheus.NewDesc("calod_hit_rate", "GET hit rate across the process lifetime", nil, nil),
		keyCount:    prometheus.NewDesc("calod_keys", "Current number of live keys in the store", nil, nil),
	}
}

func (c *statsCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.totalOps
	descs <- c.getOps
	descs <- c.setOps
	descs <- c.delOps
	descs <- c.connections
	descs <- c.bytesRead
	descs <- c.bytesWrite
	descs <- c.evictions
	descs <- c.expired
	descs <- c.hitRate
	descs <- c.keyCount
}

func (c *statsCollector) Collect(metrics chan<- prometheus.Metric) {
	metrics <- prometheus.MustNewConstMetric(c.totalOps, prometheus.CounterValue, float64(c.stats.TotalOps.Load()))
	metrics <- prometheus.MustNewConstMetric(c.getOps, prometheus.CounterValue, float64(c.stats.GetOps.Load()))
	metrics <- prometheus.MustNewConstMetric(c.setOps, prometheus.CounterValue, float64(c.stats.SetOps.Load()))
	metrics <- prometheus.MustNewConstMetric(c.delOps, prometheus.CounterValue, float64(c.stats.DelOps.Load()))
	metrics <- prometheus.MustNewConstMetric(c.connections, prometheus.CounterValue, float64(c.stats.Connections.Load()))
	metrics <- prometheus.MustNewConstMetric(c.bytesRead, prometheus.CounterValue, float64(c.stats.BytesRead.Load()))
	metrics <- prometheus.MustNewConstMetric(c.bytesWrite, prometheus.CounterValue, float64(c.stats.BytesWritten.Load()))
	metrics <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(c.stats.Evictions.Load()))
	metrics <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(c.stats.ExpiredReads.Load()))
	metrics <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, c.stats.HitRate())
	metrics <- prometheus.MustNewConstMetric(c.keyCount, prometheus.GaugeValue, float64(c.store.Len()))
}

// runMetricsServer serves /metrics until closing is signaled. It is
// joined by s.wg like the invalidation and persistence loops, since
// unlike per-connection handlers it's a single bounded background task
// for the server's whole lifetime.
func (s *Server) runMetricsServer() {
	registry := prometheus.NewRegistry()
	registry.MustRegister(newStatsCollector(s.stats, s.store))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.MetricsPort)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-s.closing
		httpServer.Close()
	}()

	log.Printf("metrics listening on %s/metrics", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("metrics server error: %v", err)
	}
}
