package monitoring

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// MetricType distinguishes how a metric's value accumulates.
type MetricType int

const (
	MetricTypeCounter MetricType = iota
	MetricTypeGauge
)

// Metric is a single named measurement.
type Metric struct {
	Name      string     `json:"name"`
	Type      MetricType `json:"type"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
}

// MetricsCollector aggregates crawl metrics in process. All methods are
// safe for concurrent use; domain crawls, the store and the resource
// sampler feed the same collector.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics map[string]*Metric

	// Crawl counters
	domainsCrawled   int64
	domainsCompleted int64
	domainsFailed    int64
	pagesCrawled     int64
	emailsFound      int64

	// Fetch counters
	pagesFetched int64
	fetchErrors  int64

	// Crawl timing, milliseconds
	avgCrawlTime float64
	maxCrawlTime float64
	minCrawlTime float64

	// Resource gauges
	memoryUsage float64
	cpuUsage    float64
	diskUsage   float64

	// Database metrics
	dbConnections int64
	dbQueryTime   float64
	dbErrors      int64
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:      make(map[string]*Metric),
		minCrawlTime: math.MaxFloat64,
	}
}

// RecordDomainCrawled records the outcome of one finished domain crawl.
func (mc *MetricsCollector) RecordDomainCrawled(success bool, duration time.Duration, pages, emails int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.domainsCrawled++
	mc.pagesCrawled += int64(pages)
	mc.emailsFound += int64(emails)

	if success {
		mc.domainsCompleted++
	} else {
		mc.domainsFailed++
	}

	durationMs := float64(duration.Milliseconds())
	if durationMs > mc.maxCrawlTime {
		mc.maxCrawlTime = durationMs
	}

	if durationMs < mc.minCrawlTime {
		mc.minCrawlTime = durationMs
	}

	// Simple moving average
	if mc.avgCrawlTime == 0 {
		mc.avgCrawlTime = durationMs
	} else {
		mc.avgCrawlTime = (mc.avgCrawlTime + durationMs) / 2
	}

	mc.setMetric("domains_crawled", MetricTypeCounter, float64(mc.domainsCrawled))
	mc.setMetric("domains_completed", MetricTypeCounter, float64(mc.domainsCompleted))
	mc.setMetric("domains_failed", MetricTypeCounter, float64(mc.domainsFailed))
	mc.setMetric("pages_crawled", MetricTypeCounter, float64(mc.pagesCrawled))
	mc.setMetric("emails_found", MetricTypeCounter, float64(mc.emailsFound))
	mc.setMetric("avg_crawl_time_ms", MetricTypeGauge, mc.avgCrawlTime)
	mc.setMetric("max_crawl_time_ms", MetricTypeGauge, mc.maxCrawlTime)
	mc.setMetric("min_crawl_time_ms", MetricTypeGauge, mc.minCrawlTime)

	if mc.domainsCrawled > 0 {
		rate := float64(mc.domainsCompleted) / float64(mc.domainsCrawled) * 100
		mc.setMetric("success_rate", MetricTypeGauge, rate)
	}
}

// RecordPageFetched records one fetch attempt. ok is whether a usable body
// came back; statusCode zero means the request itself failed.
func (mc *MetricsCollector) RecordPageFetched(statusCode int, ok bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.pagesFetched++

	if !ok {
		mc.fetchErrors++
	}

	if statusCode > 0 {
		mc.incMetric(fmt.Sprintf("pages_status_%dxx", statusCode/100))
	}

	mc.setMetric("pages_fetched", MetricTypeCounter, float64(mc.pagesFetched))
	mc.setMetric("fetch_errors", MetricTypeCounter, float64(mc.fetchErrors))
}

// RecordDatabaseOperation records the duration and outcome of one database
// round trip.
func (mc *MetricsCollector) RecordDatabaseOperation(duration time.Duration, success bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	durationMs := float64(duration.Milliseconds())

	// Simple moving average
	if mc.dbQueryTime == 0 {
		mc.dbQueryTime = durationMs
	} else {
		mc.dbQueryTime = (mc.dbQueryTime + durationMs) / 2
	}

	if !success {
		mc.dbErrors++
	}

	mc.setMetric("db_query_time_ms", MetricTypeGauge, mc.dbQueryTime)
	mc.setMetric("db_errors", MetricTypeCounter, float64(mc.dbErrors))
}

// UpdateResourceUsage sets the process resource gauges.
func (mc *MetricsCollector) UpdateResourceUsage(memoryMB, cpuPercent, diskPercent float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.memoryUsage = memoryMB
	mc.cpuUsage = cpuPercent
	mc.diskUsage = diskPercent

	mc.setMetric("memory_usage_mb", MetricTypeGauge, memoryMB)
	mc.setMetric("cpu_usage_percent", MetricTypeGauge, cpuPercent)
	mc.setMetric("disk_usage_percent", MetricTypeGauge, diskPercent)
}

// UpdateDatabaseConnections sets the open connection gauge.
func (mc *MetricsCollector) UpdateDatabaseConnections(count int64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.dbConnections = count

	mc.setMetric("db_connections", MetricTypeGauge, float64(count))
}

// GetMetrics returns a copy of every named metric.
func (mc *MetricsCollector) GetMetrics() map[string]*Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make(map[string]*Metric, len(mc.metrics))

	for k, v := range mc.metrics {
		metricCopy := *v
		result[k] = &metricCopy
	}

	return result
}

// GetPerformanceStats returns the aggregate counters as one flat map.
func (mc *MetricsCollector) GetPerformanceStats() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	minCrawlTime := mc.minCrawlTime
	if mc.domainsCrawled == 0 {
		minCrawlTime = 0
	}

	return map[string]interface{}{
		"domains_crawled":    mc.domainsCrawled,
		"domains_completed":  mc.domainsCompleted,
		"domains_failed":     mc.domainsFailed,
		"pages_crawled":      mc.pagesCrawled,
		"pages_fetched":      mc.pagesFetched,
		"fetch_errors":       mc.fetchErrors,
		"emails_found":       mc.emailsFound,
		"avg_crawl_time_ms":  mc.avgCrawlTime,
		"max_crawl_time_ms":  mc.maxCrawlTime,
		"min_crawl_time_ms":  minCrawlTime,
		"memory_usage_mb":    mc.memoryUsage,
		"cpu_usage_percent":  mc.cpuUsage,
		"disk_usage_percent": mc.diskUsage,
		"db_connections":     mc.dbConnections,
		"db_query_time_ms":   mc.dbQueryTime,
		"db_errors":          mc.dbErrors,
	}
}

// Reset clears all metrics.
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.metrics = make(map[string]*Metric)
	mc.domainsCrawled = 0
	mc.domainsCompleted = 0
	mc.domainsFailed = 0
	mc.pagesCrawled = 0
	mc.emailsFound = 0
	mc.pagesFetched = 0
	mc.fetchErrors = 0
	mc.avgCrawlTime = 0
	mc.maxCrawlTime = 0
	mc.minCrawlTime = math.MaxFloat64
	mc.memoryUsage = 0
	mc.cpuUsage = 0
	mc.diskUsage = 0
	mc.dbConnections = 0
	mc.dbQueryTime = 0
	mc.dbErrors = 0
}

// setMetric and incMetric expect mc.mu to be held.
func (mc *MetricsCollector) setMetric(name string, typ MetricType, value float64) {
	mc.metrics[name] = &Metric{
		Name:      name,
		Type:      typ,
		Value:     value,
		Timestamp: time.Now(),
	}
}

func (mc *MetricsCollector) incMetric(name string) {
	metric, ok := mc.metrics[name]
	if !ok {
		metric = &Metric{
			Name: name,
			Type: MetricTypeCounter,
		}
		mc.metrics[name] = metric
	}

	metric.Value++
	metric.Timestamp = time.Now()
}
