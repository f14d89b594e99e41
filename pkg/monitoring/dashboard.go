package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// DashboardServer serves a self-contained monitoring page over a collector,
// plus JSON and Prometheus views of the same numbers. It is optional and
// runs on its own listener so the crawl API surface stays clean.
type DashboardServer struct {
	collector *MetricsCollector
	alerts    *AlertManager
	logger    *slog.Logger
	srv       *http.Server
}

// DashboardData is the payload behind the dashboard page and its JSON API.
type DashboardData struct {
	Timestamp    string            `json:"timestamp"`
	Metrics      map[string]Metric `json:"metrics"`
	ActiveAlerts []*Alert          `json:"active_alerts"`
	Summary      CrawlSummary      `json:"summary"`
}

// CrawlSummary flattens the headline crawl counters.
type CrawlSummary struct {
	DomainsCrawled   int64   `json:"domains_crawled"`
	DomainsCompleted int64   `json:"domains_completed"`
	DomainsFailed    int64   `json:"domains_failed"`
	SuccessRate      float64 `json:"success_rate"`
	PagesCrawled     int64   `json:"pages_crawled"`
	EmailsFound      int64   `json:"emails_found"`
	EmailsPerDomain  float64 `json:"emails_per_domain"`
	PagesFetched     int64   `json:"pages_fetched"`
	FetchErrors      int64   `json:"fetch_errors"`
	AvgCrawlTimeMs   float64 `json:"avg_crawl_time_ms"`
	MaxCrawlTimeMs   float64 `json:"max_crawl_time_ms"`
}

func NewDashboardServer(collector *MetricsCollector, alerts *AlertManager, addr string, logger *slog.Logger) *DashboardServer {
	if logger == nil {
		logger = slog.Default()
	}

	ds := DashboardServer{
		collector: collector,
		alerts:    alerts,
		logger:    logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", ds.handleDashboard)
	mux.HandleFunc("GET /api/metrics", ds.handleMetricsAPI)
	mux.HandleFunc("GET /api/alerts", ds.handleAlertsAPI)
	mux.Handle("GET /metrics", NewPrometheusExporter(collector))

	ds.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &ds
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ds *DashboardServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)

	go func() {
		errc <- ds.srv.ListenAndServe()
	}()

	ds.logger.Info("dashboard listening", "addr", ds.srv.Addr)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return ds.srv.Shutdown(shutdownCtx)
	}
}

func (ds *DashboardServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")

	if err := dashboardTmpl.Execute(w, ds.getDashboardData()); err != nil {
		ds.logger.Error("failed to render dashboard", "error", err)
	}
}

func (ds *DashboardServer) handleMetricsAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(ds.getDashboardData()); err != nil {
		ds.logger.Error("failed to encode metrics", "error", err)
	}
}

func (ds *DashboardServer) handleAlertsAPI(w http.ResponseWriter, r *http.Request) {
	var alerts []*Alert

	if ds.alerts != nil {
		alerts = ds.alerts.GetActiveAlerts()
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(alerts); err != nil {
		ds.logger.Error("failed to encode alerts", "error", err)
	}
}

func (ds *DashboardServer) getDashboardData() *DashboardData {
	metrics := ds.collector.GetMetrics()

	var alerts []*Alert

	if ds.alerts != nil {
		alerts = ds.alerts.GetActiveAlerts()
	}

	return &DashboardData{
		Timestamp:    time.Now().Format(time.RFC3339),
		Metrics:      convertMetricsMap(metrics),
		ActiveAlerts: alerts,
		Summary:      buildCrawlSummary(metrics),
	}
}

func convertMetricsMap(metrics map[string]*Metric) map[string]Metric {
	result := make(map[string]Metric, len(metrics))

	for k, v := range metrics {
		if v != nil {
			result[k] = *v
		}
	}

	return result
}

func buildCrawlSummary(metrics map[string]*Metric) CrawlSummary {
	value := func(name string) float64 {
		if m, ok := metrics[name]; ok {
			return m.Value
		}

		return 0
	}

	summary := CrawlSummary{
		DomainsCrawled:   int64(value("domains_crawled")),
		DomainsCompleted: int64(value("domains_completed")),
		DomainsFailed:    int64(value("domains_failed")),
		SuccessRate:      value("success_rate"),
		PagesCrawled:     int64(value("pages_crawled")),
		EmailsFound:      int64(value("emails_found")),
		PagesFetched:     int64(value("pages_fetched")),
		FetchErrors:      int64(value("fetch_errors")),
		AvgCrawlTimeMs:   value("avg_crawl_time_ms"),
		MaxCrawlTimeMs:   value("max_crawl_time_ms"),
	}

	if summary.DomainsCrawled > 0 {
		summary.EmailsPerDomain = float64(summary.EmailsFound) / float64(summary.DomainsCrawled)
	}

	return summary
}

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Email Extractor - Crawl Dashboard</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: #f5f5f5; }
        .header { background: #2c3e50; color: white; padding: 1rem 2rem; }
        .header h1 { font-size: 1.5rem; }
        .container { max-width: 1200px; margin: 0 auto; padding: 2rem; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(300px, 1fr)); gap: 1.5rem; }
        .card { background: white; border-radius: 8px; padding: 1.5rem; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .card h2 { color: #2c3e50; margin-bottom: 1rem; font-size: 1.2rem; }
        .metric { display: flex; justify-content: space-between; padding: 0.5rem 0; border-bottom: 1px solid #eee; }
        .metric:last-child { border-bottom: none; }
        .metric-value { font-weight: bold; color: #27ae60; }
        .alert { padding: 0.75rem; margin: 0.5rem 0; border-radius: 4px; }
        .alert-critical { background: #e74c3c; color: white; }
        .alert-warning { background: #f39c12; color: white; }
        .alert-info { background: #3498db; color: white; }
        .refresh-info { text-align: center; color: #7f8c8d; margin-top: 1rem; }
        .stat-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(120px, 1fr)); gap: 1rem; }
        .stat { text-align: center; padding: 1rem; background: #ecf0f1; border-radius: 4px; }
        .stat-value { font-size: 1.5rem; font-weight: bold; color: #2c3e50; }
        .stat-label { font-size: 0.9rem; color: #7f8c8d; margin-top: 0.5rem; }
    </style>
    <script>
        function refreshData() {
            fetch('/api/metrics')
                .then(response => response.json())
                .then(data => {
                    document.getElementById('last-update').textContent = 'Last updated: ' + new Date().toLocaleTimeString();
                })
                .catch(error => console.error('Error:', error));
        }

        setInterval(refreshData, 30000); // Refresh every 30 seconds

        window.onload = function() {
            document.getElementById('last-update').textContent = 'Last updated: ' + new Date().toLocaleTimeString();
        };
    </script>
</head>
<body>
    <div class="header">
        <h1>&#128231; Email Extractor - Crawl Dashboard</h1>
    </div>

    <div class="container">
        <div class="grid">
            <div class="card">
                <h2>&#128202; Crawl Overview</h2>
                <div class="metric">
                    <span>Domains Crawled</span>
                    <span class="metric-value">{{.Summary.DomainsCrawled}}</span>
                </div>
                <div class="metric">
                    <span>Completed</span>
                    <span class="metric-value">{{.Summary.DomainsCompleted}}</span>
                </div>
                <div class="metric">
                    <span>Failed</span>
                    <span class="metric-value">{{.Summary.DomainsFailed}}</span>
                </div>
                <div class="metric">
                    <span>Success Rate</span>
                    <span class="metric-value">{{printf "%.2f%%" .Summary.SuccessRate}}</span>
                </div>
            </div>

            <div class="card">
                <h2>&#9993; Harvest</h2>
                <div class="stat-grid">
                    <div class="stat">
                        <div class="stat-value">{{.Summary.PagesCrawled}}</div>
                        <div class="stat-label">Pages</div>
                    </div>
                    <div class="stat">
                        <div class="stat-value">{{.Summary.EmailsFound}}</div>
                        <div class="stat-label">Emails</div>
                    </div>
                    <div class="stat">
                        <div class="stat-value">{{printf "%.1f" .Summary.EmailsPerDomain}}</div>
                        <div class="stat-label">Emails/Domain</div>
                    </div>
                </div>
            </div>

            <div class="card">
                <h2>&#9889; Fetching</h2>
                <div class="metric">
                    <span>Pages Fetched</span>
                    <span class="metric-value">{{.Summary.PagesFetched}}</span>
                </div>
                <div class="metric">
                    <span>Fetch Errors</span>
                    <span class="metric-value">{{.Summary.FetchErrors}}</span>
                </div>
                <div class="metric">
                    <span>2xx Responses</span>
                    <span class="metric-value">{{with index .Metrics "pages_status_2xx"}}{{printf "%.0f" .Value}}{{end}}</span>
                </div>
                <div class="metric">
                    <span>4xx Responses</span>
                    <span class="metric-value">{{with index .Metrics "pages_status_4xx"}}{{printf "%.0f" .Value}}{{end}}</span>
                </div>
                <div class="metric">
                    <span>5xx Responses</span>
                    <span class="metric-value">{{with index .Metrics "pages_status_5xx"}}{{printf "%.0f" .Value}}{{end}}</span>
                </div>
            </div>

            <div class="card">
                <h2>&#9201; Crawl Timing</h2>
                <div class="metric">
                    <span>Avg per Domain</span>
                    <span class="metric-value">{{printf "%.0f ms" .Summary.AvgCrawlTimeMs}}</span>
                </div>
                <div class="metric">
                    <span>Slowest Domain</span>
                    <span class="metric-value">{{printf "%.0f ms" .Summary.MaxCrawlTimeMs}}</span>
                </div>
            </div>

            <div class="card">
                <h2>&#128680; Active Alerts ({{len .ActiveAlerts}})</h2>
                {{if .ActiveAlerts}}
                    {{range .ActiveAlerts}}
                    <div class="alert alert-{{if eq .Rule.Severity 2}}critical{{else if eq .Rule.Severity 1}}warning{{else}}info{{end}}">
                        <strong>{{.Rule.Name}}</strong><br>
                        {{.Message}}<br>
                        <small>Started: {{.StartTime.Format "15:04:05"}}</small>
                    </div>
                    {{end}}
                {{else}}
                    <div style="text-align: center; color: #27ae60; padding: 2rem;">
                        &#9989; No active alerts
                    </div>
                {{end}}
            </div>

            <div class="card">
                <h2>&#128190; Resource Usage</h2>
                {{with index .Metrics "memory_usage_mb"}}
                <div class="metric">
                    <span>Memory Usage</span>
                    <span class="metric-value">{{printf "%.0f MB" .Value}}</span>
                </div>
                {{end}}
                {{with index .Metrics "cpu_usage_percent"}}
                <div class="metric">
                    <span>CPU Usage</span>
                    <span class="metric-value">{{printf "%.1f%%" .Value}}</span>
                </div>
                {{end}}
                {{with index .Metrics "disk_usage_percent"}}
                <div class="metric">
                    <span>Disk Usage</span>
                    <span class="metric-value">{{printf "%.1f%%" .Value}}</span>
                </div>
                {{end}}
            </div>

            <div class="card">
                <h2>&#128451; Database</h2>
                {{with index .Metrics "db_connections"}}
                <div class="metric">
                    <span>Active Connections</span>
                    <span class="metric-value">{{printf "%.0f" .Value}}</span>
                </div>
                {{end}}
                {{with index .Metrics "db_query_time_ms"}}
                <div class="metric">
                    <span>Avg Query Time</span>
                    <span class="metric-value">{{printf "%.0f ms" .Value}}</span>
                </div>
                {{end}}
                {{with index .Metrics "db_errors"}}
                <div class="metric">
                    <span>DB Errors</span>
                    <span class="metric-value">{{printf "%.0f" .Value}}</span>
                </div>
                {{end}}
            </div>
        </div>

        <div class="refresh-info">
            <span id="last-update">Loading...</span> | Auto-refresh every 30 seconds
        </div>
    </div>
</body>
</html>
`))

// PrometheusExporter exposes collector metrics in the Prometheus text
// format.
type PrometheusExporter struct {
	collector *MetricsCollector
}

func NewPrometheusExporter(collector *MetricsCollector) *PrometheusExporter {
	return &PrometheusExporter{collector: collector}
}

func (pe *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics := pe.collector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	names := make([]string, 0, len(metrics))

	for name := range metrics {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		metric := metrics[name]

		metricType := "gauge"
		if metric.Type == MetricTypeCounter {
			metricType = "counter"
		}

		fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
		fmt.Fprintf(w, "%s %s %d\n", name, formatFloat(metric.Value), metric.Timestamp.UnixMilli())
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
