package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultEvaluationInterval = 30 * time.Second

// AlertSeverity represents the severity level of an alert.
type AlertSeverity int

const (
	AlertSeverityInfo AlertSeverity = iota
	AlertSeverityWarning
	AlertSeverityCritical
)

func (as AlertSeverity) String() string {
	switch as {
	case AlertSeverityInfo:
		return "INFO"
	case AlertSeverityWarning:
		return "WARNING"
	case AlertSeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// AlertRule defines a threshold condition over a collector metric. The
// condition must hold for Duration before the alert fires.
type AlertRule struct {
	Name        string        `json:"name"`
	MetricName  string        `json:"metric_name"`
	Condition   string        `json:"condition"` // "gt", "lt", "eq", "gte", "lte"
	Threshold   float64       `json:"threshold"`
	Duration    time.Duration `json:"duration"`
	Severity    AlertSeverity `json:"severity"`
	Description string        `json:"description"`
	Enabled     bool          `json:"enabled"`
}

// Alert represents an active alert.
type Alert struct {
	ID         string     `json:"id"`
	Rule       *AlertRule `json:"rule"`
	Value      float64    `json:"value"`
	StartTime  time.Time  `json:"start_time"`
	LastUpdate time.Time  `json:"last_update"`
	Status     string     `json:"status"` // "firing", "resolved"
	Message    string     `json:"message"`
}

// NotificationChannel delivers alert state changes somewhere.
type NotificationChannel interface {
	Send(ctx context.Context, alert *Alert) error
	Name() string
}

// AlertManager evaluates rules against a collector and notifies on state
// changes. At most one alert is active per rule.
type AlertManager struct {
	collector *MetricsCollector
	interval  time.Duration
	logger    *slog.Logger

	mu           sync.RWMutex
	rules        map[string]*AlertRule
	ruleStates   map[string]*ruleState
	activeAlerts map[string]*Alert
	channels     []NotificationChannel
}

type ruleState struct {
	conditionStartTime time.Time
	conditionMet       bool
	lastValue          float64
}

func NewAlertManager(collector *MetricsCollector, interval time.Duration, logger *slog.Logger) *AlertManager {
	if interval <= 0 {
		interval = defaultEvaluationInterval
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &AlertManager{
		collector:    collector,
		interval:     interval,
		logger:       logger,
		rules:        make(map[string]*AlertRule),
		ruleStates:   make(map[string]*ruleState),
		activeAlerts: make(map[string]*Alert),
	}
}

// AddRule registers a rule, replacing any rule with the same name.
func (am *AlertManager) AddRule(rule *AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.rules[rule.Name] = rule
	am.ruleStates[rule.Name] = &ruleState{}
}

// RemoveRule drops a rule and resolves its active alert, if any.
func (am *AlertManager) RemoveRule(name string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	delete(am.rules, name)
	delete(am.ruleStates, name)
	delete(am.activeAlerts, name)
}

func (am *AlertManager) AddNotificationChannel(channel NotificationChannel) {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.channels = append(am.channels, channel)
}

// Run evaluates rules until ctx is cancelled. Always returns nil so it can
// sit in an errgroup without taking the process down.
func (am *AlertManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(am.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			am.Evaluate(ctx)
		}
	}
}

// Evaluate runs one evaluation cycle over all enabled rules.
func (am *AlertManager) Evaluate(ctx context.Context) {
	metrics := am.collector.GetMetrics()
	now := time.Now()

	am.mu.Lock()

	var notify []*Alert

	for name, rule := range am.rules {
		if !rule.Enabled {
			continue
		}

		metric, ok := metrics[rule.MetricName]
		if !ok {
			continue
		}

		state := am.ruleStates[name]
		met := checkCondition(rule.Condition, metric.Value, rule.Threshold)

		switch {
		case met && !state.conditionMet:
			state.conditionMet = true
			state.conditionStartTime = now
		case !met && state.conditionMet:
			state.conditionMet = false

			if alert := am.resolveLocked(rule, now); alert != nil {
				notify = append(notify, alert)
			}
		}

		if state.conditionMet && now.Sub(state.conditionStartTime) >= rule.Duration {
			if alert := am.fireLocked(rule, metric.Value, now); alert != nil {
				notify = append(notify, alert)
			}
		}

		state.lastValue = metric.Value
	}

	channels := make([]NotificationChannel, len(am.channels))
	copy(channels, am.channels)

	am.mu.Unlock()

	for _, alert := range notify {
		for _, channel := range channels {
			if err := channel.Send(ctx, alert); err != nil {
				am.logger.Error("failed to send notification", "channel", channel.Name(), "error", err)
			}
		}
	}
}

// fireLocked creates or refreshes the alert for a rule. A newly created
// alert is returned for notification; a refresh returns nil.
func (am *AlertManager) fireLocked(rule *AlertRule, value float64, now time.Time) *Alert {
	if alert, ok := am.activeAlerts[rule.Name]; ok {
		alert.Value = value
		alert.LastUpdate = now

		return nil
	}

	alert := &Alert{
		ID:         fmt.Sprintf("%s_%d", rule.Name, now.Unix()),
		Rule:       rule,
		Value:      value,
		StartTime:  now,
		LastUpdate: now,
		Status:     "firing",
		Message:    fmt.Sprintf("%s: %s %.2f (threshold: %.2f)", rule.Name, rule.Condition, value, rule.Threshold),
	}

	am.activeAlerts[rule.Name] = alert

	notifyCopy := *alert

	return &notifyCopy
}

func (am *AlertManager) resolveLocked(rule *AlertRule, now time.Time) *Alert {
	alert, ok := am.activeAlerts[rule.Name]
	if !ok {
		return nil
	}

	delete(am.activeAlerts, rule.Name)

	alert.Status = "resolved"
	alert.LastUpdate = now

	notifyCopy := *alert

	return &notifyCopy
}

func checkCondition(condition string, value, threshold float64) bool {
	switch condition {
	case "gt":
		return value > threshold
	case "gte":
		return value >= threshold
	case "lt":
		return value < threshold
	case "lte":
		return value <= threshold
	case "eq":
		return value == threshold
	default:
		return false
	}
}

// GetActiveAlerts returns a copy of every firing alert.
func (am *AlertManager) GetActiveAlerts() []*Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	alerts := make([]*Alert, 0, len(am.activeAlerts))

	for _, alert := range am.activeAlerts {
		alertCopy := *alert
		alerts = append(alerts, &alertCopy)
	}

	return alerts
}

// GetRules returns a copy of every registered rule.
func (am *AlertManager) GetRules() []*AlertRule {
	am.mu.RLock()
	defer am.mu.RUnlock()

	rules := make([]*AlertRule, 0, len(am.rules))

	for _, rule := range am.rules {
		ruleCopy := *rule
		rules = append(rules, &ruleCopy)
	}

	return rules
}

// LogNotificationChannel writes alert transitions to the process log.
type LogNotificationChannel struct {
	logger *slog.Logger
}

func NewLogNotificationChannel(logger *slog.Logger) *LogNotificationChannel {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogNotificationChannel{logger: logger}
}

func (c *LogNotificationChannel) Send(_ context.Context, alert *Alert) error {
	c.logger.Warn("alert",
		"name", alert.Rule.Name,
		"severity", alert.Rule.Severity.String(),
		"status", alert.Status,
		"message", alert.Message)

	return nil
}

func (c *LogNotificationChannel) Name() string {
	return "log"
}

// NewDefaultAlertManager builds a manager with the default rule set and a
// log notification channel, the way the runners use it.
func NewDefaultAlertManager(collector *MetricsCollector, logger *slog.Logger) *AlertManager {
	am := NewAlertManager(collector, 0, logger)

	for _, rule := range CreateDefaultAlertRules() {
		am.AddRule(rule)
	}

	am.AddNotificationChannel(NewLogNotificationChannel(logger))

	return am
}

// CreateDefaultAlertRules returns the rule set the runners install.
func CreateDefaultAlertRules() []*AlertRule {
	return []*AlertRule{
		{
			Name:        "low_success_rate",
			MetricName:  "success_rate",
			Condition:   "lt",
			Threshold:   50,
			Duration:    5 * time.Minute,
			Severity:    AlertSeverityCritical,
			Description: "Fewer than half of the crawled domains complete",
			Enabled:     true,
		},
		{
			Name:        "slow_crawls",
			MetricName:  "avg_crawl_time_ms",
			Condition:   "gt",
			Threshold:   120000,
			Duration:    5 * time.Minute,
			Severity:    AlertSeverityWarning,
			Description: "Domains take more than two minutes on average",
			Enabled:     true,
		},
		{
			Name:        "high_memory_usage",
			MetricName:  "memory_usage_mb",
			Condition:   "gt",
			Threshold:   3500,
			Duration:    3 * time.Minute,
			Severity:    AlertSeverityWarning,
			Description: "Memory usage is above 3.5GB",
			Enabled:     true,
		},
		{
			Name:        "high_cpu_usage",
			MetricName:  "cpu_usage_percent",
			Condition:   "gt",
			Threshold:   90,
			Duration:    2 * time.Minute,
			Severity:    AlertSeverityWarning,
			Description: "CPU usage is above 90%",
			Enabled:     true,
		},
		{
			Name:        "database_connection_high",
			MetricName:  "db_connections",
			Condition:   "gt",
			Threshold:   80,
			Duration:    time.Minute,
			Severity:    AlertSeverityWarning,
			Description: "Database connections are above 80% of the pool",
			Enabled:     true,
		},
		{
			Name:        "slow_database_queries",
			MetricName:  "db_query_time_ms",
			Condition:   "gt",
			Threshold:   1000,
			Duration:    3 * time.Minute,
			Severity:    AlertSeverityWarning,
			Description: "Database queries are taking longer than 1 second",
			Enabled:     true,
		},
	}
}
