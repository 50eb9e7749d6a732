package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/reportctl"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Session metrics
	LoginsTotal          metric.Int64Counter
	LoginFailuresTotal   metric.Int64Counter
	RefreshesTotal       metric.Int64Counter
	RefreshFailuresTotal metric.Int64Counter
	RefreshDuration      metric.Float64Histogram
	SignOutsTotal        metric.Int64Counter

	// Polling metrics
	PollsTotal      metric.Int64Counter
	PollErrorsTotal metric.Int64Counter
	PollDuration    metric.Float64Histogram
	TrackedJobs     metric.Int64UpDownCounter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Session metrics
	m.LoginsTotal, _ = meter.Int64Counter(
		"reportctl.session.logins.total",
		metric.WithDescription("Total number of successful logins"),
		metric.WithUnit("{login}"),
	)

	m.LoginFailuresTotal, _ = meter.Int64Counter(
		"reportctl.session.login_failures.total",
		metric.WithDescription("Total number of rejected or failed logins"),
		metric.WithUnit("{login}"),
	)

	m.RefreshesTotal, _ = meter.Int64Counter(
		"reportctl.session.refreshes.total",
		metric.WithDescription("Total number of successful silent refreshes"),
		metric.WithUnit("{refresh}"),
	)

	m.RefreshFailuresTotal, _ = meter.Int64Counter(
		"reportctl.session.refresh_failures.total",
		metric.WithDescription("Total number of refreshes that errored the session"),
		metric.WithUnit("{refresh}"),
	)

	m.RefreshDuration, _ = meter.Float64Histogram(
		"reportctl.session.refresh.duration",
		metric.WithDescription("Duration of verify calls made to refresh a session"),
		metric.WithUnit("ms"),
	)

	m.SignOutsTotal, _ = meter.Int64Counter(
		"reportctl.session.sign_outs.total",
		metric.WithDescription("Total number of sign outs"),
		metric.WithUnit("{sign_out}"),
	)

	// Polling metrics
	m.PollsTotal, _ = meter.Int64Counter(
		"reportctl.poller.fetches.total",
		metric.WithDescription("Total number of analysis list fetches"),
		metric.WithUnit("{fetch}"),
	)

	m.PollErrorsTotal, _ = meter.Int64Counter(
		"reportctl.poller.errors.total",
		metric.WithDescription("Total number of failed analysis list fetches"),
		metric.WithUnit("{error}"),
	)

	m.PollDuration, _ = meter.Float64Histogram(
		"reportctl.poller.fetch.duration",
		metric.WithDescription("Duration of analysis list fetches"),
		metric.WithUnit("ms"),
	)

	m.TrackedJobs, _ = meter.Int64UpDownCounter(
		"reportctl.tracker.jobs",
		metric.WithDescription("Number of analysis jobs tracked as possibly active"),
		metric.WithUnit("{job}"),
	)

	return m
}
