package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ServerMetrics holds metric instruments for HTTP server telemetry.
// Initialize once at server startup and reuse throughout the application lifecycle.
type ServerMetrics struct {
	RequestCounter  metric.Int64Counter     // Total HTTP requests
	RequestDuration metric.Float64Histogram // HTTP request latency
	ErrorCounter    metric.Int64Counter     // Total HTTP errors (5xx)
}

// NewServerMetrics creates a new ServerMetrics instance with pre-configured instruments.
func NewServerMetrics() (*ServerMetrics, error) {
	meter := otel.Meter("pauth/http")

	requestCounter, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s
	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"http.server.error.count",
		metric.WithDescription("Total number of HTTP server errors (5xx)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ServerMetrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		ErrorCounter:    errorCounter,
	}, nil
}

// RecordRequest records an HTTP request with method, route, status, and duration.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route, status string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("http.status_code", status),
	)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, durationMs, attrs)

	if len(status) > 0 && status[0] == '5' {
		m.ErrorCounter.Add(ctx, 1, attrs)
	}
}

// Outcomes recorded by AuthMetrics.
const (
	OutcomeSuccess   = "success"
	OutcomeNoMatch   = "no_match"
	OutcomeError     = "error"
	OutcomeDelegated = "delegated"
)

// AuthMetrics holds metric instruments for the authentication dispatcher.
// A nil *AuthMetrics records nothing.
type AuthMetrics struct {
	Authentications metric.Int64Counter
	Lookups         metric.Int64Counter
	Challenges      metric.Int64Counter
}

// NewAuthMetrics creates metric instruments for authentication telemetry.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("pauth/authn")

	authentications, err := meter.Int64Counter(
		"pauth.authenticate.count",
		metric.WithDescription("Authentication attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	lookups, err := meter.Int64Counter(
		"pauth.lookup.count",
		metric.WithDescription("Principal lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	challenges, err := meter.Int64Counter(
		"pauth.challenge.count",
		metric.WithDescription("Challenges and logouts handled by a scope"),
		metric.WithUnit("{challenge}"),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		Authentications: authentications,
		Lookups:         lookups,
		Challenges:      challenges,
	}, nil
}

// RecordAuthentication counts one Authenticate call.
func (m *AuthMetrics) RecordAuthentication(ctx context.Context, prefix, outcome string) {
	if m == nil {
		return
	}
	m.Authentications.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrScopePrefix, prefix),
		attribute.String("outcome", outcome),
	))
}

// RecordLookup counts one GetPrincipal call.
func (m *AuthMetrics) RecordLookup(ctx context.Context, prefix, outcome string) {
	if m == nil {
		return
	}
	m.Lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrScopePrefix, prefix),
		attribute.String("outcome", outcome),
	))
}

// RecordChallenge counts one Unauthorized or Logout call. kind is
// "challenge" or "logout".
func (m *AuthMetrics) RecordChallenge(ctx context.Context, prefix, kind, protocol string) {
	if m == nil {
		return
	}
	m.Challenges.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrScopePrefix, prefix),
		attribute.String("kind", kind),
		attribute.String(AttrChallengeProtocol, protocol),
	))
}
