package metrics

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequests       metric.Int64Counter
	HTTPDuration       metric.Float64Histogram
	Likes              metric.Int64Counter
	CommentsCreated    metric.Int64Counter
	LeaderboardLatency metric.Float64Histogram
	StreamConnections  metric.Int64UpDownCounter
}

// Setup builds the instruments on a fresh registry and returns the
// Prometheus scrape handler for it
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"feed_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"feed_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Likes, err = meter.Int64Counter(
		"feed_likes_total",
		metric.WithDescription("Like and unlike attempts by target and outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CommentsCreated, err = meter.Int64Counter(
		"feed_comments_created_total",
		metric.WithDescription("Total number of comments created"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.LeaderboardLatency, err = meter.Float64Histogram(
		"feed_leaderboard_duration_seconds",
		metric.WithDescription("Karma leaderboard computation time in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StreamConnections, err = meter.Int64UpDownCounter(
		"feed_stream_connections",
		metric.WithDescription("Number of active WebSocket and SSE connections"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

// RecordLike counts a like/unlike attempt; outcome is e.g. "liked", "duplicate", "self_like"
func (m *Metrics) RecordLike(ctx context.Context, target, outcome string) {
	if m == nil {
		return
	}
	m.Likes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", target),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordCommentCreated(ctx context.Context, root bool) {
	if m == nil {
		return
	}
	m.CommentsCreated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("root", root)))
}

func (m *Metrics) RecordLeaderboard(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.LeaderboardLatency.Record(ctx, duration.Seconds())
}

func (m *Metrics) IncrementConnections(ctx context.Context) {
	if m == nil {
		return
	}
	m.StreamConnections.Add(ctx, 1)
}

func (m *Metrics) DecrementConnections(ctx context.Context) {
	if m == nil {
		return
	}
	m.StreamConnections.Add(ctx, -1)
}
