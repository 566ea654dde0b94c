// Package peers queries other DDO nodes for resolution records over their
// HTTP gateways.
package peers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ddomesh/ddo-node/business/resolver/domain"
	"github.com/ddomesh/ddo-node/internal/httpclient"
	"github.com/ddomesh/ddo-node/internal/logger"
	"github.com/ddomesh/ddo-node/internal/ratelimit"
)

const (
	tracerName = "github.com/ddomesh/ddo-node/business/resolver/infra/peers"
	meterName  = "github.com/ddomesh/ddo-node/business/resolver/infra/peers"
)

const (
	recordPath = "/api/v1/ddo/%s/record"

	defaultTimeout        = 5 * time.Second
	defaultRequestsPerMin = 120
)

// Config holds configuration for the peer query client.
type Config struct {
	Endpoints      []string      // peer gateway base URLs, in preference order
	Timeout        time.Duration // per-request timeout
	RequestsPerMin int           // per-peer request budget; 0 disables limiting
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(endpoints []string) Config {
	return Config{
		Endpoints:      endpoints,
		Timeout:        defaultTimeout,
		RequestsPerMin: defaultRequestsPerMin,
	}
}

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	queries  metric.Int64Counter
	answers  metric.Int64Counter
	failures metric.Int64Counter
}

// Client implements the resolver's PeerQuerier port. A lookup fans out to
// every configured peer in parallel; peers that fail, answer 404 or return
// garbage are skipped, never fatal.
type Client struct {
	config Config
	logger logger.LoggerInterface

	http   httpclient.Client
	limits []*ratelimit.Limiter // parallel to config.Endpoints

	tracer  trace.Tracer
	metrics *clientMetrics
}

// New creates a peer query client.
func New(cfg Config, log logger.LoggerInterface) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	tracer := otel.Tracer(tracerName)

	hc, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("peers"),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	limits := make([]*ratelimit.Limiter, len(cfg.Endpoints))
	if cfg.RequestsPerMin > 0 {
		for i := range limits {
			limits[i] = ratelimit.New(cfg.RequestsPerMin)
		}
	}

	c := &Client{
		config: cfg,
		logger: log,
		http:   hc,
		limits: limits,
		tracer: tracer,
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

// initMetrics initializes OTEL metric instruments.
func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.queries, err = meter.Int64Counter(
		"peer_queries_total",
		metric.WithDescription("Total peer fan-out queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	c.metrics.answers, err = meter.Int64Counter(
		"peer_answers_total",
		metric.WithDescription("Total usable peer answers"),
		metric.WithUnit("{answer}"),
	)
	if err != nil {
		return err
	}

	c.metrics.failures, err = meter.Int64Counter(
		"peer_failures_total",
		metric.WithDescription("Peer requests that failed or returned garbage"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Query asks every configured peer for its record of id. Results keep the
// configured peer order so downstream tie-breaking stays deterministic.
func (c *Client) Query(ctx context.Context, id string, correlationID string) []domain.ResolutionRecord {
	ctx, span := c.tracer.Start(ctx, "peers.query",
		trace.WithAttributes(
			attribute.String("id", id),
			attribute.Int("peers", len(c.config.Endpoints)),
		),
	)
	defer span.End()

	if len(c.config.Endpoints) == 0 {
		return nil
	}

	c.metrics.queries.Add(ctx, 1)

	results := make([]*domain.ResolutionRecord, len(c.config.Endpoints))

	g, gCtx := errgroup.WithContext(ctx)
	for i, endpoint := range c.config.Endpoints {
		g.Go(func() error {
			if rec, ok := c.queryPeer(gCtx, endpoint, c.limits[i], id, correlationID); ok {
				results[i] = &rec
			}
			return nil // a failed peer never sinks the fan-out
		})
	}
	g.Wait()

	records := make([]domain.ResolutionRecord, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			records = append(records, *rec)
		}
	}

	c.metrics.answers.Add(ctx, int64(len(records)))
	span.SetAttributes(attribute.Int("answers", len(records)))
	span.SetStatus(codes.Ok, "queried")

	return records
}

// queryPeer fetches one peer's record. The boolean reports whether the
// answer is usable.
func (c *Client) queryPeer(ctx context.Context, endpoint string, limit *ratelimit.Limiter, id, correlationID string) (domain.ResolutionRecord, bool) {
	ctx, span := c.tracer.Start(ctx, "peers.query_peer",
		trace.WithAttributes(attribute.String("peer", endpoint)),
	)
	defer span.End()

	if limit != nil {
		if err := limit.Wait(ctx); err != nil {
			span.AddEvent("rate_limited")
			c.logger.Debug(ctx, "peer query skipped, rate limited", "peer", endpoint, "id", id)
			return domain.ResolutionRecord{}, false
		}
	}

	var rec domain.ResolutionRecord
	reqURL := strings.TrimSuffix(endpoint, "/") + fmt.Sprintf(recordPath, url.PathEscape(id))

	resp, err := c.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("peer", endpoint)),
	).
		SetHeader("X-Correlation-ID", correlationID).
		SetResult(&rec).
		Get(ctx, reqURL)
	if err != nil {
		c.metrics.failures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.logger.Warn(ctx, "peer query failed", "peer", endpoint, "id", id, "error", err)
		return domain.ResolutionRecord{}, false
	}

	if resp.StatusCode == http.StatusNotFound {
		span.AddEvent("peer_does_not_know")
		return domain.ResolutionRecord{}, false
	}
	if resp.IsError() {
		c.metrics.failures.Add(ctx, 1)
		span.SetStatus(codes.Error, resp.Status)
		c.logger.Warn(ctx, "peer returned error", "peer", endpoint, "id", id, "status", resp.StatusCode)
		return domain.ResolutionRecord{}, false
	}

	// A record for the wrong id or without a timestamp cannot take part
	// in reconciliation.
	if rec.ID != id || rec.LastUpdateTime.IsZero() {
		c.metrics.failures.Add(ctx, 1)
		span.AddEvent("invalid_record")
		c.logger.Warn(ctx, "peer response invalid", "peer", endpoint, "id", id, "got_id", rec.ID)
		return domain.ResolutionRecord{}, false
	}

	span.SetStatus(codes.Ok, "answered")
	return rec, true
}

// Endpoints returns the configured peer URLs.
func (c *Client) Endpoints() []string {
	out := make([]string, len(c.config.Endpoints))
	copy(out, c.config.Endpoints)
	return out
}
