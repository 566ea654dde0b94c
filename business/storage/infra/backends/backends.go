// Package backends implements the storage variants behind the Backend
// capability interface.
package backends

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ddomesh/ddo-node/business/storage/app"
	"github.com/ddomesh/ddo-node/business/storage/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
	"github.com/ddomesh/ddo-node/internal/httpclient"
	"github.com/ddomesh/ddo-node/internal/logger"
)

const (
	tracerName = "github.com/ddomesh/ddo-node/business/storage/infra/backends"
	meterName  = "github.com/ddomesh/ddo-node/business/storage/infra/backends"
)

const defaultTimeout = 10 * time.Second

// Config holds gateway locations for the resolved variants.
type Config struct {
	IPFSGateway    string
	ArweaveGateway string
	Timeout        time.Duration
}

// DefaultConfig points at the public gateways.
func DefaultConfig() Config {
	return Config{
		IPFSGateway:    "https://ipfs.io",
		ArweaveGateway: "https://arweave.net",
		Timeout:        defaultTimeout,
	}
}

// proberMetrics holds OTEL metric instruments.
type proberMetrics struct {
	probes    metric.Int64Counter
	available metric.Int64Counter
	failures  metric.Int64Counter
}

// prober performs the uniform HEAD probe shared by every variant.
type prober struct {
	http   httpclient.Client
	logger logger.LoggerInterface

	tracer  trace.Tracer
	metrics *proberMetrics
}

// New builds the full variant set sharing one instrumented HTTP client.
func New(cfg Config, log logger.LoggerInterface) (map[domain.StorageType]app.Backend, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	tracer := otel.Tracer(tracerName)

	hc, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("storage"),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	p := &prober{
		http:   hc,
		logger: log,
		tracer: tracer,
	}
	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	ipfsGateway := cfg.IPFSGateway
	if ipfsGateway == "" {
		ipfsGateway = DefaultConfig().IPFSGateway
	}
	arweaveGateway := cfg.ArweaveGateway
	if arweaveGateway == "" {
		arweaveGateway = DefaultConfig().ArweaveGateway
	}

	return map[domain.StorageType]app.Backend{
		domain.TypeURL:     &URLBackend{prober: p},
		domain.TypeIPFS:    &IPFSBackend{prober: p, gateway: ipfsGateway},
		domain.TypeArweave: &ArweaveBackend{prober: p, gateway: arweaveGateway},
	}, nil
}

func (p *prober) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &proberMetrics{}

	p.metrics.probes, err = meter.Int64Counter(
		"storage_probes_total",
		metric.WithDescription("Total file object probes"),
	)
	if err != nil {
		return err
	}

	p.metrics.available, err = meter.Int64Counter(
		"storage_probes_available_total",
		metric.WithDescription("Probes that found the object reachable"),
	)
	if err != nil {
		return err
	}

	p.metrics.failures, err = meter.Int64Counter(
		"storage_probe_failures_total",
		metric.WithDescription("Probes that could not reach the location"),
	)
	if err != nil {
		return err
	}

	return nil
}

// probe HEADs the location. An unreachable or refusing location is a
// result (Available false), not an error; only a caller that gave up is
// reported as a failure.
func (p *prober) probe(ctx context.Context, typ domain.StorageType, location string) (domain.FileMetadata, error) {
	ctx, span := p.tracer.Start(ctx, "storage.probe",
		trace.WithAttributes(
			attribute.String("storage_type", string(typ)),
			attribute.String("location", location),
		),
	)
	defer span.End()

	p.metrics.probes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("storage_type", string(typ))))

	meta := domain.FileMetadata{
		Type:      typ,
		Location:  location,
		CheckedAt: time.Now().UTC(),
	}

	resp, err := p.http.NewRequest().Head(ctx, location)
	if err != nil {
		span.RecordError(err)
		p.metrics.failures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("storage_type", string(typ))))

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.FileMetadata{}, apperror.New(apperror.CodeStorageFetchFailed,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("probe %s", location)))
		}

		p.logger.Debug(ctx, "file object unreachable", "location", location, "error", err)
		span.SetStatus(codes.Ok, "unreachable")
		return meta, nil
	}

	if resp.IsError() {
		span.AddEvent("error_status",
			trace.WithAttributes(attribute.Int("status_code", resp.StatusCode)))
		span.SetStatus(codes.Ok, "not available")
		return meta, nil
	}

	meta.Available = true
	meta.ContentType = resp.Header.Get("Content-Type")
	if resp.ContentLength > 0 {
		meta.ContentLength = resp.ContentLength
	}

	p.metrics.available.Add(ctx, 1,
		metric.WithAttributes(attribute.String("storage_type", string(typ))))
	span.SetStatus(codes.Ok, "probed")
	return meta, nil
}
