// Package store persists DDO descriptors in an embedded LevelDB database.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ddomesh/ddo-node/business/resolver/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
	"github.com/ddomesh/ddo-node/internal/logger"
)

const (
	tracerName = "github.com/ddomesh/ddo-node/business/resolver/infra/store"
	meterName  = "github.com/ddomesh/ddo-node/business/resolver/infra/store"
)

// Keys are namespaced so other record kinds can share the database.
const descriptorPrefix = "ddo:"

// Config holds configuration for the descriptor store.
type Config struct {
	Path string // filesystem directory for the database
}

// storeMetrics holds OTEL metric instruments.
type storeMetrics struct {
	reads  metric.Int64Counter
	writes metric.Int64Counter
	misses metric.Int64Counter
}

// LevelDB implements the resolver's DescriptorStore port on an embedded
// LevelDB database. Values are JSON-encoded descriptors.
type LevelDB struct {
	config Config
	logger logger.LoggerInterface

	db *leveldb.DB

	tracer  trace.Tracer
	metrics *storeMetrics
}

// New opens (or creates) the database at cfg.Path.
func New(cfg Config, log logger.LoggerInterface) (*LevelDB, error) {
	db, err := leveldb.OpenFile(cfg.Path, nil)
	if err != nil {
		return nil, apperror.New(apperror.CodeStoreFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to open descriptor store at %s", cfg.Path)))
	}

	s := &LevelDB{
		config: cfg,
		logger: log,
		db:     db,
		tracer: otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return s, nil
}

// initMetrics initializes OTEL metric instruments.
func (s *LevelDB) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &storeMetrics{}

	s.metrics.reads, err = meter.Int64Counter(
		"store_reads_total",
		metric.WithDescription("Total descriptor store reads"),
		metric.WithUnit("{read}"),
	)
	if err != nil {
		return err
	}

	s.metrics.writes, err = meter.Int64Counter(
		"store_writes_total",
		metric.WithDescription("Total descriptor store writes"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return err
	}

	s.metrics.misses, err = meter.Int64Counter(
		"store_misses_total",
		metric.WithDescription("Descriptor lookups that found nothing"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Retrieve loads one descriptor. Absence is reported through the boolean,
// not as an error.
func (s *LevelDB) Retrieve(ctx context.Context, id string) (domain.StoredDescriptor, bool, error) {
	ctx, span := s.tracer.Start(ctx, "store.retrieve",
		trace.WithAttributes(attribute.String("id", id)),
	)
	defer span.End()

	s.metrics.reads.Add(ctx, 1)

	data, err := s.db.Get([]byte(descriptorPrefix+id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		s.metrics.misses.Add(ctx, 1)
		span.AddEvent("not_found")
		return domain.StoredDescriptor{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return domain.StoredDescriptor{}, false, apperror.New(apperror.CodeStoreFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to read descriptor %s", id)))
	}

	var desc domain.StoredDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return domain.StoredDescriptor{}, false, apperror.New(apperror.CodeStoreFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to decode descriptor %s", id)))
	}

	span.SetStatus(codes.Ok, "retrieved")
	return desc, true, nil
}

// Save writes one descriptor, replacing any previous version.
func (s *LevelDB) Save(ctx context.Context, desc domain.StoredDescriptor) error {
	ctx, span := s.tracer.Start(ctx, "store.save",
		trace.WithAttributes(attribute.String("id", desc.ID)),
	)
	defer span.End()

	data, err := json.Marshal(desc)
	if err != nil {
		span.RecordError(err)
		return apperror.New(apperror.CodeStoreFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to encode descriptor %s", desc.ID)))
	}

	if err := s.db.Put([]byte(descriptorPrefix+desc.ID), data, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return apperror.New(apperror.CodeStoreFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to write descriptor %s", desc.ID)))
	}

	s.metrics.writes.Add(ctx, 1)
	span.SetStatus(codes.Ok, "saved")
	return nil
}

// List returns stored descriptor identifiers. A non-positive limit returns
// all of them.
func (s *LevelDB) List(ctx context.Context, limit int) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "store.list",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	iter := s.db.NewIterator(util.BytesPrefix([]byte(descriptorPrefix)), nil)
	defer iter.Release()

	var ids []string
	for iter.Next() {
		ids = append(ids, string(iter.Key())[len(descriptorPrefix):])
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "iterate failed")
		return nil, apperror.New(apperror.CodeStoreFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to list descriptors"))
	}

	span.SetAttributes(attribute.Int("count", len(ids)))
	span.SetStatus(codes.Ok, "listed")
	return ids, nil
}

// Count returns the number of stored descriptors.
func (s *LevelDB) Count(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "store.count")
	defer span.End()

	iter := s.db.NewIterator(util.BytesPrefix([]byte(descriptorPrefix)), nil)
	defer iter.Release()

	count := 0
	for iter.Next() {
		count++
	}
	if err := iter.Error(); err != nil {
		span.RecordError(err)
		return 0, apperror.New(apperror.CodeStoreFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to count descriptors"))
	}

	span.SetStatus(codes.Ok, "counted")
	return count, nil
}

// Close releases the database handle.
func (s *LevelDB) Close() error {
	s.logger.Info(context.Background(), "closing descriptor store", "path", s.config.Path)
	return s.db.Close()
}
