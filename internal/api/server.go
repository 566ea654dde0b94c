// Package api serves the node's HTTP surface: descriptor resolution and
// publishing, chain connectivity management, file availability checks,
// token metadata and the live event stream.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	chaindom "github.com/ddomesh/ddo-node/business/chain/domain"
	resolverapp "github.com/ddomesh/ddo-node/business/resolver/app"
	resolverdom "github.com/ddomesh/ddo-node/business/resolver/domain"
	storagedom "github.com/ddomesh/ddo-node/business/storage/domain"
	"github.com/ddomesh/ddo-node/internal/events"
	"github.com/ddomesh/ddo-node/internal/logger"
	"github.com/ddomesh/ddo-node/internal/ratelimit"
)

const tracerName = "github.com/ddomesh/ddo-node/internal/api"

// Resolver is the slice of the resolver service the gateway calls.
type Resolver interface {
	Resolve(ctx context.Context, id string) (resolverdom.Resolution, error)
	LocalRecord(ctx context.Context, id string) (resolverdom.ResolutionRecord, bool, error)
	PublishDescriptor(ctx context.Context, desc resolverdom.StoredDescriptor) (resolverdom.ResolutionRecord, error)
	Stats(ctx context.Context) (resolverapp.Stats, error)
}

// ChainService is the slice of the chain service the gateway calls.
type ChainService interface {
	Statuses() []chaindom.NetworkStatus
	Status(chainID uint64) (chaindom.NetworkStatus, error)
	Endpoints(chainID uint64) ([]chaindom.EndpointStatus, error)
	Reconnect(ctx context.Context, chainID uint64) error
	VerifyUpdate(ctx context.Context, chainID uint64, txHash string) error
	TokenMetadata(ctx context.Context, chainID uint64, address string) (chaindom.TokenMetadata, error)
}

// StorageService is the slice of the storage service the gateway calls.
type StorageService interface {
	FileInfo(ctx context.Context, spec storagedom.FileSpec) (storagedom.FileMetadata, error)
}

// Config holds gateway configuration.
type Config struct {
	ListenAddr      string        // Address the gateway binds
	RequestsPerMin  int           // Rate limit across all routes
	ShutdownTimeout time.Duration // Grace period for draining on shutdown
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(listenAddr string) Config {
	return Config{
		ListenAddr:      listenAddr,
		RequestsPerMin:  600,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the node's HTTP gateway.
type Server struct {
	config   Config
	resolver Resolver
	chains   ChainService
	storage  StorageService
	bus      *events.Bus
	logger   logger.LoggerInterface
	limiter  *ratelimit.Limiter
	tracer   trace.Tracer
	server   *http.Server
}

// New creates a gateway. chains, storage and bus may be nil; the routes
// depending on them answer 404/503 accordingly.
func New(cfg Config, resolver Resolver, chains ChainService, storage StorageService, bus *events.Bus, log logger.LoggerInterface) *Server {
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 600
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	return &Server{
		config:   cfg,
		resolver: resolver,
		chains:   chains,
		storage:  storage,
		bus:      bus,
		logger:   log,
		limiter:  ratelimit.New(cfg.RequestsPerMin),
		tracer:   otel.Tracer(tracerName),
	}
}

// Router builds the route table with the middleware chain applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.rateLimit, s.accessLog)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/ddo/{id}", s.handleResolve).Methods(http.MethodGet)
	v1.HandleFunc("/ddo/{id}/record", s.handleLocalRecord).Methods(http.MethodGet)
	v1.HandleFunc("/ddo", s.handlePublish).Methods(http.MethodPost)
	v1.HandleFunc("/chains", s.handleChains).Methods(http.MethodGet)
	v1.HandleFunc("/chains/{chainId}/endpoints", s.handleChainEndpoints).Methods(http.MethodGet)
	v1.HandleFunc("/chains/{chainId}/reconnect", s.handleChainReconnect).Methods(http.MethodPost)
	v1.HandleFunc("/fileinfo", s.handleFileInfo).Methods(http.MethodPost)
	v1.HandleFunc("/tokens/{chainId}/{address}", s.handleToken).Methods(http.MethodGet)
	v1.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	return otelhttp.NewHandler(r, "ddo-node.api")
}

// Start runs the gateway until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info(ctx, "api server listening", "addr", s.config.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
