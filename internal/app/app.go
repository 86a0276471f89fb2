// Package app wires configuration, the engine store, repositories and use
// cases into one object graph. It is the composition root shared by the CLI
// and the public SDK.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/eslayer/internal/config"
	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/db/elastic"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	documentrepo "github.com/kailas-cloud/eslayer/internal/repository/document"
	"github.com/kailas-cloud/eslayer/internal/repository/index"
	searchrepo "github.com/kailas-cloud/eslayer/internal/repository/search"
	batchuc "github.com/kailas-cloud/eslayer/internal/usecase/batch"
	documentuc "github.com/kailas-cloud/eslayer/internal/usecase/document"
	healthuc "github.com/kailas-cloud/eslayer/internal/usecase/health"
	resourcesuc "github.com/kailas-cloud/eslayer/internal/usecase/resources"
	searchuc "github.com/kailas-cloud/eslayer/internal/usecase/search"
)

// App is the wired data layer.
type App struct {
	Config   config.Config
	Registry *resource.Registry
	Store    db.Store
	Indexes  *index.Manager
	Logger   *zap.Logger

	Documents *documentuc.Service
	Search    *searchuc.Service
	Batch     *batchuc.Service
	Resources *resourcesuc.Service
	Health    *healthuc.Service
}

// Option customizes wiring.
type Option func(*options)

type options struct {
	store     db.Store
	transport http.RoundTripper
	newID     func() string
}

// WithStore replaces the engine store (tests, embedding in other programs).
func WithStore(s db.Store) Option { return func(o *options) { o.store = s } }

// WithTransport replaces the HTTP transport of the engine client.
func WithTransport(rt http.RoundTripper) Option { return func(o *options) { o.transport = rt } }

// WithIDGenerator replaces the id generator used for inserts without an id.
func WithIDGenerator(f func() string) Option { return func(o *options) { o.newID = f } }

// New builds the object graph. cfg must already be validated. No engine call
// is made; use Ready to wait for the engine.
func New(cfg config.Config, reg *resource.Registry, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		return nil, fmt.Errorf("resource registry is required")
	}
	o := options{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = NewStore(cfg.Engine, o.transport, logger); err != nil {
			return nil, err
		}
	}

	variant := cfg.Engine.ParsedDialect().Variant()
	manager, err := index.NewManager(store, reg, variant, index.Config{
		Indexes:      cfg.Engine.Indexes,
		DefaultIndex: cfg.Engine.DefaultIndex,
		Prefix:       cfg.Engine.IndexPrefix,
	}, logger.Named("index"))
	if err != nil {
		return nil, fmt.Errorf("build index manager: %w", err)
	}

	compiler := searchrepo.NewCompiler(variant, searchrepo.CompilerConfig{
		DefaultPageSize:  cfg.Pagination.DefaultPageSize,
		MaxPageSize:      cfg.Pagination.MaxPageSize,
		AutoAggregations: cfg.Engine.AutoAggregations,
		EnforceSchema:    cfg.Engine.EnforceSchema,
	})
	translator := searchrepo.NewTranslator(variant)
	searchRepo := searchrepo.New(store, compiler, translator)
	docRepo := documentrepo.New(store, translator, cfg.Engine.RetryOnConflict)

	refresh := cfg.Engine.Refresh()
	return &App{
		Config:   cfg,
		Registry: reg,
		Store:    store,
		Indexes:  manager,
		Logger:   logger,
		Documents: documentuc.New(docRepo, reg, manager, compiler, searchRepo).
			WithForceRefresh(refresh).
			WithIDGenerator(o.newID),
		Search: searchuc.New(searchRepo, reg, manager),
		Batch: batchuc.New(docRepo, reg, manager).
			WithMaxBatchSize(cfg.Pagination.MaxBatchSize).
			WithForceRefresh(refresh).
			WithIDGenerator(o.newID),
		Resources: resourcesuc.New(manager, logger.Named("resources")),
		Health:    healthuc.New(store, manager),
	}, nil
}

// NewStore creates the engine store described by cfg.
func NewStore(cfg config.EngineConfig, transport http.RoundTripper, logger *zap.Logger) (*elastic.Store, error) {
	server, err := elastic.ParseServerType(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	caCert, err := cfg.CACert()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	store, err := elastic.NewStore(elastic.Config{
		Addresses:      cfg.URLs,
		Username:       cfg.Username,
		Password:       cfg.Password,
		CACert:         caCert,
		ServerType:     server,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: cfg.RequestTimeout(),
		Transport:      transport,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return store, nil
}

// Ready waits until the engine answers, bounded by the readiness timeout.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Store.WaitForReady(ctx, a.Config.Engine.ReadinessTimeout()); err != nil {
		return fmt.Errorf("engine not ready: %w", err)
	}
	return nil
}
