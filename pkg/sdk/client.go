package eslayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/eslayer/internal/app"
	"github.com/kailas-cloud/eslayer/internal/config"
	"github.com/kailas-cloud/eslayer/internal/domain"
	dombatch "github.com/kailas-cloud/eslayer/internal/domain/batch"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
	"github.com/kailas-cloud/eslayer/internal/domain/document/patch"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/filter"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/eslayer/internal/usecase/health"
)

// Internal interfaces, replaced by mocks in tests.
type documentUseCase interface {
	Insert(ctx context.Context, name string, doc domdoc.Document) (string, domain.Version, error)
	Get(ctx context.Context, name, id string) (result.Item, error)
	GetMany(ctx context.Context, name string, ids []string) ([]result.Item, error)
	Update(ctx context.Context, name, id string, p patch.Patch, expected *domain.Version) (domain.Version, error)
	Replace(ctx context.Context, name string, doc domdoc.Document, expected *domain.Version) (domain.Version, error)
	Delete(ctx context.Context, name, id string, expected *domain.Version) error
	DeleteAll(ctx context.Context, name string) (int, error)
	IsEmpty(ctx context.Context, name string) (bool, error)
}

type batchUseCase interface {
	InsertMany(ctx context.Context, name string, items []domdoc.Document) []dombatch.Result
}

type searchUseCase interface {
	Find(ctx context.Context, name string, req request.Request) (result.Response, error)
	FindOne(ctx context.Context, name string, lookup filter.Expression) (result.Item, error)
	Count(ctx context.Context, name string, req request.Request) (int64, error)
}

type resourcesUseCase interface {
	List() []resource.Target
	Resolve(name string) (resource.Target, error)
	Mapping(name string) (json.RawMessage, error)
	Ensure(ctx context.Context, names ...string) error
	PutMapping(ctx context.Context, name string) error
	PutSettings(ctx context.Context, name string) error
	Drop(ctx context.Context, name string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Client is the eslayer SDK entry point.
type Client struct {
	engine       pinger
	docSvc       documentUseCase
	batchSvc     batchUseCase
	searchSvc    searchUseCase
	resourcesSvc resourcesUseCase
	healthSvc    healthUseCase
	obs          *observer
}

// New creates a Client and waits for the engine to answer.
// The provided context bounds the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	appCfg, err := buildConfig(cfg)
	if err != nil {
		return nil, err
	}
	reg, err := loadResources(cfg, appCfg)
	if err != nil {
		return nil, err
	}

	var appOpts []app.Option
	if cfg.transport != nil {
		appOpts = append(appOpts, app.WithTransport(cfg.transport))
	}
	if cfg.newID != nil {
		appOpts = append(appOpts, app.WithIDGenerator(cfg.newID))
	}
	a, err := app.New(appCfg, reg, cfg.logger, appOpts...)
	if err != nil {
		return nil, fmt.Errorf("eslayer: %w", err)
	}
	if err := a.Ready(ctx); err != nil {
		return nil, fmt.Errorf("eslayer: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return &Client{
		engine:       a.Store,
		docSvc:       a.Documents,
		batchSvc:     a.Batch,
		searchSvc:    a.Search,
		resourcesSvc: a.Resources,
		healthSvc:    a.Health,
		obs:          obs,
	}, nil
}

// buildConfig layers explicit options over the optional config file.
func buildConfig(c *clientConfig) (config.Config, error) {
	var cfg config.Config
	if c.configFile != "" {
		var err error
		if cfg, err = config.LoadFile(c.configFile); err != nil {
			return config.Config{}, fmt.Errorf("eslayer: %w", err)
		}
	}

	e := &cfg.Engine
	if len(c.urls) > 0 {
		e.URLs = c.urls
	}
	setIf(&e.Server, c.server)
	setIf(&e.Dialect, c.dialect)
	setIf(&e.Username, c.username)
	setIf(&e.Password, c.password)
	setIf(&e.DefaultIndex, c.defaultIndex)
	setIf(&e.IndexPrefix, c.indexPrefix)
	setIf(&cfg.ResourcesFile, c.resourcesFile)
	if c.indexes != nil {
		e.Indexes = c.indexes
	}
	if c.forceRefresh != nil {
		e.ForceRefresh = c.forceRefresh
	}
	if c.autoAggregations {
		e.AutoAggregations = true
	}
	if c.enforceSchema {
		e.EnforceSchema = true
	}
	if c.maxRetries != 0 {
		e.MaxRetries = c.maxRetries
	}
	if c.maxBatchSize > 0 {
		cfg.Pagination.MaxBatchSize = c.maxBatchSize
	}

	if len(e.URLs) == 0 {
		return config.Config{}, errors.New("eslayer: engine URL required (use WithURLs or WithConfigFile)")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("eslayer: invalid config: %w", err)
	}
	return cfg, nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func loadResources(c *clientConfig, cfg config.Config) (*resource.Registry, error) {
	var (
		reg *resource.Registry
		err error
	)
	switch {
	case c.resourcesYAML != nil:
		reg, err = config.ParseResources(c.resourcesYAML)
	case cfg.ResourcesFile != "":
		reg, err = config.LoadResources(cfg.ResourcesFile)
	default:
		return nil, errors.New("eslayer: resources required (use WithResourcesFile or WithResourcesYAML)")
	}
	if err != nil {
		return nil, fmt.Errorf("eslayer: %w", err)
	}
	return reg, nil
}

// Ping checks engine connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", "", start, err) }()

	if err = c.engine.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Resources returns the resource and index management service.
func (c *Client) Resources() *ResourceService {
	return &ResourceService{svc: c.resourcesSvc, obs: c.obs}
}

// Documents returns the document service for a given resource.
func (c *Client) Documents(resource string) *DocumentService {
	return &DocumentService{
		resource: resource,
		docSvc:   c.docSvc,
		batchSvc: c.batchSvc,
		obs:      c.obs,
	}
}

// Search returns the search service for a given resource.
func (c *Client) Search(resource string) *SearchService {
	return &SearchService{
		resource: resource,
		svc:      c.searchSvc,
		obs:      c.obs,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
