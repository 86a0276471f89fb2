package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/domain"
	"github.com/kailas-cloud/eslayer/internal/domain/dialect"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/metrics"
)

// store is the consumer interface for index management (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	PutMapping(ctx context.Context, index, docType string, mapping []byte) error
	PutSettings(ctx context.Context, index string, settings []byte) error
}

// Config controls resource-to-index resolution.
type Config struct {
	// Indexes pins a source resource to an index and wins over everything else.
	Indexes map[string]string
	// DefaultIndex is used by resources without a pinned index.
	DefaultIndex string
	// Prefix is prepended to derived index names.
	Prefix string
}

// Target is the physical location of a resource's documents.
type Target = resource.Target

// Manager resolves resources to indexes and provisions them on demand.
// Resolution tables and mappings are computed once at construction.
type Manager struct {
	store    store
	variant  dialect.Variant
	logger   *zap.Logger
	targets  map[string]Target
	mappings map[string]Mapping        // by index
	settings map[string]map[string]any // by index
	suffix   func() string

	group singleflight.Group
	mu    sync.RWMutex
	ready map[string]bool
}

// NewManager builds the resolution table and the mapping of every index.
// A schema that cannot be mapped fails construction.
func NewManager(s store, reg *resource.Registry, variant dialect.Variant, cfg Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:    s,
		variant:  variant,
		logger:   logger,
		targets:  make(map[string]Target, reg.Len()),
		mappings: make(map[string]Mapping),
		settings: make(map[string]map[string]any),
		ready:    make(map[string]bool),
		suffix:   aliasSuffix,
	}

	members := make(map[string][]resource.Definition) // index -> core resources
	for _, def := range reg.All() {
		src := def
		if def.Source() != def.Name() {
			var err error
			if src, err = reg.Get(def.Source()); err != nil {
				return nil, fmt.Errorf("resource %s: source %q: %w", def.Name(), def.Source(), err)
			}
		}
		idx := resolveIndex(def, src, cfg)
		if !db.IsValidIndexName(idx) {
			return nil, fmt.Errorf("resource %s: invalid index name %q", def.Name(), idx)
		}
		m.targets[def.Name()] = Target{
			Resource: def.Name(),
			Source:   def.Source(),
			Index:    idx,
			Type:     variant.PathType(),
		}
		if def.Source() == def.Name() {
			members[idx] = append(members[idx], def)
		}
	}

	for idx, defs := range members {
		mappings := make([]Mapping, 0, len(defs))
		settings := make(map[string]any)
		for _, def := range defs {
			mp, err := BuildMapping(def, variant)
			if err != nil {
				return nil, fmt.Errorf("resource %s: %w", def.Name(), err)
			}
			mappings = append(mappings, mp)
			for k, v := range BuildSettings(def) {
				settings[k] = v
			}
		}
		merged, err := MergeMappings(variant, mappings...)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", idx, err)
		}
		m.mappings[idx] = merged
		m.settings[idx] = settings
	}

	for name, t := range m.targets {
		if _, ok := m.mappings[t.Index]; !ok {
			return nil, fmt.Errorf("resource %s: index %q has no owning resource", name, t.Index)
		}
		t.Shared = len(members[t.Index]) > 1
		m.targets[name] = t
	}
	return m, nil
}

// resolveIndex applies: configured index of the source, the declared index,
// the default index, then prefix + source name lower-cased.
func resolveIndex(def, src resource.Definition, cfg Config) string {
	if idx, ok := cfg.Indexes[def.Source()]; ok && idx != "" {
		return idx
	}
	if def.Index() != "" {
		return def.Index()
	}
	if src.Index() != "" {
		return src.Index()
	}
	if cfg.DefaultIndex != "" {
		return cfg.DefaultIndex
	}
	return strings.ToLower(cfg.Prefix + def.Source())
}

// Resolve returns the target of a resource.
func (m *Manager) Resolve(name string) (Target, error) {
	t, ok := m.targets[name]
	if !ok {
		return Target{}, fmt.Errorf("resource %q: %w", name, domain.ErrNotFound)
	}
	return t, nil
}

// Targets returns every resolved target sorted by resource name.
func (m *Manager) Targets() []Target {
	out := make([]Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// Mapping returns the mapping of the index a resource resolves to.
func (m *Manager) Mapping(name string) (Mapping, error) {
	t, err := m.Resolve(name)
	if err != nil {
		return Mapping{}, err
	}
	return m.mappings[t.Index], nil
}

// MappingJSON renders the mapping of the index a resource resolves to.
func (m *Manager) MappingJSON(name string) ([]byte, error) {
	mp, err := m.Mapping(name)
	if err != nil {
		return nil, err
	}
	return mp.JSON()
}

// Variant returns the engine dialect the manager builds for.
func (m *Manager) Variant() dialect.Variant { return m.variant }

// EnsureIndex makes sure the resource's index exists. Concurrent calls for the
// same index share one engine round trip, and an index created by another
// process in between counts as success.
func (m *Manager) EnsureIndex(ctx context.Context, name string) error {
	t, err := m.Resolve(name)
	if err != nil {
		return err
	}
	if m.isReady(t.Index) {
		return nil
	}

	ch := m.group.DoChan(t.Index, func() (any, error) {
		if m.isReady(t.Index) {
			return nil, nil
		}
		// Joined callers wait on this call, so one caller's cancellation
		// must not fail the others.
		return nil, m.provision(context.WithoutCancel(ctx), t)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) provision(ctx context.Context, t Target) error {
	exists, err := m.store.IndexExists(ctx, t.Index)
	if err != nil {
		metrics.IndexProvisionTotal.WithLabelValues("error").Inc()
		return &domain.IndexProvisioningError{Resource: t.Resource, Index: t.Index, Err: engineErr(err)}
	}
	if exists {
		m.markReady(t.Index, true)
		metrics.IndexProvisionTotal.WithLabelValues("exists").Inc()
		return nil
	}

	def, err := m.definition(t.Index)
	if err != nil {
		metrics.IndexProvisionTotal.WithLabelValues("error").Inc()
		return &domain.IndexProvisioningError{Resource: t.Resource, Index: t.Index, Err: err}
	}

	err = m.store.CreateIndex(ctx, def)
	switch {
	case errors.Is(err, db.ErrIndexExists):
		metrics.IndexProvisionTotal.WithLabelValues("exists").Inc()
	case err != nil:
		metrics.IndexProvisionTotal.WithLabelValues("error").Inc()
		return &domain.IndexProvisioningError{Resource: t.Resource, Index: t.Index, Err: engineErr(err)}
	default:
		metrics.IndexProvisionTotal.WithLabelValues("created").Inc()
		m.logger.Info("Index created", zap.String("index", t.Index), zap.String("resource", t.Resource))
	}
	m.markReady(t.Index, true)
	return nil
}

// definition renders the create body of an index. Every new index also gets
// a uniquely named alias so it can later be swapped behind a reindex.
func (m *Manager) definition(index string) (*db.IndexDefinition, error) {
	b := db.NewIndex(index).Mappings(m.mappings[index].Body())
	if s := m.settings[index]; len(s) > 0 {
		b = b.Settings(s)
	}
	if alias := index + "_" + m.suffix(); db.IsValidIndexName(alias) {
		b = b.Alias(alias)
	}
	return b.Build()
}

// aliasSuffix is the first group of a random UUID: eight hex characters.
func aliasSuffix() string {
	id := uuid.NewString()
	return id[:strings.IndexByte(id, '-')]
}

// InitIndexes ensures the index of every registered resource.
func (m *Manager) InitIndexes(ctx context.Context) error {
	for _, t := range m.Targets() {
		if err := m.EnsureIndex(ctx, t.Resource); err != nil {
			return err
		}
	}
	return nil
}

// MissingIndexes returns the managed indexes absent from the engine, sorted.
func (m *Manager) MissingIndexes(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(m.mappings))
	for idx := range m.mappings {
		names = append(names, idx)
	}
	sort.Strings(names)

	var missing []string
	for _, idx := range names {
		ok, err := m.store.IndexExists(ctx, idx)
		if err != nil {
			return nil, fmt.Errorf("check index %s: %w", idx, engineErr(err))
		}
		if !ok {
			missing = append(missing, idx)
			m.markReady(idx, false)
		}
	}
	return missing, nil
}

// PutMapping pushes the current mapping of a resource's index to the engine.
// New fields are added; changing the type of an existing field is rejected by the engine.
func (m *Manager) PutMapping(ctx context.Context, name string) error {
	t, err := m.Resolve(name)
	if err != nil {
		return err
	}
	mp := m.mappings[t.Index]
	body := mp.Body()
	if t.Type != "" {
		body = mp.TypeBody()
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("put mapping %s: %w", t.Index, err)
	}
	if err := m.store.PutMapping(ctx, t.Index, t.Type, raw); err != nil {
		return fmt.Errorf("put mapping %s: %w", t.Index, engineErr(err))
	}
	return nil
}

// PutSettings applies the updatable declared settings (analysis, replicas) to an
// existing index. Shard count is fixed at creation and is not sent.
func (m *Manager) PutSettings(ctx context.Context, name string) error {
	t, err := m.Resolve(name)
	if err != nil {
		return err
	}
	settings := make(map[string]any, 2)
	for k, v := range m.settings[t.Index] {
		if k != "number_of_shards" {
			settings[k] = v
		}
	}
	if len(settings) == 0 {
		return nil
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("put settings %s: %w", t.Index, err)
	}
	if err := m.store.PutSettings(ctx, t.Index, raw); err != nil {
		return fmt.Errorf("put settings %s: %w", t.Index, engineErr(err))
	}
	return nil
}

// DropIndex deletes the resource's index and forgets that it was provisioned.
func (m *Manager) DropIndex(ctx context.Context, name string) error {
	t, err := m.Resolve(name)
	if err != nil {
		return err
	}
	if err := m.store.DropIndex(ctx, t.Index); err != nil {
		return fmt.Errorf("drop index %s: %w", t.Index, engineErr(err))
	}
	m.markReady(t.Index, false)
	return nil
}

// Forget clears the cached existence of an index, e.g. after the engine
// reported it missing.
func (m *Manager) Forget(name string) {
	if t, ok := m.targets[name]; ok {
		m.markReady(t.Index, false)
	}
}

func (m *Manager) isReady(index string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready[index]
}

func (m *Manager) markReady(index string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.ready[index] = true
		return
	}
	delete(m.ready, index)
}

// engineErr lifts connectivity failures into the domain error.
func engineErr(err error) error {
	var dbErr *db.Error
	if errors.Is(err, db.ErrUnavailable) {
		op := "engine"
		if errors.As(err, &dbErr) {
			op = dbErr.Op
		}
		return &domain.BackendUnavailableError{Op: op, Err: err}
	}
	return err
}
