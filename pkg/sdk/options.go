package eslayer

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	configFile string

	urls     []string
	server   string // "elasticsearch" or "opensearch"
	dialect  string // "v6" or "v7"
	username string
	password string

	resourcesFile string
	resourcesYAML []byte

	defaultIndex string
	indexPrefix  string
	indexes      map[string]string

	forceRefresh     *bool
	autoAggregations bool
	enforceSchema    bool
	maxRetries       int
	maxBatchSize     int

	transport http.RoundTripper
	newID     func() string

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithConfigFile loads engine, pagination and resources settings from a
// YAML file. Other options are applied on top of it.
func WithConfigFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.configFile = path
	})
}

// WithURLs sets the engine node URLs.
func WithURLs(urls ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.urls = append([]string(nil), urls...)
	})
}

// WithOpenSearch targets an OpenSearch cluster instead of Elasticsearch.
func WithOpenSearch() Option {
	return optionFunc(func(c *clientConfig) {
		c.server = "opensearch"
	})
}

// WithDialect selects the query dialect: "v6" (typed indexes) or "v7".
// Defaults to v7.
func WithDialect(d string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dialect = d
	})
}

// WithBasicAuth sets engine credentials.
func WithBasicAuth(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.username = username
		c.password = password
	})
}

// WithResourcesFile reads resource definitions from a YAML file.
func WithResourcesFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.resourcesFile = path
	})
}

// WithResourcesYAML parses resource definitions from YAML bytes.
// It takes precedence over WithResourcesFile.
func WithResourcesYAML(data []byte) Option {
	return optionFunc(func(c *clientConfig) {
		c.resourcesYAML = data
	})
}

// WithDefaultIndex stores every resource without an explicit index in name.
func WithDefaultIndex(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultIndex = name
	})
}

// WithIndexPrefix prefixes derived index names.
func WithIndexPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexPrefix = prefix
	})
}

// WithIndexes maps resources to index names, overriding their definitions.
func WithIndexes(m map[string]string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexes = m
	})
}

// WithForceRefresh sets whether writes refresh the index before returning.
// Default: true.
func WithForceRefresh(v bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.forceRefresh = &v
	})
}

// WithAutoAggregations computes every declared facet on each find.
func WithAutoAggregations() Option {
	return optionFunc(func(c *clientConfig) {
		c.autoAggregations = true
	})
}

// WithEnforceSchema rejects filters and sorts on undeclared fields.
func WithEnforceSchema() Option {
	return optionFunc(func(c *clientConfig) {
		c.enforceSchema = true
	})
}

// WithMaxRetries sets engine client retries. Negative disables retries.
func WithMaxRetries(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxRetries = n
	})
}

// WithMaxBatchSize sets the maximum number of items per InsertMany call.
// Default: 500.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithTransport replaces the HTTP transport of the engine client.
func WithTransport(rt http.RoundTripper) Option {
	return optionFunc(func(c *clientConfig) {
		c.transport = rt
	})
}

// WithIDGenerator replaces the generator used for inserts without an id.
// Defaults to random UUIDs.
func WithIDGenerator(f func() string) Option {
	return optionFunc(func(c *clientConfig) {
		c.newID = f
	})
}

// WithLogger enables structured logging for SDK operations and engine round
// trips. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
