package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/domain/dialect"
)

// Config holds the eslayer configuration.
type Config struct {
	Engine        EngineConfig     `yaml:"engine"`
	Pagination    PaginationConfig `yaml:"pagination"`
	ResourcesFile string           `yaml:"resources_file"`
	HTTP          HTTPConfig       `yaml:"http"`
	Auth          AuthConfig       `yaml:"auth"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	APIKeys  []string `yaml:"api_keys"`  // full access
	ReadKeys []string `yaml:"read_keys"` // GET and HEAD only
}

// HTTPConfig holds admin HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// EngineConfig holds search engine connection and behaviour settings.
type EngineConfig struct {
	URLs         []string          `yaml:"urls"`
	Server       string            `yaml:"server"`  // elasticsearch, opensearch (default: elasticsearch)
	Dialect      string            `yaml:"dialect"` // v6, v7 (default: v7)
	Username     string            `yaml:"username"`
	Password     string            `yaml:"password"`
	CACertFile   string            `yaml:"ca_cert_file"`
	DefaultIndex string            `yaml:"default_index"`
	IndexPrefix  string            `yaml:"index_prefix"`
	Indexes      map[string]string `yaml:"indexes"`
	// ForceRefresh is nil when unset so the default can be told apart from false.
	ForceRefresh        *bool `yaml:"force_refresh"`
	AutoAggregations    bool  `yaml:"auto_aggregations"`
	EnforceSchema       bool  `yaml:"enforce_schema"`
	RetryOnConflict     int   `yaml:"retry_on_conflict"`
	MaxRetries          int   `yaml:"max_retries"`
	RequestTimeoutSec   int   `yaml:"request_timeout_sec"`
	ReadinessTimeoutSec int   `yaml:"readiness_timeout_sec"`
}

// PaginationConfig holds page and batch limits.
type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
	MaxBatchSize    int `yaml:"max_batch_size"`
}

// Refresh reports whether writes force an index refresh.
func (e EngineConfig) Refresh() bool {
	return e.ForceRefresh == nil || *e.ForceRefresh
}

// ParsedDialect returns the configured dialect. Call after Validate.
func (e EngineConfig) ParsedDialect() dialect.Dialect {
	d, err := dialect.Parse(e.Dialect)
	if err != nil {
		return dialect.V7
	}
	return d
}

// RequestTimeout returns the per-request timeout.
func (e EngineConfig) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutSec) * time.Second
}

// ReadinessTimeout returns how long startup waits for the engine.
func (e EngineConfig) ReadinessTimeout() time.Duration {
	return time.Duration(e.ReadinessTimeoutSec) * time.Second
}

// CACert reads the configured CA certificate, if any.
func (e EngineConfig) CACert() ([]byte, error) {
	if e.CACertFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Clean(e.CACertFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read ca cert %s: %w", e.CACertFile, err)
	}
	return data, nil
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath("", env))
}

// LoadDir reads <dir>/<env>.yaml.
func LoadDir(dir, env string) (Config, error) {
	return LoadFile(findConfigPath(dir, env))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	// A relative resources file is looked up next to the config directory first.
	if cfg.ResourcesFile != "" && !filepath.IsAbs(cfg.ResourcesFile) && !fileExists(cfg.ResourcesFile) {
		alt := filepath.Join(filepath.Dir(filepath.Dir(path)), cfg.ResourcesFile)
		if fileExists(alt) {
			cfg.ResourcesFile = alt
		}
	}
	return cfg, nil
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	c.Engine.URLs = SplitList(c.Engine.URLs...)
	if len(c.Engine.URLs) == 0 {
		c.Engine.URLs = []string{"http://localhost:9200"}
	}
	if c.Engine.Server == "" {
		c.Engine.Server = "elasticsearch"
	}
	if c.Engine.Dialect == "" {
		c.Engine.Dialect = string(dialect.V7)
	}
	if c.Engine.ForceRefresh == nil {
		v := true
		c.Engine.ForceRefresh = &v
	}
	if c.Engine.RetryOnConflict <= 0 {
		c.Engine.RetryOnConflict = 5
	}
	if c.Engine.MaxRetries == 0 {
		c.Engine.MaxRetries = 3
	}
	if c.Engine.RequestTimeoutSec <= 0 {
		c.Engine.RequestTimeoutSec = 10
	}
	if c.Engine.ReadinessTimeoutSec <= 0 {
		c.Engine.ReadinessTimeoutSec = 10
	}
	if c.Pagination.DefaultPageSize <= 0 {
		c.Pagination.DefaultPageSize = 25
	}
	if c.Pagination.MaxPageSize <= 0 {
		c.Pagination.MaxPageSize = 100
	}
	if c.Pagination.MaxBatchSize <= 0 {
		c.Pagination.MaxBatchSize = 500
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 9090
	}
	c.Auth.APIKeys = SplitList(c.Auth.APIKeys...)
	c.Auth.ReadKeys = SplitList(c.Auth.ReadKeys...)
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if len(c.Engine.URLs) == 0 {
		return fmt.Errorf("engine.urls is required")
	}
	for _, raw := range c.Engine.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("engine.urls: invalid url %q", raw)
		}
	}
	switch c.Engine.Server {
	case "elasticsearch", "opensearch":
		// ok
	default:
		return fmt.Errorf("engine.server must be \"elasticsearch\" or \"opensearch\", got %q", c.Engine.Server)
	}
	if _, err := dialect.Parse(c.Engine.Dialect); err != nil {
		return fmt.Errorf("engine.dialect: %w", err)
	}
	if c.Engine.DefaultIndex != "" && !db.IsValidIndexName(c.Engine.DefaultIndex) {
		return fmt.Errorf("engine.default_index: invalid index name %q", c.Engine.DefaultIndex)
	}
	for res, idx := range c.Engine.Indexes {
		if !db.IsValidIndexName(idx) {
			return fmt.Errorf("engine.indexes.%s: invalid index name %q", res, idx)
		}
	}
	if c.Pagination.DefaultPageSize > c.Pagination.MaxPageSize {
		return fmt.Errorf("pagination.default_page_size (%d) exceeds max_page_size (%d)",
			c.Pagination.DefaultPageSize, c.Pagination.MaxPageSize)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// SplitList flattens comma separated entries and drops blanks.
func SplitList(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseIndexes parses "resource=index,resource=index".
func ParseIndexes(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range SplitList(s) {
		res, idx, ok := strings.Cut(pair, "=")
		res, idx = strings.TrimSpace(res), strings.TrimSpace(idx)
		if !ok || res == "" || idx == "" {
			return nil, fmt.Errorf("invalid index pair %q, want resource=index", pair)
		}
		if _, dup := out[res]; dup {
			return nil, fmt.Errorf("duplicate index pair for %q", res)
		}
		out[res] = idx
	}
	return out, nil
}

// FormatIndexes is the inverse of ParseIndexes, sorted by resource.
func FormatIndexes(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+m[k])
	}
	return strings.Join(pairs, ",")
}

// findConfigPath locates the config file.
func findConfigPath(dir, env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if dir != "" {
		return filepath.Join(dir, filename)
	}

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
