package elastic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"go.uber.org/zap"

	"github.com/kailas-cloud/eslayer/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// ServerType selects the engine flavour the client talks to.
type ServerType int

// Supported server types.
const (
	Undefined     ServerType = 0
	OpenSearch    ServerType = 1
	ElasticSearch ServerType = 2
)

// ParseServerType parses a configured server name. Empty means Elasticsearch.
func ParseServerType(s string) (ServerType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "elasticsearch", "elastic", "es":
		return ElasticSearch, nil
	case "opensearch":
		return OpenSearch, nil
	default:
		return Undefined, fmt.Errorf("unknown server type %q", s)
	}
}

func (t ServerType) String() string {
	switch t {
	case OpenSearch:
		return "opensearch"
	case ElasticSearch:
		return "elasticsearch"
	default:
		return "undefined"
	}
}

// Config holds connection parameters for an engine store.
type Config struct {
	Addresses  []string
	Username   string
	Password   string
	CACert     []byte
	ServerType ServerType
	// MaxRetries is passed to the client transport; negative disables retries.
	MaxRetries     int
	RequestTimeout time.Duration
	// Transport replaces the default HTTP transport (tests).
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Store implements db.Store via go-elasticsearch.
type Store struct {
	client  *elasticsearch.Client
	timeout time.Duration
}

// NewStore creates an engine store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("addresses is required")
	}
	if cfg.ServerType == Undefined {
		cfg.ServerType = ElasticSearch
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	esCfg := elasticsearch.Config{
		Addresses:            cfg.Addresses,
		Username:             cfg.Username,
		Password:             cfg.Password,
		CACert:               cfg.CACert,
		Transport:            cfg.Transport,
		RetryOnStatus:        []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests},
		UseResponseCheckOnly: cfg.ServerType == OpenSearch,
		Logger:               &eslogger{logger: logger.Named("engine")},
	}
	if cfg.MaxRetries < 0 {
		esCfg.DisableRetry = true
	} else {
		esCfg.MaxRetries = cfg.MaxRetries
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	if cfg.ServerType != ElasticSearch {
		if err := setProductCheckSuccess(client); err != nil {
			return nil, fmt.Errorf("failed to set 'productCheckSuccess' field: %w", err)
		}
	}

	return &Store{client: client, timeout: cfg.RequestTimeout}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.perform(ctx, db.OpInfo, esapi.InfoRequest{}); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady retries Ping with exponential backoff until the engine responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = timeout

	if err := backoff.Retry(func() error {
		return s.Ping(ctx)
	}, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("timeout waiting for engine: %w", err)
	}
	return nil
}

// setProductCheckSuccess marks the client's product check as passed so
// that engines which do not identify as Elasticsearch are accepted.
func setProductCheckSuccess(client *elasticsearch.Client) error {
	value := reflect.ValueOf(&client)
	elem := value.Elem()
	field := reflect.Indirect(elem).FieldByName("productCheckSuccess")
	if !field.IsValid() {
		return errors.New("unable to find field 'productCheckSuccess' in elastic client")
	}
	allowedPrivateField := reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem()
	allowedPrivateField.SetBool(true)
	return nil
}

type request interface {
	Do(ctx context.Context, transport esapi.Transport) (*esapi.Response, error)
}

type response struct {
	status int
	body   []byte
}

// perform executes req and reads the whole body. Engine error responses are
// classified into db sentinels; the body is still returned for inspection.
func (s *Store) perform(ctx context.Context, op string, req request) (response, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return response{}, &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrUnavailable, err)}
	}

	var body []byte
	if res.Body != nil {
		defer res.Body.Close()
		body, err = io.ReadAll(res.Body)
		if err != nil {
			return response{}, &db.Error{Op: op, Err: fmt.Errorf("%w: read body: %w", db.ErrUnavailable, err)}
		}
	}

	out := response{status: res.StatusCode, body: body}
	if res.IsError() {
		return out, classify(op, res.StatusCode, body)
	}
	return out, nil
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}
