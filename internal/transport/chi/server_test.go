package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/eslayer/internal/config"
	"github.com/kailas-cloud/eslayer/internal/domain"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	healthuc "github.com/kailas-cloud/eslayer/internal/usecase/health"
	resourcesuc "github.com/kailas-cloud/eslayer/internal/usecase/resources"
)

// --- Mocks ---

type mockManager struct {
	ensureErr error
	missing   []string
	ensured   []string
}

var testTargets = map[string]resource.Target{
	"contacts": {Resource: "contacts", Source: "contacts", Index: "crm", Shared: true},
	"invoices": {Resource: "invoices", Source: "invoices", Index: "crm", Shared: true},
}

func (m *mockManager) Resolve(name string) (resource.Target, error) {
	t, ok := testTargets[name]
	if !ok {
		return resource.Target{}, fmt.Errorf("resource %q: %w", name, domain.ErrNotFound)
	}
	return t, nil
}

func (m *mockManager) Targets() []resource.Target {
	return []resource.Target{testTargets["contacts"], testTargets["invoices"]}
}

func (m *mockManager) MappingJSON(name string) ([]byte, error) {
	if _, err := m.Resolve(name); err != nil {
		return nil, err
	}
	return []byte(`{"properties":{"name":{"type":"text"}}}`), nil
}

func (m *mockManager) EnsureIndex(_ context.Context, name string) error {
	if _, err := m.Resolve(name); err != nil {
		return err
	}
	m.ensured = append(m.ensured, name)
	return m.ensureErr
}

func (m *mockManager) InitIndexes(context.Context) error { return nil }
func (m *mockManager) PutMapping(context.Context, string) error { return nil }
func (m *mockManager) PutSettings(context.Context, string) error { return nil }
func (m *mockManager) DropIndex(context.Context, string) error { return nil }
func (m *mockManager) MissingIndexes(context.Context) ([]string, error) { return m.missing, nil }

type mockPinger struct{ err error }

func (p mockPinger) Ping(context.Context) error { return p.err }

func newTestRouter(m *mockManager, ping error, apiKeys ...string) http.Handler {
	srv := NewServer(resourcesuc.New(m, nil), healthuc.New(mockPinger{err: ping}, m), nil)
	return NewRouter(srv, config.AuthConfig{APIKeys: apiKeys}, nil)
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, http.NoBody))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Resources ---

func TestListResources(t *testing.T) {
	rr := do(t, newTestRouter(&mockManager{}, nil), "GET", "/v1/resources")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Items []TargetResponse `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Items) != 2 || body.Items[0].Resource != "contacts" || !body.Items[0].Shared {
		t.Errorf("items = %+v", body.Items)
	}
}

func TestGetResource(t *testing.T) {
	h := newTestRouter(&mockManager{}, nil)

	rr := do(t, h, "GET", "/v1/resources/contacts")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got TargetResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Index != "crm" {
		t.Errorf("Index = %q", got.Index)
	}

	rr = do(t, h, "GET", "/v1/resources/nope")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown resource: status = %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeNotFound {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestResourceNameParam(t *testing.T) {
	m := &mockManager{}
	h := newTestRouter(m, nil)
	call := func(method, raw string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/v1/resources/placeholder", http.NoBody)
		req.URL.RawPath = raw
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := call("GET", "/v1/resources/con%74acts")
	if rr.Code != http.StatusOK {
		t.Fatalf("escaped name: status = %d", rr.Code)
	}
	var got TargetResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Resource != "contacts" {
		t.Errorf("Resource = %q", got.Resource)
	}

	for _, raw := range []string{"/v1/resources/%zz", "/v1/resources/%zz/mapping"} {
		rr := call("GET", raw)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", raw, rr.Code)
		}
		if resp := decodeError(t, rr); resp.Code != CodeBadRequest {
			t.Errorf("%s: code = %q", raw, resp.Code)
		}
	}

	if rr := call("POST", "/v1/resources/%zz/index"); rr.Code != http.StatusBadRequest {
		t.Fatalf("ensure: status = %d, want 400", rr.Code)
	}
	if len(m.ensured) != 0 {
		t.Errorf("malformed name reached the manager: %v", m.ensured)
	}
}

func TestGetMapping(t *testing.T) {
	rr := do(t, newTestRouter(&mockManager{}, nil), "GET", "/v1/resources/contacts/mapping")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"properties":{"name":{"type":"text"}}}` {
		t.Errorf("body = %s", got)
	}
}

func TestEnsureIndex(t *testing.T) {
	m := &mockManager{}
	rr := do(t, newTestRouter(m, nil), "POST", "/v1/resources/invoices/index")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(m.ensured) != 1 || m.ensured[0] != "invoices" {
		t.Errorf("ensured = %v", m.ensured)
	}
}

func TestEnsureIndex_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "provisioning",
			err:    &domain.IndexProvisioningError{Resource: "contacts", Index: "crm", Err: errors.New("mapper_parsing_exception")},
			status: http.StatusBadGateway,
			code:   CodeProvisioningFailed,
		},
		{
			name: "provisioning while engine is down",
			err: &domain.IndexProvisioningError{Resource: "contacts", Index: "crm",
				Err: &domain.BackendUnavailableError{Op: "index_exists", Err: errors.New("refused")}},
			status: http.StatusServiceUnavailable,
			code:   CodeBackendUnavailable,
		},
		{
			name:   "unexpected",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   CodeInternalError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, newTestRouter(&mockManager{ensureErr: tt.err}, nil), "POST", "/v1/resources/contacts/index")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			resp := decodeError(t, rr)
			if resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
			if strings.Contains(resp.Message, "mapper_parsing_exception") || strings.Contains(resp.Message, "boom") {
				t.Errorf("message leaks internals: %q", resp.Message)
			}
		})
	}
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		ping    error
		missing []string
		status  int
		want    string
	}{
		{"healthy", nil, nil, http.StatusOK, "ok"},
		{"missing indexes", nil, []string{"crm"}, http.StatusOK, "degraded"},
		{"engine down", errors.New("refused"), nil, http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, newTestRouter(&mockManager{missing: tt.missing}, tt.ping), "GET", "/healthz")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.want {
				t.Errorf("Status = %q, want %q", resp.Status, tt.want)
			}
			if len(resp.Missing) != len(tt.missing) {
				t.Errorf("Missing = %v", resp.Missing)
			}
		})
	}
}

// --- Router ---

func TestRouter_AuthAndExemptions(t *testing.T) {
	h := newTestRouter(&mockManager{}, nil, "secret")

	if rr := do(t, h, "GET", "/v1/resources"); rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rr.Code)
	}
	if rr := do(t, h, "GET", "/healthz"); rr.Code != http.StatusOK {
		t.Errorf("healthz must bypass auth: status = %d", rr.Code)
	}

	req := httptest.NewRequest("GET", "/v1/resources", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("valid token: status = %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestRouter_ReadKeyCannotProvision(t *testing.T) {
	m := &mockManager{}
	srv := NewServer(resourcesuc.New(m, nil), healthuc.New(mockPinger{}, m), nil)
	h := NewRouter(srv, config.AuthConfig{APIKeys: []string{"root"}, ReadKeys: []string{"viewer"}}, nil)

	call := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, http.NoBody)
		req.Header.Set("Authorization", "Bearer viewer")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	if rr := call("GET", "/v1/resources/contacts"); rr.Code != http.StatusOK {
		t.Errorf("read: status = %d", rr.Code)
	}
	rr := call("POST", "/v1/resources/contacts/index")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("provision: status = %d, want 403", rr.Code)
	}
	if len(m.ensured) != 0 {
		t.Errorf("ensure reached the manager: %v", m.ensured)
	}
	if resp := decodeError(t, rr); resp.Code != CodeForbidden {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestRouter_MatchesOpenAPI(t *testing.T) {
	raw, err := os.ReadFile("../../../api/openapi.yaml")
	if err != nil {
		t.Fatalf("read openapi.yaml: %v", err)
	}
	var doc struct {
		Paths map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("parse openapi.yaml: %v", err)
	}
	var documented []string
	for path, item := range doc.Paths {
		for method := range item {
			if method != "parameters" {
				documented = append(documented, strings.ToUpper(method)+" "+path)
			}
		}
	}

	var mounted []string
	m := &mockManager{}
	router := NewRouter(NewServer(resourcesuc.New(m, nil), healthuc.New(mockPinger{}, m), nil), config.AuthConfig{}, nil)
	err = chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route != "/" {
			route = strings.TrimSuffix(route, "/")
		}
		mounted = append(mounted, method+" "+route)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}

	sort.Strings(documented)
	sort.Strings(mounted)
	if strings.Join(documented, "\n") != strings.Join(mounted, "\n") {
		t.Errorf("routes drift from openapi.yaml:\n documented %v\n mounted    %v", documented, mounted)
	}
}

func TestRouter_NotFound(t *testing.T) {
	rr := do(t, newTestRouter(&mockManager{}, nil), "GET", "/v2/unknown")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeNotFound {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rr := do(t, h, "GET", "/")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeInternalError {
		t.Errorf("code = %q", resp.Code)
	}
}
