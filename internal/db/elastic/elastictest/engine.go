// Package elastictest provides an in-memory engine that answers the subset of
// the Elasticsearch REST API used by eslayer. It plugs into the client as an
// http.RoundTripper, so the real store, compiler and translator run against it.
package elastictest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const infoBody = `{"name":"node-1","cluster_name":"elastictest","version":{"number":"7.17.0","build_flavor":"default"},"tagline":"You Know, for Search"}`

// Request is a recorded engine request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
}

// Engine is an in-memory engine. The zero value is not usable; call New.
type Engine struct {
	mu       sync.Mutex
	indexes  map[string]*index
	aliases  map[string]string
	requests []Request
	down     bool
}

type index struct {
	name     string
	mappings json.RawMessage
	settings json.RawMessage
	closed   bool
	seqNo    int64
	docs     map[string]*storedDoc
	order    []string
}

type storedDoc struct {
	id      string
	source  map[string]any
	version int64
	seqNo   int64
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{indexes: make(map[string]*index), aliases: make(map[string]string)}
}

// SetDown makes every request fail at the transport level.
func (e *Engine) SetDown(down bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.down = down
}

// Requests returns the recorded requests, excluding cluster info calls.
func (e *Engine) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Request(nil), e.requests...)
}

// IndexNames returns the existing indexes in sorted order.
func (e *Engine) IndexNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.indexes))
	for n := range e.indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Aliases returns the aliases pointing at an index in sorted order.
func (e *Engine) Aliases(indexName string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var names []string
	for a, target := range e.aliases {
		if target == indexName {
			names = append(names, a)
		}
	}
	sort.Strings(names)
	return names
}

// Mapping returns the mappings an index was created or last updated with.
func (e *Engine) Mapping(name string) json.RawMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx := e.lookup(name); idx != nil {
		return idx.mappings
	}
	return nil
}

// Source returns a stored document source, or nil.
func (e *Engine) Source(indexName, id string) map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.lookup(indexName)
	if idx == nil {
		return nil
	}
	if d, ok := idx.docs[id]; ok {
		return d.source
	}
	return nil
}

// RoundTrip implements http.RoundTripper.
func (e *Engine) RoundTrip(req *http.Request) (*http.Response, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.down {
		return nil, errors.New("dial tcp 127.0.0.1:9200: connect: connection refused")
	}
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	if req.URL.Path == "/" || req.URL.Path == "" {
		return reply(req, http.StatusOK, infoBody), nil
	}
	e.requests = append(e.requests, Request{
		Method: req.Method, Path: req.URL.Path, Query: req.URL.Query(), Body: string(body),
	})

	status, resp := e.serve(req.Method, req.URL.Path, req.URL.Query(), body)
	if req.Method == http.MethodHead {
		resp = nil
	}
	return reply(req, status, resp), nil
}

func reply(req *http.Request, status int, body any) *http.Response {
	var raw []byte
	switch b := body.(type) {
	case nil:
	case string:
		raw = []byte(b)
	case []byte:
		raw = b
	default:
		raw, _ = json.Marshal(b)
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header: http.Header{
			"X-Elastic-Product": []string{"Elasticsearch"},
			"Content-Type":      []string{"application/json"},
		},
		Body:          io.NopCloser(bytes.NewReader(raw)),
		ContentLength: int64(len(raw)),
		Request:       req,
	}
}

func engineError(status int, errType, reason string) (int, any) {
	return status, map[string]any{
		"error":  map[string]any{"type": errType, "reason": reason},
		"status": status,
	}
}

func indexNotFound(name string) (int, any) {
	return engineError(http.StatusNotFound, "index_not_found_exception", "no such index ["+name+"]")
}

var endpoints = map[string]bool{
	"_mapping": true, "_settings": true, "_search": true, "_count": true, "_mget": true,
	"_bulk": true, "_delete_by_query": true, "_refresh": true, "_close": true, "_open": true, "_update": true,
}

// serve routes a request by its path segments:
// /{index}, /{index}/{endpoint}, /{index}/{type}/{endpoint}, /{index}/{type}/{id}.
func (e *Engine) serve(method, path string, q url.Values, body []byte) (int, any) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	names := strings.Split(segs[0], ",")
	rest := segs[1:]

	endpoint := ""
	for i, s := range rest {
		if endpoints[s] {
			endpoint = s
			if s == "_update" {
				// Typeless: /{index}/_update/{id}; typed: /{index}/{type}/{id}/_update.
				if i+1 < len(rest) {
					return e.update(names[0], rest[i+1], q, body)
				}
				return e.update(names[0], rest[i-1], q, body)
			}
			break
		}
	}

	switch endpoint {
	case "_search":
		return e.search(names, body)
	case "_count":
		return e.count(names, body)
	case "_mget":
		return e.mget(names[0], body)
	case "_bulk":
		return e.bulk(names[0], body)
	case "_delete_by_query":
		return e.deleteByQuery(names[0], body)
	case "_refresh":
		return e.withIndex(names[0], func(*index) (int, any) {
			return http.StatusOK, map[string]any{"_shards": map[string]any{"total": 1, "successful": 1, "failed": 0}}
		})
	case "_close", "_open":
		return e.withIndex(names[0], func(idx *index) (int, any) {
			idx.closed = endpoint == "_close"
			return http.StatusOK, map[string]any{"acknowledged": true}
		})
	case "_mapping":
		return e.withIndex(names[0], func(idx *index) (int, any) {
			if method == http.MethodGet {
				return http.StatusOK, map[string]any{idx.name: map[string]any{"mappings": idx.mappings}}
			}
			idx.mappings = mergeRaw(idx.mappings, body)
			return http.StatusOK, map[string]any{"acknowledged": true}
		})
	case "_settings":
		return e.withIndex(names[0], func(idx *index) (int, any) {
			if method == http.MethodGet {
				return http.StatusOK, map[string]any{idx.name: map[string]any{"settings": idx.settings}}
			}
			if !idx.closed && bytes.Contains(body, []byte(`"analysis"`)) {
				return engineError(http.StatusBadRequest, "illegal_argument_exception",
					"Can't update non dynamic settings for open indices")
			}
			idx.settings = mergeRaw(idx.settings, body)
			return http.StatusOK, map[string]any{"acknowledged": true}
		})
	}

	switch len(rest) {
	case 0:
		return e.indexOp(method, names[0], body)
	case 1:
		if method == http.MethodPost {
			return e.write(names[0], "", q, body)
		}
	case 2:
		switch method {
		case http.MethodGet:
			return e.get(names[0], rest[1])
		case http.MethodPut, http.MethodPost:
			return e.write(names[0], rest[1], q, body)
		case http.MethodDelete:
			return e.delete(names[0], rest[1], q)
		}
	}
	return engineError(http.StatusBadRequest, "illegal_argument_exception", "unsupported request "+method+" "+path)
}

func (e *Engine) lookup(name string) *index {
	if target, ok := e.aliases[name]; ok {
		name = target
	}
	return e.indexes[name]
}

func (e *Engine) withIndex(name string, fn func(*index) (int, any)) (int, any) {
	idx := e.lookup(name)
	if idx == nil {
		return indexNotFound(name)
	}
	return fn(idx)
}

// --- Indexes ---

func (e *Engine) indexOp(method, name string, body []byte) (int, any) {
	switch method {
	case http.MethodHead:
		if e.lookup(name) == nil {
			return http.StatusNotFound, nil
		}
		return http.StatusOK, nil
	case http.MethodDelete:
		idx := e.lookup(name)
		if idx == nil {
			return indexNotFound(name)
		}
		delete(e.indexes, idx.name)
		for a, target := range e.aliases {
			if target == idx.name {
				delete(e.aliases, a)
			}
		}
		return http.StatusOK, map[string]any{"acknowledged": true}
	case http.MethodPut:
		if e.lookup(name) != nil {
			return engineError(http.StatusBadRequest, "resource_already_exists_exception",
				"index ["+name+"] already exists")
		}
		var def struct {
			Settings json.RawMessage           `json:"settings"`
			Mappings json.RawMessage           `json:"mappings"`
			Aliases  map[string]map[string]any `json:"aliases"`
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &def); err != nil {
				return engineError(http.StatusBadRequest, "parse_exception", err.Error())
			}
		}
		idx := e.create(name)
		idx.settings = def.Settings
		idx.mappings = def.Mappings
		for a := range def.Aliases {
			e.aliases[a] = name
		}
		return http.StatusOK, map[string]any{"acknowledged": true, "index": name}
	}
	return engineError(http.StatusMethodNotAllowed, "illegal_argument_exception", "unsupported method "+method)
}

func (e *Engine) create(name string) *index {
	idx := &index{name: name, docs: make(map[string]*storedDoc)}
	e.indexes[name] = idx
	return idx
}

// writable returns the index for a document write, creating it the way the
// engine auto-creates indexes on first write.
func (e *Engine) writable(name string) (*index, error) {
	idx := e.lookup(name)
	if idx == nil {
		idx = e.create(name)
	}
	if idx.closed {
		return nil, errors.New("index_closed_exception")
	}
	return idx, nil
}

func mergeRaw(base json.RawMessage, patch []byte) json.RawMessage {
	var a, b map[string]any
	_ = json.Unmarshal(base, &a)
	if err := json.Unmarshal(patch, &b); err != nil {
		return base
	}
	if a == nil {
		a = map[string]any{}
	}
	deepMerge(a, b)
	out, _ := json.Marshal(a)
	return out
}

func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				deepMerge(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
}

// --- Documents ---

func (idx *index) meta(d *storedDoc, result string) map[string]any {
	return map[string]any{
		"_index":        idx.name,
		"_type":         "_doc",
		"_id":           d.id,
		"_version":      d.version,
		"_seq_no":       d.seqNo,
		"_primary_term": 1,
		"result":        result,
	}
}

func (idx *index) hit(d *storedDoc) map[string]any {
	m := idx.meta(d, "")
	delete(m, "result")
	m["found"] = true
	m["_source"] = d.source
	return m
}

func versionConflict(id string, q url.Values, current int64) (int, any) {
	return engineError(http.StatusConflict, "version_conflict_engine_exception",
		fmt.Sprintf("[%s]: version conflict, required seqNo [%s], current document has seqNo [%d]", id, q.Get("if_seq_no"), current))
}

// checkGuard enforces if_seq_no/if_primary_term against d, which may be nil.
func checkGuard(id string, d *storedDoc, q url.Values) (int, any, bool) {
	raw := q.Get("if_seq_no")
	if raw == "" {
		return 0, nil, true
	}
	want, _ := strconv.ParseInt(raw, 10, 64)
	term := q.Get("if_primary_term")
	if d == nil {
		status, body := engineError(http.StatusConflict, "version_conflict_engine_exception",
			"["+id+"]: version conflict, document does not exist")
		return status, body, false
	}
	if d.seqNo != want || (term != "" && term != "1") {
		status, body := versionConflict(id, q, d.seqNo)
		return status, body, false
	}
	return 0, nil, true
}

func (e *Engine) write(name, id string, q url.Values, body []byte) (int, any) {
	idx, err := e.writable(name)
	if err != nil {
		return engineError(http.StatusBadRequest, "index_closed_exception", "closed")
	}
	src, err := decodeSource(body)
	if err != nil {
		return engineError(http.StatusBadRequest, "mapper_parsing_exception", "failed to parse: "+err.Error())
	}
	if id == "" {
		id = fmt.Sprintf("auto-%d", idx.seqNo+1)
	}
	return idx.put(id, src, q.Get("op_type") == "create", q)
}

func (idx *index) put(id string, src map[string]any, create bool, q url.Values) (int, any) {
	existing := idx.docs[id]
	if create && existing != nil {
		return engineError(http.StatusConflict, "version_conflict_engine_exception",
			"["+id+"]: version conflict, document already exists (current version ["+strconv.FormatInt(existing.version, 10)+"])")
	}
	if status, body, ok := checkGuard(id, existing, q); !ok {
		return status, body
	}

	idx.seqNo++
	if existing == nil {
		d := &storedDoc{id: id, source: src, version: 1, seqNo: idx.seqNo}
		idx.docs[id] = d
		idx.order = append(idx.order, id)
		return http.StatusCreated, idx.meta(d, "created")
	}
	existing.source = src
	existing.version++
	existing.seqNo = idx.seqNo
	return http.StatusOK, idx.meta(existing, "updated")
}

func (e *Engine) update(name, id string, q url.Values, body []byte) (int, any) {
	idx := e.lookup(name)
	if idx == nil {
		return indexNotFound(name)
	}
	d := idx.docs[id]
	if d == nil {
		return engineError(http.StatusNotFound, "document_missing_exception", "["+id+"]: document missing")
	}
	if status, resp, ok := checkGuard(id, d, q); !ok {
		return status, resp
	}
	var req struct {
		Doc map[string]any `json:"doc"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return engineError(http.StatusBadRequest, "x_content_parse_exception", err.Error())
	}
	merged := cloneMap(d.source)
	deepMerge(merged, req.Doc)
	idx.seqNo++
	d.source = merged
	d.version++
	d.seqNo = idx.seqNo
	return http.StatusOK, idx.meta(d, "updated")
}

func (e *Engine) get(name, id string) (int, any) {
	idx := e.lookup(name)
	if idx == nil {
		return indexNotFound(name)
	}
	d := idx.docs[id]
	if d == nil {
		return http.StatusNotFound, map[string]any{"_index": idx.name, "_type": "_doc", "_id": id, "found": false}
	}
	return http.StatusOK, idx.hit(d)
}

func (e *Engine) delete(name, id string, q url.Values) (int, any) {
	idx := e.lookup(name)
	if idx == nil {
		return indexNotFound(name)
	}
	d := idx.docs[id]
	if status, resp, ok := checkGuard(id, d, q); !ok {
		return status, resp
	}
	if d == nil {
		return http.StatusNotFound, map[string]any{"_index": idx.name, "_id": id, "result": "not_found"}
	}
	idx.remove(id)
	idx.seqNo++
	d.version++
	d.seqNo = idx.seqNo
	return http.StatusOK, idx.meta(d, "deleted")
}

func (idx *index) remove(id string) {
	delete(idx.docs, id)
	for i, o := range idx.order {
		if o == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
}

func (e *Engine) mget(name string, body []byte) (int, any) {
	idx := e.lookup(name)
	if idx == nil {
		return indexNotFound(name)
	}
	var req struct {
		IDs  []string `json:"ids"`
		Docs []struct {
			ID string `json:"_id"`
		} `json:"docs"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return engineError(http.StatusBadRequest, "parse_exception", err.Error())
	}
	ids := req.IDs
	for _, d := range req.Docs {
		ids = append(ids, d.ID)
	}
	docs := make([]any, 0, len(ids))
	for _, id := range ids {
		if d := idx.docs[id]; d != nil {
			docs = append(docs, idx.hit(d))
		} else {
			docs = append(docs, map[string]any{"_index": idx.name, "_type": "_doc", "_id": id, "found": false})
		}
	}
	return http.StatusOK, map[string]any{"docs": docs}
}

func (e *Engine) bulk(name string, body []byte) (int, any) {
	idx, err := e.writable(name)
	if err != nil {
		return engineError(http.StatusBadRequest, "index_closed_exception", "closed")
	}
	lines := bytes.Split(bytes.TrimSpace(body), []byte("\n"))
	var items []any
	hasErrors := false
	for i := 0; i < len(lines); i++ {
		var action map[string]struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(lines[i], &action); err != nil || len(action) != 1 {
			return engineError(http.StatusBadRequest, "illegal_argument_exception", "malformed action/metadata line ["+strconv.Itoa(i+1)+"]")
		}
		for op, m := range action {
			id := m.ID
			var status int
			var resp any
			switch op {
			case "delete":
				status, resp = e.delete(idx.name, id, nil)
			case "index", "create", "update":
				i++
				if i >= len(lines) {
					return engineError(http.StatusBadRequest, "illegal_argument_exception", "missing source line")
				}
				if op == "update" {
					status, resp = e.update(idx.name, id, nil, lines[i])
					break
				}
				src, err := decodeSource(lines[i])
				if err != nil {
					status, resp = engineError(http.StatusBadRequest, "mapper_parsing_exception", "failed to parse: "+err.Error())
					break
				}
				if id == "" {
					id = fmt.Sprintf("auto-%d", idx.seqNo+1)
				}
				status, resp = idx.put(id, src, op == "create", nil)
			default:
				return engineError(http.StatusBadRequest, "illegal_argument_exception", "unknown action ["+op+"]")
			}
			item, _ := resp.(map[string]any)
			if status >= 300 {
				hasErrors = true
				item = map[string]any{"_index": idx.name, "_id": id, "status": status, "error": item["error"]}
			} else {
				item["status"] = status
			}
			items = append(items, map[string]any{op: item})
		}
	}
	return http.StatusOK, map[string]any{"took": 1, "errors": hasErrors, "items": items}
}

func (e *Engine) deleteByQuery(name string, body []byte) (int, any) {
	idx := e.lookup(name)
	if idx == nil {
		return indexNotFound(name)
	}
	var req struct {
		Query map[string]any `json:"query"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return engineError(http.StatusBadRequest, "parse_exception", err.Error())
	}
	var doomed []string
	for _, id := range idx.order {
		if matches(req.Query, idx.docs[id].source) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		idx.remove(id)
	}
	idx.seqNo += int64(len(doomed))
	return http.StatusOK, map[string]any{"deleted": len(doomed), "total": len(doomed), "failures": []any{}}
}

func decodeSource(body []byte) (map[string]any, error) {
	var src map[string]any
	if err := json.Unmarshal(body, &src); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.New("source is not an object")
	}
	return src, nil
}

func cloneMap(m map[string]any) map[string]any {
	raw, _ := json.Marshal(m)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}
