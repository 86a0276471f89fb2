package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/domain"
	dombatch "github.com/kailas-cloud/eslayer/internal/domain/batch"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
	"github.com/kailas-cloud/eslayer/internal/domain/document/patch"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
	"github.com/kailas-cloud/eslayer/internal/metrics"
	"github.com/kailas-cloud/eslayer/internal/repository/index"
)

// store is the consumer interface for documents (ISP).
type store interface {
	GetDocument(ctx context.Context, ref db.DocRef) (db.Document, error)
	MultiGet(ctx context.Context, index, docType string, ids []string) ([]db.Document, error)
	IndexDocument(ctx context.Context, ref db.DocRef, body []byte, opts db.WriteOptions) (db.Meta, error)
	UpdateDocument(ctx context.Context, ref db.DocRef, body []byte, opts db.WriteOptions) (db.Meta, error)
	DeleteDocument(ctx context.Context, ref db.DocRef, opts db.WriteOptions) (db.Meta, error)
	DeleteByQuery(ctx context.Context, index, docType string, query []byte) (int, error)
	Bulk(ctx context.Context, index, docType string, items []db.BulkItem) ([]db.BulkResult, error)
	Refresh(ctx context.Context, index string) error
}

// itemDecoder turns fetched documents into framework items.
type itemDecoder interface {
	Document(def resource.Definition, doc db.Document) (result.Item, error)
}

// Repo implements usecase/document.Repository.
type Repo struct {
	store           store
	items           itemDecoder
	retryOnConflict int
	now             func() time.Time
}

// New creates a document repository. retryOnConflict applies to partial
// updates sent without an expected version.
func New(s store, items itemDecoder, retryOnConflict int) *Repo {
	return &Repo{store: s, items: items, retryOnConflict: retryOnConflict, now: time.Now}
}

// WithClock replaces the timestamp source.
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

// Insert stores a new document; an existing id fails with ErrAlreadyExists.
func (r *Repo) Insert(ctx context.Context, def resource.Definition, t index.Target, doc domdoc.Document) (domain.Version, error) {
	body, err := buildSource(doc.Fields(), t, r.now())
	if err != nil {
		return domain.Version{}, err
	}
	meta, err := r.store.IndexDocument(ctx, ref(t, doc.ID()), body, db.WriteOptions{Create: true})
	if err != nil {
		if errors.Is(err, db.ErrVersionConflict) {
			return domain.Version{}, fmt.Errorf("insert %s/%s: %w", def.Name(), doc.ID(), domain.ErrAlreadyExists)
		}
		return domain.Version{}, fmt.Errorf("insert %s/%s: %w", def.Name(), doc.ID(), engineErr(err))
	}
	return version(meta), nil
}

// Replace overwrites the whole source. With expected set the write only
// succeeds against that stored revision. The stored _created survives unless
// the new source carries its own; a document owned by another resource on a
// shared index is reported missing.
func (r *Repo) Replace(
	ctx context.Context, def resource.Definition, t index.Target, doc domdoc.Document, expected *domain.Version,
) (domain.Version, error) {
	cur, found, err := r.stored(ctx, def, t, doc.ID())
	if err != nil {
		return domain.Version{}, err
	}
	fields := doc.Fields()
	if found {
		fields = keepCreated(fields, cur)
	}
	body, err := buildSource(fields, t, r.now())
	if err != nil {
		return domain.Version{}, err
	}
	meta, err := r.store.IndexDocument(ctx, ref(t, doc.ID()), body, guard(expected))
	if err != nil {
		return domain.Version{}, r.writeErr(ctx, def, t, doc.ID(), "replace", err)
	}
	return version(meta), nil
}

// Update merges p into the stored source.
func (r *Repo) Update(
	ctx context.Context, def resource.Definition, t index.Target, id string, p patch.Patch, expected *domain.Version,
) (domain.Version, error) {
	if err := r.owned(ctx, def, t, id); err != nil {
		return domain.Version{}, err
	}
	body, err := buildPatch(p.Fields(), r.now())
	if err != nil {
		return domain.Version{}, err
	}
	opts := guard(expected)
	if !opts.HasVersionCheck() {
		opts.RetryOnConflict = r.retryOnConflict
	}
	meta, err := r.store.UpdateDocument(ctx, ref(t, id), body, opts)
	if err != nil {
		return domain.Version{}, r.writeErr(ctx, def, t, id, "update", err)
	}
	return version(meta), nil
}

// Delete removes one document.
func (r *Repo) Delete(ctx context.Context, def resource.Definition, t index.Target, id string, expected *domain.Version) error {
	if err := r.owned(ctx, def, t, id); err != nil {
		return err
	}
	if _, err := r.store.DeleteDocument(ctx, ref(t, id), guard(expected)); err != nil {
		return r.writeErr(ctx, def, t, id, "delete", err)
	}
	return nil
}

// Get fetches one document. On a shared index a document stamped for another
// resource is reported missing.
func (r *Repo) Get(ctx context.Context, def resource.Definition, t index.Target, id string) (result.Item, error) {
	doc, err := r.store.GetDocument(ctx, ref(t, id))
	if err != nil {
		if errors.Is(err, db.ErrDocumentNotFound) || errors.Is(err, db.ErrIndexNotFound) {
			return nil, &domain.NotFoundError{Resource: def.Name(), ID: id}
		}
		return nil, fmt.Errorf("get %s/%s: %w", def.Name(), id, engineErr(err))
	}
	if !belongs(doc, t) {
		return nil, &domain.NotFoundError{Resource: def.Name(), ID: id}
	}
	return r.items.Document(def, doc)
}

// GetMany fetches documents by id in one round trip, in request order.
// Missing ids are skipped.
func (r *Repo) GetMany(ctx context.Context, def resource.Definition, t index.Target, ids []string) ([]result.Item, error) {
	if len(ids) == 0 {
		return []result.Item{}, nil
	}
	docs, err := r.store.MultiGet(ctx, t.Index, t.Type, ids)
	if errors.Is(err, db.ErrIndexNotFound) {
		return []result.Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mget %s: %w", def.Name(), engineErr(err))
	}
	items := make([]result.Item, 0, len(docs))
	for _, d := range docs {
		if !d.Found || !belongs(d, t) {
			continue
		}
		item, err := r.items.Document(def, d)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// InsertMany writes docs in one bulk request. Items fail independently; a
// request-level failure fails every item and is returned as well.
func (r *Repo) InsertMany(ctx context.Context, def resource.Definition, t index.Target, docs []domdoc.Document) ([]dombatch.Result, error) {
	results := make([]dombatch.Result, len(docs))
	items := make([]db.BulkItem, 0, len(docs))
	pos := make([]int, 0, len(docs))
	now := r.now()
	for i, d := range docs {
		body, err := buildSource(d.Fields(), t, now)
		if err != nil {
			results[i] = dombatch.NewError(d.ID(), err)
			continue
		}
		items = append(items, db.BulkItem{ID: d.ID(), Body: body, Create: true})
		pos = append(pos, i)
	}
	if len(items) == 0 {
		return results, nil
	}

	out, err := r.store.Bulk(ctx, t.Index, t.Type, items)
	if err != nil {
		err = fmt.Errorf("bulk insert %s: %w", def.Name(), engineErr(err))
		for _, i := range pos {
			results[i] = dombatch.NewError(docs[i].ID(), err)
		}
		return results, err
	}
	for j, i := range pos {
		res := out[j]
		id := docs[i].ID()
		switch {
		case res.Err == nil:
			results[i] = dombatch.NewCreated(id, version(res.Meta))
		case errors.Is(res.Err, db.ErrVersionConflict):
			results[i] = dombatch.NewError(id, fmt.Errorf("insert %s/%s: %w", def.Name(), id, domain.ErrAlreadyExists))
		default:
			results[i] = dombatch.NewError(id, fmt.Errorf("insert %s/%s: %w", def.Name(), id, engineErr(res.Err)))
		}
	}
	return results, nil
}

// DeleteAll removes every document matched by query and returns the count.
func (r *Repo) DeleteAll(ctx context.Context, def resource.Definition, t index.Target, query []byte) (int, error) {
	n, err := r.store.DeleteByQuery(ctx, t.Index, t.Type, query)
	if err != nil {
		return 0, fmt.Errorf("delete all %s: %w", def.Name(), engineErr(err))
	}
	return n, nil
}

// Refresh makes recent writes to the target index searchable.
func (r *Repo) Refresh(ctx context.Context, t index.Target) error {
	if err := r.store.Refresh(ctx, t.Index); err != nil {
		return fmt.Errorf("refresh %s: %w", t.Index, engineErr(err))
	}
	return nil
}

// stored reads the document a write is about to replace. found is false when
// it does not exist yet. A document stamped for another resource on a shared
// index is a NotFoundError so it can never be overwritten through this one.
func (r *Repo) stored(ctx context.Context, def resource.Definition, t index.Target, id string) (db.Document, bool, error) {
	doc, err := r.store.GetDocument(ctx, ref(t, id))
	switch {
	case errors.Is(err, db.ErrDocumentNotFound), errors.Is(err, db.ErrIndexNotFound):
		return db.Document{}, false, nil
	case err != nil:
		return db.Document{}, false, fmt.Errorf("read %s/%s: %w", def.Name(), id, engineErr(err))
	case !doc.Found:
		return db.Document{}, false, nil
	case !belongs(doc, t):
		return db.Document{}, false, &domain.NotFoundError{Resource: def.Name(), ID: id}
	}
	return doc, true, nil
}

// owned guards updates and deletes on a shared index: the document must exist
// and carry this resource's discriminator. Dedicated indexes skip the read.
func (r *Repo) owned(ctx context.Context, def resource.Definition, t index.Target, id string) error {
	if t.Discriminator() == "" {
		return nil
	}
	_, found, err := r.stored(ctx, def, t, id)
	if err != nil {
		return err
	}
	if !found {
		return &domain.NotFoundError{Resource: def.Name(), ID: id}
	}
	return nil
}

// writeErr maps a failed guarded write. Conflicts re-read the stored version
// so callers can retry against it.
func (r *Repo) writeErr(ctx context.Context, def resource.Definition, t index.Target, id, op string, err error) error {
	switch {
	case errors.Is(err, db.ErrVersionConflict):
		metrics.VersionConflictsTotal.WithLabelValues(def.Name()).Inc()
		ce := &domain.ConflictError{Resource: def.Name(), ID: id}
		if cur, gerr := r.store.GetDocument(ctx, ref(t, id)); gerr == nil {
			v := version(cur.Meta)
			ce.Current = &v
		}
		return ce
	case errors.Is(err, db.ErrDocumentNotFound), errors.Is(err, db.ErrIndexNotFound):
		return &domain.NotFoundError{Resource: def.Name(), ID: id}
	default:
		return fmt.Errorf("%s %s/%s: %w", op, def.Name(), id, engineErr(err))
	}
}

func ref(t index.Target, id string) db.DocRef {
	return db.DocRef{Index: t.Index, Type: t.Type, ID: id}
}

func guard(expected *domain.Version) db.WriteOptions {
	if expected == nil {
		return db.WriteOptions{}
	}
	seq, term := expected.SeqNo, expected.PrimaryTerm
	return db.WriteOptions{IfSeqNo: &seq, IfPrimaryTerm: &term}
}

func version(m db.Meta) domain.Version {
	return domain.Version{SeqNo: m.SeqNo, PrimaryTerm: m.PrimaryTerm, Version: m.Version}
}

// belongs reports whether doc is visible through t.
func belongs(doc db.Document, t index.Target) bool {
	d := t.Discriminator()
	if d == "" {
		return true
	}
	return gjson.GetBytes(doc.Source, resource.FieldResource).String() == d
}

// engineErr lifts engine failures into domain errors.
func engineErr(err error) error {
	var dbErr *db.Error
	switch {
	case errors.Is(err, db.ErrUnavailable):
		op := ""
		if errors.As(err, &dbErr) {
			op = dbErr.Op
		}
		return &domain.BackendUnavailableError{Op: op, Err: err}
	case errors.Is(err, db.ErrBadRequest):
		return fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	default:
		return err
	}
}
