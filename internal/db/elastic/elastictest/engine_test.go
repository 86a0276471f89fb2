package elastictest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/db/elastic"
	"github.com/kailas-cloud/eslayer/internal/db/elastic/elastictest"
)

func newStore(t *testing.T) (*elastic.Store, *elastictest.Engine) {
	t.Helper()
	engine := elastictest.New()
	s, err := elastic.NewStore(elastic.Config{
		Addresses:  []string{"http://localhost:9200"},
		MaxRetries: -1,
		Transport:  engine,
	})
	require.NoError(t, err)
	return s, engine
}

func TestEngine_IndexLifecycle(t *testing.T) {
	ctx := context.Background()
	s, engine := newStore(t)

	require.NoError(t, s.CreateIndex(ctx, &db.IndexDefinition{
		Name:     "crm",
		Mappings: map[string]any{"properties": map[string]any{"name": map[string]any{"type": "text"}}},
	}))
	err := s.CreateIndex(ctx, &db.IndexDefinition{Name: "crm"})
	assert.ErrorIs(t, err, db.ErrIndexExists)

	ok, err := s.IndexExists(ctx, "crm")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, string(engine.Mapping("crm")), `"name"`)

	require.NoError(t, s.DropIndex(ctx, "crm"))
	ok, err = s.IndexExists(ctx, "crm")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, engine.IndexNames())
}

func TestEngine_OptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	ref := db.DocRef{Index: "crm", ID: "c1"}

	meta, err := s.IndexDocument(ctx, ref, []byte(`{"name":"Ada"}`), db.WriteOptions{Create: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), meta.Version)

	_, err = s.IndexDocument(ctx, ref, []byte(`{"name":"Ada"}`), db.WriteOptions{Create: true})
	assert.ErrorIs(t, err, db.ErrVersionConflict)

	stale := meta.SeqNo
	term := meta.PrimaryTerm
	_, err = s.UpdateDocument(ctx, ref, []byte(`{"urgency":3}`), db.WriteOptions{IfSeqNo: &stale, IfPrimaryTerm: &term})
	require.NoError(t, err)
	_, err = s.UpdateDocument(ctx, ref, []byte(`{"urgency":4}`), db.WriteOptions{IfSeqNo: &stale, IfPrimaryTerm: &term})
	assert.ErrorIs(t, err, db.ErrVersionConflict)

	doc, err := s.GetDocument(ctx, ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ada","urgency":3}`, string(doc.Source))
	assert.Equal(t, int64(2), doc.Version)

	_, err = s.GetDocument(ctx, db.DocRef{Index: "crm", ID: "missing"})
	assert.ErrorIs(t, err, db.ErrDocumentNotFound)
}

func TestEngine_SearchAndAggregate(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	results, err := s.Bulk(ctx, "crm", "", []db.BulkItem{
		{ID: "1", Body: []byte(`{"name":"Ada Lovelace","urgency":5,"tags":["math"]}`), Create: true},
		{ID: "2", Body: []byte(`{"name":"Alan Turing","urgency":9,"tags":["math","crypto"]}`), Create: true},
		{ID: "3", Body: []byte(`{"name":"Grace Hopper","urgency":2,"tags":["navy"]}`), Create: true},
		{ID: "1", Body: []byte(`{"name":"dup"}`), Create: true},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[3].Err, db.ErrVersionConflict)

	body := []byte(`{
		"query":{"bool":{"filter":[{"range":{"urgency":{"gte":3}}}]}},
		"sort":[{"urgency":{"order":"desc","unmapped_type":"long"}}],
		"size":10,"from":0,"track_total_hits":true,
		"aggs":{"tags":{"terms":{"field":"tags"}}}
	}`)
	raw, err := s.Search(ctx, &db.SearchRequest{Index: []string{"crm"}, Body: body})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total":{"relation":"eq","value":2}`)
	assert.Regexp(t, `"_id":"2".*"_id":"1"`, string(raw))
	assert.Contains(t, string(raw), `{"doc_count":2,"key":"math"}`)

	n, err := s.Count(ctx, &db.SearchRequest{Index: []string{"crm"},
		Body: []byte(`{"query":{"query_string":{"query":"hopper","default_field":"all"}}}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deleted, err := s.DeleteByQuery(ctx, "crm", "", []byte(`{"term":{"tags":"math"}}`))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = s.Search(ctx, &db.SearchRequest{Index: []string{"nope"}, Body: []byte(`{}`)})
	assert.ErrorIs(t, err, db.ErrIndexNotFound)
}

func TestEngine_Down(t *testing.T) {
	s, engine := newStore(t)
	engine.SetDown(true)
	err := s.Ping(context.Background())
	assert.ErrorIs(t, err, db.ErrUnavailable)
}
