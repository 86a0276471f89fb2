// Package eslayer provides a Go client for storing REST resources in
// Elasticsearch or OpenSearch.
//
// Resources are declared once (schema, facets, datasource) and resolved to
// physical indexes. Several resources may share one index; their documents
// are then tagged and filtered transparently.
//
// # Low-level API
//
//	client, _ := eslayer.New(ctx,
//	    eslayer.WithURLs("http://localhost:9200"),
//	    eslayer.WithResourcesFile("config/resources.yaml"),
//	)
//	id, v, _ := client.Documents("contacts").Insert(ctx, eslayer.Fields{"name": "Ada"})
//	_, _ = client.Documents("contacts").Update(ctx, id, eslayer.Fields{"urgency": 9}, &v)
//	page, _ := client.Search("contacts").Query().Text("ada").Sort("-urgency").Do(ctx)
//
// # Typed API
//
//	type Contact struct {
//	    ID      string `json:"-" eslayer:"id"`
//	    Name    string `json:"name"`
//	    Urgency int    `json:"urgency"`
//	}
//
//	idx, _ := eslayer.NewIndex[Contact](client, "contacts")
//	_, _, _ = idx.Insert(ctx, Contact{Name: "Ada", Urgency: 7})
//	hits, total, _ := idx.Find(ctx, idx.Query().Where("urgency", 7))
package eslayer
