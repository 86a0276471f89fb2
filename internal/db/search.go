package db

// SearchRequest is a compiled engine query addressed to one or more indexes.
type SearchRequest struct {
	Index []string
	// Type is set only for engines that still address documents by mapping type.
	Type string
	Body []byte
}
