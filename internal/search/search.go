package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	Family     string `json:"family"`
	Kind       string `json:"kind,omitempty"`
	TenantID   int64  `json:"tenantId"`
	AccessType string `json:"accessType,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterFamily   string // empty = all families
	FilterTenantID int64  // 0 = all tenants
	Limit          int
	Offset         int
	PublicOnly     bool
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push content into a search index.
type Indexer interface {
	IndexContent(rec ContentRecord) error
	DeleteContent(id string) error
}

// ContentRecord is the data we index for a content node.
type ContentRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Family     string `json:"family"`
	Kind       string `json:"kind"`
	TenantID   int64  `json:"tenantId"`
	AccessType string `json:"accessType"`
}
