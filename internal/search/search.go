package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultDocument   ResultType = "document"
	ResultDiscussion ResultType = "discussion"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type         ResultType `json:"type"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Snippet      string     `json:"snippet"`
	DocumentID   string     `json:"documentId"`
	DocumentType string     `json:"documentType,omitempty"`
}

// Query describes a search request. UserID scopes results to documents the
// caller may read.
type Query struct {
	Text          string
	FilterType    ResultType // empty = all types
	FilterDocType string     // assignment, paper, notes
	UserID        string
	Limit         int
	Offset        int
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

// DocumentRecord is the data we index for a document. AllowedUserIDs carries
// the owner plus everyone with an access grant, so the index can enforce the
// same visibility as the database.
type DocumentRecord struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	DocumentType   string   `json:"documentType"`
	AccessMode     string   `json:"accessMode"`
	OwnerID        string   `json:"ownerId"`
	Tags           []string `json:"tags"`
	AllowedUserIDs []string `json:"allowedUserIds"`
}

// DiscussionRecord is the data we index for a discussion comment. The access
// fields are denormalized from the parent document and must be refreshed
// whenever the document's visibility changes, so the discussions index
// enforces the same read scope as the documents index.
type DiscussionRecord struct {
	ID             string   `json:"id"`
	Content        string   `json:"content"`
	AuthorName     string   `json:"authorName"`
	DocumentID     string   `json:"documentId"`
	AccessMode     string   `json:"accessMode"`
	OwnerID        string   `json:"ownerId"`
	AllowedUserIDs []string `json:"allowedUserIds"`
}
