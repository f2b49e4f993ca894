package catalog

import "fmt"

// LogicalDocument is the set of points sharing a (repo, title) key: one
// ingested document split into chunks.
type LogicalDocument struct {
	Title         string   `json:"title"`
	Repo          string   `json:"repo"`
	DocumentType  string   `json:"document_type"`
	Jurisdictions []string `json:"jurisdictions"`
	Topics        []string `json:"topics"`
	ChunkCount    int      `json:"chunks"`
}

type RepoSummary struct {
	Name        string `json:"name"`
	DocCount    int    `json:"doc_count"`
	TotalChunks int    `json:"total_chunks"`
}

// Catalog is one grouped snapshot of the point set. Truncated reports
// that the scan hit the page ceiling before the store ran out of pages.
type Catalog struct {
	Repos       []RepoSummary     `json:"repos"`
	Documents   []LogicalDocument `json:"documents"`
	TotalChunks int               `json:"total_chunks"`
	Truncated   bool              `json:"truncated"`
}

// UnavailableError reports that the listing was aborted because a page
// fetch failed. No partial catalog is ever returned.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("document catalog unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
