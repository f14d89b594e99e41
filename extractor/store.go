package extractor

import "context"

// Page records one fetch attempt during a crawl. ContentType and
// ErrorMessage are optional, an empty string means the column stays NULL.
type Page struct {
	DomainID     int64
	URL          string
	StatusCode   int
	ContentType  string
	ErrorMessage string
}

// Email is one extracted address bound for persistence. Normalized is the
// deduplication key within a domain.
type Email struct {
	DomainID   int64
	PageID     int64
	Raw        string
	Normalized string
}

// PendingDomain is a claimable domain row belonging to a search.
type PendingDomain struct {
	ID  int64
	URL string
}

// Store is the persistence surface the crawl engine drives. Implementations
// must be safe for concurrent use, domains of one search are crawled in
// parallel and each crawl issues its own calls.
type Store interface {
	MarkDomainCrawling(ctx context.Context, domainID int64, workerID string) error
	CompleteDomain(ctx context.Context, domainID int64, pagesCrawled, emailsFound int) error
	FailDomain(ctx context.Context, domainID int64, message string) error

	InsertPage(ctx context.Context, page *Page) (int64, error)
	InsertEmails(ctx context.Context, emails []Email) error

	StartSearch(ctx context.Context, searchID int64) error
	CompleteSearch(ctx context.Context, searchID int64) error
	FailSearch(ctx context.Context, searchID int64) error
	PendingDomains(ctx context.Context, searchID int64) ([]PendingDomain, error)
}
