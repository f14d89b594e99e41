package web

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusPaused     = "paused"
	StatusCancelled  = "cancelled"
)

const maxDomainsPerSearch = 10000

var (
	// ErrNotFound means the referenced search or domain does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidStatus means the search exists but is not in a status the
	// requested transition accepts.
	ErrInvalidStatus = errors.New("invalid status for operation")
)

type SelectParams struct {
	Status string
	Limit  int
	Offset int
}

type Repository interface {
	CreateSearch(ctx context.Context, batchName string, domains []string) (Search, error)
	GetSearch(ctx context.Context, id int64) (Search, error)
	SelectSearches(ctx context.Context, params SelectParams) ([]Search, error)
	SearchStatistics(ctx context.Context, id int64) (Statistics, error)
	SelectDomains(ctx context.Context, searchID int64, params SelectParams) ([]Domain, error)
	SelectSearchEmails(ctx context.Context, searchID int64, params SelectParams) ([]Email, error)
	SelectDomainEmails(ctx context.Context, domainID int64) ([]Email, error)
	PauseSearch(ctx context.Context, id int64) error
	ResumeSearch(ctx context.Context, id int64) error
	CancelSearch(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// Search is one submitted batch of domains.
type Search struct {
	ID           int64      `json:"search_id"`
	BatchName    *string    `json:"batch_name"`
	TotalDomains int        `json:"total_domains"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// Domain is the per-domain progress row of a search.
type Domain struct {
	ID           int64     `json:"domain_id"`
	Domain       string    `json:"domain"`
	Status       string    `json:"status"`
	PagesCrawled int       `json:"pages_crawled"`
	EmailsFound  int       `json:"emails_found"`
	ErrorMessage *string   `json:"error_message"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Email is an extracted address joined with its domain and source page.
type Email struct {
	ID          int64     `json:"email_id"`
	Domain      string    `json:"domain"`
	PageURL     string    `json:"page_url"`
	RawEmail    string    `json:"raw_email"`
	Normalized  string    `json:"normalized_email"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// CsvHeaders and CsvRow let an Email serve as a CSV export row.
func (e *Email) CsvHeaders() []string {
	return []string{"email_id", "domain", "page_url", "raw_email", "normalized_email", "extracted_at"}
}

func (e *Email) CsvRow() []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.Domain,
		e.PageURL,
		e.RawEmail,
		e.Normalized,
		e.ExtractedAt.Format(time.RFC3339),
	}
}

// Statistics aggregates a search's progress. DurationSeconds is nil until
// the search has started.
type Statistics struct {
	SearchID          int64  `json:"search_id"`
	TotalDomains      int    `json:"total_domains"`
	DomainsCompleted  int    `json:"domains_completed"`
	DomainsFailed     int    `json:"domains_failed"`
	TotalPagesCrawled int    `json:"total_pages_crawled"`
	TotalEmailsFound  int    `json:"total_emails_found"`
	DurationSeconds   *int64 `json:"duration_seconds"`
}

type CreateSearchRequest struct {
	BatchName string   `json:"batch_name"`
	Domains   []string `json:"domains"`
}

// Validate trims the submitted domains, drops blank entries and bounds the
// batch size. The request is mutated in place.
func (r *CreateSearchRequest) Validate() error {
	if len(r.Domains) > maxDomainsPerSearch {
		return errors.New("maximum 10000 domains per batch")
	}

	cleaned := make([]string, 0, len(r.Domains))

	for _, d := range r.Domains {
		d = strings.TrimSpace(d)
		if d != "" {
			cleaned = append(cleaned, d)
		}
	}

	r.Domains = cleaned

	if len(r.Domains) == 0 {
		return errors.New("at least one domain is required")
	}

	return nil
}
