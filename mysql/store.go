package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sadewadee/email-extractor/extractor"
	"github.com/sadewadee/email-extractor/pkg/monitoring"
	"github.com/sadewadee/email-extractor/web"
)

// Store gives the crawl engine and the REST API their views of the
// database. It implements extractor.Store and web.Repository over the same
// *sql.DB, which is the only shared state between workers.
type Store struct {
	db      *sql.DB
	metrics *monitoring.MetricsCollector
}

type StoreOption func(*Store)

func WithMetrics(m *monitoring.MetricsCollector) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := Store{db: db}

	for _, opt := range opts {
		opt(&s)
	}

	return &s
}

// DB exposes the underlying pool for stats sampling.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) MarkDomainCrawling(ctx context.Context, domainID int64, workerID string) error {
	return s.exec(ctx,
		`UPDATE domains SET status = 'crawling', worker_id = ?, locked_at = NOW() WHERE id = ?`,
		workerID, domainID)
}

func (s *Store) CompleteDomain(ctx context.Context, domainID int64, pagesCrawled, emailsFound int) error {
	return s.exec(ctx,
		`UPDATE domains SET status = 'completed', pages_crawled = ?, emails_found = ?, worker_id = NULL, locked_at = NULL WHERE id = ?`,
		pagesCrawled, emailsFound, domainID)
}

func (s *Store) FailDomain(ctx context.Context, domainID int64, message string) error {
	return s.exec(ctx,
		`UPDATE domains SET status = 'failed', error_message = ?, worker_id = NULL, locked_at = NULL WHERE id = ?`,
		message, domainID)
}

func (s *Store) InsertPage(ctx context.Context, page *extractor.Page) (int64, error) {
	start := time.Now()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pages (domain_id, url, status_code, content_type, error_message) VALUES (?, ?, ?, ?, ?)`,
		page.DomainID, page.URL, page.StatusCode, nullString(page.ContentType), nullString(page.ErrorMessage))

	s.observe(start, err)

	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

// InsertEmails stores a batch in one multi-row INSERT IGNORE, so addresses
// already recorded for the domain are skipped without failing the batch.
func (s *Store) InsertEmails(ctx context.Context, emails []extractor.Email) error {
	if len(emails) == 0 {
		return nil
	}

	q := `INSERT IGNORE INTO emails
		(domain_id, page_id, raw_email, normalized_email)
		VALUES
		`

	elements := make([]string, 0, len(emails))
	args := make([]interface{}, 0, len(emails)*4)

	for i := range emails {
		elements = append(elements, "(?, ?, ?, ?)")
		args = append(args, emails[i].DomainID, emails[i].PageID, emails[i].Raw, emails[i].Normalized)
	}

	q += strings.Join(elements, ", ")

	start := time.Now()
	err := s.execTx(ctx, q, args)
	s.observe(start, err)

	return err
}

func (s *Store) StartSearch(ctx context.Context, searchID int64) error {
	return s.exec(ctx,
		`UPDATE searches SET status = 'in_progress', started_at = NOW() WHERE id = ?`,
		searchID)
}

func (s *Store) CompleteSearch(ctx context.Context, searchID int64) error {
	return s.exec(ctx,
		`UPDATE searches SET status = 'completed', completed_at = NOW() WHERE id = ?`,
		searchID)
}

func (s *Store) FailSearch(ctx context.Context, searchID int64) error {
	return s.exec(ctx, `UPDATE searches SET status = 'failed' WHERE id = ?`, searchID)
}

func (s *Store) PendingDomains(ctx context.Context, searchID int64) ([]extractor.PendingDomain, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url FROM domains WHERE search_id = ? AND status = 'pending' ORDER BY id`,
		searchID)

	s.observe(start, err)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []extractor.PendingDomain

	for rows.Next() {
		var d extractor.PendingDomain

		if err := rows.Scan(&d.ID, &d.URL); err != nil {
			return nil, err
		}

		domains = append(domains, d)
	}

	return domains, rows.Err()
}

// NextSearch returns the oldest claimable search: a pending one if any
// exists, otherwise an in_progress one that still has pending domains,
// so work interrupted by a dead worker is picked up again.
func (s *Store) NextSearch(ctx context.Context) (int64, bool, error) {
	var id int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM searches WHERE status = 'pending' ORDER BY created_at ASC LIMIT 1`).Scan(&id)
	if err == nil {
		return id, true, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT s.id FROM searches s
		WHERE s.status = 'in_progress'
		AND EXISTS (SELECT 1 FROM domains d WHERE d.search_id = s.id AND d.status = 'pending')
		ORDER BY s.created_at ASC LIMIT 1`).Scan(&id)
	if err == nil {
		return id, true, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}

	return 0, false, err
}

func (s *Store) CreateSearch(ctx context.Context, batchName string, domains []string) (web.Search, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return web.Search{}, err
	}

	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO searches (batch_name, total_domains, status) VALUES (?, ?, 'pending')`,
		nullString(batchName), len(domains))
	if err != nil {
		return web.Search{}, err
	}

	searchID, err := res.LastInsertId()
	if err != nil {
		return web.Search{}, err
	}

	q := `INSERT INTO domains
		(search_id, domain, url, status)
		VALUES
		`

	elements := make([]string, 0, len(domains))
	args := make([]interface{}, 0, len(domains)*3)

	for _, domain := range domains {
		elements = append(elements, "(?, ?, ?, 'pending')")
		args = append(args, searchID, domain, "https://"+domain)
	}

	q += strings.Join(elements, ", ")

	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return web.Search{}, err
	}

	if err := tx.Commit(); err != nil {
		return web.Search{}, err
	}

	return s.GetSearch(ctx, searchID)
}

func (s *Store) GetSearch(ctx context.Context, id int64) (web.Search, error) {
	var search web.Search

	err := s.db.QueryRowContext(ctx,
		`SELECT id, batch_name, total_domains, status, created_at, started_at, completed_at
		FROM searches WHERE id = ?`, id).
		Scan(&search.ID, &search.BatchName, &search.TotalDomains, &search.Status,
			&search.CreatedAt, &search.StartedAt, &search.CompletedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return web.Search{}, web.ErrNotFound
	}

	if err != nil {
		return web.Search{}, err
	}

	return search, nil
}

func (s *Store) SelectSearches(ctx context.Context, params web.SelectParams) ([]web.Search, error) {
	q := `SELECT id, batch_name, total_domains, status, created_at, started_at, completed_at
		FROM searches`

	var args []interface{}

	if params.Status != "" {
		q += ` WHERE status = ?`
		args = append(args, params.Status)
	}

	q += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, selectLimit(params.Limit, 100), params.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var searches []web.Search

	for rows.Next() {
		var search web.Search

		if err := rows.Scan(&search.ID, &search.BatchName, &search.TotalDomains, &search.Status,
			&search.CreatedAt, &search.StartedAt, &search.CompletedAt); err != nil {
			return nil, err
		}

		searches = append(searches, search)
	}

	return searches, rows.Err()
}

func (s *Store) SearchStatistics(ctx context.Context, id int64) (web.Statistics, error) {
	var (
		stats                     web.Statistics
		completed, failed         sql.NullInt64
		pagesCrawled, emailsFound sql.NullInt64
		durationSeconds           sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.total_domains,
			SUM(CASE WHEN d.status = 'completed' THEN 1 ELSE 0 END) AS domains_completed,
			SUM(CASE WHEN d.status = 'failed' THEN 1 ELSE 0 END) AS domains_failed,
			SUM(d.pages_crawled) AS total_pages_crawled,
			SUM(d.emails_found) AS total_emails_found,
			TIMESTAMPDIFF(SECOND, s.started_at, COALESCE(s.completed_at, NOW())) AS duration_seconds
		FROM searches s
		LEFT JOIN domains d ON s.id = d.search_id
		WHERE s.id = ?
		GROUP BY s.id`, id).
		Scan(&stats.SearchID, &stats.TotalDomains, &completed, &failed,
			&pagesCrawled, &emailsFound, &durationSeconds)

	if errors.Is(err, sql.ErrNoRows) {
		return web.Statistics{}, web.ErrNotFound
	}

	if err != nil {
		return web.Statistics{}, err
	}

	stats.DomainsCompleted = int(completed.Int64)
	stats.DomainsFailed = int(failed.Int64)
	stats.TotalPagesCrawled = int(pagesCrawled.Int64)
	stats.TotalEmailsFound = int(emailsFound.Int64)

	if durationSeconds.Valid {
		stats.DurationSeconds = &durationSeconds.Int64
	}

	return stats, nil
}

func (s *Store) SelectDomains(ctx context.Context, searchID int64, params web.SelectParams) ([]web.Domain, error) {
	q := `SELECT id, domain, status, pages_crawled, emails_found, error_message, updated_at
		FROM domains WHERE search_id = ?`

	args := []interface{}{searchID}

	if params.Status != "" {
		q += ` AND status = ?`
		args = append(args, params.Status)
	}

	q += ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, selectLimit(params.Limit, 100), params.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []web.Domain

	for rows.Next() {
		var d web.Domain

		if err := rows.Scan(&d.ID, &d.Domain, &d.Status, &d.PagesCrawled, &d.EmailsFound,
			&d.ErrorMessage, &d.UpdatedAt); err != nil {
			return nil, err
		}

		domains = append(domains, d)
	}

	return domains, rows.Err()
}

func (s *Store) SelectSearchEmails(ctx context.Context, searchID int64, params web.SelectParams) ([]web.Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, d.domain, p.url, e.raw_email, e.normalized_email, e.extracted_at
		FROM emails e
		JOIN domains d ON e.domain_id = d.id
		JOIN pages p ON e.page_id = p.id
		WHERE d.search_id = ?
		ORDER BY e.extracted_at DESC LIMIT ? OFFSET ?`,
		searchID, selectLimit(params.Limit, 1000), params.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEmails(rows)
}

func (s *Store) SelectDomainEmails(ctx context.Context, domainID int64) ([]web.Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, d.domain, p.url, e.raw_email, e.normalized_email, e.extracted_at
		FROM emails e
		JOIN domains d ON e.domain_id = d.id
		JOIN pages p ON e.page_id = p.id
		WHERE e.domain_id = ?
		ORDER BY e.extracted_at DESC`,
		domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEmails(rows)
}

func (s *Store) PauseSearch(ctx context.Context, id int64) error {
	return s.transition(ctx,
		`UPDATE searches SET status = 'paused' WHERE id = ? AND status = 'in_progress'`, id)
}

func (s *Store) ResumeSearch(ctx context.Context, id int64) error {
	return s.transition(ctx,
		`UPDATE searches SET status = 'in_progress' WHERE id = ? AND status = 'paused'`, id)
}

// CancelSearch marks the search cancelled regardless of its status, then
// releases the worker locks on its crawling domains. In-flight crawls are
// not interrupted, cancellation only stops future claims.
func (s *Store) CancelSearch(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE searches SET status = 'cancelled' WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return web.ErrNotFound
	}

	return s.exec(ctx,
		`UPDATE domains SET worker_id = NULL, locked_at = NULL WHERE search_id = ? AND status = 'crawling'`,
		id)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, query, args...)
	s.observe(start, err)

	return err
}

func (s *Store) execTx(ctx context.Context, query string, args []interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	return tx.Commit()
}

// transition runs a guarded status UPDATE and reports ErrInvalidStatus when
// no row matched the guard.
func (s *Store) transition(ctx context.Context, query string, id int64) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return web.ErrInvalidStatus
	}

	return nil
}

func (s *Store) observe(start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDatabaseOperation(time.Since(start), err == nil)
	}
}

func scanEmails(rows *sql.Rows) ([]web.Email, error) {
	var emails []web.Email

	for rows.Next() {
		var e web.Email

		if err := rows.Scan(&e.ID, &e.Domain, &e.PageURL, &e.RawEmail, &e.Normalized, &e.ExtractedAt); err != nil {
			return nil, err
		}

		emails = append(emails, e)
	}

	return emails, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}

	return s
}

func selectLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}

	return limit
}
