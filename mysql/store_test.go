package mysql

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/sadewadee/email-extractor/extractor"
	"github.com/sadewadee/email-extractor/web"
)

// TestStoreRoundTrip drives a whole search through the store against a
// real server with the schema from schema.sql applied. Only runs when
// EMAIL_EXTRACTOR_TEST_DSN is set.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("EMAIL_EXTRACTOR_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping store test: EMAIL_EXTRACTOR_TEST_DSN not set")
	}

	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("invalid dsn: %v", err)
	}

	cfg.ParseTime = true

	connector, err := mysqldriver.NewConnector(cfg)
	if err != nil {
		t.Fatalf("failed to create connector: %v", err)
	}

	db := sql.OpenDB(connector)
	defer db.Close()

	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	store := NewStore(db)

	search, err := store.CreateSearch(ctx, "store test batch", []string{"store-test.example"})
	if err != nil {
		t.Fatalf("failed to create search: %v", err)
	}

	if search.Status != web.StatusPending || search.TotalDomains != 1 {
		t.Fatalf("unexpected fresh search: %+v", search)
	}

	if search.BatchName == nil || *search.BatchName != "store test batch" {
		t.Fatalf("expected batch name stored, got %v", search.BatchName)
	}

	if search.StartedAt != nil || search.CompletedAt != nil {
		t.Fatalf("expected no timestamps on a fresh search: %+v", search)
	}

	id, ok, err := store.NextSearch(ctx)
	if err != nil {
		t.Fatalf("failed to claim next search: %v", err)
	}

	if !ok || id != search.ID {
		t.Fatalf("expected to claim search %d, got %d ok=%v", search.ID, id, ok)
	}

	if err := store.StartSearch(ctx, search.ID); err != nil {
		t.Fatalf("failed to start search: %v", err)
	}

	started, err := store.GetSearch(ctx, search.ID)
	if err != nil {
		t.Fatalf("failed to reload search: %v", err)
	}

	if started.Status != web.StatusInProgress || started.StartedAt == nil {
		t.Fatalf("unexpected started search: %+v", started)
	}

	domains, err := store.PendingDomains(ctx, search.ID)
	if err != nil {
		t.Fatalf("failed to select pending domains: %v", err)
	}

	if len(domains) != 1 || domains[0].URL != "https://store-test.example" {
		t.Fatalf("unexpected pending domains: %+v", domains)
	}

	domainID := domains[0].ID

	if err := store.MarkDomainCrawling(ctx, domainID, "worker-test"); err != nil {
		t.Fatalf("failed to mark domain crawling: %v", err)
	}

	pageID, err := store.InsertPage(ctx, &extractor.Page{
		DomainID:    domainID,
		URL:         "https://store-test.example/",
		StatusCode:  200,
		ContentType: "text/html",
	})
	if err != nil {
		t.Fatalf("failed to insert page: %v", err)
	}

	if pageID <= 0 {
		t.Fatalf("expected positive page id, got %d", pageID)
	}

	emails := []extractor.Email{
		{DomainID: domainID, PageID: pageID, Raw: "Info@Store-Test.example", Normalized: "info@store-test.example"},
		{DomainID: domainID, PageID: pageID, Raw: "info@store-test.example", Normalized: "info@store-test.example"},
	}

	if err := store.InsertEmails(ctx, emails); err != nil {
		t.Fatalf("failed to insert emails: %v", err)
	}

	stored, err := store.SelectDomainEmails(ctx, domainID)
	if err != nil {
		t.Fatalf("failed to select emails: %v", err)
	}

	// The duplicate normalized address is silently dropped.
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored email, got %d", len(stored))
	}

	if stored[0].RawEmail != "Info@Store-Test.example" || stored[0].Normalized != "info@store-test.example" {
		t.Errorf("unexpected stored email: %+v", stored[0])
	}

	if err := store.CompleteDomain(ctx, domainID, 1, 1); err != nil {
		t.Fatalf("failed to complete domain: %v", err)
	}

	if err := store.CompleteSearch(ctx, search.ID); err != nil {
		t.Fatalf("failed to complete search: %v", err)
	}

	stats, err := store.SearchStatistics(ctx, search.ID)
	if err != nil {
		t.Fatalf("failed to load statistics: %v", err)
	}

	if stats.DomainsCompleted != 1 || stats.TotalEmailsFound != 1 || stats.TotalPagesCrawled != 1 {
		t.Errorf("unexpected statistics: %+v", stats)
	}

	if stats.DurationSeconds == nil {
		t.Errorf("expected a duration for a started search")
	}

	// Completed searches cannot pause or resume.
	if err := store.PauseSearch(ctx, search.ID); !errors.Is(err, web.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus pausing a completed search, got %v", err)
	}

	if err := store.CancelSearch(ctx, search.ID); err != nil {
		t.Fatalf("failed to cancel search: %v", err)
	}

	if err := store.CancelSearch(ctx, -1); !errors.Is(err, web.ErrNotFound) {
		t.Errorf("expected ErrNotFound cancelling a missing search, got %v", err)
	}

	if _, err := store.GetSearch(ctx, -1); !errors.Is(err, web.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing search, got %v", err)
	}
}
