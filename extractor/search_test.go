package extractor

import (
	"context"
	"errors"
	"testing"
)

func TestProcessSearch(t *testing.T) {
	ts := newSite(map[string]string{
		"/": `<a href="mailto:hello@example.com">mail</a>`,
	})
	defer ts.Close()

	store := newFakeStore()
	store.pending[42] = []PendingDomain{
		{ID: 1, URL: ts.URL},
		{ID: 2, URL: ts.URL},
		{ID: 3, URL: ts.URL},
	}

	ext := New(store,
		WithMaxDepth(0),
		WithMaxConcurrent(2),
		WithFetcher(NewFetcher(testTimeout, discardLogger())),
		WithLogger(discardLogger()),
	)

	ext.ProcessSearch(context.Background(), 42, "w1")

	if len(store.searchStarted) != 1 || store.searchStarted[0] != 42 {
		t.Fatalf("expected search 42 started, got %v", store.searchStarted)
	}

	if len(store.claims) != 3 {
		t.Fatalf("expected 3 domain claims, got %d", len(store.claims))
	}

	for _, id := range []int64{1, 2, 3} {
		if got := store.completed[id]; got.pages != 1 || got.emails != 1 {
			t.Fatalf("domain %d: unexpected completion %+v", id, got)
		}
	}

	if len(store.searchCompleted) != 1 || store.searchCompleted[0] != 42 {
		t.Fatalf("expected search 42 completed, got %v", store.searchCompleted)
	}

	if len(store.searchFailed) != 0 {
		t.Fatalf("expected no search failure, got %v", store.searchFailed)
	}
}

func TestProcessSearchNoPendingDomains(t *testing.T) {
	store := newFakeStore()

	ext := New(store, WithLogger(discardLogger()))

	ext.ProcessSearch(context.Background(), 42, "w1")

	if len(store.searchStarted) != 1 {
		t.Fatalf("expected search started, got %v", store.searchStarted)
	}

	// A search with nothing to do keeps its in_progress status so an
	// operator can see something went wrong with its domain rows.
	if len(store.searchCompleted) != 0 {
		t.Fatalf("expected search left in progress, got completed %v", store.searchCompleted)
	}

	if len(store.searchFailed) != 0 {
		t.Fatalf("expected no failure, got %v", store.searchFailed)
	}
}

func TestProcessSearchClaimFailure(t *testing.T) {
	store := newFakeStore()
	store.startSearchErr = errors.New("connection refused")

	ext := New(store, WithLogger(discardLogger()))

	ext.ProcessSearch(context.Background(), 42, "w1")

	if len(store.searchFailed) != 1 || store.searchFailed[0] != 42 {
		t.Fatalf("expected search 42 failed, got %v", store.searchFailed)
	}

	if len(store.claims) != 0 {
		t.Fatalf("expected no domain claims, got %v", store.claims)
	}
}

func TestProcessSearchPendingQueryFailure(t *testing.T) {
	store := newFakeStore()
	store.pendingErr = errors.New("table gone")

	ext := New(store, WithLogger(discardLogger()))

	ext.ProcessSearch(context.Background(), 42, "w1")

	if len(store.searchFailed) != 1 || store.searchFailed[0] != 42 {
		t.Fatalf("expected search 42 failed, got %v", store.searchFailed)
	}
}

func TestProcessSearchDomainFailuresDoNotFailSearch(t *testing.T) {
	ts := newSite(map[string]string{"/": `<p>ok</p>`})
	defer ts.Close()

	store := newFakeStore()
	store.claimErr = errors.New("deadlock")
	store.pending[42] = []PendingDomain{
		{ID: 1, URL: ts.URL},
		{ID: 2, URL: ts.URL},
	}

	ext := New(store,
		WithMaxDepth(0),
		WithFetcher(NewFetcher(testTimeout, discardLogger())),
		WithLogger(discardLogger()),
	)

	ext.ProcessSearch(context.Background(), 42, "w1")

	if len(store.failed) != 2 {
		t.Fatalf("expected both domains failed, got %v", store.failed)
	}

	if len(store.searchCompleted) != 1 {
		t.Fatalf("expected the search itself completed, got %v", store.searchCompleted)
	}
}
