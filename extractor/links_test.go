package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return doc
}

func TestExtractLinks(t *testing.T) {
	html := `<html><body>
		<a href="/about">about</a>
		<a href="/about/">duplicate after normalization</a>
		<a href="contact.html">relative</a>
		<a href="https://example.com/About/">cased path</a>
		<a href="https://shop.example.com/deals">subdomain</a>
		<a href="https://other.com/x">foreign</a>
		<a href="mailto:x@y.com">mail</a>
		<a href="tel:+15550000">phone</a>
		<a href="javascript:void(0)">script</a>
		<a href="#top">fragment</a>
		<a href="/doc.pdf">binary</a>
		<a href="://bad">unparseable</a>
		<map name="m"><area href="/regions" alt="regions"></map>
	</body></html>`

	doc := mustDoc(t, html)

	got := ExtractLinks(doc, "https://example.com/", "example.com")

	want := []string{
		"https://example.com/about",
		"https://example.com/contact.html",
		"https://example.com/About",
		"https://shop.example.com/deals",
		"https://example.com/regions",
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d links, got %d: %v", len(want), len(got), got)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("link %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestExtractLinksBadBase(t *testing.T) {
	doc := mustDoc(t, `<a href="/about">about</a>`)

	if got := ExtractLinks(doc, "https://exa mple.com/", "example.com"); got != nil {
		t.Fatalf("expected nil for unparseable page url, got %v", got)
	}
}
