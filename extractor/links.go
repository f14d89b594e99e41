package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// skippedPrefixes mark hrefs that never lead to a crawlable page.
var skippedPrefixes = []string{"mailto:", "tel:", "javascript:", "#"}

// ExtractLinks returns the canonical in-scope links of a document, in
// document order with duplicates removed. Every link comes back already
// normalized, so callers compare it directly against their visited set.
func ExtractLinks(doc *goquery.Document, pageURL, baseHost string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)

	var links []string

	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}

		href = strings.TrimSpace(href)

		for _, prefix := range skippedPrefixes {
			if strings.HasPrefix(href, prefix) {
				return
			}
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		link := NormalizeURL(base.ResolveReference(ref).String())

		if !InScope(link, baseHost) {
			return
		}

		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})

	return links
}
