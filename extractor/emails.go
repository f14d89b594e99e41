package extractor

import (
	"regexp"
	"strings"

	emailverifier "github.com/AfterShip/email-verifier"
	"github.com/PuerkitoBio/goquery"
	"github.com/mcnijman/go-emailaddress"
)

// emailPattern matches plain addresses embedded in page text. The local
// part and domain must start with an alphanumeric so that stray
// punctuation around an address is not swallowed into it.
var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9][A-Za-z0-9._%+-]*@[A-Za-z0-9][A-Za-z0-9.-]*\.[A-Za-z]{2,}\b`)

// obfuscatedPatterns rewrites the common spellings people use to hide
// addresses from harvesters back into plain form. Order matters: each
// rewrite runs over the output of the previous one, and the bracketed
// uppercase form is matched case sensitively so it does not shadow the
// case insensitive variants.
var obfuscatedPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)([A-Za-z0-9._%+-]+)\s*\[at\]\s*([A-Za-z0-9.-]+)\s*\[dot\]\s*([A-Za-z]{2,})`), "${1}@${2}.${3}"},
	{regexp.MustCompile(`(?i)([A-Za-z0-9._%+-]+)\s*\(at\)\s*([A-Za-z0-9.-]+)\s*\(dot\)\s*([A-Za-z]{2,})`), "${1}@${2}.${3}"},
	{regexp.MustCompile(`([A-Za-z0-9._%+-]+)\s*\[AT\]\s*([A-Za-z0-9.-]+)\s*\[DOT\]\s*([A-Za-z]{2,})`), "${1}@${2}.${3}"},
	{regexp.MustCompile(`([A-Za-z0-9._%+-]+)\s*@\s*([A-Za-z0-9.-]+)\s*\.\s*([A-Za-z]{2,})`), "${1}@${2}.${3}"},
	{regexp.MustCompile(`(?i)([A-Za-z0-9._%+-]+)\s*\(a\)\s*([A-Za-z0-9.-]+)\s*\(dot\)\s*([A-Za-z]{2,})`), "${1}@${2}.${3}"},
}

var verifier = emailverifier.NewVerifier()

// Candidate is an address as it appeared on a page together with its
// normalized form. Normalized is the deduplication key.
type Candidate struct {
	Raw        string
	Normalized string
}

// FindEmails collects every address a page exposes, from mailto links
// first and then from the visible text after de-obfuscation. Candidates
// that fail normalization are dropped, and each normalized form is
// reported once with the raw spelling that produced it first.
func FindEmails(doc *goquery.Document) []Candidate {
	seen := make(map[string]bool)

	var found []Candidate

	add := func(raw string) {
		normalized, ok := NormalizeEmail(raw)
		if !ok || seen[normalized] {
			return
		}

		seen[normalized] = true

		found = append(found, Candidate{Raw: raw, Normalized: normalized})
	}

	for _, raw := range mailtoEmails(doc) {
		add(raw)
	}

	for _, raw := range textEmails(doc.Text()) {
		add(raw)
	}

	return found
}

// mailtoEmails pulls addresses out of mailto links, discarding any query
// suffix such as subject or body parameters.
func mailtoEmails(doc *goquery.Document) []string {
	var emails []string

	doc.Find("a[href^='mailto:']").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}

		addr := strings.TrimPrefix(href, "mailto:")
		addr, _, _ = strings.Cut(addr, "?")
		addr = strings.TrimSpace(addr)

		if addr != "" {
			emails = append(emails, addr)
		}
	})

	return emails
}

// textEmails scans free text for addresses, first undoing the known
// obfuscation spellings so the plain pattern can see them.
func textEmails(text string) []string {
	for _, p := range obfuscatedPatterns {
		text = p.re.ReplaceAllString(text, p.repl)
	}

	return emailPattern.FindAllString(text, -1)
}

// NormalizeEmail lowercases and trims a raw candidate, strips the
// punctuation and quoting that sentence context leaves behind, then
// requires the result to parse as a syntactically valid address. It
// returns false for candidates that do not survive.
func NormalizeEmail(raw string) (string, bool) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	addr = strings.TrimRight(addr, ".,;:!?")
	addr = strings.Trim(addr, `<>()[]{}"' `)

	if _, err := emailaddress.Parse(addr); err != nil {
		return "", false
	}

	syntax := verifier.ParseAddress(addr)
	if !syntax.Valid {
		return "", false
	}

	return syntax.Username + "@" + syntax.Domain, true
}
