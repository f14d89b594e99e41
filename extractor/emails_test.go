package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
)

func TestTextEmails(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain address",
			text: "write to info@example.com today",
			want: []string{"info@example.com"},
		},
		{
			name: "bracketed at and dot",
			text: "bob [at] sample [dot] org",
			want: []string{"bob@sample.org"},
		},
		{
			name: "parenthesised uppercase at and dot",
			text: "carol (AT) x (DOT) io",
			want: []string{"carol@x.io"},
		},
		{
			name: "bracketed uppercase",
			text: "frank [AT] corp [DOT] com",
			want: []string{"frank@corp.com"},
		},
		{
			name: "bracketed mixed case",
			text: "gina [At] mix [Dot] org",
			want: []string{"gina@mix.org"},
		},
		{
			name: "spaced out address",
			text: "dave @ foo . io",
			want: []string{"dave@foo.io"},
		},
		{
			name: "parenthesised single a",
			text: "erin (a) bar (dot) net",
			want: []string{"erin@bar.net"},
		},
		{
			name: "no whitespace around markers",
			text: "joe[at]site[dot]com",
			want: []string{"joe@site.com"},
		},
		{
			name: "address with plus and subdomain",
			text: "a.b+c@mail.d-e.fr",
			want: []string{"a.b+c@mail.d-e.fr"},
		},
		{
			name: "trailing sentence punctuation excluded",
			text: "contact x@y.com.",
			want: []string{"x@y.com"},
		},
		{
			name: "multiple addresses",
			text: "one@a.com two [at] b [dot] org",
			want: []string{"one@a.com", "two@b.org"},
		},
		{
			name: "numeric tld is not an address",
			text: "version 1.2 @ build 3 . 14",
			want: nil,
		},
		{
			name: "nothing to find",
			text: "no addresses here",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textEmails(tt.text))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"lowercases and trims", "  John.Doe@Example.COM  ", "john.doe@example.com", true},
		{"trailing dot", "info@example.com.", "info@example.com", true},
		{"trailing punctuation run", "sales@example.com!?", "sales@example.com", true},
		{"angle brackets", "<sales@example.com>", "sales@example.com", true},
		{"parentheses", "(bob@example.com)", "bob@example.com", true},
		{"quotes", `"amy@example.com"`, "amy@example.com", true},
		{"brackets then comma", "[bob@example.com],", "bob@example.com", true},
		{"no at sign", "not-an-email", "", false},
		{"missing domain", "user@", "", false},
		{"missing local part", "@example.com", "", false},
		{"space inside", "a b@example.com", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeEmail(tt.input)

			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindEmails(t *testing.T) {
	html := `<html><body>
		<a href="mailto:Alice@Example.COM?subject=hi">mail us</a>
		<a href="MailTo:bob@skipped.com">wrong case</a>
		<a href="mailto:">empty</a>
		<p>reach sales [at] example [dot] com or ALICE@EXAMPLE.COM</p>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := FindEmails(doc)
	if len(found) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(found), found)
	}

	// The mailto spelling wins over the later text occurrence of the
	// same normalized address.
	if found[0].Raw != "Alice@Example.COM" || found[0].Normalized != "alice@example.com" {
		t.Fatalf("unexpected first candidate: %+v", found[0])
	}

	if found[1].Raw != "sales@example.com" || found[1].Normalized != "sales@example.com" {
		t.Fatalf("unexpected second candidate: %+v", found[1])
	}
}

func TestFindEmailsDropsInvalid(t *testing.T) {
	html := `<html><body>
		<a href="mailto:not-an-address">broken</a>
		<p>plain text without addresses</p>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if found := FindEmails(doc); len(found) != 0 {
		t.Fatalf("expected no candidates, got %+v", found)
	}
}
