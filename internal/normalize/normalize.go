package normalize

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spaceRunRe = regexp.MustCompile(`[ \t]{2,}`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	multiSpRe  = regexp.MustCompile(`\s{2,}`)
)

// Text cleans raw extracted text into the canonical form used by all
// downstream matchers: valid UTF-8 only, LF line endings, no control
// characters, single spaces within lines, at most one blank line between
// paragraphs. Idempotent: Text(Text(x)) == Text(x). Never fails; invalid
// byte sequences are dropped.
func Text(raw string) string {
	if raw == "" {
		return ""
	}

	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "")
	}

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\t':
			b.WriteByte(' ')
		case r == utf8.RuneError, unicode.IsControl(r):
			// drop
		case r == ' ':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	s := spaceRunRe.ReplaceAllString(b.String(), " ")

	// Trim trailing space per line so blank-line collapsing sees true blanks.
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	s = strings.Join(lines, "\n")

	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// venueSuffixes lists trailing legal/venue qualifiers stripped during name
// normalization so "Madison Square Garden LLC" matches "Madison Square Garden".
var venueSuffixes = []string{
	" LLC", " L.L.C.", " INC", " INC.", " CORP", " CORP.",
	" LTD", " LTD.", " CO", " CO.", " GROUP", " PRESENTS",
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldAccents strips combining marks so "Zénith" matches "Zenith".
func foldAccents(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}

// Name standardizes an entity name (show title, venue) for matching:
// accent folding, uppercasing, suffix and leading-article stripping,
// punctuation removal, space collapsing.
func Name(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(foldAccents(name))
	name = strings.TrimPrefix(name, "THE ")

	for _, suffix := range venueSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
		"(", " ",
		")", " ",
		"/", " ",
	).Replace(name)

	name = multiSpRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// City canonicalizes a city string for exact comparison.
func City(city string) string {
	city = strings.TrimSpace(foldAccents(city))
	city = strings.TrimSuffix(city, ",")
	return strings.ToUpper(multiSpRe.ReplaceAllString(city, " "))
}

// dateLayouts are tried in order; all layouts carry an explicit year so
// parsing stays deterministic across runs.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
	"02.01.2006",
}

var ordinalRe = regexp.MustCompile(`(\d{1,2})(st|nd|rd|th)\b`)

// Date parses a written date into its canonical calendar day.
// Returns false when no supported layout matches.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	s = ordinalRe.ReplaceAllString(s, "$1")
	s = multiSpRe.ReplaceAllString(s, " ")

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WordCount counts whitespace-separated tokens in normalized text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
