package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/normalize"
)

// Pattern-pass confidence levels. Labeled lines are near-certain; bare
// matches are high-precision but context-free, so they score lower and let
// the resolver prefer labeled or AI-reported values.
const (
	confLabeled     = 0.95
	confEmail       = 0.9
	confBareDate    = 0.75
	confKeywordTime = 0.8
	confBareTime    = 0.5
	confCity        = 0.7
	confPhone       = 0.7
	confBareMoney   = 0.6
)

var (
	labeledLineRe = regexp.MustCompile(`(?m)^\s*([A-Za-z][A-Za-z /-]{0,24}?)\s*[:=]\s*(.+?)\s*$`)

	isoDateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	slashDateRe = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	longDateRe  = regexp.MustCompile(`\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`)

	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)

	moneyRe = regexp.MustCompile(`(?i)([$€£])\s?(\d[\d,]*)(?:\.(\d{2}))?\s?(k)?\b`)

	clockRe = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s?(am|pm)?\b`)
)

// knownCities is the high-precision city list for the pattern pass. The AI
// pass handles everything else; this list only needs to be unambiguous.
var knownCities = []string{
	"New York", "Brooklyn", "Los Angeles", "Chicago", "Austin", "Nashville",
	"Seattle", "Portland", "Denver", "Boston", "Philadelphia", "Atlanta",
	"Miami", "Detroit", "Minneapolis", "New Orleans", "San Francisco",
	"San Diego", "Phoenix", "Dallas", "Houston", "Washington DC",
	"Toronto", "Montreal", "Vancouver", "London", "Manchester", "Glasgow",
	"Dublin", "Paris", "Berlin", "Hamburg", "Amsterdam", "Brussels",
	"Barcelona", "Madrid", "Stockholm", "Oslo", "Copenhagen",
}

// timeKeywords mark a clock match as a probable set time when found nearby.
var timeKeywords = []string{"set", "show", "doors", "stage", "curfew", "soundcheck"}

// PatternPass runs the deterministic extractors over one chunk and returns
// high-precision facts. Facts carry the chunk back-reference; Seq is
// assigned by the caller once all chunks are collected.
func PatternPass(chunk model.TextChunk, aliases *model.AliasTable) []model.Fact {
	text := chunk.Text
	var facts []model.Fact
	add := func(ft model.FactType, v model.FactValue, conf float64) {
		facts = append(facts, model.Fact{
			Type:       ft,
			Value:      v,
			SourceID:   chunk.SourceID,
			ChunkIndex: chunk.Index,
			Confidence: conf,
			Origin:     model.OriginPattern,
		})
	}

	// Labeled lines first: "Venue: MSG", "Guarantee = $5,000".
	labeledDates := false
	for _, m := range labeledLineRe.FindAllStringSubmatch(text, -1) {
		label, rawValue := m[1], m[2]
		ft, ok := aliases.Lookup(label)
		if !ok || strings.TrimSpace(rawValue) == "" {
			continue
		}
		v, ok := typedValue(ft, rawValue)
		if !ok {
			continue
		}
		if ft == model.FactDate {
			labeledDates = true
		}
		add(ft, v, confLabeled)
	}

	// Bare dates, skipped when a labeled date already covers the chunk: the
	// labeled line would match again as a bare pattern and double-count.
	if !labeledDates {
		for _, re := range []*regexp.Regexp{isoDateRe, slashDateRe, longDateRe} {
			for _, raw := range re.FindAllString(text, -1) {
				if d, ok := normalize.Date(raw); ok {
					add(model.FactDate, model.DateValue{Raw: raw, Date: d}, confBareDate)
				}
			}
		}
	}

	for _, raw := range emailRe.FindAllString(text, -1) {
		add(model.FactContactEmail, model.TextValue{Text: strings.ToLower(raw)}, confEmail)
	}

	for _, raw := range dedupe(phoneRe.FindAllString(text, -1)) {
		digits := digitsOnly(raw)
		if len(digits) >= 10 {
			add(model.FactContactPhone, model.TextValue{Text: digits}, confPhone)
		}
	}

	for _, m := range moneyRe.FindAllStringSubmatch(text, -1) {
		if v, ok := parseMoney(m); ok {
			add(model.FactGuarantee, v, confBareMoney)
		}
	}

	for _, m := range clockRe.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[0]:m[1]]
		v, ok := parseClock(raw)
		if !ok {
			continue
		}
		conf := confBareTime
		if hasKeywordNearby(text, m[0], m[1]) {
			conf = confKeywordTime
		}
		add(model.FactSetTime, v, conf)
	}

	lower := strings.ToLower(text)
	for _, city := range knownCities {
		if containsWord(lower, strings.ToLower(city)) {
			add(model.FactCity, model.TextValue{Text: city}, confCity)
		}
	}

	return facts
}

// typedValue converts a labeled raw string into the typed payload for its
// fact type. Returns false when the value cannot be parsed into the
// required shape (a labeled date that isn't a date emits nothing rather
// than a junk fact).
func typedValue(ft model.FactType, raw string) (model.FactValue, bool) {
	raw = strings.TrimSpace(raw)
	switch ft {
	case model.FactDate:
		if d, ok := normalize.Date(raw); ok {
			return model.DateValue{Raw: raw, Date: d}, true
		}
		return nil, false
	case model.FactGuarantee:
		if m := moneyRe.FindStringSubmatch(raw); m != nil {
			return parseMoney(m)
		}
		// Bare number after a guarantee label is still money.
		if cents, ok := parsePlainAmount(raw); ok {
			return model.MoneyValue{Raw: raw, Cents: cents, Currency: "USD"}, true
		}
		return nil, false
	case model.FactSetTime:
		return parseClock(raw)
	case model.FactContactEmail:
		if !emailRe.MatchString(raw) {
			return nil, false
		}
		return model.TextValue{Text: strings.ToLower(raw)}, true
	case model.FactContactPhone:
		digits := digitsOnly(raw)
		if len(digits) < 10 {
			return nil, false
		}
		return model.TextValue{Text: digits}, true
	default:
		return model.TextValue{Text: raw}, true
	}
}

func parseMoney(m []string) (model.MoneyValue, bool) {
	currency := "USD"
	switch m[1] {
	case "€":
		currency = "EUR"
	case "£":
		currency = "GBP"
	}

	whole, err := strconv.ParseInt(strings.ReplaceAll(m[2], ",", ""), 10, 64)
	if err != nil {
		return model.MoneyValue{}, false
	}
	cents := whole * 100
	if m[3] != "" {
		frac, _ := strconv.ParseInt(m[3], 10, 64)
		cents += frac
	}
	if strings.EqualFold(m[4], "k") {
		cents *= 1000
	}
	return model.MoneyValue{Raw: strings.TrimSpace(m[0]), Cents: cents, Currency: currency}, true
}

func parsePlainAmount(raw string) (int64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int64(f * 100), true
}

func parseClock(raw string) (model.ClockValue, bool) {
	m := clockRe.FindStringSubmatch(raw)
	if m == nil {
		return model.ClockValue{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if minute > 59 {
		return model.ClockValue{}, false
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 {
		return model.ClockValue{}, false
	}
	return model.ClockValue{Raw: strings.TrimSpace(raw), Hour: hour, Minute: minute}, true
}

// hasKeywordNearby checks ±40 chars around a clock match for set/show/doors
// context, mirroring the keyword-proximity scoring used for phone numbers.
func hasKeywordNearby(text string, start, end int) bool {
	lo := start - 40
	if lo < 0 {
		lo = 0
	}
	hi := end + 40
	if hi > len(text) {
		hi = len(text)
	}
	ctx := strings.ToLower(text[lo:hi])
	for _, kw := range timeKeywords {
		if strings.Contains(ctx, kw) {
			return true
		}
	}
	return false
}

func containsWord(haystack, needle string) bool {
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return false
	}
	before := idx == 0 || !isWordByte(haystack[idx-1])
	afterIdx := idx + len(needle)
	after := afterIdx >= len(haystack) || !isWordByte(haystack[afterIdx])
	return before && after
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
