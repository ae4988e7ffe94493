package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showdeck/importer/internal/model"
)

func aliasTable(t *testing.T) *model.AliasTable {
	t.Helper()
	table, err := model.LoadAliasTable()
	require.NoError(t, err)
	return table
}

func chunk(text string) model.TextChunk {
	return model.TextChunk{SourceID: "src-1", Index: 0, Text: text}
}

func factsOfType(facts []model.Fact, ft model.FactType) []model.Fact {
	var out []model.Fact
	for _, f := range facts {
		if f.Type == ft {
			out = append(out, f)
		}
	}
	return out
}

func TestPatternPass_LabeledLines(t *testing.T) {
	facts := PatternPass(chunk("Venue: The Fillmore\nShow: Spring Tour Opener\nSet Time: 9:00 pm"), aliasTable(t))

	venues := factsOfType(facts, model.FactVenueName)
	require.Len(t, venues, 1)
	assert.Equal(t, "The Fillmore", venues[0].Value.Display())
	assert.Equal(t, 0.95, venues[0].Confidence)
	assert.Equal(t, model.OriginPattern, venues[0].Origin)

	titles := factsOfType(facts, model.FactEventTitle)
	require.Len(t, titles, 1)
	assert.Equal(t, "Spring Tour Opener", titles[0].Value.Display())

	// The labeled line wins at 0.95; the clock pattern also sees the bare
	// "9:00 pm" and emits its lower-confidence duplicate for the resolver.
	times := factsOfType(facts, model.FactSetTime)
	require.Len(t, times, 2)
	assert.Equal(t, "21:00", times[0].Value.Display())
	assert.Equal(t, 0.95, times[0].Confidence)
}

func TestPatternPass_LabeledDateSuppressesBareDateDoubleCount(t *testing.T) {
	facts := PatternPass(chunk("Date: Nov 3, 2025"), aliasTable(t))

	dates := factsOfType(facts, model.FactDate)
	require.Len(t, dates, 1)
	assert.Equal(t, "2025-11-03", dates[0].Value.Canonical())
	assert.Equal(t, 0.95, dates[0].Confidence)
}

func TestPatternPass_BareDates(t *testing.T) {
	facts := PatternPass(chunk("we land 11/3/2025 and play November 4th, 2025"), aliasTable(t))

	dates := factsOfType(facts, model.FactDate)
	require.Len(t, dates, 2)
	assert.Equal(t, "2025-11-03", dates[0].Value.Canonical())
	assert.Equal(t, "2025-11-04", dates[1].Value.Canonical())
	for _, d := range dates {
		assert.Equal(t, 0.75, d.Confidence)
	}
}

func TestPatternPass_EmailLowercased(t *testing.T) {
	facts := PatternPass(chunk("reach Sarah at Sarah.Jones@PromoterCo.COM"), aliasTable(t))

	emails := factsOfType(facts, model.FactContactEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, "sarah.jones@promoterco.com", emails[0].Value.Display())
}

func TestPatternPass_PhoneNormalizedToDigits(t *testing.T) {
	facts := PatternPass(chunk("call (612) 555-0148 anytime"), aliasTable(t))

	phones := factsOfType(facts, model.FactContactPhone)
	require.Len(t, phones, 1)
	assert.Equal(t, "6125550148", phones[0].Value.Display())
}

func TestPatternPass_MoneyVariants(t *testing.T) {
	facts := PatternPass(chunk("offer is $5k versus the door, plus €1,500.50 buyout"), aliasTable(t))

	money := factsOfType(facts, model.FactGuarantee)
	require.Len(t, money, 2)

	first := money[0].Value.(model.MoneyValue)
	assert.Equal(t, int64(500000), first.Cents)
	assert.Equal(t, "USD", first.Currency)

	second := money[1].Value.(model.MoneyValue)
	assert.Equal(t, int64(150050), second.Cents)
	assert.Equal(t, "EUR", second.Currency)
}

func TestPatternPass_ClockKeywordBoostsConfidence(t *testing.T) {
	facts := PatternPass(chunk("doors 7:00 pm"), aliasTable(t))
	times := factsOfType(facts, model.FactSetTime)
	require.Len(t, times, 1)
	assert.Equal(t, "19:00", times[0].Value.Display())
	assert.Equal(t, 0.8, times[0].Confidence)

	facts = PatternPass(chunk("meet at 7:00 pm"), aliasTable(t))
	times = factsOfType(facts, model.FactSetTime)
	require.Len(t, times, 1)
	assert.Equal(t, 0.5, times[0].Confidence)
}

func TestPatternPass_KnownCity(t *testing.T) {
	facts := PatternPass(chunk("two nights in Chicago then home"), aliasTable(t))

	cities := factsOfType(facts, model.FactCity)
	require.Len(t, cities, 1)
	assert.Equal(t, "Chicago", cities[0].Value.Display())
	assert.Equal(t, 0.7, cities[0].Confidence)
}

func TestPatternPass_CityNeedsWordBoundary(t *testing.T) {
	facts := PatternPass(chunk("the austinite crowd was loud"), aliasTable(t))
	assert.Empty(t, factsOfType(facts, model.FactCity))
}

func TestPatternPass_EmptyChunkYieldsNoFacts(t *testing.T) {
	assert.Empty(t, PatternPass(chunk(""), aliasTable(t)))
}

func TestPatternPass_ConfidenceAlwaysInRange(t *testing.T) {
	text := "Show: X\nDate: 2025-11-03\nGuarantee: $5,000\ndoors 7:00 pm, Chicago\nbob@x.com 612-555-0148"
	for _, f := range PatternPass(chunk(text), aliasTable(t)) {
		assert.GreaterOrEqual(t, f.Confidence, 0.0)
		assert.LessOrEqual(t, f.Confidence, 1.0)
		assert.NotNil(t, f.Value)
	}
}

func TestTypedValue_RejectsUnparseableShapes(t *testing.T) {
	_, ok := typedValue(model.FactDate, "sometime soon")
	assert.False(t, ok)

	_, ok = typedValue(model.FactGuarantee, "a handshake")
	assert.False(t, ok)

	_, ok = typedValue(model.FactContactEmail, "not-an-email")
	assert.False(t, ok)

	_, ok = typedValue(model.FactContactPhone, "555")
	assert.False(t, ok)
}

func TestTypedValue_GuaranteePlainNumber(t *testing.T) {
	v, ok := typedValue(model.FactGuarantee, "5,000")
	require.True(t, ok)
	assert.Equal(t, int64(500000), v.(model.MoneyValue).Cents)
}

func TestParseClock_Variants(t *testing.T) {
	v, ok := parseClock("9:30 pm")
	require.True(t, ok)
	assert.Equal(t, "21:30", v.Display())

	v, ok = parseClock("12:15 am")
	require.True(t, ok)
	assert.Equal(t, "00:15", v.Display())

	v, ok = parseClock("19:45")
	require.True(t, ok)
	assert.Equal(t, "19:45", v.Display())

	_, ok = parseClock("25:00")
	assert.False(t, ok)
}
