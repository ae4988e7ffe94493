package model

import (
	"fmt"
	"time"
)

// FactType identifies what a single extracted observation is about.
type FactType string

const (
	FactEventTitle   FactType = "event_title"
	FactDate         FactType = "date"
	FactCity         FactType = "city"
	FactVenueName    FactType = "venue_name"
	FactSetTime      FactType = "set_time"
	FactGuarantee    FactType = "guarantee"
	FactContactName  FactType = "contact_name"
	FactContactEmail FactType = "contact_email"
	FactContactPhone FactType = "contact_phone"
	FactNotes        FactType = "notes"
)

// AllFactTypes lists every fact type in resolver output order.
var AllFactTypes = []FactType{
	FactEventTitle, FactDate, FactCity, FactVenueName, FactSetTime,
	FactGuarantee, FactContactName, FactContactEmail, FactContactPhone, FactNotes,
}

// FactOrigin records which extraction pass produced a fact.
type FactOrigin string

const (
	OriginPattern FactOrigin = "pattern"
	OriginAI      FactOrigin = "ai"
)

// ValueKind discriminates FactValue variants.
type ValueKind string

const (
	KindText  ValueKind = "text"
	KindDate  ValueKind = "date"
	KindMoney ValueKind = "money"
	KindClock ValueKind = "clock"
)

// FactValue is the typed payload of a Fact. Each fact type carries exactly
// one variant; the resolver compares values through Canonical so that the
// same date written two ways merges instead of conflicting.
type FactValue interface {
	Kind() ValueKind
	// Canonical returns the normalized comparison form of the value.
	Canonical() string
	// Display returns the value as it should appear on a candidate.
	Display() string
}

// TextValue is free text: titles, venue names, cities, contacts, notes.
type TextValue struct {
	Text string `json:"text"`
}

func (v TextValue) Kind() ValueKind   { return KindText }
func (v TextValue) Display() string   { return v.Text }
func (v TextValue) Canonical() string { return v.Text }

// DateValue is a calendar date parsed from any supported written form.
type DateValue struct {
	Raw  string    `json:"raw"`
	Date time.Time `json:"date"`
}

func (v DateValue) Kind() ValueKind   { return KindDate }
func (v DateValue) Display() string   { return v.Date.Format("2006-01-02") }
func (v DateValue) Canonical() string { return v.Date.Format("2006-01-02") }

// MoneyValue is a currency amount in integer cents.
type MoneyValue struct {
	Raw      string `json:"raw"`
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
}

func (v MoneyValue) Kind() ValueKind { return KindMoney }
func (v MoneyValue) Display() string {
	return fmt.Sprintf("%s%d.%02d", currencySymbol(v.Currency), v.Cents/100, v.Cents%100)
}
func (v MoneyValue) Canonical() string {
	return fmt.Sprintf("%s:%d", v.Currency, v.Cents)
}

func currencySymbol(code string) string {
	switch code {
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	default:
		return "$"
	}
}

// ClockValue is a time of day (set time, doors).
type ClockValue struct {
	Raw    string `json:"raw"`
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
}

func (v ClockValue) Kind() ValueKind   { return KindClock }
func (v ClockValue) Display() string   { return fmt.Sprintf("%02d:%02d", v.Hour, v.Minute) }
func (v ClockValue) Canonical() string { return v.Display() }

// Fact is a single typed observation extracted from one chunk.
type Fact struct {
	ID         string     `json:"id"`
	Type       FactType   `json:"type"`
	Value      FactValue  `json:"value"`
	SourceID   string     `json:"source_id"`
	ChunkIndex int        `json:"chunk_index"`
	Seq        int        `json:"seq"` // first-seen order across the whole job
	Confidence float64    `json:"confidence"`
	Origin     FactOrigin `json:"origin"`
}
