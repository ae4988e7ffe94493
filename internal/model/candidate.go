package model

// ResolutionState tracks the resolver's bookkeeping per candidate field.
type ResolutionState string

const (
	StateUnresolved ResolutionState = "unresolved"
	StateAmbiguous  ResolutionState = "ambiguous"
	StateResolved   ResolutionState = "resolved"
)

// Resolution records how one fact type was (or was not) settled.
// State resolved requires SelectedFactID set; ambiguous means two or more
// facts had comparable confidence and materially different values, so no
// auto-selection was made.
type Resolution struct {
	Type           FactType        `json:"type"`
	State          ResolutionState `json:"state"`
	SelectedFactID string          `json:"selected_fact_id,omitempty"`
	Confidence     float64         `json:"confidence"`
	// CompetingValues carries the display values a reviewer must pick
	// between when State is ambiguous.
	CompetingValues []string `json:"competing_values,omitempty"`
}

// ConfidenceMap maps fact type to resolved confidence (0 for unresolved).
type ConfidenceMap map[FactType]float64

// Contact is a resolved person attached to a candidate.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ImportCandidate is one detected show/event assembled from resolved facts.
// Fields are empty when no fact of that type resolved above threshold.
// Never auto-committed to the primary entity tables; a human reviewer
// accepts, edits, or rejects it.
type ImportCandidate struct {
	ID             string                `json:"id"`
	Title          string                `json:"title,omitempty"`
	Date           string                `json:"date,omitempty"` // canonical 2006-01-02
	City           string                `json:"city,omitempty"`
	VenueName      string                `json:"venue_name,omitempty"`
	SetTime        string                `json:"set_time,omitempty"` // HH:MM
	GuaranteeCents int64                 `json:"guarantee_cents,omitempty"`
	Notes          string                `json:"notes,omitempty"`
	Contacts       []Contact             `json:"contacts,omitempty"`
	Structured     *StructuredExtraction `json:"structured,omitempty"`
	Resolutions    []Resolution          `json:"resolutions"`
	ConfidenceMap  ConfidenceMap         `json:"confidence_map"`
	Duplicates     []DuplicateMatch      `json:"duplicates,omitempty"`
}

// FieldGuess is one AI-reported field value with its self-reported confidence.
type FieldGuess struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractedEvent is one event detected by the AI pass.
type ExtractedEvent struct {
	Title     FieldGuess `json:"title"`
	Date      FieldGuess `json:"date"`
	City      FieldGuess `json:"city"`
	VenueName FieldGuess `json:"venue_name"`
	SetTime   FieldGuess `json:"set_time"`
	Guarantee FieldGuess `json:"guarantee"`
	Notes     FieldGuess `json:"notes"`
	Contacts  []Contact  `json:"contacts,omitempty"`
}

// StructuredExtraction is the full payload of one AI-assisted pass over the
// normalized text. Replaced wholesale on enhance re-runs.
type StructuredExtraction struct {
	Events []ExtractedEvent `json:"events"`
	Model  string           `json:"model,omitempty"`
}
