package model

// EntityType is the kind of existing record a duplicate match points at.
type EntityType string

const (
	EntityShow  EntityType = "show"
	EntityVenue EntityType = "venue"
)

// DuplicateMatch is a ranked existing-record match for a candidate.
// Computed fresh on every run; persisted only inside the owning candidate's
// snapshot in the job record.
type DuplicateMatch struct {
	EntityID      string     `json:"entity_id"`
	EntityType    EntityType `json:"entity_type"`
	EntityName    string     `json:"entity_name"`
	Score         float64    `json:"score"`
	MatchedFields []string   `json:"matched_fields"`
}

// Show is an existing org show record, read-only from this pipeline's
// perspective.
type Show struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Title     string `json:"title"`
	Date      string `json:"date"` // canonical 2006-01-02
	City      string `json:"city,omitempty"`
	VenueName string `json:"venue_name,omitempty"`
}

// Venue is an existing org venue record.
type Venue struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
	City  string `json:"city,omitempty"`
}
