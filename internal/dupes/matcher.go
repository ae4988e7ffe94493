package dupes

import (
	"context"
	"sort"
	"time"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/normalize"
)

// CatalogStore reads existing org records for comparison. The matcher never
// writes through it.
type CatalogStore interface {
	ShowsByOrg(ctx context.Context, orgID string) ([]model.Show, error)
	VenuesByOrg(ctx context.Context, orgID string) ([]model.Venue, error)
}

// Similarity weights and bounds. Name dominates; an exact date adds strong
// evidence, a neighboring date half of that; city is a weak corroborator.
// An exact name+date+city match scores 1.0.
const (
	weightName     = 0.5
	weightDate     = 0.3
	weightDateNear = 0.15
	weightCity     = 0.2

	DefaultMinScore = 0.55
	DefaultTopN     = 5
)

// Matcher scores candidates against the org catalog.
type Matcher struct {
	catalog  CatalogStore
	minScore float64
	topN     int
}

// New creates a Matcher. Non-positive threshold/topN fall back to defaults.
func New(catalog CatalogStore, minScore float64, topN int) *Matcher {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Matcher{catalog: catalog, minScore: minScore, topN: topN}
}

// FindDuplicates ranks existing shows and venues against a candidate.
// Returns at most topN matches, all scoring at or above the minimum,
// sorted descending. An org with no comparable records yields an empty
// list, not an error.
func (m *Matcher) FindDuplicates(ctx context.Context, orgID string, cand model.ImportCandidate) ([]model.DuplicateMatch, error) {
	var matches []model.DuplicateMatch

	if cand.Title != "" || cand.Date != "" {
		shows, err := m.catalog.ShowsByOrg(ctx, orgID)
		if err != nil {
			return nil, eris.Wrap(err, "dupes: load shows")
		}
		for _, s := range shows {
			if dm, ok := m.scoreShow(cand, s); ok {
				matches = append(matches, dm)
			}
		}
	}

	if cand.VenueName != "" {
		venues, err := m.catalog.VenuesByOrg(ctx, orgID)
		if err != nil {
			return nil, eris.Wrap(err, "dupes: load venues")
		}
		for _, v := range venues {
			if dm, ok := m.scoreVenue(cand, v); ok {
				matches = append(matches, dm)
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].EntityID < matches[j].EntityID
	})
	if len(matches) > m.topN {
		matches = matches[:m.topN]
	}

	if len(matches) > 0 {
		zap.L().Debug("dupes: matches found",
			zap.String("org_id", orgID),
			zap.Int("count", len(matches)),
			zap.Float64("top_score", matches[0].Score),
		)
	}
	return matches, nil
}

func (m *Matcher) scoreShow(cand model.ImportCandidate, s model.Show) (model.DuplicateMatch, bool) {
	var score float64
	var fields []string

	if cand.Title != "" && s.Title != "" {
		sim := nameSimilarity(cand.Title, s.Title)
		score += weightName * sim
		if sim >= 0.8 {
			fields = append(fields, "title")
		}
	}

	if cand.Date != "" && s.Date != "" {
		switch dateProximity(cand.Date, s.Date) {
		case dateExact:
			score += weightDate
			fields = append(fields, "date")
		case dateAdjacent:
			score += weightDateNear
			fields = append(fields, "date±1")
		}
	}

	if cand.City != "" && s.City != "" && normalize.City(cand.City) == normalize.City(s.City) {
		score += weightCity
		fields = append(fields, "city")
	}

	if score < m.minScore {
		return model.DuplicateMatch{}, false
	}
	return model.DuplicateMatch{
		EntityID:      s.ID,
		EntityType:    model.EntityShow,
		EntityName:    s.Title,
		Score:         round2(score),
		MatchedFields: fields,
	}, true
}

// scoreVenue scores a venue on name plus city only; dates don't apply, so
// the remaining weight shifts onto the name.
func (m *Matcher) scoreVenue(cand model.ImportCandidate, v model.Venue) (model.DuplicateMatch, bool) {
	sim := nameSimilarity(cand.VenueName, v.Name)
	score := (weightName + weightDate) * sim

	var fields []string
	if sim >= 0.8 {
		fields = append(fields, "venue_name")
	}
	if cand.City != "" && v.City != "" && normalize.City(cand.City) == normalize.City(v.City) {
		score += weightCity
		fields = append(fields, "city")
	}

	if score < m.minScore {
		return model.DuplicateMatch{}, false
	}
	return model.DuplicateMatch{
		EntityID:      v.ID,
		EntityType:    model.EntityVenue,
		EntityName:    v.Name,
		Score:         round2(score),
		MatchedFields: fields,
	}, true
}

// nameSimilarity compares names case/punctuation-insensitively via
// Levenshtein similarity over the normalized forms.
func nameSimilarity(a, b string) float64 {
	na, nb := normalize.Name(a), normalize.Name(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return levenshtein.Similarity(na, nb, nil)
}

type proximity int

const (
	dateFar proximity = iota
	dateAdjacent
	dateExact
)

// dateProximity compares two canonical dates: exact, within one day, or far.
func dateProximity(a, b string) proximity {
	if a == b {
		return dateExact
	}
	da, errA := time.Parse("2006-01-02", a)
	db, errB := time.Parse("2006-01-02", b)
	if errA != nil || errB != nil {
		return dateFar
	}
	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	if diff <= 24*time.Hour {
		return dateAdjacent
	}
	return dateFar
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
