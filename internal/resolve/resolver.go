package resolve

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/normalize"
)

// Epsilon is the confidence gap below which two conflicting facts of the
// same type are considered tied and surfaced as ambiguous instead of
// auto-picked.
const Epsilon = 0.1

// AcceptThreshold is the minimum confidence for a resolution to count as
// resolved; a lone fact below it leaves the field unresolved.
const AcceptThreshold = 0.3

// Resolve merges one event group's facts into a candidate plus per-field
// resolutions. Deterministic: identical input produces identical output —
// ordering uses confidence, then canonical value, then first-seen sequence.
func Resolve(facts []model.Fact) (model.ImportCandidate, []model.Resolution) {
	byType := make(map[model.FactType][]model.Fact, len(model.AllFactTypes))
	for _, f := range facts {
		byType[f.Type] = append(byType[f.Type], f)
	}

	cand := model.ImportCandidate{
		ID:            uuid.New().String(),
		ConfidenceMap: make(model.ConfidenceMap, len(model.AllFactTypes)),
	}
	resolutions := make([]model.Resolution, 0, len(model.AllFactTypes))

	for _, ft := range model.AllFactTypes {
		res, selected := resolveGroup(ft, byType[ft])
		resolutions = append(resolutions, res)
		cand.ConfidenceMap[ft] = res.Confidence
		if res.State == model.StateResolved && selected != nil {
			applyField(&cand, ft, *selected)
		}
	}

	cand.Contacts = assembleContacts(byType, resolutions)
	cand.Resolutions = resolutions
	return cand, resolutions
}

// resolveGroup settles one fact type. Returns the resolution and, when
// resolved, the selected fact.
func resolveGroup(ft model.FactType, group []model.Fact) (model.Resolution, *model.Fact) {
	res := model.Resolution{Type: ft, State: model.StateUnresolved}
	if len(group) == 0 {
		return res, nil
	}

	// Highest confidence first; canonical value then first-seen order break
	// exact confidence ties so map iteration never leaks into the result.
	sorted := make([]model.Fact, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		ci, cj := canonicalKey(sorted[i]), canonicalKey(sorted[j])
		if ci != cj {
			return ci < cj
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	top := sorted[0]

	// Facts equivalent to the top after canonicalization merge into it; the
	// first materially different value is the potential conflict.
	var rival *model.Fact
	topKey := canonicalKey(top)
	for i := 1; i < len(sorted); i++ {
		if canonicalKey(sorted[i]) != topKey {
			rival = &sorted[i]
			break
		}
	}

	if rival != nil && top.Confidence-rival.Confidence < Epsilon {
		res.State = model.StateAmbiguous
		res.Confidence = top.Confidence
		res.CompetingValues = competingValues(sorted)
		zap.L().Debug("resolve: ambiguous field",
			zap.String("fact_type", string(ft)),
			zap.Strings("values", res.CompetingValues),
		)
		return res, nil
	}

	if top.Confidence < AcceptThreshold {
		return res, nil
	}

	res.State = model.StateResolved
	res.SelectedFactID = top.ID
	res.Confidence = top.Confidence
	return res, &top
}

// competingValues lists the distinct display values in rank order for
// reviewer presentation.
func competingValues(sorted []model.Fact) []string {
	seen := make(map[string]struct{}, len(sorted))
	var out []string
	for _, f := range sorted {
		key := canonicalKey(f)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f.Value.Display())
	}
	return out
}

// canonicalKey normalizes a fact's value for equivalence comparison: the
// same date written two ways, or the same venue with different casing, must
// compare equal so formatting differences never create ambiguity.
func canonicalKey(f model.Fact) string {
	switch f.Type {
	case model.FactEventTitle, model.FactVenueName, model.FactContactName:
		return normalize.Name(f.Value.Canonical())
	case model.FactCity:
		return normalize.City(f.Value.Canonical())
	case model.FactContactEmail:
		return strings.ToLower(strings.TrimSpace(f.Value.Canonical()))
	default:
		return f.Value.Canonical()
	}
}

func applyField(cand *model.ImportCandidate, ft model.FactType, f model.Fact) {
	switch ft {
	case model.FactEventTitle:
		cand.Title = f.Value.Display()
	case model.FactDate:
		cand.Date = f.Value.Display()
	case model.FactCity:
		cand.City = f.Value.Display()
	case model.FactVenueName:
		cand.VenueName = f.Value.Display()
	case model.FactSetTime:
		cand.SetTime = f.Value.Display()
	case model.FactGuarantee:
		if mv, ok := f.Value.(model.MoneyValue); ok {
			cand.GuaranteeCents = mv.Cents
		}
	case model.FactNotes:
		cand.Notes = f.Value.Display()
	}
}

// assembleContacts pairs resolved contact facts into one contact record.
// Ambiguous contact fields stay off the candidate; the reviewer sees them
// through the resolutions instead.
func assembleContacts(byType map[model.FactType][]model.Fact, resolutions []model.Resolution) []model.Contact {
	var c model.Contact
	for _, res := range resolutions {
		if res.State != model.StateResolved {
			continue
		}
		f := findFact(byType[res.Type], res.SelectedFactID)
		if f == nil {
			continue
		}
		switch res.Type {
		case model.FactContactName:
			c.Name = f.Value.Display()
		case model.FactContactEmail:
			c.Email = f.Value.Display()
		case model.FactContactPhone:
			c.Phone = f.Value.Display()
		}
	}
	if c == (model.Contact{}) {
		return nil
	}
	return []model.Contact{c}
}

func findFact(group []model.Fact, id string) *model.Fact {
	for i := range group {
		if group[i].ID == id {
			return &group[i]
		}
	}
	return nil
}

// chunkRef identifies one chunk of one source.
type chunkRef struct {
	source string
	index  int
}

// SplitEvents partitions a job's facts into per-event groups by distinct
// canonical date, at chunk granularity: a chunk mentioning exactly one date
// belongs to that date's event; chunks with zero or several dates are shared
// context appended to every group.
//
// Distinct dates split into separate events only when the submission itself
// describes several events: several dates inside one chunk or one source, or
// date-bearing sources that also disagree on an identity field (title or
// venue). Two sources each naming a single date for what reads as the same
// show are a date conflict, not two shows; those facts stay in one group so
// resolution surfaces the date as ambiguous.
func SplitEvents(facts []model.Fact) [][]model.Fact {
	chunkDates := make(map[chunkRef]map[string]struct{})
	sourceDates := make(map[string]map[string]struct{})
	dates := make(map[string]struct{})
	for _, f := range facts {
		if f.Type != model.FactDate {
			continue
		}
		key := chunkRef{f.SourceID, f.ChunkIndex}
		if chunkDates[key] == nil {
			chunkDates[key] = make(map[string]struct{})
		}
		if sourceDates[f.SourceID] == nil {
			sourceDates[f.SourceID] = make(map[string]struct{})
		}
		d := f.Value.Canonical()
		chunkDates[key][d] = struct{}{}
		sourceDates[f.SourceID][d] = struct{}{}
		dates[d] = struct{}{}
	}

	if len(dates) <= 1 || !describesMultipleEvents(facts, sourceDates) {
		if len(facts) == 0 {
			return [][]model.Fact{nil}
		}
		return [][]model.Fact{facts}
	}

	ordered := make([]string, 0, len(dates))
	for d := range dates {
		ordered = append(ordered, d)
	}
	sort.Strings(ordered)

	groupIdx := make(map[string]int, len(ordered))
	for i, d := range ordered {
		groupIdx[d] = i
	}

	groups := make([][]model.Fact, len(ordered))
	for _, f := range facts {
		key := chunkRef{f.SourceID, f.ChunkIndex}
		ds := chunkDates[key]
		if len(ds) == 1 {
			for d := range ds {
				groups[groupIdx[d]] = append(groups[groupIdx[d]], f)
			}
			continue
		}
		// Shared context: date facts go to their own group, everything else
		// to all groups.
		if f.Type == model.FactDate {
			groups[groupIdx[f.Value.Canonical()]] = append(groups[groupIdx[f.Value.Canonical()]], f)
			continue
		}
		for i := range groups {
			groups[i] = append(groups[i], f)
		}
	}
	return groups
}

// describesMultipleEvents decides whether the distinct dates in a fact set
// are separate shows or one show with a date conflict. Any single source
// carrying two or more distinct dates is describing several shows (this also
// covers several dates inside one chunk). Otherwise every source names at
// most one date, and only an identity disagreement between date-bearing
// sources counts as evidence of separate shows.
func describesMultipleEvents(facts []model.Fact, sourceDates map[string]map[string]struct{}) bool {
	for _, ds := range sourceDates {
		if len(ds) > 1 {
			return true
		}
	}
	return identityDiffers(facts, sourceDates)
}

// identityDiffers reports whether two date-bearing sources name materially
// different titles or venues. Sources agreeing on identity, or silent about
// it, read as one show.
func identityDiffers(facts []model.Fact, sourceDates map[string]map[string]struct{}) bool {
	for _, ft := range []model.FactType{model.FactEventTitle, model.FactVenueName} {
		perSource := make(map[string]map[string]struct{})
		for _, f := range facts {
			if f.Type != ft {
				continue
			}
			if _, dated := sourceDates[f.SourceID]; !dated {
				continue
			}
			if perSource[f.SourceID] == nil {
				perSource[f.SourceID] = make(map[string]struct{})
			}
			perSource[f.SourceID][canonicalKey(f)] = struct{}{}
		}

		srcs := make([]string, 0, len(perSource))
		for src := range perSource {
			srcs = append(srcs, src)
		}
		for i := 0; i < len(srcs); i++ {
			for j := i + 1; j < len(srcs); j++ {
				if disjoint(perSource[srcs[i]], perSource[srcs[j]]) {
					return true
				}
			}
		}
	}
	return false
}

func disjoint(a, b map[string]struct{}) bool {
	for v := range a {
		if _, ok := b[v]; ok {
			return false
		}
	}
	return len(a) > 0 && len(b) > 0
}

// MergeConfidence folds candidate confidence maps into the job-level map,
// keeping the max per fact type.
func MergeConfidence(maps ...model.ConfidenceMap) model.ConfidenceMap {
	out := make(model.ConfidenceMap)
	for _, m := range maps {
		for ft, c := range m {
			if c > out[ft] {
				out[ft] = c
			}
		}
	}
	return out
}
