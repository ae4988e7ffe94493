package extract

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/showdeck/importer/internal/model"
)

// AIExtractor runs the slow structured pass over full normalized text.
type AIExtractor interface {
	ExtractStructured(ctx context.Context, text string) (*model.StructuredExtraction, error)
}

// Extractor produces typed facts from chunks. The pattern pass is always on;
// the AI pass is optional and degrades to pattern-only on failure.
type Extractor struct {
	aliases     *model.AliasTable
	ai          AIExtractor // nil disables the AI pass
	limiter     *rate.Limiter
	aiTimeout   time.Duration
	concurrency int
}

// Options tunes the extractor.
type Options struct {
	AITimeout   time.Duration
	Concurrency int
	// AIRequestsPerSecond paces calls to the AI provider. Zero means unpaced.
	AIRequestsPerSecond float64
}

// New creates an Extractor. ai may be nil for pattern-only operation.
func New(aliases *model.AliasTable, ai AIExtractor, opts Options) *Extractor {
	if opts.AITimeout <= 0 {
		opts.AITimeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	var limiter *rate.Limiter
	if opts.AIRequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.AIRequestsPerSecond), 1)
	}
	return &Extractor{
		aliases:     aliases,
		ai:          ai,
		limiter:     limiter,
		aiTimeout:   opts.AITimeout,
		concurrency: opts.Concurrency,
	}
}

// Extract runs the pattern pass over one chunk. Every returned fact has
// confidence in [0,1] and a non-nil value; absence of a field means no fact.
func (e *Extractor) Extract(chunk model.TextChunk) []model.Fact {
	return PatternPass(chunk, e.aliases)
}

// ExtractAll fans the pattern pass out across chunks with a concurrency cap
// and fans in before returning. Chunk order is preserved in the output so
// the resolver's first-seen tie-break is deterministic; Seq and IDs are
// assigned after the fan-in.
func (e *Extractor) ExtractAll(ctx context.Context, chunks []model.TextChunk) []model.Fact {
	if len(chunks) == 0 {
		return nil
	}

	perChunk := make([][]model.Fact, len(chunks))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, ch := range chunks {
		g.Go(func() error {
			perChunk[i] = PatternPass(ch, e.aliases)
			return nil
		})
	}
	_ = g.Wait()

	var facts []model.Fact
	seq := 0
	for i := range perChunk {
		for _, f := range perChunk[i] {
			f.ID = uuid.New().String()
			f.Seq = seq
			seq++
			facts = append(facts, f)
		}
	}
	return facts
}

// ExtractEnhanced runs the AI-assisted pass over the full normalized text,
// bounded by the configured timeout. Callers treat an error as a soft
// failure and continue with pattern-only facts.
func (e *Extractor) ExtractEnhanced(ctx context.Context, text string) (*model.StructuredExtraction, error) {
	if e.ai == nil {
		return nil, eris.New("extract: no AI extractor configured")
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "extract: rate limit wait")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()

	start := time.Now()
	se, err := e.ai.ExtractStructured(ctx, text)
	if err != nil {
		zap.L().Warn("extract: AI pass failed, degrading to pattern-only",
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err),
		)
		return nil, eris.Wrap(err, "extract: AI pass")
	}

	zap.L().Info("extract: AI pass complete",
		zap.Int("events", len(se.Events)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return se, nil
}

// FactsFromStructured converts an AI extraction into facts so the resolver
// merges AI and pattern observations under one policy. Guesses with empty
// values emit no fact; confidences are clamped to [0,1].
func FactsFromStructured(se *model.StructuredExtraction, sourceID string, startSeq int) []model.Fact {
	if se == nil {
		return nil
	}

	var facts []model.Fact
	seq := startSeq
	chunkIdx := -1
	add := func(ft model.FactType, v model.FactValue, conf float64) {
		if v == nil {
			return
		}
		facts = append(facts, model.Fact{
			ID:         uuid.New().String(),
			Type:       ft,
			Value:      v,
			SourceID:   sourceID,
			ChunkIndex: chunkIdx, // negative: whole-document pass, one slot per AI event
			Seq:        seq,
			Confidence: clamp01(conf),
			Origin:     model.OriginAI,
		})
		seq++
	}

	for i, ev := range se.Events {
		chunkIdx = -(i + 1)
		addGuess(add, model.FactEventTitle, ev.Title)
		addGuess(add, model.FactDate, ev.Date)
		addGuess(add, model.FactCity, ev.City)
		addGuess(add, model.FactVenueName, ev.VenueName)
		addGuess(add, model.FactSetTime, ev.SetTime)
		addGuess(add, model.FactGuarantee, ev.Guarantee)
		addGuess(add, model.FactNotes, ev.Notes)
		for _, c := range ev.Contacts {
			if c.Name != "" {
				add(model.FactContactName, model.TextValue{Text: c.Name}, 0.8)
			}
			if c.Email != "" {
				add(model.FactContactEmail, model.TextValue{Text: c.Email}, 0.85)
			}
			if c.Phone != "" {
				add(model.FactContactPhone, model.TextValue{Text: digitsOnly(c.Phone)}, 0.75)
			}
		}
	}
	return facts
}

type addFunc func(model.FactType, model.FactValue, float64)

func addGuess(add addFunc, ft model.FactType, g model.FieldGuess) {
	if g.Value == "" {
		return
	}
	v, ok := typedValue(ft, g.Value)
	if !ok {
		return
	}
	add(ft, v, g.Confidence)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// SortBySeq orders facts by first-seen sequence; used by tests and the
// resolver to re-establish deterministic order after map iteration.
func SortBySeq(facts []model.Fact) {
	sort.SliceStable(facts, func(i, j int) bool { return facts[i].Seq < facts[j].Seq })
}
