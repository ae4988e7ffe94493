package job

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/showdeck/importer/internal/chunker"
	"github.com/showdeck/importer/internal/dupes"
	"github.com/showdeck/importer/internal/extract"
	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/resolve"
)

// Pipeline runs one extraction pass: chunk, extract, resolve, match.
type Pipeline struct {
	chunker   *chunker.Chunker
	extractor *extract.Extractor
	matcher   *dupes.Matcher // nil skips duplicate matching
}

// NewPipeline wires the pipeline stages. matcher may be nil when no catalog
// is available.
func NewPipeline(ch *chunker.Chunker, ex *extract.Extractor, matcher *dupes.Matcher) *Pipeline {
	return &Pipeline{chunker: ch, extractor: ex, matcher: matcher}
}

// Run executes the pipeline over a job's sources. Returns the result, the
// soft errors collected along the way (degraded AI passes, catalog read
// failures), and a hard error only when nothing useful could run at all.
func (p *Pipeline) Run(ctx context.Context, job *model.ImportJob) (*model.ImportResult, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: context")
	}

	var chunks []model.TextChunk
	for _, src := range job.Sources {
		if src.RawText == "" {
			continue
		}
		chunks = append(chunks, p.chunker.Chunk(src)...)
	}

	facts := p.extractor.ExtractAll(ctx, chunks)
	zap.L().Debug("pipeline: pattern pass complete",
		zap.String("job_id", job.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int("facts", len(facts)),
	)

	var softErrs []string
	var structured *model.StructuredExtraction
	if job.Mode == model.ModeAIAssisted {
		se, err := p.extractor.ExtractEnhanced(ctx, combinedText(job.Sources))
		if err != nil {
			// Degrade to pattern-only; the job still completes.
			softErrs = append(softErrs, "ai extraction degraded: "+err.Error())
		} else {
			structured = se
			facts = append(facts, extract.FactsFromStructured(se, job.ID, len(facts))...)
		}
	}

	result := &model.ImportResult{}
	var confMaps []model.ConfidenceMap
	for _, group := range resolve.SplitEvents(facts) {
		cand, _ := resolve.Resolve(group)
		cand.Structured = structured

		if p.matcher != nil {
			matches, err := p.matcher.FindDuplicates(ctx, job.OrgID, cand)
			if err != nil {
				// Candidates without duplicate hints are still reviewable.
				softErrs = append(softErrs, "duplicate matching skipped: "+err.Error())
			} else {
				cand.Duplicates = matches
			}
		}

		result.Candidates = append(result.Candidates, cand)
		confMaps = append(confMaps, cand.ConfidenceMap)
	}
	result.ConfidenceMap = resolve.MergeConfidence(confMaps...)

	lowText := false
	for _, src := range job.Sources {
		if src.Kind != model.SourceFile && src.Kind != model.SourceSpreadsheet {
			continue
		}
		if src.IsLowText {
			lowText = true
			result.Documents = append(result.Documents, model.DocumentRef{
				FileName:  src.FileName,
				MimeType:  src.MimeType,
				SizeBytes: src.SizeBytes,
				PageCount: src.PageCount,
				LowText:   true,
			})
		}
	}
	if lowText {
		result.Warnings = append(result.Warnings, model.WarnLowText)
	}

	return result, softErrs, nil
}

// combinedText joins all source texts for the whole-document AI pass.
func combinedText(sources []model.RawSource) string {
	var parts []string
	for _, s := range sources {
		if s.RawText != "" {
			parts = append(parts, s.RawText)
		}
	}
	return strings.Join(parts, "\n\n")
}
