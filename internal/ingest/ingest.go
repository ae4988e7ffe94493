package ingest

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/normalize"
	"github.com/showdeck/importer/pkg/textextract"
)

// LowTextWordThreshold marks file sources whose extracted text is too thin to
// extract from; such sources flow into the documents-only fallback.
const LowTextWordThreshold = 25

// Builder turns user submissions into RawSources. File bytes go through the
// external text-extraction service; pasted text, emails and spreadsheets are
// handled locally.
type Builder struct {
	extractor textextract.Client
	aliases   *model.AliasTable
}

// NewBuilder creates a Builder. extractor may be nil, in which case file
// sources are accepted only when the caller supplies pre-extracted text.
func NewBuilder(extractor textextract.Client, aliases *model.AliasTable) *Builder {
	return &Builder{extractor: extractor, aliases: aliases}
}

// FromPasted captures freeform pasted text.
func (b *Builder) FromPasted(text string) model.RawSource {
	norm := normalize.Text(text)
	return model.RawSource{
		ID:        uuid.New().String(),
		Kind:      model.SourcePasted,
		RawText:   norm,
		WordCount: normalize.WordCount(norm),
	}
}

// FromFileText captures a file whose text was already extracted upstream.
func (b *Builder) FromFileText(fileName, mimeType string, sizeBytes int64, text string, pageCount int) model.RawSource {
	norm := normalize.Text(text)
	words := normalize.WordCount(norm)
	return model.RawSource{
		ID:        uuid.New().String(),
		Kind:      model.SourceFile,
		FileName:  fileName,
		MimeType:  mimeType,
		SizeBytes: sizeBytes,
		RawText:   norm,
		PageCount: pageCount,
		WordCount: words,
		IsLowText: words < LowTextWordThreshold,
	}
}

// FromFile sends raw file bytes to the extraction service. Extraction
// failures degrade to an empty low-text source rather than failing the job;
// the pipeline surfaces such files as document references.
func (b *Builder) FromFile(ctx context.Context, fileName, mimeType string, data []byte) (model.RawSource, error) {
	if b.extractor == nil {
		return model.RawSource{}, eris.New("ingest: no text extraction service configured")
	}

	result, err := b.extractor.Extract(ctx, fileName, mimeType, data)
	if err != nil {
		zap.L().Warn("text extraction failed, keeping file as document only",
			zap.String("file", fileName),
			zap.Error(err))
		return model.RawSource{
			ID:        uuid.New().String(),
			Kind:      model.SourceFile,
			FileName:  fileName,
			MimeType:  mimeType,
			SizeBytes: int64(len(data)),
			IsLowText: true,
		}, nil
	}

	src := b.FromFileText(fileName, mimeType, int64(len(data)), result.Text, result.PageCount)
	if result.IsLowText {
		src.IsLowText = true
	}
	return src, nil
}
