package ingest

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/normalize"
)

// FromSpreadsheet parses an xlsx workbook's first sheet. The header row is
// matched against the field alias table; each data row becomes a labeled
// block ("Show: X\nDate: Y\n...") so the extractor handles spreadsheet rows
// and labeled prose the same way. Columns with unrecognized headers are
// dropped.
func (b *Builder) FromSpreadsheet(fileName string, data []byte) (model.RawSource, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return model.RawSource{}, eris.Wrapf(err, "ingest: open spreadsheet %s", fileName)
	}
	if len(f.Sheets) == 0 {
		return model.RawSource{}, eris.Errorf("ingest: spreadsheet %s has no sheets", fileName)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return model.RawSource{}, eris.Errorf("ingest: spreadsheet %s has no data rows", fileName)
	}

	labels := headerLabels(sheet.Rows[0], b.aliases)
	if labels == nil {
		return model.RawSource{}, eris.Errorf("ingest: spreadsheet %s has no recognized columns", fileName)
	}

	var blocks []string
	for _, row := range sheet.Rows[1:] {
		block := rowBlock(row, labels)
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	if len(blocks) == 0 {
		return model.RawSource{}, eris.Errorf("ingest: spreadsheet %s has only empty rows", fileName)
	}

	norm := normalize.Text(strings.Join(blocks, "\n\n"))
	return model.RawSource{
		ID:        uuid.New().String(),
		Kind:      model.SourceSpreadsheet,
		FileName:  fileName,
		SizeBytes: int64(len(data)),
		RawText:   norm,
		WordCount: normalize.WordCount(norm),
	}, nil
}

// headerLabels maps column index to the canonical label emitted for that
// column, or nil when no header matches the alias table.
func headerLabels(header *xlsx.Row, aliases *model.AliasTable) map[int]string {
	labels := make(map[int]string)
	for i, cell := range header.Cells {
		raw := strings.TrimSpace(cell.String())
		if raw == "" {
			continue
		}
		if _, ok := aliases.Lookup(raw); ok {
			labels[i] = raw
		}
	}
	if len(labels) == 0 {
		return nil
	}
	return labels
}

func rowBlock(row *xlsx.Row, labels map[int]string) string {
	var lines []string
	for i, cell := range row.Cells {
		label, ok := labels[i]
		if !ok {
			continue
		}
		value := strings.TrimSpace(cell.String())
		if value == "" {
			continue
		}
		lines = append(lines, label+": "+value)
	}
	return strings.Join(lines, "\n")
}
