package model

// SourceKind distinguishes how a raw source entered the import.
type SourceKind string

const (
	SourcePasted      SourceKind = "pasted"
	SourceFile        SourceKind = "file"
	SourceEmail       SourceKind = "email"
	SourceSpreadsheet SourceKind = "spreadsheet"
)

// RawSource is one user-submitted input unit. Immutable once captured;
// downstream chunks reference it by ID and never mutate it.
type RawSource struct {
	ID        string     `json:"id"`
	Kind      SourceKind `json:"kind"`
	FileName  string     `json:"file_name,omitempty"`
	MimeType  string     `json:"mime_type,omitempty"`
	SizeBytes int64      `json:"size_bytes,omitempty"`
	RawText   string     `json:"raw_text"`
	PageCount int        `json:"page_count,omitempty"`
	WordCount int        `json:"word_count"`
	IsLowText bool       `json:"is_low_text,omitempty"`
}

// TextChunk is a bounded slice of one source's normalized text.
// Discarded after extraction, never persisted.
type TextChunk struct {
	SourceID string `json:"source_id"`
	Index    int    `json:"index"`
	Text     string `json:"text"`
}

// DocumentRef describes a non-text attachment surfaced on a completed job
// when the documents-only fallback fires.
type DocumentRef struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	PageCount int    `json:"page_count,omitempty"`
	LowText   bool   `json:"low_text"`
}
