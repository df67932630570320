package domain

import (
	"fmt"
	"time"
)

// DocumentFormat is the closed set of parser variants.
type DocumentFormat string

// Parser variants, selected by content sniffing.
const (
	// FormatHTML is structured markup.
	FormatHTML DocumentFormat = "html"

	// FormatXBRL is inline XBRL or other financial markup.
	FormatXBRL DocumentFormat = "xbrl"

	// FormatText is plain text, and the safe default.
	FormatText DocumentFormat = "text"
)

// SectionLabel is the stable section vocabulary shared by parsers and chunker.
type SectionLabel string

// Section labels.
const (
	SectionRiskFactors          SectionLabel = "risk-factors"
	SectionFinancialStatements  SectionLabel = "financial-statements"
	SectionManagementDiscussion SectionLabel = "management-discussion"
	SectionOther                SectionLabel = "other"
)

// IsValid returns true if the label belongs to the vocabulary.
func (s SectionLabel) IsValid() bool {
	switch s {
	case SectionRiskFactors, SectionFinancialStatements, SectionManagementDiscussion, SectionOther:
		return true
	default:
		return false
	}
}

// Section is a labelled span of a parsed document.
type Section struct {
	// Label is the section vocabulary entry.
	Label SectionLabel

	// Title is the heading text that opened the section, if any.
	Title string

	// Text is the normalised section body.
	Text string
}

// ParsedDocument is the normalised form of one filing. Immutable once produced.
type ParsedDocument struct {
	// ID is stable for a given ticker and accession number.
	ID string

	Ticker          string
	AccessionNumber string
	FilingType      FilingType
	FiledDate       time.Time
	URL             string
	ContentHash     string

	// Title is a human-readable name for citations.
	Title string

	// Format is the parser variant that produced the document.
	Format DocumentFormat

	// Text is the full normalised text.
	Text string

	// Sections are ordered spans covering the document.
	Sections []Section
}

// Chunk is a retrievable span of a document.
// Chunks are never mutated after creation.
type Chunk struct {
	// ID is derived from DocumentID and ChunkIndex.
	ID string

	// DocumentID links to the parent ParsedDocument.
	DocumentID string

	// ChunkIndex is the position within the document.
	ChunkIndex int

	// Section is the label of the span the chunk came from.
	Section SectionLabel

	// PageNumber is set when the source carries page breaks.
	PageNumber *int

	// Text is the chunk content.
	Text string

	// TokenEstimate approximates the embedding token count.
	TokenEstimate int

	// Metadata carries post-processor annotations.
	Metadata map[string]any
}

// DocumentID returns the stable identifier for a ticker's filing.
func DocumentID(ticker, accessionNumber string) string {
	return NormaliseTicker(ticker) + "-" + accessionNumber
}

// ChunkID returns the stable identifier for a chunk position.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:%04d", documentID, index)
}

// EstimateTokens approximates tokens at four characters per token.
func EstimateTokens(text string) int {
	n := (len(text) + 3) / 4
	if n == 0 && text != "" {
		return 1
	}
	return n
}

// DocumentStatus tracks a document through the pipeline.
type DocumentStatus string

// Document statuses.
const (
	DocumentDownloaded DocumentStatus = "downloaded"
	DocumentParsed     DocumentStatus = "parsed"
	DocumentChunked    DocumentStatus = "chunked"
	DocumentIndexed    DocumentStatus = "indexed"
	DocumentFailed     DocumentStatus = "failed"
)

// DocumentRecord is the persisted metadata for a filing document.
type DocumentRecord struct {
	ID              string
	JobID           string
	Ticker          string
	AccessionNumber string
	FilingType      FilingType
	FiledDate       time.Time
	URL             string
	Title           string
	Format          DocumentFormat
	ContentHash     string
	Status          DocumentStatus
	Error           string
	TotalChunks     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RecordFor builds a document record from a parsed document.
func RecordFor(jobID string, doc *ParsedDocument, status DocumentStatus) DocumentRecord {
	return DocumentRecord{
		ID:              doc.ID,
		JobID:           jobID,
		Ticker:          doc.Ticker,
		AccessionNumber: doc.AccessionNumber,
		FilingType:      doc.FilingType,
		FiledDate:       doc.FiledDate,
		URL:             doc.URL,
		Title:           doc.Title,
		Format:          doc.Format,
		ContentHash:     doc.ContentHash,
		Status:          status,
	}
}

// FailedRecordFor builds a failed document record for a filing that never parsed.
func FailedRecordFor(jobID string, raw *RawFiling, reason string) DocumentRecord {
	return DocumentRecord{
		ID:              DocumentID(raw.Ticker, raw.AccessionNumber),
		JobID:           jobID,
		Ticker:          raw.Ticker,
		AccessionNumber: raw.AccessionNumber,
		FilingType:      raw.FilingType,
		FiledDate:       raw.FiledDate,
		URL:             raw.DocumentURL,
		Title:           raw.Title(),
		ContentHash:     raw.ContentHash,
		Status:          DocumentFailed,
		Error:           reason,
	}
}
