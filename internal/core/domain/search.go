package domain

import (
	"math"
	"time"
)

// IndexMetadata partitions and describes a vector entry.
type IndexMetadata struct {
	// Ticker is the partition key. Queries never cross tickers.
	Ticker string

	FilingType FilingType
	FiledDate  time.Time
	Section    SectionLabel
	DocumentID string
}

// IndexEntry is a chunk vector written to the shared index.
type IndexEntry struct {
	// ChunkID identifies the source chunk; upserts overwrite by this key.
	ChunkID string

	// Vector is the chunk embedding.
	Vector []float32

	// Metadata carries the ticker partition key and filing attributes.
	Metadata IndexMetadata
}

// SearchOptions configures a similarity search.
type SearchOptions struct {
	// Ticker restricts the search to one partition. Required.
	Ticker string

	// TopK is the maximum number of hits.
	TopK int

	// MinScore drops hits below this similarity.
	MinScore float64
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// Score is the cosine similarity.
	Score float64

	// Metadata is the stored entry metadata.
	Metadata IndexMetadata
}

// QueryRequest is a question about one company's filings.
type QueryRequest struct {
	// Question is the natural-language question.
	Question string

	// Ticker selects the index partition.
	Ticker string

	// SessionID optionally groups queries from one conversation.
	SessionID string
}

// Citation ties an answer to one retrieved chunk.
type Citation struct {
	ChunkID        string       `json:"chunk_id"`
	DocumentTitle  string       `json:"document_title"`
	FilingType     FilingType   `json:"filing_type"`
	FiledDate      time.Time    `json:"filed_date"`
	Section        SectionLabel `json:"section"`
	PageNumber     *int         `json:"page_number,omitempty"`
	Excerpt        string       `json:"excerpt"`
	RelevanceScore float64      `json:"relevance_score"`
	URL            string       `json:"url,omitempty"`
}

// QueryResult is a grounded answer.
type QueryResult struct {
	// Answer is the generated text, or the insufficient-information notice.
	Answer string `json:"answer"`

	// Citations are ordered by relevance.
	Citations []Citation `json:"citations"`

	// RelatedQuestions are optional follow-ups.
	RelatedQuestions []string `json:"related_questions"`

	// LatencyMs is the end-to-end answer time.
	LatencyMs int64 `json:"latency_ms"`
}

// InsufficientInformationAnswer is returned when no context clears the threshold.
const InsufficientInformationAnswer = "I don't have enough information in the indexed filings to answer that question. " +
	"Try rephrasing it, or ask about topics covered in the company's annual, quarterly, current, or proxy reports."

// QueryLog is the persisted record of one answered query.
type QueryLog struct {
	ID              string
	Question        string
	QuestionHash    string
	SessionID       string
	Ticker          string
	Answer          string
	LatencyMs       int64
	ChunksRetrieved int
	TopScore        float64
	Status          string
	Error           string
	CreatedAt       time.Time
}

// Query log statuses.
const (
	QueryStatusAnswered     = "answered"
	QueryStatusInsufficient = "insufficient"
	QueryStatusFailed       = "failed"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length or zero magnitude score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
