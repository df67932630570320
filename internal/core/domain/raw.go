package domain

import (
	"fmt"
	"time"
)

// FilingType is an SEC form category.
type FilingType string

// Supported filing categories.
const (
	// FilingType10K is the annual report.
	FilingType10K FilingType = "10-K"

	// FilingType10Q is the quarterly report.
	FilingType10Q FilingType = "10-Q"

	// FilingType8K is the material event report.
	FilingType8K FilingType = "8-K"

	// FilingTypeDEF14A is the proxy statement.
	FilingTypeDEF14A FilingType = "DEF 14A"
)

// DefaultFilingTypes are the categories fetched for every job.
func DefaultFilingTypes() []FilingType {
	return []FilingType{FilingType10K, FilingType10Q, FilingType8K, FilingTypeDEF14A}
}

// IsValid returns true if the filing type is recognised.
func (f FilingType) IsValid() bool {
	switch f {
	case FilingType10K, FilingType10Q, FilingType8K, FilingTypeDEF14A:
		return true
	default:
		return false
	}
}

// Description returns a human-readable label.
func (f FilingType) Description() string {
	switch f {
	case FilingType10K:
		return "Annual report"
	case FilingType10Q:
		return "Quarterly report"
	case FilingType8K:
		return "Current report"
	case FilingTypeDEF14A:
		return "Proxy statement"
	default:
		return string(f)
	}
}

// Company is a resolved issuer.
type Company struct {
	// Ticker is the upper-cased trading symbol.
	Ticker string `json:"ticker"`

	// Name is the registrant's conformed name.
	Name string `json:"name"`

	// CIK is the zero-padded 10 digit Central Index Key.
	CIK string `json:"cik"`
}

// RawFiling is a downloaded filing, owned by the retriever until parsed.
type RawFiling struct {
	// Ticker is the company the filing belongs to.
	Ticker string

	// CIK is the issuer identifier.
	CIK string

	// CompanyName is the registrant name at filing time.
	CompanyName string

	// AccessionNumber uniquely identifies the filing in the archive.
	AccessionNumber string

	// FilingType is the form category.
	FilingType FilingType

	// FiledDate is the date the filing was accepted.
	FiledDate time.Time

	// PeriodOfReport is the reporting period end, when present.
	PeriodOfReport *time.Time

	// PrimaryDocument is the file name of the main document.
	PrimaryDocument string

	// DocumentURL is the archive location.
	DocumentURL string

	// ContentType is the declared HTTP content type. It is a hint only.
	ContentType string

	// Content is the raw bytes.
	Content []byte

	// ContentHash is the hex SHA-256 of Content.
	ContentHash string
}

// Title returns a display title such as "ACME 10-K (2023-02-01)".
func (r *RawFiling) Title() string {
	return FilingTitle(r.Ticker, r.FilingType, r.FiledDate)
}

// FilingTitle formats a display title for a filing.
func FilingTitle(ticker string, ft FilingType, filed time.Time) string {
	return fmt.Sprintf("%s %s (%s)", ticker, ft, filed.Format(time.DateOnly))
}

// FilingFailure records a per-document failure during retrieval or parsing.
type FilingFailure struct {
	// AccessionNumber identifies the failed filing.
	AccessionNumber string

	// Phase is where the failure happened.
	Phase Phase

	// Reason is the failure detail.
	Reason string
}
