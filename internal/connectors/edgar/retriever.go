package edgar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

var _ driven.FilingRetriever = (*Retriever)(nil)

// submissions is the subset of CIK##########.json we read.
type submissions struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent recentFilings `json:"recent"`
	} `json:"filings"`
}

// recentFilings holds parallel arrays, one element per filing.
type recentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// Retriever lists and downloads filings.
type Retriever struct {
	client *Client
}

// NewRetriever creates a retriever. Concurrency is left to the caller.
func NewRetriever(client *Client) *Retriever {
	return &Retriever{client: client}
}

// ListFilings reads the issuer's submissions index once and returns the
// filings in the window, newest first, one per accession number.
func (r *Retriever) ListFilings(ctx context.Context, req driven.FetchRequest) ([]driven.FilingListing, error) {
	cik, err := strconv.ParseInt(strings.TrimLeft(req.Company.CIK, "0"), 10, 64)
	if err != nil || cik <= 0 {
		return nil, fmt.Errorf("%w: invalid CIK %q", domain.ErrInvalidInput, req.Company.CIK)
	}

	var subs submissions
	url := fmt.Sprintf("%s/submissions/CIK%s.json", r.client.DataURL(), FormatCIK(cik))
	if err := r.client.GetJSON(ctx, url, &subs); err != nil {
		return nil, fmt.Errorf("load submissions for %s: %w", req.Company.Ticker, err)
	}

	types := req.FilingTypes
	if len(types) == 0 {
		types = domain.DefaultFilingTypes()
	}
	wanted := make(map[string]domain.FilingType, len(types))
	for _, t := range types {
		wanted[string(t)] = t
	}

	start := dayOf(req.Start)
	end := dayOf(req.End)
	recent := subs.Filings.Recent
	seen := make(map[string]bool)
	var listings []driven.FilingListing

	for i, acc := range recent.AccessionNumber {
		ft, ok := wanted[at(recent.Form, i)]
		if !ok || acc == "" || seen[acc] {
			continue
		}
		filed, err := time.Parse(time.DateOnly, at(recent.FilingDate, i))
		if err != nil {
			continue
		}
		if (!start.IsZero() && filed.Before(start)) || (!end.IsZero() && filed.After(end)) {
			continue
		}
		primary := at(recent.PrimaryDocument, i)
		if primary == "" {
			continue
		}
		seen[acc] = true

		listing := driven.FilingListing{
			AccessionNumber: acc,
			FilingType:      ft,
			FiledDate:       filed,
			PrimaryDocument: primary,
			DocumentURL:     r.documentURL(cik, acc, primary),
		}
		if period, err := time.Parse(time.DateOnly, at(recent.ReportDate, i)); err == nil {
			listing.PeriodOfReport = &period
		}
		listings = append(listings, listing)
	}

	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].FiledDate.After(listings[j].FiledDate)
	})
	return listings, nil
}

// Download fetches one filing's primary document.
func (r *Retriever) Download(ctx context.Context, company domain.Company, listing driven.FilingListing) (*domain.RawFiling, error) {
	resp, err := r.client.Get(ctx, listing.DocumentURL)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, listing.AccessionNumber)
	}

	sum := sha256.Sum256(resp.Body)
	return &domain.RawFiling{
		Ticker:          company.Ticker,
		CIK:             company.CIK,
		CompanyName:     company.Name,
		AccessionNumber: listing.AccessionNumber,
		FilingType:      listing.FilingType,
		FiledDate:       listing.FiledDate,
		PeriodOfReport:  listing.PeriodOfReport,
		PrimaryDocument: listing.PrimaryDocument,
		DocumentURL:     listing.DocumentURL,
		ContentType:     resp.ContentType,
		Content:         resp.Body,
		ContentHash:     hex.EncodeToString(sum[:]),
	}, nil
}

func (r *Retriever) documentURL(cik int64, accession, primary string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%d/%s/%s",
		r.client.ArchiveURL(), cik, strings.ReplaceAll(accession, "-", ""), primary)
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func dayOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
