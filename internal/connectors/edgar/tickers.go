package edgar

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

var _ driven.IssuerResolver = (*TickerResolver)(nil)

// DefaultSuggestions is the default number of ticker suggestions.
const DefaultSuggestions = 5

// tickerEntry is one row of company_tickers.json.
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// TickerResolver maps trading symbols to issuers.
// The ticker file is loaded once and cached until Refresh.
type TickerResolver struct {
	client *Client

	mu       sync.Mutex
	loaded   bool
	byTicker map[string]domain.Company
	ordered  []domain.Company
}

// NewTickerResolver creates a resolver backed by client.
func NewTickerResolver(client *Client) *TickerResolver {
	return &TickerResolver{client: client}
}

// Resolve returns the issuer for a ticker, or domain.ErrIssuerNotFound.
func (r *TickerResolver) Resolve(ctx context.Context, ticker string) (*domain.Company, error) {
	t := domain.NormaliseTicker(ticker)
	if t == "" {
		return nil, fmt.Errorf("%w: ticker is required", domain.ErrInvalidInput)
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	company, ok := r.byTicker[t]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrIssuerNotFound, t)
	}
	return &company, nil
}

// Suggest returns up to limit issuers whose ticker starts with the query,
// followed by those whose ticker or name contains it.
func (r *TickerResolver) Suggest(ctx context.Context, query string, limit int) ([]domain.Company, error) {
	q := domain.NormaliseTicker(query)
	if q == "" {
		return []domain.Company{}, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestions
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Company, 0, limit)
	seen := make(map[string]bool)
	add := func(c domain.Company) bool {
		if !seen[c.Ticker] {
			seen[c.Ticker] = true
			out = append(out, c)
		}
		return len(out) >= limit
	}
	for _, c := range r.ordered {
		if strings.HasPrefix(c.Ticker, q) && add(c) {
			return out, nil
		}
	}
	for _, c := range r.ordered {
		if (strings.Contains(c.Ticker, q) || strings.Contains(strings.ToUpper(c.Name), q)) && add(c) {
			return out, nil
		}
	}
	return out, nil
}

// Refresh drops the cached ticker file so the next call reloads it.
func (r *TickerResolver) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
}

func (r *TickerResolver) ensureLoaded(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}

	var raw map[string]tickerEntry
	if err := r.client.GetJSON(ctx, r.client.ArchiveURL()+"/files/company_tickers.json", &raw); err != nil {
		return fmt.Errorf("load company tickers: %w", err)
	}

	keys := make([]int, 0, len(raw))
	for k := range raw {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		keys = append(keys, n)
	}
	sort.Ints(keys)

	r.byTicker = make(map[string]domain.Company, len(raw))
	r.ordered = make([]domain.Company, 0, len(raw))
	for _, k := range keys {
		e := raw[strconv.Itoa(k)]
		t := domain.NormaliseTicker(e.Ticker)
		if t == "" || e.CIK <= 0 {
			continue
		}
		if _, dup := r.byTicker[t]; dup {
			continue
		}
		c := domain.Company{Ticker: t, Name: e.Title, CIK: FormatCIK(e.CIK)}
		r.byTicker[t] = c
		r.ordered = append(r.ordered, c)
	}
	r.loaded = true
	logger.Debug("edgar: loaded %d company tickers", len(r.ordered))
	return nil
}

// FormatCIK zero-pads a CIK to 10 digits.
func FormatCIK(cik int64) string {
	return fmt.Sprintf("%010d", cik)
}
