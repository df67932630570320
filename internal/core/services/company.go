package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

// Ensure CompanyService implements the interface.
var _ driving.CompanyService = (*CompanyService)(nil)

// maxSuggestions caps ticker suggestions.
const maxSuggestions = 5

// CompanyService resolves tickers and suggests alternatives for unknown ones.
type CompanyService struct {
	resolver driven.IssuerResolver
}

// NewCompanyService creates a new company service.
func NewCompanyService(resolver driven.IssuerResolver) *CompanyService {
	return &CompanyService{resolver: resolver}
}

// Lookup resolves a ticker. Unknown tickers return domain.ErrIssuerNotFound
// with close matches in the message.
func (s *CompanyService) Lookup(ctx context.Context, ticker string) (*domain.Company, error) {
	ticker = domain.NormaliseTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", domain.ErrInvalidInput)
	}
	company, err := s.resolver.Resolve(ctx, ticker)
	if err == nil {
		return company, nil
	}
	if !errors.Is(err, domain.ErrIssuerNotFound) {
		return nil, err
	}

	suggestions, serr := s.resolver.Suggest(ctx, ticker, maxSuggestions)
	if serr != nil || len(suggestions) == 0 {
		return nil, err
	}
	names := make([]string, len(suggestions))
	for i, c := range suggestions {
		names[i] = c.Ticker
	}
	return nil, fmt.Errorf("%w (did you mean %s?)", err, strings.Join(names, ", "))
}

// Suggest returns up to limit tickers matching the query.
func (s *CompanyService) Suggest(ctx context.Context, query string, limit int) ([]domain.Company, error) {
	if limit <= 0 || limit > maxSuggestions {
		limit = maxSuggestions
	}
	if strings.TrimSpace(query) == "" {
		return []domain.Company{}, nil
	}
	return s.resolver.Suggest(ctx, query, limit)
}
