package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

func TestCompanyService_Lookup(t *testing.T) {
	svc := NewCompanyService(newFakeResolver(acme, domain.Company{Ticker: "ACMX", Name: "Acme Extra", CIK: "3"}))
	ctx := context.Background()

	c, err := svc.Lookup(ctx, " acme ")
	require.NoError(t, err)
	assert.Equal(t, "0000000001", c.CIK)

	_, err = svc.Lookup(ctx, "ACM")
	require.ErrorIs(t, err, domain.ErrIssuerNotFound)
	assert.Contains(t, err.Error(), "did you mean")
	assert.Contains(t, err.Error(), "ACME")

	_, err = svc.Lookup(ctx, "ZZZ")
	require.ErrorIs(t, err, domain.ErrIssuerNotFound)
	assert.NotContains(t, err.Error(), "did you mean")

	_, err = svc.Lookup(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCompanyService_Suggest(t *testing.T) {
	svc := NewCompanyService(newFakeResolver(acme))

	got, err := svc.Suggest(context.Background(), "ac", 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ACME", got[0].Ticker)

	got, err = svc.Suggest(context.Background(), " ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
