package oracle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mtlprog/sale/internal/domain"
)

// RateSource provides the current exchange rate.
type RateSource interface {
	FetchRate(ctx context.Context) (domain.ExchangeRate, error)
}

// Service exposes the latest rate to consumers and records observations.
type Service struct {
	source       RateSource
	repo         QuoteRepository
	rateDecimals int
}

// NewService creates a new oracle Service. repo may be nil when observation
// history is not wanted (tests, one-shot tools).
func NewService(source RateSource, repo QuoteRepository, rateDecimals int) *Service {
	return &Service{source: source, repo: repo, rateDecimals: rateDecimals}
}

// LatestRate queries the feed and returns the most recent rate unvalidated.
func (s *Service) LatestRate(ctx context.Context) (domain.ExchangeRate, error) {
	rate, err := s.source.FetchRate(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching rate: %w", err)
	}
	return rate, nil
}

// FetchAndStoreRate fetches the current rate and appends it to the stored
// observation history. Non-positive rates are stored too, with a warning:
// they make the native purchase path unusable until the feed recovers.
func (s *Service) FetchAndStoreRate(ctx context.Context) error {
	rate, err := s.LatestRate(ctx)
	if err != nil {
		return err
	}
	if !rate.IsPositive() {
		slog.Warn("oracle returned non-positive rate", "rate", int64(rate))
	}
	if s.repo == nil {
		return nil
	}
	display := domain.RateDecimal(rate, s.rateDecimals)
	if err := s.repo.SaveQuote(ctx, rate, display); err != nil {
		return fmt.Errorf("storing rate observation: %w", err)
	}
	return nil
}
