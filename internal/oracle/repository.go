package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/sale/internal/domain"
)

// ErrNoQuote indicates that no rate observation has been stored yet.
var ErrNoQuote = errors.New("no stored quote")

// Quote is one persisted rate observation.
type Quote struct {
	Rate       domain.ExchangeRate `json:"rate"`
	Display    decimal.Decimal     `json:"display"`
	ObservedAt time.Time           `json:"observedAt"`
}

// QuoteRepository defines persistent storage for rate observations.
type QuoteRepository interface {
	SaveQuote(ctx context.Context, rate domain.ExchangeRate, display decimal.Decimal) error
	LatestQuote(ctx context.Context) (Quote, error)
}

// PgQuoteRepository implements QuoteRepository with PostgreSQL.
type PgQuoteRepository struct {
	pool *pgxpool.Pool
}

// NewPgQuoteRepository creates a new PostgreSQL quote repository.
func NewPgQuoteRepository(pool *pgxpool.Pool) *PgQuoteRepository {
	return &PgQuoteRepository{pool: pool}
}

func (r *PgQuoteRepository) SaveQuote(ctx context.Context, rate domain.ExchangeRate, display decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO oracle_quotes (rate, display, observed_at) VALUES ($1, $2, NOW())`,
		int64(rate), display)
	if err != nil {
		return fmt.Errorf("saving quote: %w", err)
	}
	return nil
}

func (r *PgQuoteRepository) LatestQuote(ctx context.Context) (Quote, error) {
	var q Quote
	var rate int64
	err := r.pool.QueryRow(ctx,
		`SELECT rate, display, observed_at FROM oracle_quotes ORDER BY observed_at DESC LIMIT 1`).
		Scan(&rate, &q.Display, &q.ObservedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNoQuote
		}
		return Quote{}, fmt.Errorf("getting latest quote: %w", err)
	}
	q.Rate = domain.ExchangeRate(rate)
	return q, nil
}
