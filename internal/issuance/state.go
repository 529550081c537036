package issuance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/sale/internal/domain"
)

// State mirrors the single sale_state row: the asset-class handle (set once
// by class creation), the minted serial (set once by the first successful
// mint) and the sold marker (set once when ownership reaches the buyer).
type State struct {
	Class        *domain.AssetClass
	MintedSerial *domain.SerialNumber
	Sold         bool
	SoldTo       domain.AccountID
}

// StateRepository persists the set-once sale state across restarts.
type StateRepository interface {
	Load(ctx context.Context) (State, error)
	SaveClass(ctx context.Context, class domain.AssetClass) error
	SaveMinted(ctx context.Context, serial domain.SerialNumber) error
	MarkSold(ctx context.Context, buyer domain.AccountID) error
}

// PgStateRepository implements StateRepository with PostgreSQL. The single
// row is seeded by migration; every write is guarded by a WHERE clause so
// set-once columns cannot be overwritten.
type PgStateRepository struct {
	pool *pgxpool.Pool
}

// NewPgStateRepository creates a new PostgreSQL state repository.
func NewPgStateRepository(pool *pgxpool.Pool) *PgStateRepository {
	return &PgStateRepository{pool: pool}
}

var errStateConflict = errors.New("sale state already set")

func (r *PgStateRepository) Load(ctx context.Context) (State, error) {
	var (
		classID, name, symbol, memo, treasury, soldTo *string
		serial                                        *int64
		sold                                          bool
	)
	err := r.pool.QueryRow(ctx,
		`SELECT class_id, class_name, class_symbol, class_memo, class_treasury,
		        minted_serial, sold, sold_to
		 FROM sale_state WHERE id = 1`).
		Scan(&classID, &name, &symbol, &memo, &treasury, &serial, &sold, &soldTo)
	if err != nil {
		return State{}, fmt.Errorf("loading sale state: %w", err)
	}

	var st State
	if classID != nil {
		st.Class = &domain.AssetClass{
			ID:       domain.ClassID(*classID),
			Name:     deref(name),
			Symbol:   deref(symbol),
			Memo:     deref(memo),
			Treasury: domain.AccountID(deref(treasury)),
		}
	}
	if serial != nil {
		s := domain.SerialNumber(*serial)
		st.MintedSerial = &s
	}
	st.Sold = sold
	st.SoldTo = domain.AccountID(deref(soldTo))
	return st, nil
}

func (r *PgStateRepository) SaveClass(ctx context.Context, class domain.AssetClass) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sale_state
		 SET class_id = $1, class_name = $2, class_symbol = $3, class_memo = $4, class_treasury = $5
		 WHERE id = 1 AND class_id IS NULL`,
		string(class.ID), class.Name, class.Symbol, class.Memo, string(class.Treasury))
	if err != nil {
		return fmt.Errorf("saving asset class: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errStateConflict
	}
	return nil
}

func (r *PgStateRepository) SaveMinted(ctx context.Context, serial domain.SerialNumber) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sale_state SET minted_serial = $1 WHERE id = 1 AND minted_serial IS NULL`,
		int64(serial))
	if err != nil {
		return fmt.Errorf("saving minted serial: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errStateConflict
	}
	return nil
}

func (r *PgStateRepository) MarkSold(ctx context.Context, buyer domain.AccountID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sale_state SET sold = TRUE, sold_to = $1 WHERE id = 1 AND NOT sold`,
		string(buyer))
	if err != nil {
		return fmt.Errorf("marking sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errStateConflict
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
