package event

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/sale/internal/domain"
)

// PgLog implements Log with PostgreSQL.
type PgLog struct {
	pool *pgxpool.Pool
}

// NewPgLog creates a new PostgreSQL event log.
func NewPgLog(pool *pgxpool.Pool) *PgLog {
	return &PgLog{pool: pool}
}

func (l *PgLog) Append(ctx context.Context, e Event) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO sale_events (id, type, class, serial, buyer, amount, currency, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, string(e.Type), string(e.Class), int64(e.Serial), string(e.Buyer), e.Amount, e.Currency, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("appending %s event: %w", e.Type, err)
	}
	return nil
}

func (l *PgLog) List(ctx context.Context, limit int) ([]Event, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, type, class, serial, buyer, amount, currency, occurred_at
		 FROM sale_events ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var typ, class, buyer string
		var serial int64
		if err := rows.Scan(&e.ID, &typ, &class, &serial, &buyer, &e.Amount, &e.Currency, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Type = Type(typ)
		e.Class = domain.ClassID(class)
		e.Serial = domain.SerialNumber(serial)
		e.Buyer = domain.AccountID(buyer)
		events = append(events, e)
	}
	return events, rows.Err()
}
