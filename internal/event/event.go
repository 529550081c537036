// Package event records the observable audit trail: asset-class creation,
// mints and completed purchases.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mtlprog/sale/internal/domain"
)

// Type classifies an audit event.
type Type string

const (
	TypeClassCreated      Type = "class_created"
	TypeUnitMinted        Type = "unit_minted"
	TypePurchaseCompleted Type = "purchase_completed"
)

// Event is one audit record. Amount and Currency are set for purchase events
// only; Serial is zero until a unit exists.
type Event struct {
	ID         string              `json:"id"`
	Type       Type                `json:"type"`
	Class      domain.ClassID      `json:"class"`
	Serial     domain.SerialNumber `json:"serial,omitempty"`
	Buyer      domain.AccountID    `json:"buyer,omitempty"`
	Amount     string              `json:"amount,omitempty"`
	Currency   string              `json:"currency,omitempty"`
	OccurredAt time.Time           `json:"occurredAt"`
}

// Log defines the append-only audit log.
type Log interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, limit int) ([]Event, error)
}

// ClassCreated builds a class-created event.
func ClassCreated(class domain.ClassID) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeClassCreated,
		Class:      class,
		OccurredAt: time.Now().UTC(),
	}
}

// UnitMinted builds a mint event.
func UnitMinted(unit domain.UnitRef) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeUnitMinted,
		Class:      unit.Class,
		Serial:     unit.Serial,
		OccurredAt: time.Now().UTC(),
	}
}

// PurchaseCompleted builds a purchase event. amount is a display string in
// the paid currency's major units.
func PurchaseCompleted(unit domain.UnitRef, buyer domain.AccountID, amount, currency string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypePurchaseCompleted,
		Class:      unit.Class,
		Serial:     unit.Serial,
		Buyer:      buyer,
		Amount:     amount,
		Currency:   currency,
		OccurredAt: time.Now().UTC(),
	}
}
