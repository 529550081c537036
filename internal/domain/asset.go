package domain

import "fmt"

// ClassID identifies an asset class on the ledger. Empty means not created yet.
type ClassID string

// SerialNumber identifies one minted unit within an asset class.
type SerialNumber int64

// AccountID identifies a ledger account (buyer, treasury, administrator).
type AccountID string

// TokenID identifies a fungible token contract on the ledger, e.g. the stable token.
type TokenID string

// AssetClass describes the sellable unit's template as registered on the ledger.
type AssetClass struct {
	ID     ClassID `json:"id"`
	Name   string  `json:"name"`
	Symbol string  `json:"symbol"`
	Memo   string  `json:"memo"`

	// Treasury holds supply authority: mints issued by this service succeed
	// without further external authorization.
	Treasury AccountID `json:"treasury"`
}

// UnitRef points at one concrete minted unit.
type UnitRef struct {
	Class  ClassID      `json:"class"`
	Serial SerialNumber `json:"serial"`
}

func (u UnitRef) String() string {
	return fmt.Sprintf("%s/%d", u.Class, u.Serial)
}
