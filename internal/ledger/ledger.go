// Package ledger models the external ledger gateway as capability interfaces:
// the token backend, the ownership registry and the two payment rails. Test
// doubles substitute them to simulate success and failure response codes.
package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/mtlprog/sale/internal/domain"
)

// ResponseCode is the gateway's synchronous verdict on a privileged
// platform-level operation. Anything other than CodeOK is a rejection.
type ResponseCode int

const (
	CodeOK                ResponseCode = 0
	CodeUnauthorized      ResponseCode = 1
	CodeNotFound          ResponseCode = 2
	CodeInsufficientFunds ResponseCode = 3
	CodeDuplicate         ResponseCode = 4
	CodeInternal          ResponseCode = 5
)

func (c ResponseCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeUnauthorized:
		return "unauthorized"
	case CodeNotFound:
		return "not_found"
	case CodeInsufficientFunds:
		return "insufficient_funds"
	case CodeDuplicate:
		return "duplicate"
	case CodeInternal:
		return "internal"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// CodeError carries a non-OK gateway response code.
type CodeError struct {
	Op   string
	Code ResponseCode
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("gateway rejected %s: %s", e.Op, e.Code)
}

// ClassDefinition describes the asset class to register with the token backend.
type ClassDefinition struct {
	Name   string
	Symbol string
	Memo   string

	// Treasury receives newly minted units and, as SupplyAuthority, is the
	// only identity allowed to mint. Both are set to this service's own
	// account so later mints need no further external authorization.
	Treasury        domain.AccountID
	SupplyAuthority domain.AccountID
}

// TokenBackend is the external token-creation and minting service.
type TokenBackend interface {
	CreateClass(ctx context.Context, def ClassDefinition) (domain.ClassID, ResponseCode, error)
	MintUnits(ctx context.Context, class domain.ClassID, metadata []byte, quantity int) ([]domain.SerialNumber, ResponseCode, error)
}

// OwnershipRegistry transfers a minted unit between accounts.
type OwnershipRegistry interface {
	TransferUnit(ctx context.Context, unit domain.UnitRef, from, to domain.AccountID) error
}

// StableToken moves stable-token amounts. Pull withdraws a pre-approved
// amount from the payer; Push returns custody funds to a buyer when a
// purchase has to be compensated.
type StableToken interface {
	Pull(ctx context.Context, token domain.TokenID, from, to domain.AccountID, units int64) error
	Push(ctx context.Context, token domain.TokenID, from, to domain.AccountID, units int64) error
}

// NativeBank moves native currency between accounts, used for refunds and
// overpayment returns.
type NativeBank interface {
	Send(ctx context.Context, from, to domain.AccountID, amount *big.Int) error
}
