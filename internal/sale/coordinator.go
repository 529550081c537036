// Package sale orchestrates the two buyer-facing purchase paths. It is the
// single point where payment sufficiency, overpayment refund, issuance and
// ownership transfer are sequenced so that no failure leaves a partial sale.
package sale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/mtlprog/sale/internal/domain"
	"github.com/mtlprog/sale/internal/event"
	"github.com/mtlprog/sale/internal/ledger"
	"github.com/mtlprog/sale/internal/pricing"
)

var (
	// ErrSoldOut indicates the single unit was already sold.
	ErrSoldOut = errors.New("asset already sold")
	// ErrInsufficientPayment indicates the attached native amount is below
	// the required amount at the current rate.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrPaymentTransferFailed indicates the stable-token pull was rejected.
	ErrPaymentTransferFailed = errors.New("stable payment transfer failed")
	// ErrRefundFailed indicates the overpayment return was rejected; the
	// purchase does not proceed.
	ErrRefundFailed = errors.New("overpayment refund failed")
	// ErrOwnershipTransferFailed indicates the registry rejected the
	// transfer of the minted unit to the buyer.
	ErrOwnershipTransferFailed = errors.New("ownership transfer failed")
)

// Issuer is the slice of the issuance service the coordinator needs.
type Issuer interface {
	MintOne(ctx context.Context) (domain.SerialNumber, error)
	MintedSerial() (domain.SerialNumber, bool)
	Class() (domain.AssetClass, bool)
	MarkSold(ctx context.Context, buyer domain.AccountID) error
	Sold() bool
}

// RateSource provides the current oracle rate.
type RateSource interface {
	LatestRate(ctx context.Context) (domain.ExchangeRate, error)
}

// Params are the sale's fixed construction parameters.
type Params struct {
	// PriceStable is the fixed price in stable-token minor units; must be > 0.
	PriceStable int64
	StableToken domain.TokenID
	Treasury    domain.AccountID

	StableDecimals int
	NativeDecimals int
}

// Receipt describes one completed purchase. It exists only for the duration
// of the call; the durable record is the audit event.
type Receipt struct {
	Buyer    domain.AccountID `json:"buyer"`
	Unit     domain.UnitRef   `json:"unit"`
	Paid     string           `json:"paid"`
	Currency string           `json:"currency"`
	Refunded string           `json:"refunded,omitempty"`
}

// Coordinator serializes purchase attempts and enforces the sale invariants.
type Coordinator struct {
	params    Params
	issuer    Issuer
	registry  ledger.OwnershipRegistry
	stable    ledger.StableToken
	bank      ledger.NativeBank
	converter *pricing.Converter
	rates     RateSource
	events    event.Log

	// mu gives purchase calls the run-to-completion semantics the design
	// assumes; no other goroutine observes intermediate state.
	mu sync.Mutex
}

// NewCoordinator creates the purchase coordinator.
func NewCoordinator(params Params, issuer Issuer, registry ledger.OwnershipRegistry, stable ledger.StableToken, bank ledger.NativeBank, converter *pricing.Converter, rates RateSource, events event.Log) (*Coordinator, error) {
	if params.PriceStable <= 0 {
		return nil, fmt.Errorf("fixed price must be positive, got %d", params.PriceStable)
	}
	return &Coordinator{
		params:    params,
		issuer:    issuer,
		registry:  registry,
		stable:    stable,
		bank:      bank,
		converter: converter,
		rates:     rates,
		events:    events,
	}, nil
}

// QuoteRequired returns the native amount currently required to purchase the
// unit, computed from the live oracle rate.
func (c *Coordinator) QuoteRequired(ctx context.Context) (*big.Int, error) {
	rate, err := c.rates.LatestRate(ctx)
	if err != nil {
		return nil, err
	}
	return c.converter.QuoteNativeAmount(c.params.PriceStable, rate)
}

// PurchaseWithStableToken sells the unit for exactly the fixed price, pulled
// from the buyer's pre-approved stable-token balance.
func (c *Coordinator) PurchaseWithStableToken(ctx context.Context, buyer domain.AccountID) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.issuer.Sold() {
		return nil, ErrSoldOut
	}

	err := c.stable.Pull(ctx, c.params.StableToken, buyer, c.params.Treasury, c.params.PriceStable)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentTransferFailed, err)
	}

	unit, err := c.issueAndTransfer(ctx, buyer)
	if err != nil {
		return nil, c.compensateStable(ctx, buyer, err)
	}

	paid := domain.FormatStable(c.params.PriceStable, c.params.StableDecimals)
	c.finishSale(ctx, buyer, unit, paid, "stable")
	return &Receipt{Buyer: buyer, Unit: unit, Paid: paid, Currency: "stable"}, nil
}

// PurchaseWithNative sells the unit for the oracle-quoted native amount.
// sentAmount is the native payment already attached to the call; any excess
// over the required amount is returned to the buyer before the sale proceeds,
// so custody retains exactly the required amount afterwards.
func (c *Coordinator) PurchaseWithNative(ctx context.Context, buyer domain.AccountID, sentAmount *big.Int) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.issuer.Sold() {
		return nil, ErrSoldOut
	}

	rate, err := c.rates.LatestRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying oracle: %w", err)
	}
	required, err := c.converter.QuoteNativeAmount(c.params.PriceStable, rate)
	if err != nil {
		return nil, err
	}

	if sentAmount.Cmp(required) < 0 {
		return nil, fmt.Errorf("%w: sent %s, required %s", ErrInsufficientPayment, sentAmount, required)
	}

	refund := new(big.Int).Sub(sentAmount, required)
	if refund.Sign() > 0 {
		if err := c.bank.Send(ctx, c.params.Treasury, buyer, refund); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRefundFailed, err)
		}
	}

	unit, err := c.issueAndTransfer(ctx, buyer)
	if err != nil {
		return nil, c.compensateNative(ctx, buyer, required, err)
	}

	paid := domain.FormatUnits(required, c.params.NativeDecimals)
	c.finishSale(ctx, buyer, unit, paid, "native")

	r := &Receipt{Buyer: buyer, Unit: unit, Paid: paid, Currency: "native"}
	if refund.Sign() > 0 {
		r.Refunded = domain.FormatUnits(refund, c.params.NativeDecimals)
	}
	return r, nil
}

// issueAndTransfer produces the unit and hands it to the buyer. A serial
// minted by an earlier attempt that failed at the transfer step is reused,
// keeping the mint logically exactly-once across retries.
func (c *Coordinator) issueAndTransfer(ctx context.Context, buyer domain.AccountID) (domain.UnitRef, error) {
	serial, minted := c.issuer.MintedSerial()
	if !minted {
		var err error
		serial, err = c.issuer.MintOne(ctx)
		if err != nil {
			return domain.UnitRef{}, err
		}
	}

	class, ok := c.issuer.Class()
	if !ok {
		return domain.UnitRef{}, fmt.Errorf("asset class vanished after mint")
	}
	unit := domain.UnitRef{Class: class.ID, Serial: serial}

	if err := c.registry.TransferUnit(ctx, unit, c.params.Treasury, buyer); err != nil {
		return domain.UnitRef{}, fmt.Errorf("%w: %v", ErrOwnershipTransferFailed, err)
	}
	return unit, nil
}

// compensateStable pushes the pulled stable payment back to the buyer after
// a failed issuance. A failed compensation leaves funds in custody; both
// errors are surfaced.
func (c *Coordinator) compensateStable(ctx context.Context, buyer domain.AccountID, cause error) error {
	pushErr := c.stable.Push(ctx, c.params.StableToken, c.params.Treasury, buyer, c.params.PriceStable)
	if pushErr != nil {
		slog.Error("stable compensation failed, funds remain in custody",
			"buyer", string(buyer), "amount", c.params.PriceStable, "error", pushErr)
		return fmt.Errorf("purchase failed: %w (compensation also failed: %v)", cause, pushErr)
	}
	slog.Warn("purchase failed, stable payment returned", "buyer", string(buyer), "error", cause)
	return cause
}

// compensateNative returns the retained required amount after a failed
// issuance on the native path.
func (c *Coordinator) compensateNative(ctx context.Context, buyer domain.AccountID, amount *big.Int, cause error) error {
	sendErr := c.bank.Send(ctx, c.params.Treasury, buyer, amount)
	if sendErr != nil {
		slog.Error("native compensation failed, funds remain in custody",
			"buyer", string(buyer), "amount", amount.String(), "error", sendErr)
		return fmt.Errorf("purchase failed: %w (compensation also failed: %v)", cause, sendErr)
	}
	slog.Warn("purchase failed, native payment returned", "buyer", string(buyer), "error", cause)
	return cause
}

// finishSale records the sold marker and the purchase audit event.
func (c *Coordinator) finishSale(ctx context.Context, buyer domain.AccountID, unit domain.UnitRef, paid, currency string) {
	if err := c.issuer.MarkSold(ctx, buyer); err != nil {
		slog.Error("failed to record sold state", "buyer", string(buyer), "error", err)
	}
	if c.events != nil {
		if err := c.events.Append(ctx, event.PurchaseCompleted(unit, buyer, paid, currency)); err != nil {
			slog.Error("failed to append purchase event", "error", err)
		}
	}
	slog.Info("unit sold", "unit", unit.String(), "buyer", string(buyer), "paid", paid, "currency", currency)
}
