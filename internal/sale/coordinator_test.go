package sale

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/mtlprog/sale/internal/domain"
	"github.com/mtlprog/sale/internal/event"
	"github.com/mtlprog/sale/internal/pricing"
)

type mockIssuer struct {
	serial    domain.SerialNumber
	minted    bool
	mintErr   error
	sold      bool
	class     domain.AssetClass
	hasClass  bool
	mintCalls int
}

func (m *mockIssuer) MintOne(context.Context) (domain.SerialNumber, error) {
	m.mintCalls++
	if m.mintErr != nil {
		return 0, m.mintErr
	}
	m.minted = true
	return m.serial, nil
}

func (m *mockIssuer) MintedSerial() (domain.SerialNumber, bool) {
	if !m.minted {
		return 0, false
	}
	return m.serial, true
}

func (m *mockIssuer) Class() (domain.AssetClass, bool) { return m.class, m.hasClass }

func (m *mockIssuer) MarkSold(_ context.Context, buyer domain.AccountID) error {
	m.sold = true
	return nil
}

func (m *mockIssuer) Sold() bool { return m.sold }

type transferCall struct {
	unit     domain.UnitRef
	from, to domain.AccountID
}

type mockRegistry struct {
	err   error
	calls []transferCall
}

func (m *mockRegistry) TransferUnit(_ context.Context, unit domain.UnitRef, from, to domain.AccountID) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, transferCall{unit, from, to})
	return nil
}

type stableCall struct {
	from, to domain.AccountID
	units    int64
}

type mockStable struct {
	pullErr error
	pushErr error
	pulls   []stableCall
	pushes  []stableCall
}

func (m *mockStable) Pull(_ context.Context, _ domain.TokenID, from, to domain.AccountID, units int64) error {
	if m.pullErr != nil {
		return m.pullErr
	}
	m.pulls = append(m.pulls, stableCall{from, to, units})
	return nil
}

func (m *mockStable) Push(_ context.Context, _ domain.TokenID, from, to domain.AccountID, units int64) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.pushes = append(m.pushes, stableCall{from, to, units})
	return nil
}

type sendCall struct {
	from, to domain.AccountID
	amount   *big.Int
}

type mockBank struct {
	err   error
	sends []sendCall
}

func (m *mockBank) Send(_ context.Context, from, to domain.AccountID, amount *big.Int) error {
	if m.err != nil {
		return m.err
	}
	m.sends = append(m.sends, sendCall{from, to, new(big.Int).Set(amount)})
	return nil
}

type mockRates struct {
	rate domain.ExchangeRate
	err  error
}

func (m *mockRates) LatestRate(context.Context) (domain.ExchangeRate, error) {
	return m.rate, m.err
}

type mockEvents struct {
	appended []event.Event
}

func (m *mockEvents) Append(_ context.Context, e event.Event) error {
	m.appended = append(m.appended, e)
	return nil
}

func (m *mockEvents) List(context.Context, int) ([]event.Event, error) {
	return m.appended, nil
}

type fixture struct {
	coordinator *Coordinator
	issuer      *mockIssuer
	registry    *mockRegistry
	stable      *mockStable
	bank        *mockBank
	rates       *mockRates
	events      *mockEvents
}

const (
	priceStable = int64(1_000_000) // 1.00 stable
	parRate     = domain.ExchangeRate(100_000_000)
)

// requiredAtPar is priceStable * 10^10 / parRate.
var requiredAtPar = big.NewInt(100_000_000)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	issuer := &mockIssuer{
		serial:   7,
		class:    domain.AssetClass{ID: "nft-1", Treasury: "treasury"},
		hasClass: true,
	}
	registry := &mockRegistry{}
	stable := &mockStable{}
	bank := &mockBank{}
	rates := &mockRates{rate: parRate}
	events := &mockEvents{}

	c, err := NewCoordinator(Params{
		PriceStable:    priceStable,
		StableToken:    "usd-token",
		Treasury:       "treasury",
		StableDecimals: 6,
		NativeDecimals: 8,
	}, issuer, registry, stable, bank, pricing.NewConverter(6, 8, 8), rates, events)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	return &fixture{c, issuer, registry, stable, bank, rates, events}
}

func TestNewCoordinatorRejectsNonPositivePrice(t *testing.T) {
	_, err := NewCoordinator(Params{PriceStable: 0}, nil, nil, nil, nil, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for zero price")
	}
}

func TestPurchaseStableSuccess(t *testing.T) {
	f := newFixture(t)

	receipt, err := f.coordinator.PurchaseWithStableToken(context.Background(), "buyer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.stable.pulls) != 1 {
		t.Fatalf("pulls = %d, want 1", len(f.stable.pulls))
	}
	pull := f.stable.pulls[0]
	if pull.from != "buyer" || pull.to != "treasury" || pull.units != priceStable {
		t.Errorf("pull = %+v", pull)
	}

	if f.issuer.mintCalls != 1 {
		t.Errorf("mintCalls = %d, want 1", f.issuer.mintCalls)
	}
	if len(f.registry.calls) != 1 {
		t.Fatalf("transfers = %d, want 1", len(f.registry.calls))
	}
	tr := f.registry.calls[0]
	if tr.from != "treasury" || tr.to != "buyer" || tr.unit.Serial != 7 {
		t.Errorf("transfer = %+v", tr)
	}

	if !f.issuer.sold {
		t.Error("sale not marked sold")
	}
	if receipt.Paid != "1" || receipt.Currency != "stable" {
		t.Errorf("receipt = %+v", receipt)
	}
	if len(f.events.appended) != 1 || f.events.appended[0].Type != event.TypePurchaseCompleted {
		t.Errorf("events = %+v", f.events.appended)
	}
}

func TestPurchaseStablePullRejected(t *testing.T) {
	f := newFixture(t)
	f.stable.pullErr = errors.New("insufficient allowance")

	_, err := f.coordinator.PurchaseWithStableToken(context.Background(), "buyer")
	if !errors.Is(err, ErrPaymentTransferFailed) {
		t.Fatalf("err = %v, want ErrPaymentTransferFailed", err)
	}
	if f.issuer.mintCalls != 0 {
		t.Error("mint attempted after rejected payment")
	}
	if f.issuer.sold {
		t.Error("marked sold without payment")
	}
}

func TestPurchaseStableMintFailureCompensates(t *testing.T) {
	f := newFixture(t)
	mintErr := errors.New("backend down")
	f.issuer.mintErr = mintErr

	_, err := f.coordinator.PurchaseWithStableToken(context.Background(), "buyer")
	if !errors.Is(err, mintErr) {
		t.Fatalf("err = %v, want wrapped mint error", err)
	}

	// Payment was pulled, then pushed back; ownership never moved.
	if len(f.stable.pushes) != 1 {
		t.Fatalf("pushes = %d, want 1", len(f.stable.pushes))
	}
	push := f.stable.pushes[0]
	if push.from != "treasury" || push.to != "buyer" || push.units != priceStable {
		t.Errorf("push = %+v", push)
	}
	if len(f.registry.calls) != 0 {
		t.Error("ownership transferred despite mint failure")
	}
	if f.issuer.sold {
		t.Error("marked sold despite mint failure")
	}
}

func TestPurchaseStableTransferFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.registry.err = errors.New("registry unavailable")

	_, err := f.coordinator.PurchaseWithStableToken(context.Background(), "buyer")
	if !errors.Is(err, ErrOwnershipTransferFailed) {
		t.Fatalf("err = %v, want ErrOwnershipTransferFailed", err)
	}
	if len(f.stable.pushes) != 1 {
		t.Errorf("pushes = %d, want 1", len(f.stable.pushes))
	}
	if f.issuer.sold {
		t.Error("marked sold despite transfer failure")
	}
}

func TestPurchaseStableCompensationFailureSurfacesBoth(t *testing.T) {
	f := newFixture(t)
	mintErr := errors.New("backend down")
	f.issuer.mintErr = mintErr
	f.stable.pushErr = errors.New("push rejected")

	_, err := f.coordinator.PurchaseWithStableToken(context.Background(), "buyer")
	if !errors.Is(err, mintErr) {
		t.Fatalf("err = %v, want wrapped mint error", err)
	}
}

func TestPurchaseNativeExactPaymentNoRefund(t *testing.T) {
	f := newFixture(t)

	receipt, err := f.coordinator.PurchaseWithNative(context.Background(), "buyer", new(big.Int).Set(requiredAtPar))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Exact payment: the refund rail is never touched.
	if len(f.bank.sends) != 0 {
		t.Errorf("sends = %+v, want none", f.bank.sends)
	}
	if len(f.registry.calls) != 1 {
		t.Errorf("transfers = %d, want 1", len(f.registry.calls))
	}
	if receipt.Refunded != "" {
		t.Errorf("receipt.Refunded = %q, want empty", receipt.Refunded)
	}
	if receipt.Paid != "1" {
		t.Errorf("receipt.Paid = %q, want 1", receipt.Paid)
	}
}

func TestPurchaseNativeOverpaymentRefundsExcess(t *testing.T) {
	f := newFixture(t)

	excess := big.NewInt(12_345)
	sent := new(big.Int).Add(requiredAtPar, excess)
	receipt, err := f.coordinator.PurchaseWithNative(context.Background(), "buyer", sent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.bank.sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(f.bank.sends))
	}
	refund := f.bank.sends[0]
	if refund.from != "treasury" || refund.to != "buyer" || refund.amount.Cmp(excess) != 0 {
		t.Errorf("refund = %+v", refund)
	}
	if receipt.Refunded == "" {
		t.Error("receipt missing refund amount")
	}
}

func TestPurchaseNativeInsufficientPayment(t *testing.T) {
	f := newFixture(t)

	sent := new(big.Int).Sub(requiredAtPar, big.NewInt(1))
	_, err := f.coordinator.PurchaseWithNative(context.Background(), "buyer", sent)
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("err = %v, want ErrInsufficientPayment", err)
	}
	if f.issuer.mintCalls != 0 || len(f.bank.sends) != 0 {
		t.Error("side effects after insufficient payment")
	}
}

func TestPurchaseNativeInvalidRate(t *testing.T) {
	f := newFixture(t)
	f.rates.rate = 0

	_, err := f.coordinator.PurchaseWithNative(context.Background(), "buyer", big.NewInt(1))
	if !errors.Is(err, pricing.ErrInvalidRate) {
		t.Fatalf("err = %v, want ErrInvalidRate", err)
	}
	if f.issuer.mintCalls != 0 {
		t.Error("mint attempted with invalid rate")
	}
}

func TestPurchaseNativeRefundFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.bank.err = errors.New("refund rail down")

	sent := new(big.Int).Add(requiredAtPar, big.NewInt(1))
	_, err := f.coordinator.PurchaseWithNative(context.Background(), "buyer", sent)
	if !errors.Is(err, ErrRefundFailed) {
		t.Fatalf("err = %v, want ErrRefundFailed", err)
	}
	if f.issuer.mintCalls != 0 || len(f.registry.calls) != 0 {
		t.Error("purchase proceeded despite failed refund")
	}
}

func TestPurchaseNativeMintFailureCompensates(t *testing.T) {
	f := newFixture(t)
	mintErr := errors.New("backend down")
	f.issuer.mintErr = mintErr

	_, err := f.coordinator.PurchaseWithNative(context.Background(), "buyer", new(big.Int).Set(requiredAtPar))
	if !errors.Is(err, mintErr) {
		t.Fatalf("err = %v, want wrapped mint error", err)
	}

	// The retained required amount went back to the buyer; no transfer happened.
	if len(f.bank.sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(f.bank.sends))
	}
	comp := f.bank.sends[0]
	if comp.to != "buyer" || comp.amount.Cmp(requiredAtPar) != 0 {
		t.Errorf("compensation = %+v", comp)
	}
	if len(f.registry.calls) != 0 {
		t.Error("ownership transferred despite mint failure")
	}
}

func TestPurchaseSoldOut(t *testing.T) {
	f := newFixture(t)
	f.issuer.sold = true

	if _, err := f.coordinator.PurchaseWithStableToken(context.Background(), "buyer"); !errors.Is(err, ErrSoldOut) {
		t.Errorf("stable: err = %v, want ErrSoldOut", err)
	}
	if _, err := f.coordinator.PurchaseWithNative(context.Background(), "buyer", requiredAtPar); !errors.Is(err, ErrSoldOut) {
		t.Errorf("native: err = %v, want ErrSoldOut", err)
	}
	if f.issuer.mintCalls != 0 {
		t.Error("mint attempted after sale closed")
	}
}

func TestPurchaseReusesSerialFromFailedAttempt(t *testing.T) {
	f := newFixture(t)
	// A previous attempt minted serial 7 but failed at the transfer step.
	f.issuer.minted = true

	_, err := f.coordinator.PurchaseWithStableToken(context.Background(), "buyer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.issuer.mintCalls != 0 {
		t.Error("minted a second unit instead of reusing the existing serial")
	}
	if len(f.registry.calls) != 1 || f.registry.calls[0].unit.Serial != 7 {
		t.Errorf("transfers = %+v", f.registry.calls)
	}
}

func TestQuoteRequired(t *testing.T) {
	f := newFixture(t)

	got, err := f.coordinator.QuoteRequired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(requiredAtPar) != 0 {
		t.Errorf("quote = %s, want %s", got, requiredAtPar)
	}
}
