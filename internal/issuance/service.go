// Package issuance owns the asset-class lifecycle: the administrator-only
// creation step and the single-unit mint, both executed against the external
// token backend and recorded in the audit log.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mtlprog/sale/internal/access"
	"github.com/mtlprog/sale/internal/domain"
	"github.com/mtlprog/sale/internal/event"
	"github.com/mtlprog/sale/internal/ledger"
)

var (
	// ErrClassExists indicates the asset class was already created.
	ErrClassExists = errors.New("asset class already created")
	// ErrClassNotCreated indicates a mint was attempted before class creation.
	ErrClassNotCreated = errors.New("asset class not created")
	// ErrAlreadyMinted indicates the single unit was already minted.
	ErrAlreadyMinted = errors.New("unit already minted")
	// ErrBackendRejected indicates the token backend refused class creation.
	ErrBackendRejected = errors.New("token backend rejected class creation")
	// ErrMintRejected indicates the token backend refused the mint.
	ErrMintRejected = errors.New("token backend rejected mint")
)

// Service tracks the asset-class handle and the static metadata payload
// reused for every mint. All mutations are set-once and survive restarts
// through the StateRepository.
type Service struct {
	backend  ledger.TokenBackend
	gate     *access.Gate
	events   event.Log
	repo     StateRepository
	treasury domain.AccountID
	metadata []byte

	mu    sync.Mutex
	state State
}

// NewService creates the issuance service. metadata is stored verbatim and
// attached to every mint.
func NewService(backend ledger.TokenBackend, gate *access.Gate, events event.Log, repo StateRepository, treasury domain.AccountID, metadata []byte) *Service {
	return &Service{
		backend:  backend,
		gate:     gate,
		events:   events,
		repo:     repo,
		treasury: treasury,
		metadata: metadata,
	}
}

// Restore hydrates in-memory state from the repository. Call once at startup.
func (s *Service) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	st, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// CreateAssetClass registers the asset class with the token backend. It is
// restricted to the administrator and rejects a second call. On a non-OK
// response code nothing is recorded.
func (s *Service) CreateAssetClass(ctx context.Context, caller domain.AccountID, name, symbol, memo string) (domain.ClassID, error) {
	if err := s.gate.RequireAdministrator(caller); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Class != nil {
		return "", ErrClassExists
	}

	classID, code, err := s.backend.CreateClass(ctx, ledger.ClassDefinition{
		Name:            name,
		Symbol:          symbol,
		Memo:            memo,
		Treasury:        s.treasury,
		SupplyAuthority: s.treasury,
	})
	if err != nil {
		return "", fmt.Errorf("creating asset class: %w", err)
	}
	if code != ledger.CodeOK {
		return "", fmt.Errorf("%w: %s", ErrBackendRejected, code)
	}

	class := domain.AssetClass{
		ID:       classID,
		Name:     name,
		Symbol:   symbol,
		Memo:     memo,
		Treasury: s.treasury,
	}
	if s.repo != nil {
		if err := s.repo.SaveClass(ctx, class); err != nil {
			return "", fmt.Errorf("persisting asset class: %w", err)
		}
	}
	s.state.Class = &class

	s.appendEvent(ctx, event.ClassCreated(classID))
	slog.Info("asset class created", "class", classID, "symbol", symbol)
	return classID, nil
}

// MintOne mints exactly one unit with the fixed static metadata and returns
// its serial. It requires the class handle and refuses a second mint.
func (s *Service) MintOne(ctx context.Context) (domain.SerialNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Class == nil {
		return 0, ErrClassNotCreated
	}
	if s.state.MintedSerial != nil {
		return 0, ErrAlreadyMinted
	}

	serials, code, err := s.backend.MintUnits(ctx, s.state.Class.ID, s.metadata, 1)
	if err != nil {
		return 0, fmt.Errorf("minting unit: %w", err)
	}
	if code != ledger.CodeOK {
		return 0, fmt.Errorf("%w: %s", ErrMintRejected, code)
	}
	if len(serials) != 1 {
		return 0, fmt.Errorf("backend minted %d serials, want 1", len(serials))
	}

	serial := serials[0]
	if s.repo != nil {
		if err := s.repo.SaveMinted(ctx, serial); err != nil {
			return 0, fmt.Errorf("persisting minted serial: %w", err)
		}
	}
	s.state.MintedSerial = &serial

	s.appendEvent(ctx, event.UnitMinted(domain.UnitRef{Class: s.state.Class.ID, Serial: serial}))
	slog.Info("unit minted", "class", s.state.Class.ID, "serial", int64(serial))
	return serial, nil
}

// MarkSold records that ownership of the minted unit reached the buyer.
func (s *Service) MarkSold(ctx context.Context, buyer domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Sold {
		return errStateConflict
	}
	if s.repo != nil {
		if err := s.repo.MarkSold(ctx, buyer); err != nil {
			return fmt.Errorf("persisting sold state: %w", err)
		}
	}
	s.state.Sold = true
	s.state.SoldTo = buyer
	return nil
}

// Class returns the asset class if it has been created.
func (s *Service) Class() (domain.AssetClass, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Class == nil {
		return domain.AssetClass{}, false
	}
	return *s.state.Class, true
}

// MintedSerial returns the minted serial if the unit exists.
func (s *Service) MintedSerial() (domain.SerialNumber, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.MintedSerial == nil {
		return 0, false
	}
	return *s.state.MintedSerial, true
}

// Sold reports whether the unit has been sold.
func (s *Service) Sold() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Sold
}

// appendEvent writes an audit record. Audit failures do not abort the
// operation that already succeeded on the ledger; they are logged instead.
func (s *Service) appendEvent(ctx context.Context, e event.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(ctx, e); err != nil {
		slog.Error("failed to append audit event", "type", string(e.Type), "error", err)
	}
}
