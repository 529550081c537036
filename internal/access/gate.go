// Package access holds the administrator predicate gating asset-class creation.
package access

import (
	"crypto/subtle"
	"errors"

	"github.com/mtlprog/sale/internal/domain"
)

// ErrAccessDenied indicates a non-administrator attempted a restricted operation.
var ErrAccessDenied = errors.New("access denied")

// Gate checks callers against the administrator identity fixed at construction.
type Gate struct {
	admin domain.AccountID
}

// NewGate creates a Gate for the given administrator account.
func NewGate(admin domain.AccountID) *Gate {
	return &Gate{admin: admin}
}

// RequireAdministrator returns ErrAccessDenied unless caller is the
// configured administrator. The comparison is constant-time.
func (g *Gate) RequireAdministrator(caller domain.AccountID) error {
	if g.admin == "" {
		return ErrAccessDenied
	}
	if subtle.ConstantTimeCompare([]byte(caller), []byte(g.admin)) != 1 {
		return ErrAccessDenied
	}
	return nil
}
