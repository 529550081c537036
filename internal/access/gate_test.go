package access

import (
	"errors"
	"testing"

	"github.com/mtlprog/sale/internal/domain"
)

func TestRequireAdministrator(t *testing.T) {
	gate := NewGate("admin")

	if err := gate.RequireAdministrator("admin"); err != nil {
		t.Errorf("administrator denied: %v", err)
	}
	if err := gate.RequireAdministrator("mallory"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("err = %v, want ErrAccessDenied", err)
	}
	if err := gate.RequireAdministrator(""); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("empty caller: err = %v, want ErrAccessDenied", err)
	}
}

func TestRequireAdministratorUnconfigured(t *testing.T) {
	gate := NewGate(domain.AccountID(""))

	// With no administrator configured every caller is denied, including
	// one presenting an empty account.
	if err := gate.RequireAdministrator(""); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("err = %v, want ErrAccessDenied", err)
	}
	if err := gate.RequireAdministrator("anyone"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("err = %v, want ErrAccessDenied", err)
	}
}
