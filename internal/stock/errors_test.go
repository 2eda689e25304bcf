package stock

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByKind(t *testing.T) {
	err := errorf(KindItemReserved, "device SN-1 is reserved by transfer X")

	if !errors.Is(err, ErrItemReserved) {
		t.Error("expected error to match ErrItemReserved")
	}
	if errors.Is(err, ErrInvalidState) {
		t.Error("expected error not to match ErrInvalidState")
	}

	wrapped := fmt.Errorf("issuing: %w", err)
	if !errors.Is(wrapped, ErrItemReserved) {
		t.Error("expected wrapped error to match ErrItemReserved")
	}
	if KindOf(wrapped) != KindItemReserved {
		t.Errorf("expected kind item_reserved, got %q", KindOf(wrapped))
	}
}

func TestKindOfForeignError(t *testing.T) {
	if k := KindOf(errors.New("disk full")); k != "" {
		t.Errorf("expected empty kind, got %q", k)
	}
	if k := KindOf(nil); k != "" {
		t.Errorf("expected empty kind for nil, got %q", k)
	}
}

func TestLineErrorKeepsKind(t *testing.T) {
	err := lineError(2, errorf(KindNotFound, "item X not found"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err.Error() != "line 3: item X not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
