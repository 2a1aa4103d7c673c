package order

import "testing"

func TestCanTransition_ForwardChain(t *testing.T) {
	chain := []Status{
		StatusPendingVendorConfirmation,
		StatusConfirmed,
		StatusPreparing,
		StatusDispatched,
		StatusInTransit,
		StatusDelivered,
	}
	for i := 0; i < len(chain)-1; i++ {
		if !CanTransition(chain[i], chain[i+1]) {
			t.Errorf("expected %s -> %s to be legal", chain[i], chain[i+1])
		}
	}

	// No skipping and no going back.
	if CanTransition(StatusConfirmed, StatusDispatched) {
		t.Error("confirmed -> dispatched skips preparing")
	}
	if CanTransition(StatusPendingVendorConfirmation, StatusPreparing) {
		t.Error("pending -> preparing skips confirmed")
	}
	if CanTransition(StatusDispatched, StatusPreparing) {
		t.Error("backward transition should be illegal")
	}
}

func TestCanTransition_Cancel(t *testing.T) {
	for _, from := range []Status{StatusPendingVendorConfirmation, StatusConfirmed, StatusPreparing, StatusDispatched, StatusInTransit} {
		if !CanTransition(from, StatusCancelled) {
			t.Errorf("expected %s -> cancelled to be legal", from)
		}
	}
	for _, from := range []Status{StatusDelivered, StatusCancelled, StatusVendorDeclined} {
		if CanTransition(from, StatusCancelled) {
			t.Errorf("terminal %s should not cancel", from)
		}
	}
}

func TestCanTransition_VendorDeclined(t *testing.T) {
	if !CanTransition(StatusPendingVendorConfirmation, StatusVendorDeclined) {
		t.Error("pending -> vendor_declined should be legal")
	}
	for _, from := range []Status{StatusConfirmed, StatusPreparing, StatusDispatched, StatusInTransit, StatusDelivered} {
		if CanTransition(from, StatusVendorDeclined) {
			t.Errorf("%s -> vendor_declined should be illegal", from)
		}
	}
}

func TestTerminal(t *testing.T) {
	terminal := []Status{StatusDelivered, StatusCancelled, StatusVendorDeclined}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []Status{StatusPendingVendorConfirmation, StatusConfirmed, StatusPreparing, StatusDispatched, StatusInTransit}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
