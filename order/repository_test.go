package order

import (
	"errors"
	"testing"

	"procureflow/lifecycle"
)

func TestDiagnoseAdvanceMiss_SameEdgeLoser(t *testing.T) {
	// Two requests raced pending -> confirmed; the loser's re-read sees the
	// winner's state.
	rec := Order{ID: "o1", Status: StatusConfirmed}

	err := diagnoseAdvanceMiss(rec, StatusConfirmed)
	if !errors.Is(err, lifecycle.ErrConflict) {
		t.Fatalf("expected ErrConflict for the same-edge loser, got %v", err)
	}
}

func TestDiagnoseAdvanceMiss_StaleFrom(t *testing.T) {
	// The caller's from was stale but the target is still one step ahead.
	rec := Order{ID: "o1", Status: StatusPreparing}

	err := diagnoseAdvanceMiss(rec, StatusDispatched)
	if !errors.Is(err, lifecycle.ErrConflict) {
		t.Fatalf("expected ErrConflict when the target is still reachable, got %v", err)
	}
}

func TestDiagnoseAdvanceMiss_TerminalState(t *testing.T) {
	rec := Order{ID: "o1", Status: StatusCancelled}

	err := diagnoseAdvanceMiss(rec, StatusConfirmed)
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from a terminal state, got %v", err)
	}
	if errors.Is(err, lifecycle.ErrConflict) {
		t.Fatal("terminal state must not read as a conflict")
	}
}

func TestDiagnoseAdvanceMiss_SkippedStep(t *testing.T) {
	rec := Order{ID: "o1", Status: StatusConfirmed}

	err := diagnoseAdvanceMiss(rec, StatusDelivered)
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for a skipped step, got %v", err)
	}
}
