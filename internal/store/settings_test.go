package store

import (
	"testing"

	regentErrors "github.com/regnantlabs/regent/internal/errors"
)

func TestGovernanceModeDefaultEmpty(t *testing.T) {
	s := openTestStore(t)

	mode, err := s.GovernanceMode("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if mode != "" {
		t.Errorf("Expected no override, got %q", mode)
	}
}

func TestSetGovernanceMode(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetGovernanceMode("ws-1", "warning"); err != nil {
		t.Fatal(err)
	}
	mode, err := s.GovernanceMode("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if mode != "warning" {
		t.Errorf("Expected warning, got %q", mode)
	}

	// Other workspaces are unaffected.
	mode, err = s.GovernanceMode("ws-2")
	if err != nil {
		t.Fatal(err)
	}
	if mode != "" {
		t.Errorf("Override leaked across workspaces: %q", mode)
	}
}

func TestSetGovernanceModeRequiresWorkspace(t *testing.T) {
	s := openTestStore(t)

	err := s.SetGovernanceMode("", "strict")
	if !regentErrors.IsCategory(err, regentErrors.ErrInvalidInput) {
		t.Errorf("Expected invalid input, got %v", err)
	}
}

func TestIncrDailyCount(t *testing.T) {
	s := openTestStore(t)

	for want := 1; want <= 3; want++ {
		count, err := s.IncrDailyCount("ws-1", "actor-1")
		if err != nil {
			t.Fatal(err)
		}
		if count != want {
			t.Errorf("Expected count %d, got %d", want, count)
		}
	}

	count, err := s.DailyCount("ws-1", "actor-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected stored count 3, got %d", count)
	}

	// Counters are per actor.
	count, err = s.DailyCount("ws-1", "actor-2")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected 0 for fresh actor, got %d", count)
	}
}
