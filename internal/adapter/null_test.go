package adapter

import (
	"context"
	"testing"
)

func TestNullAdapterSwallowsOutput(t *testing.T) {
	a := NewNullAdapter("scheduler")
	if a.Name() != "scheduler" {
		t.Errorf("Unexpected name %q", a.Name())
	}
	if err := a.Send(context.Background(), "", "anything"); err != nil {
		t.Errorf("Send should never fail: %v", err)
	}
	if err := a.Health(context.Background()); err != nil {
		t.Errorf("Health should never fail: %v", err)
	}
}

func TestNullAdapterDefaultName(t *testing.T) {
	if got := NewNullAdapter("").Name(); got != "null" {
		t.Errorf("Expected default name, got %q", got)
	}
}
