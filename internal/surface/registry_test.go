package surface

import (
	"os"
	"testing"

	regentErrors "github.com/regnantlabs/regent/internal/errors"
)

func TestRegisterAndGet(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	err = r.Register(Definition{
		ID:           "slack",
		Type:         TypeDelivery,
		Name:         "Slack",
		Capabilities: []string{"chat"},
		Permission:   PermissionOperator,
	})
	if err != nil {
		t.Fatal(err)
	}

	def, err := r.Get("slack")
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != "Slack" || def.Permission != PermissionOperator {
		t.Errorf("Unexpected definition %+v", def)
	}
	if def.RegisteredAt.IsZero() {
		t.Error("RegisteredAt not defaulted")
	}
}

func TestRegisterDefaults(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Register(Definition{ID: "  cli  "}); err != nil {
		t.Fatal(err)
	}

	def, err := r.Get("cli")
	if err != nil {
		t.Fatal(err)
	}
	if def.Type != TypeControl || def.Permission != PermissionConsumer {
		t.Errorf("Defaults not applied: %+v", def)
	}
}

func TestRegisterRequiresID(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	err = r.Register(Definition{ID: "   "})
	if !regentErrors.IsCategory(err, regentErrors.ErrInvalidInput) {
		t.Errorf("Expected invalid input, got %v", err)
	}
}

func TestRegisterIsIdempotentOverwrite(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Register(Definition{ID: "api", Permission: PermissionConsumer}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Definition{ID: "api", Permission: PermissionAdmin}); err != nil {
		t.Fatal(err)
	}

	def, err := r.Get("api")
	if err != nil {
		t.Fatal(err)
	}
	if def.Permission != PermissionAdmin {
		t.Errorf("Re-register did not overwrite: %+v", def)
	}
	if len(r.List()) != 1 {
		t.Errorf("Expected 1 surface, got %d", len(r.List()))
	}
}

func TestGetNotFound(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Get("missing")
	if !regentErrors.IsCategory(err, regentErrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestRegistryPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()

	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Definition{ID: "telegram", Type: TypeDelivery, Permission: PermissionOperator}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	def, err := reloaded.Get("telegram")
	if err != nil {
		t.Fatalf("Surface lost across reload: %v", err)
	}
	if def.Type != TypeDelivery {
		t.Errorf("Unexpected definition after reload: %+v", def)
	}
}

func TestListSorted(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(Definition{ID: id}); err != nil {
			t.Fatal(err)
		}
	}

	defs := r.List()
	if len(defs) != 3 {
		t.Fatalf("Expected 3 surfaces, got %d", len(defs))
	}
	if defs[0].ID != "alpha" || defs[2].ID != "zeta" {
		t.Errorf("List not sorted: %+v", defs)
	}
}

func TestPermissionRank(t *testing.T) {
	if PermissionAdmin.Rank() <= PermissionOperator.Rank() {
		t.Error("admin should outrank operator")
	}
	if PermissionOperator.Rank() <= PermissionConsumer.Rank() {
		t.Error("operator should outrank consumer")
	}
	if PermissionLevel("bogus").Rank() != 0 {
		t.Error("unknown level should rank lowest")
	}
}

func TestRegisterRollsBackOnPersistFailure(t *testing.T) {
	dir := t.TempDir()

	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Definition{ID: "api", Permission: PermissionConsumer}); err != nil {
		t.Fatal(err)
	}

	// Removing the directory makes the atomic write fail, so registration
	// must leave the in-memory map exactly as it was.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	if err := r.Register(Definition{ID: "slack", Type: TypeDelivery}); err == nil {
		t.Fatal("Expected persist failure")
	}
	if _, err := r.Get("slack"); !regentErrors.IsCategory(err, regentErrors.ErrNotFound) {
		t.Errorf("Unpersisted surface should not be registered, got %v", err)
	}

	if err := r.Register(Definition{ID: "api", Permission: PermissionAdmin}); err == nil {
		t.Fatal("Expected persist failure")
	}
	def, err := r.Get("api")
	if err != nil {
		t.Fatal(err)
	}
	if def.Permission != PermissionConsumer {
		t.Errorf("Failed overwrite should restore previous definition, got %+v", def)
	}
}
