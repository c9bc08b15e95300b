package surface

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	regentErrors "github.com/regnantlabs/regent/internal/errors"

	"github.com/natefinch/atomic"
)

type Type string

const (
	TypeControl  Type = "control"
	TypeDelivery Type = "delivery"
)

type PermissionLevel string

const (
	PermissionConsumer PermissionLevel = "consumer"
	PermissionOperator PermissionLevel = "operator"
	PermissionAdmin    PermissionLevel = "admin"
)

// Rank orders permission levels for gating checks. Unknown levels rank lowest.
func (p PermissionLevel) Rank() int {
	switch p {
	case PermissionConsumer:
		return 1
	case PermissionOperator:
		return 2
	case PermissionAdmin:
		return 3
	}
	return 0
}

// Definition describes one registered input channel.
type Definition struct {
	ID           string          `json:"id"`
	Type         Type            `json:"type"`
	Name         string          `json:"name"`
	Capabilities []string        `json:"capabilities,omitempty"`
	Permission   PermissionLevel `json:"permission"`
	RegisteredAt time.Time       `json:"registered_at"`
}

// Registry is a keyed directory of surfaces consulted by the command bus for
// existence checks. Registration is idempotent on id; re-registering
// overwrites. The registry enforces nothing itself.
type Registry struct {
	storePath string
	surfaces  map[string]Definition
	mu        sync.RWMutex
}

func NewRegistry(basePath string) (*Registry, error) {
	storePath := filepath.Join(basePath, "surfaces.json")
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create surfaces dir: %w", err)
	}

	r := &Registry{
		storePath: storePath,
		surfaces:  make(map[string]Definition),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.storePath)
	if err != nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &r.surfaces); err != nil {
		return fmt.Errorf("failed to parse surface registry: %w", err)
	}
	return nil
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.surfaces, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(r.storePath, bytes.NewReader(data))
}

// Register adds or overwrites a surface definition.
func (r *Registry) Register(def Definition) error {
	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		return regentErrors.InvalidInput("surface id is required")
	}
	if def.Type == "" {
		def.Type = TypeControl
	}
	if def.Permission == "" {
		def.Permission = PermissionConsumer
	}
	if def.RegisteredAt.IsZero() {
		def.RegisteredAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.surfaces[def.ID]
	r.surfaces[def.ID] = def
	if err := r.save(); err != nil {
		// Keep memory and disk in agreement; a definition that did not
		// persist must not be consultable either.
		if existed {
			r.surfaces[def.ID] = prev
		} else {
			delete(r.surfaces, def.ID)
		}
		return fmt.Errorf("failed to persist surface registry: %w", err)
	}

	slog.Info("Surface registered", "id", def.ID, "type", def.Type, "permission", def.Permission)
	return nil
}

// Get returns the definition for id, or a not-found error.
func (r *Registry) Get(id string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.surfaces[id]
	if !ok {
		return Definition{}, regentErrors.NotFound(fmt.Sprintf("surface %s", id))
	}
	return def, nil
}

// List returns all registered surfaces sorted by id.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.surfaces))
	for _, def := range r.surfaces {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].ID < defs[j].ID
	})
	return defs
}
