package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/convo/pkg/domain"
)

// Definitions implements ports.DefinitionStore in memory. Definitions are
// kept serialized so every Load returns an independent copy.
type Definitions struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewDefinitions creates an empty definition store.
func NewDefinitions() *Definitions {
	return &Definitions{data: make(map[string][]byte)}
}

// NewFromDefinitions seeds a store, which is handy in tests.
func NewFromDefinitions(defs ...*domain.Definition) (*Definitions, error) {
	store := NewDefinitions()
	for _, def := range defs {
		if err := store.Save(context.Background(), def); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Save stores the definition under its ID.
func (d *Definitions) Save(ctx context.Context, def *domain.Definition) error {
	if def.ID == "" {
		return fmt.Errorf("definition missing ID")
	}
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal definition %s: %w", def.ID, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[def.ID] = data
	return nil
}

// Load retrieves a definition.
func (d *Definitions) Load(ctx context.Context, convoID string) (*domain.Definition, error) {
	d.mu.RLock()
	data, ok := d.data[convoID]
	d.mu.RUnlock()
	if !ok {
		return nil, domain.ErrConvoNotFound
	}

	var def domain.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition %s: %w", convoID, err)
	}
	return &def, nil
}

// Delete removes a definition.
func (d *Definitions) Delete(ctx context.Context, convoID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.data, convoID)
	return nil
}

// List returns all definition IDs in sorted order.
func (d *Definitions) List(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	keys := make([]string, 0, len(d.data))
	for k := range d.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
