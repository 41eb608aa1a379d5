package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/convo/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Definitions implements ports.DefinitionStore on a Redis hash, one field per
// convo ID.
type Definitions struct {
	client *backend.Client
	key    string
}

// NewDefinitions creates a definition store. An empty prefix selects the default.
func NewDefinitions(client *backend.Client, prefix string) *Definitions {
	if prefix == "" {
		prefix = defaultDefinitionPrefix
	}
	return &Definitions{client: client, key: prefix + "all"}
}

// Save stores the definition as JSON.
func (d *Definitions) Save(ctx context.Context, def *domain.Definition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}
	if err := d.client.HSet(ctx, d.key, def.ID, data).Err(); err != nil {
		return domain.NewCollaboratorError("definition save", domain.KindConnectivity, err)
	}
	return nil
}

// Load retrieves a definition.
func (d *Definitions) Load(ctx context.Context, convoID string) (*domain.Definition, error) {
	val, err := d.client.HGet(ctx, d.key, convoID).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrConvoNotFound
		}
		return nil, domain.NewCollaboratorError("definition load", domain.KindConnectivity, err)
	}

	var def domain.Definition
	if err := json.Unmarshal([]byte(val), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	return &def, nil
}

// Delete removes a definition.
func (d *Definitions) Delete(ctx context.Context, convoID string) error {
	return d.client.HDel(ctx, d.key, convoID).Err()
}

// List returns all stored definition IDs in sorted order.
func (d *Definitions) List(ctx context.Context) ([]string, error) {
	ids, err := d.client.HKeys(ctx, d.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
