package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/convo/internal/validator"
	"github.com/aretw0/convo/pkg/domain"
	"gopkg.in/yaml.v3"
)

// extensions are tried in order when looking a convo up by ID.
var extensions = []string{".yaml", ".yml", ".json"}

// Definitions implements ports.DefinitionStore over a directory of YAML or
// JSON files named after the convo ID. New definitions are written as YAML.
type Definitions struct {
	BasePath string
}

// NewDefinitions creates a definition store rooted at basePath.
// If basePath is empty, it defaults to ".convo/convos".
func NewDefinitions(basePath string) *Definitions {
	if basePath == "" {
		basePath = filepath.Join(".convo", "convos")
	}
	return &Definitions{BasePath: basePath}
}

// LoadFile decodes a single definition file. The format follows the extension;
// anything other than .json is treated as YAML.
func LoadFile(path string) (*domain.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, filepath.Ext(path))
}

// Decode parses a definition in the format named by ext.
func Decode(data []byte, ext string) (*domain.Definition, error) {
	var def domain.Definition
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &def)
	} else {
		err = yaml.Unmarshal(data, &def)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	return &def, nil
}

func (d *Definitions) find(convoID string) (string, error) {
	if convoID == "" || strings.ContainsAny(convoID, `/\`) {
		return "", fmt.Errorf("invalid convo id %q", convoID)
	}
	for _, ext := range extensions {
		path := filepath.Join(d.BasePath, convoID+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", domain.ErrConvoNotFound
}

// Save writes the definition, keeping the format of an existing file.
func (d *Definitions) Save(ctx context.Context, def *domain.Definition) error {
	path, err := d.find(def.ID)
	if errors.Is(err, domain.ErrConvoNotFound) {
		path = filepath.Join(d.BasePath, def.ID+".yaml")
	} else if err != nil {
		return err
	}

	var data []byte
	if filepath.Ext(path) == ".json" {
		data, err = json.MarshalIndent(def, "", "  ")
	} else {
		data, err = yaml.Marshal(def)
	}
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}
	return writeAtomic(path, data)
}

// Load reads a definition by ID. Files are edited by hand, so the graph is
// validated here rather than trusted like one saved through the engine.
func (d *Definitions) Load(ctx context.Context, convoID string) (*domain.Definition, error) {
	path, err := d.find(convoID)
	if err != nil {
		return nil, err
	}
	def, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if def.ID == "" {
		def.ID = convoID
	}
	if _, err := validator.ValidateDefinition(def); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Delete removes the definition file.
func (d *Definitions) Delete(ctx context.Context, convoID string) error {
	path, err := d.find(convoID)
	if errors.Is(err, domain.ErrConvoNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// List returns the IDs of every definition file in the directory.
func (d *Definitions) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	seen := map[string]bool{}
	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		ext := filepath.Ext(name)
		if entry.IsDir() || strings.HasPrefix(name, "tmp-") {
			continue
		}
		for _, known := range extensions {
			if ext == known {
				id := strings.TrimSuffix(name, ext)
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
