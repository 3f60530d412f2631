package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"path/filepath"

	"authzd/internal/authz/model"
)

//go:embed defs/roles/*.json defs/annotations.json
var defsFS embed.FS

// Loader loads role and annotation definitions from embedded JSON files.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// LoadRoles loads all role definitions.
func (l *Loader) LoadRoles() (map[string]*model.RoleDefinition, error) {
	roles := make(map[string]*model.RoleDefinition)

	entries, err := defsFS.ReadDir("defs/roles")
	if err != nil {
		return nil, fmt.Errorf("failed to read roles directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := defsFS.ReadFile("defs/roles/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read role file %s: %w", entry.Name(), err)
		}

		var def model.RoleDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse role file %s: %w", entry.Name(), err)
		}
		if def.Name == "" {
			return nil, fmt.Errorf("role file %s has no name", entry.Name())
		}

		roles[def.Name] = &def
	}

	return roles, nil
}

// LoadAnnotations loads the annotation-type → required-permissions mapping.
func (l *Loader) LoadAnnotations() (map[model.AnnotationType][]model.Permission, error) {
	data, err := defsFS.ReadFile("defs/annotations.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations.json: %w", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse annotations.json: %w", err)
	}

	mapping := make(map[model.AnnotationType][]model.Permission, len(raw))
	for name, permStrings := range raw {
		at, ok := model.ParseAnnotationType(name)
		if !ok {
			return nil, fmt.Errorf("unknown annotation type in annotations.json: %q", name)
		}
		perms := make([]model.Permission, 0, len(permStrings))
		for _, s := range permStrings {
			p, err := model.ParsePermission(s)
			if err != nil {
				return nil, fmt.Errorf("annotation %s: %w", name, err)
			}
			perms = append(perms, p)
		}
		mapping[at] = perms
	}

	return mapping, nil
}
