package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MiguelElGallo/evsnow/pkg/mapping"
)

// LoadMappings reads the mappings file named by Config.MappingsFile: a JSON
// array of mapping.Spec records (spec.md §6). Mapping definitions are
// supplied by the external loader, never hard-coded in the core.
func LoadMappings(path string) ([]mapping.Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mappings file %s: %w", path, err)
	}

	var specs []mapping.Spec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("parsing mappings file %s: %w", path, err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("mappings file %s defines no mappings", path)
	}
	for i, s := range specs {
		if s.SourceHub == "" || s.TargetTable == "" {
			return nil, fmt.Errorf("mapping %d in %s: source_hub and target_table are required", i, path)
		}
	}
	return specs, nil
}
