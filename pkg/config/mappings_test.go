package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMappingsFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mappings.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing mappings file: %v", err)
	}
	return path
}

func TestLoadMappingsParsesValidFile(t *testing.T) {
	path := writeMappingsFile(t, `[
		{
			"source_namespace": "ns.servicebus.windows.net",
			"source_hub": "orders",
			"consumer_group": "$Default",
			"target_db": "RAW",
			"target_schema": "PUBLIC",
			"target_table": "ORDERS_RAW",
			"pipe_name": "orders_pipe",
			"batching_overrides": {"max_wait": "2s", "max_batch_size": 250}
		}
	]`)

	specs, err := LoadMappings(path)
	if err != nil {
		t.Fatalf("LoadMappings: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("want 1 mapping, got %d", len(specs))
	}
	if specs[0].TargetTable != "ORDERS_RAW" {
		t.Errorf("TargetTable = %q, want ORDERS_RAW", specs[0].TargetTable)
	}
	if specs[0].BatchingOverrides.MaxBatchSize == nil || *specs[0].BatchingOverrides.MaxBatchSize != 250 {
		t.Errorf("MaxBatchSize override not parsed")
	}
}

func TestLoadMappingsRejectsEmptyFile(t *testing.T) {
	path := writeMappingsFile(t, `[]`)
	if _, err := LoadMappings(path); err == nil {
		t.Fatal("want error for empty mappings file, got nil")
	}
}

func TestLoadMappingsRejectsMissingRequiredFields(t *testing.T) {
	path := writeMappingsFile(t, `[{"target_table": "T"}]`)
	if _, err := LoadMappings(path); err == nil {
		t.Fatal("want error for missing source_hub, got nil")
	}
}

func TestLoadMappingsRejectsMissingFile(t *testing.T) {
	if _, err := LoadMappings(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("want error for missing file, got nil")
	}
}
