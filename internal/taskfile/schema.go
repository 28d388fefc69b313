// Package taskfile reads and writes the YAML files foreman exchanges with
// site tooling: task sets, worker context snapshots, and conflict bundles.
// Every file opens with a schema envelope that is checked before the payload
// is decoded strictly.
package taskfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CurrentSchemaVersion is the newest envelope version this build reads.
const CurrentSchemaVersion = 1

const (
	FileTypeTaskSet        = "task_set"
	FileTypeWorkerContext  = "worker_context"
	FileTypeConflictBundle = "conflict_bundle"
)

var validFileTypes = map[string]bool{
	FileTypeTaskSet:        true,
	FileTypeWorkerContext:  true,
	FileTypeConflictBundle: true,
}

// SchemaHeader is the envelope every task file starts with.
type SchemaHeader struct {
	SchemaVersion int    `yaml:"schema_version"`
	FileType      string `yaml:"file_type"`
}

// validate checks the envelope. An empty want accepts any known file type.
func (h SchemaHeader) validate(want string) error {
	switch {
	case h.SchemaVersion < 1:
		return fmt.Errorf("schema_version must be at least 1, got %d", h.SchemaVersion)
	case h.SchemaVersion > CurrentSchemaVersion:
		return fmt.Errorf("schema_version %d is newer than this build supports (%d)", h.SchemaVersion, CurrentSchemaVersion)
	case h.FileType == "":
		return fmt.Errorf("file_type is required")
	case !validFileTypes[h.FileType]:
		return fmt.Errorf("unrecognized file_type %q", h.FileType)
	case want != "" && h.FileType != want:
		return fmt.Errorf("file_type mismatch: have %q, want %q", h.FileType, want)
	}
	return nil
}

// ValidateHeader checks the schema envelope of the file at path.
func ValidateHeader(path string, expectedFileType string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return ValidateHeaderFromBytes(content, expectedFileType)
}

// ValidateHeaderFromBytes checks the schema envelope of raw file content.
func ValidateHeaderFromBytes(content []byte, expectedFileType string) error {
	var header SchemaHeader
	if err := yaml.Unmarshal(content, &header); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return header.validate(expectedFileType)
}
