package taskfile

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crewline/foreman/internal/model"
)

// TaskSet is the on-disk form of a task list.
type TaskSet struct {
	SchemaVersion int          `yaml:"schema_version"`
	FileType      string       `yaml:"file_type"`
	Tasks         []model.Task `yaml:"tasks"`
}

// ContextFile is the on-disk form of a worker context snapshot.
type ContextFile struct {
	SchemaVersion int                 `yaml:"schema_version"`
	FileType      string              `yaml:"file_type"`
	Context       model.WorkerContext `yaml:"context"`
}

// ConflictBundle pairs two offline edits with the base record they
// diverged from.
type ConflictBundle struct {
	SchemaVersion int             `yaml:"schema_version"`
	FileType      string          `yaml:"file_type"`
	Original      model.Task      `yaml:"original"`
	Local         model.TaskPatch `yaml:"local"`
	Remote        model.TaskPatch `yaml:"remote"`
}

// LoadTaskSet reads a task_set file and returns its tasks.
func LoadTaskSet(path string) ([]model.Task, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	if err := ValidateHeaderFromBytes(content, FileTypeTaskSet); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var file TaskSet
	if err := strictDecode(content, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range file.Tasks {
		if err := file.Tasks[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: task %d: %w", path, i, err)
		}
	}
	return file.Tasks, nil
}

// LoadContext reads a worker_context file. An absent context section
// yields the zero context, which the engine treats as "unknown".
func LoadContext(path string) (model.WorkerContext, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return model.WorkerContext{}, fmt.Errorf("read context file: %w", err)
	}
	if err := ValidateHeaderFromBytes(content, FileTypeWorkerContext); err != nil {
		return model.WorkerContext{}, fmt.Errorf("%s: %w", path, err)
	}

	var file ContextFile
	if err := strictDecode(content, &file); err != nil {
		return model.WorkerContext{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return file.Context, nil
}

// LoadConflict reads a conflict_bundle file.
func LoadConflict(path string) (ConflictBundle, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return ConflictBundle{}, fmt.Errorf("read conflict file: %w", err)
	}
	if err := ValidateHeaderFromBytes(content, FileTypeConflictBundle); err != nil {
		return ConflictBundle{}, fmt.Errorf("%s: %w", path, err)
	}

	var file ConflictBundle
	if err := strictDecode(content, &file); err != nil {
		return ConflictBundle{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := file.Original.Validate(); err != nil {
		return ConflictBundle{}, fmt.Errorf("%s: original: %w", path, err)
	}
	return file, nil
}

// strictDecode rejects unknown fields so typos in hand-edited files
// surface immediately instead of being silently dropped.
func strictDecode(content []byte, v interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	return decoder.Decode(v)
}
