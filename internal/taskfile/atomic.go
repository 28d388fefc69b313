package taskfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AtomicWrite renders data as YAML and writes it atomically.
func AtomicWrite(path string, data any) error {
	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return AtomicWriteRaw(path, content)
}

// AtomicWriteRaw replaces path with content without ever exposing a partial
// file. The content is staged in a temp file beside the target, verified to
// parse as YAML, and renamed into place; a concurrent reader sees either the
// old file or the new one. An existing file is kept as path.bak first.
func AtomicWriteRaw(path string, content []byte) error {
	dir := filepath.Dir(path)

	tmpName, err := stageTemp(dir, content)
	if err != nil {
		return err
	}
	// Once the rename lands this removal is a no-op.
	defer os.Remove(tmpName)

	if err := verifyStaged(tmpName); err != nil {
		return err
	}
	if err := backupExisting(path); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}

	// The rename is only durable once the directory entry is flushed.
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

// stageTemp writes content to a synced temp file in dir and returns its name.
func stageTemp(dir string, content []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".foreman-tmp-*.yaml")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()

	_, err = tmp.Write(content)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(name)
		return "", fmt.Errorf("stage %s: %w", filepath.Base(name), err)
	}
	return name, nil
}

// verifyStaged re-reads the staged bytes and confirms they parse as YAML, so
// a garbled write can never be renamed over good data.
func verifyStaged(name string) error {
	written, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("re-read staged file: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(written, &doc); err != nil {
		return fmt.Errorf("staged content is not valid YAML: %w", err)
	}
	return nil
}

// backupExisting copies path to path.bak when path exists.
func backupExisting(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open for backup: %w", err)
	}
	defer in.Close()

	out, err := os.Create(path + ".bak")
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy backup: %w", err)
	}
	return out.Sync()
}
