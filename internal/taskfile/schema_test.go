package taskfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateHeaderFromBytes(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{"current version and matching type", "schema_version: 1\nfile_type: task_set\ntasks: []\n", FileTypeTaskSet, true},
		{"any known type accepted when unspecified", "schema_version: 1\nfile_type: conflict_bundle\n", "", true},
		{"newer version rejected", "schema_version: 99\nfile_type: task_set\n", FileTypeTaskSet, false},
		{"negative version rejected", "schema_version: -1\nfile_type: task_set\n", FileTypeTaskSet, false},
		{"missing version rejected", "file_type: task_set\n", FileTypeTaskSet, false},
		{"missing file_type rejected", "schema_version: 1\n", FileTypeTaskSet, false},
		{"unknown file_type rejected", "schema_version: 1\nfile_type: punch_list\n", "punch_list", false},
		{"mismatched file_type rejected", "schema_version: 1\nfile_type: worker_context\n", FileTypeTaskSet, false},
		{"malformed yaml rejected", ":\n  broken: [\n", FileTypeTaskSet, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateHeaderFromBytes([]byte(tc.content), tc.want)
			if tc.ok && err != nil {
				t.Errorf("expected valid envelope, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected an envelope error")
			}
		})
	}
}

func TestValidateHeaderFromBytes_EveryFileType(t *testing.T) {
	for ft := range validFileTypes {
		t.Run(ft, func(t *testing.T) {
			content := []byte("schema_version: 1\nfile_type: " + ft + "\n")
			if err := ValidateHeaderFromBytes(content, ft); err != nil {
				t.Errorf("expected %q to validate, got %v", ft, err)
			}
		})
	}
}

func TestValidateHeader_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	content := []byte("schema_version: 1\nfile_type: task_set\ntasks: []\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := ValidateHeader(path, FileTypeTaskSet); err != nil {
		t.Errorf("expected valid, got error: %v", err)
	}
}

func TestValidateHeader_MissingFile(t *testing.T) {
	err := ValidateHeader(filepath.Join(t.TempDir(), "absent.yaml"), FileTypeTaskSet)
	if err == nil {
		t.Error("expected error for missing file")
	}
}
