package file

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// writeDocument serializes v as indented JSON at dir/id.json, creating the
// directory when needed.
func writeDocument(dir, id string, v any) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize document %s: %w", id, err)
	}

	target := filepath.Join(dir, id+".json")
	if err := os.WriteFile(target, data, filePerm); err != nil {
		return fmt.Errorf("failed to write document %s: %w", target, err)
	}

	return nil
}

// readDocument deserializes dir/id.json into v. Missing files surface as
// os.ErrNotExist for the caller to translate.
func readDocument(dir, id string, v any) error {
	target := filepath.Join(dir, id+".json")

	data, err := os.ReadFile(target)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse document %s: %w", target, err)
	}

	return nil
}

// listDocumentIDs returns the id portion of every *.json file in dir. A
// missing directory yields an empty list.
func listDocumentIDs(dir string) ([]string, error) {
	root := os.DirFS(dir)

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents in %s: %w", dir, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, file[:len(file)-len(".json")])
	}

	return ids, nil
}

// removeDocument deletes dir/id.json. Missing files surface as
// os.ErrNotExist.
func removeDocument(dir, id string) error {
	return os.Remove(filepath.Join(dir, id+".json"))
}
