package localdata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend keeps records as JSON files under a base directory. This is the
// default device-local storage: records live for the lifetime of the device
// profile and survive process restarts.
type FileBackend struct {
	basePath string
}

// NewFileBackend creates the base directory if missing.
func NewFileBackend(basePath string) (*FileBackend, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("data base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{basePath: basePath}, nil
}

// Load reads a record file. A missing file means the record does not exist.
func (f *FileBackend) Load(name string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.recordPath(name))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read record: %w", err)
	}
	return data, true, nil
}

// Store writes the record via a temp file and rename so a crash mid-write
// never leaves a partial record behind.
func (f *FileBackend) Store(name string, data []byte) error {
	target := f.recordPath(name)
	tmp, err := os.CreateTemp(f.basePath, safeRecordName(name)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace record: %w", err)
	}
	return nil
}

// Delete removes the record file if present.
func (f *FileBackend) Delete(name string) error {
	err := os.Remove(f.recordPath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (f *FileBackend) recordPath(name string) string {
	return filepath.Join(f.basePath, safeRecordName(name)+".json")
}

func safeRecordName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." {
		return "record"
	}
	return name
}
