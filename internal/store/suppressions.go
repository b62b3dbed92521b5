package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
)

// SuppressFile persists the keys of reports a developer chose to ignore.
type SuppressFile struct {
	path string
}

type suppressData struct {
	Keys []string `json:"keys"`
}

// NewSuppressFile creates a SuppressFile.
func NewSuppressFile(path string) *SuppressFile {
	return &SuppressFile{path: path}
}

// Load reads suppressed keys from the file.
func (f *SuppressFile) Load() ([]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sd suppressData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	return sd.Keys, nil
}

// Save writes suppressed keys to the file.
func (f *SuppressFile) Save(keys []string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(suppressData{Keys: keys}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0600)
}

// Append adds a key to the file.
func (f *SuppressFile) Append(key string) error {
	keys, err := f.Load()
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return f.Save(append(keys, key))
}
