package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const fileKVName = "secure-store.json"

// FileKV stores all keys in one JSON file inside a private directory.
// Writes go to a temp file first and are renamed into place.
type FileKV struct {
	mu   sync.Mutex
	path string
}

type fileKVContents struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

// NewFileKV opens or creates the store under dir with 0700 permissions.
func NewFileKV(dir string, log zerolog.Logger) (*FileKV, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".wellbuilt", "secure")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: create directory: %v", ErrStoreUnavailable, err)
	}

	log.Debug().Str("dir", dir).Msg("secure file store initialized")

	return &FileKV{path: filepath.Join(dir, fileKVName)}, nil
}

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := contents.Values[key]
	return v, ok, nil
}

func (f *FileKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.load()
	if err != nil {
		return err
	}
	contents.Values[key] = value
	return f.save(contents)
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := contents.Values[key]; !ok {
		return nil
	}
	delete(contents.Values, key)
	return f.save(contents)
}

func (f *FileKV) load() (*fileKVContents, error) {
	contents := &fileKVContents{Version: 1, Values: map[string]string{}}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return contents, nil
		}
		return nil, fmt.Errorf("%w: read: %v", ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(data, contents); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrStoreUnavailable, err)
	}
	if contents.Values == nil {
		contents.Values = map[string]string{}
	}
	return contents, nil
}

func (f *FileKV) save(contents *fileKVContents) error {
	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStoreUnavailable, err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("%w: write: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: rename: %v", ErrStoreUnavailable, err)
	}
	return nil
}
