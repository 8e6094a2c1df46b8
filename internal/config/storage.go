package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"connectorctl/pkg/logging"
)

// ErrNotFound is returned by Storage.Load and Storage.Delete for missing entries.
var ErrNotFound = errors.New("not found")

// Storage keeps YAML documents in subdirectories of the configuration
// directory, one file per name: <configPath>/<kind>/<name>.yaml.
type Storage struct {
	mu         sync.RWMutex
	configPath string // when empty, ~/.config/connectorctl is used
}

// NewStorage creates a Storage using the default configuration directory.
func NewStorage() *Storage {
	return &Storage{}
}

// NewStorageWithPath creates a Storage rooted at configPath.
func NewStorageWithPath(configPath string) *Storage {
	return &Storage{configPath: configPath}
}

// Save writes data as <kind>/<name>.yaml.
func (s *Storage) Save(kind, name string, data []byte) error {
	path, err := s.pathFor(kind, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	logging.Debug("Storage", "Saved %s/%s to %s", kind, name, path)
	return nil
}

// Load reads <kind>/<name>.yaml. Missing files yield an error wrapping ErrNotFound.
func (s *Storage) Load(kind, name string) ([]byte, error) {
	path, err := s.pathFor(kind, name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", kind, name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// Delete removes <kind>/<name>.yaml.
func (s *Storage) Delete(kind, name string) error {
	path, err := s.pathFor(kind, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s/%s: %w", kind, name, ErrNotFound)
		}
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}

	logging.Debug("Storage", "Deleted %s/%s", kind, name)
	return nil
}

// List returns the sorted names stored under kind.
func (s *Storage) List(kind string) ([]string, error) {
	if kind == "" {
		return nil, fmt.Errorf("kind cannot be empty")
	}
	dir, err := s.configDir()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(dir, kind))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

// Path returns the file path used for kind and name.
func (s *Storage) Path(kind, name string) (string, error) {
	return s.pathFor(kind, name)
}

func (s *Storage) configDir() (string, error) {
	if s.configPath != "" {
		return s.configPath, nil
	}
	return GetUserConfigDir()
}

func (s *Storage) pathFor(kind, name string) (string, error) {
	if kind == "" {
		return "", fmt.Errorf("kind cannot be empty")
	}
	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	dir, err := s.configDir()
	if err != nil {
		return "", fmt.Errorf("failed to get configuration directory: %w", err)
	}
	return filepath.Join(dir, kind, SanitizeFilename(name)+".yaml"), nil
}

var unsafeFilenameChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", ".", "_", " ", "_",
)

// SanitizeFilename maps name onto a safe file base name.
func SanitizeFilename(name string) string {
	sanitized := unsafeFilenameChars.Replace(strings.TrimSpace(name))
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		return "unnamed"
	}
	return sanitized
}
