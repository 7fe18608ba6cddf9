package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// fallbackFile holds secrets read from a local NAME=value file used when Secret Manager
// cannot be reached, typically during local development.
type fallbackFile map[string]string

func loadFallbackFile(path string) (fallbackFile, error) {
	values := fallbackFile{}
	path = strings.TrimSpace(path)
	if path == "" {
		return values, nil
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return values, fmt.Errorf("secrets: open fallback file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.TrimSpace(value)

		ref, err := ParseReference(key)
		if err != nil {
			values[key] = value
			continue
		}
		version := ref.Version
		if version == "" {
			version = latestVersion
		}
		values[ref.Name] = value
		values[versionKey(ref.Name, version)] = value
	}
	if err := scanner.Err(); err != nil {
		return values, fmt.Errorf("secrets: read fallback file %s: %w", path, err)
	}
	return values, nil
}

func (f fallbackFile) lookup(ref Reference, version string) (string, bool) {
	if value, ok := f[versionKey(ref.Name, version)]; ok {
		return value, true
	}
	value, ok := f[ref.Name]
	return value, ok
}
