package storage

import (
	"errors"
	"path"
	"strings"
	"time"
)

const defaultAuditPrefix = "seo-audits"

// AuditObjectPath lays exports out by day so bucket lifecycle rules can age them out:
// <prefix>/2025/06/01/<id>.json.
func AuditObjectPath(prefix string, generatedAt time.Time, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return "", errors.New("storage: audit id must be a single path segment")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = defaultAuditPrefix
	}
	if generatedAt.IsZero() {
		return "", errors.New("storage: audit timestamp is required")
	}
	return path.Join(prefix, generatedAt.UTC().Format("2006/01/02"), id+".json"), nil
}
