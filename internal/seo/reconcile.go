package seo

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

const homeTitle = "Home"

// DefaultRouteCatalog lists every page the public site serves, in navigation order.
var DefaultRouteCatalog = []string{
	"/",
	"/about",
	"/services",
	"/portfolio",
	"/pricing",
	"/website-configurator",
	"/blog",
	"/contact",
	"/careers",
	"/privacy-policy",
	"/terms-of-service",
}

// Reconcile returns a default record for every route that has no stored record yet.
// Routes keep their catalog order, duplicates collapse and paths are compared normalised.
// Feeding the stored paths plus the returned records back in yields an empty result.
func Reconcile(routeCatalog, persistedPaths []string) []domain.PageSEO {
	known := make(map[string]struct{}, len(persistedPaths)+len(routeCatalog))
	for _, path := range persistedPaths {
		known[NormalizePath(path)] = struct{}{}
	}

	var missing []domain.PageSEO
	for _, route := range routeCatalog {
		path := NormalizePath(route)
		if _, ok := known[path]; ok {
			continue
		}
		known[path] = struct{}{}
		missing = append(missing, domain.PageSEO{
			Path:  path,
			Title: TitleFromPath(path),
		})
	}
	return missing
}

// NormalizePath trims whitespace, forces a leading slash and drops trailing slashes except on root.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}
	return path
}

// TitleFromPath derives a display title from the last segment of path, e.g. "/privacy-policy"
// becomes "Privacy Policy". The root path is titled "Home".
func TitleFromPath(path string) string {
	path = NormalizePath(path)
	if path == "/" {
		return homeTitle
	}
	segment := path[strings.LastIndex(path, "/")+1:]
	words := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	if len(words) == 0 {
		return homeTitle
	}
	caser := cases.Title(language.Und, cases.NoLower)
	for i, word := range words {
		words[i] = caser.String(word)
	}
	return strings.Join(words, " ")
}
