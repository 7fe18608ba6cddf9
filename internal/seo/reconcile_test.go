package seo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

func TestReconcile_MissingRoute(t *testing.T) {
	records := Reconcile([]string{"/", "/about"}, []string{"/"})
	require.Len(t, records, 1)
	assert.Equal(t, domain.PageSEO{Path: "/about", Title: "About"}, records[0])
}

func TestReconcile_EmptyStoreYieldsWholeCatalog(t *testing.T) {
	records := Reconcile(DefaultRouteCatalog, nil)
	require.Len(t, records, len(DefaultRouteCatalog))
	for i, record := range records {
		assert.Equal(t, DefaultRouteCatalog[i], record.Path)
		assert.Empty(t, record.Description)
		assert.False(t, record.NoIndex)
		assert.False(t, record.IsCornerstone)
	}
	assert.Equal(t, "Home", records[0].Title)
}

func TestReconcile_Idempotent(t *testing.T) {
	persisted := []string{"/blog", "/about"}
	created := Reconcile(DefaultRouteCatalog, persisted)
	require.NotEmpty(t, created)

	for _, record := range created {
		persisted = append(persisted, record.Path)
	}
	assert.Empty(t, Reconcile(DefaultRouteCatalog, persisted))
}

func TestReconcile_NormalisesAndDeduplicates(t *testing.T) {
	routes := []string{"/", "/pricing/", "pricing", "/contact", "/contact"}
	records := Reconcile(routes, []string{" /contact/ "})

	paths := make([]string, 0, len(records))
	for _, record := range records {
		paths = append(paths, record.Path)
	}
	assert.Equal(t, []string{"/", "/pricing"}, paths)
}

func TestReconcile_KeepsOrphans(t *testing.T) {
	assert.Empty(t, Reconcile([]string{"/about"}, []string{"/about", "/old-landing"}))
}

func TestTitleFromPath(t *testing.T) {
	tests := map[string]string{
		"/":                      "Home",
		"":                       "Home",
		"/about":                 "About",
		"/privacy-policy":        "Privacy Policy",
		"/website-configurator/": "Website Configurator",
		"/blog/seo_tips":         "Seo Tips",
		"/services/SEO-audit":    "SEO Audit",
	}
	for path, want := range tests {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, want, TitleFromPath(path))
		})
	}
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/", NormalizePath("///"))
	assert.Equal(t, "/about", NormalizePath("about/"))
	assert.Equal(t, "/blog/post", NormalizePath(" /blog/post "))
}
