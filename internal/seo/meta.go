package seo

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/textutil"
)

// Meta is the search metadata found in a rendered page.
type Meta struct {
	Title        string
	Description  string
	OGImage      string
	CanonicalURL string
	NoIndex      bool
}

// ExtractMeta parses an HTML document and reads its title, description, social image, canonical
// link and robots directive.
func ExtractMeta(r io.Reader) (Meta, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Meta{}, fmt.Errorf("seo: parse html: %w", err)
	}

	meta := Meta{
		Title:        textutil.CollapseSpace(doc.Find("head title").First().Text()),
		Description:  metaContent(doc, `meta[name="description"]`),
		OGImage:      metaContent(doc, `meta[property="og:image"]`),
		CanonicalURL: strings.TrimSpace(doc.Find(`link[rel="canonical"]`).First().AttrOr("href", "")),
	}
	if meta.Description == "" {
		meta.Description = metaContent(doc, `meta[property="og:description"]`)
	}
	if meta.Title == "" {
		meta.Title = metaContent(doc, `meta[property="og:title"]`)
	}
	doc.Find(`meta[name="robots"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, directive := range strings.Split(s.AttrOr("content", ""), ",") {
			if strings.EqualFold(strings.TrimSpace(directive), "noindex") {
				meta.NoIndex = true
				return false
			}
		}
		return true
	})
	return meta, nil
}

// MergeMeta fills the empty fields of page from meta. Fields an editor already set win.
func MergeMeta(page domain.PageSEO, meta Meta) domain.PageSEO {
	if strings.TrimSpace(page.Title) == "" {
		page.Title = meta.Title
	}
	if strings.TrimSpace(page.Description) == "" {
		page.Description = meta.Description
	}
	if strings.TrimSpace(page.OGImage) == "" {
		page.OGImage = meta.OGImage
	}
	if strings.TrimSpace(page.CanonicalURL) == "" {
		page.CanonicalURL = meta.CanonicalURL
	}
	if meta.NoIndex {
		page.NoIndex = true
	}
	return page
}

func metaContent(doc *goquery.Document, selector string) string {
	return textutil.CollapseSpace(doc.Find(selector).First().AttrOr("content", ""))
}
