package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/services"
)

const (
	auditContentType         = "application/json"
	defaultDownloadURLExpiry = 15 * time.Minute
)

// ObjectWriterFactory opens a writer for a new object. The object must not already exist.
type ObjectWriterFactory func(ctx context.Context, bucket, object string, meta ObjectMeta) io.WriteCloser

// ObjectMeta is written alongside the object body.
type ObjectMeta struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// GCSWriterFactory returns a factory writing through client with a does-not-exist precondition.
func GCSWriterFactory(client *gcs.Client) ObjectWriterFactory {
	return func(ctx context.Context, bucket, object string, meta ObjectMeta) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
		w.ContentType = meta.ContentType
		w.CacheControl = meta.CacheControl
		w.Metadata = meta.Metadata
		return w
	}
}

// AuditWriter exports SEO audits as JSON objects to Cloud Storage.
type AuditWriter struct {
	bucket string
	prefix string
	open   ObjectWriterFactory
	signer Signer
	urlTTL time.Duration
	now    func() time.Time
}

var _ services.AuditWriter = (*AuditWriter)(nil)

// AuditWriterOption customises an AuditWriter.
type AuditWriterOption func(*AuditWriter)

// WithPrefix overrides the object prefix (seo-audits by default).
func WithPrefix(prefix string) AuditWriterOption {
	return func(w *AuditWriter) {
		w.prefix = prefix
	}
}

// WithSigner enables short-lived download links for exported audits.
func WithSigner(signer Signer, ttl time.Duration) AuditWriterOption {
	return func(w *AuditWriter) {
		w.signer = signer
		if ttl > 0 {
			w.urlTTL = ttl
		}
	}
}

// WithClock injects the time source used for link expiry.
func WithClock(clock func() time.Time) AuditWriterOption {
	return func(w *AuditWriter) {
		if clock != nil {
			w.now = clock
		}
	}
}

// NewAuditWriter constructs a writer for bucket.
func NewAuditWriter(bucket string, open ObjectWriterFactory, opts ...AuditWriterOption) (*AuditWriter, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: exports bucket is required")
	}
	if open == nil {
		return nil, errors.New("storage: object writer factory is required")
	}
	w := &AuditWriter{
		bucket: bucket,
		open:   open,
		urlTTL: defaultDownloadURLExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

func (w *AuditWriter) WriteAudit(ctx context.Context, audit services.SEOAudit) (services.StoredAudit, error) {
	object, err := AuditObjectPath(w.prefix, audit.GeneratedAt, audit.ID)
	if err != nil {
		return services.StoredAudit{}, err
	}

	writer := w.open(ctx, w.bucket, object, ObjectMeta{
		ContentType:  auditContentType,
		CacheControl: "private, max-age=0",
		Metadata: map[string]string{
			"auditId":   audit.ID,
			"siteScore": fmt.Sprint(audit.Health.Score),
		},
	})
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newAuditDocument(audit)); err != nil {
		_ = writer.Close()
		return services.StoredAudit{}, fmt.Errorf("storage: encode audit %s: %w", audit.ID, err)
	}
	if err := writer.Close(); err != nil {
		return services.StoredAudit{}, fmt.Errorf("storage: write gs://%s/%s: %w", w.bucket, object, err)
	}

	stored := services.StoredAudit{Location: fmt.Sprintf("gs://%s/%s", w.bucket, object)}
	if w.signer == nil {
		return stored, nil
	}
	expires := w.now().UTC().Add(w.urlTTL)
	url, err := w.signedURL(ctx, object, expires)
	if err != nil {
		// callers fall back to the gs:// location
		return stored, nil
	}
	stored.DownloadURL = url
	stored.ExpiresAt = expires
	return stored, nil
}

func (w *AuditWriter) signedURL(ctx context.Context, object string, expires time.Time) (string, error) {
	opts := &gcs.SignedURLOptions{
		GoogleAccessID: w.signer.Email(),
		SignBytes: func(payload []byte) ([]byte, error) {
			return w.signer.SignBytes(ctx, payload)
		},
		Method:  "GET",
		Expires: expires,
		Scheme:  gcs.SigningSchemeV4,
	}
	return gcs.SignedURL(w.bucket, object, opts)
}

type auditDocument struct {
	ID          string            `json:"id"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Health      auditHealth       `json:"health"`
	Pages       []auditPageRecord `json:"pages"`
}

type auditHealth struct {
	Score     int    `json:"score"`
	Rating    string `json:"rating"`
	PageCount int    `json:"pageCount"`
}

type auditPageRecord struct {
	Path          string    `json:"path"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	FocusKeyword  string    `json:"focusKeyword,omitempty"`
	OGImage       string    `json:"ogImage,omitempty"`
	CanonicalURL  string    `json:"canonicalUrl,omitempty"`
	NoIndex       bool      `json:"noIndex"`
	IsCornerstone bool      `json:"isCornerstone"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Score         int       `json:"score"`
	Rating        string    `json:"rating"`
	Issues        []string  `json:"issues"`
}

func newAuditDocument(audit services.SEOAudit) auditDocument {
	doc := auditDocument{
		ID:          audit.ID,
		GeneratedAt: audit.GeneratedAt.UTC(),
		Health: auditHealth{
			Score:     audit.Health.Score,
			Rating:    audit.Health.Rating,
			PageCount: audit.Health.PageCount,
		},
		Pages: make([]auditPageRecord, 0, len(audit.Pages)),
	}
	for _, report := range audit.Pages {
		issues := report.Issues
		if issues == nil {
			issues = []string{}
		}
		doc.Pages = append(doc.Pages, auditPageRecord{
			Path:          report.Page.Path,
			Title:         report.Page.Title,
			Description:   report.Page.Description,
			FocusKeyword:  report.Page.FocusKeyword,
			OGImage:       report.Page.OGImage,
			CanonicalURL:  report.Page.CanonicalURL,
			NoIndex:       report.Page.NoIndex,
			IsCornerstone: report.Page.IsCornerstone,
			UpdatedAt:     report.Page.UpdatedAt.UTC(),
			Score:         report.Score,
			Rating:        report.Rating,
			Issues:        issues,
		})
	}
	return doc
}
