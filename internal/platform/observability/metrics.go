package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/observability"

// Metrics holds the business instruments recorded by the configurator and SEO services.
// A zero Metrics value is safe to use and records nothing.
type Metrics struct {
	quotesSubmitted metric.Int64Counter
	quoteTotal      metric.Int64Histogram
	pageScore       metric.Int64Histogram
	siteHealth      metric.Int64Gauge
	pagesCreated    metric.Int64Counter
}

// NewMetrics registers instruments on meter, or on the global provider when meter is nil.
// Instruments that fail to register are logged and skipped.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("observability: unable to register metric", zap.String("metric", name), zap.Error(err))
		}
	}

	m := &Metrics{}
	var err error
	m.quotesSubmitted, err = meter.Int64Counter("site.configurator.quotes_submitted",
		metric.WithDescription("Quotes submitted from the website configurator"))
	warn("site.configurator.quotes_submitted", err)
	m.quoteTotal, err = meter.Int64Histogram("site.configurator.quote_total",
		metric.WithDescription("Total price of submitted quotes in minor currency units"))
	warn("site.configurator.quote_total", err)
	m.pageScore, err = meter.Int64Histogram("site.seo.page_score",
		metric.WithDescription("SEO score of pages as they are saved"))
	warn("site.seo.page_score", err)
	m.siteHealth, err = meter.Int64Gauge("site.seo.health",
		metric.WithDescription("Latest site-wide SEO health score"))
	warn("site.seo.health", err)
	m.pagesCreated, err = meter.Int64Counter("site.seo.pages_created",
		metric.WithDescription("Page SEO records created by route reconciliation"))
	warn("site.seo.pages_created", err)
	return m
}

// QuoteSubmitted records a submitted quote.
func (m *Metrics) QuoteSubmitted(ctx context.Context, currency string, total int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("currency", currency))
	if m.quotesSubmitted != nil {
		m.quotesSubmitted.Add(ctx, 1, attrs)
	}
	if m.quoteTotal != nil {
		m.quoteTotal.Record(ctx, total, attrs)
	}
}

// PageScored records the score of a page after an edit.
func (m *Metrics) PageScored(ctx context.Context, path string, score int) {
	if m == nil || m.pageScore == nil {
		return
	}
	m.pageScore.Record(ctx, int64(score), metric.WithAttributes(attribute.String("path", clean(path, 180))))
}

// SiteHealthComputed records the aggregate site score.
func (m *Metrics) SiteHealthComputed(ctx context.Context, score int) {
	if m == nil || m.siteHealth == nil {
		return
	}
	m.siteHealth.Record(ctx, int64(score))
}

// PagesCreated records records inserted by a reconciliation run.
func (m *Metrics) PagesCreated(ctx context.Context, trigger string, n int) {
	if m == nil || m.pagesCreated == nil || n <= 0 {
		return
	}
	m.pagesCreated.Add(ctx, int64(n), metric.WithAttributes(attribute.String("trigger", trigger)))
}
