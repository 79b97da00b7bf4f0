package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/walker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestEmit(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	m.Emit(ctx, walker.Event{Kind: walker.EventPageExtracted, Site: "a", Records: 7})
	m.Emit(ctx, walker.Event{Kind: walker.EventPageExtracted, Site: "a", Records: 3})
	m.Emit(ctx, walker.Event{Kind: walker.EventRowSkipped, Site: "a", Reason: "header"})
	m.Emit(ctx, walker.Event{Kind: walker.EventTextFallback, Site: "a"})
	m.Emit(ctx, walker.Event{Kind: walker.EventStopped, Site: "a", Stop: models.StopNoData})
	m.Emit(ctx, walker.Event{Kind: walker.EventInterrupted, Site: "b", Stop: models.StopInterrupted})

	require.Equal(t, 2.0, testutil.ToFloat64(m.PagesTotal.WithLabelValues("a")))
	require.Equal(t, 10.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("a")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RowsSkippedTotal.WithLabelValues("a", "header")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("a")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StopsTotal.WithLabelValues("a", "no_data")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StopsTotal.WithLabelValues("b", "interrupted")))
}

func TestCrawlGauge(t *testing.T) {
	m := NewMetrics()
	m.CrawlStarted()
	m.CrawlStarted()
	m.CrawlFinished("a", 2*time.Second)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ActiveCrawls))
	require.Equal(t, 1, testutil.CollectAndCount(m.CrawlDuration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.CrawlStarted()
	m.CrawlFinished("a", time.Second)
	m.Emit(context.Background(), walker.Event{Kind: walker.EventPageExtracted})
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.Emit(context.Background(), walker.Event{Kind: walker.EventPageExtracted, Site: "a", Records: 1})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `steelcrawl_pages_extracted_total{site="a"} 1`))
}
