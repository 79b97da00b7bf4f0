package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/config"
	"github.com/Carbocoon/SteelPriceCrawler/crawler"
	"github.com/Carbocoon/SteelPriceCrawler/jobs"
	"github.com/Carbocoon/SteelPriceCrawler/metrics"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/Carbocoon/SteelPriceCrawler/view"
	"github.com/Carbocoon/SteelPriceCrawler/view/htmlview"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type session struct{ v *htmlview.View }

func (s session) View() view.View { return s.v }
func (s session) Close()          {}

func listing(n int) map[string]string {
	out := make(map[string]string, n)
	for p := 1; p <= n; p++ {
		pager := ""
		if p < n {
			pager = fmt.Sprintf(`<div class="pagination"><a href="p%d">下一页</a></div>`, p+1)
		}
		out[fmt.Sprintf("p%d", p)] = fmt.Sprintf(
			`<table><tr><th>品名</th><th>价格</th></tr><tr><td>螺纹钢-%d</td><td>%d</td></tr></table>%s`,
			p, 3800+p, pager)
	}
	return out
}

func newTestRouter(t *testing.T, cfg *config.Config) (http.Handler, *crawler.Service) {
	t.Helper()
	sites := schema.NewRegistry()
	sites.Put(schema.MustNew(schema.Schema{
		Name:     "grid",
		Title:    "Grid",
		EntryURL: "p1",
		Fields: []schema.Field{
			{Name: "name", Role: schema.RoleName},
			{Name: "price", Role: schema.RolePrice},
		},
		Layouts: []schema.Layout{{Name: "full", MinCells: 2, Columns: []schema.Column{
			{Index: 0, Field: "name"},
			{Index: 1, Field: "price", Kind: schema.KindNumber},
		}}},
		HeaderKeywords: schema.DefaultHeaderKeywords,
		Patterns: schema.Patterns{
			Tables:     []string{"table"},
			Rows:       []string{"tr"},
			Cells:      []string{"td"},
			Pagination: []string{".pagination"},
		},
	}))

	svc := crawler.New(crawler.Options{
		Sites: sites,
		Jobs:  jobs.NewRegistry(10, time.Hour),
		Open: func(_ context.Context, _, url string, _ time.Duration) (crawler.Session, error) {
			v, err := htmlview.New(listing(3), url)
			if err != nil {
				return nil, err
			}
			return session{v: v}, nil
		},
	})
	cfg.Server.Mode = "test"
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100}
	}
	return NewRouter(svc, metrics.NewMetrics(), cfg, time.Now()), svc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, &config.Config{})
	w := do(t, h, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.HealthResponse](t, w)
	require.Equal(t, "healthy", resp.Status)
	require.False(t, resp.Session.Open)
}

func TestSites(t *testing.T) {
	h, _ := newTestRouter(t, &config.Config{})
	w := do(t, h, http.MethodGet, "/api/v1/sites", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct{ Sites []models.SiteInfo }](t, w)
	require.Len(t, resp.Sites, 1)
	require.Equal(t, []string{"name", "price"}, resp.Sites[0].Fields)
}

func TestCrawlFlow(t *testing.T) {
	h, svc := newTestRouter(t, &config.Config{})

	w := do(t, h, http.MethodPost, "/api/v1/crawl", `{"site":"grid","skip_init":true}`)
	require.Equal(t, http.StatusNotFound, w.Code, "no session yet")
	require.Equal(t, models.ErrCodeSessionNotOpen, decode[models.ErrorResponse](t, w).Error.Code)

	w = do(t, h, http.MethodPost, "/api/v1/session", `{"site":"grid"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, decode[models.SessionResponse](t, w).Session.Open)

	w = do(t, h, http.MethodPost, "/api/v1/crawl", `{"site":"grid","skip_init":true}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	started := decode[models.CrawlResponse](t, w)
	require.NotEmpty(t, started.ID)

	job, err := svc.Job(started.ID)
	require.NoError(t, err)
	require.NoError(t, job.Wait(context.Background()))

	w = do(t, h, http.MethodGet, "/api/v1/crawl/"+started.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[models.CrawlStatusResponse](t, w)
	require.Equal(t, jobs.StatusCompleted, status.Status)
	require.Equal(t, 3, status.Count)
	require.Len(t, status.Records, 3)

	w = do(t, h, http.MethodGet, "/api/v1/crawl/"+started.ID+"?records=false", "")
	require.Empty(t, decode[models.CrawlStatusResponse](t, w).Records)

	w = do(t, h, http.MethodGet, "/api/v1/crawl/"+started.ID+"/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	require.True(t, strings.HasPrefix(w.Body.String(), "\uFEFFname,price\n"), w.Body.String())
	require.Contains(t, w.Body.String(), "螺纹钢-3,3803")

	w = do(t, h, http.MethodGet, "/api/v1/crawl/"+started.ID+"/export?format=jsonl", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, strings.Split(strings.TrimSpace(w.Body.String()), "\n"), 3)

	w = do(t, h, http.MethodGet, "/api/v1/crawl/"+started.ID+"/export?format=xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	book, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	rows, err := book.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, []string{"name", "price"}, rows[0])
	require.NoError(t, book.Close())

	w = do(t, h, http.MethodGet, "/api/v1/crawl/"+started.ID+"/export?format=xml", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestErrors(t *testing.T) {
	h, _ := newTestRouter(t, &config.Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown job", http.MethodGet, "/api/v1/crawl/crawl-nope", "", http.StatusNotFound, models.ErrCodeJobNotFound},
		{"cancel unknown", http.MethodPost, "/api/v1/crawl/crawl-nope/cancel", "", http.StatusNotFound, models.ErrCodeJobNotFound},
		{"missing site", http.MethodPost, "/api/v1/session", `{}`, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"unknown site", http.MethodPost, "/api/v1/session", `{"site":"nope"}`, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"close without session", http.MethodDelete, "/api/v1/session", "", http.StatusNotFound, models.ErrCodeSessionNotOpen},
		{"bad limit", http.MethodGet, "/api/v1/runs?limit=0", "", http.StatusBadRequest, models.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if got := decode[models.ErrorResponse](t, w).Error.Code; got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestRuns_NoStore(t *testing.T) {
	h, _ := newTestRouter(t, &config.Config{})
	w := do(t, h, http.MethodGet, "/api/v1/runs?site=grid", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"runs":[]}`, w.Body.String())
}

func TestAuth(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}}
	h, _ := newTestRouter(t, cfg)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/health", "").Code, "health skips auth")
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/metrics", "").Code)

	w := do(t, h, http.MethodGet, "/api/v1/sites", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sites", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := &config.Config{}
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	h, _ := newTestRouter(t, cfg)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/sites", "").Code)
	w := do(t, h, http.MethodGet, "/api/v1/sites", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, models.ErrCodeRateLimited, decode[models.ErrorResponse](t, w).Error.Code)
}
