package crawler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/config"
	"github.com/Carbocoon/SteelPriceCrawler/jobs"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/Carbocoon/SteelPriceCrawler/store"
	"github.com/Carbocoon/SteelPriceCrawler/view"
	"github.com/Carbocoon/SteelPriceCrawler/view/htmlview"
	"github.com/Carbocoon/SteelPriceCrawler/webhook"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

func gridSite() *schema.Schema {
	return schema.MustNew(schema.Schema{
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
			Login:      "a",
		},
	})
}

// pages builds n linked listing pages of two rows each.
func pages(n int) map[string]string {
	out := map[string]string{"login": `<body><a href="/login">请登录</a></body>`}
	for p := 1; p <= n; p++ {
		var b strings.Builder
		b.WriteString("<html><body><table><tr><th>品名</th><th>价格</th></tr>")
		for i := 0; i < 2; i++ {
			fmt.Fprintf(&b, "<tr><td>钢材-p%d-r%d</td><td>%d</td></tr>", p, i, 3000+p*10+i)
		}
		b.WriteString("</table>")
		if p < n {
			fmt.Fprintf(&b, `<div class="pagination"><a href="p%d">下一页</a></div>`, p+1)
		}
		b.WriteString("</body></html>")
		out[fmt.Sprintf("p%d", p)] = b.String()
	}
	return out
}

type fakeSession struct {
	v      *htmlview.View
	closed bool
}

func (f *fakeSession) View() view.View { return f.v }
func (f *fakeSession) Close()          { f.closed = true }

type fixture struct {
	svc       *Service
	store     *store.Store
	openDelay time.Duration

	mu       sync.Mutex
	sessions []*fakeSession
	hooks    *webhook.Client
	exports  string
}

func newFixture(t *testing.T, crawl config.CrawlConfig, n int) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sites := schema.NewRegistry()
	sites.Put(gridSite())

	hooks := webhook.NewClient(time.Second)
	hooks.Delays = []time.Duration{0}
	httpmock.ActivateNonDefault(hooks.HTTPClient().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	f := &fixture{store: st, hooks: hooks, exports: t.TempDir()}
	open := func(ctx context.Context, site, url string, _ time.Duration) (Session, error) {
		time.Sleep(f.openDelay)
		v, err := htmlview.New(pages(n), url)
		if err != nil {
			return nil, err
		}
		sess := &fakeSession{v: v}
		f.mu.Lock()
		f.sessions = append(f.sessions, sess)
		f.mu.Unlock()
		return sess, nil
	}
	f.svc = New(Options{
		Crawl:     crawl,
		ExportDir: f.exports,
		Sites:     sites,
		Open:      open,
		Jobs:      jobs.NewRegistry(10, time.Hour),
		Store:     st,
		Webhooks:  hooks,
	})
	return f
}

func TestSession_Lifecycle(t *testing.T) {
	f := newFixture(t, config.CrawlConfig{}, 2)
	ctx := context.Background()

	_, err := f.svc.OpenSession(ctx, models.SessionRequest{Site: "nope"})
	require.True(t, models.IsCode(err, models.ErrCodeInvalidInput))

	require.True(t, models.IsCode(f.svc.CloseSession(), models.ErrCodeSessionNotOpen))

	st, err := f.svc.OpenSession(ctx, models.SessionRequest{Site: "grid", URL: "http://x.test/login"})
	require.Error(t, err, "unregistered url fails navigation")
	require.False(t, st.Open)

	st, err = f.svc.OpenSession(ctx, models.SessionRequest{Site: "grid"})
	require.NoError(t, err)
	require.True(t, st.Open)
	require.Equal(t, "grid", st.Site)
	require.Equal(t, "p1", st.URL)
	require.False(t, st.LoginRequired)

	// Reopening replaces the earlier tab.
	_, err = f.svc.OpenSession(ctx, models.SessionRequest{Site: "grid"})
	require.NoError(t, err)
	require.True(t, f.sessions[0].closed)

	require.NoError(t, f.svc.CloseSession())
	require.True(t, f.sessions[1].closed)
	require.False(t, f.svc.State(ctx).Open)
}

func TestOpenSession_OverlappingOpensLeaveNoTab(t *testing.T) {
	f := newFixture(t, config.CrawlConfig{}, 1)
	f.openDelay = 20 * time.Millisecond
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.OpenSession(ctx, models.SessionRequest{Site: "grid"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.CloseSession())
	require.Len(t, f.sessions, 4)
	for i, sess := range f.sessions {
		require.True(t, sess.closed, "tab %d left open", i)
	}
}

func TestState_LoginRequired(t *testing.T) {
	f := newFixture(t, config.CrawlConfig{}, 1)
	st, err := f.svc.OpenSession(context.Background(), models.SessionRequest{Site: "grid", URL: "login"})
	require.NoError(t, err)
	require.True(t, st.LoginRequired)
}

func TestStartCrawl_RequiresSession(t *testing.T) {
	f := newFixture(t, config.CrawlConfig{}, 1)
	_, err := f.svc.StartCrawl(context.Background(), models.CrawlRequest{Site: "grid"})
	require.True(t, models.IsCode(err, models.ErrCodeSessionNotOpen))
}

func TestCrawl_CompletesAndPersists(t *testing.T) {
	f := newFixture(t, config.CrawlConfig{}, 3)
	ctx := context.Background()
	hookCalls := make(chan string, 1)
	httpmock.RegisterResponder("POST", "http://hooks.test/done", func(req *http.Request) (*http.Response, error) {
		hookCalls <- req.Header.Get(webhook.SignatureHeader)
		return httpmock.NewStringResponse(200, ""), nil
	})

	_, err := f.svc.OpenSession(ctx, models.SessionRequest{Site: "grid"})
	require.NoError(t, err)

	job, err := f.svc.StartCrawl(ctx, models.CrawlRequest{
		Site:          "grid",
		SkipInit:      true,
		WebhookURL:    "http://hooks.test/done",
		WebhookSecret: "k",
	})
	require.NoError(t, err)
	require.NoError(t, job.Wait(ctx))

	resp := job.Response(true)
	require.Equal(t, jobs.StatusCompleted, resp.Status)
	require.Equal(t, models.StopNoControl, resp.StopReason)
	require.Equal(t, 6, resp.Count)
	require.Equal(t, []string{"name", "price"}, resp.Fields)

	select {
	case sig := <-hookCalls:
		require.True(t, strings.HasPrefix(sig, "sha256="))
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}

	require.Eventually(t, func() bool {
		runs, err := f.svc.Runs(ctx, "grid", 0)
		return err == nil && len(runs) == 1 && runs[0].Count == 6
	}, 2*time.Second, 10*time.Millisecond)

	entries, err := os.ReadDir(f.exports)
	require.NoError(t, err)
	require.Len(t, entries, 3, "csv, jsonl and xlsx")

	fields, recs, err := f.svc.Records(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"name", "price"}, fields)
	require.Len(t, recs, 6)

	// The session is free again.
	require.False(t, f.svc.State(ctx).Busy)
}

func TestCrawl_BusyThenCanceled(t *testing.T) {
	// A long settle delay parks the walk after its first click.
	f := newFixture(t, config.CrawlConfig{SettleDelay: time.Hour}, 3)
	ctx := context.Background()
	_, err := f.svc.OpenSession(ctx, models.SessionRequest{Site: "grid"})
	require.NoError(t, err)

	job, err := f.svc.StartCrawl(ctx, models.CrawlRequest{Site: "grid", SkipInit: true})
	require.NoError(t, err)

	_, err = f.svc.StartCrawl(ctx, models.CrawlRequest{Site: "grid", SkipInit: true})
	require.True(t, models.IsCode(err, models.ErrCodeSessionBusy))
	require.True(t, models.IsCode(f.svc.CloseSession(), models.ErrCodeSessionBusy))
	_, _, err = f.svc.Records(ctx, job.ID)
	require.True(t, models.IsCode(err, models.ErrCodeSessionBusy))

	require.Eventually(t, func() bool { return job.Response(false).Page == 1 }, 2*time.Second, 5*time.Millisecond)
	_, err = f.svc.Cancel(job.ID)
	require.NoError(t, err)
	require.NoError(t, job.Wait(ctx))

	resp := job.Response(true)
	require.Equal(t, jobs.StatusInterrupted, resp.Status)
	require.Equal(t, models.StopInterrupted, resp.StopReason)
	require.Len(t, resp.Records, 2, "page 1 is kept")
	require.Equal(t, models.ErrCodeCanceled, resp.Error.Code)

	// The partial result is stored even though the job was canceled.
	require.Eventually(t, func() bool {
		runs, err := f.svc.Runs(ctx, "", 0)
		return err == nil && len(runs) == 1 && runs[0].StopReason == models.StopInterrupted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecords_FromStoreAfterExpiry(t *testing.T) {
	f := newFixture(t, config.CrawlConfig{}, 1)
	ctx := context.Background()
	require.NoError(t, f.store.SaveRun(ctx, store.Run{
		RunSummary: models.RunSummary{ID: "crawl-old", Site: "grid", StartedAt: time.Now(), FinishedAt: time.Now()},
		Records:    []models.Record{{"name": "线材", "price": "3900"}},
	}))

	fields, recs, err := f.svc.Records(ctx, "crawl-old")
	require.NoError(t, err)
	require.Equal(t, []string{"name", "price"}, fields)
	require.Len(t, recs, 1)

	_, _, err = f.svc.Records(ctx, "crawl-none")
	require.True(t, models.IsCode(err, models.ErrCodeJobNotFound))
}

func TestShutdown_SavesPartialResults(t *testing.T) {
	f := newFixture(t, config.CrawlConfig{SettleDelay: time.Hour}, 3)
	ctx := context.Background()
	_, err := f.svc.OpenSession(ctx, models.SessionRequest{Site: "grid"})
	require.NoError(t, err)
	job, err := f.svc.StartCrawl(ctx, models.CrawlRequest{Site: "grid", SkipInit: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return job.Response(false).Page == 1 }, 2*time.Second, 5*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(shutdownCtx))

	require.Equal(t, jobs.StatusInterrupted, job.Status())
	runs, err := f.svc.Runs(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.True(t, f.sessions[0].closed)
}

func TestShutdown_CancelsJobPastRegistryTTL(t *testing.T) {
	f := newFixture(t, config.CrawlConfig{SettleDelay: time.Hour}, 3)
	f.svc.opts.Jobs = jobs.NewRegistry(1, 5*time.Millisecond)
	ctx := context.Background()
	_, err := f.svc.OpenSession(ctx, models.SessionRequest{Site: "grid"})
	require.NoError(t, err)
	job, err := f.svc.StartCrawl(ctx, models.CrawlRequest{Site: "grid", SkipInit: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return job.Response(false).Page == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	got, err := f.svc.Job(job.ID)
	require.NoError(t, err, "a running job outlives the TTL")
	require.Same(t, job, got)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(shutdownCtx))
	require.Equal(t, jobs.StatusInterrupted, job.Status())
}

func TestSites(t *testing.T) {
	f := newFixture(t, config.CrawlConfig{}, 1)
	sites := f.svc.Sites()
	require.Len(t, sites, 1)
	require.Equal(t, models.SiteInfo{Name: "grid", Title: "Grid", EntryURL: "p1", Fields: []string{"name", "price"}}, sites[0])
}
