// Package crawler runs crawl jobs against the single browser session a
// human has logged into.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/cleaner"
	"github.com/Carbocoon/SteelPriceCrawler/config"
	"github.com/Carbocoon/SteelPriceCrawler/jobs"
	"github.com/Carbocoon/SteelPriceCrawler/metrics"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/Carbocoon/SteelPriceCrawler/store"
	"github.com/Carbocoon/SteelPriceCrawler/view"
	"github.com/Carbocoon/SteelPriceCrawler/walker"
	"github.com/Carbocoon/SteelPriceCrawler/webhook"
)

// Session is an open browser tab.
type Session interface {
	View() view.View
	Close()
}

// Opener opens a tab for site and navigates it to url within timeout.
type Opener func(ctx context.Context, site, url string, timeout time.Duration) (Session, error)

// Options wires a Service. Sites, Open and Jobs are required; the rest may
// be nil or empty to disable the feature.
type Options struct {
	Crawl     config.CrawlConfig
	ExportDir string

	Sites    *schema.Registry
	Open     Opener
	Jobs     *jobs.Registry
	Store    *store.Store
	Webhooks *webhook.Client
	Metrics  *metrics.Metrics
	Dumper   *cleaner.Dumper
	Logger   *slog.Logger
}

// Service owns the session and the crawl jobs that borrow it.
type Service struct {
	opts   Options
	logger *slog.Logger

	// openMu serializes opening and closing tabs so that no tab is left
	// behind by two overlapping opens.
	openMu sync.Mutex

	mu      sync.Mutex
	session Session
	site    string
	running *jobs.Job

	wg sync.WaitGroup
}

// New returns a service with no session open.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{opts: opts, logger: logger}
}

// Sites lists the crawlable site schemas.
func (s *Service) Sites() []models.SiteInfo {
	list := s.opts.Sites.List()
	out := make([]models.SiteInfo, 0, len(list))
	for _, sc := range list {
		out = append(out, models.SiteInfo{
			Name:     sc.Name,
			Title:    sc.Title,
			EntryURL: sc.EntryURL,
			Fields:   sc.FieldNames(),
		})
	}
	return out
}

func (s *Service) schema(site string) (*schema.Schema, error) {
	sc, ok := s.opts.Sites.Get(site)
	if !ok {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, fmt.Sprintf("unknown site %q", site), nil)
	}
	return sc, nil
}

// OpenSession opens a tab on the site's entry URL (or req.URL), replacing
// any session already open. The human logs in through that tab.
func (s *Service) OpenSession(ctx context.Context, req models.SessionRequest) (models.SessionState, error) {
	req.Defaults()
	sc, err := s.schema(req.Site)
	if err != nil {
		return models.SessionState{}, err
	}
	target := req.URL
	if target == "" {
		target = sc.EntryURL
	}

	s.openMu.Lock()
	defer s.openMu.Unlock()

	s.mu.Lock()
	if s.running != nil {
		s.mu.Unlock()
		return models.SessionState{}, errBusy()
	}
	old := s.session
	s.session, s.site = nil, ""
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	sess, err := s.opts.Open(ctx, sc.Name, target, time.Duration(req.Timeout)*time.Second)
	if err != nil {
		return models.SessionState{}, err
	}

	s.mu.Lock()
	s.session, s.site = sess, sc.Name
	s.mu.Unlock()

	return s.State(ctx), nil
}

// State describes the session. Login detection is skipped while a crawl
// is using the page.
func (s *Service) State(ctx context.Context) models.SessionState {
	s.mu.Lock()
	sess, site, busy := s.session, s.site, s.running != nil
	s.mu.Unlock()

	st := models.SessionState{Open: sess != nil, Site: site, Busy: busy}
	if sess == nil {
		return st
	}
	v := sess.View()
	if snap, ok := v.(view.Snapshotter); ok {
		st.URL, _ = snap.URL(ctx)
	}
	if busy {
		return st
	}
	if sc, ok := s.opts.Sites.Get(site); ok {
		loginCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		login, err := walker.LoginRequired(loginCtx, v, sc)
		if err != nil {
			s.logger.Debug("login check failed", "site", site, "error", err)
		}
		st.LoginRequired = login
	}
	return st
}

// CloseSession closes the tab. The browser keeps running.
func (s *Service) CloseSession() error {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != nil {
		return errBusy()
	}
	if s.session == nil {
		return errNotOpen()
	}
	s.session.Close()
	s.session, s.site = nil, ""
	return nil
}

// Job returns a job from the registry.
func (s *Service) Job(id string) (*jobs.Job, error) {
	return s.opts.Jobs.Get(id)
}

// Cancel stops a running job. Canceling a finished job is a no-op.
func (s *Service) Cancel(id string) (*jobs.Job, error) {
	j, err := s.opts.Jobs.Get(id)
	if err != nil {
		return nil, err
	}
	j.Cancel()
	return j, nil
}

// Runs lists stored runs, newest first.
func (s *Service) Runs(ctx context.Context, site string, limit int) ([]models.RunSummary, error) {
	if s.opts.Store == nil {
		return []models.RunSummary{}, nil
	}
	return s.opts.Store.ListRuns(ctx, site, limit)
}

// Records returns a job's field order and records, from the registry or,
// once the job has expired there, from the store.
func (s *Service) Records(ctx context.Context, id string) ([]string, []models.Record, error) {
	if j, err := s.opts.Jobs.Get(id); err == nil {
		if j.Status() == jobs.StatusProcessing {
			return nil, nil, models.NewScrapeError(models.ErrCodeSessionBusy, "crawl job is still running", nil)
		}
		return j.Fields, j.Records(), nil
	}
	if s.opts.Store == nil {
		return nil, nil, models.NewScrapeError(models.ErrCodeJobNotFound, "crawl job not found", nil)
	}
	run, err := s.opts.Store.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	recs, err := s.opts.Store.Records(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sc, ok := s.opts.Sites.Get(run.Site); ok {
		return sc.FieldNames(), recs, nil
	}
	// The site was removed from the configuration since the run.
	var fields []string
	if len(recs) > 0 {
		for k := range recs[0] {
			fields = append(fields, k)
		}
		sort.Strings(fields)
	}
	return fields, recs, nil
}

// Shutdown cancels running jobs, waits for their partial results to be
// saved, then closes the session.
func (s *Service) Shutdown(ctx context.Context) error {
	if running := s.opts.Jobs.Running(); len(running) > 0 {
		s.logger.Info("canceling running crawls", "count", len(running))
	}
	s.opts.Jobs.CancelAll()
	s.mu.Lock()
	if s.running != nil {
		s.running.Cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("crawler shutdown: %w", ctx.Err())
	}

	s.openMu.Lock()
	defer s.openMu.Unlock()
	s.mu.Lock()
	if s.session != nil {
		s.session.Close()
		s.session, s.site = nil, ""
	}
	s.mu.Unlock()
	return err
}

func errBusy() error {
	return models.NewScrapeError(models.ErrCodeSessionBusy, "a crawl is already running on this session", nil)
}

func errNotOpen() error {
	return models.NewScrapeError(models.ErrCodeSessionNotOpen, "no browser session is open; POST /api/v1/session first", nil)
}
