package crawler

import (
	"context"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/export"
	"github.com/Carbocoon/SteelPriceCrawler/jobs"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/Carbocoon/SteelPriceCrawler/store"
	"github.com/Carbocoon/SteelPriceCrawler/view"
	"github.com/Carbocoon/SteelPriceCrawler/walker"
	"github.com/Carbocoon/SteelPriceCrawler/webhook"
)

// persistTimeout bounds saving a job's results. It runs on a fresh context
// so a canceled job still gets its partial results saved.
const persistTimeout = 30 * time.Second

// Summary is the webhook payload for a finished job.
type Summary struct {
	Site       string            `json:"site"`
	Status     string            `json:"status"`
	StopReason models.StopReason `json:"stop_reason,omitempty"`
	Pages      int               `json:"pages"`
	Count      int               `json:"count"`
	Files      []string          `json:"files,omitempty"`
	Stats      export.Stats      `json:"stats"`
	Error      string            `json:"error,omitempty"`
}

// StartCrawl starts a walk on the open session and returns its job at
// once. Only one walk may use the session at a time.
func (s *Service) StartCrawl(_ context.Context, req models.CrawlRequest) (*jobs.Job, error) {
	sc, err := s.schema(req.Site)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, errNotOpen()
	}
	if s.running != nil {
		return nil, errBusy()
	}
	if s.site != sc.Name {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			"the open session is on "+s.site+", not "+sc.Name, nil)
	}

	// The walk outlives the request that started it.
	ctx, cancel := context.WithCancel(context.Background())
	job := jobs.New(sc.Name, sc.FieldNames(), cancel)
	s.opts.Jobs.Add(job)
	s.running = job

	opts := s.walkOptions(req, sc)
	v := s.session.View()
	s.wg.Add(1)
	go s.run(ctx, cancel, job, v, sc, opts, req)

	s.logger.Info("crawl started", "job_id", job.ID, "site", sc.Name, "max_pages", opts.MaxPages, "skip_init", opts.SkipInit)
	return job, nil
}

func (s *Service) walkOptions(req models.CrawlRequest, sc *schema.Schema) walker.Options {
	c := s.opts.Crawl
	opts := walker.Options{
		MaxPages:    c.MaxPages,
		SkipInit:    req.SkipInit,
		RenderWait:  c.RenderWait,
		SettleDelay: c.SettleDelay,
		ScrollPause: c.ScrollPause,
		WaitTimeout: c.WaitTimeout,
		TrackLayout: c.TrackLayout,
	}
	if req.MaxPages > 0 {
		opts.MaxPages = req.MaxPages
	}
	if !req.SkipInit {
		opts.StartURL = req.StartURL
		if opts.StartURL == "" {
			opts.StartURL = sc.EntryURL
		}
	}
	return opts
}

func (s *Service) run(ctx context.Context, cancel context.CancelFunc, job *jobs.Job, v view.View,
	sc *schema.Schema, opts walker.Options, req models.CrawlRequest) {
	defer s.wg.Done()
	defer cancel()

	s.opts.Metrics.CrawlStarted()
	start := time.Now()

	opts.Sink = walker.Tee(
		walker.LogSink{Logger: s.logger.With("job_id", job.ID)},
		s.opts.Metrics,
		job,
		s.opts.Dumper.Sink(v),
	)
	res, err := walker.Run(ctx, v, sc, opts)

	s.mu.Lock()
	s.running = nil
	s.mu.Unlock()
	job.Finish(res, err)

	s.opts.Metrics.CrawlFinished(sc.Name, time.Since(start))
	s.persist(job, sc, req)
}

// persist exports, stores and announces a finished job. Failures are
// logged: the records stay available from the job registry.
func (s *Service) persist(job *jobs.Job, sc *schema.Schema, req models.CrawlRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	recs := job.Records()
	summary := Summary{
		Site:   sc.Name,
		Status: job.Status(),
		Count:  len(recs),
		Stats:  export.Summarize(recs, sc),
	}
	run := job.Summary()
	summary.StopReason, summary.Pages = run.StopReason, run.Pages
	if err := job.Err(); err != nil {
		summary.Error = err.Error()
	}

	if s.opts.ExportDir != "" {
		files, err := export.Save(s.opts.ExportDir, sc.Name, sc.FieldNames(), recs, run.StartedAt)
		if err != nil {
			s.logger.Error("export failed", "job_id", job.ID, "error", err)
		} else {
			summary.Files = files
			s.logger.Info("crawl exported", "job_id", job.ID, "files", files, "count", len(recs))
		}
	}

	if s.opts.Store != nil {
		err := s.opts.Store.SaveRun(ctx, store.Run{
			RunSummary: run,
			TotalPages: job.Total(),
			Error:      summary.Error,
			Records:    recs,
		})
		if err != nil {
			s.logger.Error("storing crawl run failed", "job_id", job.ID, "error", err)
		}
	}

	if req.WebhookURL != "" && s.opts.Webhooks != nil {
		s.opts.Webhooks.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      eventType(summary.Status),
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      summary,
		})
	}

	s.logger.Info("crawl finished",
		"job_id", job.ID,
		"site", sc.Name,
		"status", summary.Status,
		"stop_reason", summary.StopReason,
		"pages", summary.Pages,
		"count", summary.Count,
	)
}

func eventType(status string) string {
	switch status {
	case jobs.StatusCompleted:
		return webhook.EventCompleted
	case jobs.StatusInterrupted:
		return webhook.EventInterrupted
	default:
		return webhook.EventFailed
	}
}
