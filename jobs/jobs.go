// Package jobs tracks crawl jobs in memory while they run and for a while
// after they finish.
package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/walker"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Job statuses.
const (
	StatusProcessing  = "processing"
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// Job is one crawl. Its progress fields are updated from walk events and
// read concurrently by the API.
type Job struct {
	ID        string
	Site      string
	Fields    []string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	status     string
	stop       models.StopReason
	page       int
	total      int
	count      int
	records    []models.Record
	err        error
	finishedAt time.Time
}

// New returns a processing job whose walk can be canceled through cancel.
func New(site string, fields []string, cancel context.CancelFunc) *Job {
	return &Job{
		ID:        "crawl-" + randomID(),
		Site:      site,
		Fields:    fields,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    StatusProcessing,
	}
}

// Emit implements walker.Sink and tracks progress.
func (j *Job) Emit(_ context.Context, ev walker.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch ev.Kind {
	case walker.EventTotalDetected:
		j.total = ev.Total
	case walker.EventPageExtracted:
		j.page = ev.Page
		j.count = ev.Gathered + ev.Records
	case walker.EventStopped, walker.EventInterrupted:
		j.count = ev.Records
	}
	if ev.Gathered > j.count {
		j.count = ev.Gathered
	}
}

// Finish records the walk's outcome and releases waiters. err, if set,
// decides between interrupted (the walk returned a partial result) and
// failed (there is no result).
func (j *Job) Finish(res *walker.Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusProcessing {
		return
	}
	j.finishedAt = time.Now()
	j.err = err
	switch {
	case res == nil:
		j.status = StatusFailed
	case err != nil:
		j.status = StatusInterrupted
	default:
		j.status = StatusCompleted
	}
	if res != nil {
		j.stop = res.Stop
		j.records = res.Records
		j.count = len(res.Records)
		j.page = res.Pages
		if res.Total > 0 {
			j.total = res.Total
		}
	}
	close(j.done)
}

// Cancel asks the walk to stop. It is a no-op once the job has finished.
func (j *Job) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
}

// Done is closed when the job finishes.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current status.
func (j *Job) Status() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Records returns the records gathered; nil while the job runs.
func (j *Job) Records() []models.Record {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.records
}

// Err returns the error the walk ended with.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Summary describes a finished job for the store.
func (j *Job) Summary() models.RunSummary {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return models.RunSummary{
		ID:         j.ID,
		Site:       j.Site,
		StopReason: j.stop,
		Pages:      j.page,
		Count:      j.count,
		StartedAt:  j.StartedAt,
		FinishedAt: j.finishedAt,
	}
}

// Total is the detected page count, 0 if unknown.
func (j *Job) Total() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.total
}

// Response renders the job for GET /api/v1/crawl/:id.
func (j *Job) Response(withRecords bool) models.CrawlStatusResponse {
	j.mu.RLock()
	defer j.mu.RUnlock()
	resp := models.CrawlStatusResponse{
		ID:         j.ID,
		Site:       j.Site,
		Status:     j.status,
		StopReason: j.stop,
		Page:       j.page,
		TotalPages: j.total,
		Count:      j.count,
		Fields:     j.Fields,
	}
	if withRecords {
		resp.Records = j.records
	}
	if j.err != nil {
		resp.Error = models.Detail(j.err)
	}
	return resp
}

// Registry holds recent jobs. Running jobs stay reachable until they
// finish; finished jobs expire after the TTL, and the least recently used
// finished job is dropped when the registry is full.
type Registry struct {
	cache *expirable.LRU[string, *Job]

	mu     sync.Mutex
	active map[string]*Job
}

// NewRegistry returns a registry keeping at most size finished jobs.
func NewRegistry(size int, ttl time.Duration) *Registry {
	return &Registry{
		cache:  expirable.NewLRU[string, *Job](size, nil, ttl),
		active: make(map[string]*Job),
	}
}

// Add registers j. It moves to the expiring cache once it finishes, so
// its TTL counts from the end of the walk.
func (r *Registry) Add(j *Job) {
	r.mu.Lock()
	r.active[j.ID] = j
	r.mu.Unlock()

	go func() {
		<-j.Done()
		r.cache.Add(j.ID, j)
		r.mu.Lock()
		delete(r.active, j.ID)
		r.mu.Unlock()
	}()
}

// Get looks a job up. Unknown or expired IDs yield JOB_NOT_FOUND.
func (r *Registry) Get(id string) (*Job, error) {
	r.mu.Lock()
	j, ok := r.active[id]
	r.mu.Unlock()
	if ok {
		return j, nil
	}
	if j, ok := r.cache.Get(id); ok && j != nil {
		return j, nil
	}
	return nil, models.NewScrapeError(models.ErrCodeJobNotFound, "crawl job not found", nil)
}

// CancelAll cancels every running job.
func (r *Registry) CancelAll() {
	for _, j := range r.Running() {
		j.Cancel()
	}
}

// Running returns the jobs still processing.
func (r *Registry) Running() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Job
	for _, j := range r.active {
		if j.Status() == StatusProcessing {
			out = append(out, j)
		}
	}
	return out
}

func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
