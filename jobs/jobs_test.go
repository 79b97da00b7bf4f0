package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/walker"
	"github.com/stretchr/testify/require"
)

func TestJob_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := New("haoganghui", []string{"品名"}, cancel)
	require.Equal(t, StatusProcessing, j.Status())

	j.Emit(ctx, walker.Event{Kind: walker.EventTotalDetected, Total: 5})
	j.Emit(ctx, walker.Event{Kind: walker.EventPageExtracted, Page: 2, Records: 3})
	resp := j.Response(false)
	require.Equal(t, 2, resp.Page)
	require.Equal(t, 5, resp.TotalPages)
	require.Equal(t, 3, resp.Count)

	j.Emit(ctx, walker.Event{Kind: walker.EventAdvanced, Page: 2, Gathered: 5})
	require.Equal(t, 5, j.Response(false).Count, "count follows the walk")

	j.Cancel()
	require.Error(t, ctx.Err())

	res := &walker.Result{
		Records: []models.Record{{"品名": "螺纹钢"}, {"品名": "线材"}},
		Stop:    models.StopInterrupted,
		Pages:   2,
	}
	j.Finish(res, models.NewScrapeError(models.ErrCodeCanceled, "crawl interrupted", context.Canceled))

	select {
	case <-j.Done():
	default:
		t.Fatal("Done not closed")
	}
	resp = j.Response(true)
	require.Equal(t, StatusInterrupted, resp.Status)
	require.Equal(t, models.StopInterrupted, resp.StopReason)
	require.Equal(t, 2, resp.Count)
	require.Len(t, resp.Records, 2)
	require.Equal(t, models.ErrCodeCanceled, resp.Error.Code)

	// A second Finish is ignored.
	j.Finish(nil, errors.New("late"))
	require.Equal(t, StatusInterrupted, j.Status())
}

func TestJob_Statuses(t *testing.T) {
	j := New("a", nil, nil)
	j.Finish(&walker.Result{Stop: models.StopNoControl}, nil)
	require.Equal(t, StatusCompleted, j.Status())
	require.Nil(t, j.Response(false).Error)

	j = New("a", nil, nil)
	j.Finish(nil, errors.New("session gone"))
	require.Equal(t, StatusFailed, j.Status())
	require.Equal(t, models.ErrCodeInternal, j.Response(false).Error.Code)
}

func TestJob_Wait(t *testing.T) {
	j := New("a", nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, j.Wait(ctx), context.DeadlineExceeded)

	go j.Finish(&walker.Result{}, nil)
	require.NoError(t, j.Wait(context.Background()))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(2, time.Hour)
	var canceled int
	a := New("a", nil, func() { canceled++ })
	b := New("b", nil, func() { canceled++ })
	r.Add(a)
	r.Add(b)
	b.Finish(&walker.Result{}, nil)

	got, err := r.Get(a.ID)
	require.NoError(t, err)
	require.Same(t, a, got)
	require.Len(t, r.Running(), 1)

	r.CancelAll()
	require.Equal(t, 1, canceled, "finished jobs are not canceled")

	_, err = r.Get("crawl-missing")
	require.True(t, models.IsCode(err, models.ErrCodeJobNotFound))
}

func TestRegistry_Expires(t *testing.T) {
	r := NewRegistry(10, 20*time.Millisecond)
	j := New("a", nil, nil)
	r.Add(j)
	j.Finish(&walker.Result{}, nil)
	require.Eventually(t, func() bool {
		_, err := r.Get(j.ID)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestRegistry_RunningOutlivesTTL(t *testing.T) {
	r := NewRegistry(1, 10*time.Millisecond)
	var canceled int
	running := New("a", nil, func() { canceled++ })
	r.Add(running)

	// Overflow the cache and let every entry pass its TTL.
	for i := 0; i < 3; i++ {
		done := New("b", nil, nil)
		r.Add(done)
		done.Finish(&walker.Result{}, nil)
	}
	time.Sleep(50 * time.Millisecond)

	got, err := r.Get(running.ID)
	require.NoError(t, err)
	require.Same(t, running, got)
	require.Len(t, r.Running(), 1)

	require.NotPanics(t, r.CancelAll)
	require.Equal(t, 1, canceled)

	running.Finish(&walker.Result{}, nil)
	require.Eventually(t, func() bool {
		return len(r.Running()) == 0
	}, time.Second, 5*time.Millisecond)
}
