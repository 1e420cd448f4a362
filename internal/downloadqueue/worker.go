package downloadqueue

import (
	"context"
	"time"

	"github.com/bodhi-ml/bodhi/internal/hub"
	"github.com/bodhi-ml/bodhi/internal/objs"
)

// Downloader is the subset of hub.Downloader the worker calls, narrowed
// so tests can substitute a fake without a real HTTP round trip.
type Downloader interface {
	Download(ctx context.Context, repo objs.Repo, filename string, snapshot *string, sink hub.Progress) (objs.HubFile, error)
}

// Worker is the background loop that claims pending DownloadRequest rows
// in created_at order and drives them to a terminal state via
// Downloader. Rows added while a batch is in flight are picked up on the
// worker's next poll.
type Worker struct {
	store        QueueStore
	downloader   Downloader
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time
}

// NewWorker constructs a Worker polling store every pollInterval (a
// sensible default of 2s is used if pollInterval <= 0).
func NewWorker(store QueueStore, downloader Downloader, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Worker{store: store, downloader: downloader, pollInterval: pollInterval, batchSize: 5, now: time.Now}
}

// Run polls until ctx is cancelled, processing pending rows serially
// within each poll, checking ctx.Done between units of work so shutdown
// doesn't wait on a large batch.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) {
	pending, err := w.store.ListPending(ctx, w.batchSize)
	if err != nil {
		return
	}
	for _, d := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.process(ctx, d)
	}
}

// process drives a single pending row to Completed or Error. A file
// already present at its final path short-circuits through
// Downloader.Download's own no-op resumability check, landing here as a
// normal Completed transition.
func (w *Worker) process(ctx context.Context, d objs.DownloadRequest) {
	now := w.now()
	if err := d.Transition(objs.DownloadInProgress, now); err != nil {
		return
	}
	if err := w.store.Update(ctx, d); err != nil {
		return
	}

	sink := NewDatabaseProgress(w.store, d.ID)
	// DownloadRequest has no snapshot field; resolving always targets
	// "main" via hub.Downloader's nil-snapshot default.
	hf, err := w.downloader.Download(ctx, d.Repo, d.Filename, nil, sink)

	latest, ok, getErr := w.store.Get(ctx, d.ID)
	if getErr != nil || !ok {
		latest = d
	}

	now = w.now()
	if err != nil {
		msg := err.Error()
		latest.Error = &msg
		_ = latest.Transition(objs.DownloadError, now)
		_ = w.store.Update(ctx, latest)
		return
	}

	if hf.Size != nil {
		latest.TotalBytes = hf.Size
		latest.DownloadedBytes = *hf.Size
	}
	_ = latest.Transition(objs.DownloadCompleted, now)
	_ = w.store.Update(ctx, latest)
}
