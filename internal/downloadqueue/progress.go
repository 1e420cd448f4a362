// Package downloadqueue persists Hugging Face pulls as DownloadRequest
// rows and drains them with a background worker. Grounded on the
// teacher's background-goroutine worker-loop shape
// (services/orchestrator/ttl/scheduler.go).
package downloadqueue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// Store is the persistence seam DatabaseProgress and Worker need; a
// *db.DownloadStore satisfies it in production.
type Store interface {
	Get(ctx context.Context, id string) (objs.DownloadRequest, bool, error)
	Update(ctx context.Context, d objs.DownloadRequest) error
	SyncProgress(ctx context.Context, id string, downloaded int64, now time.Time) error
}

// DatabaseProgress is the hub.Progress sink the worker hands to
// HubService.Download: it accumulates bytes in atomic counters and
// syncs to the owning row at most every syncInterval, CAS-guarding the
// last-sync timestamp so concurrent Update calls never double-write.
type DatabaseProgress struct {
	store        Store
	requestID    string
	syncInterval time.Duration
	now          func() time.Time

	totalBytes      atomic.Int64
	downloadedBytes atomic.Int64
	lastSyncUnixNano atomic.Int64
}

// NewDatabaseProgress constructs a sink bound to requestID, syncing at
// most every 3 seconds.
func NewDatabaseProgress(store Store, requestID string) *DatabaseProgress {
	return &DatabaseProgress{
		store:        store,
		requestID:    requestID,
		syncInterval: 3 * time.Second,
		now:          time.Now,
	}
}

// Init seeds total_bytes and started_at on the owning row.
func (p *DatabaseProgress) Init(totalBytes int64, filename string) {
	p.totalBytes.Store(totalBytes)
	now := p.now()
	d, ok, err := p.store.Get(context.Background(), p.requestID)
	if err != nil || !ok {
		return
	}
	if totalBytes > 0 {
		d.TotalBytes = &totalBytes
	}
	_ = d.Transition(objs.DownloadInProgress, now)
	_ = p.store.Update(context.Background(), d)
	p.lastSyncUnixNano.Store(now.UnixNano())
}

// Update accumulates bytesDelta and syncs to the row if syncInterval has
// elapsed since the last write, compare-and-swapped so only one of a
// burst of concurrent callers performs the write.
func (p *DatabaseProgress) Update(bytesDelta int64) {
	total := p.downloadedBytes.Add(bytesDelta)
	now := p.now()
	last := p.lastSyncUnixNano.Load()
	if time.Duration(now.UnixNano()-last) < p.syncInterval {
		return
	}
	if !p.lastSyncUnixNano.CompareAndSwap(last, now.UnixNano()) {
		return // another goroutine already claimed this sync window
	}
	_ = p.store.SyncProgress(context.Background(), p.requestID, total, now)
}

// Finish flushes one last write with the final counters; idempotent
// with any in-flight throttled Update since it always writes.
func (p *DatabaseProgress) Finish() {
	now := p.now()
	_ = p.store.SyncProgress(context.Background(), p.requestID, p.downloadedBytes.Load(), now)
	p.lastSyncUnixNano.Store(now.UnixNano())
}

// DownloadedBytes returns the current accumulated count.
func (p *DatabaseProgress) DownloadedBytes() int64 { return p.downloadedBytes.Load() }
