package downloadqueue

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// QueueStore is the full persistence seam the queue and worker need;
// *db.DownloadStore satisfies it alongside the narrower progress Store.
type QueueStore interface {
	Store
	Create(ctx context.Context, d objs.DownloadRequest) error
	FindNonTerminal(ctx context.Context, repo objs.Repo, filename string) (objs.DownloadRequest, bool, error)
	ListPending(ctx context.Context, limit int) ([]objs.DownloadRequest, error)
}

// Queue is the enqueue-side API the pull HTTP handler and CLI call.
type Queue struct {
	store QueueStore
	now   func() time.Time
}

// NewQueue constructs a Queue over store.
func NewQueue(store QueueStore) *Queue {
	return &Queue{store: store, now: time.Now}
}

// Enqueue persists a new pending DownloadRequest for (repo, filename),
// deduplicating against any existing non-terminal row for the same pair
// — a second pull of a file already downloading returns the existing
// row instead of starting a duplicate.
func (q *Queue) Enqueue(ctx context.Context, repo objs.Repo, filename string) (objs.DownloadRequest, error) {
	if existing, ok, err := q.store.FindNonTerminal(ctx, repo, filename); err != nil {
		return objs.DownloadRequest{}, fmt.Errorf("checking for existing download: %w", err)
	} else if ok {
		return existing, nil
	}

	now := q.now()
	d := objs.DownloadRequest{
		ID:        newULID(now),
		Repo:      repo,
		Filename:  filename,
		Status:    objs.DownloadPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.store.Create(ctx, d); err != nil {
		return objs.DownloadRequest{}, fmt.Errorf("creating download request: %w", err)
	}
	return d, nil
}

// Get returns the current state of a download request, for the caller
// to poll status.
func (q *Queue) Get(ctx context.Context, id string) (objs.DownloadRequest, bool, error) {
	return q.store.Get(ctx, id)
}

func newULID(t time.Time) string {
	entropy := ulid.Monotonic(cryptoRandReader{}, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return fmt.Sprintf("%d", t.UnixNano())
	}
	return id.String()
}

type cryptoRandReader struct{}

func (cryptoRandReader) Read(p []byte) (int, error) { return rand.Read(p) }
