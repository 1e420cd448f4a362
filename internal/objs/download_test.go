package objs

import (
	"errors"
	"testing"
	"time"
)

func TestDownloadRequestMonotonicTransitions(t *testing.T) {
	d := &DownloadRequest{ID: "d1", Status: DownloadPending}
	now := time.Unix(0, 0)

	if err := d.Transition(DownloadInProgress, now); err != nil {
		t.Fatalf("Pending -> InProgress should succeed: %v", err)
	}
	if err := d.Transition(DownloadCompleted, now.Add(time.Second)); err != nil {
		t.Fatalf("InProgress -> Completed should succeed: %v", err)
	}
	if err := d.Transition(DownloadInProgress, now.Add(2*time.Second)); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected Completed to be terminal, got err=%v", err)
	}
}

func TestDownloadRequestCannotSkipPendingToCompleted(t *testing.T) {
	d := &DownloadRequest{ID: "d2", Status: DownloadPending}
	if err := d.Transition(DownloadCompleted, time.Now()); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected skipping InProgress to be rejected, got %v", err)
	}
}
