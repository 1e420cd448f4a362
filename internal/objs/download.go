package objs

import "time"

// DownloadStatus is the monotonic lifecycle of a DownloadRequest row:
// Pending -> InProgress -> (Completed | Error). Rows never transition out
// of a terminal state.
type DownloadStatus string

const (
	DownloadPending    DownloadStatus = "pending"
	DownloadInProgress DownloadStatus = "in_progress"
	DownloadCompleted  DownloadStatus = "completed"
	DownloadError      DownloadStatus = "error"
)

// IsTerminal reports whether no further transition is valid from s.
func (s DownloadStatus) IsTerminal() bool {
	return s == DownloadCompleted || s == DownloadError
}

// CanTransitionTo enforces the monotonic state machine: Pending may move
// to InProgress; InProgress may move to Completed or Error; terminal
// states are final.
func (s DownloadStatus) CanTransitionTo(next DownloadStatus) bool {
	switch s {
	case DownloadPending:
		return next == DownloadInProgress
	case DownloadInProgress:
		return next == DownloadCompleted || next == DownloadError
	default:
		return false
	}
}

// DownloadRequest is a persisted pull of a single HubFile.
type DownloadRequest struct {
	ID              string
	Repo            Repo
	Filename        string
	Status          DownloadStatus
	Error           *string
	TotalBytes      *int64
	DownloadedBytes int64
	StartedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Transition moves d to next, returning an error if the move violates the
// monotonic state machine.
func (d *DownloadRequest) Transition(next DownloadStatus, now time.Time) error {
	if !d.Status.CanTransitionTo(next) {
		return ErrConflictf("cannot transition download %s from %s to %s", d.ID, d.Status, next)
	}
	d.Status = next
	d.UpdatedAt = now
	if next == DownloadInProgress && d.StartedAt == nil {
		d.StartedAt = &now
	}
	return nil
}

// ErrConflictf wraps ErrConflict with a formatted message, used across
// objs for the Conflict category in the error taxonomy.
func ErrConflictf(format string, args ...any) error {
	return wrapf(ErrConflict, format, args...)
}
