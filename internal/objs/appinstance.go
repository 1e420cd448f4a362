package objs

import "time"

// AppStatus is the bodhi app instance's own setup state machine, gating
// which admin routes are reachable before OAuth client registration
// completes. Restored from original_source: the distilled spec names the
// AppInstance fields but not this lifecycle explicitly.
type AppStatus string

const (
	AppStatusSetup         AppStatus = "setup"
	AppStatusResourceAdmin AppStatus = "resource_admin"
	AppStatusReady         AppStatus = "ready"
)

// nextAppStatus is the only legal forward transition from each status;
// the app instance never regresses.
var nextAppStatus = map[AppStatus]AppStatus{
	AppStatusSetup:         AppStatusResourceAdmin,
	AppStatusResourceAdmin: AppStatusReady,
}

// CanAdvanceTo reports whether moving from s to next is a legal forward
// transition.
func (s AppStatus) CanAdvanceTo(next AppStatus) bool {
	return nextAppStatus[s] == next
}

// AppInstance is bodhi's own OAuth2 client registration with the identity
// provider. At most one row exists per installation.
type AppInstance struct {
	ClientID          string
	EncryptedSecret   string
	Status            AppStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Advance moves the instance to the next lifecycle state, rejecting
// skips or regressions.
func (a *AppInstance) Advance(next AppStatus, now time.Time) error {
	if !a.Status.CanAdvanceTo(next) {
		return ErrConflictf("cannot advance app instance from %s to %s", a.Status, next)
	}
	a.Status = next
	a.UpdatedAt = now
	return nil
}
