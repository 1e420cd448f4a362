package objs

import "time"

// AccessRequestFlowType is how the external app's OAuth authorization
// flow presents to the end user.
type AccessRequestFlowType string

const (
	FlowTypeRedirect AccessRequestFlowType = "redirect"
	FlowTypePopup    AccessRequestFlowType = "popup"
)

// AccessRequestStatus is the ledger's own lifecycle, independent of the
// download and app-instance state machines.
type AccessRequestStatus string

const (
	AccessRequestDraft    AccessRequestStatus = "draft"
	AccessRequestApproved AccessRequestStatus = "approved"
	AccessRequestDenied   AccessRequestStatus = "denied"
	AccessRequestFailed   AccessRequestStatus = "failed"
)

// AppAccessRequest is the ledger row recording an external app's OAuth
// grant request and its resolution.
type AppAccessRequest struct {
	ID                 string
	AppClientID        string
	FlowType           AccessRequestFlowType
	RedirectURI        *string
	Status             AccessRequestStatus
	Requested          map[string]any
	Approved           map[string]any
	UserID             *string
	RequestedRole      *ResourceRole
	ApprovedRole       *ResourceRole
	AccessRequestScope *string
	ErrorMessage       *string
	ExpiresAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Resolve moves a Draft request to a terminal status, recording the
// approved payload/role or the error message as appropriate. Resolving an
// already-resolved request is rejected — the ledger is append-only after
// the initial decision.
func (r *AppAccessRequest) Resolve(status AccessRequestStatus, now time.Time) error {
	if r.Status != AccessRequestDraft {
		return ErrConflictf("access request %s already resolved as %s", r.ID, r.Status)
	}
	if status == AccessRequestDraft {
		return wrapf(ErrBadRequest, "cannot resolve access request %s back to draft", r.ID)
	}
	r.Status = status
	r.UpdatedAt = now
	return nil
}
