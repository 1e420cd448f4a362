package toolorch

import (
	"context"
	"sort"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// AccessRequestStore is the narrow slice of db.AppStore the grant
// fetcher needs: bodhi has no external identity provider round trip for
// toolset grants, since the app doing the asking and the app holding the
// record are the same single-tenant installation. The approved access
// request rows in the local database ARE the grant.
type AccessRequestStore interface {
	ListAccessRequestsByApp(ctx context.Context, appClientID string) ([]objs.AppAccessRequest, error)
}

// DBGrantFetcher implements GrantFetcher against the local database
// instead of a network identity provider: it folds every Approved access
// request for an app client into one grant, the union of their approved
// toolsets and roles. Requests in any other status are skipped, so a
// later denial does not withdraw an earlier approval.
type DBGrantFetcher struct {
	store AccessRequestStore
}

// NewDBGrantFetcher constructs a fetcher reading access requests from store.
func NewDBGrantFetcher(store AccessRequestStore) *DBGrantFetcher {
	return &DBGrantFetcher{store: store}
}

// FetchGrant folds appClientID's approved access requests into a single
// grant. requestedScopeIDs is intersected against what was actually
// approved, never unioned — a caller cannot widen its own grant by
// asking for more scopes than were approved.
func (f *DBGrantFetcher) FetchGrant(ctx context.Context, appClientID string, requestedScopeIDs []string) (AppToolsetGrant, error) {
	reqs, err := f.store.ListAccessRequestsByApp(ctx, appClientID)
	if err != nil {
		return AppToolsetGrant{}, err
	}

	toolsetSeen := map[string]bool{}
	scopeSeen := map[string]bool{}
	for _, r := range reqs {
		if r.Status != objs.AccessRequestApproved {
			continue
		}
		for _, v := range r.Approved {
			ids, ok := v.([]any)
			if !ok {
				continue
			}
			for _, id := range ids {
				if s, ok := id.(string); ok {
					toolsetSeen[s] = true
				}
			}
		}
		if r.ApprovedRole != nil {
			scopeSeen[string(*r.ApprovedRole)] = true
		}
	}

	grant := AppToolsetGrant{}
	for id := range toolsetSeen {
		grant.ToolsetIDs = append(grant.ToolsetIDs, id)
	}
	sort.Strings(grant.ToolsetIDs)

	if len(requestedScopeIDs) == 0 {
		for id := range scopeSeen {
			grant.ScopeIDs = append(grant.ScopeIDs, id)
		}
	} else {
		for _, id := range requestedScopeIDs {
			if scopeSeen[id] {
				grant.ScopeIDs = append(grant.ScopeIDs, id)
			}
		}
	}
	sort.Strings(grant.ScopeIDs)
	return grant, nil
}

var _ GrantFetcher = (*DBGrantFetcher)(nil)
