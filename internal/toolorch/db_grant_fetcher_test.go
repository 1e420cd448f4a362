package toolorch

import (
	"context"
	"testing"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

type fakeAccessRequestStore struct {
	reqs []objs.AppAccessRequest
}

func (f fakeAccessRequestStore) ListAccessRequestsByApp(ctx context.Context, appClientID string) ([]objs.AppAccessRequest, error) {
	var out []objs.AppAccessRequest
	for _, r := range f.reqs {
		if r.AppClientID == appClientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func roleFor(s string) *objs.ResourceRole {
	r := objs.ResourceRole(s)
	return &r
}

func TestDBGrantFetcherFoldsApprovedRequestsOnly(t *testing.T) {
	store := fakeAccessRequestStore{reqs: []objs.AppAccessRequest{
		{
			AppClientID: "app-1",
			Status:      objs.AccessRequestApproved,
			Approved:    map[string]any{"toolsets": []any{"exa", "mcp-github"}},
		},
		{
			AppClientID: "app-1",
			Status:      objs.AccessRequestDenied,
			Approved:    map[string]any{"toolsets": []any{"exa-should-not-appear"}},
		},
		{
			AppClientID: "app-2",
			Status:      objs.AccessRequestApproved,
			Approved:    map[string]any{"toolsets": []any{"other-app"}},
		},
	}}

	fetcher := NewDBGrantFetcher(store)
	grant, err := fetcher.FetchGrant(context.Background(), "app-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(grant.ToolsetIDs) != 2 || grant.ToolsetIDs[0] != "exa" || grant.ToolsetIDs[1] != "mcp-github" {
		t.Fatalf("expected exa and mcp-github, got %v", grant.ToolsetIDs)
	}
}

func TestDBGrantFetcherIntersectsRequestedScopes(t *testing.T) {
	store := fakeAccessRequestStore{reqs: []objs.AppAccessRequest{
		{AppClientID: "app-1", Status: objs.AccessRequestApproved, ApprovedRole: roleFor("user")},
	}}

	fetcher := NewDBGrantFetcher(store)

	grant, err := fetcher.FetchGrant(context.Background(), "app-1", []string{"user", "admin"})
	if err != nil {
		t.Fatal(err)
	}
	if len(grant.ScopeIDs) != 1 || grant.ScopeIDs[0] != "user" {
		t.Fatalf("expected requesting admin to be dropped since it was never approved, got %v", grant.ScopeIDs)
	}
}

func TestDBGrantFetcherEmptyWhenNothingApproved(t *testing.T) {
	store := fakeAccessRequestStore{}
	fetcher := NewDBGrantFetcher(store)

	grant, err := fetcher.FetchGrant(context.Background(), "app-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(grant.ToolsetIDs) != 0 || len(grant.ScopeIDs) != 0 {
		t.Fatalf("expected an empty grant, got %+v", grant)
	}
}
