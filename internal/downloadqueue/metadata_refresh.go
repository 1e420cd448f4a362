package downloadqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// APIAliasStore is the persistence seam MetadataRefresher needs to list
// and update API aliases' cached upstream model lists.
type APIAliasStore interface {
	ListAPIAliases(ctx context.Context) ([]objs.APIAlias, error)
	PutAPIAlias(ctx context.Context, alias objs.APIAlias) error
}

// MetadataRefresher periodically re-fetches each API alias's upstream
// /models listing into ModelsCache, on a cron.Schedule rather than a
// plain ticker since this is the one background task the spec names
// with calendar-style cadence ("metadata refresh queue") independent of
// the download worker's fixed poll interval.
type MetadataRefresher struct {
	store  APIAliasStore
	client *http.Client
	cron   *cron.Cron
	now    func() time.Time
}

// NewMetadataRefresher constructs a refresher that has not yet been
// scheduled; call Start to register its cron entry.
func NewMetadataRefresher(store APIAliasStore, client *http.Client) *MetadataRefresher {
	if client == nil {
		client = http.DefaultClient
	}
	return &MetadataRefresher{store: store, client: client, cron: cron.New(), now: time.Now}
}

// Start registers the refresh job on spec (standard 5-field cron syntax,
// e.g. "*/15 * * * *": robfig/cron's default parser is 5-field and
// minute-granularity, which matches an "every few minutes" cadence well
// enough for a model-list cache) and starts the scheduler goroutine.
func (r *MetadataRefresher) Start(ctx context.Context, spec string) error {
	_, err := r.cron.AddFunc(spec, func() { r.refreshAll(ctx) })
	if err != nil {
		return fmt.Errorf("scheduling metadata refresh: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight refresh to finish.
func (r *MetadataRefresher) Stop() {
	<-r.cron.Stop().Done()
}

func (r *MetadataRefresher) refreshAll(ctx context.Context) {
	aliases, err := r.store.ListAPIAliases(ctx)
	if err != nil {
		return
	}
	for _, a := range aliases {
		models, err := r.fetchModels(ctx, a)
		if err != nil {
			continue
		}
		now := r.now()
		a.ModelsCache = models
		a.CacheFetchedAt = &now
		a.UpdatedAt = now
		_ = r.store.PutAPIAlias(ctx, a)
	}
}

func (r *MetadataRefresher) fetchModels(ctx context.Context, a objs.APIAlias) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", objs.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", objs.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(body.Data))
	for _, m := range body.Data {
		out = append(out, m.ID)
	}
	return out, nil
}
