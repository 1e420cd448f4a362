package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// Progress is the lifecycle callback a caller of Download may supply;
// internal/downloadqueue's DatabaseProgress is the production
// implementation, syncing these calls into a DownloadRequest row.
type Progress interface {
	Init(totalBytes int64, filename string)
	Update(bytesDelta int64)
	Finish()
}

// noopProgress is used when Download is called without a sink (e.g. from
// the CLI's synchronous "bodhi pull" path).
type noopProgress struct{}

func (noopProgress) Init(int64, string) {}
func (noopProgress) Update(int64)       {}
func (noopProgress) Finish()            {}

// HTTPDoer abstracts the HTTP client so tests can substitute a fake
// transport instead of hitting huggingface.co.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Downloader pulls HubFiles from Hugging Face into the local cache.
type Downloader struct {
	Client   HTTPDoer
	HfHome   string
	HfToken  string
	BaseURL  string // defaults to https://huggingface.co
	Backoff  func() backoff.BackOff
}

// NewDownloader constructs a Downloader with production defaults.
func NewDownloader(hfHome, hfToken string) *Downloader {
	return &Downloader{
		Client:  http.DefaultClient,
		HfHome:  hfHome,
		HfToken: hfToken,
		BaseURL: "https://huggingface.co",
		Backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
	}
}

// Download obtains (repo, filename) at an optional snapshot ("main" if
// nil), reporting progress if sink is non-nil. It is resumable: if the
// final file already exists it is a no-op, and atomic: the partial file
// lives at {final}.part and is renamed into place only on completion.
func (d *Downloader) Download(ctx context.Context, repo objs.Repo, filename string, snapshot *string, sink Progress) (objs.HubFile, error) {
	if sink == nil {
		sink = noopProgress{}
	}
	snap := "main"
	if snapshot != nil {
		snap = *snapshot
	}

	finalPath := filepath.Join(HubRoot(d.HfHome), repo.FolderName(), "snapshots", snap, filename)
	if info, err := os.Stat(finalPath); err == nil {
		sink.Init(info.Size(), filename)
		sink.Finish()
		return objs.HubFile{HfCachePath: HubRoot(d.HfHome), Repo: repo, Filename: filename, Snapshot: snap, Size: ptr(info.Size())}, nil
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return objs.HubFile{}, fmt.Errorf("%w: creating snapshot dir: %v", objs.ErrInternal, err)
	}
	partPath := finalPath + ".part"

	var size int64
	op := func() error {
		n, err := d.streamOnce(ctx, repo, filename, snap, partPath, sink)
		size = n
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(d.Backoff(), ctx)); err != nil {
		return objs.HubFile{}, fmt.Errorf("%w: downloading %s/%s: %v", objs.ErrUpstreamUnavailable, repo, filename, err)
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		return objs.HubFile{}, fmt.Errorf("%w: finalizing download: %v", objs.ErrInternal, err)
	}
	sink.Finish()
	return objs.HubFile{HfCachePath: HubRoot(d.HfHome), Repo: repo, Filename: filename, Snapshot: snap, Size: ptr(size)}, nil
}

func (d *Downloader) streamOnce(ctx context.Context, repo objs.Repo, filename, snapshot, partPath string, sink Progress) (int64, error) {
	url := fmt.Sprintf("%s/%s/resolve/%s/%s", d.BaseURL, repo, snapshot, filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	if d.HfToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.HfToken)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return 0, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return 0, backoff.Permanent(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	sink.Init(resp.ContentLength, filename)

	out, err := os.Create(partPath)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	defer out.Close()

	counter := &progressWriter{w: out, sink: sink}
	written, err := io.Copy(counter, resp.Body)
	if err != nil {
		return written, err
	}
	return written, nil
}

type progressWriter struct {
	w    io.Writer
	sink Progress
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if n > 0 {
		p.sink.Update(int64(n))
	}
	return n, err
}

func ptr[T any](v T) *T { return &v }
