// Package llamactx owns the single shared llama-server subprocess: its
// reload lifecycle, request forwarding, and idle keep-alive eviction.
// Grounded on the teacher's services/llm multi-model manager, collapsed
// from a pool of concurrently warm models to the single shared process
// this spec requires, with the teacher's RWMutex-around-a-managed-slot
// shape kept intact.
package llamactx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bodhi-ml/bodhi/internal/objs"
	"github.com/bodhi-ml/bodhi/internal/procmanager"
)

// ServerArgs is the set of arguments a reload starts llama-server with:
// the resolved model file path and any extra CLI flags from
// BODHI_LLAMACPP_ARGS plus the alias's context_params.
type ServerArgs struct {
	ModelPath string
	Port      int
	ExtraArgs []string
}

// loadedServer is the in-memory record of the currently running
// subprocess, guarded by Context.mu.
type loadedServer struct {
	args ServerArgs
	pid  int
	baseURL string
}

// Context owns exactly one live llama-server subprocess at a time. The
// zero value is not usable; construct with New.
type Context struct {
	mu       sync.RWMutex // guards current; readers = inference, writer = reload/stop
	reloadMu sync.Mutex   // serializes concurrent reload calls
	current  *loadedServer

	procs       procmanager.ProcessManager
	execPath    string
	httpClient  *http.Client
	keepAlive   time.Duration
	keepAliveTimer *time.Timer
	inflight    int
	inflightMu  sync.Mutex

	probeBackoff func() backoff.BackOff
}

// Config configures a new Context.
type Config struct {
	ProcessManager procmanager.ProcessManager
	ExecPath       string
	HTTPClient     *http.Client
	KeepAlive      time.Duration
	ProbeBackoff   func() backoff.BackOff
}

// New constructs a Context with no subprocess loaded.
func New(cfg Config) *Context {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 300 * time.Second
	}
	if cfg.ProbeBackoff == nil {
		cfg.ProbeBackoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 30 * time.Second
			return b
		}
	}
	return &Context{
		procs:        cfg.ProcessManager,
		execPath:     cfg.ExecPath,
		httpClient:   cfg.HTTPClient,
		keepAlive:    cfg.KeepAlive,
		probeBackoff: cfg.ProbeBackoff,
	}
}

// SetExecVariant changes which binary future reloads will execute; it
// does not affect an already-running subprocess.
func (c *Context) SetExecVariant(path string) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()
	c.execPath = path
}

// IsLoaded reports whether a subprocess is currently owned, without
// blocking on any in-flight reload.
func (c *Context) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// Reload is the idempotent swap: probe the new process before swapping,
// then stop the old one. A nil args stops the
// current server and leaves the context empty. Otherwise a new server is
// started and probed for readiness before the old one (if any) is
// stopped — readers never observe a hybrid state because the swap
// happens under the write lock only after the new server is confirmed
// healthy.
//
// Reload is serialized by reloadMu: two concurrent calls with different
// args produce two sequential swaps, never overlapping subprocesses.
func (c *Context) Reload(ctx context.Context, args *ServerArgs) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	if args == nil {
		return c.stopLocked()
	}

	pid, err := c.procs.Start(ctx, c.execPath, buildArgs(*args), "", nil)
	if err != nil {
		return fmt.Errorf("%w: starting llama-server: %v", objs.ErrInternal, err)
	}
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", args.Port)

	if err := c.probeReady(ctx, baseURL); err != nil {
		_ = c.procs.Signal(pid, syscall.SIGKILL)
		return fmt.Errorf("%w: readiness probe failed: %v", objs.ErrInternal, err)
	}

	c.mu.Lock()
	old := c.current
	c.current = &loadedServer{args: *args, pid: pid, baseURL: baseURL}
	c.mu.Unlock()

	if old != nil {
		_ = c.procs.Signal(old.pid, syscall.SIGTERM)
	}
	c.resetKeepAlive()
	return nil
}

// TryStop is the idempotent teardown: safe to call on an empty context.
// The shutdown callback installed at server-start time calls this to
// guarantee subprocess termination on graceful shutdown.
func (c *Context) TryStop() error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()
	return c.stopLocked()
}

func (c *Context) stopLocked() error {
	c.mu.Lock()
	old := c.current
	c.current = nil
	c.mu.Unlock()

	if old == nil {
		return nil
	}
	return c.procs.Signal(old.pid, syscall.SIGTERM)
}

// probeReady pings baseURL/health with bounded exponential backoff,
// failing if the deadline elapses before a 200 response.
func (c *Context) probeReady(ctx context.Context, baseURL string) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("health status %d", resp.StatusCode)
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(c.probeBackoff(), ctx))
}

// resetKeepAlive (re)arms the idle-eviction timer; called after every
// Forward call, whether or not it succeeded, and after a successful reload.
func (c *Context) resetKeepAlive() {
	if c.keepAliveTimer != nil {
		c.keepAliveTimer.Stop()
	}
	c.keepAliveTimer = time.AfterFunc(c.keepAlive, func() {
		c.inflightMu.Lock()
		idle := c.inflight == 0
		c.inflightMu.Unlock()
		if idle {
			_ = c.TryStop()
		}
	})
}

func buildArgs(args ServerArgs) []string {
	out := []string{"--model", args.ModelPath, "--port", fmt.Sprintf("%d", args.Port)}
	return append(out, args.ExtraArgs...)
}

// beginRequest/endRequest track in-flight inference calls so keep-alive
// eviction never fires mid-request; they are called by Forward.
func (c *Context) beginRequest() {
	c.inflightMu.Lock()
	c.inflight++
	c.inflightMu.Unlock()
}

func (c *Context) endRequest() {
	c.inflightMu.Lock()
	c.inflight--
	c.inflightMu.Unlock()
}

// CurrentModelPath returns the model path of the loaded subprocess, or
// ("", false) if nothing is loaded. Callers use this to decide whether
// an incoming request's alias requires a Reload before forwarding.
func (c *Context) CurrentModelPath() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return "", false
	}
	return c.current.args.ModelPath, true
}

// EnsureLoaded reloads the subprocess only if the requested model path
// differs from (or nothing is) currently loaded, then returns once a
// matching server is confirmed ready.
func (c *Context) EnsureLoaded(ctx context.Context, args ServerArgs) error {
	if current, ok := c.CurrentModelPath(); ok && current == args.ModelPath {
		return nil
	}
	return c.Reload(ctx, &args)
}

// Forward proxies body to the loaded subprocess's path, returning the
// raw response for the handler layer to stream or buffer. The caller
// must have already ensured a server is loaded via EnsureLoaded.
func (c *Context) Forward(ctx context.Context, path string, body io.Reader, headers http.Header) (*http.Response, error) {
	c.beginRequest()
	defer c.endRequest()
	defer c.resetKeepAlive()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil, fmt.Errorf("%w: no llama-server loaded", objs.ErrInternal)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.current.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling llama-server: %v", objs.ErrUpstreamUnavailable, err)
	}
	return resp, nil
}
