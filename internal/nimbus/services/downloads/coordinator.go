// Package downloads tracks in-flight downloads from start to a terminal
// state and writes finished bodies to disk.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/haukened/nimbus/internal/nimbus/common/clock"
	"github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
)

var (
	ErrUnknownJob = errors.New("downloads: unknown job")
	ErrNotActive  = errors.New("downloads: job is not active")
	// ErrIncomplete marks a transfer that ended before delivering its
	// announced size.
	ErrIncomplete = errors.New("downloads: incomplete transfer")
)

type Options struct {
	Transport Transport
	Notifier  Notifier
	Clock     clock.Clock
	Logger    log.Logger
	// NewID returns job identifiers; defaults to UUIDv7 strings.
	NewID func() string
}

// Coordinator owns the active download set. Jobs run independently and
// without a concurrency limit.
type Coordinator struct {
	transport Transport
	notifier  Notifier
	clock     clock.Clock
	logger    log.Logger
	newID     func() string

	mu     sync.Mutex
	active map[string]*job

	subMu sync.RWMutex
	subs  []func(domain.DownloadJob)
}

// job is one tracked transfer. mu serializes its transitions and the
// delivery of the matching events, so subscribers see each job's events in
// order.
type job struct {
	c      *Coordinator
	mu     sync.Mutex
	state  domain.DownloadJob
	cancel context.CancelFunc
	ctx    context.Context
}

func New(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	return &Coordinator{
		transport: opts.Transport,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		logger:    opts.Logger,
		newID:     opts.NewID,
		active:    make(map[string]*job),
	}
}

// Subscribe registers fn for every job state change. Events for one job are
// delivered synchronously and in order; fn must not block for long and must
// not call back into the coordinator for the same job.
func (c *Coordinator) Subscribe(fn func(domain.DownloadJob)) {
	c.subMu.Lock()
	c.subs = append(c.subs, fn)
	c.subMu.Unlock()
}

// Start creates a job for source and asks the transport to begin the
// transfer. The returned snapshot is InProgress, or Failed when the transfer
// could not be started. Each call creates a new job.
func (c *Coordinator) Start(ctx context.Context, source, destination string) (domain.DownloadJob, error) {
	if source == "" || destination == "" {
		return domain.DownloadJob{}, fmt.Errorf("downloads: source and destination are required")
	}
	if c.transport == nil {
		return domain.DownloadJob{}, fmt.Errorf("downloads: no transport configured")
	}

	jctx, cancel := context.WithCancel(ctx)
	j := &job{
		c:      c,
		ctx:    jctx,
		cancel: cancel,
		state: domain.DownloadJob{
			ID:          c.newID(),
			Source:      source,
			Destination: destination,
			Total:       -1,
			State:       domain.DownloadPending,
			StartedAt:   c.clock.Now(),
		},
	}

	j.mu.Lock()
	c.mu.Lock()
	c.active[j.state.ID] = j
	c.mu.Unlock()
	c.emit(j.state)
	j.state.State = domain.DownloadInProgress
	c.emit(j.state)
	snap := j.state
	j.mu.Unlock()

	c.logger.Info(map[string]any{"id": snap.ID, "source": source, "destination": destination}, "download_started")

	if err := c.transport.Begin(jctx, source, j); err != nil {
		j.mu.Lock()
		defer j.mu.Unlock()
		if j.state.State == domain.DownloadInProgress {
			j.finish(domain.DownloadFailed, err)
		}
		return j.state, err
	}
	return snap, nil
}

// Abort cancels an in-progress job. Events the transport still delivers for
// it are discarded, and no file is written.
func (c *Coordinator) Abort(id string) error {
	c.mu.Lock()
	j, ok := c.active[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.State != domain.DownloadInProgress {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, id, j.state.State)
	}
	j.finish(domain.DownloadAborted, nil)
	return nil
}

// Job returns a snapshot of an active job.
func (c *Coordinator) Job(id string) (domain.DownloadJob, bool) {
	c.mu.Lock()
	j, ok := c.active[id]
	c.mu.Unlock()
	if !ok {
		return domain.DownloadJob{}, false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, true
}

// Active returns snapshots of every active job, oldest first.
func (c *Coordinator) Active() []domain.DownloadJob {
	c.mu.Lock()
	jobs := make([]*job, 0, len(c.active))
	for _, j := range c.active {
		jobs = append(jobs, j)
	}
	c.mu.Unlock()

	out := make([]domain.DownloadJob, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		out = append(out, j.state)
		j.mu.Unlock()
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].StartedAt.Equal(out[b].StartedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].StartedAt.Before(out[b].StartedAt)
	})
	return out
}

// AbortAll aborts every in-progress job, e.g. on shutdown.
func (c *Coordinator) AbortAll() {
	for _, j := range c.Active() {
		_ = c.Abort(j.ID)
	}
}

func (c *Coordinator) emit(snap domain.DownloadJob) {
	c.subMu.RLock()
	subs := c.subs
	c.subMu.RUnlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// Progress implements Reporter.
func (j *job) Progress(received, total int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.State != domain.DownloadInProgress {
		return
	}
	j.state.Received = received
	if total >= 0 {
		j.state.Total = total
	}
	j.c.emit(j.state)
}

// Complete implements Reporter. A body that falls short of the announced
// total fails the job; otherwise the body is written to the destination in
// one piece.
func (j *job) Complete(body []byte, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.State != domain.DownloadInProgress {
		return
	}
	if err != nil {
		if j.ctx.Err() != nil {
			j.finish(domain.DownloadAborted, nil)
			return
		}
		j.finish(domain.DownloadFailed, err)
		return
	}

	j.state.Received = int64(len(body))
	if j.state.Total >= 0 && j.state.Received != j.state.Total {
		j.finish(domain.DownloadFailed, fmt.Errorf("%w: got %d of %d bytes", ErrIncomplete, j.state.Received, j.state.Total))
		return
	}
	if j.state.Total < 0 {
		j.state.Total = j.state.Received
	}
	if err := WriteFile(j.state.Destination, body); err != nil {
		j.finish(domain.DownloadFailed, err)
		return
	}
	j.finish(domain.DownloadFinished, nil)
}

// finish moves the job to a terminal state, removes it from the active set
// and notifies. Callers hold j.mu.
func (j *job) finish(state domain.DownloadState, cause error) {
	c := j.c
	j.state.State = state
	j.state.FinishedAt = c.clock.Now()
	if cause != nil {
		j.state.Err = cause.Error()
	}
	j.cancel()

	c.mu.Lock()
	delete(c.active, j.state.ID)
	c.mu.Unlock()

	fields := map[string]any{"id": j.state.ID, "source": j.state.Source, "received": j.state.Received, "total": j.state.Total}
	switch state {
	case domain.DownloadFailed:
		fields["error"] = cause
		c.logger.Warn(fields, "download_failed")
	default:
		c.logger.Info(fields, "download_"+state.String())
	}

	c.emit(j.state)
	if c.notifier != nil {
		c.notifier.Notify(j.state)
	}
}

// WriteFile writes data to path through a temporary file in the same
// directory, so path either holds the complete data or is left untouched.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".part-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var _ Reporter = (*job)(nil)

// DirectoryChooser places every download in Dir under the last path segment
// of its source URL.
type DirectoryChooser struct {
	Dir string
}

// Choose returns the destination for source. suggested, when set, overrides
// the name taken from the URL.
func (d DirectoryChooser) Choose(source, suggested string) (string, error) {
	name := filepath.Base(filepath.Clean(suggested))
	if suggested == "" || name == "." || name == string(filepath.Separator) {
		name = NameFromURL(source)
	}
	if d.Dir == "" {
		return "", fmt.Errorf("downloads: no download directory configured")
	}
	return filepath.Join(d.Dir, name), nil
}

// NameFromURL derives a file name from the last path segment of rawURL.
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "download"
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return "download"
	}
	return name
}
