package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/dl-client/internal/domain"
	"github.com/yourusername/dl-client/pkg/disposition"
	"github.com/yourusername/dl-client/pkg/logger"
)

// cleanupTimeout bounds the best-effort job deletion
const cleanupTimeout = 30 * time.Second

// Controller drives a single remote download job from creation through
// status polling to artifact transfer and cleanup. At most one job is
// active at a time.
type Controller struct {
	api         domain.JobAPI
	projector   domain.Projector
	extractor   domain.FilenameExtractor
	config      *domain.LifecycleConfig
	policy      PollPolicy
	logger      *zap.Logger
	multiLogger *logger.MultiLogger

	// startMu serializes Start so a replaced run is fully stopped
	// before the next one begins
	startMu sync.Mutex

	// notifyMu orders projector calls. It is taken while mu is held and
	// kept after mu is released, so notifications follow transition order
	// without blocking State, Job or Cancel.
	notifyMu sync.Mutex

	mu           sync.Mutex
	state        domain.State
	current      *run
	last         *run
	lastErr      error
	onTransition func(from, to domain.State)
}

// run is one lifecycle execution for one job
type run struct {
	job      *domain.Job
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	replaced bool
}

// notice is one deferred projector call
type notice func(domain.Projector)

// NewController creates a new download lifecycle controller
func NewController(
	api domain.JobAPI,
	projector domain.Projector,
	extractor domain.FilenameExtractor,
	lifecycle *domain.LifecycleConfig,
	polling *domain.PollingConfig,
	log *zap.Logger,
	multiLogger *logger.MultiLogger,
) *Controller {
	if extractor == nil {
		extractor = domain.FilenameExtractorFunc(disposition.Filename)
	}
	if lifecycle == nil {
		lifecycle = &domain.DefaultConfig().Lifecycle
	}
	if polling == nil {
		polling = &domain.DefaultConfig().Polling
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Controller{
		api:         api,
		projector:   projector,
		extractor:   extractor,
		config:      lifecycle,
		policy:      NewPollPolicy(*polling),
		logger:      log,
		multiLogger: multiLogger,
		state:       domain.StateIdle,
	}
}

// SetTransitionHook registers a callback invoked on every state transition,
// including self-transitions. It runs with the controller's lock held.
func (c *Controller) SetTransitionHook(hook func(from, to domain.State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTransition = hook
}

// State returns the current controller state
func (c *Controller) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Job returns a copy of the active job, or nil when none is active
func (c *Controller) Job() *domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	job := *c.current.job
	return &job
}

// LastError returns the error of the last failed run until it is cleared
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Start begins downloading url. It returns once the job is registered;
// creation, polling and transfer continue in the background and their
// outcome is reported to the projector and by Wait.
//
// If a job is already active, Start returns ErrAlreadyActive under the
// reject policy and the active job is left untouched. Under the replace
// policy the active job is cancelled and its goroutine has exited before
// the new job is created. Rejections are reported to the projector too.
func (c *Controller) Start(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		c.notify(onError(domain.ErrEmptyURL))
		return domain.ErrEmptyURL
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if prev := c.current; prev != nil {
		if c.config.RestartPolicy != domain.RestartReplace {
			activeURL := prev.job.URL
			c.unlockAndNotify(onError(domain.ErrAlreadyActive))
			c.logger.Info("Rejected download, another one is active",
				zap.String("url", url),
				zap.String("active_url", activeURL))
			return domain.ErrAlreadyActive
		}

		c.logger.Info("Replacing active download",
			zap.String("run_id", prev.job.RunID),
			zap.String("job_id", prev.job.ID),
			zap.String("url", url))
		prev.replaced = true
		prev.cancel()
		c.mu.Unlock()
		<-prev.done
		c.mu.Lock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		job:    domain.NewJob(url),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.current = r
	c.last = r
	c.lastErr = nil
	c.transition(r, domain.StateStarting)
	c.unlockAndNotify(domain.Projector.OnErrorCleared)

	c.logger.Info("Download started",
		zap.String("run_id", r.job.RunID),
		zap.String("url", url))

	go c.run(runCtx, r)
	return nil
}

// Cancel stops the active job, if any. The pending poll is abandoned, the
// run ends in FAILED with context.Canceled and the backend job is deleted
// on a best-effort basis. It reports whether a job was active.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return false
	}
	c.current.cancel()
	return true
}

// Wait blocks until the most recent run has finished and returns its
// terminal error, nil when the artifact was transferred.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	r := c.last
	c.mu.Unlock()

	if r == nil {
		return nil
	}

	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearError dismisses the error presentation. A FAILED controller
// returns to IDLE; starting new jobs is unaffected either way.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.lastErr = nil
	if c.state == domain.StateFailed {
		c.setState(domain.StateFailed, domain.StateIdle)
	}
	c.unlockAndNotify(domain.Projector.OnErrorCleared)
}

// run executes the lifecycle of r; it is the only goroutine touching the backend for r
func (c *Controller) run(ctx context.Context, r *run) {
	defer close(r.done)
	defer r.cancel()

	handle, err := c.api.CreateJob(ctx, r.job.URL)
	if err != nil {
		c.fail(ctx, r, classify("create job", err))
		return
	}

	c.mu.Lock()
	r.job.ID = handle.ID
	if ctx.Err() != nil {
		c.mu.Unlock()
		c.fail(ctx, r, ctx.Err())
		return
	}
	c.transition(r, domain.StatePolling)
	c.unlockAndNotify(domain.Projector.OnProgressInit)

	delay := c.policy.Initial()
	var previous *domain.StatusReport
	for {
		if !sleep(ctx, delay) {
			c.fail(ctx, r, ctx.Err())
			return
		}

		report, err := c.api.GetStatus(ctx, r.job.ID)
		if err != nil {
			c.fail(ctx, r, classify("get status", err))
			return
		}

		next, err := c.interpret(ctx, r, report)
		if err != nil {
			c.fail(ctx, r, err)
			return
		}
		if next == domain.StateTransferring {
			break
		}

		delay = c.policy.Next(delay, reportChanged(previous, report))
		previous = report
	}

	c.transfer(ctx, r)
}

// interpret applies one status report to r and returns the resulting state
func (c *Controller) interpret(ctx context.Context, r *run, report *domain.StatusReport) (domain.State, error) {
	c.mu.Lock()
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return "", err
	}

	postprocessing := r.job.State == domain.StatePostprocessing

	var next domain.State
	var n notice
	switch report.Status {
	case domain.TagInProgress:
		r.job.UpdateProgress(report.Progress)
		next = domain.StatePolling
		if postprocessing {
			n = domain.Projector.OnPostprocessingExit
		} else {
			n = onProgress(r.job.Progress)
		}

	case domain.TagPostprocessing:
		r.job.UpdateProgress(report.Progress)
		next = domain.StatePostprocessing
		if postprocessing {
			n = onProgress(r.job.Progress)
		} else {
			n = domain.Projector.OnPostprocessingEnter
		}

	case domain.TagFinished:
		r.job.UpdateProgress(100)
		next = domain.StateTransferring
		if postprocessing {
			n = domain.Projector.OnPostprocessingExit
		} else {
			n = onProgress(r.job.Progress)
		}

	case domain.TagError:
		c.mu.Unlock()
		// The backend does not tell error causes apart
		return "", domain.ErrBackendJob

	default:
		c.mu.Unlock()
		return "", fmt.Errorf("%w: unexpected status tag %q", domain.ErrProtocol, string(report.Status))
	}

	c.transition(r, next)
	c.unlockAndNotify(n)
	return next, nil
}

// transfer fetches the artifact, hands it to the projector and deletes the backend job
func (c *Controller) transfer(ctx context.Context, r *run) {
	result, err := c.api.FetchArtifact(ctx, r.job.ID)
	if err != nil {
		c.fail(ctx, r, classify("fetch artifact", err))
		return
	}

	filename := c.extractor.Extract(result.Disposition)
	if filename == "" {
		filename = c.config.DefaultFilename
		c.logger.Debug("No filename in content-disposition, using default",
			zap.String("job_id", r.job.ID),
			zap.String("disposition", result.Disposition),
			zap.String("filename", filename))
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		c.fail(ctx, r, ctx.Err())
		return
	}
	c.transition(r, domain.StateDone)
	notices := []notice{func(p domain.Projector) { p.OnSaveArtifact(result.Data, filename) }}
	if c.release(r) {
		notices = append(notices, domain.Projector.OnProgressReset)
	}
	c.unlockAndNotify(notices...)

	c.logger.Info("Download completed",
		zap.String("run_id", r.job.RunID),
		zap.String("job_id", r.job.ID),
		zap.String("filename", filename),
		zap.Int("bytes", len(result.Data)))

	c.cleanup(ctx, r)
}

// fail moves r to FAILED, reports err and discards the job. A run
// cancelled by its replacement is not reported as an error.
func (c *Controller) fail(ctx context.Context, r *run, err error) {
	cancelled := ctx.Err() != nil
	if cancelled {
		err = ctx.Err()
	}

	c.mu.Lock()
	r.err = err
	c.lastErr = err
	c.transition(r, domain.StateFailed)
	var notices []notice
	if !r.replaced {
		notices = append(notices, onError(err))
	}
	if c.release(r) {
		notices = append(notices, domain.Projector.OnProgressReset)
	}
	c.unlockAndNotify(notices...)

	fields := []zap.Field{
		zap.String("run_id", r.job.RunID),
		zap.String("job_id", r.job.ID),
		zap.String("url", r.job.URL),
		zap.String("kind", domain.ErrorKind(err)),
		zap.Error(err),
	}
	if cancelled {
		c.logger.Info("Download cancelled", fields...)
	} else {
		c.logger.Error("Download failed", fields...)
	}
	if c.multiLogger != nil {
		c.multiLogger.LogAppError("download_failed", fields...)
	}

	// A failed fetch leaves nothing reliable to delete; a cancelled job would
	// otherwise linger on the backend
	if cancelled && r.job.ID != "" {
		c.cleanup(ctx, r)
	}
}

// cleanup deletes the backend job. Failures are logged only.
func (c *Controller) cleanup(ctx context.Context, r *run) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := c.api.DeleteJob(cleanupCtx, r.job.ID); err != nil {
		fields := []zap.Field{
			zap.String("run_id", r.job.RunID),
			zap.String("job_id", r.job.ID),
			zap.Error(err),
		}
		c.logger.Warn("Failed to delete job", fields...)
		if c.multiLogger != nil {
			c.multiLogger.LogAppWarning("cleanup_failed", fields...)
		}
		return
	}

	c.logger.Debug("Deleted job", zap.String("job_id", r.job.ID))
}

// release discards r as the active job and reports whether it was active.
// Callers hold c.mu.
func (c *Controller) release(r *run) bool {
	if c.current != r {
		return false
	}
	c.current = nil
	return true
}

// unlockAndNotify releases c.mu, then delivers notices in order. Callers
// hold c.mu. Projector calls never run under c.mu, so a slow projector
// does not block State, Job or Cancel.
func (c *Controller) unlockAndNotify(notices ...notice) {
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, n := range notices {
		n(c.projector)
	}
}

// notify delivers notices for a caller that does not hold c.mu
func (c *Controller) notify(notices ...notice) {
	c.mu.Lock()
	c.unlockAndNotify(notices...)
}

func onError(err error) notice {
	message := domain.UserMessage(err)
	return func(p domain.Projector) { p.OnError(message) }
}

func onProgress(progress float64) notice {
	return func(p domain.Projector) { p.OnProgressUpdate(progress) }
}

// transition moves r to state. Callers hold c.mu.
func (c *Controller) transition(r *run, to domain.State) {
	from := c.state
	r.job.SetState(to)
	c.setState(from, to)

	if c.multiLogger != nil {
		c.multiLogger.LogLifecycleEvent("transition",
			zap.String("run_id", r.job.RunID),
			zap.String("job_id", r.job.ID),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Float64("progress", r.job.Progress))
	}
}

// setState records a controller state change. Callers hold c.mu.
func (c *Controller) setState(from, to domain.State) {
	c.state = to
	if from != to {
		c.logger.Debug("State transition",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}

// classify wraps err as a transport failure unless it already belongs to
// the error taxonomy
func classify(op string, err error) error {
	if errors.Is(err, domain.ErrTransport) ||
		errors.Is(err, domain.ErrMalformedResponse) ||
		errors.Is(err, domain.ErrProtocol) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
}

// sleep waits for d or until ctx is done; it reports whether d elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
