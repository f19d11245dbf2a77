package practice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// State is the feedback lifecycle position for the tracked attempt.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateTextReady  State = "text_ready"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Word-count thresholds. HintWords is the floor below which input is flagged
// as too short; EnableWords is the stricter bar for allowing submission.
const (
	HintWords   = 3
	EnableWords = 10
)

const (
	defaultPollInterval = 2 * time.Second
	defaultWatchdog     = 120 * time.Second
)

var (
	ErrBusy      = errors.New("a submission is already in flight")
	ErrTooShort  = errors.New("description must have at least 3 words")
	ErrDuplicate = errors.New("this description was already submitted")
)

// AttemptPoller is the client subset the controller needs.
type AttemptPoller interface {
	Submit(ctx context.Context, sceneID, text, installID string) (Feedback, error)
	AttemptStatus(ctx context.Context, attemptID string) (AttemptStatus, error)
}

// Snapshot is a point-in-time copy of the controller's state, safe to read
// after the controller has moved on.
type Snapshot struct {
	State        State
	Feedback     *Feedback
	ImageURL     *string
	ErrorKind    ErrorKind
	ErrorMessage string
	TimedOut     bool
}

// Controller drives one attempt's lifecycle at a time: submit, receive text
// feedback, poll for the deferred image, settle in a terminal state. A new
// submission or a reset cancels any in-flight polling unconditionally, so
// timers never act on a stale attempt id.
type Controller struct {
	client       AttemptPoller
	installID    string
	pollInterval time.Duration
	watchdog     time.Duration

	mu           sync.Mutex
	snapshot     Snapshot
	cancel       context.CancelFunc
	lastAccepted string
	onChange     func(Snapshot)
}

// NewController creates a Controller. Non-positive intervals fall back to
// the production defaults (2s poll, 120s watchdog).
func NewController(client AttemptPoller, installID string, pollInterval, watchdog time.Duration) *Controller {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if watchdog <= 0 {
		watchdog = defaultWatchdog
	}
	return &Controller{
		client:       client,
		installID:    installID,
		pollInterval: pollInterval,
		watchdog:     watchdog,
		snapshot:     Snapshot{State: StateIdle},
	}
}

// OnChange registers a callback invoked after every state change. Must be
// set before the first Submit; the callback runs outside the controller lock.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// WordCount counts whitespace-separated words in trimmed text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// HintNeeded reports whether text is below the minimum word hint threshold.
func HintNeeded(text string) bool {
	return WordCount(text) < HintWords
}

// CanSubmit reports whether the submit action should be enabled: enough
// words, not mid-submission, and not a repeat of the last accepted text.
func (c *Controller) CanSubmit(text string) bool {
	if WordCount(text) < EnableWords {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.State != StateSubmitting && strings.TrimSpace(text) != c.lastAccepted
}

// Submit starts a new attempt. Any polling for a previous attempt is torn
// down first. The lifecycle continues asynchronously; observe it through
// OnChange or Snapshot.
func (c *Controller) Submit(ctx context.Context, sceneID, text string) error {
	trimmed := strings.TrimSpace(text)

	c.mu.Lock()
	if c.snapshot.State == StateSubmitting {
		c.mu.Unlock()
		return ErrBusy
	}
	if WordCount(trimmed) < HintWords {
		c.mu.Unlock()
		return ErrTooShort
	}
	if trimmed == c.lastAccepted && c.lastAccepted != "" {
		c.mu.Unlock()
		return ErrDuplicate
	}

	if c.cancel != nil {
		c.cancel()
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.setStateLocked(Snapshot{State: StateSubmitting})
	c.mu.Unlock()

	go c.run(attemptCtx, sceneID, trimmed)
	return nil
}

// Reset cancels any tracking and returns to idle. Used by "try again" and
// "next scene" actions; advancing scenes also clears the duplicate guard.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.lastAccepted = ""
	c.setStateLocked(Snapshot{State: StateIdle})
	c.mu.Unlock()
}

func (c *Controller) run(ctx context.Context, sceneID, text string) {
	fb, err := c.client.Submit(ctx, sceneID, text, c.installID)
	if err != nil {
		c.transition(ctx, Snapshot{
			State:        StateError,
			ErrorKind:    ClassifyError(err),
			ErrorMessage: err.Error(),
		})
		return
	}

	c.mu.Lock()
	c.lastAccepted = text
	c.mu.Unlock()

	if fb.ImageURL != nil {
		c.transition(ctx, Snapshot{State: StateCompleted, Feedback: &fb, ImageURL: fb.ImageURL})
		return
	}

	c.transition(ctx, Snapshot{State: StateTextReady, Feedback: &fb})
	c.poll(ctx, &fb)
}

// poll watches the attempt until a terminal status, the watchdog deadline,
// or cancellation. Poll errors and non-terminal statuses keep the loop
// going; the watchdog is the only bound on how long that lasts.
func (c *Controller) poll(ctx context.Context, fb *Feedback) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(c.watchdog)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			c.transition(ctx, Snapshot{State: StateCompleted, Feedback: fb, TimedOut: true})
			return
		case <-ticker.C:
			status, err := c.client.AttemptStatus(ctx, fb.AttemptID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			switch status.Status {
			case "ok":
				if status.ImageURL != nil {
					c.transition(ctx, Snapshot{State: StateCompleted, Feedback: fb, ImageURL: status.ImageURL})
					return
				}
			case "text_only":
				c.transition(ctx, Snapshot{State: StateCompleted, Feedback: fb})
				return
			}
		}
	}
}

// transition applies s unless ctx was already cancelled. Cancellation is
// issued under the same lock, so a superseded attempt can never clobber the
// state its successor owns.
func (c *Controller) transition(ctx context.Context, s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	c.setStateLocked(s)
}

// setStateLocked stores s and schedules the change callback outside the lock.
func (c *Controller) setStateLocked(s Snapshot) {
	c.snapshot = s
	if c.onChange != nil {
		fn := c.onChange
		go fn(s)
	}
}
