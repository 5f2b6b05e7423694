// ABOUTME: Per-request session runner: drives trace events from the transport through a reducer into the store.
// ABOUTME: Guarantees exactly-one resolution, single-in-flight gating, abandonment, and a bounded inactivity timeout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389-research/kicksight/conversation"
	"github.com/2389-research/kicksight/trace"
)

// DefaultInactivityTimeout bounds how long a silent stream may stay open
// before the request is failed. The reference backend never times out on its
// own; without this a hung connection would leave the placeholder in
// progress forever.
const DefaultInactivityTimeout = 2 * time.Minute

var (
	// ErrRequestInFlight is returned when a thread already has a running
	// request; the second submission is rejected at this boundary, not
	// inside the reducer.
	ErrRequestInFlight = errors.New("a request is already running for this conversation")

	// ErrConnection reports that the stream failed or ended without a final
	// response.
	ErrConnection = errors.New("connection to the analysis backend was lost")
)

// connectionNotice is the user-facing text for transport failures.
const connectionNotice = "Could not complete the request. Check your connection and try again."

// Transport opens a streaming trace request. Satisfied by transport.Client.
type Transport interface {
	StreamTrace(ctx context.Context, message, sessionToken string) (<-chan trace.Event, <-chan error, error)
}

// Store is the conversation-store contract the runner needs. Satisfied by
// conversation.Store.
type Store interface {
	SessionToken(threadID string) (string, error)
	AppendUser(threadID, text string) (conversation.Message, error)
	BeginPlaceholder(threadID string) (conversation.Message, error)
	UpdatePlaceholder(threadID string, progress []string, icon string)
	ReplacePlaceholder(threadID string, msg conversation.Message) error
	ClearPlaceholder(threadID string)
}

// flight is one in-flight request.
type flight struct {
	cancel    context.CancelFunc
	abandoned atomic.Bool
}

// Runner submits questions and reconciles their streams into conversation
// state. One Runner serves the whole app; it allows at most one in-flight
// request per thread.
type Runner struct {
	transport Transport
	store     Store
	timeout   time.Duration
	notify    func(threadID string)

	mu       sync.Mutex
	inflight map[string]*flight
}

// Option configures a Runner.
type Option func(*Runner)

// WithInactivityTimeout overrides the stream inactivity bound. Non-positive
// values keep the default.
func WithInactivityTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithNotify registers a callback invoked (from the stream goroutine) each
// time a thread's visible state changes: progress updates and resolution.
func WithNotify(fn func(threadID string)) Option {
	return func(r *Runner) { r.notify = fn }
}

// NewRunner creates a Runner over the given transport and store.
func NewRunner(transport Transport, store Store, opts ...Option) *Runner {
	r := &Runner{
		transport: transport,
		store:     store,
		timeout:   DefaultInactivityTimeout,
		notify:    func(string) {},
		inflight:  make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InFlight reports whether the thread has a running request.
func (r *Runner) InFlight(threadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[threadID]
	return ok
}

// Ask submits a question on a thread: it appends the user message, creates
// the in-progress placeholder, and starts consuming the trace stream in the
// background. It returns immediately after the request is accepted;
// completion is observable through the store and the notify callback.
func (r *Runner) Ask(ctx context.Context, threadID, text string) error {
	r.mu.Lock()
	if _, busy := r.inflight[threadID]; busy {
		r.mu.Unlock()
		return ErrRequestInFlight
	}

	token, err := r.store.SessionToken(threadID)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("resolve session token: %w", err)
	}
	if _, err := r.store.AppendUser(threadID, text); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("record user message: %w", err)
	}
	if _, err := r.store.BeginPlaceholder(threadID); err != nil {
		r.mu.Unlock()
		return err
	}

	reqCtx, cancel := context.WithCancel(ctx)
	f := &flight{cancel: cancel}
	r.inflight[threadID] = f
	r.mu.Unlock()

	go r.run(reqCtx, f, threadID, token, text)
	return nil
}

// Abandon discards a thread's in-flight request: the eventual resolution is
// ignored and the placeholder is removed so it cannot leak into another
// conversation. Safe to call when nothing is in flight.
func (r *Runner) Abandon(threadID string) {
	r.mu.Lock()
	f, ok := r.inflight[threadID]
	r.mu.Unlock()
	if !ok {
		return
	}
	f.abandoned.Store(true)
	f.cancel()
	r.store.ClearPlaceholder(threadID)
}

// run consumes one trace stream to resolution. The deferred block is the
// guaranteed-cleanup path: whatever happens to the stream, the reducer ends
// resolved and the placeholder is replaced (or, when abandoned, stays gone).
func (r *Runner) run(ctx context.Context, f *flight, threadID, token, text string) {
	red := trace.NewReducer()

	defer func() {
		if !red.Resolved() {
			red.ResolveFailure(ErrConnection)
		}

		r.mu.Lock()
		delete(r.inflight, threadID)
		r.mu.Unlock()

		if f.abandoned.Load() {
			// Resolution discarded; Abandon already removed the placeholder.
			return
		}

		out, _ := red.Outcome()
		msg := conversation.Message{}
		switch {
		case out.Success:
			msg.Result = &out.Result
		case errors.Is(out.Err, ErrConnection):
			msg.ErrText = connectionNotice
		default:
			msg.ErrText = out.Err.Error()
		}
		if err := r.store.ReplacePlaceholder(threadID, msg); err != nil {
			log.Printf("session replace placeholder thread=%s err=%v", threadID, err)
		}
		r.notify(threadID)
	}()

	// Cancel the transport once this function returns so its reader
	// goroutine never blocks on an unread channel.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, errc, err := r.transport.StreamTrace(ctx, text, token)
	if err != nil {
		log.Printf("session open stream thread=%s err=%v", threadID, err)
		red.ResolveFailure(fmt.Errorf("%w: %v", ErrConnection, err))
		return
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Stream ended. If no terminal event arrived, the deferred
				// cleanup resolves a connection failure.
				if streamErr := <-errc; streamErr != nil && !red.Resolved() {
					red.ResolveFailure(fmt.Errorf("%w: %v", ErrConnection, streamErr))
				}
				return
			}

			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(r.timeout)

			red.HandleEvent(ev)
			if red.Resolved() {
				return
			}
			r.store.UpdatePlaceholder(threadID, red.ProgressLines(), red.Icon())
			r.notify(threadID)

		case <-timer.C:
			red.ResolveFailure(fmt.Errorf("%w: no activity for %s", ErrConnection, r.timeout))
			return

		case <-ctx.Done():
			red.ResolveFailure(fmt.Errorf("%w: %v", ErrConnection, ctx.Err()))
			return
		}
	}
}
