package command

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// DefaultCapacity is the command queue size used when none is given.
const DefaultCapacity = 100

// Handler processes one command. It should answer it; an unanswered command
// is failed by the receiver once Handler returns.
type Handler func(ctx context.Context, env Envelope)

// NewChannel creates a bounded command channel.
func NewChannel(capacity int, log *logger.Logger) (*Sender, *Receiver) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	ch := make(chan Envelope, capacity)
	done := make(chan struct{})

	sender := &Sender{ch: ch, done: done}
	receiver := &Receiver{
		ch:        ch,
		done:      done,
		closeOnce: sync.Once{},
		logger:    log.Named("command"),
	}

	return sender, receiver
}

// Sender is the cloneable sending half held by nodes.
type Sender struct {
	ch   chan<- Envelope
	done <-chan struct{}
}

// Send queues env, waiting while the channel is full.
func (s *Sender) Send(ctx context.Context, env Envelope) error {
	select {
	case <-s.done:
		return ErrOwnerGone
	default:
	}

	select {
	case s.ch <- env:
		return nil
	case <-s.done:
		return ErrOwnerGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the receiving side stopped.
func (s *Sender) Done() <-chan struct{} {
	return s.done
}

// Request sends a command and waits for its answer. A failed response is
// returned as an ErrCodeCommandFailed error wrapping the original cause.
func Request[P any, R any](ctx context.Context, sender *Sender, kind string, payload P) (R, error) {
	var zero R

	cmd := New[P, R](kind, payload)
	if err := sender.Send(ctx, cmd); err != nil {
		return zero, err
	}

	resp, err := cmd.Await(ctx, sender.Done())
	if err != nil {
		return zero, err
	}

	if !resp.Success {
		var cause error = resp.Err
		if resp.Err == nil {
			cause = errors.New(errors.ErrCodeUnknown, "no error detail")
		}

		return zero, errors.Wrapf(errors.ErrCodeCommandFailed, cause, "command %s failed", kind)
	}

	if resp.Payload.IsNone() {
		return zero, nil
	}

	return resp.Payload.Unwrap(), nil
}

// Receiver is the single consuming half owned by the strategy.
type Receiver struct {
	ch        <-chan Envelope
	done      chan struct{}
	closeOnce sync.Once
	logger    *logger.Logger
}

// Serve processes commands in arrival order until ctx ends. On exit it drops
// every queued command so that waiting callers see ErrOwnerGone.
func (r *Receiver) Serve(ctx context.Context, handler Handler) {
	defer r.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.ch:
			if ctx.Err() != nil {
				env.Drop()

				return
			}

			r.dispatch(ctx, env, handler)
		}
	}
}

func (r *Receiver) dispatch(ctx context.Context, env Envelope, handler Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("command handler panicked",
				zap.String("kind", env.Kind()),
				zap.Any("panic", rec),
			)
			env.Fail(errors.Newf(errors.ErrCodeInternal, "command %s handler panicked: %v", env.Kind(), rec))
		}

		if !env.Responded() {
			env.Fail(errors.Newf(errors.ErrCodeCommandUnhandled, "command %s was not answered", env.Kind()))
		}
	}()

	handler(ctx, env)
}

func (r *Receiver) shutdown() {
	r.closeOnce.Do(func() {
		close(r.done)
	})

	dropped := 0

	for {
		select {
		case env := <-r.ch:
			env.Drop()
			dropped++
		default:
			if dropped > 0 {
				r.logger.Debug("dropped queued commands on shutdown", zap.Int("count", dropped))
			}

			return
		}
	}
}

// Router dispatches commands by kind.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		mu:       sync.RWMutex{},
		handlers: make(map[string]Handler),
	}
}

// Handle registers a typed handler for kind. The handler's result becomes the
// command's response.
func Handle[P any, R any](router *Router, kind string, fn func(ctx context.Context, payload P) (R, error)) {
	router.mu.Lock()
	defer router.mu.Unlock()

	router.handlers[kind] = func(ctx context.Context, env Envelope) {
		cmd, ok := env.(*Command[P, R])
		if !ok {
			env.Fail(errors.Newf(errors.ErrCodeCommandTypeMismatch,
				"command %s carries %T, handler expects %T", kind, env, cmd))

			return
		}

		result, err := fn(ctx, cmd.Payload)
		if err != nil {
			cmd.Fail(err)

			return
		}

		_ = cmd.Succeed(result)
	}
}

// Kinds lists registered command kinds.
func (router *Router) Kinds() []string {
	router.mu.RLock()
	defer router.mu.RUnlock()

	kinds := make([]string, 0, len(router.handlers))
	for kind := range router.handlers {
		kinds = append(kinds, kind)
	}

	return kinds
}

// Serve is a Handler that routes env to its registered handler.
func (router *Router) Serve(ctx context.Context, env Envelope) {
	router.mu.RLock()
	handler, ok := router.handlers[env.Kind()]
	router.mu.RUnlock()

	if !ok {
		env.Fail(errors.New(errors.ErrCodeCommandUnhandled, fmt.Sprintf("no handler for command %s", env.Kind())))

		return
	}

	handler(ctx, env)
}
