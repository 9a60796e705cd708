// Package command implements the typed request/response exchange between
// nodes and the strategy that owns them.
//
// A node sends a Command over a bounded channel and waits on the command's
// one-shot reply slot. The strategy answers every command exactly once; the
// only way a caller sees no answer is when the owner went away.
package command

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// ErrAlreadyResponded is returned when a command is answered twice.
var ErrAlreadyResponded = errors.New(errors.ErrCodeAlreadyResponded, "command already responded")

// ErrOwnerGone is returned to a caller whose command will never be answered.
var ErrOwnerGone = errors.New(errors.ErrCodeOwnerGone, "command owner is gone")

// ErrorInfo is the failure half of a Response.
type ErrorInfo struct {
	Code    errors.ErrorCode
	Message string
	Cause   error
}

// NewErrorInfo captures err for transport back to the caller.
func NewErrorInfo(err error) *ErrorInfo {
	return &ErrorInfo{
		Code:    errors.GetCode(err),
		Message: err.Error(),
		Cause:   err,
	}
}

func (e *ErrorInfo) Error() string {
	return e.Message
}

func (e *ErrorInfo) Unwrap() error {
	return e.Cause
}

// Response is the answer to a command.
type Response[R any] struct {
	Success bool
	Err     *ErrorInfo
	Payload optional.Option[R]
}

// Success builds a successful response.
func Success[R any](payload R) Response[R] {
	return Response[R]{Success: true, Err: nil, Payload: optional.Some(payload)}
}

// Failure builds a failed response.
func Failure[R any](err error) Response[R] {
	return Response[R]{Success: false, Err: NewErrorInfo(err), Payload: optional.None[R]()}
}

// Envelope is the untyped view the processing loop has of a command.
type Envelope interface {
	Kind() string
	IssuedAt() time.Time
	// Fail answers the command with err unless it was already answered.
	Fail(err error)
	// Drop releases the command without an answer; the caller sees ErrOwnerGone.
	Drop()
	Responded() bool
}

// Command is a request carrying payload P and expecting a reply of type R.
type Command[P any, R any] struct {
	kind     string
	Payload  P
	issuedAt time.Time

	once      sync.Once
	responded atomic.Bool
	reply     chan Response[R]
	gone      chan struct{}
}

// New creates a command with a fresh one-shot reply slot.
func New[P any, R any](kind string, payload P) *Command[P, R] {
	//nolint:exhaustruct // once and responded are ready at zero value
	return &Command[P, R]{
		kind:     kind,
		Payload:  payload,
		issuedAt: time.Now(),
		reply:    make(chan Response[R], 1),
		gone:     make(chan struct{}),
	}
}

func (c *Command[P, R]) Kind() string {
	return c.kind
}

func (c *Command[P, R]) IssuedAt() time.Time {
	return c.issuedAt
}

// Respond delivers resp. Only the first answer is delivered; later calls
// return ErrAlreadyResponded.
func (c *Command[P, R]) Respond(resp Response[R]) error {
	delivered := false

	c.once.Do(func() {
		delivered = true

		c.responded.Store(true)
		c.reply <- resp
	})

	if !delivered {
		return ErrAlreadyResponded
	}

	return nil
}

// Succeed answers with payload.
func (c *Command[P, R]) Succeed(payload R) error {
	return c.Respond(Success(payload))
}

// Fail answers with err. It is a no-op on an answered command.
func (c *Command[P, R]) Fail(err error) {
	_ = c.Respond(Failure[R](err))
}

func (c *Command[P, R]) Drop() {
	c.once.Do(func() {
		close(c.gone)
	})
}

func (c *Command[P, R]) Responded() bool {
	return c.responded.Load()
}

// Await blocks until the command is answered, dropped, ownerDone is closed or
// ctx ends. It has no timeout of its own.
func (c *Command[P, R]) Await(ctx context.Context, ownerDone <-chan struct{}) (Response[R], error) {
	select {
	case resp := <-c.reply:
		return resp, nil
	case <-c.gone:
		return Response[R]{}, ErrOwnerGone
	case <-ctx.Done():
		return Response[R]{}, ctx.Err()
	case <-ownerDone:
		// the owner may have answered right before shutting down
		select {
		case resp := <-c.reply:
			return resp, nil
		default:
			return Response[R]{}, ErrOwnerGone
		}
	}
}
