// Package operator decouples operator command channels (HTTP, CLI, bots)
// from the safety enforcer: commands land in a bounded queue and a single
// dispatcher goroutine applies them in arrival order.
package operator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"tradegate/internal/domain"
	"tradegate/internal/safety"
)

// Kind names an operator command.
type Kind string

const (
	KindPause    Kind = "pause"
	KindResume   Kind = "resume"
	KindOverride Kind = "override"
	KindStatus   Kind = "status"
)

// DefaultQueueSize bounds the command queue.
const DefaultQueueSize = 32

var (
	// ErrQueueFull is returned when the command queue is saturated.
	ErrQueueFull = errors.New("operator command queue full")

	// ErrUnknownCommand is returned for a kind outside the command set.
	ErrUnknownCommand = errors.New("unknown operator command")
)

// command carries one queued request and its reply channel.
type command struct {
	kind   Kind
	reason string
	reply  chan reply
}

type reply struct {
	status domain.SafetyStatus
	err    error
}

// Dispatcher serializes operator commands onto the enforcer.
type Dispatcher struct {
	enforcer *safety.Enforcer
	logger   *log.Logger
	queue    chan *command
}

// Options for creating a Dispatcher.
type Options struct {
	Enforcer  *safety.Enforcer
	Logger    *log.Logger
	QueueSize int
}

// New creates a Dispatcher. Run must be started for commands to be served.
func New(opts Options) (*Dispatcher, error) {
	if opts.Enforcer == nil {
		return nil, errors.New("enforcer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{
		enforcer: opts.Enforcer,
		logger:   logger,
		queue:    make(chan *command, size),
	}, nil
}

// Submit enqueues one command and waits for its result. The returned status
// is the safety snapshot after the command was applied.
func (d *Dispatcher) Submit(ctx context.Context, kind Kind, reason string) (domain.SafetyStatus, error) {
	cmd := &command{kind: kind, reason: reason, reply: make(chan reply, 1)}

	select {
	case d.queue <- cmd:
	default:
		return domain.SafetyStatus{}, ErrQueueFull
	}

	select {
	case r := <-cmd.reply:
		return r.status, r.err
	case <-ctx.Done():
		return domain.SafetyStatus{}, ctx.Err()
	}
}

// Run consumes the queue until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-d.queue:
			d.handle(cmd)
		}
	}
}

// handle applies one command and replies with the resulting snapshot.
func (d *Dispatcher) handle(cmd *command) {
	var err error
	switch cmd.kind {
	case KindPause:
		d.enforcer.Pause(cmd.reason)
	case KindResume:
		err = d.enforcer.Resume()
	case KindOverride:
		err = d.enforcer.Override(cmd.reason)
	case KindStatus:
		// Snapshot below is the whole answer.
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.kind)
	}

	if err != nil {
		d.logger.Printf("operator command %s failed: %v", cmd.kind, err)
	} else if cmd.kind != KindStatus {
		d.logger.Printf("operator command %s applied (reason: %s)", cmd.kind, cmd.reason)
	}

	cmd.reply <- reply{status: d.enforcer.Status(), err: err}
}
