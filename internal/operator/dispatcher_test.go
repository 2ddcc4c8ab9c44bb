package operator

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"tradegate/internal/domain"
	"tradegate/internal/safety"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *safety.Enforcer, context.CancelFunc) {
	t.Helper()
	discard := log.New(io.Discard, "", 0)

	enforcer, err := safety.New(safety.Options{Config: safety.DefaultConfig(), Logger: discard})
	if err != nil {
		t.Fatalf("safety.New failed: %v", err)
	}

	d, err := New(Options{Enforcer: enforcer, Logger: discard})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	return d, enforcer, cancel
}

func TestDispatcher_PauseResumeRoundTrip(t *testing.T) {
	d, _, cancel := newTestDispatcher(t)
	defer cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer ctxCancel()

	status, err := d.Submit(ctx, KindPause, "maintenance")
	if err != nil {
		t.Fatalf("Submit(pause) failed: %v", err)
	}
	if status.Mode != domain.ModePaused {
		t.Fatalf("Mode after pause = %s, want PAUSED", status.Mode)
	}

	status, err = d.Submit(ctx, KindResume, "")
	if err != nil {
		t.Fatalf("Submit(resume) failed: %v", err)
	}
	if status.Mode != domain.ModeActive {
		t.Fatalf("Mode after resume = %s, want ACTIVE", status.Mode)
	}
}

func TestDispatcher_OverrideFromPaused(t *testing.T) {
	d, _, cancel := newTestDispatcher(t)
	defer cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer ctxCancel()

	// Override outside PAUSED is refused, and the error comes back to the
	// submitter.
	if _, err := d.Submit(ctx, KindOverride, "too eager"); !errors.Is(err, safety.ErrNotPaused) {
		t.Fatalf("Submit(override) error = %v, want ErrNotPaused", err)
	}

	if _, err := d.Submit(ctx, KindPause, "trigger review"); err != nil {
		t.Fatalf("Submit(pause) failed: %v", err)
	}
	status, err := d.Submit(ctx, KindOverride, "reviewed, proceeding")
	if err != nil {
		t.Fatalf("Submit(override) failed: %v", err)
	}
	if status.Mode != domain.ModeOverridden {
		t.Fatalf("Mode after override = %s, want OVERRIDDEN", status.Mode)
	}
	if status.ViolationsCount == 0 {
		t.Error("Override must record a violation")
	}
}

func TestDispatcher_StatusIsReadOnly(t *testing.T) {
	d, enforcer, cancel := newTestDispatcher(t)
	defer cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer ctxCancel()

	before := enforcer.Status()
	status, err := d.Submit(ctx, KindStatus, "")
	if err != nil {
		t.Fatalf("Submit(status) failed: %v", err)
	}
	if status.Mode != before.Mode || status.ViolationsCount != before.ViolationsCount {
		t.Error("Status command must not change safety state")
	}
}

func TestDispatcher_QueueIsBounded(t *testing.T) {
	discard := log.New(io.Discard, "", 0)
	enforcer, err := safety.New(safety.Options{Config: safety.DefaultConfig(), Logger: discard})
	if err != nil {
		t.Fatalf("safety.New failed: %v", err)
	}

	// No Run loop: the queue fills up.
	d, err := New(Options{Enforcer: enforcer, Logger: discard, QueueSize: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	go d.Submit(ctx, KindStatus, "")
	time.Sleep(50 * time.Millisecond)

	if _, err := d.Submit(ctx, KindStatus, ""); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Submit on full queue error = %v, want ErrQueueFull", err)
	}
}

func TestDispatcher_RejectsUnknownCommand(t *testing.T) {
	d, _, cancel := newTestDispatcher(t)
	defer cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer ctxCancel()

	if _, err := d.Submit(ctx, Kind("reboot"), ""); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Submit(reboot) error = %v, want ErrUnknownCommand", err)
	}
}
