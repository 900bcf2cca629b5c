package cron

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.released++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("job context has no deadline")
	}
	return t.err
}

func newTestCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestRunOnceRunsAllJobsAndCombinesErrors(t *testing.T) {
	ok := &testJob{name: "sweep"}
	failing := &testJob{name: "retention", err: errors.New("boom")}
	lock := &fakeLock{}
	service := newTestCronService(t, lock, failing, ok)

	err := service.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "retention: boom") {
		t.Fatalf("expected combined job error, got %v", err)
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected each job to run once, got ok=%d failing=%d", ok.runs, failing.runs)
	}
	if lock.released != 1 || lock.held {
		t.Fatalf("expected lock released after cycle")
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "sweep"}
	service := newTestCronService(t, &fakeLock{held: true}, job)

	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs while another worker holds the lock")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "sweep"}
	service := newTestCronService(t, &fakeLock{}, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestNewServiceRequiresLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected missing lock to error")
	}
}
