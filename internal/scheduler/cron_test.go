package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-pagecms/internal/commands"
)

type cleanupRecorder struct {
	calls []commands.CleanupSnapshotsCommand
}

func (r *cleanupRecorder) Execute(_ context.Context, msg commands.CleanupSnapshotsCommand) error {
	r.calls = append(r.calls, msg)
	return nil
}

func TestAddRejectsInvalidSchedule(t *testing.T) {
	c := New()
	err := c.Add("broken", "every tuesday", func(context.Context) error { return nil })
	if err == nil {
		t.Fatalf("expected invalid schedule error")
	}
}

func TestAddRejectsDuplicates(t *testing.T) {
	c := New()
	job := func(context.Context) error { return nil }
	if err := c.Add("a", "@daily", job); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add("a", "@hourly", job); !errors.Is(err, ErrJobDuplicate) {
		t.Fatalf("expected ErrJobDuplicate, got %v", err)
	}
}

func TestRegisterCleanupDispatchesKeep(t *testing.T) {
	c := New()
	recorder := &cleanupRecorder{}
	if err := RegisterCleanup(c, "0 3 * * *", 4, recorder); err != nil {
		t.Fatalf("register: %v", err)
	}
	jobs := c.Jobs()
	if len(jobs) != 1 || jobs[0].Name != JobSnapshotsCleanup || jobs[0].Schedule != "0 3 * * *" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	if err := c.Trigger(JobSnapshotsCleanup); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if len(recorder.calls) != 1 || recorder.calls[0].Keep != 4 {
		t.Fatalf("expected cleanup with keep=4, got %+v", recorder.calls)
	}
}

func TestRegisterCleanupSkipsEmptySchedule(t *testing.T) {
	c := New()
	if err := RegisterCleanup(c, "", 4, &cleanupRecorder{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(c.Jobs()) != 0 {
		t.Fatalf("expected no jobs")
	}
}

func TestRemoveAndTriggerUnknown(t *testing.T) {
	c := New()
	if err := c.Add("a", "@daily", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Remove("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.Trigger("a"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStartStop(t *testing.T) {
	c := New(WithJobTimeout(time.Second))
	c.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
