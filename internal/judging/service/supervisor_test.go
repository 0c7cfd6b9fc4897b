package service

import (
	"context"
	"testing"
	"time"

	"judgeflow/internal/judging/model"
)

func TestSweepSupervisor(t *testing.T) {
	c, _ := newMiniCache(t)
	h := newHarness(t, nil)
	submit := h.create(t, model.ModeSubmit)
	run := h.create(t, model.ModeRun)
	fresh := h.create(t, model.ModeSubmit)

	created := h.store.submissions[submit.ID].CreatedAt
	age := func(id string, d time.Duration) {
		s := h.store.submissions[id]
		s.CreatedAt = created.Add(-d)
		h.store.submissions[id] = s
	}
	age(submit.ID, 11*time.Minute)
	age(run.ID, time.Minute)

	sup, err := NewSweepSupervisor(SupervisorConfig{
		Submissions: h.store,
		Results:     h.store,
		Cache:       c,
		Publisher:   h.publisher,
		Policies:    model.DefaultPolicies(),
		Grace:       5 * time.Second,
		Now:         func() time.Time { return created },
	})
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}

	stats, err := sup.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.TimedOut != 1 || stats.Deleted != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if h.store.submissions[submit.ID].Status != model.StatusTimeout {
		t.Fatalf("stale submission should time out")
	}
	if _, ok := h.store.submissions[run.ID]; ok {
		t.Fatalf("stale run should be deleted")
	}
	if h.store.submissions[fresh.ID].Status != model.StatusProcessing {
		t.Fatalf("fresh submission must be left alone")
	}
	if h.publisher.count() != 1 || h.publisher.events[0].StatusID != model.StatusTimeout {
		t.Fatalf("expected one timeout event, got %+v", h.publisher.events)
	}

	stats, err = sup.Sweep(context.Background())
	if err != nil || stats.TimedOut != 0 || stats.Deleted != 0 {
		t.Fatalf("second sweep should be a no-op: %+v %v", stats, err)
	}
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	c, _ := newMiniCache(t)
	h := newHarness(t, nil)
	sup, err := NewSweepSupervisor(SupervisorConfig{Submissions: h.store, Cache: c})
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	ok, err := c.TryLock(context.Background(), defaultSweepLockKey, time.Minute)
	if err != nil || !ok {
		t.Fatalf("take lock: %v", err)
	}
	stats, err := sup.Sweep(context.Background())
	if err != nil || stats != (SweepStats{}) {
		t.Fatalf("expected skipped sweep, got %+v %v", stats, err)
	}
}

func TestNoopSupervisorReturns(t *testing.T) {
	if err := (NoopSupervisor{}).Run(context.Background()); err != nil {
		t.Fatalf("noop: %v", err)
	}
	if _, err := NewSweepSupervisor(SupervisorConfig{}); err == nil {
		t.Fatalf("expected validation error")
	}
}
