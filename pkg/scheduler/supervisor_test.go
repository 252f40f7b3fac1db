package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestSupervisorStartStop(t *testing.T) {
	s := newTestStore(t)
	pool := &fakePool{}

	input := NewInputMonitor(s, pool, InputMonitorConfig{PollInterval: time.Hour}, nil)
	output := NewOutputMonitor(s, nil, pool, DefaultOutputMonitorConfig(), nil)
	sup := NewSupervisor(s, input, output, pool, SupervisorConfig{HealthCheckInterval: time.Hour}, nil)

	ctx := context.Background()
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !sup.Status().Running {
		t.Fatal("expected supervisor to report running after start")
	}

	if err := sup.Start(ctx); err == nil {
		t.Fatal("expected second start to be rejected")
	}

	sup.Stop()
	if sup.Status().Running {
		t.Fatal("expected supervisor to report stopped after stop")
	}
}
