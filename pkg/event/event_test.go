package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vnykmshr/gopace/internal/testutil"
	gperrors "github.com/vnykmshr/gopace/pkg/common/errors"
)

func TestNewEvent(t *testing.T) {
	ev := New(Options{
		EndpointURL:     "https://api.example.com/v1/items",
		Method:          "POST",
		ConsumptionCost: 3,
		Metadata:        map[string]any{"tenant": "acme"},
	})

	testutil.AssertEqual(t, StatusPending, ev.Status())
	testutil.AssertEqual(t, "https://api.example.com/v1/items", ev.EndpointURL())
	testutil.AssertEqual(t, "POST", ev.Method())
	testutil.AssertEqual(t, 3.0, ev.ConsumptionCost())

	if ev.RequestID() == "" {
		t.Fatal("expected a non-empty request ID")
	}
	if ev.CreatedAt().IsZero() {
		t.Fatal("expected createdAt to be set")
	}
	if got := ev.Metadata()["tenant"]; got != "acme" {
		t.Fatalf("metadata = %v, want acme", got)
	}
}

func TestUniqueRequestIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New(Options{}).RequestID()
		if seen[id] {
			t.Fatalf("duplicate request ID %s", id)
		}
		seen[id] = true
	}
}

func TestLifecycleTransitions(t *testing.T) {
	ev := New(Options{})

	for _, next := range []Status{StatusQueued, StatusProcessing, StatusCalling} {
		testutil.AssertNoError(t, ev.UpdateStatus(next))
		testutil.AssertEqual(t, next, ev.Status())
	}

	testutil.AssertNoError(t, ev.SetResult(200, map[string]string{"X-Request-Id": "abc"}, "ok"))
	testutil.AssertEqual(t, StatusCompleted, ev.Status())

	code, headers, body, ok := ev.Result()
	if !ok {
		t.Fatal("expected a recorded result")
	}
	testutil.AssertEqual(t, 200, code)
	testutil.AssertEqual(t, "abc", headers["X-Request-Id"])
	testutil.AssertEqual(t, "ok", body.(string))
}

func TestBackwardTransitionRejected(t *testing.T) {
	ev := New(Options{})
	testutil.AssertNoError(t, ev.UpdateStatus(StatusQueued))
	testutil.AssertNoError(t, ev.UpdateStatus(StatusProcessing))

	err := ev.UpdateStatus(StatusQueued)
	testutil.AssertError(t, err)
	if !errors.Is(err, gperrors.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	testutil.AssertEqual(t, StatusProcessing, ev.Status())
}

func TestSameStatusIsNoOp(t *testing.T) {
	ev := New(Options{})
	testutil.AssertNoError(t, ev.UpdateStatus(StatusQueued))
	logs := len(ev.Logs())

	testutil.AssertNoError(t, ev.UpdateStatus(StatusQueued))
	testutil.AssertEqual(t, logs, len(ev.Logs()))
}

func TestTerminalIsImmutable(t *testing.T) {
	ev := New(Options{})
	testutil.AssertNoError(t, ev.SetError(errors.New("boom")))
	testutil.AssertEqual(t, StatusFailed, ev.Status())

	for _, err := range []error{
		ev.UpdateStatus(StatusCalling),
		ev.SetResult(200, nil, nil),
		ev.SetError(errors.New("again")),
		ev.Cancel(),
	} {
		testutil.AssertError(t, err)
		if !errors.Is(err, gperrors.ErrEventTerminal) {
			t.Fatalf("expected ErrEventTerminal, got %v", err)
		}
	}
	testutil.AssertEqual(t, "boom", ev.ErrorMessage())
}

func TestSetErrorCapturesChain(t *testing.T) {
	inner := errors.New("connection refused")
	err := fmt.Errorf("call api: %w", inner)

	ev := New(Options{})
	testutil.AssertNoError(t, ev.SetError(err))

	testutil.AssertEqual(t, "*fmt.wrapError", ev.ErrorType())
	testutil.AssertEqual(t, "call api: connection refused", ev.ErrorMessage())
	if !strings.Contains(ev.ErrorDetails(), "caused by: connection refused") {
		t.Fatalf("details = %q, want unwrap chain", ev.ErrorDetails())
	}

	_, _, _, ok := ev.Result()
	if ok {
		t.Fatal("failed event must not expose a result")
	}
}

func TestCancelFromAnyNonTerminalState(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusQueued, StatusProcessing, StatusCalling} {
		ev := New(Options{})
		if from != StatusPending {
			testutil.AssertNoError(t, ev.UpdateStatus(from))
		}
		testutil.AssertNoError(t, ev.Cancel())
		testutil.AssertEqual(t, StatusCancelled, ev.Status())
	}
}

func TestStatusChangeLogs(t *testing.T) {
	ev := New(Options{})
	testutil.AssertNoError(t, ev.UpdateStatus(StatusQueued))
	testutil.AssertNoError(t, ev.UpdateStatus(StatusProcessing))
	testutil.AssertNoError(t, ev.SetResult(201, nil, nil))

	logs := ev.Logs()
	want := []string{
		"Status changed from PENDING to QUEUED",
		"Status changed from QUEUED to PROCESSING",
		"Call completed with status code: 201",
		"Status changed from PROCESSING to COMPLETED",
	}
	if len(logs) != len(want) {
		t.Fatalf("got %d log lines, want %d: %v", len(logs), len(want), logs)
	}
	for i, w := range want {
		if !strings.HasSuffix(logs[i], w) {
			t.Fatalf("log[%d] = %q, want suffix %q", i, logs[i], w)
		}
	}
}

func TestFailureLogLine(t *testing.T) {
	ev := New(Options{})
	testutil.AssertNoError(t, ev.SetError(errors.New("timeout")))

	logs := ev.Logs()
	found := false
	for _, line := range logs {
		if strings.HasSuffix(line, "Call failed: *errors.errorString - timeout") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected failure log line, got %v", logs)
	}
}

func TestLogsReturnsCopy(t *testing.T) {
	ev := New(Options{})
	ev.AddLog("first")

	logs := ev.Logs()
	logs[0] = "mutated"

	if got := ev.Logs()[0]; !strings.HasSuffix(got, "first") {
		t.Fatalf("internal log mutated: %q", got)
	}
}

func TestPhaseTimestamps(t *testing.T) {
	ev := New(Options{})
	testutil.AssertNoError(t, ev.UpdateStatus(StatusQueued))
	testutil.AssertNoError(t, ev.UpdateStatus(StatusProcessing))
	testutil.AssertNoError(t, ev.UpdateStatus(StatusCalling))
	testutil.AssertNoError(t, ev.SetResult(200, nil, nil))

	s := ev.Snapshot()
	for name, ts := range map[string]*time.Time{
		"queued_at":             s.QueuedAt,
		"processing_started_at": s.ProcessingStartedAt,
		"call_started_at":       s.CallStartedAt,
		"completed_at":          s.CompletedAt,
	} {
		if ts == nil || ts.IsZero() {
			t.Fatalf("expected %s to be set", name)
		}
	}
	if s.QueuedAt.After(*s.CompletedAt) {
		t.Fatal("timestamps out of order")
	}
}

func TestSnapshotPendingEvent(t *testing.T) {
	ev := New(Options{EndpointURL: "https://api.example.com"})
	s := ev.Snapshot()

	testutil.AssertEqual(t, ev.RequestID(), s.RequestID)
	testutil.AssertEqual(t, StatusPending, s.Status)
	if s.QueuedAt != nil || s.CompletedAt != nil {
		t.Fatal("phase timestamps must be nil before the phase is reached")
	}
}

func TestWait(t *testing.T) {
	ev := New(Options{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = ev.SetResult(200, nil, nil)
	}()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	status, err := ev.Wait(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, StatusCompleted, status)

	select {
	case <-ev.Done():
	default:
		t.Fatal("Done channel should be closed after completion")
	}
}

func TestWaitCancelled(t *testing.T) {
	ev := New(Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ev.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestConcurrentReaders(t *testing.T) {
	ev := New(Options{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			ev.AddLog("tick")
		}
		_ = ev.UpdateStatus(StatusQueued)
		_ = ev.UpdateStatus(StatusProcessing)
		_ = ev.SetResult(200, nil, nil)
	}()

	for i := 0; i < 100; i++ {
		_ = ev.Status()
		_ = ev.Logs()
		_ = ev.Snapshot()
	}
	<-done
	testutil.AssertEqual(t, StatusCompleted, ev.Status())
}
