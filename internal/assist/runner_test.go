package assist

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/inference"
)

// stubDetector returns one detection after an optional delay, honouring ctx.
type stubDetector struct {
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (s *stubDetector) Detect(ctx context.Context, req inference.Request) ([]inference.Detection, error) {
	s.calls.Add(1)
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return []inference.Detection{{
		Class: "car",
		Score: 0.9,
		Box:   geometry.RectFromPoints(geometry.Pt(1, 1), geometry.Pt(5, 5)),
	}}, nil
}

var testImage = annotation.ImageRef{Path: "a.png", Width: 10, Height: 10}

func testRequest() inference.Request {
	return inference.Request{Image: image.NewGray(image.Rect(0, 0, 10, 10)), Model: "stub"}
}

func waitOutcome(t *testing.T, r *Runner) Outcome {
	t.Helper()
	select {
	case out := <-r.Results():
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}
	return Outcome{}
}

func TestRunner_SubmitAndClaim(t *testing.T) {
	r := NewRunner(&stubDetector{}, time.Second, 4)
	defer r.Close()

	id, err := r.Submit(testRequest(), testImage)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	out := waitOutcome(t, r)
	if out.Task.ID != id || out.Err != nil || len(out.Detections) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Task.Image != testImage {
		t.Errorf("outcome image = %+v", out.Task.Image)
	}

	if info, _ := r.Status(id); info.Status != StatusDone || info.Detections != 1 {
		t.Errorf("status = %+v", info)
	}
	if err := r.Claim(id); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := r.Claim(id); err == nil {
		t.Error("second Claim should fail")
	}
}

func TestRunner_CancelledOutcomeIsRefused(t *testing.T) {
	r := NewRunner(&stubDetector{delay: time.Hour}, time.Minute, 4)
	defer r.Close()

	id, _ := r.Submit(testRequest(), testImage)
	if !r.Cancel(id) {
		t.Fatal("Cancel returned false for a running task")
	}
	if r.Cancel(id) {
		t.Error("second Cancel should return false")
	}

	out := waitOutcome(t, r)
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("outcome error = %v, want context.Canceled", out.Err)
	}
	if err := r.Claim(id); err == nil {
		t.Error("Claim should refuse a cancelled task")
	}
	if info, _ := r.Status(id); info.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", info.Status)
	}
}

func TestRunner_Timeout(t *testing.T) {
	r := NewRunner(&stubDetector{delay: time.Hour}, 20*time.Millisecond, 1)
	defer r.Close()

	id, _ := r.Submit(testRequest(), testImage)
	out := waitOutcome(t, r)
	if !errors.Is(out.Err, context.DeadlineExceeded) {
		t.Errorf("outcome error = %v, want deadline exceeded", out.Err)
	}
	info, _ := r.Status(id)
	if info.Status != StatusFailed || info.Error == "" {
		t.Errorf("status = %+v", info)
	}
	// A failed outcome is still claimed so the editing thread can report it.
	if err := r.Claim(id); err != nil {
		t.Errorf("Claim: %v", err)
	}
}

func TestRunner_Concurrent(t *testing.T) {
	d := &stubDetector{delay: 10 * time.Millisecond}
	r := NewRunner(d, time.Second, 8)
	defer r.Close()

	ids := map[string]bool{}
	for i := 0; i < 5; i++ {
		id, err := r.Submit(testRequest(), testImage)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids[id] = true
	}
	if len(ids) != 5 {
		t.Fatalf("task ids not unique: %v", ids)
	}
	for i := 0; i < 5; i++ {
		out := waitOutcome(t, r)
		if !ids[out.Task.ID] {
			t.Errorf("unexpected task %s", out.Task.ID)
		}
	}
	if d.calls.Load() != 5 || r.Running() != 0 {
		t.Errorf("calls = %d running = %d", d.calls.Load(), r.Running())
	}
	if got := len(r.List()); got != 5 {
		t.Errorf("List has %d tasks, want 5", got)
	}
}

func TestRunner_Close(t *testing.T) {
	r := NewRunner(&stubDetector{delay: time.Hour}, time.Minute, 1)
	id, _ := r.Submit(testRequest(), testImage)

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	if _, err := r.Submit(testRequest(), testImage); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close: %v, want ErrClosed", err)
	}
	if info, _ := r.Status(id); info.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", info.Status)
	}
}

func TestRunner_CancelAll(t *testing.T) {
	r := NewRunner(&stubDetector{delay: time.Hour}, time.Minute, 4)
	defer r.Close()
	r.Submit(testRequest(), testImage)
	r.Submit(testRequest(), testImage)
	if n := r.CancelAll(); n != 2 {
		t.Errorf("CancelAll = %d, want 2", n)
	}
}

func waitStatus(t *testing.T, r *Runner, id string, want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if info, _ := r.Status(id); info.Status == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %s never reached %s", id, want)
}

func TestRunner_CancelFinishedUnclaimed(t *testing.T) {
	r := NewRunner(&stubDetector{}, time.Second, 4)
	defer r.Close()

	id, _ := r.Submit(testRequest(), testImage)
	waitStatus(t, r, id, StatusDone)

	// Finished but not yet claimed by the editing thread.
	if !r.Cancel(id) {
		t.Fatal("Cancel should dismiss a finished, unclaimed task")
	}
	out := waitOutcome(t, r)
	if out.Err != nil || len(out.Detections) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if err := r.Claim(id); err == nil {
		t.Error("Claim should refuse a dismissed task")
	}

	// A claimed task can no longer be dismissed.
	id2, _ := r.Submit(testRequest(), testImage)
	waitOutcome(t, r)
	if err := r.Claim(id2); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if r.Cancel(id2) || r.CancelAll() != 0 {
		t.Error("claimed tasks should not be cancellable")
	}
}

func TestRunner_HistoryLimit(t *testing.T) {
	r := NewRunner(&stubDetector{}, time.Second, 4)
	defer r.Close()
	r.history = 3

	var ids []string
	for i := 0; i < 6; i++ {
		id, _ := r.Submit(testRequest(), testImage)
		out := waitOutcome(t, r)
		if err := r.Claim(out.Task.ID); err != nil {
			t.Fatalf("Claim: %v", err)
		}
		ids = append(ids, id)
	}
	if got := len(r.List()); got > 3 {
		t.Errorf("List has %d tasks, want at most 3", got)
	}
	if _, ok := r.Status(ids[0]); ok {
		t.Error("oldest claimed task should have been forgotten")
	}
	if _, ok := r.Status(ids[5]); !ok {
		t.Error("newest task should be kept")
	}

	// Unsettled tasks survive pruning.
	slow := NewRunner(&stubDetector{delay: time.Hour}, time.Minute, 8)
	defer slow.Close()
	slow.history = 1
	for i := 0; i < 3; i++ {
		slow.Submit(testRequest(), testImage)
	}
	if slow.Running() != 3 {
		t.Errorf("running = %d, want 3", slow.Running())
	}
}
