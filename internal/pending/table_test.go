package pending

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zelara-ai/app-mobile/internal/proto"
)

func TestResolveCompletesWaiter(t *testing.T) {
	tbl := New()
	call, err := tbl.Register("t-1", time.Minute)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !tbl.Resolve("t-1", proto.TaskResponse{TaskID: "t-1", Success: true}) {
		t.Fatalf("resolve reported no entry")
	}
	out := <-call.Done()
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Resp.TaskID != "t-1" || !out.Resp.Success {
		t.Fatalf("unexpected response: %+v", out.Resp)
	}
	if tbl.Len() != 0 {
		t.Fatalf("entry not removed after resolve")
	}
}

func TestDuplicateRegisterFails(t *testing.T) {
	tbl := New()
	if _, err := tbl.Register("t-1", time.Minute); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := tbl.Register("t-1", time.Minute); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestResolveUnknownIDIsNoOp(t *testing.T) {
	tbl := New()
	call, err := tbl.Register("t-1", time.Minute)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if tbl.Resolve("other", proto.TaskResponse{TaskID: "other"}) {
		t.Fatalf("resolve of unknown id should be a no-op")
	}
	select {
	case <-call.Done():
		t.Fatalf("waiter completed by foreign response")
	default:
	}
	if tbl.Len() != 1 {
		t.Fatalf("live entry disturbed by foreign response")
	}
}

func TestExpiryCompletesWithErrExpired(t *testing.T) {
	tbl := New()
	call, err := tbl.Register("t-1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	out := <-call.Done()
	if !errors.Is(out.Err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", out.Err)
	}
	if tbl.Len() != 0 {
		t.Fatalf("entry not removed after expiry")
	}
	// A late response after expiry must be a no-op.
	if tbl.Resolve("t-1", proto.TaskResponse{TaskID: "t-1"}) {
		t.Fatalf("late resolve should be a no-op")
	}
}

func TestResolveExpireRaceCompletesOnce(t *testing.T) {
	tbl := New()
	saved := timerAfterFunc
	var fire func()
	timerAfterFunc = func(d time.Duration, f func()) *time.Timer {
		fire = f
		return time.NewTimer(time.Hour)
	}
	t.Cleanup(func() { timerAfterFunc = saved })

	call, err := tbl.Register("t-1", time.Minute)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tbl.Resolve("t-1", proto.TaskResponse{TaskID: "t-1", Success: true})
	}()
	go func() {
		defer wg.Done()
		fire()
	}()
	wg.Wait()

	out := <-call.Done()
	_ = out
	select {
	case extra := <-call.Done():
		t.Fatalf("call completed twice: %+v", extra)
	default:
	}
}

func TestFailAllDrainsEveryWaiter(t *testing.T) {
	tbl := New()
	closed := errors.New("connection closed")
	calls := make([]*Call, 0, 3)
	for _, id := range []string{"t-1", "t-2", "t-3"} {
		call, err := tbl.Register(id, time.Minute)
		if err != nil {
			t.Fatalf("register %s failed: %v", id, err)
		}
		calls = append(calls, call)
	}
	tbl.FailAll(closed)
	for _, call := range calls {
		out := <-call.Done()
		if !errors.Is(out.Err, closed) {
			t.Fatalf("expected closed error for %s, got %v", call.ID(), out.Err)
		}
	}
	if tbl.Len() != 0 {
		t.Fatalf("entries left after FailAll")
	}
}

func TestOutOfOrderResolution(t *testing.T) {
	tbl := New()
	first, err := tbl.Register("t-1", time.Minute)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	second, err := tbl.Register("t-2", time.Minute)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	tbl.Resolve("t-2", proto.TaskResponse{TaskID: "t-2", Success: true})
	tbl.Resolve("t-1", proto.TaskResponse{TaskID: "t-1", Success: true})
	if out := <-second.Done(); out.Resp.TaskID != "t-2" {
		t.Fatalf("wrong response for t-2: %+v", out.Resp)
	}
	if out := <-first.Done(); out.Resp.TaskID != "t-1" {
		t.Fatalf("wrong response for t-1: %+v", out.Resp)
	}
}
