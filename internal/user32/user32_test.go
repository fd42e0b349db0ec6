package user32

import (
	"testing"
	"time"
)

func TestRegisterClassRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterClass(&WindowClass{Name: "Test"}); err != nil {
		t.Fatalf("first RegisterClass failed: %v", err)
	}
	if err := r.RegisterClass(&WindowClass{Name: "Test"}); err == nil {
		t.Fatalf("duplicate RegisterClass succeeded")
	}
}

func TestCreateWindowRunsCreateMessageSynchronously(t *testing.T) {
	r := NewRegistry()
	var gotCreate bool
	r.RegisterClass(&WindowClass{Name: "Test", Proc: func(w *Window, msg uint32, wparam, lparam uintptr) uintptr {
		if msg == WMCreate {
			gotCreate = true
		}
		return 0
	}})

	w, err := r.CreateWindow(1, "Test", "title", Rect{0, 0, 100, 100})
	if err != nil {
		t.Fatalf("CreateWindow failed: %v", err)
	}
	if !gotCreate {
		t.Fatalf("window procedure never received WM_CREATE")
	}
	if w.Title != "title" {
		t.Fatalf("Title = %q, want title", w.Title)
	}
}

func TestCreateWindowRejectedByProcedure(t *testing.T) {
	r := NewRegistry()
	r.RegisterClass(&WindowClass{Name: "Reject", Proc: func(w *Window, msg uint32, wparam, lparam uintptr) uintptr {
		return 1 // nonzero = reject
	}})
	if _, err := r.CreateWindow(1, "Reject", "", Rect{}); err == nil {
		t.Fatalf("CreateWindow succeeded despite rejecting procedure")
	}
}

func TestCreateWindowUnknownClass(t *testing.T) {
	r := NewRegistry()
	if _, err := r.CreateWindow(1, "DoesNotExist", "", Rect{}); err == nil {
		t.Fatalf("CreateWindow succeeded for an unregistered class")
	}
}

func TestBeginPaintEndPaintInvalidRegion(t *testing.T) {
	r := NewRegistry()
	r.RegisterClass(&WindowClass{Name: "Test"})
	w, _ := r.CreateWindow(1, "Test", "", Rect{0, 0, 100, 100})

	w.InvalidateRect(&Rect{10, 10, 20, 20})

	region, err := w.BeginPaint()
	if err != nil {
		t.Fatalf("BeginPaint failed: %v", err)
	}
	if region.Left > 10 || region.Right < 20 {
		t.Fatalf("invalid region %+v does not contain the requested rect", region)
	}

	if _, err := w.BeginPaint(); err == nil {
		t.Fatalf("nested BeginPaint succeeded")
	}
	if err := w.EndPaint(); err != nil {
		t.Fatalf("EndPaint failed: %v", err)
	}
}

func TestPostMessageBackpressure(t *testing.T) {
	q := NewQueue()
	for i := 0; i < queueDepth; i++ {
		if err := q.PostMessage(Message{Code: uint32(i)}); err != nil {
			t.Fatalf("PostMessage #%d failed: %v", i, err)
		}
	}
	if err := q.PostMessage(Message{Code: 999}); err == nil {
		t.Fatalf("PostMessage succeeded on a full queue")
	}
}

func TestGetMessageReturnsFalseAfterQuitDrains(t *testing.T) {
	q := NewQueue()
	q.PostMessage(Message{Code: 1})
	q.PostQuitMessage(7)

	_, ok := q.GetMessage()
	if !ok {
		t.Fatalf("GetMessage returned false before the queue drained")
	}
	_, ok = q.GetMessage()
	if ok {
		t.Fatalf("GetMessage returned true after quit with an empty queue")
	}
	if q.ExitCode() != 7 {
		t.Fatalf("ExitCode = %d, want 7", q.ExitCode())
	}
}

func TestPeekMessageDoesNotRemoveUnlessAsked(t *testing.T) {
	q := NewQueue()
	q.PostMessage(Message{Code: 42})

	m, ok := q.PeekMessage(false)
	if !ok || m.Code != 42 {
		t.Fatalf("PeekMessage(false) = (%v, %v)", m, ok)
	}
	m, ok = q.PeekMessage(true)
	if !ok || m.Code != 42 {
		t.Fatalf("PeekMessage(true) = (%v, %v)", m, ok)
	}
	if _, ok := q.PeekMessage(false); ok {
		t.Fatalf("message still present after PeekMessage(true) removed it")
	}
}

func TestTimerPostsWMTimer(t *testing.T) {
	q := NewQueue()
	q.SetTimer(nil, 1, 10*time.Millisecond, nil)

	time.Sleep(25 * time.Millisecond)
	q.KillTimer(nil, 1)

	m, ok := q.PeekMessage(true)
	if !ok || m.Code != WMTimer {
		t.Fatalf("expected a WM_TIMER message to have posted")
	}
}

func TestSetFocusGeneratesLoseAndGainMessages(t *testing.T) {
	r := NewRegistry()
	var events []uint32
	r.RegisterClass(&WindowClass{Name: "Test", Proc: func(w *Window, msg uint32, wparam, lparam uintptr) uintptr {
		events = append(events, msg)
		return 0
	}})
	w1, _ := r.CreateWindow(1, "Test", "", Rect{})
	w2, _ := r.CreateWindow(1, "Test", "", Rect{})

	q := NewQueue()
	events = nil
	q.SetFocus(w1)
	if len(events) != 1 || events[0] != WMSetFocus {
		t.Fatalf("events after first SetFocus = %v, want [WMSetFocus]", events)
	}

	events = nil
	q.SetFocus(w2)
	if len(events) != 2 || events[0] != WMKillFocus || events[1] != WMSetFocus {
		t.Fatalf("events after second SetFocus = %v, want [WMKillFocus WMSetFocus]", events)
	}
}
