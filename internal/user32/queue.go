package user32

import (
	"sync"
	"time"

	"github.com/citcrun/citc/internal/winerr"
)

// Message is one posted/dispatched queue entry.
type Message struct {
	Window    *Window
	Code      uint32
	WParam    uintptr
	LParam    uintptr
	Timestamp int64
}

// queueDepth bounds the per-thread message queue, matching the real
// Win32 default: PostMessage fails with ResourceExhausted once full
// rather than growing unbounded.
const queueDepth = 10000

// Queue is a per-thread FIFO of posted messages, plus that thread's
// timer table and quit/focus state. PostMessage from any thread and the
// owning thread's Get/Peek all take the queue's own mutex.
type Queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	ring      []Message
	head, n   int
	quit      bool
	exitCode  int32
	timers    map[timerKey]*timer
	focus     *Window
}

type timerKey struct {
	win *Window
	id  uintptr
}

type timer struct {
	period   time.Duration
	callback func(w *Window, id uintptr)
	stop     chan struct{}
}

// NewQueue builds an empty queue.
func NewQueue() *Queue {
	q := &Queue{
		ring:   make([]Message, queueDepth),
		timers: make(map[timerKey]*timer),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// PostMessage enqueues m, waking any blocked GetMessage caller. It fails
// with ResourceExhausted once the bounded ring is full.
func (q *Queue) PostMessage(m Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == len(q.ring) {
		return winerr.New("PostMessage", winerr.ResourceExhausted, nil)
	}
	q.ring[(q.head+q.n)%len(q.ring)] = m
	q.n++
	q.cond.Signal()
	return nil
}

// PostQuitMessage requests that GetMessage return false once the queue
// drains, carrying exitCode.
func (q *Queue) PostQuitMessage(exitCode int32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.quit = true
	q.exitCode = exitCode
	q.cond.Signal()
}

// GetMessage blocks until a message is available or quit was requested
// with an empty queue, returning ok=false in the latter case (mirroring
// GetMessage's BOOL return, where FALSE means WM_QUIT).
func (q *Queue) GetMessage() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.n == 0 {
		if q.quit {
			return Message{}, false
		}
		q.cond.Wait()
	}
	return q.pop(), true
}

// PeekMessage returns the head message without blocking, consuming it
// only if remove is true.
func (q *Queue) PeekMessage(remove bool) (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return Message{}, false
	}
	if remove {
		return q.pop(), true
	}
	return q.ring[q.head], true
}

func (q *Queue) pop() Message {
	m := q.ring[q.head]
	q.head = (q.head + 1) % len(q.ring)
	q.n--
	return m
}

// ExitCode returns the code passed to PostQuitMessage.
func (q *Queue) ExitCode() int32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.exitCode
}

// TranslateMessage is a no-op passthrough in citc: there is no virtual
// key to character translation layer to drive, but guest code calls it
// unconditionally between Peek/Get and Dispatch, so it must exist.
func TranslateMessage(m Message) Message { return m }

// DispatchMessage calls the target window's procedure; its return
// value is opaque to the dispatcher.
func DispatchMessage(m Message) uintptr {
	if m.Window == nil || m.Window.Class == nil || m.Window.Class.Proc == nil {
		return 0
	}
	return m.Window.Class.Proc(m.Window, m.Code, m.WParam, m.LParam)
}

// SetTimer installs or replaces a timer for (w, id). When callback is
// nil, a WM_TIMER message is posted to q on each tick; otherwise
// callback fires directly and no message is posted.
func (q *Queue) SetTimer(w *Window, id uintptr, period time.Duration, callback func(w *Window, id uintptr)) {
	q.mu.Lock()
	key := timerKey{w, id}
	if existing, ok := q.timers[key]; ok {
		close(existing.stop)
	}
	t := &timer{period: period, callback: callback, stop: make(chan struct{})}
	q.timers[key] = t
	q.mu.Unlock()

	go q.runTimer(w, id, t)
}

func (q *Queue) runTimer(w *Window, id uintptr, t *timer) {
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if t.callback != nil {
				t.callback(w, id)
				continue
			}
			_ = q.PostMessage(Message{Window: w, Code: WMTimer, WParam: id})
		}
	}
}

// KillTimer stops further posting/firing for (w, id). Already-queued
// WM_TIMER messages are not removed.
func (q *Queue) KillTimer(w *Window, id uintptr) {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := timerKey{w, id}
	if t, ok := q.timers[key]; ok {
		close(t.stop)
		delete(q.timers, key)
	}
}

// SetFocus moves focus to w, generating KillFocus/SetFocus messages to
// the previous and new focus windows.
func (q *Queue) SetFocus(w *Window) *Window {
	q.mu.Lock()
	prev := q.focus
	q.focus = w
	q.mu.Unlock()

	if prev != nil && prev != w && prev.Class.Proc != nil {
		prev.Class.Proc(prev, WMKillFocus, 0, 0)
	}
	if w != nil && w.Class.Proc != nil {
		w.Class.Proc(w, WMSetFocus, 0, 0)
	}
	return prev
}
