package d3d

import "sync"

// recordedOp is one deferred operation captured by a CommandList.
type recordedOp func(ctx *ImmediateContext)

// CommandAllocator backs the memory a CommandList records into. citc
// models it as a reusable slice of recorded operations; Reset clears it
// for the next recording pass, matching the real API's contract that a
// list may not be re-recorded while still in flight.
type CommandAllocator struct {
	mu  sync.Mutex
	ops []recordedOp
}

// NewCommandAllocator returns an empty allocator.
func NewCommandAllocator() *CommandAllocator { return &CommandAllocator{} }

// Reset clears any previously recorded operations.
func (a *CommandAllocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops = a.ops[:0]
}

// CommandList accumulates state changes and draw calls; it is
// single-producer (record from one goroutine at a time) and records
// into its allocator.
type CommandList struct {
	alloc *CommandAllocator
}

// NewCommandList creates a list recording into alloc.
func NewCommandList(alloc *CommandAllocator) *CommandList {
	return &CommandList{alloc: alloc}
}

func (l *CommandList) record(op recordedOp) {
	l.alloc.mu.Lock()
	defer l.alloc.mu.Unlock()
	l.alloc.ops = append(l.alloc.ops, op)
}

func (l *CommandList) SetPipelineState(p *PipelineState) {
	l.record(func(ctx *ImmediateContext) { ctx.SetPipelineState(p) })
}
func (l *CommandList) SetInputLayout(il *InputLayout) {
	l.record(func(ctx *ImmediateContext) { ctx.SetInputLayout(il) })
}
func (l *CommandList) SetVertexBuffer(r *Resource) {
	l.record(func(ctx *ImmediateContext) { ctx.SetVertexBuffer(r) })
}
func (l *CommandList) SetIndexBuffer(r *Resource) {
	l.record(func(ctx *ImmediateContext) { ctx.SetIndexBuffer(r) })
}
func (l *CommandList) SetRenderTarget(rtv, dsv *View) {
	l.record(func(ctx *ImmediateContext) { ctx.SetRenderTarget(rtv, dsv) })
}
func (l *CommandList) SetViewport(v Viewport) {
	l.record(func(ctx *ImmediateContext) { ctx.SetViewport(v) })
}
func (l *CommandList) ClearRenderTargetView(v *View, color [4]float32) {
	l.record(func(ctx *ImmediateContext) { ctx.ClearRenderTargetView(v, color) })
}
func (l *CommandList) ClearDepthStencilView(v *View, depth float32) {
	l.record(func(ctx *ImmediateContext) { ctx.ClearDepthStencilView(v, depth) })
}
func (l *CommandList) DrawIndexed(indexCount, startIndex int) {
	l.record(func(ctx *ImmediateContext) { ctx.DrawIndexed(indexCount, startIndex) })
}

// Close finalizes recording; the list's ops become replayable by a
// CommandQueue.
func (l *CommandList) Close() []recordedOp {
	l.alloc.mu.Lock()
	defer l.alloc.mu.Unlock()
	ops := make([]recordedOp, len(l.alloc.ops))
	copy(ops, l.alloc.ops)
	return ops
}

// CommandQueue executes closed command lists in submission order
// against a fresh ImmediateContext, so every queue has one consistent
// view of bound state across an ExecuteCommandLists call.
type CommandQueue struct {
	mu     sync.Mutex
	device *Device
}

// NewCommandQueue creates a queue bound to dev.
func NewCommandQueue(dev *Device) *CommandQueue { return &CommandQueue{device: dev} }

// ExecuteCommandLists replays each list's recorded ops, in order, then
// signals fence at value once all lists have completed.
func (q *CommandQueue) ExecuteCommandLists(lists []*CommandList, fence *Fence, value uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ctx := NewImmediateContext(q.device)
	for _, l := range lists {
		for _, op := range l.Close() {
			op(ctx)
		}
	}
	if fence != nil {
		fence.Signal(value)
	}
}

// Fence is a monotonically increasing completion counter a queue
// signals and a CPU thread can wait on.
type Fence struct {
	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
}

// NewFence creates a fence starting at completed value 0.
func NewFence() *Fence {
	f := &Fence{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Signal advances the fence's completed value and wakes any waiters.
func (f *Fence) Signal(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
	f.cond.Broadcast()
}

// CompletedValue returns the fence's current completed value.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Wait blocks until the fence reaches at least value.
func (f *Fence) Wait(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.completed < value {
		f.cond.Wait()
	}
}

// DescriptorHeap is a fixed-capacity array of views a pipeline binds
// descriptors out of by index.
type DescriptorHeap struct {
	slots []*View
}

// NewDescriptorHeap allocates a heap with capacity slots.
func NewDescriptorHeap(capacity int) *DescriptorHeap {
	return &DescriptorHeap{slots: make([]*View, capacity)}
}

// SetView installs v at index.
func (h *DescriptorHeap) SetView(index int, v *View) {
	if index >= 0 && index < len(h.slots) {
		h.slots[index] = v
	}
}

// View returns the view at index, or nil if unset/out of range.
func (h *DescriptorHeap) View(index int) *View {
	if index < 0 || index >= len(h.slots) {
		return nil
	}
	return h.slots[index]
}
