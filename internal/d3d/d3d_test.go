package d3d

import "testing"

func makeVertexBuffer(dev *Device, verts [][5]float32) (*Resource, *InputLayout) {
	stride := 5 * 4 // x,y,r,g,b; decodeVertex takes z from r (w=1) and reads color alpha from the following float
	buf := NewBuffer(dev, len(verts)*stride)
	for i, v := range verts {
		off := i * stride
		for j, f := range v {
			putUint32LE(buf.Data[off+j*4:off+j*4+4], float32ToBits(f))
		}
	}
	layout := &InputLayout{
		Stride: stride,
		Elements: []InputElement{
			{Semantic: "POSITION", Offset: 0},
			{Semantic: "COLOR", Offset: 8},
		},
	}
	return buf, layout
}

func TestClearRenderTargetViewFillsUniformColor(t *testing.T) {
	dev := NewDevice()
	tex := NewTexture2D(dev, 4, 4, FormatR8G8B8A8Unorm)
	rtv := NewView(ViewRTV, tex)
	ctx := NewImmediateContext(dev)

	ctx.ClearRenderTargetView(rtv, [4]float32{1, 0, 0, 1})

	for i := 0; i < len(tex.Data); i += 4 {
		if tex.Data[i] != 0xFF || tex.Data[i+1] != 0 || tex.Data[i+2] != 0 || tex.Data[i+3] != 0xFF {
			t.Fatalf("pixel at byte %d not cleared to red: %v", i, tex.Data[i:i+4])
		}
	}
}

func TestDrawIndexedFillsTriangleInterior(t *testing.T) {
	dev := NewDevice()
	tex := NewTexture2D(dev, 16, 16, FormatR8G8B8A8Unorm)
	rtv := NewView(ViewRTV, tex)
	ctx := NewImmediateContext(dev)
	ctx.SetRenderTarget(rtv, nil)
	ctx.SetViewport(Viewport{Width: 16, Height: 16})
	ctx.SetPipelineState(&PipelineState{})

	// A large clip-space triangle covering most of the viewport,
	// position (x,y) + w=1 implicit, plus a white color attribute.
	vertexBuf, layout := makeVertexBuffer(dev, [][5]float32{
		{-0.8, -0.8, 1, 1, 1},
		{0.8, -0.8, 1, 1, 1},
		{0.0, 0.8, 1, 1, 1},
	})
	ctx.SetInputLayout(layout)
	ctx.SetVertexBuffer(vertexBuf)

	indexBuf := NewBuffer(dev, 3*4)
	putUint32LE(indexBuf.Data[0:4], 0)
	putUint32LE(indexBuf.Data[4:8], 1)
	putUint32LE(indexBuf.Data[8:12], 2)
	ctx.SetIndexBuffer(indexBuf)

	ctx.DrawIndexed(3, 0)

	center := (8*16 + 8) * 4
	if tex.Data[center+3] == 0 {
		t.Fatalf("triangle did not rasterize a pixel at the viewport center")
	}
}

func TestDepthTestRejectsFartherFragment(t *testing.T) {
	dev := NewDevice()
	tex := NewTexture2D(dev, 8, 8, FormatR8G8B8A8Unorm)
	depth := NewTexture2D(dev, 8, 8, FormatR32Float)
	rtv := NewView(ViewRTV, tex)
	dsv := NewView(ViewDSV, depth)
	ctx := NewImmediateContext(dev)
	ctx.SetRenderTarget(rtv, dsv)
	ctx.SetViewport(Viewport{Width: 8, Height: 8})

	// Seed the depth buffer with a very near value everywhere, so any
	// draw with DepthTestEnable+CompareLess must be fully rejected.
	for i := 0; i < len(depth.Data); i += 4 {
		putUint32LE(depth.Data[i:i+4], float32ToBits(-1))
	}

	vertexBuf, layout := makeVertexBuffer(dev, [][5]float32{
		{-0.8, -0.8, 1, 1, 1},
		{0.8, -0.8, 1, 1, 1},
		{0.0, 0.8, 1, 1, 1},
	})
	ctx.SetInputLayout(layout)
	ctx.SetVertexBuffer(vertexBuf)
	indexBuf := NewBuffer(dev, 3*4)
	putUint32LE(indexBuf.Data[0:4], 0)
	putUint32LE(indexBuf.Data[4:8], 1)
	putUint32LE(indexBuf.Data[8:12], 2)
	ctx.SetIndexBuffer(indexBuf)
	ctx.SetPipelineState(&PipelineState{DepthTestEnable: true, DepthFunc: CompareLess})

	ctx.DrawIndexed(3, 0)

	for i := 0; i < len(tex.Data); i += 4 {
		if tex.Data[i+3] != 0 {
			t.Fatalf("fragment passed depth test despite a nearer existing depth value")
		}
	}
}

func TestCommandListRecordsAndQueueExecutesInOrder(t *testing.T) {
	dev := NewDevice()
	tex := NewTexture2D(dev, 2, 2, FormatR8G8B8A8Unorm)
	rtv := NewView(ViewRTV, tex)

	alloc := NewCommandAllocator()
	list := NewCommandList(alloc)
	list.ClearRenderTargetView(rtv, [4]float32{0, 1, 0, 1})

	queue := NewCommandQueue(dev)
	fence := NewFence()
	queue.ExecuteCommandLists([]*CommandList{list}, fence, 1)

	if tex.Data[1] != 0xFF {
		t.Fatalf("queued clear did not execute")
	}
	if fence.CompletedValue() != 1 {
		t.Fatalf("fence completed value = %d, want 1", fence.CompletedValue())
	}
}

func TestFenceWaitUnblocksOnSignal(t *testing.T) {
	f := NewFence()
	done := make(chan struct{})
	go func() {
		f.Wait(3)
		close(done)
	}()
	f.Signal(1)
	f.Signal(3)
	<-done
}

func TestDescriptorHeapSetAndGet(t *testing.T) {
	dev := NewDevice()
	tex := NewTexture2D(dev, 1, 1, FormatR8G8B8A8Unorm)
	v := NewView(ViewSRV, tex)

	heap := NewDescriptorHeap(4)
	heap.SetView(2, v)
	if heap.View(2) != v {
		t.Fatalf("View(2) did not return the installed view")
	}
	if heap.View(0) != nil {
		t.Fatalf("unset slot returned non-nil view")
	}
	if heap.View(99) != nil {
		t.Fatalf("out-of-range index did not return nil")
	}
}
