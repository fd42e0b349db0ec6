package d3d

// Vec4 is a homogeneous vector used for clip-space positions.
type Vec4 struct{ X, Y, Z, W float32 }

// Vertex is the fixed-function vertex shape the software rasterizer
// understands: a clip-space position plus colour and texture
// coordinate attributes, bound per InputElement semantic.
type Vertex struct {
	Position Vec4
	Color    [4]float32
	TexCoord [2]float32
}

type drawCall struct {
	pipeline    *PipelineState
	inputLayout *InputLayout
	vertexBuf   *Resource
	indexBuf    *Resource
	rtv         *View
	dsv         *View
	viewport    Viewport
	scissor     *Rect
}

// decodeVertex reads one vertex out of vertexBuf at index i using
// layout, binding POSITION/COLOR/TEXCOORD by semantic name and
// ignoring anything else (the fixed-function interpretation the spec
// documents).
func decodeVertex(vertexBuf *Resource, layout *InputLayout, i int) Vertex {
	var v Vertex
	v.Color = [4]float32{1, 1, 1, 1}
	if vertexBuf == nil || layout == nil || layout.Stride == 0 {
		return v
	}
	base := i * layout.Stride
	for _, e := range layout.Elements {
		off := base + e.Offset
		if off+4 > len(vertexBuf.Data) {
			continue
		}
		switch e.Semantic {
		case "POSITION":
			v.Position = Vec4{
				X: readFloat(vertexBuf.Data, off),
				Y: readFloat(vertexBuf.Data, off+4),
				Z: readFloat(vertexBuf.Data, off+8),
				W: 1,
			}
		case "COLOR":
			v.Color = [4]float32{
				readFloat(vertexBuf.Data, off),
				readFloat(vertexBuf.Data, off+4),
				readFloat(vertexBuf.Data, off+8),
				readFloat(vertexBuf.Data, off+12),
			}
		case "TEXCOORD":
			v.TexCoord = [2]float32{
				readFloat(vertexBuf.Data, off),
				readFloat(vertexBuf.Data, off+4),
			}
		}
	}
	return v
}

func readFloat(b []byte, off int) float32 {
	if off+4 > len(b) {
		return 0
	}
	return float32FromBits(getUint32LE(b[off : off+4]))
}

func readIndex(indexBuf *Resource, i int) int {
	off := i * 4
	if indexBuf == nil || off+4 > len(indexBuf.Data) {
		return 0
	}
	return int(getUint32LE(indexBuf.Data[off : off+4]))
}

// rasterizeIndexed implements the documented seven-step triangle-fill
// algorithm for every triangle in [startIndex, startIndex+indexCount).
func rasterizeIndexed(call drawCall, indexCount, startIndex int) {
	if call.rtv == nil || call.rtv.Resource == nil {
		return
	}
	pipeline := call.pipeline
	if pipeline == nil {
		pipeline = &PipelineState{}
	}

	for tri := startIndex; tri+3 <= startIndex+indexCount; tri += 3 {
		i0 := readIndex(call.indexBuf, tri)
		i1 := readIndex(call.indexBuf, tri+1)
		i2 := readIndex(call.indexBuf, tri+2)

		// Step 1: vertices are already transformed into clip space by
		// the caller (citc has no vertex-shader stage); position.W
		// carries the perspective divisor.
		v0 := decodeVertex(call.vertexBuf, call.inputLayout, i0)
		v1 := decodeVertex(call.vertexBuf, call.inputLayout, i1)
		v2 := decodeVertex(call.vertexBuf, call.inputLayout, i2)

		rasterizeTriangle(call, pipeline, v0, v1, v2)
	}
}

func rasterizeTriangle(call drawCall, pipeline *PipelineState, v0, v1, v2 Vertex) {
	target := call.rtv.Resource
	w, h := target.Width, target.Height

	// Viewport transform: clip space [-1,1] to pixel coordinates.
	p0 := toScreen(v0.Position, call.viewport)
	p1 := toScreen(v1.Position, call.viewport)
	p2 := toScreen(v2.Position, call.viewport)

	// Step 2: edge functions and orientation.
	area := edgeFunction(p0, p1, p2)
	if area == 0 {
		return
	}
	frontFace := area > 0
	if pipeline.CullBackFace && !frontFace {
		return
	}

	// Step 3: integer bounding box clipped to viewport/scissor.
	minX, minY, maxX, maxY := boundingBox(p0, p1, p2, w, h, call.scissor)
	if vx := int(call.viewport.X); minX < vx {
		minX = vx
	}
	if vy := int(call.viewport.Y); minY < vy {
		minY = vy
	}
	if vr := int(call.viewport.X+call.viewport.Width) - 1; maxX > vr {
		maxX = vr
	}
	if vb := int(call.viewport.Y+call.viewport.Height) - 1; maxY > vb {
		maxY = vb
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			pt := point{float32(x) + 0.5, float32(y) + 0.5}

			// Step 4: evaluate edge functions for inside test.
			w0 := edgeFunction(p1, p2, pt)
			w1 := edgeFunction(p2, p0, pt)
			w2 := edgeFunction(p0, p1, pt)
			inside := (w0 >= 0 && w1 >= 0 && w2 >= 0) || (w0 <= 0 && w1 <= 0 && w2 <= 0)
			if !inside {
				continue
			}

			// Step 5: barycentric interpolation, perspective-corrected.
			b0, b1, b2 := w0/area, w1/area, w2/area
			invW0, invW1, invW2 := safeInv(v0.Position.W), safeInv(v1.Position.W), safeInv(v2.Position.W)
			persp := b0*invW0 + b1*invW1 + b2*invW2
			var pb0, pb1, pb2 float32
			if persp != 0 {
				pb0, pb1, pb2 = b0*invW0/persp, b1*invW1/persp, b2*invW2/persp
			} else {
				pb0, pb1, pb2 = b0, b1, b2
			}

			color := [4]float32{
				pb0*v0.Color[0] + pb1*v1.Color[0] + pb2*v2.Color[0],
				pb0*v0.Color[1] + pb1*v1.Color[1] + pb2*v2.Color[1],
				pb0*v0.Color[2] + pb1*v1.Color[2] + pb2*v2.Color[2],
				pb0*v0.Color[3] + pb1*v1.Color[3] + pb2*v2.Color[3],
			}
			depth := b0*v0.Position.Z + b1*v1.Position.Z + b2*v2.Position.Z

			// Step 6: depth test.
			if pipeline.DepthTestEnable && call.dsv != nil && call.dsv.Resource != nil {
				existing := readDepth(call.dsv.Resource, x, y)
				if !pipeline.DepthFunc.passes(depth, existing) {
					continue
				}
				if pipeline.DepthWriteEnable {
					writeDepth(call.dsv.Resource, x, y, depth)
				}
			}

			// Step 7: write colour.
			writeColor(target, x, y, color)
		}
	}
}

type point struct{ X, Y float32 }

func toScreen(p Vec4, vp Viewport) point {
	ndcX, ndcY := p.X, p.Y
	if p.W != 0 && p.W != 1 {
		ndcX, ndcY = p.X/p.W, p.Y/p.W
	}
	return point{
		X: float32(vp.X) + (ndcX+1)*0.5*float32(vp.Width),
		Y: float32(vp.Y) + (1-(ndcY+1)*0.5)*float32(vp.Height),
	}
}

func edgeFunction(a, b, c point) float32 {
	return (c.X-a.X)*(b.Y-a.Y) - (c.Y-a.Y)*(b.X-a.X)
}

func safeInv(w float32) float32 {
	if w == 0 {
		return 1
	}
	return 1 / w
}

func boundingBox(p0, p1, p2 point, surfW, surfH int, scissor *Rect) (minX, minY, maxX, maxY int) {
	minXf := minf(p0.X, p1.X, p2.X)
	minYf := minf(p0.Y, p1.Y, p2.Y)
	maxXf := maxf(p0.X, p1.X, p2.X)
	maxYf := maxf(p0.Y, p1.Y, p2.Y)

	minX, minY = int(minXf), int(minYf)
	maxX, maxY = int(maxXf)+1, int(maxYf)+1

	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > surfW-1 {
		maxX = surfW - 1
	}
	if maxY > surfH-1 {
		maxY = surfH - 1
	}
	if scissor != nil {
		if int(scissor.Left) > minX {
			minX = int(scissor.Left)
		}
		if int(scissor.Top) > minY {
			minY = int(scissor.Top)
		}
		if int(scissor.Right)-1 < maxX {
			maxX = int(scissor.Right) - 1
		}
		if int(scissor.Bottom)-1 < maxY {
			maxY = int(scissor.Bottom) - 1
		}
	}
	return
}

func minf(vals ...float32) float32 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxf(vals ...float32) float32 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func writeColor(target *Resource, x, y int, c [4]float32) {
	if x < 0 || y < 0 || x >= target.Width || y >= target.Height {
		return
	}
	i := (y*target.Width + x) * 4
	r, g, b, a := packRGBA8(c)
	target.Data[i+0] = r
	target.Data[i+1] = g
	target.Data[i+2] = b
	target.Data[i+3] = a
}

func readDepth(target *Resource, x, y int) float32 {
	if x < 0 || y < 0 || x >= target.Width || y >= target.Height {
		return 1
	}
	i := (y*target.Width + x) * 4
	return float32FromBits(getUint32LE(target.Data[i : i+4]))
}

func writeDepth(target *Resource, x, y int, d float32) {
	if x < 0 || y < 0 || x >= target.Width || y >= target.Height {
		return
	}
	i := (y*target.Width + x) * 4
	putUint32LE(target.Data[i:i+4], float32ToBits(d))
}
