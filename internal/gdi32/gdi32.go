// Package gdi32 implements the GDI raster surface: device contexts,
// stock objects, Bresenham line/rectangle drawing and 8x8 bitmap-font
// text output onto a linear RGBA pixel buffer.
package gdi32

import "sync"

// Color is a packed 0xRRGGBB value; GDI's COLORREF has alpha implicitly
// opaque.
type Color uint32

// Surface is the pixel backing store a DC draws into: either a
// window's client bitmap or an off-screen memory bitmap. Pixels are
// stored bottom-up-agnostic, row-major, 4 bytes (RGBA) each.
type Surface struct {
	Width, Height int
	Pix           []byte
}

// NewSurface allocates a zeroed Width x Height RGBA surface.
func NewSurface(width, height int) *Surface {
	return &Surface{Width: width, Height: height, Pix: make([]byte, width*height*4)}
}

func (s *Surface) set(x, y int, c Color) {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return
	}
	i := (y*s.Width + x) * 4
	s.Pix[i+0] = byte(c >> 16)
	s.Pix[i+1] = byte(c >> 8)
	s.Pix[i+2] = byte(c)
	s.Pix[i+3] = 0xFF
}

// Stock object slots: a fixed set of pre-interned pen/brush/font
// identifiers, matching GetStockObject's constants.
const (
	WhitePen = iota
	BlackPen
	WhiteBrush
	BlackBrush
	NullBrush
	SystemFont
)

var stockPens = map[int]Color{
	WhitePen: 0xFFFFFF,
	BlackPen: 0x000000,
}

var stockBrushes = map[int]Color{
	WhiteBrush: 0xFFFFFF,
	BlackBrush: 0x000000,
}

// DC is a device context: current pen, brush, text colour, background
// mode, alignment flags, and target surface. Selecting a stock pen or
// brush replaces the current one; the previous selection is not
// returned.
type DC struct {
	mu        sync.Mutex
	Target    *Surface
	pen       Color
	brush     Color
	hasBrush  bool
	textColor Color
	bkMode    int // TRANSPARENT=1, OPAQUE=2
	bkColor   Color
	current   struct{ x, y int32 }
}

const (
	Transparent = 1
	Opaque      = 2
)

// NewDC builds a device context targeting surface, with black pen,
// white brush and opaque black-on-white text, matching GDI's default DC.
func NewDC(surface *Surface) *DC {
	return &DC{
		Target:    surface,
		pen:       stockPens[BlackPen],
		brush:     stockBrushes[WhiteBrush],
		hasBrush:  true,
		textColor: 0x000000,
		bkColor:   0xFFFFFF,
		bkMode:    Opaque,
	}
}

// SelectStockPen/SelectStockBrush install one of the fixed stock
// identifiers.
func (dc *DC) SelectStockPen(id int) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if c, ok := stockPens[id]; ok {
		dc.pen = c
	}
}

func (dc *DC) SelectStockBrush(id int) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if id == NullBrush {
		dc.hasBrush = false
		return
	}
	if c, ok := stockBrushes[id]; ok {
		dc.brush = c
		dc.hasBrush = true
	}
}

// SetTextColor/SetBkColor/SetBkMode mirror their Win32 namesakes.
func (dc *DC) SetTextColor(c Color) Color {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	prev := dc.textColor
	dc.textColor = c
	return prev
}

func (dc *DC) SetBkMode(mode int) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	prev := dc.bkMode
	dc.bkMode = mode
	return prev
}

// MoveToEx repositions the current point, returning the previous one.
func (dc *DC) MoveToEx(x, y int32) (int32, int32) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	px, py := dc.current.x, dc.current.y
	dc.current.x, dc.current.y = x, y
	return px, py
}

// LineTo draws from the current point to (x, y) with the selected pen
// using Bresenham's algorithm, then moves the current point there.
func (dc *DC) LineTo(x, y int32) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	drawLine(dc.Target, int(dc.current.x), int(dc.current.y), int(x), int(y), dc.pen)
	dc.current.x, dc.current.y = x, y
}

func drawLine(s *Surface, x0, y0, x1, y1 int, c Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		s.set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Rectangle draws and fills an axis-aligned rectangle with the
// selected pen and brush.
func (dc *DC) Rectangle(left, top, right, bottom int32) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.hasBrush {
		for y := top; y < bottom; y++ {
			for x := left; x < right; x++ {
				dc.Target.set(int(x), int(y), dc.brush)
			}
		}
	}
	drawLine(dc.Target, int(left), int(top), int(right-1), int(top), dc.pen)
	drawLine(dc.Target, int(right-1), int(top), int(right-1), int(bottom-1), dc.pen)
	drawLine(dc.Target, int(right-1), int(bottom-1), int(left), int(bottom-1), dc.pen)
	drawLine(dc.Target, int(left), int(bottom-1), int(left), int(top), dc.pen)
}
