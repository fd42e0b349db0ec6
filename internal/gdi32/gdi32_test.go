package gdi32

import "testing"

func TestNewSurfaceIsZeroed(t *testing.T) {
	s := NewSurface(4, 4)
	for _, b := range s.Pix {
		if b != 0 {
			t.Fatalf("new surface is not zeroed")
		}
	}
}

func TestLineToDrawsPixelsWithPen(t *testing.T) {
	s := NewSurface(10, 10)
	dc := NewDC(s)
	dc.SelectStockPen(WhitePen)
	dc.MoveToEx(0, 0)
	dc.LineTo(9, 0)

	for x := 0; x < 10; x++ {
		i := x * 4
		if s.Pix[i] != 0xFF || s.Pix[i+3] != 0xFF {
			t.Fatalf("pixel (%d,0) not drawn with white pen", x)
		}
	}
}

func TestRectangleFillsWithBrush(t *testing.T) {
	s := NewSurface(10, 10)
	dc := NewDC(s)
	dc.SelectStockBrush(BlackBrush)
	dc.Rectangle(2, 2, 5, 5)

	i := (3*10 + 3) * 4
	if s.Pix[i] != 0 || s.Pix[i+3] != 0xFF {
		t.Fatalf("interior pixel not filled with black brush")
	}
}

func TestRectangleWithNullBrushDoesNotFill(t *testing.T) {
	s := NewSurface(10, 10)
	dc := NewDC(s)
	dc.SelectStockBrush(NullBrush)
	dc.Rectangle(2, 2, 5, 5)

	i := (3*10 + 3) * 4
	if s.Pix[i+3] != 0 {
		t.Fatalf("interior pixel was filled despite NULL_BRUSH")
	}
}

func TestTextOutDrawsNonSpaceGlyph(t *testing.T) {
	s := NewSurface(16, 8)
	dc := NewDC(s)
	dc.SetTextColor(0xFFFFFF)
	dc.TextOut(0, 0, "A")

	var anyLit bool
	for i := 0; i < len(s.Pix); i += 4 {
		if s.Pix[i+3] != 0 {
			anyLit = true
			break
		}
	}
	if !anyLit {
		t.Fatalf("TextOut('A') produced no lit pixels")
	}
}

func TestTextOutSpaceIsBlankWhenTransparent(t *testing.T) {
	s := NewSurface(8, 8)
	dc := NewDC(s)
	dc.SetBkMode(Transparent)
	dc.TextOut(0, 0, " ")

	for _, b := range s.Pix {
		if b != 0 {
			t.Fatalf("space glyph drew a pixel under transparent background mode")
		}
	}
}
