// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import (
	"github.com/GermanBionicSystems/st7735/glyph"
	"github.com/GermanBionicSystems/st7735/image565"
)

func drawPixel(ctrl controller, x, y uint8, c image565.Color) {
	setWindow(ctrl, x, y, x+1, y+1)
	b := c.Bytes()
	ctrl.sendData(b[:])
}

// line calls plot for every point of the 8-connected Bresenham segment
// between (x0, y0) and (x1, y1), both included.
//
// The end point comes first so a zero length line still yields one point.
func line(x0, y0, x1, y1 uint8, plot func(x, y uint8)) {
	dx := abs(int(x1) - int(x0))
	dy := abs(int(y1) - int(y0))
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	e := dx - dy

	plot(x1, y1)
	for x0 != x1 || y0 != y1 {
		plot(x0, y0)
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x0 = uint8(int(x0) + sx)
		}
		if e2 < dx {
			e += dx
			y0 = uint8(int(y0) + sy)
		}
	}
}

// circle calls plot with the offsets from the center of every point of a
// circle of radius r, using the integer midpoint algorithm. Each step yields
// the four points mirrored across both axes.
func circle(r uint8, plot func(dx, dy int)) {
	x := -int(r)
	y := 0
	e := 2 - 2*int(r)
	for x <= 0 {
		plot(-x, y)
		plot(x, y)
		plot(x, -y)
		plot(-x, -y)

		e2 := e
		if e2 <= y {
			y++
			e += 2*y + 1
			if -x == y && e2 <= x {
				// Skip the redundant step on the diagonal.
				e2 = 0
			}
		}
		if e2 > x {
			x++
			e += 2*x + 1
		}
	}
}

func drawLine(ctrl controller, x0, y0, x1, y1 uint8, c image565.Color) {
	line(x0, y0, x1, y1, func(x, y uint8) {
		drawPixel(ctrl, x, y, c)
	})
}

func drawRectangle(ctrl controller, x, y, w, h uint8, c image565.Color) {
	drawLine(ctrl, x, y, x+w, y, c)
	drawLine(ctrl, x+w, y, x+w, y+h, c)
	drawLine(ctrl, x+w, y+h, x, y+h, c)
	drawLine(ctrl, x, y+h, x, y, c)
}

func drawCircle(ctrl controller, cx, cy, r uint8, c image565.Color) {
	circle(r, func(dx, dy int) {
		drawPixel(ctrl, uint8(int(cx)+dx), uint8(int(cy)+dy), c)
	})
}

// drawGlyph draws the set bits of g with (x, y) as the top left corner and
// returns the horizontal cursor advance.
func drawGlyph(ctrl controller, g *glyph.Glyph, x, y uint8, c image565.Color) uint8 {
	bpr := g.BytesPerRow()
	for row := 0; row < g.Height; row++ {
		for i := 0; i < bpr; i++ {
			bits := g.Data[row*bpr+i]
			for bit := 0; bit < 8; bit++ {
				if (bits<<uint(bit))&0x80 != 0 {
					drawPixel(ctrl, uint8(int(x)+i*8+bit), uint8(int(y)+row), c)
				}
			}
		}
	}
	return uint8(g.Width + bpr)
}

// fill paints a w x h area from the origin, one pixel per write.
func fill(ctrl controller, w, h int, c image565.Color) {
	setWindow(ctrl, 0, 0, uint8(w-1), uint8(h-1))
	b := c.Bytes()
	for i := 0; i < w*h; i++ {
		ctrl.sendData(b[:])
	}
}

// blit sends pre-packed pixels for a w x h window in a single burst.
func blit(ctrl controller, x, y uint8, w, h int, pix []byte) {
	setWindow(ctrl, x, y, uint8(int(x)+w-1), uint8(int(y)+h-1))
	ctrl.sendData(pix[:2*w*h])
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
