// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package glyph provides 1-bit glyph bitmaps for text rendering on
// controllers that are addressed pixel by pixel.
//
// A Glyph is stored row-major, one bit per pixel, most significant bit first
// within each byte. Every row uses the same number of bytes.
package glyph

import "strconv"

// Size is a font size class. The pixel dimensions it maps to depend on the
// Source.
type Size uint8

// Size classes understood by the sources in this package.
const (
	Small Size = iota + 1
	Medium
	Large
)

func (s Size) String() string {
	switch s {
	case Small:
		return "Small"
	case Medium:
		return "Medium"
	case Large:
		return "Large"
	default:
		return "Size(" + strconv.Itoa(int(s)) + ")"
	}
}

// Glyph is the bitmap of a single character.
type Glyph struct {
	// Width is the glyph width in pixels. It can be smaller than
	// 8*BytesPerRow().
	Width int
	// Height is the number of rows.
	Height int
	// Data holds Height rows of packed bits.
	Data []byte
}

// BytesPerRow returns the number of bytes used by each row of Data.
func (g *Glyph) BytesPerRow() int {
	if g.Height == 0 {
		return 0
	}
	return len(g.Data) / g.Height
}

// Bit reports whether the pixel at column x of row y is set.
func (g *Glyph) Bit(x, y int) bool {
	bpr := g.BytesPerRow()
	if x < 0 || y < 0 || y >= g.Height || x >= 8*bpr {
		return false
	}
	return g.Data[y*bpr+x/8]&(0x80>>uint(x%8)) != 0
}

// Source returns the bitmap for a character at a size class.
type Source interface {
	Glyph(c byte, s Size) Glyph
}

// Table is a Source backed by static bitmaps.
//
// Characters missing from the table render as an empty Glyph.
type Table map[Size]map[byte]Glyph

// Glyph implements Source.
func (t Table) Glyph(c byte, s Size) Glyph {
	return t[s][c]
}
