// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package glyph

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Face is a Source that rasterizes glyphs from font.Face values, one per
// size class, optionally scaled up by an integer factor.
//
// Rendered glyphs are cached. A Face is safe for concurrent use.
type Face struct {
	faces map[Size]font.Face
	scale map[Size]int

	mu    sync.Mutex
	cache map[key]Glyph
}

type key struct {
	c byte
	s Size
}

// NewFace returns a Source using one font.Face per size class.
//
// Requests for a size class that has no face fall back to Small.
func NewFace(faces map[Size]font.Face) *Face {
	return &Face{faces: faces, cache: map[key]Glyph{}}
}

// Scaled returns a Source that uses a single font.Face for all size classes,
// magnifying each pixel by the factor given for the class.
func Scaled(f font.Face, scale map[Size]int) *Face {
	faces := make(map[Size]font.Face, len(scale))
	for s := range scale {
		faces[s] = f
	}
	return &Face{faces: faces, scale: scale, cache: map[key]Glyph{}}
}

// Basic is the default Source: the 7x13 fixed font from
// golang.org/x/image/font/basicfont at scale 1, 2 and 3 for Small, Medium and
// Large.
var Basic Source = Scaled(basicfont.Face7x13, map[Size]int{Small: 1, Medium: 2, Large: 3})

// Glyph implements Source.
func (f *Face) Glyph(c byte, s Size) Glyph {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key{c, s}
	if g, ok := f.cache[k]; ok {
		return g
	}
	face, ok := f.faces[s]
	if !ok {
		if face, ok = f.faces[Small]; !ok {
			return Glyph{}
		}
		s = Small
	}
	scale := f.scale[s]
	if scale < 1 {
		scale = 1
	}
	g := render(face, rune(c), scale)
	f.cache[k] = g
	return g
}

// render rasterizes r into a 1-bit bitmap. Coverage of at least 50% turns a
// pixel on.
func render(face font.Face, r rune, scale int) Glyph {
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	height := ascent + m.Descent.Ceil()
	adv, ok := face.GlyphAdvance(r)
	if !ok || height <= 0 {
		return Glyph{}
	}
	width := adv.Ceil()
	w, h := width*scale, height*scale
	bpr := (w + 7) / 8
	g := Glyph{Width: w, Height: h, Data: make([]byte, bpr*h)}

	dr, mask, mp, _, ok := face.Glyph(fixed.P(0, ascent), r)
	if !ok {
		return g
	}
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		if y < 0 || y >= height {
			continue
		}
		for x := dr.Min.X; x < dr.Max.X; x++ {
			if x < 0 || x >= width {
				continue
			}
			if _, _, _, a := mask.At(mp.X+x-dr.Min.X, mp.Y+y-dr.Min.Y).RGBA(); a < 0x8000 {
				continue
			}
			for sy := 0; sy < scale; sy++ {
				row := (y*scale + sy) * bpr
				for sx := 0; sx < scale; sx++ {
					px := x*scale + sx
					g.Data[row+px/8] |= 0x80 >> uint(px%8)
				}
			}
		}
	}
	return g
}
