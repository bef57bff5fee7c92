// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package glyph

import (
	"fmt"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultPoints maps size classes to point sizes at 72 DPI, so a point is a
// pixel.
var DefaultPoints = map[Size]float64{Small: 10, Medium: 14, Large: 20}

// TrueType parses a TrueType font and returns a Source rendering it at the
// given point sizes.
//
// Glyphs are rendered with full hinting and thresholded to 1 bit, which
// works best for sizes of 10 points and up.
func TrueType(ttf []byte, points map[Size]float64) (*Face, error) {
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("glyph: %w", err)
	}
	faces := make(map[Size]font.Face, len(points))
	for s, pt := range points {
		faces[s] = truetype.NewFace(f, &truetype.Options{
			Size:    pt,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}
	return NewFace(faces), nil
}

// GoRegular returns the Go Regular font at DefaultPoints.
func GoRegular() (*Face, error) {
	return TrueType(goregular.TTF, DefaultPoints)
}
