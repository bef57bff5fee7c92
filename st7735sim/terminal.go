// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735sim

import (
	"bytes"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"

	"github.com/GermanBionicSystems/st7735/image565"
)

// Render writes the visible frame to w as ANSI 256 colors blocks, one line
// per row.
func (p *Panel) Render(w io.Writer) error {
	img := p.Image()
	// This code is designed to minimize the number of writes to w.
	var buf bytes.Buffer
	r := img.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		_, _ = buf.WriteString("\033[0m")
		for x := r.Min.X; x < r.Max.X; x++ {
			_, _ = buf.WriteString(ansi256.Default.Block(colorOf(img.Color565At(x, y))))
		}
		_, _ = buf.WriteString("\033[0m\n")
	}
	_, err := buf.WriteTo(w)
	return err
}

func colorOf(c image565.Color) color.NRGBA {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{byte(r >> 8), byte(g >> 8), byte(b >> 8), 255}
}

// Terminal shows a Panel on the console.
type Terminal struct {
	p *Panel
	w io.Writer
}

// NewTerminal returns a Terminal that writes to stdout, translating the
// escape codes on consoles that need it.
func NewTerminal(p *Panel) *Terminal {
	return &Terminal{p: p, w: colorable.NewColorableStdout()}
}

// Refresh moves the console cursor home and draws the current frame.
func (t *Terminal) Refresh() error {
	if _, err := io.WriteString(t.w, "\033[H"); err != nil {
		return err
	}
	return t.p.Render(t.w)
}
