// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package image565 implements an image type packing pixels as 16-bit RGB
// 5-6-5 values, big endian, in row-major order.
//
// This is the native pixel format of the ST7735 family of controllers: the
// content of Image.Pix can be streamed to the controller RAM as is.
package image565

import (
	"image"
	"image/color"
	"image/draw"
)

// Color is a 16-bit packed color: 5 bits red, 6 bits green, 5 bits blue.
type Color uint16

// Common colors.
const (
	Black   Color = 0x0000
	White   Color = 0xFFFF
	Red     Color = 0xF800
	Green   Color = 0x07E0
	Blue    Color = 0x001F
	Yellow  Color = 0xFFE0
	Cyan    Color = 0x07FF
	Magenta Color = 0xF81F
)

// RGB packs 8-bit channels into a Color, dropping the low bits.
func RGB(r, g, b uint8) Color {
	return Color(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b&0xF8)>>3)
}

// RGBA implements color.Color.
//
// Each channel is expanded to 16 bits by bit replication so White maps to
// 0xFFFF.
func (c Color) RGBA() (r, g, b, a uint32) {
	r5 := uint32(c>>11) & 0x1F
	g6 := uint32(c>>5) & 0x3F
	b5 := uint32(c) & 0x1F
	r8 := r5<<3 | r5>>2
	g8 := g6<<2 | g6>>4
	b8 := b5<<3 | b5>>2
	return r8 | r8<<8, g8 | g8<<8, b8 | b8<<8, 0xFFFF
}

// Bytes returns the color as sent on the wire, most significant byte first.
func (c Color) Bytes() [2]byte {
	return [2]byte{byte(c >> 8), byte(c)}
}

func convert(c color.Color) color.Color {
	if p, ok := c.(Color); ok {
		return p
	}
	r, g, b, _ := c.RGBA()
	return RGB(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Model converts any color to a Color.
var Model = color.ModelFunc(convert)

// Image is an in-memory image of Color pixels.
type Image struct {
	// Pix holds 2 bytes per pixel, big endian.
	Pix []byte
	// Stride is the number of bytes between two vertically adjacent pixels.
	Stride int
	Rect   image.Rectangle
}

// New returns an Image with the given bounds.
func New(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return &Image{Rect: r}
	}
	return &Image{Pix: make([]byte, 2*w*h), Stride: 2 * w, Rect: r}
}

// ColorModel implements image.Image.
func (i *Image) ColorModel() color.Model {
	return Model
}

// Bounds implements image.Image.
func (i *Image) Bounds() image.Rectangle {
	return i.Rect
}

// At implements image.Image.
func (i *Image) At(x, y int) color.Color {
	return i.Color565At(x, y)
}

// Color565At returns the pixel at (x, y), Black when out of bounds.
func (i *Image) Color565At(x, y int) Color {
	if !(image.Point{X: x, Y: y}.In(i.Rect)) {
		return Black
	}
	o := i.PixOffset(x, y)
	return Color(uint16(i.Pix[o])<<8 | uint16(i.Pix[o+1]))
}

// Set implements draw.Image.
func (i *Image) Set(x, y int, c color.Color) {
	i.SetColor565(x, y, Model.Convert(c).(Color))
}

// SetColor565 sets the pixel at (x, y) without conversion.
func (i *Image) SetColor565(x, y int, c Color) {
	if !(image.Point{X: x, Y: y}.In(i.Rect)) {
		return
	}
	o := i.PixOffset(x, y)
	i.Pix[o] = byte(c >> 8)
	i.Pix[o+1] = byte(c)
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (i *Image) PixOffset(x, y int) int {
	return (y-i.Rect.Min.Y)*i.Stride + (x-i.Rect.Min.X)*2
}

// Fill sets every pixel to c.
func (i *Image) Fill(c Color) {
	hi, lo := byte(c>>8), byte(c)
	for o := 0; o+1 < len(i.Pix); o += 2 {
		i.Pix[o] = hi
		i.Pix[o+1] = lo
	}
}

// SubImage returns a copy of the pixels in r ∩ Bounds(), with tightly packed
// rows. The result can be sent to the controller as a single burst.
func (i *Image) SubImage(r image.Rectangle) *Image {
	r = r.Intersect(i.Rect)
	out := New(r)
	if r.Empty() {
		return out
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		src := i.Pix[i.PixOffset(r.Min.X, y):i.PixOffset(r.Max.X, y)]
		copy(out.Pix[out.PixOffset(r.Min.X, y):], src)
	}
	return out
}

var _ draw.Image = &Image{}
