// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/GermanBionicSystems/st7735/glyph"
	"github.com/GermanBionicSystems/st7735/image565"
)

// Bus is the transport to the controller.
type Bus struct {
	// C carries command and data bytes. Required.
	C conn.Conn
	// DC selects command (Low) or data (High). Required.
	DC gpio.PinOut
	// CS is the active low chip select. Optional, leave nil when the SPI
	// port drives it.
	CS gpio.PinOut
	// RST is the active low reset. Optional.
	RST gpio.PinOut
}

// Opts defines the options for the device.
type Opts struct {
	// W and H are the panel size in pixels, 1 to 256.
	W int
	H int
	// Bus is filled by NewSPI.
	Bus Bus
	// Sleep blocks for the given duration. Defaults to time.Sleep.
	Sleep func(time.Duration)
	// Font is the glyph source for WriteChar and WriteString. Defaults to
	// glyph.Basic.
	Font glyph.Source
	// Init lists the op-streams run by BringUp, in order.
	Init [][]byte
}

// DefaultOpts is the configuration of the common 128x128 1.44" panels.
var DefaultOpts = Opts{
	W:    128,
	H:    128,
	Init: [][]byte{InitPowerOn, InitWindow, InitDisplayOn},
}

// maxTxSize is used when the connection does not report a limit.
const maxTxSize = 4096

// Dev is an open handle to the display controller.
//
// Dev is not safe for concurrent use; a caller sharing it across goroutines
// must serialize the calls.
type Dev struct {
	bus       Bus
	maxTxSize int
	w, h      int
	sleep     func(time.Duration)
	font      glyph.Source
	init      [][]byte

	// Text cursor.
	x, y uint8

	// First error of SetPixel, reported by Display.
	pixelErr error
}

// New returns an unconfigured handle. Every operation but Configure fails
// with ErrNullHandle until Configure succeeds.
func New() *Dev {
	return &Dev{}
}

// NewSPI returns a Dev that communicates over SPI with a ST7735 controller.
//
// # Wiring
//
// Connect SDA to SPI_MOSI, SCK to SPI_CLK. dc is required. cs and rst are
// optional: pass nil when CS is handled by the SPI port or RST is tied high.
//
// The device is configured but not initialized; call BringUp.
func NewSPI(p spi.Port, dc, cs, rst gpio.PinOut, opts *Opts) (*Dev, error) {
	if dc == nil || dc == gpio.INVALID {
		return nil, errors.New("st7735: dc pin is required")
	}
	// The write cycle is 66ns at the fastest.
	c, err := p.Connect(15*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("st7735: %w", err)
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	o.Bus = Bus{C: c, DC: dc, CS: optional(cs), RST: optional(rst)}
	d := New()
	if err := d.Configure(&o); err != nil {
		return nil, err
	}
	return d, nil
}

// Configure binds the geometry and the transport to the handle and resets
// the text cursor.
func (d *Dev) Configure(opts *Opts) error {
	if d == nil || opts == nil {
		return ErrNullHandle
	}
	if opts.W < 1 || opts.W > 256 {
		return fmt.Errorf("st7735: invalid width %d", opts.W)
	}
	if opts.H < 1 || opts.H > 256 {
		return fmt.Errorf("st7735: invalid height %d", opts.H)
	}
	if opts.Bus.C == nil || opts.Bus.DC == nil {
		return errors.New("st7735: Bus.C and Bus.DC are required")
	}
	n := maxTxSize
	if l, ok := opts.Bus.C.(conn.Limits); ok && l.MaxTxSize() > 0 {
		n = l.MaxTxSize()
	}
	*d = Dev{
		bus:       opts.Bus,
		maxTxSize: n,
		w:         opts.W,
		h:         opts.H,
		sleep:     opts.Sleep,
		font:      opts.Font,
		init:      opts.Init,
	}
	if d.sleep == nil {
		d.sleep = time.Sleep
	}
	if d.font == nil {
		d.font = glyph.Basic
	}
	return nil
}

func (d *Dev) String() string {
	if !d.configured() {
		return "st7735.Dev{}"
	}
	return fmt.Sprintf("st7735.Dev{%s, %s, %dx%d}", d.bus.C, d.bus.DC, d.w, d.h)
}

// BringUp pulses the reset line when present, then runs the Init op-streams.
//
// The streams are validated before anything is sent. A transport failure
// aborts the remaining streams.
func (d *Dev) BringUp() error {
	if !d.configured() {
		return ErrNullHandle
	}
	seqs := make([][]Command, 0, len(d.init))
	for _, s := range d.init {
		cmds, err := ParseOps(s)
		if err != nil {
			return err
		}
		seqs = append(seqs, cmds)
	}
	return d.do(func(eh *errorHandler) {
		bringUp(eh, seqs)
	})
}

// RunOps sends an op-stream to the controller. See ParseOps for the format.
func (d *Dev) RunOps(stream []byte) error {
	if !d.configured() {
		return ErrNullHandle
	}
	cmds, err := ParseOps(stream)
	if err != nil {
		return err
	}
	return d.do(func(eh *errorHandler) {
		runOps(eh, cmds)
	})
}

// Halt turns off the display. Pixel memory is kept.
//
// Any drawing keeps the display off until SetDisplay(true) or BringUp.
func (d *Dev) Halt() error {
	return d.SetDisplay(false)
}

// SetDisplay turns the display output on or off.
func (d *Dev) SetDisplay(on bool) error {
	cmd := dispOff
	if on {
		cmd = dispOn
	}
	return d.command(cmd)
}

// Invert the display colors.
func (d *Dev) Invert(inverted bool) error {
	cmd := invOff
	if inverted {
		cmd = invOn
	}
	return d.command(cmd)
}

// SetSleep enters or leaves the controller's sleep mode.
//
// Leaving sleep mode requires 120ms before the next command; SetSleep waits
// for it.
func (d *Dev) SetSleep(asleep bool) error {
	if !d.configured() {
		return ErrNullHandle
	}
	return d.do(func(eh *errorHandler) {
		if asleep {
			eh.sendCommand(slpIn)
			return
		}
		eh.sendCommand(slpOut)
		eh.sleep(120 * time.Millisecond)
	})
}

// Fill paints the whole screen with c.
//
// On a transport failure part of the screen may already be painted.
func (d *Dev) Fill(c image565.Color) error {
	if !d.configured() {
		return ErrNullHandle
	}
	return d.do(func(eh *errorHandler) {
		fill(eh, d.w, d.h, c)
	})
}

// DrawPixel sets a single pixel.
//
// Coordinates are not checked against the screen size and wrap at 256.
func (d *Dev) DrawPixel(x, y uint8, c image565.Color) error {
	if !d.configured() {
		return ErrNullHandle
	}
	return d.do(func(eh *errorHandler) {
		drawPixel(eh, x, y, c)
	})
}

// DrawLine draws a line from (x0, y0) to (x1, y1), both ends included.
//
// On a transport failure the line may be partially drawn.
func (d *Dev) DrawLine(x0, y0, x1, y1 uint8, c image565.Color) error {
	if !d.configured() {
		return ErrNullHandle
	}
	return d.do(func(eh *errorHandler) {
		drawLine(eh, x0, y0, x1, y1, c)
	})
}

// DrawRectangle draws the outline of the rectangle with corners (x, y) and
// (x+w, y+h).
//
// On a transport failure the outline may be partially drawn.
func (d *Dev) DrawRectangle(x, y, w, h uint8, c image565.Color) error {
	if !d.configured() {
		return ErrNullHandle
	}
	return d.do(func(eh *errorHandler) {
		drawRectangle(eh, x, y, w, h, c)
	})
}

// DrawCircle draws the outline of a circle centered on (x, y).
//
// On a transport failure the outline may be partially drawn.
func (d *Dev) DrawCircle(x, y, r uint8, c image565.Color) error {
	if !d.configured() {
		return ErrNullHandle
	}
	return d.do(func(eh *errorHandler) {
		drawCircle(eh, x, y, r, c)
	})
}

// DrawImage sends w x h pixels, packed as image565.Image.Pix, with (x, y) as
// the top left corner. It is sent as a single burst.
func (d *Dev) DrawImage(x, y, w, h uint8, pix []byte) error {
	if !d.configured() {
		return ErrNullHandle
	}
	if n := 2 * int(w) * int(h); len(pix) < n {
		return fmt.Errorf("st7735: invalid pixel stream length; expected %d bytes, got %d bytes", n, len(pix))
	}
	if w == 0 || h == 0 {
		return nil
	}
	return d.do(func(eh *errorHandler) {
		blit(eh, x, y, int(w), int(h), pix)
	})
}

// WriteChar draws c at the text cursor and advances the cursor.
//
// The cursor only moves right; there is no line wrapping.
func (d *Dev) WriteChar(size glyph.Size, c byte, col image565.Color) error {
	if !d.configured() {
		return ErrNullHandle
	}
	return d.do(func(eh *errorHandler) {
		d.writeChar(eh, size, c, col)
	})
}

// WriteString draws s byte by byte from the text cursor.
//
// On a transport failure the string may be partially drawn, and the cursor
// is left after the last character attempted.
func (d *Dev) WriteString(size glyph.Size, s string, col image565.Color) error {
	if !d.configured() {
		return ErrNullHandle
	}
	return d.do(func(eh *errorHandler) {
		for i := 0; i < len(s) && eh.err == nil; i++ {
			d.writeChar(eh, size, s[i], col)
		}
	})
}

// SetCursor moves the text cursor.
func (d *Dev) SetCursor(x, y uint8) error {
	if !d.configured() {
		return ErrNullHandle
	}
	d.x, d.y = x, y
	return nil
}

// Cursor returns the text cursor.
func (d *Dev) Cursor() (x, y uint8, err error) {
	if !d.configured() {
		return 0, 0, ErrNullHandle
	}
	return d.x, d.y, nil
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return image565.Model
}

// Bounds implements display.Drawer. Min is guaranteed to be {0, 0}.
func (d *Dev) Bounds() image.Rectangle {
	if d == nil {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, d.w, d.h)
}

// Draw implements display.Drawer.
//
// The area r ∩ Bounds() is converted to 16 bits colors and sent as a single
// burst. As with draw.Draw, sp is aligned with r.Min before clipping.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	if !d.configured() {
		return ErrNullHandle
	}
	orig := r
	r = r.Intersect(d.Bounds())
	if r.Empty() {
		return nil
	}
	sp = sp.Add(r.Min.Sub(orig.Min))
	// Source area matching r.
	sr := r.Add(sp.Sub(r.Min))
	var img *image565.Image
	if s, ok := src.(*image565.Image); ok && sr.In(s.Rect) {
		img = s.SubImage(sr)
	} else {
		img = image565.New(r)
		draw.Src.Draw(img, r, src, sp)
	}
	return d.do(func(eh *errorHandler) {
		blit(eh, uint8(r.Min.X), uint8(r.Min.Y), r.Dx(), r.Dy(), img.Pix)
	})
}

func (d *Dev) configured() bool {
	return d != nil && d.bus.C != nil && d.bus.DC != nil
}

// do runs f with the chip selected. Chip select is released even when f
// failed.
func (d *Dev) do(f func(eh *errorHandler)) error {
	eh := errorHandler{d: d}
	eh.csOut(gpio.Low)
	f(&eh)
	err := eh.err
	eh.err = nil
	eh.csOut(gpio.High)
	if err == nil {
		err = eh.err
	}
	return err
}

func (d *Dev) command(cmd byte) error {
	if !d.configured() {
		return ErrNullHandle
	}
	return d.do(func(eh *errorHandler) {
		eh.sendCommand(cmd)
	})
}

func (d *Dev) writeChar(ctrl controller, size glyph.Size, c byte, col image565.Color) {
	g := d.font.Glyph(c, size)
	d.x += drawGlyph(ctrl, &g, d.x, d.y, col)
}

func optional(p gpio.PinOut) gpio.PinOut {
	if p == gpio.INVALID {
		return nil
	}
	return p
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
