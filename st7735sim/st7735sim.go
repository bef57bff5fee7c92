// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package st7735sim emulates the bus side of a ST7735 controller.
//
// A Panel exposes the DC, CS and RST lines and the SPI connection the driver
// expects, decodes the traffic into a command log and renders RAM writes into
// an in-memory framebuffer. It is meant for tests and for running programs
// without the hardware.
package st7735sim

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/GermanBionicSystems/st7735/image565"
)

// ErrInjected is returned by every bus operation after the budget set with
// FailAfter is spent.
var ErrInjected = errors.New("st7735sim: injected failure")

// Opcodes decoded by the Panel.
const (
	SWRESET byte = 0x01
	SLPIN   byte = 0x10
	SLPOUT  byte = 0x11
	INVOFF  byte = 0x20
	INVON   byte = 0x21
	DISPOFF byte = 0x28
	DISPON  byte = 0x29
	CASET   byte = 0x2A
	RASET   byte = 0x2B
	RAMWR   byte = 0x2C
	MADCTL  byte = 0x36
	COLMOD  byte = 0x3A
)

// Position of the visible area in the controller RAM.
const (
	xOffset = 2
	yOffset = 3
)

// Command is a decoded command and its parameters.
type Command struct {
	Op   byte
	Args []byte
	// Pixels is the number of complete pixels received by a RAMWR. Pixel
	// bytes are not kept in Args.
	Pixels int
}

func (c Command) String() string {
	if c.Op == RAMWR {
		return fmt.Sprintf("%#02x(%d pixels)", c.Op, c.Pixels)
	}
	return fmt.Sprintf("%#02x%x", c.Op, c.Args)
}

// Panel is an emulated controller attached to a W x H screen.
//
// It is safe for concurrent use.
type Panel struct {
	mu  sync.Mutex
	fb  *image565.Image
	log []Command
	tx  int

	dc, cs, rst *line
	csUsed      bool
	budget      int // -1 is unlimited.
	maxTxSize   int

	awake     bool
	displayOn bool
	inverted  bool
	madctl    byte
	colmod    byte

	// RAM write window and position, in screen coordinates.
	x0, y0, x1, y1 int
	x, y           int
	half           []byte

	// Subscribers to frame changes.
	subs  map[chan struct{}]struct{}
	dirty bool
}

// NewPanel returns a Panel in its power-on state, with a black framebuffer.
func NewPanel(w, h int) *Panel {
	p := &Panel{fb: image565.New(image.Rect(0, 0, w, h)), budget: -1}
	p.dc = &line{Pin: gpiotest.Pin{N: "st7735sim.DC", L: gpio.High}, p: p}
	p.cs = &line{Pin: gpiotest.Pin{N: "st7735sim.CS", L: gpio.High}, p: p}
	p.rst = &line{Pin: gpiotest.Pin{N: "st7735sim.RST", L: gpio.High}, p: p}
	p.reset()
	return p
}

func (p *Panel) String() string {
	return fmt.Sprintf("st7735sim.Panel{%dx%d}", p.fb.Rect.Dx(), p.fb.Rect.Dy())
}

// DC returns the data/command line.
func (p *Panel) DC() gpio.PinOut {
	return p.dc
}

// CS returns the chip select line. Once it was driven, traffic sent while it
// is High is ignored.
func (p *Panel) CS() gpio.PinOut {
	return p.cs
}

// RST returns the reset line. Driving it Low resets the controller state.
func (p *Panel) RST() gpio.PinOut {
	return p.rst
}

// Conn returns the SPI connection.
func (p *Panel) Conn() conn.Conn {
	return &spiConn{p: p}
}

// SetMaxTxSize sets the value reported by conn.Limits. 0 reports no limit.
func (p *Panel) SetMaxTxSize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxTxSize = n
}

// FailAfter lets n more bus operations succeed, line level changes and
// transactions alike, then fails every one with ErrInjected. A negative n
// removes the limit.
func (p *Panel) FailAfter(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.budget = n
}

// Commands returns a copy of the command log.
func (p *Panel) Commands() []Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Command, len(p.log))
	copy(out, p.log)
	return out
}

// Ops returns the opcodes of the command log.
func (p *Panel) Ops() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, len(p.log))
	for i := range p.log {
		out[i] = p.log[i].Op
	}
	return out
}

// ClearCommands empties the command log.
func (p *Panel) ClearCommands() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = nil
}

// Transactions returns the number of Tx calls accepted.
func (p *Panel) Transactions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tx
}

// Awake reports whether the controller left sleep mode.
func (p *Panel) Awake() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.awake
}

// DisplayOn reports whether the display output is enabled.
func (p *Panel) DisplayOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayOn
}

// Inverted reports whether color inversion is enabled.
func (p *Panel) Inverted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inverted
}

// MADCTL returns the last memory access control value.
func (p *Panel) MADCTL() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.madctl
}

// COLMOD returns the last color mode value.
func (p *Panel) COLMOD() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.colmod
}

// At returns the framebuffer pixel at (x, y).
func (p *Panel) At(x, y int) image565.Color {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fb.Color565At(x, y)
}

// Frame returns a copy of the framebuffer.
func (p *Panel) Frame() *image565.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fb.SubImage(p.fb.Rect)
}

// Image returns the frame as seen on the screen: black while asleep or with
// the display off, inverted when inversion is on.
func (p *Panel) Image() *image565.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.fb.SubImage(p.fb.Rect)
	switch {
	case !p.awake || !p.displayOn:
		out.Fill(image565.Black)
	case p.inverted:
		for i := range out.Pix {
			out.Pix[i] = ^out.Pix[i]
		}
	}
	return out
}

// subscribe returns a channel that receives a value when the visible frame
// may have changed. Notifications are coalesced.
func (p *Panel) subscribe() (<-chan struct{}, func()) {
	c := make(chan struct{}, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subs == nil {
		p.subs = map[chan struct{}]struct{}{}
	}
	p.subs[c] = struct{}{}
	return c, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, c)
	}
}

func (p *Panel) notifyLocked() {
	if !p.dirty {
		return
	}
	p.dirty = false
	for c := range p.subs {
		select {
		case c <- struct{}{}:
		default:
		}
	}
}

// spend consumes one bus operation from the failure budget.
func (p *Panel) spend() error {
	if p.budget == 0 {
		return ErrInjected
	}
	if p.budget > 0 {
		p.budget--
	}
	return nil
}

func (p *Panel) selected() bool {
	return !p.csUsed || p.cs.L == gpio.Low
}

func (p *Panel) reset() {
	p.dirty = true
	p.awake = false
	p.displayOn = false
	p.inverted = false
	p.madctl = 0
	p.colmod = 0x06
	p.x0, p.y0 = 0, 0
	p.x1, p.y1 = p.fb.Rect.Dx()-1, p.fb.Rect.Dy()-1
	p.x, p.y = 0, 0
	p.half = nil
}

func (p *Panel) command(op byte) {
	p.log = append(p.log, Command{Op: op})
	p.half = nil
	switch op {
	case SLPIN, SLPOUT, INVOFF, INVON, DISPOFF, DISPON:
		p.dirty = true
	}
	switch op {
	case SWRESET:
		p.reset()
	case SLPIN:
		p.awake = false
	case SLPOUT:
		p.awake = true
	case INVOFF:
		p.inverted = false
	case INVON:
		p.inverted = true
	case DISPOFF:
		p.displayOn = false
	case DISPON:
		p.displayOn = true
	case RAMWR:
		p.x, p.y = p.x0, p.y0
	}
}

func (p *Panel) data(b []byte) {
	if len(p.log) == 0 {
		return
	}
	c := &p.log[len(p.log)-1]
	if c.Op == RAMWR {
		c.Pixels += p.pixels(b)
		return
	}
	c.Args = append(c.Args, b...)
	switch {
	case c.Op == CASET && len(c.Args) >= 4:
		p.x0 = int(c.Args[1] - xOffset)
		p.x1 = int(c.Args[3] - xOffset)
	case c.Op == RASET && len(c.Args) >= 4:
		p.y0 = int(c.Args[1] - yOffset)
		p.y1 = int(c.Args[3] - yOffset)
	case c.Op == MADCTL && len(c.Args) >= 1:
		p.madctl = c.Args[0]
	case c.Op == COLMOD && len(c.Args) >= 1:
		p.colmod = c.Args[0]
	}
}

// pixels writes b into the window in raster order and returns the number of
// complete pixels.
func (p *Panel) pixels(b []byte) int {
	if len(p.half) != 0 {
		b = append(p.half, b...)
		p.half = nil
	}
	n := 0
	for ; len(b) >= 2; b = b[2:] {
		p.fb.SetColor565(p.x, p.y, image565.Color(uint16(b[0])<<8|uint16(b[1])))
		n++
		if p.x++; p.x > p.x1 {
			p.x = p.x0
			if p.y++; p.y > p.y1 {
				p.y = p.y0
			}
		}
	}
	if len(b) != 0 {
		p.half = []byte{b[0]}
	}
	if n != 0 {
		p.dirty = true
	}
	return n
}

// line is a control line of the Panel.
type line struct {
	gpiotest.Pin
	p *Panel
}

func (l *line) String() string {
	return l.N
}

// Out implements gpio.PinOut.
func (l *line) Out(level gpio.Level) error {
	p := l.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.spend(); err != nil {
		return fmt.Errorf("%s: %w", l.N, err)
	}
	prev := l.L
	l.L = level
	switch l {
	case p.cs:
		p.csUsed = true
	case p.rst:
		if prev == gpio.High && level == gpio.Low {
			p.reset()
			p.notifyLocked()
		}
	}
	return nil
}

type spiConn struct {
	p *Panel
}

func (s *spiConn) String() string {
	return "st7735sim.SPI"
}

// Tx implements conn.Conn.
func (s *spiConn) Tx(w, r []byte) error {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.spend(); err != nil {
		return err
	}
	if len(r) != 0 {
		return errors.New("st7735sim: read is not supported")
	}
	if !p.selected() {
		return nil
	}
	p.tx++
	if p.dc.L == gpio.Low {
		for _, op := range w {
			p.command(op)
		}
	} else {
		p.data(w)
	}
	p.notifyLocked()
	return nil
}

// Duplex implements conn.Conn.
func (s *spiConn) Duplex() conn.Duplex {
	return conn.Half
}

// MaxTxSize implements conn.Limits.
func (s *spiConn) MaxTxSize() int {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return s.p.maxTxSize
}

var _ conn.Conn = &spiConn{}
var _ conn.Limits = &spiConn{}
var _ gpio.PinOut = &line{}
