// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/GermanBionicSystems/st7735/glyph"
	"github.com/GermanBionicSystems/st7735/image565"
	"github.com/GermanBionicSystems/st7735/st7735sim"
)

var errBus = errors.New("bus failure")

// busLog records the line level changes and transactions in order.
type busLog struct {
	events []string
	tx     int
	// failTx is the 1-based index of the transaction to fail, 0 for none.
	failTx int
}

type logPin struct {
	gpiotest.Pin
	log  *busLog
	fail bool
}

func (p *logPin) Out(l gpio.Level) error {
	if p.fail {
		p.log.events = append(p.log.events, p.N+"!")
		return errBus
	}
	p.log.events = append(p.log.events, p.N+"="+l.String())
	return p.Pin.Out(l)
}

type logConn struct {
	log   *busLog
	limit int
}

func (c *logConn) String() string {
	return "logConn"
}

func (c *logConn) Tx(w, r []byte) error {
	c.log.tx++
	if c.log.tx == c.log.failTx {
		c.log.events = append(c.log.events, "tx!")
		return errBus
	}
	c.log.events = append(c.log.events, fmt.Sprintf("tx %x", w))
	return nil
}

func (c *logConn) Duplex() conn.Duplex {
	return conn.Half
}

func (c *logConn) MaxTxSize() int {
	return c.limit
}

func newLogDev(t *testing.T, limit int) (*Dev, *busLog, *logPin, *logPin) {
	l := &busLog{}
	dc := &logPin{Pin: gpiotest.Pin{N: "DC"}, log: l}
	cs := &logPin{Pin: gpiotest.Pin{N: "CS"}, log: l}
	opts := DefaultOpts
	opts.Bus = Bus{C: &logConn{log: l, limit: limit}, DC: dc, CS: cs}
	opts.Sleep = func(time.Duration) {}
	d := New()
	if err := d.Configure(&opts); err != nil {
		t.Fatal(err)
	}
	return d, l, dc, cs
}

type simRig struct {
	panel  *st7735sim.Panel
	dev    *Dev
	sleeps []time.Duration
}

func newSim(t *testing.T, opts Opts) *simRig {
	r := &simRig{panel: st7735sim.NewPanel(opts.W, opts.H)}
	opts.Bus = Bus{
		C:   r.panel.Conn(),
		DC:  r.panel.DC(),
		CS:  r.panel.CS(),
		RST: r.panel.RST(),
	}
	opts.Sleep = func(d time.Duration) {
		r.sleeps = append(r.sleeps, d)
	}
	r.dev = New()
	if err := r.dev.Configure(&opts); err != nil {
		t.Fatal(err)
	}
	return r
}

func newBroughtUp(t *testing.T) *simRig {
	r := newSim(t, DefaultOpts)
	if err := r.dev.BringUp(); err != nil {
		t.Fatal(err)
	}
	r.sleeps = nil
	r.panel.ClearCommands()
	return r
}

func TestNullHandle(t *testing.T) {
	for _, d := range []*Dev{nil, New()} {
		for name, f := range map[string]func() error{
			"BringUp":       d.BringUp,
			"RunOps":        func() error { return d.RunOps(InitWindow) },
			"Halt":          d.Halt,
			"Invert":        func() error { return d.Invert(true) },
			"SetSleep":      func() error { return d.SetSleep(true) },
			"Fill":          func() error { return d.Fill(image565.Red) },
			"DrawPixel":     func() error { return d.DrawPixel(0, 0, image565.Red) },
			"DrawLine":      func() error { return d.DrawLine(0, 0, 1, 1, image565.Red) },
			"DrawRectangle": func() error { return d.DrawRectangle(0, 0, 1, 1, image565.Red) },
			"DrawCircle":    func() error { return d.DrawCircle(5, 5, 1, image565.Red) },
			"DrawImage":     func() error { return d.DrawImage(0, 0, 1, 1, []byte{0, 0}) },
			"WriteChar":     func() error { return d.WriteChar(glyph.Small, 'a', image565.Red) },
			"WriteString":   func() error { return d.WriteString(glyph.Small, "a", image565.Red) },
			"SetCursor":     func() error { return d.SetCursor(1, 1) },
			"Cursor": func() error {
				_, _, err := d.Cursor()
				return err
			},
			"Draw":    func() error { return d.Draw(image.Rect(0, 0, 1, 1), image.Black, image.Point{}) },
			"Display": d.Display,
		} {
			if err := f(); !errors.Is(err, ErrNullHandle) {
				t.Errorf("%s() = %v, want ErrNullHandle", name, err)
			}
		}
		if got := d.Bounds(); !got.Empty() {
			t.Errorf("Bounds() = %v", got)
		}
		if got := d.String(); got != "st7735.Dev{}" {
			t.Errorf("String() = %q", got)
		}
	}
	var d *Dev
	if err := d.Configure(&DefaultOpts); !errors.Is(err, ErrNullHandle) {
		t.Errorf("Configure() = %v", err)
	}
}

func TestConfigureInvalid(t *testing.T) {
	panel := st7735sim.NewPanel(1, 1)
	bus := Bus{C: panel.Conn(), DC: panel.DC()}
	for _, tc := range []struct {
		name string
		opts Opts
	}{
		{"zero width", Opts{W: 0, H: 10, Bus: bus}},
		{"wide", Opts{W: 257, H: 10, Bus: bus}},
		{"zero height", Opts{W: 10, H: 0, Bus: bus}},
		{"tall", Opts{W: 10, H: 300, Bus: bus}},
		{"no conn", Opts{W: 10, H: 10, Bus: Bus{DC: panel.DC()}}},
		{"no dc", Opts{W: 10, H: 10, Bus: Bus{C: panel.Conn()}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := New()
			if err := d.Configure(&tc.opts); err == nil {
				t.Fatal("expected error")
			}
			if err := d.Fill(image565.Black); !errors.Is(err, ErrNullHandle) {
				t.Fatalf("Fill() = %v", err)
			}
		})
	}
	if err := New().Configure(&Opts{W: 256, H: 1, Bus: bus}); err != nil {
		t.Fatal(err)
	}
}

func TestNewSPI(t *testing.T) {
	record := &spitest.Record{}
	dc := &gpiotest.Pin{N: "DC", L: gpio.High}
	d, err := NewSPI(record, dc, gpio.INVALID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.bus.CS != nil || d.bus.RST != nil {
		t.Fatalf("unexpected optional pins: %v", d.bus)
	}
	if got := d.Bounds(); got != image.Rect(0, 0, 128, 128) {
		t.Fatalf("Bounds() = %v", got)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(record.Ops, []conntest.IO{{W: []byte{dispOff}}}); diff != "" {
		t.Errorf("Halt() difference (-got +want):\n%s", diff)
	}
	if dc.L != gpio.Low {
		t.Error("DC not Low after a command")
	}
	if _, err := NewSPI(record, nil, nil, nil, nil); err == nil {
		t.Error("expected error without DC")
	}
}

func TestEnvelope(t *testing.T) {
	d, l, _, _ := newLogDev(t, 0)
	if err := d.DrawPixel(1, 2, image565.Red); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"CS=Low",
		"DC=Low", "tx 2a", "DC=High", "tx 00030004",
		"DC=Low", "tx 2b", "DC=High", "tx 00050006",
		"DC=Low", "tx 2c", "DC=High", "tx f800",
		"CS=High",
	}
	if diff := cmp.Diff(l.events, want); diff != "" {
		t.Errorf("DrawPixel() difference (-got +want):\n%s", diff)
	}
}

func TestTransportFailure(t *testing.T) {
	d, l, _, _ := newLogDev(t, 0)
	l.failTx = 3
	err := d.DrawLine(0, 0, 10, 10, image565.Red)
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "tx" || !errors.Is(err, errBus) {
		t.Fatalf("DrawLine() = %v", err)
	}
	want := []string{
		"CS=Low",
		"DC=Low", "tx 2a", "DC=High", "tx 000c000d",
		"DC=Low", "tx!",
		"CS=High",
	}
	if diff := cmp.Diff(l.events, want); diff != "" {
		t.Errorf("DrawLine() difference (-got +want):\n%s", diff)
	}
}

func TestPinFailure(t *testing.T) {
	d, l, dc, _ := newLogDev(t, 0)
	dc.fail = true
	err := d.Fill(image565.Red)
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "dc" {
		t.Fatalf("Fill() = %v", err)
	}
	if diff := cmp.Diff(l.events, []string{"CS=Low", "DC!", "CS=High"}); diff != "" {
		t.Errorf("Fill() difference (-got +want):\n%s", diff)
	}
}

func TestChipSelectFailure(t *testing.T) {
	d, l, _, cs := newLogDev(t, 0)
	cs.fail = true
	err := d.Halt()
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "cs" {
		t.Fatalf("Halt() = %v", err)
	}
	if l.tx != 0 {
		t.Errorf("got %d transactions", l.tx)
	}
}

func TestChunking(t *testing.T) {
	d, l, _, _ := newLogDev(t, 3)
	if err := d.DrawImage(0, 0, 2, 1, []byte{0xF8, 0x00, 0xFF, 0xE0}); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"CS=Low",
		"DC=Low", "tx 2a", "DC=High", "tx 000200", "tx 03",
		"DC=Low", "tx 2b", "DC=High", "tx 000300", "tx 03",
		"DC=Low", "tx 2c", "DC=High", "tx f800ff", "tx e0",
		"CS=High",
	}
	if diff := cmp.Diff(l.events, want); diff != "" {
		t.Errorf("DrawImage() difference (-got +want):\n%s", diff)
	}
}

func TestBringUp(t *testing.T) {
	r := newSim(t, DefaultOpts)
	if err := r.dev.BringUp(); err != nil {
		t.Fatal(err)
	}
	want := []time.Duration{
		5 * time.Millisecond,
		150 * time.Millisecond,
		500 * time.Millisecond,
		10 * time.Millisecond,
		100 * time.Millisecond,
	}
	if diff := cmp.Diff(r.sleeps, want); diff != "" {
		t.Errorf("sleeps difference (-got +want):\n%s", diff)
	}
	ops := []byte{
		swReset, slpOut, frmCtr1, frmCtr2, frmCtr3, invCtr,
		pwCtr1, pwCtr2, pwCtr3, pwCtr4, pwCtr5, vmCtr1,
		invOff, madCtl, colMod,
		caSet, raSet,
		gmCtrP1, gmCtrN1, norOn, dispOn,
	}
	if diff := cmp.Diff(r.panel.Ops(), ops); diff != "" {
		t.Errorf("Ops() difference (-got +want):\n%s", diff)
	}
	if !r.panel.Awake() || !r.panel.DisplayOn() {
		t.Error("panel not running")
	}
	if r.panel.MADCTL() != 0xC8 || r.panel.COLMOD() != 0x05 {
		t.Errorf("MADCTL %#x COLMOD %#x", r.panel.MADCTL(), r.panel.COLMOD())
	}
}

func TestBringUpMalformed(t *testing.T) {
	opts := DefaultOpts
	opts.Init = [][]byte{InitPowerOn, {2, dispOn, 0}}
	r := newSim(t, opts)
	if err := r.dev.BringUp(); !errors.Is(err, ErrMalformedOps) {
		t.Fatalf("BringUp() = %v", err)
	}
	if n := r.panel.Transactions(); n != 0 {
		t.Fatalf("got %d transactions", n)
	}
	if len(r.sleeps) != 0 {
		t.Fatalf("unexpected sleeps %v", r.sleeps)
	}
}

func TestDevRunOps(t *testing.T) {
	r := newBroughtUp(t)
	stream, err := EncodeOps([]Command{
		{Cmd: invOn},
		{Cmd: madCtl, Args: []byte{0x08}, Delay: 20 * time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.dev.RunOps(stream); err != nil {
		t.Fatal(err)
	}
	if !r.panel.Inverted() || r.panel.MADCTL() != 0x08 {
		t.Error("op-stream not applied")
	}
	if diff := cmp.Diff(r.sleeps, []time.Duration{20 * time.Millisecond}); diff != "" {
		t.Errorf("sleeps difference (-got +want):\n%s", diff)
	}
	if err := r.dev.RunOps([]byte{1}); !errors.Is(err, ErrMalformedOps) {
		t.Errorf("RunOps() = %v", err)
	}
}

func TestModes(t *testing.T) {
	r := newBroughtUp(t)
	if err := r.dev.Invert(true); err != nil {
		t.Fatal(err)
	}
	if !r.panel.Inverted() {
		t.Error("Invert(true) ignored")
	}
	if err := r.dev.Invert(false); err != nil {
		t.Fatal(err)
	}
	if r.panel.Inverted() {
		t.Error("Invert(false) ignored")
	}
	if err := r.dev.SetSleep(true); err != nil {
		t.Fatal(err)
	}
	if r.panel.Awake() {
		t.Error("SetSleep(true) ignored")
	}
	if err := r.dev.SetSleep(false); err != nil {
		t.Fatal(err)
	}
	if !r.panel.Awake() {
		t.Error("SetSleep(false) ignored")
	}
	if diff := cmp.Diff(r.sleeps, []time.Duration{120 * time.Millisecond}); diff != "" {
		t.Errorf("sleeps difference (-got +want):\n%s", diff)
	}
	if err := r.dev.Halt(); err != nil {
		t.Fatal(err)
	}
	if r.panel.DisplayOn() {
		t.Error("Halt() ignored")
	}
	if err := r.dev.SetDisplay(true); err != nil {
		t.Fatal(err)
	}
	if !r.panel.DisplayOn() {
		t.Error("SetDisplay(true) ignored")
	}
}

func TestFillScreen(t *testing.T) {
	r := newBroughtUp(t)
	if err := r.dev.Fill(image565.Red); err != nil {
		t.Fatal(err)
	}
	f := r.panel.Frame()
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			if c := f.Color565At(x, y); c != image565.Red {
				t.Fatalf("(%d, %d) = %#04x", x, y, c)
			}
		}
	}
	c := r.panel.Commands()
	if got := c[len(c)-1].Pixels; got != 128*128 {
		t.Fatalf("got %d pixels", got)
	}
}

func TestShapes(t *testing.T) {
	r := newBroughtUp(t)
	if err := r.dev.DrawRectangle(10, 10, 20, 5, image565.Green); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.DrawCircle(64, 64, 10, image565.Blue); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.DrawLine(0, 127, 127, 0, image565.White); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		x, y int
		want image565.Color
	}{
		{10, 10, image565.Green},
		{30, 15, image565.Green},
		{20, 12, image565.Black},
		{74, 64, image565.Blue},
		{64, 54, image565.Blue},
		{64, 64, image565.Black},
		{0, 127, image565.White},
		{127, 0, image565.White},
	} {
		if got := r.panel.At(tc.x, tc.y); got != tc.want {
			t.Errorf("(%d, %d) = %#04x, want %#04x", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestDrawImage(t *testing.T) {
	r := newBroughtUp(t)
	img := image565.New(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetColor565(x, y, image565.Color(0x1000*y+x+1))
		}
	}
	if err := r.dev.DrawImage(10, 20, 4, 3, img.Pix); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			if got, want := r.panel.At(10+x, 20+y), img.Color565At(x, y); got != want {
				t.Errorf("(%d, %d) = %#04x, want %#04x", x, y, got, want)
			}
		}
	}

	n := r.panel.Transactions()
	if err := r.dev.DrawImage(0, 0, 4, 4, img.Pix); err == nil {
		t.Error("expected error on short buffer")
	}
	if err := r.dev.DrawImage(0, 0, 0, 3, nil); err != nil {
		t.Error(err)
	}
	if got := r.panel.Transactions(); got != n {
		t.Errorf("got %d transactions, want none", got-n)
	}
}

func TestDraw(t *testing.T) {
	r := newBroughtUp(t)
	red := image.NewUniform(color.RGBA{R: 255, A: 255})
	// Clipped to the screen.
	if err := r.dev.Draw(image.Rect(120, 120, 140, 140), red, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if got := r.panel.At(127, 127); got != image565.Red {
		t.Errorf("(127, 127) = %#04x", got)
	}
	if got := r.panel.At(119, 119); got != image565.Black {
		t.Errorf("(119, 119) = %#04x", got)
	}

	src := image565.New(r.dev.Bounds())
	src.SetColor565(5, 6, image565.Cyan)
	if err := r.dev.Draw(image.Rect(0, 0, 10, 10), src, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if got := r.panel.At(5, 6); got != image565.Cyan {
		t.Errorf("(5, 6) = %#04x", got)
	}

	n := r.panel.Transactions()
	if err := r.dev.Draw(image.Rect(200, 200, 210, 210), red, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if got := r.panel.Transactions(); got != n {
		t.Error("empty area sent traffic")
	}
}

func TestDrawClipped(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 20, 20))
	rgba.Set(10, 10, color.RGBA{R: 255, A: 255})
	packed := image565.New(image.Rect(0, 0, 20, 20))
	packed.SetColor565(10, 10, image565.Red)

	for _, tc := range []struct {
		name string
		r    image.Rectangle
		src  image.Image
		sp   image.Point
		// on is the screen pixel showing the source pixel (10, 10).
		on  image.Point
		off image.Point
	}{
		{"top left", image.Rect(-10, -10, 10, 10), rgba, image.Point{}, image.Pt(0, 0), image.Pt(10, 10)},
		{"top left packed", image.Rect(-10, -10, 10, 10), packed, image.Point{}, image.Pt(0, 0), image.Pt(10, 10)},
		{"source offset", image.Rect(-5, 30, 5, 40), rgba, image.Pt(5, 5), image.Pt(0, 35), image.Pt(5, 35)},
		{"source offset packed", image.Rect(30, 30, 35, 35), packed, image.Pt(8, 8), image.Pt(32, 32), image.Pt(30, 30)},
		{"bottom right packed", image.Rect(118, 118, 138, 138), packed, image.Point{}, image.Pt(128, 128), image.Pt(118, 118)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := newBroughtUp(t)
			if err := r.dev.Draw(tc.r, tc.src, tc.sp); err != nil {
				t.Fatal(err)
			}
			if tc.on.In(r.dev.Bounds()) {
				if got := r.panel.At(tc.on.X, tc.on.Y); got != image565.Red {
					t.Errorf("%v = %#04x, want red", tc.on, got)
				}
			}
			if got := r.panel.At(tc.off.X, tc.off.Y); got != image565.Black {
				t.Errorf("%v = %#04x, want black", tc.off, got)
			}
		})
	}
}

func TestText(t *testing.T) {
	opts := DefaultOpts
	opts.Font = glyph.Table{
		glyph.Small: {'a': {Width: 2, Height: 1, Data: []byte{0xC0}}},
	}
	r := newSim(t, opts)
	if err := r.dev.BringUp(); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.SetCursor(3, 4); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.WriteString(glyph.Small, "aa", image565.White); err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 10; x++ {
		want := image565.Black
		if x == 3 || x == 4 || x == 6 || x == 7 {
			want = image565.White
		}
		if got := r.panel.At(x, 4); got != want {
			t.Errorf("(%d, 4) = %#04x, want %#04x", x, got, want)
		}
	}
	x, y, err := r.dev.Cursor()
	if err != nil {
		t.Fatal(err)
	}
	if x != 9 || y != 4 {
		t.Errorf("Cursor() = %d, %d", x, y)
	}
	// Unknown glyphs do not move the cursor.
	if err := r.dev.WriteChar(glyph.Large, 'a', image565.White); err != nil {
		t.Fatal(err)
	}
	if x, _, _ := r.dev.Cursor(); x != 9 {
		t.Errorf("Cursor() = %d", x)
	}
}

func TestTextBasicFont(t *testing.T) {
	r := newBroughtUp(t)
	if err := r.dev.SetCursor(250, 0); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.WriteChar(glyph.Small, 'A', image565.White); err != nil {
		t.Fatal(err)
	}
	// 7 pixels wide, 1 byte per row; wraps at 256.
	if x, y, _ := r.dev.Cursor(); x != 2 || y != 0 {
		t.Errorf("Cursor() = %d, %d", x, y)
	}
}

func TestCursor(t *testing.T) {
	r := newBroughtUp(t)
	n := r.panel.Transactions()
	for _, p := range [][2]uint8{{0, 0}, {200, 17}, {255, 255}} {
		if err := r.dev.SetCursor(p[0], p[1]); err != nil {
			t.Fatal(err)
		}
		x, y, err := r.dev.Cursor()
		if err != nil {
			t.Fatal(err)
		}
		if x != p[0] || y != p[1] {
			t.Errorf("Cursor() = %d, %d, want %d, %d", x, y, p[0], p[1])
		}
	}
	if got := r.panel.Transactions(); got != n {
		t.Errorf("got %d transactions", got-n)
	}
}

func TestInjectedFailure(t *testing.T) {
	r := newBroughtUp(t)
	r.panel.FailAfter(5)
	err := r.dev.Fill(image565.Red)
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(err, st7735sim.ErrInjected) {
		t.Fatalf("Fill() = %v", err)
	}
}

func TestString(t *testing.T) {
	r := newSim(t, DefaultOpts)
	want := "st7735.Dev{st7735sim.SPI, st7735sim.DC, 128x128}"
	if got := r.dev.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if r.dev.ColorModel() != image565.Model {
		t.Error("unexpected color model")
	}
}
