// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import (
	"fmt"
	"image/color"

	"periph.io/x/conn/v3"
	"tinygo.org/x/drivers"

	"github.com/GermanBionicSystems/st7735/image565"
)

// Size implements drivers.Displayer.
func (d *Dev) Size() (x, y int16) {
	if d == nil {
		return 0, 0
	}
	return int16(d.w), int16(d.h)
}

// SetPixel implements drivers.Displayer.
//
// The pixel is sent right away. Pixels outside the screen are ignored. The
// first error is kept and returned by Display.
func (d *Dev) SetPixel(x, y int16, c color.RGBA) {
	if !d.configured() {
		return
	}
	if x < 0 || y < 0 || int(x) >= d.w || int(y) >= d.h {
		return
	}
	err := d.DrawPixel(uint8(x), uint8(y), image565.RGB(c.R, c.G, c.B))
	if d.pixelErr == nil {
		d.pixelErr = err
	}
}

// Display implements drivers.Displayer.
//
// Pixels are already on the screen; it returns and clears the first error of
// SetPixel.
func (d *Dev) Display() error {
	if !d.configured() {
		return ErrNullHandle
	}
	err := d.pixelErr
	d.pixelErr = nil
	return err
}

// TinyGoConn adapts a tinygo SPI bus to conn.Conn so it can be used as
// Bus.C.
func TinyGoConn(bus drivers.SPI) conn.Conn {
	return &tinyGoConn{bus: bus}
}

type tinyGoConn struct {
	bus drivers.SPI
}

func (t *tinyGoConn) String() string {
	return fmt.Sprintf("tinygo(%v)", t.bus)
}

func (t *tinyGoConn) Tx(w, r []byte) error {
	return t.bus.Tx(w, r)
}

func (t *tinyGoConn) Duplex() conn.Duplex {
	return conn.Full
}

var _ drivers.Displayer = &Dev{}
