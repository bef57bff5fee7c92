// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Commands
const (
	swReset byte = 0x01
	slpIn   byte = 0x10
	slpOut  byte = 0x11
	norOn   byte = 0x13
	invOff  byte = 0x20
	invOn   byte = 0x21
	dispOff byte = 0x28
	dispOn  byte = 0x29
	caSet   byte = 0x2A
	raSet   byte = 0x2B
	ramWr   byte = 0x2C
	madCtl  byte = 0x36
	colMod  byte = 0x3A
	frmCtr1 byte = 0xB1
	frmCtr2 byte = 0xB2
	frmCtr3 byte = 0xB3
	invCtr  byte = 0xB4
	pwCtr1  byte = 0xC0
	pwCtr2  byte = 0xC1
	pwCtr3  byte = 0xC2
	pwCtr4  byte = 0xC3
	pwCtr5  byte = 0xC4
	vmCtr1  byte = 0xC5
	gmCtrP1 byte = 0xE0
	gmCtrN1 byte = 0xE1
)

// MADCTL bits.
const (
	madCtlMY  byte = 0x80
	madCtlMX  byte = 0x40
	madCtlBGR byte = 0x08
)

// Offsets of the visible area within the controller RAM.
const (
	xOffset = 2
	yOffset = 3
)

const (
	// opDelay flags a record followed by a delay byte.
	opDelay byte = 0x80
	// opDelay500 is the delay byte value meaning 500ms.
	opDelay500 byte = 255
)

// InitPowerOn is the first bring-up op-stream: software reset, sleep out,
// frame rate and power tuning, memory access order and 16 bits color mode.
var InitPowerOn = []byte{
	15,
	swReset, opDelay, 150,
	slpOut, opDelay, opDelay500,
	frmCtr1, 3, 0x01, 0x2C, 0x2D, // Normal mode
	frmCtr2, 3, 0x01, 0x2C, 0x2D, // Idle mode
	frmCtr3, 6, 0x01, 0x2C, 0x2D, 0x01, 0x2C, 0x2D, // Partial mode
	invCtr, 1, 0x07, // No inversion
	pwCtr1, 3, 0xA2, 0x02, 0x84, // -4.6V, auto mode
	pwCtr2, 1, 0xC5, // VGH25 = 2.4C, VGSEL = -10, VGH = 3 * AVDD
	pwCtr3, 2, 0x0A, 0x00, // Opamp current small, boost frequency
	pwCtr4, 2, 0x8A, 0x2A, // BCLK/2, opamp current small & medium low
	pwCtr5, 2, 0x8A, 0xEE,
	vmCtr1, 1, 0x0E,
	invOff, 0,
	madCtl, 1, madCtlMX | madCtlMY | madCtlBGR,
	colMod, 1, 0x05, // 16 bits per pixel
}

// InitWindow is the second bring-up op-stream: a 128x128 active window.
var InitWindow = []byte{
	2,
	caSet, 4, 0x00, 0x00, 0x00, 0x7F,
	raSet, 4, 0x00, 0x00, 0x00, 0x7F,
}

// InitDisplayOn is the last bring-up op-stream: gamma correction, normal
// display mode and display on.
var InitDisplayOn = []byte{
	4,
	gmCtrP1, 16,
	0x02, 0x1c, 0x07, 0x12, 0x37, 0x32, 0x29, 0x2d,
	0x29, 0x25, 0x2B, 0x39, 0x00, 0x01, 0x03, 0x10,
	gmCtrN1, 16,
	0x03, 0x1d, 0x07, 0x06, 0x2E, 0x2C, 0x29, 0x2D,
	0x2E, 0x2E, 0x37, 0x3F, 0x00, 0x00, 0x02, 0x10,
	norOn, opDelay, 10,
	dispOn, opDelay, 100,
}

type controller interface {
	sendCommand(byte)
	sendData([]byte)
	sleep(time.Duration)
}

// resetPulse is the hardware reset: RST low for 5ms.
const resetPulse = 5 * time.Millisecond

func bringUp(eh *errorHandler, seqs [][]Command) {
	if eh.d.bus.RST != nil {
		eh.rstOut(gpio.Low)
		eh.sleep(resetPulse)
		eh.rstOut(gpio.High)
	}
	for _, ops := range seqs {
		runOps(eh, ops)
	}
}
