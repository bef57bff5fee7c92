// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package st7735 controls a 16 bits color TFT LCD via a Sitronix ST7735
// controller, as found on the common 128x128 1.44" and 128x160 1.8" boards.
//
// The controller is driven over a write-only 4 wires SPI bus: clock, data,
// DC to select between command and data bytes, and an optional CS. An
// optional RST line triggers a hardware reset.
//
// The driver keeps no framebuffer. Every drawing primitive sets a window in
// the controller RAM and streams 5-6-5 pixels into it; use image565.Image to
// compose a frame in memory and Dev.Draw or Dev.DrawImage to send it in a
// single burst.
//
// Coordinates are 8 bits wide, like the controller's. Arithmetic on them
// wraps around at 256 and is not clipped to the screen.
//
// Bring-up sequences are encoded as op-streams, see ParseOps. InitPowerOn,
// InitWindow and InitDisplayOn match the boards above; pass your own in
// Opts.Init for other panels.
//
// # Datasheet
//
// https://www.displayfuture.com/Display/datasheet/controller/ST7735.pdf
package st7735
