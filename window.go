// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

// setWindow configures the target drawing area, both corners included, and
// starts a RAM write at (x0, y0). The controller then fills the window in
// raster order and wraps back to (x0, y0) after (x1, y1).
//
// Coordinates are 8 bits wide as the controller's and wrap around.
func setWindow(ctrl controller, x0, y0, x1, y1 uint8) {
	ctrl.sendCommand(caSet)
	ctrl.sendData([]byte{0x00, x0 + xOffset, 0x00, x1 + xOffset})

	ctrl.sendCommand(raSet)
	ctrl.sendData([]byte{0x00, y0 + yOffset, 0x00, y1 + yOffset})

	ctrl.sendCommand(ramWr)
}
