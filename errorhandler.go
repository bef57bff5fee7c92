// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// errorHandler is a wrapper for error management.
//
// Once a step failed, every following step is a no-op so a sequence stops
// touching the bus at the first failure.
type errorHandler struct {
	d   *Dev
	cmd [1]byte
	err error
}

func (eh *errorHandler) pinOut(op string, p gpio.PinOut, l gpio.Level) {
	if eh.err != nil || p == nil {
		return
	}
	if err := p.Out(l); err != nil {
		eh.err = &TransportError{Op: op, Err: err}
	}
}

func (eh *errorHandler) csOut(l gpio.Level) {
	eh.pinOut("cs", eh.d.bus.CS, l)
}

func (eh *errorHandler) dcOut(l gpio.Level) {
	eh.pinOut("dc", eh.d.bus.DC, l)
}

func (eh *errorHandler) rstOut(l gpio.Level) {
	eh.pinOut("rst", eh.d.bus.RST, l)
}

// cTx sends w, split in transactions no larger than the connection accepts.
func (eh *errorHandler) cTx(w []byte) {
	for len(w) != 0 && eh.err == nil {
		chunk := w
		if len(chunk) > eh.d.maxTxSize {
			chunk = w[:eh.d.maxTxSize]
		}
		w = w[len(chunk):]
		if err := eh.d.bus.C.Tx(chunk, nil); err != nil {
			eh.err = &TransportError{Op: "tx", Err: err}
		}
	}
}

func (eh *errorHandler) sendCommand(cmd byte) {
	if eh.err != nil {
		return
	}
	eh.dcOut(gpio.Low)
	eh.cmd[0] = cmd
	eh.cTx(eh.cmd[:])
}

func (eh *errorHandler) sendData(data []byte) {
	if eh.err != nil || len(data) == 0 {
		return
	}
	eh.dcOut(gpio.High)
	eh.cTx(data)
}

func (eh *errorHandler) sleep(d time.Duration) {
	if eh.err != nil {
		return
	}
	eh.d.sleep(d)
}
