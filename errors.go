// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import "errors"

var (
	// ErrNullHandle is returned by every operation on a nil *Dev or on a Dev
	// that was never configured.
	ErrNullHandle = errors.New("st7735: device is not configured")
	// ErrMalformedOps is returned when a command op-stream is truncated.
	ErrMalformedOps = errors.New("st7735: malformed op-stream")
)

// TransportError reports a failure of the bus transport: a level change on
// one of the control lines or a SPI transaction.
//
// A drawing operation that fails with a TransportError may already have
// written part of its pixels. The controller state should be considered
// inconsistent; calling BringUp again restores a known state.
type TransportError struct {
	// Op is the failing step: "cs", "dc", "rst" or "tx".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "st7735: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
