// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import (
	"errors"
	"fmt"
	"time"
)

// Command is one record of an op-stream.
type Command struct {
	Cmd  byte
	Args []byte
	// Delay to wait after the command. Only 0 to 254ms in whole
	// milliseconds, and 500ms, can be encoded.
	Delay time.Duration
}

// ParseOps decodes an op-stream.
//
// The layout is a record count followed by that many records of
// {opcode, flags, args[flags&0x7F], [delay]}. When bit 7 of flags is set, a
// delay byte in milliseconds follows the arguments; 255 stands for 500ms.
// Bytes after the last record are ignored.
//
// A delay byte of 0 is parsed as no delay, so the command does not sleep and
// EncodeOps writes it back without the delay flag; that round trip is not
// byte for byte.
//
// The returned Args alias stream.
func ParseOps(stream []byte) ([]Command, error) {
	if len(stream) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedOps)
	}
	n := int(stream[0])
	cmds := make([]Command, 0, n)
	p := 1
	for i := 0; i < n; i++ {
		if p+2 > len(stream) {
			return nil, fmt.Errorf("%w: record %d of %d is truncated", ErrMalformedOps, i, n)
		}
		c := Command{Cmd: stream[p]}
		flags := stream[p+1]
		p += 2
		if l := int(flags &^ opDelay); l != 0 {
			if p+l > len(stream) {
				return nil, fmt.Errorf("%w: command %#02x expects %d args, %d left", ErrMalformedOps, c.Cmd, l, len(stream)-p)
			}
			c.Args = stream[p : p+l : p+l]
			p += l
		}
		if flags&opDelay != 0 {
			if p >= len(stream) {
				return nil, fmt.Errorf("%w: command %#02x is missing its delay", ErrMalformedOps, c.Cmd)
			}
			ms := int(stream[p])
			if stream[p] == opDelay500 {
				ms = 500
			}
			c.Delay = time.Duration(ms) * time.Millisecond
			p++
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}

// EncodeOps encodes commands as an op-stream understood by ParseOps and
// Dev.RunOps. The delay flag is only set for a non zero Delay.
func EncodeOps(cmds []Command) ([]byte, error) {
	if len(cmds) > 255 {
		return nil, fmt.Errorf("st7735: too many commands: %d", len(cmds))
	}
	out := []byte{byte(len(cmds))}
	for _, c := range cmds {
		if len(c.Args) > 0x7F {
			return nil, fmt.Errorf("st7735: command %#02x has %d args, max is 127", c.Cmd, len(c.Args))
		}
		flags := byte(len(c.Args))
		var delay []byte
		switch ms := c.Delay / time.Millisecond; {
		case c.Delay == 0:
		case c.Delay == 500*time.Millisecond:
			flags |= opDelay
			delay = []byte{opDelay500}
		case c.Delay%time.Millisecond != 0 || ms < 0 || ms >= time.Duration(opDelay500):
			return nil, errors.New("st7735: cannot encode delay " + c.Delay.String())
		default:
			flags |= opDelay
			delay = []byte{byte(ms)}
		}
		out = append(out, c.Cmd, flags)
		out = append(out, c.Args...)
		out = append(out, delay...)
	}
	return out, nil
}

func runOps(ctrl controller, cmds []Command) {
	for _, c := range cmds {
		ctrl.sendCommand(c.Cmd)
		ctrl.sendData(c.Args)
		if c.Delay != 0 {
			ctrl.sleep(c.Delay)
		}
	}
}
