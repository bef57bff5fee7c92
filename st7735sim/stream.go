// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735sim

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"
)

// Format is the image format sent by a Stream.
type Format int

// Supported formats. PNG renders computer drawn graphics without artifacts.
const (
	PNG Format = iota
	JPEG
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "PNG"
	case JPEG:
		return "JPEG"
	default:
		return "Format(" + strconv.Itoa(int(f)) + ")"
	}
}

func (f Format) mimeType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat returns the Format for "png", "jpg" or "jpeg".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	default:
		return PNG, fmt.Errorf("st7735sim: unrecognized image format %q", s)
	}
}

// Stream is an HTTP handler sending the visible frame of a Panel as a
// "multipart/x-mixed-replace" stream (MJPEG), a new image on every change.
//
// Browsers show it as a live image. The "format" URL parameter overrides the
// default format: "?format=png", "?format=jpeg".
type Stream struct {
	p      *Panel
	format Format

	once sync.Once
	halt chan struct{}
}

// NewStream returns a Stream of p in the given default format.
func NewStream(p *Panel, format Format) *Stream {
	return &Stream{p: p, format: format, halt: make(chan struct{})}
}

func (s *Stream) String() string {
	return "st7735sim.Stream"
}

// Halt ends the running requests after their current image. Requests served
// afterward receive a single image.
func (s *Stream) Halt() error {
	s.once.Do(func() { close(s.halt) })
	return nil
}

// ServeHTTP implements http.Handler.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}
	format := s.format
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := ParseFormat(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		format = f
	}

	// Subscribe before the first image so no change is missed.
	changed, cancel := s.p.subscribe()
	defer cancel()

	pw := newPartWriter(w)
	w.Header().Set("Content-Type", mime.FormatMediaType("multipart/x-mixed-replace", map[string]string{"boundary": pw.boundary}))
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", format.mimeType())
	header.Set("Content-Transfer-Encoding", "binary")

	for {
		// There is no way to report an error within the stream; the request
		// ends.
		body, err := encode(format, s.p.Image())
		if err != nil {
			return
		}
		if err := pw.writePart(header, body); err != nil {
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-changed:
		case <-s.halt:
			return
		case <-r.Context().Done():
			return
		}
	}
}

type pngBufferPool sync.Pool

func (p *pngBufferPool) Get() *png.EncoderBuffer {
	b, _ := (*sync.Pool)(p).Get().(*png.EncoderBuffer)
	return b
}

func (p *pngBufferPool) Put(b *png.EncoderBuffer) {
	(*sync.Pool)(p).Put(b)
}

var pngEncoder = png.Encoder{
	CompressionLevel: png.BestSpeed,
	BufferPool:       &pngBufferPool{},
}

func encode(f Format, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case PNG:
		err = pngEncoder.Encode(&buf, img)
	case JPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	default:
		err = fmt.Errorf("st7735sim: unhandled image format %s", f)
	}
	return buf.Bytes(), err
}

// partWriter writes an unbounded sequence of MIME parts. mime/multipart only
// writes the closing delimiter of a part when the next one starts, so it
// cannot flush a complete image.
type partWriter struct {
	w        io.Writer
	boundary string
	started  bool
}

func newPartWriter(w io.Writer) *partWriter {
	// RFC 2046 5.1.1 allows up to 70 characters.
	var b [32]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic(err)
	}
	return &partWriter{w: w, boundary: fmt.Sprintf("%x", b[:])}
}

// writePart writes a complete part, including its closing delimiter.
func (p *partWriter) writePart(header textproto.MIMEHeader, body []byte) error {
	header.Set("Content-Length", strconv.Itoa(len(body)))
	var buf bytes.Buffer
	if !p.started {
		fmt.Fprintf(&buf, "--%s\r\n", p.boundary)
		p.started = true
	}
	for k, vs := range header {
		for _, v := range vs {
			fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
		}
	}
	buf.WriteString("\r\n")
	buf.Write(body)
	fmt.Fprintf(&buf, "\r\n--%s\r\n", p.boundary)
	_, err := buf.WriteTo(p.w)
	return err
}

var _ http.Handler = &Stream{}
