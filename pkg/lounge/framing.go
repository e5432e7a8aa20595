package lounge

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// decoderState is the position of the FrameDecoder within the current frame.
type decoderState int

const (
	readingSize decoderState = iota
	readingContent
)

// FrameDecoder splits a bind response stream into text frames.
//
// Wire format, repeated:
//
//	<decimal byte length>\n<UTF-8 content of exactly that many bytes>
//
// Bytes are appended with Write as they arrive and complete frames are pulled
// with Next. The decoder never blocks; Next reports ok == false when more data
// is needed. State is kept across Write calls, so a frame split over any number
// of chunks decodes exactly like one delivered whole.
type FrameDecoder struct {
	buf      []byte
	state    decoderState
	expected int
	err      error
}

// NewFrameDecoder returns a decoder positioned at the start of a size header.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Write appends p to the internal buffer. It never fails.
func (d *FrameDecoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete frame. When ok is false and err is nil the
// caller should Write more bytes. Once an error is returned the decoder is
// poisoned and keeps returning it.
func (d *FrameDecoder) Next() (frame string, ok bool, err error) {
	if d.err != nil {
		return "", false, d.err
	}
	for {
		switch d.state {
		case readingSize:
			idx := bytes.IndexByte(d.buf, '\n')
			if idx < 0 {
				return "", false, nil
			}
			size, err := parseSizeHeader(d.buf[:idx])
			if err != nil {
				d.err = err
				return "", false, err
			}
			d.buf = d.buf[idx+1:]
			d.expected = size
			d.state = readingContent
		case readingContent:
			if len(d.buf) < d.expected {
				return "", false, nil
			}
			content := d.buf[:d.expected]
			if !utf8.Valid(content) {
				d.err = fmt.Errorf("%w: frame content is not valid UTF-8", ErrInvalidFraming)
				return "", false, d.err
			}
			frame = string(content)
			d.buf = d.buf[d.expected:]
			d.expected = 0
			d.state = readingSize
			return frame, true, nil
		}
	}
}

// Buffered returns the number of bytes held but not yet emitted.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

// Reset discards buffered data and any error.
func (d *FrameDecoder) Reset() {
	d.buf = nil
	d.state = readingSize
	d.expected = 0
	d.err = nil
}

func parseSizeHeader(header []byte) (int, error) {
	if len(header) == 0 {
		return 0, fmt.Errorf("%w: empty size header", ErrInvalidFraming)
	}
	if !utf8.Valid(header) {
		return 0, fmt.Errorf("%w: size header is not valid UTF-8", ErrInvalidFraming)
	}
	for _, b := range header {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("%w: non-digit %q in size header", ErrInvalidFraming, b)
		}
	}
	size, err := strconv.Atoi(string(header))
	if err != nil {
		return 0, fmt.Errorf("%w: size header %q: %v", ErrInvalidFraming, header, err)
	}
	return size, nil
}

// EncodeFrame renders content in the length-prefixed wire format. Servers and
// tests use it; the client itself only decodes.
func EncodeFrame(content string) []byte {
	out := make([]byte, 0, len(content)+8)
	out = strconv.AppendInt(out, int64(len(content)), 10)
	out = append(out, '\n')
	return append(out, content...)
}
