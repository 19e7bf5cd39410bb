// Package protocol frames JSON-RPC payloads on byte streams (TCP, Unix sockets).
//
// A stream has no message boundaries of its own, so the reader must know where one
// payload ends. Two framings are supported:
//
//	Raw:            {"jsonrpc":"2.0",...}{"jsonrpc":"2.0",...}
//	                └──── one JSON value ───┘ read until the value is complete
//
//	Content-Length: Content-Length: 42\r\n
//	                \r\n
//	                {"jsonrpc":"2.0",...}   exactly 42 bytes
//
// Raw is what plain JSON-RPC servers speak: the reader decodes until one complete JSON
// value is parseable. Content-Length is the header framing used by LSP-style servers.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
)

// Framing selects how payloads are delimited on a stream.
type Framing byte

const (
	FramingRaw           Framing = 0
	FramingContentLength Framing = 1
)

// MaxMessageSize bounds a single framed payload (64 MiB).
const MaxMessageSize = 64 << 20

var (
	ErrMessageTooLarge = errors.New("protocol: message exceeds maximum size")
	ErrMissingLength   = errors.New("protocol: missing Content-Length header")
)

// ParseFraming maps a configuration name onto a Framing.
func ParseFraming(name string) (Framing, error) {
	switch strings.ToLower(name) {
	case "", "raw":
		return FramingRaw, nil
	case "content-length", "header":
		return FramingContentLength, nil
	}
	return 0, fmt.Errorf("unknown framing %q", name)
}

func (f Framing) String() string {
	if f == FramingContentLength {
		return "content-length"
	}
	return "raw"
}

// Reader reads one framed payload at a time. A Reader keeps buffered state between
// calls, so exactly one Reader must be used per connection.
type Reader interface {
	ReadMessage() ([]byte, error)
}

// NewReader wraps r with the reader for framing, bounded by MaxMessageSize.
func NewReader(framing Framing, r io.Reader) Reader {
	return NewLimitedReader(framing, r, MaxMessageSize)
}

// NewLimitedReader is NewReader with a custom payload bound. A payload larger than
// max fails with ErrMessageTooLarge without being buffered in full.
func NewLimitedReader(framing Framing, r io.Reader, max int64) Reader {
	if framing == FramingContentLength {
		return &headerReader{r: bufio.NewReader(r), max: max}
	}
	src := &capReader{r: r}
	dec := json.NewDecoder(src)
	dec.UseNumber()
	return &rawReader{dec: dec, src: src, max: max}
}

// Encode writes a complete framed payload to w.
// The caller must hold exclusive use of w, otherwise payloads from different requests
// will interleave and corrupt the stream.
func Encode(w io.Writer, framing Framing, body []byte) error {
	if len(body) > MaxMessageSize {
		return ErrMessageTooLarge
	}

	if framing == FramingContentLength {
		buf := make([]byte, 0, len(body)+32)
		buf = append(buf, "Content-Length: "...)
		buf = strconv.AppendInt(buf, int64(len(body)), 10)
		buf = append(buf, "\r\n\r\n"...)
		buf = append(buf, body...)
		_, err := w.Write(buf)
		return err
	}

	_, err := w.Write(body)
	return err
}

// rawReader decodes until one complete JSON value has been read.
type rawReader struct {
	dec *json.Decoder
	src *capReader
	max int64
}

func (r *rawReader) ReadMessage() ([]byte, error) {
	// The decoder may not pull more than max bytes past the start of this value.
	r.src.limit = r.dec.InputOffset() + r.max + 1

	var raw json.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		// A syntax error leaves the stream at an unknown position; the connection
		// must not be reused.
		return nil, err
	}
	if int64(len(raw)) > r.max {
		return nil, ErrMessageTooLarge
	}
	return bytes.Clone(raw), nil
}

// capReader fails once limit bytes have been read from r in total.
type capReader struct {
	r     io.Reader
	read  int64
	limit int64
}

func (c *capReader) Read(p []byte) (int, error) {
	left := c.limit - c.read
	if left <= 0 {
		return 0, ErrMessageTooLarge
	}
	if int64(len(p)) > left {
		p = p[:left]
	}
	n, err := c.r.Read(p)
	c.read += int64(n)
	return n, err
}

// headerReader reads MIME-style headers, then exactly Content-Length body bytes.
type headerReader struct {
	r   *bufio.Reader
	max int64
}

func (r *headerReader) ReadMessage() ([]byte, error) {
	// Step 1: Read header lines up to the blank separator line
	tp := textproto.NewReader(r.r)
	header, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, err
	}

	// Step 2: Validate the length header
	value := header.Get("Content-Length")
	if value == "" {
		return nil, ErrMissingLength
	}
	length, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || length < 0 {
		return nil, fmt.Errorf("protocol: invalid Content-Length %q", value)
	}
	if length > r.max {
		return nil, ErrMessageTooLarge
	}

	// Step 3: Read exactly length bytes
	body := make([]byte, length)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, err
	}
	return body, nil
}
