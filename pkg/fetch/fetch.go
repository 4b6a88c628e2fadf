// Package fetch sends a fixed GET / over an established connection and reads back whatever
// comes, without interpreting it as HTTP.
package fetch

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
)

const DefaultBufferSize = 4096

// WriteError is a failure sending the request.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("writing request: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// ReadError is a failure reading the response. Whatever was read before it is still returned.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("reading response: %v", e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// Request renders the request line and headers sent to every host.
func Request(hostHeader string) []byte {
	return []byte(fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", hostHeader))
}

type Response struct {
	Request []byte

	Raw   []byte
	Text  string
	Reads int

	// Bytes dropped from Text because they weren't valid utf-8
	Skipped int

	// Why reading stopped
	EOF       bool
	ShortRead bool

	CompleteTime time.Time
}

type Handler struct {
	log        logr.Logger
	bufferSize int
}

func NewHandler(log logr.Logger, bufferSize int) *Handler {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Handler{log: log.WithName("fetch"), bufferSize: bufferSize}
}

// Fetch writes the request to conn and accumulates the reply. It stops reading at the first of
// - a read that returns fewer bytes than the buffer holds
// - io.EOF
// - any other read error, which is returned as a *ReadError along with the partial response
//
// The short-read rule is a heuristic: a server that pauses mid-response, or that sends exactly
// a multiple of the buffer size and then holds the connection open, defeats it. Sending
// "Connection: close" means well-behaved servers end the stream, which catches the latter.
func (h *Handler) Fetch(conn io.ReadWriter, hostHeader string) (*Response, error) {
	resp := &Response{Request: Request(hostHeader)}

	if err := writeAll(conn, resp.Request); err != nil {
		return resp, &WriteError{Err: err}
	}
	h.log.V(1).Info("Sent request", "bytes", len(resp.Request), "host", hostHeader)

	buf := make([]byte, h.bufferSize)
	for {
		n, err := conn.Read(buf)
		resp.Reads++
		resp.Raw = append(resp.Raw, buf[:n]...)
		h.log.V(2).Info("Read", "bytes", n, "error", err)

		if errors.Is(err, io.EOF) {
			resp.EOF = true
			break
		}
		if err != nil {
			h.finish(resp)
			return resp, &ReadError{Err: err}
		}
		if n < len(buf) {
			resp.ShortRead = true
			break
		}
	}

	h.finish(resp)
	h.log.V(1).Info("Response complete", "bytes", len(resp.Raw), "reads", resp.Reads, "eof", resp.EOF)

	return resp, nil
}

func (h *Handler) finish(resp *Response) {
	resp.Text, resp.Skipped = DecodeLossy(resp.Raw)
	resp.CompleteTime = time.Now()
}

func writeAll(w io.Writer, bs []byte) error {
	for len(bs) > 0 {
		n, err := w.Write(bs)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		bs = bs[n:]
	}
	return nil
}
