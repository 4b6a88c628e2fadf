package fetch

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"
)

type chunk struct {
	data []byte
	err  error
}

// scriptedConn hands out one chunk per Read, and records what's written.
type scriptedConn struct {
	chunks   []chunk
	written  bytes.Buffer
	writeErr error
	maxWrite int // short writes, if set
}

func (c *scriptedConn) Read(b []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	ch := c.chunks[0]
	c.chunks = c.chunks[1:]
	if len(ch.data) > len(b) {
		panic("test chunk bigger than read buffer")
	}
	return copy(b, ch.data), ch.err
}

func (c *scriptedConn) Write(b []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	if c.maxWrite > 0 && len(b) > c.maxWrite {
		b = b[:c.maxWrite]
	}
	return c.written.Write(b)
}

func splitBy(bs []byte, sizes ...int) []chunk {
	var cs []chunk
	for _, s := range sizes {
		cs = append(cs, chunk{data: bs[:s]})
		bs = bs[s:]
	}
	if len(bs) != 0 {
		panic("sizes don't cover input")
	}
	return cs
}

func TestRequestFormat(t *testing.T) {
	require.Equal(t,
		"GET / HTTP/1.1\r\nHost: example.test\r\nConnection: close\r\n\r\n",
		string(Request("example.test")),
	)
}

func TestReassemblesShortReadTerminated(t *testing.T) {
	body := []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")
	require.Len(t, body, 43)

	// Buffer of 16: full reads then a final short one
	conn := &scriptedConn{chunks: splitBy(body, 16, 16, 11)}
	h := NewHandler(testr.New(t), 16)

	resp, err := h.Fetch(conn, "example.test")
	require.NoError(t, err)
	require.Equal(t, body, resp.Raw)
	require.Equal(t, string(body), resp.Text)
	require.Equal(t, 3, resp.Reads)
	require.True(t, resp.ShortRead)
	require.False(t, resp.EOF)
	require.Equal(t, string(Request("example.test")), conn.written.String())
}

func TestStopsAtFirstShortRead(t *testing.T) {
	conn := &scriptedConn{chunks: []chunk{
		{data: []byte("0123456789abcdef")},
		{data: []byte("xy")},
		{data: []byte("never read")},
	}}
	h := NewHandler(testr.New(t), 16)

	resp, err := h.Fetch(conn, "example.test")
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdefxy", resp.Text)
	require.Len(t, conn.chunks, 1)
}

func TestReassemblesEOFTerminated(t *testing.T) {
	body := []byte("0123456789abcdef0123456789abcdef")
	conn := &scriptedConn{chunks: splitBy(body, 8, 8, 8, 8)}
	h := NewHandler(testr.New(t), 8)

	resp, err := h.Fetch(conn, "example.test")
	require.NoError(t, err)
	require.Equal(t, body, resp.Raw)
	require.True(t, resp.EOF)
	require.Equal(t, 5, resp.Reads) // the last returns 0, io.EOF
}

func TestDataWithEOF(t *testing.T) {
	conn := &scriptedConn{chunks: []chunk{
		{data: []byte("abcd")},
		{data: []byte("ef"), err: io.EOF},
	}}
	h := NewHandler(testr.New(t), 4)

	resp, err := h.Fetch(conn, "example.test")
	require.NoError(t, err)
	require.Equal(t, "abcdef", resp.Text)
	require.True(t, resp.EOF)
}

func TestEmptyResponse(t *testing.T) {
	conn := &scriptedConn{}
	h := NewHandler(testr.New(t), 0)

	resp, err := h.Fetch(conn, "example.test")
	require.NoError(t, err)
	require.Empty(t, resp.Raw)
	require.Empty(t, resp.Text)
	require.Equal(t, 1, resp.Reads)
}

func TestReadErrorKeepsPartial(t *testing.T) {
	boom := errors.New("connection reset by peer")
	conn := &scriptedConn{chunks: []chunk{
		{data: []byte("abcd")},
		{data: []byte("e"), err: boom},
	}}
	h := NewHandler(testr.New(t), 4)

	resp, err := h.Fetch(conn, "example.test")

	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	require.ErrorIs(t, err, boom)
	require.Equal(t, "abcde", resp.Text)
}

func TestWriteError(t *testing.T) {
	boom := errors.New("broken pipe")
	conn := &scriptedConn{writeErr: boom, chunks: []chunk{{data: []byte("unread")}}}
	h := NewHandler(testr.New(t), 4)

	_, err := h.Fetch(conn, "example.test")

	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	require.ErrorIs(t, err, boom)
	require.Len(t, conn.chunks, 1)
}

func TestShortWritesAreCompleted(t *testing.T) {
	conn := &scriptedConn{maxWrite: 5}
	h := NewHandler(testr.New(t), 4)

	_, err := h.Fetch(conn, "example.test:8080")
	require.NoError(t, err)
	require.Equal(t, string(Request("example.test:8080")), conn.written.String())
}

func TestInvalidBytesSkipped(t *testing.T) {
	raw := []byte("caf\xc3\xa9 \xff\xfeok")
	conn := &scriptedConn{chunks: []chunk{{data: raw}}}
	h := NewHandler(testr.New(t), 64)

	resp, err := h.Fetch(conn, "example.test")
	require.NoError(t, err)
	require.Equal(t, raw, resp.Raw)
	require.Equal(t, "café ok", resp.Text)
	require.Equal(t, 2, resp.Skipped)
}

func TestDecodeLossy(t *testing.T) {
	cases := []struct {
		in      []byte
		want    string
		skipped int
	}{
		{[]byte("plain"), "plain", 0},
		{[]byte{}, "", 0},
		{[]byte("\xe2\x82"), "", 2},             // truncated sequence
		{[]byte("a\xef\xbf\xbdb"), "a\ufffdb", 0}, // a real U+FFFD survives
		{[]byte("\x80x\x80"), "x", 2},
	}

	for _, c := range cases {
		got, skipped := DecodeLossy(c.in)
		require.Equal(t, c.want, got)
		require.Equal(t, c.skipped, skipped)
	}
}
