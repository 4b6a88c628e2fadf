package main

import (
	"bytes"
	"testing"

	"github.com/logrusorgru/aurora/v3"
	"github.com/mt-inside/http-log/pkg/output"
	"github.com/stretchr/testify/require"

	"github.com/mt-inside/concon/internal/biostest"
)

func testBios() (biostest.Bios, *bytes.Buffer) {
	var out bytes.Buffer
	s := output.NewTtyStyler(aurora.NewAurora(false))
	return biostest.New(s, &out), &out
}

func TestPrintDiffEqual(t *testing.T) {
	b, out := testBios()

	require.True(t, printDiff(b, out, "HTTP/1.1 200 OK\r\n\r\nhi", "HTTP/1.1 200 OK\r\n\r\nhi"))
	require.Contains(t, out.String(), "responses equal")

	// Empty responses have no diffs at all
	out.Reset()
	require.True(t, printDiff(b, out, "", ""))
}

func TestPrintDiffDiffers(t *testing.T) {
	b, out := testBios()

	require.False(t, printDiff(b, out, "HTTP/1.1 200 OK\r\n\r\nhi", "HTTP/1.1 404 Not Found\r\n\r\nhi"))
	require.Contains(t, out.String(), "Warning responses differ")
	require.Contains(t, out.String(), "404")
}
