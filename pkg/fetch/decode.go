package fetch

import (
	"strings"
	"unicode/utf8"
)

// DecodeLossy turns bs into a string, dropping every byte that isn't part of a valid utf-8
// sequence. It returns how many were dropped.
func DecodeLossy(bs []byte) (string, int) {
	if utf8.Valid(bs) {
		return string(bs), 0
	}

	var sb strings.Builder
	sb.Grow(len(bs))
	skipped := 0
	for len(bs) > 0 {
		r, size := utf8.DecodeRune(bs)
		if r == utf8.RuneError && size <= 1 {
			skipped++
			bs = bs[1:]
			continue
		}
		sb.Write(bs[:size])
		bs = bs[size:]
	}

	return sb.String(), skipped
}
