package pdfxref

import (
	"io"
)

// startxrefLocation is where the final startxref directive sits and the
// offset it declares. Either may be missing in a damaged file.
type startxrefLocation struct {
	pos       int64
	offset    int64
	hasPos    bool
	hasOffset bool
}

func (l startxrefLocation) isValidOffset(size int64) bool {
	return l.hasOffset && l.offset >= 0 && l.offset < size
}

const (
	startxrefKeyword = "startxref"
	// some producers write the directive without the x
	startrefKeyword = "startref"
)

// locateStartxref scans backward from the end of f for the last startxref
// directive and reads the integer that follows it.
func locateStartxref(f io.ReaderAt, size int64) (loc startxrefLocation) {
	pos, ok := lastStartxref(f, size)
	if !ok {
		return loc
	}
	loc.pos, loc.hasPos = pos, true

	var err error
	func() {
		defer catch("startxref", pos, &err)
		b := bufferAt(f, pos, size)
		switch b.readToken() {
		case keyword(startxrefKeyword), keyword(startrefKeyword):
		default:
			return
		}
		if off, ok := b.readToken().(int64); ok {
			loc.offset, loc.hasOffset = off, true
		}
	}()
	return loc
}

// lastStartxref walks f backward one byte at a time, keeping the bytes that
// follow the current position in a ring the width of the keyword.
func lastStartxref(f io.ReaderAt, size int64) (int64, bool) {
	const width = len(startxrefKeyword)
	var ring [width]byte
	head, seen := 0, 0

	// ring[(head+k)%width] is the byte k positions after the current one
	at := func(k int) byte { return ring[(head+k)%width] }
	matches := func(kw string) bool {
		if seen < len(kw) {
			return false
		}
		for k := 0; k < len(kw); k++ {
			if at(k) != kw[k] {
				return false
			}
		}
		return true
	}

	chunk := make([]byte, 4096)
	for end := size; end > 0; {
		start := end - int64(len(chunk))
		if start < 0 {
			start = 0
		}
		buf := chunk[:end-start]
		if n, _ := f.ReadAt(buf, start); n < len(buf) {
			buf = buf[:n]
		}
		for i := len(buf) - 1; i >= 0; i-- {
			head = (head + width - 1) % width
			ring[head] = buf[i]
			if seen < width {
				seen++
			}
			if buf[i] != 's' {
				continue
			}
			if matches(startxrefKeyword) || matches(startrefKeyword) {
				return start + int64(i), true
			}
		}
		end = start
	}
	return 0, false
}
