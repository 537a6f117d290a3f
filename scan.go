package pdfxref

import (
	"bytes"
	"io"
	"math"

	"github.com/tdewolff/parse/v2/strconv"

	"github.com/ScriptRock/pdfxref/internal/types"
)

const scanChunk = 64 << 10

// readAt returns up to n bytes at off, clamped to the file.
func readAt(f io.ReaderAt, size, off int64, n int) []byte {
	if off < 0 {
		n += int(off)
		off = 0
	}
	if off >= size || n <= 0 {
		return nil
	}
	if rem := size - off; int64(n) > rem {
		n = int(rem)
	}
	buf := make([]byte, n)
	m, _ := f.ReadAt(buf, off)
	return buf[:m]
}

// indexAll returns the offset of every occurrence of pat in f, in file order.
func indexAll(f io.ReaderAt, size int64, pat string) []int64 {
	var hits []int64
	scanFrom(f, size, 0, pat, func(pos int64) bool {
		hits = append(hits, pos)
		return true
	})
	return hits
}

// indexFrom returns the first occurrence of pat at or after from, or -1.
func indexFrom(f io.ReaderAt, size, from int64, pat string) int64 {
	found := int64(-1)
	scanFrom(f, size, from, pat, func(pos int64) bool {
		found = pos
		return false
	})
	return found
}

// scanFrom calls fn for each occurrence of pat starting at or after from
// until fn returns false. Chunks overlap so matches spanning a chunk
// boundary are seen exactly once.
func scanFrom(f io.ReaderAt, size, from int64, pat string, fn func(int64) bool) {
	if from < 0 {
		from = 0
	}
	p := []byte(pat)
	buf := make([]byte, scanChunk+len(p)-1)
	for base := from; base < size; base += scanChunk {
		n := int64(len(buf))
		if size-base < n {
			n = size - base
		}
		m, _ := f.ReadAt(buf[:n], base)
		data := buf[:m]
		for i := 0; i < len(data); {
			j := bytes.Index(data[i:], p)
			if j < 0 {
				break
			}
			pos := i + j
			if pos >= scanChunk {
				break
			}
			if !fn(base + int64(pos)) {
				return
			}
			i = pos + 1
		}
	}
}

func isRegular(c byte) bool {
	return !isSpace(c) && !isDelim(c)
}

func skipSpace(b []byte) []byte {
	for len(b) > 0 && isSpace(b[0]) {
		b = b[1:]
	}
	return b
}

// parseDigits reads an unsigned decimal number from the start of b.
func parseDigits(b []byte) (uint64, int) {
	n := 0
	for n < len(b) && '0' <= b[n] && b[n] <= '9' {
		n++
	}
	if n == 0 || n > 19 {
		return 0, 0
	}
	v, m := strconv.ParseUint(b[:n])
	if m != n {
		return 0, 0
	}
	return v, n
}

// keywordAt reports whether keyword kw starts at off, after optional whitespace.
func keywordAt(f io.ReaderAt, size, off int64, kw string) bool {
	if off < 0 || off >= size {
		return false
	}
	b := skipSpace(readAt(f, size, off, len(kw)+32))
	if !bytes.HasPrefix(b, []byte(kw)) {
		return false
	}
	return len(b) == len(kw) || !isRegular(b[len(kw)])
}

// objectHeaderAt parses an "N G obj" header at off, after optional whitespace.
func objectHeaderAt(f io.ReaderAt, size, off int64) (types.Objptr, bool) {
	ptr, _, ok := objectHeaderStart(f, size, off)
	return ptr, ok
}

// objectHeaderStart is objectHeaderAt that also returns where the header
// itself begins.
func objectHeaderStart(f io.ReaderAt, size, off int64) (types.Objptr, int64, bool) {
	if off < 0 || off >= size {
		return types.Objptr{}, off, false
	}
	start := pastSpace(f, size, off)
	ptr, ok := parseObjectHeader(readAt(f, size, start, 64))
	return ptr, start, ok
}

// pastSpace returns the offset of the first non-whitespace byte at or
// after off, looking at most 32 bytes ahead.
func pastSpace(f io.ReaderAt, size, off int64) int64 {
	b := readAt(f, size, off, 32)
	return off + int64(len(b)-len(skipSpace(b)))
}

func parseObjectHeader(b []byte) (types.Objptr, bool) {
	b = skipSpace(b)
	id, n := parseDigits(b)
	if n == 0 {
		return types.Objptr{}, false
	}
	b = b[n:]
	if len(b) == 0 || !isSpace(b[0]) {
		return types.Objptr{}, false
	}
	b = skipSpace(b)
	gen, n := parseDigits(b)
	if n == 0 || gen > math.MaxUint32 {
		return types.Objptr{}, false
	}
	b = b[n:]
	if len(b) == 0 || !isSpace(b[0]) {
		return types.Objptr{}, false
	}
	b = skipSpace(b)
	if !bytes.HasPrefix(b, []byte("obj")) || len(b) > 3 && isRegular(b[3]) {
		return types.Objptr{}, false
	}
	return types.Objptr{ID: id, Gen: uint32(gen)}, true
}

// objectHeaderBefore finds the "N G obj" header whose obj keyword starts at
// index i of b, returning the index the header starts at.
func objectHeaderBefore(b []byte, i int) (types.Objptr, int, bool) {
	if i+3 < len(b) && isRegular(b[i+3]) {
		return types.Objptr{}, 0, false
	}
	j := i
	spaces := func() bool {
		k := j
		for j > 0 && isSpace(b[j-1]) {
			j--
		}
		return j < k
	}
	digits := func() (uint64, bool) {
		k := j
		for j > 0 && '0' <= b[j-1] && b[j-1] <= '9' {
			j--
		}
		v, n := parseDigits(b[j:k])
		return v, n > 0 && n == k-j
	}
	if !spaces() {
		return types.Objptr{}, 0, false
	}
	gen, ok := digits()
	if !ok || gen > math.MaxUint32 || !spaces() {
		return types.Objptr{}, 0, false
	}
	id, ok := digits()
	if !ok || j > 0 && isRegular(b[j-1]) {
		return types.Objptr{}, 0, false
	}
	return types.Objptr{ID: id, Gen: uint32(gen)}, j, true
}
