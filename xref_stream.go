package pdfxref

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// readXrefStream parses a cross-reference stream object at off. If no
// object starts there, it retries once at the header-shifted offset.
func (r *resolver) readXrefStream(off int64) (*streamSection, error) {
	sec, err := r.readXrefStreamAt(off)
	if err == nil || !errors.Is(err, errNoSection) || r.headerOffset == 0 {
		return sec, err
	}
	shifted := off + r.headerOffset
	sec, err2 := r.readXrefStreamAt(shifted)
	if err2 != nil {
		return nil, err
	}
	r.log.Info("xref stream found at header-shifted offset",
		slog.Int64("declared", off), slog.Int64("actual", shifted))
	return sec, nil
}

func (r *resolver) readXrefStreamAt(off int64) (sec *streamSection, err error) {
	defer catch("xref stream", off, &err)

	if _, ok := objectHeaderAt(r.f, r.end, off); !ok {
		return nil, errNoSection
	}
	b := bufferAt(r.f, off, r.end)
	def, ok := b.readObject().(types.Objdef)
	if !ok {
		return nil, errNoSection
	}
	strm, ok := def.Obj.(types.Stream)
	if !ok {
		return nil, fmt.Errorf("%w: object %v is not a stream", errNoSection, objfmt(def.Ptr))
	}
	if strm.Hdr["Type"] != types.Name("XRef") {
		return nil, fmt.Errorf("%w: stream %v does not have type XRef", errNoSection, objfmt(def.Ptr))
	}
	w, err := parseFieldSize(strm.Hdr["W"])
	if err != nil {
		return nil, &MalformedError{Op: "xref stream", Offset: off, Err: err}
	}

	raw, err := streamBytes(r.f, r.end, strm)
	if err != nil {
		return nil, &MalformedError{Op: "xref stream", Offset: off, Err: err}
	}
	data, err := decodeStream(raw, strm.Hdr)
	if err != nil {
		return nil, &MalformedError{Op: "xref stream", Offset: off, Err: fmt.Errorf("decoding: %w", err)}
	}

	index, err := xrefIndex(strm.Hdr, int64(len(data)/w.lineLength()))
	if err != nil {
		return nil, &MalformedError{Op: "xref stream", Offset: off, Err: err}
	}
	if rem := len(data) % w.lineLength(); rem != 0 {
		r.log.Debug("xref stream has a partial trailing record",
			slog.Int64("offset", off), slog.Int("bytes", rem))
	}

	return &streamSection{
		offset:  off,
		ptr:     def.Ptr,
		offsets: decodeXrefStream(data, w, index),
		dict:    strm.Hdr,
		widths:  w,
	}, nil
}

func parseFieldSize(x types.Object) (fieldSize, error) {
	ww, ok := x.(types.Array)
	if !ok || len(ww) < 3 {
		return fieldSize{}, fmt.Errorf("invalid W array %v", objfmt(x))
	}
	var w []int
	for _, v := range ww {
		i, ok := v.(int64)
		if !ok || i < 0 || i > 8 {
			return fieldSize{}, fmt.Errorf("invalid W array %v", objfmt(ww))
		}
		w = append(w, int(i))
	}
	fs := fieldSize{f1: w[0], f2: w[1], f3: w[2]}
	for _, v := range w[3:] {
		fs.extra += v
	}
	if fs.lineLength() == 0 {
		return fieldSize{}, fmt.Errorf("invalid W array %v", objfmt(ww))
	}
	return fs, nil
}

// xrefIndex returns the flattened (first, count) pairs of the /Index array,
// defaulting to a single run covering /Size objects.
func xrefIndex(hdr types.Dict, lines int64) ([]int64, error) {
	arr, ok := hdr["Index"].(types.Array)
	if !ok {
		size, ok := hdr["Size"].(int64)
		if !ok || size < 0 {
			size = lines
		}
		return []int64{0, size}, nil
	}
	if len(arr)%2 != 0 {
		return nil, fmt.Errorf("invalid Index array %v", objfmt(arr))
	}
	index := make([]int64, len(arr))
	for i, v := range arr {
		n, ok := v.(int64)
		if !ok || n < 0 {
			return nil, fmt.Errorf("invalid Index array %v", objfmt(arr))
		}
		index[i] = n
	}
	return index, nil
}

// decodeXrefStream turns decoded stream records into table entries.
func decodeXrefStream(data []byte, w fieldSize, index []int64) types.OffsetTable {
	offsets := types.OffsetTable{}
	stride := w.lineLength()
	lines := len(data) / stride
	line := 0
	for i := 0; i+1 < len(index) && line < lines; i += 2 {
		first, n := index[i], index[i+1]
		for k := int64(0); k < n && line < lines; k++ {
			rec := data[line*stride : (line+1)*stride]
			line++

			typ := int64(1)
			if w.f1 > 0 {
				typ = decodeInt(rec[:w.f1])
			}
			f2 := decodeInt(rec[w.f1 : w.f1+w.f2])
			f3 := decodeInt(rec[w.f1+w.f2 : w.f1+w.f2+w.f3])
			id := uint64(first + k)

			switch typ {
			case 1:
				if f2 > 0 && f3 >= 0 && f3 <= 0xffffffff {
					offsets.AddFirst(types.Objptr{ID: id, Gen: uint32(f3)}, f2)
				}
			case 2:
				if f2 > 0 {
					offsets.AddFirst(types.Objptr{ID: id}, -f2)
				}
			}
		}
	}
	return offsets
}

func decodeInt(b []byte) int64 {
	var x int64
	for _, c := range b {
		x = x<<8 | int64(c)
	}
	return x
}

// streamBytes returns the raw bytes of s. A declared /Length is trusted only
// when endstream or endobj follows it; otherwise the data runs to the next
// endstream (or endobj) with the EOL before it removed.
func streamBytes(f io.ReaderAt, size int64, s types.Stream) ([]byte, error) {
	n := streamLength(f, size, s)
	if n <= 0 {
		return nil, nil
	}
	data := make([]byte, n)
	if _, err := f.ReadAt(data, s.Offset); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}

func streamLength(f io.ReaderAt, size int64, s types.Stream) int64 {
	if l, ok := s.Hdr["Length"].(int64); ok && l >= 0 && s.Offset+l <= size {
		end := s.Offset + l
		if keywordAt(f, size, end, "endstream") || keywordAt(f, size, end, "endobj") {
			return l
		}
	}

	end := indexFrom(f, size, s.Offset, "endstream")
	if end < 0 {
		end = indexFrom(f, size, s.Offset, "endobj")
	}
	if end < 0 {
		return size - s.Offset
	}
	tail := readAt(f, size, end-2, 2)
	switch {
	case len(tail) == 2 && tail[0] == '\r' && tail[1] == '\n':
		end -= 2
	case len(tail) > 0 && (tail[len(tail)-1] == '\n' || tail[len(tail)-1] == '\r'):
		end--
	}
	if end < s.Offset {
		return 0
	}
	return end - s.Offset
}
