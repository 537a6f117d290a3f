// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pdfxref locates the objects of a PDF file, including files whose
// cross-reference data is damaged.
//
// # Overview
//
// A PDF file ends with a startxref directive pointing at the newest
// cross-reference section. Each section maps object numbers to the byte
// offsets of their definitions and may name an older section through /Prev.
// Sections are either classic xref tables or compressed xref streams; a
// hybrid file carries both, joined by /XRefStm.
//
// Real files get these offsets wrong: junk before the %PDF- header shifts
// every offset, incremental updates leave /Prev pointing at the wrong byte,
// and truncated or rewritten files leave no usable table at all. Resolve
// follows the declared data where it holds, corrects offsets against the
// sections actually present in the file, and falls back to rebuilding the
// whole table by scanning for object headers.
//
// The result is an OffsetTable mapping each object to its offset, or, for
// objects packed into an object stream, to the negated number of that stream.
//
// A Reader wraps a resolved file and exposes its objects as Values, in the
// manner of the rsc.io/pdf Value API: accessors return a zero result when the
// Value has another kind, so a file can be traversed without error checks.
package pdfxref

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/golang-lru/arc/v2"
	"golang.org/x/exp/mmap"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// objectStreamCacheSize bounds the number of decoded object streams a
// Reader keeps.
const objectStreamCacheSize = 64

// A Reader is a single PDF file open for reading.
type Reader struct {
	f       io.ReaderAt
	end     int64
	closer  io.Closer
	res     *Resolution
	log     *slog.Logger
	streams *arc.ARCCache[uint64, *objectStream]
}

// Open opens a file for reading.
// Reader.Close should be called when done with the Reader.
func Open(file string) (*Reader, error) {
	return OpenOptions(file, DefaultOptions())
}

// OpenOptions is Open with explicit resolution options.
func OpenOptions(file string, opts Options) (*Reader, error) {
	m, err := mmap.Open(file)
	if err != nil {
		return nil, err
	}
	r, err := NewReaderOptions(m, int64(m.Len()), opts)
	if err != nil {
		m.Close()
		return nil, err
	}
	r.closer = m
	return r, nil
}

// NewReader opens a file for reading, using the data in f with the given total size.
func NewReader(f io.ReaderAt, size int64) (*Reader, error) {
	return NewReaderOptions(f, size, DefaultOptions())
}

// NewReaderOptions is NewReader with explicit resolution options.
func NewReaderOptions(f io.ReaderAt, size int64, opts Options) (*Reader, error) {
	headerOffset, err := FindHeader(f, size)
	if err != nil {
		return nil, err
	}
	res, err := Resolve(f, size, headerOffset, opts)
	if err != nil {
		return nil, err
	}
	cache, err := arc.NewARC[uint64, *objectStream](objectStreamCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating object stream cache: %w", err)
	}
	return &Reader{
		f:       f,
		end:     size,
		res:     res,
		log:     opts.logger(),
		streams: cache,
	}, nil
}

// Close releases the file mapping when the Reader was created by Open, and
// otherwise closes the underlying io.ReaderAt if it is an io.Closer.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	if c, ok := r.f.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Trailer returns the file's trailer dictionary.
func (r *Reader) Trailer() Value {
	return Value{r: r, data: r.res.Trailer}
}

// Xref returns a copy of the resolved cross-reference table.
func (r *Reader) Xref() OffsetTable {
	return r.res.Table.Clone()
}

// Repaired reports whether the table had to be rebuilt by scanning the file.
func (r *Reader) Repaired() bool {
	return r.res.Repaired
}

// Object returns the object ptr. It returns a null Value if ptr is not in
// the table or cannot be read.
func (r *Reader) Object(ptr Objptr) Value {
	return r.resolve(types.Objptr{}, ptr)
}

func (r *Reader) resolve(parent types.Objptr, x types.Object) Value {
	if ptr, ok := x.(types.Objptr); ok {
		obj, err := r.load(ptr)
		if err != nil {
			r.log.Debug("cannot load object", slog.String("object", objfmt(ptr)), slog.Any("error", err))
			return Value{}
		}
		x, parent = obj, ptr
	}

	switch x := x.(type) {
	case nil, bool, int64, float64, types.Name, types.Dict, types.Array, types.Stream, string:
		return Value{r: r, ptr: parent, data: x}
	default:
		r.log.Debug("unexpected value type", slog.String("type", fmt.Sprintf("%T", x)))
		return Value{}
	}
}

// load reads the definition of ptr from wherever the table says it lives.
func (r *Reader) load(ptr types.Objptr) (obj types.Object, err error) {
	off, ok := r.res.Table.Lookup(ptr)
	if !ok {
		return nil, fmt.Errorf("object %v not in cross-reference table", objfmt(ptr))
	}
	if off < 0 {
		stm, err := r.objectStream(uint64(-off))
		if err != nil {
			return nil, err
		}
		return stm.object(ptr.ID)
	}

	defer catch("object", off, &err)
	def, ok := bufferAt(r.f, off, r.end).readObject().(types.Objdef)
	if !ok {
		return nil, malformed("object", off, "no object definition for %v", objfmt(ptr))
	}
	if def.Ptr != ptr {
		return nil, malformed("object", off, "found %v instead of %v", objfmt(def.Ptr), objfmt(ptr))
	}
	return def.Obj, nil
}

// objectStream returns the decoded object stream id, from the cache when
// it has been loaded before.
func (r *Reader) objectStream(id uint64) (*objectStream, error) {
	if stm, ok := r.streams.Get(id); ok {
		return stm, nil
	}
	ptr := types.Objptr{ID: id}
	off, ok := r.res.Table.Lookup(ptr)
	if !ok || off < 0 {
		return nil, fmt.Errorf("object stream %d is not a direct object", id)
	}
	stm, err := loadObjectStream(r.f, r.end, off, ptr)
	if err != nil {
		return nil, err
	}
	r.streams.Add(id, stm)
	return stm, nil
}

// streamData returns the decoded contents of s.
func (r *Reader) streamData(s types.Stream) ([]byte, error) {
	raw, err := streamBytes(r.f, r.end, s)
	if err != nil {
		return nil, err
	}
	return decodeStream(raw, s.Hdr)
}
