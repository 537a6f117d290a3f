package pdfxref

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// An objectStream is a decoded /Type /ObjStm container.
type objectStream struct {
	ptr     types.Objptr
	data    []byte
	first   int64
	members []objstmMember
}

type objstmMember struct {
	id  uint64
	off int64 // relative to first
}

// loadObjectStream reads the object stream ptr defined at off.
func loadObjectStream(f io.ReaderAt, size, off int64, ptr types.Objptr) (stm *objectStream, err error) {
	defer catch("object stream", off, &err)

	b := bufferAt(f, off, size)
	def, ok := b.readObject().(types.Objdef)
	if !ok || def.Ptr != ptr {
		return nil, malformed("object stream", off, "object %v not found", objfmt(ptr))
	}
	strm, ok := def.Obj.(types.Stream)
	if !ok || strm.Hdr["Type"] != types.Name("ObjStm") {
		return nil, malformed("object stream", off, "object %v is not an object stream", objfmt(ptr))
	}
	n, _ := strm.Hdr["N"].(int64)
	first, _ := strm.Hdr["First"].(int64)
	if n < 0 || first <= 0 {
		return nil, malformed("object stream", off, "invalid N %d or First %d", n, first)
	}

	raw, err := streamBytes(f, size, strm)
	if err != nil {
		return nil, &MalformedError{Op: "object stream", Offset: off, Err: err}
	}
	data, err := decodeStream(raw, strm.Hdr)
	if err != nil {
		return nil, &MalformedError{Op: "object stream", Offset: off, Err: fmt.Errorf("decoding: %w", err)}
	}
	if first > int64(len(data)) {
		return nil, malformed("object stream", off, "First %d beyond %d bytes of data", first, len(data))
	}

	stm = &objectStream{ptr: ptr, data: data, first: first}
	hb := newBuffer(bytes.NewReader(data[:first]), 0)
	hb.allowEOF = true
	hb.allowObjptr = false
	for i := int64(0); i < n; i++ {
		id, ok1 := hb.readToken().(int64)
		rel, ok2 := hb.readToken().(int64)
		if !ok1 || !ok2 || id < 0 || rel < 0 {
			break
		}
		stm.members = append(stm.members, objstmMember{id: uint64(id), off: rel})
	}
	return stm, nil
}

// object returns the member object id.
func (stm *objectStream) object(id uint64) (obj types.Object, err error) {
	defer catch("object stream", 0, &err)

	for _, m := range stm.members {
		if m.id != id {
			continue
		}
		start := stm.first + m.off
		if start >= int64(len(stm.data)) {
			return nil, fmt.Errorf("object %d lies beyond the stream data", id)
		}
		b := newBuffer(bytes.NewReader(stm.data[start:]), 0)
		b.allowEOF = true
		b.allowStream = false
		return b.readObject(), nil
	}
	return nil, fmt.Errorf("object %d not in object stream %v", id, objfmt(stm.ptr))
}
