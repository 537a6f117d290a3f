package types

import (
	"cmp"
	"slices"
)

// A name is a PDF name, without the leading slash.
type Name string

// An object is a PDF syntax object, one of the following Go types:
//
//	bool, a PDF boolean
//	int64, a PDF integer
//	float64, a PDF real
//	string, a PDF string literal
//	name, a PDF name without the leading slash
//	dict, a PDF dictionary
//	array, a PDF array
//	stream, a PDF stream
//	objptr, a PDF object reference
//	objdef, a PDF object definition
//
// An object may also be nil, to represent the PDF null.
type Object any

type Dict map[Name]Object

type Array []Object

// Stream is a stream header. Offset is the position of the first data
// byte, just past the EOL following the stream keyword.
type Stream struct {
	Hdr    Dict
	Ptr    Objptr
	Offset int64
}

// Objptr identifies an indirect object across the document's revisions.
type Objptr struct {
	ID  uint64
	Gen uint32
}

type Objdef struct {
	Ptr Objptr
	Obj Object
}

// OffsetTable maps each object to where its definition lives.
// A non-negative value is the byte offset of the object's "N G obj" header.
// A negative value -S means the object is compressed inside object stream S.
type OffsetTable map[Objptr]int64

// Lookup returns the location recorded for ptr.
func (t OffsetTable) Lookup(ptr Objptr) (int64, bool) {
	off, ok := t[ptr]
	return off, ok
}

func (t OffsetTable) Len() int { return len(t) }

// AddFirst records off for ptr unless ptr is already present.
// It reports whether the entry was added.
func (t OffsetTable) AddFirst(ptr Objptr, off int64) bool {
	if _, ok := t[ptr]; ok {
		return false
	}
	t[ptr] = off
	return true
}

// Merge adds every entry of other that t does not already hold.
func (t OffsetTable) Merge(other OffsetTable) (added int) {
	for _, ptr := range other.Refs() {
		if t.AddFirst(ptr, other[ptr]) {
			added++
		}
	}
	return added
}

// Refs returns the keys ordered by object number, then generation.
func (t OffsetTable) Refs() []Objptr {
	refs := make([]Objptr, 0, len(t))
	for ptr := range t {
		refs = append(refs, ptr)
	}
	slices.SortFunc(refs, func(a, b Objptr) int {
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Gen, b.Gen)
	})
	return refs
}

func (t OffsetTable) Clone() OffsetTable {
	c := make(OffsetTable, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}
