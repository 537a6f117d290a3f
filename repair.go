package pdfxref

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// minObjectOffset is the smallest offset an object header can have:
// the file header comes first.
const minObjectOffset = 6

// crossCheck verifies that every direct entry of table addresses the
// header of the object it is recorded for, moving entries that point at
// whitespace before a header onto the header. It returns the first entry
// that does not match.
func (r *resolver) crossCheck(table types.OffsetTable) (types.Objptr, int64, bool) {
	moved := make(map[types.Objptr]int64)
	for _, ptr := range table.Refs() {
		off := table[ptr]
		if off < 0 {
			continue
		}
		if off < minObjectOffset {
			return ptr, off, false
		}
		found, start, ok := objectHeaderStart(r.f, r.end, off)
		if !ok || found != ptr {
			return ptr, off, false
		}
		if start != off {
			moved[ptr] = start
		}
	}
	for ptr, start := range moved {
		table[ptr] = start
	}
	if len(moved) > 0 {
		r.log.Debug("object offsets moved past leading whitespace", slog.Int("objects", len(moved)))
	}
	return types.Objptr{}, 0, true
}

// shiftTable returns table with every direct offset moved by delta.
func shiftTable(table types.OffsetTable, delta int64) types.OffsetTable {
	out := make(types.OffsetTable, len(table))
	for ptr, off := range table {
		if off >= 0 {
			off += delta
		}
		out[ptr] = off
	}
	return out
}

// rebuild replaces declared with the result of a full scan of the file.
// Compressed entries of declared survive only when the scan found their
// object stream; object streams found by the scan contribute members the
// scan could not locate directly.
func (r *resolver) rebuild(declared types.OffsetTable) (types.OffsetTable, error) {
	table := scanObjects(r.f, r.end)
	if len(table) == 0 {
		return nil, ErrNoObjects
	}

	located := make(map[uint64]bool, len(table))
	for ptr := range table {
		located[ptr.ID] = true
	}

	var kept, dropped int
	for _, ptr := range declared.Refs() {
		off := declared[ptr]
		if off >= 0 {
			continue
		}
		if !located[uint64(-off)] {
			dropped++
			continue
		}
		if !located[ptr.ID] && table.AddFirst(ptr, off) {
			kept++
		}
	}

	var discovered int
	for _, ptr := range table.Refs() {
		off := table[ptr]
		if off < 0 || !r.maybeObjectStream(off) {
			continue
		}
		stm, err := loadObjectStream(r.f, r.end, off, ptr)
		if err != nil {
			r.log.Debug("skipping object stream", slog.String("object", objfmt(ptr)), slog.Any("error", err))
			continue
		}
		for _, m := range stm.members {
			if located[m.id] {
				continue
			}
			if table.AddFirst(types.Objptr{ID: m.id}, -int64(ptr.ID)) {
				discovered++
			}
		}
	}

	r.log.Warn("rebuilt cross-reference table from a full scan",
		slog.Int("objects", len(table)),
		slog.Int("compressedKept", kept),
		slog.Int("compressedDropped", dropped),
		slog.Int("compressedDiscovered", discovered))
	return table, nil
}

// maybeObjectStream cheaply checks whether the object at off names /ObjStm
// near its start before the stream is loaded and decoded.
func (r *resolver) maybeObjectStream(off int64) bool {
	head := readAt(r.f, r.end, off, 512)
	return slices.Contains(splitNames(head), "ObjStm")
}

func splitNames(b []byte) []string {
	var names []string
	for i := 0; i < len(b); i++ {
		if b[i] != '/' {
			continue
		}
		j := i + 1
		for j < len(b) && isRegular(b[j]) {
			j++
		}
		names = append(names, string(b[i+1:j]))
		i = j - 1
	}
	return names
}

// recoverTrailer finds a usable trailer dictionary when the declared ones
// lack /Root: the last trailer in the file, else the dictionary of the last
// readable xref stream, else a minimal one naming the last catalog object.
func (r *resolver) recoverTrailer(table types.OffsetTable) types.Dict {
	tpos := indexAll(r.f, r.end, "trailer")
	for i := len(tpos) - 1; i >= 0; i-- {
		if d := r.trailerAt(tpos[i]); d["Root"] != nil {
			r.log.Info("recovered trailer dictionary", slog.Int64("offset", tpos[i]))
			return d
		}
	}

	spos := findStreamCandidates(r.f, r.end)
	for i := len(spos) - 1; i >= 0; i-- {
		s, err := r.readXrefStreamAt(spos[i])
		if err == nil && s.dict["Root"] != nil {
			r.log.Info("recovered trailer from xref stream", slog.Int64("offset", spos[i]))
			return s.dict
		}
	}

	if root, ok := r.findCatalog(table); ok {
		var maxID uint64
		for ptr := range table {
			maxID = max(maxID, ptr.ID)
		}
		r.log.Info("synthesized trailer", slog.String("root", objfmt(root)))
		return types.Dict{"Size": int64(maxID + 1), "Root": root}
	}
	return nil
}

func (r *resolver) trailerAt(off int64) (d types.Dict) {
	defer func() {
		if recover() != nil {
			d = nil
		}
	}()
	b := bufferAt(r.f, off, r.end)
	if b.readToken() != keyword("trailer") {
		return nil
	}
	b.allowStream = false
	d, _ = b.readObject().(types.Dict)
	return d
}

// findCatalog returns the direct object with /Type /Catalog that appears
// last in the file.
func (r *resolver) findCatalog(table types.OffsetTable) (types.Objptr, bool) {
	refs := table.Refs()
	slices.SortStableFunc(refs, func(a, b types.Objptr) int {
		return cmp.Compare(table[b], table[a])
	})
	for _, ptr := range refs {
		off := table[ptr]
		if off < 0 {
			break
		}
		if r.objectType(off) == "Catalog" {
			return ptr, true
		}
	}
	return types.Objptr{}, false
}

func (r *resolver) objectType(off int64) (typ types.Name) {
	defer func() {
		if recover() != nil {
			typ = ""
		}
	}()
	b := bufferAt(r.f, off, r.end)
	b.allowStream = false
	def, ok := b.readObject().(types.Objdef)
	if !ok {
		return ""
	}
	d, _ := def.Obj.(types.Dict)
	typ, _ = d["Type"].(types.Name)
	return typ
}
