package pdfxref

import (
	"bytes"
	"io"
	"log/slog"
	"slices"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// candidatePools holds every plausible section start found by scanning the
// whole file. A candidate is removed once used so that two broken
// references cannot be corrected to the same section.
type candidatePools struct {
	tables  []int64
	streams []int64
}

func (r *resolver) pools() *candidatePools {
	if r.candidates == nil {
		r.candidates = &candidatePools{
			tables:  findTableCandidates(r.f, r.end),
			streams: findStreamCandidates(r.f, r.end),
		}
		r.log.Debug("scanned for cross-reference sections",
			slog.Int("tables", len(r.candidates.tables)), slog.Int("streams", len(r.candidates.streams)))
	}
	return r.candidates
}

// findTableCandidates returns the offset of every xref keyword that is not
// the tail of startxref.
func findTableCandidates(f io.ReaderAt, size int64) []int64 {
	var out []int64
	for _, pos := range indexAll(f, size, "xref") {
		before := readAt(f, size, pos-5, 5)
		if string(before) == "start" || len(before) > 0 && isRegular(before[len(before)-1]) {
			continue
		}
		if after := readAt(f, size, pos+4, 1); len(after) == 1 && isRegular(after[0]) {
			continue
		}
		out = append(out, pos)
	}
	return out
}

// findStreamCandidates returns the start of every object whose dictionary
// names /XRef, found by backtracking from the name to the nearest
// preceding "N G obj" header.
func findStreamCandidates(f io.ReaderAt, size int64) []int64 {
	const window = 1024
	var out []int64
	for _, pos := range indexAll(f, size, "/XRef") {
		if after := readAt(f, size, pos+5, 1); len(after) == 1 && isRegular(after[0]) {
			continue // /XRefStm
		}
		start := pos - window
		if start < 0 {
			start = 0
		}
		b := readAt(f, size, start, int(pos-start))
		for i := len(b); i > 0; {
			i = bytes.LastIndex(b[:i], []byte("obj"))
			if i < 0 || i >= 3 && string(b[i-3:i]) == "end" {
				break
			}
			if _, j, ok := objectHeaderBefore(b, i); ok && (j > 0 || start == 0) {
				out = append(out, start+int64(j))
				break
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// isSectionStart reports whether off begins an xref table or an xref stream.
func (r *resolver) isSectionStart(off int64) bool {
	return keywordAt(r.f, r.end, off, "xref") || r.isXrefStreamAt(off)
}

// isXrefStreamAt reports whether off begins an object whose dictionary has
// /Type /XRef.
func (r *resolver) isXrefStreamAt(off int64) (ok bool) {
	if _, hdr := objectHeaderAt(r.f, r.end, off); !hdr {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	b := bufferAt(r.f, off, r.end)
	b.allowStream = false
	def, isDef := b.readObject().(types.Objdef)
	if !isDef {
		return false
	}
	d, isDict := def.Obj.(types.Dict)
	return isDict && d["Type"] == types.Name("XRef")
}

// checkXrefOffset confirms that off starts a cross-reference section, or
// corrects it: first by the header shift, then by the nearest candidate.
func (r *resolver) checkXrefOffset(off int64) (int64, bool) {
	if r.isSectionStart(off) {
		return pastSpace(r.f, r.end, off), true
	}
	if r.headerOffset != 0 && r.isSectionStart(off+r.headerOffset) {
		r.log.Info("cross-reference offset corrected by header shift",
			slog.Int64("declared", off), slog.Int64("actual", off+r.headerOffset))
		return pastSpace(r.f, r.end, off+r.headerOffset), true
	}
	return r.nearestCandidate(off, true)
}

// checkXrefStreamOffset is checkXrefOffset for /XRefStm entries, which can
// only point at streams.
func (r *resolver) checkXrefStreamOffset(off int64) (int64, bool) {
	if r.isXrefStreamAt(off) {
		return pastSpace(r.f, r.end, off), true
	}
	if r.headerOffset != 0 && r.isXrefStreamAt(off+r.headerOffset) {
		r.log.Info("xref stream offset corrected by header shift",
			slog.Int64("declared", off), slog.Int64("actual", off+r.headerOffset))
		return pastSpace(r.f, r.end, off+r.headerOffset), true
	}
	return r.nearestCandidate(off, false)
}

// nearestCandidate picks the unused candidate closest to off, preferring a
// table over a stream at equal distance, and removes it from its pool.
// Sections already read are never offered again.
func (r *resolver) nearestCandidate(off int64, tables bool) (int64, bool) {
	p := r.pools()
	for {
		ti, td := -1, int64(0)
		if tables {
			ti, td = nearest(p.tables, off)
		}
		si, sd := nearest(p.streams, off)

		var found int64
		var kind string
		switch {
		case ti >= 0 && (si < 0 || td <= sd):
			found, kind = p.tables[ti], "table"
			p.tables = slices.Delete(p.tables, ti, ti+1)
		case si >= 0:
			found, kind = p.streams[si], "stream"
			p.streams = slices.Delete(p.streams, si, si+1)
		default:
			r.log.Warn("no cross-reference section found to replace a bad offset", slog.Int64("declared", off))
			return 0, false
		}
		if r.probed[found] {
			continue
		}
		r.log.Info("cross-reference offset corrected",
			slog.Int64("declared", off), slog.Int64("actual", found), slog.String("kind", kind))
		return found, true
	}
}

func nearest(pool []int64, off int64) (int, int64) {
	best, dist := -1, int64(0)
	for i, c := range pool {
		d := c - off
		if d < 0 {
			d = -d
		}
		if best < 0 || d < dist {
			best, dist = i, d
		}
	}
	return best, dist
}
