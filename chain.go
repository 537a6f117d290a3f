package pdfxref

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// walkState accumulates the result of following a /Prev chain.
type walkState struct {
	table    types.OffsetTable
	trailers []types.Dict // newest first
	visited  map[int64]bool
	missed   int
	sections int
}

func newWalkState() *walkState {
	return &walkState{
		table:   types.OffsetTable{},
		visited: make(map[int64]bool),
	}
}

// walk reads the section at off and every section reachable from it
// through /Prev, newest first.
func (r *resolver) walk(off int64) (*walkState, error) {
	st := newWalkState()
	for more := true; more; {
		var err error
		if off, more, err = r.step(st, off); err != nil {
			return st, err
		}
	}
	return st, nil
}

// step reads one section into st and returns the offset of the next one.
func (r *resolver) step(st *walkState, off int64) (next int64, more bool, err error) {
	if st.visited[off] {
		if r.opts.Strict {
			return 0, false, &MalformedError{Op: "xref chain", Offset: off, Err: ErrCycle}
		}
		r.log.Error("cross-reference sections form a loop; using the sections read so far",
			slog.Int64("offset", off), slog.Int("sections", st.sections))
		return 0, false, nil
	}
	st.visited[off] = true
	r.probed[off] = true

	sec, err := r.readSection(off)
	if err != nil {
		if !errors.Is(err, errNoSection) && st.sections > 0 {
			r.log.Warn("unusable cross-reference section ends the chain",
				slog.Int64("offset", off), slog.Any("error", err))
			return 0, false, nil
		}
		return r.missed(st, off, err)
	}
	st.sections++

	var prev types.Object
	switch s := sec.(type) {
	case *tableSection:
		r.log.Debug("read xref table", slog.Int64("offset", s.offset), slog.Int("entries", len(s.offsets)))
		st.table.Merge(s.offsets)
		st.trailers = append(st.trailers, s.trailer)
		if stm, ok := s.trailer["XRefStm"].(int64); ok {
			r.mergeHybrid(st, stm)
		}
		prev = s.trailer["Prev"]
	case *streamSection:
		r.log.Debug("read xref stream", slog.Int64("offset", s.offset), slog.String("object", objfmt(s.ptr)),
			slog.Int("entries", len(s.offsets)), slog.Int("record", s.widths.lineLength()))
		st.table.Merge(s.offsets)
		st.trailers = append(st.trailers, s.dict)
		prev = s.dict["Prev"]
	}

	if prev == nil {
		return 0, false, nil
	}
	p, ok := prev.(int64)
	if !ok {
		r.log.Warn("ignoring non-integer /Prev", slog.String("prev", objfmt(prev)), slog.Int64("section", off))
		return 0, false, nil
	}
	next, ok = r.checkXrefOffset(p)
	if !ok {
		r.log.Warn("/Prev does not lead to a cross-reference section",
			slog.Int64("prev", p), slog.Int64("section", off))
		return 0, false, nil
	}
	return next, true, nil
}

// missed records a location that held no usable section and picks the
// nearest unused candidate to try instead.
func (r *resolver) missed(st *walkState, off int64, cause error) (int64, bool, error) {
	st.missed++
	if st.missed > r.opts.maxMissed() {
		if r.opts.Strict {
			return 0, false, &MalformedError{Op: "xref chain", Offset: off, Err: ErrAttemptsExhausted}
		}
		r.log.Error("giving up on locating cross-reference sections",
			slog.Int("attempts", st.missed), slog.Int("sections", st.sections))
		return 0, false, nil
	}
	r.log.Warn("no cross-reference section at offset",
		slog.Int64("offset", off), slog.Any("error", cause))
	next, ok := r.nearestCandidate(off, true)
	return next, ok, nil
}

// mergeHybrid adds the entries of the stream named by a table trailer's
// /XRefStm. They rank below the table's own entries but above any older
// section's.
func (r *resolver) mergeHybrid(st *walkState, declared int64) {
	off, ok := r.checkXrefStreamOffset(declared)
	if !ok {
		r.log.Warn("/XRefStm does not lead to an xref stream", slog.Int64("declared", declared))
		return
	}
	r.probed[off] = true
	s, err := r.readXrefStream(off)
	if err != nil {
		r.log.Warn("unusable /XRefStm stream", slog.Int64("offset", off), slog.Any("error", err))
		return
	}
	added := st.table.Merge(s.offsets)
	r.log.Debug("merged hybrid xref stream", slog.Int64("offset", off), slog.Int("entries", added))
}

// trailerChainKeys belong to a single section and are never inherited from
// an older trailer.
var trailerChainKeys = map[types.Name]bool{
	"Prev": true, "XRefStm": true, "W": true, "Index": true, "Length": true,
	"Filter": true, "DecodeParms": true, "Type": true,
}

// mergeTrailers combines trailers, newest first: the newest dictionary wins
// and keys it lacks are taken from older ones.
func mergeTrailers(trailers []types.Dict) types.Dict {
	if len(trailers) == 0 {
		return nil
	}
	out := make(types.Dict, len(trailers[0]))
	for k, v := range trailers[0] {
		out[k] = v
	}
	for _, t := range trailers[1:] {
		for k, v := range t {
			if _, ok := out[k]; ok || trailerChainKeys[k] {
				continue
			}
			out[k] = v
		}
	}
	return out
}

func (st *walkState) String() string {
	return fmt.Sprintf("%d sections, %d objects, %d missed", st.sections, len(st.table), st.missed)
}
