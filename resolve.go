package pdfxref

import (
	"bytes"
	"errors"
	"io"
	"log/slog"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// Aliases for the syntax types used in resolved tables and trailers.
type (
	Objptr      = types.Objptr
	OffsetTable = types.OffsetTable
	Dict        = types.Dict
	Array       = types.Array
	Name        = types.Name
)

// A Resolution is the outcome of locating every object in a file.
type Resolution struct {
	// Table maps every object to its offset, or to -S when the object
	// is compressed in object stream S.
	Table OffsetTable

	// Trailer is the newest trailer dictionary, completed from older ones.
	Trailer Dict

	// Sections is the number of cross-reference sections read.
	Sections int

	// Shifted reports that every declared offset was off by the header offset.
	Shifted bool

	// Repaired reports that the declared tables could not be trusted and
	// Table was rebuilt by scanning the whole file.
	Repaired bool
}

// resolver holds the state of one resolution. Nothing in it is shared
// between resolutions.
type resolver struct {
	f            io.ReaderAt
	end          int64
	headerOffset int64
	opts         Options
	log          *slog.Logger
	candidates   *candidatePools
	probed       map[int64]bool // section starts already read
}

func newResolver(f io.ReaderAt, size, headerOffset int64, opts Options) *resolver {
	return &resolver{
		f:            f,
		end:          size,
		headerOffset: headerOffset,
		opts:         opts,
		log:          opts.logger(),
		probed:       make(map[int64]bool),
	}
}

// Resolve locates every object in the size bytes of f. headerOffset is the
// number of bytes preceding %PDF-; see FindHeader.
//
// Declared cross-reference data is followed where it can be trusted and
// corrected where it cannot. If the result still does not match the file,
// the table is rebuilt from a scan for object headers. An error is returned
// only when no objects can be found at all, or, with Options.Strict, when
// the /Prev chain loops or cannot be followed.
func Resolve(f io.ReaderAt, size, headerOffset int64, opts Options) (*Resolution, error) {
	return newResolver(f, size, headerOffset, opts).resolve()
}

func (r *resolver) resolve() (*Resolution, error) {
	res := &Resolution{}
	st, err := r.readDeclared()
	if err != nil {
		return nil, err
	}

	table := st.table
	res.Sections = st.sections
	res.Trailer = mergeTrailers(st.trailers)

	ptr, off, ok := r.crossCheck(table)
	var shifted types.OffsetTable
	if !ok && r.headerOffset != 0 {
		shifted = r.shifted(table)
	}
	switch {
	case ok && len(table) > 0:
	case shifted != nil:
		table = shifted
		res.Shifted = true
		r.log.Info("object offsets corrected by header shift", slog.Int64("shift", r.headerOffset))
	default:
		if len(table) > 0 {
			r.log.Warn("declared object offset does not match the file",
				slog.String("object", objfmt(ptr)), slog.Int64("offset", off))
		}
		rebuilt, err := r.rebuild(table)
		if err != nil {
			op := "object scan"
			if st.sections == 0 {
				op = "object scan without cross-reference data"
			}
			return nil, &MalformedError{Op: op, Err: err}
		}
		table = rebuilt
		res.Repaired = true
	}
	res.Table = table

	if res.Trailer["Root"] == nil {
		if rec := r.recoverTrailer(table); rec != nil {
			res.Trailer = mergeTrailers([]types.Dict{rec, res.Trailer})
		} else {
			r.log.Warn("no trailer dictionary with /Root found")
		}
	}
	return res, nil
}

// shifted returns table moved by the header offset if every entry then
// matches the file, or nil.
func (r *resolver) shifted(table types.OffsetTable) types.OffsetTable {
	if len(table) == 0 {
		return nil
	}
	out := shiftTable(table, r.headerOffset)
	if _, _, ok := r.crossCheck(out); !ok {
		return nil
	}
	return out
}

// readDeclared follows the file's own cross-reference data, starting from
// startxref. A missing or unusable startxref yields an empty state.
func (r *resolver) readDeclared() (*walkState, error) {
	loc := locateStartxref(r.f, r.end)
	if !loc.hasPos {
		r.log.Warn("startxref not found; scanning the whole file", slog.Any("error", ErrNoStartxref))
		return newWalkState(), nil
	}

	declared := loc.offset
	if !loc.hasOffset {
		// the last section usually sits just before the directive
		r.log.Warn("startxref not followed by an integer", slog.Int64("position", loc.pos))
		declared = loc.pos
	} else if !loc.isValidOffset(r.end) {
		r.log.Warn("startxref offset outside the file",
			slog.Int64("offset", loc.offset), slog.Int64("size", r.end))
	}

	off, ok := r.checkXrefOffset(declared)
	if !ok {
		return newWalkState(), nil
	}
	st, err := r.walk(off)
	if err != nil {
		return nil, err
	}
	r.log.Debug("followed cross-reference chain", slog.String("chain", st.String()))
	return st, nil
}

// FindHeader returns the number of bytes preceding the %PDF- marker, which
// must appear within the first kilobyte.
func FindHeader(f io.ReaderAt, size int64) (int64, error) {
	const limit = 1024
	head := readAt(f, size, 0, limit)
	i := bytes.Index(head, []byte("%PDF-"))
	if i < 0 {
		return 0, ErrNotPDF
	}
	return int64(i), nil
}

// IsMalformed reports whether err describes unusable PDF structure.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}
