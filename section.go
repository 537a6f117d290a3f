package pdfxref

import (
	"errors"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// A section is one physical cross-reference section: a *tableSection or a
// *streamSection. Each holds only the entries it declares itself.
type section interface {
	isSection()
}

// tableSection is a classic "xref ... trailer" section.
type tableSection struct {
	offset  int64
	offsets types.OffsetTable
	trailer types.Dict
}

// streamSection is a cross-reference stream object.
type streamSection struct {
	offset  int64
	ptr     types.Objptr
	offsets types.OffsetTable
	dict    types.Dict
	widths  fieldSize
}

func (*tableSection) isSection()  {}
func (*streamSection) isSection() {}

// fieldSize holds the byte widths of the three fields of a stream record.
type fieldSize struct {
	f1, f2, f3 int
	extra      int // bytes of any fields beyond the third
}

func (w fieldSize) lineLength() int {
	return w.f1 + w.f2 + w.f3 + w.extra
}

// readSection parses whichever kind of section starts at off.
func (r *resolver) readSection(off int64) (section, error) {
	tbl, err := r.readXrefTable(off)
	if err == nil {
		return tbl, nil
	}
	if !errors.Is(err, errNoSection) {
		return nil, err
	}
	strm, err := r.readXrefStream(off)
	if err != nil {
		return nil, err
	}
	return strm, nil
}
