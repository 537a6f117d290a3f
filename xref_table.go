package pdfxref

import (
	"log/slog"
	"math"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// readXrefTable parses a classic cross-reference table starting at off.
// It returns errNoSection if off does not hold the xref keyword.
func (r *resolver) readXrefTable(off int64) (sec *tableSection, err error) {
	defer catch("xref table", off, &err)

	if !keywordAt(r.f, r.end, off, "xref") {
		return nil, errNoSection
	}
	b := bufferAt(r.f, off, r.end)
	if tok := b.readToken(); tok != keyword("xref") {
		return nil, errNoSection
	}

	offsets := types.OffsetTable{}
	if err := r.readXrefTableData(b, off, offsets); err != nil {
		return nil, err
	}

	trailer, ok := b.readObject().(types.Dict)
	if !ok {
		return nil, malformed("xref table", off, "xref table not followed by trailer dictionary")
	}
	return &tableSection{offset: off, offsets: offsets, trailer: trailer}, nil
}

// readXrefTableData reads subsections up to and including the trailer
// keyword. Subsection counts are not trusted: two integers followed by
// anything other than f or n start a new subsection.
func (r *resolver) readXrefTableData(b *buffer, off int64, offsets types.OffsetTable) error {
	var next int64
	for {
		tok := b.readToken()
		if tok == keyword("trailer") {
			return nil
		}
		n1, ok1 := tok.(int64)
		tok2 := b.readToken()
		n2, ok2 := tok2.(int64)
		if !ok1 || !ok2 {
			return malformed("xref table", off, "unexpected %v in xref table", objfmt(firstNonInt(tok, tok2)))
		}

		tok3 := b.readToken()
		if tok3 != keyword("n") && tok3 != keyword("f") {
			if n1 < 0 || n2 < 0 {
				return malformed("xref table", off, "invalid subsection header %d %d", n1, n2)
			}
			b.unreadToken(tok3)
			next = n1
			continue
		}

		id := next
		next++
		if tok3 == keyword("f") {
			continue
		}
		if n1 <= 0 || n2 < 0 || n2 > math.MaxUint32 {
			r.log.Debug("skipping unusable xref entry",
				slog.Int64("object", id), slog.Int64("offset", n1), slog.Int64("generation", n2))
			continue
		}
		offsets.AddFirst(types.Objptr{ID: uint64(id), Gen: uint32(n2)}, n1)
	}
}

func firstNonInt(toks ...token) token {
	for _, t := range toks {
		if _, ok := t.(int64); !ok {
			return t
		}
	}
	return nil
}
