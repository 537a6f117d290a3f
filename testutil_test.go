package pdfxref

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// pdfBuilder assembles test files and remembers where each object landed.
// Offsets it writes into xref data are relative to the %PDF- header, so a
// junk prefix leaves them all short by its length.
type pdfBuilder struct {
	bytes.Buffer
	shift int64
	objs  map[uint64]int64
}

type xrefEntry struct {
	id  uint64
	off int64
}

type xrefRecord struct {
	typ, f2, f3 int64
}

type objstmMemberBody struct {
	id   uint64
	body string
}

func newPDF(junk string) *pdfBuilder {
	p := &pdfBuilder{shift: int64(len(junk)), objs: make(map[uint64]int64)}
	p.WriteString(junk)
	p.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	return p
}

func (p *pdfBuilder) pos() int64 {
	return int64(p.Len())
}

// rel converts a file offset to the offset a writer unaware of any junk
// prefix would have recorded.
func (p *pdfBuilder) rel(off int64) int64 {
	return off - p.shift
}

func (p *pdfBuilder) obj(id uint64, body string) int64 {
	off := p.pos()
	p.objs[id] = off
	fmt.Fprintf(p, "%d 0 obj\n%s\nendobj\n", id, body)
	return off
}

func (p *pdfBuilder) stream(id uint64, dict string, data []byte) int64 {
	off := p.pos()
	p.objs[id] = off
	fmt.Fprintf(p, "%d 0 obj\n<<%s /Length %d>>\nstream\n", id, dict, len(data))
	p.Write(data)
	p.WriteString("\nendstream\nendobj\n")
	return off
}

// refs returns table entries for ids at their recorded offsets.
func (p *pdfBuilder) refs(ids ...uint64) []xrefEntry {
	var out []xrefEntry
	for _, id := range ids {
		out = append(out, xrefEntry{id: id, off: p.rel(p.objs[id])})
	}
	return out
}

// table writes a classic xref section, one subsection per entry, and
// returns its offset.
func (p *pdfBuilder) table(entries []xrefEntry, trailer string) int64 {
	off := p.pos()
	p.WriteString("xref\n0 1\n0000000000 65535 f \n")
	for _, e := range entries {
		fmt.Fprintf(p, "%d 1\n%010d 00000 n \n", e.id, e.off)
	}
	fmt.Fprintf(p, "trailer\n<<%s>>\n", trailer)
	return off
}

// xrefStream writes an uncompressed cross-reference stream object.
func (p *pdfBuilder) xrefStream(id uint64, w [3]int, recs []xrefRecord, dict string) int64 {
	var data []byte
	for _, r := range recs {
		data = appendField(data, r.typ, w[0])
		data = appendField(data, r.f2, w[1])
		data = appendField(data, r.f3, w[2])
	}
	return p.stream(id, fmt.Sprintf("/Type /XRef /W [%d %d %d] %s", w[0], w[1], w[2], dict), data)
}

func appendField(b []byte, v int64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

// objStream writes a Flate-compressed object stream holding members.
func (p *pdfBuilder) objStream(id uint64, members []objstmMemberBody) int64 {
	var head, body strings.Builder
	for _, m := range members {
		fmt.Fprintf(&head, "%d %d ", m.id, body.Len())
		body.WriteString(m.body)
		body.WriteString(" ")
	}
	data := head.String() + body.String()
	dict := fmt.Sprintf("/Type /ObjStm /N %d /First %d /Filter /FlateDecode", len(members), head.Len())
	return p.stream(id, dict, deflate(data))
}

func (p *pdfBuilder) startxref(off int64) {
	fmt.Fprintf(p, "startxref\n%d\n%%%%EOF\n", off)
}

func deflate(s string) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte(s))
	zw.Close()
	return buf.Bytes()
}

func quietOptions() Options {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func newTestResolver(data []byte, headerOffset int64, opts Options) *resolver {
	return newResolver(bytes.NewReader(data), int64(len(data)), headerOffset, opts)
}

func resolveBytes(t *testing.T, data []byte, opts Options) (*Resolution, error) {
	t.Helper()
	f := bytes.NewReader(data)
	hdr, err := FindHeader(f, int64(len(data)))
	require.NoError(t, err)
	return Resolve(f, int64(len(data)), hdr, opts)
}

// simplePDF is a single-revision file with a catalog, a page tree and a
// classic table.
func simplePDF(junk string) *pdfBuilder {
	p := newPDF(junk)
	p.obj(1, "<</Type /Catalog /Pages 2 0 R>>")
	p.obj(2, "<</Type /Pages /Kids [] /Count 0>>")
	x := p.table(p.refs(1, 2), "/Size 3 /Root 1 0 R")
	p.startxref(p.rel(x))
	return p
}

// direct returns the table an exact resolution of p should produce for ids.
func (p *pdfBuilder) direct(ids ...uint64) types.OffsetTable {
	out := types.OffsetTable{}
	for _, id := range ids {
		out[types.Objptr{ID: id}] = p.objs[id]
	}
	return out
}
