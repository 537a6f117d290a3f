package pdfxref

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// objstmPDF has direct objects, compressed objects and an xref stream.
func objstmPDF() *pdfBuilder {
	p := newPDF("")
	p.obj(1, "<</Type /Catalog /Pages 2 0 R /Extra 4 0 R>>")
	p.obj(2, "<</Type /Pages /Kids [] /Count 0>>")
	p.objStream(3, []objstmMemberBody{
		{id: 4, body: "<</Kind /Four /Next 5 0 R>>"},
		{id: 5, body: "[1 2.5 (five) /Six]"},
	})
	p.stream(7, "/Filter /FlateDecode", deflate("stream contents"))
	xoff := p.pos()
	p.xrefStream(6, [3]int{1, 4, 1}, []xrefRecord{
		{0, 0, 255},
		{1, p.objs[1], 0},
		{1, p.objs[2], 0},
		{1, p.objs[3], 0},
		{2, 3, 0},
		{2, 3, 1},
		{1, xoff, 0},
		{1, p.objs[7], 0},
	}, "/Size 8 /Root 1 0 R")
	p.startxref(xoff)
	return p
}

func TestReader_Objects(t *testing.T) {
	p := objstmPDF()
	r, err := NewReaderOptions(bytes.NewReader(p.Bytes()), int64(p.Len()), quietOptions())
	require.NoError(t, err)
	defer r.Close()

	assert.False(t, r.Repaired())

	root := r.Trailer().Key("Root")
	require.Equal(t, DictKind, root.Kind())
	assert.Equal(t, "Catalog", root.Key("Type").Name())
	assert.Equal(t, Objptr{ID: 1}, root.Ptr())
	assert.Equal(t, int64(0), root.Key("Pages").Key("Count").Int64())

	four := root.Key("Extra")
	assert.Equal(t, "Four", four.Key("Kind").Name())
	assert.Equal(t, []string{"Kind", "Next"}, four.Keys())

	five := four.Key("Next")
	require.Equal(t, ArrayKind, five.Kind())
	assert.Equal(t, 4, five.Len())
	assert.Equal(t, int64(1), five.Index(0).Int64())
	assert.Equal(t, 2.5, five.Index(1).Float64())
	assert.Equal(t, "five", five.Index(2).Text())
	assert.Equal(t, "Six", five.Index(3).Name())
	assert.True(t, five.Index(4).IsNull())

	strm := r.Object(Objptr{ID: 7})
	require.Equal(t, StreamKind, strm.Kind())
	data, err := strm.Data()
	require.NoError(t, err)
	assert.Equal(t, "stream contents", string(data))

	assert.True(t, r.Object(Objptr{ID: 40}).IsNull())
	assert.True(t, r.Object(Objptr{ID: 1, Gen: 3}).IsNull())
}

func TestReader_XrefIsACopy(t *testing.T) {
	p := simplePDF("")
	r, err := NewReaderOptions(bytes.NewReader(p.Bytes()), int64(p.Len()), quietOptions())
	require.NoError(t, err)

	x := r.Xref()
	delete(x, Objptr{ID: 1})
	assert.Equal(t, 2, r.Xref().Len())
}

func TestReader_ConcurrentObjects(t *testing.T) {
	p := objstmPDF()
	r, err := NewReaderOptions(bytes.NewReader(p.Bytes()), int64(p.Len()), quietOptions())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range []uint64{4, 5, 1, 2} {
				assert.False(t, r.Object(Objptr{ID: id}).IsNull(), "object %d", id)
			}
		}()
	}
	wg.Wait()
}

func TestOpen(t *testing.T) {
	p := simplePDF("junk before header\n")
	path := filepath.Join(t.TempDir(), "shifted.pdf")
	require.NoError(t, os.WriteFile(path, p.Bytes(), 0o644))

	r, err := OpenOptions(path, quietOptions())
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "Pages", r.Trailer().Key("Root").Key("Pages").Key("Type").Name())
	assert.Equal(t, p.objs[1], r.Xref()[Objptr{ID: 1}])
}

func TestOpen_NotPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("just text"), 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestObjectStream(t *testing.T) {
	p := newPDF("")
	off := p.objStream(3, []objstmMemberBody{
		{id: 10, body: "<</A 1>>"},
		{id: 11, body: "42"},
	})
	f := bytes.NewReader(p.Bytes())

	stm, err := loadObjectStream(f, int64(p.Len()), off, types.Objptr{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, []objstmMember{{id: 10, off: 0}, {id: 11, off: 9}}, stm.members)

	obj, err := stm.object(11)
	require.NoError(t, err)
	assert.Equal(t, int64(42), obj)

	obj, err = stm.object(10)
	require.NoError(t, err)
	assert.Equal(t, types.Dict{"A": int64(1)}, obj)

	_, err = stm.object(12)
	assert.Error(t, err)

	_, err = loadObjectStream(f, int64(p.Len()), off, types.Objptr{ID: 4})
	assert.True(t, IsMalformed(err))
}
