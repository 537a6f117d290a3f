package pdfxref

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScriptRock/pdfxref/internal/types"
)

func TestReadXrefStream_Records(t *testing.T) {
	p := newPDF("")
	off := p.xrefStream(9, [3]int{1, 2, 1}, []xrefRecord{{1, 0x0011, 0}, {2, 0x0001, 3}}, "/Size 2")
	p.startxref(off)

	r := newTestResolver(p.Bytes(), 0, quietOptions())
	sec, err := r.readXrefStream(off)
	require.NoError(t, err)

	want := types.OffsetTable{
		{ID: 0}: 17,
		{ID: 1}: -1,
	}
	if diff := cmp.Diff(want, sec.offsets); diff != "" {
		t.Error("stream entries did not match expectation:", diff)
	}
	assert.Equal(t, types.Objptr{ID: 9}, sec.ptr)
	assert.Equal(t, fieldSize{f1: 1, f2: 2, f3: 1}, sec.widths)
}

func TestReadXrefStream_Compressed(t *testing.T) {
	// the same records, Flate-compressed with a PNG Up predictor over 4 columns
	rows := []byte{
		2, 1, 0, 0x11, 0,
		2, 1, 0, 0xf0, 3,
	}
	p := newPDF("")
	off := p.stream(4, "/Type /XRef /W [1 2 1] /Index [5 2] /Filter /FlateDecode /DecodeParms <</Predictor 12 /Columns 4>>",
		deflate(string(rows)))

	r := newTestResolver(p.Bytes(), 0, quietOptions())
	sec, err := r.readXrefStream(off)
	require.NoError(t, err)

	want := types.OffsetTable{
		{ID: 5}: 17,
		{ID: 6}: -1,
	}
	if diff := cmp.Diff(want, sec.offsets); diff != "" {
		t.Error("stream entries did not match expectation:", diff)
	}
}

func TestReadXrefStream_Errors(t *testing.T) {
	testCases := map[string]struct {
		body          string
		wantNoSection bool
	}{
		"plain dictionary":   {body: "1 0 obj\n<</Type /XRef>>\nendobj\n", wantNoSection: true},
		"other stream type":  {body: "1 0 obj\n<</Type /ObjStm /Length 0>>\nstream\n\nendstream\nendobj\n", wantNoSection: true},
		"not an object":      {body: "xref\n", wantNoSection: true},
		"missing W":          {body: "1 0 obj\n<</Type /XRef /Length 0>>\nstream\n\nendstream\nendobj\n"},
		"oversized W":        {body: "1 0 obj\n<</Type /XRef /W [1 9 1] /Length 0>>\nstream\n\nendstream\nendobj\n"},
		"all-zero W":         {body: "1 0 obj\n<</Type /XRef /W [0 0 0] /Length 0>>\nstream\n\nendstream\nendobj\n"},
		"odd Index":          {body: "1 0 obj\n<</Type /XRef /W [1 1 1] /Index [0] /Length 3>>\nstream\n\x01\x02\x00\nendstream\nendobj\n"},
		"unsupported filter": {body: "1 0 obj\n<</Type /XRef /W [1 1 1] /Filter /JBIG2Decode /Length 3>>\nstream\n\x01\x02\x00\nendstream\nendobj\n"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			r := newTestResolver([]byte(tc.body), 0, quietOptions())
			_, err := r.readXrefStream(0)
			require.Error(t, err)

			if got := errors.Is(err, errNoSection); got != tc.wantNoSection {
				t.Errorf("errors.Is(err, errNoSection) = %v, want %v (err: %v)", got, tc.wantNoSection, err)
			}
			if !tc.wantNoSection && !IsMalformed(err) {
				t.Errorf("error %v is not a MalformedError", err)
			}
		})
	}
}

func TestDecodeXrefStream(t *testing.T) {
	testCases := map[string]struct {
		data  []byte
		w     fieldSize
		index []int64
		want  types.OffsetTable
	}{
		"default type": {
			data:  []byte{0, 0x20, 0, 0, 0x30, 1},
			w:     fieldSize{f2: 2, f3: 1},
			index: []int64{3, 2},
			want:  types.OffsetTable{{ID: 3}: 0x20, {ID: 4, Gen: 1}: 0x30},
		},
		"free and unknown types ignored": {
			data:  []byte{0, 0, 9, 1, 1, 0, 0x40, 0, 7, 0, 5, 0},
			w:     fieldSize{f1: 1, f2: 2, f3: 1},
			index: []int64{0, 3},
			want:  types.OffsetTable{{ID: 1}: 0x40},
		},
		"several runs": {
			data:  []byte{1, 0x10, 0, 1, 0x20, 0, 2, 0x05, 4},
			w:     fieldSize{f1: 1, f2: 1, f3: 1},
			index: []int64{2, 1, 8, 2},
			want:  types.OffsetTable{{ID: 2}: 0x10, {ID: 8}: 0x20, {ID: 9}: -5},
		},
		"short data": {
			data:  []byte{1, 0x10, 0, 1},
			w:     fieldSize{f1: 1, f2: 1, f3: 1},
			index: []int64{0, 5},
			want:  types.OffsetTable{{ID: 0}: 0x10},
		},
		"extra fields": {
			data:  []byte{1, 0x10, 0, 0xff, 0xff},
			w:     fieldSize{f1: 1, f2: 1, f3: 1, extra: 2},
			index: []int64{1, 1},
			want:  types.OffsetTable{{ID: 1}: 0x10},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got := decodeXrefStream(tc.data, tc.w, tc.index)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Error("decoded entries did not match expectation:", diff)
			}
		})
	}
}

func TestStreamLength(t *testing.T) {
	testCases := map[string]struct {
		body string
		want string
	}{
		"correct length": {
			body: "1 0 obj\n<</Length 5>>\nstream\nhello\nendstream\nendobj\n",
			want: "hello",
		},
		"length too long": {
			body: "1 0 obj\n<</Length 50>>\nstream\nhello\nendstream\nendobj\n",
			want: "hello",
		},
		"length too short": {
			body: "1 0 obj\n<</Length 2>>\nstream\nhello\r\nendstream\nendobj\n",
			want: "hello",
		},
		"indirect length": {
			body: "1 0 obj\n<</Length 2 0 R>>\nstream\nhello\nendstream\nendobj\n",
			want: "hello",
		},
		"missing endstream": {
			body: "1 0 obj\n<<>>\nstream\nhello\nendobj\n",
			want: "hello",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			data := []byte(tc.body)
			f := bytes.NewReader(data)
			b := bufferAt(f, 0, int64(len(data)))
			def, ok := b.readObject().(types.Objdef)
			require.True(t, ok)
			strm, ok := def.Obj.(types.Stream)
			require.True(t, ok)

			got, err := streamBytes(f, int64(len(data)), strm)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}
