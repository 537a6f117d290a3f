package pdfxref

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ScriptRock/pdfxref/internal/types"
)

func TestReadXrefTable(t *testing.T) {
	testCases := map[string]struct {
		data        string
		wantOffsets types.OffsetTable
		wantTrailer types.Dict
	}{
		"single subsection": {
			data: "xref\n0 3\n0000000000 65535 f \n0000000017 00000 n \n0000000081 00000 n \ntrailer<</Size 3/Root 1 0 R>>",
			wantOffsets: types.OffsetTable{
				{ID: 1}: 17,
				{ID: 2}: 81,
			},
			wantTrailer: types.Dict{"Size": int64(3), "Root": types.Objptr{ID: 1}},
		},
		"several subsections": {
			data: "xref\n0 1\n0000000000 65535 f \n3 2\n0000000100 00000 n \n0000000200 00002 n \n10 1\n0000000300 00000 n \ntrailer\n<</Size 11>>\n",
			wantOffsets: types.OffsetTable{
				{ID: 3}:         100,
				{ID: 4, Gen: 2}: 200,
				{ID: 10}:        300,
			},
			wantTrailer: types.Dict{"Size": int64(11)},
		},
		"wrong subsection count": {
			data: "xref\n0 5\n0000000000 65535 f \n0000000017 00000 n \n7 1\n0000000090 00000 n \ntrailer\n<</Size 8>>\n",
			wantOffsets: types.OffsetTable{
				{ID: 1}: 17,
				{ID: 7}: 90,
			},
			wantTrailer: types.Dict{"Size": int64(8)},
		},
		"zero offsets skipped": {
			data: "xref\n1 2\n0000000000 00000 n \n0000000040 00000 n \ntrailer\n<<>>\n",
			wantOffsets: types.OffsetTable{
				{ID: 2}: 40,
			},
			wantTrailer: types.Dict{},
		},
		"two-byte line endings": {
			data: "xref\r\n0 2\r\n0000000000 65535 f\r\n0000000015 00000 n\r\ntrailer\r\n<</Size 2>>\r\n",
			wantOffsets: types.OffsetTable{
				{ID: 1}: 15,
			},
			wantTrailer: types.Dict{"Size": int64(2)},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			r := newTestResolver([]byte(tc.data), 0, quietOptions())
			sec, err := r.readXrefTable(0)
			require.NoError(t, err)

			if diff := cmp.Diff(tc.wantOffsets, sec.offsets); diff != "" {
				t.Error("table entries did not match expectation:", diff)
			}
			if diff := cmp.Diff(tc.wantTrailer, sec.trailer); diff != "" {
				t.Error("trailer did not match expectation:", diff)
			}
		})
	}
}

func TestReadXrefTable_Errors(t *testing.T) {
	testCases := map[string]struct {
		data          string
		wantNoSection bool
	}{
		"not a table":       {data: "1 0 obj\n<<>>\nendobj\n", wantNoSection: true},
		"startxref":         {data: "startxref\n0\n", wantNoSection: true},
		"garbage in table":  {data: "xref\n0 1\n0000000000 65535 f \n/Oops\ntrailer\n<<>>\n"},
		"missing trailer":   {data: "xref\n0 1\n0000000000 65535 f \ntrailer\n[1 2]\n"},
		"truncated entries": {data: "xref\n0 2\n0000000000 65535 f \n00000"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			r := newTestResolver([]byte(tc.data), 0, quietOptions())
			_, err := r.readXrefTable(0)
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
