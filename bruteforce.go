package pdfxref

import (
	"io"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// headerWindow is how far before an obj keyword a header's digits may start.
const headerWindow = 48

// scanObjects locates every "N G obj" header in f without consulting any
// cross-reference data. When an object is defined more than once the last
// definition wins, as incremental updates append to the file.
func scanObjects(f io.ReaderAt, size int64) types.OffsetTable {
	found := types.OffsetTable{}
	for _, pos := range indexAll(f, size, "obj") {
		start := pos - headerWindow
		if start < 0 {
			start = 0
		}
		b := readAt(f, size, start, int(pos-start)+4)
		ptr, j, ok := objectHeaderBefore(b, int(pos-start))
		if !ok || j == 0 && start > 0 {
			continue
		}
		found[ptr] = start + int64(j)
	}
	return found
}
