package pdfxref

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/ScriptRock/pdfxref/internal/types"
)

// decodeStream applies the filters named in hdr to data, in order.
func decodeStream(data []byte, hdr types.Dict) ([]byte, error) {
	var filters, params types.Array
	switch f := hdr["Filter"].(type) {
	case nil:
		return data, nil
	case types.Name:
		filters = types.Array{f}
		params = types.Array{hdr["DecodeParms"]}
	case types.Array:
		filters = f
		params, _ = hdr["DecodeParms"].(types.Array)
	default:
		return nil, fmt.Errorf("unsupported Filter %v", objfmt(f))
	}

	var err error
	for i, f := range filters {
		name, ok := f.(types.Name)
		if !ok {
			return nil, fmt.Errorf("unsupported Filter %v", objfmt(f))
		}
		var param types.Dict
		if i < len(params) {
			param, _ = params[i].(types.Dict)
		}
		if data, err = applyFilter(data, name, param); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return data, nil
}

func applyFilter(data []byte, name types.Name, param types.Dict) ([]byte, error) {
	switch name {
	default:
		return nil, errors.New("unknown filter")
	case "FlateDecode", "Fl":
		out, err := inflate(data)
		if err != nil {
			return nil, err
		}
		return applyPredictor(out, param)
	case "ASCIIHexDecode", "AHx":
		return asciiHexDecode(data)
	case "ASCII85Decode", "A85":
		return ascii85Decode(data)
	case "RunLengthDecode", "RL":
		return runLengthDecode(data)
	}
}

// inflate decompresses zlib data. Data cut short by a truncated file or a
// bad checksum is returned as far as it could be read. Streams missing the
// zlib header are read as raw deflate.
func inflate(data []byte) ([]byte, error) {
	var rd io.ReadCloser
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		rd = flate.NewReader(bytes.NewReader(data))
	} else {
		rd = zr
	}
	defer rd.Close()
	out, err := io.ReadAll(rd)
	if err != nil && len(out) == 0 {
		return nil, err
	}
	return out, nil
}

func applyPredictor(data []byte, param types.Dict) ([]byte, error) {
	pred, _ := param["Predictor"].(int64)
	if pred <= 1 || len(data) == 0 {
		return data, nil
	}
	colors := intParam(param, "Colors", 1)
	bpc := intParam(param, "BitsPerComponent", 8)
	columns := intParam(param, "Columns", 1)
	// a row never holds more bits than the data; this also keeps the
	// row size from overflowing
	if colors < 1 || colors > 32 || bpc < 1 || bpc > 16 || columns < 1 || columns > int64(len(data))*8 {
		return nil, fmt.Errorf("invalid predictor parameters %v for %d bytes", objfmt(param), len(data))
	}
	bpp := int((colors*bpc + 7) / 8)
	rowLen := int((columns*colors*bpc + 7) / 8)
	if rowLen > len(data) {
		return nil, fmt.Errorf("predictor row of %d bytes exceeds %d bytes of data", rowLen, len(data))
	}

	switch {
	case pred == 2:
		if bpc != 8 {
			return nil, fmt.Errorf("unsupported TIFF predictor with %d bits per component", bpc)
		}
		out := bytes.Clone(data)
		for row := 0; row+rowLen <= len(out); row += rowLen {
			for i := bpp; i < rowLen; i++ {
				out[row+i] += out[row+i-bpp]
			}
		}
		return out, nil
	case pred >= 10:
		return unpredictPNG(data, bpp, rowLen)
	}
	return nil, fmt.Errorf("unknown predictor %d", pred)
}

func intParam(d types.Dict, key types.Name, def int64) int64 {
	if v, ok := d[key].(int64); ok {
		return v
	}
	return def
}

// unpredictPNG reverses PNG row filtering: every row is one filter-type
// byte followed by rowLen bytes.
func unpredictPNG(data []byte, bpp, rowLen int) ([]byte, error) {
	out := make([]byte, 0, len(data))
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for len(data) > rowLen {
		typ := data[0]
		copy(cur, data[1:rowLen+1])
		data = data[rowLen+1:]
		for i := 0; i < rowLen; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch typ {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("malformed PNG row filter %d", typ)
			}
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func asciiHexDecode(data []byte) ([]byte, error) {
	clean := make([]byte, 0, len(data))
	for _, c := range data {
		if c == '>' {
			break
		}
		if !isSpace(c) {
			clean = append(clean, c)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out := make([]byte, len(clean)/2)
	if _, err := hex.Decode(out, clean); err != nil {
		return nil, err
	}
	return out, nil
}

func ascii85Decode(data []byte) ([]byte, error) {
	clean := make([]byte, 0, len(data))
	for _, c := range data {
		if c == '~' {
			break
		}
		if !isSpace(c) {
			clean = append(clean, c)
		}
	}
	out := make([]byte, 4*len(clean)+4)
	n, _, err := ascii85.Decode(out, clean, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func runLengthDecode(data []byte) ([]byte, error) {
	var out []byte
	for len(data) > 0 {
		n := int(data[0])
		data = data[1:]
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			if len(data) < n+1 {
				return nil, io.ErrUnexpectedEOF
			}
			out = append(out, data[:n+1]...)
			data = data[n+1:]
		default:
			if len(data) < 1 {
				return nil, io.ErrUnexpectedEOF
			}
			out = append(out, bytes.Repeat(data[:1], 257-n)...)
			data = data[1:]
		}
	}
	return out, nil
}
