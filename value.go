package pdfxref

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ScriptRock/pdfxref/internal/encoding"
	"github.com/ScriptRock/pdfxref/internal/types"
)

// A Value is a single PDF value, such as an integer, dictionary, or array.
// The zero Value is a PDF null (Kind() == NullKind, IsNull() = true).
type Value struct {
	r    *Reader
	ptr  types.Objptr
	data types.Object
}

// IsNull reports whether the value is a null. It is equivalent to Kind() == NullKind.
func (v Value) IsNull() bool {
	return v.data == nil
}

// A ValueKind specifies the kind of data underlying a Value.
type ValueKind int

// The PDF value kinds.
const (
	NullKind ValueKind = iota
	BoolKind
	IntegerKind
	RealKind
	StringKind
	NameKind
	DictKind
	ArrayKind
	StreamKind
)

// Kind reports the kind of value underlying v.
func (v Value) Kind() ValueKind {
	switch v.data.(type) {
	default:
		return NullKind
	case bool:
		return BoolKind
	case int64:
		return IntegerKind
	case float64:
		return RealKind
	case string:
		return StringKind
	case types.Name:
		return NameKind
	case types.Dict:
		return DictKind
	case types.Array:
		return ArrayKind
	case types.Stream:
		return StreamKind
	}
}

// Ptr returns the object v was read from, or the zero Objptr for the trailer.
func (v Value) Ptr() Objptr {
	return v.ptr
}

// String returns a textual representation of the value v.
// Note that String is not the accessor for values with Kind() == StringKind.
// To access such values, see RawString and Text.
func (v Value) String() string {
	return objfmt(v.data)
}

func objfmt(x types.Object) string {
	switch x := x.(type) {
	default:
		return fmt.Sprint(x)
	case string:
		text, _ := encoding.DecodeText(x)
		return strconv.Quote(text)
	case types.Name:
		return "/" + string(x)
	case types.Dict:
		var sb strings.Builder
		sb.WriteString("<<")
		for i, k := range sortedKeys(x) {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "/%s %s", k, objfmt(x[types.Name(k)]))
		}
		sb.WriteString(">>")
		return sb.String()
	case types.Array:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, elem := range x {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(objfmt(elem))
		}
		sb.WriteByte(']')
		return sb.String()
	case types.Stream:
		return fmt.Sprintf("%v@%d", objfmt(x.Hdr), x.Offset)
	case types.Objptr:
		return fmt.Sprintf("%d %d R", x.ID, x.Gen)
	case types.Objdef:
		return fmt.Sprintf("{%d %d obj}%v", x.Ptr.ID, x.Ptr.Gen, objfmt(x.Obj))
	}
}

func sortedKeys(d types.Dict) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	slices.Sort(keys)
	return keys
}

// Bool returns v's boolean value.
// If v.Kind() != BoolKind, Bool returns false.
func (v Value) Bool() bool {
	x, _ := v.data.(bool)
	return x
}

// Int64 returns v's int64 value.
// If v.Kind() != IntegerKind, Int64 returns 0.
func (v Value) Int64() int64 {
	x, _ := v.data.(int64)
	return x
}

// Float64 returns v's float64 value, converting from integer if necessary.
func (v Value) Float64() float64 {
	switch x := v.data.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	}
	return 0
}

// RawString returns v's string value.
// If v.Kind() != StringKind, RawString returns the empty string.
func (v Value) RawString() string {
	x, _ := v.data.(string)
	return x
}

// Text returns v's string value interpreted as a “text string” (defined in the PDF spec)
// and converted to UTF-8.
// If v.Kind() != StringKind, Text returns the empty string.
func (v Value) Text() string {
	x, ok := v.data.(string)
	if !ok {
		return ""
	}
	text, _ := encoding.DecodeText(x)
	return text
}

// Name returns v's name value without the leading slash.
// If v.Kind() != NameKind, Name returns the empty string.
func (v Value) Name() string {
	x, _ := v.data.(types.Name)
	return string(x)
}

func (v Value) dict() types.Dict {
	switch x := v.data.(type) {
	case types.Dict:
		return x
	case types.Stream:
		return x.Hdr
	}
	return nil
}

// Key returns the value associated with the given name key in the dictionary v,
// following an indirect reference through the cross-reference table.
// If v is a stream, Key applies to the stream's header dictionary.
// If v.Kind() != DictKind and v.Kind() != StreamKind, Key returns a null Value.
func (v Value) Key(key string) Value {
	d := v.dict()
	if d == nil || v.r == nil {
		return Value{}
	}
	return v.r.resolve(v.ptr, d[types.Name(key)])
}

// Keys returns a sorted list of the keys in the dictionary v.
// If v is a stream, Keys applies to the stream's header dictionary.
// If v.Kind() != DictKind and v.Kind() != StreamKind, Keys returns nil.
func (v Value) Keys() []string {
	d := v.dict()
	if d == nil {
		return nil
	}
	return sortedKeys(d)
}

// Index returns the i'th element in the array v.
// If v.Kind() != ArrayKind or if i is outside the array bounds,
// Index returns a null Value.
func (v Value) Index(i int) Value {
	x, ok := v.data.(types.Array)
	if !ok || i < 0 || i >= len(x) || v.r == nil {
		return Value{}
	}
	return v.r.resolve(v.ptr, x[i])
}

// Len returns the length of the array v.
// If v.Kind() != ArrayKind, Len returns 0.
func (v Value) Len() int {
	x, _ := v.data.(types.Array)
	return len(x)
}

// Data returns the decoded contents of the stream v.
func (v Value) Data() ([]byte, error) {
	x, ok := v.data.(types.Stream)
	if !ok || v.r == nil {
		return nil, fmt.Errorf("stream not present")
	}
	// an indirect /Length is resolved before the bytes are located
	if _, direct := x.Hdr["Length"].(int64); !direct && x.Hdr["Length"] != nil {
		hdr := make(types.Dict, len(x.Hdr))
		for k, e := range x.Hdr {
			hdr[k] = e
		}
		hdr["Length"] = v.Key("Length").Int64()
		x.Hdr = hdr
	}
	return v.r.streamData(x)
}
