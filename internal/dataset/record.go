package dataset

import (
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// Field is one column/value pair of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is a single row keeping the table's column order. It encodes as a
// JSON object whose keys appear in that order.
type Record struct {
	Fields []Field
}

// Get returns the value of the named field.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	api := jsoniter.ConfigCompatibleWithStandardLibrary
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, f := range r.Fields {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(f.Name)
		writeValue(stream, f.Value)
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// MarshalJSON implements json.Marshaler; nulls and non-finite floats encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	api := jsoniter.ConfigCompatibleWithStandardLibrary
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	writeValue(stream, v)
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func writeValue(stream *jsoniter.Stream, v Value) {
	switch v.kind {
	case IntVal:
		stream.WriteInt64(v.i)
	case FloatVal:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			stream.WriteNil()
			return
		}
		// Integral floats keep a ".0" so they read differently from ints.
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1e21 {
			stream.WriteRaw(strconv.FormatFloat(v.f, 'f', 1, 64))
			return
		}
		stream.WriteFloat64(v.f)
	case StringVal:
		stream.WriteString(v.s)
	default:
		stream.WriteNil()
	}
}
