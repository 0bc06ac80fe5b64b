package query

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/viggyfresh/prom/internal/backend"
)

// Factory turns a raw row into a result object.
type Factory func(row backend.Row) (any, error)

// StructFactory decodes rows into *T. Struct fields match columns by their
// `prom` tag, or case-insensitively by name. Values are weakly typed, so a
// stored 1 decodes into a bool field and an RFC 3339 string into a
// time.Time.
func StructFactory[T any]() Factory {
	return func(row backend.Row) (any, error) {
		out := new(T)
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "prom",
			Result:           out,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				timeHook,
				mapstructure.StringToTimeDurationHookFunc(),
			),
		})
		if err != nil {
			return nil, fmt.Errorf("build decoder: %w", err)
		}
		if err := decoder.Decode(row.Map()); err != nil {
			return nil, fmt.Errorf("decode row into %T: %w", out, err)
		}
		return out, nil
	}
}

// timeHook passes time.Time through untouched and parses RFC 3339 text.
func timeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	switch v := data.(type) {
	case time.Time:
		return v, nil
	case string:
		return time.Parse(time.RFC3339Nano, v)
	}
	return data, nil
}

// materializer converts raw rows into caller-facing values.
type materializer struct {
	fields  []string
	factory Factory
	values  bool
}

func (m materializer) materialize(row backend.Row) (any, error) {
	if m.values {
		return project(row, m.fields), nil
	}
	if m.factory != nil {
		return m.factory(row)
	}
	return row, nil
}

// project returns the bare value for a single field, else a []any in field
// order. Missing columns project to nil.
func project(row backend.Row, fields []string) any {
	if len(fields) == 1 {
		v, _ := row.Get(fields[0])
		return v
	}
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i], _ = row.Get(f)
	}
	return out
}
