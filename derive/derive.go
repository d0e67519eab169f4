// Copyright (C) 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package derive is the Go-idiomatic substitute for a derive macro:
// since this module has no codegen step, Value mechanically
// transcribes an arbitrary Go value to Stream calls by reflection
// instead, following the same rules a generated implementation would
// (structs become records, slices/maps become seqs/maps, fixed-length
// arrays become a seq tagged ConstantSizedArray). It is grounded on
// the reflect-switch style of gapid's pod.NewValue, generalized from a
// closed set of boxed scalar/array kinds to the full core data model.
package derive

import (
	"reflect"
	"sort"
	"strconv"

	"github.com/google/structstream/stream"
	"github.com/google/structstream/token"
)

// structTag is the struct tag key used to override a field's record
// label. Only a bare name override and "-" (skip the field) are
// recognized; encoding/json-style ",option" suffixes are not parsed.
const structTag = "sval"

// Value wraps v, an arbitrary Go value, in a stream.Value that
// transcribes it by reflection. v may be a struct, slice, array, map,
// pointer, or any of the base/extended scalar kinds; any other kind
// (chan, func, unsafe pointer) reduces to Null.
func Value(v interface{}) stream.Value {
	if v == nil {
		return nullValue{}
	}
	return reflectValue{reflect.ValueOf(v)}
}

type nullValue struct{}

func (nullValue) Emit(s stream.Stream) error { return s.Null() }

type reflectValue struct{ rv reflect.Value }

func (rv reflectValue) Emit(s stream.Stream) error { return emit(rv.rv, s) }

func emit(v reflect.Value, s stream.Stream) error {
	if !v.IsValid() {
		return s.Null()
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return s.Null()
		}
		return s.Value(reflectValue{v.Elem()})

	case reflect.Bool:
		return s.Bool(v.Bool())
	case reflect.String:
		return emitText(v.String(), s)

	case reflect.Int:
		return s.I64(v.Int())
	case reflect.Int8:
		return s.I8(int8(v.Int()))
	case reflect.Int16:
		return s.I16(int16(v.Int()))
	case reflect.Int32:
		return s.I32(int32(v.Int()))
	case reflect.Int64:
		return s.I64(v.Int())
	case reflect.Uint, reflect.Uintptr:
		return s.U64(v.Uint())
	case reflect.Uint8:
		return s.U8(uint8(v.Uint()))
	case reflect.Uint16:
		return s.U16(uint16(v.Uint()))
	case reflect.Uint32:
		return s.U32(uint32(v.Uint()))
	case reflect.Uint64:
		return s.U64(v.Uint())
	case reflect.Float32:
		return s.F32(float32(v.Float()))
	case reflect.Float64:
		return s.F64(v.Float())

	case reflect.Slice:
		if v.IsNil() {
			return s.Null()
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return emitBinary(v.Bytes(), s)
		}
		return emitSeq(v, s)

	case reflect.Array:
		return emitArray(v, s)

	case reflect.Map:
		return emitMap(v, s)

	case reflect.Struct:
		return emitRecord(v, s)

	default:
		return s.Null()
	}
}

func emitText(str string, s stream.Stream) error {
	if err := s.TextBegin(len(str)); err != nil {
		return err
	}
	if err := s.TextFragmentComputed(str); err != nil {
		return err
	}
	return s.TextEnd()
}

func emitBinary(b []byte, s stream.Stream) error {
	if err := s.BinaryBegin(len(b)); err != nil {
		return err
	}
	if err := s.BinaryFragmentComputed(b); err != nil {
		return err
	}
	return s.BinaryEnd()
}

func emitSeq(v reflect.Value, s stream.Stream) error {
	n := v.Len()
	if err := s.SeqBegin(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := s.SeqValueBegin(); err != nil {
			return err
		}
		if err := s.Value(reflectValue{v.Index(i)}); err != nil {
			return err
		}
		if err := s.SeqValueEnd(); err != nil {
			return err
		}
	}
	return s.SeqEnd()
}

// emitArray renders a fixed-length array as a seq tagged
// ConstantSizedArray, the reserved tag spec §6 sets aside for exactly
// this case.
func emitArray(v reflect.Value, s stream.Stream) error {
	if err := s.TaggedBegin(token.ConstantSizedArrayTag, nil, nil); err != nil {
		return err
	}
	if err := emitSeq(v, s); err != nil {
		return err
	}
	return s.TaggedEnd()
}

func emitMap(v reflect.Value, s stream.Stream) error {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return formatKey(keys[i]) < formatKey(keys[j])
	})
	if err := s.MapBegin(len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.MapKeyBegin(); err != nil {
			return err
		}
		if err := s.Value(reflectValue{k}); err != nil {
			return err
		}
		if err := s.MapKeyEnd(); err != nil {
			return err
		}
		if err := s.MapValueBegin(); err != nil {
			return err
		}
		if err := s.Value(reflectValue{v.MapIndex(k)}); err != nil {
			return err
		}
		if err := s.MapValueEnd(); err != nil {
			return err
		}
	}
	return s.MapEnd()
}

// formatKey gives map keys a stable total order for deterministic
// output; it need not be the key's natural ordering, only consistent
// across a single Emit call.
func formatKey(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10)
	default:
		return ""
	}
}

func emitRecord(v reflect.Value, s stream.Stream) error {
	t := v.Type()
	fields := exportedFields(t)
	if err := s.RecordBegin(nil, nil, nil, len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		label := token.Label{Text: f.name, Tag: &token.ValueIdentTag}
		if err := s.RecordValueBegin(label); err != nil {
			return err
		}
		if err := s.Value(reflectValue{v.Field(f.index)}); err != nil {
			return err
		}
		if err := s.RecordValueEnd(label); err != nil {
			return err
		}
	}
	return s.RecordEnd()
}

type fieldInfo struct {
	name  string
	index int
}

func exportedFields(t reflect.Type) []fieldInfo {
	out := make([]fieldInfo, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup(structTag); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		out = append(out, fieldInfo{name: name, index: i})
	}
	return out
}
