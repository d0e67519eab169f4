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

// Package stream is the producer/consumer contract at the core of
// this module: a Value describes itself as a flat, totally ordered
// sequence of calls against a Stream. Producers never recurse into a
// Stream themselves; nested values are handed to the same Stream
// through the Value bridge method, so structural position is carried
// entirely by begin/end markers rather than a call stack.
package stream

import (
	"math/big"

	"github.com/google/structstream/token"
)

// Value is anything that can describe itself as an ordered token
// sequence against a Stream. A Value owns nothing beyond itself; once
// asked to emit, it must issue a well-formed sequence (see the package
// doc and stream/validate) and return either nil or the sentinel Halt.
type Value interface {
	Emit(s Stream) error
}

// ValueFunc adapts a plain function to the Value interface.
type ValueFunc func(s Stream) error

// Emit implements Value.
func (f ValueFunc) Emit(s Stream) error { return f(s) }

// Core is the base data model: the minimal set of Stream methods to
// which every other method reduces (spec §4.2 "Layering"). A Stream
// implementation need only directly implement Core; Base supplies the
// rest via the tabulated default reductions.
type Core interface {
	Null() error
	Bool(v bool) error
	I64(v int64) error

	TextBegin(sizeHint int) error
	TextFragmentComputed(s string) error
	TextEnd() error

	SeqBegin(sizeHint int) error
	SeqValueBegin() error
	SeqValueEnd() error
	SeqEnd() error
}

// Stream is the full consumer protocol: the base Core methods plus
// every extended method from the capability table in spec §4.2. A
// conforming implementation need only override the extended methods
// whose specialized behavior it cares about — see Base.
type Stream interface {
	Core

	U8(v uint8) error
	U16(v uint16) error
	U32(v uint32) error
	U64(v uint64) error
	I8(v int8) error
	I16(v int16) error
	I32(v int32) error

	// U128 and I128 accept arbitrary-precision integers. Callers that
	// only have a uint64/int64 should use U64/I64/I8.../I32 instead;
	// U128/I128 exist for the width the base model's i64 cannot cover.
	U128(v *big.Int) error
	I128(v *big.Int) error

	F32(v float32) error
	F64(v float64) error

	// TextFragment accepts a fragment the Stream may retain a pointer
	// to for as long as the Stream itself lives (the "borrowed" form,
	// see spec §4.2 "Borrow / compute duality"). Producers prefer this
	// form when the fragment's storage truly outlives the call; when
	// unsure, TextFragmentComputed is always safe.
	TextFragment(s string) error

	BinaryBegin(sizeHint int) error
	// BinaryFragment is the borrowed counterpart of
	// BinaryFragmentComputed; see TextFragment.
	BinaryFragment(b []byte) error
	BinaryFragmentComputed(b []byte) error
	BinaryEnd() error

	MapBegin(sizeHint int) error
	MapKeyBegin() error
	MapKeyEnd() error
	MapValueBegin() error
	MapValueEnd() error
	MapEnd() error

	Tag(t token.Tag, l *token.Label, i *token.Index) error
	TaggedBegin(t token.Tag, l *token.Label, i *token.Index) error
	TaggedEnd() error

	RecordBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error
	RecordValueBegin(l token.Label) error
	RecordValueEnd(l token.Label) error
	RecordEnd() error

	TupleBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error
	TupleValueBegin(idx token.Index) error
	TupleValueEnd(idx token.Index) error
	TupleEnd() error

	RecordTupleBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error
	RecordTupleValueBegin(l token.Label, idx token.Index) error
	RecordTupleValueEnd(l token.Label, idx token.Index) error
	RecordTupleEnd() error

	EnumBegin(t *token.Tag, l *token.Label, i *token.Index) error
	EnumEnd() error

	// Value dispatches v.Emit(s) against this same Stream. It exists so
	// producers never need to construct a separate bridge, and so a
	// Stream can observe recursion points (for buffering or depth
	// checks) without the protocol itself ever recursing (spec §4.3).
	Value(v Value) error
}

// To is the top-level driver: it hands v to s and returns whatever
// sentinel or error s produced. Nested producers reach s identically,
// through Stream.Value.
func To(s Stream, v Value) error {
	return v.Emit(s)
}
