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

// Package validate implements the stateful depth validator described
// in spec §4.2/§9: a Stream decorator that rejects, with
// stream.Malformed, any call sequence that would violate the
// structural invariants of a well-formed token sequence (package
// stream's doc comment) before it ever reaches the wrapped Stream.
//
// The validator is itself a Stream wrapping another Stream — the
// idiomatic composition pattern for adding checks, tracing or
// transformations to the flat protocol (spec §9).
package validate

import (
	"math/big"

	"github.com/google/structstream/stream"
	"github.com/google/structstream/token"
)

// Enabled controls whether Wrap installs the validator or returns its
// argument unchanged. It stands in for the "debug builds" switch spec
// §4.2/§7 describe: unlike a Go build tag, it can be flipped at
// runtime, so a single build of this module can validate in tests and
// skip the cost in a release hot path.
var Enabled = true

// Wrap returns a Stream that validates every call against inner
// before forwarding it, or inner itself when Enabled is false.
func Wrap(inner stream.Stream) stream.Stream {
	if !Enabled {
		return inner
	}
	return &validator{inner: inner}
}

type frameKind int

const (
	frameSeq frameKind = iota
	frameMap
	frameText
	frameBinary
	frameTagged
	frameRecord
	frameTuple
	frameRecordTuple
	frameEnum
)

type mapPhase int

const (
	mapIdle mapPhase = iota
	mapKey
	mapHaveKey
	mapValue
)

type frame struct {
	kind      frameKind
	valueOpen bool // a *_value_begin/end (or map key/value) slot is open
	phase     mapPhase
	innerSeen int // tagged/enum: number of inner value emissions seen
	label     token.Label
	index     token.Index
}

type valueKind int

const (
	vkScalar valueKind = iota
	vkTag
	vkTaggedBegin
	vkRecordBegin
	vkTupleBegin
	vkRecordTupleBegin
	vkEnumBegin
	vkSeqBegin
	vkMapBegin
	vkTextBegin
	vkBinaryBegin
)

// enumAllowed is the set of inner value kinds spec invariant 5
// permits directly inside an enum_begin/enum_end bracket.
var enumAllowed = map[valueKind]bool{
	vkTag:              true,
	vkTaggedBegin:      true,
	vkRecordBegin:      true,
	vkTupleBegin:       true,
	vkRecordTupleBegin: true,
	vkEnumBegin:        true,
}

type validator struct {
	inner stream.Stream
	stack []frame
	hadTop bool
}

func (v *validator) top() *frame {
	if len(v.stack) == 0 {
		return nil
	}
	return &v.stack[len(v.stack)-1]
}

// enterValue is called by every method that begins a new logical
// value (scalars complete immediately; composites also push a frame).
func (v *validator) enterValue(kind valueKind) error {
	top := v.top()
	if top == nil {
		if v.hadTop {
			return stream.Malformed
		}
		return nil
	}
	switch top.kind {
	case frameTagged, frameEnum:
		if top.innerSeen >= 1 {
			return stream.Malformed
		}
		if top.kind == frameEnum && !enumAllowed[kind] {
			return stream.Malformed
		}
		top.innerSeen++
	case frameSeq, frameRecord, frameTuple, frameRecordTuple:
		if !top.valueOpen {
			return stream.Malformed
		}
	case frameMap:
		if top.phase != mapKey && top.phase != mapValue {
			return stream.Malformed
		}
	case frameText, frameBinary:
		return stream.Malformed
	}
	return nil
}

// leaveTop pops a completed frame (its matching *_end has just been
// validated) and, if the stack is now empty, seals the top-level
// value slot per invariant 7.
func (v *validator) leaveTop() {
	v.stack = v.stack[:len(v.stack)-1]
	if len(v.stack) == 0 {
		v.hadTop = true
	}
}

func (v *validator) completeScalar() error {
	if len(v.stack) == 0 {
		v.hadTop = true
	}
	return nil
}

// --- Core ---

func (v *validator) Null() error {
	if err := v.enterValue(vkScalar); err != nil {
		return err
	}
	if err := v.inner.Null(); err != nil {
		return err
	}
	return v.completeScalar()
}

func (v *validator) Bool(b bool) error {
	if err := v.enterValue(vkScalar); err != nil {
		return err
	}
	if err := v.inner.Bool(b); err != nil {
		return err
	}
	return v.completeScalar()
}

func (v *validator) I64(n int64) error {
	if err := v.enterValue(vkScalar); err != nil {
		return err
	}
	if err := v.inner.I64(n); err != nil {
		return err
	}
	return v.completeScalar()
}

func (v *validator) TextBegin(sizeHint int) error {
	if err := v.enterValue(vkTextBegin); err != nil {
		return err
	}
	if err := v.inner.TextBegin(sizeHint); err != nil {
		return err
	}
	v.stack = append(v.stack, frame{kind: frameText})
	return nil
}

func (v *validator) TextFragmentComputed(s string) error {
	top := v.top()
	if top == nil || top.kind != frameText {
		return stream.Malformed
	}
	return v.inner.TextFragmentComputed(s)
}

func (v *validator) TextFragment(s string) error {
	top := v.top()
	if top == nil || top.kind != frameText {
		return stream.Malformed
	}
	return v.inner.TextFragment(s)
}

func (v *validator) TextEnd() error {
	top := v.top()
	if top == nil || top.kind != frameText {
		return stream.Malformed
	}
	if err := v.inner.TextEnd(); err != nil {
		return err
	}
	v.leaveTop()
	return nil
}

func (v *validator) SeqBegin(sizeHint int) error {
	if err := v.enterValue(vkSeqBegin); err != nil {
		return err
	}
	if err := v.inner.SeqBegin(sizeHint); err != nil {
		return err
	}
	v.stack = append(v.stack, frame{kind: frameSeq})
	return nil
}

func (v *validator) SeqValueBegin() error {
	top := v.top()
	if top == nil || top.kind != frameSeq || top.valueOpen {
		return stream.Malformed
	}
	if err := v.inner.SeqValueBegin(); err != nil {
		return err
	}
	top.valueOpen = true
	return nil
}

func (v *validator) SeqValueEnd() error {
	top := v.top()
	if top == nil || top.kind != frameSeq || !top.valueOpen {
		return stream.Malformed
	}
	if err := v.inner.SeqValueEnd(); err != nil {
		return err
	}
	top.valueOpen = false
	return nil
}

func (v *validator) SeqEnd() error {
	top := v.top()
	if top == nil || top.kind != frameSeq || top.valueOpen {
		return stream.Malformed
	}
	if err := v.inner.SeqEnd(); err != nil {
		return err
	}
	v.leaveTop()
	return nil
}

// --- Extended: widened integers, big integers, floats ---

func (v *validator) U8(n uint8) error   { return v.scalar(func() error { return v.inner.U8(n) }) }
func (v *validator) U16(n uint16) error { return v.scalar(func() error { return v.inner.U16(n) }) }
func (v *validator) U32(n uint32) error { return v.scalar(func() error { return v.inner.U32(n) }) }
func (v *validator) I8(n int8) error    { return v.scalar(func() error { return v.inner.I8(n) }) }
func (v *validator) I16(n int16) error  { return v.scalar(func() error { return v.inner.I16(n) }) }
func (v *validator) I32(n int32) error  { return v.scalar(func() error { return v.inner.I32(n) }) }
func (v *validator) U64(n uint64) error { return v.scalar(func() error { return v.inner.U64(n) }) }
func (v *validator) F32(f float32) error { return v.scalar(func() error { return v.inner.F32(f) }) }
func (v *validator) F64(f float64) error { return v.scalar(func() error { return v.inner.F64(f) }) }

func (v *validator) U128(n *big.Int) error {
	return v.scalar(func() error { return v.inner.U128(n) })
}

func (v *validator) I128(n *big.Int) error {
	return v.scalar(func() error { return v.inner.I128(n) })
}

func (v *validator) scalar(call func() error) error {
	if err := v.enterValue(vkScalar); err != nil {
		return err
	}
	if err := call(); err != nil {
		return err
	}
	return v.completeScalar()
}

// --- Binary ---

func (v *validator) BinaryBegin(sizeHint int) error {
	if err := v.enterValue(vkBinaryBegin); err != nil {
		return err
	}
	if err := v.inner.BinaryBegin(sizeHint); err != nil {
		return err
	}
	v.stack = append(v.stack, frame{kind: frameBinary})
	return nil
}

func (v *validator) BinaryFragment(b []byte) error {
	top := v.top()
	if top == nil || top.kind != frameBinary {
		return stream.Malformed
	}
	return v.inner.BinaryFragment(b)
}

func (v *validator) BinaryFragmentComputed(b []byte) error {
	top := v.top()
	if top == nil || top.kind != frameBinary {
		return stream.Malformed
	}
	return v.inner.BinaryFragmentComputed(b)
}

func (v *validator) BinaryEnd() error {
	top := v.top()
	if top == nil || top.kind != frameBinary {
		return stream.Malformed
	}
	if err := v.inner.BinaryEnd(); err != nil {
		return err
	}
	v.leaveTop()
	return nil
}

// --- Map ---

func (v *validator) MapBegin(sizeHint int) error {
	if err := v.enterValue(vkMapBegin); err != nil {
		return err
	}
	if err := v.inner.MapBegin(sizeHint); err != nil {
		return err
	}
	v.stack = append(v.stack, frame{kind: frameMap, phase: mapIdle})
	return nil
}

func (v *validator) MapKeyBegin() error {
	top := v.top()
	if top == nil || top.kind != frameMap || top.phase != mapIdle {
		return stream.Malformed
	}
	if err := v.inner.MapKeyBegin(); err != nil {
		return err
	}
	top.phase = mapKey
	return nil
}

func (v *validator) MapKeyEnd() error {
	top := v.top()
	if top == nil || top.kind != frameMap || top.phase != mapKey {
		return stream.Malformed
	}
	if err := v.inner.MapKeyEnd(); err != nil {
		return err
	}
	top.phase = mapHaveKey
	return nil
}

func (v *validator) MapValueBegin() error {
	top := v.top()
	if top == nil || top.kind != frameMap || top.phase != mapHaveKey {
		return stream.Malformed
	}
	if err := v.inner.MapValueBegin(); err != nil {
		return err
	}
	top.phase = mapValue
	return nil
}

func (v *validator) MapValueEnd() error {
	top := v.top()
	if top == nil || top.kind != frameMap || top.phase != mapValue {
		return stream.Malformed
	}
	if err := v.inner.MapValueEnd(); err != nil {
		return err
	}
	top.phase = mapIdle
	return nil
}

func (v *validator) MapEnd() error {
	top := v.top()
	if top == nil || top.kind != frameMap || top.phase != mapIdle {
		return stream.Malformed
	}
	if err := v.inner.MapEnd(); err != nil {
		return err
	}
	v.leaveTop()
	return nil
}

// --- Tag / Tagged ---

func (v *validator) Tag(t token.Tag, l *token.Label, i *token.Index) error {
	if err := v.enterValue(vkTag); err != nil {
		return err
	}
	if err := v.inner.Tag(t, l, i); err != nil {
		return err
	}
	return v.completeScalar()
}

func (v *validator) TaggedBegin(t token.Tag, l *token.Label, i *token.Index) error {
	if err := v.enterValue(vkTaggedBegin); err != nil {
		return err
	}
	if err := v.inner.TaggedBegin(t, l, i); err != nil {
		return err
	}
	v.stack = append(v.stack, frame{kind: frameTagged})
	return nil
}

func (v *validator) TaggedEnd() error {
	top := v.top()
	if top == nil || top.kind != frameTagged || top.innerSeen != 1 {
		return stream.Malformed
	}
	if err := v.inner.TaggedEnd(); err != nil {
		return err
	}
	v.leaveTop()
	return nil
}

// --- Record ---

func (v *validator) RecordBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	if err := v.enterValue(vkRecordBegin); err != nil {
		return err
	}
	if err := v.inner.RecordBegin(t, l, i, sizeHint); err != nil {
		return err
	}
	v.stack = append(v.stack, frame{kind: frameRecord})
	return nil
}

func (v *validator) RecordValueBegin(l token.Label) error {
	top := v.top()
	if top == nil || top.kind != frameRecord || top.valueOpen {
		return stream.Malformed
	}
	if err := v.inner.RecordValueBegin(l); err != nil {
		return err
	}
	top.valueOpen = true
	top.label = l
	return nil
}

func (v *validator) RecordValueEnd(l token.Label) error {
	top := v.top()
	if top == nil || top.kind != frameRecord || !top.valueOpen || !top.label.Equal(l) {
		return stream.Malformed
	}
	if err := v.inner.RecordValueEnd(l); err != nil {
		return err
	}
	top.valueOpen = false
	return nil
}

func (v *validator) RecordEnd() error {
	top := v.top()
	if top == nil || top.kind != frameRecord || top.valueOpen {
		return stream.Malformed
	}
	if err := v.inner.RecordEnd(); err != nil {
		return err
	}
	v.leaveTop()
	return nil
}

// --- Tuple ---

func (v *validator) TupleBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	if err := v.enterValue(vkTupleBegin); err != nil {
		return err
	}
	if err := v.inner.TupleBegin(t, l, i, sizeHint); err != nil {
		return err
	}
	v.stack = append(v.stack, frame{kind: frameTuple})
	return nil
}

func (v *validator) TupleValueBegin(idx token.Index) error {
	top := v.top()
	if top == nil || top.kind != frameTuple || top.valueOpen {
		return stream.Malformed
	}
	if err := v.inner.TupleValueBegin(idx); err != nil {
		return err
	}
	top.valueOpen = true
	top.index = idx
	return nil
}

func (v *validator) TupleValueEnd(idx token.Index) error {
	top := v.top()
	if top == nil || top.kind != frameTuple || !top.valueOpen || top.index != idx {
		return stream.Malformed
	}
	if err := v.inner.TupleValueEnd(idx); err != nil {
		return err
	}
	top.valueOpen = false
	return nil
}

func (v *validator) TupleEnd() error {
	top := v.top()
	if top == nil || top.kind != frameTuple || top.valueOpen {
		return stream.Malformed
	}
	if err := v.inner.TupleEnd(); err != nil {
		return err
	}
	v.leaveTop()
	return nil
}

// --- RecordTuple ---

func (v *validator) RecordTupleBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	if err := v.enterValue(vkRecordTupleBegin); err != nil {
		return err
	}
	if err := v.inner.RecordTupleBegin(t, l, i, sizeHint); err != nil {
		return err
	}
	v.stack = append(v.stack, frame{kind: frameRecordTuple})
	return nil
}

func (v *validator) RecordTupleValueBegin(l token.Label, idx token.Index) error {
	top := v.top()
	if top == nil || top.kind != frameRecordTuple || top.valueOpen {
		return stream.Malformed
	}
	if err := v.inner.RecordTupleValueBegin(l, idx); err != nil {
		return err
	}
	top.valueOpen = true
	top.label, top.index = l, idx
	return nil
}

func (v *validator) RecordTupleValueEnd(l token.Label, idx token.Index) error {
	top := v.top()
	if top == nil || top.kind != frameRecordTuple || !top.valueOpen ||
		!top.label.Equal(l) || top.index != idx {
		return stream.Malformed
	}
	if err := v.inner.RecordTupleValueEnd(l, idx); err != nil {
		return err
	}
	top.valueOpen = false
	return nil
}

func (v *validator) RecordTupleEnd() error {
	top := v.top()
	if top == nil || top.kind != frameRecordTuple || top.valueOpen {
		return stream.Malformed
	}
	if err := v.inner.RecordTupleEnd(); err != nil {
		return err
	}
	v.leaveTop()
	return nil
}

// --- Enum ---

func (v *validator) EnumBegin(t *token.Tag, l *token.Label, i *token.Index) error {
	if err := v.enterValue(vkEnumBegin); err != nil {
		return err
	}
	if err := v.inner.EnumBegin(t, l, i); err != nil {
		return err
	}
	v.stack = append(v.stack, frame{kind: frameEnum})
	return nil
}

func (v *validator) EnumEnd() error {
	top := v.top()
	if top == nil || top.kind != frameEnum || top.innerSeen != 1 {
		return stream.Malformed
	}
	if err := v.inner.EnumEnd(); err != nil {
		return err
	}
	v.leaveTop()
	return nil
}

// Value emits val with v itself (not inner) as the Stream, so every
// call of the nested value is validated too.
func (v *validator) Value(val stream.Value) error { return val.Emit(v) }
