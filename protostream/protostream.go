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

// Package protostream builds a protobuf structpb.Value tree from a
// Value, the same way package json builds RFC 8259 text from one. It
// is the domain-stack counterpart to the JSON worked example: a
// downstream consumer of the core contract shaped around an
// off-the-shelf, dynamically-typed protobuf message rather than a
// byte encoding.
//
// Unlike the JSON encoder, protostream does not special-case the
// NUMBER tag: structpb's NumberValue is an IEEE double, so re-parsing
// an arbitrary-precision decimal into one would be lossy. A
// NUMBER-tagged fragment is therefore left as a StringValue, exactly
// like any other tagged text, preserving the original digits exactly.
package protostream

import (
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/google/structstream/stream"
	"github.com/google/structstream/stream/record"
	"github.com/google/structstream/token"
)

type frameKind int

const (
	frameSeq frameKind = iota
	frameTuple
	frameRecord
)

type frame struct {
	kind         frameKind
	values       []*structpb.Value
	fields       map[string]*structpb.Value
	pendingLabel string
}

type mapCapture struct {
	rec   record.Recorder
	depth int
}

// Builder implements stream.Stream, accumulating a single
// *structpb.Value as it goes. The zero value is not usable; construct
// one with NewBuilder.
type Builder struct {
	stream.Base

	stack   []frame
	capture *mapCapture
	textBuf []byte
	result  *structpb.Value
}

// NewBuilder returns a ready-to-use Builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.Base.Self = b
	return b
}

// Result returns the value built so far. It is only meaningful after
// the top-level emission has completed without error.
func (b *Builder) Result() *structpb.Value { return b.result }

// ToValue renders v as a *structpb.Value.
func ToValue(v stream.Value) (*structpb.Value, error) {
	b := NewBuilder()
	if err := stream.To(b, v); err != nil {
		return nil, err
	}
	return b.Result(), nil
}

func renderValue(tokens []record.Token) (*structpb.Value, error) {
	b := NewBuilder()
	if err := (&record.Recorder{Tokens: tokens}).Replay(b); err != nil {
		return nil, err
	}
	return b.Result(), nil
}

func clampHint(n int) int {
	if n < 0 {
		return 0
	}
	if n > 1024 {
		return 1024
	}
	return n
}

func (b *Builder) emitValue(v *structpb.Value) error {
	if len(b.stack) == 0 {
		b.result = v
		return nil
	}
	top := &b.stack[len(b.stack)-1]
	switch top.kind {
	case frameSeq, frameTuple:
		top.values = append(top.values, v)
	case frameRecord:
		top.fields[top.pendingLabel] = v
		top.pendingLabel = ""
	}
	return nil
}

// --- scalars ---

func (b *Builder) Null() error {
	if b.capture != nil {
		return b.capture.rec.Null()
	}
	return b.emitValue(structpb.NewNullValue())
}

func (b *Builder) Bool(v bool) error {
	if b.capture != nil {
		return b.capture.rec.Bool(v)
	}
	return b.emitValue(structpb.NewBoolValue(v))
}

func (b *Builder) I64(v int64) error {
	if b.capture != nil {
		return b.capture.rec.I64(v)
	}
	return b.emitValue(structpb.NewNumberValue(float64(v)))
}

// F64 accepts NaN/±Inf: unlike JSON, the protobuf wire format for a
// double has always supported IEEE-754 special values.
func (b *Builder) F64(v float64) error {
	if b.capture != nil {
		return b.capture.rec.F64(v)
	}
	return b.emitValue(structpb.NewNumberValue(v))
}

// --- text ---

func (b *Builder) TextBegin(sizeHint int) error {
	if b.capture != nil {
		b.capture.depth++
		return b.capture.rec.TextBegin(sizeHint)
	}
	b.textBuf = b.textBuf[:0]
	return nil
}

func (b *Builder) TextFragmentComputed(s string) error {
	if b.capture != nil {
		return b.capture.rec.TextFragmentComputed(s)
	}
	b.textBuf = append(b.textBuf, s...)
	return nil
}

func (b *Builder) TextEnd() error {
	if b.capture != nil {
		b.capture.depth--
		return b.capture.rec.TextEnd()
	}
	return b.emitValue(structpb.NewStringValue(string(b.textBuf)))
}

// --- seq ---

func (b *Builder) SeqBegin(sizeHint int) error {
	if b.capture != nil {
		b.capture.depth++
		return b.capture.rec.SeqBegin(sizeHint)
	}
	b.stack = append(b.stack, frame{kind: frameSeq, values: make([]*structpb.Value, 0, clampHint(sizeHint))})
	return nil
}

func (b *Builder) SeqValueBegin() error {
	if b.capture != nil {
		b.capture.depth++
		return b.capture.rec.SeqValueBegin()
	}
	if len(b.stack) == 0 || b.stack[len(b.stack)-1].kind != frameSeq {
		return stream.Malformed
	}
	return nil
}

func (b *Builder) SeqValueEnd() error {
	if b.capture != nil {
		b.capture.depth--
		return b.capture.rec.SeqValueEnd()
	}
	return nil
}

func (b *Builder) SeqEnd() error {
	if b.capture != nil {
		b.capture.depth--
		return b.capture.rec.SeqEnd()
	}
	if len(b.stack) == 0 {
		return stream.Malformed
	}
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return b.emitValue(structpb.NewListValue(&structpb.ListValue{Values: top.values}))
}

// --- map: buffered, same deferred-decision technique as package json ---

func (b *Builder) MapBegin(sizeHint int) error {
	if b.capture != nil {
		b.capture.depth++
		return b.capture.rec.MapBegin(sizeHint)
	}
	b.capture = &mapCapture{}
	return nil
}

func (b *Builder) MapKeyBegin() error {
	if b.capture == nil {
		return stream.Malformed
	}
	b.capture.depth++
	return b.capture.rec.MapKeyBegin()
}

func (b *Builder) MapKeyEnd() error {
	if b.capture == nil {
		return stream.Malformed
	}
	b.capture.depth--
	return b.capture.rec.MapKeyEnd()
}

func (b *Builder) MapValueBegin() error {
	if b.capture == nil {
		return stream.Malformed
	}
	b.capture.depth++
	return b.capture.rec.MapValueBegin()
}

func (b *Builder) MapValueEnd() error {
	if b.capture == nil {
		return stream.Malformed
	}
	b.capture.depth--
	return b.capture.rec.MapValueEnd()
}

func (b *Builder) MapEnd() error {
	if b.capture == nil {
		return stream.Malformed
	}
	if b.capture.depth != 0 {
		b.capture.depth--
		return b.capture.rec.MapEnd()
	}
	tokens := b.capture.rec.Tokens
	b.capture = nil
	return b.finishMap(tokens)
}

func (b *Builder) finishMap(tokens []record.Token) error {
	pairs := record.Split(tokens)
	keyTexts := make([]string, len(pairs))
	asStruct := true
	for i, p := range pairs {
		if text, ok := record.AsText(p.Key); ok {
			keyTexts[i] = text
			continue
		}
		if scalar, ok := record.AsScalar(p.Key); ok {
			text, err := scalarKeyText(scalar)
			if err != nil {
				return err
			}
			keyTexts[i] = text
			continue
		}
		asStruct = false
		break
	}
	if asStruct {
		fields := make(map[string]*structpb.Value, len(pairs))
		for i, p := range pairs {
			v, err := renderValue(p.Value)
			if err != nil {
				return err
			}
			fields[keyTexts[i]] = v
		}
		return b.emitValue(structpb.NewStructValue(&structpb.Struct{Fields: fields}))
	}
	values := make([]*structpb.Value, 0, len(pairs))
	for _, p := range pairs {
		k, err := renderValue(p.Key)
		if err != nil {
			return err
		}
		v, err := renderValue(p.Value)
		if err != nil {
			return err
		}
		values = append(values, structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{k, v}}))
	}
	return b.emitValue(structpb.NewListValue(&structpb.ListValue{Values: values}))
}

func scalarKeyText(t record.Token) (string, error) {
	switch t.Kind {
	case record.KNull:
		return "null", nil
	case record.KBool:
		if t.Bool {
			return "true", nil
		}
		return "false", nil
	case record.KI64, record.KI8, record.KI16, record.KI32:
		return strconv.FormatInt(t.I64, 10), nil
	case record.KU8, record.KU16, record.KU32, record.KU64:
		return strconv.FormatUint(t.U64, 10), nil
	case record.KU128, record.KI128:
		return t.Big.String(), nil
	case record.KF32, record.KF64:
		return strconv.FormatFloat(t.F64, 'g', -1, 64), nil
	default:
		return "", stream.Malformed
	}
}

// --- record ---

func (b *Builder) RecordBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	if b.capture != nil {
		b.capture.depth++
		return b.capture.rec.RecordBegin(t, l, i, sizeHint)
	}
	b.stack = append(b.stack, frame{kind: frameRecord, fields: make(map[string]*structpb.Value, clampHint(sizeHint))})
	return nil
}

func (b *Builder) RecordValueBegin(l token.Label) error {
	if b.capture != nil {
		b.capture.depth++
		return b.capture.rec.RecordValueBegin(l)
	}
	if len(b.stack) == 0 || b.stack[len(b.stack)-1].kind != frameRecord {
		return stream.Malformed
	}
	b.stack[len(b.stack)-1].pendingLabel = l.Text
	return nil
}

func (b *Builder) RecordValueEnd(l token.Label) error {
	if b.capture != nil {
		b.capture.depth--
		return b.capture.rec.RecordValueEnd(l)
	}
	return nil
}

func (b *Builder) RecordEnd() error {
	if b.capture != nil {
		b.capture.depth--
		return b.capture.rec.RecordEnd()
	}
	if len(b.stack) == 0 {
		return stream.Malformed
	}
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return b.emitValue(structpb.NewStructValue(&structpb.Struct{Fields: top.fields}))
}

// --- tuple: same rendering as seq, kept as a distinct frame kind for clarity ---

func (b *Builder) TupleBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	if b.capture != nil {
		b.capture.depth++
		return b.capture.rec.TupleBegin(t, l, i, sizeHint)
	}
	b.stack = append(b.stack, frame{kind: frameTuple, values: make([]*structpb.Value, 0, clampHint(sizeHint))})
	return nil
}

func (b *Builder) TupleValueBegin(idx token.Index) error {
	if b.capture != nil {
		b.capture.depth++
		return b.capture.rec.TupleValueBegin(idx)
	}
	if len(b.stack) == 0 || b.stack[len(b.stack)-1].kind != frameTuple {
		return stream.Malformed
	}
	return nil
}

func (b *Builder) TupleValueEnd(idx token.Index) error {
	if b.capture != nil {
		b.capture.depth--
		return b.capture.rec.TupleValueEnd(idx)
	}
	return nil
}

func (b *Builder) TupleEnd() error {
	if b.capture != nil {
		b.capture.depth--
		return b.capture.rec.TupleEnd()
	}
	if len(b.stack) == 0 {
		return stream.Malformed
	}
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return b.emitValue(structpb.NewListValue(&structpb.ListValue{Values: top.values}))
}
