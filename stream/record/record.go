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

// Package record captures a Stream call sequence into an in-memory
// slice of Tokens and replays it later against any Stream. It exists
// to let tests assert on the exact shape of what a Value emitted, and
// to let other sinks (the json encoder's map-key classifier among
// them) inspect a captured sub-sequence before deciding how to render
// it, without re-running the original producer (spec §5's companion
// "buffering" concern, narrowed to what this module needs: a recorder,
// not a general flattening adaptor).
package record

import (
	"math/big"

	"github.com/google/structstream/stream"
	"github.com/google/structstream/token"
)

// Kind discriminates the call a Token represents.
type Kind int

const (
	KNull Kind = iota
	KBool
	KI64
	KU8
	KU16
	KU32
	KU64
	KI8
	KI16
	KI32
	KU128
	KI128
	KF32
	KF64
	KTextBegin
	KTextFragment
	KTextFragmentComputed
	KTextEnd
	KBinaryBegin
	KBinaryFragment
	KBinaryFragmentComputed
	KBinaryEnd
	KSeqBegin
	KSeqValueBegin
	KSeqValueEnd
	KSeqEnd
	KMapBegin
	KMapKeyBegin
	KMapKeyEnd
	KMapValueBegin
	KMapValueEnd
	KMapEnd
	KTag
	KTaggedBegin
	KTaggedEnd
	KRecordBegin
	KRecordValueBegin
	KRecordValueEnd
	KRecordEnd
	KTupleBegin
	KTupleValueBegin
	KTupleValueEnd
	KTupleEnd
	KRecordTupleBegin
	KRecordTupleValueBegin
	KRecordTupleValueEnd
	KRecordTupleEnd
	KEnumBegin
	KEnumEnd
)

// Token is one recorded Stream call, as a discriminated union keyed
// by Kind. Only the fields relevant to Kind are populated; the rest
// are zero.
type Token struct {
	Kind Kind

	Bool     bool
	I64      int64
	U64      uint64
	F64      float64
	Big      *big.Int
	Text     string
	Bytes    []byte
	SizeHint int

	Tag   *token.Tag
	Label *token.Label
	Index *token.Index
}

// Recorder implements stream.Stream, appending a Token per call
// instead of interpreting it. It never rejects a call itself; pair it
// with stream/validate during capture if the input must be checked.
type Recorder struct {
	Tokens []Token
}

// Len returns the number of recorded tokens.
func (r *Recorder) Len() int { return len(r.Tokens) }

// Replay re-issues every recorded token against s, stopping and
// returning the first error (including stream.Halt) s produces.
func (r *Recorder) Replay(s stream.Stream) error {
	for _, t := range r.Tokens {
		if err := replayOne(t, s); err != nil {
			return err
		}
	}
	return nil
}

func replayOne(t Token, s stream.Stream) error {
	switch t.Kind {
	case KNull:
		return s.Null()
	case KBool:
		return s.Bool(t.Bool)
	case KI64:
		return s.I64(t.I64)
	case KU8:
		return s.U8(uint8(t.U64))
	case KU16:
		return s.U16(uint16(t.U64))
	case KU32:
		return s.U32(uint32(t.U64))
	case KU64:
		return s.U64(t.U64)
	case KI8:
		return s.I8(int8(t.I64))
	case KI16:
		return s.I16(int16(t.I64))
	case KI32:
		return s.I32(int32(t.I64))
	case KU128:
		return s.U128(t.Big)
	case KI128:
		return s.I128(t.Big)
	case KF32:
		return s.F32(float32(t.F64))
	case KF64:
		return s.F64(t.F64)
	case KTextBegin:
		return s.TextBegin(t.SizeHint)
	case KTextFragment:
		return s.TextFragment(t.Text)
	case KTextFragmentComputed:
		return s.TextFragmentComputed(t.Text)
	case KTextEnd:
		return s.TextEnd()
	case KBinaryBegin:
		return s.BinaryBegin(t.SizeHint)
	case KBinaryFragment:
		return s.BinaryFragment(t.Bytes)
	case KBinaryFragmentComputed:
		return s.BinaryFragmentComputed(t.Bytes)
	case KBinaryEnd:
		return s.BinaryEnd()
	case KSeqBegin:
		return s.SeqBegin(t.SizeHint)
	case KSeqValueBegin:
		return s.SeqValueBegin()
	case KSeqValueEnd:
		return s.SeqValueEnd()
	case KSeqEnd:
		return s.SeqEnd()
	case KMapBegin:
		return s.MapBegin(t.SizeHint)
	case KMapKeyBegin:
		return s.MapKeyBegin()
	case KMapKeyEnd:
		return s.MapKeyEnd()
	case KMapValueBegin:
		return s.MapValueBegin()
	case KMapValueEnd:
		return s.MapValueEnd()
	case KMapEnd:
		return s.MapEnd()
	case KTag:
		return s.Tag(*t.Tag, t.Label, t.Index)
	case KTaggedBegin:
		return s.TaggedBegin(*t.Tag, t.Label, t.Index)
	case KTaggedEnd:
		return s.TaggedEnd()
	case KRecordBegin:
		return s.RecordBegin(t.Tag, t.Label, t.Index, t.SizeHint)
	case KRecordValueBegin:
		return s.RecordValueBegin(*t.Label)
	case KRecordValueEnd:
		return s.RecordValueEnd(*t.Label)
	case KRecordEnd:
		return s.RecordEnd()
	case KTupleBegin:
		return s.TupleBegin(t.Tag, t.Label, t.Index, t.SizeHint)
	case KTupleValueBegin:
		return s.TupleValueBegin(*t.Index)
	case KTupleValueEnd:
		return s.TupleValueEnd(*t.Index)
	case KTupleEnd:
		return s.TupleEnd()
	case KRecordTupleBegin:
		return s.RecordTupleBegin(t.Tag, t.Label, t.Index, t.SizeHint)
	case KRecordTupleValueBegin:
		return s.RecordTupleValueBegin(*t.Label, *t.Index)
	case KRecordTupleValueEnd:
		return s.RecordTupleValueEnd(*t.Label, *t.Index)
	case KRecordTupleEnd:
		return s.RecordTupleEnd()
	case KEnumBegin:
		return s.EnumBegin(t.Tag, t.Label, t.Index)
	case KEnumEnd:
		return s.EnumEnd()
	default:
		panic("record: unknown token kind")
	}
}

func (r *Recorder) emit(t Token) error {
	r.Tokens = append(r.Tokens, t)
	return nil
}

func (r *Recorder) Null() error          { return r.emit(Token{Kind: KNull}) }
func (r *Recorder) Bool(v bool) error    { return r.emit(Token{Kind: KBool, Bool: v}) }
func (r *Recorder) I64(v int64) error    { return r.emit(Token{Kind: KI64, I64: v}) }
func (r *Recorder) U8(v uint8) error     { return r.emit(Token{Kind: KU8, U64: uint64(v)}) }
func (r *Recorder) U16(v uint16) error   { return r.emit(Token{Kind: KU16, U64: uint64(v)}) }
func (r *Recorder) U32(v uint32) error   { return r.emit(Token{Kind: KU32, U64: uint64(v)}) }
func (r *Recorder) U64(v uint64) error   { return r.emit(Token{Kind: KU64, U64: v}) }
func (r *Recorder) I8(v int8) error      { return r.emit(Token{Kind: KI8, I64: int64(v)}) }
func (r *Recorder) I16(v int16) error    { return r.emit(Token{Kind: KI16, I64: int64(v)}) }
func (r *Recorder) I32(v int32) error    { return r.emit(Token{Kind: KI32, I64: int64(v)}) }
func (r *Recorder) U128(v *big.Int) error { return r.emit(Token{Kind: KU128, Big: v}) }
func (r *Recorder) I128(v *big.Int) error { return r.emit(Token{Kind: KI128, Big: v}) }
func (r *Recorder) F32(v float32) error  { return r.emit(Token{Kind: KF32, F64: float64(v)}) }
func (r *Recorder) F64(v float64) error  { return r.emit(Token{Kind: KF64, F64: v}) }

func (r *Recorder) TextBegin(sizeHint int) error {
	return r.emit(Token{Kind: KTextBegin, SizeHint: sizeHint})
}
func (r *Recorder) TextFragment(v string) error { return r.emit(Token{Kind: KTextFragment, Text: v}) }
func (r *Recorder) TextFragmentComputed(v string) error {
	return r.emit(Token{Kind: KTextFragmentComputed, Text: v})
}
func (r *Recorder) TextEnd() error { return r.emit(Token{Kind: KTextEnd}) }

func (r *Recorder) BinaryBegin(sizeHint int) error {
	return r.emit(Token{Kind: KBinaryBegin, SizeHint: sizeHint})
}
func (r *Recorder) BinaryFragment(v []byte) error {
	return r.emit(Token{Kind: KBinaryFragment, Bytes: v})
}
func (r *Recorder) BinaryFragmentComputed(v []byte) error {
	return r.emit(Token{Kind: KBinaryFragmentComputed, Bytes: v})
}
func (r *Recorder) BinaryEnd() error { return r.emit(Token{Kind: KBinaryEnd}) }

func (r *Recorder) SeqBegin(sizeHint int) error {
	return r.emit(Token{Kind: KSeqBegin, SizeHint: sizeHint})
}
func (r *Recorder) SeqValueBegin() error { return r.emit(Token{Kind: KSeqValueBegin}) }
func (r *Recorder) SeqValueEnd() error   { return r.emit(Token{Kind: KSeqValueEnd}) }
func (r *Recorder) SeqEnd() error        { return r.emit(Token{Kind: KSeqEnd}) }

func (r *Recorder) MapBegin(sizeHint int) error {
	return r.emit(Token{Kind: KMapBegin, SizeHint: sizeHint})
}
func (r *Recorder) MapKeyBegin() error   { return r.emit(Token{Kind: KMapKeyBegin}) }
func (r *Recorder) MapKeyEnd() error     { return r.emit(Token{Kind: KMapKeyEnd}) }
func (r *Recorder) MapValueBegin() error { return r.emit(Token{Kind: KMapValueBegin}) }
func (r *Recorder) MapValueEnd() error   { return r.emit(Token{Kind: KMapValueEnd}) }
func (r *Recorder) MapEnd() error        { return r.emit(Token{Kind: KMapEnd}) }

func (r *Recorder) Tag(t token.Tag, l *token.Label, i *token.Index) error {
	return r.emit(Token{Kind: KTag, Tag: &t, Label: l, Index: i})
}
func (r *Recorder) TaggedBegin(t token.Tag, l *token.Label, i *token.Index) error {
	return r.emit(Token{Kind: KTaggedBegin, Tag: &t, Label: l, Index: i})
}
func (r *Recorder) TaggedEnd() error { return r.emit(Token{Kind: KTaggedEnd}) }

func (r *Recorder) RecordBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	return r.emit(Token{Kind: KRecordBegin, Tag: t, Label: l, Index: i, SizeHint: sizeHint})
}
func (r *Recorder) RecordValueBegin(l token.Label) error {
	return r.emit(Token{Kind: KRecordValueBegin, Label: &l})
}
func (r *Recorder) RecordValueEnd(l token.Label) error {
	return r.emit(Token{Kind: KRecordValueEnd, Label: &l})
}
func (r *Recorder) RecordEnd() error { return r.emit(Token{Kind: KRecordEnd}) }

func (r *Recorder) TupleBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	return r.emit(Token{Kind: KTupleBegin, Tag: t, Label: l, Index: i, SizeHint: sizeHint})
}
func (r *Recorder) TupleValueBegin(idx token.Index) error {
	return r.emit(Token{Kind: KTupleValueBegin, Index: &idx})
}
func (r *Recorder) TupleValueEnd(idx token.Index) error {
	return r.emit(Token{Kind: KTupleValueEnd, Index: &idx})
}
func (r *Recorder) TupleEnd() error { return r.emit(Token{Kind: KTupleEnd}) }

func (r *Recorder) RecordTupleBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	return r.emit(Token{Kind: KRecordTupleBegin, Tag: t, Label: l, Index: i, SizeHint: sizeHint})
}
func (r *Recorder) RecordTupleValueBegin(l token.Label, idx token.Index) error {
	return r.emit(Token{Kind: KRecordTupleValueBegin, Label: &l, Index: &idx})
}
func (r *Recorder) RecordTupleValueEnd(l token.Label, idx token.Index) error {
	return r.emit(Token{Kind: KRecordTupleValueEnd, Label: &l, Index: &idx})
}
func (r *Recorder) RecordTupleEnd() error { return r.emit(Token{Kind: KRecordTupleEnd}) }

func (r *Recorder) EnumBegin(t *token.Tag, l *token.Label, i *token.Index) error {
	return r.emit(Token{Kind: KEnumBegin, Tag: t, Label: l, Index: i})
}
func (r *Recorder) EnumEnd() error { return r.emit(Token{Kind: KEnumEnd}) }

// Value records the nested value's own emission rather than recursing
// structurally: it calls v.Emit(r), so every token the nested value
// produces lands flat in r.Tokens, exactly as any other Stream sees it.
func (r *Recorder) Value(v stream.Value) error { return v.Emit(r) }

// Split partitions a flat token list captured inside a MapBegin/MapEnd
// bracket into key/value token pairs, one per map entry. It assumes
// the tokens are exactly the well-formed interior of a map (spec §3):
// alternating MapKeyBegin...MapKeyEnd, MapValueBegin...MapValueEnd
// runs, each possibly containing further nested, fully-balanced
// tokens.
func Split(tokens []Token) []struct{ Key, Value []Token } {
	var pairs []struct{ Key, Value []Token }
	i := 0
	for i < len(tokens) {
		if tokens[i].Kind != KMapKeyBegin {
			break
		}
		keyStart := i + 1
		i = skipBalanced(tokens, keyStart, KMapKeyEnd)
		key := tokens[keyStart:i]
		i++ // past MapKeyEnd
		if i >= len(tokens) || tokens[i].Kind != KMapValueBegin {
			break
		}
		valStart := i + 1
		i = skipBalanced(tokens, valStart, KMapValueEnd)
		value := tokens[valStart:i]
		i++ // past MapValueEnd
		pairs = append(pairs, struct{ Key, Value []Token }{key, value})
	}
	return pairs
}

// skipBalanced scans forward from start until it finds stop at net
// nesting depth zero, tracking every other begin/end kind's depth, and
// returns its index.
func skipBalanced(tokens []Token, start int, stop Kind) int {
	depth := 0
	for i := start; i < len(tokens); i++ {
		k := tokens[i].Kind
		if depth == 0 && k == stop {
			return i
		}
		if beginKinds[k] {
			depth++
		} else if endKinds[k] {
			depth--
		}
	}
	return len(tokens)
}

var beginKinds = map[Kind]bool{
	KTextBegin: true, KBinaryBegin: true, KSeqBegin: true, KMapBegin: true,
	KTaggedBegin: true, KRecordBegin: true, KTupleBegin: true,
	KRecordTupleBegin: true, KEnumBegin: true,
	KSeqValueBegin: true, KMapKeyBegin: true, KMapValueBegin: true,
	KRecordValueBegin: true, KTupleValueBegin: true, KRecordTupleValueBegin: true,
}

var endKinds = map[Kind]bool{
	KTextEnd: true, KBinaryEnd: true, KSeqEnd: true, KMapEnd: true,
	KTaggedEnd: true, KRecordEnd: true, KTupleEnd: true,
	KRecordTupleEnd: true, KEnumEnd: true,
	KSeqValueEnd: true, KMapKeyEnd: true, KMapValueEnd: true,
	KRecordValueEnd: true, KTupleValueEnd: true, KRecordTupleValueEnd: true,
}

// AsText reports whether tokens is exactly a single
// TextBegin/TextFragment*/TextEnd run with no other content, and if
// so returns the concatenated fragment text.
func AsText(tokens []Token) (string, bool) {
	if len(tokens) < 2 || tokens[0].Kind != KTextBegin || tokens[len(tokens)-1].Kind != KTextEnd {
		return "", false
	}
	var sb []byte
	for _, t := range tokens[1 : len(tokens)-1] {
		if t.Kind != KTextFragment && t.Kind != KTextFragmentComputed {
			return "", false
		}
		sb = append(sb, t.Text...)
	}
	return string(sb), true
}

// AsScalar reports whether tokens is exactly one base-scalar call
// (Null, Bool, or any integer/float variant), returning that token.
func AsScalar(tokens []Token) (Token, bool) {
	if len(tokens) != 1 {
		return Token{}, false
	}
	switch tokens[0].Kind {
	case KNull, KBool, KI64, KU8, KU16, KU32, KU64, KI8, KI16, KI32, KU128, KI128, KF32, KF64:
		return tokens[0], true
	default:
		return Token{}, false
	}
}
