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

package stream

import (
	"math"
	"math/big"
	"strconv"

	"github.com/google/structstream/token"
)

// Base implements every extended Stream method via the default
// reductions tabulated in spec §4.2, in terms of the 10 Core methods.
// A concrete sink embeds Base and implements Core itself; it then gets
// the full Stream interface for free, and may override any individual
// extended method by simply declaring it on the outer type (ordinary
// Go method shadowing through embedding — the same trick the
// generated grpc "Unimplemented*Server" types use to let a service
// implement only the methods it cares about).
//
// Base cannot dispatch through the outer type's overrides unless it is
// told what the outer type is, because an embedded Base's own methods
// only ever see the embedded Base, never the struct embedding it. Wire
// it up once in the embedding type's constructor:
//
//	type MySink struct {
//		stream.Base
//		...
//	}
//
//	func NewMySink() *MySink {
//		s := &MySink{}
//		s.Base.Self = s
//		return s
//	}
//
// A Base used without Self wired panics on first extended-method call.
type Base struct {
	// Self must be the Stream that embeds this Base. Default reductions
	// that call other extended methods (for example F64's tagged-text
	// reduction, which calls TaggedBegin) dispatch through Self so that
	// any override the embedding type supplies still takes effect.
	Self Stream
}

func (b *Base) self() Stream {
	if b.Self == nil {
		panic("stream: Base.Self not wired to its embedding Stream")
	}
	return b.Self
}

// U8, U16, U32, I8, I16, I32 widen to I64.
func (b *Base) U8(v uint8) error   { return b.self().I64(int64(v)) }
func (b *Base) U16(v uint16) error { return b.self().I64(int64(v)) }
func (b *Base) U32(v uint32) error { return b.self().I64(int64(v)) }
func (b *Base) I8(v int8) error    { return b.self().I64(int64(v)) }
func (b *Base) I16(v int16) error  { return b.self().I64(int64(v)) }
func (b *Base) I32(v int32) error  { return b.self().I64(int64(v)) }

// U64 reduces to I64 when v is representable there, otherwise to
// decimal text tagged Number.
func (b *Base) U64(v uint64) error {
	s := b.self()
	if v <= math.MaxInt64 {
		return s.I64(int64(v))
	}
	return reduceBigDecimal(s, new(big.Int).SetUint64(v))
}

// U128 reduces to I64 when v is representable there, otherwise to
// decimal text tagged Number.
func (b *Base) U128(v *big.Int) error {
	s := b.self()
	if v.Sign() >= 0 && v.IsUint64() && v.Uint64() <= math.MaxInt64 {
		return s.I64(int64(v.Uint64()))
	}
	return reduceBigDecimal(s, v)
}

// I128 reduces to I64 when v is representable there, otherwise to
// decimal text tagged Number.
func (b *Base) I128(v *big.Int) error {
	s := b.self()
	if v.IsInt64() {
		return s.I64(v.Int64())
	}
	return reduceBigDecimal(s, v)
}

// F32 reduces to F64.
func (b *Base) F32(v float32) error { return b.self().F64(float64(v)) }

// F64 reduces to shortest-round-trip decimal ASCII text, tagged
// Number. Base takes no position on NaN/±Inf: strconv.AppendFloat
// renders them as "NaN"/"+Inf"/"-Inf" text; a sink with an opinion
// (json.Encoder rejects them) overrides F64 directly instead of using
// this default.
func (b *Base) F64(v float64) error {
	buf := strconv.AppendFloat(nil, v, 'g', -1, 64)
	return reduceTaggedDecimal(b.self(), buf)
}

func reduceBigDecimal(s Stream, v *big.Int) error {
	return reduceTaggedDecimal(s, []byte(v.String()))
}

func reduceTaggedDecimal(s Stream, decimal []byte) error {
	if err := s.TaggedBegin(token.NumberTag, nil, nil); err != nil {
		return err
	}
	if err := s.TextBegin(len(decimal)); err != nil {
		return err
	}
	if err := s.TextFragmentComputed(string(decimal)); err != nil {
		return err
	}
	if err := s.TextEnd(); err != nil {
		return err
	}
	return s.TaggedEnd()
}

// TextFragment, the borrowed fragment form, defaults to the always-
// safe computed form.
func (b *Base) TextFragment(s string) error { return b.self().TextFragmentComputed(s) }

// BinaryBegin/Fragment/End reduce to a seq of U8 values.
func (b *Base) BinaryBegin(sizeHint int) error { return b.self().SeqBegin(sizeHint) }

func (b *Base) BinaryFragmentComputed(data []byte) error {
	s := b.self()
	for _, by := range data {
		if err := s.SeqValueBegin(); err != nil {
			return err
		}
		if err := s.U8(by); err != nil {
			return err
		}
		if err := s.SeqValueEnd(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Base) BinaryFragment(data []byte) error { return b.self().BinaryFragmentComputed(data) }
func (b *Base) BinaryEnd() error                 { return b.self().SeqEnd() }

// MapBegin/KeyBegin/KeyEnd/ValueBegin/ValueEnd/End reduce to a seq of
// 2-element seqs, [key, value].
func (b *Base) MapBegin(sizeHint int) error { return b.self().SeqBegin(sizeHint) }

func (b *Base) MapKeyBegin() error {
	s := b.self()
	if err := s.SeqValueBegin(); err != nil {
		return err
	}
	if err := s.SeqBegin(2); err != nil {
		return err
	}
	return s.SeqValueBegin()
}

func (b *Base) MapKeyEnd() error { return b.self().SeqValueEnd() }

func (b *Base) MapValueBegin() error { return b.self().SeqValueBegin() }

func (b *Base) MapValueEnd() error {
	s := b.self()
	if err := s.SeqValueEnd(); err != nil {
		return err
	}
	if err := s.SeqEnd(); err != nil {
		return err
	}
	return s.SeqValueEnd()
}

func (b *Base) MapEnd() error { return b.self().SeqEnd() }

// Tag reduces to Null.
func (b *Base) Tag(t token.Tag, l *token.Label, i *token.Index) error { return b.self().Null() }

// TaggedBegin/TaggedEnd are structurally transparent: the default
// reduction emits nothing of its own, letting the wrapped value's
// calls pass straight through.
func (b *Base) TaggedBegin(t token.Tag, l *token.Label, i *token.Index) error { return nil }
func (b *Base) TaggedEnd() error                                             { return nil }

// RecordBegin/ValueBegin/ValueEnd/End reduce to a seq of 2-element
// seqs, [label-text, value].
func (b *Base) RecordBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	return b.self().SeqBegin(sizeHint)
}

func (b *Base) RecordValueBegin(l token.Label) error {
	s := b.self()
	if err := s.SeqValueBegin(); err != nil {
		return err
	}
	if err := s.SeqBegin(2); err != nil {
		return err
	}
	if err := s.SeqValueBegin(); err != nil {
		return err
	}
	if err := s.TextBegin(len(l.Text)); err != nil {
		return err
	}
	if err := s.TextFragmentComputed(l.Text); err != nil {
		return err
	}
	if err := s.TextEnd(); err != nil {
		return err
	}
	if err := s.SeqValueEnd(); err != nil {
		return err
	}
	return s.SeqValueBegin()
}

func (b *Base) RecordValueEnd(l token.Label) error {
	s := b.self()
	if err := s.SeqValueEnd(); err != nil {
		return err
	}
	if err := s.SeqEnd(); err != nil {
		return err
	}
	return s.SeqValueEnd()
}

func (b *Base) RecordEnd() error { return b.self().SeqEnd() }

// TupleBegin/ValueBegin/ValueEnd/End reduce to a seq of positional
// values, dropping the Index.
func (b *Base) TupleBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	return b.self().SeqBegin(sizeHint)
}
func (b *Base) TupleValueBegin(idx token.Index) error { return b.self().SeqValueBegin() }
func (b *Base) TupleValueEnd(idx token.Index) error   { return b.self().SeqValueEnd() }
func (b *Base) TupleEnd() error                       { return b.self().SeqEnd() }

// RecordTupleBegin/ValueBegin/ValueEnd/End reduce to the Record
// reduction: labels are present, so a record-tuple is just a record
// whose values also carry an Index a sink may ignore.
func (b *Base) RecordTupleBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	return b.self().RecordBegin(t, l, i, sizeHint)
}

func (b *Base) RecordTupleValueBegin(l token.Label, idx token.Index) error {
	return b.self().RecordValueBegin(l)
}

func (b *Base) RecordTupleValueEnd(l token.Label, idx token.Index) error {
	return b.self().RecordValueEnd(l)
}

func (b *Base) RecordTupleEnd() error { return b.self().RecordEnd() }

// EnumBegin/EnumEnd are structurally transparent, exactly like
// TaggedBegin/TaggedEnd: the wrapped variant's own calls pass through
// unmodified.
func (b *Base) EnumBegin(t *token.Tag, l *token.Label, i *token.Index) error { return nil }
func (b *Base) EnumEnd() error                                              { return nil }

// Value dispatches v.Emit against Self, the bridge described in spec
// §4.3.
func (b *Base) Value(v Value) error { return v.Emit(b.self()) }
