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

// Package json is the JSON encoder worked example: a stream.Stream
// that renders any Value as RFC 8259 text. It builds on stream.Base
// for every reduction it has no opinion about (widened integers,
// oversized u64/u128/i128, f32, binary-as-byte-array, record-tuple)
// and overrides only the methods JSON gives distinct shape: scalars,
// text, seq, map, tagged (for the NUMBER tag's unquoted literal
// form), record and tuple.
package json

import (
	"bufio"
	"io"
	"math"
	"strconv"

	"github.com/google/structstream/stream"
	"github.com/google/structstream/stream/record"
	"github.com/google/structstream/token"
)

type frameKind int

const (
	frameSeq frameKind = iota
	frameRecord
	frameTuple
)

type frame struct {
	kind  frameKind
	first bool
}

// mapCapture buffers an entire map's pairs so the encoder can decide,
// only once every key has been seen, whether to render a JSON object
// (every key reduces to text or a stringifiable scalar) or fall back
// to the default array-of-pairs shape (spec §4.4 "map_* emits a JSON
// object when keys reduce to text; otherwise defers to default
// reduction"). depth counts begin/end calls seen since the capture
// started, net of the MapBegin that started it; the capture's own
// MapEnd arrives exactly when depth returns to zero.
type mapCapture struct {
	rec   record.Recorder
	depth int
}

// Encoder implements stream.Stream, writing RFC 8259 JSON to an
// underlying io.Writer. The zero value is not usable; construct one
// with NewEncoder.
type Encoder struct {
	stream.Base

	w *bufio.Writer

	frames   [16]frame
	overflow []frame
	nframes  int

	capture   *mapCapture
	rawNumber bool

	escbuf []byte
}

// NewEncoder returns an Encoder writing to w. Callers driving it
// directly (rather than through Marshal) must call Flush when done.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: bufio.NewWriter(w)}
	e.Base.Self = e
	return e
}

// Flush writes any buffered output to the underlying writer.
func (e *Encoder) Flush() error { return e.w.Flush() }

// Marshal renders v as a single JSON document.
func Marshal(v stream.Value) ([]byte, error) {
	var buf bytesBuffer
	e := NewEncoder(&buf)
	if err := stream.To(e, v); err != nil {
		return nil, err
	}
	if err := e.Flush(); err != nil {
		return nil, err
	}
	return buf.b, nil
}

// bytesBuffer is a trivial io.Writer; avoids importing bytes solely
// for its Buffer type in this small a role.
type bytesBuffer struct{ b []byte }

func (w *bytesBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

// --- frame stack: 16 inline, heap-backed beyond that ---

func (e *Encoder) pushFrame(f frame) {
	if e.nframes < len(e.frames) {
		e.frames[e.nframes] = f
	} else {
		e.overflow = append(e.overflow, f)
	}
	e.nframes++
}

func (e *Encoder) topFrame() *frame {
	if e.nframes == 0 {
		return nil
	}
	idx := e.nframes - 1
	if idx < len(e.frames) {
		return &e.frames[idx]
	}
	return &e.overflow[idx-len(e.frames)]
}

func (e *Encoder) popFrame() {
	e.nframes--
	if e.nframes >= len(e.frames) {
		e.overflow = e.overflow[:len(e.overflow)-1]
	}
}

// --- raw output helpers ---

func (e *Encoder) writeByte(b byte) error { return e.w.WriteByte(b) }

func (e *Encoder) writeString(s string) error {
	_, err := e.w.WriteString(s)
	return err
}

// --- scalars ---

func (e *Encoder) Null() error {
	if e.capture != nil {
		return e.capture.rec.Null()
	}
	return e.writeString("null")
}

func (e *Encoder) Bool(v bool) error {
	if e.capture != nil {
		return e.capture.rec.Bool(v)
	}
	if v {
		return e.writeString("true")
	}
	return e.writeString("false")
}

func (e *Encoder) I64(v int64) error {
	if e.capture != nil {
		return e.capture.rec.I64(v)
	}
	return e.writeString(strconv.FormatInt(v, 10))
}

// F64 is overridden directly, rather than left to Base's
// tagged-decimal reduction, so non-finite values are rejected before
// any output is written, and finite ones are written directly as a
// bare number without going through NUMBER-tagged text.
func (e *Encoder) F64(v float64) error {
	if e.capture != nil {
		return e.capture.rec.F64(v)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return stream.Halt
	}
	return e.writeString(strconv.FormatFloat(v, 'g', -1, 64))
}

// --- text ---

func (e *Encoder) TextBegin(sizeHint int) error {
	if e.capture != nil {
		e.capture.depth++
		return e.capture.rec.TextBegin(sizeHint)
	}
	if e.rawNumber {
		return nil
	}
	return e.writeByte('"')
}

func (e *Encoder) TextFragmentComputed(s string) error {
	if e.capture != nil {
		return e.capture.rec.TextFragmentComputed(s)
	}
	if e.rawNumber {
		return e.writeString(s)
	}
	return e.writeEscaped(s)
}

func (e *Encoder) TextEnd() error {
	if e.capture != nil {
		e.capture.depth--
		return e.capture.rec.TextEnd()
	}
	if e.rawNumber {
		return nil
	}
	return e.writeByte('"')
}

// writeEscaped implements the RFC 8259 escape policy with the fast
// path spec §4.4 calls for: scan once for any byte needing escape,
// and if none is found, write the fragment verbatim.
func (e *Encoder) writeEscaped(s string) error {
	escapeAt := -1
	for i := 0; i < len(s); i++ {
		if needsEscape(s[i]) {
			escapeAt = i
			break
		}
	}
	if escapeAt < 0 {
		return e.writeString(s)
	}
	if err := e.writeString(s[:escapeAt]); err != nil {
		return err
	}
	buf := e.escbuf[:0]
	for i := escapeAt; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			buf = append(buf, '\\', '"')
		case c == '\\':
			buf = append(buf, '\\', '\\')
		case c == '\b':
			buf = append(buf, '\\', 'b')
		case c == '\f':
			buf = append(buf, '\\', 'f')
		case c == '\n':
			buf = append(buf, '\\', 'n')
		case c == '\r':
			buf = append(buf, '\\', 'r')
		case c == '\t':
			buf = append(buf, '\\', 't')
		case c < 0x20:
			buf = append(buf, '\\', 'u', '0', '0', hexDigit(c>>4), hexDigit(c&0xF))
		default:
			buf = append(buf, c)
		}
	}
	e.escbuf = buf
	_, err := e.w.Write(buf)
	return err
}

func needsEscape(c byte) bool { return c < 0x20 || c == '"' || c == '\\' }

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + (n - 10)
}

// --- seq ---

func (e *Encoder) SeqBegin(sizeHint int) error {
	if e.capture != nil {
		e.capture.depth++
		return e.capture.rec.SeqBegin(sizeHint)
	}
	e.pushFrame(frame{kind: frameSeq, first: true})
	return e.writeByte('[')
}

func (e *Encoder) SeqValueBegin() error {
	if e.capture != nil {
		e.capture.depth++
		return e.capture.rec.SeqValueBegin()
	}
	top := e.topFrame()
	if top == nil || top.kind != frameSeq {
		return stream.Malformed
	}
	if !top.first {
		if err := e.writeByte(','); err != nil {
			return err
		}
	}
	top.first = false
	return nil
}

func (e *Encoder) SeqValueEnd() error {
	if e.capture != nil {
		e.capture.depth--
		return e.capture.rec.SeqValueEnd()
	}
	return nil
}

func (e *Encoder) SeqEnd() error {
	if e.capture != nil {
		e.capture.depth--
		return e.capture.rec.SeqEnd()
	}
	e.popFrame()
	return e.writeByte(']')
}

// --- map: buffered, see mapCapture ---

func (e *Encoder) MapBegin(sizeHint int) error {
	if e.capture != nil {
		e.capture.depth++
		return e.capture.rec.MapBegin(sizeHint)
	}
	e.capture = &mapCapture{}
	return nil
}

func (e *Encoder) MapKeyBegin() error {
	if e.capture == nil {
		return stream.Malformed
	}
	e.capture.depth++
	return e.capture.rec.MapKeyBegin()
}

func (e *Encoder) MapKeyEnd() error {
	if e.capture == nil {
		return stream.Malformed
	}
	e.capture.depth--
	return e.capture.rec.MapKeyEnd()
}

func (e *Encoder) MapValueBegin() error {
	if e.capture == nil {
		return stream.Malformed
	}
	e.capture.depth++
	return e.capture.rec.MapValueBegin()
}

func (e *Encoder) MapValueEnd() error {
	if e.capture == nil {
		return stream.Malformed
	}
	e.capture.depth--
	return e.capture.rec.MapValueEnd()
}

func (e *Encoder) MapEnd() error {
	if e.capture == nil {
		return stream.Malformed
	}
	if e.capture.depth != 0 {
		e.capture.depth--
		return e.capture.rec.MapEnd()
	}
	tokens := e.capture.rec.Tokens
	e.capture = nil
	return e.finishMap(tokens)
}

func (e *Encoder) finishMap(tokens []record.Token) error {
	pairs := record.Split(tokens)
	keyTexts := make([]string, len(pairs))
	asObject := true
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
		asObject = false
		break
	}
	if asObject {
		if err := e.writeByte('{'); err != nil {
			return err
		}
		for i, p := range pairs {
			if i > 0 {
				if err := e.writeByte(','); err != nil {
					return err
				}
			}
			if err := e.writeByte('"'); err != nil {
				return err
			}
			if err := e.writeEscaped(keyTexts[i]); err != nil {
				return err
			}
			if err := e.writeByte('"'); err != nil {
				return err
			}
			if err := e.writeByte(':'); err != nil {
				return err
			}
			if err := (&record.Recorder{Tokens: p.Value}).Replay(e); err != nil {
				return err
			}
		}
		return e.writeByte('}')
	}
	if err := e.writeByte('['); err != nil {
		return err
	}
	for i, p := range pairs {
		if i > 0 {
			if err := e.writeByte(','); err != nil {
				return err
			}
		}
		if err := e.writeByte('['); err != nil {
			return err
		}
		if err := (&record.Recorder{Tokens: p.Key}).Replay(e); err != nil {
			return err
		}
		if err := e.writeByte(','); err != nil {
			return err
		}
		if err := (&record.Recorder{Tokens: p.Value}).Replay(e); err != nil {
			return err
		}
		if err := e.writeByte(']'); err != nil {
			return err
		}
	}
	return e.writeByte(']')
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
		if math.IsNaN(t.F64) || math.IsInf(t.F64, 0) {
			return "", stream.Halt
		}
		return strconv.FormatFloat(t.F64, 'g', -1, 64), nil
	default:
		return "", stream.Malformed
	}
}

// --- tag / tagged ---

// Tag is left to Base's default (reduces to Null): no reserved
// constant from spec §6 has a JSON rendering distinct from null when
// it appears as a bare marker rather than wrapping a value.

func (e *Encoder) TaggedBegin(t token.Tag, l *token.Label, i *token.Index) error {
	if e.capture != nil {
		e.capture.depth++
		return e.capture.rec.TaggedBegin(t, l, i)
	}
	if t.Equal(token.NumberTag) {
		e.rawNumber = true
	}
	return nil
}

func (e *Encoder) TaggedEnd() error {
	if e.capture != nil {
		e.capture.depth--
		return e.capture.rec.TaggedEnd()
	}
	e.rawNumber = false
	return nil
}

// --- record ---

func (e *Encoder) RecordBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	if e.capture != nil {
		e.capture.depth++
		return e.capture.rec.RecordBegin(t, l, i, sizeHint)
	}
	e.pushFrame(frame{kind: frameRecord, first: true})
	return e.writeByte('{')
}

func (e *Encoder) RecordValueBegin(l token.Label) error {
	if e.capture != nil {
		e.capture.depth++
		return e.capture.rec.RecordValueBegin(l)
	}
	top := e.topFrame()
	if top == nil || top.kind != frameRecord {
		return stream.Malformed
	}
	if !top.first {
		if err := e.writeByte(','); err != nil {
			return err
		}
	}
	top.first = false
	if err := e.writeByte('"'); err != nil {
		return err
	}
	if err := e.writeEscaped(l.Text); err != nil {
		return err
	}
	if err := e.writeByte('"'); err != nil {
		return err
	}
	return e.writeByte(':')
}

func (e *Encoder) RecordValueEnd(l token.Label) error {
	if e.capture != nil {
		e.capture.depth--
		return e.capture.rec.RecordValueEnd(l)
	}
	return nil
}

func (e *Encoder) RecordEnd() error {
	if e.capture != nil {
		e.capture.depth--
		return e.capture.rec.RecordEnd()
	}
	e.popFrame()
	return e.writeByte('}')
}

// --- tuple ---

func (e *Encoder) TupleBegin(t *token.Tag, l *token.Label, i *token.Index, sizeHint int) error {
	if e.capture != nil {
		e.capture.depth++
		return e.capture.rec.TupleBegin(t, l, i, sizeHint)
	}
	e.pushFrame(frame{kind: frameTuple, first: true})
	return e.writeByte('[')
}

func (e *Encoder) TupleValueBegin(idx token.Index) error {
	if e.capture != nil {
		e.capture.depth++
		return e.capture.rec.TupleValueBegin(idx)
	}
	top := e.topFrame()
	if top == nil || top.kind != frameTuple {
		return stream.Malformed
	}
	if !top.first {
		if err := e.writeByte(','); err != nil {
			return err
		}
	}
	top.first = false
	return nil
}

func (e *Encoder) TupleValueEnd(idx token.Index) error {
	if e.capture != nil {
		e.capture.depth--
		return e.capture.rec.TupleValueEnd(idx)
	}
	return nil
}

func (e *Encoder) TupleEnd() error {
	if e.capture != nil {
		e.capture.depth--
		return e.capture.rec.TupleEnd()
	}
	e.popFrame()
	return e.writeByte(']')
}
