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

package token_test

import (
	"testing"

	"github.com/google/structstream/core/assert"
	"github.com/google/structstream/token"
)

func TestTagEqual(t *testing.T) {
	id1, id2 := uint64(1), uint64(1)
	cases := []struct {
		name string
		a, b token.Tag
		want bool
	}{
		{"identical names", token.Tag{Name: "x"}, token.Tag{Name: "x"}, true},
		{"different names", token.Tag{Name: "x"}, token.Tag{Name: "y"}, false},
		{"different symbols", token.Tag{Name: "x", Symbol: token.Number}, token.Tag{Name: "x"}, false},
		{"both nil ids", token.Tag{Name: "x"}, token.Tag{Name: "x"}, true},
		{"one nil id", token.Tag{Name: "x", ID: &id1}, token.Tag{Name: "x"}, false},
		{"equal ids", token.Tag{Name: "x", ID: &id1}, token.Tag{Name: "x", ID: &id2}, true},
	}
	for _, c := range cases {
		assert.To(t).For(c.name).ThatBoolean(c.a.Equal(c.b)).Equals(c.want)
	}
}

func TestTagIs(t *testing.T) {
	assert.To(t).For("matches own symbol").ThatBoolean(token.NumberTag.Is(token.Number)).IsTrue()
	assert.To(t).For("rejects other symbol").ThatBoolean(token.NumberTag.Is(token.ValueIdent)).IsFalse()
}

func TestReservedTagConstants(t *testing.T) {
	reserved := []struct {
		name string
		tag  token.Tag
		sym  token.Symbol
	}{
		{"number", token.NumberTag, token.Number},
		{"value-ident", token.ValueIdentTag, token.ValueIdent},
		{"value-offset", token.ValueOffsetTag, token.ValueOffset},
		{"constant-sized-array", token.ConstantSizedArrayTag, token.ConstantSizedArray},
		{"rust-option-some", token.RustOptionSomeTag, token.RustOptionSome},
		{"rust-option-none", token.RustOptionNoneTag, token.RustOptionNone},
	}
	for _, r := range reserved {
		assert.To(t).For(r.name+" symbol").ThatBoolean(r.tag.Is(r.sym)).IsTrue()
	}
}

func TestLabelEqual(t *testing.T) {
	a := token.NewLabel("foo")
	b := token.NewLabel("foo")
	c := token.NewLabel("bar")
	assert.To(t).For("same text").ThatBoolean(a.Equal(b)).IsTrue()
	assert.To(t).For("different text").ThatBoolean(a.Equal(c)).IsFalse()
}

func TestLabelHashStableAndDistinguishing(t *testing.T) {
	a := token.NewLabel("foo")
	b := token.NewLabel("foo")
	c := token.NewLabel("bar")
	assert.To(t).For("stable").ThatInteger(int(a.Hash())).Equals(int(b.Hash()))
	if a.Hash() == c.Hash() {
		t.Errorf("distinct labels hashed equal: %q and %q", a.Text, c.Text)
	}
}

func TestLabelIsIdent(t *testing.T) {
	plain := token.NewLabel("foo")
	assert.To(t).For("untagged").ThatBoolean(plain.IsIdent()).IsFalse()

	tagged := token.Label{Text: "foo", Tag: &token.ValueIdentTag}
	assert.To(t).For("tagged ident").ThatBoolean(tagged.IsIdent()).IsTrue()

	other := token.Label{Text: "foo", Tag: &token.NumberTag}
	assert.To(t).For("tagged non-ident").ThatBoolean(other.IsIdent()).IsFalse()
}

func TestIndexIsOffset(t *testing.T) {
	plain := token.NewIndex(3)
	assert.To(t).For("untagged").ThatBoolean(plain.IsOffset()).IsFalse()

	tagged := token.Index{Value: 3, Tag: &token.ValueOffsetTag}
	assert.To(t).For("tagged offset").ThatBoolean(tagged.IsOffset()).IsTrue()
}
