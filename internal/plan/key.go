// Package plan identifies units of build work, tracks the values they
// depend on, and runs them in an order derived from the artifact
// categories they read and write.
package plan

import (
	"strings"
)

// PlanKey is the identity of a step or ingredient. Keys built from
// different inputs always have different text.
type PlanKey struct {
	text string
}

// String returns the key text.
func (k PlanKey) String() string {
	return k.text
}

// ParseKey returns the key whose text is text.
func ParseKey(text string) PlanKey {
	return PlanKey{text: text}
}

// IsZero reports whether k was never built.
func (k PlanKey) IsZero() bool {
	return k.text == ""
}

// Prefix returns the unescaped prefix the key was built with.
func (k PlanKey) Prefix() string {
	for i := 0; i < len(k.text); i++ {
		switch k.text[i] {
		case '\\':
			i++
		case ':':
			return unescape(k.text[:i])
		}
	}
	return unescape(k.text)
}

// Keyed is anything identified by a PlanKey.
type Keyed interface {
	Key() PlanKey
}

// KeyBuilder assembles a PlanKey from a prefix and a sequence of blocks.
//
//	key   = esc(prefix) ":" block*   (trailing terminator dropped)
//	block = "[" item ("," item)* "]" ";" | "[]" ";" | esc(string) ";"
//	item  = esc(text) | `""`   (the second form is the empty string)
type KeyBuilder struct {
	b strings.Builder
}

// NewKey starts a key with the given prefix.
func NewKey(prefix string) *KeyBuilder {
	kb := &KeyBuilder{}
	escapeTo(&kb.b, prefix)
	kb.b.WriteByte(':')
	return kb
}

// AddIngredients appends a block listing the keys of ings.
func (kb *KeyBuilder) AddIngredients(ings ...Ingredient) *KeyBuilder {
	texts := make([]string, len(ings))
	for i, ing := range ings {
		texts[i] = ing.Key().String()
	}
	return kb.AddStrings(texts...)
}

// AddKeys appends a block listing keys.
func (kb *KeyBuilder) AddKeys(keys ...PlanKey) *KeyBuilder {
	texts := make([]string, len(keys))
	for i, k := range keys {
		texts[i] = k.String()
	}
	return kb.AddStrings(texts...)
}

// AddStrings appends a block listing ss. An empty list is written as "[]"
// so it stays distinct from an absent block.
func (kb *KeyBuilder) AddStrings(ss ...string) *KeyBuilder {
	kb.b.WriteByte('[')
	for i, s := range ss {
		if i > 0 {
			kb.b.WriteByte(',')
		}
		if s == "" {
			kb.b.WriteString(`""`)
			continue
		}
		escapeTo(&kb.b, s)
	}
	kb.b.WriteString("];")
	return kb
}

// AddString appends a single literal block.
func (kb *KeyBuilder) AddString(s string) *KeyBuilder {
	escapeTo(&kb.b, s)
	kb.b.WriteByte(';')
	return kb
}

// Build returns the key. The builder may keep being used afterwards.
func (kb *KeyBuilder) Build() PlanKey {
	s := kb.b.String()
	return PlanKey{text: s[:len(s)-1]}
}

func isReserved(c byte) bool {
	switch c {
	case ':', '\\', '[', ']', ',', ';', '"':
		return true
	}
	return false
}

func escapeTo(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		if isReserved(s[i]) {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
}

func escape(s string) string {
	var b strings.Builder
	escapeTo(&b, s)
	return b.String()
}

func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
