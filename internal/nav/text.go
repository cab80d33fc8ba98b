package nav

import (
	"fmt"
	"strings"
)

// textSource is the minimal view T needs from internal/store.Store.
type textSource interface {
	Slots(n int32) []int32
	FirstSlot(n int32) (int32, bool)
}

// featureLookup resolves a per-slot string feature value by name,
// backing template field substitution. Absent returns ("", false).
type featureLookup interface {
	StringValue(featureName string, slot int32) (string, bool)
}

// sectionResolver maps a slot to its declared section hierarchy (e.g.
// book/chapter/verse), used by T.sectionRef.
type sectionResolver interface {
	SectionRef(slot int32) []string
}

// Format is one parsed text-rendering template: a sequence of literal
// runs and field references, where each field reference may carry a
// fallback ("a/b" meaning "a if present, else b").
type Format struct {
	parts []templatePart
}

type templatePart struct {
	literal string
	fields  []string // candidates tried in order; first present wins
}

// ParseFormat parses a template string like "{g_word_utf8}{trailer_utf8}"
// or "{lex/voc_lex}" into a Format. Unmatched braces are treated as
// literal text rather than rejected; neither Open nor Text reports a
// malformed template.
func ParseFormat(template string) *Format {
	f := &Format{}
	var lit strings.Builder
	i := 0
	for i < len(template) {
		if template[i] == '{' {
			if end := strings.IndexByte(template[i:], '}'); end >= 0 {
				if lit.Len() > 0 {
					f.parts = append(f.parts, templatePart{literal: lit.String()})
					lit.Reset()
				}
				field := template[i+1 : i+end]
				f.parts = append(f.parts, templatePart{fields: strings.Split(field, "/")})
				i += end + 1
				continue
			}
		}
		lit.WriteByte(template[i])
		i++
	}
	if lit.Len() > 0 {
		f.parts = append(f.parts, templatePart{literal: lit.String()})
	}
	return f
}

// render evaluates the format over a single slot.
func (f *Format) render(lookup featureLookup, slot int32) string {
	var b strings.Builder
	for _, p := range f.parts {
		if p.literal != "" {
			b.WriteString(p.literal)
			continue
		}
		for _, field := range p.fields {
			if v, ok := lookup.StringValue(field, slot); ok {
				b.WriteString(v)
				break
			}
		}
	}
	return b.String()
}

// T is the text-assembly and section-reference operator.
type T struct {
	store   textSource
	lookup  featureLookup
	section sectionResolver
	formats map[string]*Format
	def     string
}

// NewT constructs the text operator. formats maps a declared format
// name to its parsed template; def is the name used when fmt is omitted.
func NewT(store textSource, lookup featureLookup, section sectionResolver, formats map[string]*Format, def string) *T {
	return &T{store: store, lookup: lookup, section: section, formats: formats, def: def}
}

// ErrUnknownFormat is returned by Text when fmtName names a format not
// declared in meta.json.
var ErrUnknownFormat = fmt.Errorf("nav: unknown text format")

// Text renders the named (or default) format over slots(n), in
// ascending slot order, preserving literal whitespace byte-exactly.
func (t *T) Text(n int32, fmtName string) (string, error) {
	if fmtName == "" {
		fmtName = t.def
	}
	format, ok := t.formats[fmtName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, fmtName)
	}

	slots := t.store.Slots(n)
	var b strings.Builder
	for _, slot := range slots {
		b.WriteString(format.render(t.lookup, slot))
	}
	return b.String(), nil
}

// SectionRef resolves n to its human-readable section triple (e.g.
// ["Genesis", "1", "1"]), keyed off n's first slot.
func (t *T) SectionRef(n int32) []string {
	first, ok := t.store.FirstSlot(n)
	if !ok {
		return nil
	}
	return t.section.SectionRef(first)
}
