package template

import (
	"strings"
)

// rawLine is one non-blank, non-comment source line with its leading
// whitespace measured and stripped.
type rawLine struct {
	lineNo int
	indent int
	text   string // trimmed content
}

// splitLines breaks source into rawLines, dropping blank lines and
// lines whose first non-whitespace character is '#'. Indentation is
// measured in raw leading-space count; tabs count as one column each,
// since the grammar only needs relative depth, not column alignment.
func splitLines(source string) []rawLine {
	var out []rawLine
	for i, line := range strings.Split(source, "\n") {
		indent := 0
		for indent < len(line) && (line[indent] == ' ' || line[indent] == '\t') {
			indent++
		}
		trimmed := strings.TrimRight(line[indent:], " \t\r")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, rawLine{lineNo: i + 1, indent: indent, text: trimmed})
	}
	return out
}

// splitFields splits a trimmed line's content into whitespace-delimited
// fields, without losing quoted substrings (a value may be quoted to
// contain spaces, e.g. trailer=" ").
func splitFields(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == ' ' && !inQuotes:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// matchRelOp returns the explicit relation operator prefixing s, if
// any, and the remainder of the string after it.
func matchRelOp(s string) (RelOp, string, bool) {
	for _, op := range relOps {
		if strings.HasPrefix(s, string(op)) {
			rest := strings.TrimSpace(s[len(op):])
			return op, rest, true
		}
	}
	return "", s, false
}

// parsePredicate parses one predicate field, e.g. "lex=foo|bar",
// "number!=0", "gloss~^the", "trailer*", "vbs?".
func parsePredicate(field string) (Predicate, bool) {
	if idx := strings.Index(field, "!="); idx >= 0 {
		return Predicate{Feature: field[:idx], Op: OpNe, Values: []string{unquote(field[idx+2:])}}, true
	}
	if idx := strings.Index(field, "~"); idx >= 0 {
		return Predicate{Feature: field[:idx], Op: OpRegex, Values: []string{unquote(field[idx+1:])}}, true
	}
	if idx := strings.Index(field, "="); idx >= 0 {
		rest := field[idx+1:]
		if strings.Contains(rest, "|") {
			parts := strings.Split(rest, "|")
			for i, p := range parts {
				parts[i] = unquote(p)
			}
			return Predicate{Feature: field[:idx], Op: OpIn, Values: parts}, true
		}
		return Predicate{Feature: field[:idx], Op: OpEq, Values: []string{unquote(rest)}}, true
	}
	if strings.HasSuffix(field, "*") {
		return Predicate{Feature: strings.TrimSuffix(field, "*"), Op: OpPresent}, true
	}
	if strings.HasSuffix(field, "?") {
		return Predicate{Feature: strings.TrimSuffix(field, "?"), Op: OpAbsent}, true
	}
	return Predicate{}, false
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// quantifierKind recognizes a "/word/" quantifier marker line.
func quantifierKind(field string) (QuantKind, bool) {
	if !strings.HasPrefix(field, "/") || !strings.HasSuffix(field, "/") || len(field) < 3 {
		return "", false
	}
	kind := QuantKind(field[1 : len(field)-1])
	switch kind {
	case QuantWhere, QuantHave, QuantWithout, QuantWith, QuantOr, QuantNot:
		return kind, true
	}
	return "", false
}
