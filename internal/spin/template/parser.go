package template

import "fmt"

// Parse turns a template source string into a Template AST, per the
// line-oriented grammar of spec.md §4.5: indentation encodes default
// containment, sibling lines encode default precedence, and a line may
// open with an explicit relation operator to override the default.
func Parse(source string) (*Template, error) {
	lines := splitLines(source)
	if len(lines) == 0 {
		return &Template{}, nil
	}

	p := &parser{lines: lines}
	roots, _, err := p.parseBlock(0, -1)
	if err != nil {
		return nil, err
	}
	return &Template{Roots: roots}, nil
}

type parser struct {
	lines []rawLine
}

// parseBlock consumes every line at the block's indent level (fixed by
// the first line encountered) starting at pos, plus each atom's deeper
// children/quantifiers, stopping once a line's indent is <= parentIndent
// or input is exhausted. It returns the parsed siblings and the
// position just past the block.
func (p *parser) parseBlock(pos int, parentIndent int) ([]*Atom, int, error) {
	if pos >= len(p.lines) {
		return nil, pos, nil
	}
	blockIndent := p.lines[pos].indent
	if blockIndent <= parentIndent {
		return nil, pos, nil
	}

	var siblings []*Atom

	for pos < len(p.lines) {
		line := p.lines[pos]
		if line.indent <= parentIndent {
			break
		}
		if line.indent != blockIndent {
			return nil, pos, newParseError(line.lineNo, line.indent, fmt.Sprintf("indent %d matching sibling block", blockIndent), line.text)
		}
		if isQuantifierLine(line) {
			// A quantifier marker at this indent belongs to the atom one
			// level up, not to the sibling block being scanned; stop here
			// without consuming it so the caller can pick it up.
			break
		}

		atom, rel, err := parseAtomLine(line)
		if err != nil {
			return nil, pos, err
		}
		if rel == "" {
			if len(siblings) == 0 {
				rel = RelContainment
			} else {
				rel = RelPrecedes
			}
		}
		atom.SiblingRel = rel
		pos++

		// Consume this atom's deeper lines: interleaved quantifier
		// blocks and plain child atoms, both indented past blockIndent.
		for pos < len(p.lines) && p.lines[pos].indent > blockIndent {
			next := p.lines[pos]
			if isQuantifierLine(next) {
				fields := splitFields(next.text)
				kind, _ := quantifierKind(fields[0])
				bodyPos := pos + 1
				body, newPos, err := p.parseBlock(bodyPos, next.indent)
				if err != nil {
					return nil, pos, err
				}
				atom.Quantifiers = append(atom.Quantifiers, Quantifier{Kind: kind, Body: body})
				pos = newPos
				continue
			}
			children, newPos, err := p.parseBlock(pos, blockIndent)
			if err != nil {
				return nil, pos, err
			}
			atom.Children = append(atom.Children, children...)
			pos = newPos
		}

		siblings = append(siblings, atom)
	}

	return siblings, pos, nil
}

// isQuantifierLine reports whether line's first field is a quantifier
// marker such as "/where/".
func isQuantifierLine(line rawLine) bool {
	fields := splitFields(line.text)
	if len(fields) == 0 {
		return false
	}
	_, ok := quantifierKind(fields[0])
	return ok
}

// parseAtomLine parses one line into an Atom plus its explicit
// relation to the previous sibling, if the line opens with one.
func parseAtomLine(line rawLine) (*Atom, RelOp, error) {
	text := line.text
	var rel RelOp
	if op, rest, ok := matchRelOp(text); ok {
		rel = op
		text = rest
	}

	fields := splitFields(text)
	if len(fields) == 0 {
		return nil, "", newParseError(line.lineNo, line.indent, "a type name", "")
	}

	atom := &Atom{TypeName: fields[0], Line: line.lineNo}
	for _, f := range fields[1:] {
		pred, ok := parsePredicate(f)
		if !ok {
			return nil, "", newParseError(line.lineNo, line.indent, "a feature predicate", f)
		}
		atom.Predicates = append(atom.Predicates, pred)
	}
	return atom, rel, nil
}
