package template

import "testing"

func TestParse_SingleAtom(t *testing.T) {
	tmpl, err := Parse("word gloss=light")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tmpl.Roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(tmpl.Roots))
	}
	root := tmpl.Roots[0]
	if root.TypeName != "word" {
		t.Errorf("expected type word, got %s", root.TypeName)
	}
	if len(root.Predicates) != 1 || root.Predicates[0].Feature != "gloss" || root.Predicates[0].Op != OpEq {
		t.Errorf("unexpected predicates: %+v", root.Predicates)
	}
}

func TestParse_Predicates(t *testing.T) {
	tmpl, err := Parse(`word lex=ab|cd number!=0 gloss~^the trailer* vbs?`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	preds := tmpl.Roots[0].Predicates
	if len(preds) != 5 {
		t.Fatalf("expected 5 predicates, got %d: %+v", len(preds), preds)
	}
	if preds[0].Op != OpIn || len(preds[0].Values) != 2 {
		t.Errorf("expected lex to be OpIn with 2 values, got %+v", preds[0])
	}
	if preds[1].Op != OpNe {
		t.Errorf("expected number to be OpNe, got %+v", preds[1])
	}
	if preds[2].Op != OpRegex {
		t.Errorf("expected gloss to be OpRegex, got %+v", preds[2])
	}
	if preds[3].Op != OpPresent {
		t.Errorf("expected trailer to be OpPresent, got %+v", preds[3])
	}
	if preds[4].Op != OpAbsent {
		t.Errorf("expected vbs to be OpAbsent, got %+v", preds[4])
	}
}

func TestParse_IndentationContainment(t *testing.T) {
	src := "clause\n" +
		"  phrase function=Pred\n" +
		"  phrase function=Subj\n"
	tmpl, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tmpl.Roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(tmpl.Roots))
	}
	clause := tmpl.Roots[0]
	if len(clause.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(clause.Children))
	}
	if clause.Children[0].SiblingRel != RelContainment {
		t.Errorf("expected first child's rel to be containment, got %s", clause.Children[0].SiblingRel)
	}
	if clause.Children[1].SiblingRel != RelPrecedes {
		t.Errorf("expected second child's default rel to be precedes, got %s", clause.Children[1].SiblingRel)
	}
}

func TestParse_ExplicitRelation(t *testing.T) {
	src := "word lex=a\n" +
		"<: word lex=b\n"
	tmpl, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tmpl.Roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(tmpl.Roots))
	}
	if tmpl.Roots[1].SiblingRel != RelImmBefore {
		t.Errorf("expected explicit <: relation, got %s", tmpl.Roots[1].SiblingRel)
	}
}

func TestParse_QuantifierBlock(t *testing.T) {
	src := "word gloss=light\n" +
		"  /where/\n" +
		"    phrase function=Pred\n" +
		"  /have/\n" +
		"    clause typ=Zero\n"
	tmpl, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := tmpl.Roots[0]
	if len(root.Quantifiers) != 2 {
		t.Fatalf("expected 2 quantifiers, got %d", len(root.Quantifiers))
	}
	if root.Quantifiers[0].Kind != QuantWhere || len(root.Quantifiers[0].Body) != 1 {
		t.Errorf("unexpected /where/ quantifier: %+v", root.Quantifiers[0])
	}
	if root.Quantifiers[1].Kind != QuantHave || len(root.Quantifiers[1].Body) != 1 {
		t.Errorf("unexpected /have/ quantifier: %+v", root.Quantifiers[1])
	}
	if len(root.Children) != 0 {
		t.Errorf("expected no plain children when only quantifiers are present, got %d", len(root.Children))
	}
}

func TestParse_MixedChildrenAndQuantifier(t *testing.T) {
	src := "clause\n" +
		"  phrase function=Pred\n" +
		"  /where/\n" +
		"    word lex=foo\n"
	tmpl, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := tmpl.Roots[0]
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 plain child, got %d", len(root.Children))
	}
	if len(root.Quantifiers) != 1 {
		t.Fatalf("expected 1 quantifier, got %d", len(root.Quantifiers))
	}
}

func TestParse_MalformedPredicateFails(t *testing.T) {
	if _, err := Parse("word !!!bad"); err == nil {
		t.Error("expected parse error for malformed predicate")
	}
}

func TestParse_MismatchedSiblingIndentFails(t *testing.T) {
	src := "clause\n" +
		"  phrase function=Pred\n" +
		"  word lex=foo\n" +
		"   clause2\n" + // deeper than the two siblings above: nests under word, fine
		"  phrase function=Subj\n" // back to the original sibling indent: fine
	_, err := Parse(src)
	if err != nil {
		t.Fatalf("expected valid nesting, got error: %v", err)
	}

	mismatched := "clause\n" +
		"  phrase function=Pred\n" +
		" phrase function=Subj\n" // indent 1: neither clause's own level (0) nor the sibling block's level (2)
	if _, err := Parse(mismatched); err == nil {
		t.Error("expected mismatched-sibling-indent error")
	}
}

func TestParse_CommentsAndBlankLinesIgnored(t *testing.T) {
	src := "# a comment\n\nword gloss=light\n\n# trailing\n"
	tmpl, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tmpl.Roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(tmpl.Roots))
	}
}
