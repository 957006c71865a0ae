package compiler

import "testing"

func TestParseDocumentBasic(t *testing.T) {
	src := `
input_symbols: [frm, to, wad]
nodes:
  from_bal:
    op: sload
    operands: [frm]
output_stack: [from_bal]
done_effects: []
`
	doc, err := parseDocument([]byte(src))
	if err != nil {
		t.Fatalf("parseDocument: %v", err)
	}
	if !equalStrSlice(doc.InputSymbols, []string{"frm", "to", "wad"}) {
		t.Fatalf("unexpected input_symbols: %v", doc.InputSymbols)
	}
	spec, ok := doc.Nodes["from_bal"]
	if !ok {
		t.Fatalf("expected node from_bal to be present")
	}
	if spec.Op != "sload" || !equalStrSlice(spec.Operands, []string{"frm"}) {
		t.Fatalf("unexpected spec: %+v", spec)
	}
}

func TestParseDocumentRejectsMalformedYAML(t *testing.T) {
	if _, err := parseDocument([]byte("input_symbols: [unterminated")); err == nil {
		t.Fatalf("expected a YAML parse error")
	}
}

func TestDocumentValidateRejectsEmpty(t *testing.T) {
	doc := &document{}
	if err := doc.validate(); err == nil {
		t.Fatalf("expected an error for an empty document")
	}
}

func TestDocumentValidateRejectsConstWithOperands(t *testing.T) {
	doc := &document{
		InputSymbols: []string{"x"},
		Nodes: map[string]nodeSpec{
			"bad": {Op: "lit", Const: true, Operands: []string{"x"}},
		},
	}
	if err := doc.validate(); err == nil {
		t.Fatalf("expected an error for a const node with operands")
	}
}

func TestDocumentValidateRejectsShadowedInputSymbol(t *testing.T) {
	doc := &document{
		InputSymbols: []string{"x"},
		Nodes: map[string]nodeSpec{
			"x": {Op: "lit"},
		},
	}
	if err := doc.validate(); err == nil {
		t.Fatalf("expected an error when a node name shadows an input symbol")
	}
}

func TestDocumentValidateRejectsEmptyOp(t *testing.T) {
	doc := &document{
		InputSymbols: []string{"x"},
		Nodes: map[string]nodeSpec{
			"n": {Op: ""},
		},
	}
	if err := doc.validate(); err == nil {
		t.Fatalf("expected an error for an empty op")
	}
}

func equalStrSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
