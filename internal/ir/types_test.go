package ir

import "testing"

func TestBuilderInternsEqualNodes(t *testing.T) {
	b := NewBuilder()

	n1 := b.Const("frm")
	n2 := b.Const("frm")
	if n1 != n2 {
		t.Fatalf("Const(\"frm\") called twice returned distinct pointers")
	}

	other := b.Const("to")
	if n1 == other {
		t.Fatalf("Const with different names returned the same pointer")
	}
}

func TestBuilderInternsByOperands(t *testing.T) {
	b := NewBuilder()

	frm, err := b.Effectful(b.Const("frm"))
	if err != nil {
		t.Fatalf("Effectful(frm): %v", err)
	}
	to, err := b.Effectful(b.Const("to"))
	if err != nil {
		t.Fatalf("Effectful(to): %v", err)
	}

	add1 := b.Node("add", frm, to)
	add2 := b.Node("add", frm, to)
	if add1 != add2 {
		t.Fatalf("Node(\"add\", frm, to) called twice returned distinct pointers")
	}

	swapped := b.Node("add", to, frm)
	if add1 == swapped {
		t.Fatalf("operand order must be significant for interning")
	}
}

func TestNodeDependenciesAreTransitive(t *testing.T) {
	b := NewBuilder()

	frm := b.Const("frm")
	frmE, err := b.Effectful(frm)
	if err != nil {
		t.Fatalf("Effectful(frm): %v", err)
	}
	loaded := b.Node("sload", frmE)
	loadedE, err := b.Effectful(loaded)
	if err != nil {
		t.Fatalf("Effectful(loaded): %v", err)
	}
	doubled := b.Node("add", loadedE, loadedE)

	if !doubled.HasDependency(loaded) {
		t.Fatalf("doubled should depend on loaded")
	}
	if !doubled.HasDependency(frm) {
		t.Fatalf("doubled should transitively depend on frm")
	}
}

func TestEffectfulNodeDependenciesIncludePostEffects(t *testing.T) {
	b := NewBuilder()

	amt := b.Const("amt")
	amtE, err := b.Effectful(amt)
	if err != nil {
		t.Fatalf("Effectful(amt): %v", err)
	}
	store := b.Node("sstore", amtE)
	storeE, err := b.Effectful(store)
	if err != nil {
		t.Fatalf("Effectful(store): %v", err)
	}

	gate := b.Node("gate")
	gated, err := b.Effectful(gate, storeE)
	if err != nil {
		t.Fatalf("Effectful(gate, storeE): %v", err)
	}

	if !gated.HasDependency(store) {
		t.Fatalf("gated should depend on store through its post-effect")
	}
	if !gated.HasDependency(amt) {
		t.Fatalf("gated should transitively depend on amt through the post-effect's operand")
	}
}

func TestEffectfulRejectsDuplicatePostEffectReference(t *testing.T) {
	b := NewBuilder()

	e, err := b.Effectful(b.Const("x"))
	if err != nil {
		t.Fatalf("Effectful(x): %v", err)
	}

	if _, err := b.Effectful(b.Node("op"), e, e); err == nil {
		t.Fatalf("expected an error for a duplicate post-effect reference")
	}
}

func TestValidateNoDuplicatesDetectsRepeatedNode(t *testing.T) {
	b := NewBuilder()
	n := b.Const("x")

	if _, err := ValidateNoDuplicates([]*Node{n, b.Const("y"), n}); err == nil {
		t.Fatalf("expected an error for a duplicate node reference")
	}
	if _, err := ValidateNoDuplicates([]*Node{n, b.Const("y")}); err != nil {
		t.Fatalf("unexpected error for distinct nodes: %v", err)
	}
}

func TestHashIsStableAcrossCalls(t *testing.T) {
	b1 := NewBuilder()
	b2 := NewBuilder()

	n1 := b1.Const("frm")
	n2 := b2.Const("frm")

	if n1.Hash() != n2.Hash() {
		t.Fatalf("structurally identical nodes built by different Builders must hash equal")
	}
}
