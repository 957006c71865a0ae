package scheduler

import (
	"testing"

	"github.com/huytran/evmsched/internal/ir"
	"github.com/huytran/evmsched/internal/stack"
)

func mustEffectful(t *testing.T, b *ir.Builder, node *ir.Node, postEffects ...*ir.EffectfulNode) *ir.EffectfulNode {
	t.Helper()
	e, err := b.Effectful(node, postEffects...)
	if err != nil {
		t.Fatalf("Effectful(%s): %v", node.Name, err)
	}
	return e
}

func TestUndoNodePushesOperandsAndRevealsPostEffects(t *testing.T) {
	b := ir.NewBuilder()
	x := mustEffectful(t, b, b.Const("x"))
	y := mustEffectful(t, b, b.Const("y"))
	storeNode := b.Node("store")
	store := mustEffectful(t, b, storeNode)
	addNode := b.Node("add", x, y)
	add := mustEffectful(t, b, addNode, store)

	state := SearchState{Stack: stack.New(add)}
	next, weight, ops, err := state.UndoNode(add)
	if err != nil {
		t.Fatalf("UndoNode: %v", err)
	}
	if weight != 0 {
		t.Fatalf("expected zero weight undoing an already-top node, got %d", weight)
	}
	if len(ops) != 1 || ops[0] != "add" {
		t.Fatalf("unexpected ops: %v", ops)
	}
	if next.Stack.Len() != 2 || next.Stack.Peek() != x {
		t.Fatalf("expected operands pushed with operand0 on top, got %v", next.Stack.Names())
	}
	if len(next.EffectsToUndo) != 1 || next.EffectsToUndo[0] != store {
		t.Fatalf("expected add's post-effect revealed into effects_to_undo")
	}
}

func TestUndoNodeSwapsNonTopValueUp(t *testing.T) {
	b := ir.NewBuilder()
	a := mustEffectful(t, b, b.Const("a"))
	x := mustEffectful(t, b, b.Const("x"))

	state := SearchState{Stack: stack.New(a, x)}
	next, weight, ops, err := state.UndoNode(a)
	if err != nil {
		t.Fatalf("UndoNode: %v", err)
	}
	if weight != 1 {
		t.Fatalf("expected weight 1 for a swap-then-undo, got %d", weight)
	}
	if len(ops) != 2 || ops[0] != "swap1" || ops[1] != "a" {
		t.Fatalf("unexpected ops: %v", ops)
	}
	if next.Stack.Len() != 1 || next.Stack.Peek() != x {
		t.Fatalf("expected x left alone on the stack, got %v", next.Stack.Names())
	}
}

func TestUndoEffectRemovesFromPendingSet(t *testing.T) {
	b := ir.NewBuilder()
	effect := mustEffectful(t, b, b.Node("sstore"))
	other := mustEffectful(t, b, b.Const("x"))

	state := SearchState{EffectsToUndo: []*ir.EffectfulNode{effect, other}}
	next, weight, ops, err := state.UndoEffect(effect)
	if err != nil {
		t.Fatalf("UndoEffect: %v", err)
	}
	if weight != 0 {
		t.Fatalf("expected zero weight, got %d", weight)
	}
	if len(ops) != 1 || ops[0] != "sstore" {
		t.Fatalf("unexpected ops: %v", ops)
	}
	if len(next.EffectsToUndo) != 1 || next.EffectsToUndo[0] != other {
		t.Fatalf("expected only the untouched effect to remain pending")
	}
}

func TestDedupAtTopNeedsNoSwap(t *testing.T) {
	b := ir.NewBuilder()
	x := mustEffectful(t, b, b.Node("x"))
	y := mustEffectful(t, b, b.Const("y"))

	state := SearchState{Stack: stack.New(x, y, x)}
	next, weight, ops, err := state.Dedup(x, 0)
	if err != nil {
		t.Fatalf("Dedup: %v", err)
	}
	if weight != 1 {
		t.Fatalf("expected weight 1 for the emitted dup, got %d", weight)
	}
	if len(ops) != 1 || ops[0] != "dup2" {
		t.Fatalf("unexpected ops: %v", ops)
	}
	if next.Stack.Len() != 2 {
		t.Fatalf("expected the duplicate popped, got %v", next.Stack.Names())
	}
}

func TestDedupAtDepthSwapsFirst(t *testing.T) {
	b := ir.NewBuilder()
	x := mustEffectful(t, b, b.Node("x"))
	y := mustEffectful(t, b, b.Const("y"))

	state := SearchState{Stack: stack.New(x, x, y)}
	next, weight, ops, err := state.Dedup(x, 1)
	if err != nil {
		t.Fatalf("Dedup: %v", err)
	}
	if weight != 2 {
		t.Fatalf("expected weight 2 (one swap, one dup), got %d", weight)
	}
	if len(ops) != 2 || ops[0] != "swap1" || ops[1] != "dup2" {
		t.Fatalf("unexpected ops: %v", ops)
	}
	if next.Stack.Len() != 2 {
		t.Fatalf("expected the duplicate popped, got %v", next.Stack.Names())
	}
}

func TestHasDependencyIgnoresConstantsOnStack(t *testing.T) {
	b := ir.NewBuilder()
	constNode := b.Const("c")
	constE := mustEffectful(t, b, constNode)

	state := SearchState{Stack: stack.New(constE)}
	if state.HasDependency(constNode) {
		t.Fatalf("a constant node's stack presence must not count as a dependency")
	}
}

func TestHasDependencyFromPendingEffects(t *testing.T) {
	b := ir.NewBuilder()
	node := b.Node("gate")
	nodeE := mustEffectful(t, b, node)
	effectNode := b.Node("sstore", nodeE)
	effect := mustEffectful(t, b, effectNode)

	state := SearchState{EffectsToUndo: []*ir.EffectfulNode{effect}}
	if !state.HasDependency(node) {
		t.Fatalf("expected dependency through a pending effect's operand")
	}
}
