package scheduler

import (
	"fmt"
	"strings"

	"github.com/huytran/evmsched/internal/ir"
	"github.com/huytran/evmsched/internal/stack"
	"github.com/huytran/evmsched/pkg/errors"
)

// SearchState is a (Stack, pending-effects) pair: the backward-search
// engine's state space. Two states with the same stack contents
// (including multiplicities and order) and the same remaining effect
// sequence are the same state for search purposes.
type SearchState struct {
	Stack         stack.Stack
	EffectsToUndo []*ir.EffectfulNode
}

// HasDependency reports whether node is still needed somewhere in s: on the
// stack (unless node is constant, which is always freely rematerializable)
// or among the effects still pending undo.
func (s SearchState) HasDependency(node *ir.Node) bool {
	if !node.IsConstant {
		for _, v := range s.Stack.Values() {
			if v.HasDependency(node) {
				return true
			}
		}
	}
	for _, e := range s.EffectsToUndo {
		if e.HasDependency(node) {
			return true
		}
	}
	return false
}

// key returns a string uniquely identifying s by the pointer identities of
// its stack contents and pending effects, in order. Because every Node and
// EffectfulNode is built through an interning ir.Builder, structurally
// equal values always share one pointer, so pointer-identity comparison
// here is exactly the structural equality required between two SearchStates.
func (s SearchState) key() string {
	var sb strings.Builder
	for _, v := range s.Stack.Values() {
		fmt.Fprintf(&sb, "%p|", v)
	}
	sb.WriteByte(';')
	for _, e := range s.EffectsToUndo {
		fmt.Fprintf(&sb, "%p|", e)
	}
	return sb.String()
}

// undoCommon implements the shared tail of Undo-Op and Undo-Effect: push
// the undone node's operands (so operand 0 ends on top), reveal its
// post-effects into the pending-effect list, and report its mnemonic.
func undoCommon(st stack.Stack, effects []*ir.EffectfulNode, enode *ir.EffectfulNode) (SearchState, string) {
	st = st.PushOperands(enode)
	next := make([]*ir.EffectfulNode, len(effects), len(effects)+len(enode.PostEffects))
	copy(next, effects)
	next = append(next, enode.PostEffects...)
	return SearchState{Stack: st, EffectsToUndo: next}, enode.Name()
}

// UndoNode undoes the forward instruction that produced enode: bring it to
// the top (if not already there), pop it, and reveal its operands/effects.
func (s SearchState) UndoNode(enode *ir.EffectfulNode) (SearchState, int, []string, error) {
	afterSwap, swapOp, err := s.Stack.SwapToTop(enode)
	if err != nil {
		return SearchState{}, 0, nil, err
	}
	weight := 0
	var ops []string
	if swapOp != "" {
		ops = append(ops, swapOp)
		weight = 1
	}
	popped, afterPop := afterSwap.Pop()
	if popped != enode {
		return SearchState{}, 0, nil, errors.NewInternal("popped value does not match the node being undone")
	}
	next, name := undoCommon(afterPop, s.EffectsToUndo, enode)
	ops = append(ops, name)
	return next, weight, ops, nil
}

// UndoEffect undoes a pending post-effect: it leaves no stack result, so it
// only needs removing from the pending set before the same push/reveal tail
// as UndoNode.
func (s SearchState) UndoEffect(effect *ir.EffectfulNode) (SearchState, int, []string, error) {
	idx := -1
	for i, e := range s.EffectsToUndo {
		if e == effect {
			idx = i
			break
		}
	}
	if idx < 0 {
		return SearchState{}, 0, nil, errors.NewInternal("effect is not pending undo")
	}
	remaining := make([]*ir.EffectfulNode, 0, len(s.EffectsToUndo)-1)
	remaining = append(remaining, s.EffectsToUndo[:idx]...)
	remaining = append(remaining, s.EffectsToUndo[idx+1:]...)
	next, name := undoCommon(s.Stack, remaining, effect)
	return next, 0, []string{name}, nil
}

// Dedup undoes a dupN that created a redundant copy of enode at the given
// depth (0 means enode is already on top). It swaps the copy to the top (if
// needed), locates the earlier occurrence that justifies the dedup, and
// emits the dupN that would forward-recreate the popped copy.
func (s SearchState) Dedup(enode *ir.EffectfulNode, depth int) (SearchState, int, []string, error) {
	cur := s.Stack
	var ops []string
	weight := 0
	if depth != 0 {
		swapped, op, err := cur.Swap(depth)
		if err != nil {
			return SearchState{}, 0, nil, err
		}
		cur = swapped
		ops = append(ops, op)
		weight = 1
	}

	dedupIndex := cur.IndexOf(enode)
	if dedupIndex < 0 {
		return SearchState{}, 0, nil, errors.NewInternal("dedup target not found on stack")
	}
	if dedupIndex == cur.Len()-1 {
		return SearchState{}, 0, nil, errors.NewInternal("dedup target resolved to the top slot")
	}

	popped, afterPop := cur.Pop()
	if popped != enode {
		return SearchState{}, 0, nil, errors.NewInternal("popped value does not match the dedup target")
	}

	dupDepth := afterPop.Len() - dedupIndex
	if dupDepth < 1 || dupDepth > stack.MaxDepth {
		return SearchState{}, 0, nil, errors.NewInvalidInput(fmt.Sprintf("dup depth %d out of range [1,%d]", dupDepth, stack.MaxDepth))
	}
	ops = append(ops, fmt.Sprintf("dup%d", dupDepth))
	weight++

	return SearchState{Stack: afterPop, EffectsToUndo: s.EffectsToUndo}, weight, ops, nil
}
