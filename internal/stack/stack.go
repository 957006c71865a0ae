// Package stack implements the immutable evaluation-stack ADT the scheduler
// searches over, plus the greedy swap-only permutation solver used to close
// a search path at the goal stack and at the input boundary.
package stack

import (
	"fmt"

	"github.com/huytran/evmsched/internal/ir"
	"github.com/huytran/evmsched/pkg/errors"
)

// MaxDepth is the largest depth a swapN/dupN instruction can address.
const MaxDepth = 16

// Stack is an immutable, bottom-up ordered sequence of effectful node
// references: values[0] is the bottom of the machine stack, values[len-1]
// is the top. Every mutating method returns a new Stack; the receiver is
// never modified.
type Stack struct {
	values []*ir.EffectfulNode
}

// New builds a Stack with values in bottom-up order (values[len-1] is top).
func New(values ...*ir.EffectfulNode) Stack {
	cp := make([]*ir.EffectfulNode, len(values))
	copy(cp, values)
	return Stack{values: cp}
}

// Len reports the number of elements on the stack.
func (s Stack) Len() int { return len(s.values) }

// Peek returns the top element, or nil if the stack is empty.
func (s Stack) Peek() *ir.EffectfulNode {
	if len(s.values) == 0 {
		return nil
	}
	return s.values[len(s.values)-1]
}

// Tail returns every element except the top, bottom-up, deepest first.
func (s Stack) Tail() []*ir.EffectfulNode {
	if len(s.values) == 0 {
		return nil
	}
	tail := make([]*ir.EffectfulNode, len(s.values)-1)
	copy(tail, s.values[:len(s.values)-1])
	return tail
}

// Get returns the element at depth (0 = top).
func (s Stack) Get(depth int) *ir.EffectfulNode {
	return s.values[len(s.values)-1-depth]
}

// Count returns the number of positions holding enode, stopping early once
// max positions have been found (max <= 0 means unbounded).
func (s Stack) Count(enode *ir.EffectfulNode, max int) int {
	n := 0
	for _, v := range s.values {
		if v == enode {
			n++
			if max > 0 && n >= max {
				return n
			}
		}
	}
	return n
}

// Swap returns a new Stack with the top and the element at depth exchanged.
// depth must be in [1, Len()-1].
func (s Stack) Swap(depth int) (Stack, string, error) {
	if depth < 1 || depth >= len(s.values) {
		return Stack{}, "", errors.NewInvalidInput(fmt.Sprintf("swap depth %d out of range [1,%d)", depth, len(s.values)))
	}
	if depth > MaxDepth {
		return Stack{}, "", errors.NewInvalidInput(fmt.Sprintf("swap depth %d exceeds max addressable depth %d", depth, MaxDepth))
	}
	values := make([]*ir.EffectfulNode, len(s.values))
	copy(values, s.values)
	top := len(values) - 1
	other := top - depth
	values[top], values[other] = values[other], values[top]
	return Stack{values: values}, fmt.Sprintf("swap%d", depth), nil
}

// Push returns a new Stack with value pushed on top.
func (s Stack) Push(value *ir.EffectfulNode) Stack {
	values := make([]*ir.EffectfulNode, len(s.values)+1)
	copy(values, s.values)
	values[len(values)-1] = value
	return Stack{values: values}
}

// Pop returns the top element and a new Stack without it.
func (s Stack) Pop() (*ir.EffectfulNode, Stack) {
	top := s.values[len(s.values)-1]
	values := make([]*ir.EffectfulNode, len(s.values)-1)
	copy(values, s.values[:len(s.values)-1])
	return top, Stack{values: values}
}

// PushOperands pushes enode.Node.Operands in reverse order, so operand 0
// (the deepest-consumed, topmost-at-consumption operand) ends up on top.
func (s Stack) PushOperands(enode *ir.EffectfulNode) Stack {
	result := s
	operands := enode.Node.Operands
	for i := len(operands) - 1; i >= 0; i-- {
		result = result.Push(operands[i])
	}
	return result
}

// SwapToTop returns (self, "", nil) if value is already on top; otherwise
// it locates the bottom-most matching occurrence (scanning bottom-up) and
// emits the swap that brings it to the top. When value occurs more than
// once, which occurrence is chosen affects the exact resulting stack
// arrangement even though every occurrence is value-equal, so scan order
// here is load-bearing, not arbitrary.
func (s Stack) SwapToTop(value *ir.EffectfulNode) (Stack, string, error) {
	if s.Peek() == value {
		return s, "", nil
	}
	for i, v := range s.values {
		if v == value {
			depth := len(s.values) - 1 - i
			return s.Swap(depth)
		}
	}
	return Stack{}, "", errors.NewInternal(fmt.Sprintf("value %s not found on stack", value))
}

// Values returns the full bottom-up contents of the stack.
func (s Stack) Values() []*ir.EffectfulNode {
	cp := make([]*ir.EffectfulNode, len(s.values))
	copy(cp, s.values)
	return cp
}

// IndexOf returns the bottom-relative index of the first (bottom-most)
// occurrence of value, or -1 if value is not present.
func (s Stack) IndexOf(value *ir.EffectfulNode) int {
	for i, v := range s.values {
		if v == value {
			return i
		}
	}
	return -1
}

// Names returns the bottom-up sequence of element names, used by the goal
// recognizer and the permutation solver to compare against a target
// multiset.
func (s Stack) Names() []string {
	names := make([]string, len(s.values))
	for i, v := range s.values {
		names[i] = v.Name()
	}
	return names
}

func (s Stack) String() string {
	return fmt.Sprintf("%v", s.Names())
}
