// Package ir implements the value-flow DAG model the scheduler searches
// over: immutable, reference-shared Node and EffectfulNode vertices with a
// precomputed structural hash, plus a Builder that interns them so two
// structurally identical nodes collapse onto one pointer.
package ir

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/huytran/evmsched/pkg/errors"
)

// Node is a value-DAG vertex: an operation name plus the effectful operands
// it consumes. Operand 0 is the deepest operand consumed — in forward
// execution it is pushed last, so it ends up on top of the stack where the
// operation can pop it first.
//
// Dependencies is the transitive closure of every Node reachable through
// Operands (and, through them, through post-effects): it answers "is this
// node still needed somewhere other than here" without re-walking the DAG.
type Node struct {
	Name         string
	Operands     []*EffectfulNode
	IsConstant   bool
	Dependencies map[*Node]struct{}
	hash         uint64
}

// Hash returns the precomputed structural hash of (Name, Operands,
// IsConstant). Two Nodes built through the same Builder with equal hashes
// are the same pointer.
func (n *Node) Hash() uint64 { return n.hash }

// HasDependency reports whether d is reachable from n through operands.
func (n *Node) HasDependency(d *Node) bool {
	_, ok := n.Dependencies[d]
	return ok
}

func (n *Node) String() string {
	return fmt.Sprintf("%s/%d", n.Name, n.hash)
}

// EffectfulNode wraps a Node with the post-effects that must execute
// strictly before it in forward order. The post-effect graph is a separate
// ordering DAG from the operand graph — it need not mirror it.
type EffectfulNode struct {
	Node         *Node
	PostEffects  []*EffectfulNode
	Dependencies map[*Node]struct{}
	hash         uint64
}

// Hash returns the precomputed structural hash of (Node, PostEffects).
func (e *EffectfulNode) Hash() uint64 { return e.hash }

// Name is a convenience accessor for Node.Name.
func (e *EffectfulNode) Name() string { return e.Node.Name }

// IsConstant is a convenience accessor for Node.IsConstant. Constant nodes
// may be rematerialized freely: extra copies on the stack never block
// deduplication or undo of other copies.
func (e *EffectfulNode) IsConstant() bool { return e.Node.IsConstant }

// HasDependency reports whether d is reachable from e through operands or
// post-effects.
func (e *EffectfulNode) HasDependency(d *Node) bool {
	_, ok := e.Dependencies[d]
	return ok
}

func (e *EffectfulNode) String() string {
	return fmt.Sprintf("%s/%d", e.Name(), e.hash)
}

// Builder constructs Node/EffectfulNode graphs with structural interning:
// calling Node (or Const, or Effectful) twice with equal arguments returns
// the same pointer both times. This is what lets the scheduler use pointer
// identity as Node/EffectfulNode equality everywhere downstream.
type Builder struct {
	nodes      map[uint64][]*Node
	effectfuls map[uint64][]*EffectfulNode
}

// NewBuilder creates an empty, ready-to-use Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:      make(map[uint64][]*Node),
		effectfuls: make(map[uint64][]*EffectfulNode),
	}
}

// Node interns a value node named name consuming operands in order.
func (b *Builder) Node(name string, operands ...*EffectfulNode) *Node {
	return b.internNode(name, operands, false)
}

// Const interns a shorthand constant node: a leaf that may be
// rematerialized by re-executing its (no-operand) operation.
func (b *Builder) Const(name string) *Node {
	return b.internNode(name, nil, true)
}

func (b *Builder) internNode(name string, operands []*EffectfulNode, isConstant bool) *Node {
	h := hashNode(name, operands, isConstant)
	for _, candidate := range b.nodes[h] {
		if nodeEqual(candidate, name, operands, isConstant) {
			return candidate
		}
	}

	deps := make(map[*Node]struct{}, len(operands))
	for _, op := range operands {
		deps[op.Node] = struct{}{}
		for d := range op.Dependencies {
			deps[d] = struct{}{}
		}
	}

	node := &Node{
		Name:         name,
		Operands:     operands,
		IsConstant:   isConstant,
		Dependencies: deps,
		hash:         h,
	}
	b.nodes[h] = append(b.nodes[h], node)
	return node
}

// Effectful interns an EffectfulNode wrapping node with the given
// post-effects. It returns an invalid-input error if the same post-effect
// reference is supplied twice — a programmer error, not a search-time
// condition.
func (b *Builder) Effectful(node *Node, postEffects ...*EffectfulNode) (*EffectfulNode, error) {
	if err := validateNoDuplicateRefs(postEffects); err != nil {
		return nil, err
	}

	h := hashEffectful(node, postEffects)
	for _, candidate := range b.effectfuls[h] {
		if effectfulEqual(candidate, node, postEffects) {
			return candidate, nil
		}
	}

	deps := make(map[*Node]struct{}, len(node.Dependencies))
	for d := range node.Dependencies {
		deps[d] = struct{}{}
	}
	for _, effect := range postEffects {
		deps[effect.Node] = struct{}{}
		for d := range effect.Dependencies {
			deps[d] = struct{}{}
		}
	}

	enode := &EffectfulNode{
		Node:         node,
		PostEffects:  postEffects,
		Dependencies: deps,
		hash:         h,
	}
	b.effectfuls[h] = append(b.effectfuls[h], enode)
	return enode, nil
}

// ValidateNoDuplicateEffects checks that no EffectfulNode pointer appears
// twice in effects, the same guard Builder.Effectful applies to a single
// node's post-effects, exposed for callers validating an externally
// assembled done-effects list before scheduling.
func ValidateNoDuplicateEffects(effects []*EffectfulNode) error {
	return validateNoDuplicateRefs(effects)
}

func validateNoDuplicateRefs(effects []*EffectfulNode) error {
	seen := make(map[*EffectfulNode]struct{}, len(effects))
	for _, e := range effects {
		if _, exists := seen[e]; exists {
			return errors.NewInvalidInput(fmt.Sprintf("duplicate post-effect reference passed to Effectful: %s", e.Name()))
		}
		seen[e] = struct{}{}
	}
	return nil
}

// ValidateNoDuplicates checks that no Node pointer appears twice in nodes,
// the same guard applied when a caller assembles an operand or effect list
// by hand.
func ValidateNoDuplicates(nodes []*Node) (map[*Node]struct{}, error) {
	seen := make(map[*Node]struct{}, len(nodes))
	for _, n := range nodes {
		if _, exists := seen[n]; exists {
			return nil, errors.NewInvalidInput(fmt.Sprintf("found duplicate node: %s", n.Name))
		}
		seen[n] = struct{}{}
	}
	return seen, nil
}

func nodeEqual(n *Node, name string, operands []*EffectfulNode, isConstant bool) bool {
	if n.Name != name || n.IsConstant != isConstant || len(n.Operands) != len(operands) {
		return false
	}
	for i, op := range operands {
		if n.Operands[i] != op {
			return false
		}
	}
	return true
}

func effectfulEqual(e *EffectfulNode, node *Node, postEffects []*EffectfulNode) bool {
	if e.Node != node || len(e.PostEffects) != len(postEffects) {
		return false
	}
	for i, eff := range postEffects {
		if e.PostEffects[i] != eff {
			return false
		}
	}
	return true
}

func hashNode(name string, operands []*EffectfulNode, isConstant bool) uint64 {
	h := xxhash.New()
	h.Write([]byte(name))
	if isConstant {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	var buf [8]byte
	for _, op := range operands {
		binary.LittleEndian.PutUint64(buf[:], op.Hash())
		h.Write(buf[:])
	}
	return h.Sum64()
}

func hashEffectful(node *Node, postEffects []*EffectfulNode) uint64 {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], node.Hash())
	h.Write(buf[:])
	for _, effect := range postEffects {
		binary.LittleEndian.PutUint64(buf[:], effect.Hash())
		h.Write(buf[:])
	}
	return h.Sum64()
}
