package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/huytran/evmsched/internal/ir"
	"github.com/huytran/evmsched/internal/stack"
	"github.com/huytran/evmsched/pkg/errors"
)

// Explored is a search-engine record: a discovered SearchState, its
// back-pointer, and the cumulative weight/ops to reach it. Explored records
// are never removed once created; only Weight/OpsToPrev/PrevKey are updated
// when a cheaper path is found, and indexInBucket tracks its position in
// the weight bucket for O(1) relocation.
type Explored struct {
	State         SearchState
	PrevKey       string
	IsTerminal    bool
	Weight        int
	OpsToPrev     []string
	indexInBucket int
}

// transition is one candidate backward step out of a SearchState, paired
// with the delta weight and forward-mnemonic ops it contributes.
type transition struct {
	state SearchState
	delta int
	ops   []string
}

// Config tunes a single Schedule/Engine run.
type Config struct {
	// OptimumUpperBound, if > 0, lets the engine return as soon as it has
	// found (not necessarily popped) a terminal whose weight is at or
	// below the bound, trading proof of optimality for less search work.
	// 0 means explore to the true optimum.
	OptimumUpperBound int
	// Logger receives structured progress events. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with no search-budget bound and the
// default slog logger.
func DefaultConfig() Config {
	return Config{OptimumUpperBound: 0, Logger: slog.Default()}
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Result is the output of a successful Schedule call.
type Result struct {
	Weight int
	Ops    []string
}

type engine struct {
	cfg Config

	targetInputSymbols []string
	inputSymbolSet     map[string]bool
	inputValueCounts   map[string]int

	explored      map[string]*Explored
	weightBuckets map[int][]*Explored
	bestWeight    int
	remaining     int

	bestTerminal *Explored
}

func newEngine(inputSymbols []string, startOutputStack, startDoneEffects []*ir.EffectfulNode, cfg Config) (*engine, error) {
	inputSymbolSet := make(map[string]bool, len(inputSymbols))
	inputValueCounts := make(map[string]int, len(inputSymbols))
	for _, s := range inputSymbols {
		inputSymbolSet[s] = true
		inputValueCounts[s]++
	}

	eng := &engine{
		cfg:                cfg,
		targetInputSymbols: append([]string{}, inputSymbols...),
		inputSymbolSet:     inputSymbolSet,
		inputValueCounts:   inputValueCounts,
		explored:           make(map[string]*Explored),
		weightBuckets:      make(map[int][]*Explored),
	}

	startState := SearchState{
		Stack:         stack.New(startOutputStack...),
		EffectsToUndo: append([]*ir.EffectfulNode{}, startDoneEffects...),
	}
	startKey := startState.key()

	// The start state itself may already be a permutation of the input
	// symbols (e.g. a pure-reordering request with no effects): run the
	// same §4.F closure the search loop applies to every other generated
	// state, so the boundary swaps aren't silently skipped.
	var ops []string
	isTerminal, added, err := eng.completeForEnd(startState, &ops)
	if err != nil {
		return nil, err
	}

	startExplored := &Explored{
		State:      startState,
		PrevKey:    startKey,
		IsTerminal: isTerminal,
		Weight:     added,
		OpsToPrev:  ops,
	}
	eng.insertNew(startKey, startExplored)
	eng.noteTerminalCandidate(startExplored)

	return eng, nil
}

// run drives the search to completion and reconstructs the instruction
// sequence, or returns an infeasible-schedule error if the state space is
// exhausted first.
func (eng *engine) run() (Result, error) {
	terminal, err := eng.search()
	if err != nil {
		return Result{}, err
	}
	weight, ops := eng.reconstruct(terminal)
	eng.cfg.logger().Debug("schedule complete", "weight", weight, "ops", len(ops))
	return Result{Weight: weight, Ops: ops}, nil
}

func (eng *engine) search() (*Explored, error) {
	for {
		top, err := eng.popBest()
		if err != nil {
			return nil, err
		}
		if top.IsTerminal {
			return top, nil
		}

		for _, t := range eng.nextStates(top.State) {
			ops := append([]string{}, t.ops...)
			isEnd, added, err := eng.completeForEnd(t.state, &ops)
			if err != nil {
				return nil, err
			}
			weight := top.Weight + t.delta + added
			key := t.state.key()

			existing, ok := eng.explored[key]
			if !ok {
				e := &Explored{
					State:      t.state,
					PrevKey:    top.State.key(),
					IsTerminal: isEnd,
					Weight:     weight,
					OpsToPrev:  ops,
				}
				eng.insertNew(key, e)
				eng.noteTerminalCandidate(e)
			} else if weight < existing.Weight {
				existing.PrevKey = top.State.key()
				existing.OpsToPrev = ops
				eng.updateExplored(existing, weight)
				eng.noteTerminalCandidate(existing)
			}
		}

		if eng.cfg.OptimumUpperBound > 0 && eng.bestTerminal != nil && eng.bestTerminal.Weight <= eng.cfg.OptimumUpperBound {
			eng.cfg.logger().Debug("returning early: terminal within optimum upper bound",
				"weight", eng.bestTerminal.Weight, "bound", eng.cfg.OptimumUpperBound)
			return eng.bestTerminal, nil
		}
	}
}

func (eng *engine) noteTerminalCandidate(e *Explored) {
	if !e.IsTerminal {
		return
	}
	if eng.bestTerminal == nil || e.Weight < eng.bestTerminal.Weight {
		eng.bestTerminal = e
	}
}

// nextStates generates every backward transition out of state, mirroring
// the reference implementation's next_states frontier order: dedup and
// undo of the top, undo of every pending effect, undo of every non-top
// stack value, then dedup of every non-top position.
func (eng *engine) nextStates(state SearchState) []transition {
	var out []transition

	if top := state.Stack.Peek(); top != nil {
		if t, ok := eng.undoDup(state, top, 0); ok {
			out = append(out, t)
		}
		if t, ok := eng.undoNode(state, top); ok {
			out = append(out, t)
		}
	}

	for _, effect := range state.EffectsToUndo {
		next, _, ops, err := state.UndoEffect(effect)
		if err != nil {
			continue
		}
		out = append(out, transition{state: next, delta: 0, ops: ops})
	}

	tail := state.Stack.Tail()
	for _, v := range tail {
		if t, ok := eng.undoNode(state, v); ok {
			out = append(out, t)
		}
	}

	for k := 0; k < len(tail); k++ {
		idx := len(tail) - 1 - k
		depth := k + 1
		if t, ok := eng.undoDup(state, tail[idx], depth); ok {
			out = append(out, t)
		}
	}

	return out
}

func (eng *engine) isInputSymbol(enode *ir.EffectfulNode) bool {
	return eng.inputSymbolSet[enode.Name()]
}

func (eng *engine) stillManyOnStack(state SearchState, enode *ir.EffectfulNode) bool {
	return !enode.IsConstant() && state.Stack.Count(enode, 2) > 1
}

func (eng *engine) undoNode(state SearchState, enode *ir.EffectfulNode) (transition, bool) {
	if eng.isInputSymbol(enode) {
		return transition{}, false
	}
	if eng.stillManyOnStack(state, enode) {
		return transition{}, false
	}
	if state.HasDependency(enode.Node) {
		return transition{}, false
	}
	next, weight, ops, err := state.UndoNode(enode)
	if err != nil {
		return transition{}, false
	}
	return transition{state: next, delta: weight, ops: ops}, true
}

func (eng *engine) undoDup(state SearchState, enode *ir.EffectfulNode, depth int) (transition, bool) {
	if enode.IsConstant() {
		return transition{}, false
	}
	count := state.Stack.Count(enode, 0)
	if count == 1 {
		return transition{}, false
	}
	if eng.inputValueCounts[enode.Name()] >= count {
		return transition{}, false
	}
	if state.HasDependency(enode.Node) {
		return transition{}, false
	}
	next, weight, ops, err := state.Dedup(enode, depth)
	if err != nil {
		return transition{}, false
	}
	return transition{state: next, delta: weight, ops: ops}, true
}

// isEnd reports whether state's stack is (as a multiset) exactly the input
// symbols and no effects remain pending.
func (eng *engine) isEnd(state SearchState) bool {
	if len(state.EffectsToUndo) > 0 {
		return false
	}
	if state.Stack.Len() != len(eng.targetInputSymbols) {
		return false
	}
	counts := make(map[string]int, state.Stack.Len())
	for _, n := range state.Stack.Names() {
		counts[n]++
	}
	if len(counts) != len(eng.inputValueCounts) {
		return false
	}
	for name, c := range eng.inputValueCounts {
		if counts[name] != c {
			return false
		}
	}
	return true
}

// completeForEnd closes a terminal state by permuting it to exactly match
// the ordered input-symbol sequence, appending the resulting swaps to ops.
// The swaps are appended last-first, because ops are stored in backward
// order and reconstruct reverses them into forward order.
func (eng *engine) completeForEnd(state SearchState, ops *[]string) (bool, int, error) {
	if !eng.isEnd(state) {
		return false, 0, nil
	}

	names := state.Stack.Names()
	srcRev := reverseStrings(eng.targetInputSymbols)
	dstRev := reverseStrings(names)
	swaps, err := stack.GetSwaps(srcRev, dstRev)
	if err != nil {
		return false, 0, err
	}
	weight := 0
	for i := len(swaps) - 1; i >= 0; i-- {
		*ops = append(*ops, fmt.Sprintf("swap%d", swaps[i]))
		weight++
	}
	return true, weight, nil
}

func reverseStrings(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// reconstruct walks back-pointers from terminal to the self-pointing start
// state, concatenating each step's ops_to_prev reversed, reproducing the
// reference implementation's put_together_solution without an additional
// global reverse.
func (eng *engine) reconstruct(terminal *Explored) (int, []string) {
	var ops []string
	appendReversed(&ops, terminal.OpsToPrev)

	cur := terminal
	curKey := cur.State.key()
	for {
		prevKey := cur.PrevKey
		if prevKey == curKey {
			break
		}
		prev := eng.explored[prevKey]
		appendReversed(&ops, prev.OpsToPrev)
		cur = prev
		curKey = prevKey
	}

	return terminal.Weight, ops
}

func appendReversed(dst *[]string, ops []string) {
	for i := len(ops) - 1; i >= 0; i-- {
		*dst = append(*dst, ops[i])
	}
}

//////////////////////
// bucket priority queue
//////////////////////

func (eng *engine) popBest() (*Explored, error) {
	if eng.remaining == 0 {
		return nil, errors.NewInfeasible("search exhausted every reachable state without finding a terminal schedule")
	}
	for len(eng.weightBuckets[eng.bestWeight]) == 0 {
		eng.bestWeight++
	}
	bucket := eng.weightBuckets[eng.bestWeight]
	top := bucket[len(bucket)-1]
	eng.weightBuckets[eng.bestWeight] = bucket[:len(bucket)-1]
	eng.remaining--
	return top, nil
}

func (eng *engine) insertNew(key string, e *Explored) {
	eng.explored[key] = e
	eng.addToBucket(e)
	eng.remaining++
}

func (eng *engine) updateExplored(e *Explored, newWeight int) {
	bucket := eng.weightBuckets[e.Weight]
	lastIdx := len(bucket) - 1
	idx := e.indexInBucket
	if idx < lastIdx {
		bucket[lastIdx], bucket[idx] = bucket[idx], bucket[lastIdx]
		bucket[idx].indexInBucket = idx
	}
	eng.weightBuckets[e.Weight] = bucket[:lastIdx]
	e.Weight = newWeight
	eng.addToBucket(e)
}

func (eng *engine) addToBucket(e *Explored) {
	bucket := eng.weightBuckets[e.Weight]
	e.indexInBucket = len(bucket)
	eng.weightBuckets[e.Weight] = append(bucket, e)
	if e.Weight < eng.bestWeight {
		eng.bestWeight = e.Weight
	}
}

// Schedule finds the minimum-weight instruction sequence that executes
// every effect in startDoneEffects exactly once (respecting post-effect
// order), leaves startOutputStack on the stack, and starts from
// inputSymbols.
func Schedule(inputSymbols []string, startOutputStack, startDoneEffects []*ir.EffectfulNode, cfg Config) (Result, error) {
	if err := ir.ValidateNoDuplicateEffects(startDoneEffects); err != nil {
		return Result{}, err
	}
	eng, err := newEngine(inputSymbols, startOutputStack, startDoneEffects, cfg)
	if err != nil {
		return Result{}, err
	}
	return eng.run()
}
