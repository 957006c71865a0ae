package compiler

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/huytran/evmsched/internal/ir"
	"github.com/huytran/evmsched/internal/scheduler"
	"github.com/huytran/evmsched/pkg/errors"
)

// Config tunes a Compiler.
type Config struct {
	// Logger receives structured compilation progress events. Defaults
	// to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config using the default slog logger.
func DefaultConfig() Config {
	return Config{Logger: slog.Default()}
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Statistics summarizes one compiled ScheduleRequest, mirroring the kind of
// compile-time counters the teacher's CompilationStatistics reports.
type Statistics struct {
	TotalNodes       int
	ConstantNodes    int
	InputSymbols     int
	OutputStackSize  int
	DoneEffectsCount int
}

// ScheduleRequest is a fully resolved schedule request: the ir.Node/
// ir.EffectfulNode graph a YAML document describes, ready to hand to
// scheduler.Schedule.
type ScheduleRequest struct {
	InputSymbols []string
	OutputStack  []*ir.EffectfulNode
	DoneEffects  []*ir.EffectfulNode
	// Nodes indexes every resolved entry by its document name, so tests
	// and callers can pull out an intermediate node by the name it was
	// declared under rather than only the ones reachable from
	// OutputStack/DoneEffects.
	Nodes map[string]*ir.EffectfulNode
	Stats Statistics
}

// Schedule runs the scheduler against this request's resolved graph.
func (r *ScheduleRequest) Schedule(cfg scheduler.Config) (scheduler.Result, error) {
	return scheduler.Schedule(r.InputSymbols, r.OutputStack, r.DoneEffects, cfg)
}

// Compiler turns schedule-request YAML into ScheduleRequests. It holds no
// state across calls to Compile; the Config/mutex shape mirrors the
// teacher's Compiler even though nothing here needs cross-call caching.
type Compiler struct {
	mutex sync.Mutex
	cfg   Config
}

// NewCompiler builds a Compiler with the default Config.
func NewCompiler() *Compiler {
	return &Compiler{cfg: DefaultConfig()}
}

// NewCompilerWithConfig builds a Compiler with a custom Config.
func NewCompilerWithConfig(cfg Config) *Compiler {
	return &Compiler{cfg: cfg}
}

// LoadRequest is the package entrypoint: parse and resolve a single YAML
// schedule-request document in one call, using default configuration.
func LoadRequest(source string) (*ScheduleRequest, error) {
	return NewCompiler().Compile(source)
}

// Compile parses source as a schedule-request YAML document and resolves it
// into a ScheduleRequest.
func (c *Compiler) Compile(source string) (*ScheduleRequest, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	doc, err := parseDocument([]byte(source))
	if err != nil {
		return nil, err
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}

	req, err := c.resolve(doc)
	if err != nil {
		return nil, err
	}

	c.cfg.logger().Debug("schedule request compiled",
		"input_symbols", len(req.InputSymbols),
		"nodes", req.Stats.TotalNodes,
		"output_stack", req.Stats.OutputStackSize,
		"done_effects", req.Stats.DoneEffectsCount,
	)
	return req, nil
}

// resolver walks a document's nodes map, interning each referenced name
// into an *ir.EffectfulNode exactly once via builder, the way the teacher's
// DagBuilder dedups primitives by a structural key instead of by name.
type resolver struct {
	doc          *document
	builder      *ir.Builder
	inputSymbols map[string]bool
	resolved     map[string]*ir.EffectfulNode
	resolving    map[string]bool
}

func (c *Compiler) resolve(doc *document) (*ScheduleRequest, error) {
	inputSet := make(map[string]bool, len(doc.InputSymbols))
	for _, s := range doc.InputSymbols {
		inputSet[s] = true
	}

	r := &resolver{
		doc:          doc,
		builder:      ir.NewBuilder(),
		inputSymbols: inputSet,
		resolved:     make(map[string]*ir.EffectfulNode, len(doc.Nodes)),
		resolving:    make(map[string]bool),
	}

	// Resolve every declared node up front, in a deterministic order, so
	// a document with unreferenced or mistyped entries fails loudly
	// rather than only when something downstream happens to reach them.
	names := make([]string, 0, len(doc.Nodes))
	for name := range doc.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := r.resolve(name); err != nil {
			return nil, err
		}
	}

	outputStack := make([]*ir.EffectfulNode, 0, len(doc.OutputStack))
	for _, name := range doc.OutputStack {
		enode, err := r.resolve(name)
		if err != nil {
			return nil, err
		}
		outputStack = append(outputStack, enode)
	}

	doneEffects := make([]*ir.EffectfulNode, 0, len(doc.DoneEffects))
	for _, name := range doc.DoneEffects {
		enode, err := r.resolve(name)
		if err != nil {
			return nil, err
		}
		doneEffects = append(doneEffects, enode)
	}
	if err := ir.ValidateNoDuplicateEffects(doneEffects); err != nil {
		return nil, err
	}

	constants := 0
	for _, enode := range r.resolved {
		if enode.IsConstant() {
			constants++
		}
	}

	return &ScheduleRequest{
		InputSymbols: append([]string{}, doc.InputSymbols...),
		OutputStack:  outputStack,
		DoneEffects:  doneEffects,
		Nodes:        r.resolved,
		Stats: Statistics{
			TotalNodes:       len(r.resolved),
			ConstantNodes:    constants,
			InputSymbols:     len(doc.InputSymbols),
			OutputStackSize:  len(outputStack),
			DoneEffectsCount: len(doneEffects),
		},
	}, nil
}

// resolve interns the EffectfulNode named name, recursively resolving its
// operands and post-effects first. name may refer to a `nodes` entry or,
// if undeclared there, a bare input symbol leaf (auto-created on first
// reference: a zero-operand, non-constant node named after the symbol).
func (r *resolver) resolve(name string) (*ir.EffectfulNode, error) {
	if enode, ok := r.resolved[name]; ok {
		return enode, nil
	}

	spec, declared := r.doc.Nodes[name]
	if !declared {
		if !r.inputSymbols[name] {
			return nil, errors.NewInvalidInput(fmt.Sprintf("unknown node reference: %q", name))
		}
		node := r.builder.Node(name)
		enode, err := r.builder.Effectful(node)
		if err != nil {
			return nil, err
		}
		r.resolved[name] = enode
		return enode, nil
	}

	if r.resolving[name] {
		return nil, errors.NewInvalidInput(fmt.Sprintf("cycle detected resolving node %q", name))
	}
	r.resolving[name] = true
	defer delete(r.resolving, name)

	var node *ir.Node
	if spec.Const {
		node = r.builder.Const(spec.Op)
	} else {
		operands := make([]*ir.EffectfulNode, 0, len(spec.Operands))
		for _, opName := range spec.Operands {
			opNode, err := r.resolve(opName)
			if err != nil {
				return nil, err
			}
			operands = append(operands, opNode)
		}
		node = r.builder.Node(spec.Op, operands...)
	}

	postEffects := make([]*ir.EffectfulNode, 0, len(spec.PostEffects))
	for _, peName := range spec.PostEffects {
		pe, err := r.resolve(peName)
		if err != nil {
			return nil, err
		}
		postEffects = append(postEffects, pe)
	}

	enode, err := r.builder.Effectful(node, postEffects...)
	if err != nil {
		return nil, err
	}
	r.resolved[name] = enode
	return enode, nil
}
