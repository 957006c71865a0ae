package scheduler

import (
	"strconv"
	"strings"

	"github.com/huytran/evmsched/pkg/errors"
)

// ExecutedOp records one plain-op instruction executed by Simulate, along
// with the names of the stack entries it consumed (operand 0 first, the
// order they were popped in), so tests can tell apart calls to the same
// mnemonic (e.g. two "sstore"s) by what they actually operated on.
type ExecutedOp struct {
	Name     string
	Operands []string
}

// Simulate forward-executes ops against an initial stack seeded from
// inputSymbols (bottom-up) and returns the resulting stack plus the list of
// plain (non-shuffle) instructions executed, each with the operand names it
// consumed. arity maps a plain op's name to how many stack entries it pops.
//
// This is test-support tooling, not part of the scheduling core: it exists
// to validate that a returned schedule, run forward, produces the required
// stack and effect order without needing a real VM.
func Simulate(inputSymbols []string, arity map[string]int, ops []string) (finalStack []string, executed []ExecutedOp, err error) {
	st := append([]string{}, inputSymbols...)

	for _, op := range ops {
		switch {
		case strings.HasPrefix(op, "swap"):
			d, convErr := strconv.Atoi(op[len("swap"):])
			if convErr != nil {
				return nil, nil, errors.NewInvalidInput("malformed swap mnemonic: " + op)
			}
			if d < 1 || d >= len(st) {
				return nil, nil, errors.NewInternal("swap depth out of range simulating: " + op)
			}
			top := len(st) - 1
			st[top], st[top-d] = st[top-d], st[top]

		case strings.HasPrefix(op, "dup"):
			d, convErr := strconv.Atoi(op[len("dup"):])
			if convErr != nil {
				return nil, nil, errors.NewInvalidInput("malformed dup mnemonic: " + op)
			}
			if d < 1 || d > len(st) {
				return nil, nil, errors.NewInternal("dup depth out of range simulating: " + op)
			}
			st = append(st, st[len(st)-d])

		default:
			n, ok := arity[op]
			if !ok {
				return nil, nil, errors.NewInvalidInput("unknown op in simulation: " + op)
			}
			if n > len(st) {
				return nil, nil, errors.NewInternal("stack underflow simulating: " + op)
			}
			consumed := make([]string, n)
			for i := 0; i < n; i++ {
				consumed[i] = st[len(st)-1-i]
			}
			st = st[:len(st)-n]
			st = append(st, op)
			executed = append(executed, ExecutedOp{Name: op, Operands: consumed})
		}
	}

	return st, executed, nil
}
