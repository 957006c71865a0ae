package stack

import "github.com/huytran/evmsched/pkg/errors"

// GetSwaps computes the greedy swapN-only sequence of depths that
// transforms src into dst, where both are top-first (index 0 = current
// top) permutations of the same multiset. Applying Swap(d) successively
// for each returned depth to src yields dst.
//
// Callers holding bottom-up sequences (as the Stack type stores them) must
// reverse them before calling GetSwaps and reverse the result back.
func GetSwaps[T comparable](src, dst []T) ([]int, error) {
	if len(src) != len(dst) {
		return nil, errors.NewInvalidInput("GetSwaps: src and dst must have equal length")
	}

	work := make([]T, len(src))
	copy(work, src)

	move := make(map[int]T)
	dest := make(map[T][]int)
	for i := range work {
		if work[i] != dst[i] {
			move[i] = work[i]
			dest[dst[i]] = append(dest[dst[i]], i)
		}
	}

	total := len(move)
	var swaps []int
	swapTo := func(i int) {
		if i > 0 {
			swaps = append(swaps, i)
			work[0], work[i] = work[i], work[0]
		}
	}

	for n := 0; n < total; n++ {
		top := work[0]
		if queue := dest[top]; len(queue) > 0 {
			to := queue[len(queue)-1]
			dest[top] = queue[:len(queue)-1]
			swapTo(to)
			delete(move, to)
			continue
		}

		from, val := firstPending(move)
		swapTo(from)
		queue := dest[val]
		to := queue[len(queue)-1]
		dest[val] = queue[:len(queue)-1]
		swapTo(to)
		delete(move, to)
	}

	return swaps, nil
}

// firstPending returns the (index, value) pair for the lowest surviving
// index in move. move is populated in increasing-index order and entries
// are only ever deleted, never reinserted, so the lowest remaining index is
// exactly the pair a Python dict's insertion-ordered `next(iter(move))`
// would yield — this keeps GetSwaps deterministic across runs instead of
// depending on Go's randomized map iteration order.
func firstPending[T comparable](move map[int]T) (int, T) {
	best := -1
	var bestVal T
	for k, v := range move {
		if best < 0 || k < best {
			best = k
			bestVal = v
		}
	}
	if best < 0 {
		panic("firstPending called with empty map")
	}
	return best, bestVal
}
