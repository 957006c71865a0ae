package stack

import "testing"

func applySwaps(src []int, swaps []int) []int {
	work := make([]int, len(src))
	copy(work, src)
	for _, d := range swaps {
		work[0], work[d] = work[d], work[0]
	}
	return work
}

func TestGetSwapsTransformsSrcIntoDst(t *testing.T) {
	cases := [][2][]int{
		{{1, 2, 3, 4}, {4, 3, 2, 1}},
		{{1, 2, 3}, {3, 1, 2}},
		{{5, 1, 2, 3, 4}, {1, 2, 3, 4, 5}},
		{{1, 1, 2, 2}, {2, 1, 2, 1}},
	}

	for _, c := range cases {
		src, dst := c[0], c[1]
		swaps, err := GetSwaps(src, dst)
		if err != nil {
			t.Fatalf("GetSwaps(%v, %v): %v", src, dst, err)
		}
		got := applySwaps(src, swaps)
		if !intsEqual(got, dst) {
			t.Fatalf("GetSwaps(%v, %v) = %v, applying gives %v, want %v", src, dst, swaps, got, dst)
		}
	}
}

func TestGetSwapsDepthsInRange(t *testing.T) {
	src := []int{1, 2, 3, 4, 5}
	dst := []int{5, 4, 3, 2, 1}
	swaps, err := GetSwaps(src, dst)
	if err != nil {
		t.Fatalf("GetSwaps: %v", err)
	}
	for _, d := range swaps {
		if d < 1 || d > len(src)-1 {
			t.Fatalf("swap depth %d out of range [1,%d]", d, len(src)-1)
		}
	}
}

func TestGetSwapsIdenticalInputsEmitsNothing(t *testing.T) {
	src := []string{"a", "b", "c"}
	swaps, err := GetSwaps(src, src)
	if err != nil {
		t.Fatalf("GetSwaps: %v", err)
	}
	if len(swaps) != 0 {
		t.Fatalf("expected empty swap sequence for identical input, got %v", swaps)
	}
}

func TestGetSwapsRejectsLengthMismatch(t *testing.T) {
	if _, err := GetSwaps([]int{1, 2}, []int{1, 2, 3}); err == nil {
		t.Fatalf("expected an error for mismatched lengths")
	}
}

func intsEqual(a, b []int) bool {
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
