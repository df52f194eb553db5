package fit

import (
	"testing"
)

func TestFastDiff_MatchesNaiveReference(t *testing.T) {
	a := mustBlock(t, 4, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	b := mustBlock(t, 4, []int64{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1})

	got, err := FastDiff(a, b)
	if err != nil {
		t.Fatalf("FastDiff failed: %v", err)
	}
	want := diffSqNaive(a.Data(), b.Data())
	if got != want {
		t.Errorf("FastDiff = %d, want %d (naive reference)", got, want)
	}
}

func TestFastDiff_IdenticalBlocksAreZero(t *testing.T) {
	a := mustBlock(t, 3, []int64{5, 5, 5, 5, 5, 5, 5, 5, 5})
	got, err := FastDiff(a, a)
	if err != nil {
		t.Fatalf("FastDiff failed: %v", err)
	}
	if got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestFastDiff_RejectsMismatchedSizes(t *testing.T) {
	a := mustBlock(t, 2, []int64{1, 2, 3, 4})
	b := mustBlock(t, 3, make([]int64, 9))

	if _, err := FastDiff(a, b); err == nil {
		t.Fatal("expected an error for mismatched block sizes, got nil")
	}
}

// TestDiffSqUnrolled4_MatchesNaiveAcrossSizes covers lengths that are and
// aren't multiples of 4, exercising diffSqUnrolled4's scalar tail loop.
func TestDiffSqUnrolled4_MatchesNaiveAcrossSizes(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 9, 16, 17} {
		a := make([]int64, n)
		b := make([]int64, n)
		for i := 0; i < n; i++ {
			a[i] = int64(i*3 + 1)
			b[i] = int64(i - 2)
		}
		got := diffSqUnrolled4(a, b)
		want := diffSqNaive(a, b)
		if got != want {
			t.Errorf("n=%d: diffSqUnrolled4 = %d, want %d", n, got, want)
		}
	}
}

func TestCompareDiffImplementations_AgreesOnEquivalence(t *testing.T) {
	a := mustBlock(t, 4, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	b := mustBlock(t, 4, []int64{2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17})

	equal, err := CompareDiffImplementations(a, b)
	if err != nil {
		t.Fatalf("CompareDiffImplementations failed: %v", err)
	}
	if !equal {
		t.Error("expected naive and unrolled kernels to agree")
	}
}

func TestCompareDiffImplementations_RejectsMismatchedSizes(t *testing.T) {
	a := mustBlock(t, 2, []int64{1, 2, 3, 4})
	b := mustBlock(t, 3, make([]int64, 9))

	if _, err := CompareDiffImplementations(a, b); err == nil {
		t.Fatal("expected an error for mismatched block sizes, got nil")
	}
}

func TestActiveDiffBackend_HasAStringRepresentation(t *testing.T) {
	switch ActiveDiffBackend.String() {
	case "naive", "accelerated":
	default:
		t.Errorf("unexpected backend string %q", ActiveDiffBackend.String())
	}
}
