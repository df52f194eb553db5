package fit

import (
	"testing"

	"github.com/PhilipHarries/ifs-python/internal/block"
)

func mustBlock(t *testing.T, size int, data []int64) *block.Block {
	t.Helper()
	b, err := block.New(size, data)
	if err != nil {
		t.Fatalf("block.New failed: %v", err)
	}
	return b
}

func TestGreyParams_IdenticalBlocksGiveUnitContrastZeroBrightness(t *testing.T) {
	r := mustBlock(t, 2, []int64{10, 20, 30, 40})
	d := mustBlock(t, 2, []int64{10, 20, 30, 40})

	contrast, brightness, err := GreyParams(r, d)
	if err != nil {
		t.Fatalf("GreyParams failed: %v", err)
	}
	if contrast != 1 {
		t.Errorf("expected contrast 1, got %f", contrast)
	}
	if brightness != 0 {
		t.Errorf("expected brightness 0, got %f", brightness)
	}
}

func TestGreyParams_ConstantDomainZeroDenominator(t *testing.T) {
	r := mustBlock(t, 2, []int64{5, 9, 12, 30})
	d := mustBlock(t, 2, []int64{7, 7, 7, 7})

	contrast, brightness, err := GreyParams(r, d)
	if err != nil {
		t.Fatalf("GreyParams failed: %v", err)
	}
	if contrast != 0 {
		t.Errorf("expected contrast 0 for a constant domain block, got %f", contrast)
	}
	wantBrightness := r.Sum() / int64(r.Size()*r.Size())
	if brightness != float64(wantBrightness) {
		t.Errorf("expected brightness %v (mean of range), got %f", wantBrightness, brightness)
	}
}

func TestGreyParams_RejectsMismatchedSizes(t *testing.T) {
	r := mustBlock(t, 2, []int64{1, 2, 3, 4})
	d := mustBlock(t, 4, make([]int64, 16))

	if _, _, err := GreyParams(r, d); err == nil {
		t.Fatal("expected an error for mismatched block sizes, got nil")
	}
}

func TestDiff_IdenticalBlocksAreZero(t *testing.T) {
	b := mustBlock(t, 3, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9})
	fitVal, err := Diff(b, b)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if fitVal != 0 {
		t.Errorf("expected 0, got %d", fitVal)
	}
}

func TestFindBestTransform_ExactMatchEarlyExitsOnIdentity(t *testing.T) {
	r := mustBlock(t, 2, []int64{10, 20, 30, 40})
	d := mustBlock(t, 2, []int64{10, 20, 30, 40})

	res, err := FindBestTransform(r, d)
	if err != nil {
		t.Fatalf("FindBestTransform failed: %v", err)
	}
	if res.Isometry != block.Identity {
		t.Errorf("expected identity isometry for an exact match, got %v", res.Isometry)
	}
	if res.Contrast != 1 || res.Brightness != 0 {
		t.Errorf("expected contrast 1 brightness 0, got c=%f b=%f", res.Contrast, res.Brightness)
	}
	if res.Fit != 0 {
		t.Errorf("expected fit 0, got %d", res.Fit)
	}
}

func TestFindBestTransform_TiesBreakOnLowestIsometryIndex(t *testing.T) {
	// A symmetric domain block looks identical under every isometry, so
	// every candidate ties on fit and the search must keep the first
	// (lowest-index, Identity) result rather than overwrite it.
	d := mustBlock(t, 2, []int64{7, 7, 7, 7})
	r := mustBlock(t, 2, []int64{3, 9, 1, 19})

	res, err := FindBestTransform(r, d)
	if err != nil {
		t.Fatalf("FindBestTransform failed: %v", err)
	}
	if res.Isometry != block.Identity {
		t.Errorf("expected tie-break to keep Identity, got %v", res.Isometry)
	}
}

func TestFindBestTransform_PicksLowerErrorIsometryOverIdentity(t *testing.T) {
	// domainBlk reflected about Y matches the range exactly; Identity does
	// not (its grey-level fit leaves an error of 320, above the per-pixel
	// threshold of 4, and so does Rotate180's). The search must not stop
	// early on Identity, and must select ReflectY instead.
	d := mustBlock(t, 2, []int64{10, 20, 30, 40})
	r := mustBlock(t, 2, []int64{20, 10, 40, 30}) // columns of d swapped

	res, err := FindBestTransform(r, d)
	if err != nil {
		t.Fatalf("FindBestTransform failed: %v", err)
	}
	if res.Fit != 0 {
		t.Errorf("expected a zero-error isometry to be found, got fit=%d isometry=%v", res.Fit, res.Isometry)
	}
	if res.Isometry != block.ReflectY {
		t.Errorf("expected ReflectY, got %v", res.Isometry)
	}
}

func TestFindBestTransform_RejectsMismatchedSizes(t *testing.T) {
	r := mustBlock(t, 2, []int64{1, 2, 3, 4})
	d := mustBlock(t, 4, make([]int64, 16))

	if _, err := FindBestTransform(r, d); err == nil {
		t.Fatal("expected an error for mismatched block sizes, got nil")
	}
}
