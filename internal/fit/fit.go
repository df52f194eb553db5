// Package fit implements the closed-form grey-level solver and the
// eight-isometry best-fit search (C2 of the fractal compressor): given a
// range block and a candidate domain block of identical size, find the
// isometry and affine (contrast, brightness) pair that minimizes the
// sum-of-squared-error between the range and the transformed domain.
package fit

import (
	"github.com/PhilipHarries/ifs-python/internal/block"
	"github.com/PhilipHarries/ifs-python/internal/ifserr"
)

// Result is the outcome of a best-transform search for one (range, domain)
// pair.
type Result struct {
	Isometry   block.Isometry
	Contrast   float64
	Brightness float64
	Fit        int64 // sum of squared error, wide integer accumulator
}

// GreyParams computes the closed-form least-squares (contrast, brightness)
// that minimize SSE between rangeBlk and domainBlk, per:
//
//	denom      = n*sSS - sS^2
//	contrast   = (n*sRS - sS*sR) / denom    if denom != 0, else 0
//	brightness = (sR - contrast*sS) / n
//
// Both blocks must have the same number of pixels.
func GreyParams(rangeBlk, domainBlk *block.Block) (contrast, brightness float64, err error) {
	if rangeBlk.Size() != domainBlk.Size() {
		return 0, 0, &ifserr.BadComparisonError{SizeA: rangeBlk.Size(), SizeB: domainBlk.Size()}
	}
	n := int64(rangeBlk.Size() * rangeBlk.Size())
	sR := rangeBlk.Sum()
	sS := domainBlk.Sum()
	sSS := domainBlk.SumSq()
	sRS, err := rangeBlk.Dot(domainBlk)
	if err != nil {
		return 0, 0, err
	}

	denom := float64(n)*float64(sSS) - float64(sS)*float64(sS)
	if denom == 0 {
		contrast = 0.0
	} else {
		contrast = (float64(n)*float64(sRS) - float64(sS)*float64(sR)) / denom
	}
	brightness = (float64(sR) - contrast*float64(sS)) / float64(n)
	return contrast, brightness, nil
}

// Diff returns the sum of squared per-pixel differences between two
// same-shaped blocks — the distance minimised by the closed-form solver.
func Diff(a, b *block.Block) (int64, error) {
	return a.DiffSq(b)
}

// allIsometries lists the eight isometries in their canonical,
// spec-mandated numbering. The encoder's tie-break (lowest index wins)
// depends on iterating in exactly this order.
var allIsometries = [8]block.Isometry{
	block.Identity,
	block.Rotate180,
	block.ReflectY,
	block.ReflectX,
	block.Transpose,
	block.AntiDiagonal,
	block.Rotate270,
	block.Rotate90,
}

// FindBestTransform enumerates all eight isometries of domainBlk, fits
// grey-level parameters against rangeBlk for each, and returns the best
// (lowest fit) result. Ties between isometries are broken by lowest index
// since the search keeps the current best only on a strict improvement.
//
// Early exit: if a candidate's fit is below rangeBlk's pixel count (average
// squared error < 1 per pixel), the search returns immediately without
// trying the remaining isometries. This short-circuit is part of the
// on-disk .ifs reproducibility contract and must not be removed.
func FindBestTransform(rangeBlk, domainBlk *block.Block) (Result, error) {
	if rangeBlk.Size() != domainBlk.Size() {
		return Result{}, &ifserr.BadComparisonError{SizeA: rangeBlk.Size(), SizeB: domainBlk.Size()}
	}
	threshold := int64(rangeBlk.Size() * rangeBlk.Size())

	var best Result
	haveBest := false

	for _, t := range allIsometries {
		transformed := domainBlk.Apply(t)
		contrast, brightness, err := GreyParams(rangeBlk, transformed)
		if err != nil {
			return Result{}, err
		}
		adjusted := transformed.AdjustContrast(contrast).AdjustBrightness(brightness)
		fitVal, err := FastDiff(rangeBlk, adjusted)
		if err != nil {
			return Result{}, err
		}

		if fitVal < threshold {
			return Result{Isometry: t, Contrast: contrast, Brightness: brightness, Fit: fitVal}, nil
		}
		if !haveBest || fitVal < best.Fit {
			best = Result{Isometry: t, Contrast: contrast, Brightness: brightness, Fit: fitVal}
			haveBest = true
		}
	}
	return best, nil
}
