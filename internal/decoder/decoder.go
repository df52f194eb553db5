// Package decoder implements the iterated application of a stored
// transform table (C5): starting from a flat grey seed image, it applies
// random ranges interleaved with full deterministic sweeps until two
// snapshots straddling a verification sweep are byte-identical.
package decoder

import (
	"math"
	"math/rand"

	"github.com/PhilipHarries/ifs-python/internal/codec"
	"github.com/PhilipHarries/ifs-python/internal/ifserr"
	"github.com/PhilipHarries/ifs-python/internal/rimage"
)

const seedGrey = 128

// Config controls a decode run.
type Config struct {
	// Iterations overrides the derived target iteration count when > 0.
	Iterations int
	// Zoom scales width, height, range size, domain size, and every
	// stored domain index by this factor before decoding (>= 1).
	Zoom int
	// Rand supplies the random range-index stream; nil uses a fresh source
	// seeded with 1, so runs without an explicit Rand are reproducible.
	// The specification does not pin the RNG — only that convergence does
	// not depend on its seed.
	Rand *rand.Rand
}

// Scale applies a zoom factor to an .ifs header and table, per spec.md
// §4.5: width, height, range size, and domain size are multiplied by z,
// and every domain index is multiplied by z; isometry, contrast, and
// brightness are left unchanged since they describe a scale-invariant
// relationship between range and domain shapes.
func Scale(h codec.Header, table []codec.TransformRecord, z int) (codec.Header, []codec.TransformRecord) {
	if z <= 1 {
		return h, table
	}
	scaledHeader := codec.Header{
		Width:      h.Width * z,
		Height:     h.Height * z,
		RangeSize:  h.RangeSize * z,
		DomainSize: h.DomainSize * z,
		WhiteVal:   h.WhiteVal,
	}
	scaledTable := make([]codec.TransformRecord, len(table))
	for i, rec := range table {
		scaledTable[i] = codec.TransformRecord{
			DomainIndex: rec.DomainIndex * z,
			Isometry:    rec.Isometry,
			Contrast:    rec.Contrast,
			Brightness:  rec.Brightness,
		}
	}
	return scaledHeader, scaledTable
}

// applyIFS performs one collage-operator application against range r: it
// reads the domain fresh (bypassing the cache, since the image mutates
// between applications), shrinks it to range size, applies the isometry,
// then the affine grey adjustment, in that order — spec.md §4.5 is
// explicit that swapping resize/isometry and contrast/brightness changes
// the rounding error per pixel.
func applyIFS(img *rimage.Image, r int, rec codec.TransformRecord) error {
	domainBlk, err := img.GetDomainByIndex(rec.DomainIndex, true)
	if err != nil {
		return err
	}
	resized, err := domainBlk.Resize(img.RangeSize)
	if err != nil {
		return err
	}
	transformed := resized.Apply(rec.Isometry)
	adjusted := transformed.AdjustContrast(rec.Contrast).AdjustBrightness(rec.Brightness)
	return img.PutRange(adjusted, r)
}

// Decode builds a seed image from the header and iterates the transform
// table until convergence (or the iteration cap is reached), returning the
// final image. It implements the random/full-sweep schedule from spec.md
// §4.5 exactly, including the interleaved full-sweep trigger and the
// two-snapshot verification.
func Decode(header codec.Header, table []codec.TransformRecord, cfg Config) (*rimage.Image, error) {
	if cfg.Zoom > 1 {
		header, table = Scale(header, table, cfg.Zoom)
	}
	img, err := rimage.NewSeed(header.Width, header.Height, header.WhiteVal, header.RangeSize, header.DomainSize, seedGrey)
	if err != nil {
		return nil, err
	}
	numRanges := img.NumRanges()
	if len(table) != numRanges {
		return nil, &ifserr.MalformedBlockError{Size: numRanges, DataLen: len(table)}
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	targetIters := cfg.Iterations
	if targetIters <= 0 {
		widthInRanges := header.Width / header.RangeSize
		targetIters = int(64 * math.Pow(float64(widthInRanges), 2))
	}
	testInterval := numRanges / 4
	if testInterval <= 0 {
		testInterval = 1
	}
	fullSweepInterval := numRanges
	if fullSweepInterval <= 0 {
		fullSweepInterval = 1
	}

	prevSnapshot := img.Data()
	applied := 0

	fullSweep := func() error {
		for rp := 0; rp < numRanges; rp++ {
			if err := applyIFS(img, rp, table[rp]); err != nil {
				return err
			}
			applied++
		}
		return nil
	}

	for i := 0; i < targetIters; i++ {
		r := rng.Intn(numRanges)
		if err := applyIFS(img, r, table[r]); err != nil {
			return nil, err
		}
		applied++

		if i > 0 && i%fullSweepInterval == 0 {
			if err := fullSweep(); err != nil {
				return nil, err
			}
		}

		if (applied+1)%testInterval == 0 {
			if dataEqual(img.Data(), prevSnapshot) {
				if err := fullSweep(); err != nil {
					return nil, err
				}
				if dataEqual(img.Data(), prevSnapshot) {
					return img, nil
				}
			}
			prevSnapshot = img.Data()
		}
	}
	return img, nil
}

func dataEqual(a, b []int64) bool {
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
