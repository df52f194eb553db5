// Package rimage implements the working pixel grid and the range/domain
// partition geometry the fractal encoder and decoder operate on (C3).
//
// Named rimage (not image) to avoid colliding with the standard library's
// image package, which its pixel storage deliberately does not reuse:
// intermediate contrast/brightness adjustments can go negative or exceed
// whiteval (spec.md §3), which a uint8-backed image.Gray cannot represent.
package rimage

import (
	"github.com/PhilipHarries/ifs-python/internal/block"
	"github.com/PhilipHarries/ifs-python/internal/ifserr"
)

// Image is a mutable width x height pixel grid together with the encoding
// geometry (range size R, domain size D) and their derived partition
// counts. Ranges tile the image without overlap; domains overlap densely.
type Image struct {
	Width, Height int
	WhiteVal      int
	RangeSize     int
	DomainSize    int

	data []int64 // row-major, len == Width*Height

	widthInRanges, heightInRanges   int
	widthInDomains, heightInDomains int
	numRanges, numDomains           int

	rangeCache  []*block.Block
	domainCache []*block.Block
}

// New constructs an Image from row-major pixel data and validates the
// partition invariants from spec.md §3:
//
//  1. length % width == 0, width % R == 0, height % R == 0, R <= min(w,h),
//     D <= min(w,h).
//  2. (checked lazily at extraction time: every range/domain origin + size
//     must lie within the grid.)
func New(width, height, whiteVal, rangeSize, domainSize int, data []int64) (*Image, error) {
	if width <= 0 || len(data) != width*height {
		return nil, &ifserr.MalformedImageError{Length: len(data), Width: width, Height: height}
	}
	if rangeSize <= 0 || width%rangeSize != 0 || height%rangeSize != 0 ||
		rangeSize > width || rangeSize > height {
		return nil, &ifserr.BadRangeSizeError{RangeSize: rangeSize, Width: width, Height: height}
	}
	if domainSize < rangeSize || domainSize > width || domainSize > height {
		return nil, &ifserr.BadDomainSizeError{DomainSize: domainSize, RangeSize: rangeSize, Width: width, Height: height}
	}

	owned := make([]int64, len(data))
	copy(owned, data)

	widthInRanges := width / rangeSize
	heightInRanges := height / rangeSize
	// width_in_domains / height_in_domains count every position where a
	// DxD window fits: width-D+1 positions across, height-D+1 down.
	// spec.md §9: the correct formula uses height here, fixing a bug in
	// one of the two observed source variants that used width twice.
	widthInDomains := width - domainSize + 1
	heightInDomains := height - domainSize + 1
	numRanges := widthInRanges * heightInRanges
	numDomains := widthInDomains * heightInDomains

	img := &Image{
		Width:           width,
		Height:          height,
		WhiteVal:        whiteVal,
		RangeSize:       rangeSize,
		DomainSize:      domainSize,
		data:            owned,
		widthInRanges:   widthInRanges,
		heightInRanges:  heightInRanges,
		widthInDomains:  widthInDomains,
		heightInDomains: heightInDomains,
		numRanges:       numRanges,
		numDomains:      numDomains,
		rangeCache:      make([]*block.Block, numRanges),
		domainCache:     make([]*block.Block, numDomains),
	}
	return img, nil
}

// NewSeed builds a width x height image filled with a single grey value
// (the decoder's seed is 128, per spec.md §4.5).
func NewSeed(width, height, whiteVal, rangeSize, domainSize int, fill int64) (*Image, error) {
	data := make([]int64, width*height)
	for i := range data {
		data[i] = fill
	}
	return New(width, height, whiteVal, rangeSize, domainSize, data)
}

// NumRanges returns the number of non-overlapping range blocks.
func (img *Image) NumRanges() int { return img.numRanges }

// NumDomains returns the number of (overlapping) domain window positions.
func (img *Image) NumDomains() int { return img.numDomains }

// WidthInRanges and HeightInRanges expose the range grid shape.
func (img *Image) WidthInRanges() int  { return img.widthInRanges }
func (img *Image) HeightInRanges() int { return img.heightInRanges }

// WidthInDomains and HeightInDomains expose the domain grid shape.
func (img *Image) WidthInDomains() int  { return img.widthInDomains }
func (img *Image) HeightInDomains() int { return img.heightInDomains }

// RangeOrigin maps a range index to its (x, y) top-left pixel origin.
func (img *Image) RangeOrigin(k int) (x, y int) {
	return img.RangeSize * (k % img.widthInRanges), img.RangeSize * (k / img.widthInRanges)
}

// DomainOrigin maps a domain index to its (x, y) top-left pixel origin.
func (img *Image) DomainOrigin(k int) (x, y int) {
	return k % img.widthInDomains, k / img.widthInDomains
}

// Data returns a copy of the row-major pixel buffer.
func (img *Image) Data() []int64 {
	out := make([]int64, len(img.data))
	copy(out, img.data)
	return out
}

// extract pulls a size x size block out of the pixel grid at (x, y),
// bounds-checked per spec.md §4.3.
func (img *Image) extract(x, y, size int) (*block.Block, error) {
	if x < 0 || y < 0 || x+size > img.Width || y+size > img.Height {
		return nil, &ifserr.OutOfArrayError{X: x, Y: y, Size: size, Width: img.Width, Height: img.Height}
	}
	data := make([]int64, size*size)
	for j := 0; j < size; j++ {
		srcRow := (y + j) * img.Width
		copy(data[j*size:j*size+size], img.data[srcRow+x:srcRow+x+size])
	}
	return block.New(size, data)
}

// GetRangeByOrigin extracts the range-sized block at pixel origin (x, y).
func (img *Image) GetRangeByOrigin(x, y int) (*block.Block, error) {
	return img.extract(x, y, img.RangeSize)
}

// GetRangeByIndex returns the k-th range block, from cache if present.
// The range cache is only valid while the image is not being mutated
// (spec.md §4.3) — callers that decode must not rely on it.
func (img *Image) GetRangeByIndex(k int) (*block.Block, error) {
	if k < 0 || k >= img.numRanges {
		return nil, &ifserr.OutOfArrayError{X: k, Size: img.RangeSize, Width: img.Width, Height: img.Height}
	}
	if img.rangeCache[k] != nil {
		return img.rangeCache[k], nil
	}
	x, y := img.RangeOrigin(k)
	blk, err := img.GetRangeByOrigin(x, y)
	if err != nil {
		return nil, err
	}
	img.rangeCache[k] = blk
	return blk, nil
}

// GetDomainByOrigin extracts the domain-sized block at pixel origin (x, y).
func (img *Image) GetDomainByOrigin(x, y int) (*block.Block, error) {
	return img.extract(x, y, img.DomainSize)
}

// GetDomainByIndex returns the k-th domain block. When decoding is true
// the cache is bypassed so the decoder reads fresh pixels after each
// mutation (spec.md §4.3); the encoder leaves decoding false to memoise
// against the (immutable, during encoding) source image.
func (img *Image) GetDomainByIndex(k int, decoding bool) (*block.Block, error) {
	if k < 0 || k >= img.numDomains {
		return nil, &ifserr.OutOfArrayError{X: k, Size: img.DomainSize, Width: img.Width, Height: img.Height}
	}
	if !decoding && img.domainCache[k] != nil {
		return img.domainCache[k], nil
	}
	x, y := img.DomainOrigin(k)
	blk, err := img.GetDomainByOrigin(x, y)
	if err != nil {
		return nil, err
	}
	if !decoding {
		img.domainCache[k] = blk
	}
	return blk, nil
}

// PutRange writes blk back at the k-th range's origin. It does not
// invalidate the range cache — callers needing consistency must not read
// range k from cache afterwards through this Image instance without an
// explicit re-extraction (the decoder, which mutates, always reads
// domains with decoding=true for exactly this reason).
func (img *Image) PutRange(blk *block.Block, k int) error {
	if k < 0 || k >= img.numRanges {
		return &ifserr.OutOfArrayError{X: k, Size: img.RangeSize, Width: img.Width, Height: img.Height}
	}
	if blk.Size() != img.RangeSize {
		return &ifserr.BadComparisonError{SizeA: blk.Size(), SizeB: img.RangeSize}
	}
	x, y := img.RangeOrigin(k)
	return img.putSquare(blk, x, y)
}

func (img *Image) putSquare(blk *block.Block, x, y int) error {
	size := blk.Size()
	if x < 0 || y < 0 || x+size > img.Width || y+size > img.Height {
		return &ifserr.OutOfArrayError{X: x, Y: y, Size: size, Width: img.Width, Height: img.Height}
	}
	src := blk.Data()
	for j := 0; j < size; j++ {
		dstRow := (y + j) * img.Width
		copy(img.data[dstRow+x:dstRow+x+size], src[j*size:j*size+size])
	}
	return nil
}

// RangeIndices yields range indices in order starting from 'from' (used by
// encoder resume).
func (img *Image) RangeIndices(from int) []int {
	out := make([]int, 0, img.numRanges-from)
	for k := from; k < img.numRanges; k++ {
		out = append(out, k)
	}
	return out
}
