// Package block implements the fixed-size square pixel grid at the core of
// the fractal compressor: the eight dihedral isometries, sum/sum-sq
// reductions, grey-level affine adjustment, and the two resize regimes the
// encoder and decoder need (integer downsample, integer upsample).
//
// A Block is immutable: every operation returns a fresh Block and never
// mutates its receiver's data.
package block

import (
	"math"

	"github.com/PhilipHarries/ifs-python/internal/ifserr"
)

// Isometry identifies one of the eight square symmetries. The numbering is
// part of the on-disk .ifs contract and must never change.
type Isometry int

const (
	Identity Isometry = iota
	Rotate180
	ReflectY // flip columns
	ReflectX // flip rows
	Transpose
	AntiDiagonal
	Rotate270 // CCW 90
	Rotate90  // CW 90
)

// Block is an immutable size x size grid of signed pixel values, row-major,
// addressed (x, y) with x as the column.
type Block struct {
	size int
	data []int64 // row-major, len == size*size
}

// New builds a Block from row-major data. len(data) must equal size*size.
func New(size int, data []int64) (*Block, error) {
	if size <= 0 || len(data) != size*size {
		return nil, &ifserr.MalformedBlockError{Size: size, DataLen: len(data)}
	}
	owned := make([]int64, len(data))
	copy(owned, data)
	return &Block{size: size, data: owned}, nil
}

// Size returns the block's side length.
func (b *Block) Size() int { return b.size }

// At returns the pixel at column x, row y.
func (b *Block) At(x, y int) int64 { return b.data[y*b.size+x] }

// Data returns a copy of the underlying row-major pixel slice.
func (b *Block) Data() []int64 {
	out := make([]int64, len(b.data))
	copy(out, b.data)
	return out
}

func newUnchecked(size int, data []int64) *Block {
	return &Block{size: size, data: data}
}

// Apply returns the block transformed by the given isometry.
func (b *Block) Apply(t Isometry) *Block {
	switch t {
	case Identity:
		return b.identity()
	case Rotate180:
		return b.rotate180()
	case ReflectY:
		return b.reflectY()
	case ReflectX:
		return b.reflectY().rotate180()
	case Transpose:
		return b.transpose()
	case AntiDiagonal:
		return b.transpose().rotate180()
	case Rotate270:
		return b.transpose().reflectX0()
	case Rotate90:
		return b.transpose().reflectY()
	default:
		return b.identity()
	}
}

// reflectX0 is reflectX implemented directly (not via composition) so that
// Rotate270's definition (transpose then reflect-X) doesn't recurse through
// Apply's own ReflectX case.
func (b *Block) reflectX0() *Block {
	n := b.size
	out := make([]int64, n*n)
	for y := 0; y < n; y++ {
		srcRow := (n - 1 - y) * n
		copy(out[y*n:y*n+n], b.data[srcRow:srcRow+n])
	}
	return newUnchecked(n, out)
}

func (b *Block) identity() *Block {
	out := make([]int64, len(b.data))
	copy(out, b.data)
	return newUnchecked(b.size, out)
}

func (b *Block) rotate180() *Block {
	n := b.size
	out := make([]int64, n*n)
	last := n*n - 1
	for i, v := range b.data {
		out[last-i] = v
	}
	return newUnchecked(n, out)
}

func (b *Block) reflectY() *Block {
	n := b.size
	out := make([]int64, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			out[y*n+x] = b.data[y*n+(n-1-x)]
		}
	}
	return newUnchecked(n, out)
}

func (b *Block) reflectX() *Block {
	return b.reflectX0()
}

func (b *Block) transpose() *Block {
	n := b.size
	out := make([]int64, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			out[x*n+y] = b.data[y*n+x]
		}
	}
	return newUnchecked(n, out)
}

// Sum returns the sum of all pixel values, promoted to a wide accumulator.
func (b *Block) Sum() int64 {
	var total int64
	for _, v := range b.data {
		total += v
	}
	return total
}

// SumSq returns the sum of squared pixel values.
func (b *Block) SumSq() int64 {
	var total int64
	for _, v := range b.data {
		total += v * v
	}
	return total
}

// Dot returns the sum of elementwise products of two same-shaped blocks.
func (b *Block) Dot(other *Block) (int64, error) {
	if b.size != other.size {
		return 0, &ifserr.BadComparisonError{SizeA: b.size, SizeB: other.size}
	}
	var total int64
	for i := range b.data {
		total += b.data[i] * other.data[i]
	}
	return total, nil
}

// DiffSq returns the sum of squared per-pixel differences between two
// same-shaped blocks (the quantity the grey-level solver minimizes).
func (b *Block) DiffSq(other *Block) (int64, error) {
	if b.size != other.size {
		return 0, &ifserr.BadComparisonError{SizeA: b.size, SizeB: other.size}
	}
	var total int64
	for i := range b.data {
		d := b.data[i] - other.data[i]
		total += d * d
	}
	return total, nil
}

// roundHalfAwayFromZero rounds a float64 to the nearest integer, with
// halves rounded away from zero (math.Round already does this; the
// round-to-even variant is math.RoundToEven). Named explicitly here
// because the .ifs bit-exactness contract depends on it.
func roundHalfAwayFromZero(v float64) int64 {
	return int64(math.Round(v))
}

// AdjustContrast returns a new block with every pixel scaled by c and
// rounded half-away-from-zero. Does not clip.
func (b *Block) AdjustContrast(c float64) *Block {
	out := make([]int64, len(b.data))
	for i, v := range b.data {
		out[i] = roundHalfAwayFromZero(float64(v) * c)
	}
	return newUnchecked(b.size, out)
}

// AdjustBrightness returns a new block with bright added to every pixel
// and rounded half-away-from-zero. Does not clip.
func (b *Block) AdjustBrightness(bright float64) *Block {
	out := make([]int64, len(b.data))
	for i, v := range b.data {
		out[i] = roundHalfAwayFromZero(float64(v) + bright)
	}
	return newUnchecked(b.size, out)
}

// Resize returns a new newSize x newSize block. Only two ratios are
// supported: exact integer downsample (old % new == 0, truncating
// integer mean) and exact integer upsample (new % old == 0,
// nearest-neighbour replication). Any other ratio is an error.
func (b *Block) Resize(newSize int) (*Block, error) {
	old := b.size
	if newSize == old {
		return b.identity(), nil
	}
	if newSize <= 0 {
		return nil, &ifserr.InvalidSizeError{OldSize: old, NewSize: newSize}
	}
	if newSize < old {
		if old%newSize != 0 {
			return nil, &ifserr.InvalidSizeError{OldSize: old, NewSize: newSize}
		}
		return b.downsample(newSize), nil
	}
	if newSize%old != 0 {
		return nil, &ifserr.InvalidSizeError{OldSize: old, NewSize: newSize}
	}
	return b.upsample(newSize), nil
}

// downsample computes each output pixel as the truncating integer average
// of the (old/new)^2 source pixels it covers.
func (b *Block) downsample(newSize int) *Block {
	old := b.size
	factor := old / newSize
	out := make([]int64, newSize*newSize)
	area := int64(factor * factor)
	for ny := 0; ny < newSize; ny++ {
		for nx := 0; nx < newSize; nx++ {
			var sum int64
			baseY := ny * factor
			baseX := nx * factor
			for dy := 0; dy < factor; dy++ {
				row := (baseY + dy) * old
				for dx := 0; dx < factor; dx++ {
					sum += b.data[row+baseX+dx]
				}
			}
			out[ny*newSize+nx] = sum / area
		}
	}
	return newUnchecked(newSize, out)
}

// upsample replicates each source pixel into a factor x factor block of
// identical pixels (Kronecker product with a ones block).
func (b *Block) upsample(newSize int) *Block {
	old := b.size
	factor := newSize / old
	out := make([]int64, newSize*newSize)
	for y := 0; y < old; y++ {
		for x := 0; x < old; x++ {
			v := b.data[y*old+x]
			for dy := 0; dy < factor; dy++ {
				row := (y*factor+dy)*newSize + x*factor
				for dx := 0; dx < factor; dx++ {
					out[row+dx] = v
				}
			}
		}
	}
	return newUnchecked(newSize, out)
}
