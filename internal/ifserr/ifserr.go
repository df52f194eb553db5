// Package ifserr defines the typed fatal errors raised across the fractal
// image compressor. All core errors are terminal: callers surface them to
// the operator with enough context (indices, expected vs actual) to debug,
// nothing is retried automatically.
package ifserr

import "fmt"

// MalformedImageError reports a pixel buffer whose length disagrees with
// its declared width/height.
type MalformedImageError struct {
	Length, Width, Height int
}

func (e *MalformedImageError) Error() string {
	return fmt.Sprintf("malformed image: length=%d width=%d height=%d", e.Length, e.Width, e.Height)
}

func (e *MalformedImageError) Is(target error) bool {
	_, ok := target.(*MalformedImageError)
	return ok
}

// BadRangeSizeError reports a range size that violates the partition
// invariants (must divide width and height, and fit within the image).
type BadRangeSizeError struct {
	RangeSize, Width, Height int
}

func (e *BadRangeSizeError) Error() string {
	return fmt.Sprintf("bad range size %d for image %dx%d", e.RangeSize, e.Width, e.Height)
}

func (e *BadRangeSizeError) Is(target error) bool {
	_, ok := target.(*BadRangeSizeError)
	return ok
}

// BadDomainSizeError reports a domain size that violates the partition
// invariants (must be <= min(width,height) and >= range size).
type BadDomainSizeError struct {
	DomainSize, RangeSize, Width, Height int
}

func (e *BadDomainSizeError) Error() string {
	return fmt.Sprintf("bad domain size %d (range size %d) for image %dx%d", e.DomainSize, e.RangeSize, e.Width, e.Height)
}

func (e *BadDomainSizeError) Is(target error) bool {
	_, ok := target.(*BadDomainSizeError)
	return ok
}

// OutOfArrayError reports an extraction or insertion whose bounding box
// does not lie entirely within the image.
type OutOfArrayError struct {
	X, Y, Size, Width, Height int
}

func (e *OutOfArrayError) Error() string {
	return fmt.Sprintf("out of array: submatrix (%d,%d) size %d exceeds image %dx%d", e.X, e.Y, e.Size, e.Width, e.Height)
}

func (e *OutOfArrayError) Is(target error) bool {
	_, ok := target.(*OutOfArrayError)
	return ok
}

// NullValueError reports an undefined pixel encountered during extraction
// or insertion. Should be unreachable in a well-formed image.
type NullValueError struct {
	X, Y int
}

func (e *NullValueError) Error() string {
	return fmt.Sprintf("null value at (%d,%d)", e.X, e.Y)
}

func (e *NullValueError) Is(target error) bool {
	_, ok := target.(*NullValueError)
	return ok
}

// MalformedBlockError reports a block whose data length disagrees with its
// declared size, or a non-square size request.
type MalformedBlockError struct {
	Size, DataLen int
}

func (e *MalformedBlockError) Error() string {
	return fmt.Sprintf("malformed block: size=%d data_len=%d", e.Size, e.DataLen)
}

func (e *MalformedBlockError) Is(target error) bool {
	_, ok := target.(*MalformedBlockError)
	return ok
}

// BadComparisonError reports an operation between two blocks of
// mismatched shape.
type BadComparisonError struct {
	SizeA, SizeB int
}

func (e *BadComparisonError) Error() string {
	return fmt.Sprintf("bad comparison: block sizes %d and %d differ", e.SizeA, e.SizeB)
}

func (e *BadComparisonError) Is(target error) bool {
	_, ok := target.(*BadComparisonError)
	return ok
}

// InvalidSizeError reports a resize request whose ratio is neither an
// exact integer downsample nor an exact integer upsample.
type InvalidSizeError struct {
	OldSize, NewSize int
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("invalid resize: %d -> %d is not an exact integer ratio", e.OldSize, e.NewSize)
}

func (e *InvalidSizeError) Is(target error) bool {
	_, ok := target.(*InvalidSizeError)
	return ok
}

// InvalidFileFormatError reports a malformed PGM or .ifs file.
type InvalidFileFormatError struct {
	Path, Reason string
}

func (e *InvalidFileFormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid file format in %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid file format: %s", e.Reason)
}

func (e *InvalidFileFormatError) Is(target error) bool {
	_, ok := target.(*InvalidFileFormatError)
	return ok
}
