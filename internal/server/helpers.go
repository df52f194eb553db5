package server

import (
	"fmt"

	"github.com/PhilipHarries/ifs-python/internal/codec"
	"github.com/PhilipHarries/ifs-python/internal/rimage"
)

// loadSourceImage reads a PGM file and builds the working rimage.Image an
// encode job partitions into ranges and domains.
func loadSourceImage(path string, rangeSize, domainSize int) (*rimage.Image, codec.Header, error) {
	pgm, err := codec.ReadPGM(path)
	if err != nil {
		return nil, codec.Header{}, fmt.Errorf("failed to load source image: %w", err)
	}

	img, err := rimage.New(pgm.Width, pgm.Height, pgm.WhiteVal, rangeSize, domainSize, pgm.Data)
	if err != nil {
		return nil, codec.Header{}, err
	}

	header := codec.Header{
		Width:      pgm.Width,
		Height:     pgm.Height,
		RangeSize:  rangeSize,
		DomainSize: domainSize,
		WhiteVal:   pgm.WhiteVal,
	}
	return img, header, nil
}
