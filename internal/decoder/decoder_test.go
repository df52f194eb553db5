package decoder

import (
	"math/rand"
	"testing"

	"github.com/PhilipHarries/ifs-python/internal/block"
	"github.com/PhilipHarries/ifs-python/internal/codec"
)

// identityTable builds a table where every range copies domain 0 with the
// identity isometry and no grey adjustment — for a flat seed image this is
// already a fixed point, so decoding should converge immediately and leave
// the seed value (128) in every pixel.
func identityTable(numRanges int) []codec.TransformRecord {
	table := make([]codec.TransformRecord, numRanges)
	for i := range table {
		table[i] = codec.TransformRecord{DomainIndex: 0, Isometry: block.Identity, Contrast: 1, Brightness: 0}
	}
	return table
}

func TestDecode_IdentityTableStaysAtSeed(t *testing.T) {
	header := codec.Header{Width: 8, Height: 8, RangeSize: 2, DomainSize: 4, WhiteVal: 255}
	numRanges := (header.Width / header.RangeSize) * (header.Height / header.RangeSize)

	img, err := Decode(header, identityTable(numRanges), Config{Rand: rand.New(rand.NewSource(7))})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	for _, v := range img.Data() {
		if v != seedGrey {
			t.Fatalf("expected all pixels to remain at seed grey %d, found %d", seedGrey, v)
		}
	}
}

func TestDecode_TableLengthMismatchIsFatal(t *testing.T) {
	header := codec.Header{Width: 8, Height: 8, RangeSize: 2, DomainSize: 4, WhiteVal: 255}

	_, err := Decode(header, identityTable(3), Config{})
	if err == nil {
		t.Fatal("expected error for transform table shorter than numRanges")
	}
}

func TestDecode_DeterministicGivenSameSeed(t *testing.T) {
	header := codec.Header{Width: 8, Height: 8, RangeSize: 2, DomainSize: 4, WhiteVal: 255}
	numRanges := (header.Width / header.RangeSize) * (header.Height / header.RangeSize)
	table := identityTable(numRanges)

	img1, err := Decode(header, table, Config{Rand: rand.New(rand.NewSource(42))})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	img2, err := Decode(header, table, Config{Rand: rand.New(rand.NewSource(42))})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	d1, d2 := img1.Data(), img2.Data()
	for i := range d1 {
		if d1[i] != d2[i] {
			t.Fatalf("pixel %d differs between two runs with the same RNG seed: %d vs %d", i, d1[i], d2[i])
		}
	}
}

func TestScale_LeavesUnscaledAtZoomOne(t *testing.T) {
	header := codec.Header{Width: 8, Height: 8, RangeSize: 2, DomainSize: 4, WhiteVal: 255}
	table := identityTable(16)

	scaledHeader, scaledTable := Scale(header, table, 1)
	if scaledHeader != header {
		t.Errorf("zoom=1 should leave header unchanged, got %+v", scaledHeader)
	}
	for i := range table {
		if scaledTable[i] != table[i] {
			t.Errorf("zoom=1 should leave table unchanged at %d", i)
		}
	}
}

func TestScale_ScalesGeometryAndDomainIndex(t *testing.T) {
	header := codec.Header{Width: 8, Height: 8, RangeSize: 2, DomainSize: 4, WhiteVal: 255}
	table := []codec.TransformRecord{
		{DomainIndex: 3, Isometry: block.Rotate90, Contrast: 0.5, Brightness: 10},
	}

	scaledHeader, scaledTable := Scale(header, table, 2)

	if scaledHeader.Width != 16 || scaledHeader.Height != 16 {
		t.Errorf("expected doubled dimensions, got %dx%d", scaledHeader.Width, scaledHeader.Height)
	}
	if scaledHeader.RangeSize != 4 || scaledHeader.DomainSize != 8 {
		t.Errorf("expected doubled range/domain size, got R=%d D=%d", scaledHeader.RangeSize, scaledHeader.DomainSize)
	}
	if scaledHeader.WhiteVal != header.WhiteVal {
		t.Errorf("whiteval must not scale")
	}

	rec := scaledTable[0]
	if rec.DomainIndex != 6 {
		t.Errorf("expected domain index doubled to 6, got %d", rec.DomainIndex)
	}
	if rec.Isometry != block.Rotate90 || rec.Contrast != 0.5 || rec.Brightness != 10 {
		t.Errorf("isometry/contrast/brightness must remain unchanged under zoom, got %+v", rec)
	}
}
