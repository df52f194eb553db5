package codec

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadPGM_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pgm")
	want := &PGM{Width: 2, Height: 2, WhiteVal: 255, Data: []int64{0, 128, 200, 255}}
	if err := WritePGM(path, want); err != nil {
		t.Fatalf("WritePGM failed: %v", err)
	}
	got, err := ReadPGM(path)
	if err != nil {
		t.Fatalf("ReadPGM failed: %v", err)
	}
	if got.Width != want.Width || got.Height != want.Height || got.WhiteVal != want.WhiteVal {
		t.Fatalf("header mismatch: got %+v, want %+v", got, want)
	}
	for i, v := range want.Data {
		if got.Data[i] != v {
			t.Errorf("pixel %d: got %d, want %d", i, got.Data[i], v)
		}
	}
}

func TestWritePGM_ClipsOutOfRangeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.pgm")
	p := &PGM{Width: 2, Height: 1, WhiteVal: 255, Data: []int64{-10, 300}}
	if err := WritePGM(path, p); err != nil {
		t.Fatalf("WritePGM failed: %v", err)
	}
	got, err := ReadPGM(path)
	if err != nil {
		t.Fatalf("ReadPGM failed: %v", err)
	}
	if got.Data[0] != 0 {
		t.Errorf("expected negative pixel clipped to 0, got %d", got.Data[0])
	}
	if got.Data[1] != 255 {
		t.Errorf("expected overflowing pixel clipped to whiteval 255, got %d", got.Data[1])
	}
}

func TestReadPGM_RejectsWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pgm")
	writeRaw(t, path, "P5\n# comment\n2 2\n255\n1 2 3 4\n")
	if _, err := ReadPGM(path); err == nil {
		t.Fatal("expected an error for a non-P2 magic, got nil")
	}
}

func TestReadPGM_RejectsPixelCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.pgm")
	writeRaw(t, path, "P2\n# comment\n2 2\n255\n1 2 3\n")
	if _, err := ReadPGM(path); err == nil {
		t.Fatal("expected an error for too few pixel values, got nil")
	}
}

func TestReadPGM_RejectsMissingFile(t *testing.T) {
	if _, err := ReadPGM(filepath.Join(t.TempDir(), "does-not-exist.pgm")); err == nil {
		t.Fatal("expected an error for a missing file, got nil")
	}
}

func TestReadPGM_PixelsMaySpanMultipleLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multiline.pgm")
	writeRaw(t, path, "P2\n# comment\n2 2\n255\n1 2\n3 4\n")
	got, err := ReadPGM(path)
	if err != nil {
		t.Fatalf("ReadPGM failed: %v", err)
	}
	want := []int64{1, 2, 3, 4}
	for i, v := range want {
		if got.Data[i] != v {
			t.Errorf("pixel %d: got %d, want %d", i, got.Data[i], v)
		}
	}
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture %q: %v", path, err)
	}
}
