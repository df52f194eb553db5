// Package codec implements the external text codecs the core treats as
// collaborators at its boundary (spec.md §6): the PGM (P2) raster format
// and the .ifs / .ifs.part transform-table format.
package codec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/PhilipHarries/ifs-python/internal/ifserr"
)

// PGM is a decoded plain-text (P2) greyscale raster.
type PGM struct {
	Width, Height int
	WhiteVal      int
	Data          []int64 // row-major, len == Width*Height
}

// ReadPGM parses a P2 PGM file: line 1 literal "P2", line 2 a comment
// (ignored), line 3 "width height", line 4 whiteval, then width*height
// whitespace-separated pixel tokens across any number of lines.
func ReadPGM(path string) (*PGM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pgm %q: %w", path, err)
	}
	defer f.Close()
	return readPGM(path, f)
}

func readPGM(path string, r io.Reader) (*PGM, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var width, height, whiteVal int
	var tokens []string
	lineNum := 0

	for scanner.Scan() {
		line := scanner.Text()
		switch lineNum {
		case 0:
			if strings.TrimSpace(line) != "P2" {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "first line must be literal P2"}
			}
		case 1:
			// comment line, ignored
		case 2:
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "line 3 must be 'width height'"}
			}
			w, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "bad width: " + fields[0]}
			}
			h, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "bad height: " + fields[1]}
			}
			width, height = w, h
		case 3:
			wv, err := strconv.Atoi(strings.TrimSpace(line))
			if err != nil {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "bad whiteval: " + line}
			}
			whiteVal = wv
		default:
			tokens = append(tokens, strings.Fields(line)...)
		}
		lineNum++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pgm %q: %w", path, err)
	}
	if lineNum < 4 {
		return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "truncated header"}
	}

	want := width * height
	if len(tokens) != want {
		return nil, &ifserr.InvalidFileFormatError{
			Path:   path,
			Reason: fmt.Sprintf("expected %d pixel values, got %d", want, len(tokens)),
		}
	}

	data := make([]int64, want)
	for i, tok := range tokens {
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "bad pixel value: " + tok}
		}
		data[i] = v
	}

	return &PGM{Width: width, Height: height, WhiteVal: whiteVal, Data: data}, nil
}

// WritePGM writes a P2 PGM file, clipping each pixel to [0, whiteval] on
// the way out: v < 0 becomes 0, v > whiteval becomes whiteval.
func WritePGM(path string, p *PGM) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pgm %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "P2")
	fmt.Fprintln(w, "# fractal ifs compressor")
	fmt.Fprintf(w, "%d %d\n", p.Width, p.Height)
	fmt.Fprintln(w, p.WhiteVal)

	for _, v := range p.Data {
		clipped := v
		if clipped < 0 {
			clipped = 0
		} else if clipped > int64(p.WhiteVal) {
			clipped = int64(p.WhiteVal)
		}
		fmt.Fprintln(w, clipped)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write pgm %q: %w", path, err)
	}
	return nil
}
