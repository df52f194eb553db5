package codec

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/PhilipHarries/ifs-python/internal/block"
	"github.com/PhilipHarries/ifs-python/internal/ifserr"
)

// Header carries the geometry recorded at the top of an .ifs file.
type Header struct {
	Width, Height         int
	RangeSize, DomainSize int
	WhiteVal              int
}

// TransformRecord is one range's encoded transform, stored in
// range-index order.
type TransformRecord struct {
	DomainIndex int
	Isometry    block.Isometry
	Contrast    float64
	Brightness  float64
}

// IFS is a fully decoded .ifs (or .ifs.part) file.
type IFS struct {
	Header Header
	Table  []TransformRecord
}

// WriteIFS writes an .ifs (or .part) file: line 1 literal "#IFS", line 2
// the header, then one "domain isometry contrast brightness" line per
// transform in range-index order. A partial table (fewer than
// numRanges records) is permitted — that is exactly the .ifs.part
// checkpoint contract (spec.md §6).
func WriteIFS(path string, h Header, table []TransformRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ifs %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "#IFS")
	fmt.Fprintf(w, "%d %d %d %d %d\n", h.Width, h.Height, h.RangeSize, h.DomainSize, h.WhiteVal)
	for _, rec := range table {
		fmt.Fprintf(w, "%d %d %s %s\n",
			rec.DomainIndex, int(rec.Isometry),
			strconv.FormatFloat(rec.Contrast, 'g', -1, 64),
			strconv.FormatFloat(rec.Brightness, 'g', -1, 64))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write ifs %q: %w", path, err)
	}
	return nil
}

// WriteIFSPartAtomic writes a checkpoint via temp-file + rename so a
// reader never observes a half-written .part file, following the
// atomic-write pattern the store package uses for job checkpoints.
func WriteIFSPartAtomic(path string, h Header, table []TransformRecord) error {
	tmp := path + ".tmp"
	if err := WriteIFS(tmp, h, table); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %q -> %q: %w", tmp, path, err)
	}
	return nil
}

// FinalizePart atomically renames a completed .ifs.part to its final
// .ifs path, per spec.md §4.4/§6.
func FinalizePart(partPath, finalPath string) error {
	if err := os.Rename(partPath, finalPath); err != nil {
		return fmt.Errorf("finalize %q -> %q: %w", partPath, finalPath, err)
	}
	return nil
}

// ReadIFS parses an .ifs or .ifs.part file. A .part file may legitimately
// contain fewer than numRanges records; validating the record count
// against the expected geometry is the caller's responsibility (the
// encoder resume path expects a short table, while a final .ifs file
// must be complete — spec.md §3 invariant 3).
func ReadIFS(path string) (*IFS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ifs %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNum := 0
	var header Header
	var table []TransformRecord

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch lineNum {
		case 0:
			if line != "#IFS" {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "first line must be literal #IFS"}
			}
		case 1:
			fields := strings.Fields(line)
			if len(fields) != 5 {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "header must have 5 fields"}
			}
			vals := make([]int, 5)
			for i, f := range fields {
				v, err := strconv.Atoi(f)
				if err != nil {
					return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "bad header field: " + f}
				}
				vals[i] = v
			}
			header = Header{Width: vals[0], Height: vals[1], RangeSize: vals[2], DomainSize: vals[3], WhiteVal: vals[4]}
		default:
			fields := strings.Fields(line)
			if len(fields) != 4 {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "transform record must have 4 fields"}
			}
			dom, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "bad domain index: " + fields[0]}
			}
			iso, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "bad isometry: " + fields[1]}
			}
			contrast, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "bad contrast: " + fields[2]}
			}
			brightness, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "bad brightness: " + fields[3]}
			}
			table = append(table, TransformRecord{
				DomainIndex: dom,
				Isometry:    block.Isometry(iso),
				Contrast:    contrast,
				Brightness:  brightness,
			})
		}
		lineNum++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ifs %q: %w", path, err)
	}
	if lineNum < 2 {
		return nil, &ifserr.InvalidFileFormatError{Path: path, Reason: "truncated header"}
	}

	return &IFS{Header: header, Table: table}, nil
}
