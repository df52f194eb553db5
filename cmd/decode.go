package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PhilipHarries/ifs-python/internal/codec"
	"github.com/PhilipHarries/ifs-python/internal/decoder"
	"github.com/spf13/cobra"
)

var (
	decodeFile           string
	decodeIterations     int
	decodeZoom           int
	decodePrintIntervals int
	decodeVerbose        int
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a .ifs transform table back into a PGM image",
	Long: `Decode iterates the stored transform table, starting from a flat
grey seed image, until two snapshots straddling a verification sweep are
byte-identical (or the iteration cap is reached), writing the result
under output/.`,
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVar(&decodeFile, "file", "", "Input .ifs path under encoded_files/ (required)")
	decodeCmd.Flags().IntVar(&decodeIterations, "iterations", 0, "Iteration cap (0 = derive from geometry)")
	decodeCmd.Flags().IntVar(&decodeZoom, "zoom", 1, "Zoom factor applied to geometry and domain indices")
	decodeCmd.Flags().IntVar(&decodePrintIntervals, "print-intervals", 0, "Accepted but ignored: intermediate PGM dumps are not written")
	decodeCmd.Flags().IntVar(&decodeVerbose, "verbose", 0, "Verbosity level (0, 1, 2)")

	decodeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	slog.Info("Starting decode", "file", decodeFile, "zoom", decodeZoom)

	ifs, err := codec.ReadIFS(decodeFile)
	if err != nil {
		return fmt.Errorf("failed to read transform table: %w", err)
	}

	header, table := ifs.Header, ifs.Table
	if decodeZoom > 1 {
		header, table = decoder.Scale(header, table, decodeZoom)
	}

	if decodePrintIntervals > 0 && decodeVerbose > 0 {
		slog.Info("Intermediate-frame dumps are not supported by this decoder; print-intervals is ignored", "requested", decodePrintIntervals)
	}

	start := time.Now()
	img, err := decoder.Decode(header, table, decoder.Config{Iterations: decodeIterations})
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	elapsed := time.Since(start)

	stem := strings.TrimSuffix(filepath.Base(decodeFile), ".ifs")
	outName := stem
	if decodeZoom > 1 {
		outName = fmt.Sprintf("%s_z%d", stem, decodeZoom)
	}
	outPath := filepath.Join("output", outName+".pgm")
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	pgm := &codec.PGM{Width: header.Width, Height: header.Height, WhiteVal: header.WhiteVal, Data: img.Data()}
	if err := codec.WritePGM(outPath, pgm); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	slog.Info("Decode complete", "elapsed", elapsed, "output", outPath)
	fmt.Printf("Wrote %s (%s)\n", outPath, elapsed)

	return nil
}
