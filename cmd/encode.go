package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/PhilipHarries/ifs-python/internal/codec"
	"github.com/PhilipHarries/ifs-python/internal/encoder"
	"github.com/PhilipHarries/ifs-python/internal/rimage"
	"github.com/spf13/cobra"
)

var (
	encodeFile       string
	encodeRangeSize  int
	encodeDomainSize int
	encodeWorkers    int
	encodeVerbose    int
	encodeResume     bool
	encodeCPUProfile string
	encodeMemProfile string
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a PGM image into a range/domain transform table",
	Long: `Encode runs the partitioned block-matching search over a PGM
image, writing a .ifs transform table under encoded_files/.

If a .ifs.part checkpoint for the same output already exists, --resume
continues the range scan from where it left off instead of starting over.`,
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().StringVar(&encodeFile, "file", "", "Input PGM path under input/ (required)")
	encodeCmd.Flags().IntVar(&encodeRangeSize, "rangesize", 4, "Range block size R")
	encodeCmd.Flags().IntVar(&encodeDomainSize, "domainsize", 8, "Domain block size D")
	encodeCmd.Flags().IntVar(&encodeWorkers, "workers", 1, "Number of worker goroutines (1 = sequential)")
	encodeCmd.Flags().IntVar(&encodeVerbose, "verbose", 0, "Verbosity level (0, 1, 2)")
	encodeCmd.Flags().BoolVar(&encodeResume, "resume", false, "Resume from an existing .ifs.part checkpoint")
	encodeCmd.Flags().StringVar(&encodeCPUProfile, "cpuprofile", "", "Write CPU profile to file")
	encodeCmd.Flags().StringVar(&encodeMemProfile, "memprofile", "", "Write memory profile to file")

	encodeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(encodeCmd)
}

// outputPaths derives the encoded_files/<stem>_r<R>_d<D>.ifs path (and its
// .part sibling) from the input PGM path, per spec.md §6.
func outputPaths(inputPath string, rangeSize, domainSize int) (ifsPath, partPath string) {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	base := fmt.Sprintf("%s_r%d_d%d", stem, rangeSize, domainSize)
	ifsPath = filepath.Join("encoded_files", base+".ifs")
	partPath = filepath.Join("encoded_files", base+".ifs.part")
	return
}

func runEncode(cmd *cobra.Command, args []string) error {
	if encodeCPUProfile != "" {
		f, err := os.Create(encodeCPUProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		slog.Info("CPU profiling enabled", "output", encodeCPUProfile)
	}

	slog.Info("Starting encode", "file", encodeFile, "rangesize", encodeRangeSize, "domainsize", encodeDomainSize)

	pgm, err := codec.ReadPGM(encodeFile)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	img, err := rimage.New(pgm.Width, pgm.Height, pgm.WhiteVal, encodeRangeSize, encodeDomainSize, pgm.Data)
	if err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	header := codec.Header{Width: pgm.Width, Height: pgm.Height, RangeSize: encodeRangeSize, DomainSize: encodeDomainSize, WhiteVal: pgm.WhiteVal}
	numRanges := img.NumRanges()

	slog.Info("Loaded input", "width", pgm.Width, "height", pgm.Height, "numRanges", numRanges)

	ifsPath, partPath := outputPaths(encodeFile, encodeRangeSize, encodeDomainSize)
	if err := os.MkdirAll(filepath.Dir(ifsPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var resumeFrom int
	var resumeTable []codec.TransformRecord
	if encodeResume {
		if part, err := codec.ReadIFS(partPath); err == nil {
			if part.Header != header {
				return fmt.Errorf("checkpoint %s does not match current geometry", partPath)
			}
			resumeFrom = len(part.Table)
			resumeTable = part.Table
			slog.Info("Resuming from checkpoint", "path", partPath, "resumeFrom", resumeFrom)
		} else {
			slog.Info("No checkpoint found, starting fresh", "path", partPath)
		}
	}

	progressEvery := numRanges / 10
	if progressEvery <= 0 {
		progressEvery = 1
	}
	if encodeVerbose == 0 {
		progressEvery = 0
	}

	checkpoint := func(table []codec.TransformRecord) error {
		return codec.WriteIFSPartAtomic(partPath, header, table)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			slog.Info("Interrupt received, flushing checkpoint and stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	encCfg := encoder.Config{
		Workers:         encodeWorkers,
		CheckpointEvery: progressEvery,
		ProgressEvery:   progressEvery,
	}

	start := time.Now()
	var table []codec.TransformRecord
	if encodeWorkers >= 2 {
		table, err = encoder.RunParallel(ctx, img, encCfg, resumeFrom, resumeTable, checkpoint)
	} else {
		table, err = encoder.RunSequential(ctx, img, encCfg, resumeFrom, resumeTable, checkpoint)
	}
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			fmt.Printf("Interrupted; checkpoint saved to %s (%d/%d ranges)\n", partPath, len(table), numRanges)
			return nil
		}
		return fmt.Errorf("encode failed: %w", err)
	}

	if err := codec.WriteIFS(partPath, header, table); err != nil {
		return fmt.Errorf("failed to write final checkpoint: %w", err)
	}
	if err := codec.FinalizePart(partPath, ifsPath); err != nil {
		return fmt.Errorf("failed to finalize output: %w", err)
	}

	rangesPerSec := float64(numRanges) / elapsed.Seconds()
	slog.Info("Encode complete", "elapsed", elapsed, "numRanges", numRanges, "ranges_per_second", fmt.Sprintf("%.0f", rangesPerSec))
	fmt.Printf("Wrote %s (%d ranges, %.0f ranges/sec)\n", ifsPath, numRanges, rangesPerSec)

	if encodeMemProfile != "" {
		f, err := os.Create(encodeMemProfile)
		if err != nil {
			return fmt.Errorf("failed to create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
		slog.Info("Memory profile written", "output", encodeMemProfile)
	}

	return nil
}
