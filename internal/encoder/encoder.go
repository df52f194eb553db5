// Package encoder implements the partitioned block-matching driver (C4):
// for every non-overlapping range block it scans all domain positions,
// resizes each domain to the range size at most once per encode, and keeps
// the lowest-fit (domain, isometry, contrast, brightness) result.
package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/PhilipHarries/ifs-python/internal/block"
	"github.com/PhilipHarries/ifs-python/internal/codec"
	"github.com/PhilipHarries/ifs-python/internal/fit"
	"github.com/PhilipHarries/ifs-python/internal/rimage"
)

// Config controls an encode run.
type Config struct {
	Workers         int // 0 or 1 => sequential
	CheckpointEvery int // flush a checkpoint every N completed ranges; 0 disables
	ProgressEvery   int // log progress every N ranges; 0 disables
}

// Checkpointer is called with the transform table completed so far,
// ordered by range index up to (but not including) any range still
// in flight. The CLI persists it as an .ifs.part file
// (codec.WriteIFSPartAtomic); the server persists it as a JSON checkpoint
// through internal/store.
type Checkpointer func(table []codec.TransformRecord) error

// domainMemo resizes each domain to rangeSize at most once and shares the
// result across all ranges, per spec.md §4.4's "shrunk at most once" rule.
// It is safe for concurrent use: concurrent misses compute the same value
// (pure function of img + domain index + rangeSize) so a write-once-wins
// race is harmless, matching the "shared, write-once memo" contract for
// a parallel encoder described for the concurrency model.
type domainMemo struct {
	mu    sync.Mutex
	cache map[int]*block.Block
}

func newDomainMemo() *domainMemo {
	return &domainMemo{cache: make(map[int]*block.Block)}
}

func (m *domainMemo) resized(img *rimage.Image, d, rangeSize int) (*block.Block, error) {
	m.mu.Lock()
	blk, ok := m.cache[d]
	m.mu.Unlock()
	if ok {
		return blk, nil
	}

	raw, err := img.GetDomainByIndex(d, false)
	if err != nil {
		return nil, err
	}
	shrunk, err := raw.Resize(rangeSize)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.cache[d]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.cache[d] = shrunk
	m.mu.Unlock()
	return shrunk, nil
}

// encodeRange runs the inner domain scan for a single range, honoring the
// outer fit<=0 early exit and the lowest-index domain tie-break.
func encodeRange(img *rimage.Image, memo *domainMemo, r int) (codec.TransformRecord, error) {
	rangeBlk, err := img.GetRangeByIndex(r)
	if err != nil {
		return codec.TransformRecord{}, err
	}

	var best codec.TransformRecord
	haveBest := false
	var bestFit int64

	for d := 0; d < img.NumDomains(); d++ {
		resized, err := memo.resized(img, d, img.RangeSize)
		if err != nil {
			return codec.TransformRecord{}, err
		}
		result, err := fit.FindBestTransform(rangeBlk, resized)
		if err != nil {
			return codec.TransformRecord{}, err
		}

		if !haveBest || result.Fit < bestFit {
			best = codec.TransformRecord{
				DomainIndex: d,
				Isometry:    result.Isometry,
				Contrast:    result.Contrast,
				Brightness:  result.Brightness,
			}
			bestFit = result.Fit
			haveBest = true
		}
		if bestFit <= 0 {
			break
		}
	}
	return best, nil
}

// RunSequential encodes ranges [resumeFrom, numRanges) in index order,
// appending to resumeTable. It is the reference driver: the teacher's
// server worker pool exists for jobs that benefit from concurrency, but
// the sequential path is what a single CLI invocation runs by default.
func RunSequential(ctx context.Context, img *rimage.Image, cfg Config, resumeFrom int, resumeTable []codec.TransformRecord, checkpoint Checkpointer) ([]codec.TransformRecord, error) {
	table := make([]codec.TransformRecord, len(resumeTable))
	copy(table, resumeTable)
	memo := newDomainMemo()

	for r := resumeFrom; r < img.NumRanges(); r++ {
		select {
		case <-ctx.Done():
			if checkpoint != nil {
				if err := checkpoint(table); err != nil {
					slog.Warn("checkpoint on cancel failed", "error", err)
				}
			}
			return table, ctx.Err()
		default:
		}

		rec, err := encodeRange(img, memo, r)
		if err != nil {
			return nil, fmt.Errorf("encode range %d: %w", r, err)
		}
		table = append(table, rec)

		if cfg.ProgressEvery > 0 && (r+1)%cfg.ProgressEvery == 0 {
			slog.Info("encode progress", "range", r+1, "numRanges", img.NumRanges())
		}
		if cfg.CheckpointEvery > 0 && checkpoint != nil && (r+1)%cfg.CheckpointEvery == 0 {
			if err := checkpoint(table); err != nil {
				slog.Warn("periodic checkpoint failed", "error", err)
			}
		}
	}
	return table, nil
}

// RunParallel partitions the range scan across cfg.Workers goroutines,
// per spec.md §5: each range's result depends only on the immutable
// source image and the shared write-once domain memo, so ranges can be
// computed independently and reassembled in index order afterward. Tie
// breaks stay deterministic because encodeRange's domain/isometry
// selection does not depend on execution order.
//
// Like RunSequential, it honors cfg.CheckpointEvery and flushes on
// cancellation. Since the .ifs.part format implies range index by
// position (resume_from = len(table), spec.md §4.4), a checkpoint can
// only ever contain the contiguous completed prefix starting at range 0
// — completed-out-of-order ranges past the first gap are held back from
// any given checkpoint until the gap closes, but are never discarded.
func RunParallel(ctx context.Context, img *rimage.Image, cfg Config, resumeFrom int, resumeTable []codec.TransformRecord, checkpoint Checkpointer) ([]codec.TransformRecord, error) {
	workers := cfg.Workers
	if workers < 2 {
		return RunSequential(ctx, img, cfg, resumeFrom, resumeTable, checkpoint)
	}

	numRanges := img.NumRanges()
	results := make([]codec.TransformRecord, numRanges)
	copy(results, resumeTable)
	filled := make([]bool, numRanges)
	for i := 0; i < resumeFrom; i++ {
		filled[i] = true
	}
	memo := newDomainMemo()

	jobs := make(chan int)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	var completed int64
	var mu sync.Mutex
	contigDone := resumeFrom
	lastCheckpoint := resumeFrom

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// prefixLocked returns a copy of results[:n]. Callers must hold mu.
	prefixLocked := func(n int) []codec.TransformRecord {
		prefix := make([]codec.TransformRecord, n)
		copy(prefix, results[:n])
		return prefix
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				rec, err := encodeRange(img, memo, r)
				if err != nil {
					errs <- fmt.Errorf("encode range %d: %w", r, err)
					cancel()
					return
				}

				mu.Lock()
				results[r] = rec
				filled[r] = true
				completed++
				n := completed
				for contigDone < numRanges && filled[contigDone] {
					contigDone++
				}
				var toFlush []codec.TransformRecord
				if cfg.CheckpointEvery > 0 && contigDone-lastCheckpoint >= cfg.CheckpointEvery {
					lastCheckpoint += cfg.CheckpointEvery
					toFlush = prefixLocked(lastCheckpoint)
				}
				mu.Unlock()

				if cfg.ProgressEvery > 0 && n%int64(cfg.ProgressEvery) == 0 {
					slog.Info("encode progress", "completed", n, "numRanges", numRanges)
				}
				if toFlush != nil && checkpoint != nil {
					if err := checkpoint(toFlush); err != nil {
						slog.Warn("periodic checkpoint failed", "error", err)
					}
				}
			}
		}()
	}

feed:
	for r := resumeFrom; r < numRanges; r++ {
		select {
		case jobs <- r:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		mu.Lock()
		partial := prefixLocked(contigDone)
		mu.Unlock()
		if checkpoint != nil {
			if err := checkpoint(partial); err != nil {
				slog.Warn("checkpoint on cancel failed", "error", err)
			}
		}
		return partial, ctx.Err()
	}
	return results, nil
}
