package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PhilipHarries/ifs-python/internal/codec"
	"github.com/PhilipHarries/ifs-python/internal/encoder"
	"github.com/PhilipHarries/ifs-python/internal/store"
)

// runJob executes an encode job in the background. If checkpointStore is
// not nil, periodic checkpoints are saved to it as the transform table
// grows.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	}); err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "input", job.Config.InputPath)

	rangeSize, domainSize := job.Config.RangeSize, job.Config.DomainSize
	if rangeSize <= 0 {
		rangeSize = 4
	}
	if domainSize <= 0 {
		domainSize = rangeSize * 2
	}

	img, header, err := loadSourceImage(job.Config.InputPath, rangeSize, domainSize)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	numRanges := img.NumRanges()
	slog.Info("Loaded source image", "job_id", jobID, "width", header.Width, "height", header.Height, "numRanges", numRanges)

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.Header = header
		j.NumRanges = numRanges
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	var traceWriter *store.TraceWriter
	if checkpointStore != nil {
		tw, err := store.NewTraceWriter("./data", jobID, len(job.Table) > 0)
		if err != nil {
			slog.Warn("Failed to create trace writer", "job_id", jobID, "error", err)
		} else {
			traceWriter = tw
			defer func() {
				if err := traceWriter.Close(); err != nil {
					slog.Warn("Failed to close trace writer", "job_id", jobID, "error", err)
				}
			}()
		}
	}

	start := time.Now()
	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, start, progressDone)
	defer close(progressDone)

	checkpoint := func(table []codec.TransformRecord) error {
		if checkpointStore == nil {
			return nil
		}
		cp := store.NewCheckpoint(jobID, header, table, job.Config)
		if err := checkpointStore.SaveCheckpoint(jobID, cp); err != nil {
			return err
		}
		if err := jm.UpdateJob(jobID, func(j *Job) {
			j.Table = table
			j.NextRange = len(table)
		}); err != nil {
			return err
		}
		if traceWriter != nil && len(table) > 0 {
			last := table[len(table)-1]
			entry := store.TraceEntry{
				RangeIndex:  len(table) - 1,
				Timestamp:   time.Now(),
				DomainIndex: last.DomainIndex,
				Isometry:    int(last.Isometry),
			}
			if err := traceWriter.Write(entry); err != nil {
				slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
			}
		}
		slog.Info("Checkpoint saved", "job_id", jobID, "nextRange", len(table), "numRanges", numRanges)
		return nil
	}

	encCfg := encoder.Config{
		Workers:         job.Config.Workers,
		CheckpointEvery: 64,
		ProgressEvery:   16,
	}

	var table []codec.TransformRecord
	if encCfg.Workers >= 2 {
		table, err = encoder.RunParallel(ctx, img, encCfg, job.NextRange, job.Table, checkpoint)
	} else {
		table, err = encoder.RunSequential(ctx, img, encCfg, job.NextRange, job.Table, checkpoint)
	}

	if err != nil {
		if ctx.Err() != nil {
			markJobCancelled(jm, jobID)
			return ctx.Err()
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	elapsed := time.Since(start)
	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Table = table
		j.NextRange = len(table)
		j.EndTime = &endTime
	}); err != nil {
		return err
	}

	rangesPerSec := float64(0)
	if elapsed.Seconds() > 0 {
		rangesPerSec = float64(numRanges) / elapsed.Seconds()
	}

	slog.Info("Job completed", "job_id", jobID, "elapsed", elapsed, "numRanges", numRanges, "ranges_per_second", rangesPerSec)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:        jobID,
		State:        StateCompleted,
		RangesDone:   numRanges,
		NumRanges:    numRanges,
		RangesPerSec: rangesPerSec,
		Timestamp:    time.Now(),
	})

	return nil
}

// monitorProgress periodically broadcasts progress events during encoding
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, startTime time.Time, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			elapsed := time.Since(startTime).Seconds()
			var rangesPerSec float64
			if elapsed > 0 && job.NextRange > 0 {
				rangesPerSec = float64(job.NextRange) / elapsed
			}

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:        jobID,
				State:        job.State,
				RangesDone:   job.NextRange,
				NumRanges:    job.NumRanges,
				RangesPerSec: rangesPerSec,
				Timestamp:    time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// saveCheckpoint persists the job's transform table so far. It is used by
// shutdown checkpointing; periodic checkpoints go through runJob's
// checkpoint closure.
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if len(job.Table) == 0 {
		slog.Debug("Skipping checkpoint, no ranges encoded yet", "job_id", jobID)
		return nil
	}

	cp := store.NewCheckpoint(jobID, job.Header, job.Table, job.Config)
	if err := checkpointStore.SaveCheckpoint(jobID, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved", "job_id", jobID, "nextRange", job.NextRange, "numRanges", job.NumRanges)
	return nil
}
