package store

import (
	"fmt"
	"time"

	"github.com/PhilipHarries/ifs-python/internal/codec"
)

// JobConfig holds the configuration an encode job was started with. It is
// embedded in every checkpoint so a resume can validate that the job being
// continued actually matches the job that produced the checkpoint (spec.md
// §4.4: resuming against a different image or geometry is a hard error, not
// a silent reinterpretation).
type JobConfig struct {
	InputPath  string `json:"inputPath"`
	RangeSize  int    `json:"rangeSize"`
	DomainSize int    `json:"domainSize"`
	Workers    int    `json:"workers,omitempty"`
}

// Checkpoint is the persisted state of an in-progress encode: the image
// geometry, the job configuration, and the prefix of the transform table
// completed so far. Unlike the circle-fit optimizer this checkpoint does not
// need to reconstruct any optimizer-internal state on resume — each range's
// best transform is an independent, exhaustively-searched result, so resume
// simply continues the range scan from len(Table).
type Checkpoint struct {
	JobID     string               `json:"jobId"`
	Header    codec.Header         `json:"header"`
	Table     []codec.TransformRecord `json:"table"`
	NextRange int                  `json:"nextRange"`
	Timestamp time.Time            `json:"timestamp"`
	Config    JobConfig            `json:"config"`
}

// CheckpointInfo is checkpoint metadata without the (potentially large)
// transform table, used for cheap listing.
type CheckpointInfo struct {
	JobID      string    `json:"jobId"`
	NextRange  int       `json:"nextRange"`
	NumRanges  int       `json:"numRanges"`
	Timestamp  time.Time `json:"timestamp"`
	InputPath  string    `json:"inputPath"`
}

// NewCheckpoint builds a Checkpoint from current encoder state.
func NewCheckpoint(jobID string, header codec.Header, table []codec.TransformRecord, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:     jobID,
		Header:    header,
		Table:     table,
		NextRange: len(table),
		Timestamp: time.Now(),
		Config:    config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo.
func (c *Checkpoint) ToInfo(numRanges int) CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		NextRange: c.NextRange,
		NumRanges: numRanges,
		Timestamp: c.Timestamp,
		InputPath: c.Config.InputPath,
	}
}

// Validate checks the checkpoint's internal consistency.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if c.Header.Width <= 0 || c.Header.Height <= 0 {
		return &ValidationError{Field: "Header", Reason: "width and height must be positive"}
	}
	if c.NextRange != len(c.Table) {
		return &ValidationError{
			Field:  "NextRange",
			Reason: fmt.Sprintf("must equal len(Table): got %d, table has %d entries", c.NextRange, len(c.Table)),
		}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.InputPath == "" {
		return &ValidationError{Field: "Config.InputPath", Reason: "cannot be empty"}
	}
	if c.Config.RangeSize <= 0 {
		return &ValidationError{Field: "Config.RangeSize", Reason: "must be positive"}
	}
	if c.Config.DomainSize <= 0 {
		return &ValidationError{Field: "Config.DomainSize", Reason: "must be positive"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether this checkpoint can be resumed with the given
// config — same input image and same partition geometry.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.InputPath != config.InputPath {
		return &CompatibilityError{Field: "InputPath", Expected: c.Config.InputPath, Actual: config.InputPath}
	}
	if c.Config.RangeSize != config.RangeSize {
		return &CompatibilityError{
			Field:    "RangeSize",
			Expected: fmt.Sprintf("%d", c.Config.RangeSize),
			Actual:   fmt.Sprintf("%d", config.RangeSize),
		}
	}
	if c.Config.DomainSize != config.DomainSize {
		return &CompatibilityError{
			Field:    "DomainSize",
			Expected: fmt.Sprintf("%d", c.Config.DomainSize),
			Actual:   fmt.Sprintf("%d", config.DomainSize),
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint/config mismatch on resume.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
