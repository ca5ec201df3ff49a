package types

import "math"

// VideoMetadata describes the analyzed track. Read-only once loaded.
type VideoMetadata struct {
	DurationSeconds    float64 `json:"duration_seconds"`
	Codec              string  `json:"codec,omitempty"`
	FrameCountEstimate int64   `json:"frame_count_estimate,omitempty"`
	FileName           string  `json:"file_name,omitempty"`
	FilePath           string  `json:"file_path,omitempty"`
	FileSizeBytes      int64   `json:"file_size_bytes,omitempty"`
}

// Usable reports whether the metadata carries a finite positive duration.
func (m VideoMetadata) Usable() bool {
	return m.DurationSeconds > 0 &&
		!math.IsNaN(m.DurationSeconds) && !math.IsInf(m.DurationSeconds, 0)
}
