// Package stats computes global size, bitrate, keyframe and GOP
// structure statistics for a finished analysis. All functions are pure:
// identical inputs always produce bit-identical snapshots.
package stats

import (
	"github.com/packetscope/packetscope/internal/analysis/types"
)

// Keyframe share above which a stream is classified all-intra. The
// threshold is deliberately below 100%: streams with one or two stray
// non-sync packets (often artifacts of malformed muxing) are still
// all-intra for any practical purpose.
const allIntraThresholdPercent = 90.0

// GOPMetrics describes the Group-Of-Pictures structure of a stream.
// A GOP length is the index distance between consecutive keyframes
// among valid records.
type GOPMetrics struct {
	Count     int     `json:"count"`
	MinLength int     `json:"min_length"`
	MaxLength int     `json:"max_length"`
	AvgLength float64 `json:"avg_length"`
}

// Snapshot holds the statistics of one finished analysis. Computed once,
// immutable thereafter.
type Snapshot struct {
	MinSize         int64       `json:"min_size"`
	MaxSize         int64       `json:"max_size"`
	AvgSize         int64       `json:"avg_size"`
	AvgBitrateBps   int64       `json:"avg_bitrate_bps"`
	KeyframeCount   int         `json:"keyframe_count"`
	KeyframePercent float64     `json:"keyframe_percent"`
	IsAllIntra      bool        `json:"is_all_intra"`
	GOP             *GOPMetrics `json:"gop,omitempty"`
}

// Compute derives a Snapshot from the ordered packet list. Only valid
// records participate; a list with no valid records yields the zero
// snapshot with IsAllIntra false. Malformed input degrades to zeros,
// never to an error.
func Compute(ordered []types.PacketRecord, durationSeconds float64) Snapshot {
	valid := filterValid(ordered)
	if len(valid) == 0 {
		return Snapshot{}
	}

	var snap Snapshot
	var totalBytes int64

	snap.MinSize = valid[0].SizeBytes
	snap.MaxSize = valid[0].SizeBytes
	for _, p := range valid {
		if p.SizeBytes < snap.MinSize {
			snap.MinSize = p.SizeBytes
		}
		if p.SizeBytes > snap.MaxSize {
			snap.MaxSize = p.SizeBytes
		}
		totalBytes += p.SizeBytes
		if p.IsKeyframe {
			snap.KeyframeCount++
		}
	}

	// Sizes are whole bytes: truncating integer division is intentional.
	snap.AvgSize = totalBytes / int64(len(valid))

	if durationSeconds > 0 {
		snap.AvgBitrateBps = int64(float64(totalBytes*8) / durationSeconds)
	}

	snap.KeyframePercent = float64(snap.KeyframeCount) / float64(len(valid)) * 100.0
	snap.IsAllIntra = snap.KeyframePercent > allIntraThresholdPercent

	if !snap.IsAllIntra && snap.KeyframeCount > 1 {
		snap.GOP = computeGOP(valid)
	}

	return snap
}

// computeGOP walks keyframe positions (not timestamps) within the valid
// sequence and aggregates consecutive index deltas.
func computeGOP(valid []types.PacketRecord) *GOPMetrics {
	var positions []int
	for i, p := range valid {
		if p.IsKeyframe {
			positions = append(positions, i)
		}
	}
	if len(positions) < 2 {
		return nil
	}

	m := &GOPMetrics{Count: len(positions) - 1}
	var total int
	for i := 1; i < len(positions); i++ {
		length := positions[i] - positions[i-1]
		if i == 1 || length < m.MinLength {
			m.MinLength = length
		}
		if length > m.MaxLength {
			m.MaxLength = length
		}
		total += length
	}
	m.AvgLength = float64(total) / float64(m.Count)
	return m
}

func filterValid(records []types.PacketRecord) []types.PacketRecord {
	valid := make([]types.PacketRecord, 0, len(records))
	for _, p := range records {
		if p.Valid() {
			valid = append(valid, p)
		}
	}
	return valid
}
