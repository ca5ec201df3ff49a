// Package viewport computes the zoom/pan visible time window and the
// display-ready downsampled packet series. All functions are pure and
// safe for concurrent use; they never mutate their inputs.
package viewport

import (
	"math"
	"sort"

	"github.com/packetscope/packetscope/internal/analysis/types"
)

const (
	// DefaultRenderWidth is the nominal chart width in pixels used to
	// decide whether aggregation is needed.
	DefaultRenderWidth = 800

	// DefaultMinPixelsPerPacket is the density below which packets are
	// aggregated into buckets. Below 0.5 px/packet more than two packets
	// land on the same pixel and individual bars stop being legible.
	DefaultMinPixelsPerPacket = 0.5
)

// Config carries the downsampling tuning knobs.
type Config struct {
	RenderWidth        int
	MinPixelsPerPacket float64
}

// DefaultConfig returns the nominal chart configuration.
func DefaultConfig() Config {
	return Config{
		RenderWidth:        DefaultRenderWidth,
		MinPixelsPerPacket: DefaultMinPixelsPerPacket,
	}
}

// VisibleRange maps a zoom factor and pan offset onto the visible time
// window over the given valid timestamps. Zoom is clamped to >= 1 and
// pan to [0,1]. Zoom of exactly 1 yields the full range regardless of
// pan. An empty input yields (0, 0).
func VisibleRange(timestamps []float64, zoom, pan float64) (start, end float64) {
	if len(timestamps) == 0 {
		return 0, 0
	}
	if zoom < 1 || math.IsNaN(zoom) {
		zoom = 1
	}
	if pan < 0 || math.IsNaN(pan) {
		pan = 0
	} else if pan > 1 {
		pan = 1
	}

	minT, maxT := timestamps[0], timestamps[0]
	for _, t := range timestamps[1:] {
		if t < minT {
			minT = t
		}
		if t > maxT {
			maxT = t
		}
	}

	fullSpan := maxT - minT
	visibleSpan := fullSpan / zoom
	maxPan := fullSpan - visibleSpan
	if maxPan < 0 {
		maxPan = 0
	}

	start = minT + maxPan*pan
	end = start + visibleSpan
	if end > maxT {
		end = maxT
	}
	return start, end
}

// Downsample aggregates the visible packets into at most targetBuckets
// peak-preserving buckets. Within each bucket only the packet with the
// largest size survives, so bitrate spikes a mean would wash out remain
// visible. Buckets with no packets are absent from the output. When the
// input already fits, or the bucket geometry degenerates (single-instant
// range, non-finite width), the input is returned unaggregated.
func Downsample(visible []types.PacketRecord, targetBuckets int) []types.PacketRecord {
	if targetBuckets <= 0 || len(visible) <= targetBuckets {
		return sortedByTimestamp(visible)
	}

	start, end := timeBounds(visible)
	span := end - start
	bucketWidth := span / float64(targetBuckets)
	if bucketWidth <= 0 || math.IsNaN(bucketWidth) || math.IsInf(bucketWidth, 0) {
		return sortedByTimestamp(visible)
	}

	// Sparse representation: zoomed-out views leave many buckets empty
	// and a map avoids allocating them.
	peaks := make(map[int]types.PacketRecord)
	for _, p := range visible {
		if !p.HasSeconds {
			continue
		}
		idx := int(math.Floor((p.Seconds - start) / bucketWidth))
		if idx < 0 {
			idx = 0
		} else if idx >= targetBuckets {
			idx = targetBuckets - 1
		}
		if best, ok := peaks[idx]; !ok || p.SizeBytes > best.SizeBytes {
			peaks[idx] = p
		}
	}

	out := make([]types.PacketRecord, 0, len(peaks))
	for _, p := range peaks {
		out = append(out, p)
	}
	return sortedByTimestamp(out)
}

// Series produces the display series for a zoom/pan pair: filter to the
// visible window, re-establish timestamp order, then aggregate only when
// packet density exceeds what the render width can show.
func Series(records []types.PacketRecord, zoom, pan float64, cfg Config) []types.PacketRecord {
	if cfg.RenderWidth <= 0 {
		cfg.RenderWidth = DefaultRenderWidth
	}
	if cfg.MinPixelsPerPacket <= 0 {
		cfg.MinPixelsPerPacket = DefaultMinPixelsPerPacket
	}

	valid := make([]types.PacketRecord, 0, len(records))
	var timestamps []float64
	for _, p := range records {
		if p.Valid() {
			valid = append(valid, p)
			timestamps = append(timestamps, p.Seconds)
		}
	}
	if len(valid) == 0 {
		return []types.PacketRecord{}
	}

	start, end := VisibleRange(timestamps, zoom, pan)

	visible := make([]types.PacketRecord, 0, len(valid))
	for _, p := range valid {
		if p.Seconds >= start && p.Seconds <= end {
			visible = append(visible, p)
		}
	}
	if len(visible) == 0 {
		return []types.PacketRecord{}
	}

	pixelsPerPacket := float64(cfg.RenderWidth) / float64(len(visible))
	if pixelsPerPacket >= cfg.MinPixelsPerPacket {
		return sortedByTimestamp(visible)
	}
	return Downsample(visible, cfg.RenderWidth)
}

func timeBounds(records []types.PacketRecord) (minT, maxT float64) {
	first := true
	for _, p := range records {
		if !p.HasSeconds {
			continue
		}
		if first {
			minT, maxT = p.Seconds, p.Seconds
			first = false
			continue
		}
		if p.Seconds < minT {
			minT = p.Seconds
		}
		if p.Seconds > maxT {
			maxT = p.Seconds
		}
	}
	return minT, maxT
}

// sortedByTimestamp returns a stably sorted copy. Ordering is normally
// established upstream, but filtered subsets are re-verified here.
func sortedByTimestamp(records []types.PacketRecord) []types.PacketRecord {
	out := make([]types.PacketRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Seconds < out[j].Seconds
	})
	return out
}
