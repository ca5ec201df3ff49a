// Package ordering normalizes a raw packet list into presentation-time
// order. Container demuxers hand packets out in decode order, which
// differs from presentation order whenever the stream carries B-frames.
package ordering

import (
	"sort"

	"github.com/packetscope/packetscope/internal/analysis/types"
)

// Reorder sorts records by timestamp and re-indexes them 0..N-1 in the
// new order. The sort is stable: records with equal timestamps keep
// their relative input order. The input slice is never mutated; the
// previous Index values are discarded.
func Reorder(records []types.PacketRecord) []types.PacketRecord {
	if len(records) == 0 {
		return []types.PacketRecord{}
	}

	out := make([]types.PacketRecord, len(records))
	copy(out, records)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Cmp(out[j].Timestamp) < 0
	})

	for i := range out {
		out[i] = out[i].WithIndex(i)
	}
	return out
}
