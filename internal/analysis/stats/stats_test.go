package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetscope/packetscope/internal/analysis/types"
)

func record(index int, ptsMillis int64, size int64, keyframe bool) types.PacketRecord {
	return types.NewPacketRecord(index, types.NewRational(ptsMillis, 1000), size, keyframe)
}

func TestCompute_BasicScenario(t *testing.T) {
	records := []types.PacketRecord{
		record(0, 0, 100, true),
		record(1, 1000, 50, false),
		record(2, 2000, 3000, true),
	}

	snap := Compute(records, 3.0)

	assert.Equal(t, int64(50), snap.MinSize)
	assert.Equal(t, int64(3000), snap.MaxSize)
	assert.Equal(t, int64(1050), snap.AvgSize)
	assert.Equal(t, 2, snap.KeyframeCount)
	assert.InDelta(t, 66.67, snap.KeyframePercent, 0.01)
	assert.False(t, snap.IsAllIntra)
}

func TestCompute_Empty(t *testing.T) {
	snap := Compute(nil, 10.0)
	assert.Equal(t, Snapshot{}, snap)
	assert.False(t, snap.IsAllIntra)
	assert.Nil(t, snap.GOP)
}

func TestCompute_InvalidRecordsExcluded(t *testing.T) {
	records := []types.PacketRecord{
		record(0, 0, 100, true),
		types.NewPacketRecord(1, types.NewRational(1, 0), 9999, true), // no seconds
		record(2, 2000, 0, true),                                      // zero size
		record(3, 3000, 300, false),
	}

	snap := Compute(records, 4.0)
	assert.Equal(t, int64(100), snap.MinSize)
	assert.Equal(t, int64(300), snap.MaxSize)
	assert.Equal(t, int64(200), snap.AvgSize)
	assert.Equal(t, 1, snap.KeyframeCount)
}

func TestCompute_Bitrate(t *testing.T) {
	records := []types.PacketRecord{
		record(0, 0, 1000, true),
		record(1, 1000, 1000, false),
	}

	// 2000 bytes * 8 bits / 4 s = 4000 bps
	snap := Compute(records, 4.0)
	assert.Equal(t, int64(4000), snap.AvgBitrateBps)

	// Non-positive duration yields zero bitrate, everything else intact.
	snap = Compute(records, 0)
	assert.Equal(t, int64(0), snap.AvgBitrateBps)
	assert.Equal(t, int64(1000), snap.AvgSize)

	snap = Compute(records, -1)
	assert.Equal(t, int64(0), snap.AvgBitrateBps)
}

func TestCompute_AllIntra(t *testing.T) {
	var records []types.PacketRecord
	for i := 0; i < 10; i++ {
		records = append(records, record(i, int64(i*500), 1000, true))
	}

	snap := Compute(records, 5.0)
	assert.True(t, snap.IsAllIntra)
	assert.Equal(t, 10, snap.KeyframeCount)
	assert.InDelta(t, 100.0, snap.KeyframePercent, 0.001)
	assert.Nil(t, snap.GOP, "GOP metrics are meaningless for all-intra streams")
}

func TestCompute_AllIntraThresholdAbove90(t *testing.T) {
	// 10 of 11 keyframes = 90.9% > 90 → still all-intra.
	var records []types.PacketRecord
	for i := 0; i < 10; i++ {
		records = append(records, record(i, int64(i*100), 500, true))
	}
	records = append(records, record(10, 1000, 500, false))

	snap := Compute(records, 1.1)
	assert.True(t, snap.IsAllIntra)

	// Exactly 90% is not above the threshold.
	records = nil
	for i := 0; i < 9; i++ {
		records = append(records, record(i, int64(i*100), 500, true))
	}
	records = append(records, record(9, 900, 500, false))

	snap = Compute(records, 1.0)
	assert.False(t, snap.IsAllIntra)
}

func TestCompute_GOPMetrics(t *testing.T) {
	// Keyframes at positions 0, 4, 10 → GOP lengths 4 and 6.
	var records []types.PacketRecord
	for i := 0; i <= 12; i++ {
		keyframe := i == 0 || i == 4 || i == 10
		records = append(records, record(i, int64(i*100), 1000, keyframe))
	}

	snap := Compute(records, 1.3)
	require.NotNil(t, snap.GOP)
	assert.Equal(t, 2, snap.GOP.Count)
	assert.Equal(t, 4, snap.GOP.MinLength)
	assert.Equal(t, 6, snap.GOP.MaxLength)
	assert.InDelta(t, 5.0, snap.GOP.AvgLength, 0.001)
}

func TestCompute_GOPSumInvariant(t *testing.T) {
	// Sum of GOP lengths equals last keyframe position minus first.
	keyframeAt := map[int]bool{2: true, 7: true, 8: true, 20: true}
	var records []types.PacketRecord
	for i := 0; i < 25; i++ {
		records = append(records, record(i, int64(i*40), 800, keyframeAt[i]))
	}

	snap := Compute(records, 1.0)
	require.NotNil(t, snap.GOP)
	sum := snap.GOP.AvgLength * float64(snap.GOP.Count)
	assert.InDelta(t, float64(20-2), sum, 0.001)
}

func TestCompute_SingleKeyframeNoGOP(t *testing.T) {
	records := []types.PacketRecord{
		record(0, 0, 100, true),
		record(1, 100, 100, false),
		record(2, 200, 100, false),
	}

	snap := Compute(records, 0.3)
	assert.Equal(t, 1, snap.KeyframeCount)
	assert.Nil(t, snap.GOP)
}

func TestCompute_Idempotent(t *testing.T) {
	var records []types.PacketRecord
	for i := 0; i < 500; i++ {
		records = append(records, record(i, int64(i*33), int64(100+i*7), i%30 == 0))
	}

	first := Compute(records, 16.5)
	second := Compute(records, 16.5)
	assert.Equal(t, first, second)
}

func TestCompute_ConsistencyInvariant(t *testing.T) {
	var records []types.PacketRecord
	for i := 0; i < 100; i++ {
		records = append(records, record(i, int64(i*10), int64(1+(i*i)%4096), i%12 == 0))
	}

	snap := Compute(records, 1.0)
	assert.LessOrEqual(t, snap.MinSize, snap.AvgSize)
	assert.LessOrEqual(t, snap.AvgSize, snap.MaxSize)
	assert.GreaterOrEqual(t, snap.KeyframePercent, 0.0)
	assert.LessOrEqual(t, snap.KeyframePercent, 100.0)
}
