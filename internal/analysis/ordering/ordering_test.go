package ordering

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetscope/packetscope/internal/analysis/types"
)

func record(index int, ptsMillis int64, size int64) types.PacketRecord {
	return types.NewPacketRecord(index, types.NewRational(ptsMillis, 1000), size, false)
}

func TestReorder_DecodeOrderInput(t *testing.T) {
	// Decode-order arrival: keyframe at t=2 first, then t=0, t=1.
	input := []types.PacketRecord{
		record(0, 2000, 300),
		record(1, 0, 100),
		record(2, 1000, 200),
	}

	got := Reorder(input)
	require.Len(t, got, 3)

	for i, wantMillis := range []int64{0, 1000, 2000} {
		assert.Equal(t, i, got[i].Index)
		assert.Equal(t, wantMillis, got[i].Timestamp.Num)
	}

	// Input untouched.
	assert.Equal(t, int64(2000), input[0].Timestamp.Num)
	assert.Equal(t, 0, input[0].Index)
}

func TestReorder_Empty(t *testing.T) {
	assert.Empty(t, Reorder(nil))
	assert.Empty(t, Reorder([]types.PacketRecord{}))
}

func TestReorder_Stability(t *testing.T) {
	// Equal timestamps must preserve relative input order; sizes act as
	// identity markers.
	input := []types.PacketRecord{
		record(0, 500, 1),
		record(1, 500, 2),
		record(2, 100, 3),
		record(3, 500, 4),
	}

	got := Reorder(input)
	require.Len(t, got, 4)
	assert.Equal(t, int64(3), got[0].SizeBytes)
	assert.Equal(t, int64(1), got[1].SizeBytes)
	assert.Equal(t, int64(2), got[2].SizeBytes)
	assert.Equal(t, int64(4), got[3].SizeBytes)
}

func TestReorder_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	input := make([]types.PacketRecord, 200)
	for i := range input {
		input[i] = record(i, rng.Int63n(10000), rng.Int63n(5000)+1)
	}

	once := Reorder(input)
	twice := Reorder(once)
	assert.Equal(t, once, twice)
}

func TestReorder_AlreadySorted(t *testing.T) {
	input := []types.PacketRecord{
		record(7, 0, 10),
		record(9, 1000, 20),
		record(4, 2000, 30),
	}

	got := Reorder(input)
	for i := range got {
		assert.Equal(t, i, got[i].Index)
		assert.Equal(t, input[i].Timestamp, got[i].Timestamp)
	}
}

func TestReorder_MixedTimeBases(t *testing.T) {
	input := []types.PacketRecord{
		types.NewPacketRecord(0, types.NewRational(1, 2), 10, false),     // 0.5s
		types.NewPacketRecord(1, types.NewRational(250, 1000), 20, false), // 0.25s
		types.NewPacketRecord(2, types.NewRational(3, 4), 30, false),     // 0.75s
	}

	got := Reorder(input)
	assert.Equal(t, int64(20), got[0].SizeBytes)
	assert.Equal(t, int64(10), got[1].SizeBytes)
	assert.Equal(t, int64(30), got[2].SizeBytes)
}
