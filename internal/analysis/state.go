package analysis

import (
	"github.com/packetscope/packetscope/internal/analysis/types"
)

// Phase identifies where an analysis run is in its lifecycle.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseLoadingMetadata
	PhaseAnalyzing
	PhaseFinished
	PhaseFailed
)

// String returns the string representation of Phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoadingMetadata:
		return "loading_metadata"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseFinished:
		return "finished"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseFailed
}

// State is a snapshot of the analysis state machine. Payload fields are
// populated per phase: Progress during Analyzing, Packets/Metadata once
// Finished, Err once Failed. Snapshots are copied out under lock, so
// observers never see torn reads.
type State struct {
	Phase    Phase
	Progress float64

	// Finished payload. Packets are presentation-ordered and immutable
	// once published.
	Packets  []types.PacketRecord
	Metadata types.VideoMetadata

	// Failed payload.
	Err error
}
