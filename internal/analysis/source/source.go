// Package source defines the ingestion collaborator the analysis engine
// consumes: an ordered-but-not-necessarily-presentation-ordered stream
// of packet metadata plus one-time track metadata. Implementations must
// honor context cancellation mid-stream.
package source

import (
	"context"

	"github.com/packetscope/packetscope/internal/analysis/types"
)

// RawPacket is one packet tuple as yielded by a demuxer, before
// reordering and re-indexing.
type RawPacket struct {
	Timestamp  types.Rational
	SizeBytes  int64
	IsKeyframe bool
}

// Source yields packet metadata for exactly one video track. The engine
// makes no assumption about internal ordering (decode vs. presentation);
// reordering is always applied downstream.
type Source interface {
	// Open reads the track metadata. Called once, before Next.
	Open(ctx context.Context) (types.VideoMetadata, error)

	// Next returns the next packet. The second return value is false
	// when the stream is exhausted.
	Next(ctx context.Context) (RawPacket, bool, error)

	// Close releases the underlying resource. Safe to call more than once.
	Close() error
}

// SliceSource serves a fixed packet list, mainly for tests and for
// callers that already hold demuxed metadata in memory.
type SliceSource struct {
	Metadata types.VideoMetadata
	Records  []RawPacket

	// Err, when set, is returned after ErrAt packets have been served.
	Err   error
	ErrAt int

	pos int
}

// Open implements Source.
func (s *SliceSource) Open(ctx context.Context) (types.VideoMetadata, error) {
	s.pos = 0
	return s.Metadata, nil
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (RawPacket, bool, error) {
	if err := ctx.Err(); err != nil {
		return RawPacket{}, false, err
	}
	if s.Err != nil && s.pos >= s.ErrAt {
		return RawPacket{}, false, s.Err
	}
	if s.pos >= len(s.Records) {
		return RawPacket{}, false, nil
	}
	pkt := s.Records[s.pos]
	s.pos++
	return pkt, true, nil
}

// Close implements Source.
func (s *SliceSource) Close() error {
	return nil
}
