package types

// PacketRecord is one compressed video packet as seen by the analysis
// engine: position in presentation order, timestamp, size and whether the
// packet is a sync sample. Records are immutable once created; re-indexing
// produces new records rather than mutating in place.
type PacketRecord struct {
	Index      int      // Position in presentation order (assigned after sort)
	Timestamp  Rational // Authoritative time value
	Seconds    float64  // Derived once from Timestamp; meaningless if !HasSeconds
	HasSeconds bool     // False when the timestamp conversion was non-finite
	SizeBytes  int64    // Total compressed size
	IsKeyframe bool     // Independently decodable (sync sample)
}

// NewPacketRecord creates a record with its derived seconds value
// precomputed from the timestamp.
func NewPacketRecord(index int, ts Rational, sizeBytes int64, keyframe bool) PacketRecord {
	secs, ok := ts.Seconds()
	return PacketRecord{
		Index:      index,
		Timestamp:  ts,
		Seconds:    secs,
		HasSeconds: ok,
		SizeBytes:  sizeBytes,
		IsKeyframe: keyframe,
	}
}

// Valid reports whether the record participates in statistics and the
// viewport series. Invalid records stay in the raw list and still count
// toward total packet counts.
func (p PacketRecord) Valid() bool {
	return p.HasSeconds && p.SizeBytes > 0
}

// WithIndex returns a copy of the record with a new presentation index.
func (p PacketRecord) WithIndex(index int) PacketRecord {
	p.Index = index
	return p
}
