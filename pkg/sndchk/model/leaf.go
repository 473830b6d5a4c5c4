package model

// StreamMatch is a (stream-index, score) pair owned by a Fingerprint.
// Score is in [0,1]; stream indices are unique within a Fingerprint (spec
// §3).
type StreamMatch struct {
	StreamIndex int
	Score       float64
}

// Fingerprint is an identified recording's fingerprint-service match: an
// opaque identifier plus the set of input streams it matched and at what
// score (spec §3).
type Fingerprint struct {
	ID      string
	matches childList[StreamMatch]
}

// NewFingerprint returns a Fingerprint with the given id (may be "" for a
// reduction-synthesized dummy fingerprint, spec §4.6.2).
func NewFingerprint(id string) *Fingerprint {
	return &Fingerprint{ID: id}
}

// AddMatch records a stream's score against this fingerprint, keeping the
// maximum score if the stream was already recorded (merge semantics, spec
// §4.5).
func (f *Fingerprint) AddMatch(streamIndex int, score float64) {
	if i := f.matches.FindIndex(func(m *StreamMatch) bool { return m.StreamIndex == streamIndex }); i >= 0 {
		if score > f.matches.At(i).Score {
			f.matches.At(i).Score = score
		}
		return
	}
	f.matches.Add(StreamMatch{StreamIndex: streamIndex, Score: score})
}

// Matches returns the live (stream-index, score) pairs.
func (f *Fingerprint) Matches() []StreamMatch { return f.matches.All() }

// MaxScore returns the highest score among this fingerprint's matches, or
// 0 if it has none.
func (f *Fingerprint) MaxScore() float64 {
	var max float64
	for _, m := range f.matches.All() {
		if m.Score > max {
			max = m.Score
		}
	}
	return max
}

// StreamIndices returns the set of stream indices this fingerprint covers.
func (f *Fingerprint) StreamIndices() []int {
	out := make([]int, 0, f.matches.Len())
	for _, m := range f.matches.All() {
		out = append(out, m.StreamIndex)
	}
	return out
}

// RemapStreams applies a 1-1 stream-index permutation to every match (spec
// §4.5 Permute).
func (f *Fingerprint) RemapStreams(perm map[int]int) {
	for i := 0; i < f.matches.Len(); i++ {
		m := f.matches.At(i)
		if to, ok := perm[m.StreamIndex]; ok {
			m.StreamIndex = to
		}
	}
}

// clone returns a deep copy, used by Add/Merge's deep-copy-append contract.
func (f *Fingerprint) clone() Fingerprint {
	cp := Fingerprint{ID: f.ID}
	for _, m := range f.matches.All() {
		cp.matches.Add(m)
	}
	return cp
}

// ChecksumEvidence is the per-(offset) rip-verification tally folded into
// a Track by the Verifier (spec §3, §4.8): non-negative counts of
// independent AccurateRip v1/v2 and EAC confirmations at this offset.
type ChecksumEvidence struct {
	Offset   int
	V1Count  uint32
	V2Count  uint32
	EACCount uint32
}

// Confidence is v1-count + v2-count, the unit §4.6.7/§4.7 rank by.
func (e ChecksumEvidence) Confidence() uint32 { return e.V1Count + e.V2Count }
