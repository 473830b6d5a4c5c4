package model

// Track is a disc-local slot (spec §3): a one-based position, the streams
// that passed a sector-length match against it, the checksum evidence
// folded in by the Verifier, and running confidence totals.
type Track struct {
	Position      int
	streamIndices childList[int]
	evidence      childList[ChecksumEvidence]
	MaxConfidence uint32
	TotalConfidence uint32
}

// NewTrack returns an empty Track at the given one-based position.
func NewTrack(position int) *Track { return &Track{Position: position} }

// AddStreamIndex records a stream that passed sector-length matching
// against this track, if not already present.
func (t *Track) AddStreamIndex(streamIndex int) {
	if t.streamIndices.FindIndex(func(s *int) bool { return *s == streamIndex }) >= 0 {
		return
	}
	t.streamIndices.Add(streamIndex)
}

// StreamIndices returns the streams matched to this track.
func (t *Track) StreamIndices() []int { return t.streamIndices.All() }

// HasStream reports whether streamIndex is recorded against this track.
func (t *Track) HasStream(streamIndex int) bool {
	return t.streamIndices.FindIndex(func(s *int) bool { return *s == streamIndex }) >= 0
}

// FoldEvidence merges a rip-verification count into this track's evidence
// at offset, creating the ChecksumEvidence entry if it doesn't exist yet,
// and updates running confidence totals (spec §4.8).
func (t *Track) FoldEvidence(offset int, v1inc, v2inc, eacInc uint32) {
	i := t.evidence.FindIndex(func(e *ChecksumEvidence) bool { return e.Offset == offset })
	var e *ChecksumEvidence
	if i >= 0 {
		e = t.evidence.At(i)
	} else {
		e = t.evidence.Add(ChecksumEvidence{Offset: offset})
	}
	e.V1Count += v1inc
	e.V2Count += v2inc
	e.EACCount += eacInc

	conf := e.Confidence()
	if conf > t.MaxConfidence {
		t.MaxConfidence = conf
	}
	t.TotalConfidence += v1inc + v2inc
}

// Evidence returns this track's checksum evidence entries.
func (t *Track) Evidence() []ChecksumEvidence { return t.evidence.All() }

// HasMatchingChecksum reports whether any evidence entry has nonzero
// confidence (used by Reducer §4.6.4/§4.6.6).
func (t *Track) HasMatchingChecksum() bool {
	for _, e := range t.evidence.All() {
		if e.Confidence() > 0 {
			return true
		}
	}
	return false
}

func (t *Track) clone() Track {
	cp := Track{Position: t.Position, MaxConfidence: t.MaxConfidence, TotalConfidence: t.TotalConfidence}
	for _, s := range t.streamIndices.All() {
		cp.streamIndices.Add(s)
	}
	for _, e := range t.evidence.All() {
		cp.evidence.Add(e)
	}
	return cp
}

// merge unions other into t: stream indices union, evidence counts take
// the max per offset (score-max-at-matching-streams generalizes to
// confidence-max for evidence, since evidence is itself a tally not a
// probability — spec §4.5 merge semantics).
func (t *Track) merge(other *Track) {
	for _, s := range other.streamIndices.All() {
		t.AddStreamIndex(s)
	}
	for _, oe := range other.evidence.All() {
		i := t.evidence.FindIndex(func(e *ChecksumEvidence) bool { return e.Offset == oe.Offset })
		if i < 0 {
			t.evidence.Add(oe)
			if oe.Confidence() > t.MaxConfidence {
				t.MaxConfidence = oe.Confidence()
			}
			continue
		}
		e := t.evidence.At(i)
		if oe.V1Count > e.V1Count {
			e.V1Count = oe.V1Count
		}
		if oe.V2Count > e.V2Count {
			e.V2Count = oe.V2Count
		}
		if oe.EACCount > e.EACCount {
			e.EACCount = oe.EACCount
		}
		if e.Confidence() > t.MaxConfidence {
			t.MaxConfidence = e.Confidence()
		}
	}
}
