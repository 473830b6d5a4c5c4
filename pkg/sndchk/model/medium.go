package model

// Medium is one logical disc slot within a Release (spec §3): a one-based
// position, the candidate Discs physically matching it, and the
// metadata-service Recordings (track identities) it carries. Invariant:
// recording positions form a prefix of {1..N}.
type Medium struct {
	Position   int
	Format     string // e.g. "CD"; non-CD media are excluded from ConfigSearch's enumeration, via IsCD
	discs      childList[Disc]
	recordings childList[Recording]
}

// NewMedium returns an empty Medium at the given one-based position.
func NewMedium(position int) *Medium { return &Medium{Position: position} }

// AddDisc appends a deep copy of disc.
func (m *Medium) AddDisc(disc Disc) *Disc { return m.discs.Add(disc.clone()) }

// AddDiscByID returns the existing disc with id, or creates one.
func (m *Medium) AddDiscByID(id string) *Disc {
	if i := m.discs.FindIndex(func(d *Disc) bool { return d.ID == id }); i >= 0 {
		return m.discs.At(i)
	}
	return m.discs.Add(*NewDisc(id))
}

// Discs returns the live candidate discs.
func (m *Medium) Discs() []Disc { return m.discs.All() }

// EraseDisc removes the disc at logical index i.
func (m *Medium) EraseDisc(i int) { m.discs.Erase(i) }

// DiscCount returns the number of live candidate discs.
func (m *Medium) DiscCount() int { return m.discs.Len() }

// AddRecording appends a deep copy of rec.
func (m *Medium) AddRecording(rec Recording) *Recording { return m.recordings.Add(rec.clone()) }

// AddRecordingByPosition returns the existing recording at position, or
// creates an unassigned-id one (spec §4.6.2 "position-only entry").
func (m *Medium) AddRecordingByPosition(position int) *Recording {
	if r := m.FindRecordingByPosition(position); r != nil {
		return r
	}
	return m.recordings.Add(*NewRecording(position))
}

// FindRecordingByPosition returns the recording at position, or nil.
func (m *Medium) FindRecordingByPosition(position int) *Recording {
	i := m.recordings.FindIndex(func(r *Recording) bool { return r.Position == position })
	if i < 0 {
		return nil
	}
	return m.recordings.At(i)
}

// AddRecordingByID returns the existing recording carrying id, or creates
// one at an unassigned position (position is filled in once metadata
// completion learns it, spec §4.6.2). Used by FingerprintService, which
// knows a matched recording's identity but not yet its track position.
func (m *Medium) AddRecordingByID(id string) *Recording {
	if r := m.FindRecordingByID(id); r != nil {
		return r
	}
	rec := NewRecording(0)
	rec.ID = id
	return m.recordings.Add(*rec)
}

// FindRecordingByID returns the recording carrying id, or nil.
func (m *Medium) FindRecordingByID(id string) *Recording {
	i := m.recordings.FindIndex(func(r *Recording) bool { return r.ID == id })
	if i < 0 {
		return nil
	}
	return m.recordings.At(i)
}

// Recordings returns the live recordings, in current order (see Sort).
func (m *Medium) Recordings() []Recording { return m.recordings.All() }

// reconcileRecordingByID finds the recording in m carrying id, other than
// target, folds its fingerprints into target, and removes it. Returns
// whether a match was found. Used by Release.ReconcileRecordingByID to
// pull a fingerprint-matched recording out of whichever medium
// FingerprintService happened to attach it to.
//
// The merge must happen before the Erase: target may live in this same
// childList at a higher index than the stale entry, and Erase shifts
// every later element (target's included) down by one slot, so writing
// into target has to land before its storage moves.
func (m *Medium) reconcileRecordingByID(id string, target *Recording) bool {
	i := m.recordings.FindIndex(func(r *Recording) bool { return r.ID == id && r != target })
	if i < 0 {
		return false
	}
	stale := *m.recordings.At(i)
	target.merge(&stale)
	m.recordings.Erase(i)
	return true
}

// EraseRecording removes the recording at logical index i.
func (m *Medium) EraseRecording(i int) { m.recordings.Erase(i) }

// SortRecordings orders recordings ascending by position (spec §4.5 sort
// keys).
func (m *Medium) SortRecordings() {
	m.recordings.Sort(func(a, b *Recording) bool { return a.Position < b.Position })
}

// IsCD reports whether this medium's format identifies it as an audio CD;
// non-CD media (e.g. DVD) are skipped by ConfigSearch's enumerator
// (end-to-end scenario 3).
func (m *Medium) IsCD() bool { return m.Format == "" || m.Format == "CD" }

func (m *Medium) clone() Medium {
	cp := Medium{Position: m.Position, Format: m.Format}
	for _, d := range m.discs.All() {
		cp.discs.Add(d.clone())
	}
	for _, r := range m.recordings.All() {
		cp.recordings.Add(r.clone())
	}
	return cp
}

func (m *Medium) merge(other *Medium) {
	if m.Format == "" {
		m.Format = other.Format
	}
	for _, od := range other.discs.All() {
		d := m.AddDiscByID(od.ID)
		d.merge(&od)
	}
	for _, or := range other.recordings.All() {
		r := m.AddRecordingByPosition(or.Position)
		if r.ID == "" {
			r.ID = or.ID
		}
		r.merge(&or)
	}
}
