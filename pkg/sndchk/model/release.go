package model

// Release is one candidate release within a ReleaseGroup (spec §3):
// identifier, its Media (in medium-position order), and distance/
// confidence aggregates computed by Reducer/ConfigSearch/Verifier.
// Invariant: media positions are unique.
type Release struct {
	ID               string
	Distance         int // aggregate distance; lower is a better match
	MinConfidence    uint32
	MetadataDistance int // sum of Levenshtein distances, spec §4.6.8
	media            childList[Medium]
}

// NewRelease returns an empty Release with the given identifier.
func NewRelease(id string) *Release { return &Release{ID: id} }

// AddMedium appends a deep copy of medium.
func (r *Release) AddMedium(medium Medium) *Medium { return r.media.Add(medium.clone()) }

// AddMediumByPosition returns the existing medium at position, or creates
// one.
func (r *Release) AddMediumByPosition(position int) *Medium {
	if m := r.FindMediumByPosition(position); m != nil {
		return m
	}
	return r.media.Add(*NewMedium(position))
}

// FindMediumByPosition returns the medium at the given position, or nil.
func (r *Release) FindMediumByPosition(position int) *Medium {
	i := r.media.FindIndex(func(m *Medium) bool { return m.Position == position })
	if i < 0 {
		return nil
	}
	return r.media.At(i)
}

// Media returns the live media.
func (r *Release) Media() []Medium { return r.media.All() }

// EraseMedium removes the medium at logical index i.
func (r *Release) EraseMedium(i int) { r.media.Erase(i) }

// ReconcileRecordingByID finds the recording elsewhere in r carrying id
// (e.g. the entry FingerprintService created, keyed only by recording id
// since it doesn't know which medium/track the recording belongs to until
// metadata completion runs, spec §4.6.2) and folds its fingerprint
// matches into target, removing the stale entry. No-op if none exists.
func (r *Release) ReconcileRecordingByID(id string, target *Recording) {
	if id == "" {
		return
	}
	for _, med := range r.media.All() {
		m := r.AddMediumByPosition(med.Position)
		if m.reconcileRecordingByID(id, target) {
			return
		}
	}
}

// SortMedia orders media ascending by position.
func (r *Release) SortMedia() {
	r.media.Sort(func(a, b *Medium) bool { return a.Position < b.Position })
}

// AggregateScore is the max, over all recordings on this release, of
// their fingerprint match score (spec §4.5 sort key for releases).
func (r *Release) AggregateScore() float64 {
	var max float64
	for _, m := range r.media.All() {
		for _, rec := range m.Recordings() {
			if s := rec.MaxScore(); s > max {
				max = s
			}
		}
	}
	return max
}

// StreamIndices returns the set of stream indices represented anywhere in
// this release (recordings' fingerprint matches plus any track-level
// stream assignment), used by Reducer §4.6.1/§4.6.4.
func (r *Release) StreamIndices() map[int]struct{} {
	out := map[int]struct{}{}
	for _, m := range r.media.All() {
		for _, rec := range m.Recordings() {
			for _, idx := range rec.StreamIndices() {
				out[idx] = struct{}{}
			}
		}
		for _, d := range m.Discs() {
			for _, t := range d.Tracks() {
				for _, idx := range t.StreamIndices() {
					out[idx] = struct{}{}
				}
			}
		}
	}
	return out
}

func (r *Release) clone() Release {
	cp := Release{ID: r.ID, Distance: r.Distance, MinConfidence: r.MinConfidence, MetadataDistance: r.MetadataDistance}
	for _, m := range r.media.All() {
		cp.media.Add(m.clone())
	}
	return cp
}

func (r *Release) merge(other *Release) {
	// Distance/MinConfidence/MetadataDistance are recomputed downstream by
	// Reducer/Verifier passes, not merged here.
	for _, om := range other.media.All() {
		m := r.AddMediumByPosition(om.Position)
		m.merge(&om)
	}
}
