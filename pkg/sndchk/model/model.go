package model

// ResultModel is the root of the candidate-result tree, one per run (spec
// §3). Invariant: releasegroup identifiers are unique.
type ResultModel struct {
	releaseGroups    childList[ReleaseGroup]
	streamMatchCount map[int]int
}

// New returns an empty ResultModel.
func New() *ResultModel {
	return &ResultModel{streamMatchCount: make(map[int]int)}
}

// Clear resets the model without deallocating underlying storage (spec
// §4.5).
func (m *ResultModel) Clear() {
	m.releaseGroups.Clear()
	m.streamMatchCount = make(map[int]int)
}

// AddReleaseGroup appends a deep copy of group.
func (m *ResultModel) AddReleaseGroup(group ReleaseGroup) *ReleaseGroup {
	return m.releaseGroups.Add(group.clone())
}

// AddReleaseGroupByID returns the existing group with id, or creates one
// (spec §4.5 add_child_by_id).
func (m *ResultModel) AddReleaseGroupByID(id string) *ReleaseGroup {
	if i := m.releaseGroups.FindIndex(func(g *ReleaseGroup) bool { return g.ID == id }); i >= 0 {
		return m.releaseGroups.At(i)
	}
	return m.releaseGroups.Add(*NewReleaseGroup(id))
}

// FindReleaseGroupByID returns the group with id, or nil.
func (m *ResultModel) FindReleaseGroupByID(id string) *ReleaseGroup {
	i := m.releaseGroups.FindIndex(func(g *ReleaseGroup) bool { return g.ID == id })
	if i < 0 {
		return nil
	}
	return m.releaseGroups.At(i)
}

// ReleaseGroups returns the live releasegroups.
func (m *ResultModel) ReleaseGroups() []ReleaseGroup { return m.releaseGroups.All() }

// EraseReleaseGroup removes the releasegroup at logical index i (spec
// §4.5 erase_child).
func (m *ResultModel) EraseReleaseGroup(i int) { m.releaseGroups.Erase(i) }

// SortReleaseGroups orders releasegroups ascending by distance (spec
// §4.5 sort keys).
func (m *ResultModel) SortReleaseGroups() {
	m.releaseGroups.Sort(func(a, b *ReleaseGroup) bool { return a.Distance < b.Distance })
}

// RecordStreamMatch increments the per-stream match counter, used for
// Reducer §4.6.1's "set of stream indices that appear anywhere in the
// tree."
func (m *ResultModel) RecordStreamMatch(streamIndex int) {
	m.streamMatchCount[streamIndex]++
}

// StreamMatchCount returns a copy of the per-stream match counters.
func (m *ResultModel) StreamMatchCount() map[int]int {
	out := make(map[int]int, len(m.streamMatchCount))
	for k, v := range m.streamMatchCount {
		out[k] = v
	}
	return out
}

// AllMatchedStreams returns the set of stream indices appearing anywhere
// in the tree — recomputed fresh from the tree rather than trusted from
// streamMatchCount, since Reducer passes erase nodes without updating that
// counter (spec §4.6.1 builds "the set S of stream indices that appear
// anywhere in the tree").
func (m *ResultModel) AllMatchedStreams() map[int]struct{} {
	out := map[int]struct{}{}
	for _, g := range m.releaseGroups.All() {
		for _, r := range g.Releases() {
			for idx := range r.StreamIndices() {
				out[idx] = struct{}{}
			}
		}
	}
	return out
}

// Merge recursively unions other into m by identifier, taking per-leaf
// score-max at matching streams (spec §4.5).
func (m *ResultModel) Merge(other *ResultModel) {
	for _, og := range other.releaseGroups.All() {
		g := m.AddReleaseGroupByID(og.ID)
		g.merge(&og)
	}
	for idx, count := range other.streamMatchCount {
		m.streamMatchCount[idx] += count
	}
}

// Permute reorders the per-stream matches of every release according to a
// caller-supplied 1-1 mapping from old stream index to new stream index
// (spec §4.5).
func (m *ResultModel) Permute(perm map[int]int) {
	for gi := range m.releaseGroups.items[:m.releaseGroups.size] {
		g := &m.releaseGroups.items[gi]
		for ri := range g.releases.items[:g.releases.size] {
			r := &g.releases.items[ri]
			for mi := range r.media.items[:r.media.size] {
				med := &r.media.items[mi]
				for reci := range med.recordings.items[:med.recordings.size] {
					rec := &med.recordings.items[reci]
					for fi := range rec.fingerprints.items[:rec.fingerprints.size] {
						rec.fingerprints.items[fi].RemapStreams(perm)
					}
				}
				for di := range med.discs.items[:med.discs.size] {
					d := &med.discs.items[di]
					for ti := range d.tracks.items[:d.tracks.size] {
						t := &d.tracks.items[ti]
						for si := range t.streamIndices.items[:t.streamIndices.size] {
							if to, ok := perm[t.streamIndices.items[si]]; ok {
								t.streamIndices.items[si] = to
							}
						}
					}
				}
			}
		}
	}
	remapped := make(map[int]int, len(m.streamMatchCount))
	for idx, count := range m.streamMatchCount {
		to := idx
		if v, ok := perm[idx]; ok {
			to = v
		}
		remapped[to] += count
	}
	m.streamMatchCount = remapped
}

// Dump renders a diagnostic indented tree view (spec §4.5).
func (m *ResultModel) Dump() string {
	return dumpModel(m)
}
