package reduce

import "github.com/accurasound/sndchk/pkg/sndchk/model"

// FilterIncomplete is pass 1 (spec §4.6.1): compute S, the set of stream
// indices appearing anywhere in the tree, then erase any release whose own
// represented-stream set is a strict subset of S, and erase any
// releasegroup left empty by that.
func FilterIncomplete(m *model.ResultModel) {
	s := m.AllMatchedStreams()

	for _, sg := range m.ReleaseGroups() {
		g := m.FindReleaseGroupByID(sg.ID)
		if g == nil {
			continue
		}
		releases := g.Releases()
		for ri := len(releases) - 1; ri >= 0; ri-- {
			if isStrictSubset(releases[ri].StreamIndices(), s) {
				g.EraseRelease(ri)
			}
		}
	}
	eraseEmptyGroups(m)
}

func eraseEmptyGroups(m *model.ResultModel) {
	groups := m.ReleaseGroups()
	for gi := len(groups) - 1; gi >= 0; gi-- {
		if groups[gi].ReleaseCount() == 0 {
			m.EraseReleaseGroup(gi)
		}
	}
}

func isStrictSubset(a, b map[int]struct{}) bool {
	if len(a) >= len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// HasMatchingDiscs is the pass-4 predicate (spec §4.6.4): every stream
// match on the release has at least one corresponding track, on some disc,
// with a nonzero-confidence matching checksum.
func HasMatchingDiscs(r *model.Release) bool {
	streams := r.StreamIndices()
	if len(streams) == 0 {
		return false
	}
	for idx := range streams {
		if !streamHasMatchingDisc(r, idx) {
			return false
		}
	}
	return true
}

func streamHasMatchingDisc(r *model.Release, streamIndex int) bool {
	for _, med := range r.Media() {
		for _, d := range med.Discs() {
			for _, t := range d.Tracks() {
				if t.HasStream(streamIndex) && t.HasMatchingChecksum() {
					return true
				}
			}
		}
	}
	return false
}

// PruneUnmatched is pass 5 (spec §4.6.5): if any release in the model
// satisfies HasMatchingDiscs, erase every release that does not.
func PruneUnmatched(m *model.ResultModel) {
	anyMatches := false
	for _, sg := range m.ReleaseGroups() {
		g := m.FindReleaseGroupByID(sg.ID)
		if g == nil {
			continue
		}
		for _, rel := range g.Releases() {
			r := findReleaseByID(g, rel.ID)
			if r != nil && HasMatchingDiscs(r) {
				anyMatches = true
			}
		}
	}
	if !anyMatches {
		return
	}

	for _, sg := range m.ReleaseGroups() {
		g := m.FindReleaseGroupByID(sg.ID)
		if g == nil {
			continue
		}
		releases := g.Releases()
		for ri := len(releases) - 1; ri >= 0; ri-- {
			r := findReleaseByID(g, releases[ri].ID)
			if r == nil || !HasMatchingDiscs(r) {
				g.EraseRelease(ri)
			}
		}
	}
	eraseEmptyGroups(m)
}

func findReleaseByID(g *model.ReleaseGroup, id string) *model.Release {
	releases := g.Releases()
	for i := range releases {
		if releases[i].ID == id {
			// AddReleaseByID returns the existing entry without copying when
			// already present, giving us a pointer into the live tree.
			return g.AddReleaseByID(id)
		}
	}
	return nil
}

// PrunePerfectDisc is pass 6 (spec §4.6.6): within a release, if some
// medium has a disc where every track has at least one matching checksum,
// erase the other discs on that medium. If every medium of a release ends
// up in that reduced state, erase the other releases in its releasegroup.
func PrunePerfectDisc(m *model.ResultModel) {
	for _, sg := range m.ReleaseGroups() {
		g := m.FindReleaseGroupByID(sg.ID)
		if g == nil {
			continue
		}
		releaseHasPerfectEverywhere := map[string]bool{}
		for _, rel := range g.Releases() {
			r := g.AddReleaseByID(rel.ID)
			releaseHasPerfectEverywhere[rel.ID] = reducePerfectDiscsInRelease(r)
		}

		anyFullyPerfect := false
		for _, v := range releaseHasPerfectEverywhere {
			if v {
				anyFullyPerfect = true
				break
			}
		}
		if !anyFullyPerfect {
			continue
		}
		releases := g.Releases()
		for ri := len(releases) - 1; ri >= 0; ri-- {
			if !releaseHasPerfectEverywhere[releases[ri].ID] {
				g.EraseRelease(ri)
			}
		}
	}
	eraseEmptyGroups(m)
}

// reducePerfectDiscsInRelease erases non-perfect discs on any medium that
// has a perfect disc, and reports whether every medium in the release now
// meets that condition.
func reducePerfectDiscsInRelease(r *model.Release) bool {
	media := r.Media()
	if len(media) == 0 {
		return false
	}
	everyMediumPerfect := true
	for _, med := range media {
		m := r.AddMediumByPosition(med.Position)
		if !reduceMediumToPerfectDisc(m) {
			everyMediumPerfect = false
		}
	}
	return everyMediumPerfect
}

func reduceMediumToPerfectDisc(med *model.Medium) bool {
	discs := med.Discs()
	perfectIdx := -1
	for i, d := range discs {
		if d.EveryTrackMatched() {
			perfectIdx = i
			break
		}
	}
	if perfectIdx < 0 {
		return false
	}
	for i := len(discs) - 1; i >= 0; i-- {
		if i != perfectIdx {
			med.EraseDisc(i)
		}
	}
	return true
}

// PruneConfidence is pass 7 (spec §4.6.7): track each release's
// min_confidence (the minimum, across its tracks, of v1-count+v2-count),
// then erase releases whose min_confidence is below the release-max.
func PruneConfidence(m *model.ResultModel) {
	type scored struct {
		id    string
		score uint32
	}
	for _, sg := range m.ReleaseGroups() {
		g := m.FindReleaseGroupByID(sg.ID)
		if g == nil {
			continue
		}
		var scores []scored
		for _, rel := range g.Releases() {
			r := g.AddReleaseByID(rel.ID)
			mc := releaseMinConfidence(r)
			r.MinConfidence = mc
			scores = append(scores, scored{id: rel.ID, score: mc})
		}
		if len(scores) == 0 {
			continue
		}
		var max uint32
		for _, s := range scores {
			if s.score > max {
				max = s.score
			}
		}
		releases := g.Releases()
		for ri := len(releases) - 1; ri >= 0; ri-- {
			for _, s := range scores {
				if s.id == releases[ri].ID && s.score < max {
					g.EraseRelease(ri)
					break
				}
			}
		}
	}
	eraseEmptyGroups(m)
}

func releaseMinConfidence(r *model.Release) uint32 {
	var min uint32
	seen := false
	for _, med := range r.Media() {
		for _, d := range med.Discs() {
			for _, t := range d.Tracks() {
				if !seen || t.MaxConfidence < min {
					min = t.MaxConfidence
					seen = true
				}
			}
		}
	}
	if !seen {
		return 0
	}
	return min
}
