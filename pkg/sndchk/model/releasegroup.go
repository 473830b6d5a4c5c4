package model

// ReleaseGroup is a set of Releases the metadata service treats as
// editions of the same logical album (spec §3, glossary). Invariant:
// release identifiers are unique within the group.
type ReleaseGroup struct {
	ID       string
	Distance int
	releases childList[Release]
}

// NewReleaseGroup returns an empty ReleaseGroup with the given identifier.
func NewReleaseGroup(id string) *ReleaseGroup { return &ReleaseGroup{ID: id} }

// AddRelease appends a deep copy of release.
func (g *ReleaseGroup) AddRelease(release Release) *Release { return g.releases.Add(release.clone()) }

// AddReleaseByID returns the existing release with id, or creates one.
func (g *ReleaseGroup) AddReleaseByID(id string) *Release {
	if i := g.releases.FindIndex(func(r *Release) bool { return r.ID == id }); i >= 0 {
		return g.releases.At(i)
	}
	return g.releases.Add(*NewRelease(id))
}

// Releases returns the live releases.
func (g *ReleaseGroup) Releases() []Release { return g.releases.All() }

// EraseRelease removes the release at logical index i.
func (g *ReleaseGroup) EraseRelease(i int) { g.releases.Erase(i) }

// ReleaseCount returns the number of live releases.
func (g *ReleaseGroup) ReleaseCount() int { return g.releases.Len() }

// SortReleases orders releases ascending distance, then descending
// aggregate score, then ascending identifier (spec §4.5 sort keys).
func (g *ReleaseGroup) SortReleases() {
	g.releases.Sort(func(a, b *Release) bool {
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		sa, sb := a.AggregateScore(), b.AggregateScore()
		if sa != sb {
			return sa > sb
		}
		return a.ID < b.ID
	})
}

func (g *ReleaseGroup) clone() ReleaseGroup {
	cp := ReleaseGroup{ID: g.ID, Distance: g.Distance}
	for _, r := range g.releases.All() {
		cp.releases.Add(r.clone())
	}
	return cp
}

func (g *ReleaseGroup) merge(other *ReleaseGroup) {
	for _, or := range other.releases.All() {
		r := g.AddReleaseByID(or.ID)
		r.merge(&or)
	}
}
