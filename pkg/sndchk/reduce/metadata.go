package reduce

import (
	"github.com/jhprks/damerau"
	"golang.org/x/text/cases"

	"github.com/accurasound/sndchk/pkg/sndchk/model"
)

var fold = cases.Fold()

func distance(a, b string) int {
	if a == "" && b == "" {
		return 0
	}
	return damerau.DamerauLevenshteinDistance(fold.String(a), fold.String(b))
}

// PruneMetadata is pass 8 (spec §4.6.8). Every release is scored by the
// sum of Levenshtein distances between its canonical (title, artist,
// album) fields and the tags embedded in the streams matched to it.
// Releases strictly worse than the group's best are erased, but only when
// the best scores zero and doing so wouldn't undo pass 5's
// (PruneUnmatched) guarantee that at least one release with matching
// discs survives.
func PruneMetadata(m *model.ResultModel, ctx Context) {
	for _, sg := range m.ReleaseGroups() {
		g := m.FindReleaseGroupByID(sg.ID)
		if g == nil {
			continue
		}
		releases := g.Releases()
		scores := make(map[string]int, len(releases))
		for _, rel := range releases {
			r := g.AddReleaseByID(rel.ID)
			d := releaseMetadataDistance(r, ctx)
			r.MetadataDistance = d
			scores[rel.ID] = d
		}
		if len(scores) == 0 {
			continue
		}
		best := minScore(scores)
		if best != 0 {
			continue
		}
		matchingCount := 0
		for _, rel := range releases {
			r := g.AddReleaseByID(rel.ID)
			if HasMatchingDiscs(r) {
				matchingCount++
			}
		}
		releases = g.Releases()
		for ri := len(releases) - 1; ri >= 0; ri-- {
			rel := releases[ri]
			if scores[rel.ID] == best {
				continue
			}
			r := g.AddReleaseByID(rel.ID)
			if HasMatchingDiscs(r) && matchingCount <= 1 {
				continue
			}
			g.EraseRelease(ri)
		}
	}
	eraseEmptyGroups(m)
}

func minScore(scores map[string]int) int {
	first := true
	var best int
	for _, v := range scores {
		if first || v < best {
			best = v
			first = false
		}
	}
	return best
}

// releaseMetadataDistance sums (title, artist, album) Levenshtein
// distances between this release's metadata and the tags of every stream
// matched into it.
func releaseMetadataDistance(r *model.Release, ctx Context) int {
	meta, ok := ctx.Metadata[r.ID]
	if !ok {
		return 0
	}
	total := 0
	for _, med := range r.Media() {
		for _, rec := range med.Recordings() {
			name := recordingName(meta, med.Position, rec.Position)
			for _, idx := range rec.StreamIndices() {
				info, known := ctx.Streams[idx]
				if !known {
					continue
				}
				total += distance(name, info.Tags.Title)
				total += distance(meta.Artist, info.Tags.Artist)
				total += distance(meta.Title, info.Tags.Album)
			}
		}
	}
	return total
}

func recordingName(meta ReleaseMetadata, mediumPosition, trackPosition int) string {
	for _, mm := range meta.Media {
		if mm.Position != mediumPosition {
			continue
		}
		for _, tm := range mm.Tracks {
			if tm.Position == trackPosition {
				return tm.RecordingName
			}
		}
	}
	return ""
}
