// Package reduce implements the eight pure, idempotent passes of spec §4.6
// over a model.ResultModel: filtering incomplete releases, completing a
// release's tree from metadata, attaching/rejecting candidate discs by
// sector-length match, and pruning by match coverage, perfect-disc status,
// confidence, and metadata distance.
//
// No pass adds a releasegroup or release. Pass 2 (CompleteRelease) adds the
// media and recordings a release's metadata names, plus dummy fingerprints,
// and pass 3 (ReleaseAddDiscs) adds candidate discs; every other pass only
// erases.
package reduce

import "github.com/accurasound/sndchk/pkg/sndchk/model"

// StreamInfo is what the Reducer needs to know about one input stream
// beyond its tree position: its sector count (for §4.6.3's sector-length
// comparison) and its embedded tag metadata (for §4.6.8's distance pass).
type StreamInfo struct {
	Sectors uint32
	Tags    Tags
}

// Tags is the subset of a stream's embedded metadata the metadata-distance
// pass compares against a release's canonical metadata.
type Tags struct {
	Title, Artist, Album string
}

// DiscTOC is a candidate disc's table of contents: its per-position sector
// length, used by §4.6.3 to validate a stream's sector count against the
// position it was matched to.
type DiscTOC struct {
	TrackSectorLengths map[int]uint32
}

// ReleaseMetadata is the metadata-service's view of one release: its
// canonical media/track layout (for §4.6.2 completion) plus the fields
// §4.6.8 diffs against stream tags.
type ReleaseMetadata struct {
	Title        string
	Artist       string
	Media        []MediumMetadata
}

// MediumMetadata is one medium's canonical layout within a
// ReleaseMetadata.
type MediumMetadata struct {
	Position int
	Format   string
	DiscIDs  []string
	Tracks   []TrackMetadata
}

// TrackMetadata is one canonical recording slot.
type TrackMetadata struct {
	Position      int
	RecordingID   string
	RecordingName string
}

// Context carries everything the Reducer passes need beyond the tree
// itself: per-stream signal-engine facts and per-release canonical
// metadata (spec §4.6.2/§4.6.3/§4.6.8).
type Context struct {
	Streams  map[int]StreamInfo
	DiscTOCs map[string]DiscTOC
	Metadata map[string]ReleaseMetadata // keyed by release id
}

// RunAll applies the eight passes in spec order, once each. Each pass is
// idempotent; running RunAll twice in a row is a no-op on the second call.
func RunAll(m *model.ResultModel, ctx Context) {
	FilterIncomplete(m)
	CompleteRelease(m, ctx)
	ReleaseAddDiscs(m, ctx)
	PruneUnmatched(m)
	PrunePerfectDisc(m)
	PruneConfidence(m)
	PruneMetadata(m, ctx)
}
