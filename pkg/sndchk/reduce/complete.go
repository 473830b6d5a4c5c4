package reduce

import "github.com/accurasound/sndchk/pkg/sndchk/model"

// CompleteRelease is pass 2 (spec §4.6.2). For every release with a
// matching entry in ctx.Metadata: (a) every medium/track the metadata
// names but the tree lacks is attached at its real position, reconciling
// in any fingerprint matches FingerprintService attached to that
// recording's id before the real position was known; (b) any recording
// left without a fingerprint match after that is given a dummy
// fingerprint carrying the indices of every stream still unmatched
// anywhere in the release, so later passes see it as a (low-confidence)
// candidate rather than an empty slot.
func CompleteRelease(m *model.ResultModel, ctx Context) {
	for _, sg := range m.ReleaseGroups() {
		g := m.FindReleaseGroupByID(sg.ID)
		if g == nil {
			continue
		}
		for _, rel := range g.Releases() {
			meta, ok := ctx.Metadata[rel.ID]
			if !ok {
				continue
			}
			r := g.AddReleaseByID(rel.ID)
			completeOneRelease(r, meta)
			attachDummyFingerprints(r, ctx)
		}
	}
}

func completeOneRelease(r *model.Release, meta ReleaseMetadata) {
	for _, medMeta := range meta.Media {
		med := r.AddMediumByPosition(medMeta.Position)
		if med.Format == "" {
			med.Format = medMeta.Format
		}
		for _, trackMeta := range medMeta.Tracks {
			rec := med.AddRecordingByPosition(trackMeta.Position)
			if rec.ID == "" {
				rec.ID = trackMeta.RecordingID
			}
			r.ReconcileRecordingByID(trackMeta.RecordingID, rec)
		}
	}
}

func attachDummyFingerprints(r *model.Release, ctx Context) {
	unmatched := unmatchedStreamsInRelease(r, ctx)
	if len(unmatched) == 0 {
		return
	}
	for _, med := range r.Media() {
		m := r.AddMediumByPosition(med.Position)
		for _, rec := range med.Recordings() {
			rp := m.AddRecordingByPosition(rec.Position)
			if len(rp.Fingerprints()) > 0 {
				continue
			}
			fp := rp.AddFingerprintByID("")
			for idx := range unmatched {
				fp.AddMatch(idx, 0)
			}
		}
	}
}

// unmatchedStreamsInRelease is every known stream (from ctx.Streams) not
// already represented somewhere in this release.
func unmatchedStreamsInRelease(r *model.Release, ctx Context) map[int]struct{} {
	represented := r.StreamIndices()
	out := map[int]struct{}{}
	for idx := range ctx.Streams {
		if _, ok := represented[idx]; !ok {
			out[idx] = struct{}{}
		}
	}
	return out
}

// ReleaseAddDiscs is pass 3 (spec §4.6.3). For every medium named in the
// release's metadata, and every disc candidate the metadata lists for it,
// the disc's per-position sector lengths are compared against the
// sector count of whichever stream was fingerprint-matched to that
// position's recording. A stream whose sector count doesn't match the
// disc, and that isn't also matched elsewhere in the release (so it isn't
// simply misassigned), disqualifies the entire candidate disc — it is
// never attached to the tree. A disc already attached to the medium is
// left as it is.
func ReleaseAddDiscs(m *model.ResultModel, ctx Context) {
	for _, sg := range m.ReleaseGroups() {
		g := m.FindReleaseGroupByID(sg.ID)
		if g == nil {
			continue
		}
		for _, rel := range g.Releases() {
			meta, ok := ctx.Metadata[rel.ID]
			if !ok {
				continue
			}
			r := g.AddReleaseByID(rel.ID)
			addDiscsForRelease(r, meta, ctx)
		}
	}
}

func addDiscsForRelease(r *model.Release, meta ReleaseMetadata, ctx Context) {
	for _, medMeta := range meta.Media {
		med := r.FindMediumByPosition(medMeta.Position)
		if med == nil {
			continue
		}
		for _, discID := range medMeta.DiscIDs {
			toc, ok := ctx.DiscTOCs[discID]
			if !ok {
				continue
			}
			attached := false
			for _, d := range med.Discs() {
				if d.ID == discID {
					attached = true
				}
			}
			if attached {
				continue
			}
			if candidate, ok := buildCandidateDisc(r, med, discID, toc, ctx); ok {
				med.AddDisc(*candidate)
			}
		}
	}
}

// buildCandidateDisc returns the disc to attach and true, or (nil, false)
// if any position's matched stream disqualifies the whole disc.
func buildCandidateDisc(r *model.Release, med *model.Medium, discID string, toc DiscTOC, ctx Context) (*model.Disc, bool) {
	disc := model.NewDisc(discID)
	for position, sectorLen := range toc.TrackSectorLengths {
		rec := med.FindRecordingByPosition(position)
		if rec == nil {
			continue
		}
		for _, idx := range rec.StreamIndices() {
			info, known := ctx.Streams[idx]
			sectorsMatch := known && info.Sectors == sectorLen
			if !sectorsMatch && !streamOccursElsewhere(r, idx, position) {
				return nil, false
			}
			t := disc.AddTrackByPosition(position)
			t.AddStreamIndex(idx)
		}
	}
	return disc, true
}

func streamOccursElsewhere(r *model.Release, idx, excludePosition int) bool {
	for _, med := range r.Media() {
		for _, rec := range med.Recordings() {
			if rec.Position == excludePosition {
				continue
			}
			for _, si := range rec.StreamIndices() {
				if si == idx {
					return true
				}
			}
		}
	}
	return false
}
