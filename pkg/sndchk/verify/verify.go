// Package verify implements spec §4.8's Verifier: for every disc with a
// known AccurateRip presence, fetch AccurateRip and EAC, fold their
// checksum confirmations into the matching tracks, and run ConfigSearch to
// commit the release's final (disc, track, stream) configuration.
package verify

import (
	"context"

	"github.com/accurasound/sndchk/pkg/sndchk/configsearch"
	"github.com/accurasound/sndchk/pkg/sndchk/fingersum"
	"github.com/accurasound/sndchk/pkg/sndchk/logx"
	"github.com/accurasound/sndchk/pkg/sndchk/mediator"
	"github.com/accurasound/sndchk/pkg/sndchk/model"
	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

// StreamTable resolves a stream index to the StreamCtx the main thread
// built for it during the fingerprinting/checksum phase (spec §5:
// StreamCtx is shared by reference and treated as immutable from here on).
type StreamTable map[int]*fingersum.StreamCtx

// DiscIdentity bundles the two external identities a disc needs to query
// the rip-verification services: the AccurateRip disc-identity tuple
// (derived from its table of contents, spec §6) and its EAC 28-character
// disc id.
type DiscIdentity struct {
	AccurateRip mediator.AccurateRipIdentity
	EACDiscID   string
}

// RipFetcher is the subset of Mediator the Verifier needs: the cached
// AccurateRip/EAC lookups. Narrowing to an interface keeps this package
// testable without a live Mediator or real network access, the same way
// fingersum.StreamSource narrows its decoder collaborator.
type RipFetcher interface {
	FetchAccurateRipCached(ctx context.Context, id mediator.AccurateRipIdentity) ([]mediator.AccurateRipRecord, error)
	FetchEACCached(ctx context.Context, discID string, nTracks int) (*mediator.EACResponse, error)
}

// Release runs the Verifier over every disc of r with a non-empty
// candidate offset set, then commits the best configuration via
// configsearch.Search. A network/timeout failure is fatal to the whole
// release (returned); a parse failure is fatal only to the offending
// disc's verification — the release is kept, just unverified for that
// disc (spec §4.8 failure semantics).
func Release(ctx context.Context, med RipFetcher, r *model.Release, streams StreamTable, identities map[string]DiscIdentity, streamSectors map[int]uint32, trackSectors map[string]map[int]uint32) error {
	log := logx.Get().With(logx.Fields{"component": "verify", "release": r.ID})

	for _, medSnap := range r.Media() {
		medium := r.FindMediumByPosition(medSnap.Position)
		if medium == nil {
			continue
		}
		for _, discSnap := range medium.Discs() {
			disc := medium.AddDiscByID(discSnap.ID)
			if !disc.HasOffsets() {
				continue
			}
			id, ok := identities[disc.ID]
			if !ok {
				continue
			}
			if err := verifyDisc(ctx, med, disc, streams, id, log); err != nil {
				if sndchkerr.Is(err, sndchkerr.KindParse) {
					log.WithField("disc", disc.ID).Warnf("disc verification failed (parse): %v", err)
					continue
				}
				return err
			}
		}
	}

	confidence := func(discID string, trackPosition, streamIndex int) (uint32, uint32) {
		return trackConfidence(r, discID, trackPosition)
	}
	cfg := configsearch.Search(r, streamSectors, trackSectors, confidence)
	if cfg != nil {
		applyConfiguration(r, cfg)
	}
	return nil
}

func trackConfidence(r *model.Release, discID string, trackPosition int) (uint32, uint32) {
	for _, med := range r.Media() {
		for _, d := range med.Discs() {
			if d.ID != discID {
				continue
			}
			for _, t := range d.Tracks() {
				if t.Position != trackPosition {
					continue
				}
				var v1, v2 uint32
				for _, e := range t.Evidence() {
					if e.V1Count > v1 {
						v1 = e.V1Count
					}
					if e.V2Count > v2 {
						v2 = e.V2Count
					}
				}
				return v1, v2
			}
		}
	}
	return 0, 0
}

// applyConfiguration commits ConfigSearch's winning (disc, track, stream)
// choice back onto the release: every other candidate disc on a medium
// that had a decision made is erased. Recordings are left as they are:
// ones not selected by any track are not removed.
func applyConfiguration(r *model.Release, cfg *configsearch.Configuration) {
	for _, ma := range cfg.Media {
		medium := r.FindMediumByPosition(ma.MediumPosition)
		if medium == nil {
			continue
		}
		discs := medium.Discs()
		for i := len(discs) - 1; i >= 0; i-- {
			if discs[i].ID != ma.DiscID {
				medium.EraseDisc(i)
			}
		}
	}
}

// verifyDisc fetches AccurateRip and EAC for one disc and folds their
// confirmation counts into the disc's tracks.
func verifyDisc(ctx context.Context, med RipFetcher, disc *model.Disc, streams StreamTable, id DiscIdentity, log *logx.Scoped) error {
	records, err := med.FetchAccurateRipCached(ctx, id.AccurateRip)
	if err != nil {
		return err
	}

	tracks := disc.Tracks()
	ordered := orderedTracks(tracks)

	for i, t := range ordered {
		self := streamForTrack(t, streams)
		if self == nil {
			continue
		}
		leader := neighborStream(ordered, i-1, streams)
		trailer := neighborStream(ordered, i+1, streams)
		pos := fingersum.Position{First: i == 0, Last: i == len(ordered)-1}

		triples, err := fingersum.ChecksumsAt(leader, self, trailer, pos, i+1)
		if err != nil {
			return err
		}

		track := disc.AddTrackByPosition(t.Position)
		for _, rec := range records {
			if int(rec.TrackCount) != len(ordered) || t.Position < 1 || t.Position > len(rec.Tracks) {
				continue
			}
			entry := rec.Tracks[t.Position-1]
			for _, triple := range triples {
				var v1, v2 uint32
				if triple.V1 == entry.CRC {
					v1 = uint32(entry.Confidence)
				}
				if triple.V2 == entry.CRC {
					v2 = uint32(entry.Confidence)
				}
				if v1 > 0 || v2 > 0 {
					track.FoldEvidence(triple.Offset, v1, v2, 0)
				}
			}
		}
	}

	eacResp, err := med.FetchEACCached(ctx, id.EACDiscID, len(ordered))
	if err != nil {
		return err
	}
	if eacResp == nil {
		return nil
	}
	foldEACEvidence(disc, ordered, streams, eacResp)
	return nil
}

func foldEACEvidence(disc *model.Disc, ordered []model.Track, streams StreamTable, resp *mediator.EACResponse) {
	for i, t := range ordered {
		if i >= len(resp.Tracks) {
			break
		}
		self := streamForTrack(t, streams)
		if self == nil {
			continue
		}
		track := disc.AddTrackByPosition(t.Position)
		for _, offset := range self.Offsets() {
			triples, err := fingersum.ChecksumsAt(nil, self, nil, fingersum.Position{}, i+1)
			if err != nil {
				continue
			}
			for _, triple := range triples {
				if triple.Offset != offset {
					continue
				}
				var eacCount uint32
				for _, entry := range resp.Tracks[i].Entries {
					if entry.CRC32 == triple.EACCRC32 || entry.CRC32 == triple.EACCRC32Skip {
						eacCount += entry.Count
					}
				}
				if eacCount > 0 {
					track.FoldEvidence(offset, 0, 0, eacCount)
				}
			}
		}
	}
}

func orderedTracks(tracks []model.Track) []model.Track {
	out := append([]model.Track(nil), tracks...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Position > out[j].Position; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func streamForTrack(t model.Track, streams StreamTable) *fingersum.StreamCtx {
	indices := t.StreamIndices()
	if len(indices) == 0 {
		return nil
	}
	return streams[indices[0]]
}

func neighborStream(ordered []model.Track, i int, streams StreamTable) *fingersum.StreamCtx {
	if i < 0 || i >= len(ordered) {
		return nil
	}
	return streamForTrack(ordered[i], streams)
}
