// Package sndchk is the top-level entry point wiring RateLimiter, Cache,
// Fingersum, Mediator, ResultModel, Reducer, ConfigSearch, and Verifier
// into the single pipeline of spec §2: input streams → fingerprints →
// candidate releases → reduced tree → verified, ranked releases.
package sndchk

import (
	"context"
	"fmt"

	"github.com/accurasound/sndchk/internal/workpool"
	"github.com/accurasound/sndchk/pkg/sndchk/fingersum"
	"github.com/accurasound/sndchk/pkg/sndchk/logx"
	"github.com/accurasound/sndchk/pkg/sndchk/mediator"
	"github.com/accurasound/sndchk/pkg/sndchk/model"
	"github.com/accurasound/sndchk/pkg/sndchk/reduce"
	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
	"github.com/accurasound/sndchk/pkg/sndchk/verify"
)

// Run executes the full pipeline over inputs and returns the resulting
// ResultModel (zero or more ReleaseGroups, sorted best-match first) plus
// the reduce.Context it was reduced against — a caller rendering
// output.Report needs both.
//
// Run registers no candidate offsets on any stream or disc, so
// verify.Release makes no AccurateRip/EAC lookups and the tracks in the
// returned model carry no checksum evidence.
//
// A fatal error (sndchkerr.Fatal: resource exhaustion, a clock failure)
// aborts the run and is returned directly. Per-stream decode failures and
// per-disc/per-release verification failures are tolerated — the run
// keeps going with whatever survives — and are only logged (spec §7).
func Run(ctx context.Context, inputs []Input, opts ...Option) (*model.ResultModel, reduce.Context, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	log := logx.Get().With(logx.Fields{"component": "sndchk"})

	med := mediator.New(mediator.Config{
		UserAgent:            cfg.UserAgent,
		FingerprintKey:       cfg.FingerprintAPIKey,
		AccurateRipLocalHost: cfg.AccurateRipLocalHost,
		EACLocalHost:         cfg.EACLocalHost,
	})
	med.Start(ctx)
	defer med.Shutdown()

	streams := make(map[int]*fingersum.StreamCtx, len(inputs))
	for i, in := range inputs {
		streams[i] = fingersum.New(in.Source, cfg.SampleRate, cfg.Fingerprinter)
	}

	type fpResult struct {
		durationS float64
		id        string
	}
	results, err := workpool.Map(ctx, cfg.Workers, len(inputs), func(ctx context.Context, i int) (fpResult, error) {
		durationS, id, err := streams[i].Fingerprint()
		return fpResult{durationS: durationS, id: id}, err
	})
	if err != nil {
		return nil, reduce.Context{}, err
	}

	for i, r := range results {
		if r.Err != nil {
			log.WithField("stream", i).Warnf("fingerprinting failed, stream dropped: %v", r.Err)
			continue
		}
		med.Fingerprint.Submit(mediator.FingerprintQuery{
			StreamIndex: i,
			Fingerprint: r.Value.id,
			DurationS:   int(r.Value.durationS + 0.5),
		})
	}

	seed, err := med.Fingerprint.Query(ctx)
	if err != nil {
		if sndchkerr.Fatal(err) {
			return nil, reduce.Context{}, err
		}
		log.Warnf("fingerprint service query failed: %v", err)
		seed = model.New()
	}

	releaseMetadata, discTOCs, discIdentities, err := fetchMetadata(ctx, med, seed, log)
	if err != nil {
		return nil, reduce.Context{}, err
	}

	reduceCtx := reduce.Context{
		Streams:  streamInfos(inputs, streams),
		DiscTOCs: discTOCs,
		Metadata: releaseMetadata,
	}
	reduce.RunAll(seed, reduceCtx)

	streamSectors := make(map[int]uint32, len(streams))
	for i, s := range streams {
		streamSectors[i] = s.Sectors()
	}
	trackSectors := make(map[string]map[int]uint32, len(discTOCs))
	for discID, toc := range discTOCs {
		trackSectors[discID] = toc.TrackSectorLengths
	}

	for _, sg := range seed.ReleaseGroups() {
		g := seed.FindReleaseGroupByID(sg.ID)
		if g == nil {
			continue
		}
		var groupBest int
		first := true
		for _, rel := range g.Releases() {
			r := g.AddReleaseByID(rel.ID)
			if verr := verify.Release(ctx, med, r, streams, discIdentities, streamSectors, trackSectors); verr != nil {
				if sndchkerr.Fatal(verr) {
					return nil, reduce.Context{}, verr
				}
				log.WithField("release", r.ID).Warnf("verification failed: %v", verr)
			}
			r.Distance = r.MetadataDistance
			if first || r.Distance < groupBest {
				groupBest = r.Distance
				first = false
			}
		}
		g.Distance = groupBest
		g.SortReleases()
	}
	seed.SortReleaseGroups()

	return seed, reduceCtx, nil
}

// fetchMetadata submits one metadata-service query per release surfaced by
// the fingerprint-matching pass, blocks for every response, and folds each
// into the three pieces the Reducer/Verifier need: the release's canonical
// media/track layout, the disc TOCs its media's candidate discs carry, and
// each disc's derived AccurateRip/EAC identity.
func fetchMetadata(ctx context.Context, med *mediator.Mediator, seed *model.ResultModel, log *logx.Scoped) (map[string]reduce.ReleaseMetadata, map[string]reduce.DiscTOC, map[string]verify.DiscIdentity, error) {
	metadata := make(map[string]reduce.ReleaseMetadata)
	discTOCs := make(map[string]reduce.DiscTOC)
	identities := make(map[string]verify.DiscIdentity)

	queries := make(map[string]mediator.MetadataQuery)
	for _, g := range seed.ReleaseGroups() {
		for _, rel := range g.Releases() {
			queries[rel.ID] = mediator.MetadataQuery{
				Entity:  "release",
				ID:      rel.ID,
				IncList: []string{"artist-credits", "discids", "media", "recordings"},
			}
		}
	}
	for _, q := range queries {
		med.Metadata.Submit(q)
	}
	for releaseID, q := range queries {
		mbRelease, ok, err := med.Metadata.Get(ctx, q, releaseID)
		if err != nil {
			if sndchkerr.Fatal(err) {
				return nil, nil, nil, err
			}
			log.WithField("release", releaseID).Warnf("metadata lookup failed: %v", err)
			continue
		}
		if !ok {
			continue
		}
		metadata[releaseID] = toReleaseMetadata(*mbRelease)
		for _, medium := range mbRelease.Media {
			for _, disc := range medium.Discs {
				discTOCs[disc.ID] = reduce.DiscTOC{TrackSectorLengths: disc.TrackSectorLengths()}
				identities[disc.ID] = verify.DiscIdentity{
					AccurateRip: mediator.DeriveAccurateRipIdentity(disc.DiscOffsets()),
					EACDiscID:   disc.ID,
				}
			}
		}
	}
	return metadata, discTOCs, identities, nil
}

func toReleaseMetadata(mb mediator.MBRelease) reduce.ReleaseMetadata {
	out := reduce.ReleaseMetadata{
		Title:  mb.Title,
		Artist: artistCreditName(mb.ArtistCredit),
	}
	for _, medium := range mb.Media {
		mm := reduce.MediumMetadata{Position: medium.Position, Format: medium.Format}
		for _, disc := range medium.Discs {
			mm.DiscIDs = append(mm.DiscIDs, disc.ID)
		}
		for _, track := range medium.Tracks {
			mm.Tracks = append(mm.Tracks, reduce.TrackMetadata{
				Position:      track.Position,
				RecordingID:   track.Recording.ID,
				RecordingName: track.Recording.Title,
			})
		}
		out.Media = append(out.Media, mm)
	}
	return out
}

func artistCreditName(credits []mediator.MBArtistCredit) string {
	var name string
	for _, c := range credits {
		name += c.Name
	}
	return name
}

func streamInfos(inputs []Input, streams map[int]*fingersum.StreamCtx) map[int]reduce.StreamInfo {
	out := make(map[int]reduce.StreamInfo, len(inputs))
	for i, in := range inputs {
		s, ok := streams[i]
		if !ok {
			continue
		}
		out[i] = reduce.StreamInfo{Sectors: s.Sectors(), Tags: in.Tags}
	}
	return out
}

// Summary is a one-line human-readable description of a Run result,
// mirroring the kind of status line the teacher's CLI prints after a
// command completes.
func Summary(m *model.ResultModel) string {
	groups := m.ReleaseGroups()
	if len(groups) == 0 {
		return "no candidate releases found"
	}
	return fmt.Sprintf("%d candidate release group(s) found", len(groups))
}
