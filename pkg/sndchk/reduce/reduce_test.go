package reduce

import (
	"testing"

	"github.com/accurasound/sndchk/pkg/sndchk/model"
)

func buildReleaseWithStreams(m *model.ResultModel, groupID, releaseID string, streams ...int) *model.Release {
	g := m.AddReleaseGroupByID(groupID)
	r := g.AddReleaseByID(releaseID)
	med := r.AddMediumByPosition(1)
	for i, idx := range streams {
		rec := med.AddRecordingByPosition(i + 1)
		rec.ID = "rec"
		fp := rec.AddFingerprintByID("fp")
		fp.AddMatch(idx, 1.0)
	}
	return r
}

func TestFilterIncompleteErasesStrictSubsetReleases(t *testing.T) {
	m := model.New()
	buildReleaseWithStreams(m, "rg-1", "full", 0, 1)
	buildReleaseWithStreams(m, "rg-1", "partial", 0)

	FilterIncomplete(m)

	g := m.FindReleaseGroupByID("rg-1")
	if g == nil {
		t.Fatal("expected releasegroup to survive")
	}
	releases := g.Releases()
	if len(releases) != 1 || releases[0].ID != "full" {
		t.Fatalf("expected only the complete release to survive, got %v", releases)
	}
}

func TestFilterIncompleteIsIdempotent(t *testing.T) {
	m := model.New()
	buildReleaseWithStreams(m, "rg-1", "full", 0, 1)
	buildReleaseWithStreams(m, "rg-1", "partial", 0)

	FilterIncomplete(m)
	once := m.Dump()
	FilterIncomplete(m)
	twice := m.Dump()

	if once != twice {
		t.Fatalf("FilterIncomplete not idempotent:\n%q\nvs\n%q", once, twice)
	}
}

func TestFilterIncompleteErasesEmptiedGroup(t *testing.T) {
	m := model.New()
	r := buildReleaseWithStreams(m, "rg-1", "lonely", 0)
	// a second, wider release elsewhere makes "lonely" a strict subset.
	buildReleaseWithStreams(m, "rg-2", "wide", 0, 1)
	_ = r

	FilterIncomplete(m)

	if m.FindReleaseGroupByID("rg-1") != nil {
		t.Fatalf("expected rg-1 to be erased once its only release became a strict subset")
	}
	if m.FindReleaseGroupByID("rg-2") == nil {
		t.Fatalf("expected rg-2 (the wide release) to survive")
	}
}

func buildTrackWithEvidence(d *model.Disc, position int, streamIndex int, v1, v2 uint32) *model.Track {
	t := d.AddTrackByPosition(position)
	t.AddStreamIndex(streamIndex)
	if v1 > 0 || v2 > 0 {
		t.FoldEvidence(0, v1, v2, 0)
	}
	return t
}

func TestHasMatchingDiscsRequiresEveryStreamMatched(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	r := g.AddReleaseByID("r-1")
	med := r.AddMediumByPosition(1)
	rec := med.AddRecordingByPosition(1)
	rec.AddFingerprintByID("fp").AddMatch(0, 1.0)
	rec2 := med.AddRecordingByPosition(2)
	rec2.AddFingerprintByID("fp2").AddMatch(1, 1.0)

	d := med.AddDiscByID("disc-1")
	buildTrackWithEvidence(d, 1, 0, 5, 0)
	// stream 1 has no matching checksum anywhere.

	if HasMatchingDiscs(r) {
		t.Fatal("expected HasMatchingDiscs to be false while stream 1 is unmatched")
	}

	buildTrackWithEvidence(d, 2, 1, 3, 0)
	if !HasMatchingDiscs(r) {
		t.Fatal("expected HasMatchingDiscs to be true once every stream has a matching checksum")
	}
}

func TestPruneUnmatchedKeepsOnlyMatchingReleases(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")

	good := g.AddReleaseByID("good")
	gMed := good.AddMediumByPosition(1)
	gMed.AddRecordingByPosition(1).AddFingerprintByID("fp").AddMatch(0, 1.0)
	gDisc := gMed.AddDiscByID("disc-good")
	buildTrackWithEvidence(gDisc, 1, 0, 5, 0)

	bad := g.AddReleaseByID("bad")
	bMed := bad.AddMediumByPosition(1)
	bMed.AddRecordingByPosition(1).AddFingerprintByID("fp").AddMatch(0, 1.0)
	bMed.AddDiscByID("disc-bad") // no evidence at all

	PruneUnmatched(m)

	releases := m.FindReleaseGroupByID("rg-1").Releases()
	if len(releases) != 1 || releases[0].ID != "good" {
		t.Fatalf("expected only 'good' to survive PruneUnmatched, got %v", releases)
	}
}

func TestPruneUnmatchedNoOpWhenNoReleaseMatches(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	r := g.AddReleaseByID("only")
	med := r.AddMediumByPosition(1)
	med.AddRecordingByPosition(1).AddFingerprintByID("fp").AddMatch(0, 1.0)
	med.AddDiscByID("disc-1")

	PruneUnmatched(m)

	if m.FindReleaseGroupByID("rg-1") == nil || len(m.FindReleaseGroupByID("rg-1").Releases()) != 1 {
		t.Fatalf("expected the sole release to survive when no release anywhere satisfies the predicate")
	}
}

func TestPrunePerfectDiscErasesSiblingDiscs(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	r := g.AddReleaseByID("r-1")
	med := r.AddMediumByPosition(1)

	perfect := med.AddDiscByID("perfect")
	buildTrackWithEvidence(perfect, 1, 0, 5, 0)

	imperfect := med.AddDiscByID("imperfect")
	imperfect.AddTrackByPosition(1) // no evidence

	PrunePerfectDisc(m)

	discs := m.FindReleaseGroupByID("rg-1").Releases()[0].Media()[0].Discs()
	if len(discs) != 1 || discs[0].ID != "perfect" {
		t.Fatalf("expected only the perfect disc to survive, got %v", discs)
	}
}

func TestPrunePerfectDiscIsIdempotent(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	r := g.AddReleaseByID("r-1")
	med := r.AddMediumByPosition(1)
	perfect := med.AddDiscByID("perfect")
	buildTrackWithEvidence(perfect, 1, 0, 5, 0)
	med.AddDiscByID("imperfect").AddTrackByPosition(1)

	PrunePerfectDisc(m)
	once := m.Dump()
	PrunePerfectDisc(m)
	twice := m.Dump()

	if once != twice {
		t.Fatalf("PrunePerfectDisc not idempotent:\n%q\nvs\n%q", once, twice)
	}
}

func TestPruneConfidenceKeepsHighestMinConfidence(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")

	strong := g.AddReleaseByID("strong")
	sMed := strong.AddMediumByPosition(1)
	sDisc := sMed.AddDiscByID("d")
	buildTrackWithEvidence(sDisc, 1, 0, 10, 0)
	buildTrackWithEvidence(sDisc, 2, 1, 8, 0)

	weak := g.AddReleaseByID("weak")
	wMed := weak.AddMediumByPosition(1)
	wDisc := wMed.AddDiscByID("d")
	buildTrackWithEvidence(wDisc, 1, 0, 1, 0)
	buildTrackWithEvidence(wDisc, 2, 1, 1, 0)

	PruneConfidence(m)

	releases := m.FindReleaseGroupByID("rg-1").Releases()
	if len(releases) != 1 || releases[0].ID != "strong" {
		t.Fatalf("expected only the higher min-confidence release to survive, got %v", releases)
	}
}

func TestCompleteReleaseAttachesMetadataTracksAndDummyFingerprint(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	r := g.AddReleaseByID("r-1")
	med := r.AddMediumByPosition(1)
	med.AddRecordingByPosition(1).AddFingerprintByID("fp").AddMatch(0, 1.0)

	ctx := Context{
		Streams: map[int]StreamInfo{
			0: {Sectors: 100},
			1: {Sectors: 200},
		},
		Metadata: map[string]ReleaseMetadata{
			"r-1": {
				Title:  "Album",
				Artist: "Artist",
				Media: []MediumMetadata{
					{
						Position: 1,
						Tracks: []TrackMetadata{
							{Position: 1, RecordingID: "rec-1", RecordingName: "Track One"},
							{Position: 2, RecordingID: "rec-2", RecordingName: "Track Two"},
						},
					},
				},
			},
		},
	}

	CompleteRelease(m, ctx)

	recs := m.FindReleaseGroupByID("rg-1").Releases()[0].Media()[0].Recordings()
	if len(recs) != 2 {
		t.Fatalf("expected completion to attach the missing track, got %d recordings", len(recs))
	}
	var second *model.Recording
	for i := range recs {
		if recs[i].Position == 2 {
			second = &recs[i]
		}
	}
	if second == nil || second.ID != "rec-2" {
		t.Fatalf("expected position-2 recording id rec-2, got %+v", second)
	}
	if len(second.Fingerprints()) != 1 {
		t.Fatalf("expected a dummy fingerprint on the unmatched recording, got %d", len(second.Fingerprints()))
	}
	if len(second.Fingerprints()[0].StreamIndices()) == 0 {
		t.Fatalf("expected the dummy fingerprint to carry unmatched stream indices")
	}
}

func TestCompleteReleaseReconcilesFingerprintMatchedRecordingByID(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	r := g.AddReleaseByID("r-1")
	// Mirrors what FingerprintService.Query actually builds: a recording
	// keyed by id, position unknown, attached to medium 1 regardless of
	// which medium/position it really belongs to.
	seed := r.AddMediumByPosition(1).AddRecordingByID("rec-2")
	seed.AddFingerprintByID("fp").AddMatch(7, 0.9)

	ctx := Context{
		Streams: map[int]StreamInfo{7: {Sectors: 100}},
		Metadata: map[string]ReleaseMetadata{
			"r-1": {
				Title:  "Album",
				Artist: "Artist",
				Media: []MediumMetadata{
					{
						Position: 1,
						Tracks: []TrackMetadata{
							{Position: 1, RecordingID: "rec-1", RecordingName: "Track One"},
							{Position: 2, RecordingID: "rec-2", RecordingName: "Track Two"},
						},
					},
				},
			},
		},
	}

	CompleteRelease(m, ctx)

	med := m.FindReleaseGroupByID("rg-1").Releases()[0].Media()[0]
	recs := med.Recordings()
	if len(recs) != 2 {
		t.Fatalf("expected exactly the two metadata-positioned recordings, got %d: %+v", len(recs), recs)
	}

	second := med.FindRecordingByPosition(2)
	if second == nil || second.ID != "rec-2" {
		t.Fatalf("expected position-2 recording id rec-2, got %+v", second)
	}
	if len(second.StreamIndices()) != 1 || second.StreamIndices()[0] != 7 {
		t.Fatalf("expected the fingerprint-matched stream to migrate to the real position, got %v", second.StreamIndices())
	}
}

func TestReleaseAddDiscsRejectsSectorMismatch(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	r := g.AddReleaseByID("r-1")
	med := r.AddMediumByPosition(1)
	med.AddRecordingByPosition(1).AddFingerprintByID("fp").AddMatch(0, 1.0)

	ctx := Context{
		Streams: map[int]StreamInfo{0: {Sectors: 999}},
		Metadata: map[string]ReleaseMetadata{
			"r-1": {
				Media: []MediumMetadata{
					{
						Position: 1,
						DiscIDs:  []string{"disc-a"},
						Tracks: []TrackMetadata{
							{Position: 1, RecordingID: "rec-1"},
						},
					},
				},
			},
		},
		DiscTOCs: map[string]DiscTOC{
			"disc-a": {TrackSectorLengths: map[int]uint32{1: 100}},
		},
	}

	ReleaseAddDiscs(m, ctx)

	discs := m.FindReleaseGroupByID("rg-1").Releases()[0].Media()[0].Discs()
	if len(discs) != 0 {
		t.Fatalf("expected the sector-mismatched disc to be rejected, got %v", discs)
	}
}

func TestReleaseAddDiscsAcceptsMatchingSectors(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	r := g.AddReleaseByID("r-1")
	med := r.AddMediumByPosition(1)
	med.AddRecordingByPosition(1).AddFingerprintByID("fp").AddMatch(0, 1.0)

	ctx := Context{
		Streams: map[int]StreamInfo{0: {Sectors: 100}},
		Metadata: map[string]ReleaseMetadata{
			"r-1": {
				Media: []MediumMetadata{
					{
						Position: 1,
						DiscIDs:  []string{"disc-a"},
						Tracks: []TrackMetadata{
							{Position: 1, RecordingID: "rec-1"},
						},
					},
				},
			},
		},
		DiscTOCs: map[string]DiscTOC{
			"disc-a": {TrackSectorLengths: map[int]uint32{1: 100}},
		},
	}

	ReleaseAddDiscs(m, ctx)

	discs := m.FindReleaseGroupByID("rg-1").Releases()[0].Media()[0].Discs()
	if len(discs) != 1 || discs[0].ID != "disc-a" {
		t.Fatalf("expected the sector-matched disc to be attached, got %v", discs)
	}
}

func TestPruneMetadataErasesWorseScoreWhenBestIsZero(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")

	exact := g.AddReleaseByID("exact")
	exact.AddMediumByPosition(1).AddRecordingByPosition(1).AddFingerprintByID("fp").AddMatch(0, 1.0)

	off := g.AddReleaseByID("off")
	off.AddMediumByPosition(1).AddRecordingByPosition(1).AddFingerprintByID("fp").AddMatch(0, 1.0)

	ctx := Context{
		Streams: map[int]StreamInfo{
			0: {Tags: Tags{Title: "Song", Artist: "Band", Album: "LP"}},
		},
		Metadata: map[string]ReleaseMetadata{
			"exact": {Title: "LP", Artist: "Band", Media: []MediumMetadata{
				{Position: 1, Tracks: []TrackMetadata{{Position: 1, RecordingName: "Song"}}},
			}},
			"off": {Title: "Completely Different Title", Artist: "Other Band", Media: []MediumMetadata{
				{Position: 1, Tracks: []TrackMetadata{{Position: 1, RecordingName: "Unrelated"}}},
			}},
		},
	}

	PruneMetadata(m, ctx)

	releases := m.FindReleaseGroupByID("rg-1").Releases()
	if len(releases) != 1 || releases[0].ID != "exact" {
		t.Fatalf("expected only the zero-distance release to survive, got %v", releases)
	}
}

func TestPruneMetadataNoOpWhenBestIsNonzero(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	a := g.AddReleaseByID("a")
	a.AddMediumByPosition(1).AddRecordingByPosition(1).AddFingerprintByID("fp").AddMatch(0, 1.0)
	b := g.AddReleaseByID("b")
	b.AddMediumByPosition(1).AddRecordingByPosition(1).AddFingerprintByID("fp").AddMatch(0, 1.0)

	ctx := Context{
		Streams: map[int]StreamInfo{
			0: {Tags: Tags{Title: "Song", Artist: "Band", Album: "LP"}},
		},
		Metadata: map[string]ReleaseMetadata{
			"a": {Title: "LPX", Artist: "Band", Media: []MediumMetadata{
				{Position: 1, Tracks: []TrackMetadata{{Position: 1, RecordingName: "Song"}}},
			}},
			"b": {Title: "LPY", Artist: "Band", Media: []MediumMetadata{
				{Position: 1, Tracks: []TrackMetadata{{Position: 1, RecordingName: "Song"}}},
			}},
		},
	}

	PruneMetadata(m, ctx)

	releases := m.FindReleaseGroupByID("rg-1").Releases()
	if len(releases) != 2 {
		t.Fatalf("expected no pruning when the best score is nonzero, got %v", releases)
	}
}

func TestRunAllNeverIncreasesStreamCoverage(t *testing.T) {
	m := model.New()
	buildReleaseWithStreams(m, "rg-1", "full", 0, 1)
	buildReleaseWithStreams(m, "rg-1", "partial", 0)
	before := m.AllMatchedStreams()

	RunAll(m, Context{})

	after := m.AllMatchedStreams()
	for idx := range after {
		if _, ok := before[idx]; !ok {
			t.Fatalf("RunAll introduced a stream index %d absent beforehand", idx)
		}
	}
}
