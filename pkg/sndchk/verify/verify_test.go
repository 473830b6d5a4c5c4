package verify

import (
	"context"
	"testing"

	"github.com/accurasound/sndchk/pkg/sndchk/fingersum"
	"github.com/accurasound/sndchk/pkg/sndchk/mediator"
	"github.com/accurasound/sndchk/pkg/sndchk/model"
	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

type fakeSource struct{ frames []fingersum.Frame }

func (f fakeSource) Frames() []fingersum.Frame { return f.frames }

func silentFrames(n int) []fingersum.Frame {
	return make([]fingersum.Frame, n)
}

// fakeFetcher is a RipFetcher test double: no network, canned responses or
// errors keyed by the identity/disc-id the caller asked for.
type fakeFetcher struct {
	arByPath  map[string][]mediator.AccurateRipRecord
	arErr     error
	eacByDisc map[string]*mediator.EACResponse
	eacErr    error
}

func (f *fakeFetcher) FetchAccurateRipCached(ctx context.Context, id mediator.AccurateRipIdentity) ([]mediator.AccurateRipRecord, error) {
	if f.arErr != nil {
		return nil, f.arErr
	}
	return f.arByPath[id.Path], nil
}

func (f *fakeFetcher) FetchEACCached(ctx context.Context, discID string, nTracks int) (*mediator.EACResponse, error) {
	if f.eacErr != nil {
		return nil, f.eacErr
	}
	return f.eacByDisc[discID], nil
}

func TestReleaseFoldsAccurateRipEvidenceIntoMatchingTrack(t *testing.T) {
	frames := silentFrames(2 * fingersum.FrameSamples)
	stream := fingersum.New(fakeSource{frames: frames}, 44100, nil)

	triples, err := fingersum.ChecksumsAt(nil, stream, nil, fingersum.Position{First: true, Last: true}, 1)
	if err != nil {
		t.Fatalf("ChecksumsAt: %v", err)
	}
	if len(triples) != 1 {
		t.Fatalf("expected 1 checksum triple, got %d", len(triples))
	}
	v1 := triples[0].V1

	fetcher := &fakeFetcher{
		arByPath: map[string][]mediator.AccurateRipRecord{
			"/accuraterip/test": {{
				TrackCount: 1,
				Tracks:     []mediator.AccurateRipTrackEntry{{Confidence: 7, CRC: v1}},
			}},
		},
	}

	r := model.NewRelease("r-1")
	m := r.AddMediumByPosition(1)
	disc := m.AddDiscByID("disc-1")
	disc.AddOffset(0)
	track := disc.AddTrackByPosition(1)
	track.AddStreamIndex(0)

	streams := StreamTable{0: stream}
	identities := map[string]DiscIdentity{
		"disc-1": {AccurateRip: mediator.AccurateRipIdentity{Path: "/accuraterip/test"}},
	}
	streamSectors := map[int]uint32{0: stream.Sectors()}
	trackSectors := map[string]map[int]uint32{"disc-1": {1: stream.Sectors()}}

	if err := Release(context.Background(), fetcher, r, streams, identities, streamSectors, trackSectors); err != nil {
		t.Fatalf("Release: %v", err)
	}

	got := disc.FindTrackByPosition(1)
	if got == nil {
		t.Fatal("expected track 1 to still exist")
	}
	if !got.HasMatchingChecksum() {
		t.Fatal("expected the track to have matching checksum evidence after verification")
	}
}

func TestReleaseParseErrorSkipsDiscButNotRelease(t *testing.T) {
	fetcher := &fakeFetcher{arErr: sndchkerr.New(sndchkerr.KindParse, "accuraterip", errShort)}

	r := model.NewRelease("r-1")
	m := r.AddMediumByPosition(1)
	disc := m.AddDiscByID("disc-1")
	disc.AddOffset(0)
	disc.AddTrackByPosition(1)

	identities := map[string]DiscIdentity{
		"disc-1": {AccurateRip: mediator.AccurateRipIdentity{Path: "/accuraterip/bad"}},
	}

	err := Release(context.Background(), fetcher, r, StreamTable{}, identities, map[int]uint32{}, map[string]map[int]uint32{})
	if err != nil {
		t.Fatalf("expected parse errors to be swallowed at the release level, got %v", err)
	}
}

func TestReleaseNetworkErrorIsFatalToRelease(t *testing.T) {
	fetcher := &fakeFetcher{arErr: sndchkerr.New(sndchkerr.KindNetwork, "accuraterip", errShort)}

	r := model.NewRelease("r-1")
	m := r.AddMediumByPosition(1)
	disc := m.AddDiscByID("disc-1")
	disc.AddOffset(0)
	disc.AddTrackByPosition(1)

	identities := map[string]DiscIdentity{
		"disc-1": {AccurateRip: mediator.AccurateRipIdentity{Path: "/accuraterip/down"}},
	}

	err := Release(context.Background(), fetcher, r, StreamTable{}, identities, map[int]uint32{}, map[string]map[int]uint32{})
	if err == nil {
		t.Fatal("expected a network error to propagate as fatal for the release")
	}
	if !sndchkerr.Is(err, sndchkerr.KindNetwork) {
		t.Fatalf("expected a network-kind error, got %v", err)
	}
}

func TestReleaseSkipsDiscsWithNoCandidateOffsets(t *testing.T) {
	r := model.NewRelease("r-1")
	m := r.AddMediumByPosition(1)
	m.AddDiscByID("disc-1") // no AddOffset call: HasOffsets() is false

	fetcher := &fakeFetcher{}
	err := Release(context.Background(), fetcher, r, StreamTable{}, map[string]DiscIdentity{}, map[int]uint32{}, map[string]map[int]uint32{})
	if err != nil {
		t.Fatalf("expected no error when no disc has known offsets, got %v", err)
	}
}

type shortErr string

func (e shortErr) Error() string { return string(e) }

const errShort = shortErr("boom")
