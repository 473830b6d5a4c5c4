package configsearch

import (
	"testing"

	"github.com/accurasound/sndchk/pkg/sndchk/model"
)

func buildSingleDiscRelease() *model.Release {
	r := model.NewRelease("r-1")
	med := r.AddMediumByPosition(1)
	d := med.AddDiscByID("disc-1")
	t1 := d.AddTrackByPosition(1)
	t1.AddStreamIndex(0)
	t2 := d.AddTrackByPosition(2)
	t2.AddStreamIndex(1)
	return r
}

func TestSearchAcceptsZeroResidualTrivialAssignment(t *testing.T) {
	r := buildSingleDiscRelease()
	streamSectors := map[int]uint32{0: 100, 1: 200}
	trackSectors := map[string]map[int]uint32{
		"disc-1": {1: 100, 2: 200},
	}
	confidence := func(discID string, trackPosition, streamIndex int) (uint32, uint32) {
		return 1, 0
	}

	cfg := Search(r, streamSectors, trackSectors, confidence)
	if cfg == nil {
		t.Fatal("expected a valid configuration")
	}
	if len(cfg.Media) != 1 || cfg.Media[0].DiscID != "disc-1" {
		t.Fatalf("unexpected media assignment: %+v", cfg.Media)
	}
	if cfg.Media[0].TrackStreams[1] != 0 || cfg.Media[0].TrackStreams[2] != 1 {
		t.Fatalf("expected track 1<-stream 0, track 2<-stream 1, got %+v", cfg.Media[0].TrackStreams)
	}
	if cfg.UnmatchedStreams != 0 {
		t.Fatalf("expected 0 unmatched streams, got %d", cfg.UnmatchedStreams)
	}
}

func TestSearchExcludesNonCDMedia(t *testing.T) {
	r := buildSingleDiscRelease()
	bonus := r.AddMediumByPosition(2)
	bonus.Format = "DVD"
	bd := bonus.AddDiscByID("disc-2")
	bt := bd.AddTrackByPosition(1)
	bt.AddStreamIndex(2)

	streamSectors := map[int]uint32{0: 100, 1: 200, 2: 999}
	trackSectors := map[string]map[int]uint32{
		"disc-1": {1: 100, 2: 200},
		"disc-2": {1: 999},
	}
	confidence := func(discID string, trackPosition, streamIndex int) (uint32, uint32) {
		return 1, 0
	}

	cfg := Search(r, streamSectors, trackSectors, confidence)
	if cfg == nil {
		t.Fatal("expected a valid configuration ignoring the bonus DVD")
	}
	if len(cfg.Media) != 1 {
		t.Fatalf("expected only the CD medium in the configuration, got %+v", cfg.Media)
	}
	if cfg.UnmatchedStreams != 1 {
		t.Fatalf("expected the DVD's stream to count as unmatched, got %d", cfg.UnmatchedStreams)
	}
}

func TestSearchRejectsNonzeroTotalResidual(t *testing.T) {
	r := buildSingleDiscRelease()
	streamSectors := map[int]uint32{0: 150, 1: 250}
	trackSectors := map[string]map[int]uint32{
		"disc-1": {1: 100, 2: 200},
	}
	confidence := func(discID string, trackPosition, streamIndex int) (uint32, uint32) {
		return 0, 0
	}

	cfg := Search(r, streamSectors, trackSectors, confidence)
	if cfg != nil {
		t.Fatalf("expected nil when trivial total residual is nonzero, got %+v", cfg)
	}
}

func TestSearchTieBreaksByZeroResidualTies(t *testing.T) {
	// Both streams have the same sector count, tying both tracks at
	// residual 0 for either stream; the trivial (first, lowest index)
	// assignment would put both tracks on stream 0 (non-injective), so the
	// backtracking step must find the swap that makes it valid.
	r := model.NewRelease("r-1")
	med := r.AddMediumByPosition(1)
	d := med.AddDiscByID("disc-1")
	t1 := d.AddTrackByPosition(1)
	t1.AddStreamIndex(0)
	t1.AddStreamIndex(1)
	t2 := d.AddTrackByPosition(2)
	t2.AddStreamIndex(0)
	t2.AddStreamIndex(1)

	streamSectors := map[int]uint32{0: 100, 1: 100}
	trackSectors := map[string]map[int]uint32{
		"disc-1": {1: 100, 2: 100},
	}
	confidence := func(discID string, trackPosition, streamIndex int) (uint32, uint32) {
		return 1, 0
	}

	cfg := Search(r, streamSectors, trackSectors, confidence)
	if cfg == nil {
		t.Fatal("expected the backtracking step to find a valid injective assignment")
	}
	s1, s2 := cfg.Media[0].TrackStreams[1], cfg.Media[0].TrackStreams[2]
	if s1 == s2 {
		t.Fatalf("expected distinct streams per track, got %d and %d", s1, s2)
	}
}

func TestSearchChoosesHigherConfidenceDisc(t *testing.T) {
	r := model.NewRelease("r-1")
	med := r.AddMediumByPosition(1)

	weak := med.AddDiscByID("disc-weak")
	wt := weak.AddTrackByPosition(1)
	wt.AddStreamIndex(0)

	strong := med.AddDiscByID("disc-strong")
	st := strong.AddTrackByPosition(1)
	st.AddStreamIndex(0)

	streamSectors := map[int]uint32{0: 100}
	trackSectors := map[string]map[int]uint32{
		"disc-weak":   {1: 100},
		"disc-strong": {1: 100},
	}
	confidence := func(discID string, trackPosition, streamIndex int) (uint32, uint32) {
		if discID == "disc-strong" {
			return 10, 0
		}
		return 1, 0
	}

	cfg := Search(r, streamSectors, trackSectors, confidence)
	if cfg == nil {
		t.Fatal("expected a valid configuration")
	}
	if cfg.Media[0].DiscID != "disc-strong" {
		t.Fatalf("expected the higher-confidence disc to be chosen, got %s", cfg.Media[0].DiscID)
	}
	if cfg.MinConfidence != 10 {
		t.Fatalf("expected min confidence 10, got %d", cfg.MinConfidence)
	}
}

func TestSearchReturnsNilWhenNoTracksHaveCandidates(t *testing.T) {
	r := model.NewRelease("r-1")
	med := r.AddMediumByPosition(1)
	med.AddDiscByID("disc-1")

	cfg := Search(r, map[int]uint32{}, map[string]map[int]uint32{}, func(string, int, int) (uint32, uint32) { return 0, 0 })
	if cfg != nil {
		t.Fatalf("expected nil configuration for a disc with no candidate tracks, got %+v", cfg)
	}
}
