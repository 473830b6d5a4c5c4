package output

import (
	"strings"
	"testing"

	"github.com/accurasound/sndchk/pkg/sndchk/model"
	"github.com/accurasound/sndchk/pkg/sndchk/reduce"
)

func TestReportPrintsTrackVerdictAndMismatch(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	r := g.AddReleaseByID("r-1")
	med := r.AddMediumByPosition(1)
	d := med.AddDiscByID("disc-1")
	track := d.AddTrackByPosition(1)
	track.AddStreamIndex(0)
	track.FoldEvidence(0, 5, 0, 0)

	ctx := reduce.Context{
		Streams: map[int]reduce.StreamInfo{
			0: {Tags: reduce.Tags{Title: "Other Name", Artist: "Right Artist", Album: "Right Album"}},
		},
		Metadata: map[string]reduce.ReleaseMetadata{
			"r-1": {
				Title:  "Right Album",
				Artist: "Right Artist",
				Media: []reduce.MediumMetadata{
					{Position: 1, Tracks: []reduce.TrackMetadata{{Position: 1, RecordingName: "Canonical Name"}}},
				},
			},
		},
	}

	var b strings.Builder
	Report(&b, m, ctx)
	out := b.String()

	if !strings.Contains(out, "release r-1") {
		t.Fatalf("expected release header, got:\n%s", out)
	}
	if !strings.Contains(out, "track #1: v1=5 v2=0 eac=0") {
		t.Fatalf("expected track verdict line, got:\n%s", out)
	}
	if !strings.Contains(out, "MISMATCH title: mb=Canonical Name; stream=Other Name") {
		t.Fatalf("expected a title mismatch line, got:\n%s", out)
	}
	if strings.Contains(out, "MISMATCH artist") || strings.Contains(out, "MISMATCH album") {
		t.Fatalf("expected no artist/album mismatch when they match, got:\n%s", out)
	}
}

func TestReportOmitsMismatchBlockWhenNoMetadataKnown(t *testing.T) {
	m := model.New()
	g := m.AddReleaseGroupByID("rg-1")
	r := g.AddReleaseByID("r-1")
	med := r.AddMediumByPosition(1)
	d := med.AddDiscByID("disc-1")
	d.AddTrackByPosition(1)

	var b strings.Builder
	Report(&b, m, reduce.Context{})
	out := b.String()

	if strings.Contains(out, "MISMATCH") {
		t.Fatalf("expected no mismatch lines without metadata, got:\n%s", out)
	}
}
