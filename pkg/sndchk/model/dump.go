package model

import (
	"fmt"
	"strings"
)

// dumpModel renders an indented diagnostic tree, mirroring the original
// tool's "--verbose" tree dump (original_source). Not meant for machine
// consumption; see pkg/sndchk/output
// for the user-facing report.
func dumpModel(m *ResultModel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "result model: %d release group(s)\n", m.releaseGroups.Len())
	for _, g := range m.releaseGroups.All() {
		dumpReleaseGroup(&b, &g, 1)
	}
	return b.String()
}

func indent(b *strings.Builder, level int) {
	b.WriteString(strings.Repeat("  ", level))
}

func dumpReleaseGroup(b *strings.Builder, g *ReleaseGroup, level int) {
	indent(b, level)
	fmt.Fprintf(b, "releasegroup %s (distance=%d)\n", g.ID, g.Distance)
	for _, r := range g.releases.All() {
		dumpRelease(b, &r, level+1)
	}
}

func dumpRelease(b *strings.Builder, r *Release, level int) {
	indent(b, level)
	fmt.Fprintf(b, "release %s (distance=%d, min-confidence=%d, metadata-distance=%d, score=%.3f)\n",
		r.ID, r.Distance, r.MinConfidence, r.MetadataDistance, r.AggregateScore())
	for _, med := range r.media.All() {
		dumpMedium(b, &med, level+1)
	}
}

func dumpMedium(b *strings.Builder, med *Medium, level int) {
	indent(b, level)
	fmt.Fprintf(b, "medium #%d (format=%q)\n", med.Position, med.Format)
	for _, d := range med.discs.All() {
		dumpDisc(b, &d, level+1)
	}
	for _, rec := range med.recordings.All() {
		dumpRecording(b, &rec, level+1)
	}
}

func dumpDisc(b *strings.Builder, d *Disc, level int) {
	indent(b, level)
	fmt.Fprintf(b, "disc %s (offsets=%v)\n", d.ID, d.Offsets())
	for _, t := range d.tracks.All() {
		dumpTrack(b, &t, level+1)
	}
}

func dumpTrack(b *strings.Builder, t *Track, level int) {
	indent(b, level)
	fmt.Fprintf(b, "track #%d streams=%v max-confidence=%d total-confidence=%d\n",
		t.Position, t.StreamIndices(), t.MaxConfidence, t.TotalConfidence)
}

func dumpRecording(b *strings.Builder, rec *Recording, level int) {
	indent(b, level)
	fmt.Fprintf(b, "recording #%d %s\n", rec.Position, rec.ID)
	for _, fp := range rec.fingerprints.All() {
		dumpFingerprint(b, &fp, level+1)
	}
}

func dumpFingerprint(b *strings.Builder, fp *Fingerprint, level int) {
	indent(b, level)
	fmt.Fprintf(b, "fingerprint %s matches=%v\n", fp.ID, fp.Matches())
}
