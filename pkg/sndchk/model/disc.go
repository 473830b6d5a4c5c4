package model

import "github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"

// Disc is a candidate physical disc within a Medium: an opaque identifier,
// a one-based-indexed set of Tracks, and the union of candidate offsets
// discovered for its streams (spec §3). Invariant: track positions are
// pairwise distinct and each lies in [1..track count].
type Disc struct {
	ID      string
	tracks  childList[Track]
	offsets map[int]struct{}
}

// NewDisc returns an empty Disc with the given identifier.
func NewDisc(id string) *Disc {
	return &Disc{ID: id, offsets: make(map[int]struct{})}
}

// AddTrack appends a deep copy of track, reusing a cleared slot if one is
// free, and errors if the position is already occupied (spec §3
// invariant: no position repeated).
func (d *Disc) AddTrack(track Track) (*Track, error) {
	if d.FindTrackByPosition(track.Position) != nil {
		return nil, sndchkerr.Errorf(sndchkerr.KindInconsistent, "model", "disc %s: duplicate track position %d", d.ID, track.Position)
	}
	return d.tracks.Add(track.clone()), nil
}

// AddTrackByPosition returns the existing track at position, or creates
// one (spec §4.5 add_child_by_id, generalized to position-keyed lookup).
func (d *Disc) AddTrackByPosition(position int) *Track {
	if t := d.FindTrackByPosition(position); t != nil {
		return t
	}
	return d.tracks.Add(*NewTrack(position))
}

// FindTrackByPosition returns the track at the given one-based position,
// or nil.
func (d *Disc) FindTrackByPosition(position int) *Track {
	i := d.tracks.FindIndex(func(t *Track) bool { return t.Position == position })
	if i < 0 {
		return nil
	}
	return d.tracks.At(i)
}

// EraseTrack removes the track at logical index i (spec §4.5 erase_child).
func (d *Disc) EraseTrack(i int) { d.tracks.Erase(i) }

// Tracks returns the live tracks, in current order (see Sort).
func (d *Disc) Tracks() []Track { return d.tracks.All() }

// TrackCount returns the number of live tracks.
func (d *Disc) TrackCount() int { return d.tracks.Len() }

// SortTracks orders tracks ascending by position (spec §4.5 sort keys).
func (d *Disc) SortTracks() {
	d.tracks.Sort(func(a, b *Track) bool { return a.Position < b.Position })
}

// AddOffset extends the disc's union of candidate offsets.
func (d *Disc) AddOffset(offset int) { d.offsets[offset] = struct{}{} }

// Offsets returns the disc's candidate offset set.
func (d *Disc) Offsets() []int {
	out := make([]int, 0, len(d.offsets))
	for o := range d.offsets {
		out = append(out, o)
	}
	return out
}

// HasOffsets reports whether this disc has any known AccurateRip presence
// (a non-empty candidate offset set, spec §4.8).
func (d *Disc) HasOffsets() bool { return len(d.offsets) > 0 }

// EveryTrackMatched reports whether every track has at least one matching
// checksum (spec §4.6.6 "perfect disc" predicate).
func (d *Disc) EveryTrackMatched() bool {
	if d.tracks.Len() == 0 {
		return false
	}
	for _, t := range d.tracks.All() {
		if !t.HasMatchingChecksum() {
			return false
		}
	}
	return true
}

func (d *Disc) clone() Disc {
	cp := Disc{ID: d.ID, offsets: make(map[int]struct{}, len(d.offsets))}
	for _, t := range d.tracks.All() {
		cp.tracks.Add(t.clone())
	}
	for o := range d.offsets {
		cp.offsets[o] = struct{}{}
	}
	return cp
}

func (d *Disc) merge(other *Disc) {
	for o := range other.offsets {
		d.offsets[o] = struct{}{}
	}
	for _, ot := range other.tracks.All() {
		t := d.AddTrackByPosition(ot.Position)
		t.merge(&ot)
	}
}
