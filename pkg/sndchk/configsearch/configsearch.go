// Package configsearch implements spec §4.7: given a release and the
// sector-length facts about its candidate streams and tracks, decide which
// input stream fills which (medium, track) slot on each candidate disc.
package configsearch

import (
	"sort"

	"github.com/accurasound/sndchk/pkg/sndchk/model"
)

// ConfidenceFunc scores one committed (disc, track-position, stream) slot
// by its AccurateRip v1/v2 confirmation counts. The Verifier (§4.8)
// supplies the real implementation (the highest v1 and the highest v2
// count found at any offset, each taken separately), wired to Mediator's AccurateRip fetch and Fingersum's checksums;
// ConfigSearch itself only does the combinatorial choice.
type ConfidenceFunc func(discID string, trackPosition int, streamIndex int) (v1, v2 uint32)

// MediumAssignment is the chosen disc and per-track stream assignment for
// one medium of the release.
type MediumAssignment struct {
	MediumPosition int
	DiscID         string
	TrackStreams   map[int]int // track position -> assigned stream index
}

// Configuration is a fully committed, valid assignment across an entire
// release, with its score (spec §4.7 "Scoring").
type Configuration struct {
	Media            []MediumAssignment
	MinConfidence    uint32
	UnmatchedStreams int
}

type candidate struct {
	streamIndex int
	residual    int
}

type trackSlot struct {
	mediumPosition int
	discID         string
	trackPosition  int
	candidates     []candidate
}

type discChoice struct {
	medium model.Medium
	discs  []model.Disc // the discs to enumerate; len 1 if fixed
}

// Search performs the two-level search of spec §4.7 and returns the
// best-scoring valid configuration, or nil if no disc assignment yields a
// valid (injective) stream assignment. Non-CD media (e.g. a bonus DVD) are
// excluded from enumeration entirely.
//
// streamSectors is the sector count of every candidate input stream.
// trackSectors maps discID -> track position -> that track's sector
// count, from the disc's table of contents.
func Search(r *model.Release, streamSectors map[int]uint32, trackSectors map[string]map[int]uint32, confidence ConfidenceFunc) *Configuration {
	var media []model.Medium
	for _, m := range r.Media() {
		if m.IsCD() {
			media = append(media, m)
		}
	}
	sort.Slice(media, func(i, j int) bool { return media[i].Position < media[j].Position })

	var choices []discChoice
	for _, med := range media {
		discs := med.Discs()
		if len(discs) == 0 {
			continue
		}
		if len(discs) == 1 || !mediumHasCandidateTrack(discs) {
			// Fixed: either there's no choice, or spec §4.7's outer-loop
			// qualifier ("≥2 candidate discs and ≥1 track with candidate
			// streams") doesn't apply, so just take the first disc.
			choices = append(choices, discChoice{medium: med, discs: discs[:1]})
			continue
		}
		sorted := append([]model.Disc(nil), discs...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		choices = append(choices, discChoice{medium: med, discs: sorted})
	}

	var best *Configuration
	var combo func(i int, picked []model.Disc)
	combo = func(i int, picked []model.Disc) {
		if i == len(choices) {
			cfg := evaluateCombination(choicesMedia(choices), picked, streamSectors, trackSectors, confidence, len(streamSectors))
			if cfg != nil && isBetter(cfg, best) {
				best = cfg
			}
			return
		}
		for _, d := range choices[i].discs {
			combo(i+1, append(picked, d))
		}
	}
	combo(0, nil)
	return best
}

func choicesMedia(choices []discChoice) []model.Medium {
	out := make([]model.Medium, len(choices))
	for i, c := range choices {
		out[i] = c.medium
	}
	return out
}

func mediumHasCandidateTrack(discs []model.Disc) bool {
	for _, d := range discs {
		for _, t := range d.Tracks() {
			if len(t.StreamIndices()) > 0 {
				return true
			}
		}
	}
	return false
}

func isBetter(cand, best *Configuration) bool {
	if best == nil {
		return true
	}
	if cand.MinConfidence != best.MinConfidence {
		return cand.MinConfidence > best.MinConfidence
	}
	return cand.UnmatchedStreams < best.UnmatchedStreams
}

func evaluateCombination(media []model.Medium, picked []model.Disc, streamSectors map[int]uint32, trackSectors map[string]map[int]uint32, confidence ConfidenceFunc, totalStreams int) *Configuration {
	var slots []trackSlot
	for i, med := range media {
		disc := picked[i]
		tracks := append([]model.Track(nil), disc.Tracks()...)
		sort.Slice(tracks, func(a, b int) bool { return tracks[a].Position < tracks[b].Position })
		for _, t := range tracks {
			if len(t.StreamIndices()) == 0 {
				continue
			}
			trackLen := trackSectors[disc.ID][t.Position]
			cands := make([]candidate, 0, len(t.StreamIndices()))
			for _, si := range t.StreamIndices() {
				residual := int(streamSectors[si]) - int(trackLen)
				cands = append(cands, candidate{streamIndex: si, residual: residual})
			}
			sort.Slice(cands, func(a, b int) bool {
				ra, rb := abs(cands[a].residual), abs(cands[b].residual)
				if ra != rb {
					return ra < rb
				}
				return cands[a].streamIndex < cands[b].streamIndex
			})
			slots = append(slots, trackSlot{mediumPosition: med.Position, discID: disc.ID, trackPosition: t.Position, candidates: cands})
		}
	}
	if len(slots) == 0 {
		return nil
	}

	assignment, ok := solveSlots(slots)
	if !ok {
		return nil
	}

	byMedium := map[int]*MediumAssignment{}
	var order []int
	usedStreams := map[int]bool{}
	for i, slot := range slots {
		ma, exists := byMedium[slot.mediumPosition]
		if !exists {
			ma = &MediumAssignment{MediumPosition: slot.mediumPosition, DiscID: slot.discID, TrackStreams: map[int]int{}}
			byMedium[slot.mediumPosition] = ma
			order = append(order, slot.mediumPosition)
		}
		stream := slot.candidates[assignment[i]].streamIndex
		ma.TrackStreams[slot.trackPosition] = stream
		usedStreams[stream] = true
	}
	sort.Ints(order)
	cfg := &Configuration{UnmatchedStreams: totalStreams - len(usedStreams)}
	for _, pos := range order {
		cfg.Media = append(cfg.Media, *byMedium[pos])
	}

	var min uint32
	first := true
	for i, slot := range slots {
		stream := slot.candidates[assignment[i]].streamIndex
		v1, v2 := confidence(slot.discID, slot.trackPosition, stream)
		c := v1 + v2
		if first || c < min {
			min = c
			first = false
		}
	}
	cfg.MinConfidence = min
	return cfg
}

// solveSlots implements spec §4.7's inner loop: the trivial (smallest
// |residual|) pick per slot must sum to zero absolute residual or the
// whole disc assignment is rejected; otherwise, if the trivial pick isn't
// already injective, successors are generated by advancing the first slot
// (row-major order) whose next candidate ties its current residual,
// resetting earlier slots to their first candidate, until an injective
// assignment is found or the candidate space is exhausted.
func solveSlots(slots []trackSlot) ([]int, bool) {
	state := make([]int, len(slots))
	total := 0
	for _, s := range slots {
		total += abs(s.candidates[0].residual)
	}
	if total > 0 {
		return nil, false
	}

	for {
		if injective(slots, state) {
			return state, true
		}
		advanced := false
		for i := 0; i < len(slots); i++ {
			cands := slots[i].candidates
			if state[i]+1 < len(cands) && abs(cands[state[i]+1].residual) <= abs(cands[state[i]].residual) {
				state[i]++
				for j := 0; j < i; j++ {
					state[j] = 0
				}
				advanced = true
				break
			}
		}
		if !advanced {
			return nil, false
		}
	}
}

func injective(slots []trackSlot, state []int) bool {
	seen := map[int]bool{}
	for i, s := range slots {
		stream := s.candidates[state[i]].streamIndex
		if seen[stream] {
			return false
		}
		seen[stream] = true
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
