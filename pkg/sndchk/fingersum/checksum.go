package fingersum

import (
	"hash/crc32"

	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

// ChecksumTriple is the set of checksums computed over one (stream,
// offset) window (spec §3, §4.3).
type ChecksumTriple struct {
	Offset       int
	V1           uint32
	V2           uint32
	OffsetFind   uint32 // legacy offset-detection checksum (v1 over the window's last 450 frames)
	EACCRC32     uint32
	EACCRC32Skip uint32 // "skip-zero" variant, excludes all-zero-sample runs
}

// frameWord packs a stereo frame into the 32-bit "sample" the AccurateRip
// algorithm sums: low 16 bits carry the left channel, high 16 bits the
// right channel, both little-endian within their half (spec §4.3: "32-bit
// sample formed by 2 little-endian 16-bit channels").
func frameWord(f Frame) uint32 {
	return uint32(uint16(f.Left)) | uint32(uint16(f.Right))<<16
}

// windowedFrames builds the virtual window of frames for a given offset,
// drawing from the preceding track's trailing frames (leader) and the
// following track's leading frames (trailer) as needed, zero-padding when
// either is absent (spec §4.3).
func windowedFrames(leader, self, trailer []Frame, offset int) []Frame {
	n := len(self)
	out := make([]Frame, n)

	for i := 0; i < n; i++ {
		// Virtual index into the union of leader+self+trailer, shifted by offset.
		idx := i + offset
		switch {
		case idx >= 0 && idx < n:
			out[i] = self[idx]
		case idx < 0:
			// Draw from the tail of leader, or zero-pad if absent/out of range.
			li := len(leader) + idx
			if li >= 0 && li < len(leader) {
				out[i] = leader[li]
			}
		default: // idx >= n
			ti := idx - n
			if ti >= 0 && ti < len(trailer) {
				out[i] = trailer[ti]
			}
		}
	}
	return out
}

// ChecksumsAt computes the AccurateRip v1/v2, offset-detection, and EAC
// CRC32 checksums for every offset currently registered on self, given the
// optional leader (preceding track) and trailer (following track) streams,
// the track's Position, and its 1-based track number (trackNumber). The
// offset-detection checksum is taken over the last 450 frames of each
// offset's window; trackNumber does not change it.
func ChecksumsAt(leader, self *StreamCtx, trailer *StreamCtx, pos Position, trackNumber int) ([]ChecksumTriple, error) {
	if self == nil {
		return nil, sndchkerr.New(sndchkerr.KindInconsistent, "fingersum", errNilSelf)
	}

	var leaderFrames, trailerFrames []Frame
	if leader != nil {
		leaderFrames = leader.frames
	}
	if trailer != nil {
		trailerFrames = trailer.frames
	}

	self.mu.Lock()
	offsets := make([]int, 0, len(self.offsets))
	for o := range self.offsets {
		offsets = append(offsets, o)
	}
	self.mu.Unlock()

	out := make([]ChecksumTriple, 0, len(offsets))
	for _, offset := range offsets {
		self.mu.Lock()
		cached, ok := self.checksums[offset]
		self.mu.Unlock()
		if ok {
			out = append(out, cached)
			continue
		}

		window := windowedFrames(leaderFrames, self.frames, trailerFrames, offset)
		triple := ChecksumTriple{
			Offset:       offset,
			V1:           accurateRipV1(window, pos),
			V2:           accurateRipV2(window, pos),
			OffsetFind:   offsetDetectionChecksum(window, trackNumber),
			EACCRC32:     eacCRC32(window, false),
			EACCRC32Skip: eacCRC32(window, true),
		}

		self.mu.Lock()
		self.checksums[offset] = triple
		self.mu.Unlock()
		out = append(out, triple)
	}
	return out, nil
}

var errNilSelf = selfNil{}

type selfNil struct{}

func (selfNil) Error() string { return "ChecksumsAt: self StreamCtx is nil" }

// boundaryRange returns the [start, end) sample-index range (1-based in
// spec prose, here 0-based half-open) to sum for a track given its
// Position: the first track omits its first 5*588+1 samples, the last
// track omits its last 5*588 samples, interior tracks use the full range
// (spec §4.3).
func boundaryRange(n int, pos Position) (start, end int) {
	start, end = 0, n
	if pos.First {
		start = 5*FrameSamples + 1
		if start > n {
			start = n
		}
	}
	if pos.Last {
		end = n - 5*FrameSamples
		if end < start {
			end = start
		}
	}
	return start, end
}

// accurateRipV1 sums i*sample[i] for i in the track's boundary-adjusted
// 1-based index range, modulo 2^32 (spec §4.3).
func accurateRipV1(frames []Frame, pos Position) uint32 {
	start, end := boundaryRange(len(frames), pos)
	var sum uint32
	for i := start; i < end; i++ {
		idx1based := uint32(i + 1)
		sum += idx1based * frameWord(frames[i])
	}
	return sum
}

// accurateRipV2 accumulates ((i*sample[i]) mod 2^32) + (i*sample[i])/2^32
// per step, modulo 2^32 throughout (spec §4.3).
func accurateRipV2(frames []Frame, pos Position) uint32 {
	start, end := boundaryRange(len(frames), pos)
	var sum uint32
	for i := start; i < end; i++ {
		idx1based := uint64(i + 1)
		product := idx1based * uint64(frameWord(frames[i]))
		low := uint32(product & 0xFFFFFFFF)
		high := uint32(product >> 32)
		sum += low + high
	}
	return sum
}

// offsetDetectionWindowFrames is the legacy 450-sample window width.
const offsetDetectionWindowFrames = 450

// offsetDetectionChecksum is the v1 computation restricted to the last 450
// frames of the window (legacy AccurateRip offset detection). Every track
// uses the same rule: trackNumber is accepted but not used, so the window
// is not anchored to track 5's position.
func offsetDetectionChecksum(frames []Frame, trackNumber int) uint32 {
	n := len(frames)
	end := n
	start := end - offsetDetectionWindowFrames
	if start < 0 {
		start = 0
	}
	var sum uint32
	for i := start; i < end; i++ {
		sum += uint32(i+1) * frameWord(frames[i])
	}
	_ = trackNumber
	return sum
}

// eacCRC32 computes the zlib/ISO-3309 CRC32 over the raw sample byte
// stream (little-endian L then R per frame), optionally excluding runs of
// all-zero frames for the "skip-zero" variant (spec §4.3).
func eacCRC32(frames []Frame, skipZero bool) uint32 {
	crc := crc32.NewIEEE()
	buf := make([]byte, 4)
	for _, f := range frames {
		if skipZero && f.Left == 0 && f.Right == 0 {
			continue
		}
		buf[0] = byte(uint16(f.Left))
		buf[1] = byte(uint16(f.Left) >> 8)
		buf[2] = byte(uint16(f.Right))
		buf[3] = byte(uint16(f.Right) >> 8)
		crc.Write(buf)
	}
	return crc.Sum32()
}

// FindOffset returns the offsets for which self's offset-finding checksum
// equals target (spec §4.3): it searches the offset set already registered
// via AddOffset/ChecksumsAt, matching on ChecksumTriple.OffsetFind.
func (s *StreamCtx) FindOffset(target uint32) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []int
	for offset, triple := range s.checksums {
		if triple.OffsetFind == target {
			matches = append(matches, offset)
		}
	}
	return matches
}

// FindOffsetEAC is the EAC analog of FindOffset, matching on EACCRC32.
func (s *StreamCtx) FindOffsetEAC(target uint32) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []int
	for offset, triple := range s.checksums {
		if triple.EACCRC32 == target || triple.EACCRC32Skip == target {
			matches = append(matches, offset)
		}
	}
	return matches
}
