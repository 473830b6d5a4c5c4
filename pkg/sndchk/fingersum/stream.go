// Package fingersum is the per-stream signal engine of spec §4.3: acoustic
// fingerprinting (delegated to an external binding), sector counting, and
// the AccurateRip v1/v2/offset-detection/EAC-CRC32 checksum family over a
// maintained set of candidate offsets.
package fingersum

import (
	"sync"

	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

// FrameSamples is the number of stereo sample frames in one sector: 588
// stereo 16-bit samples, 1/75s at 44.1kHz (spec glossary).
const FrameSamples = 588

// MaxOffsetFrames bounds the candidate offset search window to ±5 sectors
// (spec §4.3, §8 boundary behavior).
const MaxOffsetFrames = 5 * FrameSamples

// StreamSource is the external decoder collaborator's interface: a finite
// sequence of interleaved 16-bit signed LE stereo samples (spec §6). Decode
// itself is out of scope; this is all Fingersum needs from it.
type StreamSource interface {
	// Frames returns the stream's (left, right) sample pairs in order.
	Frames() []Frame
}

// Frame is one stereo sample pair.
type Frame struct {
	Left, Right int16
}

// Fingerprinter is the out-of-scope "fingerprint-library binding"
// collaborator (spec §1, §6): a real implementation wraps a Chromaprint
// binding, mirroring how demlo's fingerprint.go shells out to fpcalc
// instead of reimplementing Chromaprint.
type Fingerprinter interface {
	Fingerprint(frames []Frame, sampleRate int) (durationS float64, id string, err error)
}

// StreamCtx is the per-input-file context: a decoded-sample source, its
// sector count, and memoized fingerprint/checksum state (spec §3).
type StreamCtx struct {
	source     StreamSource
	sampleRate int
	fp         Fingerprinter

	mu              sync.Mutex
	frames          []Frame
	fingerprintOnce sync.Once
	fingerprintDur  float64
	fingerprintID   string
	fingerprintErr  error

	offsets   map[int]struct{}           // candidate offsets, signed frames
	checksums map[int]ChecksumTriple     // memoized per (self, offset)
	findCache map[uint32][]int           // offset-finding checksum -> offsets (v1 path)
	findEAC   map[uint32][]int           // EAC whole-track crc -> offsets
}

// New builds a StreamCtx over a decoded stream. sampleRate is expected to
// be 44100 for audio-CD-derived input; fp may be nil if only checksums
// (not fingerprinting) are needed.
func New(source StreamSource, sampleRate int, fp Fingerprinter) *StreamCtx {
	frames := source.Frames()
	return &StreamCtx{
		source:     source,
		sampleRate: sampleRate,
		fp:         fp,
		frames:     frames,
		offsets:    map[int]struct{}{0: {}},
		checksums:  make(map[int]ChecksumTriple),
		findCache:  make(map[uint32][]int),
		findEAC:    make(map[uint32][]int),
	}
}

// SampleCount returns the number of stereo frames in the stream.
func (s *StreamCtx) SampleCount() int { return len(s.frames) }

// Sectors returns ⌊samples/588⌋ (spec §3 invariant).
func (s *StreamCtx) Sectors() uint32 {
	return uint32(len(s.frames) / FrameSamples)
}

// Fingerprint returns the acoustic fingerprint used by the fingerprint
// service, computed lazily and cached on first call (spec §4.3).
func (s *StreamCtx) Fingerprint() (durationS float64, id string, err error) {
	s.fingerprintOnce.Do(func() {
		if s.fp == nil {
			s.fingerprintErr = sndchkerr.New(sndchkerr.KindInconsistent, "fingersum", errNoFingerprinter)
			return
		}
		s.fingerprintDur, s.fingerprintID, s.fingerprintErr = s.fp.Fingerprint(s.frames, s.sampleRate)
	})
	return s.fingerprintDur, s.fingerprintID, s.fingerprintErr
}

var errNoFingerprinter = fingerprinterMissing{}

type fingerprinterMissing struct{}

func (fingerprinterMissing) Error() string { return "no Fingerprinter configured for this stream" }

// AddOffset extends the candidate offset set. Future ChecksumsAt calls
// include this offset (spec §4.3).
func (s *StreamCtx) AddOffset(offset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[offset] = struct{}{}
}

// Offsets returns a snapshot of the current candidate offset set.
func (s *StreamCtx) Offsets() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.offsets))
	for o := range s.offsets {
		out = append(out, o)
	}
	return out
}

// Position describes a track's location within its disc, since the first
// and last tracks' checksums omit a boundary window (spec §4.3).
type Position struct {
	First bool
	Last  bool
}
