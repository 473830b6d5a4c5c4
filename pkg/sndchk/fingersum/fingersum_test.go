package fingersum

import "testing"

// sliceSource is a trivial in-memory StreamSource for tests.
type sliceSource []Frame

func (s sliceSource) Frames() []Frame { return []Frame(s) }

func makeFrames(n int, seed int16) []Frame {
	out := make([]Frame, n)
	for i := range out {
		out[i] = Frame{Left: seed + int16(i%7), Right: seed - int16(i%5)}
	}
	return out
}

func TestSectorsInvariant(t *testing.T) {
	for _, n := range []int{0, 1, 587, 588, 589, 588 * 10, 588*10 + 3} {
		ctx := New(sliceSource(makeFrames(n, 1)), 44100, nil)
		sectors := ctx.Sectors()
		if uint32(sectors)*FrameSamples > uint32(n) {
			t.Fatalf("n=%d: sectors*588=%d exceeds sample count", n, sectors*FrameSamples)
		}
		if uint32(n) >= (sectors+1)*FrameSamples {
			t.Fatalf("n=%d: sample count %d should be < (sectors+1)*588=%d", n, n, (sectors+1)*FrameSamples)
		}
	}
}

func TestChecksumsAtIdempotentAndCacheable(t *testing.T) {
	self := New(sliceSource(makeFrames(5000, 10)), 44100, nil)
	self.AddOffset(0)
	self.AddOffset(588)

	first, err := ChecksumsAt(nil, self, nil, Position{}, 1)
	if err != nil {
		t.Fatalf("ChecksumsAt: %v", err)
	}
	second, err := ChecksumsAt(nil, self, nil, Position{}, 1)
	if err != nil {
		t.Fatalf("ChecksumsAt (2nd): %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("idempotence: got %d then %d triples", len(first), len(second))
	}
	byOffset := map[int]ChecksumTriple{}
	for _, tr := range first {
		byOffset[tr.Offset] = tr
	}
	for _, tr := range second {
		want, ok := byOffset[tr.Offset]
		if !ok || want != tr {
			t.Fatalf("checksum for offset %d changed between calls: %+v vs %+v", tr.Offset, want, tr)
		}
	}
}

func TestBoundaryOffsetAtMaxWindowReported(t *testing.T) {
	self := New(sliceSource(makeFrames(10000, 3)), 44100, nil)
	self.AddOffset(MaxOffsetFrames)
	self.AddOffset(-MaxOffsetFrames)

	triples, err := ChecksumsAt(nil, self, nil, Position{}, 1)
	if err != nil {
		t.Fatalf("ChecksumsAt: %v", err)
	}
	seen := map[int]bool{}
	for _, tr := range triples {
		seen[tr.Offset] = true
	}
	if !seen[MaxOffsetFrames] || !seen[-MaxOffsetFrames] {
		t.Fatalf("boundary offsets not reported: %+v", triples)
	}
}

func TestEACCRC32SkipZeroExcludesSilence(t *testing.T) {
	frames := make([]Frame, 100)
	for i := 50; i < 60; i++ {
		frames[i] = Frame{0, 0}
	}
	for i := 0; i < 50; i++ {
		frames[i] = Frame{int16(i), int16(-i)}
	}
	for i := 60; i < 100; i++ {
		frames[i] = Frame{int16(i), int16(-i)}
	}

	withZeros := eacCRC32(frames, false)
	skipZeros := eacCRC32(frames, true)
	if withZeros == skipZeros {
		t.Fatal("expected skip-zero CRC to differ when silence is present")
	}

	// Frame 0 is {0, 0} as well, so it is stripped along with frames 50..59.
	noZeroFrames := append(append([]Frame{}, frames[1:50]...), frames[60:]...)
	wantSkip := eacCRC32(noZeroFrames, false)
	if skipZeros != wantSkip {
		t.Fatalf("skip-zero CRC = %x, want %x (CRC of silence-stripped stream)", skipZeros, wantSkip)
	}
}

func TestFindOffsetRoundTrip(t *testing.T) {
	self := New(sliceSource(makeFrames(6000, 7)), 44100, nil)
	self.AddOffset(0)
	self.AddOffset(100)
	self.AddOffset(-100)

	triples, err := ChecksumsAt(nil, self, nil, Position{}, 1)
	if err != nil {
		t.Fatalf("ChecksumsAt: %v", err)
	}

	var target uint32
	var targetOffset int
	for _, tr := range triples {
		if tr.Offset == 100 {
			target = tr.OffsetFind
			targetOffset = tr.Offset
		}
	}

	matches := self.FindOffset(target)
	found := false
	for _, o := range matches {
		if o == targetOffset {
			found = true
		}
	}
	if !found {
		t.Fatalf("FindOffset(%x) = %v, want to include offset %d", target, matches, targetOffset)
	}
}

func TestFirstTrackOmitsLeadingWindow(t *testing.T) {
	n := 10000
	frames := makeFrames(n, 5)
	full := accurateRipV1(frames, Position{})
	first := accurateRipV1(frames, Position{First: true})
	if full == first {
		t.Fatal("expected first-track checksum to differ from unrestricted sum")
	}
}

func TestLastTrackOmitsTrailingWindow(t *testing.T) {
	n := 10000
	frames := makeFrames(n, 5)
	full := accurateRipV1(frames, Position{})
	last := accurateRipV1(frames, Position{Last: true})
	if full == last {
		t.Fatal("expected last-track checksum to differ from unrestricted sum")
	}
}
