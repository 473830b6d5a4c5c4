package mediator

import (
	"encoding/binary"

	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

// AccurateRipRecord is one pressing entry from an AccurateRip response body
// (spec §4.4/§6): a disc-identity triple plus one confidence/CRC/offset-CRC
// row per audio track.
type AccurateRipRecord struct {
	TrackCount uint8
	DiscID1    uint32
	DiscID2    uint32
	DiscCDDB   uint32
	Tracks     []AccurateRipTrackEntry
}

// AccurateRipTrackEntry is one per-track row within an AccurateRipRecord.
type AccurateRipTrackEntry struct {
	Confidence uint8
	CRC        uint32
	OffsetCRC  uint32
}

// ParseAccurateRip parses zero or more concatenated AccurateRipRecord
// values from body (spec §4.4: "multiple records concatenate"). A short
// trailing remainder that does not form a whole record is ignored rather
// than failing outright; the returned records do not report that it was
// present.
func ParseAccurateRip(body []byte) ([]AccurateRipRecord, error) {
	var records []AccurateRipRecord
	off := 0
	for off < len(body) {
		rec, n, ok := parseOneAccurateRipRecord(body[off:])
		if !ok {
			break
		}
		records = append(records, rec)
		off += n
	}
	if len(records) == 0 {
		return nil, sndchkerr.New(sndchkerr.KindParse, "accuraterip", errShortAccurateRipBody)
	}
	return records, nil
}

func parseOneAccurateRipRecord(b []byte) (AccurateRipRecord, int, bool) {
	const headerLen = 1 + 4 + 4 + 4
	if len(b) < headerLen {
		return AccurateRipRecord{}, 0, false
	}
	trackCount := b[0]
	rec := AccurateRipRecord{
		TrackCount: trackCount,
		DiscID1:    binary.LittleEndian.Uint32(b[1:5]),
		DiscID2:    binary.LittleEndian.Uint32(b[5:9]),
		DiscCDDB:   binary.LittleEndian.Uint32(b[9:13]),
	}
	need := headerLen + int(trackCount)*9
	if len(b) < need {
		return AccurateRipRecord{}, 0, false
	}
	rec.Tracks = make([]AccurateRipTrackEntry, trackCount)
	off := headerLen
	for i := 0; i < int(trackCount); i++ {
		rec.Tracks[i] = AccurateRipTrackEntry{
			Confidence: b[off],
			CRC:        binary.LittleEndian.Uint32(b[off+1 : off+5]),
			OffsetCRC:  binary.LittleEndian.Uint32(b[off+5 : off+9]),
		}
		off += 9
	}
	return rec, off, true
}

type parseErr string

func (e parseErr) Error() string { return string(e) }

const errShortAccurateRipBody = parseErr("accuraterip: response too short to contain a single record")

// EAC magic markers delimiting the three sections of an EAC CRC response
// (spec §4.4/§6).
const (
	eacMagic1 uint32 = 0x9f3c29aa
	eacMagic2 uint32 = 0x6ba2eac3
	eacMagic3 uint32 = 0x1e4932fe
)

// EACWholeTrackEntry is one whole-disc-rip CRC confirmation (count + crc)
// paired with its submission date, within the magic1..magic2 section.
type EACWholeTrackEntry struct {
	Count uint32
	CRC32 uint32
	Date  uint32
}

// EACTrackBlock is all whole-track entries submitted for one track
// position.
type EACTrackBlock struct {
	Entries []EACWholeTrackEntry
}

// EACResponse is a fully parsed EAC CRC database response (spec §4.4/§6).
type EACResponse struct {
	NTracks int
	Date    uint32
	Tracks  []EACTrackBlock
	// PartialSection is the raw bytes of the analogous partial-track
	// section between magic2 and magic3; the wire format for its internal
	// layout is not specified beyond "analogous" and is preserved verbatim
	// for completeness rather than re-parsed speculatively.
	PartialSection []byte
}

// ParseEAC parses the single concatenated EAC response body described in
// spec §4.4/§6. Any magic mismatch, short read, or trailing bytes after the
// third magic surfaces as kind=parse.
func ParseEAC(body []byte) (*EACResponse, error) {
	r := &byteReader{buf: body}

	nMinus1, ok := r.u32()
	if !ok {
		return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "truncated header: missing track count")
	}
	date, ok := r.u32()
	if !ok {
		return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "truncated header: missing date")
	}
	magic1, ok := r.u32()
	if !ok {
		return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "truncated header: missing magic1")
	}
	if magic1 != eacMagic1 {
		return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "magic1 mismatch: got %#x want %#x", magic1, eacMagic1)
	}

	nTracks := int(nMinus1) + 1
	resp := &EACResponse{NTracks: nTracks, Date: date, Tracks: make([]EACTrackBlock, nTracks)}

	for t := 0; t < nTracks; t++ {
		nBlocks, ok := r.u32()
		if !ok {
			return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "truncated track %d: missing block count", t)
		}
		block := EACTrackBlock{Entries: make([]EACWholeTrackEntry, nBlocks)}
		for i := uint32(0); i < nBlocks; i++ {
			count, ok1 := r.u32()
			crc, ok2 := r.u32()
			cnt2, ok3 := r.u32()
			entryDate, ok4 := r.u32()
			if !ok1 || !ok2 || !ok3 || !ok4 {
				return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "truncated track %d block %d", t, i)
			}
			_ = cnt2 // second count field mirrors the first per the wire layout; it is read and discarded
			block.Entries[i] = EACWholeTrackEntry{Count: count, CRC32: crc, Date: entryDate}
		}
		resp.Tracks[t] = block
	}

	magic2, ok := r.u32()
	if !ok {
		return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "truncated: missing magic2")
	}
	if magic2 != eacMagic2 {
		return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "magic2 mismatch: got %#x want %#x", magic2, eacMagic2)
	}

	partialStart := r.pos
	magic3Pos := findMagic3(r.buf[r.pos:])
	if magic3Pos < 0 {
		return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "magic3 not found")
	}
	resp.PartialSection = append([]byte(nil), r.buf[partialStart:partialStart+magic3Pos]...)
	r.pos += magic3Pos

	magic3, ok := r.u32()
	if !ok {
		return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "truncated: missing magic3")
	}
	if magic3 != eacMagic3 {
		return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "magic3 mismatch: got %#x want %#x", magic3, eacMagic3)
	}
	if r.pos != len(r.buf) {
		return nil, sndchkerr.Errorf(sndchkerr.KindParse, "eac", "%d trailing byte(s) after magic3", len(r.buf)-r.pos)
	}
	return resp, nil
}

func findMagic3(b []byte) int {
	if len(b) < 4 {
		return -1
	}
	for i := 0; i+4 <= len(b); i++ {
		if binary.LittleEndian.Uint32(b[i:i+4]) == eacMagic3 {
			return i
		}
	}
	return -1
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) u32() (uint32, bool) {
	if r.pos+4 > len(r.buf) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, true
}
